package campaign

import "time"

// UsePacer replaces the pacer factory so tests do not wait in real time.
func UsePacer(s *Sender, f func(time.Duration) Pacer) {
	s.newPacer = f
}

// KeepRuns sets how many finished runs the sender remembers.
func KeepRuns(s *Sender, n int) {
	s.mu.Lock()
	s.keepRuns = n
	s.mu.Unlock()
}
