package campaign

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of a bulk send.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunCancelled RunStatus = "cancelled"
)

// Run is a handle on a bulk send in progress.
type Run struct {
	ID        uuid.UUID
	Total     int
	Delay     time.Duration
	StartedAt time.Time

	cancel context.CancelFunc
	done   chan struct{}

	mu         sync.Mutex
	status     RunStatus
	sent       int
	failed     int
	skipped    int
	cancelled  bool
	finishedAt *time.Time
}

// RunSnapshot is a point-in-time copy of a run's progress.
type RunSnapshot struct {
	ID         uuid.UUID  `json:"runId"`
	Status     RunStatus  `json:"status"`
	Total      int        `json:"total"`
	Processed  int        `json:"processed"`
	Sent       int        `json:"successCount"`
	Failed     int        `json:"failCount"`
	Skipped    int        `json:"skippedCount"`
	DelayMs    int64      `json:"delayMs"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

func newRun(total int, delay time.Duration, now time.Time, cancel context.CancelFunc) *Run {
	return &Run{
		ID:        uuid.New(),
		Total:     total,
		Delay:     delay,
		StartedAt: now.UTC(),
		cancel:    cancel,
		done:      make(chan struct{}),
		status:    RunRunning,
	}
}

// Cancel stops the run before its next lead. Leads not yet reached stay
// pending. Safe to call more than once.
func (r *Run) Cancel() {
	r.cancel()
}

// Done is closed when the run has stopped.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run stops or ctx ends.
func (r *Run) Wait(ctx context.Context) (Summary, error) {
	select {
	case <-r.done:
		return r.Summary(), nil
	case <-ctx.Done():
		return r.Summary(), ctx.Err()
	}
}

// Summary returns the counters accumulated so far.
func (r *Run) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Summary{Total: r.Total, Sent: r.sent, Failed: r.failed, Skipped: r.skipped}
}

// Snapshot returns the run's progress.
func (r *Run) Snapshot() RunSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RunSnapshot{
		ID:         r.ID,
		Status:     r.status,
		Total:      r.Total,
		Processed:  r.sent + r.failed + r.skipped,
		Sent:       r.sent,
		Failed:     r.failed,
		Skipped:    r.skipped,
		DelayMs:    r.Delay.Milliseconds(),
		StartedAt:  r.StartedAt,
		FinishedAt: r.finishedAt,
	}
}

func (r *Run) record(o outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch o {
	case outcomeSent:
		r.sent++
	case outcomeFailed:
		r.failed++
	case outcomeSkipped:
		r.skipped++
	}
}

func (r *Run) markCancelled() {
	r.mu.Lock()
	r.cancelled = true
	r.mu.Unlock()
}

func (r *Run) finish(now time.Time) {
	r.mu.Lock()
	t := now.UTC()
	r.finishedAt = &t
	r.status = RunCompleted
	if r.cancelled {
		r.status = RunCancelled
	}
	r.mu.Unlock()
	r.cancel()
	close(r.done)
}

func (r *Run) finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

func sortSnapshots(s []RunSnapshot) {
	sort.Slice(s, func(i, j int) bool { return s[i].StartedAt.After(s[j].StartedAt) })
}
