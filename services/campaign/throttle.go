package campaign

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultThrottlePerSecond = 2
	MinThrottlePerSecond     = 1
	MaxThrottlePerSecond     = 10
)

// ThrottleDelay returns the spacing between sends for a per-second rate,
// rounded up to the millisecond.
func ThrottleDelay(perSecond int) (time.Duration, error) {
	if perSecond < MinThrottlePerSecond || perSecond > MaxThrottlePerSecond {
		return 0, fmt.Errorf("%w: throttlePerSecond must be between %d and %d, got %d",
			ErrInvalidThrottle, MinThrottlePerSecond, MaxThrottlePerSecond, perSecond)
	}
	ms := (1000 + perSecond - 1) / perSecond
	return time.Duration(ms) * time.Millisecond, nil
}

// Pacer spaces out outbound calls. *rate.Limiter satisfies it.
type Pacer interface {
	Wait(ctx context.Context) error
}

// NewPacer returns a token bucket that releases one call per delay. The
// first call goes through immediately.
func NewPacer(delay time.Duration) Pacer {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}
