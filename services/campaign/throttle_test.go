package campaign_test

import (
	"errors"
	"testing"
	"time"

	"outreach/api/services/campaign"
)

func TestThrottleDelay(t *testing.T) {
	t.Parallel()
	tests := []struct {
		perSecond int
		want      time.Duration
		wantErr   bool
	}{
		{perSecond: 1, want: time.Second},
		{perSecond: 2, want: 500 * time.Millisecond},
		{perSecond: 3, want: 334 * time.Millisecond},
		{perSecond: 7, want: 143 * time.Millisecond},
		{perSecond: 10, want: 100 * time.Millisecond},
		{perSecond: 0, wantErr: true},
		{perSecond: -1, wantErr: true},
		{perSecond: 11, wantErr: true},
	}
	for _, tt := range tests {
		got, err := campaign.ThrottleDelay(tt.perSecond)
		if tt.wantErr {
			if !errors.Is(err, campaign.ErrInvalidThrottle) {
				t.Errorf("ThrottleDelay(%d): expected ErrInvalidThrottle, got %v", tt.perSecond, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ThrottleDelay(%d): unexpected error %v", tt.perSecond, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ThrottleDelay(%d) = %v, want %v", tt.perSecond, got, tt.want)
		}
	}
}

func TestNewPacer_SpacesCalls(t *testing.T) {
	t.Parallel()
	p := campaign.NewPacer(30 * time.Millisecond)
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := p.Wait(t.Context()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	// first call is free, the next two wait one interval each
	if elapsed := time.Since(start); elapsed < 55*time.Millisecond {
		t.Errorf("expected calls to be spaced, took %v", elapsed)
	}
}
