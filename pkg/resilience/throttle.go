package resilience

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultInterval is the minimum gap between embedding calls.
const DefaultInterval = 50 * time.Millisecond

// Throttle enforces a minimum interval between calls across all goroutines
// sharing it. A non-positive interval disables pacing.
type Throttle struct {
	lim *rate.Limiter
}

// NewThrottle creates a throttle allowing one call per interval.
func NewThrottle(interval time.Duration) *Throttle {
	if interval <= 0 {
		return &Throttle{lim: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Throttle{lim: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next call is allowed or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	return t.lim.Wait(ctx)
}

// Interval reports the configured minimum gap, zero when unpaced.
func (t *Throttle) Interval() time.Duration {
	l := t.lim.Limit()
	if l == rate.Inf || l <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / float64(l))
}
