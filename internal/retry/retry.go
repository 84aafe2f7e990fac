// Package retry provides the backoff-with-jitter policy shared by the
// prediction client and the record store.
package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = time.Second
	defaultMaxDelay    = 30 * time.Second
	defaultJitter      = 500 * time.Millisecond
)

// Policy describes a bounded retry loop with exponential backoff. The delay
// before attempt i+1 is BaseDelay * 2^i plus a random jitter in [0, Jitter).
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      time.Duration
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultMaxDelay
	}
	if p.Jitter <= 0 {
		p.Jitter = defaultJitter
	}
	return p
}

// Delay returns the backoff delay applied after failed attempt i (0-based).
func (p Policy) Delay(attempt int) time.Duration {
	p = p.withDefaults()
	d := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	return time.Duration(d) + time.Duration(rand.Int64N(int64(p.Jitter)))
}

// Do runs op up to MaxAttempts times, sleeping the backoff delay between
// attempts. Attempts are strictly sequential. It returns nil on the first
// success, ctx.Err() if the context ends while waiting, and otherwise the
// error from the final attempt.
func (p Policy) Do(ctx context.Context, op func(context.Context) error) error {
	p = p.withDefaults()

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.Delay(attempt - 1)):
			}
		}
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
	}
	return lastErr
}
