package orchestrator

import (
	"context"
	"math/rand"
	"time"

	"github.com/okovalenko/tgrelay/internal/ai"
)

// RetryPolicy controls retries of transient AI failures: exponential
// backoff with jitter, capped by both an attempt count and an overall
// deadline. Permanent failures are returned immediately.
type RetryPolicy struct {
	MaxAttempts     int
	BaseDelay       time.Duration
	Factor          float64
	OverallDeadline time.Duration

	// Sleep is swappable in tests. Nil means a context-aware
	// time.Sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy matches the shipped configuration defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		BaseDelay:       200 * time.Millisecond,
		Factor:          2.0,
		OverallDeadline: 10 * time.Second,
	}
}

// Do runs fn until it succeeds, fails permanently, or the policy is
// exhausted. The last error is returned on exhaustion.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	if p.OverallDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.OverallDeadline)
		defer cancel()
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := p.sleep(ctx, p.delay(attempt)); err != nil {
				return lastErr
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !ai.IsTransient(lastErr) {
			return lastErr
		}
		if ctx.Err() != nil {
			return lastErr
		}
	}
	return lastErr
}

// delay computes the backoff before the given attempt (1-based for
// retries) with up to 25% random jitter.
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		d *= p.Factor
	}
	jitter := 1 + (rand.Float64()-0.5)*0.5
	return time.Duration(d * jitter)
}

func (p RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
