package pub

import (
	"context"
	"time"
)

// RetryPolicy is a bounded retry with a fixed delay between attempts. It
// exists as an explicit object so the scheduler's retry behavior can be
// unit-tested without real sleeps.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration

	// Sleep waits for d or until ctx is done. Nil means a real timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy matches the scheduled path: 3 attempts total with a
// short fixed delay between them.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Delay: 5 * time.Second}
}

// Do runs op until it succeeds or attempts are exhausted, returning the
// number of attempts made and the last error. Context cancellation stops
// the loop between attempts.
func (p RetryPolicy) Do(ctx context.Context, op func() error) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepTimer
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return attempt, nil
		}
		if ctx.Err() != nil {
			return attempt, lastErr
		}
		if attempt < maxAttempts && p.Delay > 0 {
			if err := sleep(ctx, p.Delay); err != nil {
				return attempt, lastErr
			}
		}
	}
	return maxAttempts, lastErr
}

func sleepTimer(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
