// Package retry runs an operation a bounded number of times with a fixed
// pause between attempts.
package retry

import (
	"context"
	"time"
)

// Policy configures Do.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	// Retryable reports whether a failure is worth another attempt.
	// Nil means every error is retried.
	Retryable func(error) bool
	// OnRetry is called before each pause with the attempt that just failed.
	OnRetry func(attempt int, err error)
}

// Default is three attempts one second apart.
var Default = Policy{MaxAttempts: 3, Delay: time.Second}

// Do calls fn until it succeeds, a failure is not retryable, attempts run
// out or ctx ends. It returns the result, the number of attempts made and
// the last error.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, int, error) {
	var zero T
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = Default.MaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, attempt, nil
		}
		lastErr = err

		if p.Retryable != nil && !p.Retryable(err) {
			return zero, attempt, err
		}
		if attempt == p.MaxAttempts {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}

		if p.Delay > 0 {
			t := time.NewTimer(p.Delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return zero, attempt, ctx.Err()
			case <-t.C:
			}
		} else if ctx.Err() != nil {
			return zero, attempt, ctx.Err()
		}
	}
	return zero, p.MaxAttempts, lastErr
}
