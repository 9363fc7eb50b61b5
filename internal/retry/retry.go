// Package retry implements the bounded exponential backoff shared by the
// search and detail fetchers.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy describes how often and how patiently an operation is retried.
// The delay before attempt n+1 is Base*2^(n-1) clamped to [Min, Max].
type Policy struct {
	MaxAttempts int
	Base        time.Duration
	Min         time.Duration
	Max         time.Duration
	// Retryable decides whether an error is worth another attempt. Nil
	// retries everything except context cancellation.
	Retryable func(error) bool
}

// DefaultPolicy is two attempts with a 1s base clamped to [2s, 5s].
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 2,
		Base:        time.Second,
		Min:         2 * time.Second,
		Max:         5 * time.Second,
	}
}

// Delay returns the wait after the given failed attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.Base
	for i := 1; i < attempt && d < p.Max; i++ {
		d *= 2
	}
	if d < p.Min {
		d = p.Min
	}
	if p.Max > 0 && d > p.Max {
		d = p.Max
	}
	return d
}

// OnRetry is called before sleeping between attempts.
type OnRetry func(attempt int, delay time.Duration, err error)

// Do runs fn until it succeeds, the attempts are exhausted, the error is
// not retryable or ctx is done. The returned error wraps the last failure.
func Do(ctx context.Context, p Policy, onRetry OnRetry, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	made := 0
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%w (last error: %v)", err, lastErr)
			}
			return err
		}

		made = attempt
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !p.retryable(ctx, lastErr) || attempt == attempts {
			break
		}

		delay := p.Delay(attempt)
		if onRetry != nil {
			onRetry(attempt, delay, lastErr)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
		case <-timer.C:
		}
	}

	return fmt.Errorf("after %d attempt(s): %w", made, lastErr)
}

func (p Policy) retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}
