// ABOUTME: Explicit retry policy with exponential backoff for external service calls
// ABOUTME: Applied directly around model and search call sites instead of a decorator

// Package retry provides an explicit backoff policy for external calls.
package retry

import (
	"context"
	"time"
)

// Policy describes how a call against an unreliable external service is
// retried. The zero value is not usable; construct policies explicitly so
// the attempt budget is visible at the call site.
type Policy struct {
	// MaxAttempts is the total attempt budget, including the first call.
	MaxAttempts int
	// InitialDelay is the wait before the second attempt.
	InitialDelay time.Duration
	// MaxDelay caps the backoff growth.
	MaxDelay time.Duration
	// Multiplier scales the delay after each failed attempt.
	Multiplier float64
	// Retryable reports whether an error is worth another attempt.
	// A nil predicate retries every error.
	Retryable func(error) bool
}

// Do runs fn until it succeeds, a non-retryable error occurs, the attempt
// budget is exhausted, or ctx is cancelled. The last error is returned.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	delay := p.InitialDelay

	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if attempt >= p.MaxAttempts {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}

		delay = time.Duration(float64(delay) * p.Multiplier)
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
}
