// Package retry runs an operation under a bounded, fixed-delay retry policy.
package retry

import (
	"context"
	"fmt"
	"time"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy describes how many times to try, how long to wait in between, and which errors are worth another attempt.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	Retryable   func(error) bool
	Sleep       SleepFunc
	// OnRetry is called before each wait with the failed attempt number (1-based).
	OnRetry func(attempt int, err error)
}

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Fixed returns a policy with a constant delay between attempts.
func Fixed(attempts int, delay time.Duration, retryable func(error) bool) Policy {
	return Policy{MaxAttempts: attempts, Delay: delay, Retryable: retryable}
}

// Do invokes fn until it succeeds, returns a non-retryable error, attempts run out,
// or ctx is done. Attempts are strictly sequential. The attempt number passed to fn is 1-based.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return &ExhaustedError{Attempts: attempt - 1, Err: lastErr}
			}
			return err
		}
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		if err := sleep(ctx, p.Delay); err != nil {
			return &ExhaustedError{Attempts: attempt, Err: lastErr}
		}
	}
	return &ExhaustedError{Attempts: attempts, Err: lastErr}
}

// SleepContext is a cancellable sleep.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
