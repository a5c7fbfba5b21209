// Package retry implements a bounded retry policy with a fixed delay between
// attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"uiforge/internal/types"
)

// ErrMaxAttemptsExceeded indicates every attempt failed.
var ErrMaxAttemptsExceeded = errors.New("maximum attempts exceeded")

// ExhaustedError is returned when every attempt failed with a retryable
// error. It matches ErrMaxAttemptsExceeded and the last attempt's error.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%v after %d attempts: %v", ErrMaxAttemptsExceeded, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrMaxAttemptsExceeded, e.Last}
}

// PermanentError marks a failure that no further attempt can fix. Do never
// retries it, whatever the policy's predicate says.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so Do returns it after the current attempt.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy configures retry behavior.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// Delay is the fixed pause between attempts.
	Delay time.Duration
	// Retryable reports whether an error may be retried. Nil uses
	// DefaultRetryable. Permanent errors are never retried.
	Retryable func(error) bool
	// Sleep replaces the real wait; tests inject a recorder here.
	Sleep SleepFunc
	// OnRetry is called before each wait with the failed attempt number
	// (1-based) and its error.
	OnRetry func(attempt int, err error)
}

// DefaultPolicy returns 3 attempts spaced 1.5 seconds apart.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Delay:       1500 * time.Millisecond,
	}
}

// DefaultRetryable retries everything except configuration errors and
// context cancellation.
func DefaultRetryable(err error) bool {
	switch {
	case errors.Is(err, types.ErrConfiguration):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	default:
		return true
	}
}

// ContextSleep waits on a timer, returning early with ctx.Err().
func ContextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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

// Do runs fn until it succeeds, returns a non-retryable error, or the
// attempt budget is spent. It returns fn's value and the number of attempts
// made. A spent budget yields an *ExhaustedError.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) (T, error)) (T, int, error) {
	var zero T

	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = DefaultRetryable
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = ContextSleep
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, attempt - 1, err
		}

		v, err := fn(ctx, attempt)
		if err == nil {
			return v, attempt, nil
		}
		lastErr = err

		var permanent *PermanentError
		if errors.As(err, &permanent) || !retryable(err) {
			return zero, attempt, err
		}

		// Don't sleep after the last attempt
		if attempt < maxAttempts {
			if p.OnRetry != nil {
				p.OnRetry(attempt, err)
			}
			if err := sleep(ctx, p.Delay); err != nil {
				return zero, attempt, err
			}
		}
	}

	return zero, maxAttempts, &ExhaustedError{Attempts: maxAttempts, Last: lastErr}
}
