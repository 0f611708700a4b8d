// Package retry runs an operation with a bounded number of attempts and a
// linear backoff between them.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	DefaultMaxAttempts = 3
	DefaultDelay       = time.Second
)

// Policy configures Do. Zero fields fall back to the defaults above.
type Policy struct {
	MaxAttempts int
	// Delay is multiplied by the attempt number: 1x after the first failure,
	// 2x after the second and so on.
	Delay time.Duration
	// Retryable classifies an error. A nil classifier retries everything.
	Retryable func(error) bool
	// OnRetry is called before each wait.
	OnRetry func(attempt int, err error, wait time.Duration)
	// Sleep replaces the context-aware wait, mainly for tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// ExhaustedError is returned once every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Do calls fn until it succeeds, returns a non-retryable error, the context
// ends, or the attempts run out.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	delay := p.Delay
	if delay <= 0 {
		delay = DefaultDelay
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = wait
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return err
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if attempt >= maxAttempts {
			return &ExhaustedError{Attempts: attempt, Err: err}
		}
		backoff := time.Duration(attempt) * delay
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, backoff)
		}
		if err := sleep(ctx, backoff); err != nil {
			return err
		}
	}
}

// IsExhausted reports whether err came from running out of attempts.
func IsExhausted(err error) bool {
	var ex *ExhaustedError
	return errors.As(err, &ex)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
