// Package retry polls an operation until it succeeds or a bounded budget runs out.
//
// Rendering in the browser is asynchronous and exposes no completion signal, so
// reads that follow a render are wrapped here instead of being sampled once.
package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ErrExhausted is matched by every error returned when the budget runs out
var ErrExhausted = errors.New("retry budget exhausted")

// Policy bounds a retry loop. An attempt counts as failed when the operation
// returns a non-nil error, whether extraction failed or the comparison did.
type Policy struct {
	MaxAttempts int           `toml:"max_attempts" validate:"min=1"`
	Interval    time.Duration `toml:"interval" validate:"gte=0"`
	Timeout     time.Duration `toml:"timeout" validate:"gte=0"` // 0 means only the caller's context bounds the loop

	// Notify is called after each failed attempt
	Notify func(attempt int, err error) `toml:"-"`
}

// DefaultPolicy polls every 250ms for up to 20 attempts or 20 seconds
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 20,
		Interval:    250 * time.Millisecond,
		Timeout:     20 * time.Second,
	}
}

// Once is a single-attempt policy
func Once() Policy {
	return Policy{MaxAttempts: 1}
}

// Validate rejects policies that could never attempt the operation
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("retry policy needs at least 1 attempt, got %d", p.MaxAttempts)
	}
	if p.Interval < 0 {
		return fmt.Errorf("retry interval must not be negative, got %s", p.Interval)
	}
	if p.Timeout < 0 {
		return fmt.Errorf("retry timeout must not be negative, got %s", p.Timeout)
	}
	return nil
}

// ExhaustedError reports a retry loop that never converged
type ExhaustedError struct {
	Attempts int
	Elapsed  time.Duration
	Last     error // last error returned by the operation, nil if it never ran
	Cause    error // context error that stopped the loop early, if any
}

func (e *ExhaustedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s after %d attempt(s) in %s", ErrExhausted, e.Attempts, e.Elapsed.Round(time.Millisecond))
	if e.Cause != nil {
		fmt.Fprintf(&b, " (%v)", e.Cause)
	}
	if e.Last != nil {
		fmt.Fprintf(&b, ": %v", e.Last)
	}
	return b.String()
}

// Unwrap exposes ErrExhausted, the last attempt error and the context error
func (e *ExhaustedError) Unwrap() []error {
	errs := []error{ErrExhausted}
	if e.Last != nil {
		errs = append(errs, e.Last)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

type stopError struct {
	err error
}

func (e *stopError) Error() string { return e.err.Error() }
func (e *stopError) Unwrap() error { return e.err }

// Stop marks err as permanent: the loop returns it at once instead of retrying
func Stop(err error) error {
	if err == nil {
		return nil
	}
	return &stopError{err: err}
}

// Do runs op until it returns nil or the policy budget is spent
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	_, err := Value(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Value runs op until it returns a nil error and hands back its result.
// The first successful attempt wins; there is no settling period.
func Value[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := p.Validate(); err != nil {
		return zero, err
	}

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	limit := rate.Inf
	if p.Interval > 0 {
		limit = rate.Every(p.Interval)
	}
	limiter := rate.NewLimiter(limit, 1)

	start := time.Now()
	var last error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return zero, &ExhaustedError{
				Attempts: attempt - 1,
				Elapsed:  time.Since(start),
				Last:     last,
				Cause:    contextCause(ctx, err),
			}
		}

		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		var stop *stopError
		if errors.As(err, &stop) {
			return zero, stop.err
		}
		last = err
		if p.Notify != nil {
			p.Notify(attempt, err)
		}
	}

	return zero, &ExhaustedError{
		Attempts: p.MaxAttempts,
		Elapsed:  time.Since(start),
		Last:     last,
	}
}

// contextCause prefers the context's own error over the limiter's wording
// ("would exceed context deadline") so errors.Is(err, context.DeadlineExceeded) holds.
func contextCause(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if _, ok := ctx.Deadline(); ok {
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return err
}
