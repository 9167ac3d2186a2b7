// Package retry provides the strictly sequential retry policy used by
// handlers that compose more than one backend call.
package retry

import (
	"context"
	"errors"
)

// PermanentError wraps an error that should not be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so that Policy.Do will not retry it.
func Permanent(err error) error {
	return &PermanentError{Err: err}
}

// Policy is a fixed-attempt sequential retry: no backoff, no parallelism.
// Attempt n+1 starts only after attempt n has fully resolved.
type Policy struct {
	MaxAttempts int
}

// Do calls fn with the zero-based attempt number until it returns nil,
// returns a permanent error, attempts are exhausted, or ctx is cancelled.
// The attempt number lets callers vary the request between phases (the
// profile fetch sends its token only on the second attempt).
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		err = fn(ctx, attempt)
		if err == nil {
			return nil
		}

		var pe *PermanentError
		if errors.As(err, &pe) {
			return pe.Err
		}
	}

	return err
}
