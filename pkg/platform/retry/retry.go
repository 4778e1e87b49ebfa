// Package retry implements bounded retry-with-regeneration for writes that
// can fail on identifier collision. The record store enforces uniqueness;
// callers recover by regenerating the colliding identifier and resubmitting.
package retry

import (
	"context"
	"errors"
	"fmt"

	"civreg/pkg/platform/sentinel"
)

// ErrExhausted is returned (wrapping the last conflict) when the attempt
// ceiling is reached without a successful write.
var ErrExhausted = errors.New("retry attempts exhausted")

// ErrSettled is returned by a regenerate hook that discovered the outcome
// is already decided (for example, a racing twin applied the same
// submission). WithConflictRetry stops immediately and reports success.
var ErrSettled = errors.New("outcome already settled")

// WithConflictRetry runs op up to maxAttempts times. When op fails with
// sentinel.ErrConflict, regenerate is called before the next attempt so the
// resubmission carries fresh identifiers. A regenerate returning ErrSettled
// ends the loop successfully; any other regenerate error, or a non-conflict
// error from op, aborts immediately. Context cancellation is checked
// between attempts.
func WithConflictRetry(ctx context.Context, maxAttempts int, op func(ctx context.Context) error, regenerate func(ctx context.Context) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var last error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sentinel.ErrConflict) {
			return err
		}
		last = err

		if attempt == maxAttempts {
			break
		}
		if regenerate != nil {
			if rerr := regenerate(ctx); rerr != nil {
				if errors.Is(rerr, ErrSettled) {
					return nil
				}
				return fmt.Errorf("regenerate identifiers: %w", rerr)
			}
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, maxAttempts, last)
}
