package retry

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/rohmanhakim/lore-crawler/pkg/failure"
	"github.com/rohmanhakim/lore-crawler/pkg/timeutil"
)

// Retry executes the provided function with retry logic.
// It will retry the function up to MaxAttempts times, applying exponential
// backoff with jitter between attempts. Only retryable errors trigger a
// retry; the wait between attempts is cooperative and aborts with
// ErrCancelled when the context is done.
//
// Type parameter T represents the return type of the function being retried.
func Retry[T any](
	ctx context.Context,
	retryParam RetryParam,
	sleeper timeutil.Sleeper,
	fn func() (T, failure.ClassifiedError),
) (T, failure.ClassifiedError) {
	var lastErr failure.ClassifiedError
	var zero T

	if retryParam.MaxAttempts < 1 {
		return zero, &RetryError{
			Message:   "max attempt cannot be 0",
			Cause:     ErrZeroAttempt,
			Retryable: false,
		}
	}

	// Initialize random number generator with the provided seed
	rng := rand.New(rand.NewSource(retryParam.RandomSeed))

	for attempt := 1; attempt <= retryParam.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, &RetryError{
				Message:   err.Error(),
				Cause:     ErrCancelled,
				Retryable: false,
			}
		}

		result, err := fn()

		// Success case: no error
		if err == nil {
			return result, nil
		}

		lastErr = err

		// If not retryable, return immediately
		if !isErrorRetryable(err) {
			return zero, err
		}

		// If this was the last attempt, break and return exhausted error
		if attempt == retryParam.MaxAttempts {
			break
		}

		// Compute delay for the next retry using exponential backoff with jitter
		backoffDelay := timeutil.ExponentialBackoffDelay(
			attempt,
			retryParam.Jitter,
			rng,
			retryParam.BackoffParam,
		)

		if err := sleeper.Sleep(ctx, backoffDelay); err != nil {
			return zero, &RetryError{
				Message:   err.Error(),
				Cause:     ErrCancelled,
				Retryable: false,
			}
		}
	}

	return zero, &RetryError{
		Message:   fmt.Sprintf("exhausted %d attempts. Last error: %v", retryParam.MaxAttempts, lastErr),
		Cause:     ErrExhaustedAttempts,
		Retryable: true, // This is recoverable at scheduler level
	}
}

// isErrorRetryable checks if an error should be retried.
// Errors expose retryability through the IsRetryable method; errors that
// do not are assumed retryable.
func isErrorRetryable(err failure.ClassifiedError) bool {
	type hasRetryable interface {
		IsRetryable() bool
	}

	if r, ok := err.(hasRetryable); ok {
		return r.IsRetryable()
	}

	return true
}
