package retry

import (
	"context"
	"time"
)

type attemptKey struct{}

// Attempt returns the zero-based attempt number Do is running under ctx.
// Outside Do it is 0.
func Attempt(ctx context.Context) int {
	attempt, _ := ctx.Value(attemptKey{}).(int)
	return attempt
}

// Do runs op, retrying retryable failures with exponential backoff according
// to policy. The backoff sleep honours ctx; a cancelled ctx ends the loop with
// ctx.Err(). After the final attempt the last error from op is returned
// unchanged. Each attempt's context reports its number through [Attempt].
func Do[T any](ctx context.Context, policy Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	for attempt := 0; ; attempt++ {
		result, err := op(context.WithValue(ctx, attemptKey{}, attempt))
		if err == nil {
			return result, nil
		}

		if attempt >= policy.MaxRetries || ctx.Err() != nil || !policy.retryable(err) {
			return zero, err
		}

		delay := policy.Backoff(attempt)
		if policy.OnRetry != nil {
			policy.OnRetry(attempt+1, err, delay)
		}

		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return zero, sleepErr
		}
	}
}

// sleep waits for delay or until ctx is done. The timer is always stopped.
func sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
