package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TimeoutError reports that an operation did not finish within its deadline.
type TimeoutError struct {
	Timeout   time.Duration
	Operation string
}

func (e *TimeoutError) Error() string {
	if e.Operation == "" {
		return fmt.Sprintf("operation timed out after %s", e.Timeout)
	}
	return fmt.Sprintf("%s timed out after %s", e.Operation, e.Timeout)
}

// Is makes errors.Is(err, context.DeadlineExceeded) hold for timeouts.
func (e *TimeoutError) Is(target error) bool {
	return target == context.DeadlineExceeded
}

// WithTimeout runs op under a context that expires after timeout. When that
// deadline (and not the parent context) fires first, the result is a
// *TimeoutError naming operation, even if op ignores its context and is still
// running; its eventual result is discarded. The derived context is cancelled
// on every return path. A non-positive timeout runs op with ctx unchanged.
func WithTimeout[T any](ctx context.Context, timeout time.Duration, operation string, op func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return op(ctx)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result T
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := op(timeoutCtx)
		done <- outcome{result: result, err: err}
	}()

	select {
	case finished := <-done:
		if finished.err == nil {
			return finished.result, nil
		}
		if ctx.Err() == nil && errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
			var zero T
			return zero, &TimeoutError{Timeout: timeout, Operation: operation}
		}
		return finished.result, finished.err
	case <-timeoutCtx.Done():
		var zero T
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, &TimeoutError{Timeout: timeout, Operation: operation}
	}
}
