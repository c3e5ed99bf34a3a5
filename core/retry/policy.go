package retry

import (
	"math"
	"math/rand/v2"
	"time"
)

const (
	// DefaultMaxRetries is the number of retries after the first failure.
	DefaultMaxRetries = 3
	// DefaultBaseDelay is the backoff before the first retry.
	DefaultBaseDelay = 100 * time.Millisecond
	// DefaultMaxDelay caps any single backoff.
	DefaultMaxDelay = 10 * time.Second
	// DefaultJitter is the symmetric jitter fraction applied to each backoff.
	DefaultJitter = 0.25
)

// Policy holds the retry tuning parameters. A Policy is a plain value and is
// safe to share between goroutines.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt; the
	// operation runs at most MaxRetries+1 times. Zero disables retries.
	MaxRetries int

	// BaseDelay is the backoff before the first retry. Retry k waits
	// BaseDelay * 2^k before jitter.
	BaseDelay time.Duration

	// MaxDelay caps the computed backoff, jitter included.
	MaxDelay time.Duration

	// Jitter is the fraction in [0,1] by which each backoff is randomly
	// scaled up or down.
	Jitter float64

	// Retryable decides whether an error may be retried. Nil means IsRetryable.
	Retryable func(error) bool

	// OnRetry, if set, is called before each backoff sleep with the retry
	// number (starting at 1), the error that triggered it and the delay.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultPolicy returns 3 retries, 100ms base delay, 10s cap and ±25% jitter.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		MaxDelay:   DefaultMaxDelay,
		Jitter:     DefaultJitter,
		Retryable:  IsRetryable,
	}
}

// NoRetry returns a policy that runs the operation exactly once.
func NoRetry() Policy {
	return Policy{Retryable: IsRetryable}
}

func (p Policy) retryable(err error) bool {
	if p.Retryable == nil {
		return IsRetryable(err)
	}
	return p.Retryable(err)
}

// Backoff returns the delay before retry number attempt (0-indexed):
// min(BaseDelay * 2^attempt * (1 ± Jitter), MaxDelay).
func (p Policy) Backoff(attempt int) time.Duration {
	return p.backoff(attempt, rand.Float64()) //nolint:gosec // non-cryptographic jitter
}

// backoff computes the delay for a given uniform sample in [0,1).
func (p Policy) backoff(attempt int, sample float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delay := float64(p.BaseDelay) * math.Pow(2, float64(attempt))

	jitter := math.Max(0, math.Min(p.Jitter, 1))
	delay *= 1 + jitter*(2*sample-1)

	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
