package retry

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
)

// HTTPStatusCoder is implemented by errors that carry an HTTP status.
type HTTPStatusCoder interface {
	HTTPStatusCode() int
}

// transientMessages are matched case-insensitively against the error text
// when neither a status code nor a typed network error is available.
var transientMessages = []string{
	"econnreset",
	"etimedout",
	"enotfound",
	"econnrefused",
	"eai_again",
	"connection reset",
	"connection refused",
	"socket hang up",
	"network error",
	"fetch failed",
}

// IsRetryable reports whether err is a transient failure: HTTP 429 or 5xx,
// connection resets/refusals, network timeouts, DNS lookup failures, or a
// message naming one of those conditions. Any other HTTP status, including
// 408, is not retryable, and neither is context cancellation.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return false
	}

	var statusErr HTTPStatusCoder
	if errors.As(err, &statusErr) {
		return IsRetryableStatus(statusErr.HTTPStatusCode())
	}

	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ETIMEDOUT) || errors.Is(err, syscall.EPIPE) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range transientMessages {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

// IsRetryableStatus reports whether an HTTP status is retryable: 429 or [500,600).
func IsRetryableStatus(status int) bool {
	return status == 429 || (status >= 500 && status < 600)
}
