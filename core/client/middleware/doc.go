// Package middleware holds the built-in [client.MiddlewareConfig] constructors:
//
//   - [NewRetryMiddleware] retries transient failures under a [retry.Policy]
//   - [NewTimeoutMiddleware] bounds a call, or a whole stream, with a deadline
//   - [NewLoggingMiddleware] writes slog entries around every call
//
// Usage:
//
//	c, err := client.New(provider,
//	    client.WithMiddleware(
//	        middleware.NewTimeoutMiddleware(30*time.Second),
//	        middleware.NewLoggingMiddleware(slog.Default(), middleware.LogLevelStandard),
//	    ),
//	)
//
// The first entry is the outermost wrapper: a request travels
// Timeout → Logging → Provider and the response comes back in reverse.
package middleware
