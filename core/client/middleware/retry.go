package middleware

import (
	"context"

	"github.com/leofalp/ocigenai/core/client"
	"github.com/leofalp/ocigenai/core/retry"
	"github.com/leofalp/ocigenai/providers/ai"
)

// NewRetryMiddleware retries failed provider calls under policy. The error of
// the last attempt is returned unchanged so callers can inspect it with
// errors.As.
//
// For streams only opening the stream is retried. Once a ChatStream is
// returned, errors it yields are passed through.
//
// Providers that already retry on their own (the OCI adapter does) should be
// built with [retry.NoRetry] when this middleware is used, or attempts
// multiply.
func NewRetryMiddleware(policy retry.Policy) client.MiddlewareConfig {
	send := client.Middleware(func(next client.SendFunc) client.SendFunc {
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
			return retry.Do(ctx, policy, func(ctx context.Context) (*ai.ChatResponse, error) {
				return next(ctx, request)
			})
		}
	})

	stream := client.StreamMiddleware(func(next client.StreamFunc) client.StreamFunc {
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
			return retry.Do(ctx, policy, func(ctx context.Context) (*ai.ChatStream, error) {
				return next(ctx, request)
			})
		}
	})

	return client.MiddlewareConfig{Send: send, Stream: stream}
}
