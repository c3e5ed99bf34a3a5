package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/leofalp/ocigenai/core/client"
	"github.com/leofalp/ocigenai/core/retry"
	"github.com/leofalp/ocigenai/providers/ai"
)

// Operation names carried by the *retry.TimeoutError this middleware returns.
const (
	sendOperation   = "chat"
	streamOperation = "chat.stream"
)

// NewTimeoutMiddleware bounds a whole call, retries included, with timeout.
//
// An expired deadline surfaces as *retry.TimeoutError, which still matches
// context.DeadlineExceeded. For streams the deadline covers opening and
// reading; the context is released when the finish event or an error is
// delivered, or when the consumer stops early. A non-positive timeout makes
// the middleware a pass-through.
func NewTimeoutMiddleware(timeout time.Duration) client.MiddlewareConfig {
	return client.MiddlewareConfig{
		Send:   buildSendTimeout(timeout),
		Stream: buildStreamTimeout(timeout),
	}
}

func buildSendTimeout(timeout time.Duration) client.Middleware {
	return func(next client.SendFunc) client.SendFunc {
		if timeout <= 0 {
			return next
		}
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
			return retry.WithTimeout(ctx, timeout, sendOperation, func(ctx context.Context) (*ai.ChatResponse, error) {
				return next(ctx, request)
			})
		}
	}
}

func buildStreamTimeout(timeout time.Duration) client.StreamMiddleware {
	return func(next client.StreamFunc) client.StreamFunc {
		if timeout <= 0 {
			return next
		}
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
			streamCtx, cancel := context.WithTimeout(ctx, timeout)
			bound := streamDeadline{parent: ctx, streamCtx: streamCtx, timeout: timeout}

			stream, err := next(streamCtx, request)
			if err != nil {
				cancel()
				return nil, bound.translate(err)
			}

			return bound.wrap(stream, cancel), nil
		}
	}
}

// streamDeadline reports errors caused by its own deadline as timeouts.
type streamDeadline struct {
	parent    context.Context
	streamCtx context.Context
	timeout   time.Duration
}

func (d streamDeadline) translate(err error) error {
	if d.parent.Err() != nil || !errors.Is(d.streamCtx.Err(), context.DeadlineExceeded) {
		return err
	}
	var timeoutErr *retry.TimeoutError
	if errors.As(err, &timeoutErr) {
		return err
	}
	return &retry.TimeoutError{Timeout: d.timeout, Operation: streamOperation}
}

func (d streamDeadline) wrap(stream *ai.ChatStream, cancel context.CancelFunc) *ai.ChatStream {
	return ai.NewChatStream(func(yield func(ai.StreamEvent, error) bool) {
		defer cancel()

		for event, err := range stream.Iter() {
			if err != nil {
				yield(event, d.translate(err))
				return
			}
			if !yield(event, nil) || event.Type == ai.StreamEventFinish {
				return
			}
		}
	})
}
