package client

import (
	"context"

	"github.com/leofalp/ocigenai/providers/ai"
)

// SendFunc sends a chat request and returns the completed response. It is the
// unit threaded through the send middleware chain.
type SendFunc func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error)

// StreamFunc opens a ChatStream for a request. It is the unit threaded through
// the stream middleware chain.
type StreamFunc func(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error)

// Middleware wraps the next SendFunc in the chain. The first middleware given
// to [WithMiddleware] is the outermost.
type Middleware func(next SendFunc) SendFunc

// StreamMiddleware is the streaming counterpart of Middleware. It may wrap the
// returned ChatStream to observe the event sequence.
type StreamMiddleware func(next StreamFunc) StreamFunc

// MiddlewareConfig pairs a send middleware with its optional streaming
// counterpart. Send is required and [New] rejects a nil one. A nil Stream means
// streaming calls skip this entry.
type MiddlewareConfig struct {
	// Send wraps SendMessage calls.
	Send Middleware

	// Stream wraps StreamMessage calls.
	Stream StreamMiddleware
}

// buildSendChain wraps the provider call with middlewares, last entry
// innermost.
func buildSendChain(provider ai.Provider, middlewares []MiddlewareConfig) SendFunc {
	var chain SendFunc = func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
		return provider.SendMessage(ctx, request)
	}

	for i := len(middlewares) - 1; i >= 0; i-- {
		chain = middlewares[i].Send(chain)
	}

	return chain
}

// buildStreamChain is buildSendChain for streams. A provider without native
// streaming is served by SendMessage replayed as a single-event stream; entries
// with a nil Stream are skipped.
func buildStreamChain(provider ai.Provider, middlewares []MiddlewareConfig) StreamFunc {
	var chain StreamFunc = func(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
		if streamProvider, ok := provider.(ai.StreamProvider); ok {
			return streamProvider.StreamMessage(ctx, request)
		}

		response, err := provider.SendMessage(ctx, request)
		if err != nil {
			return nil, err
		}

		return ai.NewSingleEventStream(response), nil
	}

	for i := len(middlewares) - 1; i >= 0; i-- {
		if middlewares[i].Stream != nil {
			chain = middlewares[i].Stream(chain)
		}
	}

	return chain
}
