package client

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/leofalp/ocigenai/providers/ai"
	"github.com/leofalp/ocigenai/providers/observability"
)

var (
	// ErrNilProvider is returned by New when no provider is given.
	ErrNilProvider = errors.New("client: provider must not be nil")

	// ErrNotSupported is returned when the provider lacks the capability a
	// call needs, for example Embed on a chat-only provider.
	ErrNotSupported = errors.New("client: operation not supported by provider")
)

// Client sends requests to one provider. It is immutable after New and safe
// for concurrent use when the provider is.
type Client struct {
	provider     ai.Provider
	defaultModel string
	systemPrompt string
	middlewares  []MiddlewareConfig
	observer     observability.Provider

	send   SendFunc
	stream StreamFunc
}

// Option configures a Client.
type Option func(*Client)

// WithDefaultModel sets the model used when a request does not name one.
func WithDefaultModel(model string) Option {
	return func(c *Client) {
		c.defaultModel = model
	}
}

// WithSystemPrompt prepends a system message to requests that carry none.
func WithSystemPrompt(prompt string) Option {
	return func(c *Client) {
		c.systemPrompt = prompt
	}
}

// WithMiddleware appends middlewares to the chain. The first one given is the
// outermost.
func WithMiddleware(middlewares ...MiddlewareConfig) Option {
	return func(c *Client) {
		c.middlewares = append(c.middlewares, middlewares...)
	}
}

// WithObserver enables tracing and logging through observer. Its middleware is
// placed outside every other middleware.
func WithObserver(observer observability.Provider) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

// New builds a Client over provider.
func New(provider ai.Provider, opts ...Option) (*Client, error) {
	if provider == nil {
		return nil, ErrNilProvider
	}

	c := &Client{provider: provider}
	for _, opt := range opts {
		opt(c)
	}

	for i, middleware := range c.middlewares {
		if middleware.Send == nil {
			return nil, fmt.Errorf("client: middleware %d has a nil Send function", i)
		}
	}

	chain := c.middlewares
	if c.observer != nil {
		chain = append([]MiddlewareConfig{NewObservabilityMiddleware(c.observer, c.defaultModel)}, chain...)
	}

	c.send = buildSendChain(provider, chain)
	c.stream = buildStreamChain(provider, chain)
	return c, nil
}

// SendMessage runs request through the send chain.
func (c *Client) SendMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	return c.send(ctx, c.prepare(request))
}

// StreamMessage runs request through the stream chain. Providers without
// native streaming are served by a single buffered response.
func (c *Client) StreamMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
	return c.stream(ctx, c.prepare(request))
}

// Ask sends a single user prompt with the client defaults.
func (c *Client) Ask(ctx context.Context, prompt string) (*ai.ChatResponse, error) {
	return c.SendMessage(ctx, ai.ChatRequest{
		Messages: []ai.Message{ai.NewTextMessage(ai.RoleUser, prompt)},
	})
}

// IsStopMessage delegates to the provider.
func (c *Client) IsStopMessage(response *ai.ChatResponse) bool {
	return c.provider.IsStopMessage(response)
}

// Embed calls the provider directly; the chat middleware chain does not apply.
func (c *Client) Embed(ctx context.Context, request ai.EmbedRequest) (*ai.EmbedResponse, error) {
	embedder, ok := c.provider.(ai.EmbeddingProvider)
	if !ok {
		return nil, fmt.Errorf("%w: embed", ErrNotSupported)
	}
	return embedder.Embed(ctx, request)
}

// Rerank calls the provider directly.
func (c *Client) Rerank(ctx context.Context, request ai.RerankRequest) (*ai.RerankResponse, error) {
	reranker, ok := c.provider.(ai.RerankProvider)
	if !ok {
		return nil, fmt.Errorf("%w: rerank", ErrNotSupported)
	}
	return reranker.Rerank(ctx, request)
}

// Transcribe calls the provider directly.
func (c *Client) Transcribe(ctx context.Context, request ai.TranscriptionRequest) (*ai.TranscriptionJob, error) {
	transcriber, ok := c.provider.(ai.TranscriptionProvider)
	if !ok {
		return nil, fmt.Errorf("%w: transcribe", ErrNotSupported)
	}
	return transcriber.Transcribe(ctx, request)
}

// prepare applies defaults without touching the caller's slices.
func (c *Client) prepare(request ai.ChatRequest) ai.ChatRequest {
	if request.Model == "" {
		request.Model = c.defaultModel
	}

	if c.systemPrompt != "" && !slices.ContainsFunc(request.Messages, isSystem) {
		messages := make([]ai.Message, 0, len(request.Messages)+1)
		messages = append(messages, ai.NewTextMessage(ai.RoleSystem, c.systemPrompt))
		request.Messages = append(messages, request.Messages...)
	}

	return request
}

func isSystem(message ai.Message) bool {
	return message.Role == ai.RoleSystem
}
