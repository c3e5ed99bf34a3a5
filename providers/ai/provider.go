package ai

import "context"

// Provider is the interface every chat provider satisfies.
// Use [StreamProvider] in addition when the provider supports streaming.
type Provider interface {
	// SendMessage sends a chat request and returns the completed response.
	SendMessage(ctx context.Context, request ChatRequest) (*ChatResponse, error)

	// IsStopMessage reports whether the response is terminal: the model has
	// nothing more to say and no tool calls are pending.
	IsStopMessage(message *ChatResponse) bool
}

// StreamProvider is implemented by providers that can stream responses.
// Callers detect support via type assertion and otherwise fall back to
// SendMessage wrapped in [NewSingleEventStream].
type StreamProvider interface {
	Provider
	// StreamMessage returns a ChatStream yielding deltas as they arrive.
	// Errors before the stream opens are returned directly; mid-stream errors
	// are yielded through the iterator.
	StreamMessage(ctx context.Context, request ChatRequest) (*ChatStream, error)
}

// EmbeddingProvider produces embedding vectors.
type EmbeddingProvider interface {
	Embed(ctx context.Context, request EmbedRequest) (*EmbedResponse, error)
}

// RerankProvider scores documents against a query.
type RerankProvider interface {
	Rerank(ctx context.Context, request RerankRequest) (*RerankResponse, error)
}

// TranscriptionProvider creates speech-to-text jobs.
type TranscriptionProvider interface {
	Transcribe(ctx context.Context, request TranscriptionRequest) (*TranscriptionJob, error)
}
