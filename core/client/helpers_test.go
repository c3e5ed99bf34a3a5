package client

import (
	"context"
	"sync"

	"github.com/leofalp/ocigenai/providers/ai"
	"github.com/leofalp/ocigenai/providers/observability"
)

// ========== Mock providers ==========

// mockProvider records every request it receives and answers with response or
// err.
type mockProvider struct {
	mu       sync.Mutex
	requests []ai.ChatRequest
	response *ai.ChatResponse
	err      error
}

func (m *mockProvider) SendMessage(_ context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, request)
	if m.err != nil {
		return nil, m.err
	}
	if m.response != nil {
		return m.response, nil
	}
	return &ai.ChatResponse{Model: request.Model, Content: "mock response", FinishReason: ai.FinishReasonStop}, nil
}

func (m *mockProvider) IsStopMessage(response *ai.ChatResponse) bool {
	return response != nil && len(response.ToolCalls) == 0
}

func (m *mockProvider) lastRequest() ai.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[len(m.requests)-1]
}

// mockStreamProvider adds native streaming and the auxiliary capabilities.
type mockStreamProvider struct {
	mockProvider
	events []ai.StreamEvent
	errAt  int
	err    error

	embedded []ai.EmbedRequest
}

func (m *mockStreamProvider) StreamMessage(_ context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
	m.mu.Lock()
	m.requests = append(m.requests, request)
	m.mu.Unlock()

	events, errAt, err := m.events, m.errAt, m.err
	return ai.NewChatStream(func(yield func(ai.StreamEvent, error) bool) {
		for i, event := range events {
			if err != nil && i == errAt {
				yield(ai.StreamEvent{}, err)
				return
			}
			if !yield(event, nil) {
				return
			}
		}
	}), nil
}

func (m *mockStreamProvider) Embed(_ context.Context, request ai.EmbedRequest) (*ai.EmbedResponse, error) {
	m.embedded = append(m.embedded, request)
	return &ai.EmbedResponse{Model: request.Model}, nil
}

func (m *mockStreamProvider) Rerank(_ context.Context, request ai.RerankRequest) (*ai.RerankResponse, error) {
	return &ai.RerankResponse{}, nil
}

func (m *mockStreamProvider) Transcribe(_ context.Context, request ai.TranscriptionRequest) (*ai.TranscriptionJob, error) {
	return &ai.TranscriptionJob{ID: "job-1"}, nil
}

func textStream(text string) []ai.StreamEvent {
	return []ai.StreamEvent{
		{Type: ai.StreamEventTextDelta, Content: text},
		{Type: ai.StreamEventToolCallDelta, ToolCall: &ai.ToolCallDelta{Index: 0, ID: "call-1", Name: "lookup", Arguments: "{}"}},
		{Type: ai.StreamEventFinish, FinishReason: ai.FinishReasonToolCalls, Usage: &ai.Usage{PromptTokens: 4, CompletionTokens: 2, TotalTokens: 6}},
	}
}

// ========== Recording observer ==========

type logEntry struct {
	level   string
	message string
	attrs   map[string]any
}

type recordingObserver struct {
	mu    sync.Mutex
	spans []*recordingSpan
	logs  []logEntry
}

func (o *recordingObserver) StartSpan(ctx context.Context, name string, attrs ...observability.Attribute) (context.Context, observability.Span) {
	o.mu.Lock()
	defer o.mu.Unlock()

	span := &recordingSpan{name: name, attrs: toMap(attrs)}
	o.spans = append(o.spans, span)
	return ctx, span
}

func (o *recordingObserver) record(level, message string, attrs []observability.Attribute) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.logs = append(o.logs, logEntry{level: level, message: message, attrs: toMap(attrs)})
}

func (o *recordingObserver) Trace(_ context.Context, msg string, attrs ...observability.Attribute) {
	o.record("trace", msg, attrs)
}

func (o *recordingObserver) Debug(_ context.Context, msg string, attrs ...observability.Attribute) {
	o.record("debug", msg, attrs)
}

func (o *recordingObserver) Info(_ context.Context, msg string, attrs ...observability.Attribute) {
	o.record("info", msg, attrs)
}

func (o *recordingObserver) Warn(_ context.Context, msg string, attrs ...observability.Attribute) {
	o.record("warn", msg, attrs)
}

func (o *recordingObserver) Error(_ context.Context, msg string, attrs ...observability.Attribute) {
	o.record("error", msg, attrs)
}

// find returns the last log entry with message, or nil.
func (o *recordingObserver) find(message string) *logEntry {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i := len(o.logs) - 1; i >= 0; i-- {
		if o.logs[i].message == message {
			return &o.logs[i]
		}
	}
	return nil
}

type recordingSpan struct {
	name   string
	attrs  map[string]any
	status observability.StatusCode
	err    error
	ended  int
}

func (s *recordingSpan) End() {
	s.ended++
}

func (s *recordingSpan) SetAttributes(attrs ...observability.Attribute) {
	for key, value := range toMap(attrs) {
		s.attrs[key] = value
	}
}

func (s *recordingSpan) SetStatus(code observability.StatusCode, _ string) {
	s.status = code
}

func (s *recordingSpan) RecordError(err error) {
	s.err = err
}

func (s *recordingSpan) AddEvent(string, ...observability.Attribute) {}

func toMap(attrs []observability.Attribute) map[string]any {
	values := make(map[string]any, len(attrs))
	for _, attr := range attrs {
		values[attr.Key] = attr.Value
	}
	return values
}
