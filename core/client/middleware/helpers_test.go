package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/leofalp/ocigenai/core/retry"
	"github.com/leofalp/ocigenai/providers/ai"
)

// sendSequence returns scripted results in order; past the script it answers
// with a default stop response.
type sendSequence struct {
	responses []*ai.ChatResponse
	errors    []error
	callCount int
}

func (sequence *sendSequence) next(_ context.Context, _ ai.ChatRequest) (*ai.ChatResponse, error) {
	index := sequence.callCount
	sequence.callCount++

	if index < len(sequence.errors) && sequence.errors[index] != nil {
		return nil, sequence.errors[index]
	}
	if index < len(sequence.responses) {
		return sequence.responses[index], nil
	}
	return &ai.ChatResponse{Content: "default", FinishReason: ai.FinishReasonStop}, nil
}

// statusError exposes an HTTP status the way transport errors do.
type statusError struct {
	code int
}

func (e *statusError) Error() string       { return "status " + strconv.Itoa(e.code) }
func (e *statusError) HTTPStatusCode() int { return e.code }

func fastPolicy(maxRetries int) retry.Policy {
	return retry.Policy{MaxRetries: maxRetries, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

// eventStream yields events in order, or err in place of the event at errAt.
func eventStream(events []ai.StreamEvent, errAt int, err error) *ai.ChatStream {
	return ai.NewChatStream(func(yield func(ai.StreamEvent, error) bool) {
		for i, event := range events {
			if i == errAt {
				yield(ai.StreamEvent{}, err)
				return
			}
			if !yield(event, nil) {
				return
			}
		}
	})
}

func helloStream() []ai.StreamEvent {
	return []ai.StreamEvent{
		{Type: ai.StreamEventTextDelta, Content: "hello"},
		{Type: ai.StreamEventFinish, FinishReason: ai.FinishReasonStop, Usage: &ai.Usage{PromptTokens: 3, CompletionTokens: 1, TotalTokens: 4}},
	}
}

func testLogger(buffer *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buffer, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
