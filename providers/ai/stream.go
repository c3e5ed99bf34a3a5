package ai

import (
	"iter"
	"strings"

	"github.com/leofalp/ocigenai/internal/utils"
)

// StreamEventType identifies the kind of delta carried by a StreamEvent.
type StreamEventType string

const (
	// StreamEventTextDelta carries a text fragment.
	StreamEventTextDelta StreamEventType = "text-delta"
	// StreamEventToolCallDelta carries an incremental tool call (name or arguments chunk).
	StreamEventToolCallDelta StreamEventType = "tool-call-delta"
	// StreamEventFinish is the terminal event carrying the finish reason and usage.
	StreamEventFinish StreamEventType = "finish"
)

// ToolCallDelta represents an incremental update to a tool call being streamed.
// Index identifies which tool call is being updated. ID and Name are only
// present on the first chunk for a given index; later chunks carry only
// Arguments fragments.
type ToolCallDelta struct {
	Index     int    `json:"index"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// StreamEvent is a single delta yielded during streaming. Each event carries
// exactly one kind of payload, identified by Type.
type StreamEvent struct {
	Type         StreamEventType `json:"type"`
	Content      string          `json:"content,omitempty"`       // Type == StreamEventTextDelta
	ToolCall     *ToolCallDelta  `json:"tool_call,omitempty"`     // Type == StreamEventToolCallDelta
	FinishReason FinishReason    `json:"finish_reason,omitempty"` // Type == StreamEventFinish
	Usage        *Usage          `json:"usage,omitempty"`         // Type == StreamEventFinish, cumulative
}

// ChatStream wraps a streaming iterator. A well-behaved stream yields its
// deltas in arrival order and then terminates with exactly one finish event
// or one error.
//
// Callers must consume the stream, either by ranging over Iter() (breaking out
// early is fine) or by calling Collect(). The provider may hold an open HTTP
// body that is only released when the iterator returns.
type ChatStream struct {
	iterator iter.Seq2[StreamEvent, error]
}

// NewChatStream creates a ChatStream from a raw streaming iterator.
func NewChatStream(iterator iter.Seq2[StreamEvent, error]) *ChatStream {
	return &ChatStream{iterator: iterator}
}

// NewSingleEventStream replays a synchronous ChatResponse as a stream: one
// text delta, one delta per tool call, then the finish event.
func NewSingleEventStream(response *ChatResponse) *ChatStream {
	iteratorFunc := func(yield func(StreamEvent, error) bool) {
		if response.Content != "" {
			if !yield(StreamEvent{Type: StreamEventTextDelta, Content: response.Content}, nil) {
				return
			}
		}

		for toolIndex, toolCall := range response.ToolCalls {
			if !yield(StreamEvent{
				Type: StreamEventToolCallDelta,
				ToolCall: &ToolCallDelta{
					Index:     toolIndex,
					ID:        toolCall.ID,
					Name:      toolCall.Function.Name,
					Arguments: toolCall.Function.Arguments,
				},
			}, nil) {
				return
			}
		}

		yield(StreamEvent{Type: StreamEventFinish, FinishReason: response.FinishReason, Usage: response.Usage}, nil)
	}

	return NewChatStream(iteratorFunc)
}

// Iter returns the underlying iterator for use with range-over-func loops.
//
// Example:
//
//	for event, err := range stream.Iter() {
//	    if err != nil { handle error }
//	    fmt.Print(event.Content)
//	}
func (stream *ChatStream) Iter() iter.Seq2[StreamEvent, error] {
	return stream.iterator
}

// Collect consumes the entire stream and returns the accumulated ChatResponse.
// A mid-stream error stops collection and returns the partial response with
// the error. Streamed tool-call arguments that end up as invalid JSON are
// repaired when possible.
func (stream *ChatStream) Collect() (*ChatResponse, error) {
	accumulated := &ChatResponse{}
	var toolCallBuilders []*toolCallBuilder
	var content strings.Builder

	for event, err := range stream.iterator {
		if err != nil {
			accumulated.Content = content.String()
			return accumulated, err
		}

		switch event.Type {
		case StreamEventTextDelta:
			content.WriteString(event.Content)

		case StreamEventToolCallDelta:
			if event.ToolCall != nil {
				toolCallBuilders = accumulateToolCallDelta(toolCallBuilders, event.ToolCall)
			}

		case StreamEventFinish:
			accumulated.FinishReason = event.FinishReason
			if event.Usage != nil {
				accumulated.Usage = event.Usage
			}
		}
	}

	accumulated.Content = content.String()

	for _, builder := range toolCallBuilders {
		arguments, _ := utils.RepairJSON(builder.arguments.String())
		accumulated.ToolCalls = append(accumulated.ToolCalls, ToolCall{
			ID:   builder.id,
			Type: "function",
			Function: ToolCallFunction{
				Name:      builder.name,
				Arguments: arguments,
			},
		})
	}

	return accumulated, nil
}

// toolCallBuilder accumulates incremental tool call deltas into a complete ToolCall.
type toolCallBuilder struct {
	id        string
	name      string
	arguments strings.Builder
}

// accumulateToolCallDelta merges a ToolCallDelta into the running list of
// builders, growing the slice when a new index appears.
// Builders are held by pointer so growing the slice never copies a
// strings.Builder.
func accumulateToolCallDelta(builders []*toolCallBuilder, delta *ToolCallDelta) []*toolCallBuilder {
	if delta.Index < 0 {
		return builders
	}
	for len(builders) <= delta.Index {
		builders = append(builders, &toolCallBuilder{})
	}

	builder := builders[delta.Index]

	if delta.ID != "" {
		builder.id = delta.ID
	}
	if delta.Name != "" {
		builder.name = delta.Name
	}
	if delta.Arguments != "" {
		builder.arguments.WriteString(delta.Arguments)
	}

	return builders
}
