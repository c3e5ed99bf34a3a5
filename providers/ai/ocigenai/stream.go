package ocigenai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/leofalp/ocigenai/internal/utils"
	"github.com/leofalp/ocigenai/providers/ai"
	"github.com/leofalp/ocigenai/providers/observability"
)

// doneSentinel terminates a stream without carrying an event of its own.
const doneSentinel = "[DONE]"

// decodeStream turns an SSE body into normalized events. The sequence always
// ends with exactly one finish event or one error, and body is closed when
// the sequence returns, including when the consumer stops early.
//
//   - a complete frame that is not valid JSON is logged and skipped
//   - a trailing unterminated frame that is not valid JSON is ErrStreamTruncated
//   - a frame carrying finishReason emits the finish event and ends the stream
//   - [DONE] or upstream close without a finish frame synthesize one with
//     reason other, so it never reads as a model-reported stop
func decodeStream(ctx context.Context, body io.ReadCloser, family ModelFamily, logger *slog.Logger) iter.Seq2[ai.StreamEvent, error] {
	if logger == nil {
		logger = slog.Default()
	}

	return func(yield func(ai.StreamEvent, error) bool) {
		defer utils.CloseWithLog(body)

		scanner := utils.NewSSEScanner(body)
		decoder := &streamDecoder{family: family, toolIndex: make(map[string]int), currentTool: -1}
		span := observability.SpanFromContext(ctx)

		for {
			if err := ctx.Err(); err != nil {
				yield(ai.StreamEvent{}, err)
				return
			}

			frame, err := scanner.Next()
			if errors.Is(err, io.EOF) {
				yield(decoder.finish(ai.FinishReasonOther), nil)
				return
			}
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					yield(ai.StreamEvent{}, ctxErr)
					return
				}
				if errors.Is(err, io.ErrUnexpectedEOF) {
					yield(ai.StreamEvent{}, fmt.Errorf("%w: %w", ErrStreamTruncated, err))
					return
				}
				yield(ai.StreamEvent{}, fmt.Errorf("ocigenai: reading stream: %w", err))
				return
			}

			data := strings.TrimSpace(frame.Data)
			if data == "" {
				continue
			}

			if data == doneSentinel {
				yield(decoder.finish(ai.FinishReasonOther), nil)
				return
			}

			if !gjson.Valid(data) {
				if !frame.Terminated {
					yield(ai.StreamEvent{}, ErrStreamTruncated)
					return
				}

				logger.WarnContext(ctx, "skipping malformed stream frame",
					slog.String("family", family.String()),
					slog.String("payload", utils.TruncateString(data, 200)),
				)
				if span != nil {
					span.AddEvent(observability.EventStreamFrameSkip,
						observability.String(observability.AttrLLMFamily, family.String()),
					)
				}
				continue
			}

			parsed := gjson.Parse(data)

			if frame.Event == "error" {
				yield(ai.StreamEvent{}, &StreamError{Message: errorMessage(parsed, data), RawPayload: []byte(data)})
				return
			}

			events, finished := decoder.decode(parsed)
			for _, event := range events {
				if !yield(event, nil) {
					return
				}
			}
			if finished {
				return
			}
		}
	}
}

func errorMessage(frame gjson.Result, raw string) string {
	for _, path := range []string{"message", "error.message", "error"} {
		if value := frame.Get(path); value.Type == gjson.String && value.String() != "" {
			return value.String()
		}
	}
	return utils.TruncateStringDefault(raw)
}

// streamDecoder holds the per-stream state: cumulative usage and tool call
// index bookkeeping.
type streamDecoder struct {
	family ModelFamily
	usage  *ai.Usage

	// Generic frames identify tool calls by id on their first fragment only.
	toolIndex   map[string]int
	currentTool int

	// Cohere frames repeat complete tool calls; this many were already emitted.
	cohereToolsSent int
}

func (decoder *streamDecoder) finish(reason ai.FinishReason) ai.StreamEvent {
	return ai.StreamEvent{Type: ai.StreamEventFinish, FinishReason: reason, Usage: decoder.usage}
}

// decode maps one frame to events. The bool reports that the frame was the
// terminal one.
func (decoder *streamDecoder) decode(frame gjson.Result) ([]ai.StreamEvent, bool) {
	if usage := frame.Get("usage"); usage.IsObject() {
		decoder.updateUsage(usage)
	}

	finishReason := frame.Get("finishReason")
	finished := finishReason.Type == gjson.String && finishReason.String() != ""

	var events []ai.StreamEvent

	switch decoder.family {
	case FamilyGeneric, FamilyLlama:
		if text := joinTextPath(frame, "message.content.#.text"); text != "" {
			events = append(events, ai.StreamEvent{Type: ai.StreamEventTextDelta, Content: text})
		}
		events = append(events, decoder.genericToolDeltas(frame.Get("message.toolCalls"))...)

	case FamilyCohereV1, FamilyCohereV2:
		// The terminal Cohere frame repeats the whole text.
		if !finished {
			text := frame.Get("text").String()
			if decoder.family == FamilyCohereV2 {
				if blocks := joinTextPath(frame, "message.content.#.text"); blocks != "" {
					text = blocks
				}
			}
			if text != "" {
				events = append(events, ai.StreamEvent{Type: ai.StreamEventTextDelta, Content: text})
			}
		}
		events = append(events, decoder.cohereToolDeltas(frame.Get("toolCalls"))...)

	default:
		return []ai.StreamEvent{decoder.finish(ai.FinishReasonError)}, true
	}

	if finished {
		events = append(events, decoder.finish(mapFinishReason(decoder.family, finishReason.String())))
	}
	return events, finished
}

func (decoder *streamDecoder) updateUsage(usage gjson.Result) {
	updated := &ai.Usage{
		PromptTokens:     int(usage.Get("promptTokens").Int()),
		CompletionTokens: int(usage.Get("completionTokens").Int()),
		TotalTokens:      int(usage.Get("totalTokens").Int()),
	}
	if updated.TotalTokens == 0 {
		updated.TotalTokens = updated.PromptTokens + updated.CompletionTokens
	}
	decoder.usage = updated
}

func (decoder *streamDecoder) genericToolDeltas(toolCalls gjson.Result) []ai.StreamEvent {
	if !toolCalls.IsArray() {
		return nil
	}

	var events []ai.StreamEvent
	for _, toolCall := range toolCalls.Array() {
		id := toolCall.Get("id").String()
		name := toolCall.Get("name").String()
		arguments := toolCall.Get("arguments").String()

		delta := &ai.ToolCallDelta{Arguments: arguments}

		index, seen := decoder.toolIndex[id]
		switch {
		case id != "" && !seen:
			index = len(decoder.toolIndex)
			decoder.toolIndex[id] = index
			decoder.currentTool = index
			delta.ID = id
			delta.Name = name
		case id != "":
			decoder.currentTool = index
		case decoder.currentTool < 0:
			// Fragment before any id: open an anonymous call.
			index = len(decoder.toolIndex)
			decoder.toolIndex[fmt.Sprintf("anonymous-%d", index)] = index
			decoder.currentTool = index
			delta.ID = uuid.NewString()
			delta.Name = name
		default:
			index = decoder.currentTool
			if name != "" {
				delta.Name = name
			}
		}

		delta.Index = index
		if delta.ID == "" && delta.Name == "" && delta.Arguments == "" {
			continue
		}
		events = append(events, ai.StreamEvent{Type: ai.StreamEventToolCallDelta, ToolCall: delta})
	}
	return events
}

func (decoder *streamDecoder) cohereToolDeltas(toolCalls gjson.Result) []ai.StreamEvent {
	if !toolCalls.IsArray() {
		return nil
	}

	calls := toolCalls.Array()
	var events []ai.StreamEvent
	for index := decoder.cohereToolsSent; index < len(calls); index++ {
		arguments := "{}"
		if parameters := calls[index].Get("parameters"); parameters.IsObject() {
			arguments = parameters.Raw
		}
		events = append(events, ai.StreamEvent{
			Type: ai.StreamEventToolCallDelta,
			ToolCall: &ai.ToolCallDelta{
				Index:     index,
				ID:        uuid.NewString(),
				Name:      calls[index].Get("name").String(),
				Arguments: arguments,
			},
		})
	}
	if len(calls) > decoder.cohereToolsSent {
		decoder.cohereToolsSent = len(calls)
	}
	return events
}

// joinTextPath concatenates the strings found at a gjson array path.
func joinTextPath(frame gjson.Result, path string) string {
	values := frame.Get(path)
	if !values.IsArray() {
		return ""
	}

	var builder strings.Builder
	for _, value := range values.Array() {
		builder.WriteString(value.String())
	}
	return builder.String()
}
