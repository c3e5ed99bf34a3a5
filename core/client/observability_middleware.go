package client

import (
	"context"
	"time"

	"github.com/leofalp/ocigenai/internal/utils"
	"github.com/leofalp/ocigenai/providers/ai"
	"github.com/leofalp/ocigenai/providers/observability"
)

// NewObservabilityMiddleware opens a span per request, injects the span and
// observer into the context for the provider, and logs the outcome. For
// streams the span ends when the stream finishes, fails or is abandoned.
//
// [New] prepends it when [WithObserver] is set, so it observes the final
// outcome after any retry or timeout middleware. defaultModel labels requests
// whose Model is empty.
func NewObservabilityMiddleware(observer observability.Provider, defaultModel string) MiddlewareConfig {
	return MiddlewareConfig{
		Send:   buildObsSend(observer, defaultModel),
		Stream: buildObsStream(observer, defaultModel),
	}
}

func buildObsSend(observer observability.Provider, defaultModel string) Middleware {
	return func(next SendFunc) SendFunc {
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
			model := effectiveModel(request.Model, defaultModel)
			ctx, span := startObsSpan(ctx, observer, observability.SpanClientSend, model, request)

			start := time.Now()
			response, err := next(ctx, request)
			elapsed := time.Since(start)

			if err != nil {
				recordObsFailure(ctx, span, observer, "llm send failed", err, elapsed, model)
				return nil, err
			}

			recordObsSuccess(ctx, span, observer, "llm send completed", response, elapsed, model)
			return response, nil
		}
	}
}

func buildObsStream(observer observability.Provider, defaultModel string) StreamMiddleware {
	return func(next StreamFunc) StreamFunc {
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
			model := effectiveModel(request.Model, defaultModel)
			ctx, span := startObsSpan(ctx, observer, observability.SpanClientStream, model, request)

			start := time.Now()
			stream, err := next(ctx, request)
			if err != nil {
				recordObsFailure(ctx, span, observer, "llm stream failed", err, time.Since(start), model)
				return nil, err
			}

			return wrapStreamWithObservability(ctx, stream, span, observer, start, model), nil
		}
	}
}

func startObsSpan(ctx context.Context, observer observability.Provider, name, model string, request ai.ChatRequest) (context.Context, observability.Span) {
	ctx, span := observer.StartSpan(ctx, name,
		observability.String(observability.AttrLLMModel, model),
	)
	ctx = observability.ContextWithSpan(ctx, span)
	ctx = observability.ContextWithObserver(ctx, observer)

	observer.Debug(ctx, name,
		observability.String(observability.AttrLLMModel, model),
		observability.Int(observability.AttrRequestMessagesCount, len(request.Messages)),
	)
	return ctx, span
}

// wrapStreamWithObservability passes events through unchanged and closes the
// span once the stream ends.
func wrapStreamWithObservability(
	ctx context.Context,
	stream *ai.ChatStream,
	span observability.Span,
	observer observability.Provider,
	start time.Time,
	model string,
) *ai.ChatStream {
	iteratorFunc := func(yield func(ai.StreamEvent, error) bool) {
		summary := &ai.ChatResponse{Model: model}

		for event, err := range stream.Iter() {
			if err != nil {
				recordObsFailure(ctx, span, observer, "llm stream failed", err, time.Since(start), model)
				yield(event, err)
				return
			}

			switch event.Type {
			case ai.StreamEventToolCallDelta:
				if event.ToolCall != nil && event.ToolCall.Name != "" {
					summary.ToolCalls = append(summary.ToolCalls, ai.ToolCall{Function: ai.ToolCallFunction{Name: event.ToolCall.Name}})
				}
			case ai.StreamEventFinish:
				summary.FinishReason = event.FinishReason
				summary.Usage = event.Usage
			}

			if !yield(event, nil) {
				span.SetStatus(observability.StatusOK, "llm stream abandoned")
				span.End()
				observer.Info(ctx, "llm stream abandoned",
					observability.String(observability.AttrLLMModel, model),
					observability.Duration(observability.AttrDuration, time.Since(start)),
				)
				return
			}

			if event.Type == ai.StreamEventFinish {
				break
			}
		}

		recordObsSuccess(ctx, span, observer, "llm stream completed", summary, time.Since(start), model)
	}

	return ai.NewChatStream(iteratorFunc)
}

func recordObsFailure(ctx context.Context, span observability.Span, observer observability.Provider, message string, err error, elapsed time.Duration, model string) {
	span.RecordError(err)
	span.SetStatus(observability.StatusError, message)
	span.End()

	observer.Error(ctx, message,
		observability.Error(err),
		observability.Duration(observability.AttrDuration, elapsed),
		observability.String(observability.AttrLLMModel, model),
	)
}

// recordObsSuccess sets token attributes on the span, logs a summary and ends
// the span.
func recordObsSuccess(
	ctx context.Context,
	span observability.Span,
	observer observability.Provider,
	message string,
	response *ai.ChatResponse,
	elapsed time.Duration,
	model string,
) {
	logAttrs := []observability.Attribute{
		observability.String(observability.AttrLLMModel, model),
		observability.String(observability.AttrLLMFinishReason, string(response.FinishReason)),
		observability.Duration(observability.AttrDuration, elapsed),
		observability.Int(observability.AttrClientToolCalls, len(response.ToolCalls)),
	}

	if response.Usage != nil {
		usageAttrs := []observability.Attribute{
			observability.Int(observability.AttrLLMTokensPrompt, response.Usage.PromptTokens),
			observability.Int(observability.AttrLLMTokensCompletion, response.Usage.CompletionTokens),
			observability.Int(observability.AttrLLMTokensTotal, response.Usage.TotalTokens),
		}
		span.SetAttributes(usageAttrs...)
		logAttrs = append(logAttrs, usageAttrs...)
	}

	if response.Content != "" {
		logAttrs = append(logAttrs,
			observability.String("response", utils.TruncateString(response.Content, 100)),
		)
	}

	observer.Info(ctx, message, logAttrs...)

	span.SetStatus(observability.StatusOK, "success")
	span.End()
}

// effectiveModel returns the request model, or the client default when empty.
func effectiveModel(requestModel, defaultModel string) string {
	if requestModel != "" {
		return requestModel
	}
	return defaultModel
}
