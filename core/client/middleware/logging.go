package middleware

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/leofalp/ocigenai/core/client"
	"github.com/leofalp/ocigenai/core/retry"
	"github.com/leofalp/ocigenai/internal/utils"
	"github.com/leofalp/ocigenai/providers/ai"
	"github.com/leofalp/ocigenai/providers/ai/ocigenai"
)

// LogLevel selects how much of each call the logging middleware records.
type LogLevel int

const (
	// LogLevelMinimal records model, family, duration, token counts and the
	// classification of failures.
	LogLevelMinimal LogLevel = iota

	// LogLevelStandard adds message, tool and provider option counts, the
	// finish reason and stream chunk counts.
	LogLevelStandard

	// LogLevelVerbose adds the first message and the response text, truncated.
	// Prompts may contain user data; keep this to local debugging.
	LogLevelVerbose
)

// ParseLogLevel maps "minimal", "standard" or "verbose" to a LogLevel.
// Anything else is LogLevelStandard.
func ParseLogLevel(value string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "minimal":
		return LogLevelMinimal
	case "verbose":
		return LogLevelVerbose
	default:
		return LogLevelStandard
	}
}

const truncateLen = 500

// NewLoggingMiddleware writes one entry when a chat call starts and one when
// it ends. Entries carry the OCI model family resolved from the model id and,
// inside [NewRetryMiddleware], the attempt number. Failures are tagged with
// an error kind, the HTTP status when there is one and whether the error is
// retryable. For streams the closing entry is written on the finish event, on
// an error or when the consumer stops early. A nil logger means
// slog.Default().
func NewLoggingMiddleware(logger *slog.Logger, level LogLevel) client.MiddlewareConfig {
	if logger == nil {
		logger = slog.Default()
	}

	return client.MiddlewareConfig{
		Send: func(next client.SendFunc) client.SendFunc {
			return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
				call := startCall(ctx, logger, level, "llm send", request)

				response, err := next(ctx, request)
				if err != nil {
					call.fail(err)
					return nil, err
				}

				call.completeSend(response)
				return response, nil
			}
		},
		Stream: func(next client.StreamFunc) client.StreamFunc {
			return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
				call := startCall(ctx, logger, level, "llm stream", request)

				stream, err := next(ctx, request)
				if err != nil {
					call.fail(err)
					return nil, err
				}

				return call.observe(stream), nil
			}
		},
	}
}

// loggedCall is the state of one logged send or stream.
type loggedCall struct {
	ctx    context.Context
	logger *slog.Logger
	level  LogLevel
	name   string
	start  time.Time

	// identity is repeated on every entry of the call.
	identity []any
}

func startCall(ctx context.Context, logger *slog.Logger, level LogLevel, name string, request ai.ChatRequest) *loggedCall {
	identity := []any{
		slog.String("model", request.Model),
		slog.String("family", familyOf(request.Model)),
	}
	if attempt := retry.Attempt(ctx); attempt > 0 {
		identity = append(identity, slog.Int("attempt", attempt))
	}

	call := &loggedCall{ctx: ctx, logger: logger, level: level, name: name, identity: identity}

	attrs := call.with()
	if level >= LogLevelStandard {
		attrs = append(attrs,
			slog.Int("message_count", len(request.Messages)),
			slog.Int("tool_count", len(request.Tools)),
		)
		if len(request.ProviderOptions) > 0 {
			attrs = append(attrs, slog.Int("provider_options", len(request.ProviderOptions)))
		}
	}
	if level >= LogLevelVerbose && len(request.Messages) > 0 {
		first := request.Messages[0]
		attrs = append(attrs,
			slog.String("first_message_role", string(first.Role)),
			slog.String("first_message_content", utils.TruncateString(first.Text(), truncateLen)),
		)
	}

	logger.InfoContext(ctx, name, attrs...)
	call.start = time.Now()
	return call
}

// with returns a fresh slice holding the identity attributes, then extra.
func (call *loggedCall) with(extra ...any) []any {
	attrs := make([]any, 0, len(call.identity)+len(extra)+8)
	attrs = append(attrs, call.identity...)
	return append(attrs, extra...)
}

func (call *loggedCall) fail(err error) {
	attrs := call.with(slog.Duration("duration", time.Since(call.start)))
	attrs = append(attrs, errorAttrs(err)...)
	call.logger.ErrorContext(call.ctx, call.name+" failed", attrs...)
}

func (call *loggedCall) completeSend(response *ai.ChatResponse) {
	attrs := call.with(slog.Duration("duration", time.Since(call.start)))
	attrs = append(attrs, usageAttrs(response.Usage)...)

	if call.level >= LogLevelStandard {
		if len(response.ToolCalls) > 0 {
			attrs = append(attrs, slog.Int("tool_calls", len(response.ToolCalls)))
		}
		if response.FinishReason != "" {
			attrs = append(attrs, slog.String("finish_reason", string(response.FinishReason)))
		}
	}
	if call.level >= LogLevelVerbose && response.Content != "" {
		attrs = append(attrs, slog.String("response_content", utils.TruncateString(response.Content, truncateLen)))
	}

	call.logger.InfoContext(call.ctx, call.name+" completed", attrs...)
}

// observe passes stream through, counting text chunks and tool calls, and
// logs the outcome once.
func (call *loggedCall) observe(stream *ai.ChatStream) *ai.ChatStream {
	return ai.NewChatStream(func(yield func(ai.StreamEvent, error) bool) {
		var chunks, toolCalls int

		for event, err := range stream.Iter() {
			if err != nil {
				call.fail(err)
				yield(event, err)
				return
			}

			switch event.Type {
			case ai.StreamEventTextDelta:
				chunks++
			case ai.StreamEventToolCallDelta:
				if event.ToolCall != nil && event.ToolCall.Name != "" {
					toolCalls++
				}
			}

			if !yield(event, nil) {
				call.logger.InfoContext(call.ctx, call.name+" abandoned",
					call.with(slog.Duration("duration", time.Since(call.start)), slog.Int("chunks", chunks))...,
				)
				return
			}

			if event.Type == ai.StreamEventFinish {
				call.completeStream(event, chunks, toolCalls)
				return
			}
		}

		call.completeStream(ai.StreamEvent{}, chunks, toolCalls)
	})
}

func (call *loggedCall) completeStream(finish ai.StreamEvent, chunks, toolCalls int) {
	attrs := call.with(slog.Duration("duration", time.Since(call.start)))
	attrs = append(attrs, usageAttrs(finish.Usage)...)

	if call.level >= LogLevelStandard {
		attrs = append(attrs, slog.Int("chunks", chunks))
		if toolCalls > 0 {
			attrs = append(attrs, slog.Int("tool_calls", toolCalls))
		}
		if finish.FinishReason != "" {
			attrs = append(attrs, slog.String("finish_reason", string(finish.FinishReason)))
		}
	}

	call.logger.InfoContext(call.ctx, call.name+" completed", attrs...)
}

func usageAttrs(usage *ai.Usage) []any {
	if usage == nil {
		return nil
	}
	return []any{
		slog.Int("prompt_tokens", usage.PromptTokens),
		slog.Int("completion_tokens", usage.CompletionTokens),
		slog.Int("total_tokens", usage.TotalTokens),
	}
}

// familyOf names the OCI family serving modelID, or "unknown".
func familyOf(modelID string) string {
	family, err := ocigenai.ResolveFamily(modelID)
	if err != nil {
		return "unknown"
	}
	return family.String()
}

func errorAttrs(err error) []any {
	attrs := []any{
		slog.String("error", err.Error()),
		slog.String("error_kind", errorKind(err)),
		slog.Bool("retryable", retry.IsRetryable(err)),
	}

	var statusErr retry.HTTPStatusCoder
	if errors.As(err, &statusErr) {
		attrs = append(attrs, slog.Int("status_code", statusErr.HTTPStatusCode()))
	}
	var timeoutErr *retry.TimeoutError
	if errors.As(err, &timeoutErr) {
		attrs = append(attrs, slog.Duration("timeout", timeoutErr.Timeout))
	}
	return attrs
}

func errorKind(err error) string {
	var (
		timeoutErr    *retry.TimeoutError
		statusErr     retry.HTTPStatusCoder
		unknownErr    *ocigenai.UnknownModelError
		validationErr *ocigenai.ValidationError
		batchErr      *ocigenai.BatchSizeExceededError
		parseErr      *ocigenai.ResponseParseError
		streamErr     *ocigenai.StreamError
	)

	switch {
	case errors.As(err, &timeoutErr):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &unknownErr):
		return "unknown_model"
	case errors.As(err, &validationErr), errors.As(err, &batchErr):
		return "invalid_request"
	case errors.As(err, &parseErr):
		return "parse"
	case errors.As(err, &streamErr):
		return "stream"
	case errors.Is(err, ocigenai.ErrStreamTruncated):
		return "truncated"
	case errors.As(err, &statusErr):
		return "http"
	default:
		return "other"
	}
}
