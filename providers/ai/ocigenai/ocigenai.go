package ocigenai

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/leofalp/ocigenai/core/retry"
	"github.com/leofalp/ocigenai/providers/ai"
	"github.com/leofalp/ocigenai/providers/observability"
)

const (
	providerName = "oci-genai"

	// DefaultMaxBatchSize is the item limit for embed and rerank calls.
	DefaultMaxBatchSize = 96
)

// Provider is the OCI Generative AI adapter. It holds no global state: the
// Invoker and all addressing come from the constructor, so providers with
// different configurations can be used concurrently.
type Provider struct {
	invoker        Invoker
	target         servingTarget
	retryPolicy    retry.Policy
	attemptTimeout time.Duration
	logger         *slog.Logger
	maxBatchSize   int
}

// Option configures a Provider.
type Option func(*Provider)

// WithCompartmentID sets the compartment sent with every request.
func WithCompartmentID(compartmentID string) Option {
	return func(provider *Provider) {
		provider.target.CompartmentID = compartmentID
	}
}

// WithServingType selects on-demand or dedicated serving.
func WithServingType(servingType ServingType) Option {
	return func(provider *Provider) {
		provider.target.ServingType = servingType
	}
}

// WithDedicatedEndpoint addresses a dedicated AI cluster endpoint. The model id
// in requests is still used for family resolution.
func WithDedicatedEndpoint(endpointID string) Option {
	return func(provider *Provider) {
		provider.target.ServingType = ServingDedicated
		provider.target.EndpointID = endpointID
	}
}

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(policy retry.Policy) Option {
	return func(provider *Provider) {
		provider.retryPolicy = policy
	}
}

// WithAttemptTimeout bounds each non-streaming attempt. Zero disables it.
func WithAttemptTimeout(timeout time.Duration) Option {
	return func(provider *Provider) {
		provider.attemptTimeout = timeout
	}
}

// WithLogger sets the logger used for retries and skipped stream frames.
func WithLogger(logger *slog.Logger) Option {
	return func(provider *Provider) {
		provider.logger = logger
	}
}

// WithMaxBatchSize overrides the embed and rerank item limit.
func WithMaxBatchSize(size int) Option {
	return func(provider *Provider) {
		provider.maxBatchSize = size
	}
}

// New returns a Provider sending requests through invoker.
func New(invoker Invoker, opts ...Option) *Provider {
	provider := &Provider{
		invoker:      invoker,
		target:       servingTarget{ServingType: ServingOnDemand},
		retryPolicy:  retry.DefaultPolicy(),
		logger:       slog.Default(),
		maxBatchSize: DefaultMaxBatchSize,
	}
	for _, opt := range opts {
		opt(provider)
	}
	if provider.logger == nil {
		provider.logger = slog.Default()
	}
	return provider
}

// SendMessage builds the wire request for the model's family, sends it with
// retry and parses the response.
func (provider *Provider) SendMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	request.Stream = false

	span, observer := provider.startRequest(ctx, request, false)

	family, err := ResolveFamily(request.Model)
	if err != nil {
		return nil, provider.fail(ctx, span, err)
	}
	if span != nil {
		span.SetAttributes(observability.String(observability.AttrLLMFamily, family.String()))
	}

	wire, err := buildChat(request, family, provider.target)
	if err != nil {
		return nil, provider.fail(ctx, span, err)
	}

	if err := wire.Encode(); err != nil {
		return nil, provider.fail(ctx, span, err)
	}

	payload, err := provider.invoke(ctx, wire)
	if err != nil {
		return nil, provider.fail(ctx, span, err)
	}

	response, err := parseChat(payload, family, request.Model)
	if err != nil {
		return nil, provider.fail(ctx, span, err)
	}

	response.Raw = &ai.RawExchange{Request: wire.Payload, Response: payload}

	if span != nil {
		span.AddEvent(observability.EventLLMRequestEnd)
		span.SetAttributes(observability.String(observability.AttrLLMFinishReason, string(response.FinishReason)))
		if response.Usage != nil {
			span.SetAttributes(
				observability.Int(observability.AttrLLMTokensPrompt, response.Usage.PromptTokens),
				observability.Int(observability.AttrLLMTokensCompletion, response.Usage.CompletionTokens),
				observability.Int(observability.AttrLLMTokensTotal, response.Usage.TotalTokens),
			)
		}
	}
	if observer != nil {
		observer.Debug(ctx, "OCI chat response parsed",
			observability.String(observability.AttrLLMModel, response.Model),
			observability.String(observability.AttrLLMFinishReason, string(response.FinishReason)),
			observability.Int(observability.AttrLLMTokensTotal, totalTokens(response.Usage)),
		)
	}

	return response, nil
}

// StreamMessage implements [ai.StreamProvider]. Opening the stream is retried
// like a normal call; once the first byte is read nothing is retried. The
// attempt timeout does not apply here: bound a stream with ctx.
func (provider *Provider) StreamMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
	request.Stream = true

	span, _ := provider.startRequest(ctx, request, true)

	family, err := ResolveFamily(request.Model)
	if err != nil {
		return nil, provider.fail(ctx, span, err)
	}

	wire, err := buildChat(request, family, provider.target)
	if err != nil {
		return nil, provider.fail(ctx, span, err)
	}

	if err := wire.Encode(); err != nil {
		return nil, provider.fail(ctx, span, err)
	}

	body, err := retry.Do(ctx, provider.policy(ctx), func(ctx context.Context) (io.ReadCloser, error) {
		return provider.invoker.InvokeStream(ctx, wire)
	})
	if err != nil {
		return nil, provider.fail(ctx, span, err)
	}

	return ai.NewChatStream(decodeStream(ctx, body, family, provider.logger)), nil
}

// IsStopMessage reports whether the model is done and no tool calls are pending.
func (provider *Provider) IsStopMessage(message *ai.ChatResponse) bool {
	if message == nil {
		return true
	}
	if len(message.ToolCalls) > 0 {
		return false
	}
	return message.FinishReason != ai.FinishReasonToolCalls
}

// invoke runs one non-streaming call under the retry policy, each attempt
// bounded by the attempt timeout.
func (provider *Provider) invoke(ctx context.Context, wire WireRequest) ([]byte, error) {
	return retry.Do(ctx, provider.policy(ctx), func(ctx context.Context) ([]byte, error) {
		return retry.WithTimeout(ctx, provider.attemptTimeout, string(wire.Operation), func(ctx context.Context) ([]byte, error) {
			return provider.invoker.Invoke(ctx, wire)
		})
	})
}

// policy returns the configured policy with retry logging bound to ctx.
func (provider *Provider) policy(ctx context.Context) retry.Policy {
	policy := provider.retryPolicy
	userHook := policy.OnRetry
	span := observability.SpanFromContext(ctx)

	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		provider.logger.WarnContext(ctx, "retrying OCI request",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)
		if span != nil {
			span.AddEvent(observability.EventLLMRetry,
				observability.Int(observability.AttrLLMRetryAttempt, attempt),
				observability.Error(err),
			)
		}
		if userHook != nil {
			userHook(attempt, err, delay)
		}
	}
	return policy
}

func (provider *Provider) startRequest(ctx context.Context, request ai.ChatRequest, streaming bool) (observability.Span, observability.Provider) {
	span := observability.SpanFromContext(ctx)
	observer := observability.ObserverFromContext(ctx)

	if span != nil {
		span.AddEvent(observability.EventLLMRequestStart)
		span.SetAttributes(
			observability.String(observability.AttrLLMProvider, providerName),
			observability.String(observability.AttrLLMModel, request.Model),
			observability.Bool(observability.AttrLLMStreaming, streaming),
		)
	}

	if observer != nil {
		observer.Trace(ctx, "OCI provider preparing chat request",
			observability.String(observability.AttrLLMProvider, providerName),
			observability.String(observability.AttrLLMModel, request.Model),
			observability.Bool(observability.AttrLLMStreaming, streaming),
			observability.Int(observability.AttrRequestMessagesCount, len(request.Messages)),
			observability.Int(observability.AttrRequestToolsCount, len(request.Tools)),
		)
	}

	return span, observer
}

// fail records err on the span and returns it unchanged.
func (provider *Provider) fail(ctx context.Context, span observability.Span, err error) error {
	if span != nil {
		span.RecordError(err)
	}
	if observer := observability.ObserverFromContext(ctx); observer != nil {
		observer.Debug(ctx, "OCI request failed", observability.Error(err))
	}
	return err
}

func totalTokens(usage *ai.Usage) int {
	if usage == nil {
		return 0
	}
	return usage.TotalTokens
}
