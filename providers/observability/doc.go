// Package observability defines the tracing and logging interfaces the OCI
// adapters report through. An active [Provider] and [Span] travel in a
// [context.Context] via [ContextWithObserver] and [ContextWithSpan]; adapters
// look them up with [ObserverFromContext] and [SpanFromContext] and stay
// silent when neither is present.
//
// semconv.go holds the attribute keys and span/event names.
package observability
