// Package client is the thin orchestration layer over an [ai.Provider]. A
// [Client] fills request defaults (model, system prompt), threads chat calls
// through a middleware chain and exposes the provider's optional embedding,
// rerank and transcription capabilities when present.
//
// The primary entry point is [New], which accepts an [ai.Provider] and
// functional options such as [WithDefaultModel], [WithMiddleware] and
// [WithObserver]. A Client holds no conversation state; callers pass the full
// message history on every call.
package client
