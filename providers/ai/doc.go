// Package ai defines the provider-agnostic request, response and stream types
// shared by provider implementations. Each provider's conversion layer maps
// these types to its own wire format.
//
// Request data flows through [ChatRequest] and responses come back as
// [ChatResponse]. Streaming responses are delivered as a [ChatStream] of
// [StreamEvent] values: text deltas, tool-call deltas and exactly one
// terminal finish event.
package ai
