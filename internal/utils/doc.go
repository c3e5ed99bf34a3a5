// Package utils provides shared low-level helpers for the OCI adapters: HTTP
// POST helpers for synchronous and streaming (SSE) calls that report non-2xx
// responses as [StatusError], an [SSEScanner] that yields whole frames, JSON
// repair for partially streamed tool-call arguments, and small pointer and
// string helpers.
package utils
