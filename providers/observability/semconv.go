package observability

// Attribute keys, span names and event names shared by the adapters.

// --- LLM Provider Attributes ---

const (
	AttrLLMProvider     = "llm.provider"
	AttrLLMModel        = "llm.model"
	AttrLLMFamily       = "llm.family"
	AttrLLMEndpoint     = "llm.endpoint"
	AttrLLMOperation    = "llm.operation"
	AttrLLMStreaming    = "llm.streaming"
	AttrLLMResponseID   = "llm.response.id"
	AttrLLMFinishReason = "llm.finish_reason"
	AttrLLMRetryAttempt = "llm.retry.attempt"
)

// --- Token Usage Attributes ---

const (
	AttrLLMTokensPrompt     = "llm.tokens.prompt"     // #nosec G101 -- LLM tokens, not credentials
	AttrLLMTokensCompletion = "llm.tokens.completion" // #nosec G101 -- LLM tokens, not credentials
	AttrLLMTokensTotal      = "llm.tokens.total"      // #nosec G101 -- LLM tokens, not credentials
)

// --- Request Attributes ---

const (
	AttrRequestMessagesCount = "request.messages_count"
	AttrRequestToolsCount    = "request.tools_count"
	AttrRequestBatchSize     = "request.batch_size"
)

// --- HTTP Attributes ---

const (
	AttrHTTPMethod           = "http.method"
	AttrHTTPStatusCode       = "http.status_code"
	AttrHTTPURL              = "http.url"
	AttrHTTPRequestBodySize  = "http.request.body.size"
	AttrHTTPResponseBodySize = "http.response.body.size"
	AttrOPCRequestID         = "oci.opc_request_id"
)

// --- General Attributes ---

const (
	AttrError             = "error"
	AttrStatus            = "status"
	AttrStatusDescription = "status_description"
	AttrDuration          = "duration"
	AttrClientToolCalls   = "client.tool_calls"
)

// --- Span and Event Names ---

const (
	SpanLLMRequest   = "llm.request"
	SpanClientSend   = "client.send"
	SpanClientStream = "client.stream"

	EventLLMRequestStart = "llm.request.start"
	EventLLMRequestEnd   = "llm.request.end"
	EventLLMRetry        = "llm.request.retry"
	EventStreamFrameSkip = "llm.stream.frame_skipped"
	EventTokensReceived  = "llm.tokens.received" // #nosec G101 -- LLM tokens, not credentials
)
