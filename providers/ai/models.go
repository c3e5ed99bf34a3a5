package ai

import (
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
)

/*
	##### PROVIDER INPUT #####
*/

// ChatRequest is the provider-agnostic chat request. It is built fresh for
// every call and must not be mutated once handed to a provider.
type ChatRequest struct {
	Model            string            `json:"model"`                       // Model identifier, e.g. "cohere.command-r-plus"
	Messages         []Message         `json:"messages"`                    // Full conversation, system messages included
	GenerationConfig *GenerationConfig `json:"generation_config,omitempty"` // Optional sampling parameters
	Tools            []ToolDescription `json:"tools,omitempty"`             // Tool definitions if any
	ToolChoice       *ToolChoice       `json:"tool_choice,omitempty"`       // Optional tool selection policy
	Thinking         *ThinkingConfig   `json:"thinking,omitempty"`          // Extended reasoning, only for models that support it
	Stream           bool              `json:"stream,omitempty"`            // Set by StreamMessage implementations

	// ProviderOptions are raw fields merged into the provider's wire request
	// after the normalized fields, so they win on conflict.
	ProviderOptions map[string]any `json:"provider_options,omitempty"`
}

// GenerationConfig holds sampling parameters. Nil pointers are left to the
// provider default rather than sent as zero.
type GenerationConfig struct {
	MaxOutputTokens  *int     `json:"max_output_tokens,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`       // [0..2]
	TopP             *float64 `json:"top_p,omitempty"`             // [0..1]
	TopK             *int     `json:"top_k,omitempty"`             // Sample from the K most likely tokens
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"` // Penalize frequent tokens
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`  // Penalize tokens that already appeared
	StopSequences    []string `json:"stop_sequences,omitempty"`
	Seed             *int     `json:"seed,omitempty"` // Passed through, never generated
}

// ThinkingConfig requests extended reasoning.
type ThinkingConfig struct {
	Enabled     bool `json:"enabled"`
	TokenBudget *int `json:"token_budget,omitempty"`
}

type ToolDescription struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
}

// ReflectToolDescription builds a ToolDescription whose parameters schema is
// reflected from T. Struct field order is kept in the schema properties.
func ReflectToolDescription[T any](name, description string) ToolDescription {
	reflector := jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: true,
	}

	var zero T
	schema := reflector.Reflect(zero)
	schema.Version = ""

	return ToolDescription{
		Name:        name,
		Description: description,
		Parameters:  schema,
	}
}

// ToolChoiceMode selects how the model may use the supplied tools.
type ToolChoiceMode string

const (
	ToolChoiceAuto     ToolChoiceMode = "auto"     // Model decides
	ToolChoiceRequired ToolChoiceMode = "required" // Model must call some tool
	ToolChoiceNone     ToolChoiceMode = "none"     // Model must not call tools
	ToolChoiceFunction ToolChoiceMode = "function" // Model must call FunctionName
)

type ToolChoice struct {
	Mode         ToolChoiceMode `json:"mode"`
	FunctionName string         `json:"function_name,omitempty"` // Only with ToolChoiceFunction
}

// Message represents a single message in a conversation
type Message struct {
	Role    MessageRole   `json:"role"`
	Content []ContentPart `json:"content,omitempty"`

	// Tool calling fields
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // For role=assistant requesting tools
	ToolCallID string     `json:"tool_call_id,omitempty"` // For role=tool, links to the tool call being responded to
	Name       string     `json:"name,omitempty"`         // For role=tool, name of the tool that produced the output
}

// NewTextMessage returns a message with a single text part.
func NewTextMessage(role MessageRole, text string) Message {
	return Message{Role: role, Content: []ContentPart{TextPart(text)}}
}

// Text concatenates the message's text parts in order, ignoring images.
func (message Message) Text() string {
	if len(message.Content) == 1 {
		return message.Content[0].Text
	}

	var builder strings.Builder
	for _, part := range message.Content {
		if part.Type == ContentTypeText {
			builder.WriteString(part.Text)
		}
	}
	return builder.String()
}

// HasImages reports whether any content part is an image.
func (message Message) HasImages() bool {
	for _, part := range message.Content {
		if part.Type == ContentTypeImage {
			return true
		}
	}
	return false
}

// ContentType tags a ContentPart.
type ContentType string

const (
	ContentTypeText  ContentType = "text"
	ContentTypeImage ContentType = "image"
)

// ContentPart is one ordered piece of message content.
type ContentPart struct {
	Type  ContentType `json:"type"`
	Text  string      `json:"text,omitempty"`
	Image *ImageData  `json:"image,omitempty"`
}

func TextPart(text string) ContentPart {
	return ContentPart{Type: ContentTypeText, Text: text}
}

// ImagePart returns an inline image part from base64-encoded data.
func ImagePart(mimeType, base64Data string) ContentPart {
	return ContentPart{Type: ContentTypeImage, Image: &ImageData{MimeType: mimeType, Data: base64Data}}
}

// ImageData is an image either inline (MimeType + base64 Data) or by URI.
type ImageData struct {
	MimeType string `json:"mime_type,omitempty"`
	Data     string `json:"data,omitempty"` // base64, no data: prefix
	URI      string `json:"uri,omitempty"`
}

// DataURI returns the image as a data URI, or URI when no inline data is set.
func (image ImageData) DataURI() string {
	if image.Data == "" {
		return image.URI
	}
	mimeType := image.MimeType
	if mimeType == "" {
		mimeType = "image/png"
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, image.Data)
}

/*
	##### PROVIDER OUTPUT #####
*/

type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// ChatResponse is the normalized result of a chat call.
type ChatResponse struct {
	ID           string       `json:"id,omitempty"`
	Model        string       `json:"model"`
	Content      string       `json:"content"`
	ToolCalls    []ToolCall   `json:"tool_calls,omitempty"`
	FinishReason FinishReason `json:"finish_reason,omitempty"`
	Usage        *Usage       `json:"usage,omitempty"`

	// Raw holds the wire request and response bodies for diagnostics.
	Raw *RawExchange `json:"-"`
}

// RawExchange is the exact bytes sent and received for one call.
type RawExchange struct {
	Request  []byte
	Response []byte
}

// FinishReason is the normalized cause for generation stopping.
type FinishReason string

const (
	FinishReasonStop          FinishReason = "stop"
	FinishReasonLength        FinishReason = "length"
	FinishReasonContentFilter FinishReason = "content-filter"
	FinishReasonToolCalls     FinishReason = "tool-calls"
	FinishReasonError         FinishReason = "error"
	FinishReasonOther         FinishReason = "other"
)

// ToolCall represents a function/tool call request from the LLM
type ToolCall struct {
	ID       string           `json:"id,omitempty"` // Unique identifier for this tool call
	Type     string           `json:"type"`         // "function"
	Function ToolCallFunction `json:"function"`
}

type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON string
}

// MessageRole represents the role of a message; compatible with string
type MessageRole string

const (
	RoleSystem    MessageRole = "system"    // System instructions/configuration
	RoleUser      MessageRole = "user"      // End-user message
	RoleAssistant MessageRole = "assistant" // Model response
	RoleTool      MessageRole = "tool"      // Tool/function output
)

// Valid reports whether role is one of the four known roles.
func (role MessageRole) Valid() bool {
	switch role {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	default:
		return false
	}
}

/*
	##### EMBEDDINGS, RERANK, TRANSCRIPTION #####
*/

// EmbedRequest asks for one embedding vector per input.
type EmbedRequest struct {
	Model     string   `json:"model"`
	Inputs    []string `json:"inputs"`
	InputType string   `json:"input_type,omitempty"` // e.g. SEARCH_DOCUMENT, SEARCH_QUERY
	Truncate  string   `json:"truncate,omitempty"`   // NONE, START or END
}

// EmbedResponse holds vectors in input order.
type EmbedResponse struct {
	ID         string       `json:"id,omitempty"`
	Model      string       `json:"model"`
	Embeddings [][]float64  `json:"embeddings"`
	Usage      *Usage       `json:"usage,omitempty"`
	Raw        *RawExchange `json:"-"`
}

// RerankRequest scores Documents against Query.
type RerankRequest struct {
	Model           string   `json:"model"`
	Query           string   `json:"query"`
	Documents       []string `json:"documents"`
	TopN            *int     `json:"top_n,omitempty"`
	ReturnDocuments bool     `json:"return_documents,omitempty"`
}

// RerankResult is one scored document, Index pointing into the request.
type RerankResult struct {
	Index    int     `json:"index"`
	Score    float64 `json:"score"`
	Document string  `json:"document,omitempty"`
}

type RerankResponse struct {
	ID      string         `json:"id,omitempty"`
	Model   string         `json:"model"`
	Results []RerankResult `json:"results"`
	Raw     *RawExchange   `json:"-"`
}

// ObjectLocation addresses objects in an object storage bucket.
type ObjectLocation struct {
	Namespace string   `json:"namespace"`
	Bucket    string   `json:"bucket"`
	Objects   []string `json:"objects,omitempty"`
	Prefix    string   `json:"prefix,omitempty"`
}

// TranscriptionRequest creates an asynchronous speech-to-text job over audio
// files already uploaded to object storage.
type TranscriptionRequest struct {
	Model        string         `json:"model"` // e.g. WHISPER_MEDIUM, ORACLE
	LanguageCode string         `json:"language_code,omitempty"`
	DisplayName  string         `json:"display_name,omitempty"`
	Input        ObjectLocation `json:"input"`
	Output       ObjectLocation `json:"output"`
}

// TranscriptionJob is the created job as reported by the service.
type TranscriptionJob struct {
	ID              string       `json:"id"`
	DisplayName     string       `json:"display_name,omitempty"`
	LifecycleState  string       `json:"lifecycle_state"`
	PercentComplete int          `json:"percent_complete"`
	OutputPrefix    string       `json:"output_prefix,omitempty"`
	Raw             *RawExchange `json:"-"`
}
