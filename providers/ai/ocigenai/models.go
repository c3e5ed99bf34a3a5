package ocigenai

import (
	json "github.com/goccy/go-json"
	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// API format tags carried in chatRequest.apiFormat and chatResponse.apiFormat.
const (
	apiFormatGeneric  = "GENERIC"
	apiFormatCohere   = "COHERE"
	apiFormatCohereV2 = "COHEREV2"
)

// ServingType selects how the model is addressed.
type ServingType string

const (
	ServingOnDemand  ServingType = "ON_DEMAND"
	ServingDedicated ServingType = "DEDICATED"
)

/*
	##### REQUEST #####
*/

type servingMode struct {
	ServingType ServingType `json:"servingType"`
	ModelID     string      `json:"modelId,omitempty"`
	EndpointID  string      `json:"endpointId,omitempty"`
}

type chatDetails struct {
	CompartmentID string      `json:"compartmentId"`
	ServingMode   servingMode `json:"servingMode"`
	ChatRequest   any         `json:"chatRequest"`
}

type streamOptions struct {
	IsIncludeUsage bool `json:"isIncludeUsage"`
}

// samplingParams is embedded in both dialects; only the stop field differs.
type samplingParams struct {
	MaxTokens        *int     `json:"maxTokens,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"topP,omitempty"`
	TopK             *int     `json:"topK,omitempty"`
	FrequencyPenalty *float64 `json:"frequencyPenalty,omitempty"`
	PresencePenalty  *float64 `json:"presencePenalty,omitempty"`
	Seed             *int     `json:"seed,omitempty"`
}

type genericChatRequest struct {
	APIFormat  string             `json:"apiFormat"`
	Messages   []genericMessage   `json:"messages"`
	Tools      []genericTool      `json:"tools,omitempty"`
	ToolChoice *genericToolChoice `json:"toolChoice,omitempty"`
	samplingParams
	Stop          []string       `json:"stop,omitempty"`
	IsStream      bool           `json:"isStream,omitempty"`
	StreamOptions *streamOptions `json:"streamOptions,omitempty"`
}

type genericMessage struct {
	Role       string            `json:"role"`
	Content    []genericContent  `json:"content,omitempty"`
	ToolCallID string            `json:"toolCallId,omitempty"`
	ToolCalls  []genericToolCall `json:"toolCalls,omitempty"`
}

type genericContent struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"imageUrl,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type genericTool struct {
	Type        string             `json:"type"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
}

type genericToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

type genericToolCall struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type cohereChatRequest struct {
	APIFormat        string             `json:"apiFormat"`
	Message          string             `json:"message"`
	PreambleOverride string             `json:"preambleOverride,omitempty"`
	ChatHistory      []cohereMessage    `json:"chatHistory,omitempty"`
	Tools            []cohereTool       `json:"tools,omitempty"`
	ToolResults      []cohereToolResult `json:"toolResults,omitempty"`
	samplingParams
	StopSequences []string        `json:"stopSequences,omitempty"`
	IsStream      bool            `json:"isStream,omitempty"`
	StreamOptions *streamOptions  `json:"streamOptions,omitempty"`
	Thinking      *cohereThinking `json:"thinking,omitempty"`
}

type cohereMessage struct {
	Role        string             `json:"role"`
	Message     string             `json:"message,omitempty"`
	ToolCalls   []cohereToolCall   `json:"toolCalls,omitempty"`
	ToolResults []cohereToolResult `json:"toolResults,omitempty"`
}

type cohereToolCall struct {
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters"`
}

type cohereToolResult struct {
	Call    cohereToolCall   `json:"call"`
	Outputs []map[string]any `json:"outputs"`
}

type cohereTool struct {
	Name                 string                                          `json:"name"`
	Description          string                                          `json:"description"`
	ParameterDefinitions *orderedmap.OrderedMap[string, cohereParameter] `json:"parameterDefinitions,omitempty"`
}

type cohereParameter struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	IsRequired  bool   `json:"isRequired"`
}

type cohereThinking struct {
	Type        string `json:"type"`
	TokenBudget *int   `json:"tokenBudget,omitempty"`
}

/*
	##### RESPONSE #####
*/

type chatResult struct {
	ModelID      string          `json:"modelId"`
	ModelVersion string          `json:"modelVersion"`
	ChatResponse json.RawMessage `json:"chatResponse"`
}

type wireUsage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

type genericChatResponse struct {
	APIFormat string          `json:"apiFormat"`
	Choices   []genericChoice `json:"choices"`
	Usage     *wireUsage      `json:"usage"`
}

type genericChoice struct {
	Index        int            `json:"index"`
	Message      genericMessage `json:"message"`
	FinishReason string         `json:"finishReason"`
}

type cohereChatResponse struct {
	APIFormat    string           `json:"apiFormat"`
	Text         string           `json:"text"`
	Message      *cohereV2Message `json:"message"`
	ToolCalls    []cohereToolCall `json:"toolCalls"`
	FinishReason string           `json:"finishReason"`
	Usage        *wireUsage       `json:"usage"`
}

type cohereV2Message struct {
	Role    string           `json:"role"`
	Content []genericContent `json:"content"`
}

/*
	##### EMBED / RERANK / SPEECH / MODELS #####
*/

type embedTextDetails struct {
	Inputs        []string    `json:"inputs"`
	Truncate      string      `json:"truncate,omitempty"`
	InputType     string      `json:"inputType,omitempty"`
	ServingMode   servingMode `json:"servingMode"`
	CompartmentID string      `json:"compartmentId"`
}

type embedTextResult struct {
	ID           string      `json:"id"`
	Embeddings   [][]float64 `json:"embeddings"`
	ModelID      string      `json:"modelId"`
	ModelVersion string      `json:"modelVersion"`
	Usage        *wireUsage  `json:"usage"`
}

type rerankTextDetails struct {
	Input         string      `json:"input"`
	Documents     []string    `json:"documents"`
	TopN          *int        `json:"topN,omitempty"`
	IsEcho        bool        `json:"isEcho,omitempty"`
	ServingMode   servingMode `json:"servingMode"`
	CompartmentID string      `json:"compartmentId"`
}

type rerankTextResult struct {
	ID            string         `json:"id"`
	ModelID       string         `json:"modelId"`
	DocumentRanks []documentRank `json:"documentRanks"`
}

type documentRank struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevanceScore"`
	Document       *struct {
		Text string `json:"text"`
	} `json:"document"`
}

type transcriptionJobDetails struct {
	CompartmentID  string                 `json:"compartmentId"`
	DisplayName    string                 `json:"displayName,omitempty"`
	InputLocation  transcriptionInput     `json:"inputLocation"`
	OutputLocation transcriptionOutput    `json:"outputLocation"`
	ModelDetails   transcriptionModelInfo `json:"modelDetails"`
}

type transcriptionInput struct {
	LocationType    string           `json:"locationType"`
	ObjectLocations []objectLocation `json:"objectLocations"`
}

type objectLocation struct {
	NamespaceName string   `json:"namespaceName"`
	BucketName    string   `json:"bucketName"`
	ObjectNames   []string `json:"objectNames"`
}

type transcriptionOutput struct {
	NamespaceName string `json:"namespaceName"`
	BucketName    string `json:"bucketName"`
	Prefix        string `json:"prefix,omitempty"`
}

type transcriptionModelInfo struct {
	ModelType    string `json:"modelType"`
	LanguageCode string `json:"languageCode,omitempty"`
}

type transcriptionJobResult struct {
	ID              string              `json:"id"`
	DisplayName     string              `json:"displayName"`
	LifecycleState  string              `json:"lifecycleState"`
	PercentComplete int                 `json:"percentComplete"`
	OutputLocation  transcriptionOutput `json:"outputLocation"`
}

type modelCollection struct {
	Items []modelSummary `json:"items"`
}

type modelSummary struct {
	ID             string   `json:"id"`
	DisplayName    string   `json:"displayName"`
	Vendor         string   `json:"vendor"`
	Capabilities   []string `json:"capabilities"`
	LifecycleState string   `json:"lifecycleState"`
}
