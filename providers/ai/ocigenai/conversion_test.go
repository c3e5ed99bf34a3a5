package ocigenai

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/leofalp/ocigenai/internal/utils"
	"github.com/leofalp/ocigenai/providers/ai"
)

var onDemand = servingTarget{CompartmentID: "ocid1.compartment.oc1..test", ServingType: ServingOnDemand}

type weatherArgs struct {
	City  string   `json:"city" jsonschema:"description=City name"`
	Units string   `json:"units,omitempty" jsonschema:"enum=celsius,enum=fahrenheit"`
	Days  int      `json:"days"`
	Tags  []string `json:"tags,omitempty"`
}

func weatherTool() ai.ToolDescription {
	return ai.ReflectToolDescription[weatherArgs]("get_weather", "Current weather for a city")
}

// marshalChat builds and encodes a chat request, failing the test on error.
func marshalChat(t *testing.T, request ai.ChatRequest, family ModelFamily) gjson.Result {
	t.Helper()

	wire, err := buildChat(request, family, onDemand)
	require.NoError(t, err)

	payload, err := wire.Marshal()
	require.NoError(t, err)
	require.True(t, gjson.ValidBytes(payload), string(payload))
	return gjson.ParseBytes(payload)
}

func conversation() []ai.Message {
	return []ai.Message{
		ai.NewTextMessage(ai.RoleSystem, "Be brief."),
		ai.NewTextMessage(ai.RoleUser, "Hi"),
		ai.NewTextMessage(ai.RoleAssistant, "Hello!"),
		ai.NewTextMessage(ai.RoleUser, "What is OCI?"),
	}
}

// TestBuildChat_GenericShape checks the message-list dialect used by GENERIC
// models.
func TestBuildChat_GenericShape(t *testing.T) {
	request := ai.ChatRequest{
		Model:    "openai.gpt-4.1",
		Messages: conversation(),
		GenerationConfig: &ai.GenerationConfig{
			MaxOutputTokens: utils.Ptr(256),
			Temperature:     utils.Ptr(0.2),
			TopP:            utils.Ptr(0.9),
			StopSequences:   []string{"END"},
		},
		Tools:      []ai.ToolDescription{weatherTool()},
		ToolChoice: &ai.ToolChoice{Mode: ai.ToolChoiceFunction, FunctionName: "get_weather"},
	}

	body := marshalChat(t, request, FamilyGeneric)

	assert.Equal(t, "ocid1.compartment.oc1..test", body.Get("compartmentId").String())
	assert.Equal(t, "ON_DEMAND", body.Get("servingMode.servingType").String())
	assert.Equal(t, "openai.gpt-4.1", body.Get("servingMode.modelId").String())

	chat := body.Get("chatRequest")
	assert.Equal(t, "GENERIC", chat.Get("apiFormat").String())
	assert.False(t, chat.Get("message").Exists())
	assert.False(t, chat.Get("chatHistory").Exists())

	messages := chat.Get("messages").Array()
	require.Len(t, messages, 4)
	assert.Equal(t, "SYSTEM", messages[0].Get("role").String())
	assert.Equal(t, "USER", messages[1].Get("role").String())
	assert.Equal(t, "ASSISTANT", messages[2].Get("role").String())
	assert.Equal(t, "TEXT", messages[3].Get("content.0.type").String())
	assert.Equal(t, "What is OCI?", messages[3].Get("content.0.text").String())

	assert.Equal(t, int64(256), chat.Get("maxTokens").Int())
	assert.InDelta(t, 0.2, chat.Get("temperature").Float(), 1e-9)
	assert.InDelta(t, 0.9, chat.Get("topP").Float(), 1e-9)
	assert.False(t, chat.Get("topK").Exists())
	assert.Equal(t, "END", chat.Get("stop.0").String())

	assert.Equal(t, "FUNCTION", chat.Get("tools.0.type").String())
	assert.Equal(t, "get_weather", chat.Get("tools.0.name").String())
	assert.Equal(t, "object", chat.Get("tools.0.parameters.type").String())
	assert.Equal(t, "FUNCTION", chat.Get("toolChoice.type").String())
	assert.Equal(t, "get_weather", chat.Get("toolChoice.name").String())

	assert.False(t, chat.Get("isStream").Exists())
	assert.False(t, chat.Get("streamOptions").Exists())
}

func TestBuildChat_GenericStreamAndImages(t *testing.T) {
	request := ai.ChatRequest{
		Model: "meta.llama-3.2-90b-vision-instruct",
		Messages: []ai.Message{{
			Role:    ai.RoleUser,
			Content: []ai.ContentPart{ai.TextPart("What is this?"), ai.ImagePart("image/jpeg", "AAAA")},
		}},
		Stream: true,
	}

	chat := marshalChat(t, request, FamilyLlama).Get("chatRequest")

	assert.Equal(t, "GENERIC", chat.Get("apiFormat").String())
	assert.True(t, chat.Get("isStream").Bool())
	assert.True(t, chat.Get("streamOptions.isIncludeUsage").Bool())
	assert.Equal(t, "IMAGE", chat.Get("messages.0.content.1.type").String())
	assert.Equal(t, "data:image/jpeg;base64,AAAA", chat.Get("messages.0.content.1.imageUrl.url").String())
}

// TestBuildChat_GenericToolRoundTrip checks that assistant tool calls and tool
// results keep their ids on the wire.
func TestBuildChat_GenericToolRoundTrip(t *testing.T) {
	request := ai.ChatRequest{
		Model: "xai.grok-4",
		Messages: []ai.Message{
			ai.NewTextMessage(ai.RoleUser, "Weather in Rome?"),
			{
				Role: ai.RoleAssistant,
				ToolCalls: []ai.ToolCall{{
					ID:       "call_1",
					Type:     "function",
					Function: ai.ToolCallFunction{Name: "get_weather", Arguments: `{"city":"Rome"}`},
				}},
			},
			{Role: ai.RoleTool, ToolCallID: "call_1", Content: []ai.ContentPart{ai.TextPart(`{"temp":21}`)}},
		},
		Tools: []ai.ToolDescription{weatherTool()},
	}

	messages := marshalChat(t, request, FamilyGeneric).Get("chatRequest.messages").Array()
	require.Len(t, messages, 3)

	assert.Equal(t, "call_1", messages[1].Get("toolCalls.0.id").String())
	assert.Equal(t, "FUNCTION", messages[1].Get("toolCalls.0.type").String())
	assert.Equal(t, `{"city":"Rome"}`, messages[1].Get("toolCalls.0.arguments").String())
	assert.Equal(t, "TOOL", messages[2].Get("role").String())
	assert.Equal(t, "call_1", messages[2].Get("toolCallId").String())
}

// TestBuildChat_LlamaOmitsToolChoice verifies LLAMA requests never carry tool
// fields.
func TestBuildChat_LlamaOmitsToolChoice(t *testing.T) {
	request := ai.ChatRequest{
		Model:      "meta.llama-3.3-70b-instruct",
		Messages:   []ai.Message{ai.NewTextMessage(ai.RoleUser, "Hi")},
		ToolChoice: &ai.ToolChoice{Mode: ai.ToolChoiceAuto},
	}

	chat := marshalChat(t, request, FamilyLlama).Get("chatRequest")

	assert.False(t, chat.Get("tools").Exists())
	assert.False(t, chat.Get("toolChoice").Exists())
}

// TestBuildChat_CohereShape checks the flattened single-message dialect.
func TestBuildChat_CohereShape(t *testing.T) {
	request := ai.ChatRequest{
		Model:    "cohere.command-r-plus-08-2024",
		Messages: conversation(),
		GenerationConfig: &ai.GenerationConfig{
			TopK:          utils.Ptr(40),
			StopSequences: []string{"###"},
		},
	}

	chat := marshalChat(t, request, FamilyCohereV1).Get("chatRequest")

	assert.Equal(t, "COHERE", chat.Get("apiFormat").String())
	assert.False(t, chat.Get("messages").Exists())
	assert.Equal(t, "What is OCI?", chat.Get("message").String())
	assert.Equal(t, "Be brief.", chat.Get("preambleOverride").String())

	history := chat.Get("chatHistory").Array()
	require.Len(t, history, 2)
	assert.Equal(t, "USER", history[0].Get("role").String())
	assert.Equal(t, "Hi", history[0].Get("message").String())
	assert.Equal(t, "CHATBOT", history[1].Get("role").String())
	assert.Equal(t, "Hello!", history[1].Get("message").String())

	assert.Equal(t, int64(40), chat.Get("topK").Int())
	assert.Equal(t, "###", chat.Get("stopSequences.0").String())
	assert.False(t, chat.Get("stop").Exists())
	assert.False(t, chat.Get("thinking").Exists())
}

func TestBuildChat_CohereSingleTurn(t *testing.T) {
	request := ai.ChatRequest{
		Model:    "cohere.command-r-08-2024",
		Messages: []ai.Message{ai.NewTextMessage(ai.RoleUser, "Hello")},
	}

	chat := marshalChat(t, request, FamilyCohereV1).Get("chatRequest")

	assert.Equal(t, "Hello", chat.Get("message").String())
	assert.False(t, chat.Get("chatHistory").Exists())
	assert.False(t, chat.Get("preambleOverride").Exists())
}

// TestBuildChat_CohereTools checks parameter definitions keep declaration order
// and carry Cohere type names.
func TestBuildChat_CohereTools(t *testing.T) {
	request := ai.ChatRequest{
		Model:    "cohere.command-r-plus-08-2024",
		Messages: []ai.Message{ai.NewTextMessage(ai.RoleUser, "Weather?")},
		Tools:    []ai.ToolDescription{weatherTool()},
	}

	wire, err := buildChat(request, FamilyCohereV1, onDemand)
	require.NoError(t, err)
	payload, err := wire.Marshal()
	require.NoError(t, err)

	definitions := gjson.GetBytes(payload, "chatRequest.tools.0.parameterDefinitions")
	require.True(t, definitions.IsObject())

	var keys []string
	definitions.ForEach(func(key, _ gjson.Result) bool {
		keys = append(keys, key.String())
		return true
	})
	assert.Equal(t, []string{"city", "units", "days", "tags"}, keys)

	assert.Equal(t, "str", definitions.Get("city.type").String())
	assert.Equal(t, "City name", definitions.Get("city.description").String())
	assert.True(t, definitions.Get("city.isRequired").Bool())
	assert.False(t, definitions.Get("units.isRequired").Bool())
	assert.Equal(t, "int", definitions.Get("days.type").String())
	assert.Equal(t, "List[str]", definitions.Get("tags.type").String())
}

// TestBuildChat_CohereToolResults checks that tool outputs after the last user
// turn are sent as toolResults linked to their call.
func TestBuildChat_CohereToolResults(t *testing.T) {
	request := ai.ChatRequest{
		Model: "cohere.command-a-03-2025",
		Messages: []ai.Message{
			ai.NewTextMessage(ai.RoleUser, "Weather in Rome?"),
			{
				Role: ai.RoleAssistant,
				ToolCalls: []ai.ToolCall{{
					ID:       "call_1",
					Function: ai.ToolCallFunction{Name: "get_weather", Arguments: `{"city":"Rome"}`},
				}},
			},
			{Role: ai.RoleTool, ToolCallID: "call_1", Content: []ai.ContentPart{ai.TextPart(`{"temp":21}`)}},
			{Role: ai.RoleTool, ToolCallID: "call_1", Content: []ai.ContentPart{ai.TextPart("sunny")}},
		},
		Tools: []ai.ToolDescription{weatherTool()},
	}

	chat := marshalChat(t, request, FamilyCohereV2).Get("chatRequest")

	assert.Equal(t, "COHEREV2", chat.Get("apiFormat").String())
	assert.Equal(t, "Weather in Rome?", chat.Get("message").String())

	history := chat.Get("chatHistory").Array()
	require.Len(t, history, 1)
	assert.Equal(t, "CHATBOT", history[0].Get("role").String())
	assert.Equal(t, "get_weather", history[0].Get("toolCalls.0.name").String())
	assert.Equal(t, "Rome", history[0].Get("toolCalls.0.parameters.city").String())

	results := chat.Get("toolResults").Array()
	require.Len(t, results, 2)
	assert.Equal(t, "get_weather", results[0].Get("call.name").String())
	assert.Equal(t, int64(21), results[0].Get("outputs.0.temp").Int())
	assert.Equal(t, "sunny", results[1].Get("outputs.0.result").String())
}

func TestToolResultToCohere_Outputs(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []map[string]any
	}{
		{name: "object", content: `{"a":1}`, want: []map[string]any{{"a": float64(1)}}},
		{name: "array of objects", content: `[{"a":1},{"b":2}]`, want: []map[string]any{{"a": float64(1)}, {"b": float64(2)}}},
		{name: "mixed array", content: `[{"a":1},2]`, want: []map[string]any{{"result": `[{"a":1},2]`}}},
		{name: "plain text", content: "done", want: []map[string]any{{"result": "done"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			message := ai.Message{Role: ai.RoleTool, Name: "lookup", Content: []ai.ContentPart{ai.TextPart(tt.content)}}
			result := toolResultToCohere(message, nil)

			assert.Equal(t, "lookup", result.Call.Name)
			assert.Equal(t, tt.want, result.Outputs)
		})
	}
}

func TestBuildChat_CohereV2Thinking(t *testing.T) {
	request := ai.ChatRequest{
		Model:    "cohere.command-a-reasoning-08-2025",
		Messages: []ai.Message{ai.NewTextMessage(ai.RoleUser, "Think hard")},
		Thinking: &ai.ThinkingConfig{Enabled: true, TokenBudget: utils.Ptr(1024)},
	}

	chat := marshalChat(t, request, FamilyCohereV2).Get("chatRequest")

	assert.Equal(t, "ENABLED", chat.Get("thinking.type").String())
	assert.Equal(t, int64(1024), chat.Get("thinking.tokenBudget").Int())

	request.Thinking = &ai.ThinkingConfig{Enabled: false}
	chat = marshalChat(t, request, FamilyCohereV2).Get("chatRequest")

	assert.Equal(t, "DISABLED", chat.Get("thinking.type").String())
	assert.False(t, chat.Get("thinking.tokenBudget").Exists())
}

// TestBuildChat_ValidationErrors verifies requests the family cannot express
// fail before anything is sent.
func TestBuildChat_ValidationErrors(t *testing.T) {
	user := []ai.Message{ai.NewTextMessage(ai.RoleUser, "Hi")}
	image := []ai.Message{{Role: ai.RoleUser, Content: []ai.ContentPart{ai.ImagePart("image/png", "AAAA")}}}

	tests := []struct {
		name    string
		request ai.ChatRequest
		family  ModelFamily
		field   string
	}{
		{
			name:    "no messages",
			request: ai.ChatRequest{Model: "openai.gpt-4.1"},
			family:  FamilyGeneric,
			field:   "messages",
		},
		{
			name:    "unknown role",
			request: ai.ChatRequest{Model: "openai.gpt-4.1", Messages: []ai.Message{ai.NewTextMessage("narrator", "Once")}},
			family:  FamilyGeneric,
			field:   "messages[0].role",
		},
		{
			name:    "temperature too high",
			request: ai.ChatRequest{Model: "openai.gpt-4.1", Messages: user, GenerationConfig: &ai.GenerationConfig{Temperature: utils.Ptr(2.5)}},
			family:  FamilyGeneric,
			field:   "temperature",
		},
		{
			name:    "topP too high",
			request: ai.ChatRequest{Model: "openai.gpt-4.1", Messages: user, GenerationConfig: &ai.GenerationConfig{TopP: utils.Ptr(1.5)}},
			family:  FamilyGeneric,
			field:   "topP",
		},
		{
			name:    "zero max tokens",
			request: ai.ChatRequest{Model: "openai.gpt-4.1", Messages: user, GenerationConfig: &ai.GenerationConfig{MaxOutputTokens: utils.Ptr(0)}},
			family:  FamilyGeneric,
			field:   "maxTokens",
		},
		{
			name:    "tools on llama",
			request: ai.ChatRequest{Model: "meta.llama-3.3-70b-instruct", Messages: user, Tools: []ai.ToolDescription{weatherTool()}},
			family:  FamilyLlama,
			field:   "tools",
		},
		{
			name:    "unnamed tool",
			request: ai.ChatRequest{Model: "openai.gpt-4.1", Messages: user, Tools: []ai.ToolDescription{{Description: "nameless"}}},
			family:  FamilyGeneric,
			field:   "tools[0].name",
		},
		{
			name:    "function choice without name",
			request: ai.ChatRequest{Model: "openai.gpt-4.1", Messages: user, ToolChoice: &ai.ToolChoice{Mode: ai.ToolChoiceFunction}},
			family:  FamilyGeneric,
			field:   "toolChoice.functionName",
		},
		{
			name:    "image on cohere",
			request: ai.ChatRequest{Model: "cohere.command-a-03-2025", Messages: image},
			family:  FamilyCohereV2,
			field:   "messages",
		},
		{
			name:    "image on text-only model",
			request: ai.ChatRequest{Model: "meta.llama-3.3-70b-instruct", Messages: image},
			family:  FamilyLlama,
			field:   "messages",
		},
		{
			name:    "thinking on generic",
			request: ai.ChatRequest{Model: "openai.gpt-4.1", Messages: user, Thinking: &ai.ThinkingConfig{Enabled: true}},
			family:  FamilyGeneric,
			field:   "thinking",
		},
		{
			name:    "thinking on cohere v1",
			request: ai.ChatRequest{Model: "cohere.command-r-08-2024", Messages: user, Thinking: &ai.ThinkingConfig{Enabled: true}},
			family:  FamilyCohereV1,
			field:   "thinking",
		},
		{
			name:    "cohere without user turn",
			request: ai.ChatRequest{Model: "cohere.command-r-08-2024", Messages: []ai.Message{ai.NewTextMessage(ai.RoleSystem, "Be brief.")}},
			family:  FamilyCohereV1,
			field:   "messages",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildChat(tt.request, tt.family, onDemand)

			var validation *ValidationError
			require.ErrorAs(t, err, &validation)
			assert.Equal(t, tt.field, validation.Field)
		})
	}
}

// TestBuildChat_Deterministic verifies two builds of the same request encode
// to identical bytes.
func TestBuildChat_Deterministic(t *testing.T) {
	request := ai.ChatRequest{
		Model:           "cohere.command-r-plus-08-2024",
		Messages:        conversation(),
		Tools:           []ai.ToolDescription{weatherTool()},
		ProviderOptions: map[string]any{"isEcho": true, "seed": 7, "documents": []string{"a"}},
	}

	first, err := buildChat(request, FamilyCohereV1, onDemand)
	require.NoError(t, err)
	second, err := buildChat(request, FamilyCohereV1, onDemand)
	require.NoError(t, err)

	firstPayload, err := first.Marshal()
	require.NoError(t, err)
	secondPayload, err := second.Marshal()
	require.NoError(t, err)

	assert.Equal(t, string(firstPayload), string(secondPayload))
}

// TestBuildChat_ProviderOptions verifies pass-through options land inside the
// chatRequest object without disturbing the typed fields.
func TestBuildChat_ProviderOptions(t *testing.T) {
	request := ai.ChatRequest{
		Model:           "cohere.command-r-08-2024",
		Messages:        []ai.Message{ai.NewTextMessage(ai.RoleUser, "Hi")},
		ProviderOptions: map[string]any{"isSearchQueriesOnly": true, "citationQuality": "FAST"},
	}

	body := marshalChat(t, request, FamilyCohereV1)

	assert.True(t, body.Get("chatRequest.isSearchQueriesOnly").Bool())
	assert.Equal(t, "FAST", body.Get("chatRequest.citationQuality").String())
	assert.Equal(t, "Hi", body.Get("chatRequest.message").String())
	assert.False(t, body.Get("isSearchQueriesOnly").Exists())

	// The caller's map is not shared with the wire request.
	wire, err := buildChat(request, FamilyCohereV1, onDemand)
	require.NoError(t, err)
	wire.Overrides["extra"] = 1
	assert.NotContains(t, request.ProviderOptions, "extra")
}

func TestBuildChat_DedicatedServing(t *testing.T) {
	target := servingTarget{CompartmentID: "ocid1.compartment.oc1..test", ServingType: ServingDedicated, EndpointID: "ocid1.generativeaiendpoint.oc1..abc"}
	request := ai.ChatRequest{Model: "meta.llama-3.3-70b-instruct", Messages: []ai.Message{ai.NewTextMessage(ai.RoleUser, "Hi")}}

	wire, err := buildChat(request, FamilyLlama, target)
	require.NoError(t, err)
	payload, err := wire.Marshal()
	require.NoError(t, err)

	assert.Equal(t, "DEDICATED", gjson.GetBytes(payload, "servingMode.servingType").String())
	assert.Equal(t, "ocid1.generativeaiendpoint.oc1..abc", gjson.GetBytes(payload, "servingMode.endpointId").String())
	assert.False(t, gjson.GetBytes(payload, "servingMode.modelId").Exists())
}

func TestCohereType(t *testing.T) {
	request := ai.ChatRequest{
		Model:    "cohere.command-r-08-2024",
		Messages: []ai.Message{ai.NewTextMessage(ai.RoleUser, "Hi")},
		Tools: []ai.ToolDescription{ai.ReflectToolDescription[struct {
			Ratio   float64        `json:"ratio"`
			Enabled bool           `json:"enabled"`
			Extra   map[string]any `json:"extra"`
			Matrix  [][]int        `json:"matrix"`
		}]("typed", "")},
	}

	definitions := marshalChat(t, request, FamilyCohereV1).Get("chatRequest.tools.0.parameterDefinitions")

	assert.Equal(t, "float", definitions.Get("ratio.type").String())
	assert.Equal(t, "bool", definitions.Get("enabled.type").String())
	assert.Equal(t, "dict", definitions.Get("extra.type").String())
	assert.Equal(t, "list", definitions.Get("matrix.type").String())
}

/*
	##### RESPONSE #####
*/

func TestParseChat_Generic(t *testing.T) {
	payload := []byte(`{
		"modelId": "openai.gpt-4.1",
		"modelVersion": "1.0",
		"chatResponse": {
			"apiFormat": "GENERIC",
			"choices": [{
				"index": 0,
				"message": {
					"role": "ASSISTANT",
					"content": [{"type": "TEXT", "text": "Hello"}, {"type": "TEXT", "text": " world"}],
					"toolCalls": [{"id": "call_9", "type": "FUNCTION", "name": "get_weather", "arguments": "{\"city\":\"Rome\"}"}]
				},
				"finishReason": "tool_calls"
			}],
			"usage": {"promptTokens": 12, "completionTokens": 3, "totalTokens": 15}
		}
	}`)

	response, err := parseChat(payload, FamilyGeneric, "request-model")
	require.NoError(t, err)

	assert.Equal(t, "openai.gpt-4.1", response.Model)
	assert.Equal(t, "Hello world", response.Content)
	assert.Equal(t, ai.FinishReasonToolCalls, response.FinishReason)
	require.Len(t, response.ToolCalls, 1)
	assert.Equal(t, "call_9", response.ToolCalls[0].ID)
	assert.Equal(t, "get_weather", response.ToolCalls[0].Function.Name)
	assert.JSONEq(t, `{"city":"Rome"}`, response.ToolCalls[0].Function.Arguments)
	assert.Equal(t, &ai.Usage{PromptTokens: 12, CompletionTokens: 3, TotalTokens: 15}, response.Usage)
}

func TestParseChat_GenericEmptyChoices(t *testing.T) {
	payload := []byte(`{"chatResponse": {"apiFormat": "GENERIC", "choices": []}}`)

	response, err := parseChat(payload, FamilyLlama, "meta.llama-3.3-70b-instruct")
	require.NoError(t, err)

	assert.Equal(t, "meta.llama-3.3-70b-instruct", response.Model)
	assert.Empty(t, response.Content)
	assert.Equal(t, ai.FinishReasonOther, response.FinishReason)
	assert.Nil(t, response.Usage)
}

// TestParseChat_GenericToolCallWithoutID verifies an id is generated so the
// call can be answered.
func TestParseChat_GenericToolCallWithoutID(t *testing.T) {
	payload := []byte(`{"chatResponse": {"choices": [{"message": {"toolCalls": [{"name": "f", "arguments": "{}"}]}, "finishReason": "TOOL_CALLS"}]}}`)

	response, err := parseChat(payload, FamilyGeneric, "openai.gpt-4.1")
	require.NoError(t, err)

	require.Len(t, response.ToolCalls, 1)
	assert.NotEmpty(t, response.ToolCalls[0].ID)
}

func TestParseChat_Cohere(t *testing.T) {
	payload := []byte(`{
		"modelId": "cohere.command-r-plus-08-2024",
		"chatResponse": {
			"apiFormat": "COHERE",
			"text": "It is sunny.",
			"toolCalls": [{"name": "get_weather", "parameters": {"city": "Rome"}}, {"name": "now"}],
			"finishReason": "COMPLETE",
			"usage": {"promptTokens": 7, "completionTokens": 4}
		}
	}`)

	response, err := parseChat(payload, FamilyCohereV1, "")
	require.NoError(t, err)

	assert.Equal(t, "It is sunny.", response.Content)
	assert.Equal(t, ai.FinishReasonStop, response.FinishReason)
	assert.Equal(t, &ai.Usage{PromptTokens: 7, CompletionTokens: 4, TotalTokens: 11}, response.Usage)

	require.Len(t, response.ToolCalls, 2)
	assert.NotEmpty(t, response.ToolCalls[0].ID)
	assert.NotEqual(t, response.ToolCalls[0].ID, response.ToolCalls[1].ID)
	assert.JSONEq(t, `{"city":"Rome"}`, response.ToolCalls[0].Function.Arguments)
	assert.Equal(t, "{}", response.ToolCalls[1].Function.Arguments)
}

func TestParseChat_CohereV2MessageContent(t *testing.T) {
	payload := []byte(`{"chatResponse": {"apiFormat": "COHEREV2", "message": {"role": "ASSISTANT", "content": [{"type": "TEXT", "text": "From blocks"}]}, "finishReason": "MAX_TOKENS"}}`)

	response, err := parseChat(payload, FamilyCohereV2, "cohere.command-a-03-2025")
	require.NoError(t, err)

	assert.Equal(t, "From blocks", response.Content)
	assert.Equal(t, ai.FinishReasonLength, response.FinishReason)
}

// TestParseChat_Errors verifies that shape mismatches surface as
// ResponseParseError carrying the offending payload.
func TestParseChat_Errors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		family  ModelFamily
	}{
		{name: "invalid json", payload: `{"chatResponse": `, family: FamilyGeneric},
		{name: "missing chatResponse", payload: `{"modelId": "x"}`, family: FamilyGeneric},
		{name: "null chatResponse", payload: `{"chatResponse": null}`, family: FamilyCohereV1},
		{name: "cohere payload for generic", payload: `{"chatResponse": {"apiFormat": "COHERE", "text": "hi"}}`, family: FamilyGeneric},
		{name: "generic payload for cohere", payload: `{"chatResponse": {"apiFormat": "GENERIC", "choices": []}}`, family: FamilyCohereV1},
		{name: "v1 payload for v2", payload: `{"chatResponse": {"apiFormat": "COHERE", "text": "hi"}}`, family: FamilyCohereV2},
		{name: "wrong choices type", payload: `{"chatResponse": {"choices": "nope"}}`, family: FamilyGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseChat([]byte(tt.payload), tt.family, "model")

			var parseErr *ResponseParseError
			require.ErrorAs(t, err, &parseErr)
			assert.Equal(t, tt.family, parseErr.Family)
			assert.Equal(t, OperationChat, parseErr.Operation)
			assert.Equal(t, tt.payload, string(parseErr.RawPayload))
		})
	}

	_, err := parseChat([]byte(`{}`), FamilyGeneric, "model")
	assert.True(t, errors.Is(err, errMissingChatResponse))
}

// TestMapFinishReason checks each family table on its own; the same raw
// string means different things across families.
func TestMapFinishReason(t *testing.T) {
	generic := map[string]ai.FinishReason{
		"stop":           ai.FinishReasonStop,
		"STOP":           ai.FinishReasonStop,
		"length":         ai.FinishReasonLength,
		"content_filter": ai.FinishReasonContentFilter,
		"tool_calls":     ai.FinishReasonToolCalls,
		"error":          ai.FinishReasonError,
		"COMPLETE":       ai.FinishReasonOther,
		"":               ai.FinishReasonOther,
		"something_new":  ai.FinishReasonOther,
	}
	for raw, want := range generic {
		assert.Equal(t, want, mapFinishReason(FamilyGeneric, raw), "generic %q", raw)
		assert.Equal(t, want, mapFinishReason(FamilyLlama, raw), "llama %q", raw)
	}

	cohere := map[string]ai.FinishReason{
		"COMPLETE":      ai.FinishReasonStop,
		"STOP_SEQUENCE": ai.FinishReasonStop,
		"MAX_TOKENS":    ai.FinishReasonLength,
		"ERROR_LIMIT":   ai.FinishReasonLength,
		"ERROR_TOXIC":   ai.FinishReasonContentFilter,
		"TOOL_CALL":     ai.FinishReasonToolCalls,
		"ERROR":         ai.FinishReasonError,
		"STOP":          ai.FinishReasonOther,
		"USER_CANCEL":   ai.FinishReasonOther,
	}
	for raw, want := range cohere {
		assert.Equal(t, want, mapFinishReason(FamilyCohereV1, raw), "cohere v1 %q", raw)
		assert.Equal(t, want, mapFinishReason(FamilyCohereV2, strings.ToLower(raw)), "cohere v2 %q", raw)
	}

	assert.Equal(t, ai.FinishReasonOther, mapFinishReason(ModelFamily(0), "STOP"))
}

// TestRoundTrip_Cohere follows a tool-using conversation through build and
// parse across two turns.
func TestRoundTrip_Cohere(t *testing.T) {
	messages := []ai.Message{ai.NewTextMessage(ai.RoleUser, "Weather in Rome?")}
	request := ai.ChatRequest{Model: "cohere.command-r-plus-08-2024", Messages: messages, Tools: []ai.ToolDescription{weatherTool()}}

	_, err := buildChat(request, FamilyCohereV1, onDemand)
	require.NoError(t, err)

	first, err := parseChat([]byte(`{"chatResponse": {"apiFormat": "COHERE", "toolCalls": [{"name": "get_weather", "parameters": {"city": "Rome"}}], "finishReason": "TOOL_CALL"}}`), FamilyCohereV1, request.Model)
	require.NoError(t, err)
	require.Len(t, first.ToolCalls, 1)

	request.Messages = append(request.Messages,
		ai.Message{Role: ai.RoleAssistant, ToolCalls: first.ToolCalls},
		ai.Message{Role: ai.RoleTool, ToolCallID: first.ToolCalls[0].ID, Content: []ai.ContentPart{ai.TextPart(`{"temp":21}`)}},
	)

	chat := marshalChat(t, request, FamilyCohereV1).Get("chatRequest")
	assert.Equal(t, "Weather in Rome?", chat.Get("message").String())
	assert.Equal(t, "Rome", chat.Get("toolResults.0.call.parameters.city").String())
	assert.Equal(t, int64(21), chat.Get("toolResults.0.outputs.0.temp").Int())

	second, err := parseChat([]byte(`{"chatResponse": {"apiFormat": "COHERE", "text": "21 degrees.", "finishReason": "COMPLETE"}}`), FamilyCohereV1, request.Model)
	require.NoError(t, err)
	assert.Equal(t, "21 degrees.", second.Content)
	assert.Equal(t, ai.FinishReasonStop, second.FinishReason)
}
