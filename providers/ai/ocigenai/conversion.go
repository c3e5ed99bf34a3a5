package ocigenai

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/leofalp/ocigenai/internal/utils"
	"github.com/leofalp/ocigenai/providers/ai"
)

// servingTarget addresses the model for one call.
type servingTarget struct {
	CompartmentID string
	ServingType   ServingType
	EndpointID    string
}

func (target servingTarget) mode(modelID string) servingMode {
	if target.ServingType == ServingDedicated {
		return servingMode{ServingType: ServingDedicated, EndpointID: target.EndpointID}
	}
	return servingMode{ServingType: ServingOnDemand, ModelID: modelID}
}

/*
	##### REQUEST #####
*/

// buildChat converts a normalized request into the wire request for family.
// It is pure: the same input always produces an identical WireRequest.
func buildChat(request ai.ChatRequest, family ModelFamily, target servingTarget) (WireRequest, error) {
	if err := validateChat(request, family); err != nil {
		return WireRequest{}, err
	}

	var chatRequest any
	var err error

	switch family {
	case FamilyGeneric, FamilyLlama:
		chatRequest = requestToGeneric(request, family)
	case FamilyCohereV1, FamilyCohereV2:
		chatRequest, err = requestToCohere(request, family)
	default:
		return WireRequest{}, fmt.Errorf("ocigenai: no request builder for family %s", family)
	}
	if err != nil {
		return WireRequest{}, err
	}

	return WireRequest{
		Operation: OperationChat,
		Family:    family,
		Body: chatDetails{
			CompartmentID: target.CompartmentID,
			ServingMode:   target.mode(request.Model),
			ChatRequest:   chatRequest,
		},
		Overrides: maps.Clone(request.ProviderOptions),
		Stream:    request.Stream,
	}, nil
}

func validateChat(request ai.ChatRequest, family ModelFamily) error {
	if len(request.Messages) == 0 {
		return invalid("messages", "at least one message is required")
	}

	hasImages := false
	for i, message := range request.Messages {
		if !message.Role.Valid() {
			return invalid(fmt.Sprintf("messages[%d].role", i), "unknown role %q", message.Role)
		}
		for j, part := range message.Content {
			switch part.Type {
			case ai.ContentTypeText:
			case ai.ContentTypeImage:
				if part.Image == nil || (part.Image.Data == "" && part.Image.URI == "") {
					return invalid(fmt.Sprintf("messages[%d].content[%d]", i, j), "image part without data")
				}
				hasImages = true
			default:
				return invalid(fmt.Sprintf("messages[%d].content[%d].type", i, j), "unknown content type %q", part.Type)
			}
		}
	}

	if config := request.GenerationConfig; config != nil {
		if config.Temperature != nil && (*config.Temperature < 0 || *config.Temperature > 2) {
			return invalid("temperature", "%v is outside [0, 2]", *config.Temperature)
		}
		if config.TopP != nil && (*config.TopP < 0 || *config.TopP > 1) {
			return invalid("topP", "%v is outside [0, 1]", *config.TopP)
		}
		if config.MaxOutputTokens != nil && *config.MaxOutputTokens <= 0 {
			return invalid("maxTokens", "must be positive, got %d", *config.MaxOutputTokens)
		}
		if config.TopK != nil && *config.TopK < 0 {
			return invalid("topK", "must not be negative, got %d", *config.TopK)
		}
	}

	metadata, registered := GetMetadata(request.Model)

	if len(request.Tools) > 0 {
		if family == FamilyLlama {
			return invalid("tools", "family %s does not support tools", family)
		}
		if registered && !metadata.Capabilities.Tools {
			return invalid("tools", "model %s does not support tools", request.Model)
		}
		for i, tool := range request.Tools {
			if tool.Name == "" {
				return invalid(fmt.Sprintf("tools[%d].name", i), "must not be empty")
			}
		}
	}

	if choice := request.ToolChoice; choice != nil {
		switch choice.Mode {
		case ai.ToolChoiceAuto, ai.ToolChoiceRequired, ai.ToolChoiceNone:
		case ai.ToolChoiceFunction:
			if choice.FunctionName == "" {
				return invalid("toolChoice.functionName", "required when mode is %q", choice.Mode)
			}
		default:
			return invalid("toolChoice.mode", "unknown mode %q", choice.Mode)
		}
	}

	if hasImages {
		if family == FamilyCohereV1 || family == FamilyCohereV2 {
			return invalid("messages", "family %s does not accept image content", family)
		}
		if registered && !metadata.Capabilities.Vision {
			return invalid("messages", "model %s does not support image input", request.Model)
		}
	}

	if thinking := request.Thinking; thinking != nil && thinking.Enabled {
		if family != FamilyCohereV2 {
			return invalid("thinking", "family %s does not support thinking", family)
		}
		if thinking.TokenBudget != nil && *thinking.TokenBudget <= 0 {
			return invalid("thinking.tokenBudget", "must be positive, got %d", *thinking.TokenBudget)
		}
	}

	return nil
}

func samplingFrom(config *ai.GenerationConfig) samplingParams {
	if config == nil {
		return samplingParams{}
	}
	return samplingParams{
		MaxTokens:        config.MaxOutputTokens,
		Temperature:      config.Temperature,
		TopP:             config.TopP,
		TopK:             config.TopK,
		FrequencyPenalty: config.FrequencyPenalty,
		PresencePenalty:  config.PresencePenalty,
		Seed:             config.Seed,
	}
}

func stopSequencesFrom(config *ai.GenerationConfig) []string {
	if config == nil {
		return nil
	}
	return slices.Clone(config.StopSequences)
}

func requestToGeneric(request ai.ChatRequest, family ModelFamily) genericChatRequest {
	wire := genericChatRequest{
		APIFormat:      apiFormatGeneric,
		Messages:       make([]genericMessage, 0, len(request.Messages)),
		samplingParams: samplingFrom(request.GenerationConfig),
		Stop:           stopSequencesFrom(request.GenerationConfig),
	}

	for _, message := range request.Messages {
		wireMessage := genericMessage{
			Role:       strings.ToUpper(string(message.Role)),
			ToolCallID: message.ToolCallID,
		}

		for _, part := range message.Content {
			switch part.Type {
			case ai.ContentTypeText:
				wireMessage.Content = append(wireMessage.Content, genericContent{Type: "TEXT", Text: part.Text})
			case ai.ContentTypeImage:
				wireMessage.Content = append(wireMessage.Content, genericContent{
					Type:     "IMAGE",
					ImageURL: &imageURL{URL: part.Image.DataURI()},
				})
			}
		}

		for _, toolCall := range message.ToolCalls {
			wireMessage.ToolCalls = append(wireMessage.ToolCalls, genericToolCall{
				ID:        toolCall.ID,
				Type:      "FUNCTION",
				Name:      toolCall.Function.Name,
				Arguments: toolCall.Function.Arguments,
			})
		}

		wire.Messages = append(wire.Messages, wireMessage)
	}

	if family == FamilyGeneric {
		for _, tool := range request.Tools {
			wire.Tools = append(wire.Tools, genericTool{
				Type:        "FUNCTION",
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			})
		}
		wire.ToolChoice = toolChoiceToGeneric(request.ToolChoice)
	}

	if request.Stream {
		wire.IsStream = true
		wire.StreamOptions = &streamOptions{IsIncludeUsage: true}
	}

	return wire
}

func toolChoiceToGeneric(choice *ai.ToolChoice) *genericToolChoice {
	if choice == nil {
		return nil
	}
	switch choice.Mode {
	case ai.ToolChoiceAuto:
		return &genericToolChoice{Type: "AUTO"}
	case ai.ToolChoiceRequired:
		return &genericToolChoice{Type: "REQUIRED"}
	case ai.ToolChoiceNone:
		return &genericToolChoice{Type: "NONE"}
	case ai.ToolChoiceFunction:
		return &genericToolChoice{Type: "FUNCTION", Name: choice.FunctionName}
	default:
		return nil
	}
}

// requestToCohere flattens the conversation: the last user turn becomes
// message, system turns become the preamble, earlier turns become chatHistory
// and tool outputs after the last user turn become toolResults. ToolChoice has
// no Cohere equivalent and is not sent.
func requestToCohere(request ai.ChatRequest, family ModelFamily) (cohereChatRequest, error) {
	lastUser := -1
	for i, message := range request.Messages {
		if message.Role == ai.RoleUser {
			lastUser = i
		}
	}
	if lastUser < 0 {
		return cohereChatRequest{}, invalid("messages", "family %s requires a user message", family)
	}

	wire := cohereChatRequest{
		APIFormat:      apiFormatCohere,
		Message:        request.Messages[lastUser].Text(),
		samplingParams: samplingFrom(request.GenerationConfig),
		StopSequences:  stopSequencesFrom(request.GenerationConfig),
	}
	if family == FamilyCohereV2 {
		wire.APIFormat = apiFormatCohereV2
	}

	calls := make(map[string]ai.ToolCall)
	var preamble []string

	for i, message := range request.Messages {
		switch message.Role {
		case ai.RoleSystem:
			preamble = append(preamble, message.Text())

		case ai.RoleUser:
			if i < lastUser {
				wire.ChatHistory = append(wire.ChatHistory, cohereMessage{Role: "USER", Message: message.Text()})
			}

		case ai.RoleAssistant:
			historyMessage := cohereMessage{Role: "CHATBOT", Message: message.Text()}
			for _, toolCall := range message.ToolCalls {
				calls[toolCall.ID] = toolCall
				historyMessage.ToolCalls = append(historyMessage.ToolCalls, toolCallToCohere(toolCall.Function.Name, toolCall.Function.Arguments))
			}
			wire.ChatHistory = append(wire.ChatHistory, historyMessage)

		case ai.RoleTool:
			result := toolResultToCohere(message, calls)
			if i < lastUser {
				wire.ChatHistory = append(wire.ChatHistory, cohereMessage{Role: "TOOL", ToolResults: []cohereToolResult{result}})
			} else {
				wire.ToolResults = append(wire.ToolResults, result)
			}
		}
	}
	wire.PreambleOverride = strings.Join(preamble, "\n")

	for _, tool := range request.Tools {
		wire.Tools = append(wire.Tools, cohereTool{
			Name:                 tool.Name,
			Description:          tool.Description,
			ParameterDefinitions: parameterDefinitions(tool.Parameters),
		})
	}

	if request.Stream {
		wire.IsStream = true
		wire.StreamOptions = &streamOptions{IsIncludeUsage: true}
	}

	if family == FamilyCohereV2 && request.Thinking != nil {
		thinking := &cohereThinking{Type: "DISABLED"}
		if request.Thinking.Enabled {
			thinking.Type = "ENABLED"
			thinking.TokenBudget = request.Thinking.TokenBudget
		}
		wire.Thinking = thinking
	}

	return wire, nil
}

func toolCallToCohere(name, arguments string) cohereToolCall {
	parameters := map[string]any{}
	if arguments != "" {
		if parsed, err := utils.ParseJSONAs[map[string]any](arguments); err == nil && parsed != nil {
			parameters = parsed
		}
	}
	return cohereToolCall{Name: name, Parameters: parameters}
}

// toolResultToCohere links a tool message back to the call it answers. Object
// outputs are sent as-is; anything else is wrapped under "result".
func toolResultToCohere(message ai.Message, calls map[string]ai.ToolCall) cohereToolResult {
	call := cohereToolCall{Name: message.Name, Parameters: map[string]any{}}
	if toolCall, ok := calls[message.ToolCallID]; ok {
		call = toolCallToCohere(toolCall.Function.Name, toolCall.Function.Arguments)
	}

	text := message.Text()

	var decoded any
	if err := json.Unmarshal([]byte(text), &decoded); err == nil {
		switch value := decoded.(type) {
		case map[string]any:
			return cohereToolResult{Call: call, Outputs: []map[string]any{value}}
		case []any:
			outputs := make([]map[string]any, 0, len(value))
			for _, item := range value {
				object, ok := item.(map[string]any)
				if !ok {
					outputs = nil
					break
				}
				outputs = append(outputs, object)
			}
			if outputs != nil {
				return cohereToolResult{Call: call, Outputs: outputs}
			}
		}
	}

	return cohereToolResult{Call: call, Outputs: []map[string]any{{"result": text}}}
}

// parameterDefinitions flattens the top-level properties of an object schema
// in declaration order.
func parameterDefinitions(schema *jsonschema.Schema) *orderedmap.OrderedMap[string, cohereParameter] {
	if schema == nil || schema.Properties == nil || schema.Properties.Len() == 0 {
		return nil
	}

	definitions := orderedmap.New[string, cohereParameter](schema.Properties.Len())
	for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
		definition := cohereParameter{IsRequired: slices.Contains(schema.Required, pair.Key)}
		if pair.Value != nil {
			definition.Type = cohereType(pair.Value)
			definition.Description = pair.Value.Description
		}
		definitions.Set(pair.Key, definition)
	}
	return definitions
}

// cohereType maps a JSON schema type to Cohere's Python-style vocabulary.
func cohereType(schema *jsonschema.Schema) string {
	switch schema.Type {
	case "string":
		return "str"
	case "integer":
		return "int"
	case "number":
		return "float"
	case "boolean":
		return "bool"
	case "object":
		return "dict"
	case "array":
		if schema.Items != nil && schema.Items.Type != "" && schema.Items.Type != "array" {
			return "List[" + cohereType(schema.Items) + "]"
		}
		return "list"
	case "":
		return "str"
	default:
		return schema.Type
	}
}

/*
	##### RESPONSE #####
*/

var errMissingChatResponse = errors.New("missing chatResponse")

// parseChat converts a chat response body for family into the normalized
// result. Shape mismatches are reported as *ResponseParseError.
func parseChat(payload []byte, family ModelFamily, requestModel string) (*ai.ChatResponse, error) {
	var result chatResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, parseError(OperationChat, family, payload, err)
	}
	if len(result.ChatResponse) == 0 || string(result.ChatResponse) == "null" {
		return nil, parseError(OperationChat, family, payload, errMissingChatResponse)
	}

	var response *ai.ChatResponse
	var err error

	switch family {
	case FamilyGeneric, FamilyLlama:
		response, err = genericToResponse(result.ChatResponse)
	case FamilyCohereV1, FamilyCohereV2:
		response, err = cohereToResponse(result.ChatResponse, family)
	default:
		err = fmt.Errorf("no response parser for family %s", family)
	}
	if err != nil {
		return nil, parseError(OperationChat, family, payload, err)
	}

	response.Model = result.ModelID
	if response.Model == "" {
		response.Model = requestModel
	}
	return response, nil
}

func parseError(operation Operation, family ModelFamily, payload []byte, err error) *ResponseParseError {
	return &ResponseParseError{Operation: operation, Family: family, RawPayload: payload, Err: err}
}

func checkAPIFormat(got, want string) error {
	if got != "" && !strings.EqualFold(got, want) {
		return fmt.Errorf("apiFormat %q does not match expected %q", got, want)
	}
	return nil
}

func genericToResponse(raw []byte) (*ai.ChatResponse, error) {
	var wire genericChatResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}
	if err := checkAPIFormat(wire.APIFormat, apiFormatGeneric); err != nil {
		return nil, err
	}

	response := &ai.ChatResponse{
		FinishReason: ai.FinishReasonOther,
		Usage:        usageFrom(wire.Usage),
	}
	if len(wire.Choices) == 0 {
		return response, nil
	}

	choice := wire.Choices[0]
	response.Content = joinText(choice.Message.Content)
	response.FinishReason = mapFinishReason(FamilyGeneric, choice.FinishReason)

	for _, toolCall := range choice.Message.ToolCalls {
		id := toolCall.ID
		if id == "" {
			id = uuid.NewString()
		}
		response.ToolCalls = append(response.ToolCalls, ai.ToolCall{
			ID:   id,
			Type: "function",
			Function: ai.ToolCallFunction{
				Name:      toolCall.Name,
				Arguments: toolCall.Arguments,
			},
		})
	}

	return response, nil
}

func cohereToResponse(raw []byte, family ModelFamily) (*ai.ChatResponse, error) {
	var wire cohereChatResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}

	want := apiFormatCohere
	if family == FamilyCohereV2 {
		want = apiFormatCohereV2
	}
	if err := checkAPIFormat(wire.APIFormat, want); err != nil {
		return nil, err
	}

	response := &ai.ChatResponse{
		Content:      wire.Text,
		FinishReason: mapFinishReason(family, wire.FinishReason),
		Usage:        usageFrom(wire.Usage),
	}
	if family == FamilyCohereV2 && wire.Message != nil {
		if text := joinText(wire.Message.Content); text != "" {
			response.Content = text
		}
	}

	for _, toolCall := range wire.ToolCalls {
		arguments, err := cohereArguments(toolCall.Parameters)
		if err != nil {
			return nil, err
		}
		response.ToolCalls = append(response.ToolCalls, ai.ToolCall{
			ID:   uuid.NewString(),
			Type: "function",
			Function: ai.ToolCallFunction{
				Name:      toolCall.Name,
				Arguments: arguments,
			},
		})
	}

	return response, nil
}

func cohereArguments(parameters map[string]any) (string, error) {
	if len(parameters) == 0 {
		return "{}", nil
	}
	encoded, err := json.Marshal(parameters)
	if err != nil {
		return "", fmt.Errorf("failed to encode tool call parameters: %w", err)
	}
	return string(encoded), nil
}

func joinText(blocks []genericContent) string {
	var builder strings.Builder
	for _, block := range blocks {
		if block.Type == "" || strings.EqualFold(block.Type, "TEXT") {
			builder.WriteString(block.Text)
		}
	}
	return builder.String()
}

func usageFrom(wire *wireUsage) *ai.Usage {
	if wire == nil {
		return nil
	}
	usage := &ai.Usage{
		PromptTokens:     wire.PromptTokens,
		CompletionTokens: wire.CompletionTokens,
		TotalTokens:      wire.TotalTokens,
	}
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	return usage
}

/*
	##### FINISH REASONS #####
*/

var genericFinishReasons = map[string]ai.FinishReason{
	"STOP":           ai.FinishReasonStop,
	"LENGTH":         ai.FinishReasonLength,
	"CONTENT_FILTER": ai.FinishReasonContentFilter,
	"TOOL_CALLS":     ai.FinishReasonToolCalls,
	"ERROR":          ai.FinishReasonError,
}

var cohereFinishReasons = map[string]ai.FinishReason{
	"COMPLETE":      ai.FinishReasonStop,
	"STOP_SEQUENCE": ai.FinishReasonStop,
	"MAX_TOKENS":    ai.FinishReasonLength,
	"ERROR_LIMIT":   ai.FinishReasonLength,
	"ERROR_TOXIC":   ai.FinishReasonContentFilter,
	"TOOL_CALL":     ai.FinishReasonToolCalls,
	"ERROR":         ai.FinishReasonError,
}

// mapFinishReason normalizes a wire finish reason through the table of its
// family. Unknown or empty values map to other.
func mapFinishReason(family ModelFamily, raw string) ai.FinishReason {
	var table map[string]ai.FinishReason

	switch family {
	case FamilyGeneric, FamilyLlama:
		table = genericFinishReasons
	case FamilyCohereV1, FamilyCohereV2:
		table = cohereFinishReasons
	default:
		return ai.FinishReasonOther
	}

	if reason, ok := table[strings.ToUpper(strings.TrimSpace(raw))]; ok {
		return reason
	}
	return ai.FinishReasonOther
}
