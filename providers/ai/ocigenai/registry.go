package ocigenai

import (
	"cmp"
	"slices"
	"strings"
)

// ModelFamily is the wire dialect a model speaks.
type ModelFamily int

const (
	// FamilyGeneric uses the messages array with typed content blocks.
	FamilyGeneric ModelFamily = iota + 1
	// FamilyCohereV1 uses the flattened message + chatHistory dialect.
	FamilyCohereV1
	// FamilyCohereV2 is FamilyCohereV1 plus thinking.
	FamilyCohereV2
	// FamilyLlama uses the generic shape without tool support.
	FamilyLlama
)

func (family ModelFamily) String() string {
	switch family {
	case FamilyGeneric:
		return "GENERIC"
	case FamilyCohereV1:
		return "COHERE_V1"
	case FamilyCohereV2:
		return "COHERE_V2"
	case FamilyLlama:
		return "LLAMA"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the family by name.
func (family ModelFamily) MarshalText() ([]byte, error) {
	return []byte(family.String()), nil
}

// ModelKind is the operation a model serves.
type ModelKind string

const (
	KindChat       ModelKind = "chat"
	KindEmbed      ModelKind = "embed"
	KindRerank     ModelKind = "rerank"
	KindTranscribe ModelKind = "transcribe"
)

// SpeedClass is a coarse latency hint for model pickers.
type SpeedClass string

const (
	SpeedFast      SpeedClass = "fast"
	SpeedStandard  SpeedClass = "standard"
	SpeedReasoning SpeedClass = "reasoning"
)

// Capabilities describes what a model accepts. The request builder rejects
// image parts for models without Vision and tools for models without Tools.
type Capabilities struct {
	Streaming bool
	Tools     bool
	Vision    bool
	Thinking  bool
}

// ModelMetadata is the static description of one model id.
type ModelMetadata struct {
	ID                  string
	Family              ModelFamily
	Kind                ModelKind
	DisplayName         string
	ContextWindowTokens int
	Capabilities        Capabilities
	SpeedClass          SpeedClass
	MaxBatchSize        int // Embed and rerank only
}

// familyRule maps a model id prefix to its family.
type familyRule struct {
	prefix string
	family ModelFamily
}

// familyRules is sorted longest prefix first in init.
var familyRules = []familyRule{
	{prefix: "cohere.command-a", family: FamilyCohereV2},
	{prefix: "cohere.command-latest", family: FamilyCohereV2},
	{prefix: "cohere.", family: FamilyCohereV1},
	{prefix: "meta.", family: FamilyLlama},
	{prefix: "openai.", family: FamilyGeneric},
	{prefix: "xai.", family: FamilyGeneric},
	{prefix: "google.", family: FamilyGeneric},
	{prefix: "mistral.", family: FamilyGeneric},
}

var (
	chatTools       = Capabilities{Streaming: true, Tools: true}
	chatToolsVision = Capabilities{Streaming: true, Tools: true, Vision: true}
	llamaText       = Capabilities{Streaming: true}
	llamaVision     = Capabilities{Streaming: true, Vision: true}
)

// modelTable is the registry content. Family is filled from familyRules.
var modelTable = []ModelMetadata{
	// Cohere
	{ID: "cohere.command-a-03-2025", Kind: KindChat, DisplayName: "Cohere Command A", ContextWindowTokens: 256000, Capabilities: chatTools, SpeedClass: SpeedStandard},
	{ID: "cohere.command-a-reasoning-08-2025", Kind: KindChat, DisplayName: "Cohere Command A Reasoning", ContextWindowTokens: 256000, Capabilities: Capabilities{Streaming: true, Tools: true, Thinking: true}, SpeedClass: SpeedReasoning},
	{ID: "cohere.command-r-08-2024", Kind: KindChat, DisplayName: "Cohere Command R (08-2024)", ContextWindowTokens: 128000, Capabilities: chatTools, SpeedClass: SpeedFast},
	{ID: "cohere.command-r-plus-08-2024", Kind: KindChat, DisplayName: "Cohere Command R+ (08-2024)", ContextWindowTokens: 128000, Capabilities: chatTools, SpeedClass: SpeedStandard},
	{ID: "cohere.command-r-16k", Kind: KindChat, DisplayName: "Cohere Command R 16k", ContextWindowTokens: 16000, Capabilities: chatTools, SpeedClass: SpeedFast},
	{ID: "cohere.embed-english-v3.0", Kind: KindEmbed, DisplayName: "Cohere Embed English v3", ContextWindowTokens: 512, SpeedClass: SpeedFast, MaxBatchSize: DefaultMaxBatchSize},
	{ID: "cohere.embed-english-light-v3.0", Kind: KindEmbed, DisplayName: "Cohere Embed English Light v3", ContextWindowTokens: 512, SpeedClass: SpeedFast, MaxBatchSize: DefaultMaxBatchSize},
	{ID: "cohere.embed-multilingual-v3.0", Kind: KindEmbed, DisplayName: "Cohere Embed Multilingual v3", ContextWindowTokens: 512, SpeedClass: SpeedFast, MaxBatchSize: DefaultMaxBatchSize},
	{ID: "cohere.embed-multilingual-light-v3.0", Kind: KindEmbed, DisplayName: "Cohere Embed Multilingual Light v3", ContextWindowTokens: 512, SpeedClass: SpeedFast, MaxBatchSize: DefaultMaxBatchSize},
	{ID: "cohere.embed-v4.0", Kind: KindEmbed, DisplayName: "Cohere Embed v4", ContextWindowTokens: 128000, SpeedClass: SpeedFast, MaxBatchSize: DefaultMaxBatchSize},
	{ID: "cohere.rerank-v3.5", Kind: KindRerank, DisplayName: "Cohere Rerank v3.5", ContextWindowTokens: 4096, SpeedClass: SpeedFast, MaxBatchSize: DefaultMaxBatchSize},

	// Meta
	{ID: "meta.llama-3.1-405b-instruct", Kind: KindChat, DisplayName: "Llama 3.1 405B Instruct", ContextWindowTokens: 128000, Capabilities: llamaText, SpeedClass: SpeedStandard},
	{ID: "meta.llama-3.2-11b-vision-instruct", Kind: KindChat, DisplayName: "Llama 3.2 11B Vision", ContextWindowTokens: 128000, Capabilities: llamaVision, SpeedClass: SpeedFast},
	{ID: "meta.llama-3.2-90b-vision-instruct", Kind: KindChat, DisplayName: "Llama 3.2 90B Vision", ContextWindowTokens: 128000, Capabilities: llamaVision, SpeedClass: SpeedStandard},
	{ID: "meta.llama-3.3-70b-instruct", Kind: KindChat, DisplayName: "Llama 3.3 70B Instruct", ContextWindowTokens: 128000, Capabilities: llamaText, SpeedClass: SpeedFast},
	{ID: "meta.llama-4-maverick-17b-128e-instruct-fp8", Kind: KindChat, DisplayName: "Llama 4 Maverick", ContextWindowTokens: 512000, Capabilities: llamaVision, SpeedClass: SpeedFast},
	{ID: "meta.llama-4-scout-17b-16e-instruct", Kind: KindChat, DisplayName: "Llama 4 Scout", ContextWindowTokens: 192000, Capabilities: llamaVision, SpeedClass: SpeedFast},

	// OpenAI
	{ID: "openai.gpt-4.1", Kind: KindChat, DisplayName: "GPT-4.1", ContextWindowTokens: 1047576, Capabilities: chatToolsVision, SpeedClass: SpeedStandard},
	{ID: "openai.gpt-4.1-mini", Kind: KindChat, DisplayName: "GPT-4.1 mini", ContextWindowTokens: 1047576, Capabilities: chatToolsVision, SpeedClass: SpeedFast},
	{ID: "openai.gpt-oss-120b", Kind: KindChat, DisplayName: "gpt-oss-120b", ContextWindowTokens: 128000, Capabilities: chatTools, SpeedClass: SpeedReasoning},
	{ID: "openai.gpt-oss-20b", Kind: KindChat, DisplayName: "gpt-oss-20b", ContextWindowTokens: 128000, Capabilities: chatTools, SpeedClass: SpeedFast},

	// xAI
	{ID: "xai.grok-3", Kind: KindChat, DisplayName: "Grok 3", ContextWindowTokens: 131072, Capabilities: chatTools, SpeedClass: SpeedStandard},
	{ID: "xai.grok-3-mini", Kind: KindChat, DisplayName: "Grok 3 Mini", ContextWindowTokens: 131072, Capabilities: chatTools, SpeedClass: SpeedReasoning},
	{ID: "xai.grok-4", Kind: KindChat, DisplayName: "Grok 4", ContextWindowTokens: 256000, Capabilities: chatToolsVision, SpeedClass: SpeedReasoning},

	// Google
	{ID: "google.gemini-2.5-flash", Kind: KindChat, DisplayName: "Gemini 2.5 Flash", ContextWindowTokens: 1048576, Capabilities: chatToolsVision, SpeedClass: SpeedFast},
	{ID: "google.gemini-2.5-pro", Kind: KindChat, DisplayName: "Gemini 2.5 Pro", ContextWindowTokens: 1048576, Capabilities: chatToolsVision, SpeedClass: SpeedReasoning},
}

// modelIndex is built once in init and only read afterwards.
var modelIndex map[string]ModelMetadata

func init() {
	slices.SortStableFunc(familyRules, func(a, b familyRule) int {
		return cmp.Compare(len(b.prefix), len(a.prefix))
	})

	modelIndex = make(map[string]ModelMetadata, len(modelTable))
	for i := range modelTable {
		family, ok := matchFamily(modelTable[i].ID)
		if !ok {
			panic("ocigenai: registry entry without family rule: " + modelTable[i].ID)
		}
		modelTable[i].Family = family
		modelIndex[modelTable[i].ID] = modelTable[i]
	}

	slices.SortFunc(modelTable, func(a, b ModelMetadata) int {
		return strings.Compare(a.ID, b.ID)
	})
}

func matchFamily(modelID string) (ModelFamily, bool) {
	normalized := strings.ToLower(strings.TrimSpace(modelID))
	for _, rule := range familyRules {
		if strings.HasPrefix(normalized, rule.prefix) {
			return rule.family, true
		}
	}
	return 0, false
}

// ResolveFamily returns the dialect for modelID by longest matching vendor
// prefix, so ids not listed in the registry still resolve. Dedicated endpoint
// OCIDs are not model ids and fail with *UnknownModelError.
func ResolveFamily(modelID string) (ModelFamily, error) {
	family, ok := matchFamily(modelID)
	if !ok {
		return 0, &UnknownModelError{ModelID: modelID}
	}
	return family, nil
}

// GetMetadata returns the registered metadata for modelID.
func GetMetadata(modelID string) (ModelMetadata, bool) {
	metadata, ok := modelIndex[strings.ToLower(strings.TrimSpace(modelID))]
	return metadata, ok
}

// ListByFamily returns the registered models of family sorted by id.
func ListByFamily(family ModelFamily) []ModelMetadata {
	var models []ModelMetadata
	for _, metadata := range modelTable {
		if metadata.Family == family {
			models = append(models, metadata)
		}
	}
	return models
}

// Models returns every registered model sorted by id.
func Models() []ModelMetadata {
	return slices.Clone(modelTable)
}
