package ocigenai

import (
	"context"
	"net/url"
	"slices"
	"strings"

	json "github.com/goccy/go-json"
)

// Listing is the result of ListModels. When the live call fails, Items holds
// the static registry, IsFallback is set and Err carries the failure.
type Listing struct {
	Items      []ModelMetadata
	IsFallback bool
	Err        error
}

// ListModels asks the service which models the compartment can use, keeping
// only ids with a known family. Registered metadata wins over the listing.
func (provider *Provider) ListModels(ctx context.Context) Listing {
	wire := WireRequest{
		Operation: OperationListModels,
		Query:     url.Values{"compartmentId": []string{provider.target.CompartmentID}},
	}

	payload, err := provider.invoke(ctx, wire)
	if err != nil {
		return provider.fallbackListing(ctx, err)
	}

	items, err := parseModelListing(payload)
	if err != nil {
		return provider.fallbackListing(ctx, err)
	}
	return Listing{Items: items}
}

func (provider *Provider) fallbackListing(ctx context.Context, err error) Listing {
	provider.logger.WarnContext(ctx, "model listing failed, using static registry", "error", err.Error())
	return Listing{Items: Models(), IsFallback: true, Err: err}
}

func parseModelListing(payload []byte) ([]ModelMetadata, error) {
	var collection modelCollection
	if err := json.Unmarshal(payload, &collection); err != nil {
		return nil, &ResponseParseError{Operation: OperationListModels, RawPayload: payload, Err: err}
	}

	seen := make(map[string]bool, len(collection.Items))
	items := make([]ModelMetadata, 0, len(collection.Items))

	for _, summary := range collection.Items {
		if summary.LifecycleState != "" && !strings.EqualFold(summary.LifecycleState, "ACTIVE") {
			continue
		}

		modelID := strings.ToLower(summary.DisplayName)
		if seen[modelID] {
			continue
		}

		if metadata, ok := GetMetadata(modelID); ok {
			seen[modelID] = true
			items = append(items, metadata)
			continue
		}

		family, err := ResolveFamily(modelID)
		if err != nil {
			continue
		}
		seen[modelID] = true
		items = append(items, ModelMetadata{
			ID:          modelID,
			Family:      family,
			Kind:        kindFromCapabilities(summary.Capabilities),
			DisplayName: summary.DisplayName,
		})
	}

	slices.SortFunc(items, func(a, b ModelMetadata) int {
		return strings.Compare(a.ID, b.ID)
	})
	return items, nil
}

func kindFromCapabilities(capabilities []string) ModelKind {
	for _, capability := range capabilities {
		switch strings.ToUpper(capability) {
		case "CHAT", "TEXT_GENERATION":
			return KindChat
		case "TEXT_EMBEDDINGS":
			return KindEmbed
		case "TEXT_RERANK":
			return KindRerank
		}
	}
	return KindChat
}
