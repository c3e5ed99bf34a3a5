package ocigenai

import (
	"context"
	"slices"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/leofalp/ocigenai/providers/ai"
	"github.com/leofalp/ocigenai/providers/observability"
)

var embedTruncateModes = []string{"NONE", "START", "END"}

// Embed returns one vector per input, in input order. Batches larger than the
// configured maximum fail with *BatchSizeExceededError before any call.
func (provider *Provider) Embed(ctx context.Context, request ai.EmbedRequest) (*ai.EmbedResponse, error) {
	span := observability.SpanFromContext(ctx)
	if span != nil {
		span.SetAttributes(
			observability.String(observability.AttrLLMProvider, providerName),
			observability.String(observability.AttrLLMOperation, string(OperationEmbed)),
			observability.String(observability.AttrLLMModel, request.Model),
			observability.Int(observability.AttrRequestBatchSize, len(request.Inputs)),
		)
	}

	family, err := ResolveFamily(request.Model)
	if err != nil {
		return nil, provider.fail(ctx, span, err)
	}

	wire, err := buildEmbed(request, family, provider.target, provider.batchLimit(request.Model))
	if err != nil {
		return nil, provider.fail(ctx, span, err)
	}

	if err := wire.Encode(); err != nil {
		return nil, provider.fail(ctx, span, err)
	}

	payload, err := provider.invoke(ctx, wire)
	if err != nil {
		return nil, provider.fail(ctx, span, err)
	}

	response, err := parseEmbed(payload, family, request.Model)
	if err != nil {
		return nil, provider.fail(ctx, span, err)
	}

	response.Raw = &ai.RawExchange{Request: wire.Payload, Response: payload}
	return response, nil
}

// batchLimit is the smaller of the provider limit and the model's own limit.
func (provider *Provider) batchLimit(modelID string) int {
	limit := provider.maxBatchSize
	if metadata, ok := GetMetadata(modelID); ok && metadata.MaxBatchSize > 0 && metadata.MaxBatchSize < limit {
		limit = metadata.MaxBatchSize
	}
	return limit
}

func buildEmbed(request ai.EmbedRequest, family ModelFamily, target servingTarget, maxBatch int) (WireRequest, error) {
	if len(request.Inputs) == 0 {
		return WireRequest{}, invalid("inputs", "at least one input is required")
	}
	if maxBatch > 0 && len(request.Inputs) > maxBatch {
		return WireRequest{}, &BatchSizeExceededError{Requested: len(request.Inputs), Max: maxBatch}
	}

	truncate := strings.ToUpper(request.Truncate)
	if truncate != "" && !slices.Contains(embedTruncateModes, truncate) {
		return WireRequest{}, invalid("truncate", "must be one of %v, got %q", embedTruncateModes, request.Truncate)
	}

	return WireRequest{
		Operation: OperationEmbed,
		Family:    family,
		Body: embedTextDetails{
			Inputs:        append([]string(nil), request.Inputs...),
			Truncate:      truncate,
			InputType:     strings.ToUpper(request.InputType),
			ServingMode:   target.mode(request.Model),
			CompartmentID: target.CompartmentID,
		},
	}, nil
}

// parseEmbed accepts a missing embeddings array as an empty result.
func parseEmbed(payload []byte, family ModelFamily, requestModel string) (*ai.EmbedResponse, error) {
	var result embedTextResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, parseError(OperationEmbed, family, payload, err)
	}

	response := &ai.EmbedResponse{
		ID:         result.ID,
		Model:      result.ModelID,
		Embeddings: result.Embeddings,
		Usage:      usageFrom(result.Usage),
	}
	if response.Model == "" {
		response.Model = requestModel
	}
	if response.Embeddings == nil {
		response.Embeddings = [][]float64{}
	}
	return response, nil
}
