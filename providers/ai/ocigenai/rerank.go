package ocigenai

import (
	"context"

	json "github.com/goccy/go-json"

	"github.com/leofalp/ocigenai/providers/ai"
	"github.com/leofalp/ocigenai/providers/observability"
)

// Rerank scores documents against the query. The documents slice has the same
// batch limit as Embed.
func (provider *Provider) Rerank(ctx context.Context, request ai.RerankRequest) (*ai.RerankResponse, error) {
	span := observability.SpanFromContext(ctx)
	if span != nil {
		span.SetAttributes(
			observability.String(observability.AttrLLMProvider, providerName),
			observability.String(observability.AttrLLMOperation, string(OperationRerank)),
			observability.String(observability.AttrLLMModel, request.Model),
			observability.Int(observability.AttrRequestBatchSize, len(request.Documents)),
		)
	}

	family, err := ResolveFamily(request.Model)
	if err != nil {
		return nil, provider.fail(ctx, span, err)
	}

	wire, err := buildRerank(request, family, provider.target, provider.batchLimit(request.Model))
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

	response, err := parseRerank(payload, family, request.Model)
	if err != nil {
		return nil, provider.fail(ctx, span, err)
	}

	response.Raw = &ai.RawExchange{Request: wire.Payload, Response: payload}
	return response, nil
}

func buildRerank(request ai.RerankRequest, family ModelFamily, target servingTarget, maxBatch int) (WireRequest, error) {
	if request.Query == "" {
		return WireRequest{}, invalid("query", "must not be empty")
	}
	if len(request.Documents) == 0 {
		return WireRequest{}, invalid("documents", "at least one document is required")
	}
	if maxBatch > 0 && len(request.Documents) > maxBatch {
		return WireRequest{}, &BatchSizeExceededError{Requested: len(request.Documents), Max: maxBatch}
	}
	if request.TopN != nil && *request.TopN <= 0 {
		return WireRequest{}, invalid("topN", "must be positive, got %d", *request.TopN)
	}

	return WireRequest{
		Operation: OperationRerank,
		Family:    family,
		Body: rerankTextDetails{
			Input:         request.Query,
			Documents:     append([]string(nil), request.Documents...),
			TopN:          request.TopN,
			IsEcho:        request.ReturnDocuments,
			ServingMode:   target.mode(request.Model),
			CompartmentID: target.CompartmentID,
		},
	}, nil
}

func parseRerank(payload []byte, family ModelFamily, requestModel string) (*ai.RerankResponse, error) {
	var result rerankTextResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, parseError(OperationRerank, family, payload, err)
	}

	response := &ai.RerankResponse{
		ID:      result.ID,
		Model:   result.ModelID,
		Results: make([]ai.RerankResult, 0, len(result.DocumentRanks)),
	}
	if response.Model == "" {
		response.Model = requestModel
	}

	for _, rank := range result.DocumentRanks {
		rerankResult := ai.RerankResult{Index: rank.Index, Score: rank.RelevanceScore}
		if rank.Document != nil {
			rerankResult.Document = rank.Document.Text
		}
		response.Results = append(response.Results, rerankResult)
	}
	return response, nil
}
