package ocigenai

import (
	"context"
	"errors"

	json "github.com/goccy/go-json"

	"github.com/leofalp/ocigenai/providers/ai"
)

// DefaultTranscriptionModel is used when TranscriptionRequest.Model is empty.
const DefaultTranscriptionModel = "WHISPER_MEDIUM"

const objectListLocation = "OBJECT_LIST_INLINE_INPUT_LOCATION"

// Transcribe creates an asynchronous Speech transcription job over audio
// objects in object storage and returns the accepted job.
func (provider *Provider) Transcribe(ctx context.Context, request ai.TranscriptionRequest) (*ai.TranscriptionJob, error) {
	wire, err := buildTranscription(request, provider.target)
	if err != nil {
		return nil, err
	}

	if err := wire.Encode(); err != nil {
		return nil, err
	}

	payload, err := provider.invoke(ctx, wire)
	if err != nil {
		return nil, err
	}

	job, err := parseTranscriptionJob(payload)
	if err != nil {
		return nil, err
	}

	job.Raw = &ai.RawExchange{Request: wire.Payload, Response: payload}
	return job, nil
}

func buildTranscription(request ai.TranscriptionRequest, target servingTarget) (WireRequest, error) {
	if request.Input.Namespace == "" || request.Input.Bucket == "" {
		return WireRequest{}, invalid("input", "namespace and bucket are required")
	}
	if len(request.Input.Objects) == 0 {
		return WireRequest{}, invalid("input.objects", "at least one audio object is required")
	}
	if request.Output.Namespace == "" || request.Output.Bucket == "" {
		return WireRequest{}, invalid("output", "namespace and bucket are required")
	}

	model := request.Model
	if model == "" {
		model = DefaultTranscriptionModel
	}

	return WireRequest{
		Operation: OperationTranscribe,
		Body: transcriptionJobDetails{
			CompartmentID: target.CompartmentID,
			DisplayName:   request.DisplayName,
			InputLocation: transcriptionInput{
				LocationType: objectListLocation,
				ObjectLocations: []objectLocation{{
					NamespaceName: request.Input.Namespace,
					BucketName:    request.Input.Bucket,
					ObjectNames:   append([]string(nil), request.Input.Objects...),
				}},
			},
			OutputLocation: transcriptionOutput{
				NamespaceName: request.Output.Namespace,
				BucketName:    request.Output.Bucket,
				Prefix:        request.Output.Prefix,
			},
			ModelDetails: transcriptionModelInfo{
				ModelType:    model,
				LanguageCode: request.LanguageCode,
			},
		},
	}, nil
}

func parseTranscriptionJob(payload []byte) (*ai.TranscriptionJob, error) {
	var result transcriptionJobResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, &ResponseParseError{Operation: OperationTranscribe, RawPayload: payload, Err: err}
	}
	if result.ID == "" {
		return nil, &ResponseParseError{Operation: OperationTranscribe, RawPayload: payload, Err: errors.New("missing job id")}
	}

	return &ai.TranscriptionJob{
		ID:              result.ID,
		DisplayName:     result.DisplayName,
		LifecycleState:  result.LifecycleState,
		PercentComplete: result.PercentComplete,
		OutputPrefix:    result.OutputLocation.Prefix,
	}, nil
}
