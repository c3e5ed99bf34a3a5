package ocigenai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tidwall/sjson"

	"github.com/leofalp/ocigenai/internal/utils"
)

// Operation names one service call.
type Operation string

const (
	OperationChat       Operation = "chat"
	OperationEmbed      Operation = "embedText"
	OperationRerank     Operation = "rerankText"
	OperationTranscribe Operation = "createTranscriptionJob"
	OperationListModels Operation = "listModels"
)

const (
	// APIVersion is the Generative AI API version path segment.
	APIVersion = "20231130"
	// SpeechAPIVersion is the Speech API version path segment.
	SpeechAPIVersion = "20220101"
)

// WireRequest is a fully formed service request. It lives for one call.
type WireRequest struct {
	Operation Operation
	Family    ModelFamily
	Body      any

	// Overrides are merged into the chatRequest object (or the body root for
	// other operations) after Body is encoded, in key order.
	Overrides map[string]any

	// Query holds URL parameters for GET operations.
	Query url.Values

	Stream bool

	// Payload is the encoded body once Encode has run. Marshal returns it
	// as is.
	Payload []byte
}

// Encode marshals the request once and keeps the bytes in Payload, so
// retried attempts and the raw exchange share one encoding.
func (wire *WireRequest) Encode() error {
	payload, err := wire.Marshal()
	if err != nil {
		return err
	}
	wire.Payload = payload
	return nil
}

// Marshal encodes Body and applies Overrides.
func (wire WireRequest) Marshal() ([]byte, error) {
	if wire.Payload != nil {
		return wire.Payload, nil
	}
	if wire.Body == nil {
		return nil, nil
	}

	payload, err := json.Marshal(wire.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", wire.Operation, err)
	}

	if len(wire.Overrides) == 0 {
		return payload, nil
	}

	prefix := ""
	if wire.Operation == OperationChat {
		prefix = "chatRequest."
	}

	keys := make([]string, 0, len(wire.Overrides))
	for key := range wire.Overrides {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	for _, key := range keys {
		payload, err = sjson.SetBytes(payload, prefix+escapePathKey(key), wire.Overrides[key])
		if err != nil {
			return nil, fmt.Errorf("failed to apply provider option %q: %w", key, err)
		}
	}
	return payload, nil
}

var pathKeyEscaper = strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`, "|", `\|`, "#", `\#`)

func escapePathKey(key string) string {
	return pathKeyEscaper.Replace(key)
}

// Invoker is the opaque wire client. It owns transport, TLS, request signing
// and endpoint construction; the adapter hands it a complete request and
// receives raw bytes back. Implementations must return transport errors
// unwrapped and non-2xx responses as an error exposing HTTPStatusCode() so
// the retry classifier can see them.
type Invoker interface {
	Invoke(ctx context.Context, request WireRequest) ([]byte, error)
	InvokeStream(ctx context.Context, request WireRequest) (io.ReadCloser, error)
}

// HTTPInvoker is an Invoker over plain HTTPS. Authentication is the job of the
// injected *http.Client (a signing RoundTripper) or of a static Authorization
// header for API-key gateways.
type HTTPInvoker struct {
	client        *http.Client
	inferenceURL  string
	managementURL string
	speechURL     string
	authorization string
}

// HTTPOption configures an HTTPInvoker.
type HTTPOption func(*HTTPInvoker)

// WithHTTPClient sets the client used for every call.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(invoker *HTTPInvoker) {
		invoker.client = client
	}
}

// WithInferenceEndpoint overrides the inference base URL, version included.
func WithInferenceEndpoint(baseURL string) HTTPOption {
	return func(invoker *HTTPInvoker) {
		invoker.inferenceURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithManagementEndpoint overrides the base URL used for model listing.
func WithManagementEndpoint(baseURL string) HTTPOption {
	return func(invoker *HTTPInvoker) {
		invoker.managementURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithSpeechEndpoint overrides the Speech service base URL.
func WithSpeechEndpoint(baseURL string) HTTPOption {
	return func(invoker *HTTPInvoker) {
		invoker.speechURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithAuthorization sets a static Authorization header value.
func WithAuthorization(value string) HTTPOption {
	return func(invoker *HTTPInvoker) {
		invoker.authorization = value
	}
}

// NewHTTPInvoker returns an invoker targeting the public endpoints of region.
func NewHTTPInvoker(region string, opts ...HTTPOption) *HTTPInvoker {
	invoker := &HTTPInvoker{
		client:        http.DefaultClient,
		inferenceURL:  fmt.Sprintf("https://inference.generativeai.%s.oci.oraclecloud.com/%s", region, APIVersion),
		managementURL: fmt.Sprintf("https://generativeai.%s.oci.oraclecloud.com/%s", region, APIVersion),
		speechURL:     fmt.Sprintf("https://speech.aiservice.%s.oci.oraclecloud.com/%s", region, SpeechAPIVersion),
	}
	for _, opt := range opts {
		opt(invoker)
	}
	return invoker
}

// InferenceURL returns the inference base URL in use.
func (invoker *HTTPInvoker) InferenceURL() string {
	return invoker.inferenceURL
}

// ManagementURL returns the model-listing base URL in use.
func (invoker *HTTPInvoker) ManagementURL() string {
	return invoker.managementURL
}

// SpeechURL returns the Speech base URL in use.
func (invoker *HTTPInvoker) SpeechURL() string {
	return invoker.speechURL
}

func (invoker *HTTPInvoker) endpoint(request WireRequest) (string, error) {
	switch request.Operation {
	case OperationChat:
		return invoker.inferenceURL + "/actions/chat", nil
	case OperationEmbed:
		return invoker.inferenceURL + "/actions/embedText", nil
	case OperationRerank:
		return invoker.inferenceURL + "/actions/rerankText", nil
	case OperationTranscribe:
		return invoker.speechURL + "/transcriptionJobs", nil
	case OperationListModels:
		endpoint := invoker.managementURL + "/models"
		if len(request.Query) > 0 {
			endpoint += "?" + request.Query.Encode()
		}
		return endpoint, nil
	default:
		return "", fmt.Errorf("ocigenai: unsupported operation %q", request.Operation)
	}
}

func (invoker *HTTPInvoker) headers() []utils.HeaderOption {
	headers := []utils.HeaderOption{{Key: "opc-request-id", Value: uuid.NewString()}}
	if invoker.authorization != "" {
		headers = append(headers, utils.HeaderOption{Key: "Authorization", Value: invoker.authorization})
	}
	return headers
}

// Invoke sends a non-streaming request and returns the response body.
func (invoker *HTTPInvoker) Invoke(ctx context.Context, request WireRequest) ([]byte, error) {
	endpoint, err := invoker.endpoint(request)
	if err != nil {
		return nil, err
	}

	if request.Operation == OperationListModels {
		_, body, err := utils.DoGet(ctx, invoker.client, endpoint, invoker.headers()...)
		return body, err
	}

	payload, err := request.Marshal()
	if err != nil {
		return nil, err
	}

	_, body, err := utils.DoPostSync(ctx, invoker.client, endpoint, payload, invoker.headers()...)
	return body, err
}

// InvokeStream sends a streaming chat request and returns the open SSE body.
func (invoker *HTTPInvoker) InvokeStream(ctx context.Context, request WireRequest) (io.ReadCloser, error) {
	if request.Operation != OperationChat {
		return nil, fmt.Errorf("ocigenai: operation %q does not stream", request.Operation)
	}

	endpoint, err := invoker.endpoint(request)
	if err != nil {
		return nil, err
	}

	payload, err := request.Marshal()
	if err != nil {
		return nil, err
	}

	response, err := utils.DoPostStream(ctx, invoker.client, endpoint, payload, invoker.headers()...)
	if err != nil {
		return nil, err
	}
	return response.Body, nil
}
