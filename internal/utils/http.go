package utils

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/leofalp/ocigenai/providers/observability"
)

// HeaderOption is a single request header applied after the defaults, so it
// can override Content-Type or Authorization when needed.
type HeaderOption struct {
	Key   string
	Value string
}

// StatusError is returned by the HTTP helpers for any non-2xx response. It
// exposes the status code through HTTPStatusCode so retry classification does
// not need to parse error strings.
type StatusError struct {
	StatusCode int
	Body       string
	RequestID  string
}

func (e *StatusError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("non-2xx status %d (opc-request-id %s): %s", e.StatusCode, e.RequestID, e.Body)
	}
	return fmt.Sprintf("non-2xx status %d: %s", e.StatusCode, e.Body)
}

// HTTPStatusCode returns the response status code.
func (e *StatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// DoPostSync performs a synchronous HTTP POST with an already-encoded JSON
// body and returns the raw response bytes.
//
// Error Handling Strategy:
//   - Transport errors (connection reset, DNS, TLS) are returned unwrapped so
//     callers can classify them with errors.Is / errors.As
//   - Non-2xx statuses return a *StatusError carrying the (capped) body
//   - Response body close errors are logged but never override the result
func DoPostSync(ctx context.Context, client *http.Client, url string, body []byte, headers ...HeaderOption) (*http.Response, []byte, error) {
	span := observability.SpanFromContext(ctx)

	httpClient := client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if span != nil {
		span.AddEvent("http.request.prepared",
			observability.String(observability.AttrHTTPMethod, http.MethodPost),
			observability.String(observability.AttrHTTPURL, url),
			observability.Int(observability.AttrHTTPRequestBodySize, len(body)),
		)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for _, header := range headers {
		req.Header.Set(header.Key, header.Value)
	}

	return doRequest(httpClient, req, span)
}

// DoGet performs a GET request and returns the raw response bytes, with the
// same error contract as DoPostSync.
func DoGet(ctx context.Context, client *http.Client, url string, headers ...HeaderOption) (*http.Response, []byte, error) {
	span := observability.SpanFromContext(ctx)

	httpClient := client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	for _, header := range headers {
		req.Header.Set(header.Key, header.Value)
	}

	return doRequest(httpClient, req, span)
}

func doRequest(httpClient *http.Client, req *http.Request, span observability.Span) (*http.Response, []byte, error) {
	requestStart := time.Now()
	res, err := httpClient.Do(req)
	requestDuration := time.Since(requestStart)

	if err != nil {
		if span != nil {
			span.AddEvent("http.request.error",
				observability.Error(err),
				observability.Duration("http.request.duration", requestDuration),
			)
		}
		return res, nil, err
	}
	defer CloseWithLog(res.Body)

	respBody, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBodySize))
	if err != nil {
		return res, nil, fmt.Errorf("error reading response body: %w", err)
	}

	if span != nil {
		span.AddEvent("http.response.received",
			observability.Int(observability.AttrHTTPStatusCode, res.StatusCode),
			observability.Int(observability.AttrHTTPResponseBodySize, len(respBody)),
			observability.Duration("http.request.duration", requestDuration),
		)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return res, respBody, &StatusError{
			StatusCode: res.StatusCode,
			Body:       TruncateString(string(respBody), DefaultMaxStringLength),
			RequestID:  res.Header.Get("opc-request-id"),
		}
	}

	return res, respBody, nil
}

// CloseWithLog closes c and logs a warning when that fails.
func CloseWithLog(c io.Closer) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		slog.Warn("failed to close response body", "error", err.Error())
	}
}
