package utils

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/leofalp/ocigenai/providers/observability"
)

// DoPostStream performs an HTTP POST and returns the response with its body
// left open for SSE reading. The caller owns the body. On non-2xx responses
// the body is read (capped), closed, and reported as a *StatusError.
func DoPostStream(ctx context.Context, client *http.Client, url string, body []byte, headers ...HeaderOption) (*http.Response, error) {
	span := observability.SpanFromContext(ctx)

	httpClient := client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if span != nil {
		span.AddEvent("http.stream_request.prepared",
			observability.String(observability.AttrHTTPMethod, http.MethodPost),
			observability.String(observability.AttrHTTPURL, url),
			observability.Int(observability.AttrHTTPRequestBodySize, len(body)),
		)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	for _, header := range headers {
		req.Header.Set(header.Key, header.Value)
	}

	requestStart := time.Now()
	response, err := httpClient.Do(req)
	requestDuration := time.Since(requestStart)

	if err != nil {
		if span != nil {
			span.AddEvent("http.stream_request.error",
				observability.Error(err),
				observability.Duration("http.request.duration", requestDuration),
			)
		}
		return response, err
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		defer CloseWithLog(response.Body)
		errorBody, readErr := io.ReadAll(io.LimitReader(response.Body, maxResponseBodySize))
		if readErr != nil {
			errorBody = []byte(fmt.Sprintf("failed to read body: %v", readErr))
		}
		return response, &StatusError{
			StatusCode: response.StatusCode,
			Body:       TruncateString(string(errorBody), DefaultMaxStringLength),
			RequestID:  response.Header.Get("opc-request-id"),
		}
	}

	if span != nil {
		span.AddEvent("http.stream_response.started",
			observability.Int(observability.AttrHTTPStatusCode, response.StatusCode),
			observability.Duration("http.request.duration", requestDuration),
		)
	}

	return response, nil
}

// maxSSELineSize is the maximum size of a single SSE line (1 MB). Longer lines
// surface as a wrapped bufio.ErrTooLong from Next.
const maxSSELineSize = 1 * 1024 * 1024

// maxResponseBodySize caps non-streaming and error body reads (10 MB).
const maxResponseBodySize int64 = 10 * 1024 * 1024

// SSEFrame is one server-sent event. Terminated is false only for a trailing
// frame that the stream closed before its blank-line terminator arrived.
type SSEFrame struct {
	Event      string
	Data       string
	ID         string
	Terminated bool
}

// SSEScanner reads Server-Sent Events from an io.Reader. It joins multi-line
// data fields, skips comments, and keeps the most recent "event:" name with
// the frame it belongs to. Sentinels such as [DONE] are returned as ordinary
// data; interpreting them is left to the caller.
type SSEScanner struct {
	scanner *bufio.Scanner
}

// NewSSEScanner creates an SSEScanner over reader.
func NewSSEScanner(reader io.Reader) *SSEScanner {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELineSize)
	return &SSEScanner{scanner: scanner}
}

// Next returns the next frame carrying data. Frames without any data line
// (for example a lone "event:" line) are discarded. Returns io.EOF once the
// reader is exhausted.
func (sseScanner *SSEScanner) Next() (SSEFrame, error) {
	var frame SSEFrame
	var dataLines []string

	for sseScanner.scanner.Scan() {
		line := strings.TrimSuffix(sseScanner.scanner.Text(), "\r")

		if line == "" {
			if len(dataLines) > 0 {
				frame.Data = strings.Join(dataLines, "\n")
				frame.Terminated = true
				return frame, nil
			}
			frame = SSEFrame{}
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "data":
			dataLines = append(dataLines, value)
		case "event":
			frame.Event = strings.TrimSpace(value)
		case "id":
			frame.ID = strings.TrimSpace(value)
		}
		// retry: and unknown fields are ignored.
	}

	if err := sseScanner.scanner.Err(); err != nil {
		return SSEFrame{}, fmt.Errorf("SSE scanner error: %w", err)
	}

	if len(dataLines) > 0 {
		frame.Data = strings.Join(dataLines, "\n")
		return frame, nil
	}

	return SSEFrame{}, io.EOF
}
