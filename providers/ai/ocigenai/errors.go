package ocigenai

import (
	"errors"
	"fmt"

	"github.com/leofalp/ocigenai/internal/utils"
)

// ErrStreamTruncated is yielded when the connection closes in the middle of a
// frame, leaving a trailing payload that cannot be parsed.
var ErrStreamTruncated = errors.New("ocigenai: stream truncated mid-frame")

// UnknownModelError reports a model id that matches no registered family.
type UnknownModelError struct {
	ModelID string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("ocigenai: unknown model %q", e.ModelID)
}

// BatchSizeExceededError is returned before any network call when a batch
// operation carries more items than the service accepts.
type BatchSizeExceededError struct {
	Requested int
	Max       int
}

func (e *BatchSizeExceededError) Error() string {
	return fmt.Sprintf("ocigenai: batch of %d items exceeds maximum of %d", e.Requested, e.Max)
}

// ValidationError reports a request the target family cannot express.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "ocigenai: invalid request: " + e.Reason
	}
	return fmt.Sprintf("ocigenai: invalid request: %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ResponseParseError reports a wire response that does not have the shape
// expected for Family. RawPayload is the offending body.
type ResponseParseError struct {
	Family     ModelFamily
	Operation  Operation
	RawPayload []byte
	Err        error
}

func (e *ResponseParseError) Error() string {
	return fmt.Sprintf("ocigenai: cannot parse %s response for family %s: %v (payload: %s)",
		e.Operation, e.Family, e.Err, utils.TruncateStringDefault(string(e.RawPayload)))
}

func (e *ResponseParseError) Unwrap() error {
	return e.Err
}

// StreamError carries an error frame sent by the service mid-stream.
type StreamError struct {
	Message    string
	RawPayload []byte
}

func (e *StreamError) Error() string {
	return "ocigenai: stream error: " + e.Message
}
