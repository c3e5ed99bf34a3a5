package utils

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/kaptinlin/jsonrepair"
)

// ParseJSONAs unmarshals content into T. When the content is not valid JSON
// (truncated tool-call arguments, single quotes, trailing commas) it is run
// through jsonrepair and decoded again.
//
// Example:
//
//	args, err := ParseJSONAs[map[string]any](`{city: 'Rome',}`)
func ParseJSONAs[T any](content string) (T, error) {
	var result T

	err := json.Unmarshal([]byte(content), &result)
	if err == nil {
		return result, nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(content)
	if repairErr != nil {
		return result, fmt.Errorf("failed to unmarshal content as %T and failed to repair JSON: unmarshal error: %w, repair error: %v", result, err, repairErr)
	}

	if err = json.Unmarshal([]byte(repaired), &result); err != nil {
		return result, fmt.Errorf("failed to unmarshal repaired JSON as %T: %w (repaired: %s)", result, err, TruncateStringDefault(repaired))
	}
	return result, nil
}

// RepairJSON returns content unchanged when it is valid JSON, otherwise the
// jsonrepair output. The second result reports whether the returned string is
// valid JSON.
func RepairJSON(content string) (string, bool) {
	if content == "" || json.Valid([]byte(content)) {
		return content, content != ""
	}

	repaired, err := jsonrepair.JSONRepair(content)
	if err != nil || !json.Valid([]byte(repaired)) {
		return content, false
	}
	return repaired, true
}
