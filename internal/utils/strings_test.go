package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{name: "shorter than limit", input: "hello", maxLen: 10, want: "hello"},
		{name: "exact limit", input: "hello", maxLen: 5, want: "hello"},
		{name: "truncated", input: "hello world", maxLen: 5, want: "hello... (truncated, total: 11 chars)"},
		{name: "empty", input: "", maxLen: 3, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TruncateString(tt.input, tt.maxLen))
		})
	}
}

// TestTruncateString_NonPositiveLimitUsesDefault verifies that a zero limit
// falls back to DefaultMaxStringLength instead of truncating everything.
func TestTruncateString_NonPositiveLimitUsesDefault(t *testing.T) {
	short := strings.Repeat("a", DefaultMaxStringLength)
	assert.Equal(t, short, TruncateString(short, 0))

	long := strings.Repeat("b", DefaultMaxStringLength+1)
	got := TruncateString(long, -1)
	assert.True(t, strings.HasPrefix(got, strings.Repeat("b", DefaultMaxStringLength)+"..."))
	assert.Equal(t, got, TruncateStringDefault(long))
}
