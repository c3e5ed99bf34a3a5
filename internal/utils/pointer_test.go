package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPtr verifies that Ptr returns a pointer to a copy of the input.
func TestPtr(t *testing.T) {
	value := 42
	result := Ptr(value)
	require.NotNil(t, result)
	assert.Equal(t, 42, *result)

	*result = 7
	assert.Equal(t, 42, value, "Ptr must not alias the original variable")

	assert.Equal(t, "hello", *Ptr("hello"))
	assert.InDelta(t, 0.5, *Ptr(0.5), 1e-9)
}
