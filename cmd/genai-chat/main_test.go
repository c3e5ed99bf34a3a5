package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leofalp/ocigenai/config"
	"github.com/leofalp/ocigenai/providers/ai"
)

func TestBuildRequest(t *testing.T) {
	request := buildRequest(options{temperature: -1}, []string{"hello", "there"})

	require.Len(t, request.Messages, 1)
	assert.Equal(t, ai.RoleUser, request.Messages[0].Role)
	assert.Equal(t, "hello there", request.Messages[0].Text())
	assert.Nil(t, request.GenerationConfig)

	tuned := buildRequest(options{maxTokens: 128, temperature: 0}, []string{"x"})
	require.NotNil(t, tuned.GenerationConfig)
	assert.Equal(t, 128, *tuned.GenerationConfig.MaxOutputTokens)
	assert.Equal(t, 0.0, *tuned.GenerationConfig.Temperature)
}

func TestRun_MissingCommand(t *testing.T) {
	err := run(context.Background(), nil, &bytes.Buffer{})

	assert.EqualError(t, err, "missing command")
}

// TestRun_InvalidConfiguration verifies configuration errors surface before
// any request is made.
func TestRun_InvalidConfiguration(t *testing.T) {
	t.Setenv("OCI_REGION", "")
	t.Setenv("OCI_GENAI_ENDPOINT", "")
	t.Setenv("OCI_COMPARTMENT_ID", "")

	err := run(context.Background(), []string{"chat", "--env-file", t.TempDir() + "/none.env", "hi"}, &bytes.Buffer{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration")
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Empty(t, firstNonEmpty("", ""))
}

func TestCallTimeout(t *testing.T) {
	cfg := config.Default()
	cfg.Timeout = "1s"
	cfg.MaxRetries = 0

	assert.Equal(t, time.Second, callTimeout(options{}, cfg))
	assert.Equal(t, 5*time.Second, callTimeout(options{timeout: 5 * time.Second}, cfg))
	assert.Zero(t, callTimeout(options{}, config.Default()))
}
