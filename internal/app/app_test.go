package app

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/empathlabs/aingest/internal/config"
)

func TestBuildRequestBody(t *testing.T) {
	body, err := buildRequestBody("gpt-4", "hello")
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(body, &payload))

	assert.Equal(t, "gpt-4", payload["model"])
	assert.Equal(t, true, payload["stream"])

	messages, ok := payload["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 1)
	message := messages[0].(map[string]any)
	assert.Equal(t, "user", message["role"])
	assert.Equal(t, "hello", message["content"])
}

func TestRequestHeaders(t *testing.T) {
	endpoint := config.EndpointConfig{
		APIKey:  "sk-test",
		Headers: map[string]string{"X-Custom": "yes"},
	}

	headers := requestHeaders(endpoint)
	assert.Equal(t, "Bearer sk-test", headers["Authorization"])
	assert.Equal(t, "yes", headers["X-Custom"])

	noKey := requestHeaders(config.EndpointConfig{})
	_, present := noKey["Authorization"]
	assert.False(t, present)
}

func TestReadPrompt_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.txt")
	require.NoError(t, os.WriteFile(path, []byte("  what is 2+2?  \n"), 0o644))

	prompt, err := readPrompt(path)
	require.NoError(t, err)
	assert.Equal(t, "what is 2+2?", prompt)
}

func TestReadPrompt_MissingFile(t *testing.T) {
	_, err := readPrompt(filepath.Join(t.TempDir(), "nope.txt"))
	assert.ErrorContains(t, err, "read prompt file")
}
