package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wirePayload struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

func TestDecodeResponsePureJSON(t *testing.T) {
	var out wirePayload
	result, err := DecodeResponse(`{"message": "ok", "count": 2}`, &out)

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "ok", out.Message)
	assert.Equal(t, 2, out.Count)
}

func TestDecodeResponseCodeFence(t *testing.T) {
	raw := "Sure, here is the result:\n```json\n{\"message\": \"fenced\", \"count\": 1}\n```\nAnything else?"

	var out wirePayload
	_, err := DecodeResponse(raw, &out)

	require.NoError(t, err)
	assert.Equal(t, "fenced", out.Message)
}

func TestDecodeResponseEmbeddedObject(t *testing.T) {
	raw := `The answer you wanted: {"message": "embedded", "count": 7} hope that helps`

	var out wirePayload
	_, err := DecodeResponse(raw, &out)

	require.NoError(t, err)
	assert.Equal(t, "embedded", out.Message)
	assert.Equal(t, 7, out.Count)
}

func TestDecodeResponseNoJSON(t *testing.T) {
	var out wirePayload
	_, err := DecodeResponse("no structured content here", &out)
	assert.Error(t, err)
}

func TestExtractJSONBraceMatching(t *testing.T) {
	raw := `prefix {"a": {"b": 1}} suffix`
	assert.Equal(t, `{"a": {"b": 1}}`, ExtractJSON(raw))
}

func TestExtractJSONIncompleteReturnsTail(t *testing.T) {
	raw := `prefix {"a": 1`
	assert.Equal(t, `{"a": 1`, ExtractJSON(raw))
}
