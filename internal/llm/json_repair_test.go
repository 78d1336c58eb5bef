package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepairJSONValidInputUntouched(t *testing.T) {
	input := `{"message": "hola", "proposals": []}`

	repaired, stats, err := RepairJSON(input)
	require.NoError(t, err)
	assert.Equal(t, input, repaired)
	assert.False(t, stats.WasRepaired)
}

func TestRepairJSONTrailingCommas(t *testing.T) {
	input := `{"a": 1, "b": [1, 2,],}`

	repaired, stats, err := RepairJSON(input)
	require.NoError(t, err)
	assert.True(t, stats.WasRepaired)
	assert.Contains(t, stats.RepairStrategies, "trailing_commas")

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(repaired), &out))
	assert.Equal(t, float64(1), out["a"])
}

func TestRepairJSONIncompleteObject(t *testing.T) {
	input := `{"message": "truncated", "proposals": [{"title": "x"`

	repaired, stats, err := RepairJSON(input)
	require.NoError(t, err)
	assert.Contains(t, stats.RepairStrategies, "completion")

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(repaired), &out))
	assert.Equal(t, "truncated", out["message"])
}

func TestRepairJSONUnquotedKeys(t *testing.T) {
	input := `{message: "hola", count: 3}`

	repaired, stats, err := RepairJSON(input)
	require.NoError(t, err)
	assert.True(t, stats.WasRepaired)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(repaired), &out))
	assert.Equal(t, "hola", out["message"])
	assert.Equal(t, float64(3), out["count"])
}

func TestRepairJSONComments(t *testing.T) {
	input := "{\n  \"a\": 1, // inline note\n  \"b\": 2\n}"

	repaired, stats, err := RepairJSON(input)
	require.NoError(t, err)
	assert.Contains(t, stats.RepairStrategies, "comments_removed")

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(repaired), &out))
	assert.Equal(t, float64(2), out["b"])
}
