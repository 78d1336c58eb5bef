package workspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJSONOrNullMapsEmptyParamsToNull(t *testing.T) {
	assert.Nil(t, jsonOrNull(""), "empty params must be written as NULL, jsonb rejects empty input")
	assert.Equal(t, `{"programId":4}`, jsonOrNull(`{"programId":4}`))
}
