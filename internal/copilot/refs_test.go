package copilot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefRegistryBindAndResolve(t *testing.T) {
	r := NewRefRegistry()

	require.NoError(t, r.Bind("bot", RefProgram, 42))

	id, err := r.Resolve("bot", RefProgram)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestRefRegistryEmptyNameIsNoOp(t *testing.T) {
	r := NewRefRegistry()

	require.NoError(t, r.Bind("", RefProgram, 1))

	_, err := r.Resolve("", RefProgram)
	assert.Error(t, err)
}

func TestRefRegistryRebindFails(t *testing.T) {
	r := NewRefRegistry()

	require.NoError(t, r.Bind("line1", RefPhoneLine, 7))
	err := r.Bind("line1", RefPhoneLine, 8)

	require.Error(t, err)
	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindValidation, kind)
}

func TestRefRegistryKindMismatch(t *testing.T) {
	r := NewRefRegistry()

	require.NoError(t, r.Bind("bot", RefProgram, 42))
	_, err := r.Resolve("bot", RefPhoneLine)

	require.Error(t, err)
	kind, _ := KindOf(err)
	assert.Equal(t, KindValidation, kind)
}

func TestRefRegistryUnknownName(t *testing.T) {
	r := NewRefRegistry()

	_, err := r.Resolve("missing", RefProgram)

	require.Error(t, err)
	kind, _ := KindOf(err)
	assert.Equal(t, KindNotFound, kind)
}
