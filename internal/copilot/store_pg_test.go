package copilot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBlobToleratesCorruptData(t *testing.T) {
	var proposals []Proposal
	decodeBlob([]byte(`{"definitely":"not a proposal list"`), &proposals, "run.proposals")
	assert.Empty(t, proposals, "a corrupt stored blob must read back as empty")

	var results []CommandResult
	decodeBlob([]byte(`[{"type":`), &results, "run.results")
	assert.Empty(t, results)

	decodeBlob(nil, &proposals, "run.proposals")
	assert.Empty(t, proposals)
}

func TestDecodeBlobReadsValidData(t *testing.T) {
	var actions []Action
	decodeBlob([]byte(`[{"type":"OPEN_PROGRAMS","label":"Programs","url":"/programs"}]`), &actions, "run.actions")
	require.Len(t, actions, 1)
	assert.Equal(t, ActionOpenPrograms, actions[0].Type)
}

func TestEncodeBlobStoresNullForEmptyValues(t *testing.T) {
	assert.Nil(t, encodeBlob(nil))
	assert.Nil(t, encodeBlob([]Proposal(nil)))
	assert.Nil(t, encodeBlob([]Action{}))

	b, ok := encodeBlob([]Action{{Type: ActionOpenUsers, Label: "Users", URL: "/users"}}).([]byte)
	require.True(t, ok)
	assert.Contains(t, string(b), "OPEN_USERS")
}
