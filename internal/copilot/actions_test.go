package copilot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesizeActions(t *testing.T) {
	results := []CommandResult{
		{Type: CmdCreateProgram, OK: true, EntityKind: "program", EntityID: 12},
		{Type: CmdCreatePhoneLine, OK: true, EntityKind: "phone_line", EntityID: 3},
		{Type: CmdInviteUser, OK: true, EntityKind: "invite", EntityID: 8},
	}

	actions := SynthesizeActions(results)
	require.Len(t, actions, 3)
	assert.Equal(t, ActionOpenPrograms, actions[0].Type)
	assert.Equal(t, "/programs/12", actions[0].URL)
	assert.Equal(t, ActionOpenPhoneLines, actions[1].Type)
	assert.Equal(t, ActionOpenUsers, actions[2].Type)
}

func TestSynthesizeActionsSkipsFailures(t *testing.T) {
	results := []CommandResult{
		{Type: CmdCreateProgram, OK: false, Error: "boom"},
	}
	assert.Empty(t, SynthesizeActions(results))
}

func TestSynthesizeActionsDeduplicatesViews(t *testing.T) {
	results := []CommandResult{
		{Type: CmdCreateProgram, OK: true, EntityID: 1},
		{Type: CmdCreateProgram, OK: true, EntityID: 2},
	}

	actions := SynthesizeActions(results)
	require.Len(t, actions, 1)
	assert.Equal(t, "/programs/1", actions[0].URL, "first result wins the focus")
}

func TestSynthesizeActionsDownloadLink(t *testing.T) {
	results := []CommandResult{
		{Type: CmdDownloadReviewPack, OK: true, URL: "/api/v1/workspaces/10/review-pack"},
	}

	actions := SynthesizeActions(results)
	require.Len(t, actions, 1)
	assert.Equal(t, ActionDownload, actions[0].Type)
	assert.Equal(t, "/api/v1/workspaces/10/review-pack", actions[0].URL)
}
