package copilot

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waveline/internal/api/auth"
	"github.com/waveline/internal/workspace"
)

const testWorkspaceID = int64(10)

func ownerContext() *auth.OperatorContext {
	return &auth.OperatorContext{
		OperatorID:  1,
		Email:       "owner@example.com",
		WorkspaceID: testWorkspaceID,
		Role:        auth.RoleOwner,
	}
}

func adminContext() *auth.OperatorContext {
	return &auth.OperatorContext{
		OperatorID:  2,
		Email:       "admin@example.com",
		WorkspaceID: testWorkspaceID,
		Role:        auth.RoleAdmin,
	}
}

func TestExecuteCreateProgramGeneratesUniqueSlug(t *testing.T) {
	store := newFakeStore(testWorkspaceID)
	exec := NewExecutor(store, nil)

	cmds := []Command{
		{Type: CmdCreateProgram, Name: "Intake Bot", AgentSystemPrompt: "help clients"},
		{Type: CmdCreateProgram, Name: "Intake Bot", AgentSystemPrompt: "help clients again"},
	}
	outcome := exec.Execute(context.Background(), ownerContext(), cmds)

	require.True(t, outcome.OK)
	require.Len(t, outcome.Results, 2)
	p1, err := store.FindProgramBySlug(context.Background(), testWorkspaceID, "intake-bot")
	require.NoError(t, err)
	p2, err := store.FindProgramBySlug(context.Background(), testWorkspaceID, "intake-bot-2")
	require.NoError(t, err)
	assert.NotEqual(t, p1.ID, p2.ID)
	assert.True(t, strings.HasPrefix(outcome.Summary[0], "✅ "))
}

func TestExecuteReferenceChain(t *testing.T) {
	store := newFakeStore(testWorkspaceID)
	exec := NewExecutor(store, nil)

	cmds := []Command{
		{Type: CmdCreateProgram, Ref: "bot", Name: "Intake Bot", AgentSystemPrompt: "x"},
		{Type: CmdCreatePhoneLine, Ref: "line1", Label: "Main", WaPhoneNumberID: "1555001"},
		{Type: CmdSetPhoneLineDefaultProgram, PhoneLineRef: "line1", ProgramRef: "bot"},
	}
	outcome := exec.Execute(context.Background(), ownerContext(), cmds)

	require.True(t, outcome.OK)
	require.Len(t, outcome.Results, 3)

	line, err := store.FindPhoneLineByNumber(context.Background(), testWorkspaceID, "1555001")
	require.NoError(t, err)
	require.NotNil(t, line.DefaultProgramID)
	assert.Equal(t, outcome.Results[0].EntityID, *line.DefaultProgramID)
}

func TestExecuteFailFastStopsRemainingCommands(t *testing.T) {
	store := newFakeStore(testWorkspaceID)
	exec := NewExecutor(store, nil)

	// Second command collides on the active number; the third must never run.
	cmds := []Command{
		{Type: CmdCreatePhoneLine, Label: "Main", WaPhoneNumberID: "1555001"},
		{Type: CmdCreatePhoneLine, Label: "Duplicate", WaPhoneNumberID: "1555001"},
		{Type: CmdCreateProgram, Name: "Never Created", AgentSystemPrompt: "x"},
	}
	outcome := exec.Execute(context.Background(), ownerContext(), cmds)

	assert.False(t, outcome.OK)
	require.Len(t, outcome.Results, 2)
	assert.True(t, outcome.Results[0].OK)
	assert.False(t, outcome.Results[1].OK)
	assert.NotEmpty(t, outcome.Results[1].Error)
	assert.True(t, strings.HasPrefix(outcome.Summary[1], "❌ "))

	_, err := store.FindProgramBySlug(context.Background(), testWorkspaceID, "never-created")
	assert.ErrorIs(t, err, workspace.ErrNotFound)
}

func TestExecutePrivilegedCommandRequiresOwner(t *testing.T) {
	store := newFakeStore(testWorkspaceID)
	exec := NewExecutor(store, nil)

	cmds := []Command{
		{Type: CmdTempOffOutbound, Minutes: 30},
	}
	outcome := exec.Execute(context.Background(), adminContext(), cmds)

	assert.False(t, outcome.OK)
	require.Len(t, outcome.Results, 1)
	assert.Contains(t, outcome.Results[0].Error, "owner")

	ws, err := store.GetWorkspace(context.Background(), testWorkspaceID)
	require.NoError(t, err)
	assert.Nil(t, ws.OutboundPausedUntil)
}

func TestExecuteTempOffOutbound(t *testing.T) {
	store := newFakeStore(testWorkspaceID)
	notifier := &fakeNotifier{}
	exec := NewExecutor(store, notifier)

	outcome := exec.Execute(context.Background(), ownerContext(), []Command{
		{Type: CmdTempOffOutbound, Minutes: 60},
	})

	require.True(t, outcome.OK)
	ws, err := store.GetWorkspace(context.Background(), testWorkspaceID)
	require.NoError(t, err)
	require.NotNil(t, ws.OutboundPausedUntil)
	assert.True(t, ws.OutboundPaused(time.Now()))
	assert.Equal(t, 1, notifier.pauseAlerts)
}

func TestExecuteInviteEnqueuesEmail(t *testing.T) {
	store := newFakeStore(testWorkspaceID)
	notifier := &fakeNotifier{}
	exec := NewExecutor(store, notifier)

	outcome := exec.Execute(context.Background(), ownerContext(), []Command{
		{Type: CmdInviteUser, Email: "ana@example.com", Role: "AGENT"},
	})

	require.True(t, outcome.OK)
	assert.Equal(t, []string{"ana@example.com"}, notifier.invites)
	require.Len(t, store.invites, 1)
	assert.NotEmpty(t, store.invites[0].Token)
	assert.True(t, store.invites[0].ExpiresAt.After(time.Now()))
}

func TestExecuteInviteSurvivesNotifierFailure(t *testing.T) {
	store := newFakeStore(testWorkspaceID)
	notifier := &fakeNotifier{enqueueError: assert.AnError}
	exec := NewExecutor(store, notifier)

	outcome := exec.Execute(context.Background(), ownerContext(), []Command{
		{Type: CmdInviteUser, Email: "ana@example.com", Role: "AGENT"},
	})

	assert.True(t, outcome.OK)
	assert.Len(t, store.invites, 1)
}

func TestExecuteMembershipUpsert(t *testing.T) {
	store := newFakeStore(testWorkspaceID)
	exec := NewExecutor(store, nil)

	outcome := exec.Execute(context.Background(), ownerContext(), []Command{
		{Type: CmdUpsertMembership, Email: "ana@example.com", Role: "AGENT"},
	})
	require.True(t, outcome.OK)
	assert.Equal(t, "membership created", outcome.Results[0].Detail)

	outcome = exec.Execute(context.Background(), ownerContext(), []Command{
		{Type: CmdUpsertMembership, Email: "ana@example.com", Role: "ADMIN"},
	})
	require.True(t, outcome.OK)
	assert.Equal(t, "role updated", outcome.Results[0].Detail)
	require.Len(t, store.memberships, 1)
	assert.Equal(t, "ADMIN", store.memberships[0].Role)
}

func TestExecuteSmokeScenarios(t *testing.T) {
	store := newFakeStore(testWorkspaceID)
	exec := NewExecutor(store, nil)

	outcome := exec.Execute(context.Background(), ownerContext(), []Command{
		{Type: CmdRunSmokeScenarios},
	})

	require.True(t, outcome.OK)
	require.NotEmpty(t, outcome.Results[0].Checks)
	// Empty tenant: every check fails but the scenario run itself succeeds.
	for _, check := range outcome.Results[0].Checks {
		assert.False(t, check.OK, "check %s", check.Name)
	}
}

func TestExecuteDownloadReviewPack(t *testing.T) {
	store := newFakeStore(testWorkspaceID)
	exec := NewExecutor(store, nil)

	outcome := exec.Execute(context.Background(), ownerContext(), []Command{
		{Type: CmdDownloadReviewPack},
	})

	require.True(t, outcome.OK)
	assert.Contains(t, outcome.Results[0].URL, "/review-pack")
}

func TestExecuteUnknownRefFails(t *testing.T) {
	store := newFakeStore(testWorkspaceID)
	exec := NewExecutor(store, nil)

	outcome := exec.Execute(context.Background(), ownerContext(), []Command{
		{Type: CmdSetPhoneLineDefaultProgram, PhoneLineRef: "ghost", ProgramID: 1},
	})

	assert.False(t, outcome.OK)
	assert.Contains(t, outcome.Results[0].Error, "ghost")
}
