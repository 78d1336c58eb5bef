package copilot

import (
	"context"
	"time"

	"github.com/waveline/internal/workspace"
)

// WorkspaceStore is the slice of the tenant configuration store the copilot
// core depends on. *workspace.Store satisfies it.
type WorkspaceStore interface {
	GetWorkspace(ctx context.Context, id int64) (*workspace.Workspace, error)
	UpdateRoutingDefaultIfUnset(ctx context.Context, workspaceID int64, persona workspace.Persona, programID int64) (bool, error)
	SetOutboundPause(ctx context.Context, workspaceID int64, until time.Time) error

	CreateProgram(ctx context.Context, p *workspace.Program) error
	GetProgram(ctx context.Context, workspaceID, id int64) (*workspace.Program, error)
	FindProgramBySlug(ctx context.Context, workspaceID int64, slug string) (*workspace.Program, error)
	FindProgramByPersona(ctx context.Context, workspaceID int64, persona workspace.Persona) (*workspace.Program, error)
	ListPrograms(ctx context.Context, workspaceID int64) ([]*workspace.Program, error)
	UpdateProgramInstructions(ctx context.Context, workspaceID, id int64, instructions string) error
	NextProgramSlug(ctx context.Context, workspaceID int64, base string) (string, error)

	CreatePhoneLine(ctx context.Context, l *workspace.PhoneLine) error
	GetPhoneLine(ctx context.Context, workspaceID, id int64) (*workspace.PhoneLine, error)
	FindPhoneLineByNumber(ctx context.Context, workspaceID int64, waPhoneNumberID string) (*workspace.PhoneLine, error)
	ListPhoneLines(ctx context.Context, workspaceID int64) ([]*workspace.PhoneLine, error)
	SetPhoneLineDefaultProgram(ctx context.Context, workspaceID, lineID, programID int64) error
	SeedPhoneLineDefaults(ctx context.Context, workspaceID, programID int64) (int64, error)

	UpsertMembership(ctx context.Context, workspaceID int64, email, role string) (*workspace.Membership, bool, error)
	CreateInvite(ctx context.Context, inv *workspace.Invite) error

	CreateAutomationRule(ctx context.Context, r *workspace.AutomationRule) error
	ListAutomationRules(ctx context.Context, workspaceID int64) ([]*workspace.AutomationRule, error)
	FindEnabledAutomationRule(ctx context.Context, workspaceID int64, trigger, action string) (*workspace.AutomationRule, error)

	UpsertStage(ctx context.Context, st *workspace.Stage) (bool, error)
	ClearStageDefaults(ctx context.Context, workspaceID int64, keepSlug string) (int64, error)
	ListStages(ctx context.Context, workspaceID int64) ([]*workspace.Stage, error)
}

// TransactionalStore can additionally run a function inside one atomic
// transaction. The bootstrap orchestrator runs all its seeding steps through
// InTransaction so a partial run is never visible.
type TransactionalStore interface {
	WorkspaceStore
	InTransaction(ctx context.Context, fn func(WorkspaceStore) error) error
}

// StoreAdapter adapts *workspace.Store to TransactionalStore
type StoreAdapter struct {
	*workspace.Store
}

// InTransaction runs fn against a transaction-bound store
func (a StoreAdapter) InTransaction(ctx context.Context, fn func(WorkspaceStore) error) error {
	return a.Store.Transact(ctx, func(tx *workspace.Store) error {
		return fn(tx)
	})
}

// Notifier dispatches asynchronous notifications. Enqueue failures are logged
// by callers and never fail the triggering command.
type Notifier interface {
	EnqueueInviteEmail(ctx context.Context, workspaceID int64, email, role, token string) error
	EnqueueOutboundPauseAlert(ctx context.Context, workspaceID, operatorID int64, until time.Time) error
}
