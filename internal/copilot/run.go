package copilot

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RunStatus is the wire-visible state of one assistant turn.
//
// Transitions: RUNNING → {SUCCESS, ERROR, PENDING_CONFIRMATION};
// PENDING_CONFIRMATION → {EXECUTING, CANCELLED}; EXECUTING → {EXECUTED, ERROR}.
// SUCCESS, ERROR, EXECUTED and CANCELLED are terminal.
type RunStatus string

const (
	RunRunning             RunStatus = "RUNNING"
	RunSuccess             RunStatus = "SUCCESS"
	RunError               RunStatus = "ERROR"
	RunPendingConfirmation RunStatus = "PENDING_CONFIRMATION"
	RunExecuting           RunStatus = "EXECUTING"
	RunExecuted            RunStatus = "EXECUTED"
	RunCancelled           RunStatus = "CANCELLED"
)

// Terminal reports whether a status admits no further transitions
func (s RunStatus) Terminal() bool {
	switch s {
	case RunSuccess, RunError, RunExecuted, RunCancelled:
		return true
	}
	return false
}

// CommandResult is the outcome of executing one command
type CommandResult struct {
	Type       CommandType     `json:"type"`
	OK         bool            `json:"ok"`
	Error      string          `json:"error,omitempty"`
	EntityKind string          `json:"entityKind,omitempty"`
	EntityID   int64           `json:"entityId,omitempty"`
	URL        string          `json:"url,omitempty"`
	Detail     string          `json:"detail,omitempty"`
	Steps      []BootstrapStep `json:"steps,omitempty"`
	Checks     []SmokeCheck    `json:"checks,omitempty"`
}

// Run is one assistant turn's persisted record. The proposal list is
// immutable once persisted; only status, results, response text and error
// are appended afterwards.
type Run struct {
	ID           string          `json:"id"`
	WorkspaceID  int64           `json:"workspace_id"`
	ThreadID     *string         `json:"thread_id,omitempty"`
	OperatorID   int64           `json:"operator_id"`
	InputText    string          `json:"input_text"`
	Status       RunStatus       `json:"status"`
	ResponseText string          `json:"response_text"`
	Actions      []Action        `json:"actions,omitempty"`
	Proposals    []Proposal      `json:"proposals,omitempty"`
	Results      []CommandResult `json:"results,omitempty"`
	Error        *string         `json:"error,omitempty"`
	ConfirmedAt  *time.Time      `json:"confirmed_at,omitempty"`
	ConfirmedBy  *int64          `json:"confirmed_by,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// NewRun creates a run in RUNNING state for an inbound operator message
func NewRun(workspaceID, operatorID int64, threadID, inputText string) *Run {
	now := time.Now()
	return &Run{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		ThreadID:    &threadID,
		OperatorID:  operatorID,
		InputText:   inputText,
		Status:      RunRunning,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// ProposalByID returns the proposal with the given id, or the first proposal
// when id is empty
func (r *Run) ProposalByID(id string) *Proposal {
	if len(r.Proposals) == 0 {
		return nil
	}
	if id == "" {
		return &r.Proposals[0]
	}
	for i := range r.Proposals {
		if r.Proposals[i].ID == id {
			return &r.Proposals[i]
		}
	}
	return nil
}

// RunStore persists runs. The Claim/Cancel methods are the concurrency core:
// both are single-row conditional updates that succeed for exactly one caller
// when racing.
type RunStore interface {
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, workspaceID int64, id string) (*Run, error)

	// FinishRun persists the resolution of the classification phase:
	// status, response text, actions, proposals and error.
	FinishRun(ctx context.Context, run *Run) error

	// ClaimRun transitions PENDING_CONFIRMATION → EXECUTING and stamps
	// confirmedAt/confirmedBy, but only if the current status is exactly
	// PENDING_CONFIRMATION. Returns false when the conditional update
	// affected no row.
	ClaimRun(ctx context.Context, workspaceID int64, id string, operatorID int64) (bool, error)

	// CancelRun is the sibling conditional update PENDING_CONFIRMATION →
	// CANCELLED with the same at-most-once semantics.
	CancelRun(ctx context.Context, workspaceID int64, id string, operatorID int64) (bool, error)

	// FinalizeExecution persists the execution outcome: status, results,
	// response text, actions and error.
	FinalizeExecution(ctx context.Context, run *Run) error

	ListRunsByThread(ctx context.Context, workspaceID int64, threadID string) ([]*Run, error)
}
