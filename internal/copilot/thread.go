package copilot

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// FollowUpKind identifies which deferred listing a pending follow-up offers
type FollowUpKind string

const (
	FollowUpListAutomations FollowUpKind = "LIST_AUTOMATIONS"
	FollowUpListPrograms    FollowUpKind = "LIST_PROGRAMS"
)

// followUpTTL bounds how long a pending follow-up stays answerable. A
// pending intent older than this is ignored and cleared on the next read.
const followUpTTL = 10 * time.Minute

// PendingFollowUp records a deferred yes/no intent on a thread, so a short
// answer on the next turn can be resolved without re-deriving intent
type PendingFollowUp struct {
	Kind      FollowUpKind `json:"kind"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Expired reports whether the pending intent is too old to honor
func (p *PendingFollowUp) Expired(now time.Time) bool {
	return now.Sub(p.CreatedAt) > followUpTTL
}

// Thread is a multi-turn conversation between one operator and the assistant
type Thread struct {
	ID              string           `json:"id"`
	WorkspaceID     int64            `json:"workspace_id"`
	OperatorID      int64            `json:"operator_id"`
	Title           string           `json:"title"`
	Archived        bool             `json:"archived"`
	PendingFollowUp *PendingFollowUp `json:"pending_follow_up,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// NewThread creates a thread for an operator, titled from the first message
func NewThread(workspaceID, operatorID int64, title string) *Thread {
	now := time.Now()
	return &Thread{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		OperatorID:  operatorID,
		Title:       truncateTitle(title),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func truncateTitle(s string) string {
	const maxTitle = 80
	if len(s) <= maxTitle {
		return s
	}
	return s[:maxTitle-1] + "…"
}

// ThreadStore persists conversation threads
type ThreadStore interface {
	CreateThread(ctx context.Context, t *Thread) error
	GetThread(ctx context.Context, workspaceID int64, id string) (*Thread, error)
	ListThreads(ctx context.Context, workspaceID, operatorID int64) ([]*Thread, error)

	// SetPendingFollowUp replaces (or clears, with nil) the thread's pending
	// intent and bumps updatedAt
	SetPendingFollowUp(ctx context.Context, workspaceID int64, id string, p *PendingFollowUp) error

	SetArchived(ctx context.Context, workspaceID int64, id string, archived bool) error
	Touch(ctx context.Context, workspaceID int64, id string) error
}
