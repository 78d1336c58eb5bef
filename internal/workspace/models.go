package workspace

import (
	"time"
)

// Persona distinguishes who a program talks to
type Persona string

const (
	PersonaClient Persona = "CLIENT"
	PersonaStaff  Persona = "STAFF"
)

// Automation rule triggers and actions
const (
	TriggerInboundMessage = "INBOUND_MESSAGE"
	TriggerStageReached   = "STAGE_REACHED"

	ActionRunAgent = "RUN_AGENT"
	ActionNotify   = "NOTIFY"
)

// Workspace represents a tenant and its routing defaults
type Workspace struct {
	ID                     int64      `json:"id" db:"id"`
	Name                   string     `json:"name" db:"name"`
	DefaultClientProgramID *int64     `json:"default_client_program_id,omitempty" db:"default_client_program_id"`
	DefaultStaffProgramID  *int64     `json:"default_staff_program_id,omitempty" db:"default_staff_program_id"`
	OutboundPausedUntil    *time.Time `json:"outbound_paused_until,omitempty" db:"outbound_paused_until"`
	CreatedAt              time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at" db:"updated_at"`
}

// OutboundPaused reports whether outbound messaging is currently paused
func (w *Workspace) OutboundPaused(now time.Time) bool {
	return w.OutboundPausedUntil != nil && w.OutboundPausedUntil.After(now)
}

// Program is an agent configuration. Slug is unique per workspace.
type Program struct {
	ID           int64     `json:"id" db:"id"`
	WorkspaceID  int64     `json:"workspace_id" db:"workspace_id"`
	Name         string    `json:"name" db:"name"`
	Slug         string    `json:"slug" db:"slug"`
	Persona      Persona   `json:"persona" db:"persona"`
	Instructions string    `json:"instructions" db:"instructions"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// PhoneLine is a WhatsApp business number attached to a workspace.
// WaPhoneNumberID is unique across all active lines, across tenants.
type PhoneLine struct {
	ID               int64     `json:"id" db:"id"`
	WorkspaceID      int64     `json:"workspace_id" db:"workspace_id"`
	Label            string    `json:"label" db:"label"`
	WaPhoneNumberID  string    `json:"wa_phone_number_id" db:"wa_phone_number_id"`
	DefaultProgramID *int64    `json:"default_program_id,omitempty" db:"default_program_id"`
	Active           bool      `json:"active" db:"active"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// AutomationRule connects a trigger to an action for a workspace
type AutomationRule struct {
	ID          int64     `json:"id" db:"id"`
	WorkspaceID int64     `json:"workspace_id" db:"workspace_id"`
	Name        string    `json:"name" db:"name"`
	Trigger     string    `json:"trigger" db:"trigger"`
	Action      string    `json:"action" db:"action"`
	Params      string    `json:"params,omitempty" db:"params"` // JSON blob, tolerant-decoded by consumers
	Enabled     bool      `json:"enabled" db:"enabled"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Membership binds an operator (by email) to a workspace role.
// Email is unique per workspace.
type Membership struct {
	ID          int64     `json:"id" db:"id"`
	WorkspaceID int64     `json:"workspace_id" db:"workspace_id"`
	Email       string    `json:"email" db:"email"`
	Role        string    `json:"role" db:"role"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Invite is a pending email invitation to join a workspace
type Invite struct {
	ID          int64     `json:"id" db:"id"`
	WorkspaceID int64     `json:"workspace_id" db:"workspace_id"`
	Email       string    `json:"email" db:"email"`
	Role        string    `json:"role" db:"role"`
	Token       string    `json:"-" db:"token"`
	ExpiresAt   time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Stage is one step of the workspace pipeline. Slug is unique per workspace;
// exactly one stage per workspace is the default.
type Stage struct {
	ID          int64     `json:"id" db:"id"`
	WorkspaceID int64     `json:"workspace_id" db:"workspace_id"`
	Name        string    `json:"name" db:"name"`
	Slug        string    `json:"slug" db:"slug"`
	Position    int       `json:"position" db:"position"`
	IsDefault   bool      `json:"is_default" db:"is_default"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
