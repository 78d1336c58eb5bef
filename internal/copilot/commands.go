package copilot

import (
	"fmt"
	"strings"

	"github.com/waveline/internal/api/auth"
)

// CommandType tags each command variant. The set is closed: anything else is
// a validation error, never silently ignored.
type CommandType string

const (
	CmdCreateProgram              CommandType = "CREATE_PROGRAM"
	CmdCreateAutomation           CommandType = "CREATE_AUTOMATION"
	CmdCreatePhoneLine            CommandType = "CREATE_PHONE_LINE"
	CmdSetPhoneLineDefaultProgram CommandType = "SET_PHONE_LINE_DEFAULT_PROGRAM"
	CmdUpsertMembership           CommandType = "CREATE_OR_UPDATE_USER_MEMBERSHIP"
	CmdInviteUser                 CommandType = "INVITE_USER_BY_EMAIL"
	CmdTempOffOutbound            CommandType = "TEMP_OFF_OUTBOUND"
	CmdRunSmokeScenarios          CommandType = "RUN_SMOKE_SCENARIOS"
	CmdDownloadReviewPack         CommandType = "DOWNLOAD_REVIEW_PACK"
	CmdWorkspaceBootstrap         CommandType = "WORKSPACE_BOOTSTRAP_BUNDLE"
)

// privilegedCommands require the owner role, re-checked at execution time
var privilegedCommands = map[CommandType]bool{
	CmdUpsertMembership:   true,
	CmdInviteUser:         true,
	CmdTempOffOutbound:    true,
	CmdWorkspaceBootstrap: true,
}

// IsPrivileged reports whether a command type requires the owner role
func IsPrivileged(t CommandType) bool {
	return privilegedCommands[t]
}

// Bootstrap gates and scopes
const (
	GatePhoneLine     = "phoneLine"
	GatePrograms      = "programs"
	GateRouting       = "routing"
	GateUsers         = "users"
	GateAutomations   = "automations"
	GateNotifications = "notifications"
	GateSmoke         = "smoke"
	GateGoLive        = "goLive"

	ScopeFixGate = "FIX_GATE"
	ScopeGoLive  = "GO_LIVE"
	ScopeFull    = "FULL"
)

var validGates = map[string]bool{
	GatePhoneLine: true, GatePrograms: true, GateRouting: true, GateUsers: true,
	GateAutomations: true, GateNotifications: true, GateSmoke: true, GateGoLive: true,
}

// Command is one typed mutation request within a proposal. Payload fields are
// flat; Validate enforces the per-type schema at the boundary before any
// command reaches the executor.
type Command struct {
	Type CommandType `json:"type"`
	// Ref declares a symbolic name for the entity this command creates, so
	// later commands in the same proposal can consume it
	Ref string `json:"ref,omitempty"`

	// CREATE_PROGRAM
	Name              string `json:"name,omitempty"`
	Persona           string `json:"persona,omitempty"`
	AgentSystemPrompt string `json:"agentSystemPrompt,omitempty"`

	// CREATE_PHONE_LINE
	Label           string `json:"label,omitempty"`
	WaPhoneNumberID string `json:"waPhoneNumberId,omitempty"`

	// Program references (CREATE_PHONE_LINE, SET_PHONE_LINE_DEFAULT_PROGRAM,
	// CREATE_AUTOMATION)
	ProgramID   int64  `json:"programId,omitempty"`
	ProgramRef  string `json:"programRef,omitempty"`
	ProgramSlug string `json:"programSlug,omitempty"`

	// Phone line references (SET_PHONE_LINE_DEFAULT_PROGRAM)
	PhoneLineID  int64  `json:"phoneLineId,omitempty"`
	PhoneLineRef string `json:"phoneLineRef,omitempty"`

	// CREATE_AUTOMATION
	Trigger string `json:"trigger,omitempty"`
	Action  string `json:"action,omitempty"`
	Params  string `json:"params,omitempty"`
	Enabled *bool  `json:"enabled,omitempty"`

	// CREATE_OR_UPDATE_USER_MEMBERSHIP, INVITE_USER_BY_EMAIL
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`

	// TEMP_OFF_OUTBOUND
	Minutes int `json:"minutes,omitempty"`

	// WORKSPACE_BOOTSTRAP_BUNDLE
	GateID string `json:"gateId,omitempty"`
	Scope  string `json:"scope,omitempty"`
}

// Proposal is an immutable, confirmable batch of commands offered by the
// assistant. A run may carry several proposals; at most one is executed.
type Proposal struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Summary  string    `json:"summary,omitempty"`
	Commands []Command `json:"commands"`
}

// MaxProposalsPerRun bounds how many proposals a single turn may offer
const MaxProposalsPerRun = 3

// Validate checks the per-type schema of a command
func (c *Command) Validate() error {
	switch c.Type {
	case CmdCreateProgram:
		if strings.TrimSpace(c.Name) == "" {
			return Validationf("CREATE_PROGRAM requires a name")
		}
		if strings.TrimSpace(c.AgentSystemPrompt) == "" {
			return Validationf("CREATE_PROGRAM requires agentSystemPrompt")
		}
		if c.Persona != "" && c.Persona != "CLIENT" && c.Persona != "STAFF" {
			return Validationf("CREATE_PROGRAM persona must be CLIENT or STAFF, got %q", c.Persona)
		}

	case CmdCreatePhoneLine:
		if strings.TrimSpace(c.Label) == "" {
			return Validationf("CREATE_PHONE_LINE requires a label")
		}
		if strings.TrimSpace(c.WaPhoneNumberID) == "" {
			return Validationf("CREATE_PHONE_LINE requires waPhoneNumberId")
		}

	case CmdSetPhoneLineDefaultProgram:
		if c.PhoneLineID == 0 && c.PhoneLineRef == "" && c.WaPhoneNumberID == "" {
			return Validationf("SET_PHONE_LINE_DEFAULT_PROGRAM requires phoneLineId, phoneLineRef or waPhoneNumberId")
		}
		if c.ProgramID == 0 && c.ProgramRef == "" && c.ProgramSlug == "" {
			return Validationf("SET_PHONE_LINE_DEFAULT_PROGRAM requires programId, programRef or programSlug")
		}

	case CmdCreateAutomation:
		if strings.TrimSpace(c.Name) == "" {
			return Validationf("CREATE_AUTOMATION requires a name")
		}
		if c.Trigger != "INBOUND_MESSAGE" && c.Trigger != "STAGE_REACHED" {
			return Validationf("CREATE_AUTOMATION trigger must be INBOUND_MESSAGE or STAGE_REACHED, got %q", c.Trigger)
		}
		if c.Action != "RUN_AGENT" && c.Action != "NOTIFY" {
			return Validationf("CREATE_AUTOMATION action must be RUN_AGENT or NOTIFY, got %q", c.Action)
		}

	case CmdUpsertMembership, CmdInviteUser:
		if !strings.Contains(c.Email, "@") {
			return Validationf("%s requires a valid email", c.Type)
		}
		if !auth.ValidRole(c.Role) {
			return Validationf("%s role must be OWNER, ADMIN or AGENT, got %q", c.Type, c.Role)
		}

	case CmdTempOffOutbound:
		if c.Minutes < 1 || c.Minutes > 240 {
			return Validationf("TEMP_OFF_OUTBOUND minutes must be between 1 and 240, got %d", c.Minutes)
		}

	case CmdRunSmokeScenarios, CmdDownloadReviewPack:
		// No payload

	case CmdWorkspaceBootstrap:
		switch c.Scope {
		case ScopeFixGate, ScopeGoLive, ScopeFull:
		default:
			return Validationf("WORKSPACE_BOOTSTRAP_BUNDLE scope must be FIX_GATE, GO_LIVE or FULL, got %q", c.Scope)
		}
		if c.Scope == ScopeFixGate && c.GateID == "" {
			return Validationf("WORKSPACE_BOOTSTRAP_BUNDLE with scope FIX_GATE requires gateId")
		}
		if c.GateID != "" && !validGates[c.GateID] {
			return Validationf("WORKSPACE_BOOTSTRAP_BUNDLE unknown gateId %q", c.GateID)
		}

	default:
		return Validationf("unknown command type %q", string(c.Type))
	}

	return nil
}

// ValidateProposal checks proposal shape and every contained command
func ValidateProposal(p *Proposal) error {
	if strings.TrimSpace(p.ID) == "" {
		return Validationf("proposal requires an id")
	}
	if strings.TrimSpace(p.Title) == "" {
		return Validationf("proposal %s requires a title", p.ID)
	}
	if len(p.Commands) == 0 {
		return Validationf("proposal %s has no commands", p.ID)
	}
	for i := range p.Commands {
		if err := p.Commands[i].Validate(); err != nil {
			return fmt.Errorf("proposal %s command %d: %w", p.ID, i+1, err)
		}
	}
	return nil
}

// Describe renders a short human-readable label for a command, used in
// execution summary lines
func (c *Command) Describe() string {
	switch c.Type {
	case CmdCreateProgram:
		return fmt.Sprintf("Create program %q", c.Name)
	case CmdCreatePhoneLine:
		return fmt.Sprintf("Connect phone line %q (%s)", c.Label, c.WaPhoneNumberID)
	case CmdSetPhoneLineDefaultProgram:
		return "Set phone line default program"
	case CmdCreateAutomation:
		return fmt.Sprintf("Create automation %q (%s → %s)", c.Name, c.Trigger, c.Action)
	case CmdUpsertMembership:
		return fmt.Sprintf("Set %s as %s", c.Email, c.Role)
	case CmdInviteUser:
		return fmt.Sprintf("Invite %s as %s", c.Email, c.Role)
	case CmdTempOffOutbound:
		return fmt.Sprintf("Pause outbound messages for %d minutes", c.Minutes)
	case CmdRunSmokeScenarios:
		return "Run smoke scenarios"
	case CmdDownloadReviewPack:
		return "Prepare review pack download"
	case CmdWorkspaceBootstrap:
		if c.GateID != "" {
			return fmt.Sprintf("Bootstrap workspace (%s, gate %s)", c.Scope, c.GateID)
		}
		return fmt.Sprintf("Bootstrap workspace (%s)", c.Scope)
	}
	return string(c.Type)
}
