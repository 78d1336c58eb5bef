package copilot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/waveline/internal/api/auth"
	"github.com/waveline/internal/workspace"
)

// inviteTTL is how long an email invitation stays redeemable
const inviteTTL = 7 * 24 * time.Hour

// SmokeCheck is one deterministic health check of tenant configuration
type SmokeCheck struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// ExecOutcome is the result of executing one proposal's command list
type ExecOutcome struct {
	OK      bool
	Results []CommandResult
	Summary []string
}

// Executor interprets a proposal's commands against the tenant store.
// Commands run strictly in order; the first failure stops the remaining
// commands (fail-fast, no partial silent continuation).
type Executor struct {
	store        WorkspaceStore
	bootstrapper *Bootstrapper
	notifier     Notifier
}

// NewExecutor creates a command executor
func NewExecutor(store TransactionalStore, notifier Notifier) *Executor {
	return &Executor{
		store:        store,
		bootstrapper: NewBootstrapper(store),
		notifier:     notifier,
	}
}

// Execute runs the commands in order against a fresh reference registry
func (e *Executor) Execute(ctx context.Context, op *auth.OperatorContext, commands []Command) ExecOutcome {
	outcome := ExecOutcome{OK: true}
	refs := NewRefRegistry()

	for i := range commands {
		cmd := &commands[i]
		result, err := e.executeCommand(ctx, op, cmd, refs)
		result.Type = cmd.Type

		if err != nil {
			result.OK = false
			result.Error = MessageOf(err)
			if _, classified := KindOf(err); !classified {
				log.Error().Err(err).
					Int64("workspace_id", op.WorkspaceID).
					Str("command", string(cmd.Type)).
					Msg("Command execution failed with internal error")
			}
			outcome.OK = false
			outcome.Results = append(outcome.Results, result)
			outcome.Summary = append(outcome.Summary, fmt.Sprintf("❌ %s: %s", cmd.Describe(), result.Error))
			break
		}

		result.OK = true
		outcome.Results = append(outcome.Results, result)
		line := fmt.Sprintf("✅ %s", cmd.Describe())
		if result.Detail != "" {
			line += " (" + result.Detail + ")"
		}
		outcome.Summary = append(outcome.Summary, line)
	}

	return outcome
}

func (e *Executor) executeCommand(ctx context.Context, op *auth.OperatorContext, cmd *Command, refs *RefRegistry) (CommandResult, error) {
	if err := cmd.Validate(); err != nil {
		return CommandResult{}, err
	}

	// Privilege is re-checked at execution time for every privileged command:
	// confirmation may happen after a session or role change.
	if IsPrivileged(cmd.Type) {
		if err := op.RequireOwner(); err != nil {
			return CommandResult{}, Authorizationf("%s requires the owner role", cmd.Type)
		}
	}

	switch cmd.Type {
	case CmdCreateProgram:
		return e.executeCreateProgram(ctx, op, cmd, refs)
	case CmdCreatePhoneLine:
		return e.executeCreatePhoneLine(ctx, op, cmd, refs)
	case CmdSetPhoneLineDefaultProgram:
		return e.executeSetPhoneLineDefault(ctx, op, cmd, refs)
	case CmdCreateAutomation:
		return e.executeCreateAutomation(ctx, op, cmd, refs)
	case CmdUpsertMembership:
		return e.executeUpsertMembership(ctx, op, cmd)
	case CmdInviteUser:
		return e.executeInviteUser(ctx, op, cmd)
	case CmdTempOffOutbound:
		return e.executeTempOffOutbound(ctx, op, cmd)
	case CmdRunSmokeScenarios:
		return e.executeSmokeScenarios(ctx, op)
	case CmdDownloadReviewPack:
		return e.executeDownloadReviewPack(op)
	case CmdWorkspaceBootstrap:
		return e.executeBootstrap(ctx, op, cmd)
	}

	return CommandResult{}, Validationf("unknown command type %q", string(cmd.Type))
}

// mapStoreErr converts store sentinel errors into the copilot taxonomy
func mapStoreErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, workspace.ErrNotFound):
		return NotFoundf("%s was not found", what)
	case errors.Is(err, workspace.ErrConflict):
		return Conflictf("%s already exists, resolve the duplicate and retry", what)
	default:
		return err
	}
}

// resolveProgramID resolves a program reference by, in priority order:
// direct id, symbolic ref, slug natural key. Returns 0 when the command
// carries no program reference at all.
func (e *Executor) resolveProgramID(ctx context.Context, workspaceID int64, cmd *Command, refs *RefRegistry) (int64, error) {
	switch {
	case cmd.ProgramID != 0:
		if _, err := e.store.GetProgram(ctx, workspaceID, cmd.ProgramID); err != nil {
			return 0, mapStoreErr(err, fmt.Sprintf("program %d", cmd.ProgramID))
		}
		return cmd.ProgramID, nil
	case cmd.ProgramRef != "":
		return refs.Resolve(cmd.ProgramRef, RefProgram)
	case cmd.ProgramSlug != "":
		p, err := e.store.FindProgramBySlug(ctx, workspaceID, cmd.ProgramSlug)
		if err != nil {
			return 0, mapStoreErr(err, fmt.Sprintf("program %q", cmd.ProgramSlug))
		}
		return p.ID, nil
	}
	return 0, nil
}

// resolvePhoneLineID resolves a phone line by direct id, symbolic ref, or
// WhatsApp phone number id natural key
func (e *Executor) resolvePhoneLineID(ctx context.Context, workspaceID int64, cmd *Command, refs *RefRegistry) (int64, error) {
	switch {
	case cmd.PhoneLineID != 0:
		if _, err := e.store.GetPhoneLine(ctx, workspaceID, cmd.PhoneLineID); err != nil {
			return 0, mapStoreErr(err, fmt.Sprintf("phone line %d", cmd.PhoneLineID))
		}
		return cmd.PhoneLineID, nil
	case cmd.PhoneLineRef != "":
		return refs.Resolve(cmd.PhoneLineRef, RefPhoneLine)
	case cmd.WaPhoneNumberID != "":
		l, err := e.store.FindPhoneLineByNumber(ctx, workspaceID, cmd.WaPhoneNumberID)
		if err != nil {
			return 0, mapStoreErr(err, fmt.Sprintf("phone line %q", cmd.WaPhoneNumberID))
		}
		return l.ID, nil
	}
	return 0, NotFoundf("no phone line reference given")
}

func (e *Executor) executeCreateProgram(ctx context.Context, op *auth.OperatorContext, cmd *Command, refs *RefRegistry) (CommandResult, error) {
	persona := workspace.PersonaClient
	if cmd.Persona == "STAFF" {
		persona = workspace.PersonaStaff
	}

	slug, err := e.store.NextProgramSlug(ctx, op.WorkspaceID, cmd.Name)
	if err != nil {
		return CommandResult{}, err
	}

	p := &workspace.Program{
		WorkspaceID:  op.WorkspaceID,
		Name:         cmd.Name,
		Slug:         slug,
		Persona:      persona,
		Instructions: cmd.AgentSystemPrompt,
	}
	if err := e.store.CreateProgram(ctx, p); err != nil {
		return CommandResult{}, mapStoreErr(err, fmt.Sprintf("program %q", slug))
	}

	if err := refs.Bind(cmd.Ref, RefProgram, p.ID); err != nil {
		return CommandResult{}, err
	}

	return CommandResult{EntityKind: "program", EntityID: p.ID, Detail: fmt.Sprintf("slug %s", p.Slug)}, nil
}

func (e *Executor) executeCreatePhoneLine(ctx context.Context, op *auth.OperatorContext, cmd *Command, refs *RefRegistry) (CommandResult, error) {
	var defaultProgramID *int64
	programID, err := e.resolveProgramID(ctx, op.WorkspaceID, cmd, refs)
	if err != nil {
		return CommandResult{}, err
	}
	if programID != 0 {
		defaultProgramID = &programID
	}

	l := &workspace.PhoneLine{
		WorkspaceID:      op.WorkspaceID,
		Label:            cmd.Label,
		WaPhoneNumberID:  cmd.WaPhoneNumberID,
		DefaultProgramID: defaultProgramID,
	}
	if err := e.store.CreatePhoneLine(ctx, l); err != nil {
		return CommandResult{}, mapStoreErr(err, fmt.Sprintf("an active phone line for %q", cmd.WaPhoneNumberID))
	}

	if err := refs.Bind(cmd.Ref, RefPhoneLine, l.ID); err != nil {
		return CommandResult{}, err
	}

	return CommandResult{EntityKind: "phone_line", EntityID: l.ID}, nil
}

func (e *Executor) executeSetPhoneLineDefault(ctx context.Context, op *auth.OperatorContext, cmd *Command, refs *RefRegistry) (CommandResult, error) {
	lineID, err := e.resolvePhoneLineID(ctx, op.WorkspaceID, cmd, refs)
	if err != nil {
		return CommandResult{}, err
	}

	programID, err := e.resolveProgramID(ctx, op.WorkspaceID, cmd, refs)
	if err != nil {
		return CommandResult{}, err
	}
	if programID == 0 {
		return CommandResult{}, Validationf("SET_PHONE_LINE_DEFAULT_PROGRAM could not resolve a program")
	}

	if err := e.store.SetPhoneLineDefaultProgram(ctx, op.WorkspaceID, lineID, programID); err != nil {
		return CommandResult{}, mapStoreErr(err, fmt.Sprintf("phone line %d", lineID))
	}

	return CommandResult{EntityKind: "phone_line", EntityID: lineID, Detail: fmt.Sprintf("default program %d", programID)}, nil
}

func (e *Executor) executeCreateAutomation(ctx context.Context, op *auth.OperatorContext, cmd *Command, refs *RefRegistry) (CommandResult, error) {
	params := cmd.Params
	programID, err := e.resolveProgramID(ctx, op.WorkspaceID, cmd, refs)
	if err != nil {
		return CommandResult{}, err
	}
	if programID != 0 && params == "" {
		params = fmt.Sprintf(`{"programId":%d}`, programID)
	}

	enabled := true
	if cmd.Enabled != nil {
		enabled = *cmd.Enabled
	}

	r := &workspace.AutomationRule{
		WorkspaceID: op.WorkspaceID,
		Name:        cmd.Name,
		Trigger:     cmd.Trigger,
		Action:      cmd.Action,
		Params:      params,
		Enabled:     enabled,
	}
	if err := e.store.CreateAutomationRule(ctx, r); err != nil {
		return CommandResult{}, mapStoreErr(err, fmt.Sprintf("automation %q", cmd.Name))
	}

	return CommandResult{EntityKind: "automation_rule", EntityID: r.ID}, nil
}

func (e *Executor) executeUpsertMembership(ctx context.Context, op *auth.OperatorContext, cmd *Command) (CommandResult, error) {
	m, created, err := e.store.UpsertMembership(ctx, op.WorkspaceID, cmd.Email, cmd.Role)
	if err != nil {
		return CommandResult{}, mapStoreErr(err, fmt.Sprintf("membership for %s", cmd.Email))
	}

	detail := "role updated"
	if created {
		detail = "membership created"
	}
	return CommandResult{EntityKind: "membership", EntityID: m.ID, Detail: detail}, nil
}

func (e *Executor) executeInviteUser(ctx context.Context, op *auth.OperatorContext, cmd *Command) (CommandResult, error) {
	inv := &workspace.Invite{
		WorkspaceID: op.WorkspaceID,
		Email:       cmd.Email,
		Role:        cmd.Role,
		Token:       uuid.NewString(),
		ExpiresAt:   time.Now().Add(inviteTTL),
	}
	if err := e.store.CreateInvite(ctx, inv); err != nil {
		return CommandResult{}, mapStoreErr(err, fmt.Sprintf("invite for %s", cmd.Email))
	}

	if e.notifier != nil {
		if err := e.notifier.EnqueueInviteEmail(ctx, op.WorkspaceID, inv.Email, inv.Role, inv.Token); err != nil {
			log.Warn().Err(err).Str("email", inv.Email).Msg("Failed to enqueue invite email")
		}
	}

	return CommandResult{EntityKind: "invite", EntityID: inv.ID}, nil
}

func (e *Executor) executeTempOffOutbound(ctx context.Context, op *auth.OperatorContext, cmd *Command) (CommandResult, error) {
	until := time.Now().Add(time.Duration(cmd.Minutes) * time.Minute)
	if err := e.store.SetOutboundPause(ctx, op.WorkspaceID, until); err != nil {
		return CommandResult{}, mapStoreErr(err, "workspace")
	}

	if e.notifier != nil {
		if err := e.notifier.EnqueueOutboundPauseAlert(ctx, op.WorkspaceID, op.OperatorID, until); err != nil {
			log.Warn().Err(err).Int64("workspace_id", op.WorkspaceID).Msg("Failed to enqueue outbound pause alert")
		}
	}

	return CommandResult{EntityKind: "workspace", EntityID: op.WorkspaceID,
		Detail: fmt.Sprintf("outbound paused until %s", until.Format("15:04"))}, nil
}

func (e *Executor) executeSmokeScenarios(ctx context.Context, op *auth.OperatorContext) (CommandResult, error) {
	checks, err := runSmokeChecks(ctx, e.store, op.WorkspaceID)
	if err != nil {
		return CommandResult{}, err
	}

	passed := 0
	for _, c := range checks {
		if c.OK {
			passed++
		}
	}
	return CommandResult{
		Checks: checks,
		Detail: fmt.Sprintf("%d/%d checks passed", passed, len(checks)),
	}, nil
}

// runSmokeChecks evaluates the tenant's configuration health without side
// effects
func runSmokeChecks(ctx context.Context, store WorkspaceStore, workspaceID int64) ([]SmokeCheck, error) {
	var checks []SmokeCheck

	ws, err := store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, mapStoreErr(err, "workspace")
	}

	lines, err := store.ListPhoneLines(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	activeLine := false
	for _, l := range lines {
		if l.Active {
			activeLine = true
			break
		}
	}
	checks = append(checks, SmokeCheck{Name: "active_phone_line", OK: activeLine,
		Detail: fmt.Sprintf("%d lines configured", len(lines))})

	checks = append(checks, SmokeCheck{Name: "client_routing_default", OK: ws.DefaultClientProgramID != nil})

	rule, err := store.FindEnabledAutomationRule(ctx, workspaceID, workspace.TriggerInboundMessage, workspace.ActionRunAgent)
	if err != nil && !errors.Is(err, workspace.ErrNotFound) {
		return nil, err
	}
	checks = append(checks, SmokeCheck{Name: "inbound_agent_automation", OK: rule != nil})

	stages, err := store.ListStages(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	checks = append(checks, SmokeCheck{Name: "pipeline_stages", OK: len(stages) > 0,
		Detail: fmt.Sprintf("%d stages", len(stages))})

	return checks, nil
}

func (e *Executor) executeDownloadReviewPack(op *auth.OperatorContext) (CommandResult, error) {
	return CommandResult{
		URL:    fmt.Sprintf("/api/v1/workspaces/%d/review-pack", op.WorkspaceID),
		Detail: "review pack export link ready",
	}, nil
}

func (e *Executor) executeBootstrap(ctx context.Context, op *auth.OperatorContext, cmd *Command) (CommandResult, error) {
	steps, err := e.bootstrapper.Run(ctx, op.WorkspaceID, cmd.GateID, cmd.Scope)
	if err != nil {
		return CommandResult{}, err
	}

	changed := 0
	for _, s := range steps {
		if s.Changed {
			changed++
		}
	}
	return CommandResult{
		Steps:  steps,
		Detail: fmt.Sprintf("%d of %d steps made changes", changed, len(steps)),
	}, nil
}
