package copilot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/waveline/internal/workspace"
)

// BootstrapStep is one line of the bootstrap change audit
type BootstrapStep struct {
	Step    string `json:"step"`
	Changed bool   `json:"changed"`
	Detail  string `json:"detail,omitempty"`
}

const detailAlreadySatisfied = "already satisfied"

// Bootstrap step names
const (
	stepClientProgram     = "client_program"
	stepStaffProgram      = "staff_program"
	stepRoutingDefaults   = "routing_defaults"
	stepPhoneLineDefaults = "phone_line_defaults"
	stepStageSeeding      = "stage_seeding"
	stepInboundAutomation = "inbound_automation"
	stepNotifyAutomation  = "notify_automation"
	stepUsers             = "users"
)

var allBootstrapSteps = []string{
	stepClientProgram, stepStaffProgram, stepRoutingDefaults,
	stepPhoneLineDefaults, stepStageSeeding, stepInboundAutomation,
	stepNotifyAutomation,
}

// gateSteps maps each setup gate to the steps that repair it. Steps that
// depend on seeded programs include the program steps as prerequisites, so a
// narrow FIX_GATE run still converges.
var gateSteps = map[string][]string{
	GatePhoneLine:     {stepClientProgram, stepStaffProgram, stepPhoneLineDefaults},
	GatePrograms:      {stepClientProgram, stepStaffProgram},
	GateRouting:       {stepClientProgram, stepStaffProgram, stepRoutingDefaults},
	GateUsers:         {stepUsers},
	GateAutomations:   {stepClientProgram, stepStaffProgram, stepInboundAutomation},
	GateNotifications: {stepStageSeeding, stepNotifyAutomation},
	GateSmoke:         allBootstrapSteps,
	GateGoLive:        allBootstrapSteps,
}

// Generic instruction templates used when seeding programs. Kept deliberately
// business-neutral; operators customize them afterwards.
const (
	clientProgramTemplate = `You are the business's client-facing WhatsApp assistant.
Greet new contacts warmly, answer questions about services, pricing and
availability using only information the business has provided, and collect the
contact's name and what they need. When you cannot answer, say so and offer to
have a person follow up. Keep replies short; this is a chat, not an email.`

	staffProgramTemplate = `You are an internal operations assistant for the business's staff.
Help the team summarize conversations, draft replies for approval, and answer
questions about pipeline state. Never message clients directly. Be concise and
factual.`
)

// legacyInstructionMarkers identify instruction sets carried over from the
// pre-template era. A client program containing any of them is rewritten to
// the generic template during bootstrap.
var legacyInstructionMarkers = []string{
	"[[LEGACY_TEMPLATE]]",
	"{{business_name}}",
	"{{servicios}}",
	"Waveline Demo",
}

// defaultStages is the fixed pipeline seeded for every tenant. Exactly one
// stage is the default landing stage for new conversations.
var defaultStages = []workspace.Stage{
	{Slug: "new_intake", Name: "New intake", Position: 1, IsDefault: true},
	{Slug: "qualifying", Name: "Qualifying", Position: 2},
	{Slug: "quote_sent", Name: "Quote sent", Position: 3},
	{Slug: "scheduled", Name: "Scheduled", Position: 4},
	{Slug: "won", Name: "Won", Position: 5},
	{Slug: "lost", Name: "Lost", Position: 6},
}

const defaultStageSlug = "new_intake"

// notifyStageSlug is the stage whose arrival triggers the seeded staff
// notification rule
const notifyStageSlug = "won"

// Bootstrapper seeds or repairs a tenant's baseline configuration. Every step
// is upsert-or-skip, so re-running any gate/scope combination converges to
// the same end state without duplicates. All selected steps run inside one
// store transaction.
type Bootstrapper struct {
	store TransactionalStore
}

// NewBootstrapper creates a bootstrap orchestrator
func NewBootstrapper(store TransactionalStore) *Bootstrapper {
	return &Bootstrapper{store: store}
}

// Run executes the steps selected by gateID and scope and returns the change
// audit in execution order
func (b *Bootstrapper) Run(ctx context.Context, workspaceID int64, gateID, scope string) ([]BootstrapStep, error) {
	steps := allBootstrapSteps
	if scope == ScopeFixGate {
		var ok bool
		steps, ok = gateSteps[gateID]
		if !ok {
			return nil, Validationf("unknown bootstrap gate %q", gateID)
		}
	}

	var audit []BootstrapStep
	err := b.store.InTransaction(ctx, func(tx WorkspaceStore) error {
		run := &bootstrapRun{store: tx, workspaceID: workspaceID}
		for _, step := range steps {
			entry, err := run.execute(ctx, step)
			if err != nil {
				return fmt.Errorf("bootstrap step %s: %w", step, err)
			}
			audit = append(audit, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return audit, nil
}

// bootstrapRun carries the per-invocation state of one orchestrator run.
// Program ids resolved by earlier steps are cached for the dependent ones.
type bootstrapRun struct {
	store       WorkspaceStore
	workspaceID int64

	clientProgramID int64
	staffProgramID  int64
}

func (r *bootstrapRun) execute(ctx context.Context, step string) (BootstrapStep, error) {
	switch step {
	case stepClientProgram:
		return r.ensureProgram(ctx, step, workspace.PersonaClient)
	case stepStaffProgram:
		return r.ensureProgram(ctx, step, workspace.PersonaStaff)
	case stepRoutingDefaults:
		return r.ensureRoutingDefaults(ctx)
	case stepPhoneLineDefaults:
		return r.ensurePhoneLineDefaults(ctx)
	case stepStageSeeding:
		return r.ensureStages(ctx)
	case stepInboundAutomation:
		return r.ensureInboundAutomation(ctx)
	case stepNotifyAutomation:
		return r.ensureNotifyAutomation(ctx)
	case stepUsers:
		return BootstrapStep{Step: stepUsers, Changed: false,
			Detail: "memberships are managed through invitations"}, nil
	}
	return BootstrapStep{}, Validationf("unknown bootstrap step %q", step)
}

// ensureProgram guarantees one program exists for the persona. An existing
// client program carrying a legacy instruction fragment is rewritten to the
// generic template; the entity itself is never recreated.
func (r *bootstrapRun) ensureProgram(ctx context.Context, step string, persona workspace.Persona) (BootstrapStep, error) {
	name, template := "Client assistant", clientProgramTemplate
	if persona == workspace.PersonaStaff {
		name, template = "Staff operations", staffProgramTemplate
	}

	existing, err := r.store.FindProgramByPersona(ctx, r.workspaceID, persona)
	switch {
	case err == nil:
		r.rememberProgram(persona, existing.ID)
		if persona == workspace.PersonaClient && hasLegacyInstructions(existing.Instructions) {
			if err := r.store.UpdateProgramInstructions(ctx, r.workspaceID, existing.ID, template); err != nil {
				return BootstrapStep{}, err
			}
			return BootstrapStep{Step: step, Changed: true,
				Detail: fmt.Sprintf("rewrote legacy instructions on %q", existing.Slug)}, nil
		}
		return BootstrapStep{Step: step, Changed: false, Detail: detailAlreadySatisfied}, nil

	case errors.Is(err, workspace.ErrNotFound):
		slug, err := r.store.NextProgramSlug(ctx, r.workspaceID, name)
		if err != nil {
			return BootstrapStep{}, err
		}
		p := &workspace.Program{
			WorkspaceID:  r.workspaceID,
			Name:         name,
			Slug:         slug,
			Persona:      persona,
			Instructions: template,
		}
		if err := r.store.CreateProgram(ctx, p); err != nil {
			return BootstrapStep{}, err
		}
		r.rememberProgram(persona, p.ID)
		return BootstrapStep{Step: step, Changed: true,
			Detail: fmt.Sprintf("created program %q", slug)}, nil

	default:
		return BootstrapStep{}, err
	}
}

func (r *bootstrapRun) rememberProgram(persona workspace.Persona, id int64) {
	if persona == workspace.PersonaClient {
		r.clientProgramID = id
	} else {
		r.staffProgramID = id
	}
}

// programForPersona returns the cached id or resolves it from the store
func (r *bootstrapRun) programForPersona(ctx context.Context, persona workspace.Persona) (int64, error) {
	if persona == workspace.PersonaClient && r.clientProgramID != 0 {
		return r.clientProgramID, nil
	}
	if persona == workspace.PersonaStaff && r.staffProgramID != 0 {
		return r.staffProgramID, nil
	}
	p, err := r.store.FindProgramByPersona(ctx, r.workspaceID, persona)
	if err != nil {
		return 0, err
	}
	r.rememberProgram(persona, p.ID)
	return p.ID, nil
}

// ensureRoutingDefaults fills the workspace's per-persona default program only
// where it is unset. An operator's existing choice is never overwritten.
func (r *bootstrapRun) ensureRoutingDefaults(ctx context.Context) (BootstrapStep, error) {
	var set []string
	for _, persona := range []workspace.Persona{workspace.PersonaClient, workspace.PersonaStaff} {
		programID, err := r.programForPersona(ctx, persona)
		if err != nil {
			if errors.Is(err, workspace.ErrNotFound) {
				continue
			}
			return BootstrapStep{}, err
		}
		changed, err := r.store.UpdateRoutingDefaultIfUnset(ctx, r.workspaceID, persona, programID)
		if err != nil {
			return BootstrapStep{}, err
		}
		if changed {
			set = append(set, strings.ToLower(string(persona)))
		}
	}

	if len(set) == 0 {
		return BootstrapStep{Step: stepRoutingDefaults, Changed: false, Detail: detailAlreadySatisfied}, nil
	}
	return BootstrapStep{Step: stepRoutingDefaults, Changed: true,
		Detail: "set default program for " + strings.Join(set, ", ")}, nil
}

// ensurePhoneLineDefaults gives every active phone line without a default
// program the client program
func (r *bootstrapRun) ensurePhoneLineDefaults(ctx context.Context) (BootstrapStep, error) {
	programID, err := r.programForPersona(ctx, workspace.PersonaClient)
	if err != nil {
		if errors.Is(err, workspace.ErrNotFound) {
			return BootstrapStep{Step: stepPhoneLineDefaults, Changed: false,
				Detail: "no client program to assign"}, nil
		}
		return BootstrapStep{}, err
	}

	n, err := r.store.SeedPhoneLineDefaults(ctx, r.workspaceID, programID)
	if err != nil {
		return BootstrapStep{}, err
	}
	if n == 0 {
		return BootstrapStep{Step: stepPhoneLineDefaults, Changed: false, Detail: detailAlreadySatisfied}, nil
	}
	return BootstrapStep{Step: stepPhoneLineDefaults, Changed: true,
		Detail: fmt.Sprintf("assigned default program to %d phone lines", n)}, nil
}

// ensureStages upserts the fixed pipeline by slug and keeps exactly one
// default stage
func (r *bootstrapRun) ensureStages(ctx context.Context) (BootstrapStep, error) {
	upserted := 0
	for i := range defaultStages {
		st := defaultStages[i]
		st.WorkspaceID = r.workspaceID
		changed, err := r.store.UpsertStage(ctx, &st)
		if err != nil {
			return BootstrapStep{}, err
		}
		if changed {
			upserted++
		}
	}

	cleared, err := r.store.ClearStageDefaults(ctx, r.workspaceID, defaultStageSlug)
	if err != nil {
		return BootstrapStep{}, err
	}

	if upserted == 0 && cleared == 0 {
		return BootstrapStep{Step: stepStageSeeding, Changed: false, Detail: detailAlreadySatisfied}, nil
	}
	return BootstrapStep{Step: stepStageSeeding, Changed: true,
		Detail: fmt.Sprintf("upserted %d stages", upserted)}, nil
}

// ensureInboundAutomation seeds the inbound message → run agent rule unless an
// enabled equivalent already exists
func (r *bootstrapRun) ensureInboundAutomation(ctx context.Context) (BootstrapStep, error) {
	existing, err := r.store.FindEnabledAutomationRule(ctx, r.workspaceID,
		workspace.TriggerInboundMessage, workspace.ActionRunAgent)
	if err != nil && !errors.Is(err, workspace.ErrNotFound) {
		return BootstrapStep{}, err
	}
	if existing != nil {
		return BootstrapStep{Step: stepInboundAutomation, Changed: false, Detail: detailAlreadySatisfied}, nil
	}

	params := ""
	if programID, err := r.programForPersona(ctx, workspace.PersonaClient); err == nil {
		params = fmt.Sprintf(`{"programId":%d}`, programID)
	} else if !errors.Is(err, workspace.ErrNotFound) {
		return BootstrapStep{}, err
	}

	rule := &workspace.AutomationRule{
		WorkspaceID: r.workspaceID,
		Name:        "Answer inbound messages",
		Trigger:     workspace.TriggerInboundMessage,
		Action:      workspace.ActionRunAgent,
		Params:      params,
		Enabled:     true,
	}
	if err := r.store.CreateAutomationRule(ctx, rule); err != nil {
		return BootstrapStep{}, err
	}
	return BootstrapStep{Step: stepInboundAutomation, Changed: true,
		Detail: fmt.Sprintf("created rule %q", rule.Name)}, nil
}

// ensureNotifyAutomation seeds the stage reached → notify staff rule unless an
// enabled equivalent already exists
func (r *bootstrapRun) ensureNotifyAutomation(ctx context.Context) (BootstrapStep, error) {
	existing, err := r.store.FindEnabledAutomationRule(ctx, r.workspaceID,
		workspace.TriggerStageReached, workspace.ActionNotify)
	if err != nil && !errors.Is(err, workspace.ErrNotFound) {
		return BootstrapStep{}, err
	}
	if existing != nil {
		return BootstrapStep{Step: stepNotifyAutomation, Changed: false, Detail: detailAlreadySatisfied}, nil
	}

	rule := &workspace.AutomationRule{
		WorkspaceID: r.workspaceID,
		Name:        "Notify on won deals",
		Trigger:     workspace.TriggerStageReached,
		Action:      workspace.ActionNotify,
		Params:      fmt.Sprintf(`{"stageSlug":%q}`, notifyStageSlug),
		Enabled:     true,
	}
	if err := r.store.CreateAutomationRule(ctx, rule); err != nil {
		return BootstrapStep{}, err
	}
	return BootstrapStep{Step: stepNotifyAutomation, Changed: true,
		Detail: fmt.Sprintf("created rule %q", rule.Name)}, nil
}

func hasLegacyInstructions(instructions string) bool {
	for _, marker := range legacyInstructionMarkers {
		if strings.Contains(instructions, marker) {
			return true
		}
	}
	return false
}
