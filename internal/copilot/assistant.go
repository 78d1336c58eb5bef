package copilot

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/waveline/internal/llm"
)

// WorkspaceSnapshot is the compact tenant state handed to the assistant so it
// can ground proposals in entities that actually exist
type WorkspaceSnapshot struct {
	WorkspaceName  string              `json:"workspaceName"`
	OperatorRole   string              `json:"operatorRole"`
	OutboundPaused bool                `json:"outboundPaused"`
	Programs       []SnapshotProgram   `json:"programs"`
	PhoneLines     []SnapshotPhoneLine `json:"phoneLines"`
	Automations    []SnapshotRule      `json:"automations"`
}

type SnapshotProgram struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Slug    string `json:"slug"`
	Persona string `json:"persona"`
}

type SnapshotPhoneLine struct {
	ID               int64  `json:"id"`
	Label            string `json:"label"`
	WaPhoneNumberID  string `json:"waPhoneNumberId"`
	DefaultProgramID *int64 `json:"defaultProgramId,omitempty"`
}

type SnapshotRule struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Trigger string `json:"trigger"`
	Action  string `json:"action"`
	Enabled bool   `json:"enabled"`
}

// AssistantReply is the classified outcome of one operator message: either a
// plain informational answer, or an answer plus confirmable proposals
type AssistantReply struct {
	Message   string
	Proposals []Proposal
}

// Assistant turns a freeform operator message into a reply and optional
// command proposals
type Assistant interface {
	Classify(ctx context.Context, snapshot *WorkspaceSnapshot, inputText string) (*AssistantReply, error)
}

// LLMAssistant implements Assistant on a chat completion model. The model is
// forced into a strict JSON contract; malformed output goes through the
// repair pipeline before being rejected.
type LLMAssistant struct {
	client llm.Client
}

// NewLLMAssistant creates an assistant over a completion client
func NewLLMAssistant(client llm.Client) *LLMAssistant {
	return &LLMAssistant{client: client}
}

const assistantSystemPrompt = `You are the setup copilot for a WhatsApp business workspace.
Operators ask you, in Spanish or English, to configure their workspace or to
explain its current state. You never mutate anything yourself. Instead you
answer with a single JSON object:

{"message": "<reply to the operator, in their language>",
 "proposals": [{"title": "...", "summary": "...", "commands": [...]}]}

Rules:
- "proposals" may be empty or omitted when the operator only asked a question.
- Offer at most 3 proposals. Each proposal is a batch the operator confirms or
  cancels as a whole; commands run in order.
- Never invent entity ids. Reference existing entities by the ids in the
  workspace state, or by slug/waPhoneNumberId. For entities created earlier in
  the same proposal, set "ref" on the creating command and reference it with
  "programRef"/"phoneLineRef".
- Allowed command objects (field "type" plus the listed fields):
  CREATE_PROGRAM {name, persona: CLIENT|STAFF, agentSystemPrompt, ref?}
  CREATE_PHONE_LINE {label, waPhoneNumberId, programId|programRef|programSlug?, ref?}
  SET_PHONE_LINE_DEFAULT_PROGRAM {phoneLineId|phoneLineRef|waPhoneNumberId, programId|programRef|programSlug}
  CREATE_AUTOMATION {name, trigger: INBOUND_MESSAGE|STAGE_REACHED, action: RUN_AGENT|NOTIFY, params?, enabled?, programId|programRef|programSlug?}
  CREATE_OR_UPDATE_USER_MEMBERSHIP {email, role: OWNER|ADMIN|AGENT}
  INVITE_USER_BY_EMAIL {email, role: OWNER|ADMIN|AGENT}
  TEMP_OFF_OUTBOUND {minutes: 1-240}
  RUN_SMOKE_SCENARIOS {}
  DOWNLOAD_REVIEW_PACK {}
  WORKSPACE_BOOTSTRAP_BUNDLE {scope: FIX_GATE|GO_LIVE|FULL, gateId?: phoneLine|programs|routing|users|automations|notifications|smoke|goLive}
- Membership, invitation, outbound pause and bootstrap commands require the
  OWNER role. If the operator's role is below that, explain instead of
  proposing.
- Output only the JSON object, no prose around it.`

// assistantWire is the model's JSON contract
type assistantWire struct {
	Message   string     `json:"message"`
	Proposals []Proposal `json:"proposals"`
}

// Classify sends the operator message plus workspace state to the model and
// validates the returned proposals. Proposals that fail validation are
// dropped, never passed through to confirmation.
func (a *LLMAssistant) Classify(ctx context.Context, snapshot *WorkspaceSnapshot, inputText string) (*AssistantReply, error) {
	stateJSON, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to encode workspace snapshot: %w", err)
	}

	user := fmt.Sprintf("Workspace state:\n%s\n\nOperator message:\n%s", stateJSON, inputText)

	raw, err := a.client.Complete(ctx, assistantSystemPrompt, user)
	if err != nil {
		return nil, Providerf(err, "the assistant is unavailable right now, try again in a moment")
	}

	var wire assistantWire
	if _, err := llm.DecodeResponse(raw, &wire); err != nil {
		log.Warn().Err(err).Msg("Assistant returned undecodable payload")
		return nil, Providerf(err, "the assistant returned an unreadable answer, try rephrasing")
	}

	reply := &AssistantReply{Message: strings.TrimSpace(wire.Message)}
	if reply.Message == "" {
		reply.Message = "Listo."
	}

	if len(wire.Proposals) > MaxProposalsPerRun {
		wire.Proposals = wire.Proposals[:MaxProposalsPerRun]
	}
	for i := range wire.Proposals {
		p := wire.Proposals[i]
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if err := ValidateProposal(&p); err != nil {
			log.Warn().Err(err).Str("proposal", p.Title).Msg("Dropping invalid assistant proposal")
			continue
		}
		reply.Proposals = append(reply.Proposals, p)
	}

	return reply, nil
}
