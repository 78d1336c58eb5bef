package copilot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/waveline/internal/api/auth"
)

// maxInlineListing is the largest enumeration replied to inline; anything
// bigger is offered as a follow-up question first
const maxInlineListing = 5

// ChatResult is the outcome of one operator turn
type ChatResult struct {
	RunID     string     `json:"runId"`
	ThreadID  string     `json:"threadId"`
	Status    RunStatus  `json:"status"`
	Message   string     `json:"message"`
	Actions   []Action   `json:"actions,omitempty"`
	Proposals []Proposal `json:"proposals,omitempty"`
}

// Service owns the run lifecycle: it classifies operator messages, persists
// runs and threads, and drives the confirm/cancel claim protocol
type Service struct {
	runs      RunStore
	threads   ThreadStore
	store     TransactionalStore
	executor  *Executor
	assistant Assistant
}

// NewService wires the copilot service
func NewService(runs RunStore, threads ThreadStore, store TransactionalStore, assistant Assistant, notifier Notifier) *Service {
	return &Service{
		runs:      runs,
		threads:   threads,
		store:     store,
		executor:  NewExecutor(store, notifier),
		assistant: assistant,
	}
}

// Chat processes one operator message: follow-up short-circuit first, then
// deterministic classification, then the assistant. Turn-level failures are
// recorded on the run as ERROR with a readable reply, never surfaced raw.
func (s *Service) Chat(ctx context.Context, op *auth.OperatorContext, threadID, message string) (*ChatResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, Validationf("message must not be empty")
	}

	thread, err := s.resolveThread(ctx, op, threadID, message)
	if err != nil {
		return nil, err
	}

	run := NewRun(op.WorkspaceID, op.OperatorID, thread.ID, message)
	if err := s.runs.CreateRun(ctx, run); err != nil {
		return nil, err
	}

	// Pending follow-up short-circuit: an unexpired yes/no intent resolves
	// without touching the model.
	if pending := thread.PendingFollowUp; pending != nil {
		if pending.Expired(time.Now()) {
			if err := s.threads.SetPendingFollowUp(ctx, op.WorkspaceID, thread.ID, nil); err != nil {
				return nil, err
			}
			thread.PendingFollowUp = nil
		} else if answer := DetectShortAnswer(message); answer != AnswerNone {
			return s.resolveFollowUp(ctx, op, thread, run, pending.Kind, answer)
		}
	}

	if kind, ok := DetectListingIntent(message); ok {
		return s.resolveListing(ctx, op, thread, run, kind)
	}

	if action, ok := DetectNavigationIntent(message); ok {
		run.Status = RunSuccess
		run.ResponseText = "Aquí tienes."
		run.Actions = []Action{*action}
		return s.finishRun(ctx, op, thread, run)
	}

	return s.resolveWithAssistant(ctx, op, thread, run, message)
}

func (s *Service) resolveThread(ctx context.Context, op *auth.OperatorContext, threadID, message string) (*Thread, error) {
	if threadID != "" {
		t, err := s.threads.GetThread(ctx, op.WorkspaceID, threadID)
		if err != nil {
			return nil, NotFoundf("thread %s was not found", threadID)
		}
		return t, nil
	}
	t := NewThread(op.WorkspaceID, op.OperatorID, message)
	if err := s.threads.CreateThread(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// resolveFollowUp answers a pending listing intent from a short yes/no reply
func (s *Service) resolveFollowUp(ctx context.Context, op *auth.OperatorContext, thread *Thread, run *Run, kind FollowUpKind, answer ShortAnswer) (*ChatResult, error) {
	if err := s.threads.SetPendingFollowUp(ctx, op.WorkspaceID, thread.ID, nil); err != nil {
		return nil, err
	}
	thread.PendingFollowUp = nil

	if answer == AnswerNegative {
		run.Status = RunSuccess
		run.ResponseText = "Entendido, no hay problema."
		return s.finishRun(ctx, op, thread, run)
	}

	text, err := s.renderListing(ctx, op.WorkspaceID, kind)
	if err != nil {
		return s.failRun(ctx, op, thread, run, err)
	}
	run.Status = RunSuccess
	run.ResponseText = text
	return s.finishRun(ctx, op, thread, run)
}

// resolveListing answers a listing request inline when small, or records a
// pending follow-up when the enumeration is long
func (s *Service) resolveListing(ctx context.Context, op *auth.OperatorContext, thread *Thread, run *Run, kind FollowUpKind) (*ChatResult, error) {
	count, err := s.listingCount(ctx, op.WorkspaceID, kind)
	if err != nil {
		return s.failRun(ctx, op, thread, run, err)
	}

	if count > maxInlineListing {
		noun := "automatizaciones"
		if kind == FollowUpListPrograms {
			noun = "programas"
		}
		pending := &PendingFollowUp{Kind: kind, CreatedAt: time.Now()}
		if err := s.threads.SetPendingFollowUp(ctx, op.WorkspaceID, thread.ID, pending); err != nil {
			return nil, err
		}
		thread.PendingFollowUp = pending
		run.Status = RunSuccess
		run.ResponseText = fmt.Sprintf("Hay %d %s. ¿Quieres que las liste?", count, noun)
		return s.finishRun(ctx, op, thread, run)
	}

	text, err := s.renderListing(ctx, op.WorkspaceID, kind)
	if err != nil {
		return s.failRun(ctx, op, thread, run, err)
	}
	run.Status = RunSuccess
	run.ResponseText = text
	return s.finishRun(ctx, op, thread, run)
}

func (s *Service) listingCount(ctx context.Context, workspaceID int64, kind FollowUpKind) (int, error) {
	if kind == FollowUpListPrograms {
		programs, err := s.store.ListPrograms(ctx, workspaceID)
		return len(programs), err
	}
	rules, err := s.store.ListAutomationRules(ctx, workspaceID)
	return len(rules), err
}

// renderListing produces the deterministic enumeration text for a follow-up
// kind, ordered as the store returns it
func (s *Service) renderListing(ctx context.Context, workspaceID int64, kind FollowUpKind) (string, error) {
	var b strings.Builder

	if kind == FollowUpListPrograms {
		programs, err := s.store.ListPrograms(ctx, workspaceID)
		if err != nil {
			return "", err
		}
		if len(programs) == 0 {
			return "No hay programas configurados todavía.", nil
		}
		fmt.Fprintf(&b, "Programas (%d):\n", len(programs))
		for _, p := range programs {
			fmt.Fprintf(&b, "- %s (%s, %s)\n", p.Name, p.Slug, strings.ToLower(string(p.Persona)))
		}
		return strings.TrimRight(b.String(), "\n"), nil
	}

	rules, err := s.store.ListAutomationRules(ctx, workspaceID)
	if err != nil {
		return "", err
	}
	if len(rules) == 0 {
		return "No hay automatizaciones configuradas todavía.", nil
	}
	fmt.Fprintf(&b, "Automatizaciones (%d):\n", len(rules))
	for _, r := range rules {
		state := "activa"
		if !r.Enabled {
			state = "desactivada"
		}
		fmt.Fprintf(&b, "- %s: %s → %s (%s)\n", r.Name, r.Trigger, r.Action, state)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// resolveWithAssistant runs the model classification path
func (s *Service) resolveWithAssistant(ctx context.Context, op *auth.OperatorContext, thread *Thread, run *Run, message string) (*ChatResult, error) {
	snapshot, err := s.buildSnapshot(ctx, op)
	if err != nil {
		return s.failRun(ctx, op, thread, run, err)
	}

	reply, err := s.assistant.Classify(ctx, snapshot, message)
	if err != nil {
		return s.failRun(ctx, op, thread, run, err)
	}

	run.ResponseText = reply.Message
	switch {
	case len(reply.Proposals) == 0:
		run.Status = RunSuccess
	case !op.CanConfirm():
		// The assistant proposed changes the caller cannot confirm. The
		// proposals are not persisted; an admin has to ask again.
		run.Status = RunSuccess
		run.ResponseText += "\n\nEstos cambios necesitan un administrador del workspace."
	default:
		run.Status = RunPendingConfirmation
		run.Proposals = reply.Proposals
	}

	return s.finishRun(ctx, op, thread, run)
}

func (s *Service) buildSnapshot(ctx context.Context, op *auth.OperatorContext) (*WorkspaceSnapshot, error) {
	ws, err := s.store.GetWorkspace(ctx, op.WorkspaceID)
	if err != nil {
		return nil, err
	}
	programs, err := s.store.ListPrograms(ctx, op.WorkspaceID)
	if err != nil {
		return nil, err
	}
	lines, err := s.store.ListPhoneLines(ctx, op.WorkspaceID)
	if err != nil {
		return nil, err
	}
	rules, err := s.store.ListAutomationRules(ctx, op.WorkspaceID)
	if err != nil {
		return nil, err
	}

	snap := &WorkspaceSnapshot{
		WorkspaceName:  ws.Name,
		OperatorRole:   string(op.Role),
		OutboundPaused: ws.OutboundPaused(time.Now()),
	}
	for _, p := range programs {
		snap.Programs = append(snap.Programs, SnapshotProgram{
			ID: p.ID, Name: p.Name, Slug: p.Slug, Persona: string(p.Persona),
		})
	}
	for _, l := range lines {
		if !l.Active {
			continue
		}
		snap.PhoneLines = append(snap.PhoneLines, SnapshotPhoneLine{
			ID: l.ID, Label: l.Label, WaPhoneNumberID: l.WaPhoneNumberID,
			DefaultProgramID: l.DefaultProgramID,
		})
	}
	for _, r := range rules {
		snap.Automations = append(snap.Automations, SnapshotRule{
			ID: r.ID, Name: r.Name, Trigger: r.Trigger, Action: r.Action, Enabled: r.Enabled,
		})
	}
	return snap, nil
}

// finishRun persists the resolved run and returns the chat result. A
// follow-up parked before this turn is stale once the turn resolves
// successfully; one parked by this turn stays pending.
func (s *Service) finishRun(ctx context.Context, op *auth.OperatorContext, thread *Thread, run *Run) (*ChatResult, error) {
	if err := s.runs.FinishRun(ctx, run); err != nil {
		return nil, err
	}
	stale := thread.PendingFollowUp != nil && thread.PendingFollowUp.CreatedAt.Before(run.CreatedAt)
	if stale && run.Status == RunSuccess {
		if err := s.threads.SetPendingFollowUp(ctx, op.WorkspaceID, thread.ID, nil); err != nil {
			log.Warn().Err(err).Str("thread_id", thread.ID).Msg("Failed to clear stale follow-up")
		}
	} else if err := s.threads.Touch(ctx, op.WorkspaceID, thread.ID); err != nil {
		log.Warn().Err(err).Str("thread_id", thread.ID).Msg("Failed to touch thread")
	}

	return &ChatResult{
		RunID:     run.ID,
		ThreadID:  thread.ID,
		Status:    run.Status,
		Message:   run.ResponseText,
		Actions:   run.Actions,
		Proposals: run.Proposals,
	}, nil
}

// failRun records a turn-level failure as run status ERROR with a readable
// reply. The error itself is not propagated to the HTTP layer.
func (s *Service) failRun(ctx context.Context, op *auth.OperatorContext, thread *Thread, run *Run, cause error) (*ChatResult, error) {
	log.Error().Err(cause).
		Str("run_id", run.ID).
		Int64("workspace_id", op.WorkspaceID).
		Msg("Run failed during classification")

	msg := MessageOf(cause)
	run.Status = RunError
	run.ResponseText = msg
	run.Error = &msg
	if err := s.runs.FinishRun(ctx, run); err != nil {
		return nil, err
	}

	return &ChatResult{
		RunID:    run.ID,
		ThreadID: thread.ID,
		Status:   RunError,
		Message:  run.ResponseText,
	}, nil
}

// Confirm executes a pending proposal with at-most-once semantics. The
// conditional claim is the synchronization point: losers of a race re-read
// the run and return its actual state unchanged.
func (s *Service) Confirm(ctx context.Context, op *auth.OperatorContext, runID, proposalID string) (*Run, error) {
	if !op.CanConfirm() {
		return nil, Authorizationf("confirming proposals requires the admin or owner role")
	}

	run, err := s.runs.GetRun(ctx, op.WorkspaceID, runID)
	if err != nil {
		return nil, NotFoundf("run %s was not found", runID)
	}

	if run.Status.Terminal() {
		// Idempotent reply: a finished run returns its stored result unchanged.
		return run, nil
	}
	if run.Status != RunPendingConfirmation {
		// RUNNING or EXECUTING: another caller owns this turn.
		return run, nil
	}

	proposal := run.ProposalByID(proposalID)
	if proposal == nil {
		return nil, Validationf("run %s has no proposal %q", runID, proposalID)
	}

	claimed, err := s.runs.ClaimRun(ctx, op.WorkspaceID, runID, op.OperatorID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		// Lost the race. Whoever won owns the execution; report their result.
		return s.runs.GetRun(ctx, op.WorkspaceID, runID)
	}

	outcome := s.executor.Execute(ctx, op, proposal.Commands)

	now := time.Now()
	run.Status = RunExecuted
	if !outcome.OK {
		run.Status = RunError
		for _, r := range outcome.Results {
			if !r.OK {
				e := r.Error
				run.Error = &e
				break
			}
		}
	}
	run.Results = outcome.Results
	run.Actions = SynthesizeActions(outcome.Results)
	run.ConfirmedAt = &now
	run.ConfirmedBy = &op.OperatorID
	if len(outcome.Summary) > 0 {
		if run.ResponseText != "" {
			run.ResponseText += "\n\n"
		}
		run.ResponseText += strings.Join(outcome.Summary, "\n")
	}

	if err := s.runs.FinalizeExecution(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// Cancel moves a pending run to CANCELLED. Racing a successful confirm is not
// an error; the winning state is returned.
func (s *Service) Cancel(ctx context.Context, op *auth.OperatorContext, runID string) (*Run, error) {
	run, err := s.runs.GetRun(ctx, op.WorkspaceID, runID)
	if err != nil {
		return nil, NotFoundf("run %s was not found", runID)
	}

	if run.Status.Terminal() {
		return run, nil
	}
	if run.Status != RunPendingConfirmation {
		// RUNNING or EXECUTING cannot be cancelled; report the current state.
		return run, nil
	}

	cancelled, err := s.runs.CancelRun(ctx, op.WorkspaceID, runID, op.OperatorID)
	if err != nil {
		return nil, err
	}
	if !cancelled {
		return s.runs.GetRun(ctx, op.WorkspaceID, runID)
	}

	return s.runs.GetRun(ctx, op.WorkspaceID, runID)
}

// GetRun returns one run
func (s *Service) GetRun(ctx context.Context, op *auth.OperatorContext, runID string) (*Run, error) {
	run, err := s.runs.GetRun(ctx, op.WorkspaceID, runID)
	if err != nil {
		return nil, NotFoundf("run %s was not found", runID)
	}
	return run, nil
}

// ListThreads returns the operator's threads, most recently active first
func (s *Service) ListThreads(ctx context.Context, op *auth.OperatorContext) ([]*Thread, error) {
	return s.threads.ListThreads(ctx, op.WorkspaceID, op.OperatorID)
}

// ThreadHistory is a thread plus its full turn history
type ThreadHistory struct {
	Thread *Thread `json:"thread"`
	Runs   []*Run  `json:"runs"`
}

// GetThreadHistory returns a thread and every run in it, oldest first
func (s *Service) GetThreadHistory(ctx context.Context, op *auth.OperatorContext, threadID string) (*ThreadHistory, error) {
	thread, err := s.threads.GetThread(ctx, op.WorkspaceID, threadID)
	if err != nil {
		return nil, NotFoundf("thread %s was not found", threadID)
	}
	runs, err := s.runs.ListRunsByThread(ctx, op.WorkspaceID, threadID)
	if err != nil {
		return nil, err
	}
	return &ThreadHistory{Thread: thread, Runs: runs}, nil
}

// SetThreadArchived toggles a thread's archived flag
func (s *Service) SetThreadArchived(ctx context.Context, op *auth.OperatorContext, threadID string, archived bool) (*Thread, error) {
	if _, err := s.threads.GetThread(ctx, op.WorkspaceID, threadID); err != nil {
		return nil, NotFoundf("thread %s was not found", threadID)
	}
	if err := s.threads.SetArchived(ctx, op.WorkspaceID, threadID, archived); err != nil {
		return nil, err
	}
	return s.threads.GetThread(ctx, op.WorkspaceID, threadID)
}
