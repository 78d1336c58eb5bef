package copilot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/waveline/internal/workspace"
)

// fakeStore is an in-memory WorkspaceStore used across the package tests
type fakeStore struct {
	mu     sync.Mutex
	nextID int64

	workspace   *workspace.Workspace
	programs    []*workspace.Program
	lines       []*workspace.PhoneLine
	rules       []*workspace.AutomationRule
	memberships []*workspace.Membership
	invites     []*workspace.Invite
	stages      []*workspace.Stage
}

func newFakeStore(workspaceID int64) *fakeStore {
	return &fakeStore{
		workspace: &workspace.Workspace{ID: workspaceID, Name: "Test Tenant"},
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) InTransaction(ctx context.Context, fn func(WorkspaceStore) error) error {
	return fn(f)
}

func (f *fakeStore) GetWorkspace(ctx context.Context, id int64) (*workspace.Workspace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.workspace == nil || f.workspace.ID != id {
		return nil, workspace.ErrNotFound
	}
	ws := *f.workspace
	return &ws, nil
}

func (f *fakeStore) UpdateRoutingDefaultIfUnset(ctx context.Context, workspaceID int64, persona workspace.Persona, programID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if persona == workspace.PersonaClient {
		if f.workspace.DefaultClientProgramID != nil {
			return false, nil
		}
		f.workspace.DefaultClientProgramID = &programID
		return true, nil
	}
	if f.workspace.DefaultStaffProgramID != nil {
		return false, nil
	}
	f.workspace.DefaultStaffProgramID = &programID
	return true, nil
}

func (f *fakeStore) SetOutboundPause(ctx context.Context, workspaceID int64, until time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.workspace.OutboundPausedUntil = &until
	return nil
}

func (f *fakeStore) CreateProgram(ctx context.Context, p *workspace.Program) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.programs {
		if existing.WorkspaceID == p.WorkspaceID && existing.Slug == p.Slug {
			return workspace.ErrConflict
		}
	}
	p.ID = f.id()
	cp := *p
	f.programs = append(f.programs, &cp)
	return nil
}

func (f *fakeStore) GetProgram(ctx context.Context, workspaceID, id int64) (*workspace.Program, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.programs {
		if p.WorkspaceID == workspaceID && p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, workspace.ErrNotFound
}

func (f *fakeStore) FindProgramBySlug(ctx context.Context, workspaceID int64, slug string) (*workspace.Program, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.programs {
		if p.WorkspaceID == workspaceID && p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, workspace.ErrNotFound
}

func (f *fakeStore) FindProgramByPersona(ctx context.Context, workspaceID int64, persona workspace.Persona) (*workspace.Program, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.programs {
		if p.WorkspaceID == workspaceID && p.Persona == persona {
			cp := *p
			return &cp, nil
		}
	}
	return nil, workspace.ErrNotFound
}

func (f *fakeStore) ListPrograms(ctx context.Context, workspaceID int64) ([]*workspace.Program, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*workspace.Program
	for _, p := range f.programs {
		if p.WorkspaceID == workspaceID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateProgramInstructions(ctx context.Context, workspaceID, id int64, instructions string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.programs {
		if p.WorkspaceID == workspaceID && p.ID == id {
			p.Instructions = instructions
			return nil
		}
	}
	return workspace.ErrNotFound
}

func (f *fakeStore) NextProgramSlug(ctx context.Context, workspaceID int64, base string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	slug := workspace.Slugify(base)
	candidate := slug
	for i := 2; ; i++ {
		taken := false
		for _, p := range f.programs {
			if p.WorkspaceID == workspaceID && p.Slug == candidate {
				taken = true
				break
			}
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", slug, i)
	}
}

func (f *fakeStore) CreatePhoneLine(ctx context.Context, l *workspace.PhoneLine) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.lines {
		if existing.Active && existing.WaPhoneNumberID == l.WaPhoneNumberID {
			return workspace.ErrConflict
		}
	}
	l.ID = f.id()
	l.Active = true
	cp := *l
	f.lines = append(f.lines, &cp)
	return nil
}

func (f *fakeStore) GetPhoneLine(ctx context.Context, workspaceID, id int64) (*workspace.PhoneLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.lines {
		if l.WorkspaceID == workspaceID && l.ID == id {
			cp := *l
			return &cp, nil
		}
	}
	return nil, workspace.ErrNotFound
}

func (f *fakeStore) FindPhoneLineByNumber(ctx context.Context, workspaceID int64, waPhoneNumberID string) (*workspace.PhoneLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.lines {
		if l.WorkspaceID == workspaceID && l.WaPhoneNumberID == waPhoneNumberID {
			cp := *l
			return &cp, nil
		}
	}
	return nil, workspace.ErrNotFound
}

func (f *fakeStore) ListPhoneLines(ctx context.Context, workspaceID int64) ([]*workspace.PhoneLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*workspace.PhoneLine
	for _, l := range f.lines {
		if l.WorkspaceID == workspaceID {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) SetPhoneLineDefaultProgram(ctx context.Context, workspaceID, lineID, programID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.lines {
		if l.WorkspaceID == workspaceID && l.ID == lineID {
			id := programID
			l.DefaultProgramID = &id
			return nil
		}
	}
	return workspace.ErrNotFound
}

func (f *fakeStore) SeedPhoneLineDefaults(ctx context.Context, workspaceID, programID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, l := range f.lines {
		if l.WorkspaceID == workspaceID && l.Active && l.DefaultProgramID == nil {
			id := programID
			l.DefaultProgramID = &id
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) UpsertMembership(ctx context.Context, workspaceID int64, email, role string) (*workspace.Membership, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.memberships {
		if m.WorkspaceID == workspaceID && m.Email == email {
			m.Role = role
			cp := *m
			return &cp, false, nil
		}
	}
	m := &workspace.Membership{ID: f.id(), WorkspaceID: workspaceID, Email: email, Role: role}
	f.memberships = append(f.memberships, m)
	cp := *m
	return &cp, true, nil
}

func (f *fakeStore) CreateInvite(ctx context.Context, inv *workspace.Invite) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv.ID = f.id()
	cp := *inv
	f.invites = append(f.invites, &cp)
	return nil
}

func (f *fakeStore) CreateAutomationRule(ctx context.Context, r *workspace.AutomationRule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r.ID = f.id()
	cp := *r
	f.rules = append(f.rules, &cp)
	return nil
}

func (f *fakeStore) ListAutomationRules(ctx context.Context, workspaceID int64) ([]*workspace.AutomationRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*workspace.AutomationRule
	for _, r := range f.rules {
		if r.WorkspaceID == workspaceID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) FindEnabledAutomationRule(ctx context.Context, workspaceID int64, trigger, action string) (*workspace.AutomationRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rules {
		if r.WorkspaceID == workspaceID && r.Enabled && r.Trigger == trigger && r.Action == action {
			cp := *r
			return &cp, nil
		}
	}
	return nil, workspace.ErrNotFound
}

func (f *fakeStore) UpsertStage(ctx context.Context, st *workspace.Stage) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.stages {
		if existing.WorkspaceID == st.WorkspaceID && existing.Slug == st.Slug {
			if existing.Name == st.Name && existing.Position == st.Position && existing.IsDefault == st.IsDefault {
				return false, nil
			}
			existing.Name = st.Name
			existing.Position = st.Position
			existing.IsDefault = st.IsDefault
			return true, nil
		}
	}
	st.ID = f.id()
	cp := *st
	f.stages = append(f.stages, &cp)
	return true, nil
}

func (f *fakeStore) ClearStageDefaults(ctx context.Context, workspaceID int64, keepSlug string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, st := range f.stages {
		if st.WorkspaceID == workspaceID && st.Slug != keepSlug && st.IsDefault {
			st.IsDefault = false
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) ListStages(ctx context.Context, workspaceID int64) ([]*workspace.Stage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*workspace.Stage
	for _, st := range f.stages {
		if st.WorkspaceID == workspaceID {
			cp := *st
			out = append(out, &cp)
		}
	}
	return out, nil
}

// fakeRunStore keeps runs in memory with the same conditional-update claim
// semantics as the SQL store
type fakeRunStore struct {
	mu   sync.Mutex
	runs map[string]*Run
}

func newFakeRunStore() *fakeRunStore {
	return &fakeRunStore{runs: make(map[string]*Run)}
}

func (f *fakeRunStore) CreateRun(ctx context.Context, run *Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *run
	f.runs[run.ID] = &cp
	return nil
}

func (f *fakeRunStore) GetRun(ctx context.Context, workspaceID int64, id string) (*Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok || run.WorkspaceID != workspaceID {
		return nil, workspace.ErrNotFound
	}
	cp := *run
	return &cp, nil
}

func (f *fakeRunStore) FinishRun(ctx context.Context, run *Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *run
	f.runs[run.ID] = &cp
	return nil
}

func (f *fakeRunStore) ClaimRun(ctx context.Context, workspaceID int64, id string, operatorID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok || run.WorkspaceID != workspaceID || run.Status != RunPendingConfirmation {
		return false, nil
	}
	now := time.Now()
	run.Status = RunExecuting
	run.ConfirmedAt = &now
	run.ConfirmedBy = &operatorID
	return true, nil
}

func (f *fakeRunStore) CancelRun(ctx context.Context, workspaceID int64, id string, operatorID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok || run.WorkspaceID != workspaceID || run.Status != RunPendingConfirmation {
		return false, nil
	}
	run.Status = RunCancelled
	return true, nil
}

func (f *fakeRunStore) FinalizeExecution(ctx context.Context, run *Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.runs[run.ID]
	if !ok || stored.Status != RunExecuting {
		return Concurrencyf("run %s changed state while its result was being written", run.ID)
	}
	cp := *run
	f.runs[run.ID] = &cp
	return nil
}

func (f *fakeRunStore) ListRunsByThread(ctx context.Context, workspaceID int64, threadID string) ([]*Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Run
	for _, run := range f.runs {
		if run.WorkspaceID == workspaceID && run.ThreadID != nil && *run.ThreadID == threadID {
			cp := *run
			out = append(out, &cp)
		}
	}
	return out, nil
}

// fakeThreadStore keeps threads in memory
type fakeThreadStore struct {
	mu      sync.Mutex
	threads map[string]*Thread
}

func newFakeThreadStore() *fakeThreadStore {
	return &fakeThreadStore{threads: make(map[string]*Thread)}
}

func (f *fakeThreadStore) CreateThread(ctx context.Context, t *Thread) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *t
	f.threads[t.ID] = &cp
	return nil
}

func (f *fakeThreadStore) GetThread(ctx context.Context, workspaceID int64, id string) (*Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.threads[id]
	if !ok || t.WorkspaceID != workspaceID {
		return nil, workspace.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeThreadStore) ListThreads(ctx context.Context, workspaceID, operatorID int64) ([]*Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Thread
	for _, t := range f.threads {
		if t.WorkspaceID == workspaceID && t.OperatorID == operatorID && !t.Archived {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeThreadStore) SetPendingFollowUp(ctx context.Context, workspaceID int64, id string, p *PendingFollowUp) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.threads[id]
	if !ok || t.WorkspaceID != workspaceID {
		return workspace.ErrNotFound
	}
	t.PendingFollowUp = p
	t.UpdatedAt = time.Now()
	return nil
}

func (f *fakeThreadStore) SetArchived(ctx context.Context, workspaceID int64, id string, archived bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.threads[id]
	if !ok || t.WorkspaceID != workspaceID {
		return workspace.ErrNotFound
	}
	t.Archived = archived
	return nil
}

func (f *fakeThreadStore) Touch(ctx context.Context, workspaceID int64, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.threads[id]; ok {
		t.UpdatedAt = time.Now()
	}
	return nil
}

// fakeAssistant returns a canned reply and counts invocations
type fakeAssistant struct {
	mu    sync.Mutex
	reply *AssistantReply
	err   error
	calls int
}

func (f *fakeAssistant) Classify(ctx context.Context, snapshot *WorkspaceSnapshot, inputText string) (*AssistantReply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.reply, nil
}

func (f *fakeAssistant) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeNotifier records enqueued notifications
type fakeNotifier struct {
	mu           sync.Mutex
	invites      []string
	pauseAlerts  int
	enqueueError error
}

func (f *fakeNotifier) EnqueueInviteEmail(ctx context.Context, workspaceID int64, email, role, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enqueueError != nil {
		return f.enqueueError
	}
	f.invites = append(f.invites, email)
	return nil
}

func (f *fakeNotifier) EnqueueOutboundPauseAlert(ctx context.Context, workspaceID, operatorID int64, until time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enqueueError != nil {
		return f.enqueueError
	}
	f.pauseAlerts++
	return nil
}
