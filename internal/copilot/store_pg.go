package copilot

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/waveline/internal/workspace"
)

// PGStore persists runs and threads in Postgres. Nested structures
// (proposals, results, actions, pending follow-up) are stored as JSON blobs
// and decoded tolerantly: an unparseable stored blob reads back as empty
// instead of failing the whole row.
type PGStore struct {
	db *sql.DB
}

// NewPGStore creates a run/thread store over an open database handle
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

var _ RunStore = (*PGStore)(nil)
var _ ThreadStore = (*PGStore)(nil)

// encodeBlob marshals v, or returns SQL NULL for nil/empty values
func encodeBlob(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to encode JSON blob, storing null")
		return nil
	}
	if string(b) == "null" || string(b) == "[]" {
		return nil
	}
	return b
}

// decodeBlob unmarshals a stored blob into target, treating corrupt data as
// absent
func decodeBlob(data []byte, target interface{}, what string) {
	if len(data) == 0 {
		return
	}
	if err := json.Unmarshal(data, target); err != nil {
		log.Warn().Err(err).Str("blob", what).Msg("Ignoring unparseable stored JSON blob")
	}
}

// CreateRun inserts a run in its initial state
func (s *PGStore) CreateRun(ctx context.Context, run *Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO copilot_runs
			(id, workspace_id, thread_id, operator_id, input_text, status,
			 response_text, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		run.ID, run.WorkspaceID, run.ThreadID, run.OperatorID, run.InputText,
		run.Status, run.ResponseText, run.CreatedAt, run.UpdatedAt)
	return err
}

const runColumns = `id, workspace_id, thread_id, operator_id, input_text, status,
	response_text, actions, proposals, results, error, confirmed_at,
	confirmed_by, created_at, updated_at`

func scanRun(row interface{ Scan(dest ...interface{}) error }) (*Run, error) {
	var run Run
	var actions, proposals, results []byte
	err := row.Scan(&run.ID, &run.WorkspaceID, &run.ThreadID, &run.OperatorID,
		&run.InputText, &run.Status, &run.ResponseText, &actions, &proposals,
		&results, &run.Error, &run.ConfirmedAt, &run.ConfirmedBy,
		&run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		return nil, err
	}
	decodeBlob(actions, &run.Actions, "run.actions")
	decodeBlob(proposals, &run.Proposals, "run.proposals")
	decodeBlob(results, &run.Results, "run.results")
	return &run, nil
}

// GetRun fetches one run scoped to a workspace
func (s *PGStore) GetRun(ctx context.Context, workspaceID int64, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM copilot_runs WHERE workspace_id = $1 AND id = $2`,
		workspaceID, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, workspace.ErrNotFound
	}
	return run, err
}

// FinishRun persists the classification outcome. The proposal list is written
// here once and never updated afterwards.
func (s *PGStore) FinishRun(ctx context.Context, run *Run) error {
	run.UpdatedAt = time.Now()
	_, err := s.db.ExecContext(ctx, `
		UPDATE copilot_runs
		SET status = $1, response_text = $2, actions = $3, proposals = $4,
		    error = $5, updated_at = $6
		WHERE workspace_id = $7 AND id = $8`,
		run.Status, run.ResponseText, encodeBlob(run.Actions),
		encodeBlob(run.Proposals), run.Error, run.UpdatedAt,
		run.WorkspaceID, run.ID)
	return err
}

// ClaimRun is the at-most-once synchronization point: a single-row
// conditional update that only one concurrent confirmer can win
func (s *PGStore) ClaimRun(ctx context.Context, workspaceID int64, id string, operatorID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE copilot_runs
		SET status = $1, confirmed_at = NOW(), confirmed_by = $2, updated_at = NOW()
		WHERE workspace_id = $3 AND id = $4 AND status = $5`,
		RunExecuting, operatorID, workspaceID, id, RunPendingConfirmation)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CancelRun is the sibling conditional update to CANCELLED
func (s *PGStore) CancelRun(ctx context.Context, workspaceID int64, id string, operatorID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE copilot_runs
		SET status = $1, updated_at = NOW()
		WHERE workspace_id = $2 AND id = $3 AND status = $4`,
		RunCancelled, workspaceID, id, RunPendingConfirmation)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// FinalizeExecution persists the execution outcome onto a claimed run. Only
// the claim winner holds EXECUTING, so zero affected rows means the run was
// moved by someone else while the result was being written.
func (s *PGStore) FinalizeExecution(ctx context.Context, run *Run) error {
	run.UpdatedAt = time.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE copilot_runs
		SET status = $1, response_text = $2, actions = $3, results = $4,
		    error = $5, updated_at = $6
		WHERE workspace_id = $7 AND id = $8 AND status = $9`,
		run.Status, run.ResponseText, encodeBlob(run.Actions),
		encodeBlob(run.Results), run.Error, run.UpdatedAt,
		run.WorkspaceID, run.ID, RunExecuting)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return Concurrencyf("run %s changed state while its result was being written", run.ID)
	}
	return nil
}

// ListRunsByThread returns a thread's runs, oldest first
func (s *PGStore) ListRunsByThread(ctx context.Context, workspaceID int64, threadID string) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM copilot_runs
		WHERE workspace_id = $1 AND thread_id = $2
		ORDER BY created_at ASC`,
		workspaceID, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// CreateThread inserts a new conversation thread
func (s *PGStore) CreateThread(ctx context.Context, t *Thread) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO copilot_threads
			(id, workspace_id, operator_id, title, archived, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.WorkspaceID, t.OperatorID, t.Title, t.Archived, t.CreatedAt, t.UpdatedAt)
	return err
}

const threadColumns = `id, workspace_id, operator_id, title, archived,
	pending_follow_up, created_at, updated_at`

func scanThread(row interface{ Scan(dest ...interface{}) error }) (*Thread, error) {
	var t Thread
	var pending []byte
	err := row.Scan(&t.ID, &t.WorkspaceID, &t.OperatorID, &t.Title, &t.Archived,
		&pending, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(pending) > 0 {
		var p PendingFollowUp
		decodeBlob(pending, &p, "thread.pending_follow_up")
		if p.Kind != "" {
			t.PendingFollowUp = &p
		}
	}
	return &t, nil
}

// GetThread fetches one thread scoped to a workspace
func (s *PGStore) GetThread(ctx context.Context, workspaceID int64, id string) (*Thread, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+threadColumns+`
		FROM copilot_threads WHERE workspace_id = $1 AND id = $2`,
		workspaceID, id)
	t, err := scanThread(row)
	if err == sql.ErrNoRows {
		return nil, workspace.ErrNotFound
	}
	return t, err
}

// ListThreads returns an operator's unarchived threads, most recently active
// first
func (s *PGStore) ListThreads(ctx context.Context, workspaceID, operatorID int64) ([]*Thread, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+threadColumns+`
		FROM copilot_threads
		WHERE workspace_id = $1 AND operator_id = $2 AND NOT archived
		ORDER BY updated_at DESC`,
		workspaceID, operatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var threads []*Thread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, err
		}
		threads = append(threads, t)
	}
	return threads, rows.Err()
}

// SetPendingFollowUp replaces or clears the thread's pending intent
func (s *PGStore) SetPendingFollowUp(ctx context.Context, workspaceID int64, id string, p *PendingFollowUp) error {
	var blob interface{}
	if p != nil {
		blob = encodeBlob(p)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE copilot_threads
		SET pending_follow_up = $1, updated_at = NOW()
		WHERE workspace_id = $2 AND id = $3`,
		blob, workspaceID, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return workspace.ErrNotFound
	}
	return nil
}

// SetArchived toggles the archived flag
func (s *PGStore) SetArchived(ctx context.Context, workspaceID int64, id string, archived bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE copilot_threads
		SET archived = $1, updated_at = NOW()
		WHERE workspace_id = $2 AND id = $3`,
		archived, workspaceID, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return workspace.ErrNotFound
	}
	return nil
}

// Touch bumps updatedAt so the thread sorts to the top of listings
func (s *PGStore) Touch(ctx context.Context, workspaceID int64, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE copilot_threads SET updated_at = NOW()
		WHERE workspace_id = $1 AND id = $2`,
		workspaceID, id)
	return err
}
