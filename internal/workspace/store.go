package workspace

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNotFound is returned when a requested entity does not exist
	ErrNotFound = errors.New("workspace: entity not found")
	// ErrConflict is returned on natural-key collisions
	ErrConflict = errors.New("workspace: natural key conflict")
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store provides database operations for tenant configuration entities
type Store struct {
	db *sql.DB
	q  querier
}

// NewStore creates a new workspace store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

// Transact runs fn against a store bound to a single transaction. The
// transaction is rolled back if fn returns an error.
func (s *Store) Transact(ctx context.Context, fn func(*Store) error) error {
	if s.db == nil {
		// Already inside a transaction; nested calls reuse it
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&Store{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error().Err(rbErr).Msg("Failed to roll back transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// wrapErr maps driver errors to the store's sentinel errors
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%s (%s): %w", op, pqErr.Constraint, ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ---- Workspace ----

// GetWorkspace fetches a workspace by id
func (s *Store) GetWorkspace(ctx context.Context, id int64) (*Workspace, error) {
	w := &Workspace{}
	err := s.q.QueryRowContext(ctx, `
		SELECT id, name, default_client_program_id, default_staff_program_id,
		       outbound_paused_until, created_at, updated_at
		FROM workspaces WHERE id = $1
	`, id).Scan(&w.ID, &w.Name, &w.DefaultClientProgramID, &w.DefaultStaffProgramID,
		&w.OutboundPausedUntil, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, wrapErr("get workspace", err)
	}
	return w, nil
}

// UpdateRoutingDefaultIfUnset sets a persona's default program only when it is
// currently NULL. Returns whether the row was updated.
func (s *Store) UpdateRoutingDefaultIfUnset(ctx context.Context, workspaceID int64, persona Persona, programID int64) (bool, error) {
	column := "default_client_program_id"
	if persona == PersonaStaff {
		column = "default_staff_program_id"
	}

	res, err := s.q.ExecContext(ctx, fmt.Sprintf(`
		UPDATE workspaces SET %s = $2, updated_at = NOW()
		WHERE id = $1 AND %s IS NULL
	`, column, column), workspaceID, programID)
	if err != nil {
		return false, wrapErr("update routing default", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, wrapErr("update routing default", err)
	}
	return rows > 0, nil
}

// SetOutboundPause pauses outbound messaging for the workspace until the given time
func (s *Store) SetOutboundPause(ctx context.Context, workspaceID int64, until time.Time) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE workspaces SET outbound_paused_until = $2, updated_at = NOW()
		WHERE id = $1
	`, workspaceID, until)
	if err != nil {
		return wrapErr("set outbound pause", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return wrapErr("set outbound pause", sql.ErrNoRows)
	}
	return nil
}

// ---- Programs ----

// CreateProgram inserts a new program and fills in its generated fields
func (s *Store) CreateProgram(ctx context.Context, p *Program) error {
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO programs (workspace_id, name, slug, persona, instructions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`, p.WorkspaceID, p.Name, p.Slug, p.Persona, p.Instructions).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return wrapErr("create program", err)
}

func scanProgram(row interface{ Scan(...interface{}) error }) (*Program, error) {
	p := &Program{}
	err := row.Scan(&p.ID, &p.WorkspaceID, &p.Name, &p.Slug, &p.Persona,
		&p.Instructions, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

const programColumns = `id, workspace_id, name, slug, persona, instructions, created_at, updated_at`

// GetProgram fetches a program by id, scoped to the workspace
func (s *Store) GetProgram(ctx context.Context, workspaceID, id int64) (*Program, error) {
	p, err := scanProgram(s.q.QueryRowContext(ctx, `
		SELECT `+programColumns+` FROM programs WHERE workspace_id = $1 AND id = $2
	`, workspaceID, id))
	if err != nil {
		return nil, wrapErr("get program", err)
	}
	return p, nil
}

// FindProgramBySlug looks a program up by its workspace-scoped natural key
func (s *Store) FindProgramBySlug(ctx context.Context, workspaceID int64, slug string) (*Program, error) {
	p, err := scanProgram(s.q.QueryRowContext(ctx, `
		SELECT `+programColumns+` FROM programs WHERE workspace_id = $1 AND slug = $2
	`, workspaceID, slug))
	if err != nil {
		return nil, wrapErr("find program by slug", err)
	}
	return p, nil
}

// FindProgramByPersona returns the oldest program for a persona, if any
func (s *Store) FindProgramByPersona(ctx context.Context, workspaceID int64, persona Persona) (*Program, error) {
	p, err := scanProgram(s.q.QueryRowContext(ctx, `
		SELECT `+programColumns+` FROM programs
		WHERE workspace_id = $1 AND persona = $2
		ORDER BY id ASC LIMIT 1
	`, workspaceID, persona))
	if err != nil {
		return nil, wrapErr("find program by persona", err)
	}
	return p, nil
}

// ListPrograms returns all programs for a workspace ordered by creation
func (s *Store) ListPrograms(ctx context.Context, workspaceID int64) ([]*Program, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+programColumns+` FROM programs WHERE workspace_id = $1 ORDER BY id ASC
	`, workspaceID)
	if err != nil {
		return nil, wrapErr("list programs", err)
	}
	defer rows.Close()

	var programs []*Program
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, wrapErr("list programs", err)
		}
		programs = append(programs, p)
	}
	return programs, wrapErr("list programs", rows.Err())
}

// UpdateProgramInstructions replaces a program's instruction set
func (s *Store) UpdateProgramInstructions(ctx context.Context, workspaceID, id int64, instructions string) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE programs SET instructions = $3, updated_at = NOW()
		WHERE workspace_id = $1 AND id = $2
	`, workspaceID, id, instructions)
	if err != nil {
		return wrapErr("update program instructions", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return wrapErr("update program instructions", sql.ErrNoRows)
	}
	return nil
}

var slugCleanRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify converts a display name into a slug candidate
func Slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = slugCleanRe.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "program"
	}
	return slug
}

// NextProgramSlug returns a slug derived from base that is unused in the workspace
func (s *Store) NextProgramSlug(ctx context.Context, workspaceID int64, base string) (string, error) {
	slug := Slugify(base)
	candidate := slug
	for i := 2; ; i++ {
		var exists bool
		err := s.q.QueryRowContext(ctx, `
			SELECT EXISTS(SELECT 1 FROM programs WHERE workspace_id = $1 AND slug = $2)
		`, workspaceID, candidate).Scan(&exists)
		if err != nil {
			return "", wrapErr("next program slug", err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", slug, i)
	}
}

// ---- Phone lines ----

const phoneLineColumns = `id, workspace_id, label, wa_phone_number_id, default_program_id, active, created_at, updated_at`

func scanPhoneLine(row interface{ Scan(...interface{}) error }) (*PhoneLine, error) {
	l := &PhoneLine{}
	err := row.Scan(&l.ID, &l.WorkspaceID, &l.Label, &l.WaPhoneNumberID,
		&l.DefaultProgramID, &l.Active, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// CreatePhoneLine inserts a new active phone line. A partial unique index on
// wa_phone_number_id over active lines enforces cross-tenant uniqueness.
func (s *Store) CreatePhoneLine(ctx context.Context, l *PhoneLine) error {
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO phone_lines (workspace_id, label, wa_phone_number_id, default_program_id, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, NOW(), NOW())
		RETURNING id, active, created_at, updated_at
	`, l.WorkspaceID, l.Label, l.WaPhoneNumberID, l.DefaultProgramID).
		Scan(&l.ID, &l.Active, &l.CreatedAt, &l.UpdatedAt)
	return wrapErr("create phone line", err)
}

// GetPhoneLine fetches a phone line by id, scoped to the workspace
func (s *Store) GetPhoneLine(ctx context.Context, workspaceID, id int64) (*PhoneLine, error) {
	l, err := scanPhoneLine(s.q.QueryRowContext(ctx, `
		SELECT `+phoneLineColumns+` FROM phone_lines WHERE workspace_id = $1 AND id = $2
	`, workspaceID, id))
	if err != nil {
		return nil, wrapErr("get phone line", err)
	}
	return l, nil
}

// FindPhoneLineByNumber looks up an active line by WhatsApp phone number id
func (s *Store) FindPhoneLineByNumber(ctx context.Context, workspaceID int64, waPhoneNumberID string) (*PhoneLine, error) {
	l, err := scanPhoneLine(s.q.QueryRowContext(ctx, `
		SELECT `+phoneLineColumns+` FROM phone_lines
		WHERE workspace_id = $1 AND wa_phone_number_id = $2 AND active = TRUE
	`, workspaceID, waPhoneNumberID))
	if err != nil {
		return nil, wrapErr("find phone line by number", err)
	}
	return l, nil
}

// ListPhoneLines returns all lines for a workspace
func (s *Store) ListPhoneLines(ctx context.Context, workspaceID int64) ([]*PhoneLine, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+phoneLineColumns+` FROM phone_lines WHERE workspace_id = $1 ORDER BY id ASC
	`, workspaceID)
	if err != nil {
		return nil, wrapErr("list phone lines", err)
	}
	defer rows.Close()

	var lines []*PhoneLine
	for rows.Next() {
		l, err := scanPhoneLine(rows)
		if err != nil {
			return nil, wrapErr("list phone lines", err)
		}
		lines = append(lines, l)
	}
	return lines, wrapErr("list phone lines", rows.Err())
}

// SetPhoneLineDefaultProgram points a line at a default program
func (s *Store) SetPhoneLineDefaultProgram(ctx context.Context, workspaceID, lineID, programID int64) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE phone_lines SET default_program_id = $3, updated_at = NOW()
		WHERE workspace_id = $1 AND id = $2
	`, workspaceID, lineID, programID)
	if err != nil {
		return wrapErr("set phone line default program", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return wrapErr("set phone line default program", sql.ErrNoRows)
	}
	return nil
}

// SeedPhoneLineDefaults assigns programID to every active line without a
// default. Returns how many lines were updated.
func (s *Store) SeedPhoneLineDefaults(ctx context.Context, workspaceID, programID int64) (int64, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE phone_lines SET default_program_id = $2, updated_at = NOW()
		WHERE workspace_id = $1 AND active = TRUE AND default_program_id IS NULL
	`, workspaceID, programID)
	if err != nil {
		return 0, wrapErr("seed phone line defaults", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, wrapErr("seed phone line defaults", err)
	}
	return rows, nil
}

// ---- Memberships and invites ----

// UpsertMembership creates or updates a membership by its (workspace, email)
// natural key. Returns the membership and whether it was newly created.
func (s *Store) UpsertMembership(ctx context.Context, workspaceID int64, email, role string) (*Membership, bool, error) {
	m := &Membership{WorkspaceID: workspaceID, Email: email, Role: role}

	res, err := s.q.ExecContext(ctx, `
		UPDATE memberships SET role = $3, updated_at = NOW()
		WHERE workspace_id = $1 AND email = $2
	`, workspaceID, email, role)
	if err != nil {
		return nil, false, wrapErr("upsert membership", err)
	}
	if rows, _ := res.RowsAffected(); rows > 0 {
		err = s.q.QueryRowContext(ctx, `
			SELECT id, created_at, updated_at FROM memberships
			WHERE workspace_id = $1 AND email = $2
		`, workspaceID, email).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
		return m, false, wrapErr("upsert membership", err)
	}

	err = s.q.QueryRowContext(ctx, `
		INSERT INTO memberships (workspace_id, email, role, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`, workspaceID, email, role).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, false, wrapErr("upsert membership", err)
	}
	return m, true, nil
}

// GetMembershipRole returns the role an operator email holds in the workspace
func (s *Store) GetMembershipRole(ctx context.Context, workspaceID int64, email string) (string, error) {
	var role string
	err := s.q.QueryRowContext(ctx, `
		SELECT role FROM memberships WHERE workspace_id = $1 AND email = $2
	`, workspaceID, email).Scan(&role)
	if err != nil {
		return "", wrapErr("get membership role", err)
	}
	return role, nil
}

// CreateInvite inserts a pending invitation
func (s *Store) CreateInvite(ctx context.Context, inv *Invite) error {
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO invites (workspace_id, email, role, token, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, created_at
	`, inv.WorkspaceID, inv.Email, inv.Role, inv.Token, inv.ExpiresAt).
		Scan(&inv.ID, &inv.CreatedAt)
	return wrapErr("create invite", err)
}

// ---- Automation rules ----

// params is nullable jsonb; it is read back as text so a NULL row scans into
// the empty string instead of failing
const automationColumns = `id, workspace_id, name, trigger, action, COALESCE(params::text, ''), enabled, created_at, updated_at`

// jsonOrNull maps the empty string to SQL NULL, since jsonb rejects empty
// input
func jsonOrNull(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func scanAutomation(row interface{ Scan(...interface{}) error }) (*AutomationRule, error) {
	r := &AutomationRule{}
	err := row.Scan(&r.ID, &r.WorkspaceID, &r.Name, &r.Trigger, &r.Action,
		&r.Params, &r.Enabled, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// CreateAutomationRule inserts a new rule
func (s *Store) CreateAutomationRule(ctx context.Context, r *AutomationRule) error {
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO automation_rules (workspace_id, name, trigger, action, params, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`, r.WorkspaceID, r.Name, r.Trigger, r.Action, jsonOrNull(r.Params), r.Enabled).
		Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	return wrapErr("create automation rule", err)
}

// ListAutomationRules returns all rules for a workspace
func (s *Store) ListAutomationRules(ctx context.Context, workspaceID int64) ([]*AutomationRule, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+automationColumns+` FROM automation_rules WHERE workspace_id = $1 ORDER BY id ASC
	`, workspaceID)
	if err != nil {
		return nil, wrapErr("list automation rules", err)
	}
	defer rows.Close()

	var rules []*AutomationRule
	for rows.Next() {
		r, err := scanAutomation(rows)
		if err != nil {
			return nil, wrapErr("list automation rules", err)
		}
		rules = append(rules, r)
	}
	return rules, wrapErr("list automation rules", rows.Err())
}

// FindEnabledAutomationRule returns the first enabled rule matching the
// trigger/action combination, if any
func (s *Store) FindEnabledAutomationRule(ctx context.Context, workspaceID int64, trigger, action string) (*AutomationRule, error) {
	r, err := scanAutomation(s.q.QueryRowContext(ctx, `
		SELECT `+automationColumns+` FROM automation_rules
		WHERE workspace_id = $1 AND trigger = $2 AND action = $3 AND enabled = TRUE
		ORDER BY id ASC LIMIT 1
	`, workspaceID, trigger, action))
	if err != nil {
		return nil, wrapErr("find enabled automation rule", err)
	}
	return r, nil
}

// ---- Stages ----

const stageColumns = `id, workspace_id, name, slug, position, is_default, created_at, updated_at`

func scanStage(row interface{ Scan(...interface{}) error }) (*Stage, error) {
	st := &Stage{}
	err := row.Scan(&st.ID, &st.WorkspaceID, &st.Name, &st.Slug, &st.Position,
		&st.IsDefault, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// UpsertStage creates or updates a stage by its (workspace, slug) natural key.
// Returns whether anything actually changed, for idempotence reporting.
func (s *Store) UpsertStage(ctx context.Context, st *Stage) (bool, error) {
	existing, err := scanStage(s.q.QueryRowContext(ctx, `
		SELECT `+stageColumns+` FROM stages WHERE workspace_id = $1 AND slug = $2
	`, st.WorkspaceID, st.Slug))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, wrapErr("upsert stage", err)
	}

	if existing != nil {
		st.ID = existing.ID
		if existing.Name == st.Name && existing.Position == st.Position && existing.IsDefault == st.IsDefault {
			return false, nil
		}
		_, err := s.q.ExecContext(ctx, `
			UPDATE stages SET name = $3, position = $4, is_default = $5, updated_at = NOW()
			WHERE workspace_id = $1 AND slug = $2
		`, st.WorkspaceID, st.Slug, st.Name, st.Position, st.IsDefault)
		return true, wrapErr("upsert stage", err)
	}

	err = s.q.QueryRowContext(ctx, `
		INSERT INTO stages (workspace_id, name, slug, position, is_default, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`, st.WorkspaceID, st.Name, st.Slug, st.Position, st.IsDefault).
		Scan(&st.ID, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return false, wrapErr("upsert stage", err)
	}
	return true, nil
}

// ClearStageDefaults clears the default flag on every stage except keepSlug.
// Returns how many rows changed.
func (s *Store) ClearStageDefaults(ctx context.Context, workspaceID int64, keepSlug string) (int64, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE stages SET is_default = FALSE, updated_at = NOW()
		WHERE workspace_id = $1 AND slug <> $2 AND is_default = TRUE
	`, workspaceID, keepSlug)
	if err != nil {
		return 0, wrapErr("clear stage defaults", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, wrapErr("clear stage defaults", err)
	}
	return rows, nil
}

// ListStages returns all stages for a workspace in pipeline order
func (s *Store) ListStages(ctx context.Context, workspaceID int64) ([]*Stage, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+stageColumns+` FROM stages WHERE workspace_id = $1 ORDER BY position ASC
	`, workspaceID)
	if err != nil {
		return nil, wrapErr("list stages", err)
	}
	defer rows.Close()

	var stages []*Stage
	for rows.Next() {
		st, err := scanStage(rows)
		if err != nil {
			return nil, wrapErr("list stages", err)
		}
		stages = append(stages, st)
	}
	return stages, wrapErr("list stages", rows.Err())
}
