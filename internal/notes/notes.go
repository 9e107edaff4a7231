// Package notes is the append-only notes log, keyed by tenant and
// optionally by claim key or a workflow record reference.
package notes

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"clearbill.io/internal/fault"
	"clearbill.io/internal/scope"
)

// Recognized module tags.
const (
	ModuleClaim         = "Claim"
	ModuleCredentialing = "Credentialing"
	ModuleEnrollment    = "Enrollment"
	ModuleEDI           = "EDI"
)

// Note is one append-only log entry.
type Note struct {
	ID        int64  `json:"id"`
	TenantID  int64  `json:"tenant_id"`
	ClaimKey  string `json:"claim_key,omitempty"`
	Module    string `json:"module"`
	RefID     string `json:"ref_id,omitempty"`
	Note      string `json:"note"`
	Author    string `json:"author"`
	CreatedAt string `json:"created_at"`
}

// Filter narrows a listing. Zero values match everything in scope.
type Filter struct {
	ClaimKey string
	Module   string
	RefID    string
}

// Log appends and lists notes.
type Log struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures the log.
type Option func(*Log)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(l *Log) {
		if fn != nil {
			l.now = fn
		}
	}
}

// New constructs the notes log over an open store handle.
func New(db *sql.DB, opts ...Option) *Log {
	l := &Log{db: db, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append adds a note. The module defaults to Claim; the author defaults to
// the acting principal at the portal layer.
func (l *Log) Append(ctx context.Context, n Note) (Note, error) {
	if n.TenantID <= 0 {
		return Note{}, fault.Invalid("tenant_id is required")
	}
	if strings.TrimSpace(n.Note) == "" {
		return Note{}, fault.Invalid("note text is required")
	}
	if n.Module == "" {
		n.Module = ModuleClaim
	}
	switch n.Module {
	case ModuleClaim, ModuleCredentialing, ModuleEnrollment, ModuleEDI:
	default:
		return Note{}, fault.Invalid("unknown module %q", n.Module)
	}

	n.CreatedAt = l.now().UTC().Format(time.RFC3339)
	res, err := l.db.ExecContext(ctx, `
		insert into notes(tenant_id, claim_key, module, ref_id, note, author, created_at)
		values(?,?,?,?,?,?,?)`,
		n.TenantID, n.ClaimKey, n.Module, n.RefID, n.Note, n.Author, n.CreatedAt)
	if err != nil {
		return Note{}, fault.Store(err)
	}
	if n.ID, err = res.LastInsertId(); err != nil {
		return Note{}, err
	}
	return n, nil
}

// List returns matching notes, oldest first.
func (l *Log) List(ctx context.Context, sc scope.Scope, f Filter) ([]Note, error) {
	conds := []string{}
	args := []any{}
	conds, args = sc.Where(conds, args, "tenant_id")
	if f.ClaimKey != "" {
		conds = append(conds, "claim_key = ?")
		args = append(args, f.ClaimKey)
	}
	if f.Module != "" {
		conds = append(conds, "module = ?")
		args = append(args, f.Module)
	}
	if f.RefID != "" {
		conds = append(conds, "ref_id = ?")
		args = append(args, f.RefID)
	}
	query := `select id, tenant_id, claim_key, module, ref_id, note, author, created_at from notes`
	if len(conds) > 0 {
		query += " where " + strings.Join(conds, " and ")
	}
	query += " order by created_at asc, id asc"

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fault.Store(err)
	}
	defer rows.Close()

	var res []Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.TenantID, &n.ClaimKey, &n.Module, &n.RefID, &n.Note, &n.Author, &n.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

// Delete removes a note. Missing ids are not an error.
func (l *Log) Delete(ctx context.Context, id int64) error {
	if _, err := l.db.ExecContext(ctx, `delete from notes where id = ?`, id); err != nil {
		return fault.Store(err)
	}
	return nil
}

// Get returns one note by id.
func (l *Log) Get(ctx context.Context, id int64) (Note, error) {
	var n Note
	err := l.db.QueryRowContext(ctx,
		`select id, tenant_id, claim_key, module, ref_id, note, author, created_at from notes where id = ?`, id).
		Scan(&n.ID, &n.TenantID, &n.ClaimKey, &n.Module, &n.RefID, &n.Note, &n.Author, &n.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Note{}, fault.ErrNotFound
	}
	if err != nil {
		return Note{}, fault.Store(err)
	}
	return n, nil
}
