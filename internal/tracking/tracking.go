// Package tracking covers the three payer workflow trackers: credentialing,
// enrollment, and EDI setup. The trackers share one record shape and one
// repository implementation parameterized by table.
package tracking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"clearbill.io/internal/fault"
	"clearbill.io/internal/scope"
)

// Status tokens recognized by the dashboard rollups. Records store whatever
// the caller writes; unrecognized tokens simply fall outside the rollups.
const (
	StatusNotStarted = "Not Started"
	StatusInProgress = "In Progress"
	StatusSubmitted  = "Submitted"
	StatusInReview   = "In Review"
	StatusApproved   = "Approved"
	StatusActive     = "Active"
	StatusDenied     = "Denied"
	StatusTerminated = "Terminated"
)

// Record is one tracker row. All three trackers use the same shape.
type Record struct {
	ID             int64  `json:"id"`
	TenantID       int64  `json:"tenant_id"`
	ProviderID     int64  `json:"provider_id"`
	ProviderName   string `json:"provider_name"`
	Payer          string `json:"payer"`
	Status         string `json:"status"`
	SubmittedDate  string `json:"submitted_date"`
	FollowupDate   string `json:"followup_date"`
	ApprovedDate   string `json:"approved_date"`
	EffectiveDate  string `json:"effective_date"`
	ExpirationDate string `json:"expiration_date"`
	Owner          string `json:"owner"`
	Notes          string `json:"notes"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// Patch covers the mutable tracker fields.
type Patch struct {
	ProviderID     *int64  `json:"provider_id"`
	ProviderName   *string `json:"provider_name"`
	Payer          *string `json:"payer"`
	Status         *string `json:"status"`
	SubmittedDate  *string `json:"submitted_date"`
	FollowupDate   *string `json:"followup_date"`
	ApprovedDate   *string `json:"approved_date"`
	EffectiveDate  *string `json:"effective_date"`
	ExpirationDate *string `json:"expiration_date"`
	Owner          *string `json:"owner"`
	Notes          *string `json:"notes"`
}

// Tracker is a workflow repository bound to one tracker table.
type Tracker struct {
	db    *sql.DB
	table string
	now   func() time.Time
}

// Option configures a tracker.
type Option func(*Tracker)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(t *Tracker) {
		if fn != nil {
			t.now = fn
		}
	}
}

// NewCredentialing tracks payer credentialing applications.
func NewCredentialing(db *sql.DB, opts ...Option) *Tracker {
	return newTracker(db, "credentialing", opts...)
}

// NewEnrollment tracks payer enrollment.
func NewEnrollment(db *sql.DB, opts ...Option) *Tracker {
	return newTracker(db, "enrollment", opts...)
}

// NewEDI tracks EDI and ERA setup with clearinghouses.
func NewEDI(db *sql.DB, opts ...Option) *Tracker {
	return newTracker(db, "edi_setups", opts...)
}

func newTracker(db *sql.DB, table string, opts ...Option) *Tracker {
	t := &Tracker{db: db, table: table, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Table names the underlying tracker table.
func (t *Tracker) Table() string { return t.table }

const recordColumns = `id, tenant_id, provider_id, provider_name, payer, status,
	submitted_date, followup_date, approved_date, effective_date, expiration_date,
	owner, notes, created_at, updated_at`

// Create adds a tracker record. Status defaults to Not Started.
func (t *Tracker) Create(ctx context.Context, rec Record) (Record, error) {
	if rec.TenantID <= 0 {
		return Record{}, fault.Invalid("tenant_id is required")
	}
	if strings.TrimSpace(rec.ProviderName) == "" && rec.ProviderID <= 0 {
		return Record{}, fault.Invalid("provider_name or provider_id is required")
	}
	if rec.Status == "" {
		rec.Status = StatusNotStarted
	}
	now := t.now().UTC().Format(time.RFC3339)
	rec.CreatedAt, rec.UpdatedAt = now, now
	res, err := t.db.ExecContext(ctx, `
		insert into `+t.table+`(tenant_id, provider_id, provider_name, payer, status,
			submitted_date, followup_date, approved_date, effective_date, expiration_date,
			owner, notes, created_at, updated_at)
		values(?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.TenantID, rec.ProviderID, rec.ProviderName, rec.Payer, rec.Status,
		rec.SubmittedDate, rec.FollowupDate, rec.ApprovedDate, rec.EffectiveDate, rec.ExpirationDate,
		rec.Owner, rec.Notes, now, now)
	if err != nil {
		return Record{}, fault.Store(err)
	}
	if rec.ID, err = res.LastInsertId(); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Get returns one record by id.
func (t *Tracker) Get(ctx context.Context, id int64) (Record, error) {
	row := t.db.QueryRowContext(ctx,
		`select `+recordColumns+` from `+t.table+` where id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s record %d", fault.ErrNotFound, t.table, id)
	}
	if err != nil {
		return Record{}, fault.Store(err)
	}
	return rec, nil
}

// List returns records in scope, newest update first, optionally filtered by
// status token.
func (t *Tracker) List(ctx context.Context, sc scope.Scope, status string) ([]Record, error) {
	conds := []string{}
	args := []any{}
	conds, args = sc.Where(conds, args, "tenant_id")
	if status != "" {
		conds = append(conds, "status = ?")
		args = append(args, status)
	}
	query := `select ` + recordColumns + ` from ` + t.table
	if len(conds) > 0 {
		query += " where " + strings.Join(conds, " and ")
	}
	query += " order by updated_at desc, id desc"

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fault.Store(err)
	}
	defer rows.Close()

	var res []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// Update applies a partial patch, bumping updated_at. Missing ids are a
// silent no-op.
func (t *Tracker) Update(ctx context.Context, id int64, patch Patch) error {
	now := t.now().UTC().Format(time.RFC3339)
	sets := []string{"updated_at = ?"}
	args := []any{now}
	set := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if patch.ProviderID != nil {
		set("provider_id", *patch.ProviderID)
	}
	if patch.ProviderName != nil {
		set("provider_name", *patch.ProviderName)
	}
	if patch.Payer != nil {
		set("payer", *patch.Payer)
	}
	if patch.Status != nil {
		set("status", *patch.Status)
	}
	if patch.SubmittedDate != nil {
		set("submitted_date", *patch.SubmittedDate)
	}
	if patch.FollowupDate != nil {
		set("followup_date", *patch.FollowupDate)
	}
	if patch.ApprovedDate != nil {
		set("approved_date", *patch.ApprovedDate)
	}
	if patch.EffectiveDate != nil {
		set("effective_date", *patch.EffectiveDate)
	}
	if patch.ExpirationDate != nil {
		set("expiration_date", *patch.ExpirationDate)
	}
	if patch.Owner != nil {
		set("owner", *patch.Owner)
	}
	if patch.Notes != nil {
		set("notes", *patch.Notes)
	}
	args = append(args, id)
	if _, err := t.db.ExecContext(ctx,
		`update `+t.table+` set `+strings.Join(sets, ", ")+` where id = ?`, args...); err != nil {
		return fault.Store(err)
	}
	return nil
}

// Delete removes a record. Missing ids are not an error.
func (t *Tracker) Delete(ctx context.Context, id int64) error {
	if _, err := t.db.ExecContext(ctx, `delete from `+t.table+` where id = ?`, id); err != nil {
		return fault.Store(err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.TenantID, &rec.ProviderID, &rec.ProviderName, &rec.Payer,
		&rec.Status, &rec.SubmittedDate, &rec.FollowupDate, &rec.ApprovedDate,
		&rec.EffectiveDate, &rec.ExpirationDate, &rec.Owner, &rec.Notes,
		&rec.CreatedAt, &rec.UpdatedAt)
	return rec, err
}
