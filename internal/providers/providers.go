// Package providers holds the per-tenant provider roster.
package providers

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

// Provider is one roster entry.
type Provider struct {
	ID        int64  `json:"id"`
	TenantID  int64  `json:"tenant_id"`
	Name      string `json:"name"`
	NPI       string `json:"npi"`
	Specialty string `json:"specialty"`
	TaxID     string `json:"tax_id"`
	Status    string `json:"status"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Notes     string `json:"notes"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// Patch covers the mutable roster fields.
type Patch struct {
	Name      *string `json:"name"`
	NPI       *string `json:"npi"`
	Specialty *string `json:"specialty"`
	TaxID     *string `json:"tax_id"`
	Status    *string `json:"status"`
	StartDate *string `json:"start_date"`
	EndDate   *string `json:"end_date"`
	Notes     *string `json:"notes"`
}

// Roster is the provider repository.
type Roster struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures the roster.
type Option func(*Roster)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(r *Roster) {
		if fn != nil {
			r.now = fn
		}
	}
}

// New constructs the roster over an open store handle.
func New(db *sql.DB, opts ...Option) *Roster {
	r := &Roster{db: db, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create adds a roster entry.
func (r *Roster) Create(ctx context.Context, p Provider) (Provider, error) {
	if p.TenantID <= 0 {
		return Provider{}, fault.Invalid("tenant_id is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return Provider{}, fault.Invalid("name is required")
	}
	if p.Status == "" {
		p.Status = "Active"
	}
	now := r.now().UTC().Format(time.RFC3339)
	p.CreatedAt, p.UpdatedAt = now, now
	res, err := r.db.ExecContext(ctx, `
		insert into providers(tenant_id, name, npi, specialty, tax_id, status, start_date, end_date, notes, created_at, updated_at)
		values(?,?,?,?,?,?,?,?,?,?,?)`,
		p.TenantID, p.Name, p.NPI, p.Specialty, p.TaxID, p.Status, p.StartDate, p.EndDate, p.Notes, now, now)
	if err != nil {
		return Provider{}, fault.Store(err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return Provider{}, err
	}
	return p, nil
}

// Get returns one roster entry by id.
func (r *Roster) Get(ctx context.Context, id int64) (Provider, error) {
	row := r.db.QueryRowContext(ctx, `
		select id, tenant_id, name, npi, specialty, tax_id, status, start_date, end_date, notes, created_at, updated_at
		from providers where id = ?`, id)
	var p Provider
	err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.NPI, &p.Specialty, &p.TaxID, &p.Status,
		&p.StartDate, &p.EndDate, &p.Notes, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Provider{}, fmt.Errorf("%w: provider %d", fault.ErrNotFound, id)
	}
	if err != nil {
		return Provider{}, fault.Store(err)
	}
	return p, nil
}

// List returns roster entries in scope, newest update first.
func (r *Roster) List(ctx context.Context, sc scope.Scope) ([]Provider, error) {
	conds := []string{}
	args := []any{}
	conds, args = sc.Where(conds, args, "tenant_id")
	query := `select id, tenant_id, name, npi, specialty, tax_id, status, start_date, end_date, notes, created_at, updated_at from providers`
	if len(conds) > 0 {
		query += " where " + strings.Join(conds, " and ")
	}
	query += " order by updated_at desc, id desc"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fault.Store(err)
	}
	defer rows.Close()

	var res []Provider
	for rows.Next() {
		var p Provider
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Name, &p.NPI, &p.Specialty, &p.TaxID, &p.Status,
			&p.StartDate, &p.EndDate, &p.Notes, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// Update applies a partial patch, bumping updated_at. Missing ids are a
// silent no-op.
func (r *Roster) Update(ctx context.Context, id int64, patch Patch) error {
	now := r.now().UTC().Format(time.RFC3339)
	sets := []string{"updated_at = ?"}
	args := []any{now}
	set := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if patch.Name != nil {
		set("name", *patch.Name)
	}
	if patch.NPI != nil {
		set("npi", *patch.NPI)
	}
	if patch.Specialty != nil {
		set("specialty", *patch.Specialty)
	}
	if patch.TaxID != nil {
		set("tax_id", *patch.TaxID)
	}
	if patch.Status != nil {
		set("status", *patch.Status)
	}
	if patch.StartDate != nil {
		set("start_date", *patch.StartDate)
	}
	if patch.EndDate != nil {
		set("end_date", *patch.EndDate)
	}
	if patch.Notes != nil {
		set("notes", *patch.Notes)
	}
	args = append(args, id)
	if _, err := r.db.ExecContext(ctx,
		`update providers set `+strings.Join(sets, ", ")+` where id = ?`, args...); err != nil {
		return fault.Store(err)
	}
	return nil
}

// Delete removes a roster entry. Missing ids are not an error.
func (r *Roster) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `delete from providers where id = ?`, id); err != nil {
		return fault.Store(err)
	}
	return nil
}
