package claims

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

const claimColumns = `id, tenant_id, claim_key, patient_name, payor, provider_name, dos, cpt_code,
	description, charge_cents, allowed_cents, adjustment_cents, paid_cents, balance_cents,
	status, status_start, bill_date, denied_date, paid_date, last_touched,
	owner, next_action, next_action_due, sla_breached,
	denial_category, denial_reason, appeal_date, appeal_status, created_at, updated_at`

// Repo is the claim repository.
type Repo struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures the repository.
type Option func(*Repo)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(r *Repo) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewRepo constructs the claim repository over an open store handle.
func NewRepo(db *sql.DB, opts ...Option) *Repo {
	r := &Repo{db: db, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Repo) stamp() string { return r.now().UTC().Format(time.RFC3339) }

// Create inserts a new claim. (tenant_id, claim_key) must be unique; the
// status defaults to Intake with status bookkeeping stamped to now.
func (r *Repo) Create(ctx context.Context, in CreateInput) (Claim, error) {
	if in.TenantID <= 0 {
		return Claim{}, fault.Invalid("tenant_id is required")
	}
	in.ClaimKey = strings.TrimSpace(in.ClaimKey)
	if in.ClaimKey == "" {
		return Claim{}, fault.Invalid("claim_key is required")
	}
	if in.Charge < 0 || in.Allowed < 0 || in.Adjustment < 0 {
		return Claim{}, fault.Invalid("monetary fields must not be negative")
	}
	status := in.Status
	if status == "" {
		status = StatusIntake
	}
	if !ValidStatus(status) {
		return Claim{}, fault.Invalid("unknown status %q", status)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Claim{}, fault.Store(err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx,
		`select 1 from claims where tenant_id = ? and claim_key = ?`,
		in.TenantID, in.ClaimKey).Scan(&exists)
	if err == nil {
		return Claim{}, fmt.Errorf("%w: claim %s for tenant %d", fault.ErrDuplicate, in.ClaimKey, in.TenantID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Claim{}, fault.Store(err)
	}

	now := r.stamp()
	balance := in.Charge
	res, err := tx.ExecContext(ctx, `
		insert into claims(tenant_id, claim_key, patient_name, payor, provider_name, dos, cpt_code,
			description, charge_cents, allowed_cents, adjustment_cents, paid_cents, balance_cents,
			status, status_start, bill_date, owner, last_touched, created_at, updated_at)
		values(?,?,?,?,?,?,?,?,?,?,?,0,?,?,?,?,?,?,?,?)`,
		in.TenantID, in.ClaimKey, in.PatientName, in.Payor, in.ProviderName, in.DOS, in.CPTCode,
		in.Description, int64(in.Charge), int64(in.Allowed), int64(in.Adjustment), int64(balance),
		status, now, in.BillDate, in.Owner, now, now, now)
	if err != nil {
		return Claim{}, fault.Store(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Claim{}, err
	}
	if err := tx.Commit(); err != nil {
		return Claim{}, fault.Store(err)
	}
	return r.Get(ctx, id)
}

// Get returns one claim by id.
func (r *Repo) Get(ctx context.Context, id int64) (Claim, error) {
	row := r.db.QueryRowContext(ctx, `select `+claimColumns+` from claims where id = ?`, id)
	c, err := scanClaim(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Claim{}, fmt.Errorf("%w: claim %d", fault.ErrNotFound, id)
	}
	if err != nil {
		return Claim{}, fault.Store(err)
	}
	return c, nil
}

// GetByKey returns one claim by its tenant-scoped key.
func (r *Repo) GetByKey(ctx context.Context, tenantID int64, claimKey string) (Claim, error) {
	row := r.db.QueryRowContext(ctx,
		`select `+claimColumns+` from claims where tenant_id = ? and claim_key = ?`, tenantID, claimKey)
	c, err := scanClaim(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Claim{}, fmt.Errorf("%w: claim %s", fault.ErrNotFound, claimKey)
	}
	if err != nil {
		return Claim{}, fault.Store(err)
	}
	return c, nil
}

// List returns claims visible to the scope, newest update first, optionally
// filtered by status.
func (r *Repo) List(ctx context.Context, sc scope.Scope, status string) ([]Claim, error) {
	conds := []string{}
	args := []any{}
	conds, args = sc.Where(conds, args, "tenant_id")
	if status != "" {
		conds = append(conds, "status = ?")
		args = append(args, status)
	}
	query := `select ` + claimColumns + ` from claims`
	if len(conds) > 0 {
		query += " where " + strings.Join(conds, " and ")
	}
	query += " order by updated_at desc, id desc"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fault.Store(err)
	}
	defer rows.Close()

	var res []Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// Update applies a partial patch. Every call bumps updated_at and
// last_touched; a status change additionally resets status_start. Patching a
// missing id is a silent no-op.
func (r *Repo) Update(ctx context.Context, id int64, patch Patch) error {
	if patch.Status != nil && !ValidStatus(*patch.Status) {
		return fault.Invalid("unknown status %q", *patch.Status)
	}
	if (patch.Charge != nil && *patch.Charge < 0) ||
		(patch.Allowed != nil && *patch.Allowed < 0) ||
		(patch.Adjustment != nil && *patch.Adjustment < 0) {
		return fault.Invalid("monetary fields must not be negative")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fault.Store(err)
	}
	defer func() { _ = tx.Rollback() }()

	var current string
	err = tx.QueryRowContext(ctx, `select status from claims where id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fault.Store(err)
	}

	now := r.stamp()
	sets := []string{"updated_at = ?", "last_touched = ?"}
	args := []any{now, now}
	set := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if patch.PatientName != nil {
		set("patient_name", *patch.PatientName)
	}
	if patch.Payor != nil {
		set("payor", *patch.Payor)
	}
	if patch.ProviderName != nil {
		set("provider_name", *patch.ProviderName)
	}
	if patch.DOS != nil {
		set("dos", *patch.DOS)
	}
	if patch.CPTCode != nil {
		set("cpt_code", *patch.CPTCode)
	}
	if patch.Description != nil {
		set("description", *patch.Description)
	}
	if patch.Charge != nil {
		// Balance tracks a charge change immediately; the ledger re-derives
		// it again on the next payment operation.
		sets = append(sets, "charge_cents = ?", "balance_cents = max(0, ? - paid_cents)")
		args = append(args, int64(*patch.Charge), int64(*patch.Charge))
	}
	if patch.Allowed != nil {
		set("allowed_cents", int64(*patch.Allowed))
	}
	if patch.Adjustment != nil {
		set("adjustment_cents", int64(*patch.Adjustment))
	}
	if patch.Status != nil {
		set("status", *patch.Status)
		if *patch.Status != current {
			set("status_start", now)
		}
	}
	if patch.BillDate != nil {
		set("bill_date", *patch.BillDate)
	}
	if patch.DeniedDate != nil {
		set("denied_date", *patch.DeniedDate)
	}
	if patch.PaidDate != nil {
		set("paid_date", *patch.PaidDate)
	}
	if patch.Owner != nil {
		set("owner", *patch.Owner)
	}
	if patch.NextAction != nil {
		set("next_action", *patch.NextAction)
	}
	if patch.NextActionDue != nil {
		set("next_action_due", *patch.NextActionDue)
	}
	if patch.SLABreached != nil {
		v := 0
		if *patch.SLABreached {
			v = 1
		}
		set("sla_breached", v)
	}
	if patch.DenialCategory != nil {
		set("denial_category", *patch.DenialCategory)
	}
	if patch.DenialReason != nil {
		set("denial_reason", *patch.DenialReason)
	}
	if patch.AppealDate != nil {
		set("appeal_date", *patch.AppealDate)
	}
	if patch.AppealStatus != nil {
		set("appeal_status", *patch.AppealStatus)
	}

	query := `update claims set ` + strings.Join(sets, ", ") + ` where id = ?`
	args = append(args, id)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fault.Store(err)
	}
	return fault.Store(tx.Commit())
}

// Delete removes a claim. Payments and notes keep their rows as orphaned
// references. Deleting a missing id is not an error.
func (r *Repo) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `delete from claims where id = ?`, id); err != nil {
		return fault.Store(err)
	}
	return nil
}

// NormalizeStatuses canonicalizes legacy status spellings. One-shot startup
// repair; unknown statuses are left untouched. Returns the number of rows
// rewritten.
func (r *Repo) NormalizeStatuses(ctx context.Context) (int64, error) {
	var total int64
	for legacy, canonical := range legacyStatuses {
		res, err := r.db.ExecContext(ctx,
			`update claims set status = ? where status = ?`, canonical, legacy)
		if err != nil {
			return total, fault.Store(err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClaim(row rowScanner) (Claim, error) {
	var c Claim
	var sla int
	err := row.Scan(&c.ID, &c.TenantID, &c.ClaimKey, &c.PatientName, &c.Payor, &c.ProviderName,
		&c.DOS, &c.CPTCode, &c.Description, &c.Charge, &c.Allowed, &c.Adjustment, &c.Paid,
		&c.Balance, &c.Status, &c.StatusStart, &c.BillDate, &c.DeniedDate, &c.PaidDate,
		&c.LastTouched, &c.Owner, &c.NextAction, &c.NextActionDue, &sla,
		&c.DenialCategory, &c.DenialReason, &c.AppealDate, &c.AppealStatus,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Claim{}, err
	}
	c.SLABreached = sla == 1
	return c, nil
}
