// Package ledger records per-claim payment events and enforces the payment
// aggregation invariant: a claim's paid amount always equals the sum of its
// payment events, and balance = max(0, charge - paid). Every mutation
// re-derives the aggregate inside the same transaction, so the invariant
// holds after every commit regardless of interleaving.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"clearbill.io/internal/fault"
	"clearbill.io/internal/money"
)

// Recognized payer types.
const (
	PayerPrimary   = "Primary"
	PayerSecondary = "Secondary"
	PayerPatient   = "Patient"
)

// Event is a single posted payment. There is no update operation; a
// correction is a void followed by a fresh event.
type Event struct {
	ID          int64       `json:"id"`
	TenantID    int64       `json:"tenant_id"`
	ClaimKey    string      `json:"claim_key"`
	PostDate    string      `json:"post_date"`
	Amount      money.Cents `json:"amount_cents"`
	Adjustment  money.Cents `json:"adjustment_cents"`
	PayerType   string      `json:"payer_type"`
	CheckNumber string      `json:"check_number"`
	ERA         string      `json:"era"`
	Notes       string      `json:"notes"`
	CreatedAt   string      `json:"created_at"`
}

// Ledger posts and voids payment events.
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures the ledger.
type Option func(*Ledger)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(l *Ledger) {
		if fn != nil {
			l.now = fn
		}
	}
}

// New constructs the ledger over an open store handle.
func New(db *sql.DB, opts ...Option) *Ledger {
	l := &Ledger{db: db, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record inserts the event and re-establishes the invariant on the target
// claim, all inside one transaction. The store's single-writer transactions
// are serializable, so the re-summed aggregate is correct under concurrency.
func (l *Ledger) Record(ctx context.Context, e Event) (Event, error) {
	if e.TenantID <= 0 {
		return Event{}, fault.Invalid("tenant_id is required")
	}
	e.ClaimKey = strings.TrimSpace(e.ClaimKey)
	if e.ClaimKey == "" {
		return Event{}, fault.Invalid("claim_key is required")
	}
	if e.Amount < 0 || e.Adjustment < 0 {
		return Event{}, fault.Invalid("monetary fields must not be negative")
	}
	if e.PayerType == "" {
		e.PayerType = PayerPrimary
	}
	if e.PayerType != PayerPrimary && e.PayerType != PayerSecondary && e.PayerType != PayerPatient {
		return Event{}, fault.Invalid("unknown payer type %q", e.PayerType)
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return Event{}, fault.Store(err)
	}
	defer func() { _ = tx.Rollback() }()

	e.CreatedAt = l.now().UTC().Format(time.RFC3339)
	res, err := tx.ExecContext(ctx, `
		insert into payments(tenant_id, claim_key, post_date, amount_cents, adjustment_cents,
			payer_type, check_number, era, notes, created_at)
		values(?,?,?,?,?,?,?,?,?,?)`,
		e.TenantID, e.ClaimKey, e.PostDate, int64(e.Amount), int64(e.Adjustment),
		e.PayerType, e.CheckNumber, e.ERA, e.Notes, e.CreatedAt)
	if err != nil {
		return Event{}, fault.Store(err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return Event{}, err
	}
	if err := l.resync(ctx, tx, e.TenantID, e.ClaimKey); err != nil {
		return Event{}, err
	}
	if err := tx.Commit(); err != nil {
		return Event{}, fault.Store(err)
	}
	return e, nil
}

// Void deletes the event and re-establishes the invariant on its claim.
// Voiding a missing event is not an error.
func (l *Ledger) Void(ctx context.Context, id int64) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fault.Store(err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		tenantID int64
		claimKey string
	)
	err = tx.QueryRowContext(ctx,
		`select tenant_id, claim_key from payments where id = ?`, id).Scan(&tenantID, &claimKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fault.Store(err)
	}
	if _, err := tx.ExecContext(ctx, `delete from payments where id = ?`, id); err != nil {
		return fault.Store(err)
	}
	if err := l.resync(ctx, tx, tenantID, claimKey); err != nil {
		return err
	}
	return fault.Store(tx.Commit())
}

// Find returns one event by id.
func (l *Ledger) Find(ctx context.Context, id int64) (Event, error) {
	row := l.db.QueryRowContext(ctx, `
		select id, tenant_id, claim_key, post_date, amount_cents, adjustment_cents,
			payer_type, check_number, era, notes, created_at
		from payments where id = ?`, id)
	var e Event
	err := row.Scan(&e.ID, &e.TenantID, &e.ClaimKey, &e.PostDate, &e.Amount, &e.Adjustment,
		&e.PayerType, &e.CheckNumber, &e.ERA, &e.Notes, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Event{}, fmt.Errorf("%w: payment %d", fault.ErrNotFound, id)
	}
	if err != nil {
		return Event{}, fault.Store(err)
	}
	return e, nil
}

// List returns the events for one claim, newest post first.
func (l *Ledger) List(ctx context.Context, tenantID int64, claimKey string) ([]Event, error) {
	rows, err := l.db.QueryContext(ctx, `
		select id, tenant_id, claim_key, post_date, amount_cents, adjustment_cents,
			payer_type, check_number, era, notes, created_at
		from payments
		where tenant_id = ? and claim_key = ?
		order by post_date desc, created_at desc, id desc`, tenantID, claimKey)
	if err != nil {
		return nil, fault.Store(err)
	}
	defer rows.Close()

	var res []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.TenantID, &e.ClaimKey, &e.PostDate, &e.Amount, &e.Adjustment,
			&e.PayerType, &e.CheckNumber, &e.ERA, &e.Notes, &e.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// resync recomputes paid and balance for the claim from the payment rows.
// Runs inside the caller's transaction; updating a claim that no longer
// exists is a silent no-op.
func (l *Ledger) resync(ctx context.Context, tx *sql.Tx, tenantID int64, claimKey string) error {
	var sum int64
	if err := tx.QueryRowContext(ctx, `
		select coalesce(sum(amount_cents), 0) from payments
		where tenant_id = ? and claim_key = ?`, tenantID, claimKey).Scan(&sum); err != nil {
		return fault.Store(err)
	}
	now := l.now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx, `
		update claims
		set paid_cents = ?, balance_cents = max(0, charge_cents - ?), updated_at = ?, last_touched = ?
		where tenant_id = ? and claim_key = ?`,
		sum, sum, now, now, tenantID, claimKey); err != nil {
		return fault.Store(err)
	}
	return nil
}
