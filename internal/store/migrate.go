package store

import (
	"context"
	"database/sql"
	"fmt"
)

// migration is a named, idempotent DDL step. Applied steps are recorded in
// schema_migrations; every statement must be safe to re-run anyway
// (CREATE ... IF NOT EXISTS) so a lost bookkeeping table cannot brick boot.
type migration struct {
	Name string
	SQL  string
}

var migrations = []migration{
	{
		Name: "0001_principals_sessions",
		SQL: `
create table if not exists principals (
	id integer primary key autoincrement,
	username text not null unique,
	password_hash text not null,
	salt text not null,
	company text not null default '',
	contact_name text not null default '',
	email text not null default '',
	phone text not null default '',
	role text not null default 'client',
	is_active integer not null default 1,
	created_at text not null,
	last_login text not null default ''
);
create table if not exists sessions (
	token text primary key,
	principal_id integer not null,
	created_at text not null,
	expires_at text not null
);`,
	},
	{
		Name: "0002_claims_payments_notes",
		SQL: `
create table if not exists claims (
	id integer primary key autoincrement,
	tenant_id integer not null,
	claim_key text not null,
	patient_name text not null default '',
	payor text not null default '',
	provider_name text not null default '',
	dos text not null default '',
	cpt_code text not null default '',
	description text not null default '',
	charge_cents integer not null default 0,
	allowed_cents integer not null default 0,
	adjustment_cents integer not null default 0,
	paid_cents integer not null default 0,
	balance_cents integer not null default 0,
	status text not null default 'Intake',
	status_start text not null default '',
	bill_date text not null default '',
	denied_date text not null default '',
	paid_date text not null default '',
	last_touched text not null default '',
	owner text not null default '',
	next_action text not null default '',
	next_action_due text not null default '',
	sla_breached integer not null default 0,
	denial_category text not null default '',
	denial_reason text not null default '',
	appeal_date text not null default '',
	appeal_status text not null default '',
	created_at text not null,
	updated_at text not null,
	unique (tenant_id, claim_key)
);
create table if not exists payments (
	id integer primary key autoincrement,
	tenant_id integer not null,
	claim_key text not null,
	post_date text not null default '',
	amount_cents integer not null default 0,
	adjustment_cents integer not null default 0,
	payer_type text not null default 'Primary',
	check_number text not null default '',
	era text not null default '',
	notes text not null default '',
	created_at text not null
);
create table if not exists notes (
	id integer primary key autoincrement,
	tenant_id integer not null,
	claim_key text not null default '',
	module text not null default 'Claim',
	ref_id text not null default '',
	note text not null,
	author text not null default '',
	created_at text not null
);`,
	},
	{
		Name: "0003_providers_workflows_files",
		SQL: `
create table if not exists providers (
	id integer primary key autoincrement,
	tenant_id integer not null,
	name text not null,
	npi text not null default '',
	specialty text not null default '',
	tax_id text not null default '',
	status text not null default 'Active',
	start_date text not null default '',
	end_date text not null default '',
	notes text not null default '',
	created_at text not null,
	updated_at text not null
);
create table if not exists credentialing (
	id integer primary key autoincrement,
	tenant_id integer not null,
	provider_id integer not null default 0,
	provider_name text not null default '',
	payer text not null default '',
	status text not null default 'Not Started',
	submitted_date text not null default '',
	followup_date text not null default '',
	approved_date text not null default '',
	effective_date text not null default '',
	expiration_date text not null default '',
	owner text not null default '',
	notes text not null default '',
	created_at text not null,
	updated_at text not null
);
create table if not exists enrollment (
	id integer primary key autoincrement,
	tenant_id integer not null,
	provider_id integer not null default 0,
	provider_name text not null default '',
	payer text not null default '',
	status text not null default 'Not Started',
	submitted_date text not null default '',
	followup_date text not null default '',
	approved_date text not null default '',
	effective_date text not null default '',
	expiration_date text not null default '',
	owner text not null default '',
	notes text not null default '',
	created_at text not null,
	updated_at text not null
);
create table if not exists edi_setups (
	id integer primary key autoincrement,
	tenant_id integer not null,
	provider_id integer not null default 0,
	provider_name text not null default '',
	payer text not null default '',
	status text not null default 'Not Started',
	submitted_date text not null default '',
	followup_date text not null default '',
	approved_date text not null default '',
	effective_date text not null default '',
	expiration_date text not null default '',
	owner text not null default '',
	notes text not null default '',
	created_at text not null,
	updated_at text not null
);
create table if not exists files (
	id integer primary key autoincrement,
	tenant_id integer not null,
	stored_name text not null,
	original_name text not null default '',
	content_type text not null default '',
	size_bytes integer not null default 0,
	category text not null default '',
	description text not null default '',
	status text not null default 'Uploaded',
	row_count integer not null default 0,
	uploaded_by text not null default '',
	created_at text not null
);`,
	},
	{
		Name: "0004_indexes",
		SQL: `
create index if not exists idx_claims_tenant on claims(tenant_id);
create index if not exists idx_claims_status on claims(status);
create index if not exists idx_claims_key on claims(claim_key);
create index if not exists idx_payments_key on payments(claim_key);
create index if not exists idx_notes_key on notes(claim_key);
create index if not exists idx_credentialing_tenant on credentialing(tenant_id);
create index if not exists idx_enrollment_tenant on enrollment(tenant_id);
create index if not exists idx_edi_tenant on edi_setups(tenant_id);
create index if not exists idx_providers_tenant on providers(tenant_id);
create index if not exists idx_files_tenant on files(tenant_id);`,
	},
}

// Migrate applies all pending migrations. Safe to call on every startup.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		create table if not exists schema_migrations (
			name text primary key,
			applied_at text not null
		)`); err != nil {
		return err
	}
	applied, err := appliedMigrations(ctx, db)
	if err != nil {
		return err
	}
	for _, mig := range migrations {
		if applied[mig.Name] {
			continue
		}
		if err := applyMigration(ctx, db, mig); err != nil {
			return fmt.Errorf("apply migration %s: %w", mig.Name, err)
		}
	}
	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, mig migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, mig.SQL); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`insert into schema_migrations(name, applied_at) values(?, datetime('now'))`,
		mig.Name); err != nil {
		return err
	}
	return tx.Commit()
}

func appliedMigrations(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `select name from schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		applied[name] = true
	}
	return applied, rows.Err()
}
