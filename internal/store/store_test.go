package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "clearbill.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, Migrate(context.Background(), db))
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	// A second pass must be a no-op, and a lost bookkeeping table must not
	// break re-application of IF NOT EXISTS DDL.
	require.NoError(t, Migrate(ctx, db))
	_, err := db.ExecContext(ctx, `drop table schema_migrations`)
	require.NoError(t, err)
	require.NoError(t, Migrate(ctx, db))

	var n int
	require.NoError(t, db.QueryRowContext(ctx, `select count(*) from schema_migrations`).Scan(&n))
	require.Equal(t, len(migrations), n)
}

func TestMigrateCreatesAllTables(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	for _, table := range []string{
		"principals", "sessions", "claims", "payments", "notes",
		"providers", "credentialing", "enrollment", "edi_setups", "files",
	} {
		var name string
		err := db.QueryRowContext(ctx,
			`select name from sqlite_master where type = 'table' and name = ?`, table).Scan(&name)
		require.NoError(t, err, "table %s missing", table)
	}
}

func TestSeedDemo(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	require.NoError(t, SeedDemo(ctx, db))

	// Fixed seeding order: admin gets id 1, the demo tenants 2 and 3.
	var role string
	require.NoError(t, db.QueryRowContext(ctx, `select role from principals where id = 1`).Scan(&role))
	require.Equal(t, "admin", role)
	require.NoError(t, db.QueryRowContext(ctx, `select role from principals where id = 2`).Scan(&role))
	require.Equal(t, "client", role)

	var claimCount int
	require.NoError(t, db.QueryRowContext(ctx, `select count(*) from claims`).Scan(&claimCount))
	require.Greater(t, claimCount, 0)

	// Seeded books must already satisfy the payment aggregation invariant.
	rows, err := db.QueryContext(ctx, `
		select c.claim_key, c.charge_cents, c.paid_cents, c.balance_cents,
			coalesce((select sum(p.amount_cents) from payments p
				where p.tenant_id = c.tenant_id and p.claim_key = c.claim_key), 0)
		from claims c`)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var key string
		var charge, paid, balance, sum int64
		require.NoError(t, rows.Scan(&key, &charge, &paid, &balance, &sum))
		require.Equal(t, sum, paid, "claim %s paid != payment sum", key)
		want := charge - paid
		if want < 0 {
			want = 0
		}
		require.Equal(t, want, balance, "claim %s balance", key)
	}
	require.NoError(t, rows.Err())

	// Second call is a no-op once principals exist.
	var before int
	require.NoError(t, db.QueryRowContext(ctx, `select count(*) from principals`).Scan(&before))
	require.NoError(t, SeedDemo(ctx, db))
	var after int
	require.NoError(t, db.QueryRowContext(ctx, `select count(*) from principals`).Scan(&after))
	require.Equal(t, before, after)
}
