package notes

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"clearbill.io/internal/fault"
	"clearbill.io/internal/scope"
	"clearbill.io/internal/store"
)

func newTestLog(t *testing.T) (*Log, *time.Time) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.Migrate(context.Background(), db))

	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	return New(db, WithClock(func() time.Time { return now })), &now
}

func TestAppendDefaultsAndValidation(t *testing.T) {
	ctx := context.Background()
	log, _ := newTestLog(t)

	n, err := log.Append(ctx, Note{TenantID: 2, ClaimKey: "CLM-A", Note: "called payer"})
	require.NoError(t, err)
	require.Equal(t, ModuleClaim, n.Module)
	require.NotZero(t, n.ID)

	_, err = log.Append(ctx, Note{ClaimKey: "CLM-A", Note: "x"})
	require.ErrorIs(t, err, fault.ErrInvalidInput)
	_, err = log.Append(ctx, Note{TenantID: 2, Note: "   "})
	require.ErrorIs(t, err, fault.ErrInvalidInput)
	_, err = log.Append(ctx, Note{TenantID: 2, Note: "x", Module: "Payroll"})
	require.ErrorIs(t, err, fault.ErrInvalidInput)
}

func TestListFiltersAndOrdersOldestFirst(t *testing.T) {
	ctx := context.Background()
	log, now := newTestLog(t)

	_, err := log.Append(ctx, Note{TenantID: 2, ClaimKey: "CLM-A", Note: "first"})
	require.NoError(t, err)
	*now = now.Add(time.Minute)
	_, err = log.Append(ctx, Note{TenantID: 2, ClaimKey: "CLM-A", Note: "second"})
	require.NoError(t, err)
	*now = now.Add(time.Minute)
	_, err = log.Append(ctx, Note{TenantID: 2, Module: ModuleEDI, RefID: "7", Note: "era live"})
	require.NoError(t, err)
	_, err = log.Append(ctx, Note{TenantID: 3, ClaimKey: "CLM-A", Note: "other tenant"})
	require.NoError(t, err)

	claimNotes, err := log.List(ctx, scope.Tenant(2), Filter{ClaimKey: "CLM-A"})
	require.NoError(t, err)
	require.Len(t, claimNotes, 2)
	require.Equal(t, "first", claimNotes[0].Note)
	require.Equal(t, "second", claimNotes[1].Note)

	ediNotes, err := log.List(ctx, scope.Tenant(2), Filter{Module: ModuleEDI, RefID: "7"})
	require.NoError(t, err)
	require.Len(t, ediNotes, 1)

	all, err := log.List(ctx, scope.Everything(), Filter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
}

func TestDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	log, _ := newTestLog(t)

	n, err := log.Append(ctx, Note{TenantID: 2, Note: "x"})
	require.NoError(t, err)
	require.NoError(t, log.Delete(ctx, n.ID))
	require.NoError(t, log.Delete(ctx, n.ID))
	_, err = log.Get(ctx, n.ID)
	require.ErrorIs(t, err, fault.ErrNotFound)
}
