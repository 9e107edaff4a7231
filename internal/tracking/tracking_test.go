package tracking

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

func newTestTrackers(t *testing.T) (*Tracker, *Tracker, *Tracker, *time.Time) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.Migrate(context.Background(), db))

	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	clock := WithClock(func() time.Time { return now })
	return NewCredentialing(db, clock), NewEnrollment(db, clock), NewEDI(db, clock), &now
}

func TestTrackersAreIndependentTables(t *testing.T) {
	ctx := context.Background()
	cred, enr, edi, _ := newTestTrackers(t)

	_, err := cred.Create(ctx, Record{TenantID: 2, ProviderName: "Dr. Chen", Payer: "Aetna"})
	require.NoError(t, err)
	_, err = enr.Create(ctx, Record{TenantID: 2, ProviderName: "Dr. Chen", Payer: "Cigna"})
	require.NoError(t, err)

	credList, err := cred.List(ctx, scope.Tenant(2), "")
	require.NoError(t, err)
	require.Len(t, credList, 1)
	require.Equal(t, "Aetna", credList[0].Payer)

	ediList, err := edi.List(ctx, scope.Tenant(2), "")
	require.NoError(t, err)
	require.Empty(t, ediList)
}

func TestCreateDefaultsAndValidation(t *testing.T) {
	ctx := context.Background()
	cred, _, _, _ := newTestTrackers(t)

	rec, err := cred.Create(ctx, Record{TenantID: 2, ProviderName: "Dr. Chen"})
	require.NoError(t, err)
	require.Equal(t, StatusNotStarted, rec.Status)

	_, err = cred.Create(ctx, Record{ProviderName: "Dr. Chen"})
	require.ErrorIs(t, err, fault.ErrInvalidInput)
	_, err = cred.Create(ctx, Record{TenantID: 2})
	require.ErrorIs(t, err, fault.ErrInvalidInput)

	// Unrecognized status tokens are stored verbatim.
	odd, err := cred.Create(ctx, Record{TenantID: 2, ProviderName: "Dr. Wu", Status: "Paused"})
	require.NoError(t, err)
	require.Equal(t, "Paused", odd.Status)
}

func TestStatusFilterAndUpdateBumpsUpdatedAt(t *testing.T) {
	ctx := context.Background()
	cred, _, _, now := newTestTrackers(t)

	rec, err := cred.Create(ctx, Record{TenantID: 2, ProviderName: "Dr. Chen"})
	require.NoError(t, err)

	*now = now.Add(time.Hour)
	status := StatusSubmitted
	submitted := "2026-02-01"
	require.NoError(t, cred.Update(ctx, rec.ID, Patch{Status: &status, SubmittedDate: &submitted}))

	got, err := cred.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSubmitted, got.Status)
	require.Equal(t, now.Format(time.RFC3339), got.UpdatedAt)

	filtered, err := cred.List(ctx, scope.Tenant(2), StatusSubmitted)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	none, err := cred.List(ctx, scope.Tenant(2), StatusApproved)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestDeleteAndMissingGet(t *testing.T) {
	ctx := context.Background()
	cred, _, _, _ := newTestTrackers(t)

	rec, err := cred.Create(ctx, Record{TenantID: 2, ProviderName: "Dr. Chen"})
	require.NoError(t, err)
	require.NoError(t, cred.Delete(ctx, rec.ID))
	require.NoError(t, cred.Delete(ctx, rec.ID))
	_, err = cred.Get(ctx, rec.ID)
	require.ErrorIs(t, err, fault.ErrNotFound)

	// Patching a missing id is a silent no-op.
	owner := "nobody"
	require.NoError(t, cred.Update(ctx, rec.ID, Patch{Owner: &owner}))
}
