package files

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"clearbill.io/internal/fault"
	"clearbill.io/internal/scope"
	"clearbill.io/internal/store"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.Migrate(context.Background(), db))
	return New(db)
}

func TestStoredNameKeepsOnlyExtension(t *testing.T) {
	name := StoredName("../../etc/Jan Claims.XLSX")
	require.True(t, strings.HasSuffix(name, ".xlsx"))
	require.NotContains(t, name, "/")
	require.NotContains(t, name, "Jan")
	require.NotEqual(t, name, StoredName("other.xlsx"))
}

func TestRegisterAndList(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)

	rec, err := reg.Register(ctx, Record{
		TenantID: 2, OriginalName: "claims.csv", ContentType: "text/csv",
		SizeBytes: 2048, Category: "import", UploadedBy: "alphamed",
	})
	require.NoError(t, err)
	require.Equal(t, StatusUploaded, rec.Status)
	require.NotEmpty(t, rec.StoredName)

	_, err = reg.Register(ctx, Record{OriginalName: "x.csv"})
	require.ErrorIs(t, err, fault.ErrInvalidInput)
	_, err = reg.Register(ctx, Record{TenantID: 2})
	require.ErrorIs(t, err, fault.ErrInvalidInput)

	_, err = reg.Register(ctx, Record{TenantID: 3, OriginalName: "other.csv"})
	require.NoError(t, err)

	mine, err := reg.List(ctx, scope.Tenant(2))
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, "claims.csv", mine[0].OriginalName)
}

func TestMarkProcessed(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)

	rec, err := reg.Register(ctx, Record{TenantID: 2, OriginalName: "claims.csv"})
	require.NoError(t, err)

	require.NoError(t, reg.MarkProcessed(ctx, rec.ID, 250, false))
	got, err := reg.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, StatusProcessed, got.Status)
	require.EqualValues(t, 250, got.RowCount)

	require.NoError(t, reg.MarkProcessed(ctx, rec.ID, 0, true))
	got, err = reg.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, got.Status)
}

func TestDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)

	rec, err := reg.Register(ctx, Record{TenantID: 2, OriginalName: "claims.csv"})
	require.NoError(t, err)
	require.NoError(t, reg.Delete(ctx, rec.ID))
	require.NoError(t, reg.Delete(ctx, rec.ID))
	_, err = reg.Get(ctx, rec.ID)
	require.ErrorIs(t, err, fault.ErrNotFound)
}
