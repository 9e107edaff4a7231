package ledger

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"clearbill.io/internal/claims"
	"clearbill.io/internal/fault"
	"clearbill.io/internal/money"
	"clearbill.io/internal/store"
)

func newTestLedger(t *testing.T) (*Ledger, *claims.Repo, *sql.DB) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.Migrate(context.Background(), db))
	return New(db), claims.NewRepo(db), db
}

func mustClaim(t *testing.T, repo *claims.Repo, tenant int64, key string, charge money.Cents) claims.Claim {
	t.Helper()
	c, err := repo.Create(context.Background(), claims.CreateInput{
		TenantID: tenant, ClaimKey: key, Charge: charge,
	})
	require.NoError(t, err)
	return c
}

func TestRecordMaintainsAggregate(t *testing.T) {
	ctx := context.Background()
	led, repo, _ := newTestLedger(t)
	c := mustClaim(t, repo, 2, "CLM-A", money.FromDollars(185.00))

	e, err := led.Record(ctx, Event{
		TenantID: 2, ClaimKey: "CLM-A", PostDate: "2026-01-20",
		Amount: money.FromDollars(130.00), Adjustment: money.FromDollars(48.75),
	})
	require.NoError(t, err)
	require.Equal(t, PayerPrimary, e.PayerType)
	require.NotZero(t, e.ID)

	got, err := repo.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, money.Cents(13000), got.Paid)
	require.Equal(t, money.Cents(5500), got.Balance)
	require.GreaterOrEqual(t, got.UpdatedAt, c.UpdatedAt)
	require.Equal(t, got.UpdatedAt, got.LastTouched)
}

func TestOverpaymentClampsBalance(t *testing.T) {
	ctx := context.Background()
	led, repo, _ := newTestLedger(t)
	c := mustClaim(t, repo, 2, "CLM-A", money.FromDollars(100.00))

	for i := 0; i < 3; i++ {
		_, err := led.Record(ctx, Event{
			TenantID: 2, ClaimKey: "CLM-A", Amount: money.FromDollars(40.00),
		})
		require.NoError(t, err)
	}

	got, err := repo.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, money.Cents(12000), got.Paid)
	require.Equal(t, money.Cents(0), got.Balance)
}

func TestVoidRestoresAggregate(t *testing.T) {
	ctx := context.Background()
	led, repo, _ := newTestLedger(t)
	c := mustClaim(t, repo, 2, "CLM-A", money.FromDollars(185.00))

	e1, err := led.Record(ctx, Event{TenantID: 2, ClaimKey: "CLM-A", Amount: 5000})
	require.NoError(t, err)
	e2, err := led.Record(ctx, Event{TenantID: 2, ClaimKey: "CLM-A", Amount: 8000})
	require.NoError(t, err)

	require.NoError(t, led.Void(ctx, e2.ID))

	got, err := repo.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, money.Cents(5000), got.Paid)
	require.Equal(t, money.Cents(13500), got.Balance)

	require.NoError(t, led.Void(ctx, e1.ID))
	got, err = repo.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, money.Cents(0), got.Paid)
	require.Equal(t, c.Balance, got.Balance)

	_, err = led.Find(ctx, e1.ID)
	require.ErrorIs(t, err, fault.ErrNotFound)
}

func TestVoidMissingEventIsSilent(t *testing.T) {
	led, _, _ := newTestLedger(t)
	require.NoError(t, led.Void(context.Background(), 9999))
}

func TestRecordValidation(t *testing.T) {
	ctx := context.Background()
	led, _, _ := newTestLedger(t)

	_, err := led.Record(ctx, Event{ClaimKey: "X", Amount: 100})
	require.ErrorIs(t, err, fault.ErrInvalidInput)

	_, err = led.Record(ctx, Event{TenantID: 2, ClaimKey: " ", Amount: 100})
	require.ErrorIs(t, err, fault.ErrInvalidInput)

	_, err = led.Record(ctx, Event{TenantID: 2, ClaimKey: "X", Amount: -1})
	require.ErrorIs(t, err, fault.ErrInvalidInput)

	_, err = led.Record(ctx, Event{TenantID: 2, ClaimKey: "X", Amount: 100, PayerType: "Tertiary"})
	require.ErrorIs(t, err, fault.ErrInvalidInput)
}

func TestRecordForUnknownClaimKeepsEvent(t *testing.T) {
	// The payment row is accepted even when no claim matches; the aggregate
	// update is a no-op until the claim appears.
	ctx := context.Background()
	led, _, _ := newTestLedger(t)

	_, err := led.Record(ctx, Event{TenantID: 2, ClaimKey: "GHOST", Amount: 100})
	require.NoError(t, err)

	list, err := led.List(ctx, 2, "GHOST")
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestListOrdersNewestFirst(t *testing.T) {
	ctx := context.Background()
	led, repo, _ := newTestLedger(t)
	mustClaim(t, repo, 2, "CLM-A", 10000)

	for _, post := range []string{"2026-01-05", "2026-01-20", "2026-01-10"} {
		_, err := led.Record(ctx, Event{TenantID: 2, ClaimKey: "CLM-A", PostDate: post, Amount: 100})
		require.NoError(t, err)
	}

	list, err := led.List(ctx, 2, "CLM-A")
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, "2026-01-20", list[0].PostDate)
	require.Equal(t, "2026-01-10", list[1].PostDate)
	require.Equal(t, "2026-01-05", list[2].PostDate)
}

func TestRecordRollsBackOnResyncFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	led := New(db, WithClock(func() time.Time { return now }))

	mock.ExpectBegin()
	mock.ExpectExec("insert into payments").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("select coalesce").
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	_, err = led.Record(context.Background(), Event{TenantID: 2, ClaimKey: "CLM-A", Amount: 100})
	require.ErrorIs(t, err, fault.ErrTransient)
	require.NoError(t, mock.ExpectationsWereMet())
}
