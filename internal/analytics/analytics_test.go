package analytics

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"clearbill.io/internal/claims"
	"clearbill.io/internal/ledger"
	"clearbill.io/internal/money"
	"clearbill.io/internal/scope"
	"clearbill.io/internal/store"
)

type fixture struct {
	db     *sql.DB
	engine *Engine
	repo   *claims.Repo
	led    *ledger.Ledger
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.Migrate(context.Background(), db))

	now := time.Date(2026, 1, 25, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	return &fixture{
		db:     db,
		engine: New(db, WithClock(clock)),
		repo:   claims.NewRepo(db, claims.WithClock(clock)),
		led:    ledger.New(db, ledger.WithClock(clock)),
		now:    now,
	}
}

func TestDashboardHappyPath(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.repo.Create(ctx, claims.CreateInput{
		TenantID: 2, ClaimKey: "CLM-A",
		Charge:   money.FromDollars(185.00),
		Status:   claims.StatusBilled,
		BillDate: "2026-01-10",
		DOS:      "2026-01-01",
	})
	require.NoError(t, err)

	_, err = f.led.Record(ctx, ledger.Event{
		TenantID: 2, ClaimKey: "CLM-A", PostDate: "2026-01-20",
		Amount: money.FromDollars(130.00), Adjustment: money.FromDollars(48.75),
		PayerType: ledger.PayerPrimary,
	})
	require.NoError(t, err)

	rep, err := f.engine.Dashboard(ctx, scope.Tenant(2))
	require.NoError(t, err)

	require.Equal(t, 55.00, rep.TotalAR)
	require.Equal(t, 130.00, rep.PaymentsMTD)
	require.Equal(t, 130.00, rep.PaymentsYTD)
	require.Equal(t, 0.0, rep.CleanClaimRate)
	require.Equal(t, int64(1), rep.ActiveClaims)
	require.Equal(t, int64(1), rep.SubmittedMTD)
	require.Equal(t, int64(1), rep.SubmittedYTD)
	// 100 * 130 / 185, one decimal.
	require.Equal(t, 70.3, rep.NetCollectionRate)
}

func TestDashboardCleanClaimAfterPaid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	c, err := f.repo.Create(ctx, claims.CreateInput{
		TenantID: 2, ClaimKey: "CLM-A",
		Charge:   money.FromDollars(185.00),
		Status:   claims.StatusBilled,
		BillDate: "2026-01-10",
		DOS:      "2026-01-01",
	})
	require.NoError(t, err)

	paid := claims.StatusPaid
	paidDate := "2026-01-20"
	require.NoError(t, f.repo.Update(ctx, c.ID, claims.Patch{Status: &paid, PaidDate: &paidDate}))

	rep, err := f.engine.Dashboard(ctx, scope.Tenant(2))
	require.NoError(t, err)
	require.Equal(t, 100.0, rep.CleanClaimRate)
	require.Equal(t, int64(0), rep.ActiveClaims)
	// paid_date - dos = 19 days.
	require.Equal(t, 19.0, rep.AvgDaysToPay)
}

func TestDashboardZeroDenominators(t *testing.T) {
	f := newFixture(t)
	rep, err := f.engine.Dashboard(context.Background(), scope.Tenant(2))
	require.NoError(t, err)
	require.Equal(t, 0.0, rep.CleanClaimRate)
	require.Equal(t, 0.0, rep.DenialRate)
	require.Equal(t, 0.0, rep.NetCollectionRate)
	require.Equal(t, 0.0, rep.AvgDaysToPay)
	require.Equal(t, 0.0, rep.TotalAR)
}

func TestARAgingBuckets(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	day := func(offset int) string { return f.now.AddDate(0, 0, -offset).Format("2006-01-02") }
	for _, tc := range []struct {
		key    string
		age    int
		amount float64
	}{
		{"A-10", 10, 100.00},
		{"A-45", 45, 200.00},
		{"A-120", 120, 400.00},
	} {
		_, err := f.repo.Create(ctx, claims.CreateInput{
			TenantID: 2, ClaimKey: tc.key,
			Charge:   money.FromDollars(tc.amount),
			Status:   claims.StatusBilled,
			BillDate: day(tc.age),
		})
		require.NoError(t, err)
	}

	rep, err := f.engine.Dashboard(ctx, scope.Tenant(2))
	require.NoError(t, err)
	require.Equal(t, 100.00, rep.ARAging.Days0to30)
	require.Equal(t, 200.00, rep.ARAging.Days31to60)
	require.Equal(t, 0.00, rep.ARAging.Days61to90)
	require.Equal(t, 400.00, rep.ARAging.Over90)

	// The buckets partition the open AR.
	sum := rep.ARAging.Days0to30 + rep.ARAging.Days31to60 + rep.ARAging.Days61to90 + rep.ARAging.Over90
	require.Equal(t, rep.TotalAR, sum)
}

func TestARAgingExcludesTerminalAndZeroBalance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.repo.Create(ctx, claims.CreateInput{
		TenantID: 2, ClaimKey: "OPEN", Charge: 10000,
		Status: claims.StatusFollowUp, BillDate: "2026-01-01",
	})
	require.NoError(t, err)
	_, err = f.repo.Create(ctx, claims.CreateInput{
		TenantID: 2, ClaimKey: "CLOSED", Charge: 20000,
		Status: claims.StatusClosed, BillDate: "2026-01-01",
	})
	require.NoError(t, err)

	rep, err := f.engine.Dashboard(ctx, scope.Tenant(2))
	require.NoError(t, err)
	sum := rep.ARAging.Days0to30 + rep.ARAging.Days31to60 + rep.ARAging.Days61to90 + rep.ARAging.Over90
	require.Equal(t, 100.00, sum)
}

func TestPaymentTrendZeroFilled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.led.Record(ctx, ledger.Event{
		TenantID: 2, ClaimKey: "CLM-A", PostDate: "2026-01-05", Amount: money.FromDollars(50),
	})
	require.NoError(t, err)
	_, err = f.led.Record(ctx, ledger.Event{
		TenantID: 2, ClaimKey: "CLM-A", PostDate: "2025-11-15", Amount: money.FromDollars(75),
	})
	require.NoError(t, err)

	rep, err := f.engine.Dashboard(ctx, scope.Tenant(2))
	require.NoError(t, err)
	require.Len(t, rep.PaymentTrend, 6)
	require.Equal(t, "2025-08", rep.PaymentTrend[0].Month)
	require.Equal(t, "2026-01", rep.PaymentTrend[5].Month)
	require.Equal(t, 0.0, rep.PaymentTrend[0].Amount)
	require.Equal(t, 75.0, rep.PaymentTrend[3].Amount)
	require.Equal(t, 50.0, rep.PaymentTrend[5].Amount)
}

func TestDashboardScopesTenants(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.repo.Create(ctx, claims.CreateInput{TenantID: 2, ClaimKey: "A", Charge: 10000, Status: claims.StatusBilled})
	require.NoError(t, err)
	_, err = f.repo.Create(ctx, claims.CreateInput{TenantID: 3, ClaimKey: "B", Charge: 30000, Status: claims.StatusBilled})
	require.NoError(t, err)

	alpha, err := f.engine.Dashboard(ctx, scope.Tenant(2))
	require.NoError(t, err)
	require.Equal(t, 100.00, alpha.TotalAR)

	all, err := f.engine.Dashboard(ctx, scope.Everything())
	require.NoError(t, err)
	require.Equal(t, 400.00, all.TotalAR)
}

func TestStatusDistributionAndPayorMix(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for i, payor := range []string{"Aetna", "Aetna", "Cigna"} {
		_, err := f.repo.Create(ctx, claims.CreateInput{
			TenantID: 2, ClaimKey: "C-" + string(rune('A'+i)),
			Payor:  payor,
			Charge: money.FromDollars(100),
			Status: claims.StatusBilled,
		})
		require.NoError(t, err)
	}

	rep, err := f.engine.Dashboard(ctx, scope.Tenant(2))
	require.NoError(t, err)

	require.Len(t, rep.StatusDistribution, 1)
	require.Equal(t, claims.StatusBilled, rep.StatusDistribution[0].Status)
	require.Equal(t, int64(3), rep.StatusDistribution[0].Count)
	require.Equal(t, 300.00, rep.StatusDistribution[0].ChargeSum)

	require.Len(t, rep.PayorMix, 2)
	require.Equal(t, "Aetna", rep.PayorMix[0].Payor)
	require.Equal(t, int64(2), rep.PayorMix[0].Count)
	require.Equal(t, 200.00, rep.PayorMix[0].Charge)
}

func TestDashboardCancelledContextIsTransient(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.engine.Dashboard(ctx, scope.Tenant(2))
	require.Error(t, err)
}
