// Package analytics derives the KPI and AR aging dashboard from the claims,
// payments, and tracker tables. The whole report is computed inside one
// transaction so every metric reflects the same snapshot of the books.
package analytics

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"clearbill.io/internal/claims"
	"clearbill.io/internal/fault"
	"clearbill.io/internal/money"
	"clearbill.io/internal/scope"
)

// Aging holds the four AR aging buckets in dollars. Ages count from
// coalesce(bill_date, dos, updated_at); claims with no balance or in a
// terminal status are excluded, so the buckets partition the open AR.
type Aging struct {
	Days0to30  float64 `json:"0_30"`
	Days31to60 float64 `json:"31_60"`
	Days61to90 float64 `json:"61_90"`
	Over90     float64 `json:"over_90"`
}

// StatusSlice is one entry of the status distribution.
type StatusSlice struct {
	Status    string  `json:"status"`
	Count     int64   `json:"count"`
	ChargeSum float64 `json:"charge_sum"`
}

// PayorSlice is one entry of the payor mix.
type PayorSlice struct {
	Payor  string  `json:"payor"`
	Count  int64   `json:"count"`
	Charge float64 `json:"charge"`
	Paid   float64 `json:"paid"`
}

// CategoryCount is one denial category tally.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

// MonthTotal is one month of the payment trend.
type MonthTotal struct {
	Month  string  `json:"month"`
	Amount float64 `json:"amount"`
}

// Report is the full dashboard payload. Money is in dollars rounded to two
// decimals, percentages to one.
type Report struct {
	TotalAR            float64          `json:"total_ar"`
	ActiveClaims       int64            `json:"active_claims"`
	SubmittedMTD       int64            `json:"submitted_mtd"`
	SubmittedYTD       int64            `json:"submitted_ytd"`
	DeniedMTD          int64            `json:"denied_mtd"`
	DeniedAll          int64            `json:"denied_all"`
	PaymentsMTD        float64          `json:"payments_mtd"`
	PaymentsYTD        float64          `json:"payments_ytd"`
	CleanClaimRate     float64          `json:"clean_claim_rate"`
	DenialRate         float64          `json:"denial_rate"`
	AvgDaysToPay       float64          `json:"avg_days_to_pay"`
	SLABreaches        int64            `json:"sla_breaches"`
	NetCollectionRate  float64          `json:"net_collection_rate"`
	ARAging            Aging            `json:"ar_aging"`
	StatusDistribution []StatusSlice    `json:"status_distribution"`
	PayorMix           []PayorSlice     `json:"payor_mix"`
	DenialCategories   []CategoryCount  `json:"denial_categories"`
	PaymentTrend       []MonthTotal     `json:"payment_trend"`
	CredentialingStats map[string]int64 `json:"credentialing_stats"`
	EnrollmentStats    map[string]int64 `json:"enrollment_stats"`
	GeneratedAt        string           `json:"generated_at"`
}

// Engine computes dashboard reports.
type Engine struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures the engine.
type Option func(*Engine)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(e *Engine) {
		if fn != nil {
			e.now = fn
		}
	}
}

// New constructs the engine over an open store handle.
func New(db *sql.DB, opts ...Option) *Engine {
	e := &Engine{db: db, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

const dayLayout = "2006-01-02"

// Dashboard computes the report for the scope. All queries run in one
// transaction against the same snapshot.
func (e *Engine) Dashboard(ctx context.Context, sc scope.Scope) (Report, error) {
	tx, err := e.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return Report{}, fault.Store(err)
	}
	defer func() { _ = tx.Rollback() }()

	now := e.now().UTC()
	today := now.Format(dayLayout)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).Format(dayLayout)
	yearStart := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC).Format(dayLayout)

	rep := Report{GeneratedAt: now.Format(time.RFC3339)}

	where, args := scopeClause(sc)

	// Headline sums and counts over claims.
	var totalAR, totalCharge, totalPaid int64
	if err := tx.QueryRowContext(ctx, `
		select coalesce(sum(balance_cents),0), coalesce(sum(charge_cents),0), coalesce(sum(paid_cents),0)
		from claims`+where, args...).Scan(&totalAR, &totalCharge, &totalPaid); err != nil {
		return Report{}, fault.Store(err)
	}
	rep.TotalAR = money.Cents(totalAR).Dollars()
	rep.NetCollectionRate = money.Percent(float64(totalPaid), float64(totalCharge))

	row := tx.QueryRowContext(ctx, `
		select
			coalesce(sum(case when bill_date <> '' then 1 else 0 end),0),
			coalesce(sum(case when status = ? and denial_reason = '' then 1 else 0 end),0),
			coalesce(sum(case when denied_date <> '' then 1 else 0 end),0),
			coalesce(sum(case when status not in (?, ?) then 1 else 0 end),0),
			coalesce(sum(case when bill_date >= ? then 1 else 0 end),0),
			coalesce(sum(case when bill_date >= ? then 1 else 0 end),0),
			coalesce(sum(case when denied_date >= ? then 1 else 0 end),0),
			coalesce(sum(case when status in (?, ?) then 1 else 0 end),0),
			coalesce(sum(sla_breached),0)
		from claims`+where,
		append([]any{claims.StatusPaid, claims.StatusPaid, claims.StatusClosed,
			monthStart, yearStart, monthStart,
			claims.StatusDenied, claims.StatusAppeals}, args...)...)
	var billed, clean, denied int64
	var active, subMTD, subYTD, deniedMTD, deniedAll, slaBreaches int64
	if err := row.Scan(&billed, &clean, &denied, &active, &subMTD, &subYTD, &deniedMTD, &deniedAll, &slaBreaches); err != nil {
		return Report{}, fault.Store(err)
	}
	rep.ActiveClaims = active
	rep.SubmittedMTD = subMTD
	rep.SubmittedYTD = subYTD
	rep.DeniedMTD = deniedMTD
	rep.DeniedAll = deniedAll
	rep.SLABreaches = slaBreaches
	rep.CleanClaimRate = money.Percent(float64(clean), float64(billed))
	rep.DenialRate = money.Percent(float64(denied), float64(billed))

	// Payment sums.
	var payMTD, payYTD int64
	if err := tx.QueryRowContext(ctx, `
		select
			coalesce(sum(case when post_date >= ? then amount_cents else 0 end),0),
			coalesce(sum(case when post_date >= ? then amount_cents else 0 end),0)
		from payments`+where,
		append([]any{monthStart, yearStart}, args...)...).Scan(&payMTD, &payYTD); err != nil {
		return Report{}, fault.Store(err)
	}
	rep.PaymentsMTD = money.Cents(payMTD).Dollars()
	rep.PaymentsYTD = money.Cents(payYTD).Dollars()

	if rep.AvgDaysToPay, err = avgDaysToPay(ctx, tx, where, args); err != nil {
		return Report{}, err
	}
	if rep.ARAging, err = e.aging(ctx, tx, sc, today); err != nil {
		return Report{}, err
	}
	if rep.StatusDistribution, err = statusDistribution(ctx, tx, where, args); err != nil {
		return Report{}, err
	}
	if rep.PayorMix, err = payorMix(ctx, tx, where, args); err != nil {
		return Report{}, err
	}
	if rep.DenialCategories, err = denialCategories(ctx, tx, sc); err != nil {
		return Report{}, err
	}
	if rep.PaymentTrend, err = paymentTrend(ctx, tx, sc, now); err != nil {
		return Report{}, err
	}
	if rep.CredentialingStats, err = trackerStats(ctx, tx, "credentialing", where, args); err != nil {
		return Report{}, err
	}
	if rep.EnrollmentStats, err = trackerStats(ctx, tx, "enrollment", where, args); err != nil {
		return Report{}, err
	}
	return rep, nil
}

func scopeClause(sc scope.Scope) (string, []any) {
	conds := []string{}
	args := []any{}
	conds, args = sc.Where(conds, args, "tenant_id")
	if len(conds) == 0 {
		return "", nil
	}
	return " where " + strings.Join(conds, " and "), args
}

func avgDaysToPay(ctx context.Context, tx *sql.Tx, where string, args []any) (float64, error) {
	cond := `dos <> '' and paid_date <> ''`
	query := `select dos, paid_date from claims`
	if where == "" {
		query += " where " + cond
	} else {
		query += where + " and " + cond
	}
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, fault.Store(err)
	}
	defer rows.Close()

	var sum float64
	var n int64
	for rows.Next() {
		var dos, paid string
		if err := rows.Scan(&dos, &paid); err != nil {
			return 0, err
		}
		d1, err1 := time.Parse(dayLayout, dos)
		d2, err2 := time.Parse(dayLayout, paid)
		if err1 != nil || err2 != nil {
			continue
		}
		sum += d2.Sub(d1).Hours() / 24
		n++
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	return money.Round1(sum / float64(n)), nil
}

// aging buckets open balances by the age of the claim's anchor date. Dates
// are parsed in Go; a malformed anchor lands in the over-90 bucket.
func (e *Engine) aging(ctx context.Context, tx *sql.Tx, sc scope.Scope, today string) (Aging, error) {
	conds := []string{"balance_cents > 0", "status not in (?, ?)"}
	args := []any{claims.StatusPaid, claims.StatusClosed}
	conds, args = sc.Where(conds, args, "tenant_id")
	rows, err := tx.QueryContext(ctx, `
		select balance_cents, coalesce(nullif(bill_date,''), nullif(dos,''), substr(updated_at,1,10))
		from claims where `+strings.Join(conds, " and "), args...)
	if err != nil {
		return Aging{}, fault.Store(err)
	}
	defer rows.Close()

	ref, _ := time.Parse(dayLayout, today)
	var cents [4]int64
	for rows.Next() {
		var balance int64
		var anchor string
		if err := rows.Scan(&balance, &anchor); err != nil {
			return Aging{}, err
		}
		age := 91
		if t, err := time.Parse(dayLayout, anchor); err == nil {
			age = int(ref.Sub(t).Hours() / 24)
		}
		switch {
		case age <= 30:
			cents[0] += balance
		case age <= 60:
			cents[1] += balance
		case age <= 90:
			cents[2] += balance
		default:
			cents[3] += balance
		}
	}
	if err := rows.Err(); err != nil {
		return Aging{}, err
	}
	return Aging{
		Days0to30:  money.Cents(cents[0]).Dollars(),
		Days31to60: money.Cents(cents[1]).Dollars(),
		Days61to90: money.Cents(cents[2]).Dollars(),
		Over90:     money.Cents(cents[3]).Dollars(),
	}, nil
}

func statusDistribution(ctx context.Context, tx *sql.Tx, where string, args []any) ([]StatusSlice, error) {
	rows, err := tx.QueryContext(ctx, `
		select status, count(*), coalesce(sum(charge_cents),0)
		from claims`+where+` group by status order by count(*) desc, status asc`, args...)
	if err != nil {
		return nil, fault.Store(err)
	}
	defer rows.Close()

	var res []StatusSlice
	for rows.Next() {
		var s StatusSlice
		var charge int64
		if err := rows.Scan(&s.Status, &s.Count, &charge); err != nil {
			return nil, err
		}
		s.ChargeSum = money.Cents(charge).Dollars()
		res = append(res, s)
	}
	return res, rows.Err()
}

func payorMix(ctx context.Context, tx *sql.Tx, where string, args []any) ([]PayorSlice, error) {
	rows, err := tx.QueryContext(ctx, `
		select payor, count(*), coalesce(sum(charge_cents),0), coalesce(sum(paid_cents),0)
		from claims`+where+`
		group by payor order by sum(charge_cents) desc limit 8`, args...)
	if err != nil {
		return nil, fault.Store(err)
	}
	defer rows.Close()

	var res []PayorSlice
	for rows.Next() {
		var p PayorSlice
		var charge, paid int64
		if err := rows.Scan(&p.Payor, &p.Count, &charge, &paid); err != nil {
			return nil, err
		}
		p.Charge = money.Cents(charge).Dollars()
		p.Paid = money.Cents(paid).Dollars()
		res = append(res, p)
	}
	return res, rows.Err()
}

func denialCategories(ctx context.Context, tx *sql.Tx, sc scope.Scope) ([]CategoryCount, error) {
	conds := []string{"denial_category <> ''"}
	args := []any{}
	conds, args = sc.Where(conds, args, "tenant_id")
	rows, err := tx.QueryContext(ctx, `
		select denial_category, count(*) from claims
		where `+strings.Join(conds, " and ")+`
		group by denial_category order by count(*) desc, denial_category asc`, args...)
	if err != nil {
		return nil, fault.Store(err)
	}
	defer rows.Close()

	var res []CategoryCount
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// paymentTrend returns the last six calendar months ascending, zero-filled
// for months with no payments.
func paymentTrend(ctx context.Context, tx *sql.Tx, sc scope.Scope, now time.Time) ([]MonthTotal, error) {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -5, 0)
	conds := []string{"post_date >= ?"}
	args := []any{first.Format(dayLayout)}
	conds, args = sc.Where(conds, args, "tenant_id")
	rows, err := tx.QueryContext(ctx, `
		select substr(post_date, 1, 7), coalesce(sum(amount_cents),0)
		from payments where `+strings.Join(conds, " and ")+`
		group by substr(post_date, 1, 7)`, args...)
	if err != nil {
		return nil, fault.Store(err)
	}
	defer rows.Close()

	byMonth := make(map[string]int64)
	for rows.Next() {
		var month string
		var cents int64
		if err := rows.Scan(&month, &cents); err != nil {
			return nil, err
		}
		byMonth[month] = cents
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	res := make([]MonthTotal, 0, 6)
	for i := 0; i < 6; i++ {
		m := first.AddDate(0, i, 0).Format("2006-01")
		res = append(res, MonthTotal{Month: m, Amount: money.Cents(byMonth[m]).Dollars()})
	}
	return res, nil
}

func trackerStats(ctx context.Context, tx *sql.Tx, table, where string, args []any) (map[string]int64, error) {
	rows, err := tx.QueryContext(ctx,
		`select status, count(*) from `+table+where+` group by status`, args...)
	if err != nil {
		return nil, fault.Store(err)
	}
	defer rows.Close()

	stats := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		stats[status] = n
	}
	return stats, rows.Err()
}
