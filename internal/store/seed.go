package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"time"

	"clearbill.io/internal/money"
)

// SeedDemo populates demonstration tenants and claims on first boot. It is a
// no-op when any principal already exists. Demo passwords use the legacy
// sha256(salt||password) scheme; they upgrade to the current KDF on the
// first password change.
func SeedDemo(ctx context.Context, db *sql.DB) error {
	var count int
	if err := db.QueryRowContext(ctx, `select count(*) from principals`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339)

	seedPrincipal := func(username, password, company, contact, email, role string) (int64, error) {
		saltBytes := make([]byte, 16)
		if _, err := rand.Read(saltBytes); err != nil {
			return 0, err
		}
		salt := hex.EncodeToString(saltBytes)
		sum := sha256.Sum256([]byte(salt + password))
		res, err := tx.ExecContext(ctx, `
			insert into principals(username, password_hash, salt, company, contact_name, email, phone, role, is_active, created_at)
			values(?,?,?,?,?,?,?,?,1,?)`,
			username, hex.EncodeToString(sum[:]), salt, company, contact, email, "", role, now)
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	}

	if _, err := seedPrincipal("admin", "clearbill-admin", "ClearBill Billing Services", "Portal Admin", "admin@clearbill.example", "admin"); err != nil {
		return err
	}
	alpha, err := seedPrincipal("alphamed", "welcome-alpha", "Alpha Medical Group", "Dana Reeves", "billing@alphamed.example", "client")
	if err != nil {
		return err
	}
	beta, err := seedPrincipal("betahealth", "welcome-beta", "Beta Health Partners", "Sam Okafor", "ar@betahealth.example", "client")
	if err != nil {
		return err
	}

	type seedClaim struct {
		tenant  int64
		key     string
		patient string
		payor   string
		dos     string
		cpt     string
		charge  money.Cents
		status  string
		bill    string
		paid    []money.Cents // one payment row per entry
	}
	today := time.Now().UTC()
	day := func(offset int) string { return today.AddDate(0, 0, -offset).Format("2006-01-02") }

	seedClaims := []seedClaim{
		{alpha, "ALP-1001", "R. Alvarez", "Aetna", day(40), "99213", 18500, "Billed/Submitted", day(35), []money.Cents{13000}},
		{alpha, "ALP-1002", "M. Chen", "United Healthcare", day(70), "99214", 24200, "Paid", day(65), []money.Cents{16000, 8200}},
		{alpha, "ALP-1003", "T. Ngo", "Medicare", day(15), "97110", 9600, "Coding", "", nil},
		{alpha, "ALP-1004", "J. Brooks", "Cigna", day(120), "99204", 31000, "Denied", day(110), nil},
		{beta, "BET-2001", "K. Sharma", "BCBS", day(25), "99213", 17800, "A/R Follow-Up", day(20), []money.Cents{5000}},
		{beta, "BET-2002", "L. Moore", "Aetna", day(90), "99215", 28750, "Paid", day(85), []money.Cents{28750}},
	}
	for _, c := range seedClaims {
		var paid money.Cents
		for _, p := range c.paid {
			paid += p
		}
		balance := (c.charge - paid).ClampZero()
		deniedDate, denialCategory, denialReason := "", "", ""
		if c.status == "Denied" {
			deniedDate = day(100)
			denialCategory = "Authorization"
			denialReason = "Prior authorization missing"
		}
		paidDate := ""
		if c.status == "Paid" {
			paidDate = day(30)
		}
		if _, err := tx.ExecContext(ctx, `
			insert into claims(tenant_id, claim_key, patient_name, payor, dos, cpt_code, charge_cents,
				paid_cents, balance_cents, status, status_start, bill_date, denied_date, paid_date,
				denial_category, denial_reason, last_touched, created_at, updated_at)
			values(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			c.tenant, c.key, c.patient, c.payor, c.dos, c.cpt, int64(c.charge),
			int64(paid), int64(balance), c.status, now, c.bill, deniedDate, paidDate,
			denialCategory, denialReason, now, now, now); err != nil {
			return err
		}
		for _, p := range c.paid {
			if _, err := tx.ExecContext(ctx, `
				insert into payments(tenant_id, claim_key, post_date, amount_cents, payer_type, created_at)
				values(?,?,?,?,?,?)`,
				c.tenant, c.key, day(10), int64(p), "Primary", now); err != nil {
				return err
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `
		insert into providers(tenant_id, name, npi, specialty, status, created_at, updated_at)
		values(?,?,?,?,?,?,?), (?,?,?,?,?,?,?)`,
		alpha, "Dr. Elena Ruiz", "1234567893", "Family Medicine", "Active", now, now,
		beta, "Dr. Marcus Webb", "1987654321", "Internal Medicine", "Active", now, now); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		insert into credentialing(tenant_id, provider_name, payer, status, submitted_date, created_at, updated_at)
		values(?,?,?,?,?,?,?)`,
		alpha, "Dr. Elena Ruiz", "Aetna", "In Review", day(20), now, now); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		insert into enrollment(tenant_id, provider_name, payer, status, created_at, updated_at)
		values(?,?,?,?,?,?)`,
		beta, "Dr. Marcus Webb", "Medicare", "Submitted", now, now); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		insert into edi_setups(tenant_id, provider_name, payer, status, created_at, updated_at)
		values(?,?,?,?,?,?)`,
		alpha, "Dr. Elena Ruiz", "Availity", "In Progress", now, now); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		insert into notes(tenant_id, claim_key, module, ref_id, note, author, created_at)
		values(?,?,?,?,?,?,?)`,
		alpha, "ALP-1004", "Claim", "", "Appeal packet requested from provider.", "admin", now); err != nil {
		return err
	}

	return tx.Commit()
}
