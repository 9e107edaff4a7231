// Package claims implements the claim repository: CRUD with status
// bookkeeping and per-tenant claim key uniqueness.
package claims

import "clearbill.io/internal/money"

// Claim is the central entity of the receivables engine. Paid and Balance
// are derived exclusively by the payment ledger; the repository never
// accepts them in a patch.
type Claim struct {
	ID       int64  `json:"id"`
	TenantID int64  `json:"tenant_id"`
	ClaimKey string `json:"claim_key"`

	PatientName  string `json:"patient_name"`
	Payor        string `json:"payor"`
	ProviderName string `json:"provider_name"`
	DOS          string `json:"dos"`
	CPTCode      string `json:"cpt_code"`
	Description  string `json:"description"`

	Charge     money.Cents `json:"charge_cents"`
	Allowed    money.Cents `json:"allowed_cents"`
	Adjustment money.Cents `json:"adjustment_cents"`
	Paid       money.Cents `json:"paid_cents"`
	Balance    money.Cents `json:"balance_cents"`

	Status      string `json:"status"`
	StatusStart string `json:"status_start"`
	BillDate    string `json:"bill_date"`
	DeniedDate  string `json:"denied_date"`
	PaidDate    string `json:"paid_date"`
	LastTouched string `json:"last_touched"`

	Owner         string `json:"owner"`
	NextAction    string `json:"next_action"`
	NextActionDue string `json:"next_action_due"`
	SLABreached   bool   `json:"sla_breached"`

	DenialCategory string `json:"denial_category"`
	DenialReason   string `json:"denial_reason"`
	AppealDate     string `json:"appeal_date"`
	AppealStatus   string `json:"appeal_status"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// CreateInput describes a new claim. Empty date strings mean "unknown".
type CreateInput struct {
	TenantID     int64       `json:"tenant_id"`
	ClaimKey     string      `json:"claim_key"`
	PatientName  string      `json:"patient_name"`
	Payor        string      `json:"payor"`
	ProviderName string      `json:"provider_name"`
	DOS          string      `json:"dos"`
	CPTCode      string      `json:"cpt_code"`
	Description  string      `json:"description"`
	Charge       money.Cents `json:"charge_cents"`
	Allowed      money.Cents `json:"allowed_cents"`
	Adjustment   money.Cents `json:"adjustment_cents"`
	Status       string      `json:"status"`
	BillDate     string      `json:"bill_date"`
	Owner        string      `json:"owner"`
}

// Patch covers the mutable claim fields. Nil leaves a field unchanged.
// Paid and balance are deliberately absent: the ledger is their only writer.
type Patch struct {
	PatientName    *string      `json:"patient_name"`
	Payor          *string      `json:"payor"`
	ProviderName   *string      `json:"provider_name"`
	DOS            *string      `json:"dos"`
	CPTCode        *string      `json:"cpt_code"`
	Description    *string      `json:"description"`
	Charge         *money.Cents `json:"charge_cents"`
	Allowed        *money.Cents `json:"allowed_cents"`
	Adjustment     *money.Cents `json:"adjustment_cents"`
	Status         *string      `json:"status"`
	BillDate       *string      `json:"bill_date"`
	DeniedDate     *string      `json:"denied_date"`
	PaidDate       *string      `json:"paid_date"`
	Owner          *string      `json:"owner"`
	NextAction     *string      `json:"next_action"`
	NextActionDue  *string      `json:"next_action_due"`
	SLABreached    *bool        `json:"sla_breached"`
	DenialCategory *string      `json:"denial_category"`
	DenialReason   *string      `json:"denial_reason"`
	AppealDate     *string      `json:"appeal_date"`
	AppealStatus   *string      `json:"appeal_status"`
}
