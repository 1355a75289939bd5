// Package riskadapter abstracts the external verification providers:
// sanctions screening, VAT validation, KYB review, insurance binding, and
// fiat repayment crediting. The implementation (mock or live) is chosen
// once at construction, never re-checked per call.
package riskadapter

import (
	"context"

	"github.com/riftfin/riftcore/internal/config"
)

// SanctionsResult is the outcome of a sanctions screen.
type SanctionsResult struct {
	Clean bool     `json:"clean"`
	Hits  []string `json:"hits,omitempty"`
}

// VATResult is the outcome of a VAT number validation.
type VATResult struct {
	Valid       bool   `json:"valid"`
	CompanyName string `json:"company_name,omitempty"`
}

// KYBPayload is the submission sent to the KYB provider.
type KYBPayload struct {
	OrganizationID string   `json:"organization_id"`
	LegalName      string   `json:"legal_name"`
	Country        string   `json:"country"`
	VATNumber      string   `json:"vat_number,omitempty"`
	Documents      []string `json:"documents,omitempty"`
	TaxCertPresent bool     `json:"tax_cert_present"`
}

// KYBResult is the provider's review outcome.
type KYBResult struct {
	Status    string  `json:"status"`
	RiskScore float64 `json:"risk_score"`
}

// InsurancePolicy describes the cover requested for an invoice.
type InsurancePolicy struct {
	InvoiceID   string  `json:"invoice_id"`
	CoveragePct float64 `json:"coverage_pct"`
}

// BindResult is the outcome of binding an insurance policy.
type BindResult struct {
	Success  bool   `json:"success"`
	PolicyID string `json:"policy_id,omitempty"`
}

// RepaymentCredit asks the fiat rails provider to credit a repayment.
type RepaymentCredit struct {
	InvoiceID   string `json:"invoice_id"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

// CreditResult carries the provider's settlement reference.
type CreditResult struct {
	Reference string `json:"reference"`
}

// Port is the contract every verification provider implementation must
// satisfy. Implementations fail closed: any error means the caller must
// deny, never default-approve.
type Port interface {
	ScreenSanctions(ctx context.Context, name, org string) (SanctionsResult, error)
	VerifyVAT(ctx context.Context, country, vatNumber string) (VATResult, error)
	SubmitKYB(ctx context.Context, payload KYBPayload) (KYBResult, error)
	BindInsurance(ctx context.Context, policy InsurancePolicy) (BindResult, error)
	CreditFiatRepayment(ctx context.Context, credit RepaymentCredit) (CreditResult, error)
}

// New selects the adapter implementation from config.
func New(cfg config.AdapterConfig) Port {
	if cfg.Mode == "live" {
		return NewLive(cfg)
	}
	return NewMock(cfg)
}
