package riskadapter

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/riftfin/riftcore/internal/config"
	"github.com/riftfin/riftcore/internal/fault"
)

// sanctionTokens trigger deterministic mock hits when they appear in a
// screened name.
var sanctionTokens = []string{"sanctioned", "embargo", "denylisted", "blocked"}

// Mock is the deterministic Port implementation: identical inputs always
// produce identical outputs, so tests and non-production environments can
// assert exact behavior. Simulated latency is configurable and off when
// both bounds are zero.
type Mock struct {
	latencyMin  time.Duration
	latencySpan time.Duration
}

// NewMock creates a Mock adapter from config.
func NewMock(cfg config.AdapterConfig) *Mock {
	m := &Mock{
		latencyMin: time.Duration(cfg.MockLatencyMinMs) * time.Millisecond,
	}
	if cfg.MockLatencyMaxMs > cfg.MockLatencyMinMs {
		m.latencySpan = time.Duration(cfg.MockLatencyMaxMs-cfg.MockLatencyMinMs) * time.Millisecond
	}
	return m
}

func (m *Mock) ScreenSanctions(ctx context.Context, name, org string) (SanctionsResult, error) {
	if err := m.simulate(ctx, name+org); err != nil {
		return SanctionsResult{}, err
	}
	lower := strings.ToLower(name + " " + org)
	var hits []string
	for _, tok := range sanctionTokens {
		if strings.Contains(lower, tok) {
			hits = append(hits, "list-match:"+tok)
		}
	}
	return SanctionsResult{Clean: len(hits) == 0, Hits: hits}, nil
}

func (m *Mock) VerifyVAT(ctx context.Context, country, vatNumber string) (VATResult, error) {
	if err := m.simulate(ctx, country+vatNumber); err != nil {
		return VATResult{}, err
	}
	// A mock VAT number is valid when it carries its country prefix and at
	// least eight further characters.
	valid := len(country) == 2 &&
		strings.HasPrefix(strings.ToUpper(vatNumber), strings.ToUpper(country)) &&
		len(vatNumber) >= len(country)+8
	if !valid {
		return VATResult{Valid: false}, nil
	}
	return VATResult{
		Valid:       true,
		CompanyName: fmt.Sprintf("Registered Entity %04d", hash32(vatNumber)%10000),
	}, nil
}

func (m *Mock) SubmitKYB(ctx context.Context, payload KYBPayload) (KYBResult, error) {
	if err := m.simulate(ctx, payload.OrganizationID+payload.LegalName); err != nil {
		return KYBResult{}, err
	}
	lower := strings.ToLower(payload.LegalName)
	for _, tok := range sanctionTokens {
		if strings.Contains(lower, tok) {
			return KYBResult{Status: "rejected", RiskScore: 10}, nil
		}
	}
	// Stable score in [40,95] derived from the submission content.
	score := 40 + float64(hash32(payload.OrganizationID+payload.LegalName)%56)
	return KYBResult{Status: "approved", RiskScore: score}, nil
}

func (m *Mock) BindInsurance(ctx context.Context, policy InsurancePolicy) (BindResult, error) {
	if err := m.simulate(ctx, policy.InvoiceID); err != nil {
		return BindResult{}, err
	}
	if policy.InvoiceID == "" {
		return BindResult{Success: false}, fault.Validationf("invoice_id", "required to bind insurance")
	}
	if policy.CoveragePct <= 0 || policy.CoveragePct > 100 {
		return BindResult{Success: false}, fault.Validationf("coverage_pct", "must be in (0,100], got %.2f", policy.CoveragePct)
	}
	return BindResult{
		Success:  true,
		PolicyID: fmt.Sprintf("POL-%08X", hash32("policy:"+policy.InvoiceID)),
	}, nil
}

func (m *Mock) CreditFiatRepayment(ctx context.Context, credit RepaymentCredit) (CreditResult, error) {
	if err := m.simulate(ctx, credit.InvoiceID); err != nil {
		return CreditResult{}, err
	}
	if credit.AmountCents <= 0 {
		return CreditResult{}, fault.Validationf("amount", "must be positive, got %d", credit.AmountCents)
	}
	return CreditResult{
		Reference: fmt.Sprintf("FIAT-%08X", hash32(fmt.Sprintf("%s:%d", credit.InvoiceID, credit.AmountCents))),
	}, nil
}

// simulate sleeps a deterministic duration in the configured latency window
// keyed on the request content, honoring context cancellation.
func (m *Mock) simulate(ctx context.Context, key string) error {
	if m.latencyMin == 0 && m.latencySpan == 0 {
		return nil
	}
	delay := m.latencyMin
	if m.latencySpan > 0 {
		delay += time.Duration(hash32(key)) % m.latencySpan
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func hash32(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}
