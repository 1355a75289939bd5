// Package pricing turns a graded invoice into a discount quote. Quoting is
// pure: no storage, no clock beyond the stamp, and deterministic to two
// decimals for identical inputs under the same config version.
package pricing

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/riftfin/riftcore/internal/config"
	"github.com/riftfin/riftcore/internal/fault"
	"github.com/riftfin/riftcore/internal/model"
)

// Request describes the invoice terms to quote.
type Request struct {
	FaceValueCents int64       `json:"face_value_cents"`
	TenorDays      int         `json:"tenor_days"`
	Grade          model.Grade `json:"grade"`

	// InsuranceOptIn only matters for grade A; grades B and C carry
	// mandatory insurance regardless of this flag.
	InsuranceOptIn bool `json:"insurance_opt_in"`
	ESG            bool `json:"esg"`
}

// Quote is the priced offer for one invoice.
type Quote struct {
	FaceValueCents   int64       `json:"face_value_cents"`
	TenorDays        int         `json:"tenor_days"`
	Grade            model.Grade `json:"grade"`
	AnnualRatePct    float64     `json:"annual_rate_pct"`
	PeriodYieldPct   float64     `json:"period_yield_pct"`
	AdvanceCents     int64       `json:"advance_cents"`
	FeeCents         int64       `json:"fee_cents"`
	FunderAPRPct     float64     `json:"funder_apr_pct"`
	InsuranceApplied bool        `json:"insurance_applied"`
	InsuranceRatePct float64     `json:"insurance_rate_pct"`
	ESGApplied       bool        `json:"esg_applied"`
	ConfigVersion    string      `json:"config_version"`
	QuotedAt         time.Time   `json:"quoted_at"`
}

// Engine prices invoices against a rate config.
type Engine struct {
	cfg config.PricingConfig
}

// New creates an Engine.
func New(cfg config.PricingConfig) *Engine {
	return &Engine{cfg: cfg}
}

// discount yields use a 360-day year, the trade finance convention; pool
// yield accrual uses 365 and the two are deliberately not unified.
const discountDayCount = 360

// Price validates the request and produces a quote. The seller's annual
// rate stacks the risk-free base and the grade premium, subtracts the
// insurance relief when cover applies (an insured receivable discounts
// cheaper), adds the ESG adjustment, then clamps to the configured band.
func (e *Engine) Price(req Request) (*Quote, error) {
	if req.FaceValueCents <= 0 {
		return nil, fault.Validationf("face_value_cents", "must be positive, got %d", req.FaceValueCents)
	}
	if !model.ValidTenor(req.TenorDays) {
		return nil, fault.Validationf("tenor_days", "must be one of %v, got %d", model.ValidTenors, req.TenorDays)
	}
	if !req.Grade.Fundable() {
		return nil, fault.Validationf("grade", "grade %q is not fundable", req.Grade)
	}

	premium, insuranceRate, insured := e.gradeTerms(req.Grade, req.InsuranceOptIn)
	rate := e.cfg.RiskFreeRate + premium
	if insured {
		rate -= insuranceRate
	}
	if req.ESG {
		rate += e.cfg.ESGAdjustment
	}
	if rate < e.cfg.MinAnnualRate {
		rate = e.cfg.MinAnnualRate
	}
	if rate > e.cfg.MaxAnnualRate {
		rate = e.cfg.MaxAnnualRate
	}
	rate = model.Round2(rate)

	periodYield := model.Round2(rate * float64(req.TenorDays) / discountDayCount)
	advance := int64(math.Round(float64(req.FaceValueCents) * (1 - periodYield/100)))
	fee := req.FaceValueCents - advance

	// What the funder earns by paying the advance and collecting face value,
	// annualized on the same day count.
	funderAPR := model.Round2((float64(req.FaceValueCents)/float64(advance) - 1) *
		(discountDayCount / float64(req.TenorDays)) * 100)

	q := &Quote{
		FaceValueCents:   req.FaceValueCents,
		TenorDays:        req.TenorDays,
		Grade:            req.Grade,
		AnnualRatePct:    rate,
		PeriodYieldPct:   periodYield,
		AdvanceCents:     advance,
		FeeCents:         fee,
		FunderAPRPct:     funderAPR,
		InsuranceApplied: insured,
		ESGApplied:       req.ESG,
		ConfigVersion:    e.cfg.ConfigVersion,
		QuotedAt:         time.Now().UTC(),
	}
	if insured {
		q.InsuranceRatePct = insuranceRate
	}

	zap.L().Debug("pricing: quoted",
		zap.String("grade", string(req.Grade)),
		zap.Int("tenor_days", req.TenorDays),
		zap.Float64("annual_rate_pct", rate),
		zap.Int64("advance_cents", advance),
	)
	return q, nil
}

// gradeTerms returns the premium, the insurance rate, and whether insurance
// applies. Grades B and C force insurance on even when the caller opted out.
func (e *Engine) gradeTerms(grade model.Grade, optIn bool) (premium, insuranceRate float64, insured bool) {
	switch grade {
	case model.GradeA:
		return e.cfg.PremiumA, e.cfg.InsuranceOptInA, optIn
	case model.GradeB:
		return e.cfg.PremiumB, e.cfg.InsuranceB, true
	default:
		return e.cfg.PremiumC, e.cfg.InsuranceC, true
	}
}
