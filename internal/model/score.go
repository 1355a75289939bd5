package model

import "time"

// Grade is the letter risk classification derived from the composite score.
type Grade string

const (
	GradeA          Grade = "A"
	GradeB          Grade = "B"
	GradeC          Grade = "C"
	GradeIneligible Grade = "ineligible"
)

// GradeFor maps a composite score to a grade using the default cutoff
// table: >=85 A, >=70 B, >=55 C, below 55 ineligible. The scoring engine
// grades against its configured cutoffs instead; this is the fallback for
// contexts that have no config.
func GradeFor(score float64) Grade {
	switch {
	case score >= 85:
		return GradeA
	case score >= 70:
		return GradeB
	case score >= 55:
		return GradeC
	default:
		return GradeIneligible
	}
}

// Fundable reports whether the grade permits funding at all.
func (g Grade) Fundable() bool {
	return g == GradeA || g == GradeB || g == GradeC
}

// EntityType identifies what kind of entity a score record belongs to.
type EntityType string

const (
	EntityInvoice      EntityType = "invoice"
	EntityOrganization EntityType = "organization"
)

// Risk factor names. Every factor is normalized to [0,100] before weighting.
const (
	FactorPaymentHistory    = "payment_history"
	FactorBusinessLongevity = "business_longevity"
	FactorIndustryRisk      = "industry_risk"
	FactorFinancialHealth   = "financial_health"
	FactorSanctionsClean    = "sanctions_clean"
	FactorDocCompleteness   = "doc_completeness"
	FactorESGSignal         = "esg_signal"
)

// Factors lists all recognized risk factors in a stable order.
var Factors = []string{
	FactorPaymentHistory,
	FactorBusinessLongevity,
	FactorIndustryRisk,
	FactorFinancialHealth,
	FactorSanctionsClean,
	FactorDocCompleteness,
	FactorESGSignal,
}

// RiftScoreRecord is an immutable, versioned snapshot of one score
// calculation. A recalculation or override always produces a new record;
// existing rows are never edited.
type RiftScoreRecord struct {
	ID             string             `json:"id"`
	EntityType     EntityType         `json:"entity_type"`
	EntityID       string             `json:"entity_id"`
	Inputs         map[string]float64 `json:"inputs"`
	Breakdown      map[string]float64 `json:"breakdown"`
	TotalScore     float64            `json:"total_score"`
	Grade          Grade              `json:"grade"`
	EngineVersion  string             `json:"engine_version"`
	Version        string             `json:"version"`
	Supersedes     string             `json:"supersedes,omitempty"`
	OverrideDelta  *float64           `json:"override_delta,omitempty"`
	OverrideReason string             `json:"override_reason,omitempty"`
	CalculatedAt   time.Time          `json:"calculated_at"`
}
