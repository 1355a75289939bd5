package model

import "time"

// CaseType distinguishes the compliance review variants. Each type carries
// its own typed checklist.
type CaseType string

const (
	CaseKYBEntity     CaseType = "kyb_entity"
	CaseKYCIndividual CaseType = "kyc_individual"
)

// SubjectType identifies what kind of record a case reviews.
type SubjectType string

const (
	SubjectOrganization SubjectType = "organization"
	SubjectFunder       SubjectType = "funder"
)

// CaseStatus is the review state of a compliance case.
type CaseStatus string

const (
	CaseOpen         CaseStatus = "open"
	CaseInReview     CaseStatus = "in_review"
	CaseApproved     CaseStatus = "approved"
	CaseRejected     CaseStatus = "rejected"
	CaseAwaitingDocs CaseStatus = "awaiting_docs"
)

// awaiting_docs -> in_review is the only backward edge; approved and
// rejected are terminal for the case instance.
var caseTransitions = map[CaseStatus][]CaseStatus{
	CaseOpen:         {CaseInReview},
	CaseInReview:     {CaseApproved, CaseRejected, CaseAwaitingDocs},
	CaseAwaitingDocs: {CaseInReview},
}

// CanTransition reports whether moving from s to next is legal.
func (s CaseStatus) CanTransition(next CaseStatus) bool {
	for _, allowed := range caseTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s CaseStatus) Terminal() bool {
	return s == CaseApproved || s == CaseRejected
}

// KYBChecklist holds the automated pre-screen results for an entity case.
type KYBChecklist struct {
	SanctionsClear    bool     `json:"sanctions_clear"`
	SanctionsHits     []string `json:"sanctions_hits,omitempty"`
	VATValid          bool     `json:"vat_valid"`
	RegisteredName    string   `json:"registered_name,omitempty"`
	DocumentsComplete bool     `json:"documents_complete"`
	TaxCertPresent    bool     `json:"tax_cert_present"`
}

// KYCChecklist holds the automated pre-screen results for an individual
// funder case.
type KYCChecklist struct {
	SanctionsClear      bool     `json:"sanctions_clear"`
	SanctionsHits       []string `json:"sanctions_hits,omitempty"`
	IdentityVerified    bool     `json:"identity_verified"`
	DocumentsComplete   bool     `json:"documents_complete"`
	ProofOfFundsPresent bool     `json:"proof_of_funds_present"`
}

// Checklist is a tagged union over the per-type checklist variants. Extra
// carries provider-specific raw payloads that have no typed field.
type Checklist struct {
	Kind  CaseType       `json:"kind"`
	KYB   *KYBChecklist  `json:"kyb,omitempty"`
	KYC   *KYCChecklist  `json:"kyc,omitempty"`
	Extra map[string]any `json:"extra,omitempty"`
}

// SubScore derives the automated pre-screen score (0-100) from the
// checklist booleans. Sanctions dominate: a hit floors the score.
func (c Checklist) SubScore() float64 {
	switch c.Kind {
	case CaseKYBEntity:
		if c.KYB == nil {
			return 0
		}
		if !c.KYB.SanctionsClear {
			return 0
		}
		score := 40.0
		if c.KYB.VATValid {
			score += 25
		}
		if c.KYB.DocumentsComplete {
			score += 25
		}
		if c.KYB.TaxCertPresent {
			score += 10
		}
		return score
	case CaseKYCIndividual:
		if c.KYC == nil {
			return 0
		}
		if !c.KYC.SanctionsClear {
			return 0
		}
		score := 40.0
		if c.KYC.IdentityVerified {
			score += 30
		}
		if c.KYC.DocumentsComplete {
			score += 20
		}
		if c.KYC.ProofOfFundsPresent {
			score += 10
		}
		return score
	}
	return 0
}

// DecisionMeta records who decided a case, when, and why.
type DecisionMeta struct {
	Decision  string    `json:"decision"`
	Actor     string    `json:"actor"`
	Notes     string    `json:"notes,omitempty"`
	DecidedAt time.Time `json:"decided_at"`
}

// Case is the unit of compliance review. One case belongs to exactly one
// subject; a new case may be opened for the same subject after rejection.
type Case struct {
	ID          string        `json:"id"`
	Type        CaseType      `json:"type"`
	SubjectType SubjectType   `json:"subject_type"`
	SubjectID   string        `json:"subject_id"`
	UserID      string        `json:"user_id,omitempty"`
	Status      CaseStatus    `json:"status"`
	Checklist   Checklist     `json:"checklist"`
	SubScore    float64       `json:"sub_score"`
	Decision    *DecisionMeta `json:"decision,omitempty"`
	MissingDocs []string      `json:"missing_docs,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}
