package model

import "time"

// InvoiceStatus is the invoice lifecycle state. Transitions move forward
// only, except the explicit operator more-info loop (in_review -> submitted).
type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "draft"
	InvoiceSubmitted InvoiceStatus = "submitted"
	InvoiceInReview  InvoiceStatus = "in_review"
	InvoiceApproved  InvoiceStatus = "approved"
	InvoiceListed    InvoiceStatus = "listed"
	InvoiceFunded    InvoiceStatus = "funded"
	InvoiceRepaid    InvoiceStatus = "repaid"
	InvoiceDefaulted InvoiceStatus = "defaulted"
)

var invoiceTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceDraft:     {InvoiceSubmitted},
	InvoiceSubmitted: {InvoiceInReview},
	InvoiceInReview:  {InvoiceApproved, InvoiceSubmitted},
	InvoiceApproved:  {InvoiceListed},
	InvoiceListed:    {InvoiceFunded},
	InvoiceFunded:    {InvoiceRepaid, InvoiceDefaulted},
}

// CanTransition reports whether moving from s to next is a legal invoice
// status change.
func (s InvoiceStatus) CanTransition(next InvoiceStatus) bool {
	for _, allowed := range invoiceTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ValidTenors are the repayment terms pools are partitioned by.
var ValidTenors = []int{30, 90, 120}

// ValidTenor reports whether d is a supported tenor in days.
func ValidTenor(d int) bool {
	for _, t := range ValidTenors {
		if t == d {
			return true
		}
	}
	return false
}

// Invoice is a receivable tokenized by a seller organization.
type Invoice struct {
	ID             string        `json:"id"`
	OrganizationID string        `json:"organization_id"`
	AmountCents    int64         `json:"amount_cents"`
	Currency       string        `json:"currency"`
	DueDate        time.Time     `json:"due_date"`
	TenorDays      int           `json:"tenor_days"`
	Counterparty   string        `json:"counterparty"`
	Status         InvoiceStatus `json:"status"`
	RiftScore      *float64      `json:"rift_score,omitempty"`
	RiftGrade      Grade         `json:"rift_grade,omitempty"`

	// Insurance reporting fields. CoveragePct does not cap claim payouts;
	// claims reconcile against outstanding principal instead.
	Insured           bool    `json:"insured"`
	CoveragePct       float64 `json:"coverage_pct,omitempty"`
	InsurancePolicyID string  `json:"insurance_policy_id,omitempty"`

	// RepaidCents accumulates repayment and claim inflows against the face
	// amount; outstanding = AmountCents - RepaidCents.
	RepaidCents int64 `json:"repaid_cents"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OutstandingCents returns the principal not yet covered by repayments or
// insurance claims. Never negative.
func (i Invoice) OutstandingCents() int64 {
	out := i.AmountCents - i.RepaidCents
	if out < 0 {
		return 0
	}
	return out
}
