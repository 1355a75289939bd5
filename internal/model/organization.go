package model

import "time"

// KYBStatus tracks an organization's compliance review outcome.
type KYBStatus string

const (
	KYBPending  KYBStatus = "pending"
	KYBApproved KYBStatus = "approved"
	KYBRejected KYBStatus = "rejected"
)

// Organization is the legal identity of a seller. Rows are retained for
// audit and never hard-deleted.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Country   string    `json:"country"`
	VATNumber string    `json:"vat_number,omitempty"`
	EORI      string    `json:"eori,omitempty"`
	KYBStatus KYBStatus `json:"kyb_status"`
	KYBScore  float64   `json:"kyb_score"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
