package model

import "time"

// RefType classifies a ledger movement. It doubles as the operation type in
// the (ref_type, idempotency_key) uniqueness constraint.
type RefType string

const (
	RefDeposit         RefType = "deposit"
	RefPayout          RefType = "payout"
	RefRepaymentInflow RefType = "repayment_inflow"
	RefDistribution    RefType = "distribution"
	RefFee             RefType = "fee"
)

// LedgerEntry is an immutable, append-only record of a signed monetary
// movement against a pool. Entries are never mutated or deleted; replaying
// all entries for a pool from empty state must reproduce its tvl.
type LedgerEntry struct {
	ID             string            `json:"id"`
	RefType        RefType           `json:"ref_type"`
	AmountCents    int64             `json:"amount_cents"`
	PoolID         string            `json:"pool_id"`
	UserID         string            `json:"user_id,omitempty"`
	RefID          string            `json:"ref_id,omitempty"`
	TxRef          string            `json:"tx_ref"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}
