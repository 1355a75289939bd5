package model

import "time"

// GateMode selects between the deterministic mock gate and live rule
// evaluation.
type GateMode string

const (
	GateModeMock GateMode = "mock"
	GateModeLive GateMode = "live"
)

// GateResult is the binary outcome of a verification attempt.
type GateResult string

const (
	GateApproved GateResult = "approved"
	GateDenied   GateResult = "denied"
)

// GateStatus is the cached projection of a user's latest verification
// result.
type GateStatus string

const (
	GateStatusUnverified GateStatus = "unverified"
	GateStatusVerified   GateStatus = "verified"
	GateStatusDenied     GateStatus = "denied"
)

// GateVerification records one verification attempt. Reasons preserve every
// matched or failed rule name in evaluation order, regardless of outcome.
type GateVerification struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	WalletAddress string     `json:"wallet_address,omitempty"`
	Method        string     `json:"method"`
	Mode          GateMode   `json:"mode"`
	Result        GateResult `json:"result"`
	Reasons       []string   `json:"reasons"`
	CreatedAt     time.Time  `json:"created_at"`
}

// User is the transacting identity the gate protects.
type User struct {
	ID             string     `json:"id"`
	WalletAddress  string     `json:"wallet_address,omitempty"`
	OrganizationID string     `json:"organization_id,omitempty"`
	Role           string     `json:"role"`
	GateStatus     GateStatus `json:"gate_status"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// AllowlistEntry whitelists a wallet until it expires.
type AllowlistEntry struct {
	WalletAddress string    `json:"wallet_address"`
	Label         string    `json:"label,omitempty"`
	ExpiresAt     time.Time `json:"expires_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// Active reports whether the entry is usable at the given instant.
func (e AllowlistEntry) Active(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}
