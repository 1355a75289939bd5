package model

import "time"

// Pool is a liquidity bucket keyed by tenor. Invariant: available never
// exceeds total; tvl == total_liquidity is the expected steady state.
type Pool struct {
	ID             string    `json:"id"`
	TenorDays      int       `json:"tenor_days"`
	APR            float64   `json:"apr"`
	TotalCents     int64     `json:"total_liquidity_cents"`
	AvailableCents int64     `json:"available_liquidity_cents"`
	TVLCents       int64     `json:"tvl_cents"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// PositionStatus is the lifecycle state of a funder's stake.
type PositionStatus string

const (
	PositionActive    PositionStatus = "active"
	PositionClosed    PositionStatus = "closed"
	PositionDefaulted PositionStatus = "defaulted"
)

// Position is one funder's stake against one pool, optionally tied to one
// invoice.
type Position struct {
	ID                 string         `json:"id"`
	PoolID             string         `json:"pool_id"`
	FunderID           string         `json:"funder_id"`
	InvoiceID          string         `json:"invoice_id,omitempty"`
	AmountCents        int64          `json:"amount_funded_cents"`
	ExpectedYieldCents int64          `json:"expected_yield_cents"`
	AccruedYieldCents  int64          `json:"accrued_yield_cents"`

	// RepaidCents accumulates every inflow credited to the position;
	// principal first, then yield. The position closes once it reaches
	// AmountCents + ExpectedYieldCents.
	RepaidCents int64          `json:"repaid_cents"`
	Status      PositionStatus `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	ClosedAt    *time.Time     `json:"closed_at,omitempty"`
}
