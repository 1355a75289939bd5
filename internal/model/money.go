// Package model defines the core domain types for the factoring engine.
package model

import "math"

// Round2 rounds a rate or score to 2 decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Cents converts a decimal amount to minor units. Monetary values are
// stored as int64 cents to keep ledger arithmetic exact.
func Cents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// Amount converts minor units back to a decimal amount for display and
// API responses.
func Amount(cents int64) float64 {
	return float64(cents) / 100
}
