package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvoiceStatus_CanTransition(t *testing.T) {
	tests := []struct {
		name string
		from InvoiceStatus
		to   InvoiceStatus
		want bool
	}{
		{"draft submit", InvoiceDraft, InvoiceSubmitted, true},
		{"submitted review", InvoiceSubmitted, InvoiceInReview, true},
		{"review approve", InvoiceInReview, InvoiceApproved, true},
		{"review more-info loop", InvoiceInReview, InvoiceSubmitted, true},
		{"approved list", InvoiceApproved, InvoiceListed, true},
		{"listed fund", InvoiceListed, InvoiceFunded, true},
		{"funded repaid", InvoiceFunded, InvoiceRepaid, true},
		{"funded defaulted", InvoiceFunded, InvoiceDefaulted, true},
		{"no backward from funded", InvoiceFunded, InvoiceListed, false},
		{"no skip draft to listed", InvoiceDraft, InvoiceListed, false},
		{"repaid terminal", InvoiceRepaid, InvoiceFunded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestValidTenor(t *testing.T) {
	assert.True(t, ValidTenor(30))
	assert.True(t, ValidTenor(90))
	assert.True(t, ValidTenor(120))
	assert.False(t, ValidTenor(0))
	assert.False(t, ValidTenor(60))
	assert.False(t, ValidTenor(365))
}

func TestInvoice_OutstandingCents(t *testing.T) {
	inv := Invoice{AmountCents: 10_000_00, RepaidCents: 2_500_00}
	assert.Equal(t, int64(7_500_00), inv.OutstandingCents())

	over := Invoice{AmountCents: 100, RepaidCents: 200}
	assert.Equal(t, int64(0), over.OutstandingCents())
}

func TestMoneyHelpers(t *testing.T) {
	assert.Equal(t, int64(10000000), Cents(100000))
	assert.Equal(t, int64(1234), Cents(12.34))
	assert.InDelta(t, 12.34, Amount(1234), 0.0001)
	assert.InDelta(t, 3.33, Round2(3.3333), 0.0001)
	assert.InDelta(t, 3.34, Round2(3.335), 0.0001)
}
