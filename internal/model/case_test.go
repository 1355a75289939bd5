package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCaseStatus_CanTransition(t *testing.T) {
	tests := []struct {
		name string
		from CaseStatus
		to   CaseStatus
		want bool
	}{
		{"open to in_review", CaseOpen, CaseInReview, true},
		{"in_review to approved", CaseInReview, CaseApproved, true},
		{"in_review to rejected", CaseInReview, CaseRejected, true},
		{"in_review to awaiting_docs", CaseInReview, CaseAwaitingDocs, true},
		{"awaiting_docs resubmit", CaseAwaitingDocs, CaseInReview, true},
		{"awaiting_docs direct approve", CaseAwaitingDocs, CaseApproved, false},
		{"awaiting_docs direct reject", CaseAwaitingDocs, CaseRejected, false},
		{"open skip to approved", CaseOpen, CaseApproved, false},
		{"approved is terminal", CaseApproved, CaseInReview, false},
		{"rejected is terminal", CaseRejected, CaseInReview, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestCaseStatus_Terminal(t *testing.T) {
	assert.True(t, CaseApproved.Terminal())
	assert.True(t, CaseRejected.Terminal())
	assert.False(t, CaseOpen.Terminal())
	assert.False(t, CaseInReview.Terminal())
	assert.False(t, CaseAwaitingDocs.Terminal())
}

func TestChecklist_SubScore(t *testing.T) {
	tests := []struct {
		name string
		cl   Checklist
		want float64
	}{
		{"empty kyb", Checklist{Kind: CaseKYBEntity}, 0},
		{"kyb sanctions hit floors score", Checklist{
			Kind: CaseKYBEntity,
			KYB:  &KYBChecklist{SanctionsClear: false, VATValid: true, DocumentsComplete: true, TaxCertPresent: true},
		}, 0},
		{"kyb clean minimum", Checklist{
			Kind: CaseKYBEntity,
			KYB:  &KYBChecklist{SanctionsClear: true},
		}, 40},
		{"kyb full", Checklist{
			Kind: CaseKYBEntity,
			KYB:  &KYBChecklist{SanctionsClear: true, VATValid: true, DocumentsComplete: true, TaxCertPresent: true},
		}, 100},
		{"kyc full", Checklist{
			Kind: CaseKYCIndividual,
			KYC:  &KYCChecklist{SanctionsClear: true, IdentityVerified: true, DocumentsComplete: true, ProofOfFundsPresent: true},
		}, 100},
		{"kyc sanctions hit", Checklist{
			Kind: CaseKYCIndividual,
			KYC:  &KYCChecklist{SanctionsClear: false, IdentityVerified: true},
		}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.cl.SubScore(), 0.001)
		})
	}
}
