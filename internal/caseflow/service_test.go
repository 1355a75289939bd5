package caseflow

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftfin/riftcore/internal/config"
	"github.com/riftfin/riftcore/internal/fault"
	"github.com/riftfin/riftcore/internal/model"
	"github.com/riftfin/riftcore/internal/riskadapter"
	"github.com/riftfin/riftcore/internal/store"
)

func newTestService(t *testing.T) (*Service, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "riftcore.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	return New(st, riskadapter.NewMock(config.AdapterConfig{})), st
}

func seedOrg(t *testing.T, st store.Store, name string) *model.Organization {
	t.Helper()
	org, err := st.CreateOrganization(context.Background(), model.Organization{
		ID: "org-1", Name: name, Country: "DE", VATNumber: "DE123456789",
	})
	require.NoError(t, err)
	return org
}

func openKYBCase(t *testing.T, svc *Service, orgID string) *model.Case {
	t.Helper()
	c, err := svc.Open(context.Background(), OpenRequest{
		Type: model.CaseKYBEntity, SubjectType: model.SubjectOrganization, SubjectID: orgID,
	})
	require.NoError(t, err)
	return c
}

func TestOpen_CreatesCaseWithAudit(t *testing.T) {
	svc, st := newTestService(t)
	seedOrg(t, st, "Acme Trading GmbH")

	c := openKYBCase(t, svc, "org-1")
	assert.Equal(t, model.CaseOpen, c.Status)
	assert.Equal(t, model.CaseKYBEntity, c.Type)

	trail, err := st.ListAudit(context.Background(), "case", c.ID, 10)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, "case.opened", trail[0].Action)
}

func TestOpen_RejectsBadRequests(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Open(ctx, OpenRequest{Type: model.CaseKYBEntity, SubjectType: model.SubjectOrganization})
	assert.True(t, fault.IsValidation(err))

	_, err = svc.Open(ctx, OpenRequest{Type: model.CaseKYBEntity, SubjectType: model.SubjectFunder, SubjectID: "f-1"})
	assert.True(t, fault.IsValidation(err))

	_, err = svc.Open(ctx, OpenRequest{Type: model.CaseKYCIndividual, SubjectType: model.SubjectFunder, SubjectID: "f-1"})
	assert.True(t, fault.IsValidation(err))

	_, err = svc.Open(ctx, OpenRequest{Type: "audit", SubjectType: model.SubjectOrganization, SubjectID: "org-1"})
	assert.True(t, fault.IsValidation(err))
}

func TestPrescreen_MovesCaseIntoReview(t *testing.T) {
	svc, st := newTestService(t)
	seedOrg(t, st, "Acme Trading GmbH")
	c := openKYBCase(t, svc, "org-1")

	got, err := svc.Prescreen(context.Background(), PrescreenRequest{
		CaseID:         c.ID,
		Documents:      []string{"registration.pdf", "bank-statement.pdf"},
		TaxCertPresent: true,
	})
	require.NoError(t, err)

	assert.Equal(t, model.CaseInReview, got.Status)
	require.NotNil(t, got.Checklist.KYB)
	assert.True(t, got.Checklist.KYB.SanctionsClear)
	assert.True(t, got.Checklist.KYB.VATValid)
	assert.True(t, got.Checklist.KYB.DocumentsComplete)
	assert.True(t, got.Checklist.KYB.TaxCertPresent)
	assert.NotEmpty(t, got.Checklist.KYB.RegisteredName)
	assert.Equal(t, "approved", got.Checklist.Extra["kyb_provider_status"])
	assert.InDelta(t, 100, got.SubScore, 0.001)

	trail, err := st.ListAudit(context.Background(), "case", c.ID, 10)
	require.NoError(t, err)
	assert.Len(t, trail, 2)
}

func TestPrescreen_SanctionsHitFloorsSubScore(t *testing.T) {
	svc, st := newTestService(t)
	seedOrg(t, st, "Sanctioned Exports Ltd")
	c := openKYBCase(t, svc, "org-1")

	got, err := svc.Prescreen(context.Background(), PrescreenRequest{
		CaseID: c.ID, Documents: []string{"registration.pdf"}, TaxCertPresent: true,
	})
	require.NoError(t, err)

	// The case still reaches review; the operator sees the hit and decides.
	assert.Equal(t, model.CaseInReview, got.Status)
	require.NotNil(t, got.Checklist.KYB)
	assert.False(t, got.Checklist.KYB.SanctionsClear)
	assert.NotEmpty(t, got.Checklist.KYB.SanctionsHits)
	assert.InDelta(t, 0, got.SubScore, 0.001)
}

type failingAdapter struct {
	riskadapter.Port
}

func (failingAdapter) ScreenSanctions(ctx context.Context, name, org string) (riskadapter.SanctionsResult, error) {
	return riskadapter.SanctionsResult{}, fault.Adapter("screening", "sanctions", errors.New("provider timeout"))
}

func TestPrescreen_AdapterFailureLeavesCaseUntouched(t *testing.T) {
	svc, st := newTestService(t)
	seedOrg(t, st, "Acme Trading GmbH")
	c := openKYBCase(t, svc, "org-1")
	svc.adapter = failingAdapter{Port: svc.adapter}

	_, err := svc.Prescreen(context.Background(), PrescreenRequest{CaseID: c.ID})
	require.Error(t, err)
	assert.True(t, fault.IsAdapterFailure(err))

	got, err := st.GetCase(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CaseOpen, got.Status)
}

func TestDecide_ApproveProjectsOrganization(t *testing.T) {
	svc, st := newTestService(t)
	seedOrg(t, st, "Acme Trading GmbH")
	c := openKYBCase(t, svc, "org-1")
	_, err := svc.Prescreen(context.Background(), PrescreenRequest{
		CaseID: c.ID, Documents: []string{"registration.pdf"}, TaxCertPresent: true,
	})
	require.NoError(t, err)

	got, err := svc.Decide(context.Background(), DecideRequest{
		CaseID: c.ID, Decision: "approve", Notes: "docs verified", Actor: "ops@riftfin",
	})
	require.NoError(t, err)

	assert.Equal(t, model.CaseApproved, got.Status)
	require.NotNil(t, got.Decision)
	assert.Equal(t, "approve", got.Decision.Decision)
	assert.Equal(t, "ops@riftfin", got.Decision.Actor)

	org, err := st.GetOrganization(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Equal(t, model.KYBApproved, org.KYBStatus)
	assert.InDelta(t, got.SubScore, org.KYBScore, 0.001)
}

func TestDecide_ApproveMarksFunderGateVerified(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	_, err := st.CreateUser(ctx, model.User{ID: "user-1", Role: "funder"})
	require.NoError(t, err)

	c, err := svc.Open(ctx, OpenRequest{
		Type: model.CaseKYCIndividual, SubjectType: model.SubjectFunder,
		SubjectID: "user-1", UserID: "user-1",
	})
	require.NoError(t, err)
	_, err = svc.Prescreen(ctx, PrescreenRequest{
		CaseID: c.ID, Documents: []string{"passport.pdf"},
		IdentityVerified: true, ProofOfFundsPresent: true,
	})
	require.NoError(t, err)

	_, err = svc.Decide(ctx, DecideRequest{CaseID: c.ID, Decision: "approve", Actor: "ops@riftfin"})
	require.NoError(t, err)

	u, err := st.GetUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, model.GateStatusVerified, u.GateStatus)
}

func TestDecide_RejectMarksFunderGateDenied(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	_, err := st.CreateUser(ctx, model.User{ID: "user-1", Role: "funder"})
	require.NoError(t, err)

	c, err := svc.Open(ctx, OpenRequest{
		Type: model.CaseKYCIndividual, SubjectType: model.SubjectFunder,
		SubjectID: "user-1", UserID: "user-1",
	})
	require.NoError(t, err)
	_, err = svc.Prescreen(ctx, PrescreenRequest{CaseID: c.ID})
	require.NoError(t, err)

	got, err := svc.Decide(ctx, DecideRequest{CaseID: c.ID, Decision: "reject", Actor: "ops@riftfin"})
	require.NoError(t, err)
	assert.Equal(t, model.CaseRejected, got.Status)

	u, err := st.GetUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, model.GateStatusDenied, u.GateStatus)
}

func TestDecide_OperatorOverridesLowSubScore(t *testing.T) {
	svc, st := newTestService(t)
	seedOrg(t, st, "Sanctioned Exports Ltd")
	c := openKYBCase(t, svc, "org-1")
	_, err := svc.Prescreen(context.Background(), PrescreenRequest{CaseID: c.ID})
	require.NoError(t, err)

	// Sub-score is floored at zero, but the manual decision still wins.
	got, err := svc.Decide(context.Background(), DecideRequest{
		CaseID: c.ID, Decision: "approve", Notes: "false positive, cleared manually", Actor: "ops@riftfin",
	})
	require.NoError(t, err)
	assert.Equal(t, model.CaseApproved, got.Status)
}

func TestRequestMoreInfo_ThenResubmit(t *testing.T) {
	svc, st := newTestService(t)
	seedOrg(t, st, "Acme Trading GmbH")
	c := openKYBCase(t, svc, "org-1")
	_, err := svc.Prescreen(context.Background(), PrescreenRequest{CaseID: c.ID})
	require.NoError(t, err)

	got, err := svc.RequestMoreInfo(context.Background(), MoreInfoRequest{
		CaseID: c.ID, Missing: []string{"tax_certificate"}, Message: "please upload", Actor: "ops@riftfin",
	})
	require.NoError(t, err)
	assert.Equal(t, model.CaseAwaitingDocs, got.Status)
	assert.Equal(t, []string{"tax_certificate"}, got.MissingDocs)

	// From awaiting_docs the only way forward is another prescreen pass.
	_, err = svc.Decide(context.Background(), DecideRequest{CaseID: c.ID, Decision: "approve", Actor: "ops@riftfin"})
	require.Error(t, err)
	assert.True(t, fault.IsConflict(err))

	got, err = svc.Prescreen(context.Background(), PrescreenRequest{
		CaseID: c.ID, Documents: []string{"registration.pdf"}, TaxCertPresent: true,
	})
	require.NoError(t, err)
	assert.Equal(t, model.CaseInReview, got.Status)
	assert.Empty(t, got.MissingDocs)

	_, err = st.GetCase(context.Background(), c.ID)
	require.NoError(t, err)
}

func TestDecide_RejectsBadInput(t *testing.T) {
	svc, st := newTestService(t)
	seedOrg(t, st, "Acme Trading GmbH")
	c := openKYBCase(t, svc, "org-1")
	ctx := context.Background()

	_, err := svc.Decide(ctx, DecideRequest{CaseID: c.ID, Decision: "approve"})
	assert.True(t, fault.IsValidation(err))

	_, err = svc.Decide(ctx, DecideRequest{CaseID: c.ID, Decision: "escalate", Actor: "ops@riftfin"})
	assert.True(t, fault.IsValidation(err))

	// Decisions are only legal from in_review; the case is still open.
	_, err = svc.Decide(ctx, DecideRequest{CaseID: c.ID, Decision: "approve", Actor: "ops@riftfin"})
	assert.True(t, fault.IsConflict(err))

	_, err = svc.RequestMoreInfo(ctx, MoreInfoRequest{CaseID: c.ID, Actor: "ops@riftfin"})
	assert.True(t, fault.IsValidation(err))
}
