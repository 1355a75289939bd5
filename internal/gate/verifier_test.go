package gate

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftfin/riftcore/internal/config"
	"github.com/riftfin/riftcore/internal/fault"
	"github.com/riftfin/riftcore/internal/model"
	"github.com/riftfin/riftcore/internal/riskadapter"
	"github.com/riftfin/riftcore/internal/store"
)

func testGateConfig(mode string) config.GateConfig {
	return config.GateConfig{
		Mode: mode,
		Methods: map[string]config.GateMethodConfig{
			"standard": {RequireSanctions: false},
			"enhanced": {RequireSanctions: true},
		},
	}
}

func newTestVerifier(t *testing.T, mode string) (*Verifier, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "riftcore.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	adapter := riskadapter.NewMock(config.AdapterConfig{})
	return New(st, adapter, testGateConfig(mode)), st
}

func seedUser(t *testing.T, st store.Store, orgName string, kyb model.KYBStatus, wallet string) *model.User {
	t.Helper()
	ctx := context.Background()
	orgID := ""
	if orgName != "" {
		org, err := st.CreateOrganization(ctx, model.Organization{
			ID: "org-" + orgName, Name: orgName, Country: "DE", KYBStatus: kyb,
		})
		require.NoError(t, err)
		orgID = org.ID
	}
	u, err := st.CreateUser(ctx, model.User{
		ID: "user-1", WalletAddress: wallet, OrganizationID: orgID, Role: "funder",
	})
	require.NoError(t, err)
	return u
}

func TestVerify_MockModeAlwaysApproves(t *testing.T) {
	v, st := newTestVerifier(t, "mock")
	seedUser(t, st, "", "", "")

	rec, err := v.Verify(context.Background(), Request{UserID: "user-1", Method: "enhanced"})
	require.NoError(t, err)

	assert.Equal(t, model.GateApproved, rec.Result)
	assert.Equal(t, model.GateModeMock, rec.Mode)
	assert.Equal(t, []string{ReasonMockApproval}, rec.Reasons)

	u, err := st.GetUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, model.GateStatusVerified, u.GateStatus)
}

func TestVerify_LiveApprovesOnKYB(t *testing.T) {
	v, st := newTestVerifier(t, "live")
	seedUser(t, st, "Acme Trading GmbH", model.KYBApproved, "")

	rec, err := v.Verify(context.Background(), Request{UserID: "user-1", Method: "standard"})
	require.NoError(t, err)

	assert.Equal(t, model.GateApproved, rec.Result)
	assert.Equal(t, []string{ReasonKYBApproved, ReasonAllowlistMissing}, rec.Reasons)
}

func TestVerify_LiveApprovesOnActiveAllowlist(t *testing.T) {
	v, st := newTestVerifier(t, "live")
	seedUser(t, st, "Acme Trading GmbH", model.KYBPending, "0xabc")
	require.NoError(t, st.PutAllowlistEntry(context.Background(), model.AllowlistEntry{
		WalletAddress: "0xabc", ExpiresAt: time.Now().UTC().Add(24 * time.Hour),
	}))

	rec, err := v.Verify(context.Background(), Request{UserID: "user-1", Method: "standard"})
	require.NoError(t, err)

	assert.Equal(t, model.GateApproved, rec.Result)
	assert.Equal(t, []string{ReasonKYBNotApproved, ReasonAllowlistActive}, rec.Reasons)
}

func TestVerify_ExpiredAllowlistDoesNotCount(t *testing.T) {
	v, st := newTestVerifier(t, "live")
	seedUser(t, st, "Acme Trading GmbH", model.KYBPending, "0xabc")
	require.NoError(t, st.PutAllowlistEntry(context.Background(), model.AllowlistEntry{
		WalletAddress: "0xabc", ExpiresAt: time.Now().UTC().Add(-time.Hour),
	}))

	rec, err := v.Verify(context.Background(), Request{UserID: "user-1", Method: "standard"})
	require.NoError(t, err)

	assert.Equal(t, model.GateDenied, rec.Result)
	assert.Equal(t, []string{ReasonKYBNotApproved, ReasonAllowlistExpired}, rec.Reasons)

	u, err := st.GetUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, model.GateStatusDenied, u.GateStatus)
}

func TestVerify_SanctionsHitForcesDenial(t *testing.T) {
	v, st := newTestVerifier(t, "live")
	// KYB approved and allowlisted, but the org name trips the screen.
	seedUser(t, st, "Sanctioned Exports Ltd", model.KYBApproved, "0xabc")
	require.NoError(t, st.PutAllowlistEntry(context.Background(), model.AllowlistEntry{
		WalletAddress: "0xabc", ExpiresAt: time.Now().UTC().Add(24 * time.Hour),
	}))

	rec, err := v.Verify(context.Background(), Request{UserID: "user-1", Method: "enhanced"})
	require.NoError(t, err)

	assert.Equal(t, model.GateDenied, rec.Result)
	assert.Equal(t, []string{ReasonKYBApproved, ReasonAllowlistActive, ReasonSanctionsHit}, rec.Reasons)
}

func TestVerify_CleanScreenKeepsApproval(t *testing.T) {
	v, st := newTestVerifier(t, "live")
	seedUser(t, st, "Acme Trading GmbH", model.KYBApproved, "")

	rec, err := v.Verify(context.Background(), Request{UserID: "user-1", Method: "enhanced"})
	require.NoError(t, err)

	assert.Equal(t, model.GateApproved, rec.Result)
	assert.Contains(t, rec.Reasons, ReasonSanctionsClear)
}

type failingAdapter struct {
	riskadapter.Port
}

func (failingAdapter) ScreenSanctions(ctx context.Context, name, org string) (riskadapter.SanctionsResult, error) {
	return riskadapter.SanctionsResult{}, fault.Adapter("screening", "sanctions", errors.New("provider timeout"))
}

func TestVerify_AdapterErrorFailsClosed(t *testing.T) {
	v, st := newTestVerifier(t, "live")
	seedUser(t, st, "Acme Trading GmbH", model.KYBApproved, "")
	v.adapter = failingAdapter{}

	rec, err := v.Verify(context.Background(), Request{UserID: "user-1", Method: "enhanced"})
	require.Error(t, err)
	assert.True(t, fault.IsAdapterFailure(err))

	// The denial is still on record even though the call failed, and the
	// reason names the outage rather than a list match.
	require.NotNil(t, rec)
	assert.Equal(t, model.GateDenied, rec.Result)
	assert.Contains(t, rec.Reasons, ReasonSanctionsUnavailable)
	assert.NotContains(t, rec.Reasons, ReasonSanctionsHit)
	u, err := st.GetUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, model.GateStatusDenied, u.GateStatus)
}

func TestVerify_RejectsBadRequests(t *testing.T) {
	v, st := newTestVerifier(t, "live")
	seedUser(t, st, "", "", "")
	ctx := context.Background()

	_, err := v.Verify(ctx, Request{Method: "standard"})
	assert.True(t, fault.IsValidation(err))

	_, err = v.Verify(ctx, Request{UserID: "user-1", Method: "premium"})
	assert.True(t, fault.IsValidation(err))

	_, err = v.Verify(ctx, Request{UserID: "ghost", Method: "standard"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}
