package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftfin/riftcore/internal/fault"
	"github.com/riftfin/riftcore/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &PostgresStore{pool: mock}, mock
}

func TestPostgres_GetOrganization_NotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT (.+) FROM organizations`).
		WithArgs("org-missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetOrganization(context.Background(), "org-missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateInvoiceStatus_Conflict(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(`UPDATE invoices SET status`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT 1 FROM invoices`).
		WithArgs("inv-1").
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))

	err := s.UpdateInvoiceStatus(context.Background(), "inv-1", model.InvoiceListed, model.InvoiceFunded)
	require.Error(t, err)
	assert.True(t, fault.IsConflict(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateInvoiceStatus_NotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(`UPDATE invoices SET status`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT 1 FROM invoices`).
		WithArgs("inv-gone").
		WillReturnError(pgx.ErrNoRows)

	err := s.UpdateInvoiceStatus(context.Background(), "inv-gone", model.InvoiceListed, model.InvoiceFunded)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgres_ApplyCaseDecision_CommitsProjectionsAndAudit(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE cases SET status`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE organizations SET kyb_status`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO audit_log`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	score := 81.0
	err := s.ApplyCaseDecision(context.Background(), CaseDecisionApply{
		CaseID:           "case-1",
		FromStatus:       model.CaseInReview,
		ToStatus:         model.CaseApproved,
		Decision:         &model.DecisionMeta{Decision: "approve", Actor: "ops@riftfin", DecidedAt: time.Now().UTC()},
		SubjectType:      model.SubjectOrganization,
		SubjectID:        "org-1",
		SubjectKYBStatus: model.KYBApproved,
		SubjectKYBScore:  &score,
		Audit: model.AuditRecord{
			ID: "audit-1", Action: "case.approved", Actor: "ops@riftfin",
			Entity: "case", EntityID: "case-1", CreatedAt: time.Now().UTC(),
		},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ApplyCaseDecision_ConflictRollsBack(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE cases SET status`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := s.ApplyCaseDecision(context.Background(), CaseDecisionApply{
		CaseID:     "case-1",
		FromStatus: model.CaseInReview,
		ToStatus:   model.CaseApproved,
	})
	require.Error(t, err)
	assert.True(t, fault.IsConflict(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_InsertScoreRecord_AssignsNextVersion(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM rift_scores`).
		WithArgs(model.EntityInvoice, "inv-1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectExec(`INSERT INTO rift_scores`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE invoices SET rift_score`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO audit_log`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	rec, err := s.InsertScoreRecord(context.Background(), model.RiftScoreRecord{
		ID:            "score-3",
		EntityType:    model.EntityInvoice,
		EntityID:      "inv-1",
		Inputs:        map[string]float64{model.FactorPaymentHistory: 80},
		Breakdown:     map[string]float64{model.FactorPaymentHistory: 20},
		TotalScore:    72.5,
		Grade:         model.GradeB,
		EngineVersion: "2026.1",
		CalculatedAt:  time.Now().UTC(),
	}, model.AuditRecord{
		ID: "audit-3", Action: "score.calculated", Actor: "system",
		Entity: "invoice", EntityID: "inv-1", CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, "v3", rec.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetAllowlistEntry_AbsentIsNil(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT (.+) FROM allowlist`).
		WithArgs("0xabc").
		WillReturnError(pgx.ErrNoRows)

	entry, err := s.GetAllowlistEntry(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestPostgres_RecordGateVerification_Transactional(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO gate_verifications`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE users SET gate_status`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO audit_log`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := s.RecordGateVerification(context.Background(), model.GateVerification{
		ID: "ver-1", UserID: "user-1", Method: "standard", Mode: model.GateModeLive,
		Result: model.GateApproved, Reasons: []string{"kyc-approved", "allowlisted"},
		CreatedAt: time.Now().UTC(),
	}, model.GateStatusVerified, model.AuditRecord{
		ID: "audit-4", Action: "gate.approved", Actor: "system",
		Entity: "user", EntityID: "user-1", CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_MigrateRunsAllStatements(t *testing.T) {
	s, mock := newMockStore(t)
	for range postgresSchema {
		mock.ExpectExec(`CREATE (TABLE|INDEX)`).
			WillReturnResult(pgxmock.NewResult("CREATE", 0))
	}
	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Guards against accidentally diverging error taxonomies between backends.
func TestErrNotFound_SurvivesWrapping(t *testing.T) {
	err := notFound("invoice", "inv-1")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "inv-1")
}
