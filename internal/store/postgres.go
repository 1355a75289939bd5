package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/riftfin/riftcore/internal/config"
	"github.com/riftfin/riftcore/internal/db"
	"github.com/riftfin/riftcore/internal/fault"
	"github.com/riftfin/riftcore/internal/model"
)

// PostgresStore is the production backend.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres connects to Postgres and verifies the connection.
func NewPostgres(ctx context.Context, cfg config.StoreConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "store: parse postgres config")
	}
	if cfg.MaxConns > 0 {
		pgxCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pgxCfg.MinConns = cfg.MinConns
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "store: create postgres pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "store: ping postgres")
	}
	return &PostgresStore{pool: pool}, nil
}

// Pool exposes the underlying pool so the ledger can share the connection.
func (s *PostgresStore) Pool() db.Pool { return s.pool }

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS organizations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		country TEXT NOT NULL,
		vat_number TEXT NOT NULL DEFAULT '',
		eori TEXT NOT NULL DEFAULT '',
		kyb_status TEXT NOT NULL DEFAULT 'pending',
		kyb_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		wallet_address TEXT NOT NULL DEFAULT '',
		organization_id TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'funder',
		gate_status TEXT NOT NULL DEFAULT 'unverified',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		amount_cents BIGINT NOT NULL,
		currency TEXT NOT NULL,
		due_date TIMESTAMPTZ NOT NULL,
		tenor_days INTEGER NOT NULL,
		counterparty TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'draft',
		rift_score DOUBLE PRECISION,
		rift_grade TEXT NOT NULL DEFAULT '',
		insured BOOLEAN NOT NULL DEFAULT FALSE,
		coverage_pct DOUBLE PRECISION NOT NULL DEFAULT 0,
		insurance_policy_id TEXT NOT NULL DEFAULT '',
		repaid_cents BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_org ON invoices (organization_id)`,
	`CREATE TABLE IF NOT EXISTS cases (
		id TEXT PRIMARY KEY,
		case_type TEXT NOT NULL,
		subject_type TEXT NOT NULL,
		subject_id TEXT NOT NULL,
		user_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'open',
		checklist JSONB,
		sub_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		decision JSONB,
		missing_docs JSONB,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_cases_subject ON cases (subject_type, subject_id)`,
	`CREATE TABLE IF NOT EXISTS rift_scores (
		id TEXT PRIMARY KEY,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		inputs JSONB NOT NULL,
		breakdown JSONB NOT NULL,
		total_score DOUBLE PRECISION NOT NULL,
		grade TEXT NOT NULL,
		engine_version TEXT NOT NULL,
		version TEXT NOT NULL,
		supersedes TEXT NOT NULL DEFAULT '',
		override_delta DOUBLE PRECISION,
		override_reason TEXT NOT NULL DEFAULT '',
		calculated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (entity_type, entity_id, version)
	)`,
	`CREATE TABLE IF NOT EXISTS gate_verifications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		wallet_address TEXT NOT NULL DEFAULT '',
		method TEXT NOT NULL,
		mode TEXT NOT NULL,
		result TEXT NOT NULL,
		reasons JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_gate_verifications_user ON gate_verifications (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS allowlist (
		wallet_address TEXT PRIMARY KEY,
		label TEXT NOT NULL DEFAULT '',
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		action TEXT NOT NULL,
		actor TEXT NOT NULL,
		entity TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		metadata JSONB,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_log (entity, entity_id, created_at DESC)`,
}

// Migrate creates the schema. Statements are idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return eris.Wrap(err, "store: run migration")
		}
	}
	zap.L().Info("store: postgres schema up to date")
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateOrganization(ctx context.Context, org model.Organization) (*model.Organization, error) {
	now := time.Now().UTC()
	org.CreatedAt = now
	org.UpdatedAt = now
	if org.KYBStatus == "" {
		org.KYBStatus = model.KYBPending
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO organizations (id, name, country, vat_number, eori, kyb_status, kyb_score, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		org.ID, org.Name, org.Country, org.VATNumber, org.EORI, org.KYBStatus, org.KYBScore, org.CreatedAt, org.UpdatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "store: insert organization")
	}
	return &org, nil
}

func (s *PostgresStore) GetOrganization(ctx context.Context, id string) (*model.Organization, error) {
	var org model.Organization
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, country, vat_number, eori, kyb_status, kyb_score, created_at, updated_at
		 FROM organizations WHERE id = $1`, id).
		Scan(&org.ID, &org.Name, &org.Country, &org.VATNumber, &org.EORI, &org.KYBStatus, &org.KYBScore, &org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("organization", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: get organization")
	}
	return &org, nil
}

func (s *PostgresStore) UpdateOrganizationKYB(ctx context.Context, id string, status model.KYBStatus, score float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE organizations SET kyb_status = $2, kyb_score = $3, updated_at = $4 WHERE id = $1`,
		id, status, score, time.Now().UTC())
	if err != nil {
		return eris.Wrap(err, "store: update organization kyb")
	}
	if tag.RowsAffected() == 0 {
		return notFound("organization", id)
	}
	return nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, u model.User) (*model.User, error) {
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	if u.GateStatus == "" {
		u.GateStatus = model.GateStatusUnverified
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, wallet_address, organization_id, role, gate_status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.WalletAddress, u.OrganizationID, u.Role, u.GateStatus, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "store: insert user")
	}
	return &u, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, wallet_address, organization_id, role, gate_status, created_at, updated_at
		 FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.WalletAddress, &u.OrganizationID, &u.Role, &u.GateStatus, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("user", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: get user")
	}
	return &u, nil
}

func (s *PostgresStore) CreateInvoice(ctx context.Context, inv model.Invoice) (*model.Invoice, error) {
	now := time.Now().UTC()
	inv.CreatedAt = now
	inv.UpdatedAt = now
	if inv.Status == "" {
		inv.Status = model.InvoiceDraft
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO invoices (id, organization_id, amount_cents, currency, due_date, tenor_days, counterparty,
			status, insured, coverage_pct, insurance_policy_id, repaid_cents, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		inv.ID, inv.OrganizationID, inv.AmountCents, inv.Currency, inv.DueDate, inv.TenorDays, inv.Counterparty,
		inv.Status, inv.Insured, inv.CoveragePct, inv.InsurancePolicyID, inv.RepaidCents, inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "store: insert invoice")
	}
	return &inv, nil
}

const invoiceColumns = `id, organization_id, amount_cents, currency, due_date, tenor_days, counterparty,
	status, rift_score, rift_grade, insured, coverage_pct, insurance_policy_id, repaid_cents, created_at, updated_at`

func scanInvoice(row rowScanner) (*model.Invoice, error) {
	var inv model.Invoice
	err := row.Scan(&inv.ID, &inv.OrganizationID, &inv.AmountCents, &inv.Currency, &inv.DueDate, &inv.TenorDays,
		&inv.Counterparty, &inv.Status, &inv.RiftScore, &inv.RiftGrade, &inv.Insured, &inv.CoveragePct,
		&inv.InsurancePolicyID, &inv.RepaidCents, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *PostgresStore) GetInvoice(ctx context.Context, id string) (*model.Invoice, error) {
	inv, err := scanInvoice(s.pool.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("invoice", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: get invoice")
	}
	return inv, nil
}

func (s *PostgresStore) UpdateInvoiceStatus(ctx context.Context, id string, from, to model.InvoiceStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE invoices SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`,
		id, from, to, time.Now().UTC())
	if err != nil {
		return eris.Wrap(err, "store: update invoice status")
	}
	if tag.RowsAffected() == 0 {
		return conflictOrMissing(ctx, s, "invoice", id)
	}
	return nil
}

func (s *PostgresStore) SetInvoiceInsurance(ctx context.Context, id string, coveragePct float64, policyID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE invoices SET insured = TRUE, coverage_pct = $2, insurance_policy_id = $3, updated_at = $4 WHERE id = $1`,
		id, coveragePct, policyID, time.Now().UTC())
	if err != nil {
		return eris.Wrap(err, "store: set invoice insurance")
	}
	if tag.RowsAffected() == 0 {
		return notFound("invoice", id)
	}
	return nil
}

func (s *PostgresStore) CreateCase(ctx context.Context, c model.Case) (*model.Case, error) {
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.Status == "" {
		c.Status = model.CaseOpen
	}
	checklist, err := json.Marshal(c.Checklist)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal checklist")
	}
	missing, err := json.Marshal(c.MissingDocs)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal missing docs")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO cases (id, case_type, subject_type, subject_id, user_id, status, checklist, sub_score, missing_docs, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ID, c.Type, c.SubjectType, c.SubjectID, c.UserID, c.Status, checklist, c.SubScore, missing, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "store: insert case")
	}
	return &c, nil
}

func (s *PostgresStore) GetCase(ctx context.Context, id string) (*model.Case, error) {
	var (
		c         model.Case
		checklist []byte
		decision  []byte
		missing   []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, case_type, subject_type, subject_id, user_id, status, checklist, sub_score, decision, missing_docs, created_at, updated_at
		 FROM cases WHERE id = $1`, id).
		Scan(&c.ID, &c.Type, &c.SubjectType, &c.SubjectID, &c.UserID, &c.Status, &checklist, &c.SubScore, &decision, &missing, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("case", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: get case")
	}
	if err := decodeJSON(checklist, &c.Checklist); err != nil {
		return nil, eris.Wrap(err, "store: decode checklist")
	}
	if err := decodeJSON(decision, &c.Decision); err != nil {
		return nil, eris.Wrap(err, "store: decode decision")
	}
	if err := decodeJSON(missing, &c.MissingDocs); err != nil {
		return nil, eris.Wrap(err, "store: decode missing docs")
	}
	return &c, nil
}

func (s *PostgresStore) ApplyPrescreen(ctx context.Context, apply PrescreenApply) error {
	payload, err := json.Marshal(apply.Checklist)
	if err != nil {
		return eris.Wrap(err, "store: marshal checklist")
	}
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE cases SET checklist = $3, sub_score = $4, status = $5, missing_docs = NULL, updated_at = $6
			 WHERE id = $1 AND status = $2`,
			apply.CaseID, apply.FromStatus, payload, apply.SubScore, apply.ToStatus, time.Now().UTC())
		if err != nil {
			return eris.Wrap(err, "store: apply prescreen")
		}
		if tag.RowsAffected() == 0 {
			return s.conflictOrMissingCase(ctx, apply.CaseID, apply.FromStatus)
		}
		return insertAuditTx(ctx, tx, apply.Audit)
	})
}

func (s *PostgresStore) conflictOrMissingCase(ctx context.Context, id string, from model.CaseStatus) error {
	var one int
	err := s.pool.QueryRow(ctx, `SELECT 1 FROM cases WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound("case", id)
	}
	if err != nil {
		return eris.Wrap(err, "store: probe case")
	}
	return fault.Conflictf("case %s is no longer in status %s", id, from)
}

// ApplyCaseDecision commits the transition, the subject and gate
// projections, and the audit record in one transaction. The guarded UPDATE
// makes concurrent decisions race safely: the loser matches zero rows and
// gets a conflict.
func (s *PostgresStore) ApplyCaseDecision(ctx context.Context, apply CaseDecisionApply) error {
	now := time.Now().UTC()
	decision, err := json.Marshal(apply.Decision)
	if err != nil {
		return eris.Wrap(err, "store: marshal decision")
	}
	missing, err := json.Marshal(apply.MissingDocs)
	if err != nil {
		return eris.Wrap(err, "store: marshal missing docs")
	}
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE cases SET status = $3, decision = $4, missing_docs = $5, updated_at = $6
			 WHERE id = $1 AND status = $2`,
			apply.CaseID, apply.FromStatus, apply.ToStatus, decision, missing, now)
		if err != nil {
			return eris.Wrap(err, "store: transition case")
		}
		if tag.RowsAffected() == 0 {
			return fault.Conflictf("case %s is no longer in status %s", apply.CaseID, apply.FromStatus)
		}

		if apply.SubjectKYBStatus != "" && apply.SubjectType == model.SubjectOrganization {
			score := 0.0
			if apply.SubjectKYBScore != nil {
				score = *apply.SubjectKYBScore
			}
			if _, err := tx.Exec(ctx,
				`UPDATE organizations SET kyb_status = $2, kyb_score = $3, updated_at = $4 WHERE id = $1`,
				apply.SubjectID, apply.SubjectKYBStatus, score, now); err != nil {
				return eris.Wrap(err, "store: project subject kyb")
			}
		}

		if apply.UserGateStatus != "" && apply.UserID != "" {
			if _, err := tx.Exec(ctx,
				`UPDATE users SET gate_status = $2, updated_at = $3 WHERE id = $1`,
				apply.UserID, apply.UserGateStatus, now); err != nil {
				return eris.Wrap(err, "store: project gate status")
			}
		}

		return insertAuditTx(ctx, tx, apply.Audit)
	})
}

func (s *PostgresStore) InsertScoreRecord(ctx context.Context, rec model.RiftScoreRecord, audit model.AuditRecord) (*model.RiftScoreRecord, error) {
	inputs, err := json.Marshal(rec.Inputs)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal inputs")
	}
	breakdown, err := json.Marshal(rec.Breakdown)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal breakdown")
	}
	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var count int
		if err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM rift_scores WHERE entity_type = $1 AND entity_id = $2`,
			rec.EntityType, rec.EntityID).Scan(&count); err != nil {
			return eris.Wrap(err, "store: count score versions")
		}
		rec.Version = fmt.Sprintf("v%d", count+1)

		if _, err := tx.Exec(ctx,
			`INSERT INTO rift_scores (id, entity_type, entity_id, inputs, breakdown, total_score, grade,
				engine_version, version, supersedes, override_delta, override_reason, calculated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			rec.ID, rec.EntityType, rec.EntityID, inputs, breakdown, rec.TotalScore, rec.Grade,
			rec.EngineVersion, rec.Version, rec.Supersedes, rec.OverrideDelta, rec.OverrideReason, rec.CalculatedAt); err != nil {
			return eris.Wrap(err, "store: insert score record")
		}

		if rec.EntityType == model.EntityInvoice {
			if _, err := tx.Exec(ctx,
				`UPDATE invoices SET rift_score = $2, rift_grade = $3, updated_at = $4 WHERE id = $1`,
				rec.EntityID, rec.TotalScore, rec.Grade, time.Now().UTC()); err != nil {
				return eris.Wrap(err, "store: project invoice score")
			}
		}

		return insertAuditTx(ctx, tx, audit)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

const scoreColumns = `id, entity_type, entity_id, inputs, breakdown, total_score, grade,
	engine_version, version, supersedes, override_delta, override_reason, calculated_at`

func scanScoreRecord(row rowScanner) (*model.RiftScoreRecord, error) {
	var (
		rec       model.RiftScoreRecord
		inputs    []byte
		breakdown []byte
	)
	err := row.Scan(&rec.ID, &rec.EntityType, &rec.EntityID, &inputs, &breakdown, &rec.TotalScore, &rec.Grade,
		&rec.EngineVersion, &rec.Version, &rec.Supersedes, &rec.OverrideDelta, &rec.OverrideReason, &rec.CalculatedAt)
	if err != nil {
		return nil, err
	}
	if err := decodeJSON(inputs, &rec.Inputs); err != nil {
		return nil, err
	}
	if err := decodeJSON(breakdown, &rec.Breakdown); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *PostgresStore) LatestScoreRecord(ctx context.Context, entityType model.EntityType, entityID string) (*model.RiftScoreRecord, error) {
	rec, err := scanScoreRecord(s.pool.QueryRow(ctx,
		`SELECT `+scoreColumns+` FROM rift_scores WHERE entity_type = $1 AND entity_id = $2
		 ORDER BY calculated_at DESC, version DESC LIMIT 1`,
		entityType, entityID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: latest score record")
	}
	return rec, nil
}

func (s *PostgresStore) ListScoreRecords(ctx context.Context, entityType model.EntityType, entityID string) ([]model.RiftScoreRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+scoreColumns+` FROM rift_scores WHERE entity_type = $1 AND entity_id = $2
		 ORDER BY calculated_at ASC`,
		entityType, entityID)
	if err != nil {
		return nil, eris.Wrap(err, "store: list score records")
	}
	defer rows.Close()

	var out []model.RiftScoreRecord
	for rows.Next() {
		rec, err := scanScoreRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: scan score record")
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) PutAllowlistEntry(ctx context.Context, e model.AllowlistEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO allowlist (wallet_address, label, expires_at, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (wallet_address) DO UPDATE SET label = EXCLUDED.label, expires_at = EXCLUDED.expires_at`,
		e.WalletAddress, e.Label, e.ExpiresAt, e.CreatedAt)
	if err != nil {
		return eris.Wrap(err, "store: put allowlist entry")
	}
	return nil
}

func (s *PostgresStore) GetAllowlistEntry(ctx context.Context, wallet string) (*model.AllowlistEntry, error) {
	var e model.AllowlistEntry
	err := s.pool.QueryRow(ctx,
		`SELECT wallet_address, label, expires_at, created_at FROM allowlist WHERE wallet_address = $1`, wallet).
		Scan(&e.WalletAddress, &e.Label, &e.ExpiresAt, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: get allowlist entry")
	}
	return &e, nil
}

func (s *PostgresStore) RecordGateVerification(ctx context.Context, v model.GateVerification, status model.GateStatus, audit model.AuditRecord) error {
	reasons, err := json.Marshal(v.Reasons)
	if err != nil {
		return eris.Wrap(err, "store: marshal reasons")
	}
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO gate_verifications (id, user_id, wallet_address, method, mode, result, reasons, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			v.ID, v.UserID, v.WalletAddress, v.Method, v.Mode, v.Result, reasons, v.CreatedAt); err != nil {
			return eris.Wrap(err, "store: insert gate verification")
		}
		if _, err := tx.Exec(ctx,
			`UPDATE users SET gate_status = $2, updated_at = $3 WHERE id = $1`,
			v.UserID, status, time.Now().UTC()); err != nil {
			return eris.Wrap(err, "store: project gate status")
		}
		return insertAuditTx(ctx, tx, audit)
	})
}

func (s *PostgresStore) AppendAudit(ctx context.Context, rec model.AuditRecord) error {
	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return eris.Wrap(err, "store: marshal audit metadata")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO audit_log (id, action, actor, entity, entity_id, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.Action, rec.Actor, rec.Entity, rec.EntityID, metadata, rec.CreatedAt)
	if err != nil {
		return eris.Wrap(err, "store: append audit")
	}
	return nil
}

func insertAuditTx(ctx context.Context, tx pgx.Tx, rec model.AuditRecord) error {
	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return eris.Wrap(err, "store: marshal audit metadata")
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO audit_log (id, action, actor, entity, entity_id, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.Action, rec.Actor, rec.Entity, rec.EntityID, metadata, rec.CreatedAt); err != nil {
		return eris.Wrap(err, "store: append audit")
	}
	return nil
}

func (s *PostgresStore) ListAudit(ctx context.Context, entity, entityID string, limit int) ([]model.AuditRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, action, actor, entity, entity_id, metadata, created_at
		 FROM audit_log WHERE entity = $1 AND entity_id = $2
		 ORDER BY created_at DESC LIMIT $3`,
		entity, entityID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "store: list audit")
	}
	defer rows.Close()

	var out []model.AuditRecord
	for rows.Next() {
		var (
			rec      model.AuditRecord
			metadata []byte
		)
		if err := rows.Scan(&rec.ID, &rec.Action, &rec.Actor, &rec.Entity, &rec.EntityID, &metadata, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan audit")
		}
		if err := decodeJSON(metadata, &rec.Metadata); err != nil {
			return nil, eris.Wrap(err, "store: decode audit metadata")
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// conflictOrMissing disambiguates a zero-row guarded update: the row either
// does not exist (not found) or exists in a different state (conflict).
func conflictOrMissing(ctx context.Context, s *PostgresStore, kind, id string) error {
	var one int
	err := s.pool.QueryRow(ctx, `SELECT 1 FROM invoices WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound(kind, id)
	}
	if err != nil {
		return eris.Wrapf(err, "store: check %s", kind)
	}
	return fault.Conflictf("%s %s changed concurrently", kind, id)
}

var _ Store = (*PostgresStore)(nil)
