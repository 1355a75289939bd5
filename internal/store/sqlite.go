package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/riftfin/riftcore/internal/fault"
	"github.com/riftfin/riftcore/internal/model"
)

// SQLiteStore backs local single-binary runs. The pool ledger is not
// available on this backend; ledger operations need Postgres row locking.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) a SQLite database at path.
func NewSQLite(path string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "store: open sqlite")
	}
	// Serialized writes; WAL keeps readers unblocked during them.
	conn.SetMaxOpenConns(1)
	for _, pragma := range []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA foreign_keys = ON`,
		`PRAGMA busy_timeout = 5000`,
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "store: %s", pragma)
		}
	}
	return &SQLiteStore{db: conn}, nil
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS organizations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		country TEXT NOT NULL,
		vat_number TEXT NOT NULL DEFAULT '',
		eori TEXT NOT NULL DEFAULT '',
		kyb_status TEXT NOT NULL DEFAULT 'pending',
		kyb_score REAL NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		wallet_address TEXT NOT NULL DEFAULT '',
		organization_id TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'funder',
		gate_status TEXT NOT NULL DEFAULT 'unverified',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		amount_cents INTEGER NOT NULL,
		currency TEXT NOT NULL,
		due_date TIMESTAMP NOT NULL,
		tenor_days INTEGER NOT NULL,
		counterparty TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'draft',
		rift_score REAL,
		rift_grade TEXT NOT NULL DEFAULT '',
		insured INTEGER NOT NULL DEFAULT 0,
		coverage_pct REAL NOT NULL DEFAULT 0,
		insurance_policy_id TEXT NOT NULL DEFAULT '',
		repaid_cents INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_org ON invoices (organization_id)`,
	`CREATE TABLE IF NOT EXISTS cases (
		id TEXT PRIMARY KEY,
		case_type TEXT NOT NULL,
		subject_type TEXT NOT NULL,
		subject_id TEXT NOT NULL,
		user_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'open',
		checklist TEXT,
		sub_score REAL NOT NULL DEFAULT 0,
		decision TEXT,
		missing_docs TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_cases_subject ON cases (subject_type, subject_id)`,
	`CREATE TABLE IF NOT EXISTS rift_scores (
		id TEXT PRIMARY KEY,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		inputs TEXT NOT NULL,
		breakdown TEXT NOT NULL,
		total_score REAL NOT NULL,
		grade TEXT NOT NULL,
		engine_version TEXT NOT NULL,
		version TEXT NOT NULL,
		supersedes TEXT NOT NULL DEFAULT '',
		override_delta REAL,
		override_reason TEXT NOT NULL DEFAULT '',
		calculated_at TIMESTAMP NOT NULL,
		UNIQUE (entity_type, entity_id, version)
	)`,
	`CREATE TABLE IF NOT EXISTS gate_verifications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		wallet_address TEXT NOT NULL DEFAULT '',
		method TEXT NOT NULL,
		mode TEXT NOT NULL,
		result TEXT NOT NULL,
		reasons TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_gate_verifications_user ON gate_verifications (user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS allowlist (
		wallet_address TEXT PRIMARY KEY,
		label TEXT NOT NULL DEFAULT '',
		expires_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		action TEXT NOT NULL,
		actor TEXT NOT NULL,
		entity TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		metadata TEXT,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_log (entity, entity_id, created_at)`,
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	for _, stmt := range sqliteSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return eris.Wrap(err, "store: run migration")
		}
	}
	zap.L().Info("store: sqlite schema up to date")
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateOrganization(ctx context.Context, org model.Organization) (*model.Organization, error) {
	now := time.Now().UTC()
	org.CreatedAt = now
	org.UpdatedAt = now
	if org.KYBStatus == "" {
		org.KYBStatus = model.KYBPending
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO organizations (id, name, country, vat_number, eori, kyb_status, kyb_score, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		org.ID, org.Name, org.Country, org.VATNumber, org.EORI, org.KYBStatus, org.KYBScore, org.CreatedAt, org.UpdatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "store: insert organization")
	}
	return &org, nil
}

func (s *SQLiteStore) GetOrganization(ctx context.Context, id string) (*model.Organization, error) {
	var org model.Organization
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, country, vat_number, eori, kyb_status, kyb_score, created_at, updated_at
		 FROM organizations WHERE id = ?`, id).
		Scan(&org.ID, &org.Name, &org.Country, &org.VATNumber, &org.EORI, &org.KYBStatus, &org.KYBScore, &org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("organization", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: get organization")
	}
	return &org, nil
}

func (s *SQLiteStore) UpdateOrganizationKYB(ctx context.Context, id string, status model.KYBStatus, score float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE organizations SET kyb_status = ?, kyb_score = ?, updated_at = ? WHERE id = ?`,
		status, score, time.Now().UTC(), id)
	if err != nil {
		return eris.Wrap(err, "store: update organization kyb")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("organization", id)
	}
	return nil
}

func (s *SQLiteStore) CreateUser(ctx context.Context, u model.User) (*model.User, error) {
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	if u.GateStatus == "" {
		u.GateStatus = model.GateStatusUnverified
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, wallet_address, organization_id, role, gate_status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.WalletAddress, u.OrganizationID, u.Role, u.GateStatus, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "store: insert user")
	}
	return &u, nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, wallet_address, organization_id, role, gate_status, created_at, updated_at
		 FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.WalletAddress, &u.OrganizationID, &u.Role, &u.GateStatus, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("user", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: get user")
	}
	return &u, nil
}

func (s *SQLiteStore) CreateInvoice(ctx context.Context, inv model.Invoice) (*model.Invoice, error) {
	now := time.Now().UTC()
	inv.CreatedAt = now
	inv.UpdatedAt = now
	if inv.Status == "" {
		inv.Status = model.InvoiceDraft
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO invoices (id, organization_id, amount_cents, currency, due_date, tenor_days, counterparty,
			status, insured, coverage_pct, insurance_policy_id, repaid_cents, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.OrganizationID, inv.AmountCents, inv.Currency, inv.DueDate, inv.TenorDays, inv.Counterparty,
		inv.Status, inv.Insured, inv.CoveragePct, inv.InsurancePolicyID, inv.RepaidCents, inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "store: insert invoice")
	}
	return &inv, nil
}

func (s *SQLiteStore) GetInvoice(ctx context.Context, id string) (*model.Invoice, error) {
	inv, err := scanInvoice(s.db.QueryRowContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("invoice", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: get invoice")
	}
	return inv, nil
}

func (s *SQLiteStore) UpdateInvoiceStatus(ctx context.Context, id string, from, to model.InvoiceStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE invoices SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to, time.Now().UTC(), id, from)
	if err != nil {
		return eris.Wrap(err, "store: update invoice status")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var one int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM invoices WHERE id = ?`, id).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("invoice", id)
		}
		if err != nil {
			return eris.Wrap(err, "store: check invoice")
		}
		return fault.Conflictf("invoice %s changed concurrently", id)
	}
	return nil
}

func (s *SQLiteStore) SetInvoiceInsurance(ctx context.Context, id string, coveragePct float64, policyID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE invoices SET insured = 1, coverage_pct = ?, insurance_policy_id = ?, updated_at = ? WHERE id = ?`,
		coveragePct, policyID, time.Now().UTC(), id)
	if err != nil {
		return eris.Wrap(err, "store: set invoice insurance")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("invoice", id)
	}
	return nil
}

func (s *SQLiteStore) CreateCase(ctx context.Context, c model.Case) (*model.Case, error) {
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
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO cases (id, case_type, subject_type, subject_id, user_id, status, checklist, sub_score, missing_docs, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Type, c.SubjectType, c.SubjectID, c.UserID, c.Status, checklist, c.SubScore, missing, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "store: insert case")
	}
	return &c, nil
}

func (s *SQLiteStore) GetCase(ctx context.Context, id string) (*model.Case, error) {
	var (
		c         model.Case
		checklist []byte
		decision  []byte
		missing   []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, case_type, subject_type, subject_id, user_id, status, checklist, sub_score, decision, missing_docs, created_at, updated_at
		 FROM cases WHERE id = ?`, id).
		Scan(&c.ID, &c.Type, &c.SubjectType, &c.SubjectID, &c.UserID, &c.Status, &checklist, &c.SubScore, &decision, &missing, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
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

func (s *SQLiteStore) ApplyPrescreen(ctx context.Context, apply PrescreenApply) error {
	payload, err := json.Marshal(apply.Checklist)
	if err != nil {
		return eris.Wrap(err, "store: marshal checklist")
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE cases SET checklist = ?, sub_score = ?, status = ?, missing_docs = NULL, updated_at = ?
			 WHERE id = ? AND status = ?`,
			payload, apply.SubScore, apply.ToStatus, time.Now().UTC(), apply.CaseID, apply.FromStatus)
		if err != nil {
			return eris.Wrap(err, "store: apply prescreen")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			var one int
			err := tx.QueryRowContext(ctx, `SELECT 1 FROM cases WHERE id = ?`, apply.CaseID).Scan(&one)
			if errors.Is(err, sql.ErrNoRows) {
				return notFound("case", apply.CaseID)
			}
			if err != nil {
				return eris.Wrap(err, "store: probe case")
			}
			return fault.Conflictf("case %s is no longer in status %s", apply.CaseID, apply.FromStatus)
		}
		return s.insertAuditTx(ctx, tx, apply.Audit)
	})
}

func (s *SQLiteStore) ApplyCaseDecision(ctx context.Context, apply CaseDecisionApply) error {
	now := time.Now().UTC()
	decision, err := json.Marshal(apply.Decision)
	if err != nil {
		return eris.Wrap(err, "store: marshal decision")
	}
	missing, err := json.Marshal(apply.MissingDocs)
	if err != nil {
		return eris.Wrap(err, "store: marshal missing docs")
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE cases SET status = ?, decision = ?, missing_docs = ?, updated_at = ?
			 WHERE id = ? AND status = ?`,
			apply.ToStatus, decision, missing, now, apply.CaseID, apply.FromStatus)
		if err != nil {
			return eris.Wrap(err, "store: transition case")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fault.Conflictf("case %s is no longer in status %s", apply.CaseID, apply.FromStatus)
		}

		if apply.SubjectKYBStatus != "" && apply.SubjectType == model.SubjectOrganization {
			score := 0.0
			if apply.SubjectKYBScore != nil {
				score = *apply.SubjectKYBScore
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE organizations SET kyb_status = ?, kyb_score = ?, updated_at = ? WHERE id = ?`,
				apply.SubjectKYBStatus, score, now, apply.SubjectID); err != nil {
				return eris.Wrap(err, "store: project subject kyb")
			}
		}

		if apply.UserGateStatus != "" && apply.UserID != "" {
			if _, err := tx.ExecContext(ctx,
				`UPDATE users SET gate_status = ?, updated_at = ? WHERE id = ?`,
				apply.UserGateStatus, now, apply.UserID); err != nil {
				return eris.Wrap(err, "store: project gate status")
			}
		}

		return s.insertAuditTx(ctx, tx, apply.Audit)
	})
}

func (s *SQLiteStore) InsertScoreRecord(ctx context.Context, rec model.RiftScoreRecord, audit model.AuditRecord) (*model.RiftScoreRecord, error) {
	inputs, err := json.Marshal(rec.Inputs)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal inputs")
	}
	breakdown, err := json.Marshal(rec.Breakdown)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal breakdown")
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM rift_scores WHERE entity_type = ? AND entity_id = ?`,
			rec.EntityType, rec.EntityID).Scan(&count); err != nil {
			return eris.Wrap(err, "store: count score versions")
		}
		rec.Version = fmt.Sprintf("v%d", count+1)

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rift_scores (id, entity_type, entity_id, inputs, breakdown, total_score, grade,
				engine_version, version, supersedes, override_delta, override_reason, calculated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.EntityType, rec.EntityID, inputs, breakdown, rec.TotalScore, rec.Grade,
			rec.EngineVersion, rec.Version, rec.Supersedes, rec.OverrideDelta, rec.OverrideReason, rec.CalculatedAt); err != nil {
			return eris.Wrap(err, "store: insert score record")
		}

		if rec.EntityType == model.EntityInvoice {
			if _, err := tx.ExecContext(ctx,
				`UPDATE invoices SET rift_score = ?, rift_grade = ?, updated_at = ? WHERE id = ?`,
				rec.TotalScore, rec.Grade, time.Now().UTC(), rec.EntityID); err != nil {
				return eris.Wrap(err, "store: project invoice score")
			}
		}

		return s.insertAuditTx(ctx, tx, audit)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *SQLiteStore) LatestScoreRecord(ctx context.Context, entityType model.EntityType, entityID string) (*model.RiftScoreRecord, error) {
	rec, err := scanScoreRecord(s.db.QueryRowContext(ctx,
		`SELECT `+scoreColumns+` FROM rift_scores WHERE entity_type = ? AND entity_id = ?
		 ORDER BY calculated_at DESC, version DESC LIMIT 1`,
		entityType, entityID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: latest score record")
	}
	return rec, nil
}

func (s *SQLiteStore) ListScoreRecords(ctx context.Context, entityType model.EntityType, entityID string) ([]model.RiftScoreRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+scoreColumns+` FROM rift_scores WHERE entity_type = ? AND entity_id = ?
		 ORDER BY calculated_at ASC`,
		entityType, entityID)
	if err != nil {
		return nil, eris.Wrap(err, "store: list score records")
	}
	defer rows.Close() //nolint:errcheck

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

func (s *SQLiteStore) PutAllowlistEntry(ctx context.Context, e model.AllowlistEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO allowlist (wallet_address, label, expires_at, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (wallet_address) DO UPDATE SET label = excluded.label, expires_at = excluded.expires_at`,
		e.WalletAddress, e.Label, e.ExpiresAt, e.CreatedAt)
	if err != nil {
		return eris.Wrap(err, "store: put allowlist entry")
	}
	return nil
}

func (s *SQLiteStore) GetAllowlistEntry(ctx context.Context, wallet string) (*model.AllowlistEntry, error) {
	var e model.AllowlistEntry
	err := s.db.QueryRowContext(ctx,
		`SELECT wallet_address, label, expires_at, created_at FROM allowlist WHERE wallet_address = ?`, wallet).
		Scan(&e.WalletAddress, &e.Label, &e.ExpiresAt, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: get allowlist entry")
	}
	return &e, nil
}

func (s *SQLiteStore) RecordGateVerification(ctx context.Context, v model.GateVerification, status model.GateStatus, audit model.AuditRecord) error {
	reasons, err := json.Marshal(v.Reasons)
	if err != nil {
		return eris.Wrap(err, "store: marshal reasons")
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO gate_verifications (id, user_id, wallet_address, method, mode, result, reasons, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			v.ID, v.UserID, v.WalletAddress, v.Method, v.Mode, v.Result, reasons, v.CreatedAt); err != nil {
			return eris.Wrap(err, "store: insert gate verification")
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET gate_status = ?, updated_at = ? WHERE id = ?`,
			status, time.Now().UTC(), v.UserID); err != nil {
			return eris.Wrap(err, "store: project gate status")
		}
		return s.insertAuditTx(ctx, tx, audit)
	})
}

func (s *SQLiteStore) AppendAudit(ctx context.Context, rec model.AuditRecord) error {
	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return eris.Wrap(err, "store: marshal audit metadata")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, action, actor, entity, entity_id, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Action, rec.Actor, rec.Entity, rec.EntityID, metadata, rec.CreatedAt)
	if err != nil {
		return eris.Wrap(err, "store: append audit")
	}
	return nil
}

func (s *SQLiteStore) insertAuditTx(ctx context.Context, tx *sql.Tx, rec model.AuditRecord) error {
	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return eris.Wrap(err, "store: marshal audit metadata")
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO audit_log (id, action, actor, entity, entity_id, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Action, rec.Actor, rec.Entity, rec.EntityID, metadata, rec.CreatedAt); err != nil {
		return eris.Wrap(err, "store: append audit")
	}
	return nil
}

func (s *SQLiteStore) ListAudit(ctx context.Context, entity, entityID string, limit int) ([]model.AuditRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, action, actor, entity, entity_id, metadata, created_at
		 FROM audit_log WHERE entity = ? AND entity_id = ?
		 ORDER BY created_at DESC LIMIT ?`,
		entity, entityID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "store: list audit")
	}
	defer rows.Close() //nolint:errcheck

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

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "store: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "store: commit tx")
	}
	return nil
}

var _ Store = (*SQLiteStore)(nil)
