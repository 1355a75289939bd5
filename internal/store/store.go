// Package store persists the platform's non-ledger entities: organizations,
// users, invoices, compliance cases, score records, gate verifications, and
// the audit trail. Two backends implement the same interface; Postgres for
// production, SQLite for local single-binary runs. Pool liquidity lives in
// the ledger package, which requires Postgres.
package store

import (
	"context"
	"errors"

	"github.com/riftfin/riftcore/internal/model"
)

// ErrNotFound marks lookups for rows that do not exist. Callers test with
// errors.Is; the HTTP layer maps it to 404.
var ErrNotFound = errors.New("not found")

// PrescreenApply moves a case into review with its automated checklist
// results, committed together with the audit record.
type PrescreenApply struct {
	CaseID     string
	FromStatus model.CaseStatus
	ToStatus   model.CaseStatus
	Checklist  model.Checklist
	SubScore   float64
	Audit      model.AuditRecord
}

// CaseDecisionApply bundles everything a case decision changes so a backend
// can commit it in one transaction: the case transition itself, the subject
// projection, the gate projection for funder cases, and the audit record.
type CaseDecisionApply struct {
	CaseID      string
	FromStatus  model.CaseStatus
	ToStatus    model.CaseStatus
	Decision    *model.DecisionMeta
	MissingDocs []string

	// Subject projection, applied when SubjectKYBStatus is non-empty.
	SubjectType      model.SubjectType
	SubjectID        string
	SubjectKYBStatus model.KYBStatus
	SubjectKYBScore  *float64

	// Gate projection for funder cases, applied when UserGateStatus is
	// non-empty.
	UserID         string
	UserGateStatus model.GateStatus

	Audit model.AuditRecord
}

// Store is the persistence contract shared by the Postgres and SQLite
// backends. Get methods return a typed error containing "not found" for
// missing rows; GetAllowlistEntry returns (nil, nil) instead because an
// absent entry is an expected outcome, not a fault.
type Store interface {
	// Organizations.
	CreateOrganization(ctx context.Context, org model.Organization) (*model.Organization, error)
	GetOrganization(ctx context.Context, id string) (*model.Organization, error)
	UpdateOrganizationKYB(ctx context.Context, id string, status model.KYBStatus, score float64) error

	// Users.
	CreateUser(ctx context.Context, u model.User) (*model.User, error)
	GetUser(ctx context.Context, id string) (*model.User, error)

	// Invoices. UpdateInvoiceStatus is guarded on the expected current
	// status and fails with a conflict when another writer got there first.
	CreateInvoice(ctx context.Context, inv model.Invoice) (*model.Invoice, error)
	GetInvoice(ctx context.Context, id string) (*model.Invoice, error)
	UpdateInvoiceStatus(ctx context.Context, id string, from, to model.InvoiceStatus) error
	SetInvoiceInsurance(ctx context.Context, id string, coveragePct float64, policyID string) error

	// Cases.
	CreateCase(ctx context.Context, c model.Case) (*model.Case, error)
	GetCase(ctx context.Context, id string) (*model.Case, error)
	ApplyPrescreen(ctx context.Context, apply PrescreenApply) error
	ApplyCaseDecision(ctx context.Context, apply CaseDecisionApply) error

	// Score records are append-only. InsertScoreRecord assigns the next
	// version for the entity, projects invoice scores onto the invoice row,
	// and writes the audit record, all in one transaction.
	InsertScoreRecord(ctx context.Context, rec model.RiftScoreRecord, audit model.AuditRecord) (*model.RiftScoreRecord, error)
	LatestScoreRecord(ctx context.Context, entityType model.EntityType, entityID string) (*model.RiftScoreRecord, error)
	ListScoreRecords(ctx context.Context, entityType model.EntityType, entityID string) ([]model.RiftScoreRecord, error)

	// Gate.
	PutAllowlistEntry(ctx context.Context, e model.AllowlistEntry) error
	GetAllowlistEntry(ctx context.Context, wallet string) (*model.AllowlistEntry, error)
	RecordGateVerification(ctx context.Context, v model.GateVerification, status model.GateStatus, audit model.AuditRecord) error

	// Audit trail, append-only.
	AppendAudit(ctx context.Context, rec model.AuditRecord) error
	ListAudit(ctx context.Context, entity, entityID string, limit int) ([]model.AuditRecord, error)

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
