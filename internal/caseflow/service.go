// Package caseflow runs compliance cases through their review lifecycle:
// automated pre-screening, the operator decision, and the more-info loop.
// Every state change commits together with its audit record.
package caseflow

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/riftfin/riftcore/internal/fault"
	"github.com/riftfin/riftcore/internal/model"
	"github.com/riftfin/riftcore/internal/riskadapter"
	"github.com/riftfin/riftcore/internal/store"
)

// Service coordinates case transitions against the store and the external
// verification providers.
type Service struct {
	store   store.Store
	adapter riskadapter.Port
}

// New builds the case service.
func New(st store.Store, adapter riskadapter.Port) *Service {
	return &Service{store: st, adapter: adapter}
}

// OpenRequest starts a new review case for a subject.
type OpenRequest struct {
	Type        model.CaseType    `json:"type"`
	SubjectType model.SubjectType `json:"subject_type"`
	SubjectID   string            `json:"subject_id"`
	UserID      string            `json:"user_id,omitempty"`
}

// Open creates a case in the open state. Rejected subjects get a fresh case
// rather than a reopened one.
func (s *Service) Open(ctx context.Context, req OpenRequest) (*model.Case, error) {
	if req.SubjectID == "" {
		return nil, fault.Validationf("subject_id", "required")
	}
	switch req.Type {
	case model.CaseKYBEntity:
		if req.SubjectType != model.SubjectOrganization {
			return nil, fault.Validationf("subject_type", "kyb_entity cases review organizations, got %q", req.SubjectType)
		}
	case model.CaseKYCIndividual:
		if req.SubjectType != model.SubjectFunder {
			return nil, fault.Validationf("subject_type", "kyc_individual cases review funders, got %q", req.SubjectType)
		}
		if req.UserID == "" {
			return nil, fault.Validationf("user_id", "required for funder cases")
		}
	default:
		return nil, fault.Validationf("type", "unknown case type %q", req.Type)
	}

	c, err := s.store.CreateCase(ctx, model.Case{
		ID:          uuid.New().String(),
		Type:        req.Type,
		SubjectType: req.SubjectType,
		SubjectID:   req.SubjectID,
		UserID:      req.UserID,
		Status:      model.CaseOpen,
		Checklist:   model.Checklist{Kind: req.Type},
	})
	if err != nil {
		return nil, err
	}
	if err := s.store.AppendAudit(ctx, audit("case.opened", "system", c.ID, map[string]string{
		"subject_type": string(req.SubjectType),
		"subject_id":   req.SubjectID,
	})); err != nil {
		return nil, err
	}
	zap.L().Info("caseflow: case opened",
		zap.String("case_id", c.ID),
		zap.String("type", string(c.Type)),
		zap.String("subject_id", c.SubjectID),
	)
	return c, nil
}

// PrescreenRequest carries the submission details the automated checks need
// beyond what providers return.
type PrescreenRequest struct {
	CaseID              string   `json:"case_id"`
	Documents           []string `json:"documents,omitempty"`
	TaxCertPresent      bool     `json:"tax_cert_present,omitempty"`
	IdentityVerified    bool     `json:"identity_verified,omitempty"`
	ProofOfFundsPresent bool     `json:"proof_of_funds_present,omitempty"`
}

// Prescreen runs the automated checks, stores the checklist with its
// sub-score, and moves the case into review. It accepts cases in open or
// awaiting_docs (resubmission). A provider error leaves the case where it
// was; it is never treated as a clean result.
func (s *Service) Prescreen(ctx context.Context, req PrescreenRequest) (*model.Case, error) {
	if req.CaseID == "" {
		return nil, fault.Validationf("case_id", "required")
	}
	c, err := s.store.GetCase(ctx, req.CaseID)
	if err != nil {
		return nil, err
	}
	if c.Status != model.CaseOpen && c.Status != model.CaseAwaitingDocs {
		return nil, fault.Conflictf("case %s cannot be prescreened from status %s", c.ID, c.Status)
	}

	var checklist model.Checklist
	switch c.Type {
	case model.CaseKYBEntity:
		checklist, err = s.prescreenKYB(ctx, c, req)
	case model.CaseKYCIndividual:
		checklist, err = s.prescreenKYC(ctx, c, req)
	default:
		return nil, fault.Invariantf("case %s has unknown type %q", c.ID, c.Type)
	}
	if err != nil {
		return nil, err
	}

	subScore := checklist.SubScore()
	err = s.store.ApplyPrescreen(ctx, store.PrescreenApply{
		CaseID:     c.ID,
		FromStatus: c.Status,
		ToStatus:   model.CaseInReview,
		Checklist:  checklist,
		SubScore:   subScore,
		Audit: audit("case.prescreened", "system", c.ID, map[string]string{
			"sub_score": strconv.FormatFloat(subScore, 'f', 2, 64),
		}),
	})
	if err != nil {
		return nil, err
	}
	zap.L().Info("caseflow: prescreen complete",
		zap.String("case_id", c.ID),
		zap.Float64("sub_score", subScore),
	)
	return s.store.GetCase(ctx, c.ID)
}

// prescreenKYB screens the organization, validates its VAT number, and
// submits the KYB package to the provider, all in parallel; any provider
// failing fails the whole prescreen.
func (s *Service) prescreenKYB(ctx context.Context, c *model.Case, req PrescreenRequest) (model.Checklist, error) {
	org, err := s.store.GetOrganization(ctx, c.SubjectID)
	if err != nil {
		return model.Checklist{}, err
	}

	var (
		sanctions riskadapter.SanctionsResult
		vat       riskadapter.VATResult
		kyb       riskadapter.KYBResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := s.adapter.ScreenSanctions(gctx, org.Name, org.Country)
		sanctions = res
		return err
	})
	if org.VATNumber != "" {
		g.Go(func() error {
			res, err := s.adapter.VerifyVAT(gctx, org.Country, org.VATNumber)
			vat = res
			return err
		})
	}
	g.Go(func() error {
		res, err := s.adapter.SubmitKYB(gctx, riskadapter.KYBPayload{
			OrganizationID: org.ID,
			LegalName:      org.Name,
			Country:        org.Country,
			VATNumber:      org.VATNumber,
			Documents:      req.Documents,
			TaxCertPresent: req.TaxCertPresent,
		})
		kyb = res
		return err
	})
	if err := g.Wait(); err != nil {
		return model.Checklist{}, err
	}

	return model.Checklist{
		Kind: model.CaseKYBEntity,
		KYB: &model.KYBChecklist{
			SanctionsClear:    sanctions.Clean,
			SanctionsHits:     sanctions.Hits,
			VATValid:          vat.Valid,
			RegisteredName:    vat.CompanyName,
			DocumentsComplete: len(req.Documents) > 0,
			TaxCertPresent:    req.TaxCertPresent,
		},
		Extra: map[string]any{
			"kyb_provider_status": kyb.Status,
			"kyb_provider_score":  kyb.RiskScore,
		},
	}, nil
}

func (s *Service) prescreenKYC(ctx context.Context, c *model.Case, req PrescreenRequest) (model.Checklist, error) {
	user, err := s.store.GetUser(ctx, c.UserID)
	if err != nil {
		return model.Checklist{}, err
	}
	sanctions, err := s.adapter.ScreenSanctions(ctx, user.ID, user.OrganizationID)
	if err != nil {
		return model.Checklist{}, err
	}
	return model.Checklist{
		Kind: model.CaseKYCIndividual,
		KYC: &model.KYCChecklist{
			SanctionsClear:      sanctions.Clean,
			SanctionsHits:       sanctions.Hits,
			IdentityVerified:    req.IdentityVerified,
			DocumentsComplete:   len(req.Documents) > 0,
			ProofOfFundsPresent: req.ProofOfFundsPresent,
		},
	}, nil
}

// DecideRequest is the operator's manual verdict on a case in review.
type DecideRequest struct {
	CaseID   string `json:"case_id"`
	Decision string `json:"decision"`
	Notes    string `json:"notes,omitempty"`
	Actor    string `json:"actor"`
}

// Decide applies an operator decision. The manual verdict always wins over
// the automated sub-score. Approval projects the subject's compliance status
// and, for funder cases, marks the user's gate verified; the projections,
// the transition, and the audit record commit atomically.
func (s *Service) Decide(ctx context.Context, req DecideRequest) (*model.Case, error) {
	if req.Actor == "" {
		return nil, fault.Validationf("actor", "required")
	}
	var target model.CaseStatus
	switch req.Decision {
	case "approve":
		target = model.CaseApproved
	case "reject":
		target = model.CaseRejected
	default:
		return nil, fault.Validationf("decision", "must be approve or reject, got %q", req.Decision)
	}

	c, err := s.store.GetCase(ctx, req.CaseID)
	if err != nil {
		return nil, err
	}
	if !c.Status.CanTransition(target) {
		return nil, fault.Conflictf("illegal case transition %s -> %s", c.Status, target)
	}

	apply := store.CaseDecisionApply{
		CaseID:     c.ID,
		FromStatus: c.Status,
		ToStatus:   target,
		Decision: &model.DecisionMeta{
			Decision:  req.Decision,
			Actor:     req.Actor,
			Notes:     req.Notes,
			DecidedAt: time.Now().UTC(),
		},
		Audit: audit("case."+string(target), req.Actor, c.ID, map[string]string{
			"decision": req.Decision,
			"notes":    req.Notes,
		}),
	}

	if c.SubjectType == model.SubjectOrganization {
		apply.SubjectType = model.SubjectOrganization
		apply.SubjectID = c.SubjectID
		score := c.SubScore
		apply.SubjectKYBScore = &score
		if target == model.CaseApproved {
			apply.SubjectKYBStatus = model.KYBApproved
		} else {
			apply.SubjectKYBStatus = model.KYBRejected
		}
	}
	if c.SubjectType == model.SubjectFunder && c.UserID != "" {
		apply.UserID = c.UserID
		if target == model.CaseApproved {
			apply.UserGateStatus = model.GateStatusVerified
		} else {
			apply.UserGateStatus = model.GateStatusDenied
		}
	}

	if err := s.store.ApplyCaseDecision(ctx, apply); err != nil {
		return nil, err
	}
	zap.L().Info("caseflow: case decided",
		zap.String("case_id", c.ID),
		zap.String("decision", req.Decision),
		zap.String("actor", req.Actor),
	)
	return s.store.GetCase(ctx, c.ID)
}

// MoreInfoRequest sends a case back to the subject for missing documents.
type MoreInfoRequest struct {
	CaseID  string   `json:"case_id"`
	Missing []string `json:"missing"`
	Message string   `json:"message,omitempty"`
	Actor   string   `json:"actor"`
}

// RequestMoreInfo moves a case in review to awaiting_docs with the list of
// missing items. Resubmission goes back through Prescreen.
func (s *Service) RequestMoreInfo(ctx context.Context, req MoreInfoRequest) (*model.Case, error) {
	if req.Actor == "" {
		return nil, fault.Validationf("actor", "required")
	}
	if len(req.Missing) == 0 {
		return nil, fault.Validationf("missing", "at least one missing item is required")
	}
	c, err := s.store.GetCase(ctx, req.CaseID)
	if err != nil {
		return nil, err
	}
	if !c.Status.CanTransition(model.CaseAwaitingDocs) {
		return nil, fault.Conflictf("illegal case transition %s -> %s", c.Status, model.CaseAwaitingDocs)
	}

	err = s.store.ApplyCaseDecision(ctx, store.CaseDecisionApply{
		CaseID:      c.ID,
		FromStatus:  c.Status,
		ToStatus:    model.CaseAwaitingDocs,
		MissingDocs: req.Missing,
		Audit: audit("case.more_info_requested", req.Actor, c.ID, map[string]string{
			"missing": strings.Join(req.Missing, ","),
			"message": req.Message,
		}),
	})
	if err != nil {
		return nil, err
	}
	zap.L().Info("caseflow: more info requested",
		zap.String("case_id", c.ID),
		zap.Strings("missing", req.Missing),
	)
	return s.store.GetCase(ctx, c.ID)
}

func audit(action, actor, caseID string, metadata map[string]string) model.AuditRecord {
	return model.AuditRecord{
		ID:        uuid.New().String(),
		Action:    action,
		Actor:     actor,
		Entity:    "case",
		EntityID:  caseID,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
}
