// Package gate decides whether a user may transact. A verification combines
// the organization's KYB status, wallet allowlist membership, and an optional
// sanctions screen under a configured method, and every attempt is persisted
// with the full list of rule outcomes.
package gate

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/riftfin/riftcore/internal/config"
	"github.com/riftfin/riftcore/internal/fault"
	"github.com/riftfin/riftcore/internal/model"
	"github.com/riftfin/riftcore/internal/riskadapter"
	"github.com/riftfin/riftcore/internal/store"
)

// Rule names accumulated into GateVerification.Reasons, in evaluation order.
const (
	ReasonMockApproval         = "mock-approval"
	ReasonKYBApproved          = "kyb-approved"
	ReasonKYBNotApproved       = "kyb-not-approved"
	ReasonAllowlistActive      = "allowlist-active"
	ReasonAllowlistExpired     = "allowlist-expired"
	ReasonAllowlistMissing     = "allowlist-missing"
	ReasonSanctionsClear       = "sanctions-clear"
	ReasonSanctionsHit         = "sanctions-hit"
	ReasonSanctionsUnavailable = "sanctions-unavailable"
)

// Request identifies the user and the verification method to apply.
type Request struct {
	UserID        string `json:"user_id"`
	WalletAddress string `json:"wallet_address,omitempty"`
	Method        string `json:"method"`
}

// Verifier evaluates gate requests and records every attempt.
type Verifier struct {
	store   store.Store
	adapter riskadapter.Port
	cfg     config.GateConfig
}

// New builds a verifier. The mode (mock or live) comes from config and is
// fixed for the verifier's lifetime.
func New(st store.Store, adapter riskadapter.Port, cfg config.GateConfig) *Verifier {
	return &Verifier{store: st, adapter: adapter, cfg: cfg}
}

// Verify runs the configured rules and persists the outcome together with
// the user's gate_status projection and an audit record. A screening
// provider error denies the user, records the attempt, and still surfaces
// the adapter failure to the caller.
func (v *Verifier) Verify(ctx context.Context, req Request) (*model.GateVerification, error) {
	if req.UserID == "" {
		return nil, fault.Validationf("user_id", "required")
	}
	method, ok := v.cfg.Methods[req.Method]
	if !ok {
		return nil, fault.Validationf("method", "unknown verification method %q", req.Method)
	}

	if v.cfg.Mode != "live" {
		rec := v.record(req, model.GateModeMock, model.GateApproved, []string{ReasonMockApproval})
		if err := v.persist(ctx, rec); err != nil {
			return nil, err
		}
		return rec, nil
	}

	user, err := v.store.GetUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	wallet := req.WalletAddress
	if wallet == "" {
		wallet = user.WalletAddress
	}
	req.WalletAddress = wallet

	var (
		reasons    []string
		identityOK bool
		screenName = req.UserID
	)

	if user.OrganizationID != "" {
		org, err := v.store.GetOrganization(ctx, user.OrganizationID)
		if err != nil {
			return nil, err
		}
		screenName = org.Name
		if org.KYBStatus == model.KYBApproved {
			identityOK = true
			reasons = append(reasons, ReasonKYBApproved)
		} else {
			reasons = append(reasons, ReasonKYBNotApproved)
		}
	} else {
		reasons = append(reasons, ReasonKYBNotApproved)
	}

	switch entry, err := v.allowlisted(ctx, wallet); {
	case err != nil:
		return nil, err
	case entry == nil:
		reasons = append(reasons, ReasonAllowlistMissing)
	case !entry.Active(time.Now().UTC()):
		reasons = append(reasons, ReasonAllowlistExpired)
	default:
		identityOK = true
		reasons = append(reasons, ReasonAllowlistActive)
	}

	approved := identityOK
	if method.RequireSanctions {
		res, err := v.adapter.ScreenSanctions(ctx, screenName, user.OrganizationID)
		if err != nil {
			// Fail closed: the denial is recorded with the outage reason,
			// not a hit, then the adapter failure propagates so the caller
			// never mistakes it for a clean screen.
			rec := v.record(req, model.GateModeLive, model.GateDenied, append(reasons, ReasonSanctionsUnavailable))
			if perr := v.persist(ctx, rec); perr != nil {
				return nil, perr
			}
			return rec, err
		}
		if res.Clean {
			reasons = append(reasons, ReasonSanctionsClear)
		} else {
			approved = false
			reasons = append(reasons, ReasonSanctionsHit)
		}
	}

	result := model.GateDenied
	if approved {
		result = model.GateApproved
	}
	rec := v.record(req, model.GateModeLive, result, reasons)
	if err := v.persist(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (v *Verifier) allowlisted(ctx context.Context, wallet string) (*model.AllowlistEntry, error) {
	if wallet == "" {
		return nil, nil
	}
	return v.store.GetAllowlistEntry(ctx, wallet)
}

func (v *Verifier) record(req Request, mode model.GateMode, result model.GateResult, reasons []string) *model.GateVerification {
	return &model.GateVerification{
		ID:            uuid.New().String(),
		UserID:        req.UserID,
		WalletAddress: req.WalletAddress,
		Method:        req.Method,
		Mode:          mode,
		Result:        result,
		Reasons:       reasons,
		CreatedAt:     time.Now().UTC(),
	}
}

func (v *Verifier) persist(ctx context.Context, rec *model.GateVerification) error {
	status := model.GateStatusDenied
	action := "gate.denied"
	if rec.Result == model.GateApproved {
		status = model.GateStatusVerified
		action = "gate.verified"
	}
	err := v.store.RecordGateVerification(ctx, *rec, status, model.AuditRecord{
		ID:       uuid.New().String(),
		Action:   action,
		Actor:    rec.UserID,
		Entity:   "user",
		EntityID: rec.UserID,
		Metadata: map[string]string{
			"method":  rec.Method,
			"mode":    string(rec.Mode),
			"reasons": strings.Join(rec.Reasons, ","),
		},
		CreatedAt: rec.CreatedAt,
	})
	if err != nil {
		return err
	}
	zap.L().Info("gate: verification recorded",
		zap.String("user_id", rec.UserID),
		zap.String("method", rec.Method),
		zap.String("result", string(rec.Result)),
		zap.Strings("reasons", rec.Reasons),
	)
	return nil
}
