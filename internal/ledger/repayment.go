package ledger

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/riftfin/riftcore/internal/db"
	"github.com/riftfin/riftcore/internal/fault"
	"github.com/riftfin/riftcore/internal/model"
)

// RepaymentRequest credits a debtor repayment against an invoice's funded
// positions.
type RepaymentRequest struct {
	InvoiceID      string `json:"invoice_id"`
	AmountCents    int64  `json:"amount_cents"`
	Reference      string `json:"reference,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// RepaymentResult reports how an inflow was distributed.
type RepaymentResult struct {
	Entry           *model.LedgerEntry `json:"entry,omitempty"`
	AppliedCents    int64              `json:"applied_cents"`
	PrincipalCents  int64              `json:"principal_cents"`
	FeeCents        int64              `json:"fee_cents"`
	ClosedPositions []string           `json:"closed_positions,omitempty"`
	Pool            *model.Pool        `json:"pool,omitempty"`
	Replayed        bool               `json:"replayed"`
}

// CreditRepayment distributes an inflow pro-rata across the invoice's
// active positions, closes the ones made whole, and sweeps any overpayment
// as a platform fee. Everything commits in one transaction.
func (l *Ledger) CreditRepayment(ctx context.Context, req RepaymentRequest) (*RepaymentResult, error) {
	if req.AmountCents <= 0 {
		return nil, fault.Validationf("amount_cents", "must be positive, got %d", req.AmountCents)
	}
	if req.InvoiceID == "" {
		return nil, fault.Validationf("invoice_id", "required")
	}

	var out *RepaymentResult
	err := db.WithTx(ctx, l.pool, func(tx pgx.Tx) error {
		res, err := l.creditInflow(ctx, tx, model.RefRepaymentInflow, req.InvoiceID, req.AmountCents, req.IdempotencyKey, map[string]string{
			"source":    "repayment",
			"reference": req.Reference,
		})
		out = res
		return err
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("ledger: repayment credited",
		zap.String("invoice_id", req.InvoiceID),
		zap.Int64("amount_cents", req.AmountCents),
		zap.Int64("applied_cents", out.AppliedCents),
		zap.Int64("fee_cents", out.FeeCents),
		zap.Bool("replayed", out.Replayed),
	)
	return out, nil
}

// InsuranceEventRequest records one insurance lifecycle event. Only a paid
// claim moves money; bind and claim_opened are audit-only.
type InsuranceEventRequest struct {
	InvoiceID      string `json:"invoice_id"`
	Event          string `json:"event"`
	PolicyID       string `json:"policy_id,omitempty"`
	AmountCents    int64  `json:"amount_cents,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// RecordInsuranceEvent handles bind, claim_opened, and claim_paid. A paid
// claim flows through the same pro-rata distribution as a repayment and may
// not exceed the invoice's outstanding principal.
func (l *Ledger) RecordInsuranceEvent(ctx context.Context, req InsuranceEventRequest) (*RepaymentResult, error) {
	if req.InvoiceID == "" {
		return nil, fault.Validationf("invoice_id", "required")
	}

	switch req.Event {
	case "bind", "claim_opened":
		if req.Event == "bind" && req.PolicyID == "" {
			return nil, fault.Validationf("policy_id", "required to bind a policy")
		}
		err := db.WithTx(ctx, l.pool, func(tx pgx.Tx) error {
			return writeAudit(ctx, tx, "insurance."+req.Event, "system", "invoice", req.InvoiceID, map[string]string{
				"policy_id": req.PolicyID,
			})
		})
		if err != nil {
			return nil, err
		}
		return &RepaymentResult{}, nil

	case "claim_paid":
		if req.AmountCents <= 0 {
			return nil, fault.Validationf("amount_cents", "must be positive for a paid claim, got %d", req.AmountCents)
		}
		var out *RepaymentResult
		err := db.WithTx(ctx, l.pool, func(tx pgx.Tx) error {
			// Claims reconcile against outstanding principal, not the
			// policy's coverage percentage.
			var faceCents, repaidCents int64
			err := tx.QueryRow(ctx,
				`SELECT amount_cents, repaid_cents FROM invoices WHERE id = $1 FOR UPDATE`,
				req.InvoiceID).Scan(&faceCents, &repaidCents)
			if errors.Is(err, pgx.ErrNoRows) {
				return fault.Validationf("invoice_id", "invoice %s not found", req.InvoiceID)
			}
			if err != nil {
				return eris.Wrap(err, "ledger: load invoice for claim")
			}
			outstanding := faceCents - repaidCents
			if outstanding <= 0 {
				return fault.Conflictf("invoice %s has no outstanding principal to claim against", req.InvoiceID)
			}
			if req.AmountCents > outstanding {
				return fault.Validationf("amount_cents",
					"claim of %d exceeds outstanding principal %d on invoice %s",
					req.AmountCents, outstanding, req.InvoiceID)
			}

			res, err := l.creditInflow(ctx, tx, model.RefDistribution, req.InvoiceID, req.AmountCents, req.IdempotencyKey, map[string]string{
				"source":    "insurance",
				"policy_id": req.PolicyID,
			})
			out = res
			return err
		})
		if err != nil {
			return nil, err
		}
		zap.L().Info("ledger: insurance claim credited",
			zap.String("invoice_id", req.InvoiceID),
			zap.Int64("applied_cents", out.AppliedCents),
			zap.Bool("replayed", out.Replayed),
		)
		return out, nil

	default:
		return nil, fault.Validationf("event", "must be bind, claim_opened, or claim_paid, got %q", req.Event)
	}
}

// creditInflow applies an inflow to the invoice's active positions inside
// an open transaction. Distribution is pro-rata on what each position is
// still owed; the last position absorbs rounding so cents conserve exactly.
func (l *Ledger) creditInflow(ctx context.Context, tx pgx.Tx, refType model.RefType, invoiceID string, amountCents int64, idemKey string, metadata map[string]string) (*RepaymentResult, error) {
	existing, err := findByIdempotencyKey(ctx, tx, refType, idemKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := replayMatch(existing, amountCents, "", invoiceID); err != nil {
			return nil, err
		}
		pool, err := lockPoolByID(ctx, tx, existing.PoolID)
		if err != nil {
			return nil, err
		}
		res := &RepaymentResult{Entry: existing, Pool: pool, Replayed: true}
		res.AppliedCents, _ = strconv.ParseInt(existing.Metadata["applied_cents"], 10, 64)
		res.PrincipalCents, _ = strconv.ParseInt(existing.Metadata["principal_cents"], 10, 64)
		res.FeeCents, _ = strconv.ParseInt(existing.Metadata["fee_cents"], 10, 64)
		return res, nil
	}

	rows, err := tx.Query(ctx,
		`SELECT `+positionColumns+` FROM positions
		 WHERE invoice_id = $1 AND status = 'active'
		 ORDER BY created_at, id FOR UPDATE`, invoiceID)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: lock positions")
	}
	var positions []model.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "ledger: scan position")
		}
		positions = append(positions, *p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "ledger: iterate positions")
	}
	if len(positions) == 0 {
		return nil, fault.Validationf("invoice_id", "no active positions for invoice %s", invoiceID)
	}

	var totalOwed int64
	for _, p := range positions {
		totalOwed += p.AmountCents + p.ExpectedYieldCents - p.RepaidCents
	}
	applied := amountCents
	if applied > totalOwed {
		applied = totalOwed
	}
	fee := amountCents - applied

	now := time.Now().UTC()
	var (
		remaining      = applied
		principal      int64
		closedIDs      []string
		updatePosition = `UPDATE positions SET repaid_cents = $2, accrued_yield_cents = $3, status = $4, closed_at = $5 WHERE id = $1`
	)
	for i, p := range positions {
		owed := p.AmountCents + p.ExpectedYieldCents - p.RepaidCents
		share := remaining
		if i < len(positions)-1 {
			share = applied * owed / totalOwed
			if share > remaining {
				share = remaining
			}
		}
		remaining -= share

		principalBefore := min(p.RepaidCents, p.AmountCents)
		p.RepaidCents += share
		principal += min(p.RepaidCents, p.AmountCents) - principalBefore
		if p.RepaidCents > p.AmountCents {
			p.AccruedYieldCents = p.RepaidCents - p.AmountCents
		}

		status := model.PositionActive
		var closedAt *time.Time
		if p.RepaidCents >= p.AmountCents+p.ExpectedYieldCents {
			status = model.PositionClosed
			closedAt = &now
			closedIDs = append(closedIDs, p.ID)
		}
		if _, err := tx.Exec(ctx, updatePosition, p.ID, p.RepaidCents, p.AccruedYieldCents, status, closedAt); err != nil {
			return nil, eris.Wrap(err, "ledger: update position")
		}
	}

	pool, err := lockPoolByID(ctx, tx, positions[0].PoolID)
	if err != nil {
		return nil, err
	}
	pool.AvailableCents += applied
	pool.TVLCents += applied
	pool.TotalCents += applied - principal // yield grows the pool
	if err := savePool(ctx, tx, pool); err != nil {
		return nil, err
	}

	// Tolerates invoices managed outside this database: a missing row just
	// skips the projection.
	if _, err := tx.Exec(ctx,
		`UPDATE invoices SET repaid_cents = repaid_cents + $2, updated_at = $3 WHERE id = $1`,
		invoiceID, principal, now); err != nil {
		return nil, eris.Wrap(err, "ledger: project invoice repayment")
	}

	meta := map[string]string{
		"applied_cents":   strconv.FormatInt(applied, 10),
		"principal_cents": strconv.FormatInt(principal, 10),
		"fee_cents":       strconv.FormatInt(fee, 10),
	}
	for k, v := range metadata {
		if v != "" {
			meta[k] = v
		}
	}
	entry, err := insertEntry(ctx, tx, model.LedgerEntry{
		RefType:        refType,
		AmountCents:    amountCents,
		PoolID:         pool.ID,
		RefID:          invoiceID,
		IdempotencyKey: idemKey,
		Metadata:       meta,
	})
	if err != nil {
		return nil, err
	}
	if fee > 0 {
		if _, err := insertEntry(ctx, tx, model.LedgerEntry{
			RefType:     model.RefFee,
			AmountCents: -fee,
			PoolID:      pool.ID,
			RefID:       invoiceID,
			Metadata:    map[string]string{"reason": "overpayment_sweep", "inflow_entry_id": entry.ID},
		}); err != nil {
			return nil, err
		}
	}
	if err := writeAudit(ctx, tx, "pool.repayment", "system", "invoice", invoiceID, map[string]string{
		"entry_id":      entry.ID,
		"applied_cents": meta["applied_cents"],
	}); err != nil {
		return nil, err
	}

	return &RepaymentResult{
		Entry:           entry,
		AppliedCents:    applied,
		PrincipalCents:  principal,
		FeeCents:        fee,
		ClosedPositions: closedIDs,
		Pool:            pool,
	}, nil
}
