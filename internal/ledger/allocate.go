package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/riftfin/riftcore/internal/db"
	"github.com/riftfin/riftcore/internal/fault"
	"github.com/riftfin/riftcore/internal/model"
)

// AllocateRequest funds an invoice advance out of a tenor pool on behalf of
// a funder.
type AllocateRequest struct {
	TenorDays      int    `json:"tenor_days"`
	FunderID       string `json:"funder_id"`
	InvoiceID      string `json:"invoice_id"`
	AmountCents    int64  `json:"amount_cents"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// Allocation is the outcome of funding an invoice.
type Allocation struct {
	Entry    model.LedgerEntry `json:"entry"`
	Position model.Position    `json:"position"`
	Pool     model.Pool        `json:"pool"`
	Replayed bool              `json:"replayed"`
}

// Allocate locks the pool row, checks headroom, opens the funder position,
// and records the payout, all in one transaction. A replayed idempotency
// key returns the original allocation; the same key with different
// parameters conflicts.
func (l *Ledger) Allocate(ctx context.Context, req AllocateRequest) (*Allocation, error) {
	if req.AmountCents <= 0 {
		return nil, fault.Validationf("amount_cents", "must be positive, got %d", req.AmountCents)
	}
	if req.FunderID == "" {
		return nil, fault.Validationf("funder_id", "required")
	}
	if req.InvoiceID == "" {
		return nil, fault.Validationf("invoice_id", "required")
	}
	if !model.ValidTenor(req.TenorDays) {
		return nil, fault.Validationf("tenor_days", "must be one of %v, got %d", model.ValidTenors, req.TenorDays)
	}

	var out Allocation
	err := db.WithTx(ctx, l.pool, func(tx pgx.Tx) error {
		existing, err := findByIdempotencyKey(ctx, tx, model.RefPayout, req.IdempotencyKey)
		if err != nil {
			return err
		}
		if existing != nil {
			if err := replayMatch(existing, -req.AmountCents, "", req.InvoiceID); err != nil {
				return err
			}
			pos, err := loadPosition(ctx, tx, existing.Metadata["position_id"])
			if err != nil {
				return err
			}
			pool, err := lockPoolByID(ctx, tx, existing.PoolID)
			if err != nil {
				return err
			}
			out = Allocation{Entry: *existing, Position: *pos, Pool: *pool, Replayed: true}
			return nil
		}

		pool, err := lockPool(ctx, tx, req.TenorDays)
		if err != nil {
			return err
		}
		if req.AmountCents > pool.AvailableCents {
			return fault.Conflictf("allocation of %d exceeds available liquidity %d in tenor %d pool",
				req.AmountCents, pool.AvailableCents, req.TenorDays)
		}

		pos := model.Position{
			ID:                 uuid.New().String(),
			PoolID:             pool.ID,
			FunderID:           req.FunderID,
			InvoiceID:          req.InvoiceID,
			AmountCents:        req.AmountCents,
			ExpectedYieldCents: expectedYield(req.AmountCents, pool.APR, pool.TenorDays),
			Status:             model.PositionActive,
			CreatedAt:          time.Now().UTC(),
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO positions (id, pool_id, funder_id, invoice_id, amount_cents, expected_yield_cents, status, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			pos.ID, pos.PoolID, pos.FunderID, pos.InvoiceID, pos.AmountCents, pos.ExpectedYieldCents, pos.Status, pos.CreatedAt); err != nil {
			return eris.Wrap(err, "ledger: insert position")
		}

		pool.AvailableCents -= req.AmountCents
		pool.TVLCents -= req.AmountCents
		if err := savePool(ctx, tx, pool); err != nil {
			return err
		}

		entry, err := insertEntry(ctx, tx, model.LedgerEntry{
			RefType:        model.RefPayout,
			AmountCents:    -req.AmountCents,
			PoolID:         pool.ID,
			UserID:         req.FunderID,
			RefID:          req.InvoiceID,
			IdempotencyKey: req.IdempotencyKey,
			Metadata:       map[string]string{"position_id": pos.ID},
		})
		if err != nil {
			return err
		}
		if err := writeAudit(ctx, tx, "pool.allocate", req.FunderID, "invoice", req.InvoiceID, map[string]string{
			"entry_id":    entry.ID,
			"position_id": pos.ID,
			"pool_id":     pool.ID,
		}); err != nil {
			return err
		}
		out = Allocation{Entry: *entry, Position: pos, Pool: *pool}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("ledger: allocated",
		zap.String("invoice_id", req.InvoiceID),
		zap.Int64("amount_cents", req.AmountCents),
		zap.Int("tenor_days", req.TenorDays),
		zap.Bool("replayed", out.Replayed),
	)
	return &out, nil
}

const positionColumns = `id, pool_id, funder_id, invoice_id, amount_cents, expected_yield_cents,
	accrued_yield_cents, repaid_cents, status, created_at, closed_at`

func scanPosition(row pgx.Row) (*model.Position, error) {
	var p model.Position
	err := row.Scan(&p.ID, &p.PoolID, &p.FunderID, &p.InvoiceID, &p.AmountCents, &p.ExpectedYieldCents,
		&p.AccruedYieldCents, &p.RepaidCents, &p.Status, &p.CreatedAt, &p.ClosedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func loadPosition(ctx context.Context, tx pgx.Tx, id string) (*model.Position, error) {
	p, err := scanPosition(tx.QueryRow(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fault.Invariantf("ledger: position %s referenced by entry is missing", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "ledger: load position")
	}
	return p, nil
}

// PositionsForInvoice lists the positions tied to an invoice.
func (l *Ledger) PositionsForInvoice(ctx context.Context, invoiceID string) ([]model.Position, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE invoice_id = $1 ORDER BY created_at, id`, invoiceID)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: list positions")
	}
	defer rows.Close()

	var out []model.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, eris.Wrap(err, "ledger: scan position")
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
