package ledger

import (
	"context"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/riftfin/riftcore/internal/db"
	"github.com/riftfin/riftcore/internal/fault"
	"github.com/riftfin/riftcore/internal/model"
)

// DepositRequest adds funder liquidity to a tenor pool.
type DepositRequest struct {
	TenorDays      int    `json:"tenor_days"`
	FunderID       string `json:"funder_id"`
	AmountCents    int64  `json:"amount_cents"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// WithdrawRequest removes available liquidity from a tenor pool.
type WithdrawRequest struct {
	TenorDays      int    `json:"tenor_days"`
	FunderID       string `json:"funder_id"`
	AmountCents    int64  `json:"amount_cents"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// Movement is the outcome of a deposit or withdrawal.
type Movement struct {
	Entry    model.LedgerEntry `json:"entry"`
	Pool     model.Pool        `json:"pool"`
	Replayed bool              `json:"replayed"`
}

// Deposit credits liquidity into the pool for the given tenor. Replaying
// the same idempotency key returns the original entry without moving money
// again.
func (l *Ledger) Deposit(ctx context.Context, req DepositRequest) (*Movement, error) {
	if req.AmountCents <= 0 {
		return nil, fault.Validationf("amount_cents", "must be positive, got %d", req.AmountCents)
	}
	if req.FunderID == "" {
		return nil, fault.Validationf("funder_id", "required")
	}
	if !model.ValidTenor(req.TenorDays) {
		return nil, fault.Validationf("tenor_days", "must be one of %v, got %d", model.ValidTenors, req.TenorDays)
	}

	var out Movement
	err := db.WithTx(ctx, l.pool, func(tx pgx.Tx) error {
		existing, err := findByIdempotencyKey(ctx, tx, model.RefDeposit, req.IdempotencyKey)
		if err != nil {
			return err
		}
		if existing != nil {
			if err := replayMatch(existing, req.AmountCents, "", ""); err != nil {
				return err
			}
			pool, err := lockPoolByID(ctx, tx, existing.PoolID)
			if err != nil {
				return err
			}
			out = Movement{Entry: *existing, Pool: *pool, Replayed: true}
			return nil
		}

		pool, err := lockPool(ctx, tx, req.TenorDays)
		if err != nil {
			return err
		}
		pool.TotalCents += req.AmountCents
		pool.AvailableCents += req.AmountCents
		pool.TVLCents += req.AmountCents
		if err := savePool(ctx, tx, pool); err != nil {
			return err
		}

		entry, err := insertEntry(ctx, tx, model.LedgerEntry{
			RefType:        model.RefDeposit,
			AmountCents:    req.AmountCents,
			PoolID:         pool.ID,
			UserID:         req.FunderID,
			IdempotencyKey: req.IdempotencyKey,
		})
		if err != nil {
			return err
		}
		if err := writeAudit(ctx, tx, "pool.deposit", req.FunderID, "pool", pool.ID, map[string]string{
			"entry_id": entry.ID,
		}); err != nil {
			return err
		}
		out = Movement{Entry: *entry, Pool: *pool}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("ledger: deposit",
		zap.Int("tenor_days", req.TenorDays),
		zap.Int64("amount_cents", req.AmountCents),
		zap.Bool("replayed", out.Replayed),
	)
	return &out, nil
}

// Withdraw debits available liquidity. Withdrawals beyond the available
// balance are refused; locked capital stays in the pool until its
// positions close.
func (l *Ledger) Withdraw(ctx context.Context, req WithdrawRequest) (*Movement, error) {
	if req.AmountCents <= 0 {
		return nil, fault.Validationf("amount_cents", "must be positive, got %d", req.AmountCents)
	}
	if req.FunderID == "" {
		return nil, fault.Validationf("funder_id", "required")
	}
	if !model.ValidTenor(req.TenorDays) {
		return nil, fault.Validationf("tenor_days", "must be one of %v, got %d", model.ValidTenors, req.TenorDays)
	}

	var out Movement
	err := db.WithTx(ctx, l.pool, func(tx pgx.Tx) error {
		existing, err := findByIdempotencyKey(ctx, tx, model.RefDistribution, req.IdempotencyKey)
		if err != nil {
			return err
		}
		if existing != nil {
			if err := replayMatch(existing, -req.AmountCents, "", ""); err != nil {
				return err
			}
			pool, err := lockPoolByID(ctx, tx, existing.PoolID)
			if err != nil {
				return err
			}
			out = Movement{Entry: *existing, Pool: *pool, Replayed: true}
			return nil
		}

		pool, err := lockPool(ctx, tx, req.TenorDays)
		if err != nil {
			return err
		}
		if req.AmountCents > pool.AvailableCents {
			return fault.Conflictf("withdrawal of %d exceeds available liquidity %d",
				req.AmountCents, pool.AvailableCents)
		}
		pool.TotalCents -= req.AmountCents
		pool.AvailableCents -= req.AmountCents
		pool.TVLCents -= req.AmountCents
		if err := savePool(ctx, tx, pool); err != nil {
			return err
		}

		entry, err := insertEntry(ctx, tx, model.LedgerEntry{
			RefType:        model.RefDistribution,
			AmountCents:    -req.AmountCents,
			PoolID:         pool.ID,
			UserID:         req.FunderID,
			IdempotencyKey: req.IdempotencyKey,
		})
		if err != nil {
			return err
		}
		if err := writeAudit(ctx, tx, "pool.withdraw", req.FunderID, "pool", pool.ID, map[string]string{
			"entry_id": entry.ID,
		}); err != nil {
			return err
		}
		out = Movement{Entry: *entry, Pool: *pool}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("ledger: withdraw",
		zap.Int("tenor_days", req.TenorDays),
		zap.Int64("amount_cents", req.AmountCents),
		zap.Bool("replayed", out.Replayed),
	)
	return &out, nil
}
