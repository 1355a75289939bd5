// Package ledger owns pool liquidity: deposits, allocations against
// invoices, repayment distribution, and the append-only entry log that
// makes every balance replayable. All mutations run under SELECT FOR
// UPDATE row locks in a single transaction, so the ledger requires the
// Postgres backend.
package ledger

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/riftfin/riftcore/internal/config"
	"github.com/riftfin/riftcore/internal/db"
	"github.com/riftfin/riftcore/internal/fault"
	"github.com/riftfin/riftcore/internal/model"
)

// Pool yield accrues on a 365-day year. Invoice discounting uses 360; the
// two conventions are deliberately kept apart.
const yieldDayCount = 365

// Ledger manages the tenor-partitioned liquidity pools.
type Ledger struct {
	pool db.Pool
	cfg  config.LedgerConfig
}

// New creates a Ledger on the given connection pool.
func New(pool db.Pool, cfg config.LedgerConfig) *Ledger {
	return &Ledger{pool: pool, cfg: cfg}
}

var ledgerSchema = []string{
	`CREATE TABLE IF NOT EXISTS pools (
		id TEXT PRIMARY KEY,
		tenor_days INTEGER NOT NULL UNIQUE,
		apr DOUBLE PRECISION NOT NULL,
		total_cents BIGINT NOT NULL DEFAULT 0,
		available_cents BIGINT NOT NULL DEFAULT 0,
		tvl_cents BIGINT NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS positions (
		id TEXT PRIMARY KEY,
		pool_id TEXT NOT NULL REFERENCES pools (id),
		funder_id TEXT NOT NULL,
		invoice_id TEXT NOT NULL DEFAULT '',
		amount_cents BIGINT NOT NULL,
		expected_yield_cents BIGINT NOT NULL DEFAULT 0,
		accrued_yield_cents BIGINT NOT NULL DEFAULT 0,
		repaid_cents BIGINT NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TIMESTAMPTZ NOT NULL,
		closed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_positions_invoice ON positions (invoice_id, status)`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		ref_type TEXT NOT NULL,
		amount_cents BIGINT NOT NULL,
		pool_id TEXT NOT NULL,
		user_id TEXT NOT NULL DEFAULT '',
		ref_id TEXT NOT NULL DEFAULT '',
		tx_ref TEXT NOT NULL,
		idempotency_key TEXT NOT NULL DEFAULT '',
		metadata JSONB,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_idem
		ON ledger_entries (ref_type, idempotency_key) WHERE idempotency_key <> ''`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_pool ON ledger_entries (pool_id, created_at)`,
}

// Migrate creates the ledger schema and seeds one pool per supported tenor
// with its configured APR. Reruns are no-ops except for APR updates.
func (l *Ledger) Migrate(ctx context.Context) error {
	for _, stmt := range ledgerSchema {
		if _, err := l.pool.Exec(ctx, stmt); err != nil {
			return eris.Wrap(err, "ledger: run migration")
		}
	}
	now := time.Now().UTC()
	for _, tenor := range model.ValidTenors {
		apr := l.cfg.APRForTenor(tenor)
		if _, err := l.pool.Exec(ctx,
			`INSERT INTO pools (id, tenor_days, apr, updated_at) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (tenor_days) DO UPDATE SET apr = EXCLUDED.apr, updated_at = EXCLUDED.updated_at`,
			uuid.New().String(), tenor, apr, now); err != nil {
			return eris.Wrapf(err, "ledger: seed pool tenor %d", tenor)
		}
	}
	zap.L().Info("ledger: schema up to date", zap.Ints("tenors", model.ValidTenors))
	return nil
}

const poolColumns = `id, tenor_days, apr, total_cents, available_cents, tvl_cents, updated_at`

func scanPool(row pgx.Row) (*model.Pool, error) {
	var p model.Pool
	err := row.Scan(&p.ID, &p.TenorDays, &p.APR, &p.TotalCents, &p.AvailableCents, &p.TVLCents, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Pools lists every pool ordered by tenor.
func (l *Ledger) Pools(ctx context.Context) ([]model.Pool, error) {
	rows, err := l.pool.Query(ctx, `SELECT `+poolColumns+` FROM pools ORDER BY tenor_days`)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: list pools")
	}
	defer rows.Close()

	var out []model.Pool
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, eris.Wrap(err, "ledger: scan pool")
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// PoolByTenor returns the pool for a tenor.
func (l *Ledger) PoolByTenor(ctx context.Context, tenorDays int) (*model.Pool, error) {
	p, err := scanPool(l.pool.QueryRow(ctx,
		`SELECT `+poolColumns+` FROM pools WHERE tenor_days = $1`, tenorDays))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fault.Validationf("tenor_days", "no pool for tenor %d", tenorDays)
	}
	if err != nil {
		return nil, eris.Wrap(err, "ledger: get pool")
	}
	return p, nil
}

// Entries returns the full movement log for a pool, oldest first.
func (l *Ledger) Entries(ctx context.Context, poolID string) ([]model.LedgerEntry, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT id, ref_type, amount_cents, pool_id, user_id, ref_id, tx_ref, idempotency_key, metadata, created_at
		 FROM ledger_entries WHERE pool_id = $1 ORDER BY created_at, id`, poolID)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: list entries")
	}
	defer rows.Close()

	var out []model.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, eris.Wrap(err, "ledger: scan entry")
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func scanEntry(row pgx.Row) (*model.LedgerEntry, error) {
	var (
		e        model.LedgerEntry
		metadata []byte
	)
	err := row.Scan(&e.ID, &e.RefType, &e.AmountCents, &e.PoolID, &e.UserID, &e.RefID,
		&e.TxRef, &e.IdempotencyKey, &metadata, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 && string(metadata) != "null" {
		if err := decodeMetadata(metadata, &e.Metadata); err != nil {
			return nil, err
		}
	}
	return &e, nil
}

// lockPool loads a pool row FOR UPDATE inside tx.
func lockPool(ctx context.Context, tx pgx.Tx, tenorDays int) (*model.Pool, error) {
	p, err := scanPool(tx.QueryRow(ctx,
		`SELECT `+poolColumns+` FROM pools WHERE tenor_days = $1 FOR UPDATE`, tenorDays))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fault.Validationf("tenor_days", "no pool for tenor %d", tenorDays)
	}
	if err != nil {
		return nil, eris.Wrap(err, "ledger: lock pool")
	}
	return p, nil
}

func lockPoolByID(ctx context.Context, tx pgx.Tx, poolID string) (*model.Pool, error) {
	p, err := scanPool(tx.QueryRow(ctx,
		`SELECT `+poolColumns+` FROM pools WHERE id = $1 FOR UPDATE`, poolID))
	if err != nil {
		return nil, eris.Wrap(err, "ledger: lock pool")
	}
	return p, nil
}

func savePool(ctx context.Context, tx pgx.Tx, p *model.Pool) error {
	if p.AvailableCents < 0 || p.TVLCents < 0 {
		return fault.Invariantf("pool %s would go negative (available=%d tvl=%d)",
			p.ID, p.AvailableCents, p.TVLCents)
	}
	p.UpdatedAt = time.Now().UTC()
	_, err := tx.Exec(ctx,
		`UPDATE pools SET total_cents = $2, available_cents = $3, tvl_cents = $4, updated_at = $5 WHERE id = $1`,
		p.ID, p.TotalCents, p.AvailableCents, p.TVLCents, p.UpdatedAt)
	if err != nil {
		return eris.Wrap(err, "ledger: save pool")
	}
	return nil
}

// expectedYield computes the funder's contractual yield for a stake held to
// tenor at the pool APR.
func expectedYield(amountCents int64, apr float64, tenorDays int) int64 {
	return int64(math.Round(float64(amountCents) * apr / 100 * float64(tenorDays) / yieldDayCount))
}
