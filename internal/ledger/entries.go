package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"

	"github.com/riftfin/riftcore/internal/fault"
	"github.com/riftfin/riftcore/internal/model"
)

func decodeMetadata(data []byte, dst *map[string]string) error {
	return json.Unmarshal(data, dst)
}

// findByIdempotencyKey returns the entry previously written for this
// operation, or nil when the key is unused. An empty key never matches.
func findByIdempotencyKey(ctx context.Context, tx pgx.Tx, refType model.RefType, key string) (*model.LedgerEntry, error) {
	if key == "" {
		return nil, nil
	}
	e, err := scanEntry(tx.QueryRow(ctx,
		`SELECT id, ref_type, amount_cents, pool_id, user_id, ref_id, tx_ref, idempotency_key, metadata, created_at
		 FROM ledger_entries WHERE ref_type = $1 AND idempotency_key = $2`, refType, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "ledger: lookup idempotency key")
	}
	return e, nil
}

// replayMatch enforces that a reused idempotency key carries the same
// parameters as the original call. A mismatch is a conflict, not a replay.
func replayMatch(existing *model.LedgerEntry, amountCents int64, poolID, refID string) error {
	if existing.AmountCents != amountCents || (poolID != "" && existing.PoolID != poolID) || existing.RefID != refID {
		return fault.Conflictf("idempotency key %q reused with different parameters", existing.IdempotencyKey)
	}
	return nil
}

// insertEntry appends one signed movement. AmountCents carries the sign:
// inflows positive, outflows negative.
func insertEntry(ctx context.Context, tx pgx.Tx, e model.LedgerEntry) (*model.LedgerEntry, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.TxRef == "" {
		e.TxRef = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	metadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: marshal entry metadata")
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO ledger_entries (id, ref_type, amount_cents, pool_id, user_id, ref_id, tx_ref, idempotency_key, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.RefType, e.AmountCents, e.PoolID, e.UserID, e.RefID, e.TxRef, e.IdempotencyKey, metadata, e.CreatedAt); err != nil {
		// The idempotency lookup runs before the pool lock, so two
		// submissions racing on the same key both pass it; the loser hits
		// the unique index here and must see a conflict, not a 500.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fault.Conflictf("idempotency key %q was written concurrently, retry to replay the original entry", e.IdempotencyKey)
		}
		return nil, eris.Wrap(err, "ledger: insert entry")
	}
	return &e, nil
}

// writeAudit appends the audit record inside the same transaction as the
// movement it describes.
func writeAudit(ctx context.Context, tx pgx.Tx, action, actor, entity, entityID string, metadata map[string]string) error {
	payload, err := json.Marshal(metadata)
	if err != nil {
		return eris.Wrap(err, "ledger: marshal audit metadata")
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO audit_log (id, action, actor, entity, entity_id, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New().String(), action, actor, entity, entityID, payload, time.Now().UTC()); err != nil {
		return eris.Wrap(err, "ledger: append audit")
	}
	return nil
}
