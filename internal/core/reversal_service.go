package core

import (
	"fmt"

	"context"

	"landedcost/internal/logging"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ReversalResult reports how many rows were reversed and which lots were
// affected, per the reverse_order command output.
type ReversalResult struct {
	ReversedRows int
	AffectedLots []string
}

// ReversalService undoes all live allocations of a given order_id,
// restoring lot balances. Reversal never deletes rows: it stamps
// reversed_by (set once), reversed_at and reversal_note on each original
// live row, so the audit trail is preserved.
type ReversalService struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

func NewReversalService(pool *pgxpool.Pool, logger logging.Logger) *ReversalService {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ReversalService{pool: pool, logger: logger}
}

// ReverseOrder reverses all live allocation_detail rows for orderID. It is
// idempotent: a second call on an order with no remaining live allocations
// reverses zero rows and returns success, not an error.
func (r *ReversalService) ReverseOrder(ctx context.Context, orderID, note string) (ReversalResult, error) {
	var result ReversalResult

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return result, wrapError(KindStoreError, err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id, internal_sku, batch_id, qty
		FROM allocation_detail
		WHERE order_id = $1 AND reversed_by IS NULL
		FOR UPDATE
	`, orderID)
	if err != nil {
		return result, wrapError(KindStoreError, err, "failed to query live allocations for order %s", orderID)
	}

	type row struct {
		id          string
		internalSKU string
		batchID     string
		qty         int64
	}
	var live []row
	for rows.Next() {
		var rr row
		if err := rows.Scan(&rr.id, &rr.internalSKU, &rr.batchID, &rr.qty); err != nil {
			rows.Close()
			return result, fmt.Errorf("failed to scan allocation_detail row: %w", err)
		}
		live = append(live, rr)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("error iterating allocation_detail: %w", err)
	}

	reversalID := uuid.NewString()
	lotSet := make(map[string]bool)
	for _, rr := range live {
		if rr.batchID != "PENDING" {
			if _, err := tx.Exec(ctx, `
				UPDATE lot_balance SET qty_sold = qty_sold - $1 WHERE batch_id = $2 AND internal_sku = $3
			`, rr.qty, rr.batchID, rr.internalSKU); err != nil {
				return result, wrapError(KindStoreError, err, "failed to restore lot_balance for (%s,%s)", rr.batchID, rr.internalSKU)
			}
		}
		if _, err := tx.Exec(ctx, `
			UPDATE allocation_detail SET reversed_by = $1, reversed_at = NOW(), reversal_note = $2 WHERE id = $3
		`, reversalID, note, rr.id); err != nil {
			return result, wrapError(KindStoreError, err, "failed to mark allocation_detail %s reversed", rr.id)
		}
		lotSet[rr.batchID] = true
	}

	for lot := range lotSet {
		result.AffectedLots = append(result.AffectedLots, lot)
	}
	result.ReversedRows = len(live)

	if err := tx.Commit(ctx); err != nil {
		return result, wrapError(KindStoreError, err, "failed to commit reverse_order")
	}
	r.logger.Info("reversed order", logging.Fields.OrderID(orderID), zap.Int("rows", result.ReversedRows))
	return result, nil
}
