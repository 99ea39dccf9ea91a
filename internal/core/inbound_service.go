package core

import (
	"context"
	"fmt"
	"time"

	"landedcost/internal/logging"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// InboundImport is the input to ImportInbound: a batch header plus its
// items and duty pools, per the import_inbound command of §6.
type InboundImport struct {
	Batch     Batch
	Items     []InboundItem
	DutyPools []DutyPool
}

// InboundCounts reports what import_inbound wrote.
type InboundCounts struct {
	BatchesUpserted int
	ItemsUpserted   int
	DutyPoolsUpserted int
}

// InboundService owns batch, inbound_item, and duty_pool — appended per
// arrival and editable until finalized.
type InboundService interface {
	// ImportInbound upserts the batch header, items, and duty pools inside
	// one transaction, then triggers rebuild_costs (via the supplied
	// Allocator) in the same transaction so lot_cost is never stale between
	// the import committing and a caller remembering to rebuild.
	ImportInbound(ctx context.Context, in InboundImport, alloc *CostAllocator) (InboundCounts, []Warning, error)
}

type inboundService struct {
	pool    *pgxpool.Pool
	catalog CatalogService
	logger  logging.Logger
}

func NewInboundService(pool *pgxpool.Pool, catalog CatalogService, logger logging.Logger) InboundService {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &inboundService{pool: pool, catalog: catalog, logger: logger}
}

func (s *inboundService) ImportInbound(ctx context.Context, in InboundImport, alloc *CostAllocator) (InboundCounts, []Warning, error) {
	var counts InboundCounts

	if in.Batch.BatchID == "" {
		return counts, nil, newError(KindInvalidInbound, "batch_id is required")
	}
	for _, it := range in.Items {
		if it.QtyIn <= 0 {
			return counts, nil, newError(KindInvalidInbound, "inbound item (%s,%s): qty_in must be positive, got %d", it.BatchID, it.InternalSKU, it.QtyIn)
		}
		if it.FOBUnit.IsNegative() {
			return counts, nil, newError(KindInvalidInbound, "inbound item (%s,%s): fob_unit must be non-negative, got %s", it.BatchID, it.InternalSKU, it.FOBUnit)
		}
		if it.CBMPerUnit.IsNegative() {
			return counts, nil, newError(KindInvalidInbound, "inbound item (%s,%s): cbm_per_unit must be non-negative, got %s", it.BatchID, it.InternalSKU, it.CBMPerUnit)
		}
	}
	if in.Batch.FreightTotal.IsNegative() || in.Batch.ClearanceTotal.IsNegative() {
		return counts, nil, newError(KindInvalidInbound, "batch %s: freight_total and clearance_total must be non-negative", in.Batch.BatchID)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return counts, nil, wrapError(KindStoreError, err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	inboundDate := in.Batch.InboundDate
	if inboundDate.IsZero() {
		inboundDate = time.Now().UTC()
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO batch (batch_id, inbound_date, freight_total, clearance_total, dest_marketplace, note)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (batch_id) DO UPDATE
		SET inbound_date = $2, freight_total = $3, clearance_total = $4, dest_marketplace = $5, note = $6
	`, in.Batch.BatchID, inboundDate, in.Batch.FreightTotal, in.Batch.ClearanceTotal, in.Batch.DestMarketplace, in.Batch.Note); err != nil {
		return counts, nil, wrapError(KindStoreError, err, "failed to upsert batch %s", in.Batch.BatchID)
	}
	counts.BatchesUpserted = 1

	for _, it := range in.Items {
		if it.Category == "" && s.catalog != nil {
			// Items commonly arrive without a category when the supplier
			// feed doesn't carry one; fall back to the product master
			// record's category rather than leaving duty proration with
			// an empty category bucket.
			if product, err := s.catalog.GetProduct(ctx, it.InternalSKU); err == nil {
				it.Category = product.Category
			}
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO inbound_item (batch_id, internal_sku, category, qty_in, fob_unit, cbm_per_unit)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (batch_id, internal_sku) DO UPDATE
			SET category = $3, qty_in = $4, fob_unit = $5, cbm_per_unit = $6
		`, it.BatchID, it.InternalSKU, it.Category, it.QtyIn, it.FOBUnit, it.CBMPerUnit); err != nil {
			return counts, nil, wrapError(KindStoreError, err, "failed to upsert inbound_item (%s,%s)", it.BatchID, it.InternalSKU)
		}
		counts.ItemsUpserted++

		if _, err := tx.Exec(ctx, `
			INSERT INTO lot_balance (batch_id, internal_sku, qty_in, qty_sold)
			VALUES ($1, $2, $3, 0)
			ON CONFLICT (batch_id, internal_sku) DO UPDATE SET qty_in = $3
		`, it.BatchID, it.InternalSKU, it.QtyIn); err != nil {
			return counts, nil, wrapError(KindStoreError, err, "failed to refresh lot_balance.qty_in for (%s,%s)", it.BatchID, it.InternalSKU)
		}
	}

	for _, dp := range in.DutyPools {
		if dp.DutyTotal.IsNegative() {
			return counts, nil, newError(KindInvalidInbound, "duty_pool (%s,%s): duty_total must be non-negative, got %s", dp.BatchID, dp.Category, dp.DutyTotal)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO duty_pool (batch_id, category, duty_total)
			VALUES ($1, $2, $3)
			ON CONFLICT (batch_id, category) DO UPDATE SET duty_total = $3
		`, dp.BatchID, dp.Category, dp.DutyTotal); err != nil {
			return counts, nil, wrapError(KindStoreError, err, "failed to upsert duty_pool (%s,%s)", dp.BatchID, dp.Category)
		}
		counts.DutyPoolsUpserted++
	}

	warnings, err := alloc.rebuildTx(ctx, tx, in.Batch.BatchID)
	if err != nil {
		return counts, nil, fmt.Errorf("rebuild_costs during import_inbound: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return counts, nil, wrapError(KindStoreError, err, "failed to commit inbound import")
	}
	s.logger.Info("imported inbound batch",
		logging.Fields.BatchID(in.Batch.BatchID),
		zap.Int("items", counts.ItemsUpserted),
		zap.Int("duty_pools", counts.DutyPoolsUpserted))
	return counts, warnings, nil
}
