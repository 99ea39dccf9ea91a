package core

import (
	"context"
	"fmt"
	"sort"

	"landedcost/internal/logging"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// CostAllocator turns batch-level cost pools (freight, clearance,
// duty-by-category) into per-(batch, internal_sku) per-unit costs. Per §9's
// "Allocator purity" note, the arithmetic itself (AllocateBatch) is a pure
// function with no store dependency, so it can be exercised directly in
// unit tests against fixture data; CostAllocator wraps it with the
// persistence required by the rebuild_costs / import_inbound commands.
type CostAllocator struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

func NewCostAllocator(pool *pgxpool.Pool, logger logging.Logger) *CostAllocator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &CostAllocator{pool: pool, logger: logger}
}

// AllocateBatch computes lot_cost rows for one batch's items and duty pools.
// It is deterministic: identical inputs produce byte-identical outputs. The
// caller is responsible for passing only items/duty pools belonging to one
// batch_id; a mismatched batch_id is an InvalidInbound error.
func AllocateBatch(batch Batch, items []InboundItem, dutyPools []DutyPool) ([]LotCost, []Warning, error) {
	for _, it := range items {
		if it.BatchID != batch.BatchID {
			return nil, nil, newError(KindInvalidInbound, "item %s belongs to batch %s, not %s", it.InternalSKU, it.BatchID, batch.BatchID)
		}
		if it.FOBUnit.IsNegative() {
			return nil, nil, newError(KindInvalidInbound, "item (%s,%s): fob_unit must be non-negative", it.BatchID, it.InternalSKU)
		}
		if it.CBMPerUnit.IsNegative() {
			return nil, nil, newError(KindInvalidInbound, "item (%s,%s): cbm_per_unit must be non-negative", it.BatchID, it.InternalSKU)
		}
		if it.QtyIn <= 0 {
			return nil, nil, newError(KindInvalidInbound, "item (%s,%s): qty_in must be positive", it.BatchID, it.InternalSKU)
		}
	}

	var warnings []Warning

	// Sort for deterministic iteration order (map iteration in Go is
	// randomized; the allocator must be byte-identical across runs).
	sortedItems := make([]InboundItem, len(items))
	copy(sortedItems, items)
	sort.Slice(sortedItems, func(i, j int) bool { return sortedItems[i].InternalSKU < sortedItems[j].InternalSKU })

	totalCBM := decimal.Zero
	for _, it := range sortedItems {
		qty := decimal.NewFromInt(it.QtyIn)
		totalCBM = totalCBM.Add(qty.Mul(it.CBMPerUnit))
	}

	if totalCBM.IsZero() && (batch.FreightTotal.IsPositive() || batch.ClearanceTotal.IsPositive()) {
		warnings = append(warnings, Warning{
			Kind:    KindZeroDenominator,
			Message: fmt.Sprintf("batch %s: total CBM is zero but freight/clearance pool is non-zero", batch.BatchID),
			Detail:  "freight_unit and clearance_unit are 0 for every item in this batch",
		})
	}

	// FOB totals per category, for duty proration.
	fobByCategory := make(map[string]decimal.Decimal)
	for _, it := range sortedItems {
		qty := decimal.NewFromInt(it.QtyIn)
		fobByCategory[it.Category] = fobByCategory[it.Category].Add(qty.Mul(it.FOBUnit))
	}

	dutyByCategory := make(map[string]decimal.Decimal)
	for _, dp := range dutyPools {
		if dp.BatchID != batch.BatchID {
			continue
		}
		if dp.DutyTotal.IsNegative() {
			return nil, nil, newError(KindInvalidInbound, "duty_pool (%s,%s): duty_total must be non-negative", dp.BatchID, dp.Category)
		}
		dutyByCategory[dp.Category] = dutyByCategory[dp.Category].Add(dp.DutyTotal)
	}

	for cat, fob := range fobByCategory {
		if duty, ok := dutyByCategory[cat]; ok && duty.IsPositive() && fob.IsZero() {
			warnings = append(warnings, Warning{
				Kind:    KindZeroDenominator,
				Message: fmt.Sprintf("batch %s category %s: FOB total is zero but duty pool is non-zero", batch.BatchID, cat),
				Detail:  "duty_unit is 0 for every item in this category",
			})
		}
	}
	for cat := range dutyByCategory {
		if _, ok := fobByCategory[cat]; !ok {
			warnings = append(warnings, Warning{
				Kind:    KindUnmappedSku,
				Message: fmt.Sprintf("batch %s: duty_pool for category %s has no matching inbound items", batch.BatchID, cat),
			})
		}
	}

	lotCosts := make([]LotCost, 0, len(sortedItems))
	for _, it := range sortedItems {
		qty := decimal.NewFromInt(it.QtyIn)

		var freightShare, clearanceShare decimal.Decimal
		if totalCBM.IsPositive() {
			cbmShare := qty.Mul(it.CBMPerUnit).Div(totalCBM)
			freightShare = batch.FreightTotal.Mul(cbmShare)
			clearanceShare = batch.ClearanceTotal.Mul(cbmShare)
		}

		var dutyShare decimal.Decimal
		if it.Category == "" {
			if _, hasDuty := dutyByCategory[""]; !hasDuty && len(dutyByCategory) > 0 {
				warnings = append(warnings, Warning{
					Kind:    KindUnmappedSku,
					Message: fmt.Sprintf("item (%s,%s) has no category; duty_unit set to 0", it.BatchID, it.InternalSKU),
				})
			}
		} else if fobC, ok := fobByCategory[it.Category]; ok && fobC.IsPositive() {
			if duty, hasDuty := dutyByCategory[it.Category]; hasDuty {
				fobItemShare := qty.Mul(it.FOBUnit).Div(fobC)
				dutyShare = duty.Mul(fobItemShare)
			}
		}

		lotCosts = append(lotCosts, LotCost{
			BatchID:       it.BatchID,
			InternalSKU:   it.InternalSKU,
			FOBUnit:       it.FOBUnit,
			FreightUnit:   divOrZero(freightShare, qty),
			ClearanceUnit: divOrZero(clearanceShare, qty),
			DutyUnit:      divOrZero(dutyShare, qty),
		})
	}

	return lotCosts, warnings, nil
}

func divOrZero(numerator, denominator decimal.Decimal) decimal.Decimal {
	if denominator.IsZero() {
		return decimal.Zero
	}
	return numerator.Div(denominator)
}

// rebuildTx recomputes lot_cost for a single batch inside a caller-owned
// transaction — used by ImportInbound so the import and the recompute land
// atomically.
func (a *CostAllocator) rebuildTx(ctx context.Context, tx pgx.Tx, batchID string) ([]Warning, error) {
	batch, items, dutyPools, err := loadBatchTx(ctx, tx, batchID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	lotCosts, warnings, err := AllocateBatch(*batch, items, dutyPools)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		a.logger.Warn(w.Message, logging.Fields.BatchID(batchID), logging.Fields.Warning(string(w.Kind), w.Message))
	}

	for _, lc := range lotCosts {
		if _, err := tx.Exec(ctx, `
			INSERT INTO lot_cost (batch_id, internal_sku, fob_unit, freight_unit, clearance_unit, duty_unit)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (batch_id, internal_sku) DO UPDATE
			SET fob_unit = $3, freight_unit = $4, clearance_unit = $5, duty_unit = $6
		`, lc.BatchID, lc.InternalSKU, lc.FOBUnit, lc.FreightUnit, lc.ClearanceUnit, lc.DutyUnit); err != nil {
			return nil, wrapError(KindStoreError, err, "failed to upsert lot_cost (%s,%s)", lc.BatchID, lc.InternalSKU)
		}
	}
	return warnings, nil
}

// Rebuild recomputes lot_cost for every batch (the rebuild_costs command),
// and refreshes lot_balance.qty_in from inbound_item without touching
// qty_sold — the two operations the original Python prototype exposed
// separately as rebuild_lot_costs() and rebuild_lot_balance(), kept split
// here as rebuildTx and RefreshBalancesTx so a duty-only correction can skip
// the balance refresh.
func (a *CostAllocator) Rebuild(ctx context.Context) ([]Warning, error) {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return nil, wrapError(KindStoreError, err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, "SELECT batch_id FROM batch ORDER BY batch_id")
	if err != nil {
		return nil, wrapError(KindStoreError, err, "failed to list batches")
	}
	var batchIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan batch id: %w", err)
		}
		batchIDs = append(batchIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating batches: %w", err)
	}

	var allWarnings []Warning
	for _, id := range batchIDs {
		warnings, err := a.rebuildTx(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		allWarnings = append(allWarnings, warnings...)
	}

	if err := a.RefreshBalancesTx(ctx, tx); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, wrapError(KindStoreError, err, "failed to commit rebuild_costs")
	}
	return allWarnings, nil
}

// RefreshBalancesTx upserts lot_balance.qty_in for every inbound_item,
// leaving qty_sold untouched, inside a caller-owned transaction.
func (a *CostAllocator) RefreshBalancesTx(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO lot_balance (batch_id, internal_sku, qty_in, qty_sold)
		SELECT batch_id, internal_sku, qty_in, 0 FROM inbound_item
		ON CONFLICT (batch_id, internal_sku) DO UPDATE SET qty_in = EXCLUDED.qty_in
	`)
	if err != nil {
		return wrapError(KindStoreError, err, "failed to refresh lot_balance.qty_in")
	}
	return nil
}

func loadBatchTx(ctx context.Context, tx pgx.Tx, batchID string) (*Batch, []InboundItem, []DutyPool, error) {
	var b Batch
	err := tx.QueryRow(ctx, `
		SELECT batch_id, inbound_date, freight_total, clearance_total, dest_marketplace, note
		FROM batch WHERE batch_id = $1
	`, batchID).Scan(&b.BatchID, &b.InboundDate, &b.FreightTotal, &b.ClearanceTotal, &b.DestMarketplace, &b.Note)
	if err != nil {
		return nil, nil, nil, wrapError(KindStoreError, err, "failed to load batch %s", batchID)
	}

	rows, err := tx.Query(ctx, `
		SELECT batch_id, internal_sku, category, qty_in, fob_unit, cbm_per_unit
		FROM inbound_item WHERE batch_id = $1
	`, batchID)
	if err != nil {
		return nil, nil, nil, wrapError(KindStoreError, err, "failed to load inbound_item for batch %s", batchID)
	}
	var items []InboundItem
	for rows.Next() {
		var it InboundItem
		if err := rows.Scan(&it.BatchID, &it.InternalSKU, &it.Category, &it.QtyIn, &it.FOBUnit, &it.CBMPerUnit); err != nil {
			rows.Close()
			return nil, nil, nil, fmt.Errorf("failed to scan inbound_item: %w", err)
		}
		items = append(items, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("error iterating inbound_item: %w", err)
	}

	dpRows, err := tx.Query(ctx, `SELECT batch_id, category, duty_total FROM duty_pool WHERE batch_id = $1`, batchID)
	if err != nil {
		return nil, nil, nil, wrapError(KindStoreError, err, "failed to load duty_pool for batch %s", batchID)
	}
	var pools []DutyPool
	for dpRows.Next() {
		var dp DutyPool
		if err := dpRows.Scan(&dp.BatchID, &dp.Category, &dp.DutyTotal); err != nil {
			dpRows.Close()
			return nil, nil, nil, fmt.Errorf("failed to scan duty_pool: %w", err)
		}
		pools = append(pools, dp)
	}
	dpRows.Close()
	if err := dpRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("error iterating duty_pool: %w", err)
	}

	return &b, items, pools, nil
}
