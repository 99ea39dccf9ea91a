package core

import (
	"context"
	"fmt"
	"time"

	"landedcost/internal/logging"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FIFOResult reports the outcome of a FIFO run.
type FIFOResult struct {
	AllocatedUnits int64
	Shortfalls     []Warning
}

// FIFOEngine consumes demand against lot_balance in strict FIFO order by
// (inbound_date ASC, batch_id ASC), writing allocation_detail and
// decrementing lot_balance.qty_sold.
type FIFOEngine struct {
	pool          *pgxpool.Pool
	allowNegative bool
	loc           *time.Location
	logger        logging.Logger
}

func NewFIFOEngine(pool *pgxpool.Pool, allowNegativeLots bool, loc *time.Location, logger logging.Logger) *FIFOEngine {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &FIFOEngine{pool: pool, allowNegative: allowNegativeLots, loc: loc, logger: logger}
}

// AllocateMonth reverses any existing live allocations for ym (stamping
// them with rebuildID so the rebuild is itself auditable), then replays the
// demand stream in canonical order — the fifo_rebuild_month command. It
// runs as a single transaction: any failure aborts with no partial state.
func (f *FIFOEngine) AllocateMonth(ctx context.Context, ym, marketplace string, demands []Demand) (FIFOResult, error) {
	var result FIFOResult

	tx, err := f.pool.Begin(ctx)
	if err != nil {
		return result, wrapError(KindStoreError, err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	start, end, err := monthBounds(ym, f.loc)
	if err != nil {
		return result, newError(KindInvalidInbound, "invalid ym %q: %v", ym, err)
	}

	rebuildID := uuid.NewString()
	if err := reverseMonthTx(ctx, tx, start, end, marketplace, rebuildID); err != nil {
		return result, err
	}

	for _, d := range demands {
		allocated, shortfall, err := f.allocateDemandTx(ctx, tx, d)
		if err != nil {
			return result, err
		}
		result.AllocatedUnits += allocated
		if shortfall > 0 {
			msg := fmt.Sprintf("order %s internal_sku %s: shortfall of %d units", d.OrderID, d.InternalSKU, shortfall)
			result.Shortfalls = append(result.Shortfalls, Warning{Kind: KindShortfall, Message: msg})
			f.logger.Warn(msg,
				logging.Fields.OrderID(d.OrderID),
				logging.Fields.InternalSKU(d.InternalSKU),
				logging.Fields.YM(ym),
				logging.Fields.Marketplace(marketplace),
				logging.Fields.Warning(string(KindShortfall), msg))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return result, wrapError(KindStoreError, err, "failed to commit fifo_rebuild_month")
	}
	return result, nil
}

// allocateDemandTx implements the per-demand algorithm of §4.3 against lots
// locked FOR UPDATE in FIFO order.
func (f *FIFOEngine) allocateDemandTx(ctx context.Context, tx pgx.Tx, d Demand) (allocated int64, shortfall int64, err error) {
	remaining := d.Qty

	rows, err := tx.Query(ctx, `
		SELECT lb.batch_id, lb.qty_in, lb.qty_sold
		FROM lot_balance lb
		JOIN batch b ON b.batch_id = lb.batch_id
		WHERE lb.internal_sku = $1 AND (lb.qty_in - lb.qty_sold) > 0
		ORDER BY b.inbound_date ASC, b.batch_id ASC
		FOR UPDATE OF lb
	`, d.InternalSKU)
	if err != nil {
		return 0, 0, wrapError(KindStoreError, err, "failed to query lot_balance for %s", d.InternalSKU)
	}

	type lot struct {
		batchID string
		qtyIn   int64
		qtySold int64
	}
	var lots []lot
	for rows.Next() {
		var l lot
		if err := rows.Scan(&l.batchID, &l.qtyIn, &l.qtySold); err != nil {
			rows.Close()
			return 0, 0, fmt.Errorf("failed to scan lot_balance row: %w", err)
		}
		lots = append(lots, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, 0, fmt.Errorf("error iterating lot_balance: %w", err)
	}

	for _, l := range lots {
		if remaining == 0 {
			break
		}
		available := l.qtyIn - l.qtySold
		take := remaining
		if available < take {
			take = available
		}

		var lc LotCost
		err := tx.QueryRow(ctx, `
			SELECT fob_unit, freight_unit, clearance_unit, duty_unit
			FROM lot_cost WHERE batch_id = $1 AND internal_sku = $2
		`, l.batchID, d.InternalSKU).Scan(&lc.FOBUnit, &lc.FreightUnit, &lc.ClearanceUnit, &lc.DutyUnit)
		if err != nil {
			return 0, 0, wrapError(KindStoreError, err, "failed to read lot_cost for (%s,%s)", l.batchID, d.InternalSKU)
		}

		id := uuid.NewString()
		if _, err := tx.Exec(ctx, `
			INSERT INTO allocation_detail
				(id, happened_at, order_id, marketplace, internal_sku, batch_id, qty,
				 fob_unit, freight_unit, clearance_unit, duty_unit)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, id, d.HappenedAt, d.OrderID, d.Marketplace, d.InternalSKU, l.batchID, take,
			lc.FOBUnit, lc.FreightUnit, lc.ClearanceUnit, lc.DutyUnit); err != nil {
			return 0, 0, wrapError(KindStoreError, err, "failed to insert allocation_detail for order %s", d.OrderID)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE lot_balance SET qty_sold = qty_sold + $1 WHERE batch_id = $2 AND internal_sku = $3
		`, take, l.batchID, d.InternalSKU); err != nil {
			return 0, 0, wrapError(KindStoreError, err, "failed to update lot_balance for (%s,%s)", l.batchID, d.InternalSKU)
		}

		allocated += take
		remaining -= take
	}

	if remaining > 0 && f.allowNegative {
		id := uuid.NewString()
		if _, err := tx.Exec(ctx, `
			INSERT INTO allocation_detail
				(id, happened_at, order_id, marketplace, internal_sku, batch_id, qty,
				 fob_unit, freight_unit, clearance_unit, duty_unit)
			VALUES ($1, $2, $3, $4, $5, 'PENDING', $6, 0, 0, 0, 0)
		`, id, d.HappenedAt, d.OrderID, d.Marketplace, d.InternalSKU, remaining); err != nil {
			return 0, 0, wrapError(KindStoreError, err, "failed to insert pending-lot allocation for order %s", d.OrderID)
		}
		allocated += remaining
		// remaining is still returned as the shortfall: the pending row
		// covers it, but no real lot did.
	}

	return allocated, remaining, nil
}

// reverseMonthTx marks all live allocation_detail rows whose happened_at
// falls in [start, end) (optionally filtered to marketplace) as reversed
// and restores their lot_balance, stamping reversed_by with rebuildID. It
// is the first half of fifo_rebuild_month. start/end must be the same
// tz-aware window NormalizeMonth used to select demand for this ym
// (monthBounds in the configured reporting timezone) — comparing against
// a UTC-truncated month here would disagree with tz-aware demand selection
// at month boundaries and break rebuild determinism.
func reverseMonthTx(ctx context.Context, tx pgx.Tx, start, end time.Time, marketplace, rebuildID string) error {
	q := `
		SELECT id, internal_sku, batch_id, qty
		FROM allocation_detail
		WHERE reversed_by IS NULL
		  AND happened_at >= $1 AND happened_at < $2`
	args := []any{start.UTC(), end.UTC()}
	if marketplace != "" {
		q += " AND marketplace = $3"
		args = append(args, marketplace)
	}
	q += " FOR UPDATE"

	rows, err := tx.Query(ctx, q, args...)
	if err != nil {
		return wrapError(KindStoreError, err, "failed to query live allocations in [%s, %s)", start, end)
	}
	type row struct {
		id          string
		internalSKU string
		batchID     string
		qty         int64
	}
	var live []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.internalSKU, &r.batchID, &r.qty); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan allocation_detail row: %w", err)
		}
		live = append(live, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating allocation_detail: %w", err)
	}

	for _, r := range live {
		if r.batchID != "PENDING" {
			if _, err := tx.Exec(ctx, `
				UPDATE lot_balance SET qty_sold = qty_sold - $1 WHERE batch_id = $2 AND internal_sku = $3
			`, r.qty, r.batchID, r.internalSKU); err != nil {
				return wrapError(KindStoreError, err, "failed to restore lot_balance for (%s,%s)", r.batchID, r.internalSKU)
			}
		}
		if _, err := tx.Exec(ctx, `
			UPDATE allocation_detail SET reversed_by = $1, reversed_at = NOW() WHERE id = $2
		`, rebuildID, r.id); err != nil {
			return wrapError(KindStoreError, err, "failed to mark allocation_detail %s reversed", r.id)
		}
	}
	return nil
}
