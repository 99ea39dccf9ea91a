package core

import (
	"context"
	"fmt"
	"time"

	"landedcost/internal/logging"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// MonthSummarizer folds live allocation_detail into month_summary, by
// marketplace and as a synthetic "ALL" row across marketplaces. It is pure
// over allocation_detail: rerunning it is idempotent, matching
// reportingService's pattern of always querying the ledger directly rather
// than trusting a cached aggregate.
type MonthSummarizer struct {
	pool   *pgxpool.Pool
	loc    *time.Location
	logger logging.Logger
}

func NewMonthSummarizer(pool *pgxpool.Pool, loc *time.Location, logger logging.Logger) *MonthSummarizer {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &MonthSummarizer{pool: pool, loc: loc, logger: logger}
}

// Summarize recomputes and overwrites month_summary for ym. It windows
// allocation_detail by the same tz-aware [start, end) bounds NormalizeMonth
// and the FIFO Engine use (monthBounds in the configured reporting
// timezone), not a UTC-truncated month, so summarize_month never disagrees
// with which allocations fifo_rebuild_month considers part of ym.
func (m *MonthSummarizer) Summarize(ctx context.Context, ym string) ([]MonthSummary, error) {
	start, end, err := monthBounds(ym, m.loc)
	if err != nil {
		return nil, newError(KindInvalidInbound, "invalid ym %q: %v", ym, err)
	}

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return nil, wrapError(KindStoreError, err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	const q = `
		SELECT marketplace,
		       COUNT(DISTINCT order_id)               AS orders,
		       COALESCE(SUM(qty), 0)                   AS units,
		       COALESCE(SUM(qty * fob_unit), 0)         AS fob,
		       COALESCE(SUM(qty * freight_unit), 0)     AS freight,
		       COALESCE(SUM(qty * clearance_unit), 0)   AS clearance,
		       COALESCE(SUM(qty * duty_unit), 0)        AS duty
		FROM allocation_detail
		WHERE reversed_by IS NULL AND happened_at >= $1 AND happened_at < $2
		GROUP BY marketplace`

	rows, err := tx.Query(ctx, q, start.UTC(), end.UTC())
	if err != nil {
		return nil, wrapError(KindStoreError, err, "failed to aggregate allocation_detail for %s", ym)
	}

	var summaries []MonthSummary
	var totalOrders, totalUnits int64
	var totalFOB, totalFreight, totalClearance, totalDuty decimalAccumulator
	for rows.Next() {
		var s MonthSummary
		s.YM = ym
		if err := rows.Scan(&s.Marketplace, &s.Orders, &s.Units, &s.FOB, &s.Freight, &s.Clearance, &s.Duty); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan month_summary aggregate: %w", err)
		}
		s.UpdatedAt = timeNow()
		summaries = append(summaries, s)
		totalUnits += s.Units
		totalFOB.add(s.FOB)
		totalFreight.add(s.Freight)
		totalClearance.add(s.Clearance)
		totalDuty.add(s.Duty)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating month_summary aggregate: %w", err)
	}

	// Distinct-order count across all marketplaces for the synthetic ALL row.
	if err := tx.QueryRow(ctx, `
		SELECT COUNT(DISTINCT order_id) FROM allocation_detail
		WHERE reversed_by IS NULL AND happened_at >= $1 AND happened_at < $2
	`, start.UTC(), end.UTC()).Scan(&totalOrders); err != nil {
		return nil, wrapError(KindStoreError, err, "failed to count distinct orders for %s", ym)
	}

	allRow := MonthSummary{
		YM:          ym,
		Marketplace: "ALL",
		Orders:      totalOrders,
		Units:       totalUnits,
		FOB:         totalFOB.sum,
		Freight:     totalFreight.sum,
		Clearance:   totalClearance.sum,
		Duty:        totalDuty.sum,
		UpdatedAt:   timeNow(),
	}
	summaries = append(summaries, allRow)

	if _, err := tx.Exec(ctx, `DELETE FROM month_summary WHERE ym = $1`, ym); err != nil {
		return nil, wrapError(KindStoreError, err, "failed to clear stale month_summary rows for %s", ym)
	}
	for _, s := range summaries {
		if _, err := tx.Exec(ctx, `
			INSERT INTO month_summary (ym, marketplace, orders, units, fob, freight, clearance, duty, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, s.YM, s.Marketplace, s.Orders, s.Units, s.FOB, s.Freight, s.Clearance, s.Duty, s.UpdatedAt); err != nil {
			return nil, wrapError(KindStoreError, err, "failed to insert month_summary row for %s/%s", s.YM, s.Marketplace)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, wrapError(KindStoreError, err, "failed to commit summarize_month")
	}
	m.logger.Info("summarized month", logging.Fields.YM(ym), zap.Int("marketplaces", len(summaries)))
	return summaries, nil
}

// SnapshotMonth writes an immutable, timestamped copy of ym's month_summary
// to month_summary_snapshot — the prototype's snapshot_month(ym), used for
// point-in-time closing sign-off before a later rebuild could change the
// live summary.
func (m *MonthSummarizer) SnapshotMonth(ctx context.Context, ym string) ([]MonthSummarySnapshot, error) {
	rows, err := m.pool.Query(ctx, `
		SELECT ym, marketplace, orders, units, fob, freight, clearance, duty
		FROM month_summary WHERE ym = $1
	`, ym)
	if err != nil {
		return nil, wrapError(KindStoreError, err, "failed to read month_summary for snapshot of %s", ym)
	}
	defer rows.Close()

	takenAt := timeNow()
	var snapshots []MonthSummarySnapshot
	for rows.Next() {
		var s MonthSummarySnapshot
		if err := rows.Scan(&s.YM, &s.Marketplace, &s.Orders, &s.Units, &s.FOB, &s.Freight, &s.Clearance, &s.Duty); err != nil {
			return nil, fmt.Errorf("failed to scan month_summary row for snapshot: %w", err)
		}
		s.SnapshotID = uuid.NewString()
		s.TakenAt = takenAt
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating month_summary for snapshot: %w", err)
	}

	for _, s := range snapshots {
		if _, err := m.pool.Exec(ctx, `
			INSERT INTO month_summary_snapshot
				(snapshot_id, ym, marketplace, orders, units, fob, freight, clearance, duty, taken_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, s.SnapshotID, s.YM, s.Marketplace, s.Orders, s.Units, s.FOB, s.Freight, s.Clearance, s.Duty, s.TakenAt); err != nil {
			return nil, wrapError(KindStoreError, err, "failed to insert month_summary_snapshot row")
		}
	}
	m.logger.Info("snapshotted month", logging.Fields.YM(ym), zap.Int("rows", len(snapshots)))
	return snapshots, nil
}

func timeNow() time.Time { return time.Now().UTC() }
