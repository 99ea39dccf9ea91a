package core

import (
	"context"
	"time"

	"landedcost/internal/logging"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Service is the small typed command surface of §6, wrapping every
// mutating engine with the single-writer-per-tenant lock of §5 so callers
// (the CLI, or any future transport) never have to reason about
// concurrency themselves.
type Service struct {
	pool        *pgxpool.Pool
	logger      logging.Logger
	catalog     CatalogService
	inbound     InboundService
	allocator   *CostAllocator
	sales       SalesService
	fifo        *FIFOEngine
	summarizer  *MonthSummarizer
	reversal    *ReversalService
	writerLock  *WriterLock
	writerTimeout     time.Duration
	nonBlockingWriter bool
}

// ServiceConfig configures Service construction.
type ServiceConfig struct {
	OrderLabel        string
	ReportingTZ       *time.Location
	AllowNegativeLots bool
	WriterTimeout     time.Duration

	// NonBlockingWriter selects the fail-fast (BusyWriter) writer-lock
	// policy instead of blocking until WriterTimeout elapses — §5's other
	// permitted policy.
	NonBlockingWriter bool
}

// NewService wires every §4 engine with a shared logger (per SPEC_FULL.md
// §2.3: every core service accepts a logger and emits a structured warning
// event for each ZeroDenominator/UnmappedSku/Shortfall). A nil logger is
// replaced with logging.NewNop() so callers that don't care about logs
// (tests) don't have to construct one.
func NewService(pool *pgxpool.Pool, logger logging.Logger, cfg ServiceConfig) *Service {
	if cfg.WriterTimeout <= 0 {
		cfg.WriterTimeout = 10 * time.Minute
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	catalog := NewCatalogService(pool, logger)
	return &Service{
		pool:          pool,
		logger:        logger,
		catalog:       catalog,
		inbound:       NewInboundService(pool, catalog, logger),
		allocator:     NewCostAllocator(pool, logger),
		sales:         NewSalesService(pool, catalog, cfg.OrderLabel, cfg.ReportingTZ, logger),
		fifo:          NewFIFOEngine(pool, cfg.AllowNegativeLots, cfg.ReportingTZ, logger),
		summarizer:    NewMonthSummarizer(pool, cfg.ReportingTZ, logger),
		reversal:      NewReversalService(pool, logger),
		writerLock:        NewWriterLock(),
		writerTimeout:     cfg.WriterTimeout,
		nonBlockingWriter: cfg.NonBlockingWriter,
	}
}

func (s *Service) Catalog() CatalogService { return s.catalog }

// withWriter runs fn while holding tenant's writer lock — the common
// envelope around every mutating command in §5. Under the default policy
// it blocks, honoring ctx cancellation and the configured writer timeout;
// when NonBlockingWriter is set it instead fails fast with BusyWriter if
// another mutating command already holds the tenant's lock.
func (s *Service) withWriter(ctx context.Context, tenant string, fn func(context.Context) error) error {
	if s.nonBlockingWriter {
		release, err := s.writerLock.TryAcquire(tenant)
		if err != nil {
			s.logger.Warn("writer lock busy", zap.String("tenant", tenant), zap.Error(err))
			return err
		}
		defer release()
		return fn(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, s.writerTimeout)
	defer cancel()

	release, err := s.writerLock.Acquire(ctx, tenant)
	if err != nil {
		s.logger.Warn("writer lock acquisition failed", zap.String("tenant", tenant), zap.Error(err))
		return err
	}
	defer release()

	return fn(ctx)
}

// ImportInbound upserts the batch header, items, and duty pools, then
// triggers rebuild_costs.
func (s *Service) ImportInbound(ctx context.Context, tenant string, in InboundImport) (InboundCounts, []Warning, error) {
	var counts InboundCounts
	var warnings []Warning
	err := s.withWriter(ctx, tenant, func(ctx context.Context) error {
		var err error
		counts, warnings, err = s.inbound.ImportInbound(ctx, in, s.allocator)
		return err
	})
	return counts, warnings, err
}

// RebuildCosts recomputes lot_cost for all batches and refreshes
// lot_balance.qty_in without touching qty_sold.
func (s *Service) RebuildCosts(ctx context.Context, tenant string) ([]Warning, error) {
	var warnings []Warning
	err := s.withWriter(ctx, tenant, func(ctx context.Context) error {
		var err error
		warnings, err = s.allocator.Rebuild(ctx)
		return err
	})
	return warnings, err
}

// ImportSalesRaw appends to sales_raw, deduped.
func (s *Service) ImportSalesRaw(ctx context.Context, tenant string, csvBytes []byte, defaultMarketplace string, replaceRange bool) (int, []Warning, error) {
	var n int
	var warnings []Warning
	err := s.withWriter(ctx, tenant, func(ctx context.Context) error {
		var err error
		n, warnings, err = s.sales.ImportSalesRaw(ctx, csvBytes, defaultMarketplace, replaceRange)
		return err
	})
	return n, warnings, err
}

// FIFORebuildMonth reverses existing allocations for ym, re-runs the
// normalizer, and replays FIFO.
func (s *Service) FIFORebuildMonth(ctx context.Context, tenant, ym, marketplace string) (FIFOResult, []Warning, error) {
	var result FIFOResult
	var warnings []Warning
	err := s.withWriter(ctx, tenant, func(ctx context.Context) error {
		demands, normWarnings, err := s.sales.NormalizeMonth(ctx, ym, marketplace)
		if err != nil {
			return err
		}
		warnings = append(warnings, normWarnings...)

		result, err = s.fifo.AllocateMonth(ctx, ym, marketplace, demands)
		if err != nil {
			return err
		}
		warnings = append(warnings, result.Shortfalls...)
		return nil
	})
	return result, warnings, err
}

// SummarizeMonth writes month_summary for ym.
func (s *Service) SummarizeMonth(ctx context.Context, tenant, ym string) ([]MonthSummary, error) {
	var summaries []MonthSummary
	err := s.withWriter(ctx, tenant, func(ctx context.Context) error {
		var err error
		summaries, err = s.summarizer.Summarize(ctx, ym)
		return err
	})
	return summaries, err
}

// SnapshotMonth writes an immutable month_summary_snapshot for ym.
func (s *Service) SnapshotMonth(ctx context.Context, tenant, ym string) ([]MonthSummarySnapshot, error) {
	var snapshots []MonthSummarySnapshot
	err := s.withWriter(ctx, tenant, func(ctx context.Context) error {
		var err error
		snapshots, err = s.summarizer.SnapshotMonth(ctx, ym)
		return err
	})
	return snapshots, err
}

// ReverseOrder reverses live allocations for orderID. Idempotent.
func (s *Service) ReverseOrder(ctx context.Context, tenant, orderID, note string) (ReversalResult, error) {
	var result ReversalResult
	err := s.withWriter(ctx, tenant, func(ctx context.Context) error {
		var err error
		result, err = s.reversal.ReverseOrder(ctx, orderID, note)
		return err
	})
	return result, err
}

// GetInventory is a read-only query; it does not take the writer lock.
func (s *Service) GetInventory(ctx context.Context, skuFilter string) ([]LotBalance, error) {
	q := `SELECT batch_id, internal_sku, qty_in, qty_sold FROM lot_balance`
	args := []any{}
	if skuFilter != "" {
		q += " WHERE internal_sku = $1"
		args = append(args, skuFilter)
	}
	q += " ORDER BY internal_sku, batch_id"

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, wrapError(KindStoreError, err, "failed to query lot_balance")
	}
	defer rows.Close()

	var balances []LotBalance
	for rows.Next() {
		var b LotBalance
		if err := rows.Scan(&b.BatchID, &b.InternalSKU, &b.QtyIn, &b.QtySold); err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}
