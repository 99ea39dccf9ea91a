package core

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"landedcost/internal/logging"

	"github.com/jackc/pgx/v5/pgxpool"
)

// requiredSalesColumns are the required column tokens of the CSV ingest
// contract (§6) that have no alias, matched case-insensitively and
// whitespace-tolerant. The aliased required columns are checked by
// looksLikeSalesHeader instead: "date/time" may arrive as separate "date"
// and "time" columns (a tolerance carried over from the original Python
// loader), "sku" accepts the "amazon_sku" alias and "quantity" accepts the
// "qty" alias.
var requiredSalesColumns = []string{"order id", "type"}

// SalesService imports raw marketplace transactions and normalizes them
// into an ordered internal-SKU demand stream.
type SalesService interface {
	// ImportSalesRaw parses csvBytes per the CSV ingest contract and
	// appends rows to sales_raw, deduplicated by
	// (marketplace, order_id, amazon_sku, happened_at). If replaceRange is
	// true, existing sales_raw rows whose happened_at falls within the
	// incoming file's [min, max] timestamp range are deleted first — the
	// prototype's wipe-then-reinsert behavior, opt-in here.
	ImportSalesRaw(ctx context.Context, csvBytes []byte, defaultMarketplace string, replaceRange bool) (nRows int, skipped []Warning, err error)

	// NormalizeMonth projects sales_raw for ym (in the configured reporting
	// timezone) into a canonically ordered demand stream, expanding kits
	// via sku_map. marketplace, if non-empty, filters to one marketplace.
	NormalizeMonth(ctx context.Context, ym string, marketplace string) ([]Demand, []Warning, error)
}

type salesService struct {
	pool      *pgxpool.Pool
	catalog   CatalogService
	orderLabel string
	loc       *time.Location
	logger    logging.Logger
}

func NewSalesService(pool *pgxpool.Pool, catalog CatalogService, orderLabel string, loc *time.Location, logger logging.Logger) SalesService {
	if orderLabel == "" {
		orderLabel = "order"
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &salesService{pool: pool, catalog: catalog, orderLabel: orderLabel, loc: loc, logger: logger}
}

type parsedSalesRow struct {
	HappenedAt  time.Time
	Type        string
	OrderID     string
	Marketplace string
	AmazonSKU   string
	Qty         int64
}

func (s *salesService) ImportSalesRaw(ctx context.Context, csvBytes []byte, defaultMarketplace string, replaceRange bool) (int, []Warning, error) {
	rows, warnings, err := parseSalesCSV(csvBytes, defaultMarketplace)
	if err != nil {
		return 0, nil, err
	}
	if len(rows) == 0 {
		return 0, warnings, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, nil, wrapError(KindStoreError, err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	if replaceRange {
		minT, maxT := rows[0].HappenedAt, rows[0].HappenedAt
		for _, r := range rows {
			if r.HappenedAt.Before(minT) {
				minT = r.HappenedAt
			}
			if r.HappenedAt.After(maxT) {
				maxT = r.HappenedAt
			}
		}
		if _, err := tx.Exec(ctx, `
			DELETE FROM sales_raw WHERE happened_at >= $1 AND happened_at <= $2
		`, minT, maxT); err != nil {
			return 0, nil, wrapError(KindStoreError, err, "failed to clear replace-range for sales_raw import")
		}
	}

	n := 0
	for _, r := range rows {
		tag, err := tx.Exec(ctx, `
			INSERT INTO sales_raw (happened_at, type, order_id, marketplace, amazon_sku, qty, payload)
			VALUES ($1, $2, $3, $4, $5, $6, '')
			ON CONFLICT (marketplace, order_id, amazon_sku, happened_at) DO NOTHING
		`, r.HappenedAt, r.Type, r.OrderID, r.Marketplace, r.AmazonSKU, r.Qty)
		if err != nil {
			return 0, nil, wrapError(KindStoreError, err, "failed to insert sales_raw row for order %s", r.OrderID)
		}
		n += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, nil, wrapError(KindStoreError, err, "failed to commit sales import")
	}
	return n, warnings, nil
}

// parseSalesCSV tolerantly locates the header (skipping any preface lines),
// maps aliased columns, and parses every data row. Rows with a
// non-numeric quantity are skipped with a warning rather than failing the
// whole import.
func parseSalesCSV(csvBytes []byte, defaultMarketplace string) ([]parsedSalesRow, []Warning, error) {
	scanner := bufio.NewScanner(bytes.NewReader(csvBytes))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var headerLine string
	var prefaceLines int
	for scanner.Scan() {
		line := scanner.Text()
		if looksLikeSalesHeader(line) {
			headerLine = line
			break
		}
		prefaceLines++
	}
	if headerLine == "" {
		return nil, nil, newError(KindInvalidInbound, "sales CSV: no header line found containing required columns %v", requiredSalesColumns)
	}

	rest := io.MultiReader(strings.NewReader(headerLine+"\n"), remainderReader(csvBytes, prefaceLines))
	r := csv.NewReader(rest)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, nil, wrapError(KindInvalidInbound, err, "sales CSV: failed to read header")
	}
	idx := indexSalesColumns(header)

	var rows []parsedSalesRow
	var warnings []Warning
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, wrapError(KindInvalidInbound, err, "sales CSV: failed to read row")
		}

		get := func(col string) string {
			i, ok := idx[col]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		qtyStr := get("quantity")
		qty, err := strconv.ParseInt(qtyStr, 10, 64)
		if err != nil {
			warnings = append(warnings, Warning{Kind: KindInvalidInbound, Message: fmt.Sprintf("sales row for order %s: quantity %q is not numeric, row skipped", get("order id"), qtyStr)})
			continue
		}

		happenedAt, err := parseSalesTimestamp(get, idx)
		if err != nil {
			warnings = append(warnings, Warning{Kind: KindInvalidInbound, Message: fmt.Sprintf("sales row for order %s: %v, row skipped", get("order id"), err)})
			continue
		}

		marketplace := get("marketplace")
		if marketplace == "" {
			marketplace = defaultMarketplace
		}

		rows = append(rows, parsedSalesRow{
			HappenedAt:  happenedAt.UTC(),
			Type:        get("type"),
			OrderID:     get("order id"),
			Marketplace: marketplace,
			AmazonSKU:   get("sku"),
			Qty:         qty,
		})
	}

	return rows, warnings, nil
}

func parseSalesTimestamp(get func(string) string, idx map[string]int) (time.Time, error) {
	if dt := get("date/time"); dt != "" {
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, dt); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("unparseable date/time %q", dt)
	}
	if _, hasDate := idx["date"]; hasDate {
		d, t := get("date"), get("time")
		combined := strings.TrimSpace(d + " " + t)
		for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02"} {
			if parsed, err := time.Parse(layout, combined); err == nil {
				return parsed, nil
			}
		}
		return time.Time{}, fmt.Errorf("unparseable date/time %q", combined)
	}
	return time.Time{}, fmt.Errorf("no date/time column found")
}

// looksLikeSalesHeader reports whether line, split on commas and normalized,
// contains every required column token.
func looksLikeSalesHeader(line string) bool {
	tokens := make(map[string]bool)
	for _, f := range strings.Split(line, ",") {
		tokens[normalizeColumn(f)] = true
	}
	for _, req := range requiredSalesColumns {
		if !tokens[req] {
			return false
		}
	}
	hasQty := tokens["quantity"] || tokens["qty"]
	hasSku := tokens["sku"] || tokens["amazon_sku"]
	hasTime := tokens["date/time"] || (tokens["date"] && tokens["time"])
	return hasQty && hasSku && hasTime
}

func normalizeColumn(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func indexSalesColumns(header []string) map[string]int {
	idx := make(map[string]int)
	for i, h := range header {
		col := normalizeColumn(h)
		switch col {
		case "amazon_sku":
			idx["sku"] = i
		case "qty":
			idx["quantity"] = i
		default:
			idx[col] = i
		}
	}
	return idx
}

// remainderReader returns a reader over csvBytes' lines after skipping n
// preface lines and the header line itself (the header was already fed to
// the csv.Reader as the synthetic first line).
func remainderReader(csvBytes []byte, prefaceLines int) io.Reader {
	scanner := bufio.NewScanner(bytes.NewReader(csvBytes))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var buf bytes.Buffer
	skip := prefaceLines + 1 // preface lines + the header line we already matched
	i := 0
	for scanner.Scan() {
		if i >= skip {
			buf.WriteString(scanner.Text())
			buf.WriteByte('\n')
		}
		i++
	}
	return &buf
}

func (s *salesService) NormalizeMonth(ctx context.Context, ym string, marketplace string) ([]Demand, []Warning, error) {
	start, end, err := monthBounds(ym, s.loc)
	if err != nil {
		return nil, nil, newError(KindInvalidInbound, "invalid ym %q: %v", ym, err)
	}

	q := `
		SELECT happened_at, type, order_id, marketplace, amazon_sku, qty
		FROM sales_raw
		WHERE happened_at >= $1 AND happened_at < $2 AND qty > 0
	`
	args := []any{start.UTC(), end.UTC()}
	if marketplace != "" {
		q += " AND marketplace = $3"
		args = append(args, marketplace)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, nil, wrapError(KindStoreError, err, "failed to query sales_raw for %s", ym)
	}
	defer rows.Close()

	var warnings []Warning
	type rawRow struct {
		HappenedAt  time.Time
		Type        string
		OrderID     string
		Marketplace string
		AmazonSKU   string
		Qty         int64
	}
	var raws []rawRow
	for rows.Next() {
		var r rawRow
		if err := rows.Scan(&r.HappenedAt, &r.Type, &r.OrderID, &r.Marketplace, &r.AmazonSKU, &r.Qty); err != nil {
			return nil, nil, fmt.Errorf("failed to scan sales_raw row: %w", err)
		}
		raws = append(raws, r)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating sales_raw: %w", err)
	}

	var demands []Demand
	for _, r := range raws {
		if !strings.EqualFold(r.Type, s.orderLabel) {
			continue // refunds and anything else flow through the Reversal Service, not here.
		}

		maps, err := s.catalog.ResolveSkuMap(ctx, r.Marketplace, r.AmazonSKU)
		if err != nil {
			return nil, nil, err
		}

		if len(maps) == 0 {
			msg := fmt.Sprintf("order %s: amazon_sku %s has no active sku_map in marketplace %s", r.OrderID, r.AmazonSKU, r.Marketplace)
			warnings = append(warnings, Warning{Kind: KindUnmappedSku, Message: msg})
			s.logger.Warn(msg,
				logging.Fields.OrderID(r.OrderID),
				logging.Fields.Marketplace(r.Marketplace),
				logging.Fields.YM(ym),
				logging.Fields.Warning(string(KindUnmappedSku), msg))
			continue
		}

		for seq, m := range maps {
			qty := m.UnitMultiplier.Mul(decimalFromInt(r.Qty))
			demands = append(demands, Demand{
				OrderID:         r.OrderID,
				InternalSKU:     m.InternalSKU,
				Seq:             seq,
				HappenedAt:      r.HappenedAt,
				Marketplace:     r.Marketplace,
				Qty:             qty.IntPart(),
				SourceAmazonSKU: r.AmazonSKU,
			})
		}
	}

	sort.Slice(demands, func(i, j int) bool {
		a, b := demands[i], demands[j]
		if !a.HappenedAt.Equal(b.HappenedAt) {
			return a.HappenedAt.Before(b.HappenedAt)
		}
		if a.OrderID != b.OrderID {
			return a.OrderID < b.OrderID
		}
		if a.InternalSKU != b.InternalSKU {
			return a.InternalSKU < b.InternalSKU
		}
		return a.SourceAmazonSKU < b.SourceAmazonSKU
	})

	return demands, warnings, nil
}
