package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is long-lived catalog master data. CBMPerUnit is required only for
// products that participate in CBM-allocated batches.
type Product struct {
	InternalSKU string
	Category    string
	CBMPerUnit  decimal.Decimal
}

// Batch is a single container arrival treated as an indivisible cost unit.
type Batch struct {
	BatchID          string
	InboundDate      time.Time
	FreightTotal     decimal.Decimal
	ClearanceTotal   decimal.Decimal
	DestMarketplace  string
	Note             string
}

// InboundItem is one (batch, internal_sku) line of an arrival.
type InboundItem struct {
	BatchID     string
	InternalSKU string
	Category    string
	QtyIn       int64
	FOBUnit     decimal.Decimal
	CBMPerUnit  decimal.Decimal
}

// DutyPool is a (batch, category) bucket of customs duty allocated across
// items of that category in that batch by FOB-value share.
type DutyPool struct {
	BatchID   string
	Category  string
	DutyTotal decimal.Decimal
}

// SkuMap maps one marketplace SKU to one internal SKU with a multiplicity.
// A marketplace SKU with more than one active row, or a multiplier != 1, is
// a kit; one row with multiplier 1 is a plain SKU.
type SkuMap struct {
	Marketplace    string
	AmazonSKU      string
	InternalSKU    string
	UnitMultiplier decimal.Decimal
	Active         bool
}

// SalesRaw is one imported marketplace transaction row, prior to normalization.
type SalesRaw struct {
	ID          int64
	HappenedAt  time.Time
	Type        string
	OrderID     string
	Marketplace string
	AmazonSKU   string
	Qty         int64
	Payload     string
}

// Demand is one internal-SKU component of a marketplace order line, after
// kit expansion. Seq disambiguates multiple components of one order line.
type Demand struct {
	OrderID        string
	InternalSKU    string
	Seq            int
	HappenedAt     time.Time
	Marketplace    string
	Qty            int64
	SourceAmazonSKU string
}

// LotCost is the per-unit landed cost of a (batch, internal_sku) lot, owned
// exclusively by the Cost Allocator.
type LotCost struct {
	BatchID       string
	InternalSKU   string
	FOBUnit       decimal.Decimal
	FreightUnit   decimal.Decimal
	ClearanceUnit decimal.Decimal
	DutyUnit      decimal.Decimal
}

// LotBalance tracks how much of a lot has been sold. Owned by the FIFO
// Engine and Reversal Service; qty_sold <= qty_in at all times.
type LotBalance struct {
	BatchID     string
	InternalSKU string
	QtyIn       int64
	QtySold     int64
}

// AllocationDetail binds one sold unit (or run of units from a single lot)
// to the lot it was drawn from, with costs frozen at allocation time.
// Append-only except for ReversedBy, which may be set exactly once.
type AllocationDetail struct {
	ID            string
	HappenedAt    time.Time
	OrderID       string
	Marketplace   string
	InternalSKU   string
	BatchID       string
	Qty           int64
	FOBUnit       decimal.Decimal
	FreightUnit   decimal.Decimal
	ClearanceUnit decimal.Decimal
	DutyUnit      decimal.Decimal
	ReversedBy    *string
	ReversedAt    *time.Time
	ReversalNote  *string
}

// MonthSummary folds live allocation_detail for one (ym, marketplace) pair.
// A synthetic row with Marketplace == "ALL" aggregates across marketplaces.
type MonthSummary struct {
	YM          string
	Marketplace string
	Orders      int64
	Units       int64
	FOB         decimal.Decimal
	Freight     decimal.Decimal
	Clearance   decimal.Decimal
	Duty        decimal.Decimal
	UpdatedAt   time.Time
}

// MonthSummarySnapshot is an immutable, timestamped copy of a month_summary
// row, written by SnapshotMonth for point-in-time closing sign-off.
type MonthSummarySnapshot struct {
	SnapshotID  string
	YM          string
	Marketplace string
	Orders      int64
	Units       int64
	FOB         decimal.Decimal
	Freight     decimal.Decimal
	Clearance   decimal.Decimal
	Duty        decimal.Decimal
	TakenAt     time.Time
}

// Warning is a recoverable, per-row issue accumulated during a run and
// returned alongside ok=true per the error propagation policy.
type Warning struct {
	Kind    Kind
	Message string
	Detail  string
}
