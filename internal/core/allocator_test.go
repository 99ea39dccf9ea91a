package core_test

import (
	"testing"

	"landedcost/internal/core"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestAllocateBatch_ProratesByCBMAndFOBShare(t *testing.T) {
	batch := core.Batch{BatchID: "B1", FreightTotal: dec("300"), ClearanceTotal: dec("150")}
	items := []core.InboundItem{
		{BatchID: "B1", InternalSKU: "sku-a", Category: "toys", QtyIn: 100, FOBUnit: dec("2.00"), CBMPerUnit: dec("0.01")},
		{BatchID: "B1", InternalSKU: "sku-b", Category: "toys", QtyIn: 50, FOBUnit: dec("4.00"), CBMPerUnit: dec("0.02")},
	}
	dutyPools := []core.DutyPool{{BatchID: "B1", Category: "toys", DutyTotal: dec("80")}}

	costs, warnings, err := core.AllocateBatch(batch, items, dutyPools)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %+v", warnings)
	}

	// Each item contributes 1 CBM (100*0.01 = 50*0.02 = 1, 2 CBM in all); each
	// item's CBM share is therefore 0.5, so freight/clearance split evenly per-batch.
	// FOB totals: sku-a = 200, sku-b = 200, so duty also splits evenly.
	byKSU := make(map[string]core.LotCost)
	for _, c := range costs {
		byKSU[c.InternalSKU] = c
	}

	a, b := byKSU["sku-a"], byKSU["sku-b"]
	if !a.FreightUnit.Mul(decimal.NewFromInt(100)).Equal(dec("150")) {
		t.Errorf("sku-a freight total = %s, want 150", a.FreightUnit.Mul(decimal.NewFromInt(100)))
	}
	if !b.FreightUnit.Mul(decimal.NewFromInt(50)).Equal(dec("150")) {
		t.Errorf("sku-b freight total = %s, want 150", b.FreightUnit.Mul(decimal.NewFromInt(50)))
	}
	if !a.DutyUnit.Mul(decimal.NewFromInt(100)).Equal(dec("40")) {
		t.Errorf("sku-a duty total = %s, want 40", a.DutyUnit.Mul(decimal.NewFromInt(100)))
	}
}

func TestAllocateBatch_Deterministic(t *testing.T) {
	batch := core.Batch{BatchID: "B1", FreightTotal: dec("90"), ClearanceTotal: dec("30")}
	forward := []core.InboundItem{
		{BatchID: "B1", InternalSKU: "sku-a", Category: "x", QtyIn: 10, FOBUnit: dec("1"), CBMPerUnit: dec("1")},
		{BatchID: "B1", InternalSKU: "sku-b", Category: "x", QtyIn: 20, FOBUnit: dec("1"), CBMPerUnit: dec("1")},
	}
	reversed := []core.InboundItem{forward[1], forward[0]}

	costsA, _, err := core.AllocateBatch(batch, forward, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	costsB, _, err := core.AllocateBatch(batch, reversed, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff(costsA, costsB); diff != "" {
		t.Errorf("allocation depends on input order (-forward +reversed):\n%s", diff)
	}
}

func TestAllocateBatch_ZeroCBMWarnsAndZerosShares(t *testing.T) {
	batch := core.Batch{BatchID: "B1", FreightTotal: dec("100"), ClearanceTotal: dec("50")}
	items := []core.InboundItem{
		{BatchID: "B1", InternalSKU: "sku-a", Category: "x", QtyIn: 10, FOBUnit: dec("1"), CBMPerUnit: dec("0")},
	}

	costs, warnings, err := core.AllocateBatch(batch, items, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 1 || warnings[0].Kind != core.KindZeroDenominator {
		t.Fatalf("expected one ZeroDenominator warning, got %+v", warnings)
	}
	if !costs[0].FreightUnit.IsZero() || !costs[0].ClearanceUnit.IsZero() {
		t.Errorf("expected zeroed freight/clearance shares, got %+v", costs[0])
	}
}

func TestAllocateBatch_DutyPoolWithoutMatchingCategoryWarns(t *testing.T) {
	batch := core.Batch{BatchID: "B1"}
	items := []core.InboundItem{
		{BatchID: "B1", InternalSKU: "sku-a", Category: "toys", QtyIn: 10, FOBUnit: dec("1"), CBMPerUnit: dec("1")},
	}
	dutyPools := []core.DutyPool{{BatchID: "B1", Category: "electronics", DutyTotal: dec("20")}}

	_, warnings, err := core.AllocateBatch(batch, items, dutyPools)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found := false
	for _, w := range warnings {
		if w.Kind == core.KindUnmappedSku {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an UnmappedSku warning for the orphan duty pool, got %+v", warnings)
	}
}

func TestAllocateBatch_RejectsMismatchedBatchID(t *testing.T) {
	batch := core.Batch{BatchID: "B1"}
	items := []core.InboundItem{{BatchID: "B2", InternalSKU: "sku-a", QtyIn: 1}}

	_, _, err := core.AllocateBatch(batch, items, nil)
	if err == nil {
		t.Fatal("expected an error for a mismatched batch_id")
	}
}

func TestAllocateBatch_RejectsNonPositiveQty(t *testing.T) {
	batch := core.Batch{BatchID: "B1"}
	items := []core.InboundItem{{BatchID: "B1", InternalSKU: "sku-a", QtyIn: 0}}

	_, _, err := core.AllocateBatch(batch, items, nil)
	if err == nil {
		t.Fatal("expected an error for qty_in <= 0")
	}
}
