package core

import (
	"testing"
)

func TestLooksLikeSalesHeader(t *testing.T) {
	cases := []struct {
		line string
		want bool
	}{
		{"Date/Time, Type, Order ID, SKU, Quantity", true},
		{"date, time, type, order id, amazon_sku, qty", true},
		{"Settlement report generated 2026-06-30", false},
		{"Type, Order ID, SKU", false}, // missing quantity/time
	}
	for _, c := range cases {
		if got := looksLikeSalesHeader(c.line); got != c.want {
			t.Errorf("looksLikeSalesHeader(%q) = %v, want %v", c.line, got, c.want)
		}
	}
}

func TestIndexSalesColumns_ResolvesAliases(t *testing.T) {
	idx := indexSalesColumns([]string{"Date/Time", "Type", "Order ID", "amazon_sku", "qty"})
	if _, ok := idx["sku"]; !ok {
		t.Error("expected amazon_sku to alias to sku")
	}
	if _, ok := idx["quantity"]; !ok {
		t.Error("expected qty to alias to quantity")
	}
}

func TestParseSalesCSV_TolerantOfPrefaceAndBadQuantity(t *testing.T) {
	csvBytes := []byte("Settlement export for account XYZ\n" +
		"generated 2026-06-30T00:00:00Z\n" +
		"date/time,type,order id,sku,quantity,marketplace\n" +
		"2026-06-01 10:00:00,Order,ORD-1,sku-a,2,US\n" +
		"2026-06-02 11:00:00,Refund,ORD-1,sku-a,2,US\n" +
		"2026-06-03 12:00:00,Order,ORD-2,sku-b,bad-qty,US\n")

	rows, warnings, err := parseSalesCSV(csvBytes, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 parsed rows (1 skipped for bad qty), got %d: %+v", len(rows), rows)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning for the non-numeric quantity row, got %+v", warnings)
	}
	if rows[0].OrderID != "ORD-1" || rows[0].Type != "Order" {
		t.Errorf("unexpected first row: %+v", rows[0])
	}
	if rows[1].Type != "Refund" {
		t.Errorf("unexpected second row: %+v", rows[1])
	}
}

func TestParseSalesCSV_NoHeaderFound(t *testing.T) {
	_, _, err := parseSalesCSV([]byte("just some text\nwith no header row\n"), "")
	if err == nil {
		t.Fatal("expected an error when no header line is found")
	}
}

func TestParseSalesTimestamp_SplitDateTimeColumns(t *testing.T) {
	idx := map[string]int{"date": 0, "time": 1}
	get := func(col string) string {
		switch col {
		case "date":
			return "2026-06-15"
		case "time":
			return "14:30:00"
		}
		return ""
	}
	ts, err := parseSalesTimestamp(get, idx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.Hour() != 14 || ts.Minute() != 30 {
		t.Errorf("parsed timestamp = %v, want 14:30", ts)
	}
}
