package core

import (
	"testing"
	"time"
)

func TestMonthBounds(t *testing.T) {
	start, end, err := monthBounds("2026-02", time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantStart := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if !start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", start, wantStart)
	}
	if !end.Equal(wantEnd) {
		t.Errorf("end = %v, want %v", end, wantEnd)
	}
}

func TestMonthBounds_RespectsLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	start, _, err := monthBounds("2026-06", loc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start.Location().String() != loc.String() {
		t.Errorf("start location = %v, want %v", start.Location(), loc)
	}
	// June 1 midnight in New York is 04:00 UTC (EDT).
	if got := start.UTC().Hour(); got != 4 {
		t.Errorf("start.UTC().Hour() = %d, want 4", got)
	}
}

func TestMonthBounds_RejectsBadFormat(t *testing.T) {
	if _, _, err := monthBounds("2026/06", time.UTC); err == nil {
		t.Fatal("expected an error for a malformed ym")
	}
}

func TestDecimalAccumulator(t *testing.T) {
	var acc decimalAccumulator
	acc.add(decimalFromInt(3))
	acc.add(decimalFromInt(4))
	if got := acc.sum.IntPart(); got != 7 {
		t.Errorf("sum = %d, want 7", got)
	}
}
