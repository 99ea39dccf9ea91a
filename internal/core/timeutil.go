package core

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// monthBounds returns the [start, end) window for ym ("YYYY-MM") in loc, per
// §6's "month boundaries are [first_of_month 00:00 tz, first_of_next_month
// 00:00 tz)" rule.
func monthBounds(ym string, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	start, err := time.ParseInLocation("2006-01", ym, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("expected YYYY-MM, got %q: %w", ym, err)
	}
	end := start.AddDate(0, 1, 0)
	return start, end, nil
}

func decimalFromInt(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// decimalAccumulator sums decimal.Decimal values starting from zero without
// the caller needing to seed an initial value.
type decimalAccumulator struct {
	sum decimal.Decimal
}

func (d *decimalAccumulator) add(v decimal.Decimal) {
	d.sum = d.sum.Add(v)
}
