package entity

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Equal compares two canonical field values. Null equals null; null
// against any present value is a difference. Decimals compare
// numerically, so 1.50 equals 1.5000. Dates compare by instant.
func Equal(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	switch av := a.(type) {
	case decimal.Decimal:
		bv, ok := b.(decimal.Decimal)
		return ok && av.Equal(bv)
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	case int64:
		bv, ok := b.(int64)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	default:
		return a == b
	}
}

// Render returns the canonical string form of a present value: dates as
// YYYY-MM-DD, decimals with two places, integers in base ten.
func Render(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case decimal.Decimal:
		return val.StringFixed(2)
	case time.Time:
		return val.Format(time.DateOnly)
	default:
		return fmt.Sprintf("%v", val)
	}
}
