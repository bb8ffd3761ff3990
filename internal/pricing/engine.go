package pricing

import "math"

// Item describes a line item used for totals calculation.
type Item struct {
	Qty            float64
	UnitPriceCents Money
}

// Summary aggregates computed invoice totals.
type Summary struct {
	SubtotalCents Money
	TaxCents      Money
	TotalCents    Money
}

// Compute calculates invoice totals from the current line items and the stored tax amount.
func Compute(items []Item, taxCents Money) Summary {
	var subtotal Money
	for _, it := range items {
		subtotal = add(subtotal, LineTotal(it.Qty, it.UnitPriceCents))
	}
	return Summary{
		SubtotalCents: subtotal,
		TaxCents:      taxCents,
		TotalCents:    add(subtotal, taxCents),
	}
}

// add saturates at the int64 bounds instead of wrapping.
func add(a, b Money) Money {
	sum := a + b
	switch {
	case a > 0 && b > 0 && sum < 0:
		return math.MaxInt64
	case a < 0 && b < 0 && sum >= 0:
		return math.MinInt64
	}
	return sum
}
