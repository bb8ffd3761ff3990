package pricing

import (
	"math"
	"strconv"
)

// Money represents a monetary value stored in minor units (cents).
type Money = int64

// MaxCents bounds every amount the package produces. Beyond 2^53 a float64
// no longer holds whole cents exactly.
const MaxCents Money = 1 << 53

// InRange reports whether x is a finite amount no larger than MaxCents in
// magnitude.
func InRange(x float64) bool {
	return !math.IsNaN(x) && math.Abs(x) <= float64(MaxCents)
}

// Round returns the nearest integer to x, resolving .5 ties toward positive
// infinity (2.5 -> 3, -2.5 -> -2). NaN rounds to 0; values past MaxCents
// saturate at ±MaxCents.
func Round(x float64) Money {
	switch {
	case math.IsNaN(x):
		return 0
	case x >= float64(MaxCents):
		return MaxCents
	case x <= -float64(MaxCents):
		return -MaxCents
	}
	f := math.Floor(x)
	if x-f >= 0.5 {
		f++
	}
	return Money(f)
}

// ToCents converts a price expressed in major units (12.5 meaning 12.50) to cents.
func ToCents(price float64) Money {
	return Round(price * 100)
}

// LineTotal is qty × unit price rounded to a whole cent.
func LineTotal(qty float64, unitPriceCents Money) Money {
	return Round(qty * float64(unitPriceCents))
}

// Format renders cents as a decimal string with exactly two fraction digits.
func Format(cents Money) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	whole := cents / 100
	frac := cents % 100
	out := sign + strconv.FormatInt(whole, 10) + "."
	if frac < 10 {
		out += "0"
	}
	return out + strconv.FormatInt(frac, 10)
}
