package money

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Round rounds v to the given number of decimal places, half away from zero.
// NaN and infinities are returned unchanged.
func Round(v float64, places int32) float64 {
	if !finite(v) {
		return v
	}
	if places < 0 {
		places = 0
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// Round2 rounds a monetary amount to cents.
func Round2(v float64) float64 {
	return Round(v, 2)
}

// Percent returns pct percent of base.
func Percent(base, pct float64) float64 {
	if !finite(base) || !finite(pct) {
		return base * pct / 100
	}
	return decimal.NewFromFloat(base).
		Mul(decimal.NewFromFloat(pct)).
		Div(decimal.NewFromInt(100)).
		InexactFloat64()
}

// FormatBRL renders v as Brazilian currency, e.g. "R$ 1.234,56" or
// "-R$ 0,50".
func FormatBRL(v float64) string {
	if !finite(v) {
		return "R$ " + strconv.FormatFloat(v, 'f', -1, 64)
	}
	d := decimal.NewFromFloat(v).Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	whole, cents, _ := strings.Cut(d.StringFixed(2), ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return sign + "R$ " + b.String() + "," + cents
}
