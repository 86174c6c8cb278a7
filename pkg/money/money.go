// Package money formats rupee amounts and percentages for exports and sheets.
package money

import "github.com/shopspring/decimal"

// Fixed renders v with exactly places decimals, rounding half away from zero.
func Fixed(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}

// Plain renders v in its shortest exact form without trailing zeros.
func Plain(v float64) string {
	return decimal.NewFromFloat(v).String()
}

// Round returns v rounded to places decimals.
func Round(v float64, places int32) float64 {
	out, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return out
}

// Rupees renders v as a rupee amount with two decimals. Negative amounts
// keep the sign before the symbol.
func Rupees(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	if d.IsNegative() {
		return "-₹" + d.Neg().StringFixed(2)
	}
	return "₹" + d.StringFixed(2)
}

// Percent renders v with one decimal and a percent sign.
func Percent(v float64) string {
	return Fixed(v, 1) + "%"
}
