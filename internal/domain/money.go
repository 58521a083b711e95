package domain

import "github.com/shopspring/decimal"

// currencyExponents lists the currencies invoices may be paid in, with their
// minor-unit digits. USDC invoices are kept in cents like USD; the rail
// rescales to token decimals.
var currencyExponents = map[string]int32{
	"USD": 2, "EUR": 2, "GBP": 2, "CAD": 2, "AUD": 2, "CHF": 2,
	"SGD": 2, "MXN": 2, "INR": 2, "BRL": 2, "USDC": 2,
	"JPY": 0, "KRW": 0,
}

// MinorUnitExponent returns the number of minor-unit digits of a currency.
// Unknown currencies are treated as two-digit.
func MinorUnitExponent(currency string) int32 {
	if exp, ok := currencyExponents[currency]; ok {
		return exp
	}
	return 2
}

// ToMajor converts a minor-unit amount to currency units.
func ToMajor(minor int64, currency string) decimal.Decimal {
	return decimal.New(minor, -MinorUnitExponent(currency))
}

// ToMinor converts currency units to minor units, rounding half away from zero.
func ToMinor(major decimal.Decimal, currency string) int64 {
	return major.Shift(MinorUnitExponent(currency)).Round(0).IntPart()
}

// AbsDiff returns |a-b| for minor-unit amounts.
func AbsDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
