// Package core provides the ledger domain: amount parsing, aggregation,
// affordability estimation and the pure formatting helpers used to render it.
//
// This file contains the tolerant amount parser used for spreadsheet cells and
// the currency formatting built on go-money.
package core

import (
	"fmt"
	"math"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// minusSign is U+2212, used instead of a hyphen for negative amounts.
const minusSign = "−"

var cellNoise = strings.NewReplacer("$", "", ",", "")

// maxMinorUnits is the largest amount go-money can hold in minor units.
var maxMinorUnits = decimal.NewFromInt(math.MaxInt64)

// ParseAmount converts a spreadsheet cell into a decimal amount.
//
// Currency symbols and thousands separators are stripped before parsing.
// Any value that still fails to parse, including the empty string, yields
// zero: a corrupt cell degrades to "no value" instead of failing the fetch.
//
// Examples:
//
//	ParseAmount("$1,234.50") -> 1234.5
//	ParseAmount("-42")       -> -42
//	ParseAmount("n/a")       -> 0
func ParseAmount(s string) decimal.Decimal {
	s = strings.TrimSpace(cellNoise.Replace(s))
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// MoneyFormatter renders amounts in a fixed display currency.
type MoneyFormatter struct {
	currency *money.Currency
}

// NewMoneyFormatter returns a formatter for an ISO 4217 currency code.
func NewMoneyFormatter(code string) (MoneyFormatter, error) {
	cur := money.GetCurrency(strings.ToUpper(strings.TrimSpace(code)))
	if cur == nil {
		return MoneyFormatter{}, fmt.Errorf("unsupported currency %q", code)
	}
	return MoneyFormatter{currency: cur}, nil
}

var usd = MoneyFormatter{currency: money.GetCurrency(money.USD)}

// USD is the default display formatter.
func USD() MoneyFormatter { return usd }

// Abs renders the absolute value with thousands separators and the
// currency's minor digits, e.g. "$1,234.50".
func (f MoneyFormatter) Abs(v decimal.Decimal) string {
	minor := v.Abs().Shift(int32(f.currency.Fraction)).Round(0)
	if minor.GreaterThan(maxMinorUnits) {
		return f.displayLarge(minor)
	}
	return money.New(minor.IntPart(), f.currency.Code).Display()
}

// displayLarge renders a minor-unit amount that overflows int64 using the
// currency's own template and separators.
func (f MoneyFormatter) displayLarge(minor decimal.Decimal) string {
	digits := minor.String()
	frac := f.currency.Fraction
	for len(digits) <= frac {
		digits = "0" + digits
	}
	whole, cents := digits[:len(digits)-frac], digits[len(digits)-frac:]

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteString(f.currency.Thousand)
		}
		b.WriteRune(r)
	}
	if frac > 0 {
		b.WriteString(f.currency.Decimal)
		b.WriteString(cents)
	}

	out := strings.Replace(f.currency.Template, "1", b.String(), 1)
	return strings.Replace(out, "$", f.currency.Grapheme, 1)
}

// Signed renders "+$12.30" or "−$42.50"; zero renders as "$0.00" with no sign.
func (f MoneyFormatter) Signed(v decimal.Decimal) string {
	switch v.Sign() {
	case 0:
		return f.Abs(decimal.Zero)
	case 1:
		return "+" + f.Abs(v)
	default:
		return minusSign + f.Abs(v)
	}
}

// Rate renders an hourly wage rounded to whole units, e.g. "$25/hr".
func (f MoneyFormatter) Rate(v decimal.Decimal) string {
	return f.currency.Grapheme + v.Round(0).String() + "/hr"
}

// FormatSigned formats v in USD with an explicit sign glyph.
func FormatSigned(v decimal.Decimal) string { return usd.Signed(v) }

// FormatAbs formats |v| in USD.
func FormatAbs(v decimal.Decimal) string { return usd.Abs(v) }

// FormatPercent renders a fraction as a percentage without trailing zeros:
// 0.07375 becomes "7.375%".
func FormatPercent(fraction decimal.Decimal) string {
	return fraction.Shift(2).String() + "%"
}
