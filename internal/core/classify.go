package core

import "github.com/shopspring/decimal"

// Direction classifies the sign of a ledger amount.
type Direction int

const (
	Neutral Direction = iota
	Increase
	Decrease
)

// DirectionOf returns Increase for positive, Decrease for negative and
// Neutral for zero amounts.
func DirectionOf(v decimal.Decimal) Direction {
	switch v.Sign() {
	case 1:
		return Increase
	case -1:
		return Decrease
	default:
		return Neutral
	}
}

// Icon is the glyph shown next to a ledger row.
func (d Direction) Icon() string {
	switch d {
	case Increase:
		return "↑"
	case Decrease:
		return "↓"
	default:
		return "·"
	}
}

// IconClass styles the icon tile: positive, negative or mixed.
func (d Direction) IconClass() string {
	switch d {
	case Increase:
		return "li-pos"
	case Decrease:
		return "li-neg"
	default:
		return "li-mix"
	}
}

// ColorClass styles the amount text.
func (d Direction) ColorClass() string {
	switch d {
	case Increase:
		return "pos-color"
	case Decrease:
		return "neg-color"
	default:
		return "neutral-color"
	}
}

func (d Direction) String() string {
	switch d {
	case Increase:
		return "increase"
	case Decrease:
		return "decrease"
	default:
		return "neutral"
	}
}

// Label returns "Credit", "Debit" or an em-dash placeholder for zero.
func Label(v decimal.Decimal) string {
	switch DirectionOf(v) {
	case Increase:
		return "Credit"
	case Decrease:
		return "Debit"
	default:
		return "—"
	}
}
