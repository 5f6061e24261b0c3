package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	Spending Category = "spending"
	Savings  Category = "savings"
	Giving   Category = "giving"
)

type (
	// Category names one of the three independent ledger columns.
	Category string

	// LedgerRow is one named ledger entry. Amounts are signed and a row may
	// carry non-zero amounts in more than one category.
	LedgerRow struct {
		Name     string
		Spending decimal.Decimal
		Savings  decimal.Decimal
		Giving   decimal.Decimal
	}

	// CategoryTotals are the authoritative balances read from the aggregate
	// row of the sheet. They are never derived from ledger rows.
	CategoryTotals struct {
		Spending decimal.Decimal
		Savings  decimal.Decimal
		Giving   decimal.Decimal
	}

	// RawLedger is the untyped payload delivered by a ledger data source:
	// the 3-cell totals row and the name/spending/savings/giving rows as they
	// appear top to bottom in the sheet.
	RawLedger struct {
		Totals []string
		Rows   [][]string
	}
)

var (
	ErrUnknownCategory   = errors.New("unknown category")
	ErrInvalidHourlyRate = errors.New("hourly rate must be greater than zero")
	ErrInvalidTaxRate    = errors.New("tax rate must not be negative")
)

// Categories lists the categories in dashboard order.
var Categories = []Category{Spending, Savings, Giving}

// ParseCategory maps a user supplied name to a Category, case-insensitively.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", ErrUnknownCategory
	}
	return c, nil
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case Spending, Savings, Giving:
		return true
	default:
		return false
	}
}

func (c Category) String() string {
	return string(c)
}

// Amount returns the row's amount in the given category.
func (r LedgerRow) Amount(c Category) decimal.Decimal {
	switch c {
	case Spending:
		return r.Spending
	case Savings:
		return r.Savings
	case Giving:
		return r.Giving
	default:
		return decimal.Zero
	}
}

// Get returns the authoritative total for the given category.
func (t CategoryTotals) Get(c Category) decimal.Decimal {
	switch c {
	case Spending:
		return t.Spending
	case Savings:
		return t.Savings
	case Giving:
		return t.Giving
	default:
		return decimal.Zero
	}
}
