package core

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// Ledger is an immutable, parsed view of one fetch. Rows are held in display
// order (most recent first); totals come from the sheet's aggregate row.
type Ledger struct {
	rows   []LedgerRow
	totals CategoryTotals
}

// NewLedger parses a raw payload into a Ledger.
//
// The sheet is appended at the bottom, so raw rows arrive oldest first. Rows
// whose name is blank are dropped, the remainder is reversed once to obtain
// display order. Cells are parsed with ParseAmount and never fail.
func NewLedger(raw RawLedger) *Ledger {
	rows := make([]LedgerRow, 0, len(raw.Rows))
	for _, cells := range raw.Rows {
		name := strings.TrimSpace(cell(cells, 0))
		if name == "" {
			continue
		}
		rows = append(rows, LedgerRow{
			Name:     name,
			Spending: ParseAmount(cell(cells, 1)),
			Savings:  ParseAmount(cell(cells, 2)),
			Giving:   ParseAmount(cell(cells, 3)),
		})
	}
	slices.Reverse(rows)
	return &Ledger{rows: rows, totals: ParseTotals(raw.Totals)}
}

// ParseTotals reads the spending, savings and giving balances from the
// aggregate row. Missing cells count as zero.
func ParseTotals(cells []string) CategoryTotals {
	return CategoryTotals{
		Spending: ParseAmount(cell(cells, 0)),
		Savings:  ParseAmount(cell(cells, 1)),
		Giving:   ParseAmount(cell(cells, 2)),
	}
}

func cell(cells []string, i int) string {
	if i < 0 || i >= len(cells) {
		return ""
	}
	return cells[i]
}

// Totals returns the authoritative category balances.
func (l *Ledger) Totals() CategoryTotals {
	return l.totals
}

// Rows returns every row in display order.
func (l *Ledger) Rows() []LedgerRow {
	return slices.Clone(l.rows)
}

// Len is the number of named rows in the ledger.
func (l *Ledger) Len() int {
	return len(l.rows)
}

// Display returns the rows with a non-zero amount in c, most recent first.
// Partitions are independent: a row can appear under several categories.
func (l *Ledger) Display(c Category) []LedgerRow {
	return Partition(l.rows, c)
}

// Chronological returns the same partition as Display, oldest first.
func (l *Ledger) Chronological(c Category) []LedgerRow {
	return Reversed(l.Display(c))
}

// Cumulative returns the running balance of c over chronological order.
func (l *Ledger) Cumulative(c Category) []decimal.Decimal {
	return CumulativeSum(l.Chronological(c), c)
}

// Search filters the display partition of c by name.
func (l *Ledger) Search(c Category, term string) []LedgerRow {
	return Search(l.Display(c), term)
}

// Partition keeps rows whose amount in c is non-zero, preserving order.
func Partition(rows []LedgerRow, c Category) []LedgerRow {
	out := make([]LedgerRow, 0, len(rows))
	for _, r := range rows {
		if !r.Amount(c).IsZero() {
			out = append(out, r)
		}
	}
	return out
}

// Reversed returns a reversed copy of rows.
func Reversed(rows []LedgerRow) []LedgerRow {
	out := slices.Clone(rows)
	slices.Reverse(out)
	return out
}

// CumulativeSum returns the running sum of column c over rows in the order
// given. [10, -5, 20] yields [10, 5, 25].
func CumulativeSum(rows []LedgerRow, c Category) []decimal.Decimal {
	out := make([]decimal.Decimal, len(rows))
	acc := decimal.Zero
	for i, r := range rows {
		acc = acc.Add(r.Amount(c))
		out[i] = acc
	}
	return out
}

// Search keeps rows whose name contains term, ignoring case. An empty or
// blank term returns rows unchanged.
func Search(rows []LedgerRow, term string) []LedgerRow {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return rows
	}
	out := make([]LedgerRow, 0, len(rows))
	for _, r := range rows {
		if strings.Contains(strings.ToLower(r.Name), term) {
			out = append(out, r)
		}
	}
	return out
}
