// Package memory is an in-process ledger source used for local development
// and tests. It accepts any non-empty access token.
package memory

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"finview/internal/core"
	ports "finview/internal/sheets"
)

// Seed file names looked up by NewFromFiles.
const (
	TotalsFile = "seed_totals.csv"
	LedgerFile = "seed_ledger.csv"
)

type Store struct {
	mu    sync.Mutex
	raw   core.RawLedger
	err   error
	reads int
}

var _ ports.LedgerReader = (*Store)(nil)

func New(raw core.RawLedger) *Store {
	return &Store{raw: cloneRaw(raw)}
}

// NewFromFiles loads the totals row and ledger rows from CSV seeds in base.
// Missing or unreadable seeds fall back to the built-in sample ledger.
func NewFromFiles(base string) *Store {
	totals := readCSV(filepath.Join(base, TotalsFile))
	rows := readCSV(filepath.Join(base, LedgerFile))
	if len(totals) == 0 && len(rows) == 0 {
		return New(SampleLedger())
	}
	raw := core.RawLedger{Rows: rows}
	if len(totals) > 0 {
		raw.Totals = totals[0]
	}
	return New(raw)
}

// SampleLedger is a small ledger in sheet order (oldest row first).
func SampleLedger() core.RawLedger {
	return core.RawLedger{
		Totals: []string{"$1,204.37", "$6,850.00", "$412.50"},
		Rows: [][]string{
			{"Opening balance", "$1,000.00", "$5,000.00", "$250.00"},
			{"Paycheck", "$1,850.00", "$1,500.00", "$185.00"},
			{"Rent", "-$1,200.00"},
			{"Groceries", "-$142.18"},
			{"Food shelf donation", "", "", "-$40.00"},
			{"Emergency fund top-up", "-$300.00", "$300.00"},
			{"Coffee", "-$4.75"},
			{"Church", "", "", "-$60.00"},
			{"Bookstore", "-$37.20"},
			{"Car repair fund", "", "$50.00"},
			{"Gas", "$38.50"},
			{"Birthday gift", "", "", "$77.50"},
		},
	}
}

// ReadLedger returns a copy of the stored ledger.
func (s *Store) ReadLedger(_ context.Context, accessToken string) (core.RawLedger, error) {
	if strings.TrimSpace(accessToken) == "" {
		return core.RawLedger{}, ports.ErrUnauthorized
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.err != nil {
		return core.RawLedger{}, s.err
	}
	return cloneRaw(s.raw), nil
}

// Set replaces the stored ledger.
func (s *Store) Set(raw core.RawLedger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw = cloneRaw(raw)
}

// Fail makes subsequent reads return err until cleared with Fail(nil).
func (s *Store) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Reads reports how many fetches have been served.
func (s *Store) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

func readCSV(path string) [][]string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.Comment = '#'
	r.TrimLeadingSpace = true

	var out [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return out
		}
		out = append(out, rec)
	}
	return out
}

func cloneRaw(in core.RawLedger) core.RawLedger {
	out := core.RawLedger{}
	if in.Totals != nil {
		out.Totals = append([]string(nil), in.Totals...)
	}
	if in.Rows != nil {
		out.Rows = make([][]string, len(in.Rows))
		for i, row := range in.Rows {
			out.Rows[i] = append([]string(nil), row...)
		}
	}
	return out
}
