// Package sheets defines the outbound port for reading the ledger
// spreadsheet. Adapters live in the google and memory subpackages.
package sheets

import (
	"context"
	"errors"

	"finview/internal/core"
)

// ErrUnauthorized is returned when the data source rejects the access token.
// Callers should drop the session and ask the user to sign in again.
var ErrUnauthorized = errors.New("sheets: access token rejected")

// Ports for outbound adapters.
type (
	// LedgerReader fetches the totals row and the transaction rows in a
	// single round trip. A failure aborts the whole fetch; no partial
	// ledger is ever returned.
	LedgerReader interface {
		ReadLedger(ctx context.Context, accessToken string) (core.RawLedger, error)
	}
)
