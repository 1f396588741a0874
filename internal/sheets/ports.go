// Package sheets defines the ledger export port. Adapters mirror each
// user's transactions into a spreadsheet.
package sheets

import (
	"context"

	"budgetwise/internal/core"
)

// LedgerExporter mirrors ledger changes to an external sheet. Every call
// must be safe to repeat, since events are delivered at least once.
type LedgerExporter interface {
	// AppendTransaction adds tx unless a row for it already exists.
	AppendTransaction(ctx context.Context, userID string, tx core.Transaction) error
	// DeleteTransaction removes the row for tx, if any.
	DeleteTransaction(ctx context.Context, userID string, tx core.Transaction) error
	// ReplaceLedger rewrites the user's rows for every year present in ledger.
	ReplaceLedger(ctx context.Context, userID string, ledger core.Ledger) error
}
