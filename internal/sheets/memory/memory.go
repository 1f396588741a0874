// Package memory is an in-process ledger exporter used when no spreadsheet
// is configured and in tests.
package memory

import (
	"context"
	"sync"

	"budgetwise/internal/core"
	ports "budgetwise/internal/sheets"
)

var _ ports.LedgerExporter = (*Exporter)(nil)

type Exporter struct {
	mu    sync.Mutex
	users map[string][]core.Transaction
}

func New() *Exporter {
	return &Exporter{users: make(map[string][]core.Transaction)}
}

func (e *Exporter) AppendTransaction(_ context.Context, userID string, tx core.Transaction) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, existing := range e.users[userID] {
		if existing.ID == tx.ID {
			return nil
		}
	}
	e.users[userID] = append(e.users[userID], tx)
	return nil
}

func (e *Exporter) DeleteTransaction(_ context.Context, userID string, tx core.Transaction) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	rows := e.users[userID]
	for i, existing := range rows {
		if existing.ID == tx.ID {
			e.users[userID] = append(rows[:i:i], rows[i+1:]...)
			return nil
		}
	}
	return nil
}

func (e *Exporter) ReplaceLedger(_ context.Context, userID string, ledger core.Ledger) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.users[userID] = append([]core.Transaction(nil), ledger...)
	return nil
}

// Rows returns a copy of the user's exported transactions in export order.
func (e *Exporter) Rows(userID string) []core.Transaction {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]core.Transaction(nil), e.users[userID]...)
}
