package worker

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"budgetwise/internal/amqp"
	"budgetwise/internal/core"
	applog "budgetwise/internal/log"
	sheetsmem "budgetwise/internal/sheets/memory"
	"budgetwise/internal/storage"
	"budgetwise/internal/storage/memory"
)

func quietLogger() *applog.Logger {
	cfg := applog.DefaultConfig()
	cfg.Output = io.Discard
	return applog.New(cfg)
}

func sampleTx(id string) core.Transaction {
	return core.Transaction{
		ID:          id,
		Type:        core.Expense,
		Category:    core.CategoryFood,
		Amount:      core.Money{Cents: 1250},
		Description: "Groceries",
		Date:        time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC),
	}
}

// flakyExporter fails every call for the users in fail.
type flakyExporter struct {
	*sheetsmem.Exporter
	mu       sync.Mutex
	fail     map[string]bool
	replaced []string
}

func (f *flakyExporter) ReplaceLedger(ctx context.Context, userID string, ledger core.Ledger) error {
	f.mu.Lock()
	f.replaced = append(f.replaced, userID)
	f.mu.Unlock()
	if f.fail[userID] {
		return errors.New("sheet unavailable")
	}
	return f.Exporter.ReplaceLedger(ctx, userID, ledger)
}

func TestHandleEvent(t *testing.T) {
	exp := sheetsmem.New()
	w := NewExportWorker(exp, memory.New(), 0, 0, quietLogger())
	ctx := context.Background()
	now := time.Now()

	added := amqp.NewLedgerEvent(amqp.EventTransactionAdded, "alice", sampleTx("t1"), now)
	if err := w.HandleEvent(ctx, added); err != nil {
		t.Fatal(err)
	}
	// Redelivery is harmless.
	if err := w.HandleEvent(ctx, added); err != nil {
		t.Fatal(err)
	}
	if got := exp.Rows("alice"); len(got) != 1 {
		t.Fatalf("rows = %v, want one", got)
	}

	deleted := amqp.NewLedgerEvent(amqp.EventTransactionDeleted, "alice", sampleTx("t1"), now)
	if err := w.HandleEvent(ctx, deleted); err != nil {
		t.Fatal(err)
	}
	if got := exp.Rows("alice"); len(got) != 0 {
		t.Errorf("rows after delete = %v", got)
	}

	bogus := amqp.LedgerEvent{Type: "renamed", UserID: "alice", Transaction: sampleTx("t1")}
	if err := w.HandleEvent(ctx, bogus); !errors.Is(err, amqp.ErrInvalidEvent) {
		t.Errorf("err = %v, want ErrInvalidEvent", err)
	}
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	for _, user := range []string{"alice", "bob", "carol"} {
		if err := storage.SaveLedger(ctx, store, user, core.Ledger{sampleTx(user + "-1"), sampleTx(user + "-2")}); err != nil {
			t.Fatal(err)
		}
	}
	// An empty ledger has nothing to export.
	if err := storage.SaveLedger(ctx, store, "dave", core.Ledger{}); err != nil {
		t.Fatal(err)
	}

	exp := &flakyExporter{Exporter: sheetsmem.New(), fail: map[string]bool{"bob": true}}
	w := NewExportWorker(exp, store, 2, time.Minute, quietLogger())

	err := w.Reconcile(ctx)
	if err == nil {
		t.Fatal("expected bob's failure to be reported")
	}
	if len(exp.replaced) != 3 {
		t.Errorf("replaced = %v, want every non-empty ledger attempted", exp.replaced)
	}
	if got := exp.Rows("alice"); len(got) != 2 {
		t.Errorf("alice rows = %v", got)
	}
	if got := exp.Rows("carol"); len(got) != 2 {
		t.Errorf("carol rows = %v", got)
	}

	exp.fail = nil
	if err := w.Reconcile(ctx); err != nil {
		t.Errorf("second reconcile: %v", err)
	}
	if got := exp.Rows("bob"); len(got) != 2 {
		t.Errorf("bob rows = %v", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := memory.New()
	if err := storage.SaveLedger(ctx, store, "alice", core.Ledger{sampleTx("t1")}); err != nil {
		t.Fatal(err)
	}
	exp := sheetsmem.New()
	w := NewExportWorker(exp, store, 1, time.Hour, quietLogger())

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for len(exp.Rows("alice")) == 0 {
		select {
		case <-deadline:
			t.Fatal("startup reconcile did not run")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}
