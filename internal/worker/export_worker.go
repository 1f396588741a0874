// Package worker mirrors ledgers to an external exporter. Ledger events are
// applied as they arrive; a periodic reconcile rewrites every user's ledger
// to recover from lost or dropped events.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"budgetwise/internal/amqp"
	applog "budgetwise/internal/log"
	"budgetwise/internal/sheets"
	"budgetwise/internal/storage"
)

const (
	defaultBatchSize = 4
	defaultInterval  = 10 * time.Minute
)

// ExportWorker applies ledger events and reconciles full ledgers.
type ExportWorker struct {
	exporter  sheets.LedgerExporter
	store     storage.Store
	batchSize int
	interval  time.Duration
	logger    *applog.Logger
}

func NewExportWorker(exporter sheets.LedgerExporter, store storage.Store, batchSize int, interval time.Duration, logger *applog.Logger) *ExportWorker {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if interval <= 0 {
		interval = defaultInterval
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &ExportWorker{
		exporter:  exporter,
		store:     store,
		batchSize: batchSize,
		interval:  interval,
		logger:    logger.WithComponent(applog.ComponentWorker),
	}
}

// HandleEvent applies one ledger event. It matches amqp.EventHandler; a
// returned error requeues the delivery.
func (w *ExportWorker) HandleEvent(ctx context.Context, evt amqp.LedgerEvent) error {
	w.logger.DebugContext(ctx, "Processing ledger event",
		"type", evt.Type,
		applog.FieldUserID, evt.UserID,
		applog.FieldTransactionID, evt.Transaction.ID)

	switch evt.Type {
	case amqp.EventTransactionAdded:
		if err := w.exporter.AppendTransaction(ctx, evt.UserID, evt.Transaction); err != nil {
			return fmt.Errorf("export transaction: %w", err)
		}
	case amqp.EventTransactionDeleted:
		if err := w.exporter.DeleteTransaction(ctx, evt.UserID, evt.Transaction); err != nil {
			return fmt.Errorf("remove exported transaction: %w", err)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", amqp.ErrInvalidEvent, evt.Type)
	}
	return nil
}

// Reconcile rewrites every stored ledger through the exporter, at most
// batchSize users at a time. Per-user failures are logged and counted;
// the first one is returned after all users were attempted.
func (w *ExportWorker) Reconcile(ctx context.Context) error {
	users, err := w.store.Users(ctx, storage.CollectionTransactions)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	if len(users) == 0 {
		w.logger.DebugContext(ctx, "No ledgers to reconcile")
		return nil
	}

	start := time.Now()
	var (
		mu       sync.Mutex
		failed   int
		firstErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.batchSize)
	for _, userID := range users {
		g.Go(func() error {
			if err := w.reconcileUser(gctx, userID); err != nil {
				mu.Lock()
				failed++
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				w.logger.ErrorContext(gctx, "Failed to reconcile ledger",
					applog.FieldUserID, userID,
					applog.FieldError, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	w.logger.InfoContext(ctx, "Reconcile completed",
		applog.FieldOperation, applog.OpExport,
		"users", len(users),
		"failed", failed,
		applog.FieldDuration, time.Since(start).Milliseconds())

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

func (w *ExportWorker) reconcileUser(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ledger, err := storage.LoadLedger(ctx, w.store, userID)
	if err != nil {
		return err
	}
	if len(ledger) == 0 {
		return nil
	}
	return w.exporter.ReplaceLedger(ctx, userID, ledger)
}

// Run reconciles once at startup and then every interval until ctx is
// cancelled. Reconcile failures are logged and retried on the next tick.
func (w *ExportWorker) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Export worker started",
		"interval", w.interval.String(),
		"batch_size", w.batchSize)

	if err := w.Reconcile(ctx); err != nil && ctx.Err() == nil {
		w.logger.ErrorContext(ctx, "Startup reconcile failed", applog.FieldError, err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "Export worker stopped", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			if err := w.Reconcile(ctx); err != nil && ctx.Err() == nil {
				w.logger.ErrorContext(ctx, "Periodic reconcile failed", applog.FieldError, err)
			}
		}
	}
}
