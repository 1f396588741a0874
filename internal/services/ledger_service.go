package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"budgetwise/internal/amqp"
	"budgetwise/internal/cache"
	"budgetwise/internal/core"
	applog "budgetwise/internal/log"
	"budgetwise/internal/storage"
)

// EventPublisher is satisfied by *amqp.Client.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, evt amqp.LedgerEvent) error
}

// LedgerService owns the per-user transaction ledger.
type LedgerService struct {
	store     storage.Store
	publisher EventPublisher
	cache     cache.Cache[core.Ledger]
	locks     *keyedMutex
	opts      Options
	newID     func() string
}

// NewLedgerService builds the service. publisher may be nil, in which
// case ledger events are skipped.
func NewLedgerService(store storage.Store, publisher EventPublisher, opts Options) *LedgerService {
	opts = opts.withDefaults()
	return &LedgerService{
		store:     store,
		publisher: publisher,
		cache:     newCache[core.Ledger](opts),
		locks:     newKeyedMutex(),
		opts:      opts,
		newID:     uuid.NewString,
	}
}

// List returns the ledger, most recent first.
func (s *LedgerService) List(ctx context.Context, userID string) (core.Ledger, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	// Reads take the lock too so a cache fill cannot race a save.
	unlock := s.locks.Lock(userID)
	defer unlock()
	return s.load(ctx, userID)
}

// Add validates n, prepends it to the ledger and publishes an event.
func (s *LedgerService) Add(ctx context.Context, userID string, n core.NewTransaction) (core.Transaction, error) {
	if err := requireUser(userID); err != nil {
		return core.Transaction{}, err
	}
	n = n.Normalize()
	if err := n.Validate(); err != nil {
		return core.Transaction{}, validation(err)
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	ledger, err := s.load(ctx, userID)
	if err != nil {
		return core.Transaction{}, err
	}
	ledger, tx := ledger.Add(n, s.newID(), s.opts.Now())
	if err := s.save(ctx, userID, ledger); err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Transaction added",
		applog.NewFields().
			WithComponent(applog.ComponentLedger).
			WithOperation(applog.OpCreate).
			WithUser(userID).
			WithTransaction(tx.ID, string(tx.Type), string(tx.Category), tx.Amount.String()).
			ToSlice()...)

	s.publish(ctx, amqp.EventTransactionAdded, userID, tx)
	return tx, nil
}

// Delete removes the transaction with id. An unknown id is not an error;
// the boolean reports whether anything was removed.
func (s *LedgerService) Delete(ctx context.Context, userID, id string) (bool, error) {
	if err := requireUser(userID); err != nil {
		return false, err
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	ledger, err := s.load(ctx, userID)
	if err != nil {
		return false, err
	}
	removed, ok := ledger.Find(id)
	if !ok {
		return false, nil
	}
	ledger, _ = ledger.Delete(id)
	if err := s.save(ctx, userID, ledger); err != nil {
		return false, err
	}

	slog.InfoContext(ctx, "Transaction deleted",
		applog.FieldComponent, applog.ComponentLedger,
		applog.FieldOperation, applog.OpDelete,
		applog.FieldUserID, userID,
		applog.FieldTransactionID, id)

	s.publish(ctx, amqp.EventTransactionDeleted, userID, removed)
	return true, nil
}

func (s *LedgerService) Summary(ctx context.Context, userID string) (core.Totals, error) {
	ledger, err := s.List(ctx, userID)
	if err != nil {
		return core.Totals{}, err
	}
	return ledger.Totals(), nil
}

// Breakdown returns expense totals per category, largest first.
func (s *LedgerService) Breakdown(ctx context.Context, userID string) ([]core.CategoryAmount, error) {
	ledger, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ledger.CategoryBreakdown(), nil
}

// Daily returns one bucket per day of the current month.
func (s *LedgerService) Daily(ctx context.Context, userID string) ([]core.DayBucket, error) {
	ledger, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ledger.DailyTrend(s.opts.Now()), nil
}

func (s *LedgerService) load(ctx context.Context, userID string) (core.Ledger, error) {
	if l, ok := s.cache.Get(userID); ok {
		return l, nil
	}
	l, err := storage.LoadLedger(ctx, s.store, userID)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	s.cache.Set(userID, l)
	return l, nil
}

func (s *LedgerService) save(ctx context.Context, userID string, l core.Ledger) error {
	defer s.cache.Delete(userID)
	if err := storage.SaveLedger(ctx, s.store, userID, l); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}

// Publish failures are only logged; the export reconcile pass picks up
// anything that was missed.
func (s *LedgerService) publish(ctx context.Context, t amqp.LedgerEventType, userID string, tx core.Transaction) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not configured, skipping ledger event", "type", t)
		return
	}
	evt := amqp.NewLedgerEvent(t, userID, tx, s.opts.Now())
	if err := s.publisher.PublishLedgerEvent(ctx, evt); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			applog.FieldComponent, applog.ComponentLedger,
			"type", t,
			applog.FieldUserID, userID,
			applog.FieldTransactionID, tx.ID,
			applog.FieldError, err)
	}
}
