package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"budgetwise/internal/amqp"
	"budgetwise/internal/core"
	"budgetwise/internal/storage"
	"budgetwise/internal/storage/memory"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []amqp.LedgerEvent
	err    error
}

func (p *fakePublisher) PublishLedgerEvent(_ context.Context, evt amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

func fixedNow() time.Time {
	return time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)
}

func newTestLedger(t *testing.T, pub EventPublisher) (*LedgerService, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc := NewLedgerService(store, pub, Options{Now: fixedNow})
	n := 0
	svc.newID = func() string {
		n++
		return fmt.Sprintf("tx-%d", n)
	}
	return svc, store
}

func expense(cat core.Category, cents int64, desc string) core.NewTransaction {
	return core.NewTransaction{Type: core.Expense, Category: cat, Amount: core.Money{Cents: cents}, Description: desc}
}

func income(cents int64, desc string) core.NewTransaction {
	return core.NewTransaction{Type: core.Income, Amount: core.Money{Cents: cents}, Description: desc}
}

func TestLedgerService_AddPrependsAndPublishes(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	svc, _ := newTestLedger(t, pub)

	first, err := svc.Add(ctx, "alice", expense(core.CategoryFood, 45000, "Lunch"))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	second, err := svc.Add(ctx, "alice", income(5000000, "Salary"))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if second.Category != core.CategoryIncome {
		t.Errorf("income category = %q, want Income", second.Category)
	}
	if !first.Date.Equal(fixedNow()) {
		t.Errorf("date = %v, want %v", first.Date, fixedNow())
	}

	ledger, err := svc.List(ctx, "alice")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ledger) != 2 || ledger[0].ID != second.ID || ledger[1].ID != first.ID {
		t.Fatalf("ledger not most-recent-first: %+v", ledger)
	}

	if len(pub.events) != 2 || pub.events[0].Type != amqp.EventTransactionAdded || pub.events[0].UserID != "alice" {
		t.Fatalf("unexpected events %+v", pub.events)
	}
}

func TestLedgerService_AddValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestLedger(t, nil)

	cases := []struct {
		name string
		in   core.NewTransaction
		want error
	}{
		{"zero amount", expense(core.CategoryFood, 0, "Lunch"), core.ErrInvalidAmount},
		{"short description", expense(core.CategoryFood, 100, " a "), core.ErrEmptyDescription},
		{"bad category", expense("Pets", 100, "Dog food"), core.ErrInvalidCategory},
		{"bad type", core.NewTransaction{Type: "transfer", Amount: core.Money{Cents: 1}, Description: "xx"}, core.ErrInvalidType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Add(ctx, "alice", tc.in)
			if !errors.Is(err, ErrValidation) || !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want validation wrapping %v", err, tc.want)
			}
		})
	}

	ledger, _ := svc.List(ctx, "alice")
	if len(ledger) != 0 {
		t.Fatalf("invalid submissions must not be stored: %+v", ledger)
	}
}

func TestLedgerService_Delete(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	svc, _ := newTestLedger(t, pub)

	tx, _ := svc.Add(ctx, "alice", expense(core.CategoryRent, 1500000, "March rent"))
	before, _ := svc.List(ctx, "alice")

	removed, err := svc.Delete(ctx, "alice", "missing")
	if err != nil || removed {
		t.Fatalf("Delete(missing) = %v, %v", removed, err)
	}
	after, _ := svc.List(ctx, "alice")
	if len(after) != len(before) || after[0].ID != before[0].ID {
		t.Fatalf("ledger changed on missing delete")
	}
	if len(pub.events) != 1 {
		t.Fatalf("missing delete must not publish, got %d events", len(pub.events))
	}

	removed, err = svc.Delete(ctx, "alice", tx.ID)
	if err != nil || !removed {
		t.Fatalf("Delete = %v, %v", removed, err)
	}
	if got, _ := svc.List(ctx, "alice"); len(got) != 0 {
		t.Fatalf("expected empty ledger, got %+v", got)
	}
	last := pub.events[len(pub.events)-1]
	if last.Type != amqp.EventTransactionDeleted || last.Transaction.ID != tx.ID {
		t.Fatalf("unexpected delete event %+v", last)
	}
}

func TestLedgerService_Aggregates(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestLedger(t, nil)

	mustAdd := func(n core.NewTransaction) {
		t.Helper()
		if _, err := svc.Add(ctx, "u", n); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	mustAdd(income(100000, "Salary"))
	mustAdd(expense(core.CategoryFood, 30000, "Dinner"))
	mustAdd(expense(core.CategoryRent, 90000, "Rent"))
	mustAdd(expense(core.CategoryFood, 10000, "Snacks"))

	totals, err := svc.Summary(ctx, "u")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if totals.Income.Cents != 100000 || totals.Expenses.Cents != 130000 || totals.Balance.Cents != -30000 {
		t.Fatalf("totals = %+v", totals)
	}

	breakdown, _ := svc.Breakdown(ctx, "u")
	if len(breakdown) != 2 || breakdown[0].Category != core.CategoryRent || breakdown[1].Amount.Cents != 40000 {
		t.Fatalf("breakdown = %+v", breakdown)
	}

	daily, _ := svc.Daily(ctx, "u")
	if len(daily) != 31 {
		t.Fatalf("March should have 31 buckets, got %d", len(daily))
	}
	if daily[14].Income.Cents != 100000 || daily[14].Expense.Cents != 130000 {
		t.Fatalf("bucket 15 = %+v", daily[14])
	}
}

func TestLedgerService_UserIsolation(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestLedger(t, nil)

	if _, err := svc.Add(ctx, "alice", expense(core.CategoryFood, 100, "Tea")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	bob, _ := svc.List(ctx, "bob")
	if len(bob) != 0 {
		t.Fatalf("bob sees alice's data: %+v", bob)
	}
	users, _ := store.Users(ctx, storage.CollectionTransactions)
	if len(users) != 1 || users[0] != "alice" {
		t.Fatalf("users = %v", users)
	}

	if _, err := svc.List(ctx, ""); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestLedgerService_PublishFailureDoesNotFailAdd(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestLedger(t, &fakePublisher{err: errors.New("broker down")})

	if _, err := svc.Add(ctx, "u", expense(core.CategoryBills, 2000, "Phone")); err != nil {
		t.Fatalf("Add should succeed when publishing fails: %v", err)
	}
	if got, _ := svc.List(ctx, "u"); len(got) != 1 {
		t.Fatalf("transaction not persisted")
	}
}

func TestLedgerService_ReadsThroughCacheAfterSave(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestLedger(t, nil)

	// Warm the cache, then write behind the service's back.
	if _, err := svc.List(ctx, "u"); err != nil {
		t.Fatalf("List: %v", err)
	}
	external := core.Ledger{}
	external, _ = external.Add(expense(core.CategoryFood, 100, "Chai"), "ext", fixedNow())
	if err := storage.SaveLedger(ctx, store, "u", external); err != nil {
		t.Fatalf("SaveLedger: %v", err)
	}
	if got, _ := svc.List(ctx, "u"); len(got) != 0 {
		t.Fatalf("expected cached empty ledger, got %d entries", len(got))
	}

	// A save through the service invalidates the cache.
	if _, err := svc.Add(ctx, "u", expense(core.CategoryFood, 200, "Samosa")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	got, _ := svc.List(ctx, "u")
	if len(got) != 2 {
		t.Fatalf("expected 2 entries after invalidation, got %d", len(got))
	}
}

func TestLedgerService_ConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewLedgerService(store, nil, Options{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Add(ctx, "u", expense(core.CategoryOther, 100, "Coffee")); err != nil {
				t.Errorf("Add: %v", err)
			}
		}()
	}
	wg.Wait()

	got, _ := svc.List(ctx, "u")
	if len(got) != 20 {
		t.Fatalf("lost updates: got %d transactions, want 20", len(got))
	}
}
