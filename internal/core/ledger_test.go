package core

import (
	"reflect"
	"testing"
	"time"
)

func mustAdd(t *testing.T, l Ledger, typ TransactionType, cat Category, cents int64, at time.Time, id string) Ledger {
	t.Helper()
	out, _ := l.Add(NewTransaction{Type: typ, Category: cat, Amount: Money{Cents: cents}, Description: "entry"}, id, at)
	return out
}

func TestLedgerAggregate(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	var l Ledger
	l = mustAdd(t, l, Income, CategoryIncome, 500000, now, "1")
	l = mustAdd(t, l, Expense, CategoryGroceries, 120000, now, "2")

	got := l.Totals()
	want := Totals{Income: Money{Cents: 500000}, Expenses: Money{Cents: 120000}, Balance: Money{Cents: 380000}}
	if got != want {
		t.Fatalf("Totals = %+v, want %+v", got, want)
	}
}

func TestLedgerBalanceInvariant(t *testing.T) {
	now := time.Now()
	ledgers := []Ledger{
		nil,
		mustAdd(t, nil, Expense, CategoryRent, 900000, now, "r"),
		mustAdd(t, mustAdd(t, nil, Income, CategoryIncome, 1, now, "i"), Expense, CategoryFood, 7, now, "f"),
	}
	for i, l := range ledgers {
		tot := l.Totals()
		if tot.Balance.Cents != tot.Income.Cents-tot.Expenses.Cents {
			t.Fatalf("ledger %d: balance %d != %d - %d", i, tot.Balance.Cents, tot.Income.Cents, tot.Expenses.Cents)
		}
	}
}

func TestLedgerAddPrepends(t *testing.T) {
	now := time.Now()
	l := mustAdd(t, nil, Expense, CategoryFood, 100, now, "first")
	l = mustAdd(t, l, Expense, CategoryFood, 200, now.Add(time.Minute), "second")
	if l[0].ID != "second" || l[1].ID != "first" {
		t.Fatalf("expected most-recent-first order, got %s,%s", l[0].ID, l[1].ID)
	}
	if !l[0].Date.Equal(now.Add(time.Minute)) {
		t.Fatalf("timestamp not assigned")
	}
}

func TestLedgerDelete(t *testing.T) {
	now := time.Now()
	l := mustAdd(t, nil, Expense, CategoryFood, 100, now, "a")
	l = mustAdd(t, l, Expense, CategoryFood, 200, now, "b")

	same, ok := l.Delete("missing")
	if ok {
		t.Fatalf("delete of missing id reported a removal")
	}
	if !reflect.DeepEqual(same, l) {
		t.Fatalf("delete of missing id changed the ledger")
	}

	after, ok := l.Delete("a")
	if !ok || len(after) != 1 || after[0].ID != "b" {
		t.Fatalf("unexpected ledger after delete: %+v", after)
	}

	after = mustAdd(t, after, Expense, CategoryFood, 300, now, "c")
	if _, found := after.Find("a"); found {
		t.Fatalf("deleted entry resurrected")
	}
}

func TestLedgerByCategory(t *testing.T) {
	now := time.Now()
	var l Ledger
	l = mustAdd(t, l, Expense, CategoryFood, 100, now, "1")
	l = mustAdd(t, l, Expense, CategoryFood, 250, now, "2")
	l = mustAdd(t, l, Expense, CategoryRent, 1000, now, "3")
	l = mustAdd(t, l, Income, CategoryIncome, 9999, now, "4")

	m := l.ByCategory()
	if len(m) != 2 || m[CategoryFood].Cents != 350 || m[CategoryRent].Cents != 1000 {
		t.Fatalf("unexpected breakdown %+v", m)
	}
	if _, ok := m[CategoryIncome]; ok {
		t.Fatalf("income must not appear in the breakdown")
	}

	list := l.CategoryBreakdown()
	if len(list) != 2 || list[0].Category != CategoryRent || list[1].Category != CategoryFood {
		t.Fatalf("unexpected sorted breakdown %+v", list)
	}
}

func TestLedgerDailyTrend(t *testing.T) {
	now := time.Date(2025, 2, 20, 12, 0, 0, 0, time.UTC)
	var l Ledger
	l = mustAdd(t, l, Income, CategoryIncome, 500, time.Date(2025, 2, 3, 9, 0, 0, 0, time.UTC), "feb-3")
	l = mustAdd(t, l, Expense, CategoryFood, 200, time.Date(2025, 2, 3, 18, 0, 0, 0, time.UTC), "feb-3b")
	// Same day-of-month in another month must not be counted.
	l = mustAdd(t, l, Expense, CategoryFood, 999, time.Date(2025, 1, 3, 9, 0, 0, 0, time.UTC), "jan-3")
	l = mustAdd(t, l, Expense, CategoryFood, 999, time.Date(2024, 2, 3, 9, 0, 0, 0, time.UTC), "feb-3-last-year")

	buckets := l.DailyTrend(now)
	if len(buckets) != 28 {
		t.Fatalf("expected 28 buckets for Feb 2025, got %d", len(buckets))
	}
	b := buckets[2]
	if b.Date.Day() != 3 || b.Income.Cents != 500 || b.Expense.Cents != 200 {
		t.Fatalf("unexpected bucket %+v", b)
	}
	for i, other := range buckets {
		if i == 2 {
			continue
		}
		if other.Income.Cents != 0 || other.Expense.Cents != 0 {
			t.Fatalf("bucket %d should be empty: %+v", i+1, other)
		}
	}
}

func TestDaysInMonth(t *testing.T) {
	if DaysInMonth(2024, time.February) != 29 {
		t.Fatalf("leap year February")
	}
	if DaysInMonth(2025, time.December) != 31 {
		t.Fatalf("December")
	}
}
