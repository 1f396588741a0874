package core

import (
	"sort"
	"time"
)

// Ledger is a user's transactions, most recent first.
type Ledger []Transaction

// Add prepends a transaction built from n. The caller validates n and
// supplies the id and timestamp.
func (l Ledger) Add(n NewTransaction, id string, now time.Time) (Ledger, Transaction) {
	t := Transaction{
		ID:          id,
		Type:        n.Type,
		Category:    n.Category,
		Amount:      n.Amount,
		Description: n.Description,
		Date:        now,
	}
	out := make(Ledger, 0, len(l)+1)
	out = append(out, t)
	out = append(out, l...)
	return out, t
}

// Delete removes the transaction with the given id. The second result is
// false, and the ledger is returned as is, when no entry matches.
func (l Ledger) Delete(id string) (Ledger, bool) {
	idx := -1
	for i, t := range l {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return l, false
	}
	out := make(Ledger, 0, len(l)-1)
	out = append(out, l[:idx]...)
	out = append(out, l[idx+1:]...)
	return out, true
}

// Find returns the transaction with the given id.
func (l Ledger) Find(id string) (Transaction, bool) {
	for _, t := range l {
		if t.ID == id {
			return t, true
		}
	}
	return Transaction{}, false
}

// Totals sums income and expenses; Balance may be negative.
func (l Ledger) Totals() Totals {
	var tot Totals
	for _, t := range l {
		switch t.Type {
		case Income:
			tot.Income = tot.Income.Add(t.Amount)
		case Expense:
			tot.Expenses = tot.Expenses.Add(t.Amount)
		}
	}
	tot.Balance = tot.Income.Sub(tot.Expenses)
	return tot
}

// ByCategory sums expense transactions per category.
func (l Ledger) ByCategory() map[Category]Money {
	out := make(map[Category]Money)
	for _, t := range l {
		if t.Type != Expense {
			continue
		}
		out[t.Category] = out[t.Category].Add(t.Amount)
	}
	return out
}

// CategoryBreakdown returns ByCategory as a slice, largest amount first.
// Ties keep the category display order.
func (l Ledger) CategoryBreakdown() []CategoryAmount {
	sums := l.ByCategory()
	list := make([]CategoryAmount, 0, len(sums))
	for _, c := range expenseCategories {
		if amt, ok := sums[c]; ok {
			list = append(list, CategoryAmount{Category: c, Amount: amt})
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Amount.Cents > list[j].Amount.Cents
	})
	return list
}

// DailyTrend returns one bucket per day of now's month. Transactions are
// matched by full calendar date in now's location, so entries from other
// months never land in the current month's buckets.
func (l Ledger) DailyTrend(now time.Time) []DayBucket {
	loc := now.Location()
	year, month, _ := now.Date()
	days := DaysInMonth(year, month)

	buckets := make([]DayBucket, days)
	for i := range buckets {
		buckets[i] = DayBucket{Date: NewDate(year, int(month), i+1)}
	}

	for _, t := range l {
		ty, tm, td := t.Date.In(loc).Date()
		if ty != year || tm != month {
			continue
		}
		b := &buckets[td-1]
		switch t.Type {
		case Income:
			b.Income = b.Income.Add(t.Amount)
		case Expense:
			b.Expense = b.Expense.Add(t.Amount)
		}
	}
	return buckets
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
