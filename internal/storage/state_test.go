package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"budgetwise/internal/core"
	"budgetwise/internal/storage"
	"budgetwise/internal/storage/memory"
)

func TestLoadDefaultsWhenEmpty(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	ledger, err := storage.LoadLedger(ctx, s, "u")
	if err != nil || ledger == nil || len(ledger) != 0 {
		t.Fatalf("expected empty ledger, got %v %v", ledger, err)
	}
	goal, err := storage.LoadGoal(ctx, s, "u")
	if err != nil || goal != core.DefaultGoal() {
		t.Fatalf("expected default goal, got %+v %v", goal, err)
	}
	loans, err := storage.LoadLoans(ctx, s, "u")
	if err != nil || loans == nil || len(loans) != 0 {
		t.Fatalf("expected no loans, got %v %v", loans, err)
	}
}

func TestLoadFallsBackOnInvalidPayload(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	cases := []struct {
		collection storage.Collection
		payload    string
	}{
		{storage.CollectionTransactions, `not json`},
		{storage.CollectionTransactions, `[{"id":"1","type":"gift","category":"Food","amount":"1.00","description":"x","date":"2025-01-01T00:00:00Z"}]`},
		{storage.CollectionSavingsGoal, `{"target":"-10"}`},
		{storage.CollectionSavingsGoal, `42`},
		{storage.CollectionSavedLoans, `[{"loanName":"","status":"On Track"}]`},
		{storage.CollectionSavedLoans, `{"loanName":"x"}`},
	}
	for _, tc := range cases {
		key := storage.Key{UserID: "u", Collection: tc.collection}
		if err := s.Save(ctx, key, []byte(tc.payload)); err != nil {
			t.Fatalf("save: %v", err)
		}
		switch tc.collection {
		case storage.CollectionTransactions:
			l, err := storage.LoadLedger(ctx, s, "u")
			if err != nil || len(l) != 0 {
				t.Errorf("%s: expected empty ledger, got %v %v", tc.payload, l, err)
			}
		case storage.CollectionSavingsGoal:
			g, err := storage.LoadGoal(ctx, s, "u")
			if err != nil || g != core.DefaultGoal() {
				t.Errorf("%s: expected default goal, got %+v %v", tc.payload, g, err)
			}
		case storage.CollectionSavedLoans:
			l, err := storage.LoadLoans(ctx, s, "u")
			if err != nil || len(l) != 0 {
				t.Errorf("%s: expected no loans, got %v %v", tc.payload, l, err)
			}
		}
	}
}

func TestLoadKeepsValidEntries(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	ledger := `[
		{"id":"good","type":"expense","category":"Food","amount":"12.50","description":"Lunch","date":"2025-01-01T00:00:00Z"},
		{"id":"bad-type","type":"gift","category":"Food","amount":"1.00","description":"x","date":"2025-01-01T00:00:00Z"},
		{"id":"bad-amount","type":"expense","category":"Food","amount":"lots","description":"x","date":"2025-01-01T00:00:00Z"}
	]`
	if err := s.Save(ctx, storage.Key{UserID: "u", Collection: storage.CollectionTransactions}, []byte(ledger)); err != nil {
		t.Fatalf("save: %v", err)
	}
	l, err := storage.LoadLedger(ctx, s, "u")
	if err != nil || len(l) != 1 || l[0].ID != "good" {
		t.Fatalf("expected only the valid transaction, got %+v %v", l, err)
	}

	loans := `[
		{"loanName":"","status":"On Track"},
		{"loanName":"Car","totalAmount":"1200","emiAmount":"100","tenure":12,"emisPaid":0,"emisPending":12,"nextDueDate":"2025-06-01","status":"Delayed"}
	]`
	if err := s.Save(ctx, storage.Key{UserID: "u", Collection: storage.CollectionSavedLoans}, []byte(loans)); err != nil {
		t.Fatalf("save: %v", err)
	}
	gotLoans, err := storage.LoadLoans(ctx, s, "u")
	if err != nil || len(gotLoans) != 1 || gotLoans[0].LoanName != "Car" {
		t.Fatalf("expected only the valid loan, got %+v %v", gotLoans, err)
	}
}

func TestStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	now := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)

	ledger, _ := core.Ledger{}.Add(core.NewTransaction{
		Type: core.Expense, Category: core.CategoryBills, Amount: core.Money{Cents: 4599}, Description: "Power bill",
	}, "tx-1", now)
	if err := storage.SaveLedger(ctx, s, "u", ledger); err != nil {
		t.Fatalf("save ledger: %v", err)
	}
	got, err := storage.LoadLedger(ctx, s, "u")
	if err != nil || len(got) != 1 || got[0].ID != "tx-1" || got[0].Amount.Cents != 4599 || !got[0].Date.Equal(now) {
		t.Fatalf("unexpected ledger %+v %v", got, err)
	}

	if err := storage.SaveGoal(ctx, s, "u", core.SavingsGoal{Target: core.Money{Cents: 777}}); err != nil {
		t.Fatalf("save goal: %v", err)
	}
	goal, _ := storage.LoadGoal(ctx, s, "u")
	if goal.Target.Cents != 777 {
		t.Fatalf("unexpected goal %+v", goal)
	}

	rate := 9.25
	loans := core.SaveLoan(nil, core.Loan{
		LoanName: "Car", EMIAmount: core.Money{Cents: 100}, TotalAmount: core.Money{Cents: 1200},
		InterestRate: &rate, Tenure: 12, EMIsPending: 12, NextDueDate: core.NewDate(2025, 6, 1), Status: core.StatusDelayed,
	}, now)
	if err := storage.SaveLoans(ctx, s, "u", loans); err != nil {
		t.Fatalf("save loans: %v", err)
	}
	gotLoans, _ := storage.LoadLoans(ctx, s, "u")
	if len(gotLoans) != 1 || gotLoans[0].InterestRate == nil || *gotLoans[0].InterestRate != rate || gotLoans[0].NextDueDate.String() != "2025-06-01" {
		t.Fatalf("unexpected loans %+v", gotLoans)
	}
}

type failingStore struct{ *memory.Store }

func (failingStore) Load(context.Context, storage.Key) ([]byte, error) {
	return nil, errors.New("disk on fire")
}

func TestLoadPropagatesStoreErrors(t *testing.T) {
	if _, err := storage.LoadLedger(context.Background(), failingStore{memory.New()}, "u"); err == nil {
		t.Fatalf("expected store error to propagate")
	}
}
