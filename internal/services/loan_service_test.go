package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"budgetwise/internal/core"
	"budgetwise/internal/storage"
	"budgetwise/internal/storage/memory"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func homeLoan() core.Loan {
	return core.Loan{
		LoanName:    "Home Loan",
		TotalAmount: core.Money{Cents: 240000000},
		EMIAmount:   core.Money{Cents: 2000000},
		Tenure:      12,
		EMIsPaid:    10,
		EMIsPending: 2,
		NextDueDate: core.NewDate(2024, 4, 5),
		Status:      core.StatusDelayed,
	}
}

func newTestLoans(t *testing.T) (*LoanService, *clock, *memory.Store) {
	t.Helper()
	clk := &clock{t: time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC)}
	store := memory.New()
	return NewLoanService(store, Options{Now: clk.Now}), clk, store
}

func TestLoanService_SaveAndList(t *testing.T) {
	ctx := context.Background()
	svc, _, store := newTestLoans(t)

	view, err := svc.Save(ctx, "u", homeLoan())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if view.Index != 0 || view.LastUpdated == nil {
		t.Fatalf("unexpected view %+v", view)
	}
	// A freshly saved loan counts as paid this month.
	if !view.PaidThisMonth || view.CanMarkPaid {
		t.Fatalf("saved loan eligibility = paid %v can %v", view.PaidThisMonth, view.CanMarkPaid)
	}

	if _, err := svc.Save(ctx, "u", homeLoan()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	list, err := svc.List(ctx, "u")
	if err != nil || len(list) != 2 || list[1].Index != 1 {
		t.Fatalf("List = %+v, %v", list, err)
	}
	if list[0].ProgressPercent != 83.33 || list[0].AmountPaid.Cents != 20000000 {
		t.Fatalf("derived fields = %v %v", list[0].ProgressPercent, list[0].AmountPaid)
	}

	stored, _ := storage.LoadLoans(ctx, store, "u")
	if len(stored) != 2 {
		t.Fatalf("stored %d loans", len(stored))
	}
}

func TestLoanService_SaveRejectsInconsistentAnalysis(t *testing.T) {
	svc, _, _ := newTestLoans(t)
	bad := homeLoan()
	bad.EMIsPending = 5
	if _, err := svc.Save(context.Background(), "u", bad); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	bad = homeLoan()
	bad.Tenure, bad.EMIsPaid, bad.EMIsPending = 0, 0, 0
	if _, err := svc.Save(context.Background(), "u", bad); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected zero tenure to be rejected, got %v", err)
	}
	bad = homeLoan()
	bad.LoanName = " "
	if _, err := svc.Save(context.Background(), "u", bad); !errors.Is(err, core.ErrInvalidLoan) {
		t.Fatalf("expected invalid loan, got %v", err)
	}
}

func TestLoanService_MarkPaid(t *testing.T) {
	ctx := context.Background()
	svc, clk, _ := newTestLoans(t)

	if _, err := svc.Save(ctx, "u", homeLoan()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Same month as the save: ignored.
	view, applied, err := svc.MarkPaid(ctx, "u", 0)
	if err != nil || applied || view.EMIsPaid != 10 {
		t.Fatalf("MarkPaid same month = %+v, %v, %v", view, applied, err)
	}

	clk.Set(time.Date(2024, time.April, 2, 9, 0, 0, 0, time.UTC))
	view, applied, err = svc.MarkPaid(ctx, "u", 0)
	if err != nil || !applied {
		t.Fatalf("MarkPaid April = %v, %v", applied, err)
	}
	if view.EMIsPaid != 11 || view.EMIsPending != 1 || !view.PaidThisMonth {
		t.Fatalf("after April payment %+v", view)
	}
	if _, applied, _ = svc.MarkPaid(ctx, "u", 0); applied {
		t.Fatalf("second payment in April must be ignored")
	}

	clk.Set(time.Date(2024, time.May, 3, 9, 0, 0, 0, time.UTC))
	view, applied, _ = svc.MarkPaid(ctx, "u", 0)
	if !applied || !view.Completed || view.DisplayStatus != core.StatusCompleted || view.Status != core.StatusOnTrack {
		t.Fatalf("final payment view %+v", view)
	}

	clk.Set(time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC))
	if _, applied, _ = svc.MarkPaid(ctx, "u", 0); applied {
		t.Fatalf("completed loan must not accept payments")
	}

	if _, _, err := svc.MarkPaid(ctx, "u", 7); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLoanService_Edit(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestLoans(t)
	if _, err := svc.Save(ctx, "u", homeLoan()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	view, err := svc.Edit(ctx, "u", 0, core.FieldTenure, "24")
	if err != nil || view.Tenure != 24 || view.EMIsPending != 14 {
		t.Fatalf("edit tenure = %+v, %v", view, err)
	}

	// emisPaid above tenure: pending is left alone.
	view, err = svc.Edit(ctx, "u", 0, core.FieldEMIsPaid, "30")
	if err != nil || view.EMIsPaid != 30 || view.EMIsPending != 14 {
		t.Fatalf("edit emisPaid = %+v, %v", view, err)
	}

	if _, err := svc.Edit(ctx, "u", 0, "color", "red"); !errors.Is(err, ErrValidation) || !errors.Is(err, core.ErrUnknownField) {
		t.Fatalf("unknown field err = %v", err)
	}
	if _, err := svc.Edit(ctx, "u", 0, core.FieldTenure, "many"); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad value err = %v", err)
	}
	for _, rate := range []string{"NaN", "Inf"} {
		if _, err := svc.Edit(ctx, "u", 0, core.FieldInterestRate, rate); !errors.Is(err, ErrValidation) {
			t.Fatalf("interest rate %q err = %v", rate, err)
		}
	}
	if _, err := svc.Edit(ctx, "u", 3, core.FieldLoanName, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("out of range err = %v", err)
	}
}

func TestLoanService_DeleteAndSummary(t *testing.T) {
	ctx := context.Background()
	svc, clk, _ := newTestLoans(t)

	done := homeLoan()
	done.LoanName = "Car Loan"
	done.EMIsPaid, done.EMIsPending = 12, 0
	for _, l := range []core.Loan{homeLoan(), done} {
		if _, err := svc.Save(ctx, "u", l); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	clk.Set(time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC))
	sum, err := svc.Summary(ctx, "u")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.ActiveLoans != 1 || sum.PaymentsDue != 1 || sum.TotalMonthlyEMI.Cents != 2000000 || sum.TotalRemaining.Cents != 4000000 {
		t.Fatalf("summary = %+v", sum)
	}

	if err := svc.Delete(ctx, "u", 0); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	list, _ := svc.List(ctx, "u")
	if len(list) != 1 || list[0].LoanName != "Car Loan" || list[0].Index != 0 {
		t.Fatalf("after delete %+v", list)
	}
	if err := svc.Delete(ctx, "u", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()
	var (
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("a")
			counter++
			unlock()
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Fatalf("counter = %d", counter)
	}
	if k.size() != 0 {
		t.Fatalf("locks not released: %d", k.size())
	}
}
