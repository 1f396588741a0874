package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"budgetwise/internal/cache"
	"budgetwise/internal/core"
	applog "budgetwise/internal/log"
	"budgetwise/internal/storage"
)

// LoanView is a saved loan with the values derived from it for display.
type LoanView struct {
	Index int `json:"index"`
	core.Loan
	DisplayStatus   core.LoanStatus `json:"displayStatus"`
	Completed       bool            `json:"completed"`
	PaidThisMonth   bool            `json:"paidThisMonth"`
	CanMarkPaid     bool            `json:"canMarkPaid"`
	ProgressPercent float64         `json:"progressPercent"`
	AmountPaid      core.Money      `json:"amountPaid"`
}

// LoanService owns the per-user list of saved loans.
type LoanService struct {
	store storage.Store
	cache cache.Cache[[]core.Loan]
	locks *keyedMutex
	opts  Options
}

func NewLoanService(store storage.Store, opts Options) *LoanService {
	opts = opts.withDefaults()
	return &LoanService{
		store: store,
		cache: newCache[[]core.Loan](opts),
		locks: newKeyedMutex(),
		opts:  opts,
	}
}

func (s *LoanService) List(ctx context.Context, userID string) ([]LoanView, error) {
	loans, err := s.loans(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.opts.Now()
	views := make([]LoanView, len(loans))
	for i, l := range loans {
		views[i] = newLoanView(i, l, now)
	}
	return views, nil
}

func (s *LoanService) Summary(ctx context.Context, userID string) (core.LoanSummary, error) {
	loans, err := s.loans(ctx, userID)
	if err != nil {
		return core.LoanSummary{}, err
	}
	return core.SummarizeLoans(loans, s.opts.Now()), nil
}

// Save appends an analysis to the saved loans.
func (s *LoanService) Save(ctx context.Context, userID string, analysis core.Loan) (LoanView, error) {
	if err := requireUser(userID); err != nil {
		return LoanView{}, err
	}
	if err := analysis.Validate(); err != nil {
		return LoanView{}, validation(err)
	}
	if analysis.Tenure < 1 {
		return LoanView{}, validation(fmt.Errorf("%w: tenure must be at least 1", core.ErrInvalidLoan))
	}
	if analysis.EMIsPaid+analysis.EMIsPending != analysis.Tenure {
		return LoanView{}, validation(fmt.Errorf("%w: emisPaid + emisPending must equal tenure", core.ErrInvalidLoan))
	}

	var view LoanView
	err := s.mutate(ctx, userID, func(loans []core.Loan, now time.Time) ([]core.Loan, bool, error) {
		loans = core.SaveLoan(loans, analysis, now)
		idx := len(loans) - 1
		view = newLoanView(idx, loans[idx], now)
		return loans, true, nil
	})
	if err != nil {
		return LoanView{}, err
	}
	s.logLoan(ctx, "Loan saved", applog.OpCreate, userID, view.Index, view.LoanName)
	return view, nil
}

// Edit overwrites one field of the loan at index.
func (s *LoanService) Edit(ctx context.Context, userID string, index int, field core.LoanField, value string) (LoanView, error) {
	var view LoanView
	err := s.mutate(ctx, userID, func(loans []core.Loan, now time.Time) ([]core.Loan, bool, error) {
		if index < 0 || index >= len(loans) {
			return nil, false, loanNotFound(index)
		}
		edited, err := core.EditLoan(loans[index], field, value)
		if err != nil {
			return nil, false, validation(err)
		}
		loans = replaceLoan(loans, index, edited)
		view = newLoanView(index, edited, now)
		return loans, true, nil
	})
	if err != nil {
		return LoanView{}, err
	}
	s.logLoan(ctx, "Loan edited", applog.OpUpdate, userID, index, view.LoanName, "field", string(field))
	return view, nil
}

// MarkPaid records one installment when the loan is eligible. An
// ineligible loan is returned unchanged with applied false.
func (s *LoanService) MarkPaid(ctx context.Context, userID string, index int) (view LoanView, applied bool, err error) {
	err = s.mutate(ctx, userID, func(loans []core.Loan, now time.Time) ([]core.Loan, bool, error) {
		if index < 0 || index >= len(loans) {
			return nil, false, loanNotFound(index)
		}
		l := loans[index]
		if !l.CanMarkPaid(now) {
			view = newLoanView(index, l, now)
			return loans, false, nil
		}
		l = core.MarkPaid(l, now)
		applied = true
		view = newLoanView(index, l, now)
		return replaceLoan(loans, index, l), true, nil
	})
	if err != nil {
		return LoanView{}, false, err
	}
	if applied {
		s.logLoan(ctx, "EMI marked paid", applog.OpMarkPaid, userID, index, view.LoanName,
			"emis_paid", view.EMIsPaid, "emis_pending", view.EMIsPending)
	}
	return view, applied, nil
}

// Delete removes the loan at index unconditionally.
func (s *LoanService) Delete(ctx context.Context, userID string, index int) error {
	var name string
	err := s.mutate(ctx, userID, func(loans []core.Loan, _ time.Time) ([]core.Loan, bool, error) {
		if index < 0 || index >= len(loans) {
			return nil, false, loanNotFound(index)
		}
		name = loans[index].LoanName
		out := make([]core.Loan, 0, len(loans)-1)
		out = append(out, loans[:index]...)
		return append(out, loans[index+1:]...), true, nil
	})
	if err != nil {
		return err
	}
	s.logLoan(ctx, "Loan deleted", applog.OpDelete, userID, index, name)
	return nil
}

// mutate runs fn on the user's loans under the user lock and saves the
// result when fn reports a change.
func (s *LoanService) mutate(ctx context.Context, userID string, fn func([]core.Loan, time.Time) ([]core.Loan, bool, error)) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	unlock := s.locks.Lock(userID)
	defer unlock()

	loans, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	next, changed, err := fn(loans, s.opts.Now())
	if err != nil || !changed {
		return err
	}
	return s.save(ctx, userID, next)
}

func (s *LoanService) loans(ctx context.Context, userID string) ([]core.Loan, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(userID)
	defer unlock()
	return s.load(ctx, userID)
}

func (s *LoanService) load(ctx context.Context, userID string) ([]core.Loan, error) {
	if l, ok := s.cache.Get(userID); ok {
		return l, nil
	}
	l, err := storage.LoadLoans(ctx, s.store, userID)
	if err != nil {
		return nil, fmt.Errorf("load loans: %w", err)
	}
	s.cache.Set(userID, l)
	return l, nil
}

func (s *LoanService) save(ctx context.Context, userID string, loans []core.Loan) error {
	defer s.cache.Delete(userID)
	if err := storage.SaveLoans(ctx, s.store, userID, loans); err != nil {
		return fmt.Errorf("save loans: %w", err)
	}
	return nil
}

func (s *LoanService) logLoan(ctx context.Context, msg, op, userID string, index int, name string, extra ...any) {
	args := applog.NewFields().
		WithComponent(applog.ComponentLoans).
		WithOperation(op).
		WithUser(userID).
		WithLoan(index, name).
		ToSlice()
	slog.InfoContext(ctx, msg, append(args, extra...)...)
}

func newLoanView(index int, l core.Loan, now time.Time) LoanView {
	return LoanView{
		Index:           index,
		Loan:            l,
		DisplayStatus:   l.DisplayStatus(),
		Completed:       l.Completed(),
		PaidThisMonth:   l.PaidThisMonth(now),
		CanMarkPaid:     l.CanMarkPaid(now),
		ProgressPercent: math.Round(l.ProgressPercent()*100) / 100,
		AmountPaid:      l.AmountPaid(),
	}
}

// replaceLoan copies loans with index replaced; cached slices are never
// written in place.
func replaceLoan(loans []core.Loan, index int, l core.Loan) []core.Loan {
	out := make([]core.Loan, len(loans))
	copy(out, loans)
	out[index] = l
	return out
}

func loanNotFound(index int) error {
	return fmt.Errorf("%w: loan %d", ErrNotFound, index)
}
