package services

import (
	"context"
	"fmt"
	"log/slog"

	"budgetwise/internal/cache"
	"budgetwise/internal/core"
	applog "budgetwise/internal/log"
	"budgetwise/internal/storage"
)

// GoalView is the savings goal together with the progress towards it.
type GoalView struct {
	Target   core.Money `json:"target"`
	Balance  core.Money `json:"balance"`
	Progress float64    `json:"progress"`
}

// GoalService owns the per-user savings goal. Progress is measured
// against the ledger balance.
type GoalService struct {
	store  storage.Store
	ledger *LedgerService
	cache  cache.Cache[core.SavingsGoal]
	locks  *keyedMutex
}

func NewGoalService(store storage.Store, ledger *LedgerService, opts Options) *GoalService {
	opts = opts.withDefaults()
	return &GoalService{
		store:  store,
		ledger: ledger,
		cache:  newCache[core.SavingsGoal](opts),
		locks:  newKeyedMutex(),
	}
}

func (s *GoalService) Get(ctx context.Context, userID string) (GoalView, error) {
	if err := requireUser(userID); err != nil {
		return GoalView{}, err
	}
	unlock := s.locks.Lock(userID)
	goal, err := s.load(ctx, userID)
	unlock()
	if err != nil {
		return GoalView{}, err
	}
	return s.view(ctx, userID, goal)
}

// Set replaces the goal when raw is a positive amount. Anything else is
// ignored: the current goal is returned and applied is false.
func (s *GoalService) Set(ctx context.Context, userID, raw string) (view GoalView, applied bool, err error) {
	if err := requireUser(userID); err != nil {
		return GoalView{}, false, err
	}

	unlock := s.locks.Lock(userID)
	goal, err := s.load(ctx, userID)
	if err != nil {
		unlock()
		return GoalView{}, false, err
	}
	next, ok := goal.Set(raw)
	if ok {
		if err := s.save(ctx, userID, next); err != nil {
			unlock()
			return GoalView{}, false, err
		}
		goal = next
	}
	unlock()

	if ok {
		slog.InfoContext(ctx, "Savings goal updated",
			applog.FieldComponent, applog.ComponentGoal,
			applog.FieldOperation, applog.OpUpdate,
			applog.FieldUserID, userID,
			applog.FieldAmount, goal.Target.String())
	} else {
		slog.DebugContext(ctx, "Ignoring invalid savings goal",
			applog.FieldComponent, applog.ComponentGoal,
			applog.FieldUserID, userID)
	}

	view, err = s.view(ctx, userID, goal)
	return view, ok, err
}

func (s *GoalService) view(ctx context.Context, userID string, goal core.SavingsGoal) (GoalView, error) {
	totals, err := s.ledger.Summary(ctx, userID)
	if err != nil {
		return GoalView{}, err
	}
	return GoalView{
		Target:   goal.Target,
		Balance:  totals.Balance,
		Progress: core.Progress(totals.Balance, goal.Target),
	}, nil
}

func (s *GoalService) load(ctx context.Context, userID string) (core.SavingsGoal, error) {
	if g, ok := s.cache.Get(userID); ok {
		return g, nil
	}
	g, err := storage.LoadGoal(ctx, s.store, userID)
	if err != nil {
		return core.SavingsGoal{}, fmt.Errorf("load goal: %w", err)
	}
	s.cache.Set(userID, g)
	return g, nil
}

func (s *GoalService) save(ctx context.Context, userID string, g core.SavingsGoal) error {
	defer s.cache.Delete(userID)
	if err := storage.SaveGoal(ctx, s.store, userID, g); err != nil {
		return fmt.Errorf("save goal: %w", err)
	}
	return nil
}
