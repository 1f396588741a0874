package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"budgetwise/internal/core"
)

// LoadLedger returns the user's ledger. A missing or malformed payload
// yields an empty ledger; entries that fail to decode or validate are
// dropped and the rest are kept.
func LoadLedger(ctx context.Context, s Store, userID string) (core.Ledger, error) {
	txs, err := loadEntries[core.Transaction](ctx, s, Key{UserID: userID, Collection: CollectionTransactions})
	return core.Ledger(txs), err
}

func SaveLedger(ctx context.Context, s Store, userID string, ledger core.Ledger) error {
	if ledger == nil {
		ledger = core.Ledger{}
	}
	return saveJSON(ctx, s, Key{UserID: userID, Collection: CollectionTransactions}, ledger)
}

// LoadGoal returns the user's savings goal, or the default goal when the
// stored value is absent or not a positive amount.
func LoadGoal(ctx context.Context, s Store, userID string) (core.SavingsGoal, error) {
	var goal core.SavingsGoal
	ok, err := loadJSON(ctx, s, Key{UserID: userID, Collection: CollectionSavingsGoal}, &goal)
	if err != nil || !ok {
		return core.DefaultGoal(), err
	}
	if verr := goal.Validate(); verr != nil {
		warnInvalid(ctx, userID, CollectionSavingsGoal, verr)
		return core.DefaultGoal(), nil
	}
	return goal, nil
}

func SaveGoal(ctx context.Context, s Store, userID string, goal core.SavingsGoal) error {
	return saveJSON(ctx, s, Key{UserID: userID, Collection: CollectionSavingsGoal}, goal)
}

// LoadLoans returns the user's saved loans, dropping invalid entries.
func LoadLoans(ctx context.Context, s Store, userID string) ([]core.Loan, error) {
	return loadEntries[core.Loan](ctx, s, Key{UserID: userID, Collection: CollectionSavedLoans})
}

func SaveLoans(ctx context.Context, s Store, userID string, loans []core.Loan) error {
	if loans == nil {
		loans = []core.Loan{}
	}
	return saveJSON(ctx, s, Key{UserID: userID, Collection: CollectionSavedLoans}, loans)
}

// loadJSON decodes the payload under key into dst. It reports false when
// the caller should fall back to its default: nothing stored, or a payload
// that does not decode. Only store failures are returned as errors.
func loadJSON(ctx context.Context, s Store, key Key, dst any) (bool, error) {
	payload, err := s.Load(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load state: %w", err)
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		warnInvalid(ctx, key.UserID, key.Collection, err)
		return false, nil
	}
	return true, nil
}

// loadEntries decodes a JSON array entry by entry so one bad entry does
// not take the valid ones with it. The result is never nil.
func loadEntries[T interface{ Validate() error }](ctx context.Context, s Store, key Key) ([]T, error) {
	var raw []json.RawMessage
	ok, err := loadJSON(ctx, s, key, &raw)
	if err != nil || !ok {
		return []T{}, err
	}
	out := make([]T, 0, len(raw))
	for i, r := range raw {
		var v T
		if err := json.Unmarshal(r, &v); err != nil {
			warnInvalid(ctx, key.UserID, key.Collection, fmt.Errorf("entry %d: %w", i, err))
			continue
		}
		if err := v.Validate(); err != nil {
			warnInvalid(ctx, key.UserID, key.Collection, fmt.Errorf("entry %d: %w", i, err))
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func saveJSON(ctx context.Context, s Store, key Key, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key.Collection, err)
	}
	if err := s.Save(ctx, key, payload); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

func warnInvalid(ctx context.Context, userID string, c Collection, err error) {
	slog.WarnContext(ctx, "Discarding invalid stored state",
		"user_id", userID,
		"collection", c,
		"error", err)
}
