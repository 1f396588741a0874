// Package storage persists per-user budgeting state.
//
// Every record is addressed by a Key made of the user id and a logical
// collection name. Payloads are opaque JSON documents; the typed loaders in
// state.go decode and validate them.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	CollectionTransactions Collection = "transactions"
	CollectionSavingsGoal  Collection = "savings_goal"
	CollectionSavedLoans   Collection = "saved_loans"
)

type (
	Collection string

	// Key addresses one collection of one user.
	Key struct {
		UserID     string
		Collection Collection
	}

	// Store is the persistence port used by the services.
	Store interface {
		// Load returns the payload stored under key or ErrNotFound.
		Load(ctx context.Context, key Key) ([]byte, error)
		// Save replaces the payload stored under key.
		Save(ctx context.Context, key Key, payload []byte) error
		// Users lists the user ids that have a payload in collection.
		Users(ctx context.Context, collection Collection) ([]string, error)
		Ping(ctx context.Context) error
		Close() error
	}
)

var (
	ErrNotFound          = errors.New("state not found")
	ErrInvalidKey        = errors.New("invalid storage key")
	ErrUnknownCollection = errors.New("unknown collection")
)

func (c Collection) Valid() bool {
	switch c {
	case CollectionTransactions, CollectionSavingsGoal, CollectionSavedLoans:
		return true
	}
	return false
}

func (k Key) Validate() error {
	if strings.TrimSpace(k.UserID) == "" {
		return fmt.Errorf("%w: empty user id", ErrInvalidKey)
	}
	if !k.Collection.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCollection, k.Collection)
	}
	return nil
}

func (k Key) String() string {
	return k.UserID + "/" + string(k.Collection)
}
