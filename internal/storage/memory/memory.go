// Package memory is an in-process storage.Store for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"budgetwise/internal/storage"
)

type Store struct {
	mu    sync.RWMutex
	items map[storage.Key][]byte
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{items: make(map[storage.Key][]byte)}
}

func (s *Store) Load(_ context.Context, key storage.Key) ([]byte, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	payload, ok := s.items[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := make([]byte, len(payload))
	copy(out, payload)
	return out, nil
}

func (s *Store) Save(_ context.Context, key storage.Key, payload []byte) error {
	if err := key.Validate(); err != nil {
		return err
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = cp
	return nil
}

func (s *Store) Users(_ context.Context, collection storage.Collection) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var users []string
	for k := range s.items {
		if k.Collection == collection {
			users = append(users, k.UserID)
		}
	}
	sort.Strings(users)
	return users, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
