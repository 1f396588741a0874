// Package services orchestrates the per-user budgeting state: it loads
// and saves through storage, caches hot state and publishes ledger events.
package services

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"budgetwise/internal/cache"
)

var (
	// ErrValidation marks caller input that failed domain validation.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a loan index or resource that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnauthenticated is returned when no user id is supplied.
	ErrUnauthenticated = errors.New("unauthenticated")
)

const (
	defaultCacheSize = 500
	defaultCacheTTL  = 5 * time.Minute
)

// Options tunes the services. Zero values pick sensible defaults.
type Options struct {
	CacheSize int
	CacheTTL  time.Duration
	// Manager, when set, gets every service cache registered for cleanup.
	Manager *cache.Manager
	Now     func() time.Time
}

func (o Options) withDefaults() Options {
	if o.CacheSize <= 0 {
		o.CacheSize = defaultCacheSize
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = defaultCacheTTL
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

func newCache[T any](o Options) *cache.LRUCache[T] {
	c := cache.NewLRUCache[T](o.CacheSize, o.CacheTTL)
	if o.Manager != nil {
		o.Manager.Register(c)
	}
	return c
}

func validation(err error) error {
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

func requireUser(userID string) error {
	if userID == "" {
		return ErrUnauthenticated
	}
	return nil
}

// keyedMutex serializes mutations per user. Entries are dropped once no
// goroutine holds or waits for them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refLock)}
}

// Lock acquires the lock for key and returns its release function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
