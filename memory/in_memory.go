package memory

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/trinity/core"
)

// entry is the internal representation persisted by InMemoryStore. A zero
// expiry means the entry never expires.
type entry struct {
	value  []byte
	expiry time.Time
}

// InMemoryStore is a volatile core.Store keeping entries in a process-local
// map. It is safe for concurrent access and best suited for ephemeral agent
// bindings, tests and demos. Expired entries are dropped lazily on read.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time // injectable clock for tests
}

var _ core.Store = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string]entry), now: time.Now}
}

// Get returns the value for key, treating expired entries as absent.
func (s *InMemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.expiry.IsZero() && s.now().After(e.expiry) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

// Put writes value under key, replacing any previous entry.
func (s *InMemoryStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiry = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
	return nil
}

// Delete removes the entry for key.
func (s *InMemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Close implements core.Store; no resources to release.
func (s *InMemoryStore) Close() error { return nil }
