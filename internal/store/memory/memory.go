package memory

import (
	"context"
	"sync"

	"github.com/vnykmshr/invcache-go/internal/store"
)

// Store keeps slots in a map. Its contents outlive any cache built on it,
// which is what tests and single-process restarts need.
type Store struct {
	mu    sync.RWMutex
	slots map[string]string
}

var _ store.Store = (*Store)(nil)

// New creates an empty memory store
func New() *Store {
	return &Store{slots: make(map[string]string)}
}

// Get returns the slot value
func (s *Store) Get(_ context.Context, name string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.slots[name]
	return value, ok, nil
}

// Set stores the slot value
func (s *Store) Set(_ context.Context, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.slots[name] = value
	return nil
}

// Delete removes the slot
func (s *Store) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.slots, name)
	return nil
}

// Close is a no-op
func (s *Store) Close() error {
	return nil
}
