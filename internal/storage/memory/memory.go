package memory

import (
	"context"
	"sort"
	"sync"

	"finplan/internal/storage"
)

// Store is an in-memory storage.KV. Values are copied on the way in and out.
type Store struct {
	mu    sync.Mutex
	items map[string][]byte
	// FailOn, when set, makes Set fail for the matching keys. Used by tests
	// that exercise partial failures.
	FailOn func(key string) error
}

var _ storage.KV = (*Store)(nil)

func New() *Store {
	return &Store{items: make(map[string][]byte)}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[key]
	if !ok {
		return nil, storage.ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailOn != nil {
		if err := s.FailOn(key); err != nil {
			return err
		}
	}
	s.items[key] = append([]byte(nil), value...)
	return nil
}

func (s *Store) Keys(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.items, k)
	}
	return nil
}
