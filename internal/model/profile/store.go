package profile

import (
	"context"
	"sync"
)

// Store is the string key/value contract the widget persists profiles in.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// MemoryStore implements Store with an in-memory map.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied values.
func NewMemoryStore(items map[string]string) *MemoryStore {
	copied := make(map[string]string, len(items))
	for k, v := range items {
		copied[k] = v
	}
	return &MemoryStore{items: copied}
}

// Get looks up a key.
func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.items[key]
	return value, ok, nil
}

// Set stores a key.
func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	s.items[key] = value
	s.mu.Unlock()
	return nil
}

// Scoped returns a Store whose keys are prefixed with scope, so several
// visitors can share one backing store without reading each other's fields.
// An empty scope returns store unchanged.
func Scoped(store Store, scope string) Store {
	if scope == "" {
		return store
	}
	return scopedStore{store: store, prefix: scope + ":"}
}

type scopedStore struct {
	store  Store
	prefix string
}

func (s scopedStore) Get(ctx context.Context, key string) (string, bool, error) {
	return s.store.Get(ctx, s.prefix+key)
}

func (s scopedStore) Set(ctx context.Context, key, value string) error {
	return s.store.Set(ctx, s.prefix+key, value)
}
