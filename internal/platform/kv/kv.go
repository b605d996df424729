// Package kv is the small key-value store used for claim tags, profiles and
// bookkeeping markers.
package kv

import (
	"context"
	"fmt"
	"sync"

	"healthpass/pkg/platform/sentinel"
)

// Store persists opaque values by key. Load returns sentinel.ErrNotFound for
// absent keys; Remove of an absent key is not an error.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Store(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

func (s *MemoryStore) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return nil, fmt.Errorf("key %s: %w", key, sentinel.ErrNotFound)
	}
	return append([]byte(nil), v...), nil
}

func (s *MemoryStore) Store(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = append([]byte(nil), value...)
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}
