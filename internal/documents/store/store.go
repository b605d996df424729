// Package store persists raw document payloads. Only the repository writes
// here.
package store

import (
	"context"
	"slices"
	"sync"

	"healthpass/internal/documents/models"
)

// Store persists {original code, identifier} rows. A successful Store is
// visible to every later Restore.
type Store interface {
	Store(ctx context.Context, payload models.Payload) error
	Restore(ctx context.Context) ([]models.Payload, error)
	Remove(ctx context.Context, ids []models.Identifier) error
}

// MemoryStore keeps payloads in insertion order. Storing an existing
// identifier replaces the row in place.
type MemoryStore struct {
	mu       sync.RWMutex
	payloads []models.Payload
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Store(_ context.Context, payload models.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.payloads {
		if s.payloads[i].Identifier == payload.Identifier {
			s.payloads[i] = payload
			return nil
		}
	}
	s.payloads = append(s.payloads, payload)
	return nil
}

func (s *MemoryStore) Restore(_ context.Context) ([]models.Payload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.payloads), nil
}

func (s *MemoryStore) Remove(_ context.Context, ids []models.Identifier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = slices.DeleteFunc(s.payloads, func(p models.Payload) bool {
		return slices.Contains(ids, p.Identifier)
	})
	return nil
}
