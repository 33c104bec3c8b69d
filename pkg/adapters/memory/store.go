package memory

import (
	"context"
	"sync"

	"github.com/aretw0/weft/pkg/domain"
)

// Store implements ports.HistoryStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[domain.ChainID][]domain.HistoryEntry
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[domain.ChainID][]domain.HistoryEntry),
	}
}

// Save replaces the archived history of a chain.
func (s *Store) Save(ctx context.Context, id domain.ChainID, entries []domain.HistoryEntry) error {
	copied := make([]domain.HistoryEntry, len(entries))
	copy(copied, entries)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[id] = copied
	return nil
}

// Load retrieves the archived history of a chain.
func (s *Store) Load(ctx context.Context, id domain.ChainID) ([]domain.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, ok := s.data[id]
	if !ok {
		return nil, domain.ErrHistoryNotFound
	}

	// Copy on read so callers cannot mutate the archive.
	ret := make([]domain.HistoryEntry, len(entries))
	copy(ret, entries)
	return ret, nil
}

// Delete removes the archived history.
func (s *Store) Delete(ctx context.Context, id domain.ChainID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

// List returns the chains with an archived history.
func (s *Store) List(ctx context.Context) ([]domain.ChainID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]domain.ChainID, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	return ids, nil
}
