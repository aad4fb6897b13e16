package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/aretw0/flowgraph/pkg/domain"
)

// Store implements ports.RunStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.RunRecord
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.RunRecord),
	}
}

// Save persists the record in memory.
func (s *Store) Save(ctx context.Context, rec *domain.RunRecord) error {
	// Copy to ensure isolation, similar to serialization
	copied := cloneRecord(rec)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[rec.RunID] = copied
	return nil
}

// Load retrieves the record from memory.
func (s *Store) Load(ctx context.Context, runID string) (*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[runID]
	if !ok {
		return nil, domain.ErrRunNotFound
	}

	// Copy on read so callers can't mutate the stored record by pointer
	return cloneRecord(rec), nil
}

// Delete removes the record.
func (s *Store) Delete(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, runID)
	return nil
}

// List returns stored run IDs in sorted order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Sorted(maps.Keys(s.data)), nil
}

// cloneRecord copies the record, its state and its log. State values are
// shared (shallow copy).
func cloneRecord(rec *domain.RunRecord) *domain.RunRecord {
	ret := *rec
	ret.FinalState = rec.FinalState.Snapshot()
	if rec.Log != nil {
		ret.Log = make([]domain.StepLog, len(rec.Log))
		for i, entry := range rec.Log {
			entry.Snapshot = entry.Snapshot.Snapshot()
			entry.Delta = maps.Clone(entry.Delta)
			ret.Log[i] = entry
		}
	}
	return &ret
}
