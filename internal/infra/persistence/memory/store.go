// Package memory keeps run records in process memory. The SQL backends
// embed it as their read model.
package memory

import (
	"context"
	"fmt"
	"sync"

	"eventmix/internal/ledger/core"
)

// Store implements core.Store.
type Store struct {
	mu   sync.RWMutex
	runs map[string]core.RunRecord
}

// NewStore returns an empty store.
func NewStore() *Store { return &Store{runs: make(map[string]core.RunRecord)} }

// Save inserts or replaces rec.
func (s *Store) Save(ctx context.Context, rec core.RunRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.runs[rec.ID] = rec.Clone()
	s.mu.Unlock()
	return nil
}

// Get returns the record with id.
func (s *Store) Get(_ context.Context, id string) (core.RunRecord, error) {
	s.mu.RLock()
	rec, ok := s.runs[id]
	s.mu.RUnlock()
	if !ok {
		return core.RunRecord{}, fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	return rec.Clone(), nil
}

// List returns every record, newest first.
func (s *Store) List(context.Context) ([]core.RunRecord, error) {
	s.mu.RLock()
	out := make([]core.RunRecord, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, r.Clone())
	}
	s.mu.RUnlock()
	core.SortNewestFirst(out)
	return out, nil
}

// Import replaces the contents with recs.
func (s *Store) Import(recs []core.RunRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = make(map[string]core.RunRecord, len(recs))
	for _, r := range recs {
		s.runs[r.ID] = r.Clone()
	}
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
