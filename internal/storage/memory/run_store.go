package memory

import (
	"context"
	"sync"

	"solana-agent-sim/internal/domain"
	"solana-agent-sim/internal/storage"
)

// RunStore is an in-memory implementation of storage.RunStore.
type RunStore struct {
	mu    sync.RWMutex
	data  map[string]*domain.SimulationRun
	order []string // insertion order, latest last
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		data: make(map[string]*domain.SimulationRun),
	}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(_ context.Context, r *domain.SimulationRun) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *r
	s.data[r.RunID] = &cp
	s.order = append(s.order, r.RunID)
	return nil
}

// GetByID retrieves a run by ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(_ context.Context, runID string) (*domain.SimulationRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.data[runID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

// Update overwrites a run record. Returns ErrNotFound if not exists.
func (s *RunStore) Update(_ context.Context, r *domain.SimulationRun) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[r.RunID]; !ok {
		return storage.ErrNotFound
	}
	cp := *r
	s.data[r.RunID] = &cp
	return nil
}

// GetLatest retrieves the most recently inserted run. Returns ErrNotFound if none.
func (s *RunStore) GetLatest(_ context.Context) (*domain.SimulationRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.order) == 0 {
		return nil, storage.ErrNotFound
	}
	cp := *s.data[s.order[len(s.order)-1]]
	return &cp, nil
}
