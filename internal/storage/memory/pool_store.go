package memory

import (
	"context"
	"sync"

	"solana-agent-sim/internal/domain"
	"solana-agent-sim/internal/storage"
)

// PoolStore is an in-memory implementation of storage.PoolStore.
// Holds the single pool_state row.
type PoolStore struct {
	mu   sync.RWMutex
	pool *domain.PoolState
}

// NewPoolStore creates a new in-memory pool store.
func NewPoolStore() *PoolStore {
	return &PoolStore{}
}

// Compile-time interface check.
var _ storage.PoolStore = (*PoolStore)(nil)

// Get retrieves the pool state. Returns ErrNotFound if not initialized.
func (s *PoolStore) Get(_ context.Context) (*domain.PoolState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.pool == nil {
		return nil, storage.ErrNotFound
	}
	cp := *s.pool
	return &cp, nil
}

// Initialize creates the pool state. Returns ErrDuplicateKey if already present.
func (s *PoolStore) Initialize(_ context.Context, p *domain.PoolState) error {
	if p == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pool != nil {
		return storage.ErrDuplicateKey
	}
	cp := *p
	s.pool = &cp
	return nil
}

// Update overwrites the pool state. Returns ErrNotFound if not initialized.
func (s *PoolStore) Update(_ context.Context, p *domain.PoolState) error {
	if p == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pool == nil {
		return storage.ErrNotFound
	}
	cp := *p
	s.pool = &cp
	return nil
}
