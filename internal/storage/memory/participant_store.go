package memory

import (
	"context"
	"sync"

	"solana-agent-sim/internal/domain"
	"solana-agent-sim/internal/storage"
)

// ParticipantStore is an in-memory implementation of storage.ParticipantStore.
type ParticipantStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Participant
}

// NewParticipantStore creates a new in-memory participant store.
func NewParticipantStore() *ParticipantStore {
	return &ParticipantStore{
		data: make(map[string]*domain.Participant),
	}
}

// Compile-time interface check.
var _ storage.ParticipantStore = (*ParticipantStore)(nil)

// Insert adds a new participant. Returns ErrDuplicateKey if exists.
func (s *ParticipantStore) Insert(_ context.Context, p *domain.Participant) error {
	if p == nil || p.ParticipantID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.ParticipantID]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *p
	s.data[p.ParticipantID] = &cp
	return nil
}

// GetByID retrieves a participant by ID. Returns ErrNotFound if not exists.
func (s *ParticipantStore) GetByID(_ context.Context, participantID string) (*domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.data[participantID]
	if !ok {
		return nil, storage.ErrNotFound
	}

	cp := *p
	if p.LastDecision != nil {
		d := *p.LastDecision
		cp.LastDecision = &d
	}
	return &cp, nil
}

// GetActiveIDs retrieves the IDs of all active participants.
func (s *ParticipantStore) GetActiveIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id, p := range s.data {
		if p.Active {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Count returns the total number of participants.
func (s *ParticipantStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data), nil
}

// UpdateBalances sets both balances for a participant.
func (s *ParticipantStore) UpdateBalances(_ context.Context, participantID string, solBalance, tokenBalance float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.data[participantID]
	if !ok {
		return storage.ErrNotFound
	}
	p.SolBalance = solBalance
	p.TokenBalance = tokenBalance
	return nil
}

// UpdateLastDecision records the participant's most recent decision.
func (s *ParticipantStore) UpdateLastDecision(_ context.Context, participantID string, d *domain.DecisionInfo) error {
	if d == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.data[participantID]
	if !ok {
		return storage.ErrNotFound
	}
	cp := *d
	p.LastDecision = &cp
	p.UpdatedAt = d.Timestamp
	return nil
}

// SetActive toggles the participant's active flag.
func (s *ParticipantStore) SetActive(_ context.Context, participantID string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.data[participantID]
	if !ok {
		return storage.ErrNotFound
	}
	p.Active = active
	return nil
}
