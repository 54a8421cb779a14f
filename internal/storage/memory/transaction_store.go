package memory

import (
	"context"
	"sort"
	"sync"

	"solana-agent-sim/internal/domain"
	"solana-agent-sim/internal/storage"
)

// TransactionStore is an in-memory implementation of storage.TransactionStore.
type TransactionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TransactionRecord
}

// NewTransactionStore creates a new in-memory transaction store.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		data: make(map[string]*domain.TransactionRecord),
	}
}

// Compile-time interface check.
var _ storage.TransactionStore = (*TransactionStore)(nil)

// Insert adds a new transaction record. Returns ErrDuplicateKey if tx_id exists.
func (s *TransactionStore) Insert(_ context.Context, t *domain.TransactionRecord) error {
	if t == nil || t.TxID == "" || t.ParticipantID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.TxID]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *t
	s.data[t.TxID] = &cp
	return nil
}

// GetByParticipantID retrieves all transactions for a participant, ordered by created_at ASC.
func (s *TransactionStore) GetByParticipantID(_ context.Context, participantID string) ([]*domain.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TransactionRecord
	for _, t := range s.data {
		if t.ParticipantID == participantID {
			cp := *t
			result = append(result, &cp)
		}
	}

	sortTransactions(result)
	return result, nil
}

// GetByTimeRange retrieves transactions created within [start, end] (inclusive, ms).
func (s *TransactionStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TransactionRecord
	for _, t := range s.data {
		if t.CreatedAt >= start && t.CreatedAt <= end {
			cp := *t
			result = append(result, &cp)
		}
	}

	sortTransactions(result)
	return result, nil
}

// sortTransactions orders by (created_at, tx_id) for deterministic output.
func sortTransactions(txs []*domain.TransactionRecord) {
	sort.Slice(txs, func(i, j int) bool {
		if txs[i].CreatedAt != txs[j].CreatedAt {
			return txs[i].CreatedAt < txs[j].CreatedAt
		}
		return txs[i].TxID < txs[j].TxID
	})
}
