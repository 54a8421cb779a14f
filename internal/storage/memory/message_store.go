package memory

import (
	"context"
	"sync"

	"solana-agent-sim/internal/domain"
	"solana-agent-sim/internal/storage"
)

// MessageStore is an in-memory implementation of storage.MessageStore.
type MessageStore struct {
	mu     sync.RWMutex
	data   []*domain.Message
	nextID int64
}

// NewMessageStore creates a new in-memory message store.
func NewMessageStore() *MessageStore {
	return &MessageStore{nextID: 1}
}

// Compile-time interface check.
var _ storage.MessageStore = (*MessageStore)(nil)

// Insert adds a new message and assigns its ID.
func (s *MessageStore) Insert(_ context.Context, m *domain.Message) error {
	if m == nil || m.ParticipantID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m.ID = s.nextID
	s.nextID++

	cp := *m
	s.data = append(s.data, &cp)
	return nil
}

// GetRecent retrieves up to limit messages, most recent first.
func (s *MessageStore) GetRecent(_ context.Context, limit int) ([]*domain.Message, error) {
	if limit <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.data)
	if limit > n {
		limit = n
	}

	result := make([]*domain.Message, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		cp := *s.data[i]
		result = append(result, &cp)
	}
	return result, nil
}
