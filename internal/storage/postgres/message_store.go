package postgres

import (
	"context"
	"fmt"

	"solana-agent-sim/internal/domain"
	"solana-agent-sim/internal/storage"
)

// MessageStore implements storage.MessageStore using PostgreSQL.
type MessageStore struct {
	pool *Pool
}

// NewMessageStore creates a new MessageStore.
func NewMessageStore(pool *Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

// Compile-time interface check.
var _ storage.MessageStore = (*MessageStore)(nil)

// Insert adds a new message and assigns its ID.
func (s *MessageStore) Insert(ctx context.Context, m *domain.Message) error {
	if m == nil || m.ParticipantID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO messages (participant_id, text, sentiment, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING message_id
	`

	err := s.pool.QueryRow(ctx, query,
		m.ParticipantID, m.Text, m.Sentiment, m.CreatedAt,
	).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// GetRecent retrieves up to limit messages, most recent first.
func (s *MessageStore) GetRecent(ctx context.Context, limit int) ([]*domain.Message, error) {
	if limit <= 0 {
		return nil, nil
	}

	query := `
		SELECT message_id, participant_id, text, sentiment, created_at
		FROM messages
		ORDER BY created_at DESC, message_id DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent messages: %w", err)
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		var m domain.Message
		err := rows.Scan(&m.ID, &m.ParticipantID, &m.Text, &m.Sentiment, &m.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		messages = append(messages, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}
	return messages, nil
}
