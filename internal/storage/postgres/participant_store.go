package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-agent-sim/internal/domain"
	"solana-agent-sim/internal/storage"
)

// ParticipantStore implements storage.ParticipantStore using PostgreSQL.
type ParticipantStore struct {
	pool *Pool
}

// NewParticipantStore creates a new ParticipantStore.
func NewParticipantStore(pool *Pool) *ParticipantStore {
	return &ParticipantStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ParticipantStore = (*ParticipantStore)(nil)

// Insert adds a new participant. Returns ErrDuplicateKey if participant_id exists.
func (s *ParticipantStore) Insert(ctx context.Context, p *domain.Participant) error {
	if p == nil || p.ParticipantID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO participants (
			participant_id, wallet_address, personality, sol_balance, token_balance,
			active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		p.ParticipantID,
		p.WalletAddress,
		p.Personality,
		p.SolBalance,
		p.TokenBalance,
		p.Active,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

// GetByID retrieves a participant by its ID. Returns ErrNotFound if not exists.
func (s *ParticipantStore) GetByID(ctx context.Context, participantID string) (*domain.Participant, error) {
	query := `
		SELECT participant_id, wallet_address, personality, sol_balance, token_balance,
		       active, last_decision_kind, last_decision_payload, last_decision_at,
		       created_at, updated_at
		FROM participants
		WHERE participant_id = $1
	`

	row := s.pool.QueryRow(ctx, query, participantID)
	p, err := scanParticipant(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get participant by id: %w", err)
	}
	return p, nil
}

// GetActiveIDs retrieves the IDs of all active participants.
func (s *ParticipantStore) GetActiveIDs(ctx context.Context) ([]string, error) {
	query := `SELECT participant_id FROM participants WHERE active`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get active participant ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan participant id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participant ids: %w", err)
	}
	return ids, nil
}

// Count returns the total number of participants.
func (s *ParticipantStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM participants`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count participants: %w", err)
	}
	return count, nil
}

// UpdateBalances sets both balances for a participant.
func (s *ParticipantStore) UpdateBalances(ctx context.Context, participantID string, solBalance, tokenBalance float64) error {
	query := `
		UPDATE participants
		SET sol_balance = $2, token_balance = $3
		WHERE participant_id = $1
	`

	tag, err := s.pool.Exec(ctx, query, participantID, solBalance, tokenBalance)
	if err != nil {
		return fmt.Errorf("update participant balances: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// UpdateLastDecision records the participant's most recent decision.
func (s *ParticipantStore) UpdateLastDecision(ctx context.Context, participantID string, d *domain.DecisionInfo) error {
	if d == nil {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE participants
		SET last_decision_kind = $2, last_decision_payload = $3, last_decision_at = $4,
		    updated_at = $4
		WHERE participant_id = $1
	`

	tag, err := s.pool.Exec(ctx, query, participantID, d.Kind, d.Payload, d.Timestamp)
	if err != nil {
		return fmt.Errorf("update participant last decision: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SetActive toggles the participant's active flag.
func (s *ParticipantStore) SetActive(ctx context.Context, participantID string, active bool) error {
	query := `UPDATE participants SET active = $2 WHERE participant_id = $1`

	tag, err := s.pool.Exec(ctx, query, participantID, active)
	if err != nil {
		return fmt.Errorf("set participant active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanParticipant scans a single row.
func scanParticipant(row pgx.Row) (*domain.Participant, error) {
	var p domain.Participant
	var decisionKind, decisionPayload string
	var decisionAt int64

	err := row.Scan(
		&p.ParticipantID, &p.WalletAddress, &p.Personality,
		&p.SolBalance, &p.TokenBalance, &p.Active,
		&decisionKind, &decisionPayload, &decisionAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if decisionKind != "" {
		p.LastDecision = &domain.DecisionInfo{
			Kind:      decisionKind,
			Payload:   decisionPayload,
			Timestamp: decisionAt,
		}
	}
	return &p, nil
}
