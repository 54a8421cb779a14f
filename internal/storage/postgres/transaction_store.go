package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-agent-sim/internal/domain"
	"solana-agent-sim/internal/storage"
)

// TransactionStore implements storage.TransactionStore using PostgreSQL.
type TransactionStore struct {
	pool *Pool
}

// NewTransactionStore creates a new TransactionStore.
func NewTransactionStore(pool *Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TransactionStore = (*TransactionStore)(nil)

// Insert adds a new transaction record. Returns ErrDuplicateKey if tx_id exists.
func (s *TransactionStore) Insert(ctx context.Context, t *domain.TransactionRecord) error {
	if t == nil || t.TxID == "" || t.ParticipantID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO transactions (
			tx_id, participant_id, direction, amount_in, amount_out,
			price_impact, status, detail, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.pool.Exec(ctx, query,
		t.TxID, t.ParticipantID, t.Direction, t.AmountIn, t.AmountOut,
		t.PriceImpact, t.Status, t.Detail, t.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetByParticipantID retrieves all transactions for a participant, ordered by created_at ASC.
func (s *TransactionStore) GetByParticipantID(ctx context.Context, participantID string) ([]*domain.TransactionRecord, error) {
	query := `
		SELECT tx_id, participant_id, direction, amount_in, amount_out,
		       price_impact, status, detail, created_at
		FROM transactions
		WHERE participant_id = $1
		ORDER BY created_at ASC, tx_id ASC
	`

	rows, err := s.pool.Query(ctx, query, participantID)
	if err != nil {
		return nil, fmt.Errorf("get transactions by participant: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// GetByTimeRange retrieves transactions created within [start, end] (inclusive, ms).
func (s *TransactionStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.TransactionRecord, error) {
	query := `
		SELECT tx_id, participant_id, direction, amount_in, amount_out,
		       price_impact, status, detail, created_at
		FROM transactions
		WHERE created_at >= $1 AND created_at <= $2
		ORDER BY created_at ASC, tx_id ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get transactions by time range: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// scanTransactions scans multiple rows.
func scanTransactions(rows pgx.Rows) ([]*domain.TransactionRecord, error) {
	var txs []*domain.TransactionRecord

	for rows.Next() {
		var t domain.TransactionRecord
		err := rows.Scan(
			&t.TxID, &t.ParticipantID, &t.Direction, &t.AmountIn, &t.AmountOut,
			&t.PriceImpact, &t.Status, &t.Detail, &t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		txs = append(txs, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txs, nil
}
