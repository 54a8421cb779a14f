package postgres

import (
	"context"
	"fmt"

	"solana-agent-sim/internal/domain"
	"solana-agent-sim/internal/storage"
)

// PoolStore implements storage.PoolStore using PostgreSQL.
// The pool_state table holds exactly one row with pool_id = 1.
type PoolStore struct {
	pool *Pool
}

// NewPoolStore creates a new PoolStore.
func NewPoolStore(pool *Pool) *PoolStore {
	return &PoolStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PoolStore = (*PoolStore)(nil)

// Get retrieves the pool state. Returns ErrNotFound if not initialized.
func (s *PoolStore) Get(ctx context.Context) (*domain.PoolState, error) {
	query := `
		SELECT sol_reserve, token_reserve, k, price, cumulative_volume,
		       volume_24h, last_trade_at, updated_at
		FROM pool_state
		WHERE pool_id = 1
	`

	var p domain.PoolState
	err := s.pool.QueryRow(ctx, query).Scan(
		&p.SolReserve, &p.TokenReserve, &p.K, &p.Price,
		&p.CumulativeVolume, &p.Volume24h, &p.LastTradeAt, &p.UpdatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get pool state: %w", err)
	}
	return &p, nil
}

// Initialize creates the pool state. Returns ErrDuplicateKey if already present.
func (s *PoolStore) Initialize(ctx context.Context, p *domain.PoolState) error {
	if p == nil {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO pool_state (
			pool_id, sol_reserve, token_reserve, k, price, cumulative_volume,
			volume_24h, last_trade_at, updated_at
		) VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		p.SolReserve, p.TokenReserve, p.K, p.Price,
		p.CumulativeVolume, p.Volume24h, p.LastTradeAt, p.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("initialize pool state: %w", err)
	}
	return nil
}

// Update overwrites the pool state. Returns ErrNotFound if not initialized.
func (s *PoolStore) Update(ctx context.Context, p *domain.PoolState) error {
	if p == nil {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE pool_state
		SET sol_reserve = $1, token_reserve = $2, k = $3, price = $4,
		    cumulative_volume = $5, volume_24h = $6, last_trade_at = $7, updated_at = $8
		WHERE pool_id = 1
	`

	tag, err := s.pool.Exec(ctx, query,
		p.SolReserve, p.TokenReserve, p.K, p.Price,
		p.CumulativeVolume, p.Volume24h, p.LastTradeAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update pool state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
