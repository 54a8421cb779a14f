package storage

import (
	"context"

	"solana-agent-sim/internal/domain"
)

// ParticipantStore provides access to participants storage.
type ParticipantStore interface {
	// Insert adds a new participant. Returns ErrDuplicateKey if participant_id exists.
	Insert(ctx context.Context, p *domain.Participant) error

	// GetByID retrieves a participant by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, participantID string) (*domain.Participant, error)

	// GetActiveIDs retrieves the IDs of all active participants.
	GetActiveIDs(ctx context.Context) ([]string, error)

	// Count returns the total number of participants.
	Count(ctx context.Context) (int, error)

	// UpdateBalances sets both balances for a participant.
	// Returns ErrNotFound if the participant does not exist.
	UpdateBalances(ctx context.Context, participantID string, solBalance, tokenBalance float64) error

	// UpdateLastDecision records the participant's most recent decision.
	// Returns ErrNotFound if the participant does not exist.
	UpdateLastDecision(ctx context.Context, participantID string, d *domain.DecisionInfo) error

	// SetActive toggles the participant's active flag.
	// Returns ErrNotFound if the participant does not exist.
	SetActive(ctx context.Context, participantID string, active bool) error
}

// PoolStore provides access to the single pool_state row.
type PoolStore interface {
	// Get retrieves the pool state. Returns ErrNotFound if not initialized.
	Get(ctx context.Context) (*domain.PoolState, error)

	// Initialize creates the pool state. Returns ErrDuplicateKey if already present.
	Initialize(ctx context.Context, p *domain.PoolState) error

	// Update overwrites the pool state. Returns ErrNotFound if not initialized.
	Update(ctx context.Context, p *domain.PoolState) error
}

// TransactionStore provides access to transactions storage. Append-only.
type TransactionStore interface {
	// Insert adds a new transaction record. Returns ErrDuplicateKey if tx_id exists.
	Insert(ctx context.Context, t *domain.TransactionRecord) error

	// GetByParticipantID retrieves all transactions for a participant, ordered by created_at ASC.
	GetByParticipantID(ctx context.Context, participantID string) ([]*domain.TransactionRecord, error)

	// GetByTimeRange retrieves transactions created within [start, end] (inclusive, ms).
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.TransactionRecord, error)
}

// RunStore provides access to simulation_runs storage.
type RunStore interface {
	// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.SimulationRun) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.SimulationRun, error)

	// Update overwrites a run record. Returns ErrNotFound if not exists.
	Update(ctx context.Context, r *domain.SimulationRun) error

	// GetLatest retrieves the most recently started run. Returns ErrNotFound if none.
	GetLatest(ctx context.Context) (*domain.SimulationRun, error)
}

// MessageStore provides access to messages storage. Append-only.
type MessageStore interface {
	// Insert adds a new message and assigns its ID.
	Insert(ctx context.Context, m *domain.Message) error

	// GetRecent retrieves up to limit messages, most recent first.
	GetRecent(ctx context.Context, limit int) ([]*domain.Message, error)
}

// MarketStatsStore provides access to the market_stats timeseries.
type MarketStatsStore interface {
	// Insert adds a stats point.
	Insert(ctx context.Context, p *domain.MarketStatsPoint) error

	// GetByTimeRange retrieves points within [start, end] (inclusive, ms), ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.MarketStatsPoint, error)
}
