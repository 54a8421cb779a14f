package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-agent-sim/internal/domain"
	"solana-agent-sim/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, r *domain.SimulationRun) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO simulation_runs (
			run_id, status, phase, population_size, max_active_window, batch_size,
			phase_duration_ms, speed_multiplier, started_at, ended_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.pool.Exec(ctx, query,
		r.RunID, r.Status, r.Phase, r.PopulationSize, r.MaxActiveWindow, r.BatchSize,
		r.PhaseDuration.Milliseconds(), r.SpeedMultiplier, r.StartedAt, r.EndedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, runID string) (*domain.SimulationRun, error) {
	query := `
		SELECT run_id, status, phase, population_size, max_active_window, batch_size,
		       phase_duration_ms, speed_multiplier, started_at, ended_at
		FROM simulation_runs
		WHERE run_id = $1
	`

	r, err := scanRun(s.pool.QueryRow(ctx, query, runID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run by id: %w", err)
	}
	return r, nil
}

// Update overwrites a run record. Returns ErrNotFound if not exists.
func (s *RunStore) Update(ctx context.Context, r *domain.SimulationRun) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE simulation_runs
		SET status = $2, phase = $3, population_size = $4, max_active_window = $5,
		    batch_size = $6, phase_duration_ms = $7, speed_multiplier = $8,
		    started_at = $9, ended_at = $10
		WHERE run_id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		r.RunID, r.Status, r.Phase, r.PopulationSize, r.MaxActiveWindow, r.BatchSize,
		r.PhaseDuration.Milliseconds(), r.SpeedMultiplier, r.StartedAt, r.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetLatest retrieves the most recently started run. Returns ErrNotFound if none.
func (s *RunStore) GetLatest(ctx context.Context) (*domain.SimulationRun, error) {
	query := `
		SELECT run_id, status, phase, population_size, max_active_window, batch_size,
		       phase_duration_ms, speed_multiplier, started_at, ended_at
		FROM simulation_runs
		ORDER BY started_at DESC
		LIMIT 1
	`

	r, err := scanRun(s.pool.QueryRow(ctx, query))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest run: %w", err)
	}
	return r, nil
}

// scanRun scans a single row.
func scanRun(row pgx.Row) (*domain.SimulationRun, error) {
	var r domain.SimulationRun
	var phaseDurationMs int64

	err := row.Scan(
		&r.RunID, &r.Status, &r.Phase, &r.PopulationSize, &r.MaxActiveWindow,
		&r.BatchSize, &phaseDurationMs, &r.SpeedMultiplier, &r.StartedAt, &r.EndedAt,
	)
	if err != nil {
		return nil, err
	}

	r.PhaseDuration = time.Duration(phaseDurationMs) * time.Millisecond
	return &r, nil
}
