package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-agent-sim/internal/domain"
	"solana-agent-sim/internal/storage"
)

func testRun(runID string, startedAt int64) *domain.SimulationRun {
	return &domain.SimulationRun{
		RunID:           runID,
		Status:          domain.RunStatusRunning,
		Phase:           domain.PhaseMarketAnalysis,
		PopulationSize:  100,
		MaxActiveWindow: 50,
		BatchSize:       10,
		PhaseDuration:   30 * time.Second,
		SpeedMultiplier: 1.0,
		StartedAt:       startedAt,
	}
}

func TestRunStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRunStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testRun("run-1", 1000)))

	got, err := store.GetByID(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusRunning, got.Status)
	assert.Equal(t, domain.PhaseMarketAnalysis, got.Phase)
	assert.Equal(t, 100, got.PopulationSize)
	assert.Equal(t, 30*time.Second, got.PhaseDuration)
	assert.Equal(t, 1.0, got.SpeedMultiplier)
	assert.Equal(t, int64(0), got.EndedAt)

	err = store.Insert(ctx, testRun("run-1", 2000))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	_, err = store.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRunStore_Update(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRunStore(pool)
	ctx := context.Background()

	err := store.Update(ctx, testRun("run-1", 1000))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.Insert(ctx, testRun("run-1", 1000)))

	ended := testRun("run-1", 1000)
	ended.Status = domain.RunStatusStopped
	ended.Phase = domain.PhaseReporting
	ended.EndedAt = 5000
	require.NoError(t, store.Update(ctx, ended))

	got, err := store.GetByID(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusStopped, got.Status)
	assert.Equal(t, domain.PhaseReporting, got.Phase)
	assert.Equal(t, int64(5000), got.EndedAt)
}

func TestRunStore_GetLatest(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRunStore(pool)
	ctx := context.Background()

	_, err := store.GetLatest(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.Insert(ctx, testRun("run-1", 1000)))
	require.NoError(t, store.Insert(ctx, testRun("run-3", 3000)))
	require.NoError(t, store.Insert(ctx, testRun("run-2", 2000)))

	got, err := store.GetLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-3", got.RunID)
}
