package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"solana-agent-sim/internal/domain"
	"solana-agent-sim/internal/storage"
)

func testRun(id string) *domain.SimulationRun {
	return &domain.SimulationRun{
		RunID:           id,
		Status:          domain.RunStatusRunning,
		Phase:           domain.PhaseMarketAnalysis,
		PopulationSize:  100,
		MaxActiveWindow: 20,
		BatchSize:       10,
		PhaseDuration:   30 * time.Second,
		SpeedMultiplier: 1.0,
		StartedAt:       1700000000000,
	}
}

func TestRunStore_InsertGetUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewRunStore()

	if err := store.Insert(ctx, testRun("r1")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert(ctx, testRun("r1")); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}

	r, err := store.GetByID(ctx, "r1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}

	r.Status = domain.RunStatusStopped
	r.EndedAt = 1700000060000
	if err := store.Update(ctx, r); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := store.GetByID(ctx, "r1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != domain.RunStatusStopped || got.EndedAt == 0 {
		t.Errorf("update not applied: %+v", got)
	}
}

func TestRunStore_GetLatest(t *testing.T) {
	ctx := context.Background()
	store := NewRunStore()

	if _, err := store.GetLatest(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound on empty store, got %v", err)
	}

	for _, id := range []string{"r1", "r2", "r3"} {
		if err := store.Insert(ctx, testRun(id)); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	latest, err := store.GetLatest(ctx)
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if latest.RunID != "r3" {
		t.Errorf("GetLatest = %s, want r3", latest.RunID)
	}
}
