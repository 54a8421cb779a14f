package memory

import (
	"context"
	"errors"
	"testing"

	"solana-agent-sim/internal/domain"
	"solana-agent-sim/internal/storage"
)

func testParticipant(id string) *domain.Participant {
	return &domain.Participant{
		ParticipantID: id,
		WalletAddress: "wallet-" + id,
		Personality:   domain.PersonalityConservative,
		SolBalance:    100,
		TokenBalance:  1000,
		Active:        true,
		CreatedAt:     1700000000000,
	}
}

func TestParticipantStore_InsertAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewParticipantStore()

	p := testParticipant("p1")
	if err := store.Insert(ctx, p); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "p1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.WalletAddress != p.WalletAddress || got.SolBalance != p.SolBalance {
		t.Errorf("got %+v, want %+v", got, p)
	}

	// Returned value is a copy
	got.SolBalance = 0
	again, err := store.GetByID(ctx, "p1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if again.SolBalance != 100 {
		t.Error("store leaked internal pointer: mutation visible")
	}
}

func TestParticipantStore_InsertDuplicate(t *testing.T) {
	ctx := context.Background()
	store := NewParticipantStore()

	if err := store.Insert(ctx, testParticipant("p1")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	err := store.Insert(ctx, testParticipant("p1"))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestParticipantStore_GetMissing(t *testing.T) {
	store := NewParticipantStore()

	_, err := store.GetByID(context.Background(), "absent")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestParticipantStore_UpdateBalances(t *testing.T) {
	ctx := context.Background()
	store := NewParticipantStore()

	if err := store.Insert(ctx, testParticipant("p1")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := store.UpdateBalances(ctx, "p1", 42.5, 900); err != nil {
		t.Fatalf("UpdateBalances failed: %v", err)
	}

	got, err := store.GetByID(ctx, "p1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.SolBalance != 42.5 || got.TokenBalance != 900 {
		t.Errorf("balances not updated: %+v", got)
	}

	err = store.UpdateBalances(ctx, "absent", 1, 1)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestParticipantStore_UpdateLastDecision(t *testing.T) {
	ctx := context.Background()
	store := NewParticipantStore()

	if err := store.Insert(ctx, testParticipant("p1")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	d := &domain.DecisionInfo{Kind: domain.DecisionTrade, Payload: "buy 10", Timestamp: 1700000001000}
	if err := store.UpdateLastDecision(ctx, "p1", d); err != nil {
		t.Fatalf("UpdateLastDecision failed: %v", err)
	}

	got, err := store.GetByID(ctx, "p1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.LastDecision == nil || got.LastDecision.Kind != domain.DecisionTrade {
		t.Errorf("last decision not recorded: %+v", got.LastDecision)
	}
	if got.UpdatedAt != d.Timestamp {
		t.Errorf("UpdatedAt = %d, want %d", got.UpdatedAt, d.Timestamp)
	}
}

func TestParticipantStore_GetActiveIDs(t *testing.T) {
	ctx := context.Background()
	store := NewParticipantStore()

	for _, id := range []string{"p1", "p2", "p3"} {
		if err := store.Insert(ctx, testParticipant(id)); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	if err := store.SetActive(ctx, "p2", false); err != nil {
		t.Fatalf("SetActive failed: %v", err)
	}

	ids, err := store.GetActiveIDs(ctx)
	if err != nil {
		t.Fatalf("GetActiveIDs failed: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("expected 2 active IDs, got %d", len(ids))
	}
	for _, id := range ids {
		if id == "p2" {
			t.Error("inactive participant returned as active")
		}
	}

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Count = %d, want 3", n)
	}
}
