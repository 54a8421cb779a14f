package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"solana-agent-sim/internal/domain"
	"solana-agent-sim/internal/storage"
)

func testTx(id, participantID string, createdAt int64) *domain.TransactionRecord {
	return &domain.TransactionRecord{
		TxID:          id,
		ParticipantID: participantID,
		Direction:     domain.DirectionBuy,
		AmountIn:      10,
		AmountOut:     9900.99,
		PriceImpact:   2.0,
		Status:        domain.TxStatusConfirmed,
		CreatedAt:     createdAt,
	}
}

func TestTransactionStore_InsertAndQuery(t *testing.T) {
	ctx := context.Background()
	store := NewTransactionStore()

	// Insert out of time order, expect ordered reads
	if err := store.Insert(ctx, testTx("tx2", "p1", 2000)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert(ctx, testTx("tx1", "p1", 1000)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert(ctx, testTx("tx3", "p2", 3000)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	byParticipant, err := store.GetByParticipantID(ctx, "p1")
	if err != nil {
		t.Fatalf("GetByParticipantID failed: %v", err)
	}
	if len(byParticipant) != 2 {
		t.Fatalf("expected 2 transactions for p1, got %d", len(byParticipant))
	}
	if byParticipant[0].TxID != "tx1" || byParticipant[1].TxID != "tx2" {
		t.Errorf("transactions not ordered by created_at: %s, %s", byParticipant[0].TxID, byParticipant[1].TxID)
	}

	inRange, err := store.GetByTimeRange(ctx, 1000, 2000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(inRange) != 2 {
		t.Errorf("expected 2 transactions in [1000,2000], got %d", len(inRange))
	}
}

func TestTransactionStore_Duplicate(t *testing.T) {
	ctx := context.Background()
	store := NewTransactionStore()

	if err := store.Insert(ctx, testTx("tx1", "p1", 1000)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	err := store.Insert(ctx, testTx("tx1", "p1", 1000))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestTransactionStore_FailedRecordsKept(t *testing.T) {
	ctx := context.Background()
	store := NewTransactionStore()

	for i := 0; i < 3; i++ {
		tx := testTx(fmt.Sprintf("tx%d", i), "p1", int64(1000+i))
		if i == 1 {
			tx.Status = domain.TxStatusFailed
			tx.AmountOut = 0
			tx.Detail = "slippage exceeded"
		}
		if err := store.Insert(ctx, tx); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	all, err := store.GetByParticipantID(ctx, "p1")
	if err != nil {
		t.Fatalf("GetByParticipantID failed: %v", err)
	}
	var failed int
	for _, tx := range all {
		if tx.Status == domain.TxStatusFailed {
			failed++
		}
	}
	if failed != 1 {
		t.Errorf("expected 1 FAILED record, got %d", failed)
	}
}
