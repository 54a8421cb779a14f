package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-agent-sim/internal/domain"
	"solana-agent-sim/internal/storage"
)

func testTransaction(txID, participantID string, createdAt int64) *domain.TransactionRecord {
	return &domain.TransactionRecord{
		TxID:          txID,
		ParticipantID: participantID,
		Direction:     domain.DirectionBuy,
		AmountIn:      10.0,
		AmountOut:     9803.9,
		PriceImpact:   0.99,
		Status:        domain.TxStatusConfirmed,
		CreatedAt:     createdAt,
	}
}

func TestTransactionStore_InsertAndGetByParticipant(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	participants := NewParticipantStore(pool)
	store := NewTransactionStore(pool)
	ctx := context.Background()

	require.NoError(t, participants.Insert(ctx, testParticipant("p-1")))
	require.NoError(t, participants.Insert(ctx, testParticipant("p-2")))

	require.NoError(t, store.Insert(ctx, testTransaction("tx-2", "p-1", 2000)))
	require.NoError(t, store.Insert(ctx, testTransaction("tx-1", "p-1", 1000)))
	require.NoError(t, store.Insert(ctx, testTransaction("tx-3", "p-2", 1500)))

	got, err := store.GetByParticipantID(ctx, "p-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "tx-1", got[0].TxID)
	assert.Equal(t, "tx-2", got[1].TxID)
	assert.Equal(t, 10.0, got[0].AmountIn)
	assert.Equal(t, domain.TxStatusConfirmed, got[0].Status)
}

func TestTransactionStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	participants := NewParticipantStore(pool)
	store := NewTransactionStore(pool)
	ctx := context.Background()

	require.NoError(t, participants.Insert(ctx, testParticipant("p-1")))
	require.NoError(t, store.Insert(ctx, testTransaction("tx-1", "p-1", 1000)))

	err := store.Insert(ctx, testTransaction("tx-1", "p-1", 2000))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestTransactionStore_GetByTimeRange(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	participants := NewParticipantStore(pool)
	store := NewTransactionStore(pool)
	ctx := context.Background()

	require.NoError(t, participants.Insert(ctx, testParticipant("p-1")))
	for i, ts := range []int64{1000, 2000, 3000, 4000} {
		tx := testTransaction(string(rune('a'+i)), "p-1", ts)
		require.NoError(t, store.Insert(ctx, tx))
	}

	got, err := store.GetByTimeRange(ctx, 2000, 3000)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2000), got[0].CreatedAt)
	assert.Equal(t, int64(3000), got[1].CreatedAt)

	got, err = store.GetByTimeRange(ctx, 9000, 9999)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTransactionStore_FailedAttemptRecorded(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	participants := NewParticipantStore(pool)
	store := NewTransactionStore(pool)
	ctx := context.Background()

	require.NoError(t, participants.Insert(ctx, testParticipant("p-1")))

	failed := &domain.TransactionRecord{
		TxID:          "tx-failed",
		ParticipantID: "p-1",
		Direction:     domain.DirectionSell,
		AmountIn:      5000.0,
		Status:        domain.TxStatusFailed,
		Detail:        "slippage exceeded",
		CreatedAt:     1000,
	}
	require.NoError(t, store.Insert(ctx, failed))

	got, err := store.GetByParticipantID(ctx, "p-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.TxStatusFailed, got[0].Status)
	assert.Equal(t, "slippage exceeded", got[0].Detail)
	assert.Equal(t, 0.0, got[0].AmountOut)
}
