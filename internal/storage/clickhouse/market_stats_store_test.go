package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-agent-sim/internal/domain"
	"solana-agent-sim/internal/storage"
)

func TestMarketStatsStore_Insert(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewMarketStatsStore(conn)
	ctx := context.Background()

	err := store.Insert(ctx, &domain.MarketStatsPoint{
		TimestampMs:    1000,
		Price:          0.00102,
		SolReserve:     1010.0,
		TokenReserve:   990196.0,
		Volume24h:      10.0,
		PriceChangePct: 2.0,
		TxCount24h:     1,
	})
	require.NoError(t, err)

	got, err := store.GetByTimeRange(ctx, 0, 2000)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1000), got[0].TimestampMs)
	assert.Equal(t, 0.00102, got[0].Price)
	assert.Equal(t, 1010.0, got[0].SolReserve)
	assert.Equal(t, 990196.0, got[0].TokenReserve)
	assert.Equal(t, 10.0, got[0].Volume24h)
	assert.Equal(t, 2.0, got[0].PriceChangePct)
	assert.Equal(t, int64(1), got[0].TxCount24h)
}

func TestMarketStatsStore_Insert_NilPoint(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewMarketStatsStore(conn)
	err := store.Insert(context.Background(), nil)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestMarketStatsStore_InsertBulk(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewMarketStatsStore(conn)
	ctx := context.Background()

	// Empty batch is a no-op.
	require.NoError(t, store.InsertBulk(ctx, nil))

	points := []*domain.MarketStatsPoint{
		{TimestampMs: 3000, Price: 0.0011, SolReserve: 1050, TokenReserve: 954545, Volume24h: 60, TxCount24h: 6},
		{TimestampMs: 1000, Price: 0.0010, SolReserve: 1000, TokenReserve: 1000000, Volume24h: 0, TxCount24h: 0},
		{TimestampMs: 2000, Price: 0.00105, SolReserve: 1020, TokenReserve: 980392, Volume24h: 20, TxCount24h: 2},
	}
	require.NoError(t, store.InsertBulk(ctx, points))

	got, err := store.GetByTimeRange(ctx, 0, 5000)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Ordered by timestamp regardless of insert order.
	assert.Equal(t, int64(1000), got[0].TimestampMs)
	assert.Equal(t, int64(2000), got[1].TimestampMs)
	assert.Equal(t, int64(3000), got[2].TimestampMs)
}

func TestMarketStatsStore_GetByTimeRange_Bounds(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewMarketStatsStore(conn)
	ctx := context.Background()

	for _, ts := range []int64{1000, 2000, 3000, 4000} {
		require.NoError(t, store.Insert(ctx, &domain.MarketStatsPoint{
			TimestampMs: ts,
			Price:       0.001,
		}))
	}

	// Bounds are inclusive on both ends.
	got, err := store.GetByTimeRange(ctx, 2000, 3000)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2000), got[0].TimestampMs)
	assert.Equal(t, int64(3000), got[1].TimestampMs)

	// Empty range.
	got, err = store.GetByTimeRange(ctx, 5000, 9000)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMarketStatsStore_DuplicatesAccepted(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewMarketStatsStore(conn)
	ctx := context.Background()

	p := &domain.MarketStatsPoint{TimestampMs: 1000, Price: 0.001}
	require.NoError(t, store.Insert(ctx, p))
	require.NoError(t, store.Insert(ctx, p))

	got, err := store.GetByTimeRange(ctx, 0, 2000)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
