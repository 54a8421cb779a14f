package postgres

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-agent-sim/internal/domain"
	"solana-agent-sim/internal/storage"
)

func TestMessageStore_InsertAssignsID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	participants := NewParticipantStore(pool)
	store := NewMessageStore(pool)
	ctx := context.Background()

	require.NoError(t, participants.Insert(ctx, testParticipant("p-1")))

	first := &domain.Message{ParticipantID: "p-1", Text: "to the moon", Sentiment: 0.8, CreatedAt: 1000}
	second := &domain.Message{ParticipantID: "p-1", Text: "taking profit", Sentiment: -0.2, CreatedAt: 2000}

	require.NoError(t, store.Insert(ctx, first))
	require.NoError(t, store.Insert(ctx, second))

	assert.NotZero(t, first.ID)
	assert.NotZero(t, second.ID)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestMessageStore_Insert_InvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewMessageStore(pool)
	ctx := context.Background()

	err := store.Insert(ctx, nil)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	err = store.Insert(ctx, &domain.Message{Text: "no author"})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestMessageStore_GetRecent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	participants := NewParticipantStore(pool)
	store := NewMessageStore(pool)
	ctx := context.Background()

	require.NoError(t, participants.Insert(ctx, testParticipant("p-1")))

	for i := 0; i < 5; i++ {
		m := &domain.Message{
			ParticipantID: "p-1",
			Text:          fmt.Sprintf("message %d", i),
			Sentiment:     0.1,
			CreatedAt:     int64(1000 * (i + 1)),
		}
		require.NoError(t, store.Insert(ctx, m))
	}

	got, err := store.GetRecent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Most recent first.
	assert.Equal(t, "message 4", got[0].Text)
	assert.Equal(t, "message 3", got[1].Text)
	assert.Equal(t, "message 2", got[2].Text)

	// Limit beyond population returns everything.
	got, err = store.GetRecent(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, got, 5)

	// Non-positive limit returns nothing.
	got, err = store.GetRecent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}
