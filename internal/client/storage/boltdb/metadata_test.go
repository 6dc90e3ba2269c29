package boltdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/shelfsync/internal/models"
)

func TestStorage_Checkpoint(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	// Первая синхронизация: checkpoint пустой
	cp, err := store.GetCheckpoint(ctx)
	require.NoError(t, err)
	assert.True(t, cp.IsZero())

	asOf := time.Date(2025, 3, 1, 12, 0, 0, 123456789, time.UTC)
	require.NoError(t, store.SaveCheckpoint(ctx, asOf))

	cp, err = store.GetCheckpoint(ctx)
	require.NoError(t, err)
	assert.True(t, asOf.Equal(cp))
	assert.Equal(t, time.UTC, cp.Location())

	later := asOf.Add(time.Minute)
	require.NoError(t, store.SaveCheckpoint(ctx, later))
	cp, err = store.GetCheckpoint(ctx)
	require.NoError(t, err)
	assert.True(t, later.Equal(cp))
}

func TestStorage_ClockMark(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	mark, err := store.GetClockMark(ctx)
	require.NoError(t, err)
	assert.True(t, mark.IsZero())

	want := time.Date(2025, 3, 1, 12, 0, 0, 42, time.UTC)
	require.NoError(t, store.SaveClockMark(ctx, want))

	mark, err = store.GetClockMark(ctx)
	require.NoError(t, err)
	assert.True(t, want.Equal(mark))
}

func TestStorage_Scope(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	scope, err := store.GetScope(ctx)
	require.NoError(t, err)
	assert.Nil(t, scope)

	want := []models.EntityType{models.EntityBook, models.EntityTag}
	require.NoError(t, store.SaveScope(ctx, want))

	scope, err = store.GetScope(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, scope)
}
