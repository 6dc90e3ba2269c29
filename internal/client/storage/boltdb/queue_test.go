package boltdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/shelfsync/internal/client/storage"
	"github.com/iudanet/shelfsync/internal/models"
)

var baseTime = time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

func bookOp(id, bookID string, kind models.OperationKind, at time.Time) *models.SyncOperation {
	op := &models.SyncOperation{
		ID:         id,
		Kind:       kind,
		EntityType: models.EntityBook,
		EntityID:   bookID,
		CreatedAt:  at,
	}
	if kind != models.OpDelete {
		op.Payload = &models.Book{ID: bookID, Title: "Title " + bookID}
	}
	return op
}

func opIDs(ops []*models.SyncOperation) []string {
	ids := make([]string, 0, len(ops))
	for _, op := range ops {
		ids = append(ids, op.ID)
	}
	return ids
}

func TestStorage_AppendAndGetOperation(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	op := bookOp("op-1", "b1", models.OpCreate, baseTime)
	require.NoError(t, store.AppendOperation(ctx, op))

	got, err := store.GetOperation(ctx, "op-1")
	require.NoError(t, err)
	assert.Equal(t, op.ID, got.ID)
	assert.Equal(t, models.OpCreate, got.Kind)
	assert.True(t, op.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, op.Payload, got.Payload)
	assert.False(t, got.Synced)
	assert.Nil(t, got.SyncedAt)

	// Повторная вставка того же id запрещена
	assert.Error(t, store.AppendOperation(ctx, op))
	assert.Error(t, store.AppendOperation(ctx, &models.SyncOperation{}))

	_, err = store.GetOperation(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrOperationNotFound)
}

func TestStorage_PendingOperations_FIFO(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	// Вставляем в обратном порядке: очередь сортирует по CreatedAt
	require.NoError(t, store.AppendOperation(ctx, bookOp("op-3", "b2", models.OpCreate, baseTime.Add(3*time.Second))))
	require.NoError(t, store.AppendOperation(ctx, bookOp("op-1", "b1", models.OpCreate, baseTime.Add(time.Second))))
	require.NoError(t, store.AppendOperation(ctx, bookOp("op-2", "b1", models.OpUpdate, baseTime.Add(2*time.Second))))
	require.NoError(t, store.AppendOperation(ctx, bookOp("op-4", "b1", models.OpDelete, baseTime.Add(4*time.Second))))

	pending, err := store.PendingOperations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"op-1", "op-2", "op-3", "op-4"}, opIDs(pending))
	assert.Nil(t, pending[3].Payload)

	forB1, err := store.PendingOperationsFor(ctx, models.EntityBook, "b1")
	require.NoError(t, err)
	assert.Equal(t, []string{"op-1", "op-2", "op-4"}, opIDs(forB1))

	count, err := store.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestStorage_MarkOperationsSynced(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	require.NoError(t, store.AppendOperation(ctx, bookOp("op-1", "b1", models.OpCreate, baseTime)))
	require.NoError(t, store.AppendOperation(ctx, bookOp("op-2", "b2", models.OpCreate, baseTime.Add(time.Second))))

	syncedAt := baseTime.Add(time.Minute)
	n, err := store.MarkOperationsSynced(ctx, []string{"op-1", "unknown"}, syncedAt)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Идемпотентно
	n, err = store.MarkOperationsSynced(ctx, []string{"op-1"}, syncedAt.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	got, err := store.GetOperation(ctx, "op-1")
	require.NoError(t, err)
	assert.True(t, got.Synced)
	require.NotNil(t, got.SyncedAt)
	assert.True(t, syncedAt.Equal(*got.SyncedAt))

	pending, err := store.PendingOperations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"op-2"}, opIDs(pending))
}

func TestStorage_DeleteSyncedBefore(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	for i, id := range []string{"op-1", "op-2", "op-3", "op-4"} {
		require.NoError(t, store.AppendOperation(ctx, bookOp(id, "b1", models.OpUpdate, baseTime.Add(time.Duration(i)*time.Hour))))
	}
	_, err := store.MarkOperationsSynced(ctx, []string{"op-1", "op-3", "op-4"}, baseTime.Add(5*time.Hour))
	require.NoError(t, err)

	// op-1 synced и старше границы; op-2 не synced; op-3 ровно на границе
	n, err := store.DeleteSyncedBefore(ctx, baseTime.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = store.GetOperation(ctx, "op-1")
	assert.ErrorIs(t, err, storage.ErrOperationNotFound)
	for _, id := range []string{"op-2", "op-3", "op-4"} {
		_, err = store.GetOperation(ctx, id)
		assert.NoError(t, err, id)
	}

	n, err = store.DeleteSyncedBefore(ctx, baseTime.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	pending, err := store.PendingOperations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"op-2"}, opIDs(pending))
}

func TestStorage_DeletePendingFor(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	require.NoError(t, store.AppendOperation(ctx, bookOp("op-1", "b1", models.OpCreate, baseTime)))
	require.NoError(t, store.AppendOperation(ctx, bookOp("op-2", "b1", models.OpUpdate, baseTime.Add(time.Second))))
	require.NoError(t, store.AppendOperation(ctx, bookOp("op-3", "b2", models.OpCreate, baseTime.Add(2*time.Second))))
	_, err := store.MarkOperationsSynced(ctx, []string{"op-1"}, baseTime.Add(time.Minute))
	require.NoError(t, err)

	n, err := store.DeletePendingFor(ctx, models.EntityBook, "b1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// synced op-1 сохраняется
	_, err = store.GetOperation(ctx, "op-1")
	require.NoError(t, err)
	_, err = store.GetOperation(ctx, "op-2")
	assert.ErrorIs(t, err, storage.ErrOperationNotFound)

	pending, err := store.PendingOperations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"op-3"}, opIDs(pending))
}
