package queue

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/shelfsync/internal/client/storage"
	"github.com/iudanet/shelfsync/internal/client/storage/boltdb"
	"github.com/iudanet/shelfsync/internal/clock"
	"github.com/iudanet/shelfsync/internal/models"
)

// steppingClock возвращает часы, которые сдвигаются на секунду при каждом вызове
func steppingClock(start time.Time) *clock.Clock {
	var n atomic.Int64
	return clock.NewWithSource(func() time.Time {
		return start.Add(time.Duration(n.Add(1)) * time.Second)
	})
}

func newTestQueue(t *testing.T) (*Queue, *boltdb.Storage) {
	t.Helper()

	store, err := boltdb.New(context.Background(), filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	clk := steppingClock(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	return New(store, clk, slog.New(slog.DiscardHandler)), store
}

func TestQueue_Enqueue(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	op, err := q.Enqueue(ctx, models.OpCreate, models.EntityBook, "42", &models.Book{ID: "42", Title: "Dune"})
	require.NoError(t, err)
	require.NotNil(t, op)
	assert.NotEmpty(t, op.ID)
	assert.False(t, op.Synced)
	assert.False(t, op.CreatedAt.IsZero())

	stored, err := q.Get(ctx, op.ID)
	require.NoError(t, err)
	assert.Equal(t, op.ID, stored.ID)
	assert.Equal(t, "Dune", stored.Payload.(*models.Book).Title)

	count, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestQueue_Enqueue_Invalid(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	tests := []struct {
		name       string
		kind       models.OperationKind
		entityType models.EntityType
		entityID   string
		payload    models.Entity
	}{
		{name: "unknown kind", kind: "upsert", entityType: models.EntityBook, entityID: "1", payload: &models.Book{ID: "1", Title: "x"}},
		{name: "unknown type", kind: models.OpDelete, entityType: "magazine", entityID: "1"},
		{name: "missing payload", kind: models.OpUpdate, entityType: models.EntityBook, entityID: "1"},
		{name: "delete with payload", kind: models.OpDelete, entityType: models.EntityBook, entityID: "1", payload: &models.Book{ID: "1", Title: "x"}},
		{name: "id mismatch", kind: models.OpCreate, entityType: models.EntityBook, entityID: "1", payload: &models.Book{ID: "2", Title: "x"}},
		{name: "type mismatch", kind: models.OpCreate, entityType: models.EntityBook, entityID: "1", payload: &models.Tag{ID: "1", Name: "x"}},
		{name: "invalid score", kind: models.OpCreate, entityType: models.EntityRating, entityID: "1", payload: &models.Rating{ID: "1", BookID: "b", Score: 9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := q.Enqueue(ctx, tt.kind, tt.entityType, tt.entityID, tt.payload)
			assert.ErrorIs(t, err, models.ErrInvalidOperation)
		})
	}

	count, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestQueue_PendingOrderAndMarkSynced(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	first, err := q.Enqueue(ctx, models.OpCreate, models.EntityBook, "42", &models.Book{ID: "42", Title: "Dune"})
	require.NoError(t, err)
	second, err := q.Enqueue(ctx, models.OpCreate, models.EntityTag, "t1", &models.Tag{ID: "t1", Name: "scifi"})
	require.NoError(t, err)
	third, err := q.Enqueue(ctx, models.OpUpdate, models.EntityBook, "42", &models.Book{ID: "42", Title: "Dune Messiah"})
	require.NoError(t, err)

	pending, err := q.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, first.ID, pending[0].ID)
	assert.Equal(t, second.ID, pending[1].ID)
	assert.Equal(t, third.ID, pending[2].ID)

	// Pending не потребляет очередь
	again, err := q.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, again, 3)

	forBook, err := q.PendingForEntity(ctx, models.EntityBook, "42")
	require.NoError(t, err)
	require.Len(t, forBook, 2)
	assert.Equal(t, first.ID, forBook[0].ID)

	require.NoError(t, q.MarkSynced(ctx, []string{first.ID, "unknown"}))
	require.NoError(t, q.MarkSynced(ctx, []string{first.ID}))
	require.NoError(t, q.MarkSynced(ctx, nil))

	pending, err = q.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, second.ID, pending[0].ID)

	has, err := q.HasPending(ctx, models.EntityTag, "t1")
	require.NoError(t, err)
	assert.True(t, has)
	has, err = q.HasPending(ctx, models.EntityTag, "t2")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestQueue_Prune(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	synced, err := q.Enqueue(ctx, models.OpCreate, models.EntityBook, "1", &models.Book{ID: "1", Title: "A"})
	require.NoError(t, err)
	unsynced, err := q.Enqueue(ctx, models.OpCreate, models.EntityBook, "2", &models.Book{ID: "2", Title: "B"})
	require.NoError(t, err)
	require.NoError(t, q.MarkSynced(ctx, []string{synced.ID}))

	n, err := q.Prune(ctx, time.Now().Add(24*time.Hour*365*100))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = q.Get(ctx, synced.ID)
	assert.ErrorIs(t, err, storage.ErrOperationNotFound)

	// Несинхронизированные операции не удаляются никогда
	op, err := q.Get(ctx, unsynced.ID)
	require.NoError(t, err)
	assert.False(t, op.Synced)
}

func TestQueue_DropPending(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	_, err := q.Enqueue(ctx, models.OpCreate, models.EntityBook, "1", &models.Book{ID: "1", Title: "A"})
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, models.OpDelete, models.EntityBook, "1", nil)
	require.NoError(t, err)
	other, err := q.Enqueue(ctx, models.OpCreate, models.EntityBook, "2", &models.Book{ID: "2", Title: "B"})
	require.NoError(t, err)

	n, err := q.DropPending(ctx, models.EntityBook, "1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	pending, err := q.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, other.ID, pending[0].ID)
}

func TestQueue_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "restart.db")

	store, err := boltdb.New(ctx, path)
	require.NoError(t, err)
	q := New(store, nil, nil)
	op, err := q.Enqueue(ctx, models.OpCreate, models.EntityBook, "42", &models.Book{ID: "42", Title: "Dune"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = boltdb.New(ctx, path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	pending, err := New(store, nil, nil).Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, op.ID, pending[0].ID)
}

type failingStore struct {
	storage.QueueStorage
	err error
}

func (f *failingStore) AppendOperation(context.Context, *models.SyncOperation) error { return f.err }
func (f *failingStore) PendingOperations(context.Context) ([]*models.SyncOperation, error) {
	return nil, f.err
}

func TestQueue_StorageError(t *testing.T) {
	ctx := context.Background()
	diskErr := errors.New("disk full")
	q := New(&failingStore{err: diskErr}, nil, slog.New(slog.DiscardHandler))

	_, err := q.Enqueue(ctx, models.OpCreate, models.EntityBook, "1", &models.Book{ID: "1", Title: "A"})
	var se *storage.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "enqueue", se.Op)
	assert.ErrorIs(t, err, diskErr)

	_, err = q.Pending(ctx)
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, diskErr)
}

func TestQueue_LockEntity(t *testing.T) {
	q, _ := newTestQueue(t)

	unlock := q.LockEntity(models.EntityBook, "42")

	// Другая сущность не ждёт
	other := q.LockEntity(models.EntityBook, "43")
	other()

	acquired := make(chan struct{})
	go func() {
		release := q.LockEntity(models.EntityBook, "42")
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatal("second holder entered while the entity was locked")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("entity lock was not released")
	}

	// Все держатели ушли, запись о блокировке убрана
	q.locks.mu.Lock()
	assert.Empty(t, q.locks.locks)
	q.locks.mu.Unlock()
}
