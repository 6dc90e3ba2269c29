// Package queue implements the durable mutation queue of the sync engine.
//
// Every local create, update or delete is recorded as a models.SyncOperation
// before anything touches the network. Operations are immutable except for the
// synced flag and are handed to the push phase in ascending CreatedAt order.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/shelfsync/internal/client/storage"
	"github.com/iudanet/shelfsync/internal/clock"
	"github.com/iudanet/shelfsync/internal/models"
)

// Queue records local mutations and tracks their delivery
type Queue struct {
	store  storage.QueueStorage
	clock  *clock.Clock
	logger *slog.Logger
	locks  entityLocks
}

// New creates a queue over the given storage.
// CreatedAt values come from clk, which must be shared with every other writer
// of the same queue so FIFO order holds.
func New(store storage.QueueStorage, clk *clock.Clock, logger *slog.Logger) *Queue {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		store:  store,
		clock:  clk,
		logger: logger,
	}
}

// Enqueue records a new operation. It never contacts the server.
func (q *Queue) Enqueue(ctx context.Context, kind models.OperationKind, entityType models.EntityType, entityID string, payload models.Entity) (*models.SyncOperation, error) {
	op := &models.SyncOperation{
		ID:         uuid.New().String(),
		Kind:       kind,
		EntityType: entityType,
		EntityID:   entityID,
		Payload:    payload,
		CreatedAt:  q.clock.Now(),
	}

	if err := op.Validate(); err != nil {
		return nil, err
	}

	if err := q.store.AppendOperation(ctx, op); err != nil {
		return nil, storage.NewStorageError("enqueue", err)
	}

	q.logger.Debug("operation enqueued",
		"id", op.ID,
		"kind", op.Kind,
		"entity", op.Key())

	return op, nil
}

// Pending returns all unsynced operations in ascending CreatedAt order.
// Reading does not consume the queue.
func (q *Queue) Pending(ctx context.Context) ([]*models.SyncOperation, error) {
	ops, err := q.store.PendingOperations(ctx)
	if err != nil {
		return nil, storage.NewStorageError("pending", err)
	}
	return ops, nil
}

// PendingForEntity returns unsynced operations of a single entity
func (q *Queue) PendingForEntity(ctx context.Context, entityType models.EntityType, entityID string) ([]*models.SyncOperation, error) {
	ops, err := q.store.PendingOperationsFor(ctx, entityType, entityID)
	if err != nil {
		return nil, storage.NewStorageError("pending for entity", err)
	}
	return ops, nil
}

// HasPending reports whether the entity has at least one unsynced operation
func (q *Queue) HasPending(ctx context.Context, entityType models.EntityType, entityID string) (bool, error) {
	ops, err := q.PendingForEntity(ctx, entityType, entityID)
	if err != nil {
		return false, err
	}
	return len(ops) > 0, nil
}

// MarkSynced marks operations as delivered. Unknown and already synced IDs are ignored.
func (q *Queue) MarkSynced(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	n, err := q.store.MarkOperationsSynced(ctx, ids, q.clock.Now())
	if err != nil {
		return storage.NewStorageError("mark synced", err)
	}

	q.logger.Debug("operations marked synced", "requested", len(ids), "marked", n)
	return nil
}

// Prune removes synced operations created before olderThan.
// Unsynced operations are kept regardless of age.
func (q *Queue) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	n, err := q.store.DeleteSyncedBefore(ctx, olderThan)
	if err != nil {
		return 0, storage.NewStorageError("prune", err)
	}

	if n > 0 {
		q.logger.Info("pruned synced operations", "count", n, "older_than", olderThan)
	}
	return n, nil
}

// DropPending discards unsynced operations of an entity.
// Used when a conflict is resolved in favour of the server.
func (q *Queue) DropPending(ctx context.Context, entityType models.EntityType, entityID string) (int, error) {
	n, err := q.store.DeletePendingFor(ctx, entityType, entityID)
	if err != nil {
		return 0, storage.NewStorageError(fmt.Sprintf("drop pending %s", models.EntityKey(entityType, entityID)), err)
	}
	return n, nil
}

// Count returns the number of unsynced operations
func (q *Queue) Count(ctx context.Context) (int, error) {
	n, err := q.store.CountPending(ctx)
	if err != nil {
		return 0, storage.NewStorageError("count pending", err)
	}
	return n, nil
}

// Get returns a single operation by ID
func (q *Queue) Get(ctx context.Context, id string) (*models.SyncOperation, error) {
	op, err := q.store.GetOperation(ctx, id)
	if err != nil {
		return nil, storage.NewStorageError("get operation", err)
	}
	return op, nil
}
