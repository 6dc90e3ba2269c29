// Package conflict detects and resolves divergence between unsynced local
// changes and records pulled from the server.
//
// Conflicts are never resolved automatically: a detected conflict is persisted
// as a models.ConflictRecord and kept until the user picks a strategy.
package conflict

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/iudanet/shelfsync/internal/client/storage"
	"github.com/iudanet/shelfsync/internal/clock"
	"github.com/iudanet/shelfsync/internal/models"
)

// ErrInvalidMerge is returned when a merge payload does not address the conflicting entity
var ErrInvalidMerge = errors.New("invalid merge payload")

// Enqueuer is the part of the mutation queue the resolver needs
type Enqueuer interface {
	Enqueue(ctx context.Context, kind models.OperationKind, entityType models.EntityType, entityID string, payload models.Entity) (*models.SyncOperation, error)
	DropPending(ctx context.Context, entityType models.EntityType, entityID string) (int, error)
}

// Outcome describes the effect of a resolution
type Outcome struct {
	// Entity is the resulting local content, nil when the entity ends up deleted
	Entity models.Entity
	// Operation is the operation enqueued for keep_local and merge
	Operation *models.SyncOperation
	Strategy  models.ResolutionStrategy
	// Dropped is the number of pending operations discarded: all of them for
	// keep_server, the superseded ones for keep_local and merge
	Dropped int
	Deleted bool
}

// Resolver persists and resolves conflicts
type Resolver struct {
	conflicts storage.ConflictStorage
	entities  storage.EntityStorage
	queue     Enqueuer
	clock     *clock.Clock
	logger    *slog.Logger
}

// NewResolver creates a resolver
func NewResolver(conflicts storage.ConflictStorage, entities storage.EntityStorage, queue Enqueuer, clk *clock.Clock, logger *slog.Logger) *Resolver {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		conflicts: conflicts,
		entities:  entities,
		queue:     queue,
		clock:     clk,
		logger:    logger,
	}
}

// Detect classifies the latest unsynced local operation against the server
// version. On Conflict the record is persisted and returned; otherwise nil.
// Re-detection refreshes both sides but keeps the original DetectedAt.
func (r *Resolver) Detect(ctx context.Context, localOp *models.SyncOperation, server Version) (*models.ConflictRecord, Classification, error) {
	class := Classify(LocalVersion(localOp), &server)
	if class != Conflict {
		return nil, class, nil
	}

	record := &models.ConflictRecord{
		DetectedAt:    r.clock.Now(),
		EntityType:    localOp.EntityType,
		EntityID:      localOp.EntityID,
		LocalData:     localOp.Payload,
		LocalDeleted:  localOp.Kind == models.OpDelete,
		ServerData:    server.Entity,
		ServerDeleted: server.Deleted,
	}
	if record.ServerDeleted {
		record.ServerData = nil
	}

	existing, err := r.conflicts.GetConflict(ctx, record.EntityType, record.EntityID)
	switch {
	case err == nil:
		record.DetectedAt = existing.DetectedAt
	case !errors.Is(err, storage.ErrConflictNotFound):
		return nil, class, storage.NewStorageError("get conflict", err)
	}

	if err := r.conflicts.SaveConflict(ctx, record); err != nil {
		return nil, class, storage.NewStorageError("save conflict", err)
	}

	r.logger.Info("conflict detected",
		"entity", record.Key(),
		"local_deleted", record.LocalDeleted,
		"server_deleted", record.ServerDeleted)

	return record, class, nil
}

// HasConflict reports whether the entity has an unresolved conflict
func (r *Resolver) HasConflict(ctx context.Context, entityType models.EntityType, entityID string) (bool, error) {
	_, err := r.conflicts.GetConflict(ctx, entityType, entityID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrConflictNotFound) {
		return false, nil
	}
	return false, storage.NewStorageError("get conflict", err)
}

// PendingConflicts lists unresolved conflicts, oldest first
func (r *Resolver) PendingConflicts(ctx context.Context) ([]*models.ConflictRecord, error) {
	list, err := r.conflicts.ListConflicts(ctx)
	if err != nil {
		return nil, storage.NewStorageError("list conflicts", err)
	}
	return list, nil
}

// Resolve applies a strategy to the conflict of an entity.
// merged is required for Merge and ignored otherwise.
// The record is removed only after the store and queue reflect the decision.
func (r *Resolver) Resolve(ctx context.Context, entityType models.EntityType, entityID string, strategy models.ResolutionStrategy, merged models.Entity) (*Outcome, error) {
	record, err := r.conflicts.GetConflict(ctx, entityType, entityID)
	if err != nil {
		if errors.Is(err, storage.ErrConflictNotFound) {
			return nil, fmt.Errorf("no conflict for %s: %w", models.EntityKey(entityType, entityID), err)
		}
		return nil, storage.NewStorageError("get conflict", err)
	}

	var outcome *Outcome
	switch strategy {
	case models.KeepLocal:
		outcome, err = r.keepLocal(ctx, record)
	case models.KeepServer:
		outcome, err = r.keepServer(ctx, record)
	case models.Merge:
		outcome, err = r.merge(ctx, record, merged)
	default:
		return nil, fmt.Errorf("unknown resolution strategy %q", strategy)
	}
	if err != nil {
		return nil, err
	}
	outcome.Strategy = strategy

	if err := r.conflicts.DeleteConflict(ctx, entityType, entityID); err != nil {
		return nil, storage.NewStorageError("delete conflict", err)
	}

	r.logger.Info("conflict resolved",
		"entity", record.Key(),
		"strategy", strategy,
		"deleted", outcome.Deleted)

	return outcome, nil
}

// keepLocal восстанавливает локальную версию и ставит её в очередь заново
func (r *Resolver) keepLocal(ctx context.Context, record *models.ConflictRecord) (*Outcome, error) {
	if record.LocalDeleted {
		if err := r.entities.DeleteEntity(ctx, record.EntityType, record.EntityID); err != nil {
			return nil, storage.NewStorageError("delete entity", err)
		}
		dropped, err := r.queue.DropPending(ctx, record.EntityType, record.EntityID)
		if err != nil {
			return nil, err
		}
		op, err := r.queue.Enqueue(ctx, models.OpDelete, record.EntityType, record.EntityID, nil)
		if err != nil {
			return nil, err
		}
		return &Outcome{Operation: op, Deleted: true, Dropped: dropped}, nil
	}

	return r.writeLocal(ctx, record, record.LocalData)
}

func (r *Resolver) keepServer(ctx context.Context, record *models.ConflictRecord) (*Outcome, error) {
	outcome := &Outcome{Entity: record.ServerData, Deleted: record.ServerDeleted}

	if record.ServerDeleted {
		if err := r.entities.DeleteEntity(ctx, record.EntityType, record.EntityID); err != nil {
			return nil, storage.NewStorageError("delete entity", err)
		}
	} else {
		if err := r.entities.SaveEntity(ctx, record.ServerData); err != nil {
			return nil, storage.NewStorageError("save entity", err)
		}
	}

	dropped, err := r.queue.DropPending(ctx, record.EntityType, record.EntityID)
	if err != nil {
		return nil, err
	}
	outcome.Dropped = dropped

	return outcome, nil
}

func (r *Resolver) merge(ctx context.Context, record *models.ConflictRecord, merged models.Entity) (*Outcome, error) {
	if merged == nil {
		return nil, fmt.Errorf("%w: payload is required", ErrInvalidMerge)
	}
	if merged.EntityType() != record.EntityType || merged.EntityID() != record.EntityID {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrInvalidMerge,
			models.EntityKey(merged.EntityType(), merged.EntityID()), record.Key())
	}
	if err := models.ValidateEntity(merged); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMerge, err)
	}

	return r.writeLocal(ctx, record, merged)
}

// writeLocal сохраняет payload локально и ставит операцию на сервер.
// The fresh operation replaces pending operations of the entity; stale ones
// would be rejected as out of order and hold it back.
// If the server deleted the entity it is recreated.
func (r *Resolver) writeLocal(ctx context.Context, record *models.ConflictRecord, payload models.Entity) (*Outcome, error) {
	if err := r.entities.SaveEntity(ctx, payload); err != nil {
		return nil, storage.NewStorageError("save entity", err)
	}

	dropped, err := r.queue.DropPending(ctx, record.EntityType, record.EntityID)
	if err != nil {
		return nil, err
	}

	kind := models.OpUpdate
	if record.ServerDeleted {
		kind = models.OpCreate
	}

	op, err := r.queue.Enqueue(ctx, kind, record.EntityType, record.EntityID, payload)
	if err != nil {
		return nil, err
	}

	return &Outcome{Entity: payload, Operation: op, Dropped: dropped}, nil
}
