package sync

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/iudanet/shelfsync/internal/client/conflict"
	"github.com/iudanet/shelfsync/internal/client/storage"
	"github.com/iudanet/shelfsync/internal/models"
	"github.com/iudanet/shelfsync/pkg/api"
)

// pull fetches everything recorded after the checkpoint
func (e *Engine) pull(ctx context.Context, checkpoint time.Time) (*api.PullResponse, error) {
	resp, err := e.deps.Transport.Pull(ctx, checkpoint)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("empty pull response")
	}
	if resp.AsOf.Before(checkpoint) {
		return nil, fmt.Errorf("%w: asOf %s, checkpoint %s", ErrCheckpointRegression,
			resp.AsOf.Format(time.RFC3339Nano), checkpoint.Format(time.RFC3339Nano))
	}
	// Следующие локальные операции должны быть новее всего, что уже есть на сервере
	if !resp.LatestOpAt.IsZero() {
		e.deps.Clock.Observe(resp.LatestOpAt)
	}
	return resp, nil
}

// apply writes pulled changes into the local store, type by type in a fixed
// order, changes before tombstones. Records that collide with unsynced local
// operations go through the resolver instead.
func (e *Engine) apply(ctx context.Context, resp *api.PullResponse, res *Result) error {
	for name := range resp.Changes {
		if t := models.EntityType(name); !t.Valid() {
			e.deps.Logger.Warn("skipping unknown entity type in pull", "entity_type", name)
		}
	}

	for _, t := range models.AllEntityTypes() {
		if !slices.Contains(e.cfg.EntityTypes, t) {
			continue
		}

		for _, raw := range resp.Changes[string(t)] {
			res.Pulled++
			entity, err := models.DecodeEntity(t, raw)
			if err != nil {
				return fmt.Errorf("failed to decode pulled %s: %w", t, err)
			}
			if err := e.applyChange(ctx, entity, res); err != nil {
				return err
			}
		}

		for _, id := range resp.Tombstones[string(t)] {
			res.Pulled++
			if err := e.applyTombstone(ctx, t, id, res); err != nil {
				return err
			}
		}
	}

	return nil
}

// latestPending returns the newest unsynced operation of an entity, or nil
func (e *Engine) latestPending(ctx context.Context, entityType models.EntityType, id string) (*models.SyncOperation, error) {
	ops, err := e.deps.Queue.PendingForEntity(ctx, entityType, id)
	if err != nil {
		return nil, err
	}
	if len(ops) == 0 {
		return nil, nil
	}
	return ops[len(ops)-1], nil
}

// detect records a conflict between the latest pending operation and a server
// version. Only conflicts that were not already pending are counted.
func (e *Engine) detect(ctx context.Context, local *models.SyncOperation, server conflict.Version, res *Result) (bool, error) {
	known, err := e.deps.Resolver.HasConflict(ctx, local.EntityType, local.EntityID)
	if err != nil {
		return false, err
	}
	record, _, err := e.deps.Resolver.Detect(ctx, local, server)
	if err != nil {
		return false, err
	}
	if record != nil && !known {
		res.ConflictsDetected++
	}
	return record != nil, nil
}

func (e *Engine) applyChange(ctx context.Context, entity models.Entity, res *Result) error {
	unlock := e.deps.Queue.LockEntity(entity.EntityType(), entity.EntityID())
	defer unlock()

	local, err := e.latestPending(ctx, entity.EntityType(), entity.EntityID())
	if err != nil {
		return err
	}

	if local != nil {
		conflicted, err := e.detect(ctx, local, conflict.Version{Entity: entity}, res)
		if err != nil {
			return err
		}
		if conflicted {
			// Локальные данные не трогаем до разрешения конфликта
			return nil
		}
	}

	if err := e.deps.Entities.SaveEntity(ctx, entity); err != nil {
		return storage.NewStorageError("apply change", err)
	}
	res.Applied++
	return nil
}

// applyTombstone always deletes locally. A pending local edit of the same
// entity is preserved in a conflict record.
func (e *Engine) applyTombstone(ctx context.Context, entityType models.EntityType, id string, res *Result) error {
	unlock := e.deps.Queue.LockEntity(entityType, id)
	defer unlock()

	local, err := e.latestPending(ctx, entityType, id)
	if err != nil {
		return err
	}

	if local != nil {
		if _, err := e.detect(ctx, local, conflict.Version{Deleted: true}, res); err != nil {
			return err
		}
	}

	if err := e.deps.Entities.DeleteEntity(ctx, entityType, id); err != nil {
		return storage.NewStorageError("apply tombstone", err)
	}
	res.Deleted++
	return nil
}
