package sync

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/iudanet/shelfsync/internal/client/conflict"
	"github.com/iudanet/shelfsync/internal/models"
	"github.com/iudanet/shelfsync/pkg/api"
)

// toPushOperation converts a queued operation to its wire form
func toPushOperation(op *models.SyncOperation) (api.PushOperation, error) {
	out := api.PushOperation{
		ID:         op.ID,
		Kind:       string(op.Kind),
		EntityType: string(op.EntityType),
		EntityID:   op.EntityID,
		CreatedAt:  op.CreatedAt,
	}
	if op.Payload != nil {
		raw, err := json.Marshal(op.Payload)
		if err != nil {
			return api.PushOperation{}, fmt.Errorf("failed to marshal payload of %s: %w", op.ID, err)
		}
		out.Payload = raw
	}
	return out, nil
}

// push sends pending operations in FIFO batches.
//
// Operations of an entity with an unresolved conflict are not sent. Once an
// operation of an entity is rejected or left unanswered, later operations of
// the same entity are held back for the rest of the cycle. An operation
// refused as out of order is compared with the server copy sent along with
// the refusal (see reconcileRejected). A transport error
// aborts the phase; the current batch stays pending.
func (e *Engine) push(ctx context.Context, res *Result) error {
	pending, err := e.deps.Queue.Pending(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	held := make(map[string]bool)
	conflicted := make(map[string]bool)

	var eligible []*models.SyncOperation
	for _, op := range pending {
		key := op.Key()
		blocked, seen := conflicted[key]
		if !seen {
			blocked, err = e.deps.Resolver.HasConflict(ctx, op.EntityType, op.EntityID)
			if err != nil {
				return err
			}
			conflicted[key] = blocked
		}
		if blocked {
			res.Held++
			continue
		}
		eligible = append(eligible, op)
	}

	for start := 0; start < len(eligible); start += e.cfg.BatchSize {
		end := min(start+e.cfg.BatchSize, len(eligible))

		batch := make([]*models.SyncOperation, 0, end-start)
		wire := make([]api.PushOperation, 0, end-start)
		for _, op := range eligible[start:end] {
			if held[op.Key()] {
				res.Held++
				continue
			}
			w, err := toPushOperation(op)
			if err != nil {
				return err
			}
			batch = append(batch, op)
			wire = append(wire, w)
		}
		if len(batch) == 0 {
			continue
		}

		results, err := e.deps.Transport.Push(ctx, wire)
		if err != nil {
			return err
		}
		res.Pushed += len(batch)

		if err := e.handlePushResults(ctx, batch, results, held, res); err != nil {
			return err
		}
	}

	return nil
}

// handlePushResults applies server verdicts of one batch
func (e *Engine) handlePushResults(ctx context.Context, batch []*models.SyncOperation, results []api.PushResult, held map[string]bool, res *Result) error {
	byID := make(map[string]api.PushResult, len(results))
	for _, r := range results {
		byID[r.ID] = r
	}

	var accepted []string
	settled := make(map[string]bool)
	for _, op := range batch {
		key := op.Key()
		if settled[key] {
			continue
		}
		r, ok := byID[op.ID]

		switch {
		case ok && r.Status == api.StatusAccepted:
			accepted = append(accepted, op.ID)
			res.Accepted++

		case ok && r.Status == api.StatusRejected && !held[key]:
			held[key] = true
			if r.Current != nil {
				done, err := e.reconcileRejected(ctx, op, r.Current, res)
				if err != nil {
					return err
				}
				if done {
					settled[key] = true
					continue
				}
			}
			res.Rejected = append(res.Rejected, &RejectionError{OperationID: op.ID, Reason: r.Reason})
			rejection := &models.Rejection{
				RejectedAt:  e.deps.Clock.Now(),
				OperationID: op.ID,
				EntityType:  op.EntityType,
				EntityID:    op.EntityID,
				Reason:      r.Reason,
			}
			if err := e.deps.Rejections.SaveRejection(ctx, rejection); err != nil {
				e.deps.Logger.Warn("failed to record rejection", "operation_id", op.ID, "error", err)
			}
			e.deps.Logger.Warn("operation rejected",
				"operation_id", op.ID,
				"entity", key,
				"reason", r.Reason)

		default:
			// Нет ответа, неизвестный статус или отказ вслед за отказом:
			// операция остаётся в очереди
			held[key] = true
			res.Held++
		}
	}

	if err := e.deps.Queue.MarkSynced(ctx, accepted); err != nil {
		return err
	}
	if err := e.deps.Rejections.DeleteRejections(ctx, accepted); err != nil {
		e.deps.Logger.Warn("failed to clear rejections", "error", err)
	}

	return nil
}

// reconcileRejected handles an operation the server refused because the entity
// already carries a newer operation. The clock moves past the server stamp so
// later edits order after it, and the local side is compared with the server
// copy: a difference becomes a conflict record, agreement means the pending
// operations of the entity are already reflected on the server. Returns true
// when the pending operations were settled that way.
func (e *Engine) reconcileRejected(ctx context.Context, op *models.SyncOperation, current *api.EntityState, res *Result) (bool, error) {
	e.deps.Clock.Observe(current.LastOpCreatedAt)

	server := conflict.Version{Deleted: current.Deleted}
	if !current.Deleted {
		entity, err := models.DecodeEntity(op.EntityType, current.Payload)
		if err != nil {
			e.deps.Logger.Warn("failed to decode server state of rejected operation",
				"operation_id", op.ID, "error", err)
			return false, nil
		}
		server.Entity = entity
	}

	unlock := e.deps.Queue.LockEntity(op.EntityType, op.EntityID)
	defer unlock()

	local, err := e.latestPending(ctx, op.EntityType, op.EntityID)
	if err != nil {
		return false, err
	}
	if local == nil {
		return true, nil
	}

	if conflict.Classify(conflict.LocalVersion(local), &server) != conflict.NoConflict {
		_, err := e.detect(ctx, local, server, res)
		return false, err
	}

	ops, err := e.deps.Queue.PendingForEntity(ctx, op.EntityType, op.EntityID)
	if err != nil {
		return false, err
	}
	ids := make([]string, len(ops))
	for i, o := range ops {
		ids[i] = o.ID
	}
	if err := e.deps.Queue.MarkSynced(ctx, ids); err != nil {
		return false, err
	}
	if err := e.deps.Rejections.DeleteRejections(ctx, ids); err != nil {
		e.deps.Logger.Warn("failed to clear rejections", "error", err)
	}
	res.Superseded += len(ids)

	e.deps.Logger.Info("pending operations already reflected on server",
		"entity", op.Key(),
		"operations", len(ids))
	return true, nil
}
