package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iudanet/shelfsync/internal/models"
	"github.com/iudanet/shelfsync/internal/server/storage"
)

// Push applies operations in request order inside one transaction
func (s *Storage) Push(ctx context.Context, userID string, ops []storage.IncomingOperation) ([]storage.Outcome, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	outcomes := make([]storage.Outcome, 0, len(ops))
	blocked := make(map[string]bool)

	for _, in := range ops {
		outcome, err := s.pushOne(ctx, tx, userID, in, blocked)
		if err != nil {
			return nil, err
		}
		if !outcome.Accepted {
			blocked[models.EntityKey(models.EntityType(in.EntityType), in.EntityID)] = true
			s.logger.Debug("operation rejected",
				slog.String("user_id", userID),
				slog.String("op_id", in.ID),
				slog.String("reason", outcome.Reason))
		}
		outcomes = append(outcomes, outcome)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit push: %w", err)
	}

	return outcomes, nil
}

func (s *Storage) pushOne(ctx context.Context, tx *sql.Tx, userID string, in storage.IncomingOperation, blocked map[string]bool) (storage.Outcome, error) {
	accepted := storage.Outcome{ID: in.ID, Accepted: true}
	reject := func(reason string) storage.Outcome {
		return storage.Outcome{ID: in.ID, Reason: reason}
	}

	// Повтор уже применённой операции: подтверждаем без повторного применения
	if in.ID != "" {
		var one int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM applied_operations WHERE user_id = ? AND id = ?`,
			userID, in.ID).Scan(&one)
		switch {
		case err == nil:
			return accepted, nil
		case !errors.Is(err, sql.ErrNoRows):
			return storage.Outcome{}, fmt.Errorf("failed to check applied operation: %w", err)
		}
	}

	if blocked[models.EntityKey(models.EntityType(in.EntityType), in.EntityID)] {
		return reject(storage.ReasonBlocked), nil
	}

	if in.Op == nil {
		return reject(in.Invalid), nil
	}
	op := in.Op

	current, err := currentState(ctx, tx, userID, op.EntityType, op.EntityID)
	if err != nil {
		return storage.Outcome{}, err
	}
	// Отказ несёт текущее состояние: клиент сверит его со своей правкой
	if current != nil && op.CreatedAt.Before(current.LastOpCreatedAt) {
		outcome := reject(storage.ReasonOutOfOrder)
		outcome.Current = current
		return outcome, nil
	}

	var payload []byte
	deleted := op.Kind == models.OpDelete
	if !deleted {
		payload, err = json.Marshal(op.Payload)
		if err != nil {
			return storage.Outcome{}, fmt.Errorf("failed to marshal payload: %w", err)
		}
	}

	changedAt := s.clock.Now()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entities (user_id, entity_type, entity_id, payload, deleted, last_op_created_at, changed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, entity_type, entity_id) DO UPDATE SET
			payload = excluded.payload,
			deleted = excluded.deleted,
			last_op_created_at = excluded.last_op_created_at,
			changed_at = excluded.changed_at
	`, userID, op.EntityType, op.EntityID, payload, boolToInt(deleted), nanos(op.CreatedAt), nanos(changedAt))
	if err != nil {
		return storage.Outcome{}, fmt.Errorf("failed to apply operation: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO applied_operations (user_id, id, entity_type, entity_id, applied_at)
		VALUES (?, ?, ?, ?, ?)
	`, userID, op.ID, op.EntityType, op.EntityID, nanos(changedAt))
	if err != nil {
		return storage.Outcome{}, fmt.Errorf("failed to record operation: %w", err)
	}

	return accepted, nil
}

// currentState reads the stored state of one entity; nil when the server has never seen it
func currentState(ctx context.Context, tx *sql.Tx, userID string, entityType models.EntityType, entityID string) (*storage.Change, error) {
	c := &storage.Change{EntityType: entityType, EntityID: entityID}
	var deleted int
	var lastOp, changedAt int64
	err := tx.QueryRowContext(ctx, `
		SELECT payload, deleted, last_op_created_at, changed_at
		FROM entities
		WHERE user_id = ? AND entity_type = ? AND entity_id = ?
	`, userID, entityType, entityID).Scan(&c.Payload, &deleted, &lastOp, &changedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read entity: %w", err)
	}

	c.Deleted = deleted != 0
	c.LastOpCreatedAt = fromNanos(lastOp)
	c.ChangedAt = fromNanos(changedAt)
	if c.Deleted {
		c.Payload = nil
	}
	return c, nil
}

// LatestOperationTime returns the newest last_op_created_at of the user
func (s *Storage) LatestOperationTime(ctx context.Context, userID string) (time.Time, error) {
	var last int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(last_op_created_at), 0) FROM entities WHERE user_id = ?`,
		userID).Scan(&last)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read latest operation time: %w", err)
	}
	return fromNanos(last), nil
}

// ChangesSince returns entities changed in (since, asOf]
func (s *Storage) ChangesSince(ctx context.Context, userID string, since time.Time) (time.Time, []storage.Change, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// asOf читается после захвата соединения: все push с меньшим changed_at уже закоммичены
	asOf := s.clock.Now()

	rows, err := tx.QueryContext(ctx, `
		SELECT entity_type, entity_id, payload, deleted, last_op_created_at, changed_at
		FROM entities
		WHERE user_id = ? AND changed_at > ? AND changed_at <= ?
		ORDER BY changed_at
	`, userID, nanos(since), nanos(asOf))
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("failed to query changes: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	changes := make([]storage.Change, 0)
	for rows.Next() {
		var c storage.Change
		var deleted int
		var lastOp, changedAt int64
		if err := rows.Scan(&c.EntityType, &c.EntityID, &c.Payload, &deleted, &lastOp, &changedAt); err != nil {
			return time.Time{}, nil, fmt.Errorf("failed to scan change: %w", err)
		}
		c.Deleted = deleted != 0
		c.LastOpCreatedAt = fromNanos(lastOp)
		c.ChangedAt = fromNanos(changedAt)
		if c.Deleted {
			c.Payload = nil
		}
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return time.Time{}, nil, fmt.Errorf("failed to iterate changes: %w", err)
	}

	return asOf, changes, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
