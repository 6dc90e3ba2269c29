package boltdb

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/shelfsync/internal/client/storage"
	"github.com/iudanet/shelfsync/internal/models"
)

// queueKey orders operations by CreatedAt: 8 bytes of big-endian Unix nanos
// followed by the operation ID, so a bucket cursor walks the queue in FIFO order.
func queueKey(op *models.SyncOperation) []byte {
	key := make([]byte, 8, 8+len(op.ID))
	binary.BigEndian.PutUint64(key, uint64(op.CreatedAt.UnixNano()))
	return append(key, op.ID...)
}

func queueKeyTime(key []byte) time.Time {
	return time.Unix(0, int64(binary.BigEndian.Uint64(key[:8]))).UTC()
}

func queueBuckets(tx *bbolt.Tx) (*bbolt.Bucket, *bbolt.Bucket, error) {
	queue := tx.Bucket(bucketQueue)
	if queue == nil {
		return nil, nil, bucketNotFound(bucketQueue)
	}
	index := tx.Bucket(bucketQueueIndex)
	if index == nil {
		return nil, nil, bucketNotFound(bucketQueueIndex)
	}
	return queue, index, nil
}

func decodeOperation(data []byte) (*models.SyncOperation, error) {
	op := &models.SyncOperation{}
	if err := json.Unmarshal(data, op); err != nil {
		return nil, fmt.Errorf("failed to unmarshal operation: %w", err)
	}
	return op, nil
}

// AppendOperation stores a new operation
func (s *Storage) AppendOperation(ctx context.Context, op *models.SyncOperation) error {
	if op == nil || op.ID == "" {
		return fmt.Errorf("operation id is required")
	}

	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("failed to marshal operation: %w", err)
	}

	return s.update(func(tx *bbolt.Tx) error {
		queue, index, err := queueBuckets(tx)
		if err != nil {
			return err
		}

		if index.Get([]byte(op.ID)) != nil {
			return fmt.Errorf("operation %s already exists", op.ID)
		}

		key := queueKey(op)
		if err := queue.Put(key, data); err != nil {
			return fmt.Errorf("failed to save operation: %w", err)
		}
		if err := index.Put([]byte(op.ID), key); err != nil {
			return fmt.Errorf("failed to index operation: %w", err)
		}

		return nil
	})
}

// GetOperation retrieves an operation by ID
func (s *Storage) GetOperation(ctx context.Context, id string) (*models.SyncOperation, error) {
	var op *models.SyncOperation

	err := s.view(func(tx *bbolt.Tx) error {
		queue, index, err := queueBuckets(tx)
		if err != nil {
			return err
		}

		key := index.Get([]byte(id))
		if key == nil {
			return storage.ErrOperationNotFound
		}
		data := queue.Get(key)
		if data == nil {
			return storage.ErrOperationNotFound
		}

		op, err = decodeOperation(data)
		return err
	})
	if err != nil {
		return nil, err
	}

	return op, nil
}

// scanQueue walks the queue in FIFO order and collects operations accepted by keep.
func (s *Storage) scanQueue(keep func(op *models.SyncOperation) bool) ([]*models.SyncOperation, error) {
	var ops []*models.SyncOperation

	err := s.view(func(tx *bbolt.Tx) error {
		queue, _, err := queueBuckets(tx)
		if err != nil {
			return err
		}

		return queue.ForEach(func(k, v []byte) error {
			op, err := decodeOperation(v)
			if err != nil {
				return err
			}
			if keep(op) {
				ops = append(ops, op)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return ops, nil
}

// PendingOperations returns unsynced operations in ascending CreatedAt order
func (s *Storage) PendingOperations(ctx context.Context) ([]*models.SyncOperation, error) {
	ops, err := s.scanQueue(func(op *models.SyncOperation) bool {
		return !op.Synced
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get pending operations: %w", err)
	}
	return ops, nil
}

// PendingOperationsFor returns unsynced operations of one entity in ascending CreatedAt order
func (s *Storage) PendingOperationsFor(ctx context.Context, entityType models.EntityType, entityID string) ([]*models.SyncOperation, error) {
	ops, err := s.scanQueue(func(op *models.SyncOperation) bool {
		return !op.Synced && op.EntityType == entityType && op.EntityID == entityID
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get pending operations for %s/%s: %w", entityType, entityID, err)
	}
	return ops, nil
}

// MarkOperationsSynced flips Synced for the given IDs.
// Unknown or already synced IDs are skipped.
func (s *Storage) MarkOperationsSynced(ctx context.Context, ids []string, syncedAt time.Time) (int, error) {
	marked := 0

	err := s.update(func(tx *bbolt.Tx) error {
		queue, index, err := queueBuckets(tx)
		if err != nil {
			return err
		}

		for _, id := range ids {
			key := index.Get([]byte(id))
			if key == nil {
				continue
			}
			data := queue.Get(key)
			if data == nil {
				continue
			}

			op, err := decodeOperation(data)
			if err != nil {
				return err
			}
			if op.Synced {
				continue
			}

			at := syncedAt
			op.Synced = true
			op.SyncedAt = &at

			updated, err := json.Marshal(op)
			if err != nil {
				return fmt.Errorf("failed to marshal operation: %w", err)
			}
			// key из индекса нельзя использовать после изменения bucket, копируем
			if err := queue.Put(bytes.Clone(key), updated); err != nil {
				return fmt.Errorf("failed to update operation: %w", err)
			}
			marked++
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("mark synced transaction failed: %w", err)
	}

	return marked, nil
}

// deleteWhere removes operations accepted by match. Keys are collected first:
// deleting through a live cursor makes bbolt skip the following element.
// stopAt, when non-nil, ends the scan at the first key it accepts.
func (s *Storage) deleteWhere(match func(key []byte, op *models.SyncOperation) bool, stopAt func(key []byte) bool) (int, error) {
	deleted := 0

	err := s.update(func(tx *bbolt.Tx) error {
		queue, index, err := queueBuckets(tx)
		if err != nil {
			return err
		}

		type victim struct {
			key []byte
			id  string
		}
		var victims []victim

		c := queue.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if stopAt != nil && stopAt(k) {
				break
			}
			op, err := decodeOperation(v)
			if err != nil {
				return err
			}
			if match(k, op) {
				victims = append(victims, victim{key: bytes.Clone(k), id: op.ID})
			}
		}

		for _, v := range victims {
			if err := queue.Delete(v.key); err != nil {
				return fmt.Errorf("failed to delete operation %s: %w", v.id, err)
			}
			if err := index.Delete([]byte(v.id)); err != nil {
				return fmt.Errorf("failed to delete operation index %s: %w", v.id, err)
			}
		}
		deleted = len(victims)

		return nil
	})
	if err != nil {
		return 0, err
	}

	return deleted, nil
}

// DeleteSyncedBefore removes synced operations created before the given time.
// Unsynced operations are never touched.
func (s *Storage) DeleteSyncedBefore(ctx context.Context, before time.Time) (int, error) {
	n, err := s.deleteWhere(
		func(_ []byte, op *models.SyncOperation) bool { return op.Synced },
		func(key []byte) bool { return !queueKeyTime(key).Before(before) },
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune operations: %w", err)
	}
	return n, nil
}

// DeletePendingFor removes unsynced operations of one entity
func (s *Storage) DeletePendingFor(ctx context.Context, entityType models.EntityType, entityID string) (int, error) {
	n, err := s.deleteWhere(
		func(_ []byte, op *models.SyncOperation) bool {
			return !op.Synced && op.EntityType == entityType && op.EntityID == entityID
		},
		nil,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to drop pending operations for %s/%s: %w", entityType, entityID, err)
	}
	return n, nil
}

// CountPending returns the number of unsynced operations
func (s *Storage) CountPending(ctx context.Context) (int, error) {
	ops, err := s.PendingOperations(ctx)
	if err != nil {
		return 0, err
	}
	return len(ops), nil
}
