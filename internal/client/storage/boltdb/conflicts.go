package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"

	"github.com/iudanet/shelfsync/internal/client/storage"
	"github.com/iudanet/shelfsync/internal/models"
)

// SaveConflict creates or replaces the conflict of an entity
func (s *Storage) SaveConflict(ctx context.Context, conflict *models.ConflictRecord) error {
	data, err := json.Marshal(conflict)
	if err != nil {
		return fmt.Errorf("failed to marshal conflict: %w", err)
	}

	return s.update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketConflicts)
		if bucket == nil {
			return bucketNotFound(bucketConflicts)
		}

		if err := bucket.Put([]byte(conflict.Key()), data); err != nil {
			return fmt.Errorf("failed to save conflict: %w", err)
		}

		return nil
	})
}

// GetConflict retrieves the conflict of an entity
func (s *Storage) GetConflict(ctx context.Context, entityType models.EntityType, entityID string) (*models.ConflictRecord, error) {
	var conflict *models.ConflictRecord

	err := s.view(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketConflicts)
		if bucket == nil {
			return bucketNotFound(bucketConflicts)
		}

		data := bucket.Get([]byte(models.EntityKey(entityType, entityID)))
		if data == nil {
			return storage.ErrConflictNotFound
		}

		conflict = &models.ConflictRecord{}
		if err := json.Unmarshal(data, conflict); err != nil {
			return fmt.Errorf("failed to unmarshal conflict: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return conflict, nil
}

// ListConflicts returns all unresolved conflicts ordered by DetectedAt
func (s *Storage) ListConflicts(ctx context.Context) ([]*models.ConflictRecord, error) {
	var conflicts []*models.ConflictRecord

	err := s.view(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketConflicts)
		if bucket == nil {
			return bucketNotFound(bucketConflicts)
		}

		return bucket.ForEach(func(k, v []byte) error {
			var conflict models.ConflictRecord
			if err := json.Unmarshal(v, &conflict); err != nil {
				return fmt.Errorf("failed to unmarshal conflict %s: %w", k, err)
			}
			conflicts = append(conflicts, &conflict)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}

	sort.SliceStable(conflicts, func(i, j int) bool {
		return conflicts[i].DetectedAt.Before(conflicts[j].DetectedAt)
	})

	return conflicts, nil
}

// DeleteConflict removes the conflict of an entity
func (s *Storage) DeleteConflict(ctx context.Context, entityType models.EntityType, entityID string) error {
	return s.update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketConflicts)
		if bucket == nil {
			return bucketNotFound(bucketConflicts)
		}

		key := []byte(models.EntityKey(entityType, entityID))
		if bucket.Get(key) == nil {
			return storage.ErrConflictNotFound
		}

		if err := bucket.Delete(key); err != nil {
			return fmt.Errorf("failed to delete conflict: %w", err)
		}

		return nil
	})
}
