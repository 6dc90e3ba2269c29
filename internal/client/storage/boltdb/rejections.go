package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/shelfsync/internal/models"
)

// SaveRejection stores the rejection of an operation.
// A repeated rejection of the same operation increments Count.
func (s *Storage) SaveRejection(ctx context.Context, rejection *models.Rejection) error {
	return s.update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketRejections)
		if bucket == nil {
			return bucketNotFound(bucketRejections)
		}

		key := []byte(rejection.OperationID)
		record := *rejection
		if record.Count == 0 {
			record.Count = 1
		}

		if existing := bucket.Get(key); existing != nil {
			var prev models.Rejection
			if err := json.Unmarshal(existing, &prev); err != nil {
				return fmt.Errorf("failed to unmarshal rejection: %w", err)
			}
			record.Count = prev.Count + 1
		}

		data, err := json.Marshal(&record)
		if err != nil {
			return fmt.Errorf("failed to marshal rejection: %w", err)
		}

		return bucket.Put(key, data)
	})
}

// ListRejections returns all recorded rejections
func (s *Storage) ListRejections(ctx context.Context) ([]*models.Rejection, error) {
	var rejections []*models.Rejection

	err := s.view(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketRejections)
		if bucket == nil {
			return bucketNotFound(bucketRejections)
		}

		return bucket.ForEach(func(k, v []byte) error {
			var r models.Rejection
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("failed to unmarshal rejection %s: %w", k, err)
			}
			rejections = append(rejections, &r)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list rejections: %w", err)
	}

	return rejections, nil
}

// DeleteRejections removes rejections of the given operation IDs
func (s *Storage) DeleteRejections(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	return s.update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketRejections)
		if bucket == nil {
			return bucketNotFound(bucketRejections)
		}

		for _, id := range ids {
			if err := bucket.Delete([]byte(id)); err != nil {
				return fmt.Errorf("failed to delete rejection %s: %w", id, err)
			}
		}

		return nil
	})
}
