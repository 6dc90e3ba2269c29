package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/shelfsync/internal/models"
)

const (
	keyCheckpoint = "sync_checkpoint"
	keyScope      = "sync_scope"
	keyClockMark  = "clock_mark"
)

// SaveCheckpoint saves the server asOf of the last fully applied pull
func (s *Storage) SaveCheckpoint(ctx context.Context, asOf time.Time) error {
	if err := s.putTime(keyCheckpoint, asOf); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// GetCheckpoint retrieves the checkpoint
// Returns the zero time if no pull has been applied yet
func (s *Storage) GetCheckpoint(ctx context.Context) (time.Time, error) {
	checkpoint, err := s.getTime(keyCheckpoint)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get checkpoint: %w", err)
	}
	return checkpoint, nil
}

// SaveClockMark stores the newest timestamp the client clock has reached
func (s *Storage) SaveClockMark(ctx context.Context, t time.Time) error {
	if err := s.putTime(keyClockMark, t); err != nil {
		return fmt.Errorf("failed to save clock mark: %w", err)
	}
	return nil
}

// GetClockMark returns the stored clock mark, zero if none
func (s *Storage) GetClockMark(ctx context.Context) (time.Time, error) {
	mark, err := s.getTime(keyClockMark)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get clock mark: %w", err)
	}
	return mark, nil
}

// SaveScope records the entity types applied up to the checkpoint
func (s *Storage) SaveScope(ctx context.Context, types []models.EntityType) error {
	value, err := json.Marshal(types)
	if err != nil {
		return fmt.Errorf("failed to marshal scope: %w", err)
	}

	return s.update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return bucketNotFound(bucketMetadata)
		}
		if err := bucket.Put([]byte(keyScope), value); err != nil {
			return fmt.Errorf("failed to save scope: %w", err)
		}
		return nil
	})
}

// GetScope returns the recorded scope, nil if none was recorded
func (s *Storage) GetScope(ctx context.Context) ([]models.EntityType, error) {
	var types []models.EntityType

	err := s.view(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return bucketNotFound(bucketMetadata)
		}

		value := bucket.Get([]byte(keyScope))
		if value == nil {
			return nil
		}
		return json.Unmarshal(value, &types)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get scope: %w", err)
	}

	return types, nil
}

// putTime хранит время как Unix nanos в big-endian
func (s *Storage) putTime(key string, t time.Time) error {
	return s.update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return bucketNotFound(bucketMetadata)
		}

		value := make([]byte, 8)
		binary.BigEndian.PutUint64(value, uint64(t.UnixNano()))

		return bucket.Put([]byte(key), value)
	})
}

// getTime returns the zero time for a missing key
func (s *Storage) getTime(key string) (time.Time, error) {
	var t time.Time

	err := s.view(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return bucketNotFound(bucketMetadata)
		}

		value := bucket.Get([]byte(key))
		if value == nil {
			return nil
		}
		if len(value) != 8 {
			return fmt.Errorf("corrupted %s value (%d bytes)", key, len(value))
		}

		t = time.Unix(0, int64(binary.BigEndian.Uint64(value))).UTC()
		return nil
	})

	return t, err
}
