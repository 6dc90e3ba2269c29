package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/shelfsync/internal/client/storage"
	"github.com/iudanet/shelfsync/internal/models"
)

// entityBucket returns the nested bucket of an entity type.
func entityBucket(tx *bbolt.Tx, entityType models.EntityType) (*bbolt.Bucket, error) {
	if !entityType.Valid() {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownEntityType, entityType)
	}
	root := tx.Bucket(bucketEntities)
	if root == nil {
		return nil, bucketNotFound(bucketEntities)
	}
	bucket := root.Bucket([]byte(entityType))
	if bucket == nil {
		return nil, bucketNotFound([]byte(entityType))
	}
	return bucket, nil
}

// SaveEntity creates or replaces an entity
func (s *Storage) SaveEntity(ctx context.Context, entity models.Entity) error {
	if entity == nil {
		return fmt.Errorf("entity is nil")
	}

	// Сериализуем entity в JSON
	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", entity.EntityType(), err)
	}

	return s.update(func(tx *bbolt.Tx) error {
		bucket, err := entityBucket(tx, entity.EntityType())
		if err != nil {
			return err
		}

		if err := bucket.Put([]byte(entity.EntityID()), data); err != nil {
			return fmt.Errorf("failed to save %s: %w", entity.EntityType(), err)
		}

		return nil
	})
}

// GetEntity retrieves an entity by type and ID
func (s *Storage) GetEntity(ctx context.Context, entityType models.EntityType, id string) (models.Entity, error) {
	var entity models.Entity

	err := s.view(func(tx *bbolt.Tx) error {
		bucket, err := entityBucket(tx, entityType)
		if err != nil {
			return err
		}

		data := bucket.Get([]byte(id))
		if data == nil {
			return storage.ErrEntityNotFound
		}

		entity, err = models.DecodeEntity(entityType, data)
		return err
	})
	if err != nil {
		return nil, err
	}

	return entity, nil
}

// DeleteEntity removes an entity; deleting a missing entity is not an error
func (s *Storage) DeleteEntity(ctx context.Context, entityType models.EntityType, id string) error {
	return s.update(func(tx *bbolt.Tx) error {
		bucket, err := entityBucket(tx, entityType)
		if err != nil {
			return err
		}

		if err := bucket.Delete([]byte(id)); err != nil {
			return fmt.Errorf("failed to delete %s: %w", entityType, err)
		}

		return nil
	})
}

// ListEntities returns all entities of a type ordered by ID
func (s *Storage) ListEntities(ctx context.Context, entityType models.EntityType) ([]models.Entity, error) {
	var entities []models.Entity

	err := s.view(func(tx *bbolt.Tx) error {
		bucket, err := entityBucket(tx, entityType)
		if err != nil {
			return err
		}

		return bucket.ForEach(func(k, v []byte) error {
			entity, err := models.DecodeEntity(entityType, v)
			if err != nil {
				return fmt.Errorf("failed to decode %s %s: %w", entityType, k, err)
			}
			entities = append(entities, entity)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s entities: %w", entityType, err)
	}

	return entities, nil
}
