package storage

import (
	"context"

	"github.com/iudanet/shelfsync/internal/models"
)

// EntityStorage defines the ownership-respecting CRUD interface over locally
// persisted library records. Writes are atomic per record.
type EntityStorage interface {
	// SaveEntity creates or replaces an entity
	SaveEntity(ctx context.Context, entity models.Entity) error

	// GetEntity retrieves an entity by type and ID
	// Returns ErrEntityNotFound if entity doesn't exist
	GetEntity(ctx context.Context, entityType models.EntityType, id string) (models.Entity, error)

	// DeleteEntity removes an entity; deleting a missing entity is not an error
	DeleteEntity(ctx context.Context, entityType models.EntityType, id string) error

	// ListEntities returns all entities of a type ordered by ID
	ListEntities(ctx context.Context, entityType models.EntityType) ([]models.Entity, error)
}
