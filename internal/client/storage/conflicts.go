package storage

import (
	"context"

	"github.com/iudanet/shelfsync/internal/models"
)

// ConflictStorage persists unresolved conflicts, one per entity.
type ConflictStorage interface {
	// SaveConflict creates or replaces the conflict of an entity
	SaveConflict(ctx context.Context, conflict *models.ConflictRecord) error

	// GetConflict retrieves the conflict of an entity
	// Returns ErrConflictNotFound if there is none
	GetConflict(ctx context.Context, entityType models.EntityType, entityID string) (*models.ConflictRecord, error)

	// ListConflicts returns all unresolved conflicts ordered by DetectedAt
	ListConflicts(ctx context.Context) ([]*models.ConflictRecord, error)

	// DeleteConflict removes the conflict of an entity
	// Returns ErrConflictNotFound if there is none
	DeleteConflict(ctx context.Context, entityType models.EntityType, entityID string) error
}
