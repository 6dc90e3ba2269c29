package storage

import (
	"context"
	"time"

	"github.com/iudanet/shelfsync/internal/models"
)

// CheckpointStorage defines interface for the sync checkpoint and the
// bookkeeping that travels with it
type CheckpointStorage interface {
	// SaveCheckpoint saves the server asOf of the last fully applied pull
	SaveCheckpoint(ctx context.Context, asOf time.Time) error

	// GetCheckpoint retrieves the checkpoint
	// Returns the zero time if no pull has been applied yet
	GetCheckpoint(ctx context.Context) (time.Time, error)

	// SaveScope records the entity types applied up to the checkpoint
	SaveScope(ctx context.Context, types []models.EntityType) error

	// GetScope returns the recorded scope, nil if none was recorded
	GetScope(ctx context.Context) ([]models.EntityType, error)

	// SaveClockMark stores the newest timestamp the client clock has reached
	SaveClockMark(ctx context.Context, t time.Time) error

	// GetClockMark returns the stored clock mark, zero if none
	GetClockMark(ctx context.Context) (time.Time, error)
}
