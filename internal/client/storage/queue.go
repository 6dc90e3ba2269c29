package storage

import (
	"context"
	"time"

	"github.com/iudanet/shelfsync/internal/models"
)

// QueueStorage defines the durable table behind the mutation queue.
type QueueStorage interface {
	// AppendOperation stores a new operation
	AppendOperation(ctx context.Context, op *models.SyncOperation) error

	// GetOperation retrieves an operation by ID
	// Returns ErrOperationNotFound if operation doesn't exist
	GetOperation(ctx context.Context, id string) (*models.SyncOperation, error)

	// PendingOperations returns unsynced operations in ascending CreatedAt order
	PendingOperations(ctx context.Context) ([]*models.SyncOperation, error)

	// PendingOperationsFor returns unsynced operations of one entity in ascending CreatedAt order
	PendingOperationsFor(ctx context.Context, entityType models.EntityType, entityID string) ([]*models.SyncOperation, error)

	// MarkOperationsSynced flips Synced for the given IDs.
	// Unknown or already synced IDs are skipped. Returns the number of flipped operations.
	MarkOperationsSynced(ctx context.Context, ids []string, syncedAt time.Time) (int, error)

	// DeleteSyncedBefore removes synced operations created before the given time
	DeleteSyncedBefore(ctx context.Context, before time.Time) (int, error)

	// DeletePendingFor removes unsynced operations of one entity
	DeletePendingFor(ctx context.Context, entityType models.EntityType, entityID string) (int, error)

	// CountPending returns the number of unsynced operations
	CountPending(ctx context.Context) (int, error)
}

// RejectionStorage keeps the last server rejection of queued operations.
type RejectionStorage interface {
	// SaveRejection stores or increments the rejection of an operation
	SaveRejection(ctx context.Context, rejection *models.Rejection) error

	// ListRejections returns all recorded rejections
	ListRejections(ctx context.Context) ([]*models.Rejection, error)

	// DeleteRejections removes rejections of the given operation IDs
	DeleteRejections(ctx context.Context, ids []string) error
}
