package storage

import (
	"context"
	"time"

	"github.com/iudanet/shelfsync/internal/models"
)

// IncomingOperation is one pushed operation after decoding.
// Op is nil when decoding or validation failed; Invalid then holds the reason.
// ID, EntityType and EntityID are the raw request values so that an invalid
// op still blocks the operations that follow it for the same entity.
type IncomingOperation struct {
	Op         *models.SyncOperation
	ID         string
	EntityType string
	EntityID   string
	Invalid    string
}

// Outcome is the verdict for one incoming operation.
// Current is set when the operation lost the ordering check: it is the state
// the entity already has on the server.
type Outcome struct {
	Current  *Change
	ID       string
	Reason   string
	Accepted bool
}

// Change is the current server state of one entity.
// Payload is nil for tombstones.
type Change struct {
	ChangedAt time.Time
	// LastOpCreatedAt is the createdAt of the operation that produced this state
	LastOpCreatedAt time.Time
	EntityType      models.EntityType
	EntityID        string
	Payload         []byte
	Deleted         bool
}

// SyncStorage defines the server side of push and pull
type SyncStorage interface {
	// Push applies operations in request order inside one transaction.
	// A duplicate operation id is accepted without being applied again.
	// Once an operation of an entity is rejected, the following operations
	// of the same entity in the batch are rejected too and not recorded.
	Push(ctx context.Context, userID string, ops []IncomingOperation) ([]Outcome, error)

	// ChangesSince returns entities changed in (since, asOf] together with asOf.
	// Zero since means everything.
	ChangesSince(ctx context.Context, userID string, since time.Time) (time.Time, []Change, error)

	// LatestOperationTime returns the newest createdAt among the user's entities,
	// zero when there are none
	LatestOperationTime(ctx context.Context, userID string) (time.Time, error)
}
