package sync

import (
	"context"
	"time"

	"github.com/iudanet/shelfsync/pkg/api"
)

//go:generate moq -out transport_mock.go . Transport

// Transport carries push and pull requests to the server.
// Timeouts are the transport's concern.
type Transport interface {
	// Push sends a batch and returns per-operation results matched by ID
	Push(ctx context.Context, ops []api.PushOperation) ([]api.PushResult, error)

	// Pull returns every change and tombstone recorded after since
	Pull(ctx context.Context, since time.Time) (*api.PullResponse, error)
}
