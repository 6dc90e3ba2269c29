package sync

import (
	"errors"
	"fmt"
)

// Phase is a step of the sync cycle
type Phase string

const (
	PhasePushing  Phase = "pushing"
	PhasePulling  Phase = "pulling"
	PhaseApplying Phase = "applying"
)

// ErrCheckpointRegression is returned when the server reports an asOf older
// than the stored checkpoint.
var ErrCheckpointRegression = errors.New("server asOf is older than checkpoint")

// SyncError reports a cycle aborted in a phase. The checkpoint is left unchanged.
type SyncError struct {
	Err   error
	Phase Phase
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s failed: %v", e.Phase, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// RejectionError describes an operation the server refused.
// The operation stays pending until it is accepted or dropped.
type RejectionError struct {
	OperationID string
	Reason      string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("operation %s rejected: %s", e.OperationID, e.Reason)
}
