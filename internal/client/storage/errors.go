package storage

import (
	"errors"
	"fmt"
)

// Common client storage errors
var (
	// ErrAuthNotFound indicates that no authentication data exists
	ErrAuthNotFound = errors.New("authentication data not found")

	// ErrEntityNotFound indicates that an entity is not in the local store
	ErrEntityNotFound = errors.New("entity not found")

	// ErrOperationNotFound indicates that a queued operation was not found
	ErrOperationNotFound = errors.New("operation not found")

	// ErrConflictNotFound indicates that no unresolved conflict exists for an entity
	ErrConflictNotFound = errors.New("conflict not found")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")
)

// StorageError reports a failed local persistence call.
// It is fatal to the call that triggered it, never to the process.
type StorageError struct {
	Err error
	Op  string
}

// NewStorageError wraps err unless it is nil or already a StorageError.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
