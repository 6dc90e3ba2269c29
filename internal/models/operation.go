package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// OperationKind is the kind of local mutation recorded in the queue.
type OperationKind string

const (
	OpCreate OperationKind = "create"
	OpUpdate OperationKind = "update"
	OpDelete OperationKind = "delete"
)

// ErrInvalidOperation is returned when an operation violates its invariants.
var ErrInvalidOperation = errors.New("invalid operation")

// Valid reports whether k is a known operation kind.
func (k OperationKind) Valid() bool {
	switch k {
	case OpCreate, OpUpdate, OpDelete:
		return true
	default:
		return false
	}
}

// SyncOperation is a pending local mutation.
// Only Synced and SyncedAt change after creation.
type SyncOperation struct {
	CreatedAt  time.Time     `json:"createdAt"`
	SyncedAt   *time.Time    `json:"syncedAt,omitempty"`
	Payload    Entity        `json:"-"`
	ID         string        `json:"id"`
	Kind       OperationKind `json:"kind"`
	EntityType EntityType    `json:"entityType"`
	EntityID   string        `json:"entityId"`
	Synced     bool          `json:"synced"`
}

// syncOperationJSON is the persisted form; Payload becomes raw JSON so that
// the concrete variant can be recovered from EntityType.
type syncOperationJSON struct {
	CreatedAt  time.Time       `json:"createdAt"`
	SyncedAt   *time.Time      `json:"syncedAt,omitempty"`
	ID         string          `json:"id"`
	Kind       OperationKind   `json:"kind"`
	EntityType EntityType      `json:"entityType"`
	EntityID   string          `json:"entityId"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Synced     bool            `json:"synced"`
}

// MarshalJSON implements json.Marshaler.
func (op SyncOperation) MarshalJSON() ([]byte, error) {
	out := syncOperationJSON{
		CreatedAt:  op.CreatedAt,
		SyncedAt:   op.SyncedAt,
		ID:         op.ID,
		Kind:       op.Kind,
		EntityType: op.EntityType,
		EntityID:   op.EntityID,
		Synced:     op.Synced,
	}
	if op.Payload != nil {
		raw, err := json.Marshal(op.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		out.Payload = raw
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (op *SyncOperation) UnmarshalJSON(data []byte) error {
	var in syncOperationJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	op.CreatedAt = in.CreatedAt
	op.SyncedAt = in.SyncedAt
	op.ID = in.ID
	op.Kind = in.Kind
	op.EntityType = in.EntityType
	op.EntityID = in.EntityID
	op.Synced = in.Synced
	op.Payload = nil

	if len(in.Payload) > 0 && string(in.Payload) != "null" {
		payload, err := DecodeEntity(in.EntityType, in.Payload)
		if err != nil {
			return err
		}
		op.Payload = payload
	}

	return nil
}

// Validate checks the operation invariants: known kind and type, payload present
// exactly for create/update and addressing the same entity.
func (op *SyncOperation) Validate() error {
	if op.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidOperation)
	}
	if !op.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidOperation, op.Kind)
	}
	if !op.EntityType.Valid() {
		return fmt.Errorf("%w: %w: %q", ErrInvalidOperation, ErrUnknownEntityType, op.EntityType)
	}
	if op.EntityID == "" {
		return fmt.Errorf("%w: entity id is required", ErrInvalidOperation)
	}

	if op.Kind == OpDelete {
		if op.Payload != nil {
			return fmt.Errorf("%w: delete must not carry a payload", ErrInvalidOperation)
		}
		return nil
	}

	if op.Payload == nil {
		return fmt.Errorf("%w: %s requires a payload", ErrInvalidOperation, op.Kind)
	}
	if op.Payload.EntityType() != op.EntityType {
		return fmt.Errorf("%w: payload type %s does not match %s", ErrInvalidOperation, op.Payload.EntityType(), op.EntityType)
	}
	if op.Payload.EntityID() != op.EntityID {
		return fmt.Errorf("%w: payload id %q does not match entity id %q", ErrInvalidOperation, op.Payload.EntityID(), op.EntityID)
	}
	if err := ValidateEntity(op.Payload); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOperation, err)
	}

	return nil
}

// Key returns the entity key the operation refers to.
func (op *SyncOperation) Key() string {
	return EntityKey(op.EntityType, op.EntityID)
}

// Rejection records the last server rejection of a queued operation.
type Rejection struct {
	RejectedAt  time.Time  `json:"rejectedAt"`
	OperationID string     `json:"operationId"`
	EntityType  EntityType `json:"entityType"`
	EntityID    string     `json:"entityId"`
	Reason      string     `json:"reason"`
	Count       int        `json:"count"`
}
