package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ResolutionStrategy selects how a conflict is resolved.
type ResolutionStrategy string

const (
	KeepLocal  ResolutionStrategy = "keep_local"
	KeepServer ResolutionStrategy = "keep_server"
	Merge      ResolutionStrategy = "merge"
)

// ParseResolutionStrategy converts user input into a ResolutionStrategy.
func ParseResolutionStrategy(s string) (ResolutionStrategy, error) {
	switch ResolutionStrategy(s) {
	case KeepLocal, KeepServer, Merge:
		return ResolutionStrategy(s), nil
	default:
		return "", fmt.Errorf("unknown resolution strategy %q (want keep_local, keep_server or merge)", s)
	}
}

// ConflictRecord keeps both sides of a divergence between an unsynced local
// change and a pulled server version. It lives until a resolution is supplied.
type ConflictRecord struct {
	DetectedAt    time.Time  `json:"detectedAt"`
	LocalData     Entity     `json:"-"`
	ServerData    Entity     `json:"-"`
	EntityType    EntityType `json:"entityType"`
	EntityID      string     `json:"entityId"`
	LocalDeleted  bool       `json:"localDeleted"`
	ServerDeleted bool       `json:"serverDeleted"`
}

type conflictRecordJSON struct {
	DetectedAt    time.Time       `json:"detectedAt"`
	EntityType    EntityType      `json:"entityType"`
	EntityID      string          `json:"entityId"`
	LocalData     json.RawMessage `json:"localData,omitempty"`
	ServerData    json.RawMessage `json:"serverData,omitempty"`
	LocalDeleted  bool            `json:"localDeleted"`
	ServerDeleted bool            `json:"serverDeleted"`
}

// Key returns the entity key of the conflict.
func (c *ConflictRecord) Key() string {
	return EntityKey(c.EntityType, c.EntityID)
}

// MarshalJSON implements json.Marshaler.
func (c ConflictRecord) MarshalJSON() ([]byte, error) {
	out := conflictRecordJSON{
		DetectedAt:    c.DetectedAt,
		EntityType:    c.EntityType,
		EntityID:      c.EntityID,
		LocalDeleted:  c.LocalDeleted,
		ServerDeleted: c.ServerDeleted,
	}

	var err error
	if c.LocalData != nil {
		if out.LocalData, err = json.Marshal(c.LocalData); err != nil {
			return nil, fmt.Errorf("failed to marshal local data: %w", err)
		}
	}
	if c.ServerData != nil {
		if out.ServerData, err = json.Marshal(c.ServerData); err != nil {
			return nil, fmt.Errorf("failed to marshal server data: %w", err)
		}
	}

	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *ConflictRecord) UnmarshalJSON(data []byte) error {
	var in conflictRecordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	c.DetectedAt = in.DetectedAt
	c.EntityType = in.EntityType
	c.EntityID = in.EntityID
	c.LocalDeleted = in.LocalDeleted
	c.ServerDeleted = in.ServerDeleted
	c.LocalData = nil
	c.ServerData = nil

	var err error
	if len(in.LocalData) > 0 && string(in.LocalData) != "null" {
		if c.LocalData, err = DecodeEntity(in.EntityType, in.LocalData); err != nil {
			return err
		}
	}
	if len(in.ServerData) > 0 && string(in.ServerData) != "null" {
		if c.ServerData, err = DecodeEntity(in.EntityType, in.ServerData); err != nil {
			return err
		}
	}

	return nil
}
