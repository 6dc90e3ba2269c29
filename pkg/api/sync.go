package api

import (
	"encoding/json"
	"time"
)

// PushStatus is the server verdict for one pushed operation.
type PushStatus string

const (
	StatusAccepted PushStatus = "accepted"
	StatusRejected PushStatus = "rejected"
)

// PushOperation представляет одну операцию в теле POST /api/v1/sync/push
type PushOperation struct {
	CreatedAt  time.Time       `json:"createdAt"`
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// ReasonOutOfOrder is the rejection reason of an operation older than the
// last one applied to its entity. Such results carry Current.
const ReasonOutOfOrder = "out of order"

// PushResult is the per-operation answer. Results are matched by ID;
// their order does not have to follow the request.
type PushResult struct {
	Current *EntityState `json:"current,omitempty"`
	ID      string       `json:"id"`
	Status  PushStatus   `json:"status"`
	Reason  string       `json:"reason,omitempty"`
}

// EntityState is the server copy of an entity
type EntityState struct {
	// LastOpCreatedAt is the createdAt of the operation that produced this state
	LastOpCreatedAt time.Time       `json:"lastOpCreatedAt"`
	Payload         json.RawMessage `json:"payload,omitempty"`
	Deleted         bool            `json:"deleted"`
}

// PullResponse представляет ответ GET /api/v1/sync/pull?since=...
type PullResponse struct {
	AsOf       time.Time                    `json:"asOf"`       // новый checkpoint клиента
	LatestOpAt time.Time                    `json:"latestOpAt"` // самый новый createdAt среди записей пользователя
	Changes    map[string][]json.RawMessage `json:"changes"`    // entityType -> записи
	Tombstones map[string][]string          `json:"tombstones"` // entityType -> удалённые id
}

// SinceParam is the query parameter name of the pull cursor.
const SinceParam = "since"

// FormatSince formats a pull cursor for the query string.
func FormatSince(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseSince parses a pull cursor. An empty value means the beginning of time.
func ParseSince(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
