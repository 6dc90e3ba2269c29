package conflict

import (
	"github.com/iudanet/shelfsync/internal/models"
)

// Version is one side of an entity: its content or a deletion marker
type Version struct {
	Entity  models.Entity
	Deleted bool
}

// LocalVersion derives the local side from the latest unsynced operation
func LocalVersion(op *models.SyncOperation) *Version {
	if op == nil {
		return nil
	}
	if op.Kind == models.OpDelete {
		return &Version{Deleted: true}
	}
	return &Version{Entity: op.Payload}
}

// Classification describes how two versions of an entity relate
type Classification int

const (
	// NoConflict: both sides agree (equal fields or both deleted)
	NoConflict Classification = iota
	// LocalOnly: only the local side changed
	LocalOnly
	// ServerOnly: only the server side changed
	ServerOnly
	// Conflict: both sides changed and disagree
	Conflict
)

func (c Classification) String() string {
	switch c {
	case NoConflict:
		return "no_conflict"
	case LocalOnly:
		return "local_only"
	case ServerOnly:
		return "server_only"
	case Conflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Classify compares a local and a server version. A nil side means it did not change.
func Classify(local, server *Version) Classification {
	switch {
	case local == nil && server == nil:
		return NoConflict
	case local == nil:
		return ServerOnly
	case server == nil:
		return LocalOnly
	}

	if local.Deleted && server.Deleted {
		return NoConflict
	}
	if local.Deleted != server.Deleted {
		return Conflict
	}
	if models.EntitiesEqual(local.Entity, server.Entity) {
		return NoConflict
	}
	return Conflict
}
