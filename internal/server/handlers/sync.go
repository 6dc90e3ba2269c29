package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/iudanet/shelfsync/internal/models"
	"github.com/iudanet/shelfsync/internal/server/storage"
	"github.com/iudanet/shelfsync/internal/validation"
	"github.com/iudanet/shelfsync/pkg/api"
)

const (
	// DefaultMaxPushBatch ограничивает число операций в одном push
	DefaultMaxPushBatch = 500
	maxPushBodyBytes    = 8 << 20
)

// SyncHandler handles push and pull requests
type SyncHandler struct {
	logger   *slog.Logger
	storage  storage.SyncStorage
	maxBatch int
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(logger *slog.Logger, syncStorage storage.SyncStorage, maxBatch int) *SyncHandler {
	if maxBatch <= 0 {
		maxBatch = DefaultMaxPushBatch
	}
	return &SyncHandler{
		logger:   logger,
		storage:  syncStorage,
		maxBatch: maxBatch,
	}
}

// Push обрабатывает POST /api/v1/sync/push.
// Invalid operations are rejected individually; only a malformed body is a 400.
func (h *SyncHandler) Push(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		h.logger.ErrorContext(ctx, "user id not found in context")
		SendError(h.logger, w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var ops []api.PushOperation
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPushBodyBytes)).Decode(&ops); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			SendError(h.logger, w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		h.logger.WarnContext(ctx, "failed to decode push request", slog.Any("error", err))
		SendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	if len(ops) > h.maxBatch {
		SendError(h.logger, w, fmt.Sprintf("batch of %d operations exceeds limit of %d", len(ops), h.maxBatch), http.StatusRequestEntityTooLarge)
		return
	}

	incoming := make([]storage.IncomingOperation, len(ops))
	for i, op := range ops {
		incoming[i] = decodeOperation(op)
	}

	outcomes, err := h.storage.Push(ctx, userID, incoming)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to apply push", slog.String("user_id", userID), slog.Any("error", err))
		SendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	results := make([]api.PushResult, len(outcomes))
	accepted := 0
	for i, o := range outcomes {
		results[i] = api.PushResult{ID: o.ID, Status: api.StatusRejected, Reason: o.Reason}
		if o.Current != nil {
			results[i].Current = &api.EntityState{
				LastOpCreatedAt: o.Current.LastOpCreatedAt,
				Payload:         o.Current.Payload,
				Deleted:         o.Current.Deleted,
			}
		}
		if o.Accepted {
			results[i] = api.PushResult{ID: o.ID, Status: api.StatusAccepted}
			accepted++
		}
	}

	h.logger.InfoContext(ctx, "push applied",
		slog.String("user_id", userID),
		slog.Int("operations", len(ops)),
		slog.Int("accepted", accepted))

	SendJSON(h.logger, w, results, http.StatusOK)
}

// decodeOperation превращает wire-операцию в доменную; ошибки становятся причиной отказа
func decodeOperation(in api.PushOperation) storage.IncomingOperation {
	out := storage.IncomingOperation{
		ID:         in.ID,
		EntityType: in.EntityType,
		EntityID:   in.EntityID,
	}
	invalid := func(err error) storage.IncomingOperation {
		out.Invalid = err.Error()
		return out
	}

	if err := validation.ValidateEntityID(in.EntityID); err != nil {
		return invalid(err)
	}

	entityType, err := models.ParseEntityType(in.EntityType)
	if err != nil {
		return invalid(err)
	}

	op := &models.SyncOperation{
		ID:         in.ID,
		Kind:       models.OperationKind(in.Kind),
		EntityType: entityType,
		EntityID:   in.EntityID,
		CreatedAt:  in.CreatedAt,
	}

	if len(in.Payload) > 0 && string(in.Payload) != "null" {
		payload, err := models.DecodeEntity(entityType, in.Payload)
		if err != nil {
			return invalid(fmt.Errorf("%w: %w", models.ErrInvalidOperation, err))
		}
		op.Payload = payload
	}

	if err := op.Validate(); err != nil {
		return invalid(err)
	}
	if op.CreatedAt.IsZero() {
		return invalid(fmt.Errorf("%w: createdAt is required", models.ErrInvalidOperation))
	}

	out.Op = op
	return out
}

// Pull обрабатывает GET /api/v1/sync/pull?since=<RFC3339Nano>
func (h *SyncHandler) Pull(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		h.logger.ErrorContext(ctx, "user id not found in context")
		SendError(h.logger, w, "unauthorized", http.StatusUnauthorized)
		return
	}

	since, err := api.ParseSince(r.URL.Query().Get(api.SinceParam))
	if err != nil {
		h.logger.WarnContext(ctx, "invalid since parameter", slog.Any("error", err))
		SendError(h.logger, w, "invalid since parameter", http.StatusBadRequest)
		return
	}

	asOf, changes, err := h.storage.ChangesSince(ctx, userID, since)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to read changes", slog.String("user_id", userID), slog.Any("error", err))
		SendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	latest, err := h.storage.LatestOperationTime(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to read latest operation time", slog.String("user_id", userID), slog.Any("error", err))
		SendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	resp := api.PullResponse{
		AsOf:       asOf,
		LatestOpAt: latest,
		Changes:    make(map[string][]json.RawMessage),
		Tombstones: make(map[string][]string),
	}
	for _, c := range changes {
		t := string(c.EntityType)
		if c.Deleted {
			resp.Tombstones[t] = append(resp.Tombstones[t], c.EntityID)
			continue
		}
		resp.Changes[t] = append(resp.Changes[t], json.RawMessage(c.Payload))
	}

	h.logger.DebugContext(ctx, "pull served",
		slog.String("user_id", userID),
		slog.Time("since", since),
		slog.Time("as_of", asOf),
		slog.Int("changes", len(changes)))

	SendJSON(h.logger, w, resp, http.StatusOK)
}
