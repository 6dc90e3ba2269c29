package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/iudanet/shelfsync/pkg/api"
)

// Pinger checks that a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler обрабатывает health check запросы
type HealthHandler struct {
	logger  *slog.Logger
	db      Pinger
	version string
}

// NewHealthHandler создает новый handler для health check.
// db may be nil.
func NewHealthHandler(logger *slog.Logger, db Pinger, version string) *HealthHandler {
	return &HealthHandler{
		logger:  logger,
		db:      db,
		version: version,
	}
}

// Health обрабатывает GET /api/v1/health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			h.logger.ErrorContext(r.Context(), "database ping failed", slog.Any("error", err))
			SendJSON(h.logger, w, api.HealthResponse{Status: "unavailable", Version: h.version}, http.StatusServiceUnavailable)
			return
		}
	}

	SendJSON(h.logger, w, api.HealthResponse{Status: "ok", Version: h.version}, http.StatusOK)
}
