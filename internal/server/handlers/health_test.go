package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iudanet/shelfsync/pkg/api"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler_Health(t *testing.T) {
	tests := []struct {
		db         Pinger
		name       string
		wantStatus string
		wantCode   int
	}{
		{name: "no database", db: nil, wantCode: http.StatusOK, wantStatus: "ok"},
		{name: "database up", db: pingerFunc(func(context.Context) error { return nil }), wantCode: http.StatusOK, wantStatus: "ok"},
		{name: "database down", db: pingerFunc(func(context.Context) error { return errors.New("disk gone") }), wantCode: http.StatusServiceUnavailable, wantStatus: "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(testLogger(), tt.db, "1.2.3")

			w := httptest.NewRecorder()
			h.Health(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			resp := decodeBody[api.HealthResponse](t, w)
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, "1.2.3", resp.Version)
		})
	}
}
