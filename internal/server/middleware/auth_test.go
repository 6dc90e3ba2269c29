package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/shelfsync/internal/server/handlers"
)

var testJWT = handlers.JWTConfig{
	Secret:         []byte("0123456789abcdef0123456789abcdef"),
	AccessTokenTTL: 15 * time.Minute,
}

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAuthMiddleware_Success(t *testing.T) {
	token, _, err := handlers.GenerateAccessToken(testJWT, "user123", "reader")
	require.NoError(t, err)

	var gotUserID, gotUsername string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = handlers.GetUserID(r.Context())
		gotUsername, _ = handlers.GetUsername(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/pull", nil)
	req.Header.Set("Authorization", "bearer "+token)
	w := httptest.NewRecorder()
	AuthMiddleware(setupTestLogger(), testJWT)(next).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user123", gotUserID)
	assert.Equal(t, "reader", gotUsername)
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	expired, _, err := handlers.GenerateAccessToken(handlers.JWTConfig{Secret: testJWT.Secret, AccessTokenTTL: -time.Second}, "u", "reader")
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		wantMsg string
	}{
		{name: "missing header", header: "", wantMsg: "missing token"},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz", wantMsg: "invalid token format"},
		{name: "bearer without token", header: "Bearer ", wantMsg: "invalid token format"},
		{name: "no space", header: "Bearer", wantMsg: "invalid token format"},
		{name: "garbage token", header: "Bearer abc.def.ghi", wantMsg: "invalid or expired token"},
		{name: "expired token", header: "Bearer " + expired, wantMsg: "invalid or expired token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be called")
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			AuthMiddleware(setupTestLogger(), testJWT)(next).ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantMsg)
		})
	}
}
