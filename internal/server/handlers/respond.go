package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iudanet/shelfsync/pkg/api"
)

// contextKey тип для ключей контекста
type contextKey string

const (
	// UserIDKey ключ для хранения user_id в контексте
	UserIDKey contextKey = "user_id"
	// UsernameKey ключ для хранения username в контексте
	UsernameKey contextKey = "username"
)

// WithUser returns a context carrying the authenticated user
func WithUser(ctx context.Context, userID, username string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	return context.WithValue(ctx, UsernameKey, username)
}

// GetUserID извлекает user_id из контекста запроса
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok && userID != ""
}

// GetUsername извлекает username из контекста запроса
func GetUsername(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(UsernameKey).(string)
	return username, ok
}

// SendJSON отправляет JSON ответ
func SendJSON(logger *slog.Logger, w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

// SendError отправляет JSON ответ с ошибкой
func SendError(logger *slog.Logger, w http.ResponseWriter, message string, statusCode int) {
	resp := api.ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	}
	SendJSON(logger, w, resp, statusCode)
}
