package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/iudanet/shelfsync/internal/server/handlers"
)

// RecoveryMiddleware перехватывает panic, логирует стек и отвечает 500.
// Детали паники клиенту не отдаются.
func RecoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// ErrAbortHandler используется net/http для обрыва ответа
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.ErrorContext(r.Context(), "panic recovered",
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())))

				handlers.SendError(logger, w, "internal server error", http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
