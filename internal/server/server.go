// Package server wires the HTTP API of the sync server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/iudanet/shelfsync/internal/config"
	"github.com/iudanet/shelfsync/internal/server/handlers"
	"github.com/iudanet/shelfsync/internal/server/middleware"
	"github.com/iudanet/shelfsync/internal/server/storage"
)

// HealthPath is polled by clients and excluded from request logs
const HealthPath = "/api/v1/health"

// Store is everything the HTTP API needs from persistence
type Store interface {
	storage.UserStorage
	storage.SyncStorage
	handlers.Pinger
}

// Server is the sync HTTP server
type Server struct {
	httpServer      *http.Server
	limiter         *middleware.RateLimiter
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

// New builds the server and its routes
func New(cfg *config.ServerConfig, store Store, logger *slog.Logger, version string) *Server {
	limiter := middleware.NewRateLimiter(cfg.AuthRateLimit, cfg.AuthRateWindow, logger)

	s := &Server{
		limiter:         limiter,
		logger:          logger,
		shutdownTimeout: cfg.ShutdownTimeout,
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Address,
		Handler:           NewRouter(cfg, store, limiter, logger, version),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	return s
}

// NewRouter returns the API handler with middleware applied
func NewRouter(cfg *config.ServerConfig, store Store, limiter *middleware.RateLimiter, logger *slog.Logger, version string) http.Handler {
	jwtConfig := handlers.JWTConfig{
		Secret:         []byte(cfg.JWTSecret),
		AccessTokenTTL: cfg.AccessTokenTTL,
	}

	health := handlers.NewHealthHandler(logger, store, version)
	auth := handlers.NewAuthHandler(logger, store, jwtConfig)
	sync := handlers.NewSyncHandler(logger, store, cfg.MaxPushBatch)

	rateLimited := middleware.RateLimitMiddleware(limiter, logger)
	authenticated := middleware.AuthMiddleware(logger, jwtConfig)

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+HealthPath, health.Health)
	mux.Handle("POST /api/v1/auth/register", rateLimited(http.HandlerFunc(auth.Register)))
	mux.Handle("POST /api/v1/auth/login", rateLimited(http.HandlerFunc(auth.Login)))
	mux.Handle("POST /api/v1/sync/push", authenticated(http.HandlerFunc(sync.Push)))
	mux.Handle("GET /api/v1/sync/pull", authenticated(http.HandlerFunc(sync.Pull)))

	// Recovery внутри логирования: паника попадает в лог как 500
	var h http.Handler = mux
	h = middleware.RecoveryMiddleware(logger)(h)
	h = middleware.LoggingMiddleware(logger, HealthPath)(h)

	return h
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.limiter.Stop()

	errC := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", slog.String("address", ln.Addr().String()))
		errC <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errC:
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server", slog.Duration("timeout", s.shutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	if err := <-errC; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server stopped: %w", err)
	}

	return nil
}
