// Package app assembles the client components from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/iudanet/shelfsync/internal/client/api"
	"github.com/iudanet/shelfsync/internal/client/auth"
	"github.com/iudanet/shelfsync/internal/client/conflict"
	"github.com/iudanet/shelfsync/internal/client/data"
	"github.com/iudanet/shelfsync/internal/client/monitor"
	"github.com/iudanet/shelfsync/internal/client/queue"
	"github.com/iudanet/shelfsync/internal/client/storage/boltdb"
	clientsync "github.com/iudanet/shelfsync/internal/client/sync"
	"github.com/iudanet/shelfsync/internal/clock"
	"github.com/iudanet/shelfsync/internal/config"
	"github.com/iudanet/shelfsync/internal/logging"
)

// App holds the wired client
type App struct {
	Config   *config.ClientConfig
	Logger   *slog.Logger
	Store    *boltdb.Storage
	Client   *api.Client
	Queue    *queue.Queue
	Resolver *conflict.Resolver
	Engine   *clientsync.Engine
	Monitor  *monitor.Monitor
	Data     data.Service
	Auth     *auth.Service

	logCloser io.Closer
}

// New opens the local store and wires every component. logOut receives logs
// when no log file is configured.
func New(ctx context.Context, cfg *config.ClientConfig, logOut io.Writer) (*App, error) {
	logger, logCloser, err := logging.New(cfg.Log, logOut)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	a, err := open(ctx, cfg, logger)
	if err != nil {
		_ = logCloser.Close()
		return nil, err
	}
	a.logCloser = logCloser
	return a, nil
}

// open поднимает хранилище и компоненты поверх готового логгера
func open(ctx context.Context, cfg *config.ClientConfig, logger *slog.Logger) (*App, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store, err := boltdb.New(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store %s: %w", cfg.DBPath, err)
	}

	entityTypes, err := cfg.EntityTypes()
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	clk, err := restoreClock(ctx, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	client := api.NewClient(cfg.ServerURL, cfg.RequestTimeout, store)
	q := queue.New(store, clk, logger.With(slog.String("component", "queue")))
	resolver := conflict.NewResolver(store, store, q, clk, logger.With(slog.String("component", "conflict")))

	engine := clientsync.NewEngine(clientsync.Deps{
		Transport:  client,
		Queue:      q,
		Resolver:   resolver,
		Entities:   store,
		Checkpoint: store,
		Rejections: store,
		Clock:      clk,
		Logger:     logger.With(slog.String("component", "sync")),
	}, clientsync.Config{
		EntityTypes: entityTypes,
		BatchSize:   cfg.Sync.BatchSize,
		Retention:   cfg.Sync.Retention,
	})

	mon := monitor.New(client, engine, monitorConfig(cfg), logger.With(slog.String("component", "monitor")))

	return &App{
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		Client:   client,
		Queue:    q,
		Resolver: resolver,
		Engine:   engine,
		Monitor:  mon,
		Data:     data.NewService(store, q, mon, logger.With(slog.String("component", "data"))),
		Auth:     auth.NewService(client, store),
	}, nil
}

// restoreClock ставит часы после всего, что уже видел этот клиент: операций
// в очереди и отметок сервера из прошлых запусков
func restoreClock(ctx context.Context, store *boltdb.Storage) (*clock.Clock, error) {
	clk := clock.New()

	pending, err := store.PendingOperations(ctx)
	if err != nil {
		return nil, err
	}
	if n := len(pending); n > 0 {
		clk.Observe(pending[n-1].CreatedAt)
	}

	mark, err := store.GetClockMark(ctx)
	if err != nil {
		return nil, err
	}
	clk.Observe(mark)

	return clk, nil
}

func monitorConfig(cfg *config.ClientConfig) monitor.Config {
	return monitor.Config{
		Interval:      cfg.Sync.Interval,
		ProbeInterval: cfg.Sync.ProbeInterval,
		ProbeTimeout:  cfg.Sync.ProbeTimeout,
	}
}

// ReleaseStore closes the local store but keeps the logger, so that a
// long-running command can leave the store to other processes.
// Components that use the store must not be called afterwards.
func (a *App) ReleaseStore() error {
	if a.Store == nil {
		return nil
	}
	err := a.Store.Close()
	a.Store = nil
	return err
}

// Close releases the local store and the log file
func (a *App) Close() error {
	var errs []error
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.logCloser != nil {
		errs = append(errs, a.logCloser.Close())
	}
	return errors.Join(errs...)
}
