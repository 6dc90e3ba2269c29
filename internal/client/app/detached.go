package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/iudanet/shelfsync/internal/client/api"
	"github.com/iudanet/shelfsync/internal/client/monitor"
	clientsync "github.com/iudanet/shelfsync/internal/client/sync"
	"github.com/iudanet/shelfsync/internal/config"
)

// Detached runs every sync cycle against a freshly opened local store and
// closes it when the cycle ends. Between cycles the store is free for other
// commands of the same user.
type Detached struct {
	cfg      *config.ClientConfig
	logger   *slog.Logger
	onStatus func(clientsync.Status)
	running  sync.Mutex
	online   atomic.Bool
}

// NewDetached creates a detached cycle runner. onStatus, when set, receives
// the engine status after each cycle.
func NewDetached(cfg *config.ClientConfig, logger *slog.Logger, onStatus func(clientsync.Status)) *Detached {
	return &Detached{cfg: cfg, logger: logger, onStatus: onStatus}
}

// Monitor builds a connectivity monitor that starts cycles through d.
// Probing the health endpoint needs no session, so no store is opened for it.
func (d *Detached) Monitor() *monitor.Monitor {
	health := api.NewClient(d.cfg.ServerURL, d.cfg.RequestTimeout, nil)
	return monitor.New(health, d, monitorConfig(d.cfg), d.logger.With(slog.String("component", "monitor")))
}

// Trigger starts a cycle in the background. A trigger that arrives while a
// cycle is running is reported as skipped.
func (d *Detached) Trigger(ctx context.Context, reason clientsync.Reason) <-chan *clientsync.Result {
	ch := make(chan *clientsync.Result, 1)
	if !d.running.TryLock() {
		ch <- &clientsync.Result{Trigger: reason, Skipped: true}
		close(ch)
		return ch
	}

	cycleCtx := context.WithoutCancel(ctx)
	go func() {
		defer close(ch)
		defer d.running.Unlock()
		ch <- d.RunCycle(cycleCtx, reason)
	}()

	return ch
}

// SetOnline records connectivity for the next cycles
func (d *Detached) SetOnline(_ context.Context, online bool) {
	d.online.Store(online)
}

// RunCycle opens the store, runs one cycle and closes the store
func (d *Detached) RunCycle(ctx context.Context, reason clientsync.Reason) *clientsync.Result {
	a, err := open(ctx, d.cfg, d.logger)
	if err != nil {
		return &clientsync.Result{
			Trigger: reason,
			Err:     &clientsync.SyncError{Phase: clientsync.PhasePulling, Err: fmt.Errorf("failed to open local store: %w", err)},
		}
	}
	defer func() {
		if err := a.Close(); err != nil {
			d.logger.Warn("failed to close local store", slog.Any("error", err))
		}
	}()

	a.Engine.SetOnline(ctx, d.online.Load())
	res := a.Engine.RunCycle(ctx, reason)
	if d.onStatus != nil {
		d.onStatus(a.Engine.Status(ctx))
	}
	return res
}
