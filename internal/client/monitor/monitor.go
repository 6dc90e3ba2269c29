// Package monitor decides when sync cycles run: on reconnect, on a fixed
// interval while online, and on demand after local mutations.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	clientsync "github.com/iudanet/shelfsync/internal/client/sync"
)

const (
	DefaultInterval      = 30 * time.Second
	DefaultProbeInterval = 10 * time.Second
	DefaultProbeTimeout  = 5 * time.Second
)

//go:generate moq -out monitor_mock.go . Prober Cycler

// Prober checks whether the server is reachable
type Prober interface {
	Probe(ctx context.Context) error
}

// Cycler starts sync cycles; implemented by *sync.Engine
type Cycler interface {
	Trigger(ctx context.Context, reason clientsync.Reason) <-chan *clientsync.Result
	SetOnline(ctx context.Context, online bool)
}

// Config holds scheduling settings
type Config struct {
	// Interval between cycles while online
	Interval time.Duration
	// ProbeInterval between connectivity checks
	ProbeInterval time.Duration
	// ProbeTimeout bounds a single connectivity check
	ProbeTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = DefaultProbeInterval
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = DefaultProbeTimeout
	}
	return c
}

// Monitor tracks connectivity and schedules sync cycles
type Monitor struct {
	prober      Prober
	cycler      Cycler
	logger      *slog.Logger
	subscribers map[int]func(bool)
	cfg         Config
	inflight    sync.WaitGroup
	nextSubID   int
	mu          sync.Mutex
	online      atomic.Bool
}

// New creates a monitor. It starts offline until the first probe or Report.
func New(prober Prober, cycler Cycler, cfg Config, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		prober:      prober,
		cycler:      cycler,
		logger:      logger,
		cfg:         cfg.withDefaults(),
		subscribers: make(map[int]func(bool)),
	}
}

// Run probes connectivity and ticks the sync interval until ctx is done.
// It waits for cycles it started before returning.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("monitor started",
		"interval", m.cfg.Interval,
		"probe_interval", m.cfg.ProbeInterval)

	probeTicker := time.NewTicker(m.cfg.ProbeInterval)
	defer probeTicker.Stop()
	syncTicker := time.NewTicker(m.cfg.Interval)
	defer syncTicker.Stop()

	m.probe(ctx)

	for {
		select {
		case <-ctx.Done():
			m.inflight.Wait()
			m.logger.Info("monitor stopped")
			return nil
		case <-probeTicker.C:
			m.probe(ctx)
		case <-syncTicker.C:
			if m.IsOnline() {
				m.start(ctx, clientsync.ReasonInterval)
			}
		}
	}
}

func (m *Monitor) probe(ctx context.Context) {
	if m.prober == nil {
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	defer cancel()

	err := m.prober.Probe(probeCtx)
	if err != nil && ctx.Err() != nil {
		// Остановка, а не потеря сети
		return
	}
	if err != nil {
		m.logger.Debug("server unreachable", "error", err)
	}
	m.Report(ctx, err == nil)
}

// Report records a connectivity observation, for example from an OS network
// event. An offline to online transition starts a reconnect cycle.
func (m *Monitor) Report(ctx context.Context, online bool) {
	if m.online.Swap(online) == online {
		return
	}

	m.logger.Info("connectivity changed", "online", online)
	m.cycler.SetOnline(ctx, online)
	m.notify(online)

	if online {
		m.start(ctx, clientsync.ReasonReconnect)
	}
}

// IsOnline reports the last known connectivity
func (m *Monitor) IsOnline() bool {
	return m.online.Load()
}

// RequestSync asks for a cycle after a local mutation. It returns nil when offline.
func (m *Monitor) RequestSync(ctx context.Context) <-chan *clientsync.Result {
	if !m.IsOnline() {
		m.logger.Debug("offline, sync request deferred until reconnect")
		return nil
	}
	return m.start(ctx, clientsync.ReasonMutation)
}

// Subscribe registers fn for connectivity transitions
func (m *Monitor) Subscribe(fn func(online bool)) func() {
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subscribers, id)
		m.mu.Unlock()
	}
}

func (m *Monitor) notify(online bool) {
	m.mu.Lock()
	subs := make([]func(bool), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(online)
	}
}

// start triggers a cycle and logs its outcome in the background.
// The returned channel carries the same result.
func (m *Monitor) start(ctx context.Context, reason clientsync.Reason) <-chan *clientsync.Result {
	results := m.cycler.Trigger(ctx, reason)
	out := make(chan *clientsync.Result, 1)

	m.inflight.Add(1)
	go func() {
		defer m.inflight.Done()
		defer close(out)

		res, ok := <-results
		if !ok || res == nil {
			return
		}
		switch {
		case res.Skipped:
			m.logger.Debug("sync skipped, cycle in progress", "trigger", reason)
		case res.Err != nil:
			m.logger.Warn("sync failed", "trigger", reason, "error", res.Err)
		}
		out <- res
	}()

	return out
}
