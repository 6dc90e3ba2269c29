// Package sync implements the sync orchestrator: one cycle pushes the
// mutation queue to the server, pulls changes recorded since the checkpoint
// and applies them locally, consulting the conflict resolver whenever an
// incoming record collides with an unsynced local operation.
package sync

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iudanet/shelfsync/internal/client/conflict"
	"github.com/iudanet/shelfsync/internal/client/queue"
	"github.com/iudanet/shelfsync/internal/client/storage"
	"github.com/iudanet/shelfsync/internal/clock"
	"github.com/iudanet/shelfsync/internal/models"
)

// State is the orchestrator state
type State string

const (
	StateIdle     State = "idle"
	StatePushing  State = "pushing"
	StatePulling  State = "pulling"
	StateApplying State = "applying"
)

// Reason tells why a cycle was started
type Reason string

const (
	ReasonReconnect Reason = "reconnect"
	ReasonInterval  Reason = "interval"
	ReasonManual    Reason = "manual"
	ReasonMutation  Reason = "mutation"
)

const (
	DefaultBatchSize = 10
	DefaultRetention = 7 * 24 * time.Hour
)

// Config holds orchestrator settings
type Config struct {
	// EntityTypes limits which pulled types are applied; empty means all
	EntityTypes []models.EntityType
	// BatchSize is the number of operations per push request
	BatchSize int
	// Retention is how long synced operations are kept before pruning
	Retention time.Duration
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Retention <= 0 {
		c.Retention = DefaultRetention
	}
	if len(c.EntityTypes) == 0 {
		c.EntityTypes = models.AllEntityTypes()
	}
	return c
}

// Deps are the collaborators of an Engine
type Deps struct {
	Transport  Transport
	Queue      *queue.Queue
	Resolver   *conflict.Resolver
	Entities   storage.EntityStorage
	Checkpoint storage.CheckpointStorage
	Rejections storage.RejectionStorage
	Clock      *clock.Clock
	Logger     *slog.Logger
}

// Result summarises one cycle
type Result struct {
	StartedAt  time.Time
	FinishedAt time.Time
	// Checkpoint is the checkpoint after the cycle
	Checkpoint time.Time
	// PushErr is set when the push phase was cut short by a transport failure.
	// Pull still runs in that case.
	PushErr error
	// Err is set when pulling or applying failed; the checkpoint is unchanged
	Err      *SyncError
	Trigger  Reason
	Rejected []*RejectionError

	Pushed   int
	Accepted int
	// Superseded counts pending operations found already reflected on the
	// server after an out-of-order refusal; they are marked synced
	Superseded        int
	Held              int
	Pulled            int
	Applied           int
	Deleted           int
	ConflictsDetected int
	Pruned            int

	// Skipped is true when another cycle was already running
	Skipped bool
}

// Status is the host-facing view of the orchestrator
type Status struct {
	LastSyncTime          time.Time `json:"lastSyncTime"`
	Checkpoint            time.Time `json:"checkpoint"`
	State                 State     `json:"state"`
	LastError             string    `json:"lastError,omitempty"`
	PendingOperationCount int       `json:"pendingOperationCount"`
	PendingConflicts      int       `json:"pendingConflicts"`
	RejectedOperations    int       `json:"rejectedOperations"`
	IsOnline              bool      `json:"isOnline"`
	IsSyncing             bool      `json:"isSyncing"`
}

// Engine runs sync cycles. At most one cycle runs at a time.
type Engine struct {
	lastSync    time.Time
	deps        Deps
	lastErr     error
	subscribers map[int]func(Status)
	cfg         Config
	state       State
	nextSubID   int
	mu          sync.RWMutex
	running     atomic.Bool
	online      atomic.Bool
}

// NewEngine creates an engine. The engine starts Idle and online.
func NewEngine(deps Deps, cfg Config) *Engine {
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	e := &Engine{
		deps:        deps,
		cfg:         cfg.withDefaults(),
		state:       StateIdle,
		subscribers: make(map[int]func(Status)),
	}
	e.online.Store(true)
	return e
}

// RunCycle performs push, pull and apply. A call made while another cycle is
// running returns immediately with Skipped set.
func (e *Engine) RunCycle(ctx context.Context, reason Reason) *Result {
	started := e.deps.Clock.Now()

	if !e.running.CompareAndSwap(false, true) {
		e.deps.Logger.Debug("sync cycle already running, trigger skipped", "trigger", reason)
		return &Result{Trigger: reason, StartedAt: started, FinishedAt: started, Skipped: true}
	}

	res := &Result{Trigger: reason, StartedAt: started}
	e.deps.Logger.Info("sync cycle started", "trigger", reason)

	defer func() {
		res.FinishedAt = e.deps.Clock.Now()
		e.finish(ctx, res)
	}()

	e.setState(ctx, StatePushing)
	if err := e.push(ctx, res); err != nil {
		res.PushErr = err
		e.deps.Logger.Warn("push aborted", "error", err)
	}

	checkpoint, err := e.deps.Checkpoint.GetCheckpoint(ctx)
	if err != nil {
		res.Err = &SyncError{Phase: PhasePulling, Err: storage.NewStorageError("get checkpoint", err)}
		return res
	}
	res.Checkpoint = checkpoint

	since, err := e.pullFrom(ctx, checkpoint)
	if err != nil {
		res.Err = &SyncError{Phase: PhasePulling, Err: err}
		return res
	}

	e.setState(ctx, StatePulling)
	pulled, err := e.pull(ctx, since)
	if err != nil {
		res.Err = &SyncError{Phase: PhasePulling, Err: err}
		return res
	}

	e.setState(ctx, StateApplying)
	if err := e.apply(ctx, pulled, res); err != nil {
		res.Err = &SyncError{Phase: PhaseApplying, Err: err}
		return res
	}

	if err := e.deps.Checkpoint.SaveCheckpoint(ctx, pulled.AsOf); err != nil {
		res.Err = &SyncError{Phase: PhaseApplying, Err: storage.NewStorageError("save checkpoint", err)}
		return res
	}
	res.Checkpoint = pulled.AsOf
	if err := e.deps.Checkpoint.SaveScope(ctx, e.cfg.EntityTypes); err != nil {
		e.deps.Logger.Warn("failed to save entity scope", "error", err)
	}

	// Чистка очереди не влияет на успех цикла
	pruned, err := e.deps.Queue.Prune(ctx, e.deps.Clock.Now().Add(-e.cfg.Retention))
	if err != nil {
		e.deps.Logger.Warn("failed to prune queue", "error", err)
	}
	res.Pruned = pruned

	return res
}

// pullFrom returns the cursor for the pull. Records of types outside the
// scope are skipped while the checkpoint still moves past them, so when the
// scope gains a type that the checkpoint did not cover, the pull starts over.
// Applying a pull again is harmless.
func (e *Engine) pullFrom(ctx context.Context, checkpoint time.Time) (time.Time, error) {
	if checkpoint.IsZero() {
		return checkpoint, nil
	}

	scope, err := e.deps.Checkpoint.GetScope(ctx)
	if err != nil {
		return time.Time{}, storage.NewStorageError("get scope", err)
	}
	for _, t := range e.cfg.EntityTypes {
		if !slices.Contains(scope, t) {
			e.deps.Logger.Info("entity scope widened, pulling from the beginning", "entity_type", t)
			return time.Time{}, nil
		}
	}
	return checkpoint, nil
}

// finish records the outcome, releases the single-flight guard and returns
// the engine to Idle
func (e *Engine) finish(ctx context.Context, res *Result) {
	var cycleErr error
	switch {
	case res.Err != nil:
		cycleErr = res.Err
	case res.PushErr != nil:
		cycleErr = &SyncError{Phase: PhasePushing, Err: res.PushErr}
	}

	if mark := e.deps.Clock.Last(); !mark.IsZero() {
		if err := e.deps.Checkpoint.SaveClockMark(ctx, mark); err != nil {
			e.deps.Logger.Warn("failed to save clock mark", "error", err)
		}
	}

	e.mu.Lock()
	e.lastErr = cycleErr
	if res.Err == nil {
		e.lastSync = res.FinishedAt
	}
	e.state = StateIdle
	e.mu.Unlock()
	// Флаг снимается до уведомления, чтобы Idle приходил с IsSyncing=false
	e.running.Store(false)

	logger := e.deps.Logger.With(
		"trigger", res.Trigger,
		"pushed", res.Pushed,
		"accepted", res.Accepted,
		"superseded", res.Superseded,
		"rejected", len(res.Rejected),
		"held", res.Held,
		"pulled", res.Pulled,
		"applied", res.Applied,
		"deleted", res.Deleted,
		"conflicts", res.ConflictsDetected,
		"duration", res.FinishedAt.Sub(res.StartedAt))
	if cycleErr != nil {
		logger.Error("sync cycle failed", "error", cycleErr)
	} else {
		logger.Info("sync cycle completed")
	}

	e.notify(ctx)
}

// Trigger starts a cycle in the background and returns a channel that
// receives its result. The cycle is not cancelled with ctx.
func (e *Engine) Trigger(ctx context.Context, reason Reason) <-chan *Result {
	ch := make(chan *Result, 1)
	cycleCtx := context.WithoutCancel(ctx)

	go func() {
		defer close(ch)
		ch <- e.RunCycle(cycleCtx, reason)
	}()

	return ch
}

// SetOnline updates the connectivity flag reported in Status
func (e *Engine) SetOnline(ctx context.Context, online bool) {
	if e.online.Swap(online) != online {
		e.notify(ctx)
	}
}

// IsSyncing reports whether a cycle is running
func (e *Engine) IsSyncing() bool {
	return e.running.Load()
}

// Status returns a snapshot of the orchestrator state.
// Counters are read from storage; read failures are logged and reported as zero.
func (e *Engine) Status(ctx context.Context) Status {
	e.mu.RLock()
	st := Status{
		State:        e.state,
		LastSyncTime: e.lastSync,
		IsOnline:     e.online.Load(),
		IsSyncing:    e.running.Load(),
	}
	if e.lastErr != nil {
		st.LastError = e.lastErr.Error()
	}
	e.mu.RUnlock()

	var err error
	if st.PendingOperationCount, err = e.deps.Queue.Count(ctx); err != nil {
		e.deps.Logger.Warn("failed to count pending operations", "error", err)
	}
	if conflicts, err := e.deps.Resolver.PendingConflicts(ctx); err != nil {
		e.deps.Logger.Warn("failed to list conflicts", "error", err)
	} else {
		st.PendingConflicts = len(conflicts)
	}
	if rejections, err := e.deps.Rejections.ListRejections(ctx); err != nil {
		e.deps.Logger.Warn("failed to list rejections", "error", err)
	} else {
		st.RejectedOperations = len(rejections)
	}
	if st.Checkpoint, err = e.deps.Checkpoint.GetCheckpoint(ctx); err != nil {
		e.deps.Logger.Warn("failed to read checkpoint", "error", err)
	}

	return st
}

// Subscribe registers fn to receive a Status after every state transition.
// fn runs on the cycle goroutine and must not block. The returned function
// removes the subscription.
func (e *Engine) Subscribe(fn func(Status)) func() {
	e.mu.Lock()
	id := e.nextSubID
	e.nextSubID++
	e.subscribers[id] = fn
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.subscribers, id)
			e.mu.Unlock()
		})
	}
}

func (e *Engine) setState(ctx context.Context, state State) {
	e.mu.Lock()
	e.state = state
	e.mu.Unlock()
	e.notify(ctx)
}

func (e *Engine) notify(ctx context.Context) {
	e.mu.RLock()
	if len(e.subscribers) == 0 {
		e.mu.RUnlock()
		return
	}
	subs := make([]func(Status), 0, len(e.subscribers))
	for _, fn := range e.subscribers {
		subs = append(subs, fn)
	}
	e.mu.RUnlock()

	st := e.Status(ctx)
	for _, fn := range subs {
		fn(st)
	}
}

// PendingConflicts lists unresolved conflicts
func (e *Engine) PendingConflicts(ctx context.Context) ([]*models.ConflictRecord, error) {
	return e.deps.Resolver.PendingConflicts(ctx)
}

// Resolve resolves a conflict. Operations held back by the conflict are
// pushed on the next cycle.
func (e *Engine) Resolve(ctx context.Context, entityType models.EntityType, entityID string, strategy models.ResolutionStrategy, merged models.Entity) (*conflict.Outcome, error) {
	unlock := e.deps.Queue.LockEntity(entityType, entityID)
	outcome, err := e.deps.Resolver.Resolve(ctx, entityType, entityID, strategy, merged)
	unlock()
	if err != nil {
		return nil, err
	}

	if outcome.Dropped > 0 || outcome.Operation != nil {
		e.clearRejections(ctx, entityType, entityID)
	}
	e.notify(ctx)

	return outcome, nil
}

// clearRejections forgets rejections of operations that are no longer pending
func (e *Engine) clearRejections(ctx context.Context, entityType models.EntityType, entityID string) {
	rejections, err := e.deps.Rejections.ListRejections(ctx)
	if err != nil {
		e.deps.Logger.Warn("failed to list rejections", "error", err)
		return
	}

	var stale []string
	for _, r := range rejections {
		if r.EntityType != entityType || r.EntityID != entityID {
			continue
		}
		if _, err := e.deps.Queue.Get(ctx, r.OperationID); errors.Is(err, storage.ErrOperationNotFound) {
			stale = append(stale, r.OperationID)
		}
	}

	if err := e.deps.Rejections.DeleteRejections(ctx, stale); err != nil {
		e.deps.Logger.Warn("failed to clear rejections", "error", err)
	}
}
