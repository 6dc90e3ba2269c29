package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clientsync "github.com/iudanet/shelfsync/internal/client/sync"
)

// newCycler возвращает mock, сразу отдающий результат
func newCycler() *CyclerMock {
	return &CyclerMock{
		SetOnlineFunc: func(context.Context, bool) {},
		TriggerFunc: func(_ context.Context, reason clientsync.Reason) <-chan *clientsync.Result {
			ch := make(chan *clientsync.Result, 1)
			ch <- &clientsync.Result{Trigger: reason}
			close(ch)
			return ch
		},
	}
}

func reasons(c *CyclerMock) []clientsync.Reason {
	var out []clientsync.Reason
	for _, call := range c.TriggerCalls() {
		out = append(out, call.Reason)
	}
	return out
}

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestMonitor_ReconnectTriggersCycle(t *testing.T) {
	ctx := context.Background()
	cycler := newCycler()
	m := New(nil, cycler, Config{}, quietLogger())

	assert.False(t, m.IsOnline())

	var transitions []bool
	unsubscribe := m.Subscribe(func(online bool) { transitions = append(transitions, online) })
	defer unsubscribe()

	m.Report(ctx, true)
	assert.True(t, m.IsOnline())
	assert.Equal(t, []clientsync.Reason{clientsync.ReasonReconnect}, reasons(cycler))

	// Повторное online без перехода не запускает цикл
	m.Report(ctx, true)
	assert.Len(t, cycler.TriggerCalls(), 1)

	m.Report(ctx, false)
	assert.False(t, m.IsOnline())
	assert.Len(t, cycler.TriggerCalls(), 1)

	m.Report(ctx, true)
	assert.Len(t, cycler.TriggerCalls(), 2)

	assert.Equal(t, []bool{true, false, true}, transitions)

	setOnline := cycler.SetOnlineCalls()
	require.Len(t, setOnline, 3)
	assert.False(t, setOnline[1].Online)
}

func TestMonitor_RequestSync(t *testing.T) {
	ctx := context.Background()
	cycler := newCycler()
	m := New(nil, cycler, Config{}, quietLogger())

	// Офлайн: запрос не уходит
	assert.Nil(t, m.RequestSync(ctx))
	assert.Empty(t, cycler.TriggerCalls())

	m.Report(ctx, true)
	done := m.RequestSync(ctx)
	require.NotNil(t, done)

	select {
	case res := <-done:
		require.NotNil(t, res)
		assert.Equal(t, clientsync.ReasonMutation, res.Trigger)
	case <-time.After(time.Second):
		t.Fatal("sync result not delivered")
	}
}

func TestMonitor_RunProbesAndTicks(t *testing.T) {
	var reachable atomic.Bool
	prober := &ProberMock{
		ProbeFunc: func(ctx context.Context) error {
			_, hasDeadline := ctx.Deadline()
			if !hasDeadline {
				return errors.New("probe without timeout")
			}
			if reachable.Load() {
				return nil
			}
			return errors.New("dial tcp: connection refused")
		},
	}

	var mu sync.Mutex
	var got []clientsync.Reason
	cycler := newCycler()
	trigger := cycler.TriggerFunc
	cycler.TriggerFunc = func(ctx context.Context, reason clientsync.Reason) <-chan *clientsync.Result {
		mu.Lock()
		got = append(got, reason)
		mu.Unlock()
		return trigger(ctx, reason)
	}

	m := New(prober, cycler, Config{
		Interval:      20 * time.Millisecond,
		ProbeInterval: 5 * time.Millisecond,
		ProbeTimeout:  time.Second,
	}, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- m.Run(ctx) }()

	// Пока сервер недоступен, циклов нет
	time.Sleep(50 * time.Millisecond)
	assert.False(t, m.IsOnline())
	mu.Lock()
	assert.Empty(t, got)
	mu.Unlock()

	reachable.Store(true)
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) >= 3
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, clientsync.ReasonReconnect, got[0])
	assert.Contains(t, got[1:], clientsync.ReasonInterval)
	mu.Unlock()

	cancel()
	select {
	case err := <-stopped:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop")
	}
}

func TestMonitor_Defaults(t *testing.T) {
	m := New(nil, newCycler(), Config{}, nil)
	assert.Equal(t, DefaultInterval, m.cfg.Interval)
	assert.Equal(t, DefaultProbeInterval, m.cfg.ProbeInterval)
	assert.Equal(t, DefaultProbeTimeout, m.cfg.ProbeTimeout)
}
