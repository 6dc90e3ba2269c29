package app

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/shelfsync/internal/client/storage/boltdb"
	clientsync "github.com/iudanet/shelfsync/internal/client/sync"
	"github.com/iudanet/shelfsync/internal/config"
	"github.com/iudanet/shelfsync/internal/logging"
	"github.com/iudanet/shelfsync/internal/models"
)

func testConfig(t *testing.T) *config.ClientConfig {
	t.Helper()
	return &config.ClientConfig{
		Log:            logging.Config{Level: "debug", Format: "text"},
		ServerURL:      "http://127.0.0.1:1",
		DBPath:         filepath.Join(t.TempDir(), "nested", "client.db"),
		RequestTimeout: time.Second,
		Sync: config.SyncConfig{
			EntityTypes:   []string{"book"},
			Interval:      time.Minute,
			ProbeInterval: time.Minute,
			ProbeTimeout:  time.Second,
			Retention:     time.Hour,
			BatchSize:     5,
		},
	}
}

func TestNew_WiresComponents(t *testing.T) {
	ctx := context.Background()
	var logs bytes.Buffer

	a, err := New(ctx, testConfig(t), &logs)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })

	// Запись через data сервис попадает в очередь, монитор офлайн и не запускает цикл
	op, err := a.Data.Create(ctx, &models.Book{Title: "Dune"})
	require.NoError(t, err)
	assert.False(t, a.Monitor.IsOnline())

	pending, err := a.Queue.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, op.ID, pending[0].ID)

	st := a.Engine.Status(ctx)
	assert.Equal(t, 1, st.PendingOperationCount)
	assert.Contains(t, logs.String(), "component=queue")
}

func TestNew_RejectsUnknownEntityType(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sync.EntityTypes = []string{"magazine"}

	_, err := New(context.Background(), cfg, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestDetached_ReleasesStoreAfterCycle(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	a, err := New(ctx, cfg, &bytes.Buffer{})
	require.NoError(t, err)
	_, err = a.Data.Create(ctx, &models.Book{ID: "42", Title: "Dune"})
	require.NoError(t, err)
	require.NoError(t, a.ReleaseStore())
	require.NoError(t, a.Close())

	var statuses []clientsync.Status
	d := NewDetached(cfg, slog.New(slog.DiscardHandler), func(st clientsync.Status) {
		statuses = append(statuses, st)
	})

	// Сервер недоступен: цикл падает, но хранилище закрыто и очередь цела
	res := <-d.Trigger(ctx, clientsync.ReasonManual)
	require.NotNil(t, res)
	assert.False(t, res.Skipped)
	assert.Error(t, res.PushErr)
	require.Len(t, statuses, 1)
	assert.Equal(t, 1, statuses[0].PendingOperationCount)

	store, err := boltdb.New(ctx, cfg.DBPath)
	require.NoError(t, err)
	count, err := store.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.NoError(t, store.Close())
}
