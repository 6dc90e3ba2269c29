package boltdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/shelfsync/internal/client/storage"
)

func TestStorage_SaveGetDeleteAuth(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	auth := &storage.AuthData{
		Username:    "testuser",
		UserID:      "user-id-123",
		AccessToken: "access-token",
		ExpiresAt:   time.Now().Add(time.Hour).Unix(),
	}

	// GetAuth до сохранения выдаст ErrAuthNotFound
	_, err := store.GetAuth(ctx)
	assert.ErrorIs(t, err, storage.ErrAuthNotFound)

	require.NoError(t, store.SaveAuth(ctx, auth))

	got, err := store.GetAuth(ctx)
	require.NoError(t, err)
	assert.Equal(t, auth, got)

	token, err := store.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-token", token)

	// Просроченный токен
	auth.ExpiresAt = time.Now().Add(-time.Hour).Unix()
	require.NoError(t, store.SaveAuth(ctx, auth))
	_, err = store.AccessToken(ctx)
	assert.Error(t, err)

	require.NoError(t, store.DeleteAuth(ctx))
	_, err = store.GetAuth(ctx)
	assert.ErrorIs(t, err, storage.ErrAuthNotFound)

	// Повторный logout
	err = store.DeleteAuth(ctx)
	assert.ErrorIs(t, err, storage.ErrAuthNotFound)

	_, err = store.AccessToken(ctx)
	assert.ErrorIs(t, err, storage.ErrAuthNotFound)
}
