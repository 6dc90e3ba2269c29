package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/shelfsync/internal/client/storage/boltdb"
	"github.com/iudanet/shelfsync/internal/validation"
	"github.com/iudanet/shelfsync/pkg/api"
)

func newTestService(t *testing.T, mock *APIMock) (*Service, *boltdb.Storage) {
	t.Helper()
	store, err := boltdb.New(context.Background(), filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})

	s := NewService(mock, store)
	now := time.Now().Truncate(time.Second)
	s.now = func() time.Time { return now }
	return s, store
}

func TestService_Register(t *testing.T) {
	mock := &APIMock{
		RegisterFunc: func(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error) {
			return &api.RegisterResponse{UserID: "user-1"}, nil
		},
	}
	s, _ := newTestService(t, mock)

	userID, err := s.Register(context.Background(), "reader", "long-enough")
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
	require.Len(t, mock.RegisterCalls(), 1)
	assert.Equal(t, api.RegisterRequest{Username: "reader", Password: "long-enough"}, mock.RegisterCalls()[0].Req)

	// Невалидный ввод не уходит на сервер
	_, err = s.Register(context.Background(), "r", "long-enough")
	assert.ErrorIs(t, err, validation.ErrInvalidUsername)
	_, err = s.Register(context.Background(), "reader", "short")
	assert.ErrorIs(t, err, validation.ErrInvalidPassword)
	assert.Len(t, mock.RegisterCalls(), 1)
}

func TestService_LoginStoresSession(t *testing.T) {
	mock := &APIMock{
		LoginFunc: func(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error) {
			return &api.TokenResponse{AccessToken: "jwt-token", UserID: "user-1", ExpiresIn: 3600}, nil
		},
	}
	s, store := newTestService(t, mock)
	ctx := context.Background()

	authData, err := s.Login(ctx, "reader", "long-enough")
	require.NoError(t, err)
	assert.Equal(t, "jwt-token", authData.AccessToken)

	token, err := store.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "jwt-token", token)

	session, err := s.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "reader", session.Username)
	assert.Equal(t, "user-1", session.UserID)
	assert.Equal(t, s.now().Add(time.Hour).Unix(), session.ExpiresAt.Unix())
	assert.False(t, session.Expired)
}

func TestService_LoginFailureKeepsNoSession(t *testing.T) {
	mock := &APIMock{
		LoginFunc: func(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error) {
			return nil, errors.New("invalid credentials")
		},
	}
	s, _ := newTestService(t, mock)

	_, err := s.Login(context.Background(), "reader", "wrong-password")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid credentials")

	_, err = s.Current(context.Background())
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestService_Logout(t *testing.T) {
	mock := &APIMock{
		LoginFunc: func(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error) {
			return &api.TokenResponse{AccessToken: "jwt-token", UserID: "user-1"}, nil
		},
	}
	s, _ := newTestService(t, mock)
	ctx := context.Background()

	assert.ErrorIs(t, s.Logout(ctx), ErrNotLoggedIn)

	_, err := s.Login(ctx, "reader", "long-enough")
	require.NoError(t, err)
	require.NoError(t, s.Logout(ctx))

	_, err = s.Current(ctx)
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}
