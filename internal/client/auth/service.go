// Package auth manages the client session: registration, login and the
// access token kept in the local store.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/shelfsync/internal/client/storage"
	"github.com/iudanet/shelfsync/internal/validation"
	"github.com/iudanet/shelfsync/pkg/api"
)

//go:generate moq -out api_mock.go . API

// ErrNotLoggedIn is returned when no session is stored
var ErrNotLoggedIn = errors.New("not logged in, run 'shelfsync login' first")

// API is the part of the server API used for authentication
type API interface {
	Register(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error)
	Login(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error)
}

// Service предоставляет функции авторизации
type Service struct {
	api   API
	store storage.AuthStorage
	now   func() time.Time
}

// NewService создает новый сервис авторизации
func NewService(api API, store storage.AuthStorage) *Service {
	return &Service{
		api:   api,
		store: store,
		now:   time.Now,
	}
}

// Register регистрирует нового пользователя и возвращает его ID.
// Registration does not log in.
func (s *Service) Register(ctx context.Context, username, password string) (string, error) {
	if err := validation.ValidateUsername(username); err != nil {
		return "", err
	}
	if err := validation.ValidatePassword(password); err != nil {
		return "", err
	}

	resp, err := s.api.Register(ctx, api.RegisterRequest{Username: username, Password: password})
	if err != nil {
		return "", fmt.Errorf("registration failed: %w", err)
	}

	return resp.UserID, nil
}

// Login выполняет аутентификацию и сохраняет токен локально
func (s *Service) Login(ctx context.Context, username, password string) (*storage.AuthData, error) {
	if err := validation.ValidateUsername(username); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password cannot be empty", validation.ErrInvalidPassword)
	}

	resp, err := s.api.Login(ctx, api.LoginRequest{Username: username, Password: password})
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	authData := &storage.AuthData{
		Username:    username,
		UserID:      resp.UserID,
		AccessToken: resp.AccessToken,
	}
	if resp.ExpiresIn > 0 {
		authData.ExpiresAt = s.now().Add(time.Duration(resp.ExpiresIn) * time.Second).Unix()
	}

	if err := s.store.SaveAuth(ctx, authData); err != nil {
		return nil, storage.NewStorageError("save auth", err)
	}

	return authData, nil
}

// Logout удаляет локальную сессию. Local sync state is kept.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.store.DeleteAuth(ctx); err != nil {
		if errors.Is(err, storage.ErrAuthNotFound) {
			return ErrNotLoggedIn
		}
		return storage.NewStorageError("delete auth", err)
	}
	return nil
}

// Session describes the stored login
type Session struct {
	ExpiresAt time.Time
	Username  string
	UserID    string
	Expired   bool
}

// Current returns the stored session
func (s *Service) Current(ctx context.Context) (*Session, error) {
	authData, err := s.store.GetAuth(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrAuthNotFound) {
			return nil, ErrNotLoggedIn
		}
		return nil, storage.NewStorageError("get auth", err)
	}

	session := &Session{Username: authData.Username, UserID: authData.UserID}
	if authData.ExpiresAt > 0 {
		session.ExpiresAt = time.Unix(authData.ExpiresAt, 0)
		session.Expired = !s.now().Before(session.ExpiresAt)
	}
	return session, nil
}
