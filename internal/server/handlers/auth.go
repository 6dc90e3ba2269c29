package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/iudanet/shelfsync/internal/models"
	"github.com/iudanet/shelfsync/internal/server/storage"
	"github.com/iudanet/shelfsync/internal/validation"
	"github.com/iudanet/shelfsync/pkg/api"
)

// dummyHash сравнивается при неизвестном username, чтобы время ответа не выдавало наличие пользователя
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("shelfsync-dummy-password"), bcrypt.DefaultCost)

// AuthHandler обрабатывает запросы авторизации
type AuthHandler struct {
	logger      *slog.Logger
	userStorage storage.UserStorage
	jwtConfig   JWTConfig
	bcryptCost  int
}

// NewAuthHandler создает новый handler для авторизации
func NewAuthHandler(logger *slog.Logger, userStorage storage.UserStorage, jwtConfig JWTConfig) *AuthHandler {
	return &AuthHandler{
		logger:      logger,
		userStorage: userStorage,
		jwtConfig:   jwtConfig,
		bcryptCost:  bcrypt.DefaultCost,
	}
}

// Register обрабатывает POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode register request", slog.Any("error", err))
		SendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := validation.ValidateUsername(req.Username); err != nil {
		h.logger.WarnContext(ctx, "invalid username", slog.String("username", req.Username), slog.Any("error", err))
		SendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidatePassword(req.Password); err != nil {
		SendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.bcryptCost)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to hash password", slog.Any("error", err))
		SendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Username:     req.Username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}

	if err := h.userStorage.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			h.logger.WarnContext(ctx, "user already exists", slog.String("username", req.Username))
			SendError(h.logger, w, "username already taken", http.StatusConflict)
			return
		}
		h.logger.ErrorContext(ctx, "failed to create user", slog.Any("error", err))
		SendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "user registered",
		slog.String("username", user.Username),
		slog.String("user_id", user.ID))

	SendJSON(h.logger, w, api.RegisterResponse{
		UserID:  user.ID,
		Message: "User registered successfully",
	}, http.StatusCreated)
}

// Login обрабатывает POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode login request", slog.Any("error", err))
		SendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := validation.ValidateUsername(req.Username); err != nil {
		SendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Password == "" {
		SendError(h.logger, w, "password is required", http.StatusBadRequest)
		return
	}

	user, err := h.userStorage.GetUserByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(req.Password))
			h.logger.WarnContext(ctx, "login failed: user not found", slog.String("username", req.Username))
			SendError(h.logger, w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get user", slog.Any("error", err))
		SendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		h.logger.WarnContext(ctx, "login failed: wrong password", slog.String("username", req.Username))
		SendError(h.logger, w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	accessToken, expiresIn, err := GenerateAccessToken(h.jwtConfig, user.ID, user.Username)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to generate access token", slog.Any("error", err))
		SendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	if err := h.userStorage.UpdateLastLogin(ctx, user.ID, time.Now()); err != nil {
		// Не критичная ошибка, логируем но не прерываем
		h.logger.WarnContext(ctx, "failed to update last login", slog.Any("error", err))
	}

	h.logger.InfoContext(ctx, "user logged in",
		slog.String("username", user.Username),
		slog.String("user_id", user.ID))

	SendJSON(h.logger, w, api.TokenResponse{
		AccessToken: accessToken,
		UserID:      user.ID,
		ExpiresIn:   expiresIn,
	}, http.StatusOK)
}
