package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/shelfsync/internal/models"
	"github.com/iudanet/shelfsync/internal/server/storage"
)

// CreateUser creates a new user in the storage
func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, username, password_hash, created_at, last_login)
		VALUES (?, ?, ?, ?, ?)
	`

	var lastLogin sql.NullInt64
	if user.LastLogin != nil {
		lastLogin = sql.NullInt64{Int64: nanos(*user.LastLogin), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.PasswordHash,
		nanos(user.CreatedAt),
		lastLogin,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// GetUserByUsername retrieves user by username
func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, "username", username)
}

// GetUserByID retrieves user by ID
func (s *Storage) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	return s.getUser(ctx, "id", userID)
}

func (s *Storage) getUser(ctx context.Context, column, value string) (*models.User, error) {
	// column приходит только из кода выше
	query := `
		SELECT id, username, password_hash, created_at, last_login
		FROM users
		WHERE ` + column + ` = ?
	`

	user := &models.User{}
	var createdAt int64
	var lastLogin sql.NullInt64

	err := s.db.QueryRowContext(ctx, query, value).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&createdAt,
		&lastLogin,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.CreatedAt = fromNanos(createdAt)
	if lastLogin.Valid {
		t := fromNanos(lastLogin.Int64)
		user.LastLogin = &t
	}

	return user, nil
}

// UpdateLastLogin updates the last login timestamp
func (s *Storage) UpdateLastLogin(ctx context.Context, userID string, lastLogin time.Time) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET last_login = ? WHERE id = ?`, nanos(lastLogin), userID)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}
