package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/shelfsync/internal/client/storage"
)

var authKey = []byte("current")

// SaveAuth stores authentication data
func (s *Storage) SaveAuth(ctx context.Context, auth *storage.AuthData) error {
	return s.update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketAuth)
		if bucket == nil {
			return bucketNotFound(bucketAuth)
		}

		// Сериализуем данные в JSON
		data, err := json.Marshal(auth)
		if err != nil {
			return fmt.Errorf("failed to marshal auth data: %w", err)
		}

		if err := bucket.Put(authKey, data); err != nil {
			return fmt.Errorf("failed to save auth data: %w", err)
		}

		return nil
	})
}

// GetAuth retrieves stored authentication data
func (s *Storage) GetAuth(ctx context.Context) (*storage.AuthData, error) {
	var auth *storage.AuthData

	err := s.view(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketAuth)
		if bucket == nil {
			return bucketNotFound(bucketAuth)
		}

		data := bucket.Get(authKey)
		if data == nil {
			return storage.ErrAuthNotFound
		}

		auth = &storage.AuthData{}
		if err := json.Unmarshal(data, auth); err != nil {
			return fmt.Errorf("failed to unmarshal auth data: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return auth, nil
}

// DeleteAuth removes stored authentication data (logout)
func (s *Storage) DeleteAuth(ctx context.Context) error {
	return s.update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketAuth)
		if bucket == nil {
			return bucketNotFound(bucketAuth)
		}

		// Проверяем существование данных
		if bucket.Get(authKey) == nil {
			return storage.ErrAuthNotFound
		}

		if err := bucket.Delete(authKey); err != nil {
			return fmt.Errorf("failed to delete auth data: %w", err)
		}

		return nil
	})
}

// AccessToken returns the stored token if it has not expired.
// The HTTP client uses it as its token source.
func (s *Storage) AccessToken(ctx context.Context) (string, error) {
	auth, err := s.GetAuth(ctx)
	if err != nil {
		return "", err
	}

	if auth.ExpiresAt > 0 && time.Now().Unix() >= auth.ExpiresAt {
		return "", fmt.Errorf("access token expired, please login again")
	}

	return auth.AccessToken, nil
}
