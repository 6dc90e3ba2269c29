package boltdb

import (
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/shelfsync/internal/client/storage"
	"github.com/iudanet/shelfsync/internal/models"
)

var (
	// BoltDB bucket names
	bucketAuth       = []byte("auth")
	bucketMetadata   = []byte("metadata")
	bucketEntities   = []byte("entities")
	bucketQueue      = []byte("queue")
	bucketQueueIndex = []byte("queue_index")
	bucketConflicts  = []byte("conflicts")
	bucketRejections = []byte("rejections")
)

// openTimeout bounds waiting for the file lock held by another process
// (for example a sync cycle of the daemon).
const openTimeout = 30 * time.Second

// Storage represents BoltDB storage implementation for client.
// It implements every client storage interface.
type Storage struct {
	db *bbolt.DB
}

var (
	_ storage.EntityStorage     = (*Storage)(nil)
	_ storage.QueueStorage      = (*Storage)(nil)
	_ storage.RejectionStorage  = (*Storage)(nil)
	_ storage.ConflictStorage   = (*Storage)(nil)
	_ storage.CheckpointStorage = (*Storage)(nil)
	_ storage.AuthStorage       = (*Storage)(nil)
)

// New creates a new BoltDB storage instance
// dbPath is the path to the BoltDB database file
func New(ctx context.Context, dbPath string) (*Storage, error) {
	// Открываем BoltDB
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	s := &Storage{db: db}

	// Инициализируем buckets
	if err := s.initBuckets(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// initBuckets создает необходимые buckets если они не существуют
func (s *Storage) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{
			bucketAuth,
			bucketMetadata,
			bucketQueue,
			bucketQueueIndex,
			bucketConflicts,
			bucketRejections,
		} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, err)
			}
		}

		// Для каждого типа сущностей отдельный вложенный bucket
		entities, err := tx.CreateBucketIfNotExists(bucketEntities)
		if err != nil {
			return fmt.Errorf("failed to create entities bucket: %w", err)
		}
		for _, et := range models.AllEntityTypes() {
			if _, err := entities.CreateBucketIfNotExists([]byte(et)); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", et, err)
			}
		}

		return nil
	})
}

// view and update guard against use after Close.
func (s *Storage) view(fn func(tx *bbolt.Tx) error) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}
	return s.db.View(fn)
}

func (s *Storage) update(fn func(tx *bbolt.Tx) error) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}
	return s.db.Update(fn)
}

func bucketNotFound(name []byte) error {
	return fmt.Errorf("%s bucket not found", name)
}
