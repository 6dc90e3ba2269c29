// Package data is the write path for local library records: every mutation
// is written to the local store, recorded in the mutation queue and, when a
// notifier is set, followed by a sync request.
package data

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/iudanet/shelfsync/internal/client/queue"
	"github.com/iudanet/shelfsync/internal/client/storage"
	clientsync "github.com/iudanet/shelfsync/internal/client/sync"
	"github.com/iudanet/shelfsync/internal/models"
)

// ErrEntityExists is returned when creating an entity whose ID is taken
var ErrEntityExists = errors.New("entity already exists")

// SyncRequester asks for a sync cycle after a mutation; implemented by monitor.Monitor
type SyncRequester interface {
	RequestSync(ctx context.Context) <-chan *clientsync.Result
}

// Service определяет интерфейс для клиентского data сервиса
type Service interface {
	Create(ctx context.Context, entity models.Entity) (*models.SyncOperation, error)
	Update(ctx context.Context, entity models.Entity) (*models.SyncOperation, error)
	Delete(ctx context.Context, entityType models.EntityType, id string) (*models.SyncOperation, error)
	Get(ctx context.Context, entityType models.EntityType, id string) (models.Entity, error)
	List(ctx context.Context, entityType models.EntityType) ([]models.Entity, error)
}

// service handles client-side data operations
type service struct {
	entities storage.EntityStorage
	queue    *queue.Queue
	notifier SyncRequester
	logger   *slog.Logger
}

// NewService creates a new data service. notifier may be nil (CLI one-shot mode).
func NewService(entities storage.EntityStorage, q *queue.Queue, notifier SyncRequester, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &service{
		entities: entities,
		queue:    q,
		notifier: notifier,
		logger:   logger,
	}
}

// assignID генерирует ID если не задан
func assignID(entity models.Entity) {
	if entity.EntityID() != "" {
		return
	}
	id := uuid.New().String()
	switch e := entity.(type) {
	case *models.Book:
		e.ID = id
	case *models.Rating:
		e.ID = id
	case *models.Tag:
		e.ID = id
	case *models.Collection:
		e.ID = id
	case *models.ReadingLog:
		e.ID = id
	}
}

// Create adds a new entity locally and queues it for the server
func (s *service) Create(ctx context.Context, entity models.Entity) (*models.SyncOperation, error) {
	if entity == nil {
		return nil, fmt.Errorf("%w: entity is nil", models.ErrInvalidOperation)
	}
	assignID(entity)

	if err := models.ValidateEntity(entity); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrInvalidOperation, err)
	}

	op, err := s.locked(entity.EntityType(), entity.EntityID(), func() (*models.SyncOperation, error) {
		_, err := s.entities.GetEntity(ctx, entity.EntityType(), entity.EntityID())
		switch {
		case err == nil:
			return nil, fmt.Errorf("%w: %s", ErrEntityExists, models.EntityKey(entity.EntityType(), entity.EntityID()))
		case !errors.Is(err, storage.ErrEntityNotFound):
			return nil, storage.NewStorageError("get entity", err)
		}
		return s.write(ctx, models.OpCreate, entity)
	})
	if err != nil {
		return nil, err
	}

	s.requestSync(ctx)
	return op, nil
}

// Update replaces an existing entity
func (s *service) Update(ctx context.Context, entity models.Entity) (*models.SyncOperation, error) {
	if entity == nil || entity.EntityID() == "" {
		return nil, fmt.Errorf("%w: entity id is required", models.ErrInvalidOperation)
	}
	if err := models.ValidateEntity(entity); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrInvalidOperation, err)
	}

	op, err := s.locked(entity.EntityType(), entity.EntityID(), func() (*models.SyncOperation, error) {
		if _, err := s.entities.GetEntity(ctx, entity.EntityType(), entity.EntityID()); err != nil {
			if errors.Is(err, storage.ErrEntityNotFound) {
				return nil, err
			}
			return nil, storage.NewStorageError("get entity", err)
		}
		return s.write(ctx, models.OpUpdate, entity)
	})
	if err != nil {
		return nil, err
	}

	s.requestSync(ctx)
	return op, nil
}

// Delete removes an entity locally and queues the deletion
func (s *service) Delete(ctx context.Context, entityType models.EntityType, id string) (*models.SyncOperation, error) {
	op, err := s.locked(entityType, id, func() (*models.SyncOperation, error) {
		if _, err := s.entities.GetEntity(ctx, entityType, id); err != nil {
			if errors.Is(err, storage.ErrEntityNotFound) || errors.Is(err, models.ErrUnknownEntityType) {
				return nil, err
			}
			return nil, storage.NewStorageError("get entity", err)
		}

		if err := s.entities.DeleteEntity(ctx, entityType, id); err != nil {
			return nil, storage.NewStorageError("delete entity", err)
		}
		return s.queue.Enqueue(ctx, models.OpDelete, entityType, id, nil)
	})
	if err != nil {
		return nil, err
	}

	s.requestSync(ctx)
	return op, nil
}

// locked runs fn under the entity lock shared with the sync engine, so a
// pulled record cannot land between the local write and its enqueue
func (s *service) locked(entityType models.EntityType, id string, fn func() (*models.SyncOperation, error)) (*models.SyncOperation, error) {
	unlock := s.queue.LockEntity(entityType, id)
	defer unlock()
	return fn()
}

// write сохраняет запись локально, затем ставит операцию в очередь
func (s *service) write(ctx context.Context, kind models.OperationKind, entity models.Entity) (*models.SyncOperation, error) {
	if err := s.entities.SaveEntity(ctx, entity); err != nil {
		return nil, storage.NewStorageError("save entity", err)
	}
	return s.queue.Enqueue(ctx, kind, entity.EntityType(), entity.EntityID(), entity)
}

func (s *service) requestSync(ctx context.Context) {
	if s.notifier == nil {
		return
	}
	// Результат не ждём: запись уже надёжно сохранена
	_ = s.notifier.RequestSync(ctx)
}

// Get returns an entity from the local store
func (s *service) Get(ctx context.Context, entityType models.EntityType, id string) (models.Entity, error) {
	entity, err := s.entities.GetEntity(ctx, entityType, id)
	if err != nil {
		if errors.Is(err, storage.ErrEntityNotFound) || errors.Is(err, models.ErrUnknownEntityType) {
			return nil, err
		}
		return nil, storage.NewStorageError("get entity", err)
	}
	return entity, nil
}

// List returns all local entities of a type
func (s *service) List(ctx context.Context, entityType models.EntityType) ([]models.Entity, error) {
	list, err := s.entities.ListEntities(ctx, entityType)
	if err != nil {
		if errors.Is(err, models.ErrUnknownEntityType) {
			return nil, err
		}
		return nil, storage.NewStorageError("list entities", err)
	}
	return list, nil
}
