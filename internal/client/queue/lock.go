package queue

import (
	"sync"

	"github.com/iudanet/shelfsync/internal/models"
)

// entityLocks держит по мьютексу на сущность, пока он кому-то нужен
type entityLocks struct {
	locks map[string]*entityLock
	mu    sync.Mutex
}

type entityLock struct {
	mu   sync.Mutex
	refs int
}

func (l *entityLocks) lock(key string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*entityLock)
	}
	el, ok := l.locks[key]
	if !ok {
		el = &entityLock{}
		l.locks[key] = el
	}
	el.refs++
	l.mu.Unlock()

	el.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			el.mu.Unlock()

			l.mu.Lock()
			el.refs--
			if el.refs == 0 {
				delete(l.locks, key)
			}
			l.mu.Unlock()
		})
	}
}

// LockEntity serialises local writes of one entity: a user edit (store write
// plus enqueue) and applying a pulled record (pending check plus store write)
// never interleave. The returned function releases the lock. The lock is not
// reentrant and Queue methods do not take it themselves.
func (q *Queue) LockEntity(entityType models.EntityType, entityID string) func() {
	return q.locks.lock(models.EntityKey(entityType, entityID))
}
