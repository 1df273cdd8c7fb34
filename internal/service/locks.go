package service

import (
	"sync"

	"github.com/google/uuid"
)

// lockArena hands out one mutex per session ID so that answer submission,
// fraud event recording and submission for the same session serialize inside
// a single process. The database's conditional terminal update remains the
// backstop across processes.
type lockArena struct {
	mu sync.Map // uuid.UUID -> *sync.Mutex
}

func (a *lockArena) lock(id uuid.UUID) *sync.Mutex {
	v, _ := a.mu.LoadOrStore(id, &sync.Mutex{})
	m := v.(*sync.Mutex)
	m.Lock()
	return m
}

// release drops the arena entry once the session reached a terminal state;
// terminal sessions never take the lock again.
func (a *lockArena) release(id uuid.UUID) {
	a.mu.Delete(id)
}
