package quota

import (
	"sync"

	"github.com/harshite737-crypto/haste/internal/model"
)

// keyedMutex serialises work per identity. Entries are dropped once no
// goroutine holds or waits on them, so memory tracks in-flight identities only.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[model.Identity]*refLock
}

type refLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[model.Identity]*refLock)}
}

// Lock acquires the lock for id and returns its release func.
func (k *keyedMutex) Lock(id model.Identity) func() {
	k.mu.Lock()
	l, ok := k.locks[id]
	if !ok {
		l = &refLock{}
		k.locks[id] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
