// Package keymutex provides mutual exclusion scoped to a string key, used to
// serialize check-then-act sequences per principal or per identifier without
// contending across keys.
package keymutex

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// KeyMutex hands out one mutex per key. Entries are released once no caller
// holds or waits on them, so the map does not grow with the key space.
type KeyMutex struct {
	mu    sync.Mutex
	locks map[string]*entry
}

// New returns an empty KeyMutex.
func New() *KeyMutex {
	return &KeyMutex{locks: make(map[string]*entry)}
}

// Lock acquires the mutex for key, blocking until it is available, and
// returns the corresponding unlock function. Callers must invoke the returned
// function exactly once, typically via defer.
func (k *KeyMutex) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &entry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
