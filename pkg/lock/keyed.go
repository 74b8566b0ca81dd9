// Package lock provides a mutex keyed by UUID so that operations on
// different auction items never contend with each other.
package lock

import (
	"sync"

	"github.com/google/uuid"
)

type entry struct {
	mu   sync.Mutex
	refs int
}

// Keyed hands out one mutex per key. Entries are created on demand and
// removed once the last holder releases, so the map does not grow with
// the number of items ever seen.
type Keyed struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*entry
}

// NewKeyed creates an empty keyed mutex.
func NewKeyed() *Keyed {
	return &Keyed{entries: make(map[uuid.UUID]*entry)}
}

// Lock acquires the mutex for key, blocking until it is available.
// The returned function releases it and must be called exactly once.
func (k *Keyed) Lock(key uuid.UUID) func() {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
