// Package locking provides per-key mutual exclusion.
//
// Ingestion serializes on the mint address, aggregation and rebuild serialize
// on the (mint, period) pair: a rebuild's delete-then-replay spans multiple
// store calls and must not interleave with an incremental merge for the same
// key. Work on different keys proceeds concurrently.
package locking

import "sync"

// entry is one key's lock with a reference count so idle entries can be
// removed from the map.
type entry struct {
	mu   sync.Mutex
	refs int
}

// KeyedMutex provides an independent mutex per string key.
// The zero value is not usable; use NewKeyedMutex.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*entry
}

// NewKeyedMutex creates a new KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*entry)}
}

// Lock acquires the mutex for key, blocking while another holder owns it.
// The returned func releases the lock and must be called exactly once.
func (k *KeyedMutex) Lock(key string) func() {
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
