/*
locker.go - Keyed exclusive locks for coordinates and holds

PURPOSE:
  Mutating operations are serialized per resource, not globally:
  - record mutations lock the target coordinate key
  - hold transitions lock the hold key
  - the expiration sweep TryLocks hold keys and skips what it can't get,
    so parallel sweeps never block each other or user-facing transitions

  Multi-key operations (Realize locks the forecast and the physical
  coordinate) acquire keys in sorted order so two of them can never
  deadlock against each other.

NOTE:
  The lock table grows with the set of keys ever locked and is never
  compacted. Keys are coordinates and hold IDs; for this engine's
  working sets that is bounded and cheap.
*/
package stock

import (
	"sort"
	"sync"
)

type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedLocks) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	return m
}

// Lock acquires the exclusive lock for key, blocking until available.
func (k *keyedLocks) Lock(key string) { k.get(key).Lock() }

// Unlock releases the exclusive lock for key.
func (k *keyedLocks) Unlock(key string) { k.get(key).Unlock() }

// TryLock acquires the lock only if it is free. The sweep uses this as
// its lock-and-skip discipline.
func (k *keyedLocks) TryLock(key string) bool { return k.get(key).TryLock() }

// LockAll acquires several keys in sorted order and returns the unlock
// function. Duplicate keys are collapsed.
func (k *keyedLocks) LockAll(keys ...string) func() {
	uniq := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		if !seen[key] {
			seen[key] = true
			uniq = append(uniq, key)
		}
	}
	sort.Strings(uniq)

	for _, key := range uniq {
		k.Lock(key)
	}
	return func() {
		for i := len(uniq) - 1; i >= 0; i-- {
			k.Unlock(uniq[i])
		}
	}
}

// Lock key namespaces. Coordinates and hold IDs live in disjoint
// namespaces so a hold ID can never collide with a coordinate key.
func coordLockKey(c Coordinate) string { return "quant|" + c.Key() }
func holdLockKey(id string) string     { return "hold|" + id }
