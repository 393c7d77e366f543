package locks

import "sync"

// KeyedMutex provides one mutex per key, used to serialize all mutating
// operations for a single auction while leaving other auctions independent.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{
		locks: make(map[string]*sync.Mutex),
	}
}

// Lock acquires the mutex for the given key and returns its unlock function.
// Entries are kept for the lifetime of the process; the per-auction footprint
// is a single mutex.
func (k *KeyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, exists := k.locks[key]
	if !exists {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
