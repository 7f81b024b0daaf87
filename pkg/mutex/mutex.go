package mutex

import (
	"sync"
	"time"
)

// KeyedMutex hands out one mutex per key. The reconciler locks on the author
// address so that entries sharing an author trigger a single balance lookup.
type KeyedMutex struct {
	mutexes    map[string]*mutexEntry
	mapMutex   sync.Mutex
	cleanupTTL time.Duration
	stopCh     chan struct{}
	stopOnce   sync.Once
}

type mutexEntry struct {
	mutex      sync.Mutex
	lastAccess time.Time
	holders    int
}

// New creates a KeyedMutex that forgets keys idle for longer than cleanupTTL
func New(cleanupTTL time.Duration) *KeyedMutex {
	km := &KeyedMutex{
		mutexes:    make(map[string]*mutexEntry),
		cleanupTTL: cleanupTTL,
		stopCh:     make(chan struct{}),
	}

	if cleanupTTL > 0 {
		go km.cleanup()
	}

	return km
}

// Lock acquires the mutex for key and returns its unlock function.
// contended reports whether another holder had to be waited on.
func (km *KeyedMutex) Lock(key string) (unlock func(), contended bool) {
	km.mapMutex.Lock()
	e, ok := km.mutexes[key]
	if !ok {
		e = &mutexEntry{}
		km.mutexes[key] = e
	}
	e.holders++
	e.lastAccess = time.Now()
	km.mapMutex.Unlock()

	contended = !e.mutex.TryLock()
	if contended {
		e.mutex.Lock()
	}

	return func() {
		e.mutex.Unlock()
		km.mapMutex.Lock()
		e.holders--
		e.lastAccess = time.Now()
		km.mapMutex.Unlock()
	}, contended
}

// Size returns the number of keys currently tracked
func (km *KeyedMutex) Size() int {
	km.mapMutex.Lock()
	defer km.mapMutex.Unlock()
	return len(km.mutexes)
}

func (km *KeyedMutex) cleanup() {
	ticker := time.NewTicker(km.cleanupTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			km.removeIdle(time.Now())
		case <-km.stopCh:
			return
		}
	}
}

// removeIdle drops keys with no holders that have not been used recently
func (km *KeyedMutex) removeIdle(now time.Time) {
	km.mapMutex.Lock()
	defer km.mapMutex.Unlock()

	for key, e := range km.mutexes {
		if e.holders == 0 && now.Sub(e.lastAccess) > km.cleanupTTL {
			delete(km.mutexes, key)
		}
	}
}

// Stop stops the cleanup goroutine
func (km *KeyedMutex) Stop() {
	km.stopOnce.Do(func() { close(km.stopCh) })
}
