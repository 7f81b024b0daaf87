package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value  V
	stored time.Time
}

// Cache is a thread-safe map whose entries expire after a fixed TTL.
// The reconciler keeps author balances in it between refreshes.
type Cache[V any] struct {
	data    map[string]entry[V]
	mutex   sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	stopCh  chan struct{}
	stopped sync.Once
}

// New creates a Cache and starts a janitor that sweeps expired entries
// every cleanupInterval. A zero ttl disables caching.
func New[V any](ttl, cleanupInterval time.Duration) *Cache[V] {
	c := &Cache[V]{
		data:   make(map[string]entry[V]),
		ttl:    ttl,
		now:    time.Now,
		stopCh: make(chan struct{}),
	}

	if ttl > 0 && cleanupInterval > 0 {
		go c.cleanup(cleanupInterval)
	}

	return c
}

// Get returns the value for key if present and fresh
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var zero V
	e, ok := c.data[key]
	if !ok || c.expired(e) {
		return zero, false
	}
	return e.value, true
}

// Set stores value under key
func (c *Cache[V]) Set(key string, value V) {
	if c.ttl <= 0 {
		return
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data[key] = entry[V]{value: value, stored: c.now()}
}

// Delete removes a key from the cache
func (c *Cache[V]) Delete(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.data, key)
}

// Clear removes all entries from the cache
func (c *Cache[V]) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data = make(map[string]entry[V])
}

// Size returns the number of entries, expired or not
func (c *Cache[V]) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return len(c.data)
}

func (c *Cache[V]) expired(e entry[V]) bool {
	return c.now().Sub(e.stored) > c.ttl
}

func (c *Cache[V]) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stopCh:
			return
		}
	}
}

func (c *Cache[V]) removeExpired() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for key, e := range c.data {
		if c.expired(e) {
			delete(c.data, key)
		}
	}
}

// Stop stops the janitor. It is safe to call more than once.
func (c *Cache[V]) Stop() {
	c.stopped.Do(func() { close(c.stopCh) })
}
