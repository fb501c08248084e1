// Package cache provides a thread-safe in-memory LRU cache with TTL
// support, used to avoid repeated Google API calls.
package cache

import (
	"container/list"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// entry is a cached value with expiration.
type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

func (e *entry[V]) expired() bool {
	return time.Now().After(e.expiresAt)
}

// Metrics tracks cache statistics.
type Metrics struct {
	Hits        int64
	Misses      int64
	Evictions   int64
	Expirations int64
}

// HitRate returns the cache hit rate as a percentage (0-100).
func (m Metrics) HitRate() float64 {
	total := m.Hits + m.Misses
	if total == 0 {
		return 0
	}
	return float64(m.Hits) / float64(total) * 100
}

// Config holds configuration for an LRU cache.
type Config struct {
	MaxEntries int           // Maximum number of entries (0 = unlimited)
	DefaultTTL time.Duration // TTL for entries set without an explicit one
	Logger     *slog.Logger
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		MaxEntries: 100,
		DefaultTTL: 5 * time.Minute,
		Logger:     slog.Default(),
	}
}

// LRU is a thread-safe LRU cache with per-entry TTL.
type LRU[V any] struct {
	config  Config
	cache   map[string]*list.Element
	lruList *list.List
	mu      sync.RWMutex
	metrics Metrics
}

// New creates a new LRU cache.
func New[V any](config Config) *LRU[V] {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.DefaultTTL == 0 {
		config.DefaultTTL = 5 * time.Minute
	}

	return &LRU[V]{
		config:  config,
		cache:   make(map[string]*list.Element),
		lruList: list.New(),
	}
}

// Get retrieves a value from the cache. Returns the zero value and
// false when the key is missing or expired.
func (c *LRU[V]) Get(key string) (V, bool) {
	var zero V

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.cache[key]
	if !ok {
		c.metrics.Misses++
		return zero, false
	}

	ent := elem.Value.(*entry[V])
	if ent.expired() {
		c.removeElementLocked(elem)
		c.metrics.Misses++
		c.metrics.Expirations++
		return zero, false
	}

	c.lruList.MoveToFront(elem)
	c.metrics.Hits++
	return ent.value, true
}

// Set stores a value with the default TTL.
func (c *LRU[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.config.DefaultTTL)
}

// SetWithTTL stores a value with a specific TTL.
func (c *LRU[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		ent := elem.Value.(*entry[V])
		ent.value = value
		ent.expiresAt = time.Now().Add(ttl)
		c.lruList.MoveToFront(elem)
		return
	}

	if c.config.MaxEntries > 0 && c.lruList.Len() >= c.config.MaxEntries {
		c.evictOldestLocked()
	}

	elem := c.lruList.PushFront(&entry[V]{
		key:       key,
		value:     value,
		expiresAt: time.Now().Add(ttl),
	})
	c.cache[key] = elem
}

// Delete removes a key. Returns true if the key was present.
func (c *LRU[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.cache[key]
	if !ok {
		return false
	}
	c.removeElementLocked(elem)
	return true
}

// DeletePrefix removes all keys with the given prefix and returns the
// number removed.
func (c *LRU[V]) DeletePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for key, elem := range c.cache {
		if strings.HasPrefix(key, prefix) {
			c.removeElementLocked(elem)
			count++
		}
	}
	return count
}

// DeleteSuffix removes all keys with the given suffix and returns the
// number removed.
func (c *LRU[V]) DeleteSuffix(suffix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for key, elem := range c.cache {
		if strings.HasSuffix(key, suffix) {
			c.removeElementLocked(elem)
			count++
		}
	}
	return count
}

// Clear removes all entries.
func (c *LRU[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]*list.Element)
	c.lruList = list.New()
}

// Size returns the number of entries.
func (c *LRU[V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// Metrics returns a copy of the current cache metrics.
func (c *LRU[V]) Metrics() Metrics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.metrics
}

// Cleanup removes all expired entries and returns the number removed.
func (c *LRU[V]) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for _, elem := range c.cache {
		ent := elem.Value.(*entry[V])
		if ent.expired() {
			c.removeElementLocked(elem)
			c.metrics.Expirations++
			count++
		}
	}
	return count
}

// evictOldestLocked removes the least recently used entry. Caller must
// hold the lock.
func (c *LRU[V]) evictOldestLocked() {
	elem := c.lruList.Back()
	if elem == nil {
		return
	}
	c.removeElementLocked(elem)
	c.metrics.Evictions++

	ent := elem.Value.(*entry[V])
	c.config.Logger.Debug("cache eviction",
		slog.String("key", ent.key),
	)
}

// removeElementLocked removes an element. Caller must hold the lock.
func (c *LRU[V]) removeElementLocked(elem *list.Element) {
	ent := elem.Value.(*entry[V])
	delete(c.cache, ent.key)
	c.lruList.Remove(elem)
}
