// Package cache provides a size-bounded expiring key/value store persisted to a
// single JSON file.
//
// Eviction is FIFO by insertion order. Reading an entry does not move it, and
// overwriting a key keeps the key's original position.
package cache

import (
	"container/list"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Options configures a Cache.
type Options struct {
	// Path is the persisted snapshot. Empty disables persistence.
	Path string
	// TTL is applied when Set is called with a non-positive ttl.
	TTL time.Duration
	// MaxSize is the hard entry bound.
	MaxSize int
	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// Stats is a point-in-time view of cache counters.
type Stats struct {
	Entries   int
	MaxSize   int
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Expired   uint64
}

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// Cache is a concurrency-safe expiring store. Each method is atomic; sequences
// of calls are not.
type Cache[V any] struct {
	opts   Options
	logger *zap.Logger

	mu      sync.Mutex
	order   *list.List
	entries map[string]*list.Element
	stats   Stats
}

// New creates a cache and loads any existing snapshot from opts.Path. A missing
// or unreadable snapshot yields an empty cache.
//
// Precondition: opts.MaxSize must be >= 1; opts.TTL must be > 0; logger must be non-nil.
func New[V any](opts Options, logger *zap.Logger) *Cache[V] {
	if opts.MaxSize < 1 {
		panic("cache.New: MaxSize must be >= 1")
	}
	if opts.TTL <= 0 {
		panic("cache.New: TTL must be > 0")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := &Cache[V]{
		opts:    opts,
		logger:  logger,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
	c.load()
	return c
}

// Set stores value under key for ttl. A non-positive ttl uses the default TTL.
// Inserting a new key into a full cache evicts the earliest-inserted entry.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.opts.TTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.opts.Now().Add(ttl)
	if el, ok := c.entries[key]; ok {
		e := el.Value.(*entry[V])
		e.value = value
		e.expiresAt = expiresAt
		c.persistLocked()
		return
	}

	for c.order.Len() >= c.opts.MaxSize {
		oldest := c.order.Front()
		c.removeLocked(oldest)
		c.stats.Evictions++
	}
	c.entries[key] = c.order.PushBack(&entry[V]{key: key, value: value, expiresAt: expiresAt})
	c.persistLocked()
}

// Get returns the live value for key. An expired entry is evicted and reported
// as a miss.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.lookupLocked(key)
	if !ok {
		c.stats.Misses++
		return zero, false
	}
	c.stats.Hits++
	return el.Value.(*entry[V]).value, true
}

// Has reports whether key holds a live value, evicting it if expired.
func (c *Cache[V]) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.lookupLocked(key)
	return ok
}

// Delete removes key and reports whether it was present.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		return false
	}
	c.removeLocked(el)
	c.persistLocked()
	return true
}

// Cleanup removes every expired entry and returns how many were removed.
func (c *Cache[V]) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.opts.Now()
	removed := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if expired(el.Value.(*entry[V]), now) {
			c.removeLocked(el)
			removed++
		}
		el = next
	}
	if removed > 0 {
		c.stats.Expired += uint64(removed)
		c.persistLocked()
	}
	return removed
}

// Clear removes every entry and returns how many were removed.
func (c *Cache[V]) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.order.Len()
	c.order.Init()
	c.entries = make(map[string]*list.Element)
	c.persistLocked()
	return n
}

// Len returns the number of held entries, including expired ones not yet swept.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Keys returns held keys in insertion order.
func (c *Cache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*entry[V]).key)
	}
	return keys
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = c.order.Len()
	s.MaxSize = c.opts.MaxSize
	return s
}

func (c *Cache[V]) lookupLocked(key string) (*list.Element, bool) {
	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if expired(el.Value.(*entry[V]), c.opts.Now()) {
		c.removeLocked(el)
		c.stats.Expired++
		c.persistLocked()
		return nil, false
	}
	return el, true
}

func (c *Cache[V]) removeLocked(el *list.Element) {
	e := c.order.Remove(el).(*entry[V])
	delete(c.entries, e.key)
}

func expired[V any](e *entry[V], now time.Time) bool {
	return !now.Before(e.expiresAt)
}
