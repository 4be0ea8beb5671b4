// Package memorycache implements an in-process LRU cache with TTL,
// bounded by an approximate memory budget.
package memorycache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/moacode/craft-fab-permissions/pkg/cache"
)

// entry is one cached decision with its expiry and approximate size.
type entry struct {
	key       string
	value     interface{}
	expiresAt time.Time
	size      int64
}

// Config holds configuration for the memory cache.
type Config struct {
	// MaxSizeBytes is the approximate memory budget. When exceeded,
	// least recently used entries are evicted.
	MaxSizeBytes int64

	// DefaultTTL applies when Set is called with a zero TTL.
	DefaultTTL time.Duration

	// EnableMetrics enables collection of cache statistics.
	EnableMetrics bool
}

// Cache is an LRU cache with per-entry TTL.
type Cache struct {
	mu sync.Mutex

	items     map[string]*list.Element
	evictList *list.List // front = most recently used

	maxSize     int64
	defaultTTL  time.Duration
	currentSize int64

	metrics *counters
}

type counters struct {
	hits        uint64
	misses      uint64
	keysAdded   uint64
	keysEvicted uint64
}

// New creates a memory cache with the given configuration.
func New(config *Config) (*Cache, error) {
	c := &Cache{
		items:      make(map[string]*list.Element),
		evictList:  list.New(),
		maxSize:    config.MaxSizeBytes,
		defaultTTL: config.DefaultTTL,
	}
	if config.EnableMetrics {
		c.metrics = &counters{}
	}
	return c, nil
}

// Get retrieves a value from cache. Expired entries count as misses and
// are removed on access.
func (c *Cache) Get(ctx context.Context, key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.miss()
		return nil, false
	}

	ent := elem.Value.(*entry)
	if time.Now().After(ent.expiresAt) {
		c.removeElement(elem)
		c.miss()
		return nil, false
	}

	c.evictList.MoveToFront(elem)
	if c.metrics != nil {
		c.metrics.hits++
	}
	return ent.value, true
}

// Set stores a value with the given TTL, evicting least recently used
// entries until the cache fits its memory budget.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	size := approximateSize(key, value)

	if elem, ok := c.items[key]; ok {
		old := elem.Value.(*entry)
		c.currentSize += size - old.size
		elem.Value = &entry{key: key, value: value, expiresAt: time.Now().Add(ttl), size: size}
		c.evictList.MoveToFront(elem)
	} else {
		ent := &entry{key: key, value: value, expiresAt: time.Now().Add(ttl), size: size}
		c.items[key] = c.evictList.PushFront(ent)
		c.currentSize += size
		if c.metrics != nil {
			c.metrics.keysAdded++
		}
	}

	for c.maxSize > 0 && c.currentSize > c.maxSize && c.evictList.Len() > 0 {
		c.removeElement(c.evictList.Back())
		if c.metrics != nil {
			c.metrics.keysEvicted++
		}
	}

	return nil
}

// Delete removes a value from cache.
func (c *Cache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
	return nil
}

// Clear removes all entries from cache.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.evictList.Init()
	c.currentSize = 0
	return nil
}

// Close releases resources held by the cache.
func (c *Cache) Close() error {
	return c.Clear(context.Background())
}

// Metrics returns a snapshot of cache statistics.
func (c *Cache) Metrics() *cache.Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.metrics == nil {
		return &cache.Metrics{}
	}
	return &cache.Metrics{
		Hits:        c.metrics.hits,
		Misses:      c.metrics.misses,
		KeysAdded:   c.metrics.keysAdded,
		KeysEvicted: c.metrics.keysEvicted,
	}
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictList.Len()
}

func (c *Cache) miss() {
	if c.metrics != nil {
		c.metrics.misses++
	}
}

// removeElement drops an entry. Callers hold c.mu.
func (c *Cache) removeElement(elem *list.Element) {
	ent := elem.Value.(*entry)
	c.evictList.Remove(elem)
	delete(c.items, ent.key)
	c.currentSize -= ent.size
}

// approximateSize estimates an entry's memory footprint. Decisions are
// small; the estimate only needs to make the byte budget meaningful.
func approximateSize(key string, value interface{}) int64 {
	size := int64(len(key)) + 64 // entry struct and map overhead
	switch v := value.(type) {
	case string:
		size += int64(len(v))
	case []byte:
		size += int64(len(v))
	default:
		size += 16
	}
	return size
}
