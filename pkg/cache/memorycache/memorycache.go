package memorycache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/asakaida/relcalc/pkg/cache"
)

// entryOverhead is the approximate bookkeeping cost of one entry in bytes
const entryOverhead = 100

// entry represents a cache entry with value and metadata
type entry struct {
	key       string
	value     interface{}
	expiresAt time.Time
	size      int64 // Approximate memory size in bytes
}

// Cache implements an LRU cache with TTL support.
type Cache struct {
	mu sync.Mutex

	// LRU tracking
	items     map[string]*list.Element // key -> list element
	evictList *list.List               // LRU list (front = most recent, back = least recent)

	// Configuration
	maxSize int64 // Maximum total size in bytes
	ttl     time.Duration
	onEvict func(key string)

	// Current state
	currentSize int64

	// Metrics
	metrics *cacheMetrics

	now func() time.Time
}

type cacheMetrics struct {
	hits        uint64
	misses      uint64
	keysAdded   uint64
	keysEvicted uint64
	costAdded   uint64
	costEvicted uint64
}

// Config holds configuration for the memory cache.
type Config struct {
	// MaxSizeBytes is the maximum total size of cached items in bytes.
	// When this limit is exceeded, least recently used items are evicted.
	// Zero disables the limit.
	MaxSizeBytes int64

	// DefaultTTL is used when Set is called with a non-positive TTL.
	DefaultTTL time.Duration

	// EnableMetrics enables collection of cache metrics.
	EnableMetrics bool

	// OnEvict is called, with the lock held, for every entry removed because
	// of capacity, expiry, Delete or Clear.
	OnEvict func(key string)
}

// New creates a new memory cache with the given configuration.
func New(config *Config) (*Cache, error) {
	c := &Cache{
		items:     make(map[string]*list.Element),
		evictList: list.New(),
		maxSize:   config.MaxSizeBytes,
		ttl:       config.DefaultTTL,
		onEvict:   config.OnEvict,
		now:       time.Now,
	}

	if config.EnableMetrics {
		c.metrics = &cacheMetrics{}
	}

	return c, nil
}

// Get retrieves a value from cache and marks it as recently used.
func (c *Cache) Get(ctx context.Context, key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.items[key]
	if !exists {
		c.recordMiss()
		return nil, false
	}

	ent := elem.Value.(*entry)
	if !ent.expiresAt.IsZero() && c.now().After(ent.expiresAt) {
		c.removeElement(elem)
		c.recordMiss()
		return nil, false
	}

	c.evictList.MoveToFront(elem)
	if c.metrics != nil {
		c.metrics.hits++
	}
	return ent.value, true
}

// Set stores a value in cache with the specified TTL.
// A non-positive ttl falls back to the default TTL; if that is also
// non-positive the entry never expires.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl <= 0 {
		ttl = c.ttl
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}
	size := entrySize(key, value)

	if elem, exists := c.items[key]; exists {
		ent := elem.Value.(*entry)
		c.currentSize += size - ent.size
		ent.value = value
		ent.expiresAt = expiresAt
		ent.size = size
		c.evictList.MoveToFront(elem)
	} else {
		ent := &entry{
			key:       key,
			value:     value,
			expiresAt: expiresAt,
			size:      size,
		}
		c.items[key] = c.evictList.PushFront(ent)
		c.currentSize += size

		if c.metrics != nil {
			c.metrics.keysAdded++
		}
	}
	if c.metrics != nil {
		c.metrics.costAdded += uint64(size)
	}

	// Evict LRU items if over capacity; the newest entry always stays
	for c.maxSize > 0 && c.currentSize > c.maxSize && c.evictList.Len() > 1 {
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

	if elem, exists := c.items[key]; exists {
		c.removeElement(elem)
	}

	return nil
}

// Clear removes all entries from cache.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for elem := c.evictList.Back(); elem != nil; {
		prev := elem.Prev()
		c.removeElement(elem)
		elem = prev
	}

	return nil
}

// Close releases resources (no-op for memory cache).
func (c *Cache) Close() error {
	return nil
}

// Metrics returns cache statistics.
func (c *Cache) Metrics() *cache.Metrics {
	if c.metrics == nil {
		return &cache.Metrics{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return &cache.Metrics{
		Hits:        c.metrics.hits,
		Misses:      c.metrics.misses,
		KeysAdded:   c.metrics.keysAdded,
		KeysEvicted: c.metrics.keysEvicted,
		CostAdded:   c.metrics.costAdded,
		CostEvicted: c.metrics.costEvicted,
	}
}

// Len returns the current number of items in cache.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictList.Len()
}

// Size returns the current total size in bytes.
func (c *Cache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentSize
}

func (c *Cache) recordMiss() {
	if c.metrics != nil {
		c.metrics.misses++
	}
}

// removeElement removes an element from cache (must be called with lock held).
func (c *Cache) removeElement(elem *list.Element) {
	c.evictList.Remove(elem)
	ent := elem.Value.(*entry)
	delete(c.items, ent.key)
	c.currentSize -= ent.size
	if c.metrics != nil {
		c.metrics.costEvicted += uint64(ent.size)
	}
	if c.onEvict != nil {
		c.onEvict(ent.key)
	}
}

func entrySize(key string, value interface{}) int64 {
	size := int64(entryOverhead + len(key))
	switch v := value.(type) {
	case cache.Sizer:
		size += v.CacheSize()
	case string:
		size += int64(len(v))
	case []byte:
		size += int64(len(v))
	}
	return size
}
