package cache

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

// ResponseCache is an LRU map with a TTL per entry. It is safe for
// concurrent use; every operation holds the mutex, so writes are atomic per
// key.
type ResponseCache struct {
	mu         sync.Mutex
	maxEntries int
	defaultTTL time.Duration
	now        func() time.Time
	items      map[string]*list.Element
	lru        *list.List

	// Invalidation generations. A load started under an older generation
	// must not be stored.
	epoch  uint64
	owners map[string]uint64

	hits, misses, evictions uint64
}

type entry struct {
	key       string
	value     any
	expiresAt time.Time
}

type Option func(*ResponseCache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *ResponseCache) { c.now = now }
}

// New creates a cache. Non-positive arguments fall back to the defaults.
func New(maxEntries int, defaultTTL time.Duration, opts ...Option) *ResponseCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	c := &ResponseCache{
		maxEntries: maxEntries,
		defaultTTL: defaultTTL,
		now:        time.Now,
		items:      make(map[string]*list.Element),
		lru:        list.New(),
		owners:     make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultTTL is used by Set when ttl is zero.
func (c *ResponseCache) DefaultTTL() time.Duration { return c.defaultTTL }

// Get returns a live entry. An expired entry is removed and reported absent.
func (c *ResponseCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	e := elem.Value.(*entry)
	if !c.now().Before(e.expiresAt) {
		c.removeElement(elem)
		c.misses++
		return nil, false
	}
	c.lru.MoveToFront(elem)
	c.hits++
	return e.value, true
}

// Set stores value until now+ttl, replacing any existing entry.
func (c *ResponseCache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set(key, value, ttl)
}

// Generation identifies the invalidation state covering key. It changes
// whenever an invalidation could have dropped key.
func (c *ResponseCache) Generation(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation(key)
}

// SetIfCurrent stores value only if no invalidation covering key happened
// since gen was read. It reports whether the value was stored.
func (c *ResponseCache) SetIfCurrent(key string, value any, ttl time.Duration, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation(key) != gen {
		return false
	}
	c.set(key, value, ttl)
	return true
}

func (c *ResponseCache) generation(key string) uint64 {
	return c.epoch + c.owners[ownerPrefixOf(key)]
}

func (c *ResponseCache) set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	e := &entry{key: key, value: value, expiresAt: c.now().Add(ttl)}
	if elem, ok := c.items[key]; ok {
		elem.Value = e
		c.lru.MoveToFront(elem)
		return
	}
	c.items[key] = c.lru.PushFront(e)

	if c.lru.Len() > c.maxEntries {
		if oldest := c.lru.Back(); oldest != nil {
			c.removeElement(oldest)
			c.evictions++
		}
	}
}

// Delete removes a single key.
func (c *ResponseCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
}

// ClearAll drops every entry and returns how many were present.
func (c *ResponseCache) ClearAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.items)
	c.items = make(map[string]*list.Element)
	c.lru.Init()
	c.epoch++
	return n
}

// Invalidate drops every entry whose key starts with prefix.
func (c *ResponseCache) Invalidate(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prefix != "" && ownerPrefixOf(prefix) == prefix {
		c.owners[prefix]++
	} else {
		c.epoch++
	}

	var victims []*list.Element
	for key, elem := range c.items {
		if strings.HasPrefix(key, prefix) {
			victims = append(victims, elem)
		}
	}
	for _, elem := range victims {
		c.removeElement(elem)
	}
	return len(victims)
}

// InvalidateOwner drops every entry of one owner.
func (c *ResponseCache) InvalidateOwner(ownerID string) int {
	return c.Invalidate(OwnerPrefix(ownerID))
}

func (c *ResponseCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.items))
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(*entry).key)
	}
	return Stats{Items: len(keys), Keys: keys, Hits: c.hits, Misses: c.misses, Evictions: c.evictions}
}

// Size returns the number of stored entries, expired ones included.
func (c *ResponseCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *ResponseCache) removeElement(elem *list.Element) {
	delete(c.items, elem.Value.(*entry).key)
	c.lru.Remove(elem)
}
