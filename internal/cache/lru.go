package cache

import (
	"container/list"
	"sync"
	"time"
)

// Entry is a cached value together with the moment it was fetched.
type Entry[T any] struct {
	Value     T
	FetchedAt time.Time
}

// LRUCache is a size-bounded cache whose entries expire ttl after they were
// stored.
type LRUCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	now     Clock
	items   map[string]*list.Element
	lru     *list.List
}

type cacheItem[T any] struct {
	key   string
	entry Entry[T]
}

// Option configures an LRUCache.
type Option func(*lruOptions)

type lruOptions struct {
	clock Clock
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(c Clock) Option {
	return func(o *lruOptions) {
		if c != nil {
			o.clock = c
		}
	}
}

// NewLRUCache creates a new LRU cache with TTL
func NewLRUCache[T any](maxSize int, ttl time.Duration, opts ...Option) *LRUCache[T] {
	o := lruOptions{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if maxSize < 1 {
		maxSize = 1
	}
	return &LRUCache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		now:     o.clock,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
	}
}

// GetEntry retrieves a fresh entry with its fetch timestamp. Stale entries
// are evicted on access.
func (c *LRUCache[T]) GetEntry(key string) (Entry[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.items[key]
	if !exists {
		return Entry[T]{}, false
	}

	item := elem.Value.(*cacheItem[T])
	if !IsFresh(c.now(), item.entry.FetchedAt, c.ttl) {
		c.removeElement(elem)
		return Entry[T]{}, false
	}

	c.lru.MoveToFront(elem)
	return item.entry, true
}

// SetEntry stores an entry with an explicit fetch timestamp.
func (c *LRUCache[T]) SetEntry(key string, entry Entry[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := &cacheItem[T]{key: key, entry: entry}

	if elem, exists := c.items[key]; exists {
		elem.Value = item
		c.lru.MoveToFront(elem)
		return
	}

	elem := c.lru.PushFront(item)
	c.items[key] = elem

	if c.lru.Len() > c.maxSize {
		if oldest := c.lru.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
}

// Delete removes a key from the cache
func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[key]; exists {
		c.removeElement(elem)
	}
}

func (c *LRUCache[T]) removeElement(elem *list.Element) {
	item := elem.Value.(*cacheItem[T])
	delete(c.items, item.key)
	c.lru.Remove(elem)
}

// CleanExpired removes all expired entries and returns count of removed items
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var toRemove []*list.Element
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		item := elem.Value.(*cacheItem[T])
		if !IsFresh(now, item.entry.FetchedAt, c.ttl) {
			toRemove = append(toRemove, elem)
		}
	}

	for _, elem := range toRemove {
		c.removeElement(elem)
	}

	return len(toRemove)
}

// Size returns the current number of items in the cache
func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
