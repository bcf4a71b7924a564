// Package cache provides a small thread-safe LRU cache.
package cache

import (
	"container/list"
	"sync"
)

// Stats contains cache statistics.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
	MaxSize   int
}

type entry[K comparable, V any] struct {
	key   K
	value V
}

// LRU evicts the least recently used entry once MaxSize is exceeded.
type LRU[K comparable, V any] struct {
	mu      sync.Mutex
	maxSize int
	entries map[K]*list.Element
	order   *list.List
	stats   Stats
}

// New returns an LRU holding at most maxSize entries. maxSize <= 0 means
// unbounded.
func New[K comparable, V any](maxSize int) *LRU[K, V] {
	if maxSize < 0 {
		maxSize = 0
	}
	return &LRU[K, V]{
		maxSize: maxSize,
		entries: make(map[K]*list.Element),
		order:   list.New(),
	}
}

// Get returns the value for key and marks it recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	c.stats.Hits++
	return el.Value.(*entry[K, V]).value, true
}

// Put stores value under key.
func (c *LRU[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*entry[K, V]).value = value
		c.order.MoveToFront(el)
		return
	}
	c.entries[key] = c.order.PushFront(&entry[K, V]{key: key, value: value})
	if c.maxSize > 0 && c.order.Len() > c.maxSize {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*entry[K, V]).key)
		c.stats.Evictions++
	}
}

// Remove drops key.
func (c *LRU[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.order.Remove(el)
		delete(c.entries, key)
	}
}

// Clear drops every entry. Statistics are kept.
func (c *LRU[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]*list.Element)
	c.order.Init()
}

// Len returns the number of entries.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns a snapshot of the statistics.
func (c *LRU[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = c.order.Len()
	s.MaxSize = c.maxSize
	return s
}
