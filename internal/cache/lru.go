package cache

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

var _ Cache[int] = (*LRUCache[int])(nil)

// LRUCache evicts the least recently used entry past maxSize and treats entries
// older than ttl as absent.
type LRUCache[T any] struct {
	mu  sync.Mutex
	ttl time.Duration
	now func() time.Time
	lru *simplelru.LRU[string, entry[T]]
}

type entry[T any] struct {
	data      T
	expiresAt time.Time
}

// NewLRUCache panics when maxSize is not positive.
func NewLRUCache[T any](maxSize int, ttl time.Duration) *LRUCache[T] {
	lru, err := simplelru.NewLRU[string, entry[T]](maxSize, nil)
	if err != nil {
		panic(err)
	}
	return &LRUCache[T]{
		ttl: ttl,
		now: time.Now,
		lru: lru,
	}
}

func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.get(key)
}

func (c *LRUCache[T]) get(key string) (T, bool) {
	var zero T
	e, ok := c.lru.Get(key)
	if !ok {
		return zero, false
	}
	if c.now().After(e.expiresAt) {
		c.lru.Remove(key)
		return zero, false
	}
	return e.data, true
}

func (c *LRUCache[T]) Set(key string, data T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set(key, data)
}

func (c *LRUCache[T]) set(key string, data T) {
	c.lru.Add(key, entry[T]{data: data, expiresAt: c.now().Add(c.ttl)})
}

// GetOrSet returns the live value under key, or stores and returns create().
// The lookup and the insert happen under one lock.
func (c *LRUCache[T]) GetOrSet(key string, create func() T) T {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.get(key); ok {
		return v
	}
	v := create()
	c.set(key, v)
	return v
}

func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
}

func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for _, key := range c.lru.Keys() {
		// Peek leaves the recency order alone.
		if e, ok := c.lru.Peek(key); ok && now.After(e.expiresAt) {
			c.lru.Remove(key)
			removed++
		}
	}
	return removed
}

func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
