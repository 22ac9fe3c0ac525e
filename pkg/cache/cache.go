// Package cache memoizes reads of a datasource through an injected Cache.
//
// # Overview
//
// NewDatasource wraps a core.Datasource so that every table, value source,
// vector source, value set and timestamps pair reached through it reads
// through the cache:
//
//   - build a key from the owner path, the accessor name and the arguments
//   - return the cached value on a hit
//   - on a miss call the delegate, store the result and return it
//
// Failed reads are never stored. Handles (tables, value sets, value
// sources) are cheap and built fresh on each call; only the reads below
// them are memoized.
//
// # Eviction
//
// This package holds no cached values itself and applies no eviction,
// TTL or size bound. MapCache keeps everything; LRUCache bounds the number
// of entries with hashicorp/golang-lru.
package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ajitpratap0/quasar/pkg/errors"
)

// Cache is the external store the decorators read through.
type Cache interface {
	Get(key string) (interface{}, bool)
	Put(key string, value interface{})
}

// MapCache is an unbounded Cache. Safe for concurrent use.
type MapCache struct {
	mu      sync.RWMutex
	entries map[string]interface{}
}

// NewMapCache creates an empty MapCache.
func NewMapCache() *MapCache {
	return &MapCache{entries: make(map[string]interface{})}
}

func (c *MapCache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *MapCache) Put(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
}

// Len returns the number of entries.
func (c *MapCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Keys returns a snapshot of the stored keys.
func (c *MapCache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return keys
}

// LRUCache is a Cache bounded to a number of entries, evicting the least
// recently used.
type LRUCache struct {
	lru *lru.Cache[string, interface{}]
}

// NewLRUCache creates a cache holding at most size entries.
func NewLRUCache(size int) (*LRUCache, error) {
	l, err := lru.New[string, interface{}](size)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid cache size")
	}
	return &LRUCache{lru: l}, nil
}

func (c *LRUCache) Get(key string) (interface{}, bool) { return c.lru.Get(key) }
func (c *LRUCache) Put(key string, value interface{})  { c.lru.Add(key, value) }

// Len returns the number of entries.
func (c *LRUCache) Len() int { return c.lru.Len() }
