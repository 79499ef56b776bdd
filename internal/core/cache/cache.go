// Package cache holds a goroutine-safe key/value store with per-entry
// expiration, shared by every connection.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache is an instance of a key-value store with contents specific to
// each instance and are not shared between instances. Entries expire after
// defaultTTL unless a different one is given to Put.
type Cache struct {
	cacheInstance *gocache.Cache
}

// New returns an empty cache. A defaultTTL of -1 means entries don't expire
// unless given a TTL.
func New(defaultTTL time.Duration) *Cache {
	return &Cache{cacheInstance: gocache.New(defaultTTL, time.Minute)}
}

// Put sets a key/value pair in the cache with an optional duration. Passing 0 for
// ttl will cause the default expiration to be used and -1 will not set a ttl.
func (c *Cache) Put(key string, value interface{}, ttl time.Duration) {
	c.cacheInstance.Set(key, value, ttl)
}

// Get fetches a value from the cache, returning the value as well as whether
// or not the value was found (semantics similar to map).
func (c *Cache) Get(key string) (interface{}, bool) {
	return c.cacheInstance.Get(key)
}

func (c *Cache) Delete(key string) {
	c.cacheInstance.Delete(key)
}

// Len returns the number of entries, possibly including expired ones that
// haven't been cleaned up yet.
func (c *Cache) Len() int {
	return c.cacheInstance.ItemCount()
}
