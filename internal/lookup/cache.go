// Package lookup holds the process-wide name-to-id cache for the platform's
// small reference lists (projects, suites). The cache is read-mostly and
// invalidated only by explicit clear calls, never automatically: reference
// lists change rarely and a stale id fails loudly on the next upstream call.
package lookup

import (
	"testgate/pkg/logging"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache maps (kind, name) to an upstream identifier. It is safe for
// concurrent use.
type Cache struct {
	lru *lru.Cache[string, string]
}

// New creates a cache with the given capacity. A non-positive size falls back
// to 256 entries.
func New(size int) (*Cache, error) {
	if size <= 0 {
		size = 256
	}
	inner, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: inner}, nil
}

func key(kind, name string) string {
	return kind + "/" + name
}

// Get returns the cached id for a name, if present.
func (c *Cache) Get(kind, name string) (string, bool) {
	return c.lru.Get(key(kind, name))
}

// Put records a name-to-id mapping.
func (c *Cache) Put(kind, name, id string) {
	c.lru.Add(key(kind, name), id)
}

// Clear drops every cached mapping. This is the only invalidation path.
func (c *Cache) Clear() {
	c.lru.Purge()
	logging.Info("Lookup", "Name-to-id cache cleared")
}

// Len returns the number of cached mappings.
func (c *Cache) Len() int {
	return c.lru.Len()
}
