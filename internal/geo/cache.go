package geo

import (
	"context"
	"time"

	expirable "github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryCache is an in-process LRU Cache with per-entry TTL.
type MemoryCache struct {
	lru *expirable.LRU[string, Location]
}

// NewMemoryCache creates a cache holding at most size entries for ttl.
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = 10000
	}
	return &MemoryCache{lru: expirable.NewLRU[string, Location](size, nil, ttl)}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, ip string) (Location, bool, error) {
	loc, ok := c.lru.Get(ip)
	return loc, ok, nil
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, ip string, loc Location) error {
	c.lru.Add(ip, loc)
	return nil
}

// Len returns the number of live entries.
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}
