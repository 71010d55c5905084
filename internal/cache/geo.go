package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/catclicker/catclicker/internal/geo"
)

const (
	geoKeyPrefix = "geo:"

	// DefaultGeoTTL is the TTL for cached geolocation results.
	DefaultGeoTTL = 6 * time.Hour
)

// GeoCache stores geolocation results in Redis, keyed by hashed IP.
type GeoCache struct {
	cache *Cache
	ttl   time.Duration
}

var _ geo.Cache = (*GeoCache)(nil)

// NewGeoCache creates a Redis-backed geo.Cache.
func NewGeoCache(c *Cache, ttl time.Duration) *GeoCache {
	if ttl <= 0 {
		ttl = DefaultGeoTTL
	}
	return &GeoCache{cache: c, ttl: ttl}
}

// Get implements geo.Cache.
func (g *GeoCache) Get(ctx context.Context, ip string) (geo.Location, bool, error) {
	data, err := g.cache.client.Get(ctx, geoKey(ip)).Bytes()
	if errors.Is(err, redis.Nil) {
		return geo.Location{}, false, nil
	}
	if err != nil {
		return geo.Location{}, false, fmt.Errorf("failed to get geo cache: %w", err)
	}

	var loc geo.Location
	if err := json.Unmarshal(data, &loc); err != nil {
		return geo.Location{}, false, fmt.Errorf("failed to decode geo cache: %w", err)
	}
	// The stored IP is hashed away; restore the caller's.
	loc.IP = ip
	return loc, true, nil
}

// Set implements geo.Cache.
func (g *GeoCache) Set(ctx context.Context, ip string, loc geo.Location) error {
	loc.IP = ""
	data, err := json.Marshal(loc)
	if err != nil {
		return fmt.Errorf("failed to encode geo cache: %w", err)
	}
	if err := g.cache.client.Set(ctx, geoKey(ip), data, g.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set geo cache: %w", err)
	}
	return nil
}

func geoKey(ip string) string {
	return geoKeyPrefix + hashIP(ip)
}
