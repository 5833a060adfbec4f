// Package cache shares geocoded destination coordinates across instances
// through Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tournevent/freight/pkg/freight"
	"github.com/tournevent/freight/pkg/geo"
)

// DefaultTTL is how long a destination coordinate stays cached.
const DefaultTTL = 90 * 24 * time.Hour

const keyPrefix = "freight:cep:"

// Client is the subset of *redis.Client the cache needs.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// NewRedisClient connects to redisURL and checks the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

// DestinationCache implements freight.DestinationCache.
type DestinationCache struct {
	client Client
	ttl    time.Duration
}

// NewDestinationCache creates a cache. A non-positive ttl uses DefaultTTL.
func NewDestinationCache(client Client, ttl time.Duration) *DestinationCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &DestinationCache{client: client, ttl: ttl}
}

// Key returns the Redis key for a postal code.
func Key(cep geo.PostalCode) string {
	return keyPrefix + cep.String()
}

// Get returns the cached coordinate. A missing or corrupt entry is a miss.
func (c *DestinationCache) Get(ctx context.Context, cep geo.PostalCode) (geo.Coordinate, bool, error) {
	data, err := c.client.Get(ctx, Key(cep)).Bytes()
	if errors.Is(err, redis.Nil) {
		return geo.Coordinate{}, false, nil
	}
	if err != nil {
		return geo.Coordinate{}, false, err
	}

	var coord geo.Coordinate
	if err := json.Unmarshal(data, &coord); err != nil || !coord.Valid() {
		return geo.Coordinate{}, false, nil
	}
	return coord, true, nil
}

// Set stores a coordinate with the cache TTL.
func (c *DestinationCache) Set(ctx context.Context, cep geo.PostalCode, coord geo.Coordinate) error {
	data, err := json.Marshal(coord)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, Key(cep), data, c.ttl).Err()
}

// Ping checks Redis is reachable.
func (c *DestinationCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

var _ freight.DestinationCache = (*DestinationCache)(nil)
