// README: Redis-backed route cache keyed on rounded coordinate pairs.
package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"rewear/internal/types"
)

const routeKeyPrefix = "route:%.4f:%.4f:%.4f:%.4f"

type RedisCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisCache creates a route cache. Road geometry is stable, so entries
// live for ttl (typically 24h).
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisCache{redis: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, origin, dest types.Point) (Route, bool) {
	val, err := c.redis.Get(ctx, routeKey(origin, dest)).Result()
	if err == redis.Nil {
		return Route{}, false
	}
	if err != nil {
		log.Printf("route cache get: %v", err)
		return Route{}, false
	}
	var r Route
	if err := json.Unmarshal([]byte(val), &r); err != nil {
		return Route{}, false
	}
	return r, true
}

func (c *RedisCache) Put(ctx context.Context, origin, dest types.Point, r Route) {
	data, err := json.Marshal(r)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, routeKey(origin, dest), data, c.ttl).Err(); err != nil {
		log.Printf("route cache put: %v", err)
	}
}

func routeKey(origin, dest types.Point) string {
	return fmt.Sprintf(routeKeyPrefix, origin.Lat, origin.Lng, dest.Lat, dest.Lng)
}
