// README: Redis route cache tests (skipped without a redis instance).
package maps

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"rewear/internal/types"
)

func setupTestRedis(t *testing.T) *RedisCache {
	t.Helper()

	addr := os.Getenv("REWEAR_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("REWEAR_TEST_REDIS_ADDR not set; skipping redis-backed tests")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })
	return NewRedisCache(client, time.Minute)
}

func TestRedisCache_RoundTrip(t *testing.T) {
	cache := setupTestRedis(t)
	ctx := context.Background()

	origin := types.Point{Lat: 40.7128, Lng: -74.0060}
	dest := types.Point{Lat: 40.7831, Lng: -73.9712}
	want := Route{DistanceKm: 10.5, DurationMin: 21, Polyline: "abc"}

	cache.Put(ctx, origin, dest, want)
	got, ok := cache.Get(ctx, origin, dest)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestRedisCache_MissOnDifferentPair(t *testing.T) {
	cache := setupTestRedis(t)
	ctx := context.Background()

	cache.Put(ctx, types.Point{Lat: 1, Lng: 2}, types.Point{Lat: 3, Lng: 4}, Route{DistanceKm: 5})
	if _, ok := cache.Get(ctx, types.Point{Lat: 1, Lng: 2}, types.Point{Lat: 3, Lng: 5}); ok {
		t.Fatal("expected cache miss for a different destination")
	}
}

// routeKey rounds to 4 decimal places (~11m), so jitter below that shares an
// entry and anything larger does not.
func TestRouteKey_Rounding(t *testing.T) {
	a := routeKey(types.Point{Lat: 40.71281, Lng: -74.00601}, types.Point{Lat: 40.7831, Lng: -73.9712})
	b := routeKey(types.Point{Lat: 40.71279, Lng: -74.00599}, types.Point{Lat: 40.7831, Lng: -73.9712})
	if a != b {
		t.Fatalf("keys differ for sub-precision jitter: %s vs %s", a, b)
	}

	c := routeKey(types.Point{Lat: 40.72, Lng: -74.0060}, types.Point{Lat: 40.7831, Lng: -73.9712})
	if a == c {
		t.Fatal("keys collide for distinct coordinates")
	}
}
