package maps

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"

	"rewear/internal/types"
)

// stubDirections is a test double for the Google Directions client.
type stubDirections struct {
	routes []maps.Route
	err    error
	calls  int
}

func (s *stubDirections) Directions(_ context.Context, _ *maps.DirectionsRequest) ([]maps.Route, []maps.GeocodedWaypoint, error) {
	s.calls++
	return s.routes, nil, s.err
}

// memCache is an in-memory Cache for tests.
type memCache struct {
	entries map[string]Route
}

func newMemCache() *memCache { return &memCache{entries: map[string]Route{}} }

func (c *memCache) Get(_ context.Context, origin, dest types.Point) (Route, bool) {
	r, ok := c.entries[routeKey(origin, dest)]
	return r, ok
}

func (c *memCache) Put(_ context.Context, origin, dest types.Point, r Route) {
	c.entries[routeKey(origin, dest)] = r
}

var (
	seattle  = types.Point{Lat: 47.6062, Lng: -122.3321}
	bellevue = types.Point{Lat: 47.6101, Lng: -122.2015}
)

func directionsRoute(meters int, duration time.Duration, polyline string) []maps.Route {
	return []maps.Route{{
		Legs:             []*maps.Leg{{Distance: maps.Distance{Meters: meters}, Duration: duration}},
		OverviewPolyline: maps.Polyline{Points: polyline},
	}}
}

func TestComputeRoute_Provider(t *testing.T) {
	api := &stubDirections{routes: directionsRoute(10000, 18*time.Minute, "abc")}
	svc := newRouteServiceWithAPI(api, nil, time.Second)

	r, err := svc.ComputeRoute(context.Background(), seattle, bellevue)
	require.NoError(t, err)
	assert.Equal(t, 10.0, r.DistanceKm)
	assert.Equal(t, 18.0, r.DurationMin)
	assert.Equal(t, "abc", r.Polyline)
	assert.False(t, r.Fallback)
}

func TestComputeRoute_FallbackOnProviderError(t *testing.T) {
	api := &stubDirections{err: errors.New("boom")}
	svc := newRouteServiceWithAPI(api, nil, time.Second)

	r, err := svc.ComputeRoute(context.Background(), seattle, bellevue)
	require.NoError(t, err, "provider failure must not surface to the caller")
	assert.True(t, r.Fallback)

	want := haversineKm(seattle.Lat, seattle.Lng, bellevue.Lat, bellevue.Lng)
	assert.InDelta(t, want, r.DistanceKm, 0.001)
	assert.Greater(t, r.DurationMin, 0.0)
}

func TestComputeRoute_FallbackOnEmptyRoutes(t *testing.T) {
	api := &stubDirections{routes: nil}
	svc := newRouteServiceWithAPI(api, nil, time.Second)

	r, err := svc.ComputeRoute(context.Background(), seattle, bellevue)
	require.NoError(t, err)
	assert.True(t, r.Fallback)
}

func TestComputeRoute_NoProviderConfigured(t *testing.T) {
	svc := newRouteServiceWithAPI(nil, nil, time.Second)

	r, err := svc.ComputeRoute(context.Background(), seattle, bellevue)
	require.NoError(t, err)
	assert.True(t, r.Fallback)
}

func TestComputeRoute_Validation(t *testing.T) {
	svc := newRouteServiceWithAPI(nil, nil, time.Second)
	ctx := context.Background()

	_, err := svc.ComputeRoute(ctx, types.Point{Lat: 91, Lng: 0}, bellevue)
	assert.ErrorIs(t, err, ErrBadCoordinates)

	_, err = svc.ComputeRoute(ctx, seattle, types.Point{Lat: 0, Lng: -181})
	assert.ErrorIs(t, err, ErrBadCoordinates)

	near := types.Point{Lat: seattle.Lat + 0.0004, Lng: seattle.Lng - 0.0004}
	_, err = svc.ComputeRoute(ctx, seattle, near)
	assert.ErrorIs(t, err, ErrDegenerateRoute)
}

func TestComputeRoute_CacheHitSkipsProvider(t *testing.T) {
	api := &stubDirections{routes: directionsRoute(10000, 18*time.Minute, "abc")}
	cache := newMemCache()
	svc := newRouteServiceWithAPI(api, cache, time.Second)
	ctx := context.Background()

	_, err := svc.ComputeRoute(ctx, seattle, bellevue)
	require.NoError(t, err)
	require.Equal(t, 1, api.calls)

	r, err := svc.ComputeRoute(ctx, seattle, bellevue)
	require.NoError(t, err)
	assert.Equal(t, 1, api.calls, "second computation must come from cache")
	assert.Equal(t, 10.0, r.DistanceKm)
}

func TestComputeRoute_FallbackNotCached(t *testing.T) {
	api := &stubDirections{err: errors.New("down")}
	cache := newMemCache()
	svc := newRouteServiceWithAPI(api, cache, time.Second)

	_, err := svc.ComputeRoute(context.Background(), seattle, bellevue)
	require.NoError(t, err)
	assert.Empty(t, cache.entries)
}

func TestHaversineKm(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lng1, lat2, lng2 float64
		wantKm                 float64
		tolerance              float64
	}{
		{"same point", 25.033, 121.565, 25.033, 121.565, 0, 0.001},
		{"Seattle to Bellevue (~10km)", 47.6062, -122.3321, 47.6101, -122.2015, 9.8, 1.0},
		{"New York to Los Angeles (~3944km)", 40.7128, -74.0060, 34.0522, -118.2437, 3944, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := haversineKm(tt.lat1, tt.lng1, tt.lat2, tt.lng2)
			if math.Abs(got-tt.wantKm) > tt.tolerance {
				t.Errorf("haversineKm() = %f, want %f (±%f)", got, tt.wantKm, tt.tolerance)
			}
		})
	}
}

func TestHaversineKm_Symmetry(t *testing.T) {
	d1 := haversineKm(25.0, 121.0, 26.0, 122.0)
	d2 := haversineKm(26.0, 122.0, 25.0, 121.0)
	if math.Abs(d1-d2) > 0.0001 {
		t.Errorf("haversine is not symmetric: %f vs %f", d1, d2)
	}
}
