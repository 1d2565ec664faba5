// README: Road-distance provider backed by the Google Directions API with a
// haversine fallback so a provider outage never fails the caller's transaction.
package maps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"googlemaps.github.io/maps"

	"rewear/internal/types"
)

var (
	ErrBadCoordinates  = errors.New("coordinates out of range")
	ErrDegenerateRoute = errors.New("origin and destination are the same point")
)

// degenerateEpsilon is the per-axis threshold below which two points are
// treated as the same location.
const degenerateEpsilon = 0.001

// fallbackSpeedKmh is the assumed average driving speed when the provider is
// unreachable and duration must be derived from great-circle distance.
const fallbackSpeedKmh = 30.0

// Route is the computed driving route between two points. Fallback is set
// when the distance came from the haversine formula instead of the provider.
type Route struct {
	DistanceKm  float64 `json:"distance_km"`
	DurationMin float64 `json:"duration_min"`
	Polyline    string  `json:"polyline,omitempty"`
	Fallback    bool    `json:"fallback"`
}

// directionsAPI is the slice of *maps.Client the service needs; tests inject
// a stub here.
type directionsAPI interface {
	Directions(ctx context.Context, r *maps.DirectionsRequest) ([]maps.Route, []maps.GeocodedWaypoint, error)
}

// Cache stores computed routes for identical coordinate pairs. Implementations
// must be safe for concurrent use; a nil Cache disables caching.
type Cache interface {
	Get(ctx context.Context, origin, dest types.Point) (Route, bool)
	Put(ctx context.Context, origin, dest types.Point, r Route)
}

type RouteService struct {
	api     directionsAPI
	cache   Cache
	timeout time.Duration
}

// NewRouteService creates a RouteService. An empty apiKey leaves the provider
// unset and every computation uses the haversine fallback.
func NewRouteService(apiKey string, cache Cache, timeout time.Duration) (*RouteService, error) {
	var api directionsAPI
	if apiKey != "" {
		client, err := maps.NewClient(maps.WithAPIKey(apiKey))
		if err != nil {
			return nil, fmt.Errorf("create maps client: %w", err)
		}
		api = client
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &RouteService{api: api, cache: cache, timeout: timeout}, nil
}

// newRouteServiceWithAPI is the injectable constructor used by tests.
func newRouteServiceWithAPI(api directionsAPI, cache Cache, timeout time.Duration) *RouteService {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &RouteService{api: api, cache: cache, timeout: timeout}
}

// ComputeRoute returns the driving route from origin to dest. Coordinate
// validation failures are returned to the caller; provider failures are not —
// the result degrades to a flagged great-circle estimate instead.
func (s *RouteService) ComputeRoute(ctx context.Context, origin, dest types.Point) (Route, error) {
	if !validPoint(origin) || !validPoint(dest) {
		return Route{}, ErrBadCoordinates
	}
	if abs(origin.Lat-dest.Lat) < degenerateEpsilon && abs(origin.Lng-dest.Lng) < degenerateEpsilon {
		return Route{}, ErrDegenerateRoute
	}

	if s.cache != nil {
		if r, ok := s.cache.Get(ctx, origin, dest); ok {
			return r, nil
		}
	}

	if s.api != nil {
		if r, err := s.directions(ctx, origin, dest); err == nil {
			if s.cache != nil {
				s.cache.Put(ctx, origin, dest, r)
			}
			return r, nil
		}
	}

	// Fallback results are not cached: the cache holds road geometry, and a
	// 24h-cached straight-line estimate would mask provider recovery.
	km := haversineKm(origin.Lat, origin.Lng, dest.Lat, dest.Lng)
	return Route{
		DistanceKm:  km,
		DurationMin: km / fallbackSpeedKmh * 60,
		Fallback:    true,
	}, nil
}

func (s *RouteService) directions(ctx context.Context, origin, dest types.Point) (Route, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	routes, _, err := s.api.Directions(ctx, &maps.DirectionsRequest{
		Origin:      fmt.Sprintf("%f,%f", origin.Lat, origin.Lng),
		Destination: fmt.Sprintf("%f,%f", dest.Lat, dest.Lng),
		Mode:        maps.TravelModeDriving,
	})
	if err != nil {
		return Route{}, fmt.Errorf("maps api: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return Route{}, errors.New("no route found")
	}

	var meters int
	var duration time.Duration
	for _, leg := range routes[0].Legs {
		meters += leg.Distance.Meters
		duration += leg.Duration
	}
	return Route{
		DistanceKm:  float64(meters) / 1000,
		DurationMin: duration.Minutes(),
		Polyline:    routes[0].OverviewPolyline.Points,
	}, nil
}

func validPoint(p types.Point) bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
