package maps

import (
	"context"
	"errors"
)

var ErrNoRoute = errors.New("no route between the given points")

// MapsProvider resolves driving routes and addresses for ride estimates.
type MapsProvider interface {
	EstimateRoute(ctx context.Context, origin, destination Location) (*RouteEstimate, error)
	ReverseGeocode(ctx context.Context, location Location) (string, error)
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type RouteEstimate struct {
	DistanceMeters  float64 `json:"distance"`
	DurationSeconds float64 `json:"duration"`
	DistanceText    string  `json:"distance_text,omitempty"`
	DurationText    string  `json:"duration_text,omitempty"`
}
