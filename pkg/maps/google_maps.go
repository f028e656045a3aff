package maps

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"googlemaps.github.io/maps"
)

type GoogleMapsProvider struct {
	client *maps.Client
}

func NewGoogleMapsProvider(apiKey string, timeout time.Duration) (*GoogleMapsProvider, error) {
	client, err := maps.NewClient(
		maps.WithAPIKey(apiKey),
		maps.WithHTTPClient(&http.Client{Timeout: timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google Maps client: %w", err)
	}

	return &GoogleMapsProvider{
		client: client,
	}, nil
}

func latLng(l Location) string {
	return fmt.Sprintf("%f,%f", l.Latitude, l.Longitude)
}

// EstimateRoute asks the Distance Matrix API for the driving distance and
// duration between two points.
func (g *GoogleMapsProvider) EstimateRoute(ctx context.Context, origin, destination Location) (*RouteEstimate, error) {
	req := &maps.DistanceMatrixRequest{
		Origins:      []string{latLng(origin)},
		Destinations: []string{latLng(destination)},
		Mode:         maps.TravelModeDriving,
		Units:        maps.UnitsMetric,
	}

	resp, err := g.client.DistanceMatrix(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("distance matrix request failed: %w", err)
	}
	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		return nil, ErrNoRoute
	}

	element := resp.Rows[0].Elements[0]
	if element.Status != "OK" {
		return nil, fmt.Errorf("%w: %s", ErrNoRoute, element.Status)
	}

	return &RouteEstimate{
		DistanceMeters:  float64(element.Distance.Meters),
		DurationSeconds: element.Duration.Seconds(),
		DistanceText:    element.Distance.HumanReadable,
		DurationText:    element.Duration.String(),
	}, nil
}

func (g *GoogleMapsProvider) ReverseGeocode(ctx context.Context, location Location) (string, error) {
	resp, err := g.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: location.Latitude, Lng: location.Longitude},
	})
	if err != nil {
		return "", fmt.Errorf("reverse geocoding failed: %w", err)
	}
	if len(resp) == 0 {
		return "", nil
	}
	return resp[0].FormattedAddress, nil
}
