package openroute

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/tournevent/freight/pkg/geo"
)

// roadFactor approximates road distance from great-circle distance.
const roadFactor = 1.25

// MockAPIClient is a mock implementation of APIClient.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnDirections func(ctx context.Context, req *DirectionsRequest) (*DirectionsResponse, error)
}

// NewMockAPIClient creates a mock that estimates distance from coordinates.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

// Directions returns a single-feature route.
func (m *MockAPIClient) Directions(ctx context.Context, req *DirectionsRequest) (*DirectionsResponse, error) {
	if m.SimulateLatency > 0 {
		select {
		case <-time.After(m.SimulateLatency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.SimulateErrors {
		return nil, &APIError{StatusCode: http.StatusBadGateway, Message: "Simulated API error"}
	}

	if m.OnDirections != nil {
		return m.OnDirections(ctx, req)
	}

	meters := haversine(req.Start, req.End) * roadFactor
	duration := meters / 13.9 // ~50 km/h
	return &DirectionsResponse{
		Type: "FeatureCollection",
		Features: []Feature{{
			Properties: Properties{
				Summary: &Summary{Distance: &meters, Duration: &duration},
			},
		}},
	}, nil
}

func haversine(a, b geo.Coordinate) float64 {
	const earthRadius = 6371000.0
	rad := math.Pi / 180
	dLat := (b.Lat - a.Lat) * rad
	dLng := (b.Lng - a.Lng) * rad
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*rad)*math.Cos(b.Lat*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadius * math.Asin(math.Sqrt(h))
}

var _ APIClient = (*MockAPIClient)(nil)
