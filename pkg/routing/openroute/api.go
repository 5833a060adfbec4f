package openroute

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tournevent/freight/pkg/geo"
)

// ErrMalformedResponse indicates the body could not be decoded.
var ErrMalformedResponse = errors.New("malformed directions response")

// APIClient defines the OpenRouteService operations used for routing.
type APIClient interface {
	// Directions calls GET /v2/directions/{profile}.
	Directions(ctx context.Context, req *DirectionsRequest) (*DirectionsResponse, error)
}

// DirectionsRequest holds the two endpoints of a route.
type DirectionsRequest struct {
	Profile string
	Start   geo.Coordinate
	End     geo.Coordinate
}

// DirectionsResponse is the GeoJSON FeatureCollection returned by the GET endpoint.
type DirectionsResponse struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature is one route.
type Feature struct {
	Properties Properties `json:"properties"`
}

// Properties carries the route summary and its segments.
type Properties struct {
	Summary  *Summary  `json:"summary,omitempty"`
	Segments []Segment `json:"segments,omitempty"`
}

// Summary totals the route. Distance is in meters.
type Summary struct {
	Distance *float64 `json:"distance,omitempty"`
	Duration *float64 `json:"duration,omitempty"`
}

// Segment is a leg between waypoints. Distance is in meters.
type Segment struct {
	Distance *float64 `json:"distance,omitempty"`
	Duration *float64 `json:"duration,omitempty"`
}

// APIError is a non-2xx answer from OpenRouteService.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("openrouteservice: HTTP %d (code %d): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("openrouteservice: HTTP %d: %s", e.StatusCode, e.Message)
}

// errorBody covers both {"error": "text"} and {"error": {"code": n, "message": "text"}}.
type errorBody struct {
	Error json.RawMessage `json:"error"`
}

type errorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
