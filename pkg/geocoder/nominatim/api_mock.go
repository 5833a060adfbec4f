package nominatim

import (
	"context"
	"net/http"
	"time"
)

// MockAPIClient is a mock implementation of APIClient.
type MockAPIClient struct {
	SimulateErrors    bool
	SimulateRateLimit bool
	SimulateLatency   time.Duration

	OnSearch func(ctx context.Context, req *SearchRequest) ([]Place, error)
}

// NewMockAPIClient creates a mock that geocodes everything to central São Paulo.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

// Search returns a canned place.
func (m *MockAPIClient) Search(ctx context.Context, req *SearchRequest) ([]Place, error) {
	if m.SimulateLatency > 0 {
		select {
		case <-time.After(m.SimulateLatency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.SimulateRateLimit {
		return nil, &APIError{StatusCode: http.StatusTooManyRequests, Message: "Too Many Requests"}
	}
	if m.SimulateErrors {
		return nil, &APIError{StatusCode: http.StatusInternalServerError, Message: "Simulated API error"}
	}

	if m.OnSearch != nil {
		return m.OnSearch(ctx, req)
	}

	return []Place{{
		PlaceID:     1,
		Lat:         "-23.5505199",
		Lon:         "-46.6333094",
		DisplayName: req.Query,
	}}, nil
}

var _ APIClient = (*MockAPIClient)(nil)
