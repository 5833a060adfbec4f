package nominatim

import (
	"context"
	"fmt"
)

// APIClient defines the Nominatim operations used by the geocoder.
type APIClient interface {
	// Search runs a free-text query and returns at most limit places.
	Search(ctx context.Context, req *SearchRequest) ([]Place, error)
}

// SearchRequest maps to GET /search query parameters.
type SearchRequest struct {
	Query        string
	Limit        int
	CountryCodes string
}

// Place is one element of the /search?format=json array.
type Place struct {
	PlaceID     int64  `json:"place_id"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Class       string `json:"class,omitempty"`
	Type        string `json:"type,omitempty"`
}

// APIError is a non-2xx answer from Nominatim.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("nominatim: HTTP %d: %s", e.StatusCode, e.Message)
}
