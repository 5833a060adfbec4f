// Package geocoder resolves postal codes to coordinates through an ordered
// chain of heterogeneous providers.
package geocoder

import (
	"context"
	"errors"
	"strings"

	"github.com/tournevent/freight/pkg/geo"
)

// Country is appended to every free-text geocoding query.
const Country = "Brasil"

var (
	// ErrNotFound indicates no stage could produce a coordinate. It is terminal.
	ErrNotFound = errors.New("postal code not found")

	// ErrUnavailable indicates the geocoder could not run at all.
	ErrUnavailable = errors.New("geocoder unavailable")

	// ErrRateLimited is returned by providers that throttled the request.
	ErrRateLimited = errors.New("geocoding provider rate limited")
)

// Geocoder resolves a postal code to a coordinate.
type Geocoder interface {
	Resolve(ctx context.Context, cep geo.PostalCode) (geo.Coordinate, error)
}

// Address is the street-level address registered for a postal code.
type Address struct {
	PostalCode   geo.PostalCode
	Street       string
	Neighborhood string
	City         string
	State        string
}

// Query is the full free-text form used by the resolve-then-geocode stage.
func (a Address) Query() string {
	return joinNonEmpty(a.Street, a.Neighborhood, a.City, a.State, Country)
}

// CoarseQuery is the city-level form used by the last stage.
func (a Address) CoarseQuery() string {
	return joinNonEmpty(a.City, a.State, Country)
}

func joinNonEmpty(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}

// DirectLookup returns coordinates straight from a postal-code database.
type DirectLookup interface {
	Name() string
	// Configured is false when the provider lacks credentials.
	Configured() bool
	// Lookup returns nil when the provider has no coordinate for cep.
	Lookup(ctx context.Context, cep geo.PostalCode) (*geo.Coordinate, error)
}

// AddressLookup maps a postal code to its registered address.
type AddressLookup interface {
	Name() string
	// LookupAddress returns ErrNotFound when the code is unknown.
	LookupAddress(ctx context.Context, cep geo.PostalCode) (*Address, error)
}

// AddressGeocoder is a general-purpose free-text geocoder.
type AddressGeocoder interface {
	Name() string
	// Geocode returns nil when nothing matched, and an error wrapping
	// ErrRateLimited when throttled.
	Geocode(ctx context.Context, query string) (*geo.Coordinate, error)
}
