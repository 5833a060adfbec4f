// Package mock provides in-memory geocoding providers for tests.
package mock

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/tournevent/freight/pkg/geo"
	"github.com/tournevent/freight/pkg/geocoder"
)

// Geocoder is a mock geocoder.Geocoder backed by a map.
type Geocoder struct {
	Coordinates map[geo.PostalCode]geo.Coordinate
	OnResolve   func(ctx context.Context, cep geo.PostalCode) (geo.Coordinate, error)

	calls atomic.Int32
}

// NewGeocoder creates a mock geocoder that knows the given coordinates.
func NewGeocoder(known map[geo.PostalCode]geo.Coordinate) *Geocoder {
	if known == nil {
		known = make(map[geo.PostalCode]geo.Coordinate)
	}
	return &Geocoder{Coordinates: known}
}

// Resolve returns the known coordinate or geocoder.ErrNotFound.
func (g *Geocoder) Resolve(ctx context.Context, cep geo.PostalCode) (geo.Coordinate, error) {
	g.calls.Add(1)
	if g.OnResolve != nil {
		return g.OnResolve(ctx, cep)
	}
	if c, ok := g.Coordinates[cep]; ok {
		return c, nil
	}
	return geo.Coordinate{}, fmt.Errorf("%w: %s", geocoder.ErrNotFound, cep)
}

// Calls returns how many times Resolve ran.
func (g *Geocoder) Calls() int {
	return int(g.calls.Load())
}

// Direct is a mock geocoder.DirectLookup.
type Direct struct {
	ProviderName string
	Unconfigured bool
	OnLookup     func(ctx context.Context, cep geo.PostalCode) (*geo.Coordinate, error)

	calls atomic.Int32
}

func (d *Direct) Name() string {
	if d.ProviderName == "" {
		return "mock-direct"
	}
	return d.ProviderName
}

func (d *Direct) Configured() bool { return !d.Unconfigured }

func (d *Direct) Lookup(ctx context.Context, cep geo.PostalCode) (*geo.Coordinate, error) {
	d.calls.Add(1)
	if d.OnLookup != nil {
		return d.OnLookup(ctx, cep)
	}
	return nil, nil
}

// Calls returns how many times Lookup ran.
func (d *Direct) Calls() int { return int(d.calls.Load()) }

// Lookup is a mock geocoder.AddressLookup.
type Lookup struct {
	Addresses map[geo.PostalCode]geocoder.Address
	OnLookup  func(ctx context.Context, cep geo.PostalCode) (*geocoder.Address, error)

	calls atomic.Int32
}

func (l *Lookup) Name() string { return "mock-lookup" }

func (l *Lookup) LookupAddress(ctx context.Context, cep geo.PostalCode) (*geocoder.Address, error) {
	l.calls.Add(1)
	if l.OnLookup != nil {
		return l.OnLookup(ctx, cep)
	}
	if a, ok := l.Addresses[cep]; ok {
		return &a, nil
	}
	return nil, geocoder.ErrNotFound
}

// Calls returns how many times LookupAddress ran.
func (l *Lookup) Calls() int { return int(l.calls.Load()) }

// AddressGeocoder is a mock geocoder.AddressGeocoder keyed by query text.
type AddressGeocoder struct {
	Results   map[string]geo.Coordinate
	OnGeocode func(ctx context.Context, query string) (*geo.Coordinate, error)

	queries []string
}

func (g *AddressGeocoder) Name() string { return "mock-geocoder" }

func (g *AddressGeocoder) Geocode(ctx context.Context, query string) (*geo.Coordinate, error) {
	g.queries = append(g.queries, query)
	if g.OnGeocode != nil {
		return g.OnGeocode(ctx, query)
	}
	if c, ok := g.Results[query]; ok {
		return &c, nil
	}
	return nil, nil
}

// Queries returns every query received, in order.
func (g *AddressGeocoder) Queries() []string { return g.queries }

var (
	_ geocoder.Geocoder        = (*Geocoder)(nil)
	_ geocoder.DirectLookup    = (*Direct)(nil)
	_ geocoder.AddressLookup   = (*Lookup)(nil)
	_ geocoder.AddressGeocoder = (*AddressGeocoder)(nil)
)
