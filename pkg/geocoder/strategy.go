package geocoder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tournevent/freight/pkg/geo"
)

// DefaultStageTimeout bounds a single free-text geocoding call.
const DefaultStageTimeout = 10 * time.Second

// Outcome tags the result of one stage.
type Outcome int

const (
	// Skipped means the stage had nothing to offer; try the next one.
	Skipped Outcome = iota
	// Found carries a coordinate; resolution stops.
	Found
	// RateLimited means the provider throttled us; try the next one.
	RateLimited
	// NotFound is terminal; later stages are not consulted.
	NotFound
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case RateLimited:
		return "rate_limited"
	case NotFound:
		return "not_found"
	default:
		return "skipped"
	}
}

// Result is the tagged outcome of a stage. Err is diagnostic only.
type Result struct {
	Outcome    Outcome
	Coordinate geo.Coordinate
	Err        error
}

func found(c geo.Coordinate) Result { return Result{Outcome: Found, Coordinate: c} }

func skipped(err error) Result { return Result{Outcome: Skipped, Err: err} }

// Strategy is one stage of the fallback chain.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, attempt *Attempt) Result
}

// Attempt carries per-resolution state shared by the stages. The address
// lookup runs at most once per attempt.
type Attempt struct {
	PostalCode geo.PostalCode

	lookup  AddressLookup
	looked  bool
	address *Address
	err     error
}

// NewAttempt starts a resolution for cep.
func NewAttempt(cep geo.PostalCode, lookup AddressLookup) *Attempt {
	return &Attempt{PostalCode: cep, lookup: lookup}
}

// Address returns the registered address for the postal code.
func (a *Attempt) Address(ctx context.Context) (*Address, error) {
	if a.looked {
		return a.address, a.err
	}
	a.looked = true

	if a.lookup == nil {
		a.err = fmt.Errorf("no address lookup configured: %w", ErrNotFound)
		return nil, a.err
	}

	a.address, a.err = a.lookup.LookupAddress(ctx, a.PostalCode)
	if a.err == nil && a.address == nil {
		a.err = ErrNotFound
	}
	return a.address, a.err
}

// DirectStrategy asks a postal-code database for coordinates.
type DirectStrategy struct {
	lookup DirectLookup
}

// NewDirectStrategy wraps a DirectLookup as the first stage.
func NewDirectStrategy(lookup DirectLookup) *DirectStrategy {
	return &DirectStrategy{lookup: lookup}
}

func (s *DirectStrategy) Name() string { return "direct:" + s.lookup.Name() }

func (s *DirectStrategy) Resolve(ctx context.Context, attempt *Attempt) Result {
	if !s.lookup.Configured() {
		return skipped(errors.New("provider not configured"))
	}

	coord, err := s.lookup.Lookup(ctx, attempt.PostalCode)
	if err != nil {
		return skipped(err)
	}
	if coord == nil || !coord.Valid() {
		return skipped(errors.New("no coordinate in response"))
	}
	return found(*coord)
}

// AddressStrategy resolves the street address first, then geocodes it.
type AddressStrategy struct {
	geocoder AddressGeocoder
	timeout  time.Duration
}

// NewAddressStrategy creates the resolve-then-geocode stage.
func NewAddressStrategy(g AddressGeocoder, timeout time.Duration) *AddressStrategy {
	if timeout <= 0 {
		timeout = DefaultStageTimeout
	}
	return &AddressStrategy{geocoder: g, timeout: timeout}
}

func (s *AddressStrategy) Name() string { return "address:" + s.geocoder.Name() }

func (s *AddressStrategy) Resolve(ctx context.Context, attempt *Attempt) Result {
	addr, err := attempt.Address(ctx)
	if err != nil {
		return Result{Outcome: NotFound, Err: err}
	}
	if strings.TrimSpace(addr.Street) == "" {
		return Result{Outcome: NotFound, Err: errors.New("address has no street")}
	}
	return geocodeQuery(ctx, s.geocoder, addr.Query(), s.timeout)
}

// CoarseStrategy geocodes only the city and state of the address.
type CoarseStrategy struct {
	geocoder AddressGeocoder
	timeout  time.Duration
}

// NewCoarseStrategy creates the city-level stage.
func NewCoarseStrategy(g AddressGeocoder, timeout time.Duration) *CoarseStrategy {
	if timeout <= 0 {
		timeout = DefaultStageTimeout
	}
	return &CoarseStrategy{geocoder: g, timeout: timeout}
}

func (s *CoarseStrategy) Name() string { return "coarse:" + s.geocoder.Name() }

func (s *CoarseStrategy) Resolve(ctx context.Context, attempt *Attempt) Result {
	addr, err := attempt.Address(ctx)
	if err != nil {
		return skipped(err)
	}
	if strings.TrimSpace(addr.City) == "" {
		return skipped(errors.New("address has no city"))
	}
	return geocodeQuery(ctx, s.geocoder, addr.CoarseQuery(), s.timeout)
}

func geocodeQuery(ctx context.Context, g AddressGeocoder, query string, timeout time.Duration) Result {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	coord, err := g.Geocode(ctx, query)
	switch {
	case errors.Is(err, ErrRateLimited):
		return Result{Outcome: RateLimited, Err: err}
	case err != nil:
		return skipped(err)
	case coord == nil || !coord.Valid():
		return skipped(fmt.Errorf("no match for %q", query))
	}
	return found(*coord)
}
