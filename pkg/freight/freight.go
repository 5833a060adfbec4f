// Package freight prices a delivery from a tenant's origin to a destination
// postal code using road distance and a per-kilometer rate.
package freight

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tournevent/freight/pkg/geo"
)

// ErrTenantNotFound is returned by a TenantStore for unknown tenants.
var ErrTenantNotFound = errors.New("tenant freight config not found")

// TenantConfig is a tenant's freight configuration. CachedOrigin is only
// meaningful while CachedOriginPostalCode equals OriginPostalCode.
type TenantConfig struct {
	TenantID               string
	OriginPostalCode       geo.PostalCode
	RatePerKm              float64
	CachedOrigin           *geo.Coordinate
	CachedOriginPostalCode geo.PostalCode
	UpdatedAt              time.Time
}

// Validate checks the record invariants.
func (c TenantConfig) Validate() error {
	if !c.OriginPostalCode.Valid() {
		return fmt.Errorf("origin postal code %q is not 8 digits", c.OriginPostalCode)
	}
	if !(c.RatePerKm > 0) {
		return fmt.Errorf("rate per km must be positive, got %v", c.RatePerKm)
	}
	return nil
}

// IsDefault reports whether the config is the system default.
func (c TenantConfig) IsDefault() bool {
	return c.TenantID == ""
}

// Defaults is the configuration used when no tenant record applies.
type Defaults struct {
	OriginPostalCode geo.PostalCode
	RatePerKm        float64
}

// Config returns the defaults as an anonymous tenant config.
func (d Defaults) Config() TenantConfig {
	return TenantConfig{
		OriginPostalCode: d.OriginPostalCode,
		RatePerKm:        d.RatePerKm,
	}
}

// EstimateRequest is the input of Engine.Estimate.
type EstimateRequest struct {
	DestinationPostalCode string
	AuthToken             string
	DestinationHint       geo.Hint
}

// Estimate is a priced route from origin to destination.
type Estimate struct {
	DistanceKm            float64        `json:"distanceKm"`
	Price                 float64        `json:"valorFrete"`
	OriginPostalCode      geo.PostalCode `json:"cepOrigem"`
	DestinationPostalCode geo.PostalCode `json:"cepDestino"`
	OriginCoordinate      geo.Coordinate `json:"origemCoords"`
	DestinationCoordinate geo.Coordinate `json:"destinoCoords"`
	RatePerKm             float64        `json:"-"`
	TenantID              string         `json:"-"`
}

// Price returns distanceKm * ratePerKm rounded half away from zero to cents.
func Price(distanceKm, ratePerKm float64) float64 {
	p, _ := decimal.NewFromFloat(distanceKm).
		Mul(decimal.NewFromFloat(ratePerKm)).
		Round(2).
		Float64()
	return p
}

// TenantStore persists tenant freight configuration.
type TenantStore interface {
	// GetTenantConfig returns ErrTenantNotFound for unknown tenants.
	GetTenantConfig(ctx context.Context, tenantID string) (*TenantConfig, error)
	// SaveOriginCoordinate upserts the cached origin coordinate.
	SaveOriginCoordinate(ctx context.Context, tenantID string, cep geo.PostalCode, c geo.Coordinate) error
}

// TenantLister enumerates tenants for batch jobs.
type TenantLister interface {
	ListTenantConfigs(ctx context.Context) ([]TenantConfig, error)
}

// TokenVerifier extracts the tenant identity from a bearer token.
type TokenVerifier interface {
	TenantID(token string) (string, error)
}

// DestinationCache is an optional shared postal-code to coordinate cache.
type DestinationCache interface {
	Get(ctx context.Context, cep geo.PostalCode) (geo.Coordinate, bool, error)
	Set(ctx context.Context, cep geo.PostalCode, c geo.Coordinate) error
}
