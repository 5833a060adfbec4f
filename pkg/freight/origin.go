package freight

import (
	"context"

	"github.com/tournevent/freight/pkg/geo"
)

// OriginCache serves a tenant's origin coordinate from its stored config and
// writes fresh geocoding results back.
type OriginCache struct {
	store TenantStore
}

// NewOriginCache creates an origin cache. A nil store disables writes.
func NewOriginCache(store TenantStore) *OriginCache {
	return &OriginCache{store: store}
}

// Lookup returns the cached origin when it belongs to the configured postal code.
func (o *OriginCache) Lookup(cfg TenantConfig) (geo.Coordinate, bool) {
	if cfg.CachedOrigin == nil || cfg.CachedOriginPostalCode != cfg.OriginPostalCode {
		return geo.Coordinate{}, false
	}
	if !cfg.CachedOrigin.Valid() {
		return geo.Coordinate{}, false
	}
	return *cfg.CachedOrigin, true
}

// PersistResult reports what a best-effort cache write did.
type PersistResult struct {
	Written bool
	Skipped string
	Err     error
}

// Persist upserts the coordinate when it is missing or differs from the
// stored one. Failures are reported, never returned.
func (o *OriginCache) Persist(ctx context.Context, cfg TenantConfig, c geo.Coordinate) PersistResult {
	switch {
	case cfg.IsDefault():
		return PersistResult{Skipped: "default config"}
	case o.store == nil:
		return PersistResult{Skipped: "no store"}
	}

	if cached, ok := o.Lookup(cfg); ok && cached.Equal(c) {
		return PersistResult{Skipped: "unchanged"}
	}

	if err := o.store.SaveOriginCoordinate(ctx, cfg.TenantID, cfg.OriginPostalCode, c); err != nil {
		return PersistResult{Err: err}
	}
	return PersistResult{Written: true}
}
