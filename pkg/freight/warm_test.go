package freight_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/freight/pkg/freight"
	"github.com/tournevent/freight/pkg/geo"
	geomock "github.com/tournevent/freight/pkg/geocoder/mock"
)

func TestWarmer_WarmOrigins(t *testing.T) {
	paulista := geo.MustPostalCode("01310100")
	unknown := geo.MustPostalCode("99999999")

	store := newMemStore(
		freight.TenantConfig{TenantID: "fresh", OriginPostalCode: defaultOrigin, RatePerKm: 2},
		freight.TenantConfig{
			TenantID:               "cached",
			OriginPostalCode:       paulista,
			RatePerKm:              2,
			CachedOrigin:           ptr(destCoord),
			CachedOriginPostalCode: paulista,
		},
		freight.TenantConfig{
			TenantID:               "moved",
			OriginPostalCode:       paulista,
			RatePerKm:              2,
			CachedOrigin:           ptr(originCoord),
			CachedOriginPostalCode: defaultOrigin,
		},
		freight.TenantConfig{TenantID: "lost", OriginPostalCode: unknown, RatePerKm: 2},
	)

	g := geomock.NewGeocoder(map[geo.PostalCode]geo.Coordinate{
		defaultOrigin: originCoord,
		paulista:      destCoord,
	})

	w := freight.NewWarmer(store, g, freight.NewOriginCache(store), 2, newTestLogger())
	report, err := w.WarmOrigins(context.Background())
	require.NoError(t, err)

	assert.Equal(t, freight.WarmReport{Tenants: 4, Cached: 1, Written: 2, Failed: 1}, report)
	assert.Equal(t, 3, g.Calls())

	moved := store.Config("moved")
	require.NotNil(t, moved.CachedOrigin)
	assert.Equal(t, destCoord, *moved.CachedOrigin)
	assert.Equal(t, paulista, moved.CachedOriginPostalCode)
}

func TestWarmer_ListError(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("connection refused")

	w := freight.NewWarmer(store, geomock.NewGeocoder(nil), freight.NewOriginCache(store), 0, newTestLogger())
	_, err := w.WarmOrigins(context.Background())
	assert.ErrorIs(t, err, store.getErr)
}

func TestWarmer_Cancelled(t *testing.T) {
	store := newMemStore(freight.TenantConfig{TenantID: "fresh", OriginPostalCode: defaultOrigin, RatePerKm: 2})
	g := geomock.NewGeocoder(nil)
	g.OnResolve = func(ctx context.Context, _ geo.PostalCode) (geo.Coordinate, error) {
		return geo.Coordinate{}, ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := freight.NewWarmer(store, g, freight.NewOriginCache(store), 1, newTestLogger())
	_, err := w.WarmOrigins(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWarmer_LogsCarryTenantFields(t *testing.T) {
	logger, logs := newObservedLogger()
	store := newMemStore(freight.TenantConfig{TenantID: "acme", OriginPostalCode: defaultOrigin, RatePerKm: 2})
	g := geomock.NewGeocoder(map[geo.PostalCode]geo.Coordinate{defaultOrigin: originCoord})

	_, err := freight.NewWarmer(store, g, freight.NewOriginCache(store), 1, logger).WarmOrigins(context.Background())
	require.NoError(t, err)

	entries := logs.FilterMessage("Stored origin coordinate").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "acme", fields["tenant_id"])
	assert.Equal(t, "06653010", fields["origin_cep"])
}
