package store_test

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/freight/internal/store"
	"github.com/tournevent/freight/pkg/freight"
	"github.com/tournevent/freight/pkg/geo"
)

var columns = []string{"tenant_id", "origin_cep", "rate_per_km", "origin_lat", "origin_lng", "origin_coords_cep", "updated_at"}

func newMock(t *testing.T) (*store.TenantStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return store.NewTenantStore(db), mock
}

func TestTenantStore_GetTenantConfig(t *testing.T) {
	s, mock := newMock(t)
	updated := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM tenant_freight_config WHERE tenant_id = $1`)).
		WithArgs("acme").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("acme", "06653010", "2.50", -23.5327, -46.9243, "06653010", updated))

	cfg, err := s.GetTenantConfig(context.Background(), "acme")
	require.NoError(t, err)

	assert.Equal(t, "acme", cfg.TenantID)
	assert.Equal(t, geo.PostalCode("06653010"), cfg.OriginPostalCode)
	assert.Equal(t, 2.5, cfg.RatePerKm)
	require.NotNil(t, cfg.CachedOrigin)
	assert.Equal(t, geo.Coordinate{Lat: -23.5327, Lng: -46.9243}, *cfg.CachedOrigin)
	assert.Equal(t, geo.PostalCode("06653010"), cfg.CachedOriginPostalCode)
	assert.Equal(t, updated, cfg.UpdatedAt)
}

func TestTenantStore_GetTenantConfig_NoCoordinates(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM tenant_freight_config WHERE tenant_id = $1`)).
		WithArgs("acme").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("acme", "06653010", 2.0, nil, nil, nil, time.Now()))

	cfg, err := s.GetTenantConfig(context.Background(), "acme")
	require.NoError(t, err)
	assert.Nil(t, cfg.CachedOrigin)
	assert.Empty(t, cfg.CachedOriginPostalCode)
}

func TestTenantStore_GetTenantConfig_NotFound(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM tenant_freight_config WHERE tenant_id = $1`)).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetTenantConfig(context.Background(), "ghost")
	assert.ErrorIs(t, err, freight.ErrTenantNotFound)
}

func TestTenantStore_GetTenantConfig_Error(t *testing.T) {
	s, mock := newMock(t)
	boom := errors.New("connection reset")

	mock.ExpectQuery(regexp.QuoteMeta(`FROM tenant_freight_config WHERE tenant_id = $1`)).
		WithArgs("acme").
		WillReturnError(boom)

	_, err := s.GetTenantConfig(context.Background(), "acme")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, freight.ErrTenantNotFound)
}

func TestTenantStore_ListTenantConfigs(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM tenant_freight_config ORDER BY tenant_id`)).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("a", "01310100", "1.00", nil, nil, nil, time.Now()).
			AddRow("b", "06653010", "3.25", -23.5, -46.9, "06653010", time.Now()))

	list, err := s.ListTenantConfigs(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].TenantID)
	assert.Nil(t, list[0].CachedOrigin)
	assert.Equal(t, 3.25, list[1].RatePerKm)
	assert.NotNil(t, list[1].CachedOrigin)
}

func TestTenantStore_SaveOriginCoordinate(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE tenant_freight_config`)).
		WithArgs("acme", -23.5, -46.9, "06653010").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.SaveOriginCoordinate(context.Background(), "acme", "06653010", geo.Coordinate{Lat: -23.5, Lng: -46.9})
	assert.NoError(t, err)
}

func TestTenantStore_SaveOriginCoordinate_NoRow(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE tenant_freight_config`)).
		WithArgs("acme", -23.5, -46.9, "06653010").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.SaveOriginCoordinate(context.Background(), "acme", "06653010", geo.Coordinate{Lat: -23.5, Lng: -46.9})
	assert.ErrorIs(t, err, freight.ErrTenantNotFound)
}

func TestTenantStore_UpsertTenantConfig(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO tenant_freight_config`)).
		WithArgs("acme", "01310100", "2.75").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.UpsertTenantConfig(context.Background(), freight.TenantConfig{
		TenantID:         "acme",
		OriginPostalCode: "01310100",
		RatePerKm:        2.75,
	})
	assert.NoError(t, err)
}

func TestTenantStore_UpsertTenantConfig_Invalid(t *testing.T) {
	s, _ := newMock(t)

	err := s.UpsertTenantConfig(context.Background(), freight.TenantConfig{
		TenantID:         "acme",
		OriginPostalCode: "0131",
		RatePerKm:        2.75,
	})
	assert.Error(t, err)
}
