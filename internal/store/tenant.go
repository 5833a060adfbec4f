package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tournevent/freight/pkg/freight"
	"github.com/tournevent/freight/pkg/geo"
)

const tenantColumns = `tenant_id, origin_cep, rate_per_km, origin_lat, origin_lng, origin_coords_cep, updated_at`

// TenantStore implements freight.TenantStore over database/sql.
type TenantStore struct {
	db *sql.DB
}

// NewTenantStore creates a tenant store.
func NewTenantStore(db *sql.DB) *TenantStore {
	return &TenantStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTenant(row rowScanner) (*freight.TenantConfig, error) {
	var (
		tenantID  string
		originCEP string
		rate      decimal.Decimal
		lat, lng  sql.NullFloat64
		coordsCEP sql.NullString
		updatedAt time.Time
	)
	if err := row.Scan(&tenantID, &originCEP, &rate, &lat, &lng, &coordsCEP, &updatedAt); err != nil {
		return nil, err
	}

	cfg := &freight.TenantConfig{
		TenantID:         tenantID,
		OriginPostalCode: geo.PostalCode(originCEP),
		RatePerKm:        rate.InexactFloat64(),
		UpdatedAt:        updatedAt,
	}
	if lat.Valid && lng.Valid && coordsCEP.Valid {
		cfg.CachedOrigin = &geo.Coordinate{Lat: lat.Float64, Lng: lng.Float64}
		cfg.CachedOriginPostalCode = geo.PostalCode(coordsCEP.String)
	}
	return cfg, nil
}

// GetTenantConfig loads one tenant's configuration.
func (s *TenantStore) GetTenantConfig(ctx context.Context, tenantID string) (*freight.TenantConfig, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM tenant_freight_config WHERE tenant_id = $1`, tenantID)

	cfg, err := scanTenant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, freight.ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant config: %w", err)
	}
	return cfg, nil
}

// ListTenantConfigs returns every tenant ordered by id.
func (s *TenantStore) ListTenantConfigs(ctx context.Context) ([]freight.TenantConfig, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+tenantColumns+` FROM tenant_freight_config ORDER BY tenant_id`)
	if err != nil {
		return nil, fmt.Errorf("list tenant configs: %w", err)
	}
	defer rows.Close()

	var out []freight.TenantConfig
	for rows.Next() {
		cfg, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant config: %w", err)
		}
		out = append(out, *cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tenant configs: %w", err)
	}
	return out, nil
}

// SaveOriginCoordinate stores the geocoded origin for the tenant's current
// origin postal code.
func (s *TenantStore) SaveOriginCoordinate(ctx context.Context, tenantID string, cep geo.PostalCode, c geo.Coordinate) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tenant_freight_config
		SET origin_lat = $2, origin_lng = $3, origin_coords_cep = $4, updated_at = now()
		WHERE tenant_id = $1 AND origin_cep = $4`,
		tenantID, c.Lat, c.Lng, cep.String())
	if err != nil {
		return fmt.Errorf("save origin coordinate: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save origin coordinate: %w", err)
	}
	if n == 0 {
		return freight.ErrTenantNotFound
	}
	return nil
}

// UpsertTenantConfig creates or updates a tenant's origin and rate. A changed
// origin postal code invalidates the cached coordinate.
func (s *TenantStore) UpsertTenantConfig(ctx context.Context, cfg freight.TenantConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tenant_freight_config (tenant_id, origin_cep, rate_per_km, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (tenant_id) DO UPDATE SET
			origin_cep = EXCLUDED.origin_cep,
			rate_per_km = EXCLUDED.rate_per_km,
			origin_lat = CASE WHEN tenant_freight_config.origin_cep = EXCLUDED.origin_cep THEN tenant_freight_config.origin_lat END,
			origin_lng = CASE WHEN tenant_freight_config.origin_cep = EXCLUDED.origin_cep THEN tenant_freight_config.origin_lng END,
			origin_coords_cep = CASE WHEN tenant_freight_config.origin_cep = EXCLUDED.origin_cep THEN tenant_freight_config.origin_coords_cep END,
			updated_at = now()`,
		cfg.TenantID, cfg.OriginPostalCode.String(), decimal.NewFromFloat(cfg.RatePerKm).Round(2).String())
	if err != nil {
		return fmt.Errorf("upsert tenant config: %w", err)
	}
	return nil
}

var (
	_ freight.TenantStore  = (*TenantStore)(nil)
	_ freight.TenantLister = (*TenantStore)(nil)
)
