package freight_test

import (
	"context"
	"errors"
	"sync"

	"github.com/tournevent/freight/pkg/freight"
	"github.com/tournevent/freight/pkg/geo"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var (
	defaultOrigin = geo.MustPostalCode("06653010")
	defaults      = freight.Defaults{OriginPostalCode: defaultOrigin, RatePerKm: 2.00}
	originCoord   = geo.Coordinate{Lat: -23.5327, Lng: -46.9243}
	destCoord     = geo.Coordinate{Lat: -23.5614, Lng: -46.6559}
)

func newTestLogger() *otelzap.Logger {
	return otelzap.New(zap.NewNop())
}

func newObservedLogger() (*otelzap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return otelzap.New(zap.New(core)), logs
}

type memStore struct {
	mu      sync.Mutex
	configs map[string]freight.TenantConfig
	saves   int
	getErr  error
	saveErr error
}

func newMemStore(configs ...freight.TenantConfig) *memStore {
	s := &memStore{configs: make(map[string]freight.TenantConfig)}
	for _, c := range configs {
		s.configs[c.TenantID] = c
	}
	return s
}

func (s *memStore) GetTenantConfig(_ context.Context, tenantID string) (*freight.TenantConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	c, ok := s.configs[tenantID]
	if !ok {
		return nil, freight.ErrTenantNotFound
	}
	return &c, nil
}

func (s *memStore) SaveOriginCoordinate(_ context.Context, tenantID string, cep geo.PostalCode, c geo.Coordinate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	cfg := s.configs[tenantID]
	cfg.TenantID = tenantID
	cfg.CachedOrigin = &c
	cfg.CachedOriginPostalCode = cep
	s.configs[tenantID] = cfg
	return nil
}

func (s *memStore) ListTenantConfigs(_ context.Context) ([]freight.TenantConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	out := make([]freight.TenantConfig, 0, len(s.configs))
	for _, c := range s.configs {
		out = append(out, c)
	}
	return out, nil
}

func (s *memStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *memStore) Config(tenantID string) freight.TenantConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configs[tenantID]
}

// tokenVerifier treats "token-<id>" as a valid token for tenant <id>.
type tokenVerifier struct{}

var errBadToken = errors.New("bad token")

func (tokenVerifier) TenantID(token string) (string, error) {
	const prefix = "token-"
	if len(token) <= len(prefix) || token[:len(prefix)] != prefix {
		return "", errBadToken
	}
	return token[len(prefix):], nil
}

type memCache struct {
	mu     sync.Mutex
	items  map[geo.PostalCode]geo.Coordinate
	getErr error
	setErr error
	sets   int
}

func newMemCache() *memCache {
	return &memCache{items: make(map[geo.PostalCode]geo.Coordinate)}
}

func (c *memCache) Get(_ context.Context, cep geo.PostalCode) (geo.Coordinate, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return geo.Coordinate{}, false, c.getErr
	}
	v, ok := c.items[cep]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, cep geo.PostalCode, v geo.Coordinate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	if c.setErr != nil {
		return c.setErr
	}
	c.items[cep] = v
	return nil
}

func ptr[T any](v T) *T {
	return &v
}
