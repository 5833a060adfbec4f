package freight

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// TenantResolver maps a bearer token to the tenant's freight configuration.
// It never fails: every problem degrades to the defaults.
type TenantResolver struct {
	verifier TokenVerifier
	store    TenantStore
	defaults Defaults
	timeout  time.Duration
	logger   *otelzap.Logger
}

// NewTenantResolver creates a resolver. verifier and store may be nil, in
// which case every request gets the defaults.
func NewTenantResolver(verifier TokenVerifier, store TenantStore, defaults Defaults, timeout time.Duration, logger *otelzap.Logger) *TenantResolver {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TenantResolver{
		verifier: verifier,
		store:    store,
		defaults: defaults,
		timeout:  timeout,
		logger:   logger,
	}
}

// Defaults returns the system default configuration.
func (r *TenantResolver) Defaults() TenantConfig {
	return r.defaults.Config()
}

// Resolve returns the tenant's configuration or the defaults.
func (r *TenantResolver) Resolve(ctx context.Context, token string) TenantConfig {
	if token == "" || r.verifier == nil || r.store == nil {
		return r.Defaults()
	}

	log := r.logger.Ctx(ctx)

	tenantID, err := r.verifier.TenantID(token)
	if err != nil {
		log.Warn("Rejected auth token, using default freight config", zap.Error(err))
		return r.Defaults()
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cfg, err := r.store.GetTenantConfig(ctx, tenantID)
	switch {
	case errors.Is(err, ErrTenantNotFound):
		log.Info("No freight config for tenant, using defaults", zap.String("tenant_id", tenantID))
		return r.Defaults()
	case err != nil:
		log.Warn("Failed to load tenant freight config, using defaults",
			zap.String("tenant_id", tenantID), zap.Error(err))
		return r.Defaults()
	case cfg == nil:
		return r.Defaults()
	}

	if err := cfg.Validate(); err != nil {
		log.Warn("Invalid tenant freight config, using defaults",
			zap.String("tenant_id", tenantID), zap.Error(err))
		return r.Defaults()
	}

	cfg.TenantID = tenantID
	return *cfg
}
