package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/tournevent/freight/internal/auth"
	"github.com/tournevent/freight/internal/cache"
	"github.com/tournevent/freight/internal/config"
	"github.com/tournevent/freight/internal/secrets"
	"github.com/tournevent/freight/internal/server"
	"github.com/tournevent/freight/internal/store"
	"github.com/tournevent/freight/internal/telemetry"
	"github.com/tournevent/freight/pkg/freight"
	"github.com/tournevent/freight/pkg/geocoder"
	"github.com/tournevent/freight/pkg/geocoder/cepaberto"
	"github.com/tournevent/freight/pkg/geocoder/googlegeo"
	"github.com/tournevent/freight/pkg/geocoder/nominatim"
	"github.com/tournevent/freight/pkg/geocoder/viacep"
	"github.com/tournevent/freight/pkg/routing/openroute"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// runtime holds everything a command may need. Optional pieces stay nil
// when their configuration is absent.
type runtime struct {
	cfg      *config.Config
	logger   *otelzap.Logger
	tracer   trace.Tracer
	registry *prometheus.Registry
	metrics  *telemetry.Metrics
	db       *store.DB
	redis    *redis.Client

	closers []func(context.Context) error
}

func (rt *runtime) Close(ctx context.Context) {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			rt.logger.Warn("Shutdown step failed", zap.Error(err))
		}
	}
	_ = rt.logger.Sync()
}

// initRuntime loads configuration, secrets and telemetry.
func initRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, logger: logger}

	if err := applySecrets(ctx, cfg, logger); err != nil {
		return nil, err
	}

	tracer, shutdown, err := telemetry.InitTracer(ctx, cfg.OTELEnabled, cfg.OTELEndpoint, cfg.ServiceName, cfg.Attributes())
	if err != nil {
		logger.Warn("Failed to initialize tracer", zap.Error(err))
		tracer, shutdown, _ = telemetry.InitTracer(ctx, false, "", cfg.ServiceName, nil)
	}
	rt.tracer = tracer
	rt.closers = append(rt.closers, shutdown)

	rt.registry = prometheus.NewRegistry()
	rt.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rt.metrics = telemetry.NewMetrics(rt.registry)

	return rt, nil
}

func applySecrets(ctx context.Context, cfg *config.Config, logger *otelzap.Logger) error {
	if cfg.SecretsManagerSecretID == "" {
		return nil
	}
	client, err := secrets.New(ctx)
	if err != nil {
		return err
	}
	values, err := client.Values(ctx, cfg.SecretsManagerSecretID)
	if err != nil {
		return err
	}
	applied := cfg.ApplySecrets(values)
	logger.Info("Applied credentials from Secrets Manager",
		zap.String("secret_id", cfg.SecretsManagerSecretID),
		zap.Strings("keys", applied))
	return nil
}

// requireDB opens the tenant database or fails when it is not configured.
func (rt *runtime) requireDB(ctx context.Context) (*store.DB, error) {
	if rt.db != nil {
		return rt.db, nil
	}
	if rt.cfg.DatabaseURL == "" {
		return nil, freight.NewError(freight.CodeConfiguration, "DATABASE_URL is required for this command")
	}
	db, err := store.Open(ctx, rt.cfg.DatabaseURL, rt.cfg.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	rt.db = db
	rt.closers = append(rt.closers, func(context.Context) error {
		db.Close()
		return nil
	})
	return db, nil
}

// optionalDB opens the tenant database when configured.
func (rt *runtime) optionalDB(ctx context.Context) (*store.DB, error) {
	if rt.cfg.DatabaseURL == "" {
		rt.logger.Warn("DATABASE_URL not set, every request uses the default freight config")
		return nil, nil
	}
	return rt.requireDB(ctx)
}

// optionalRedis connects to the shared destination cache when configured.
func (rt *runtime) optionalRedis(ctx context.Context) (*redis.Client, error) {
	if rt.cfg.RedisURL == "" {
		return nil, nil
	}
	client, err := cache.NewRedisClient(ctx, rt.cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	rt.redis = client
	rt.closers = append(rt.closers, func(context.Context) error { return client.Close() })
	return client, nil
}

// initGeocoder builds the ordered fallback chain.
func (rt *runtime) initGeocoder() (*geocoder.Chain, error) {
	cfg := rt.cfg

	lookup := viacep.New(viacep.Config{
		BaseURL: cfg.ViaCEPBaseURL,
		Timeout: cfg.OutboundTimeout,
		UseMock: cfg.ViaCEPUseMock,
	}, rt.logger, rt.tracer)

	chain := geocoder.NewChain(lookup, rt.logger, rt.tracer)
	chain.OnResult = func(strategy string, outcome geocoder.Outcome) {
		rt.metrics.RecordProviderCall(strategy, outcome.String())
	}

	chain.Register(geocoder.NewDirectStrategy(cepaberto.New(cepaberto.Config{
		Token:   cfg.CEPAbertoToken,
		BaseURL: cfg.CEPAbertoBaseURL,
		Timeout: cfg.OutboundTimeout,
		UseMock: cfg.CEPAbertoUseMock,
	}, rt.logger, rt.tracer)))

	general, err := rt.initAddressGeocoder()
	if err != nil {
		return nil, err
	}
	chain.Register(geocoder.NewAddressStrategy(general, cfg.OutboundTimeout))
	chain.Register(geocoder.NewCoarseStrategy(general, cfg.OutboundTimeout))

	rt.logger.Info("Geocoder chain ready", zap.Strings("stages", chain.Names()))
	return chain, nil
}

func (rt *runtime) initAddressGeocoder() (geocoder.AddressGeocoder, error) {
	cfg := rt.cfg
	if cfg.GoogleMapsAPIKey != "" {
		return googlegeo.New(googlegeo.Config{
			APIKey:  cfg.GoogleMapsAPIKey,
			Timeout: cfg.OutboundTimeout,
		}, rt.logger, rt.tracer)
	}
	return nominatim.New(nominatim.Config{
		BaseURL:   cfg.NominatimBaseURL,
		UserAgent: cfg.NominatimUserAgent,
		Timeout:   cfg.OutboundTimeout,
		UseMock:   cfg.NominatimUseMock,
	}, rt.logger, rt.tracer), nil
}

func (rt *runtime) initVerifier() (freight.TokenVerifier, error) {
	if rt.cfg.TokenSymmetricKey == "" {
		rt.logger.Warn("TOKEN_SYMMETRIC_KEY not set, bearer tokens are ignored")
		return nil, nil
	}
	maker, err := auth.NewPasetoMaker(rt.cfg.TokenSymmetricKey)
	if err != nil {
		return nil, err
	}
	return maker, nil
}

// engineDeps is the engine plus the readiness checks of what it talks to.
type engineDeps struct {
	engine *freight.Engine
	checks map[string]server.Pinger
}

// initEngine wires the full estimation pipeline. The routing credential is
// checked here so commands fail fast.
func (rt *runtime) initEngine(ctx context.Context) (*engineDeps, error) {
	cfg := rt.cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	deps := &engineDeps{checks: make(map[string]server.Pinger)}

	var tenantStore freight.TenantStore
	db, err := rt.optionalDB(ctx)
	if err != nil {
		return nil, err
	}
	if db != nil {
		tenantStore = store.NewTenantStore(db.SQL)
		deps.checks["postgres"] = server.PingFunc(db.Ping)
	}

	var destination freight.DestinationCache
	rdb, err := rt.optionalRedis(ctx)
	if err != nil {
		return nil, err
	}
	if rdb != nil {
		dc := cache.NewDestinationCache(rdb, cfg.DestinationCacheTTL)
		destination = dc
		deps.checks["redis"] = server.PingFunc(dc.Ping)
	}

	verifier, err := rt.initVerifier()
	if err != nil {
		return nil, err
	}

	chain, err := rt.initGeocoder()
	if err != nil {
		return nil, err
	}

	router := openroute.New(openroute.Config{
		APIKey:  cfg.ORSAPIKey,
		BaseURL: cfg.ORSBaseURL,
		Profile: cfg.ORSProfile,
		Timeout: cfg.OutboundTimeout,
		UseMock: cfg.ORSUseMock,
	}, rt.logger, rt.tracer)

	deps.engine = freight.NewEngine(freight.EngineConfig{
		Tenants:     freight.NewTenantResolver(verifier, tenantStore, cfg.Defaults(), cfg.OutboundTimeout, rt.logger),
		Origins:     freight.NewOriginCache(tenantStore),
		Geocoder:    chain,
		Router:      router,
		Destination: destination,
		Budget:      cfg.RequestBudget,
	}, rt.logger, rt.tracer)

	return deps, nil
}
