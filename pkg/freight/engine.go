package freight

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tournevent/freight/pkg/geo"
	"github.com/tournevent/freight/pkg/geocoder"
	"github.com/tournevent/freight/pkg/routing"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// DefaultBudget bounds a whole estimate.
const DefaultBudget = 45 * time.Second

// Side identifies which end of the route failed to geocode.
type Side string

const (
	SideOrigin      Side = "origin"
	SideDestination Side = "destination"
)

// EngineConfig wires the engine's collaborators. Tenants, Geocoder and
// Router are required; the rest are optional.
type EngineConfig struct {
	Tenants     *TenantResolver
	Origins     *OriginCache
	Geocoder    geocoder.Geocoder
	Router      routing.Router
	Destination DestinationCache
	Budget      time.Duration
}

// Engine computes freight estimates.
type Engine struct {
	tenants     *TenantResolver
	origins     *OriginCache
	geocoder    geocoder.Geocoder
	router      routing.Router
	destination DestinationCache
	budget      time.Duration
	logger      *otelzap.Logger
	tracer      trace.Tracer
}

// NewEngine creates an engine.
func NewEngine(cfg EngineConfig, logger *otelzap.Logger, tracer trace.Tracer) *Engine {
	if cfg.Budget <= 0 {
		cfg.Budget = DefaultBudget
	}
	if cfg.Origins == nil {
		cfg.Origins = NewOriginCache(nil)
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("freight")
	}
	return &Engine{
		tenants:     cfg.Tenants,
		origins:     cfg.Origins,
		geocoder:    cfg.Geocoder,
		router:      cfg.Router,
		destination: cfg.Destination,
		budget:      cfg.Budget,
		logger:      logger,
		tracer:      tracer,
	}
}

// Estimate validates the destination, resolves both ends of the route and
// prices the road distance with the tenant's rate. Every error it returns
// is a *Error.
func (e *Engine) Estimate(ctx context.Context, req EstimateRequest) (*Estimate, error) {
	ctx, cancel := context.WithTimeout(ctx, e.budget)
	defer cancel()

	ctx, span := e.tracer.Start(ctx, "freight.Estimate")
	defer span.End()

	est, err := e.estimate(ctx, req)
	if err != nil {
		fe := Classify(err)
		span.RecordError(fe)
		span.SetStatus(codes.Error, string(fe.Code))
		return nil, fe
	}

	span.SetAttributes(
		attribute.Float64("distance_km", est.DistanceKm),
		attribute.Float64("price", est.Price),
	)
	return est, nil
}

func (e *Engine) estimate(ctx context.Context, req EstimateRequest) (*Estimate, error) {
	dest, err := geo.NormalizePostalCode(req.DestinationPostalCode)
	if err != nil {
		return nil, NewError(CodeInvalidCEP, "destination postal code must have 8 digits").
			WithDetail("cep", req.DestinationPostalCode).
			WithCause(err)
	}

	trace.SpanFromContext(ctx).SetAttributes(attribute.String("destination_cep", dest.String()))

	cfg := e.tenants.Resolve(ctx, req.AuthToken)
	if err := cfg.Validate(); err != nil {
		return nil, NewError(CodeConfiguration, "freight configuration is invalid").WithCause(err)
	}

	log := e.logger.Ctx(ctx).WithOptions(zap.Fields(
		zap.String("tenant_id", cfg.TenantID),
		zap.String("origin_cep", cfg.OriginPostalCode.String()),
		zap.String("destination_cep", dest.String()),
	))

	origin, err := e.resolveOrigin(ctx, cfg)
	if err != nil {
		return nil, geocodeFailure(err, SideOrigin, cfg.OriginPostalCode)
	}

	destination, err := e.resolveDestination(ctx, dest, req.DestinationHint)
	if err != nil {
		return nil, geocodeFailure(err, SideDestination, dest)
	}

	distance, err := e.router.Distance(ctx, origin, destination)
	if err != nil {
		return nil, err
	}

	est := &Estimate{
		DistanceKm:            distance,
		Price:                 Price(distance, cfg.RatePerKm),
		OriginPostalCode:      cfg.OriginPostalCode,
		DestinationPostalCode: dest,
		OriginCoordinate:      origin,
		DestinationCoordinate: destination,
		RatePerKm:             cfg.RatePerKm,
		TenantID:              cfg.TenantID,
	}

	log.Debug("Freight estimated",
		zap.Float64("distance_km", est.DistanceKm),
		zap.Float64("price", est.Price))

	return est, nil
}

func (e *Engine) resolveOrigin(ctx context.Context, cfg TenantConfig) (geo.Coordinate, error) {
	if c, ok := e.origins.Lookup(cfg); ok {
		return c, nil
	}

	c, err := e.geocoder.Resolve(ctx, cfg.OriginPostalCode)
	if err != nil {
		return geo.Coordinate{}, err
	}

	res := e.origins.Persist(ctx, cfg, c)
	log := e.logger.Ctx(ctx)
	switch {
	case res.Err != nil:
		log.Warn("Failed to cache origin coordinate",
			zap.String("tenant_id", cfg.TenantID), zap.Error(res.Err))
	case res.Written:
		log.Debug("Cached origin coordinate", zap.String("tenant_id", cfg.TenantID))
	}

	return c, nil
}

func (e *Engine) resolveDestination(ctx context.Context, cep geo.PostalCode, hint geo.Hint) (geo.Coordinate, error) {
	if c, ok := hint.Coordinate(); ok {
		return c, nil
	}

	log := e.logger.Ctx(ctx)

	if e.destination != nil {
		c, ok, err := e.destination.Get(ctx, cep)
		switch {
		case err != nil:
			log.Warn("Destination cache read failed", zap.String("cep", cep.String()), zap.Error(err))
		case ok:
			return c, nil
		}
	}

	c, err := e.geocoder.Resolve(ctx, cep)
	if err != nil {
		return geo.Coordinate{}, err
	}

	if e.destination != nil {
		if err := e.destination.Set(ctx, cep, c); err != nil {
			log.Warn("Destination cache write failed", zap.String("cep", cep.String()), zap.Error(err))
		}
	}

	return c, nil
}

// geocodeFailure tags a miss with the side of the route it happened on.
// Timeouts and cancellations keep their own classification.
func geocodeFailure(err error, side Side, cep geo.PostalCode) error {
	if !errors.Is(err, geocoder.ErrNotFound) {
		return err
	}
	return NewError(CodeCEPNotFound, fmt.Sprintf("%s postal code %s could not be geocoded", side, cep.Formatted())).
		WithDetail("side", string(side)).
		WithDetail("cep", cep.String()).
		WithCause(err)
}
