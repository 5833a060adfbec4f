package graphql

import (
	"context"
	"time"

	"github.com/tournevent/freight/internal/auth"
	"github.com/tournevent/freight/internal/telemetry"
	"github.com/tournevent/freight/pkg/freight"
	"github.com/tournevent/freight/pkg/geo"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Estimator computes freight estimates.
type Estimator interface {
	Estimate(ctx context.Context, req freight.EstimateRequest) (*freight.Estimate, error)
}

// Resolver is the root resolver for the GraphQL schema.
// It holds dependencies needed by all resolvers.
type Resolver struct {
	Estimator Estimator
	Logger    *otelzap.Logger
	Metrics   *telemetry.Metrics
}

// NewResolver creates a new resolver with the given dependencies.
func NewResolver(estimator Estimator, logger *otelzap.Logger, metrics *telemetry.Metrics) *Resolver {
	return &Resolver{
		Estimator: estimator,
		Logger:    logger,
		Metrics:   metrics,
	}
}

// Health resolves Query.health.
func (r *Resolver) Health(ctx context.Context) (string, error) {
	return "ok", nil
}

// FreightEstimate resolves Query.freightEstimate. The bearer token comes
// from the request context.
func (r *Resolver) FreightEstimate(ctx context.Context, cep string, hint geo.Hint) (*freight.Estimate, error) {
	start := time.Now()

	est, err := r.Estimator.Estimate(ctx, freight.EstimateRequest{
		DestinationPostalCode: cep,
		AuthToken:             auth.TokenFromContext(ctx),
		DestinationHint:       hint,
	})

	code := "OK"
	if err != nil {
		fe := freight.Classify(err)
		code = string(fe.Code)
		r.Logger.Ctx(ctx).Warn("GraphQL freight estimate failed",
			zap.String("cep", cep),
			zap.String("code", code),
			zap.Error(err))
		err = fe
	}
	r.Metrics.RecordEstimate("graphql", code, time.Since(start).Seconds())

	return est, err
}
