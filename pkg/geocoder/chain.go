package geocoder

import (
	"context"
	"fmt"
	"sync"

	"github.com/tournevent/freight/pkg/geo"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// Chain runs its strategies in registration order until one finds a
// coordinate or reports a terminal miss.
type Chain struct {
	strategies []Strategy
	lookup     AddressLookup
	logger     *otelzap.Logger
	tracer     trace.Tracer
	mu         sync.RWMutex

	// OnResult is called after every stage, e.g. to record metrics.
	OnResult func(strategy string, outcome Outcome)
}

// NewChain creates an empty chain. lookup feeds the address-based stages.
func NewChain(lookup AddressLookup, logger *otelzap.Logger, tracer trace.Tracer) *Chain {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("geocoder")
	}
	return &Chain{
		lookup: lookup,
		logger: logger,
		tracer: tracer,
	}
}

// Register appends a stage to the chain.
func (c *Chain) Register(s Strategy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.strategies = append(c.strategies, s)
}

// Names returns the stage names in order.
func (c *Chain) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.strategies))
	for _, s := range c.strategies {
		names = append(names, s.Name())
	}
	return names
}

// Count returns the number of registered stages.
func (c *Chain) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.strategies)
}

// Resolve implements Geocoder. Caller cancellation and deadlines are returned
// as errors wrapping the context error; every other provider failure is a
// stage miss.
func (c *Chain) Resolve(ctx context.Context, cep geo.PostalCode) (geo.Coordinate, error) {
	c.mu.RLock()
	strategies := make([]Strategy, len(c.strategies))
	copy(strategies, c.strategies)
	c.mu.RUnlock()

	if len(strategies) == 0 {
		return geo.Coordinate{}, fmt.Errorf("%w: no strategies registered", ErrUnavailable)
	}

	ctx, span := c.tracer.Start(ctx, "geocoder.Resolve",
		trace.WithAttributes(attribute.String("cep", cep.String())))
	defer span.End()

	attempt := NewAttempt(cep, c.lookup)
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return geo.Coordinate{}, fmt.Errorf("geocoding %s: %w", cep, err)
		}

		res := c.run(ctx, s, attempt)
		if res.Outcome == Found {
			return res.Coordinate, nil
		}
		if err := ctx.Err(); err != nil {
			return geo.Coordinate{}, fmt.Errorf("geocoding %s: %w", cep, err)
		}
		if res.Outcome == NotFound {
			return geo.Coordinate{}, fmt.Errorf("%w: %s", ErrNotFound, cep)
		}
	}

	return geo.Coordinate{}, fmt.Errorf("%w: %s", ErrNotFound, cep)
}

func (c *Chain) run(ctx context.Context, s Strategy, attempt *Attempt) Result {
	ctx, span := c.tracer.Start(ctx, "geocoder.stage",
		trace.WithAttributes(attribute.String("stage", s.Name())))
	defer span.End()

	res := s.Resolve(ctx, attempt)
	span.SetAttributes(attribute.String("outcome", res.Outcome.String()))

	fields := []zap.Field{
		zap.String("stage", s.Name()),
		zap.String("cep", attempt.PostalCode.String()),
		zap.Stringer("outcome", res.Outcome),
	}
	if res.Err != nil {
		fields = append(fields, zap.Error(res.Err))
	}
	c.logger.Ctx(ctx).Debug("Geocoding stage finished", fields...)

	if c.OnResult != nil {
		c.OnResult(s.Name(), res.Outcome)
	}
	return res
}

var _ Geocoder = (*Chain)(nil)
