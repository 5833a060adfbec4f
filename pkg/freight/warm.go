package freight

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/tournevent/freight/pkg/geocoder"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultWarmConcurrency bounds concurrent geocoding while warming origins.
const DefaultWarmConcurrency = 4

// WarmReport summarizes a WarmOrigins run.
type WarmReport struct {
	Tenants int
	Cached  int
	Written int
	Failed  int
}

// Warmer fills missing or stale origin coordinates for every tenant.
type Warmer struct {
	lister      TenantLister
	geocoder    geocoder.Geocoder
	origins     *OriginCache
	concurrency int
	logger      *otelzap.Logger
}

// NewWarmer creates a Warmer.
func NewWarmer(lister TenantLister, g geocoder.Geocoder, origins *OriginCache, concurrency int, logger *otelzap.Logger) *Warmer {
	if concurrency <= 0 {
		concurrency = DefaultWarmConcurrency
	}
	return &Warmer{
		lister:      lister,
		geocoder:    g,
		origins:     origins,
		concurrency: concurrency,
		logger:      logger,
	}
}

// WarmOrigins geocodes every tenant origin that has no usable cached
// coordinate. Per-tenant failures are counted, not returned.
func (w *Warmer) WarmOrigins(ctx context.Context) (WarmReport, error) {
	tenants, err := w.lister.ListTenantConfigs(ctx)
	if err != nil {
		return WarmReport{}, fmt.Errorf("list tenants: %w", err)
	}

	var cached, written, failed atomic.Int32

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)

	for _, cfg := range tenants {
		if _, ok := w.origins.Lookup(cfg); ok {
			cached.Add(1)
			continue
		}

		g.Go(func() error {
			log := w.logger.Ctx(ctx).WithOptions(zap.Fields(
				zap.String("tenant_id", cfg.TenantID),
				zap.String("origin_cep", cfg.OriginPostalCode.String()),
			))

			if err := cfg.Validate(); err != nil {
				failed.Add(1)
				log.Warn("Skipping invalid tenant config", zap.Error(err))
				return nil
			}

			c, err := w.geocoder.Resolve(ctx, cfg.OriginPostalCode)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				failed.Add(1)
				log.Warn("Failed to geocode origin", zap.Error(err))
				return nil
			}

			res := w.origins.Persist(ctx, cfg, c)
			switch {
			case res.Err != nil:
				failed.Add(1)
				log.Warn("Failed to store origin coordinate", zap.Error(res.Err))
			case res.Written:
				written.Add(1)
				log.Info("Stored origin coordinate", zap.Stringer("coordinate", c))
			}
			return nil
		})
	}

	err = g.Wait()

	report := WarmReport{
		Tenants: len(tenants),
		Cached:  int(cached.Load()),
		Written: int(written.Load()),
		Failed:  int(failed.Load()),
	}
	return report, err
}
