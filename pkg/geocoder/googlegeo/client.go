// Package googlegeo geocodes free-text addresses with the Google Maps
// Geocoding API.
package googlegeo

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tournevent/freight/pkg/geo"
	"github.com/tournevent/freight/pkg/geocoder"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"googlemaps.github.io/maps"
)

const providerName = "googlemaps"

// Statuses that mean the key is throttled or blocked rather than the query failing.
var throttledStatuses = []string{"OVER_QUERY_LIMIT", "OVER_DAILY_LIMIT", "REQUEST_DENIED"}

// GeocodeAPI is the subset of *maps.Client used here.
type GeocodeAPI interface {
	Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

// Config holds Google Maps configuration.
type Config struct {
	APIKey  string
	BaseURL string // overrides https://maps.googleapis.com
	Timeout time.Duration
}

// Client adapts Google Maps to geocoder.AddressGeocoder.
type Client struct {
	api    GeocodeAPI
	logger *otelzap.Logger
	tracer trace.Tracer
}

// New creates a Google Maps geocoder.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) (*Client, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	opts := []maps.ClientOption{
		maps.WithAPIKey(cfg.APIKey),
		maps.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, maps.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")))
	}

	mc, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating google maps client: %w", err)
	}
	return NewWithAPI(mc, logger, tracer), nil
}

// NewWithAPI creates a client with a custom API implementation.
func NewWithAPI(api GeocodeAPI, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer(providerName)
	}
	return &Client{api: api, logger: logger, tracer: tracer}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return providerName
}

// Geocode returns the first result for query restricted to Brazil.
func (c *Client) Geocode(ctx context.Context, query string) (*geo.Coordinate, error) {
	ctx, span := c.tracer.Start(ctx, "googlemaps.Geocode")
	defer span.End()

	results, err := c.api.Geocode(ctx, &maps.GeocodingRequest{
		Address: query,
		Region:  "br",
		Components: map[maps.Component]string{
			maps.ComponentCountry: "BR",
		},
	})
	if err != nil {
		if isThrottled(err) {
			c.logger.Ctx(ctx).Warn("Google Maps quota exceeded", zap.Error(err))
			return nil, fmt.Errorf("%w: %v", geocoder.ErrRateLimited, err)
		}
		c.logger.Ctx(ctx).Warn("Google Maps API error", zap.String("query", query), zap.Error(err))
		return nil, err
	}

	if len(results) == 0 {
		return nil, nil
	}
	loc := results[0].Geometry.Location
	return &geo.Coordinate{Lat: loc.Lat, Lng: loc.Lng}, nil
}

// The library reports non-OK statuses as "maps: STATUS - message".
func isThrottled(err error) bool {
	msg := err.Error()
	for _, s := range throttledStatuses {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

var _ geocoder.AddressGeocoder = (*Client)(nil)
