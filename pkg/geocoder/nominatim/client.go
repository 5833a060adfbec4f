// Package nominatim geocodes free-text addresses with OpenStreetMap Nominatim.
package nominatim

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/tournevent/freight/pkg/geo"
	"github.com/tournevent/freight/pkg/geocoder"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const providerName = "nominatim"

// Config holds Nominatim configuration.
type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	UseMock   bool
}

// Client adapts Nominatim to geocoder.AddressGeocoder.
type Client struct {
	config    Config
	apiClient APIClient
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a Nominatim client.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	var apiClient APIClient
	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL:   cfg.BaseURL,
			UserAgent: cfg.UserAgent,
			Timeout:   cfg.Timeout,
		})
	}
	return NewWithAPIClient(cfg, apiClient, logger, tracer)
}

// NewWithAPIClient creates a client with a custom API client.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer(providerName)
	}
	return &Client{
		config:    cfg,
		apiClient: apiClient,
		logger:    logger,
		tracer:    tracer,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return providerName
}

// Geocode returns the best match for query, nil when nothing matched.
// HTTP 429 and 403 are reported as geocoder.ErrRateLimited.
func (c *Client) Geocode(ctx context.Context, query string) (*geo.Coordinate, error) {
	ctx, span := c.tracer.Start(ctx, "nominatim.Geocode")
	defer span.End()

	places, err := c.apiClient.Search(ctx, &SearchRequest{
		Query:        query,
		Limit:        1,
		CountryCodes: "br",
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) &&
			(apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode == http.StatusForbidden) {
			c.logger.Ctx(ctx).Warn("Nominatim rate limited", zap.Int("status", apiErr.StatusCode))
			return nil, fmt.Errorf("%w: %v", geocoder.ErrRateLimited, err)
		}
		c.logger.Ctx(ctx).Warn("Nominatim API error", zap.String("query", query), zap.Error(err))
		return nil, err
	}

	if len(places) == 0 {
		return nil, nil
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("nominatim: bad latitude %q: %w", places[0].Lat, err)
	}
	lng, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("nominatim: bad longitude %q: %w", places[0].Lon, err)
	}
	return &geo.Coordinate{Lat: lat, Lng: lng}, nil
}

var _ geocoder.AddressGeocoder = (*Client)(nil)
