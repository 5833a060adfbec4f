// Package cepaberto looks up coordinates directly from the CEP Aberto
// postal-code database.
package cepaberto

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/tournevent/freight/pkg/geo"
	"github.com/tournevent/freight/pkg/geocoder"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const providerName = "cepaberto"

// Config holds CEP Aberto configuration.
type Config struct {
	Token   string
	BaseURL string
	Timeout time.Duration
	UseMock bool // When true, uses mock API client
}

// Client adapts CEP Aberto to geocoder.DirectLookup.
type Client struct {
	config    Config
	apiClient APIClient
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a CEP Aberto client backed by HTTP, or by the mock when
// cfg.UseMock is set.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	var apiClient APIClient
	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL: cfg.BaseURL,
			Token:   cfg.Token,
			Timeout: cfg.Timeout,
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

// Configured reports whether an API token is available.
func (c *Client) Configured() bool {
	return c.config.Token != "" || c.config.UseMock
}

// Lookup returns the coordinate stored for cep, or nil when the record has none.
func (c *Client) Lookup(ctx context.Context, cep geo.PostalCode) (*geo.Coordinate, error) {
	ctx, span := c.tracer.Start(ctx, "cepaberto.Lookup",
		trace.WithAttributes(attribute.String("cep", cep.String())))
	defer span.End()

	resp, err := c.apiClient.GetCEP(ctx, cep.String())
	if err != nil {
		c.logger.Ctx(ctx).Warn("CEP Aberto API error", zap.String("cep", cep.String()), zap.Error(err))
		return nil, err
	}

	coord, err := responseCoordinate(resp)
	if err != nil {
		c.logger.Ctx(ctx).Warn("CEP Aberto returned unusable coordinates",
			zap.String("cep", cep.String()), zap.Error(err))
		return nil, nil
	}
	return coord, nil
}

func responseCoordinate(resp *CEPResponse) (*geo.Coordinate, error) {
	if resp == nil || resp.Latitude == "" || resp.Longitude == "" {
		return nil, fmt.Errorf("no coordinate fields")
	}
	lat, err := strconv.ParseFloat(string(resp.Latitude), 64)
	if err != nil {
		return nil, fmt.Errorf("latitude: %w", err)
	}
	lng, err := strconv.ParseFloat(string(resp.Longitude), 64)
	if err != nil {
		return nil, fmt.Errorf("longitude: %w", err)
	}

	c := geo.Coordinate{Lat: lat, Lng: lng}
	if !c.Valid() {
		return nil, fmt.Errorf("coordinate out of range: %s", c)
	}
	return &c, nil
}

var _ geocoder.DirectLookup = (*Client)(nil)
