// Package viacep resolves postal codes to street addresses using ViaCEP.
package viacep

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tournevent/freight/pkg/geo"
	"github.com/tournevent/freight/pkg/geocoder"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const providerName = "viacep"

// Config holds ViaCEP configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
	UseMock bool
}

// Client adapts ViaCEP to geocoder.AddressLookup.
type Client struct {
	config    Config
	apiClient APIClient
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a ViaCEP client.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	var apiClient APIClient
	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL: cfg.BaseURL,
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

// LookupAddress returns the registered address or geocoder.ErrNotFound.
func (c *Client) LookupAddress(ctx context.Context, cep geo.PostalCode) (*geocoder.Address, error) {
	ctx, span := c.tracer.Start(ctx, "viacep.LookupAddress",
		trace.WithAttributes(attribute.String("cep", cep.String())))
	defer span.End()

	resp, err := c.apiClient.GetAddress(ctx, cep.String())
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest {
			return nil, fmt.Errorf("%w: %s rejected by viacep", geocoder.ErrNotFound, cep)
		}
		c.logger.Ctx(ctx).Warn("ViaCEP API error", zap.String("cep", cep.String()), zap.Error(err))
		return nil, err
	}

	if resp.Erro {
		return nil, fmt.Errorf("%w: %s", geocoder.ErrNotFound, cep)
	}

	return &geocoder.Address{
		PostalCode:   cep,
		Street:       resp.Logradouro,
		Neighborhood: resp.Bairro,
		City:         resp.Localidade,
		State:        resp.UF,
	}, nil
}

var _ geocoder.AddressLookup = (*Client)(nil)
