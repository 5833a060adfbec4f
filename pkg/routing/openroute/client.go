// Package openroute computes driving distances with OpenRouteService.
package openroute

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/tournevent/freight/pkg/freight"
	"github.com/tournevent/freight/pkg/geo"
	"github.com/tournevent/freight/pkg/routing"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const providerName = "openrouteservice"

// Config holds OpenRouteService configuration.
type Config struct {
	APIKey  string
	BaseURL string
	Profile string
	Timeout time.Duration
	UseMock bool
}

// Client adapts OpenRouteService to routing.Router and classifies every
// failure into a *freight.Error.
type Client struct {
	config    Config
	apiClient APIClient
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates an OpenRouteService client.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	var apiClient APIClient
	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout,
		})
	}
	return NewWithAPIClient(cfg, apiClient, logger, tracer)
}

// NewWithAPIClient creates a client with a custom API client.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Profile == "" {
		cfg.Profile = DefaultProfile
	}
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

// Distance returns the driving distance in kilometers, rounded to 2 decimals.
func (c *Client) Distance(ctx context.Context, origin, destination geo.Coordinate) (float64, error) {
	if c.config.APIKey == "" && !c.config.UseMock {
		return 0, freight.NewError(freight.CodeConfiguration, "routing API key is not configured")
	}

	ctx, span := c.tracer.Start(ctx, "openroute.Distance", trace.WithAttributes(
		attribute.String("origin", origin.String()),
		attribute.String("destination", destination.String()),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	resp, err := c.apiClient.Directions(ctx, &DirectionsRequest{
		Profile: c.config.Profile,
		Start:   origin,
		End:     destination,
	})
	if err != nil {
		fe := classify(err)
		span.SetStatus(codes.Error, string(fe.Code))
		c.logger.Ctx(ctx).Warn("OpenRouteService request failed",
			zap.String("code", string(fe.Code)),
			zap.Int("status", fe.StatusCode),
			zap.Error(err),
		)
		return 0, fe
	}

	meters, fe := extractMeters(resp)
	if fe != nil {
		span.SetStatus(codes.Error, string(fe.Code))
		c.logger.Ctx(ctx).Warn("OpenRouteService returned no usable distance", zap.String("reason", fe.Message))
		return 0, fe
	}

	km := routing.MetersToKilometers(meters)
	span.SetAttributes(attribute.Float64("distance_km", km))
	return km, nil
}

func classify(err error) *freight.Error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr)
	}

	if errors.Is(err, ErrMalformedResponse) {
		return freight.NewError(freight.CodeRouteCalculation, "routing service returned a malformed response").
			WithStatusCode(http.StatusBadGateway).
			WithCause(err)
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return freight.NewError(freight.CodeServiceUnavailable, "routing service timed out").
			WithStatusCode(http.StatusGatewayTimeout).
			WithCause(err)
	}
	if errors.Is(err, context.Canceled) {
		return freight.NewError(freight.CodeServiceUnavailable, "routing request was aborted").
			WithStatusCode(http.StatusGatewayTimeout).
			WithCause(err)
	}

	return freight.NewError(freight.CodeServiceUnavailable, "routing service is unreachable").
		WithStatusCode(http.StatusGatewayTimeout).
		WithCause(err)
}

func classifyStatus(apiErr *APIError) *freight.Error {
	var fe *freight.Error
	switch status := apiErr.StatusCode; {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		fe = freight.NewError(freight.CodeRouteCalculation, "routing service rejected the credentials").
			WithStatusCode(status).
			WithDetail("reason", "authentication")
	case status == http.StatusTooManyRequests:
		fe = freight.NewError(freight.CodeRateLimitExceeded, "routing service rate limit exceeded")
	case status == http.StatusBadRequest:
		fe = freight.NewError(freight.CodeRouteCalculation, "routing service rejected the coordinates").
			WithStatusCode(http.StatusBadRequest)
	case status == http.StatusNotFound:
		fe = freight.NewError(freight.CodeRouteCalculation, "no route found between the points").
			WithStatusCode(http.StatusNotFound)
	case status >= 500:
		fe = freight.NewError(freight.CodeServiceUnavailable, "routing service is unavailable")
	default:
		fe = freight.NewError(freight.CodeRouteCalculation, "routing service returned an unexpected status").
			WithStatusCode(http.StatusBadGateway)
	}
	return fe.WithDetail("upstream_status", apiErr.StatusCode).WithCause(apiErr)
}

// extractMeters reads the summary distance, falling back to the sum of the
// segment distances.
func extractMeters(resp *DirectionsResponse) (float64, *freight.Error) {
	if resp == nil || len(resp.Features) == 0 {
		return 0, freight.NewError(freight.CodeRouteCalculation, "no route found between the points").
			WithStatusCode(http.StatusNotFound)
	}

	props := resp.Features[0].Properties
	var meters float64
	switch {
	case props.Summary != nil && props.Summary.Distance != nil:
		meters = *props.Summary.Distance
	case len(props.Segments) > 0:
		for _, seg := range props.Segments {
			if seg.Distance == nil {
				return 0, malformed("segment without distance")
			}
			meters += *seg.Distance
		}
	default:
		return 0, malformed("route has no distance")
	}

	if math.IsNaN(meters) || math.IsInf(meters, 0) || meters < 0 {
		return 0, malformed("route distance is not a valid number")
	}
	return meters, nil
}

func malformed(reason string) *freight.Error {
	return freight.NewError(freight.CodeRouteCalculation, reason).
		WithStatusCode(http.StatusBadGateway)
}

var _ routing.Router = (*Client)(nil)
