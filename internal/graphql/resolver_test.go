package graphql_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/freight/internal/auth"
	"github.com/tournevent/freight/internal/graphql"
	"github.com/tournevent/freight/internal/telemetry"
	"github.com/tournevent/freight/pkg/freight"
	"github.com/tournevent/freight/pkg/geo"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

type fakeEstimator struct {
	last freight.EstimateRequest
	err  error
}

func (f *fakeEstimator) Estimate(_ context.Context, req freight.EstimateRequest) (*freight.Estimate, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	cep, err := geo.NormalizePostalCode(req.DestinationPostalCode)
	if err != nil {
		return nil, freight.NewError(freight.CodeInvalidCEP, "destination postal code must have 8 digits")
	}
	return &freight.Estimate{
		DistanceKm:            12.34,
		Price:                 24.68,
		OriginPostalCode:      "06653010",
		DestinationPostalCode: cep,
		OriginCoordinate:      geo.Coordinate{Lat: -23.53, Lng: -46.92},
		DestinationCoordinate: geo.Coordinate{Lat: -23.56, Lng: -46.65},
	}, nil
}

func newTestExecutor(t *testing.T) (*graphql.Executor, *fakeEstimator, *telemetry.Metrics) {
	t.Helper()

	estimator := &fakeEstimator{}
	logger := otelzap.New(zap.NewNop())
	metrics := telemetry.NewMetrics(prometheus.NewRegistry())

	exec, err := graphql.NewExecutor(graphql.NewResolver(estimator, logger, metrics), logger)
	require.NoError(t, err)
	return exec, estimator, metrics
}

func TestResolver_Health(t *testing.T) {
	resolver := graphql.NewResolver(nil, otelzap.New(zap.NewNop()), nil)
	health, err := resolver.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", health)
}

func TestExecutor_Health(t *testing.T) {
	exec, _, _ := newTestExecutor(t)

	status, resp := exec.Execute(context.Background(), graphql.Request{Query: `{ health __typename }`})
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, resp.Errors)
	assert.Equal(t, map[string]any{"health": "ok", "__typename": "Query"}, resp.Data)
}

func TestExecutor_FreightEstimate(t *testing.T) {
	exec, estimator, metrics := newTestExecutor(t)

	ctx := auth.WithToken(context.Background(), "v2.local.token")
	status, resp := exec.Execute(ctx, graphql.Request{
		Query: `query Estimate($cep: String!, $hint: CoordinateInput) {
			freightEstimate(cep: $cep, hint: $hint) {
				valorFrete
				km: distanceKm
				cepDestino
				destinoCoords { lat lng }
			}
		}`,
		Variables: map[string]any{
			"cep":  "12345-678",
			"hint": map[string]any{"lat": -23.56, "lng": -46.65},
		},
	})

	require.Equal(t, http.StatusOK, status)
	require.Empty(t, resp.Errors)
	assert.Equal(t, map[string]any{
		"freightEstimate": map[string]any{
			"valorFrete":    24.68,
			"km":            12.34,
			"cepDestino":    "12345678",
			"destinoCoords": map[string]any{"lat": -23.56, "lng": -46.65},
		},
	}, resp.Data)

	assert.Equal(t, "12345-678", estimator.last.DestinationPostalCode)
	assert.Equal(t, "v2.local.token", estimator.last.AuthToken)
	c, ok := estimator.last.DestinationHint.Coordinate()
	require.True(t, ok)
	assert.Equal(t, geo.Coordinate{Lat: -23.56, Lng: -46.65}, c)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.EstimatesTotal.WithLabelValues("graphql", "OK")))
}

func TestExecutor_FreightEstimate_LiteralArgs(t *testing.T) {
	exec, estimator, _ := newTestExecutor(t)

	status, resp := exec.Execute(context.Background(), graphql.Request{
		Query: `{ freightEstimate(cep: "01310100", hint: {lat: -23, lng: null}) { cepOrigem } }`,
	})

	require.Equal(t, http.StatusOK, status)
	require.Empty(t, resp.Errors)
	require.NotNil(t, estimator.last.DestinationHint.Lat)
	assert.Equal(t, -23.0, *estimator.last.DestinationHint.Lat)
	assert.Nil(t, estimator.last.DestinationHint.Lng)
}

func TestExecutor_ClassifiedError(t *testing.T) {
	exec, estimator, metrics := newTestExecutor(t)
	estimator.err = freight.NewError(freight.CodeCEPNotFound, "destination postal code 12345-678 could not be geocoded").
		WithDetail("side", "destination")

	status, resp := exec.Execute(context.Background(), graphql.Request{
		Query: `{ freightEstimate(cep: "12345678") { valorFrete } }`,
	})

	assert.Equal(t, http.StatusOK, status)
	assert.Nil(t, resp.Data)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "CEP_NOT_FOUND", resp.Errors[0].Extensions["code"])
	assert.Equal(t, http.StatusNotFound, resp.Errors[0].Extensions["statusCode"])
	assert.Equal(t, []string{"freightEstimate"}, resp.Errors[0].Path)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.EstimatesTotal.WithLabelValues("graphql", "CEP_NOT_FOUND")))
}

func TestExecutor_ValidationErrors(t *testing.T) {
	exec, _, _ := newTestExecutor(t)

	tests := []struct {
		name string
		req  graphql.Request
	}{
		{"syntax", graphql.Request{Query: `{ health `}},
		{"unknown field", graphql.Request{Query: `{ carriers }`}},
		{"missing required arg", graphql.Request{Query: `{ freightEstimate { valorFrete } }`}},
		{"missing variable", graphql.Request{Query: `query($cep: String!) { freightEstimate(cep: $cep) { valorFrete } }`}},
		{"unknown operation", graphql.Request{Query: `query A { health } query B { health }`, OperationName: "C"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := exec.Execute(context.Background(), tt.req)
			assert.Equal(t, http.StatusBadRequest, status)
			require.NotEmpty(t, resp.Errors)
			assert.Equal(t, "INVALID_REQUEST", resp.Errors[0].Extensions["code"])
		})
	}
}

func TestExecutor_Directives(t *testing.T) {
	exec, _, _ := newTestExecutor(t)

	status, resp := exec.Execute(context.Background(), graphql.Request{
		Query:     `query($skip: Boolean!) { health @skip(if: $skip) ...F } fragment F on Query { __typename }`,
		Variables: map[string]any{"skip": true},
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"__typename": "Query"}, resp.Data)
}

func TestExecutor_ServeHTTP(t *testing.T) {
	exec, _, _ := newTestExecutor(t)

	t.Run("method not allowed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		exec.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/graphql", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("invalid json", func(t *testing.T) {
		rec := httptest.NewRecorder()
		exec.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewBufferString("{")))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("query", func(t *testing.T) {
		body, _ := json.Marshal(graphql.Request{Query: `{ health }`})
		rec := httptest.NewRecorder()
		exec.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(body)))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"data":{"health":"ok"}}`, rec.Body.String())
	})
}
