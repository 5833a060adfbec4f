package telemetry_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/freight/internal/telemetry"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := telemetry.NewMetrics(reg)

	m.RecordEstimate("http", "OK", 0.2)
	m.RecordEstimate("http", "OK", 0.3)
	m.RecordEstimate("graphql", "CEP_NOT_FOUND", 0.1)
	m.RecordProviderCall("direct:cepaberto", "found")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EstimatesTotal.WithLabelValues("http", "OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EstimatesTotal.WithLabelValues("graphql", "CEP_NOT_FOUND")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderCalls.WithLabelValues("direct:cepaberto", "found")))

	count, err := testutil.GatherAndCount(reg, "freight_estimate_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestNewMetrics_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		telemetry.NewMetrics(prometheus.NewRegistry())
		telemetry.NewMetrics(prometheus.NewRegistry())
	})
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "INFO", "warn", "error", "bogus"} {
		logger, err := telemetry.NewLogger(level, "freight")
		require.NoError(t, err, level)
		assert.NotNil(t, logger)
	}
}

func TestInitTracer_Disabled(t *testing.T) {
	tracer, shutdown, err := telemetry.InitTracer(context.Background(), false, "", "freight", nil)
	require.NoError(t, err)
	require.NotNil(t, tracer)

	_, span := tracer.Start(context.Background(), "test")
	span.End()
	assert.NoError(t, shutdown(context.Background()))
}
