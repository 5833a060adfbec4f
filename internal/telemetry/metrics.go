package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	EstimatesTotal   *prometheus.CounterVec
	EstimateDuration *prometheus.HistogramVec
	ProviderCalls    *prometheus.CounterVec
}

// NewMetrics creates metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EstimatesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freight_estimates_total",
				Help: "Total number of freight estimates by surface and result code",
			},
			[]string{"surface", "code"},
		),
		EstimateDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "freight_estimate_duration_seconds",
				Help:    "Freight estimate duration in seconds by surface",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 45},
			},
			[]string{"surface"},
		),
		ProviderCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freight_provider_calls_total",
				Help: "Total geocoding stage results by stage and outcome",
			},
			[]string{"provider", "outcome"},
		),
	}
}

// RecordEstimate records one estimate. code is "OK" on success.
func (m *Metrics) RecordEstimate(surface, code string, seconds float64) {
	m.EstimatesTotal.WithLabelValues(surface, code).Inc()
	m.EstimateDuration.WithLabelValues(surface).Observe(seconds)
}

// RecordProviderCall records a geocoding stage outcome.
func (m *Metrics) RecordProviderCall(provider, outcome string) {
	m.ProviderCalls.WithLabelValues(provider, outcome).Inc()
}
