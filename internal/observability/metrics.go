// Package observability provides Prometheus metrics for the labeling service.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all metric collectors for the application.
type Metrics struct {
	registry *prometheus.Registry

	// Classification counters, partitioned by outcome (ok, service_error,
	// parse_error).
	ClassificationsTotal *prometheus.CounterVec
	ClassificationTime   *prometheus.HistogramVec

	// Review workflow counters.
	ConfirmationsTotal *prometheus.CounterVec // partitioned by resulting status
	DisagreementsTotal prometheus.Counter

	// Re-analysis run counters, partitioned by item outcome.
	ReanalysisItemsTotal *prometheus.CounterVec
	ReanalysisRunsTotal  prometheus.Counter
}

// NewMetrics creates a Metrics instance with all collectors registered on a
// private registry.
func NewMetrics() (*Metrics, error) {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.ClassificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "huelab_classifications_total",
			Help: "Total number of classification calls partitioned by outcome.",
		},
		[]string{"outcome"},
	)
	m.ClassificationTime = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "huelab_classification_duration_seconds",
			Help:    "Time taken by one classification service call.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"outcome"},
	)
	m.ConfirmationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "huelab_confirmations_total",
			Help: "Total number of human confirmations partitioned by resulting status.",
		},
		[]string{"status"},
	)
	m.DisagreementsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "huelab_disagreements_total",
			Help: "Total number of corrections that diverged from the AI prediction.",
		},
	)
	m.ReanalysisItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "huelab_reanalysis_items_total",
			Help: "Total number of re-analyzed records partitioned by outcome.",
		},
		[]string{"outcome"},
	)
	m.ReanalysisRunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "huelab_reanalysis_runs_total",
			Help: "Total number of re-analysis runs started.",
		},
	)

	collectors := []prometheus.Collector{
		m.ClassificationsTotal,
		m.ClassificationTime,
		m.ConfirmationsTotal,
		m.DisagreementsTotal,
		m.ReanalysisItemsTotal,
		m.ReanalysisRunsTotal,
	}
	for _, c := range collectors {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metrics collector: %w", err)
		}
	}
	return m, nil
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}
