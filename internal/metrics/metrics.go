// Package metrics exposes Prometheus instrumentation for the recommendation
// pipeline: embedding calls, index builds, recommendation outcomes and report
// delivery.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecommendationsTotal counts recommendation requests by outcome
	// ("matched", "no_match", "invalid_input", "model_unavailable", "error").
	RecommendationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sadhana_recommendations_total",
			Help: "Total number of recommendation requests by outcome",
		},
		[]string{"outcome"},
	)

	RecommendationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sadhana_recommendation_duration_seconds",
			Help:    "End-to-end duration of the match and filter pipeline",
			Buckets: prometheus.DefBuckets,
		},
	)

	RecommendedPoses = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sadhana_recommended_poses",
			Help:    "Number of poses returned per recommendation",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
	)

	EmbeddingRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sadhana_embedding_requests_total",
			Help: "Total number of embedding calls by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	ModelLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sadhana_model_loads_total",
			Help: "Total number of embedding model initialization attempts",
		},
		[]string{"provider", "outcome"},
	)

	IndexBuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sadhana_index_builds_total",
			Help: "Total number of similarity index builds",
		},
		[]string{"backend", "outcome"},
	)

	IndexSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sadhana_index_labels",
			Help: "Number of benefit labels in the current similarity index",
		},
	)

	CatalogPoses = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sadhana_catalog_poses",
			Help: "Number of poses in the loaded catalog",
		},
	)

	ReportDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sadhana_report_deliveries_total",
			Help: "Total number of emailed reports by outcome",
		},
		[]string{"outcome"},
	)

	BusConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sadhana_event_bus_connected",
		Help: "1 while the NATS event bus connection is up",
	})

	BusReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sadhana_event_bus_reconnects_total",
		Help: "Total number of NATS reconnects",
	})
)
