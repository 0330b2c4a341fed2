// Package metrics provides Prometheus metrics collection for BlitzWatch.
// It defines the prediction, insight rendering, training and HTTP metrics
// exposed via the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Prediction metrics
	MLPredictions      prometheus.Counter   // Total number of blitz predictions made
	MLFailures         prometheus.Counter   // Total number of prediction failures
	MLInvalidInputs    prometheus.Counter   // Total number of rejected prediction inputs
	MLModelAge         prometheus.Gauge     // Age of the loaded model in seconds
	MLLatency          prometheus.Histogram // Prediction latency in seconds
	MLPredictionScores prometheus.Histogram // Distribution of predicted blitz probabilities

	// Insight metrics
	InsightRenders        *prometheus.CounterVec // Rendered insight plots by kind
	InsightRenderDuration prometheus.Histogram   // Plot rendering duration
	InsightCacheHits      prometheus.Counter     // Insight requests served from cache

	// Training metrics
	TrainingRuns     prometheus.Counter // Completed training runs
	TrainingAccuracy prometheus.Gauge   // Held-out accuracy of the last training run

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec // Requests by route and status code

	// System metrics
	ErrorsTotal prometheus.Counter // Total number of errors encountered
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		MLPredictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_predictions_total",
			Help: "Total number of blitz predictions made",
		}),
		MLFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_failures_total",
			Help: "Total number of prediction failures",
		}),
		MLInvalidInputs: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_invalid_inputs_total",
			Help: "Total number of prediction requests rejected by validation",
		}),
		MLModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ml_model_age_seconds",
			Help: "Age of the loaded model in seconds",
		}),
		MLLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_latency_seconds",
			Help:    "Prediction latency in seconds (validation, encoding and scoring)",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		MLPredictionScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_prediction_scores",
			Help:    "Distribution of predicted blitz probabilities",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		InsightRenders: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "insight_renders_total",
			Help: "Total number of rendered insight plots",
		}, []string{"kind"}),
		InsightRenderDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "insight_render_duration_seconds",
			Help:    "Insight plot rendering duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		InsightCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "insight_cache_hits_total",
			Help: "Total number of insight requests served from cache",
		}),
		TrainingRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "training_runs_total",
			Help: "Total number of completed training runs",
		}),
		TrainingAccuracy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "training_accuracy",
			Help: "Held-out accuracy of the most recent training run",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by route and status code",
		}, []string{"route", "code"}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors encountered",
		}),
	}
}
