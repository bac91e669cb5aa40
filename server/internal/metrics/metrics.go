// Package metrics defines the Prometheus instrumentation of the prediction
// service and its HTTP surface.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "delaycast"

// Request outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeEmpty    = "empty"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics holds every collector the service updates.
type Metrics struct {
	// Requests counts prediction requests by outcome.
	Requests *prometheus.CounterVec
	// Flights counts flights classified.
	Flights prometheus.Counter
	// Predictions counts emitted labels. Labels: label (0, 1)
	Predictions *prometheus.CounterVec
	// ValidationFailures counts rejected fields. Labels: field (OPERA, TIPOVUELO, MES)
	ValidationFailures *prometheus.CounterVec
	// Fallbacks counts flights answered by the untrained all-zero fallback.
	Fallbacks prometheus.Counter
	// CacheHits counts flights answered from the prediction cache.
	CacheHits prometheus.Counter
	// PredictDuration observes service-level prediction latency.
	PredictDuration prometheus.Histogram
	// HTTPDuration observes handler latency. Labels: path, code
	HTTPDuration *prometheus.HistogramVec
	// ModelTrained is 1 once a model has been fitted.
	ModelTrained prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New registers the collectors with reg. When reg is nil a fresh registry is
// used, which keeps tests isolated from the global default.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Prediction requests by outcome.",
		}, []string{"outcome"}),
		Flights: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flights_total",
			Help:      "Flights classified.",
		}),
		Predictions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Predicted labels by value.",
		}, []string{"label"}),
		ValidationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Flight fields rejected by the domain validator.",
		}, []string{"field"}),
		Fallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_predictions_total",
			Help:      "Flights answered with the untrained all-zero fallback.",
		}),
		CacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Flights answered from the prediction cache.",
		}),
		PredictDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "predict_duration_seconds",
			Help:      "Time spent validating, encoding and classifying one batch.",
			Buckets:   []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1},
		}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP handler latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path", "code"}),
		ModelTrained: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_trained",
			Help:      "1 when a fitted model is serving predictions.",
		}),
		gatherer: reg,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
