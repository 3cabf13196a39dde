// Package metrics defines the Prometheus collectors used by the triage
// service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	PredictionsTotal     *prometheus.CounterVec
	PredictionLatency    *prometheus.HistogramVec
	ModelPredictions     *prometheus.CounterVec
	AgreementTotal       *prometheus.CounterVec
	UnknownSymptoms      prometheus.Counter
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	ModelAccuracy        *prometheus.GaugeVec
	ModelTrainSeconds    *prometheus.GaugeVec
	CorpusRows           *prometheus.GaugeVec
	EventsDroppedTotal   prometheus.Counter
	EventsConsumedTotal  *prometheus.CounterVec
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates all collectors and registers them with reg. Pass
// prometheus.DefaultRegisterer in services and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		PredictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triage_predictions_total",
				Help: "Prediction requests by outcome (ok, rejected, error).",
			},
			[]string{"outcome"},
		),
		PredictionLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "triage_prediction_latency_seconds",
				Help:    "End-to-end prediction latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
			},
			[]string{"cache_status"},
		),
		ModelPredictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triage_model_predictions_total",
				Help: "Diseases predicted, by model.",
			},
			[]string{"model", "disease"},
		),
		AgreementTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triage_model_agreement_total",
				Help: "Predictions by how many models agreed (unanimous, majority, split).",
			},
			[]string{"agreement"},
		),
		UnknownSymptoms: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "triage_unknown_symptoms_total",
				Help: "Symptom names ignored because they are not in the vocabulary.",
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of prediction cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of prediction cache misses.",
			},
		),
		ModelAccuracy: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "triage_model_accuracy",
				Help: "Held-out accuracy per model, measured at startup.",
			},
			[]string{"model"},
		),
		ModelTrainSeconds: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "triage_model_train_seconds",
				Help: "Time spent training each model at startup.",
			},
			[]string{"model"},
		),
		CorpusRows: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "triage_corpus_rows",
				Help: "Corpus rows by source and cleaning stage (read, kept, sampled).",
			},
			[]string{"source", "stage"},
		),
		EventsDroppedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "triage_analytics_events_dropped_total",
				Help: "Prediction events dropped because the collector buffer was full.",
			},
		),
		EventsConsumedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triage_analytics_events_consumed_total",
				Help: "Prediction events read from Kafka by outcome (processed, skipped, failed).",
			},
			[]string{"outcome"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.PredictionsTotal,
		m.PredictionLatency,
		m.ModelPredictions,
		m.AgreementTotal,
		m.UnknownSymptoms,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.ModelAccuracy,
		m.ModelTrainSeconds,
		m.CorpusRows,
		m.EventsDroppedTotal,
		m.EventsConsumedTotal,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
