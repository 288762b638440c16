// Package metrics exposes Prometheus instrumentation for the price pipeline
// and the analysis service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"CryptoLens/internal/collector"
	"CryptoLens/internal/model"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	Registry *prometheus.Registry

	ProviderAttempts *prometheus.CounterVec   // labels: provider, outcome
	ProviderLatency  *prometheus.HistogramVec // labels: provider
	CacheLookups     *prometheus.CounterVec   // labels: result=hit|miss
	Exhaustions      prometheus.Counter
	BreakerState     *prometheus.GaugeVec // labels: provider; 0=closed, 1=open, 2=half-open

	Analyses           *prometheus.CounterVec // labels: timeframe, recommendation
	AnalysisDur        prometheus.Histogram
	NarrativeFallbacks prometheus.Counter
	PublishErrors      prometheus.Counter
	WSClients          prometheus.Gauge
}

// NewMetrics registers all metrics on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		ProviderAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptolens_provider_attempts_total",
			Help: "Provider fetch attempts by outcome",
		}, []string{"provider", "outcome"}),
		ProviderLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cryptolens_provider_latency_seconds",
			Help:    "Provider fetch latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptolens_cache_lookups_total",
			Help: "Series cache lookups by result",
		}, []string{"result"}),
		Exhaustions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cryptolens_provider_exhaustions_total",
			Help: "Requests where every provider failed or was rejected",
		}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cryptolens_provider_breaker_state",
			Help: "Circuit breaker state per provider (0=closed, 1=open, 2=half-open)",
		}, []string{"provider"}),

		Analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptolens_analyses_total",
			Help: "Completed analyses by timeframe and recommendation",
		}, []string{"timeframe", "recommendation"}),
		AnalysisDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cryptolens_analysis_duration_seconds",
			Help:    "End-to-end analysis latency including fetch and narrative",
			Buckets: prometheus.DefBuckets,
		}),
		NarrativeFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cryptolens_narrative_fallbacks_total",
			Help: "Narratives served from the template instead of the LLM",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cryptolens_publish_errors_total",
			Help: "Failed redis publishes",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cryptolens_ws_clients",
			Help: "Connected websocket clients",
		}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ProviderAttempts,
		m.ProviderLatency,
		m.CacheLookups,
		m.Exhaustions,
		m.BreakerState,
		m.Analyses,
		m.AnalysisDur,
		m.NarrativeFallbacks,
		m.PublishErrors,
		m.WSClients,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// ObserveAttempt records one provider attempt. Exhaustion is counted by the
// caller since it spans several attempts.
func (m *Metrics) ObserveAttempt(a model.FetchAttempt) {
	m.ProviderAttempts.WithLabelValues(a.Provider, string(a.Outcome)).Inc()
	if a.Outcome != model.OutcomeSkipped {
		m.ProviderLatency.WithLabelValues(a.Provider).Observe(a.Duration.Seconds())
	}
}

// ObserveCache records a cache lookup.
func (m *Metrics) ObserveCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// ObserveBreaker exports a breaker transition.
func (m *Metrics) ObserveBreaker(provider string, state collector.BreakerState) {
	m.BreakerState.WithLabelValues(provider).Set(float64(state))
}

// ObserveAnalysis records a finished analysis.
func (m *Metrics) ObserveAnalysis(tf model.Timeframe, rec model.Recommendation, took time.Duration, narrativeFallback bool) {
	m.Analyses.WithLabelValues(string(tf), string(rec)).Inc()
	m.AnalysisDur.Observe(took.Seconds())
	if narrativeFallback {
		m.NarrativeFallbacks.Inc()
	}
}
