// Package metrics exposes the prometheus counters/histograms surfaced
// at /metrics (spec §4.9).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every metric this service registers.
type Collector struct {
	RequestDuration *prometheus.HistogramVec
	RequestCount    *prometheus.CounterVec

	ProviderLatency *prometheus.HistogramVec
	ProviderErrors  *prometheus.CounterVec
	ProviderTokens  *prometheus.CounterVec

	DebateDuration  *prometheus.HistogramVec
	DebateRounds    *prometheus.HistogramVec
	DebateConsensus *prometheus.CounterVec

	EventsPublished  prometheus.Counter
	EventsDropped    prometheus.Counter
	SubscribersGauge prometheus.Gauge

	RateLimitRejections *prometheus.CounterVec
}

// NewCollector builds and registers every metric against a dedicated
// registry, so repeated construction in tests never panics on duplicate
// registration (teacher's NewCollector used the global registry, which
// is fine for a single long-lived process but not for tests).
func NewCollector() (*Collector, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	c := &Collector{
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aragora_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method", "path", "status"}),

		RequestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aragora_http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"method", "path", "status"}),

		ProviderLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aragora_provider_latency_seconds",
			Help:    "LLM provider call latency in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"provider", "model"}),

		ProviderErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aragora_provider_errors_total",
			Help: "Total LLM provider call errors by classified error code",
		}, []string{"provider", "code"}),

		ProviderTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aragora_provider_tokens_total",
			Help: "Total tokens consumed per provider/model",
		}, []string{"provider", "model", "direction"}),

		DebateDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aragora_debate_duration_seconds",
			Help:    "Wall-clock duration of a sealed debate",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"outcome"}),

		DebateRounds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aragora_debate_rounds",
			Help:    "Number of rounds used by a sealed debate",
			Buckets: []float64{1, 2, 3, 4, 5, 8, 12, 20},
		}, []string{"outcome"}),

		DebateConsensus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aragora_debate_outcomes_total",
			Help: "Total sealed debates by outcome",
		}, []string{"outcome", "policy"}),

		EventsPublished:  prometheus.NewCounter(prometheus.CounterOpts{Name: "aragora_events_published_total", Help: "Total events durably published to the bus"}),
		EventsDropped:    prometheus.NewCounter(prometheus.CounterOpts{Name: "aragora_events_dropped_total", Help: "Total events dropped by a full drop-policy subscriber"}),
		SubscribersGauge: prometheus.NewGauge(prometheus.GaugeOpts{Name: "aragora_ws_subscribers", Help: "Current WebSocket subscriber count"}),

		RateLimitRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aragora_rate_limit_rejections_total",
			Help: "Total requests rejected by the rate limiter",
		}, []string{"scope"}),
	}

	reg.MustRegister(
		c.RequestDuration, c.RequestCount,
		c.ProviderLatency, c.ProviderErrors, c.ProviderTokens,
		c.DebateDuration, c.DebateRounds, c.DebateConsensus,
		c.EventsPublished, c.EventsDropped, c.SubscribersGauge,
		c.RateLimitRejections,
	)
	return c, reg
}

// Handler returns the HTTP handler serving this collector's registry.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
