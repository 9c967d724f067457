// Package obsmetrics exposes Prometheus counters and histograms for
// Specado's translation pipeline and HTTP execution layer.
package obsmetrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every metric Specado exports. It owns its own
// prometheus.Registry rather than using the global default, so a process can
// run more than one (e.g. in tests) without collector-already-registered
// panics.
type Registry struct {
	reg *prometheus.Registry

	TranslationsTotal   *prometheus.CounterVec
	LossinessItemsTotal *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestLatency  *prometheus.HistogramVec
	CircuitBreakerState *prometheus.GaugeVec
	RateLimiterWait     *prometheus.HistogramVec
}

// New builds a Registry with every metric registered.
func New() *Registry {
	reg := prometheus.NewRegistry()
	m := &Registry{
		reg: reg,
		TranslationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "specado_translations_total",
			Help: "Total PromptSpec translations, by provider and outcome",
		}, []string{"provider", "model", "outcome"}),
		LossinessItemsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "specado_lossiness_items_total",
			Help: "Total lossiness items recorded during translation, by code and severity",
		}, []string{"code", "severity"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "specado_http_requests_total",
			Help: "Total outbound provider HTTP requests, by provider and error classification",
		}, []string{"provider", "classification"}),
		HTTPRequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "specado_http_request_latency_ms",
			Help:    "Outbound provider HTTP request latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10),
		}, []string{"provider", "endpoint"}),
		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "specado_circuit_breaker_state",
			Help: "Circuit breaker state by endpoint (0=closed, 1=open, 2=half-open)",
		}, []string{"endpoint"}),
		RateLimiterWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "specado_rate_limiter_wait_seconds",
			Help:    "Time spent waiting for a rate-limiter permit, by provider",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
	}
	reg.MustRegister(
		m.TranslationsTotal,
		m.LossinessItemsTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestLatency,
		m.CircuitBreakerState,
		m.RateLimiterWait,
	)
	return m
}

// Handler returns the Prometheus scrape endpoint for this registry.
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// ObserveTranslation records the outcome of one Translate call.
func (m *Registry) ObserveTranslation(provider, model, outcome string) {
	m.TranslationsTotal.WithLabelValues(provider, model, outcome).Inc()
}

// ObserveLossiness records one lossiness item emitted during translation.
func (m *Registry) ObserveLossiness(code, severity string) {
	m.LossinessItemsTotal.WithLabelValues(code, severity).Inc()
}

// ObserveHTTPRequest records an outbound provider HTTP request's outcome and
// latency. classification is the empty string on success.
func (m *Registry) ObserveHTTPRequest(provider, endpoint, classification string, latencyMs float64) {
	m.HTTPRequestsTotal.WithLabelValues(provider, classification).Inc()
	m.HTTPRequestLatency.WithLabelValues(provider, endpoint).Observe(latencyMs)
}

// SetCircuitBreakerState records a circuit breaker's current state for the
// given endpoint key. Callers translate their breaker's State to 0/1/2.
func (m *Registry) SetCircuitBreakerState(endpoint string, state float64) {
	m.CircuitBreakerState.WithLabelValues(endpoint).Set(state)
}

// ObserveRateLimiterWait records the time a request spent waiting for a
// rate-limiter permit before it was dispatched.
func (m *Registry) ObserveRateLimiterWait(provider string, seconds float64) {
	m.RateLimiterWait.WithLabelValues(provider).Observe(seconds)
}
