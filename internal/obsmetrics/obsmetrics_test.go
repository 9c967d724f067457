package obsmetrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersAllMetrics(t *testing.T) {
	r := New()
	require.NotNil(t, r)
	require.NotNil(t, r.reg)
	assert.NotNil(t, r.TranslationsTotal)
	assert.NotNil(t, r.LossinessItemsTotal)
	assert.NotNil(t, r.HTTPRequestsTotal)
	assert.NotNil(t, r.HTTPRequestLatency)
	assert.NotNil(t, r.CircuitBreakerState)
	assert.NotNil(t, r.RateLimiterWait)
}

func TestHandlerNonNil(t *testing.T) {
	r := New()
	assert.NotNil(t, r.Handler())
}

func TestObserveHelpersRecordValues(t *testing.T) {
	r := New()

	r.ObserveTranslation("openai", "gpt-5", "success")
	r.ObserveLossiness("field-dropped", "warning")
	r.ObserveHTTPRequest("openai", "/v1/chat/completions", "", 42.0)
	r.SetCircuitBreakerState("openai:/v1/chat/completions", 1)
	r.ObserveRateLimiterWait("openai", 0.05)

	mfs, err := r.reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}

	for _, want := range []string{
		"specado_translations_total",
		"specado_lossiness_items_total",
		"specado_http_requests_total",
		"specado_http_request_latency_ms",
		"specado_circuit_breaker_state",
		"specado_rate_limiter_wait_seconds",
	} {
		assert.True(t, names[want], "expected metric %q in gathered metrics", want)
	}
}

func TestMultipleRegistriesAreIndependent(t *testing.T) {
	r1 := New()
	r2 := New()

	r1.ObserveTranslation("openai", "gpt-5", "success")

	mfs, err := r2.reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			if m.GetCounter() != nil {
				assert.Zero(t, m.GetCounter().GetValue())
			}
		}
	}
}
