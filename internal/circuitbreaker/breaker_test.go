package circuitbreaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		FailureThreshold: 3,
		RecoveryTimeout:  10 * time.Second,
		SuccessThreshold: 2,
		MinRequestRate:   0,
	}
}

func TestClosedAllowsRequests(t *testing.T) {
	b := New(testConfig())
	allowed, _ := b.Allow()
	assert.True(t, allowed)
	assert.Equal(t, Closed, b.CurrentState())
}

func TestTripsAfterThreshold(t *testing.T) {
	b := New(testConfig())

	b.RecordFailure()
	b.RecordFailure()
	require.Equal(t, Closed, b.CurrentState())
	allowed, _ := b.Allow()
	assert.True(t, allowed)

	b.RecordFailure()
	assert.Equal(t, Open, b.CurrentState())
}

func TestOpenRejectsRequests(t *testing.T) {
	now := time.Now()
	cfg := testConfig()
	cfg.FailureThreshold = 1
	b := New(cfg, withNowFunc(func() time.Time { return now }))

	b.RecordFailure()
	require.Equal(t, Open, b.CurrentState())

	allowed, wait := b.Allow()
	assert.False(t, allowed)
	assert.Greater(t, wait, time.Duration(0))
}

func TestHalfOpenAllowsMultipleConcurrentAttempts(t *testing.T) {
	now := time.Now()
	cfg := testConfig()
	cfg.FailureThreshold = 1
	b := New(cfg, withNowFunc(func() time.Time { return now }))

	b.RecordFailure() // trips
	now = now.Add(11 * time.Second)

	allowed, _ := b.Allow()
	require.True(t, allowed)
	assert.Equal(t, HalfOpen, b.CurrentState())

	// Unlike a single-probe breaker, a second concurrent attempt is also
	// allowed through while HalfOpen.
	allowed2, _ := b.Allow()
	assert.True(t, allowed2)
	assert.Equal(t, HalfOpen, b.CurrentState())
}

func TestHalfOpenClosesAfterSuccessThreshold(t *testing.T) {
	now := time.Now()
	cfg := testConfig()
	cfg.FailureThreshold = 1
	cfg.SuccessThreshold = 2
	b := New(cfg, withNowFunc(func() time.Time { return now }))

	b.RecordFailure()
	now = now.Add(11 * time.Second)
	b.Allow()
	require.Equal(t, HalfOpen, b.CurrentState())

	b.RecordSuccess()
	assert.Equal(t, HalfOpen, b.CurrentState(), "one success is not enough")

	b.RecordSuccess()
	assert.Equal(t, Closed, b.CurrentState())
}

func TestHalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	cfg := testConfig()
	cfg.FailureThreshold = 1
	b := New(cfg, withNowFunc(func() time.Time { return now }))

	b.RecordFailure()
	now = now.Add(11 * time.Second)
	b.Allow()
	require.Equal(t, HalfOpen, b.CurrentState())

	b.RecordFailure()
	assert.Equal(t, Open, b.CurrentState())

	allowed, _ := b.Allow()
	assert.False(t, allowed)
}

func TestRecordSuccessResetsFailureCount(t *testing.T) {
	b := New(testConfig())

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()

	b.RecordFailure()
	b.RecordFailure()
	require.Equal(t, Closed, b.CurrentState())
	b.RecordFailure()
	assert.Equal(t, Open, b.CurrentState())
}

func TestMinimumRequestRateGatesFailureCounting(t *testing.T) {
	now := time.Now()
	cfg := Config{FailureThreshold: 1, RecoveryTimeout: time.Second, SuccessThreshold: 1, MinRequestRate: 5}
	b := New(cfg, withNowFunc(func() time.Time { return now }))

	// First failure with zero prior allowed requests: the window has no
	// requests yet, so the failure must not count.
	b.RecordFailure()
	assert.Equal(t, Closed, b.CurrentState())

	for i := 0; i < 5; i++ {
		b.Allow()
	}

	// Now the trailing window has 5 allowed requests; a failure counts.
	b.RecordFailure()
	assert.Equal(t, Open, b.CurrentState())
}

func TestOnStateChangeCallback(t *testing.T) {
	var transitions []struct{ from, to State }
	cb := func(from, to State) {
		transitions = append(transitions, struct{ from, to State }{from, to})
	}

	now := time.Now()
	cfg := testConfig()
	cfg.FailureThreshold = 1
	cfg.SuccessThreshold = 1
	b := New(cfg, withNowFunc(func() time.Time { return now }), WithOnStateChange(cb))

	b.RecordFailure() // Closed -> Open
	now = now.Add(11 * time.Second)
	b.Allow() // Open -> HalfOpen
	b.RecordSuccess() // HalfOpen -> Closed

	require.Len(t, transitions, 3)
	expected := []struct{ from, to State }{
		{Closed, Open},
		{Open, HalfOpen},
		{HalfOpen, Closed},
	}
	for i, tr := range transitions {
		assert.Equal(t, expected[i].from, tr.from, "transition %d from", i)
		assert.Equal(t, expected[i].to, tr.to, "transition %d to", i)
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", Closed.String())
	assert.Equal(t, "open", Open.String())
	assert.Equal(t, "half-open", HalfOpen.String())
	assert.Equal(t, "unknown", State(99).String())
}

func TestRegistryPerEndpointScoping(t *testing.T) {
	r := NewRegistry(Config{FailureThreshold: 1, RecoveryTimeout: time.Second, SuccessThreshold: 1, PerEndpoint: true})

	a := r.Get(r.Key("/v1/chat/completions"))
	b := r.Get(r.Key("/v1/messages"))
	assert.NotSame(t, a, b)

	a.RecordFailure()
	assert.Equal(t, Open, r.State(r.Key("/v1/chat/completions")))
	assert.Equal(t, Closed, r.State(r.Key("/v1/messages")))
}

func TestRegistryGlobalScoping(t *testing.T) {
	r := NewRegistry(Config{FailureThreshold: 1, RecoveryTimeout: time.Second, SuccessThreshold: 1, PerEndpoint: false})

	a := r.Get(r.Key("/v1/chat/completions"))
	b := r.Get(r.Key("/v1/messages"))
	assert.Same(t, a, b)
}
