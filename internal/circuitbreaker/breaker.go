// Package circuitbreaker implements a per-endpoint (or global) circuit
// breaker for outbound calls to LLM provider endpoints. Unlike a
// single-probe breaker, HalfOpen here allows every attempt through,
// tallying consecutive successes toward the recovery threshold — this
// matches providers that receive many concurrent in-flight requests, where
// gating to one probe at a time would starve recovery.
package circuitbreaker

import (
	"fmt"
	"sync"
	"time"
)

// State represents the current state of a single breaker.
type State int

const (
	// Closed is the normal operating state: all attempts allowed.
	Closed State = iota
	// Open rejects all attempts until RecoveryTimeout elapses.
	Open
	// HalfOpen allows every attempt through, tallying consecutive successes.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config configures a Breaker. Defaults mirror the reference design:
// failure_threshold=5, recovery_timeout=30s, success_threshold=3,
// min_request_rate=10 over a trailing 60s window.
type Config struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
	SuccessThreshold int
	MinRequestRate   int
	PerEndpoint      bool
}

func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		SuccessThreshold: 3,
		MinRequestRate:   10,
		PerEndpoint:      true,
	}
}

const requestRateWindow = 60 * time.Second

// ErrOpen describes an open circuit: the endpoint and how long until the
// breaker admits a probe. Allow itself reports this as a (bool, Duration)
// pair; nothing in this package returns an ErrOpen.
type ErrOpen struct {
	Endpoint   string
	RetryAfter time.Duration
}

func (e *ErrOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for %q, retry after %s", e.Endpoint, e.RetryAfter)
}

// Breaker is a single goroutine-safe circuit breaker instance.
type Breaker struct {
	mu               sync.Mutex
	cfg              Config
	state            State
	failureCount     int
	successCount     int
	openedAt         time.Time
	requestTimes     []time.Time // trailing window of allowed-request timestamps
	onStateChange    func(from, to State)
	nowFunc          func() time.Time
}

// Option configures a Breaker.
type Option func(*Breaker)

func WithOnStateChange(fn func(from, to State)) Option {
	return func(b *Breaker) { b.onStateChange = fn }
}

// withNowFunc overrides the clock; used by tests.
func withNowFunc(fn func() time.Time) Option {
	return func(b *Breaker) { b.nowFunc = fn }
}

// New creates a Breaker in the Closed state.
func New(cfg Config, opts ...Option) *Breaker {
	b := &Breaker{
		cfg:     cfg,
		state:   Closed,
		nowFunc: time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Allow reports whether the next attempt should be dispatched, and if not,
// how long the caller should wait before trying again. Every allowed
// attempt (Closed or HalfOpen) is recorded into the trailing request-rate
// window; callers must invoke Allow before RecordSuccess/RecordFailure.
func (b *Breaker) Allow() (bool, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.nowFunc()

	switch b.state {
	case Closed:
		b.recordRequestLocked(now)
		return true, 0
	case HalfOpen:
		b.recordRequestLocked(now)
		return true, 0
	case Open:
		elapsed := now.Sub(b.openedAt)
		if elapsed >= b.cfg.RecoveryTimeout {
			b.setState(HalfOpen)
			b.successCount = 0
			b.recordRequestLocked(now)
			return true, 0
		}
		return false, b.cfg.RecoveryTimeout - elapsed
	default:
		return false, b.cfg.RecoveryTimeout
	}
}

// RecordSuccess records a successful attempt. In HalfOpen, SuccessThreshold
// consecutive successes transitions back to Closed.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount = 0
	switch b.state {
	case HalfOpen:
		b.successCount++
		if b.successCount >= b.cfg.SuccessThreshold {
			b.setState(Closed)
			b.successCount = 0
		}
	case Closed:
		// nothing further to do
	}
}

// RecordFailure records a failing attempt whose classification counts
// toward the breaker (the caller decides this — see the HTTP execution
// layer's should-count-failure gate). In Closed state, the failure only
// counts toward FailureThreshold if the trailing request-rate window
// already shows at least MinRequestRate allowed requests; this prevents
// tripping on a single failure from a low-traffic endpoint.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.nowFunc()

	switch b.state {
	case HalfOpen:
		b.setState(Open)
		b.openedAt = now
		b.successCount = 0
		b.failureCount = 0
	case Closed:
		if !b.hasSufficientRequestRateLocked(now) {
			return
		}
		b.failureCount++
		if b.failureCount >= b.cfg.FailureThreshold {
			b.setState(Open)
			b.openedAt = now
			b.failureCount = 0
		}
	}
}

// CurrentState returns the breaker's state without checking the recovery
// timeout (use Allow for that).
func (b *Breaker) CurrentState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) recordRequestLocked(now time.Time) {
	b.requestTimes = append(b.requestTimes, now)
	b.cleanupOldRequestsLocked(now)
}

func (b *Breaker) cleanupOldRequestsLocked(now time.Time) {
	cutoff := now.Add(-requestRateWindow)
	i := 0
	for ; i < len(b.requestTimes); i++ {
		if b.requestTimes[i].After(cutoff) {
			break
		}
	}
	if i > 0 {
		b.requestTimes = append([]time.Time(nil), b.requestTimes[i:]...)
	}
}

func (b *Breaker) hasSufficientRequestRateLocked(now time.Time) bool {
	b.cleanupOldRequestsLocked(now)
	return len(b.requestTimes) >= b.cfg.MinRequestRate
}

func (b *Breaker) setState(to State) {
	from := b.state
	b.state = to
	if b.onStateChange != nil && from != to {
		b.onStateChange(from, to)
	}
}
