// Package ratelimit provides a token-bucket rate limiter for outbound calls
// to LLM provider endpoints, keyed per (provider, endpoint) or globally.
package ratelimit

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// GlobalKey is the bucket key used when a Limiter is configured with
// PerProvider: false, so all callers share one bucket.
const GlobalKey = "__global__"

// MaxWait bounds any single wait issued by WaitForPermit. A computed wait
// longer than this is reported as ErrExcessiveDelay rather than slept.
const MaxWait = 5 * time.Minute

// Config configures a Limiter. Defaults mirror the reference token-bucket
// design: 60 requests per 60s window, burst of 10, refill of 1 token/sec.
type Config struct {
	MaxRequests int
	TimeWindow  time.Duration
	BurstSize   int
	RefillRate  float64 // tokens per second
	PerProvider bool
	MaxKeys     int
}

// DefaultConfig returns the reference defaults.
func DefaultConfig() Config {
	return Config{
		MaxRequests: 60,
		TimeWindow:  60 * time.Second,
		BurstSize:   10,
		RefillRate:  1.0,
		PerProvider: true,
		MaxKeys:     100000,
	}
}

// ErrExcessiveDelay is returned when the computed wait for a permit exceeds
// MaxWait.
type ErrExcessiveDelay struct {
	Key     string
	Waited  time.Duration
	Wanted  time.Duration
}

func (e *ErrExcessiveDelay) Error() string {
	return fmt.Sprintf("rate limiter: wait for %q would exceed the %s cap (wanted %s)", e.Key, e.Waited, e.Wanted)
}

// tokenBucket is a float64 token bucket: capacity is BurstSize, refill is
// RefillRate tokens/second. Never copy a tokenBucket after construction.
type tokenBucket struct {
	tokens     float64
	capacity   float64
	refillRate float64
	lastRefill time.Time
}

func newTokenBucket(capacity, refillRate float64) *tokenBucket {
	return &tokenBucket{tokens: capacity, capacity: capacity, refillRate: refillRate, lastRefill: time.Now()}
}

func (b *tokenBucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * b.refillRate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = now
}

// tryConsume attempts to take 1 token. Returns true on success.
func (b *tokenBucket) tryConsume(now time.Time) bool {
	b.refill(now)
	if b.tokens < 1.0 {
		return false
	}
	b.tokens -= 1.0
	return true
}

// timeUntilAvailable reports how long until 1 token is available.
func (b *tokenBucket) timeUntilAvailable(now time.Time) time.Duration {
	b.refill(now)
	if b.tokens >= 1.0 {
		return 0
	}
	deficit := 1.0 - b.tokens
	if b.refillRate <= 0 {
		return MaxWait + time.Second
	}
	seconds := deficit / b.refillRate
	return time.Duration(seconds * float64(time.Second))
}

func (b *tokenBucket) drain(now time.Time) {
	b.refill(now)
	b.tokens = 0
}

type bucketEntry struct {
	key string
	b   *tokenBucket
}

// Limiter is a per-(provider,endpoint) (or global) token bucket rate
// limiter for outbound provider calls.
type Limiter struct {
	mu      sync.Mutex
	cfg     Config
	buckets map[string]*list.Element
	lru     *list.List
	stop    chan struct{}
	waitCounter prometheus.Histogram // optional: observes wait seconds
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithWaitHistogram sets a Prometheus histogram that observes, in seconds,
// every wait this limiter imposes.
func WithWaitHistogram(h prometheus.Histogram) Option {
	return func(l *Limiter) { l.waitCounter = h }
}

// New creates a Limiter from cfg.
func New(cfg Config, opts ...Option) *Limiter {
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = 100000
	}
	l := &Limiter{
		cfg:     cfg,
		buckets: make(map[string]*list.Element),
		lru:     list.New(),
		stop:    make(chan struct{}),
	}
	for _, o := range opts {
		o(l)
	}
	go l.cleanup()
	return l
}

// Key builds the bucket key for a (provider, endpoint) pair, respecting
// PerProvider.
func (l *Limiter) Key(provider, endpoint string) string {
	if !l.cfg.PerProvider {
		return GlobalKey
	}
	return provider + "|" + endpoint
}

func (l *Limiter) bucketFor(key string) *tokenBucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bucketForLocked(key)
}

func (l *Limiter) bucketForLocked(key string) *tokenBucket {
	if elem, ok := l.buckets[key]; ok {
		l.lru.MoveToFront(elem)
		return elem.Value.(*bucketEntry).b
	}
	if len(l.buckets) >= l.cfg.MaxKeys {
		l.evictOldestLocked()
	}
	b := newTokenBucket(float64(l.cfg.BurstSize), l.cfg.RefillRate)
	elem := l.lru.PushFront(&bucketEntry{key: key, b: b})
	l.buckets[key] = elem
	return b
}

func (l *Limiter) evictOldestLocked() {
	back := l.lru.Back()
	if back == nil {
		return
	}
	e := back.Value.(*bucketEntry)
	delete(l.buckets, e.key)
	l.lru.Remove(back)
}

// WaitForPermit blocks until a token is available for key, or returns
// ErrExcessiveDelay if the wait would exceed MaxWait. It re-checks after
// every sleep since concurrent callers may drain the bucket meanwhile.
func (l *Limiter) WaitForPermit(key string) error {
	deadline := time.Now().Add(MaxWait)
	for {
		now := time.Now()
		b := l.bucketFor(key)

		l.mu.Lock()
		ok := b.tryConsume(now)
		var wait time.Duration
		if !ok {
			wait = b.timeUntilAvailable(now)
		}
		l.mu.Unlock()

		if ok {
			return nil
		}
		if now.Add(wait).After(deadline) || wait > MaxWait {
			return &ErrExcessiveDelay{Key: key, Waited: time.Until(deadline), Wanted: wait}
		}
		if l.waitCounter != nil {
			l.waitCounter.Observe(wait.Seconds())
		}
		time.Sleep(wait)
	}
}

// Handle429 force-drains the bucket for key to zero and sleeps retryAfter
// (capped at MaxWait), matching the provider's Retry-After guidance.
func (l *Limiter) Handle429(key string, retryAfter time.Duration) {
	b := l.bucketFor(key)
	l.mu.Lock()
	b.drain(time.Now())
	l.mu.Unlock()

	if retryAfter > MaxWait {
		retryAfter = MaxWait
	}
	if retryAfter > 0 {
		time.Sleep(retryAfter)
	}
}

// Stop terminates the background cleanup goroutine.
func (l *Limiter) Stop() {
	close(l.stop)
}

func (l *Limiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.mu.Lock()
			cutoff := time.Now().Add(-10 * time.Minute)
			for elem := l.lru.Back(); elem != nil; {
				e := elem.Value.(*bucketEntry)
				prev := elem.Prev()
				if e.b.lastRefill.Before(cutoff) {
					delete(l.buckets, e.key)
					l.lru.Remove(elem)
				}
				elem = prev
			}
			l.mu.Unlock()
		case <-l.stop:
			return
		}
	}
}
