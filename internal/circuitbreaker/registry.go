package circuitbreaker

import "sync"

// Registry owns one Breaker per endpoint key (or a single global breaker
// when PerEndpoint is false), lazily initialized on first use.
type Registry struct {
	mu       sync.Mutex
	cfg      Config
	breakers map[string]*Breaker
	opts     []Option
}

// GlobalKey is the key used when Config.PerEndpoint is false.
const GlobalKey = "__global__"

// NewRegistry creates a Registry from cfg.
func NewRegistry(cfg Config, opts ...Option) *Registry {
	return &Registry{
		cfg:      cfg,
		breakers: make(map[string]*Breaker),
		opts:     opts,
	}
}

// Key builds the breaker key for an endpoint, respecting PerEndpoint.
func (r *Registry) Key(endpoint string) string {
	if !r.cfg.PerEndpoint {
		return GlobalKey
	}
	return endpoint
}

// Get returns (creating if necessary) the Breaker for key.
func (r *Registry) Get(key string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[key]; ok {
		return b
	}
	b := New(r.cfg, r.opts...)
	r.breakers[key] = b
	return b
}

// State returns the state of the breaker for key without creating one if
// absent (absent is reported as Closed).
func (r *Registry) State(key string) State {
	r.mu.Lock()
	b, ok := r.breakers[key]
	r.mu.Unlock()
	if !ok {
		return Closed
	}
	return b.CurrentState()
}
