package provider

import (
	"sync"
	"time"
)

// HealthState is the availability state of a chain entry.
type HealthState int

// Health states.
const (
	StateHealthy  HealthState = iota
	StateCooldown             // transient failure, backing off
	StateDead                 // too many consecutive failures
)

// String returns a human-readable label for the health state.
func (s HealthState) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateCooldown:
		return "cooldown"
	case StateDead:
		return "dead"
	default:
		return "unknown"
	}
}

// HealthConfig controls health tracking.
type HealthConfig struct {
	// InitialBackoff is the cooldown after the first failure. Default: 1s.
	InitialBackoff time.Duration `yaml:"initial_backoff"`

	// MaxBackoff caps the exponential backoff. Default: 60s.
	MaxBackoff time.Duration `yaml:"max_backoff"`

	// MaxFailures is the number of consecutive failures before the provider
	// is marked dead. Default: 5.
	MaxFailures int `yaml:"max_failures"`

	// CheckInterval is how often dead and cooled-down providers are probed.
	// Default: 10s.
	CheckInterval time.Duration `yaml:"check_interval"`
}

func (c HealthConfig) checkIntervalOrDefault() time.Duration {
	if c.CheckInterval <= 0 {
		return 10 * time.Second
	}
	return c.CheckInterval
}

func (c *HealthConfig) defaults() {
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 60 * time.Second
	}
	if c.MaxFailures <= 0 {
		c.MaxFailures = 5
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 10 * time.Second
	}
}

// healthTracker follows the availability of one provider: exponential
// backoff on failure, dead after MaxFailures consecutive failures.
type healthTracker struct {
	cfg HealthConfig

	// onStateChange is called outside the lock on every transition.
	onStateChange func(from, to HealthState)

	mu              sync.Mutex
	state           HealthState
	failures        int
	currentBackoff  time.Duration
	cooldownExpires time.Time

	now func() time.Time
}

func newHealthTracker(cfg HealthConfig) *healthTracker {
	cfg.defaults()
	return &healthTracker{
		cfg:   cfg,
		state: StateHealthy,
		now:   time.Now,
	}
}

// IsAvailable reports whether the provider can accept requests.
// A provider in cooldown becomes available once its backoff expires.
func (h *healthTracker) IsAvailable() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.state {
	case StateHealthy:
		return true
	case StateCooldown:
		return !h.now().Before(h.cooldownExpires)
	default:
		return false
	}
}

func (h *healthTracker) RecordSuccess() {
	h.mu.Lock()
	prev := h.state
	h.state = StateHealthy
	h.failures = 0
	h.currentBackoff = 0
	h.mu.Unlock()

	if prev != StateHealthy && h.onStateChange != nil {
		h.onStateChange(prev, StateHealthy)
	}
}

func (h *healthTracker) RecordFailure() {
	h.mu.Lock()
	prev := h.state
	h.failures++

	next := StateCooldown
	if h.failures >= h.cfg.MaxFailures {
		next = StateDead
	} else {
		if h.currentBackoff == 0 {
			h.currentBackoff = h.cfg.InitialBackoff
		} else {
			h.currentBackoff *= 2
		}
		h.currentBackoff = min(h.currentBackoff, h.cfg.MaxBackoff)
		h.cooldownExpires = h.now().Add(h.currentBackoff)
	}
	h.state = next
	h.mu.Unlock()

	if prev != next && h.onStateChange != nil {
		h.onStateChange(prev, next)
	}
}

// ShouldHealthCheck is true for dead providers and expired cooldowns.
func (h *healthTracker) ShouldHealthCheck() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.state {
	case StateDead:
		return true
	case StateCooldown:
		return !h.now().Before(h.cooldownExpires)
	default:
		return false
	}
}

func (h *healthTracker) snapshot() (HealthState, int, time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state, h.failures, h.currentBackoff
}
