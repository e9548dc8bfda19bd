package security

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when a request exceeds the rate limit.
var ErrRateLimited = errors.New("rate limit exceeded")

// Rate limit buckets.
const (
	BucketMessage      = "message"
	BucketConversation = "conversation"
)

// RateLimitConfig holds the per-minute limits of each bucket.
// Zero values fall back to the defaults.
type RateLimitConfig struct {
	MessagesPerMin      int `yaml:"messages_per_min"`
	ConversationsPerMin int `yaml:"conversations_per_min"`
}

func rateLimitConfigDefaults() RateLimitConfig {
	return RateLimitConfig{
		MessagesPerMin:      30,
		ConversationsPerMin: 20,
	}
}

// RateLimiter is a sliding-window limiter with one window per bucket.
// The process serves a single shared state, so limits are global.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	window time.Duration
	limit  int
	events []time.Time
}

// NewRateLimiter creates a rate limiter with the given config.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	defaults := rateLimitConfigDefaults()
	if cfg.MessagesPerMin <= 0 {
		cfg.MessagesPerMin = defaults.MessagesPerMin
	}
	if cfg.ConversationsPerMin <= 0 {
		cfg.ConversationsPerMin = defaults.ConversationsPerMin
	}

	return &RateLimiter{
		now: time.Now,
		buckets: map[string]*bucket{
			BucketMessage:      {window: time.Minute, limit: cfg.MessagesPerMin},
			BucketConversation: {window: time.Minute, limit: cfg.ConversationsPerMin},
		},
	}
}

// Allow records one event in bucket kind, or returns ErrRateLimited when the
// window is full. Unknown buckets are unlimited.
func (rl *RateLimiter) Allow(kind string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[kind]
	if !ok {
		return nil
	}

	now := rl.now()
	b.evict(now)

	if len(b.events) >= b.limit {
		return ErrRateLimited
	}
	b.events = append(b.events, now)
	return nil
}

// Remaining reports how many events bucket kind still accepts in the current
// window, or -1 for an unknown bucket.
func (rl *RateLimiter) Remaining(kind string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[kind]
	if !ok {
		return -1
	}
	b.evict(rl.now())
	return b.limit - len(b.events)
}

// evict drops events older than the window. Events are chronological.
func (b *bucket) evict(now time.Time) {
	cutoff := now.Add(-b.window)
	i := 0
	for i < len(b.events) && b.events[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		b.events = b.events[i:]
	}
}
