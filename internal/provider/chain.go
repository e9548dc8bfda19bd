package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ChainEntry configures a single provider in the chain.
type ChainEntry struct {
	Name     string
	Provider Provider
	Health   HealthConfig
}

type chainEntry struct {
	ChainEntry
	health *healthTracker
}

// EntryStatus is a point-in-time view of one chain entry.
type EntryStatus struct {
	Name     string        `json:"name"`
	Model    string        `json:"model"`
	State    string        `json:"state"`
	Failures int           `json:"failures"`
	Backoff  time.Duration `json:"backoff_ns,omitempty"`
}

// ChainOption configures optional Chain behavior.
type ChainOption func(*Chain)

// WithLogger injects a structured logger into the Chain.
// When nil or omitted, log output is discarded.
func WithLogger(l *slog.Logger) ChainOption {
	return func(c *Chain) { c.logger = l }
}

// Chain tries its entries in order: the first is the primary provider, the
// rest are fallbacks. A provider is never retried within one call; a
// retryable error moves on to the next available entry.
type Chain struct {
	entries []chainEntry
	logger  *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewChain creates a chain from the given entries, primary first.
func NewChain(entries []ChainEntry, opts ...ChainOption) (*Chain, error) {
	if len(entries) == 0 {
		return nil, ErrNoProvider
	}

	internal := make([]chainEntry, len(entries))
	for i, e := range entries {
		if e.Provider == nil {
			return nil, fmt.Errorf("%w: entry %q has nil provider", ErrNoProvider, e.Name)
		}
		internal[i] = chainEntry{
			ChainEntry: e,
			health:     newHealthTracker(e.Health),
		}
	}

	c := &Chain{entries: internal}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}

	for i := range c.entries {
		e := &c.entries[i]
		logger := c.logger.With("provider", e.Name)
		e.health.onStateChange = func(from, to HealthState) {
			_, failures, backoff := e.health.snapshot()
			switch to {
			case StateCooldown:
				logger.Warn("provider entered cooldown", "backoff", backoff, "failures", failures)
			case StateDead:
				logger.Error("provider marked dead", "total_failures", failures)
			case StateHealthy:
				logger.Info("provider revived", "previous_state", from.String())
			}
		}
	}

	return c, nil
}

// Start launches the background health probe loop.
func (c *Chain) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		return
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go func() {
		defer close(c.done)
		c.runHealthChecks(ctx, minHealthCheckInterval(c.entries))
	}()
}

// Stop cancels the health probe loop and waits for it to exit.
func (c *Chain) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Complete sends req to the first available entry, failing over on
// retryable errors. Non-retryable errors (authentication, context length,
// malformed responses) are returned immediately.
func (c *Chain) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	var lastErr error
	for i := range c.entries {
		e := &c.entries[i]
		if err := ctx.Err(); err != nil {
			return CompletionResponse{}, err
		}
		if !e.health.IsAvailable() {
			continue
		}

		resp, err := e.Provider.Complete(ctx, req)
		if err == nil {
			e.health.RecordSuccess()
			resp.Provider = e.Name
			return resp, nil
		}

		lastErr = err
		if !IsRetryable(err) {
			return CompletionResponse{}, err
		}

		e.health.RecordFailure()
		c.logger.Warn("provider failed, failing over", "provider", e.Name, "error", err)
	}

	if lastErr != nil {
		c.logger.Error("all providers exhausted", "last_error", lastErr)
		return CompletionResponse{}, fmt.Errorf("%w: last error: %w", ErrAllProviders, lastErr)
	}
	c.logger.Error("all providers exhausted")
	return CompletionResponse{}, fmt.Errorf("%w: all candidates unavailable", ErrAllProviders)
}

// Status reports the health of every entry in chain order.
func (c *Chain) Status() []EntryStatus {
	out := make([]EntryStatus, len(c.entries))
	for i := range c.entries {
		e := &c.entries[i]
		state, failures, backoff := e.health.snapshot()
		out[i] = EntryStatus{
			Name:     e.Name,
			Model:    e.Provider.ModelName(),
			State:    state.String(),
			Failures: failures,
			Backoff:  backoff,
		}
	}
	return out
}

// Available reports whether at least one entry can take a request.
func (c *Chain) Available() bool {
	for i := range c.entries {
		if c.entries[i].health.IsAvailable() {
			return true
		}
	}
	return false
}

// IsRateLimit reports whether err is or wraps ErrRateLimit.
func IsRateLimit(err error) bool {
	return errors.Is(err, ErrRateLimit)
}

func minHealthCheckInterval(entries []chainEntry) time.Duration {
	if len(entries) == 0 {
		return 10 * time.Second
	}

	interval := entries[0].Health.checkIntervalOrDefault()
	for _, e := range entries[1:] {
		interval = min(interval, e.Health.checkIntervalOrDefault())
	}
	return interval
}

func (c *Chain) runHealthChecks(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.probe(ctx)
		}
	}
}

// probe runs one health check round over entries that need it.
func (c *Chain) probe(ctx context.Context) {
	for i := range c.entries {
		e := &c.entries[i]
		if !e.health.ShouldHealthCheck() {
			continue
		}
		checker, ok := e.Provider.(HealthChecker)
		if !ok {
			continue
		}
		if err := checker.HealthCheck(ctx); err == nil {
			e.health.RecordSuccess()
		} else {
			c.logger.Debug("health probe failed", "provider", e.Name, "error", err)
		}
	}
}
