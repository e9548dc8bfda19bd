package provider_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/flemzord/aether/internal/provider"
	"github.com/flemzord/aether/internal/provider/providertest"
)

func failing(err error) *providertest.MockProvider {
	return &providertest.MockProvider{
		CompleteFunc: func(context.Context, provider.CompletionRequest) (provider.CompletionResponse, error) {
			return provider.CompletionResponse{}, err
		},
	}
}

func newChain(t *testing.T, providers ...*providertest.MockProvider) *provider.Chain {
	t.Helper()
	entries := make([]provider.ChainEntry, len(providers))
	for i, p := range providers {
		entries[i] = provider.ChainEntry{
			Name:     fmt.Sprintf("p%d", i),
			Provider: p,
			Health:   provider.HealthConfig{InitialBackoff: time.Hour},
		}
	}
	c, err := provider.NewChain(entries)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestNewChain_Errors(t *testing.T) {
	t.Parallel()

	if _, err := provider.NewChain(nil); !errors.Is(err, provider.ErrNoProvider) {
		t.Errorf("empty chain: err = %v", err)
	}
	if _, err := provider.NewChain([]provider.ChainEntry{{Name: "nil"}}); !errors.Is(err, provider.ErrNoProvider) {
		t.Errorf("nil provider: err = %v", err)
	}
}

func TestChain_PrimaryAnswers(t *testing.T) {
	t.Parallel()

	primary := &providertest.MockProvider{Reply: "hi"}
	fallback := &providertest.MockProvider{Reply: "fallback"}
	c := newChain(t, primary, fallback)

	resp, err := c.Complete(t.Context(), provider.CompletionRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "hi" || resp.Provider != "p0" {
		t.Errorf("resp = %+v", resp)
	}
	if fallback.CompleteCalls() != 0 {
		t.Error("fallback should not be called")
	}
}

func TestChain_FailsOverOnRetryable(t *testing.T) {
	t.Parallel()

	for _, sentinel := range []error{provider.ErrRateLimit, provider.ErrProviderDown} {
		t.Run(sentinel.Error(), func(t *testing.T) {
			t.Parallel()

			primary := failing(fmt.Errorf("upstream: %w", sentinel))
			fallback := &providertest.MockProvider{Reply: "from fallback"}
			c := newChain(t, primary, fallback)

			resp, err := c.Complete(t.Context(), provider.CompletionRequest{})
			if err != nil {
				t.Fatal(err)
			}
			if resp.Content != "from fallback" || resp.Provider != "p1" {
				t.Errorf("resp = %+v", resp)
			}
			if primary.CompleteCalls() != 1 {
				t.Errorf("primary calls = %d, want exactly 1", primary.CompleteCalls())
			}

			// Primary is now cooling down and skipped.
			if _, err := c.Complete(t.Context(), provider.CompletionRequest{}); err != nil {
				t.Fatal(err)
			}
			if primary.CompleteCalls() != 1 {
				t.Errorf("primary in cooldown was called again")
			}
			if got := c.Status()[0].State; got != "cooldown" {
				t.Errorf("primary state = %q, want cooldown", got)
			}
		})
	}
}

func TestChain_NonRetryableStops(t *testing.T) {
	t.Parallel()

	for _, sentinel := range []error{provider.ErrAuthentication, provider.ErrContextLength, errors.New("bad json")} {
		t.Run(sentinel.Error(), func(t *testing.T) {
			t.Parallel()

			primary := failing(sentinel)
			fallback := &providertest.MockProvider{Reply: "unused"}
			c := newChain(t, primary, fallback)

			_, err := c.Complete(t.Context(), provider.CompletionRequest{})
			if !errors.Is(err, sentinel) {
				t.Errorf("err = %v, want %v", err, sentinel)
			}
			if fallback.CompleteCalls() != 0 {
				t.Error("fallback must not be called on a non-retryable error")
			}
		})
	}
}

func TestChain_AllExhausted(t *testing.T) {
	t.Parallel()

	c := newChain(t, failing(provider.ErrProviderDown), failing(provider.ErrRateLimit))

	_, err := c.Complete(t.Context(), provider.CompletionRequest{})
	if !errors.Is(err, provider.ErrAllProviders) {
		t.Fatalf("err = %v, want ErrAllProviders", err)
	}
	if !errors.Is(err, provider.ErrRateLimit) {
		t.Errorf("err should wrap the last error: %v", err)
	}
	if c.Available() {
		t.Error("chain should report unavailable while every entry cools down")
	}

	_, err = c.Complete(t.Context(), provider.CompletionRequest{})
	if !errors.Is(err, provider.ErrAllProviders) {
		t.Errorf("second call err = %v", err)
	}
}

func TestChain_CancelledContext(t *testing.T) {
	t.Parallel()

	p := &providertest.MockProvider{Reply: "x"}
	c := newChain(t, p)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	if _, err := c.Complete(ctx, provider.CompletionRequest{}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if p.CompleteCalls() != 0 {
		t.Error("provider should not be called with a cancelled context")
	}
}

func TestChain_HealthProbeRevives(t *testing.T) {
	t.Parallel()

	primary := failing(provider.ErrProviderDown)
	c, err := provider.NewChain([]provider.ChainEntry{{
		Name:     "primary",
		Provider: primary,
		Health: provider.HealthConfig{
			InitialBackoff: time.Millisecond,
			MaxFailures:    1,
			CheckInterval:  5 * time.Millisecond,
		},
	}})
	if err != nil {
		t.Fatal(err)
	}

	_, _ = c.Complete(t.Context(), provider.CompletionRequest{})
	if got := c.Status()[0].State; got != "dead" {
		t.Fatalf("state = %q, want dead", got)
	}

	c.Start(t.Context())
	defer c.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for c.Status()[0].State != "healthy" {
		if time.Now().After(deadline) {
			t.Fatal("provider was not revived by the health probe")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if primary.HealthCalls() == 0 {
		t.Error("expected at least one health probe")
	}
}

func TestChain_Status(t *testing.T) {
	t.Parallel()

	c := newChain(t, &providertest.MockProvider{Model: "llama-3.1-8b-instant"})
	st := c.Status()
	if len(st) != 1 || st[0].Name != "p0" || st[0].Model != "llama-3.1-8b-instant" || st[0].State != "healthy" {
		t.Errorf("Status() = %+v", st)
	}
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want bool
	}{
		{provider.ErrRateLimit, true},
		{fmt.Errorf("wrapped: %w", provider.ErrProviderDown), true},
		{provider.ErrAuthentication, false},
		{provider.ErrContextLength, false},
		{errors.New("other"), false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := provider.IsRetryable(tt.err); got != tt.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
	if !provider.IsRateLimit(fmt.Errorf("x: %w", provider.ErrRateLimit)) {
		t.Error("IsRateLimit should unwrap")
	}
}
