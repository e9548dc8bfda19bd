// Package provider defines the Provider interface for talking to hosted
// completion APIs, health tracking with exponential backoff, and the failover
// Chain that tries the primary provider before its fallbacks.
package provider

import "context"

// Provider is implemented by completion backends. Concrete implementations
// live under modules/provider and also implement core.Module.
type Provider interface {
	// Complete sends a completion request and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// ModelName returns the identifier of the underlying model.
	ModelName() string
}

// HealthChecker is implemented by providers that support an active probe.
// The chain calls it for providers in cooldown or marked dead.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthConfigurer is implemented by provider modules whose health tracking
// is configurable. The chain entry built for the module uses the result.
type HealthConfigurer interface {
	HealthConfig() HealthConfig
}
