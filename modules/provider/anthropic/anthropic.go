// Package anthropic implements the provider.anthropic module, a completion
// provider backed by the Anthropic Messages API. It is typically configured
// as a fallback behind the OpenAI-compatible primary.
package anthropic

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/flemzord/aether/internal/core"
	"github.com/flemzord/aether/internal/provider"
	"github.com/flemzord/aether/internal/security"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Anthropic{})
}

// Interface guards.
var (
	_ core.Module               = (*Anthropic)(nil)
	_ core.Configurable         = (*Anthropic)(nil)
	_ core.Provisioner          = (*Anthropic)(nil)
	_ core.Validator            = (*Anthropic)(nil)
	_ provider.Provider         = (*Anthropic)(nil)
	_ provider.HealthChecker    = (*Anthropic)(nil)
	_ provider.HealthConfigurer = (*Anthropic)(nil)
)

// Anthropic is the provider.anthropic module.
type Anthropic struct {
	config Config
	apiKey string
	client *sdkanthropic.Client
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (a *Anthropic) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.anthropic",
		New: func() core.Module { return &Anthropic{} },
	}
}

// Configure implements core.Configurable.
func (a *Anthropic) Configure(node *yaml.Node) error {
	if err := node.Decode(&a.config); err != nil {
		return err
	}
	a.config.defaults()
	return nil
}

// Provision implements core.Provisioner. The api_key setting takes
// precedence over api_key_env.
func (a *Anthropic) Provision(ctx *core.AppContext) error {
	a.config.defaults()
	a.logger = ctx.Logger

	name := "provider.anthropic.api_key"
	a.apiKey = a.config.APIKey
	if a.apiKey == "" && a.config.APIKeyEnv != "" {
		a.apiKey = os.Getenv(a.config.APIKeyEnv)
		name = a.config.APIKeyEnv
	}
	if svc, ok := ctx.Service(security.CredentialsService); ok && a.apiKey != "" {
		if creds, ok := svc.(*security.CredentialStore); ok {
			creds.Set(name, a.apiKey)
		}
	}

	opts := []option.RequestOption{
		option.WithHTTPClient(&http.Client{
			Transport: &http.Transport{ResponseHeaderTimeout: a.config.Timeout},
		}),
		// Failover across providers is the chain's job.
		option.WithMaxRetries(0),
	}
	if a.apiKey != "" {
		opts = append(opts, option.WithAPIKey(a.apiKey))
	}
	if a.config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(a.config.BaseURL))
	}

	client := sdkanthropic.NewClient(opts...)
	a.client = &client
	return nil
}

// Validate implements core.Validator.
func (a *Anthropic) Validate() error {
	if a.client == nil {
		return errors.New("provider.anthropic: client not initialized (Provision not called)")
	}
	if a.apiKey == "" {
		if a.config.APIKeyEnv != "" {
			return fmt.Errorf("provider.anthropic: environment variable %s is not set", a.config.APIKeyEnv)
		}
		return errors.New("provider.anthropic: api_key is required")
	}
	if a.config.MaxTokens < 0 {
		return errors.New("provider.anthropic: max_tokens must not be negative")
	}
	return nil
}

// ModelName implements provider.Provider.
func (a *Anthropic) ModelName() string {
	return a.config.Model
}

// HealthConfig implements provider.HealthConfigurer.
func (a *Anthropic) HealthConfig() provider.HealthConfig {
	return a.config.Health
}
