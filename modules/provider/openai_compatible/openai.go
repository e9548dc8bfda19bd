// Package openaicompat provides an OpenAI-compatible completion provider
// module. It speaks the chat completions wire format used by Groq (the
// default), OpenAI, Mistral, Together, vLLM and similar hosts.
package openaicompat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/flemzord/aether/internal/core"
	"github.com/flemzord/aether/internal/provider"
	"github.com/flemzord/aether/internal/security"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Provider{})
}

// Provider is an OpenAI-compatible completion provider.
type Provider struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (p *Provider) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.openai_compatible",
		New: func() core.Module { return &Provider{} },
	}
}

// Configure implements core.Configurable.
func (p *Provider) Configure(node *yaml.Node) error {
	if err := node.Decode(&p.config); err != nil {
		return err
	}
	p.config.defaults()
	return nil
}

// Provision implements core.Provisioner. It resolves the API key from the
// environment when api_key_env is set and records it in the credential store.
func (p *Provider) Provision(ctx *core.AppContext) error {
	p.config.defaults()
	p.logger = ctx.Logger
	p.client = &http.Client{
		Transport: &http.Transport{
			ResponseHeaderTimeout: p.config.Timeout,
		},
	}

	name := "provider.openai_compatible.api_key"
	if p.config.APIKey == "" && p.config.APIKeyEnv != "" {
		p.config.APIKey = os.Getenv(p.config.APIKeyEnv)
		name = p.config.APIKeyEnv
	}
	if svc, ok := ctx.Service(security.CredentialsService); ok && p.config.APIKey != "" {
		if creds, ok := svc.(*security.CredentialStore); ok {
			creds.Set(name, p.config.APIKey)
		}
	}
	return nil
}

// Validate implements core.Validator.
func (p *Provider) Validate() error {
	return p.config.validate()
}

// Complete implements provider.Provider.
func (p *Provider) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	resp, err := p.doRequest(ctx, buildRequest(p.config.Model, p.config.MaxTokens, req))
	if err != nil {
		return provider.CompletionResponse{}, err
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode != http.StatusOK {
		return provider.CompletionResponse{}, handleErrorResponse(resp)
	}

	var oaiResp oaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&oaiResp); err != nil {
		return provider.CompletionResponse{}, fmt.Errorf("decode response: %w", err)
	}

	p.logger.Debug("completion received",
		"model", p.config.Model,
		"prompt_tokens", oaiResp.Usage.PromptTokens,
		"completion_tokens", oaiResp.Usage.CompletionTokens,
	)
	return parseResponse(oaiResp), nil
}

// ModelName implements provider.Provider.
func (p *Provider) ModelName() string {
	return p.config.Model
}

// HealthConfig implements provider.HealthConfigurer.
func (p *Provider) HealthConfig() provider.HealthConfig {
	return p.config.Health
}

// HealthCheck implements provider.HealthChecker.
// It probes the /models endpoint to check provider availability.
func (p *Provider) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.BaseURL+"/models", nil)
	if err != nil {
		return err
	}
	p.setHeaders(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: health check: %w", provider.ErrProviderDown, err)
	}
	defer resp.Body.Close()               //nolint:errcheck // best-effort close
	_, _ = io.Copy(io.Discard, resp.Body) // drain body

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: health check returned HTTP %d", provider.ErrProviderDown, resp.StatusCode)
	}
	return nil
}

func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	for k, v := range p.config.Headers {
		req.Header.Set(k, v)
	}
}

// Compile-time interface assertions.
var (
	_ core.Module               = (*Provider)(nil)
	_ core.Configurable         = (*Provider)(nil)
	_ core.Provisioner          = (*Provider)(nil)
	_ core.Validator            = (*Provider)(nil)
	_ provider.Provider         = (*Provider)(nil)
	_ provider.HealthChecker    = (*Provider)(nil)
	_ provider.HealthConfigurer = (*Provider)(nil)
)
