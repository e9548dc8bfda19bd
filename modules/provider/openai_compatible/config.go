package openaicompat

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/flemzord/aether/internal/provider"
)

// Defaults target Groq's OpenAI-compatible endpoint.
const (
	defaultBaseURL   = "https://api.groq.com/openai/v1"
	defaultModel     = "llama-3.1-8b-instant"
	defaultAPIKeyEnv = "GROQ_API_KEY"
)

// Config holds the configuration for an OpenAI-compatible provider.
type Config struct {
	BaseURL   string                `yaml:"base_url"`
	APIKey    string                `yaml:"api_key"`
	APIKeyEnv string                `yaml:"api_key_env"`
	Model     string                `yaml:"model"`
	MaxTokens int                   `yaml:"max_tokens"`
	Headers   map[string]string     `yaml:"headers"`
	Timeout   time.Duration         `yaml:"timeout"`
	Health    provider.HealthConfig `yaml:"health"`
}

// defaults sets default values for unset fields.
func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.APIKey == "" && c.APIKeyEnv == "" {
		c.APIKeyEnv = defaultAPIKeyEnv
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
}

// validate returns an error if required fields are missing.
func (c *Config) validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("provider.openai_compatible: base_url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("provider.openai_compatible: base_url scheme must be http or https, got %q", u.Scheme)
	}
	if c.APIKey == "" {
		if c.APIKeyEnv != "" {
			return fmt.Errorf("provider.openai_compatible: environment variable %s is not set", c.APIKeyEnv)
		}
		return errMissingField("api_key")
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("provider.openai_compatible: max_tokens must not be negative")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("provider.openai_compatible: timeout must not be negative")
	}
	return nil
}

func errMissingField(field string) error {
	return fmt.Errorf("provider.openai_compatible: %s is required", field)
}
