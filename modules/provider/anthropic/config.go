package anthropic

import (
	"time"

	"github.com/flemzord/aether/internal/provider"
)

// defaultModel is used when none is configured. Pinned to a dated release.
const defaultModel = "claude-3-5-haiku-20241022"

const (
	defaultAPIKeyEnv = "ANTHROPIC_API_KEY"
	defaultMaxTokens = 300
	defaultTimeout   = 30 * time.Second
)

// Config holds the YAML-decoded configuration for the Anthropic provider.
type Config struct {
	APIKey    string                `yaml:"api_key"`
	APIKeyEnv string                `yaml:"api_key_env"`
	Model     string                `yaml:"model"`
	BaseURL   string                `yaml:"base_url"`
	MaxTokens int                   `yaml:"max_tokens"`
	Timeout   time.Duration         `yaml:"timeout"`
	Health    provider.HealthConfig `yaml:"health"`
}

// defaults fills in zero-value fields.
func (c *Config) defaults() {
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.APIKey == "" && c.APIKeyEnv == "" {
		c.APIKeyEnv = defaultAPIKeyEnv
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = defaultMaxTokens
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
}
