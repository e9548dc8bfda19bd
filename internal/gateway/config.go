package gateway

import "time"

// Config holds HTTP gateway configuration.
type Config struct {
	Bind string `yaml:"bind"`

	// Title is the page header.
	Title string `yaml:"title"`

	// Auth protects the admin endpoints. They are not mounted without it.
	Auth AuthConfig `yaml:"auth"`

	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// defaults fills zero values with sensible defaults. WriteTimeout has to
// cover a full completion call.
func (c *Config) defaults() {
	if c.Bind == "" {
		c.Bind = "127.0.0.1:5000"
	}
	if c.Title == "" {
		c.Title = "Team Aether AI Assistant"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 90 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}

// AuthConfig configures authentication for admin endpoints.
type AuthConfig struct {
	BearerToken string `yaml:"bearer_token"`
	BasicUser   string `yaml:"basic_user"`
	BasicPass   string `yaml:"basic_pass"`
}

// IsConfigured returns true if any auth method is configured.
func (a AuthConfig) IsConfigured() bool {
	return a.BearerToken != "" || (a.BasicUser != "" && a.BasicPass != "")
}
