// Package config handles YAML configuration loading, environment variable
// expansion, config file discovery, and structural validation for aether.
package config

import (
	"time"

	"github.com/flemzord/aether/internal/security"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "store.json").
	Modules map[string]yaml.Node `yaml:"modules"`

	Chat      ChatConfig      `yaml:"chat"`
	Security  SecurityConfig  `yaml:"security"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Backup    BackupConfig    `yaml:"backup"`
}

// ChatConfig tunes prompt construction and the completion call.
type ChatConfig struct {
	// Provider is the module ID of the primary provider. Other configured
	// providers become fallbacks in ID order. Empty selects the first one.
	Provider string `yaml:"provider"`

	// SystemPrompt replaces the roster text of the system prompt.
	SystemPrompt string `yaml:"system_prompt"`

	// Profile is the roster described in the default system prompt.
	Profile *ProfileConfig `yaml:"profile"`

	Temperature   *float64      `yaml:"temperature"`
	MaxTokens     int           `yaml:"max_tokens"`
	Timeout       time.Duration `yaml:"timeout"`
	DefaultTitle  string        `yaml:"default_title"`
	TitleMaxLen   int           `yaml:"title_max_len"`
	MemoryTrigger string        `yaml:"memory_trigger"`
}

// ProfileConfig describes a team whose members the assistant helps.
type ProfileConfig struct {
	Team    string         `yaml:"team"`
	Grade   string         `yaml:"grade"`
	School  string         `yaml:"school"`
	Members []MemberConfig `yaml:"members"`
}

// MemberConfig is one roster entry.
type MemberConfig struct {
	Name      string   `yaml:"name"`
	Role      string   `yaml:"role"`
	Strengths []string `yaml:"strengths"`
	Interests []string `yaml:"interests"`
	Goal      string   `yaml:"goal"`
}

// SecurityConfig holds request limits and the audit log location.
type SecurityConfig struct {
	RateLimits      security.RateLimitConfig `yaml:"rate_limits"`
	MaxMessageBytes int                      `yaml:"max_message_bytes"`

	// AuditLog is a JSONL file path. Empty disables the audit log.
	AuditLog string `yaml:"audit_log"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	// Endpoint is the OTLP/HTTP collector host:port. Empty disables export.
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// BackupConfig configures scheduled document snapshots.
type BackupConfig struct {
	// Schedule is a cron expression. Empty disables backups.
	Schedule string `yaml:"schedule"`

	// Dir receives the snapshots. Defaults to {data_dir}/backups.
	Dir string `yaml:"dir"`

	// Keep is the number of snapshots retained per document.
	Keep int `yaml:"keep"`
}
