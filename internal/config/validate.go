package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/flemzord/aether/internal/core"
	"github.com/flemzord/aether/internal/cron"
)

// Validate checks the structural validity of a Config.
// It verifies the version field, that every module ID is registered, that
// exactly one store and at least one provider are configured, and the ranges
// of the chat, telemetry, and backup settings.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if len(cfg.Modules) == 0 {
		errs = append(errs, errors.New("config: at least one module must be configured"))
	}

	for id := range cfg.Modules {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
		}
	}

	errs = append(errs, validateNamespaces(cfg)...)
	errs = append(errs, validateChat(cfg)...)
	errs = append(errs, validateAmbient(cfg)...)
	errs = append(errs, validateTimeouts(cfg)...)

	return errors.Join(errs...)
}

func validateNamespaces(cfg *Config) []error {
	var errs []error

	stores := ModulesIn(cfg, "store")
	switch len(stores) {
	case 0:
		errs = append(errs, errors.New("config: exactly one store module is required, none configured"))
	case 1:
	default:
		errs = append(errs, fmt.Errorf("config: exactly one store module is required, got %v", stores))
	}

	if len(ModulesIn(cfg, "provider")) == 0 {
		errs = append(errs, errors.New("config: at least one provider module is required"))
	}
	return errs
}

func validateChat(cfg *Config) []error {
	var errs []error
	c := cfg.Chat

	if c.Provider != "" {
		if core.ModuleID(c.Provider).Namespace() != "provider" {
			errs = append(errs, fmt.Errorf("config: chat.provider %q is not a provider module", c.Provider))
		} else if _, ok := cfg.Modules[c.Provider]; !ok {
			errs = append(errs, fmt.Errorf("config: chat.provider %q is not configured under modules", c.Provider))
		}
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		errs = append(errs, fmt.Errorf("config: chat.temperature must be within [0, 2], got %g", *c.Temperature))
	}
	if c.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("config: chat.max_tokens must be >= 0, got %d", c.MaxTokens))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("config: chat.timeout must be >= 0, got %s", c.Timeout))
	}
	if c.TitleMaxLen < 0 {
		errs = append(errs, fmt.Errorf("config: chat.title_max_len must be >= 0, got %d", c.TitleMaxLen))
	}
	if p := c.Profile; p != nil {
		for i, m := range p.Members {
			if m.Name == "" {
				errs = append(errs, fmt.Errorf("config: chat.profile.members[%d]: name is required", i))
			}
		}
	}
	return errs
}

func validateAmbient(cfg *Config) []error {
	var errs []error

	if cfg.Security.MaxMessageBytes < 0 {
		errs = append(errs, fmt.Errorf("config: security.max_message_bytes must be >= 0, got %d", cfg.Security.MaxMessageBytes))
	}
	if r := cfg.Telemetry.SampleRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("config: telemetry.sample_ratio must be within [0, 1], got %g", r))
	}
	if cfg.Backup.Schedule != "" {
		if err := cron.ValidateSchedule(cfg.Backup.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("config: backup.schedule: %w", err))
		}
	}
	if cfg.Backup.Keep < 0 {
		errs = append(errs, fmt.Errorf("config: backup.keep must be >= 0, got %d", cfg.Backup.Keep))
	}
	return errs
}

// Timeouts applied by the completion gateway and the HTTP gateway when left
// at zero.
const (
	defaultChatTimeout  = 30 * time.Second
	defaultWriteTimeout = 90 * time.Second
)

// validateTimeouts requires the HTTP write timeout to outlast a completion
// call, so the timeout page still reaches the browser.
func validateTimeouts(cfg *Config) []error {
	node, ok := cfg.Modules["gateway.http"]
	if !ok {
		return nil
	}
	var gw struct {
		WriteTimeout time.Duration `yaml:"write_timeout"`
	}
	if node.Kind != 0 {
		if err := node.Decode(&gw); err != nil {
			return []error{fmt.Errorf("config: gateway.http: %w", err)}
		}
	}

	chatTimeout := cfg.Chat.Timeout
	if chatTimeout <= 0 {
		chatTimeout = defaultChatTimeout
	}
	writeTimeout := gw.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	if writeTimeout <= chatTimeout {
		return []error{fmt.Errorf("config: gateway.http write_timeout (%s) must exceed chat.timeout (%s)", writeTimeout, chatTimeout)}
	}
	return nil
}
