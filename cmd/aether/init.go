package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/flemzord/aether/internal/config"
	"github.com/flemzord/aether/internal/cron"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Provider presets offered by the wizard.
const (
	presetGroq      = "groq"
	presetOpenAI    = "openai"
	presetAnthropic = "anthropic"
	presetFailover  = "groq+anthropic"
)

// initAnswers holds the wizard choices.
type initAnswers struct {
	Provider  string
	APIKeyEnv string
	Store     string
	Bind      string
	Backup    string // cron expression, empty disables backups
}

func defaultAnswers() initAnswers {
	return initAnswers{
		Provider:  presetGroq,
		APIKeyEnv: "GROQ_API_KEY",
		Store:     "store.json",
		Bind:      "127.0.0.1:5000",
	}
}

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("output")
			force, _ := cmd.Flags().GetBool("force")
			if path == "" {
				path = config.SearchPaths()[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			answers := defaultAnswers()
			if err := runWizard(&answers); err != nil {
				return err
			}

			data, err := renderConfig(answers)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
				return err
			}
			if err := os.WriteFile(path, data, 0o600); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\nExport %s, then run: aether start -c %s\n", path, answers.APIKeyEnv, path)
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "Where to write the configuration")
	cmd.Flags().Bool("force", false, "Overwrite an existing file")
	return cmd
}

func runWizard(a *initAnswers) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Completion provider").
				Options(
					huh.NewOption("Groq (OpenAI-compatible)", presetGroq),
					huh.NewOption("OpenAI", presetOpenAI),
					huh.NewOption("Anthropic", presetAnthropic),
					huh.NewOption("Groq with Anthropic fallback", presetFailover),
				).
				Value(&a.Provider),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Environment variable holding the primary API key").
				PlaceholderFunc(func() string { return keyEnvFor(a.Provider) }, &a.Provider).
				Value(&a.APIKeyEnv),
			huh.NewSelect[string]().
				Title("Storage").
				Options(
					huh.NewOption("JSON files", "store.json"),
					huh.NewOption("SQLite database", "store.sqlite"),
				).
				Value(&a.Store),
			huh.NewInput().
				Title("Listen address").
				Value(&a.Bind).
				Validate(validateBind),
			huh.NewInput().
				Title("Backup schedule (cron, empty to disable)").
				Placeholder("0 3 * * *").
				Value(&a.Backup).
				Validate(validateBackup),
		),
	)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return errors.New("init aborted")
		}
		return err
	}
	if a.APIKeyEnv == "" || a.APIKeyEnv == defaultAnswers().APIKeyEnv {
		a.APIKeyEnv = keyEnvFor(a.Provider)
	}
	return nil
}

func keyEnvFor(preset string) string {
	switch preset {
	case presetOpenAI:
		return "OPENAI_API_KEY"
	case presetAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return "GROQ_API_KEY"
	}
}

func validateBind(s string) error {
	if _, err := net.ResolveTCPAddr("tcp", s); err != nil {
		return fmt.Errorf("invalid address: %w", err)
	}
	return nil
}

func validateBackup(s string) error {
	if s == "" {
		return nil
	}
	return cron.ValidateSchedule(s)
}

// initFile is the layout of a generated configuration.
type initFile struct {
	Version string                    `yaml:"version"`
	Modules map[string]map[string]any `yaml:"modules"`
	Chat    map[string]any            `yaml:"chat,omitempty"`
	Backup  map[string]any            `yaml:"backup,omitempty"`
}

// renderConfig turns the answers into YAML that config.Validate accepts
// once the API key variables are exported.
func renderConfig(a initAnswers) ([]byte, error) {
	if err := validateBind(a.Bind); err != nil {
		return nil, err
	}
	if err := validateBackup(a.Backup); err != nil {
		return nil, err
	}
	if a.APIKeyEnv == "" {
		a.APIKeyEnv = keyEnvFor(a.Provider)
	}

	f := initFile{
		Version: "1",
		Modules: map[string]map[string]any{
			a.Store:        {},
			"gateway.http": {"bind": a.Bind},
		},
		Chat: map[string]any{
			"temperature": 0.7,
			"max_tokens":  300,
			"timeout":     "30s",
		},
	}

	switch a.Provider {
	case presetGroq:
		f.Modules["provider.openai_compatible"] = map[string]any{"api_key_env": a.APIKeyEnv}
	case presetOpenAI:
		f.Modules["provider.openai_compatible"] = map[string]any{
			"base_url":    "https://api.openai.com/v1",
			"model":       "gpt-4o-mini",
			"api_key_env": a.APIKeyEnv,
		}
	case presetAnthropic:
		f.Modules["provider.anthropic"] = map[string]any{"api_key_env": a.APIKeyEnv}
	case presetFailover:
		f.Modules["provider.openai_compatible"] = map[string]any{"api_key_env": a.APIKeyEnv}
		f.Modules["provider.anthropic"] = map[string]any{"api_key_env": "ANTHROPIC_API_KEY"}
		f.Chat["provider"] = "provider.openai_compatible"
	default:
		return nil, fmt.Errorf("unknown provider preset %q", a.Provider)
	}

	if a.Backup != "" {
		f.Backup = map[string]any{"schedule": a.Backup, "keep": cron.DefaultBackupKeep}
	}
	return yaml.Marshal(f)
}
