package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the config file name looked up in the search path.
const DefaultFileName = "aether.yaml"

// EmbeddedSource is reported by FindConfig when no file was found.
const EmbeddedSource = "<embedded default>"

//go:embed default.yaml
var defaultConfig []byte

// envPattern matches ${VAR} and ${VAR:-default} expressions.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^}\\]|\\.)*))?\}`)

// Load reads a YAML configuration file, expands environment variables,
// and parses it into a Config struct.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return parse(raw, path)
}

// LoadDefault parses the configuration compiled into the binary: the Groq
// provider, the JSON store, and the HTTP gateway on 127.0.0.1:5000.
func LoadDefault() (*Config, error) {
	return parse(defaultConfig, EmbeddedSource)
}

// DefaultYAML returns the embedded default configuration text.
func DefaultYAML() []byte {
	return append([]byte(nil), defaultConfig...)
}

// SearchPaths returns the locations FindConfig probes, in order.
func SearchPaths() []string {
	var paths []string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "aether", DefaultFileName))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "aether", DefaultFileName))
	}
	return append(paths, DefaultFileName)
}

// FindConfig returns the first existing file among SearchPaths, or
// EmbeddedSource when none exists.
func FindConfig() string {
	for _, p := range SearchPaths() {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return EmbeddedSource
}

// LoadFrom loads path, or the embedded default when path is EmbeddedSource.
func LoadFrom(path string) (*Config, error) {
	if path == EmbeddedSource {
		return LoadDefault()
	}
	return Load(path)
}

func parse(raw []byte, source string) (*Config, error) {
	expanded, err := expandEnv(raw)
	if err != nil {
		return nil, fmt.Errorf("config: expanding variables in %s: %w", source, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", source, err)
	}
	return &cfg, nil
}

// expandEnv replaces ${VAR} and ${VAR:-default} patterns in raw YAML bytes.
// Returns an error listing all unresolved variables (no default, no env value).
func expandEnv(raw []byte) ([]byte, error) {
	var errs []error

	result := envPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		subs := envPattern.FindSubmatch(match)
		name := string(subs[1])
		hasDefault := len(subs) > 2 && subs[2] != nil

		if value, ok := os.LookupEnv(name); ok {
			return []byte(value)
		}
		if hasDefault {
			return subs[2]
		}

		errs = append(errs, fmt.Errorf("unresolved variable: %s", name))
		return match
	})

	return result, errors.Join(errs...)
}
