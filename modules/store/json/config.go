package jsonstore

import "fmt"

const defaultLegacyHistory = "chat_history.json"

// Config holds the JSON file store configuration.
type Config struct {
	// Dir holds one <kind>.json file per document. Defaults to {DataDir}.
	Dir string `yaml:"dir"`

	// LegacyHistory is read in place of a missing conversations.json, so a
	// single-session history array from older installs is migrated on the
	// next save. Relative paths resolve against Dir. "-" disables it.
	LegacyHistory string `yaml:"legacy_history"`
}

func (c *Config) defaults() {
	if c.LegacyHistory == "" {
		c.LegacyHistory = defaultLegacyHistory
	}
}

func (c *Config) validate() error {
	if c.Dir == "" {
		return fmt.Errorf("store.json: dir is required")
	}
	return nil
}
