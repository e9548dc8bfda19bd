package config

import (
	"slices"

	"github.com/flemzord/aether/internal/core"
)

// Resolve returns a sorted list of module IDs from the configuration.
// The deterministic order ensures consistent module loading.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// ModulesIn returns the sorted configured module IDs in namespace.
func ModulesIn(cfg *Config, namespace string) []string {
	var ids []string
	for _, id := range Resolve(cfg) {
		if core.ModuleID(id).Namespace() == namespace {
			ids = append(ids, id)
		}
	}
	return ids
}

// LoadOrder returns the configured module IDs in lifecycle order: the store
// first, then providers, then everything else. Modules stop in reverse, so
// the store outlives the modules that write to it.
func LoadOrder(cfg *Config) []string {
	rank := func(id string) int {
		switch core.ModuleID(id).Namespace() {
		case "store":
			return 0
		case "provider":
			return 1
		default:
			return 2
		}
	}
	ids := Resolve(cfg)
	slices.SortStableFunc(ids, func(a, b string) int { return rank(a) - rank(b) })
	return ids
}
