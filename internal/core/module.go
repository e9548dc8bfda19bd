// Package core provides the module system aether is assembled from:
// a process-wide module registry, a shared AppContext carrying the logger,
// data directory, module configuration and cross-module services, and the
// App type that drives module lifecycles.
package core

import "strings"

// ModuleID identifies a module as "<namespace>.<name>", e.g. "store.json".
type ModuleID string

// Namespace returns the part of the ID before the first dot.
func (id ModuleID) Namespace() string {
	ns, _, _ := strings.Cut(string(id), ".")
	return ns
}

// Name returns the part of the ID after the first dot.
func (id ModuleID) Name() string {
	_, name, _ := strings.Cut(string(id), ".")
	return name
}

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	// ID is the unique module identifier.
	ID ModuleID

	// New returns a fresh, unconfigured instance of the module.
	New func() Module
}

// Module is implemented by every aether module.
type Module interface {
	ModuleInfo() ModuleInfo
}
