package core

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
)

var (
	modules   = make(map[ModuleID]ModuleInfo)
	modulesMu sync.RWMutex
)

// RegisterModule records a module so it can be referenced from configuration.
// It panics on an empty ID, a nil constructor, or a duplicate registration.
// Modules call it from init().
func RegisterModule(instance Module) {
	info := instance.ModuleInfo()
	if info.ID == "" {
		panic("core: module ID must not be empty")
	}
	if info.New == nil {
		panic(fmt.Sprintf("core: module %s: New must not be nil", info.ID))
	}

	modulesMu.Lock()
	defer modulesMu.Unlock()

	if _, exists := modules[info.ID]; exists {
		panic(fmt.Sprintf("core: module already registered: %s", info.ID))
	}
	modules[info.ID] = info
}

// GetModule returns the ModuleInfo registered under id.
func GetModule(id string) (ModuleInfo, bool) {
	modulesMu.RLock()
	defer modulesMu.RUnlock()
	info, ok := modules[ModuleID(id)]
	return info, ok
}

// GetModules returns all registered modules sorted by ID.
func GetModules() []ModuleInfo {
	return filterModules(func(ModuleInfo) bool { return true })
}

// GetModulesByNamespace returns the modules whose ID namespace equals
// namespace ("store" matches "store.json" and "store.sqlite").
func GetModulesByNamespace(namespace string) []ModuleInfo {
	return filterModules(func(info ModuleInfo) bool {
		return info.ID.Namespace() == namespace
	})
}

func filterModules(keep func(ModuleInfo) bool) []ModuleInfo {
	modulesMu.RLock()
	defer modulesMu.RUnlock()

	var result []ModuleInfo
	for _, info := range modules {
		if keep(info) {
			result = append(result, info)
		}
	}
	slices.SortFunc(result, func(a, b ModuleInfo) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return result
}

// resetRegistry clears the registry. Only for testing.
func resetRegistry() {
	modulesMu.Lock()
	defer modulesMu.Unlock()
	modules = make(map[ModuleID]ModuleInfo)
}
