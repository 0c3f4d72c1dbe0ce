package hooks

import "sync"

// Provider is a named bundle of hooks contributed by a plugin. Providers
// register explicitly at process start; there is no import-time discovery.
type Provider struct {
	Name          string
	TemplateHooks []TemplateHook
	ResourceHooks map[string][]ResourceHook
}

var (
	registryMu sync.Mutex
	registry   []Provider
)

// Register adds a provider to the process-wide registry. Providers run in
// registration order, after locally configured hooks.
func Register(p Provider) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = append(registry, p)
}

// ResetRegistry clears all registered providers. Intended for tests.
func ResetRegistry() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = nil
}

func registeredProviders() []Provider {
	registryMu.Lock()
	defer registryMu.Unlock()
	return append([]Provider{}, registry...)
}
