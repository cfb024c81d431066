package secrets

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a fresh store instance for a registered backend name.
type Factory func() (SecretStore, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{
		"memory":      func() (SecretStore, error) { return NewMemoryStore(), nil },
		"environment": func() (SecretStore, error) { return NewEnvStore(), nil },
		"keychain":    func() (SecretStore, error) { return NewKeyringStore(), nil },
	}
)

// Register adds a named backend. Registering a name twice is a programming
// error and panics, matching the database/sql driver convention.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if factory == nil {
		panic("secrets: Register with nil factory")
	}
	if _, dup := registry[name]; dup {
		panic("secrets: Register called twice for backend " + name)
	}
	registry[name] = factory
}

// Open instantiates a registered backend by name.
func Open(name string) (SecretStore, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("secrets: unknown backend %q", name)
	}
	return factory()
}

// List returns the registered backend names, sorted.
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
