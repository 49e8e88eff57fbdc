package backend

import (
	"fmt"
	"sort"
	"sync"
)

// Constructor builds one backend's adapter.
type Constructor func() Adapter

// The process-wide registry, populated at startup and consulted only by
// New. Nothing below the factory level reads it.
var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{}
)

// Register installs a backend constructor under name. Re-registering a name
// panics: constructors are wired once at startup, and a silent overwrite
// would hide a wiring bug.
func Register(name string, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("backend %q registered twice", name))
	}
	registry[name] = ctor
}

// New constructs the adapter registered under name.
func New(name string) (Adapter, error) {
	registryMu.RLock()
	ctor, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
	return ctor(), nil
}

// Names lists registered backends, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset clears the registry. Test teardown only.
func Reset() {
	registryMu.Lock()
	registry = map[string]Constructor{}
	registryMu.Unlock()
}
