package provider

import (
	"fmt"
	"sync"
)

type registryEntry struct {
	factory       ProviderFactory
	defaultConfig map[string]string
}

// ProviderRegistry manages all payment provider implementations
type ProviderRegistry struct {
	entries   map[string]registryEntry
	instances map[string]PaymentProvider
	mu        sync.RWMutex
}

// NewProviderRegistry creates a new provider registry
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		entries:   make(map[string]registryEntry),
		instances: make(map[string]PaymentProvider),
	}
}

// Register adds a payment provider factory to the registry. The optional
// defaultConfig is merged under caller-supplied config at Create time.
// Registering the same name twice is an error.
func (r *ProviderRegistry) Register(name string, factory ProviderFactory, defaultConfig map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("payment provider '%s' is already registered", name)
	}
	r.entries[name] = registryEntry{factory: factory, defaultConfig: defaultConfig}
	return nil
}

// Get retrieves a payment provider factory by name
func (r *ProviderRegistry) Get(name string) (ProviderFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.entries[name]
	if !exists {
		return nil, &UnknownProviderError{Name: name}
	}
	return entry.factory, nil
}

// Create builds a fresh provider instance and initializes it with the
// registered default config merged under the caller's config. Configuration
// problems surface here, before any payment call is made.
func (r *ProviderRegistry) Create(name string, config map[string]string) (PaymentProvider, error) {
	r.mu.RLock()
	entry, exists := r.entries[name]
	r.mu.RUnlock()
	if !exists {
		return nil, &UnknownProviderError{Name: name}
	}

	merged := make(map[string]string, len(entry.defaultConfig)+len(config))
	for k, v := range entry.defaultConfig {
		merged[k] = v
	}
	for k, v := range config {
		merged[k] = v
	}

	p := entry.factory()
	if err := p.Initialize(merged); err != nil {
		return nil, err
	}
	return p, nil
}

// GetOrCreate returns the cached instance for name, creating and caching one
// on first use.
func (r *ProviderRegistry) GetOrCreate(name string, config map[string]string) (PaymentProvider, error) {
	r.mu.RLock()
	instance, ok := r.instances[name]
	r.mu.RUnlock()
	if ok {
		return instance, nil
	}

	instance, err := r.Create(name, config)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.instances[name]; ok {
		return existing, nil
	}
	r.instances[name] = instance
	return instance, nil
}

// Names returns a list of all registered provider names
func (r *ProviderRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	return names
}

// Reset drops all registrations and cached instances. Intended for tests.
func (r *ProviderRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = make(map[string]registryEntry)
	r.instances = make(map[string]PaymentProvider)
}

// DefaultRegistry is the global default provider registry
var DefaultRegistry = NewProviderRegistry()

// Register registers a provider with the default registry
func Register(name string, factory ProviderFactory, defaultConfig map[string]string) error {
	return DefaultRegistry.Register(name, factory, defaultConfig)
}

// MustRegister registers a provider with the default registry and panics on
// error. Built-in gateways use it from their package init.
func MustRegister(name string, factory ProviderFactory, defaultConfig map[string]string) {
	if err := Register(name, factory, defaultConfig); err != nil {
		panic(err)
	}
}

// Get retrieves a provider factory from the default registry
func Get(name string) (ProviderFactory, error) {
	return DefaultRegistry.Get(name)
}

// Create creates and initializes a provider instance from the default registry
func Create(name string, config map[string]string) (PaymentProvider, error) {
	return DefaultRegistry.Create(name, config)
}
