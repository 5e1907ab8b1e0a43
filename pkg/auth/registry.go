package auth

import (
	"encoding/json"
	"fmt"
	"sync"
)

// ProviderConfig selects a validator implementation and carries its
// provider-specific settings as raw JSON.
type ProviderConfig struct {
	Type   string          `yaml:"type" json:"type"`
	Config json.RawMessage `yaml:"config" json:"config"`
}

// ValidatorFactory builds a Validator from raw provider settings.
type ValidatorFactory func(config json.RawMessage) (Validator, error)

var (
	factories = make(map[string]ValidatorFactory)
	mu        sync.RWMutex
)

// RegisterProvider makes a validator type available to NewValidator.
// Providers call this from init(), so importing a provider package is enough
// to enable it.
func RegisterProvider(providerType string, factory ValidatorFactory) {
	mu.Lock()
	defer mu.Unlock()
	factories[providerType] = factory
}

// NewValidator builds the validator named by the config.
func NewValidator(providerConfig ProviderConfig) (Validator, error) {
	mu.RLock()
	factory, ok := factories[providerConfig.Type]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("no auth provider registered for type %q", providerConfig.Type)
	}

	return factory(providerConfig.Config)
}

// ListProviders returns the registered provider types.
func ListProviders() []string {
	mu.RLock()
	defer mu.RUnlock()

	providers := make([]string, 0, len(factories))
	for name := range factories {
		providers = append(providers, name)
	}
	return providers
}
