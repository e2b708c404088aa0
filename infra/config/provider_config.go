package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// ProviderConfig manages gateway credentials for the service. Credentials
// come from the environment and can optionally be persisted in SQLite so
// runtime updates survive restarts.
type ProviderConfig struct {
	configs map[string]map[string]string
	storage *SQLiteStorage
	mu      sync.RWMutex
}

// envPrefixes maps a gateway name to its environment variable prefix.
var envPrefixes = map[string]string{
	"wechat": "WECHAT_",
	"alipay": "ALIPAY_",
}

// envKeyMap maps environment variable suffixes to provider config keys.
var envKeyMap = map[string]string{
	"APP_ID":              "appId",
	"MCH_ID":              "mchId",
	"SERIAL_NO":           "serialNo",
	"PRIVATE_KEY":         "privateKey",
	"PUBLIC_KEY":          "publicKey",
	"PLATFORM_PUBLIC_KEY": "platformPublicKey",
	"API_V3_KEY":          "apiV3Key",
	"API_KEY":             "apiKey",
	"SIGN_TYPE":           "signType",
	"NOTIFY_URL":          "notifyUrl",
	"RETURN_URL":          "returnUrl",
	"ENVIRONMENT":         "environment",
	"API_BASE_URL":        "apiBaseUrl",
	"GATEWAY_URL":         "gatewayUrl",
}

// NewProviderConfig creates a new provider configuration manager. The
// storage argument may be nil for env-only operation.
func NewProviderConfig(storage *SQLiteStorage) *ProviderConfig {
	return &ProviderConfig{
		configs: make(map[string]map[string]string),
		storage: storage,
	}
}

// LoadFromEnv reads gateway credentials from environment variables. Only
// gateways with at least one variable set are loaded.
func (pc *ProviderConfig) LoadFromEnv() {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	for gateway, prefix := range envPrefixes {
		config := make(map[string]string)
		for suffix, key := range envKeyMap {
			if value := os.Getenv(prefix + suffix); value != "" {
				config[key] = value
			}
		}
		if len(config) > 0 {
			if _, ok := config["environment"]; !ok {
				config["environment"] = "production"
			}
			pc.configs[gateway] = config
		}
	}
}

// LoadFromStorage merges persisted credentials over env-provided ones.
func (pc *ProviderConfig) LoadFromStorage() error {
	if pc.storage == nil {
		return nil
	}

	stored, err := pc.storage.LoadAllGatewayConfigs()
	if err != nil {
		return err
	}

	pc.mu.Lock()
	defer pc.mu.Unlock()
	for key, config := range stored {
		gateway, _, found := strings.Cut(key, "_")
		if !found {
			continue
		}
		merged := make(map[string]string)
		for k, v := range pc.configs[gateway] {
			merged[k] = v
		}
		for k, v := range config {
			merged[k] = v
		}
		pc.configs[gateway] = merged
	}
	return nil
}

// GetConfig returns a copy of the credentials for a gateway.
func (pc *ProviderConfig) GetConfig(gateway string) (map[string]string, error) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	config, ok := pc.configs[gateway]
	if !ok {
		return nil, fmt.Errorf("no configuration found for gateway: %s", gateway)
	}
	out := make(map[string]string, len(config))
	for k, v := range config {
		out[k] = v
	}
	return out, nil
}

// SetConfig installs credentials for a gateway and persists them when
// storage is configured.
func (pc *ProviderConfig) SetConfig(gateway string, config map[string]string) error {
	pc.mu.Lock()
	pc.configs[gateway] = config
	pc.mu.Unlock()

	if pc.storage != nil {
		environment := config["environment"]
		if environment == "" {
			environment = "production"
		}
		return pc.storage.SaveGatewayConfig(gateway, environment, config)
	}
	return nil
}

// DeleteConfig removes credentials for a gateway.
func (pc *ProviderConfig) DeleteConfig(gateway, environment string) error {
	pc.mu.Lock()
	delete(pc.configs, gateway)
	pc.mu.Unlock()

	if pc.storage != nil {
		return pc.storage.DeleteGatewayConfig(gateway, environment)
	}
	return nil
}

// GatewayConfigs returns a copy of every loaded gateway configuration,
// shaped for the payment manager.
func (pc *ProviderConfig) GatewayConfigs() map[string]map[string]string {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	out := make(map[string]map[string]string, len(pc.configs))
	for gateway, config := range pc.configs {
		c := make(map[string]string, len(config))
		for k, v := range config {
			c[k] = v
		}
		out[gateway] = c
	}
	return out
}
