// Package config holds the bridge configuration: API surface, webhook
// endpoint, and the WhatsApp session settings. Values live in an encrypted
// store and can be overridden by environment variables at startup.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

type Config struct {
	mu        sync.RWMutex
	storePath string

	LogLevel string         `json:"log_level"`
	API      APIConfig      `json:"api"`
	Webhook  WebhookConfig  `json:"webhook"`
	Channels ChannelsConfig `json:"channels"`
}

type APIConfig struct {
	Host        string `json:"host"`
	Port        int    `json:"port"`
	AuthEnabled bool   `json:"auth_enabled"`
	Token       string `json:"token,omitempty"`
}

type WebhookConfig struct {
	URL            string `json:"url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type ChannelsConfig struct {
	WhatsApp WhatsAppConfig `json:"whatsapp"`
}

type WhatsAppConfig struct {
	// StorePath is the sqlite credential database. Ignored when DatabaseURL
	// points at postgres.
	StorePath   string `json:"store_path"`
	DatabaseURL string `json:"database_url,omitempty"`
	// PairingMode is "qr" or "code". Code pairing requires PairPhone.
	PairingMode string `json:"pairing_mode"`
	PairPhone   string `json:"pair_phone,omitempty"`
	PrintQR     bool   `json:"print_qr"`
}

func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		LogLevel: "info",
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 3000,
		},
		Webhook: WebhookConfig{
			TimeoutSeconds: 10,
		},
		Channels: ChannelsConfig{
			WhatsApp: WhatsAppConfig{
				StorePath:   filepath.Join(home, ".wahook", "whatsapp.db"),
				PairingMode: "qr",
				PrintQR:     true,
			},
		},
	}
}

// LoadConfig loads configuration from the encrypted store at path (empty
// means the default location), applies environment overrides, and persists
// the result when an override changed anything.
func LoadConfig(path string) (*Config, error) {
	cfg, err := loadConfigFromStore(path)
	if err != nil {
		return nil, err
	}
	cfg.storePath = path

	if applyEnvOverrides(cfg) {
		if err := cfg.Save(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// LoadConfigFromFile reads a plain JSON config file. Used for migrating
// pre-store installations.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save persists the current configuration to the encrypted store.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return saveConfigToStore(c.storePath, c)
}

// Snapshot returns a copy of the configuration values, safe to read without
// holding the lock.
func (c *Config) Snapshot() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Config{
		LogLevel: c.LogLevel,
		API:      c.API,
		Webhook:  c.Webhook,
		Channels: c.Channels,
	}
}
