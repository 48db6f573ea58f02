// Package config loads stepwise settings from .stepwise/config.yaml.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/stepwise/pkg/domain/tasks"
	"github.com/felixgeelhaar/stepwise/pkg/storage"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"

	DefaultAddr        = "localhost:3000"
	DefaultTemperature = 0.7
)

// AIConfig selects the model provider.
type AIConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model,omitempty"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens,omitempty"`
	// TimeoutSec bounds each generation. Zero leaves the HTTP client default.
	TimeoutSec int `yaml:"timeout_sec,omitempty"`
}

// Timeout returns TimeoutSec as a duration.
func (c AIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// WebhookConfig points at the notification sink.
type WebhookConfig struct {
	URL string `yaml:"url"`
}

// StorageConfig picks the slot backend.
type StorageConfig struct {
	Backend    string `yaml:"backend"`
	Slot       string `yaml:"slot"`
	SQLitePath string `yaml:"sqlite_path,omitempty"`
}

// ServerConfig configures `stepwise serve`.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the whole file.
type Config struct {
	AI      AIConfig      `yaml:"ai"`
	Webhook WebhookConfig `yaml:"webhook"`
	Storage StorageConfig `yaml:"storage"`
	Server  ServerConfig  `yaml:"server"`
}

// Default returns the settings used when no file exists.
func Default() *Config {
	return &Config{
		AI: AIConfig{
			Provider:    "openai",
			Temperature: DefaultTemperature,
		},
		Storage: StorageConfig{
			Backend: BackendFile,
			Slot:    tasks.DefaultSlot,
		},
		Server: ServerConfig{
			Addr: DefaultAddr,
		},
	}
}

// Path returns the config file location under root.
func Path(root string) (string, error) {
	return storage.ResolvePath(root, storage.ConfigFile)
}

// Load reads the config under root, filling gaps with defaults and applying
// environment overrides. A missing file is not an error.
func Load(root string) (*Config, error) {
	cfg := Default()

	path, err := Path(root)
	if err != nil {
		return nil, err
	}

	// #nosec G304 -- Path is resolved and validated via ResolvePath
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.fillDefaults(root)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to .stepwise/config.yaml.
func Save(root string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	path, err := Path(root)
	if err != nil {
		return err
	}
	if err := storage.Initialize(root); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

func (c *Config) applyEnv() {
	if v := os.Getenv("STEPWISE_WEBHOOK_URL"); v != "" {
		c.Webhook.URL = v
	}
	if v := os.Getenv("STEPWISE_ADDR"); v != "" {
		c.Server.Addr = v
	}
}

func (c *Config) fillDefaults(root string) {
	if c.AI.Temperature <= 0 {
		c.AI.Temperature = DefaultTemperature
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendFile
	}
	if c.Storage.Slot == "" {
		c.Storage.Slot = tasks.DefaultSlot
	}
	if c.Storage.Backend == BackendSQLite && c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = filepath.Join(root, storage.StepwiseDir, storage.DatabaseFile)
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
}

// Validate rejects settings no component can honour.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("unsupported storage backend: %s", c.Storage.Backend)
	}
	if c.AI.Temperature > 2 {
		return fmt.Errorf("ai.temperature must be between 0 and 2, got %v", c.AI.Temperature)
	}
	if c.AI.TimeoutSec < 0 {
		return fmt.Errorf("ai.timeout_sec must not be negative")
	}
	return nil
}
