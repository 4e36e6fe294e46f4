// Package config provides configuration management for sdn-keep.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/spacedatanetwork/sdn-keep/internal/store"
)

// Config represents the sdn-keep configuration.
type Config struct {
	Keep  KeepConfig  `yaml:"keep"`
	Local LocalConfig `yaml:"local"`
	Admin AdminConfig `yaml:"admin"`
	Audit AuditConfig `yaml:"audit"`
	Gater GaterConfig `yaml:"gater"`
}

// KeepConfig locates the keep and sets its trust policy.
type KeepConfig struct {
	Path       string `yaml:"path"`
	Stack      string `yaml:"stack"`
	Backend    string `yaml:"backend"` // "file", "sqlite" or "leveldb"
	AutoAccept bool   `yaml:"auto_accept"`
	StrictKeys bool   `yaml:"strict_keys"`
}

// LocalConfig describes this node.
type LocalConfig struct {
	UID     string `yaml:"uid"`
	Name    string `yaml:"name"`
	IsRelay bool   `yaml:"is_relay"`
	Host    string `yaml:"host"`
	Port    uint16 `yaml:"port"`
}

// AdminConfig contains admin API settings.
type AdminConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	// Browser origins allowed to call the admin API. Empty refuses all
	// cross-origin browser requests.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// AuditConfig contains audit log settings.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// GaterConfig contains connection gating settings.
type GaterConfig struct {
	Strict bool `yaml:"strict"`
}

// Default returns a default configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	base := filepath.Join(homeDir, ".spacedatanetwork")

	return &Config{
		Keep: KeepConfig{
			Path:       base,
			Stack:      "main",
			Backend:    store.BackendFile,
			AutoAccept: false,
			StrictKeys: true,
		},
		Local: LocalConfig{
			Port: 7530,
		},
		Admin: AdminConfig{
			Enabled: false,
			Listen:  "127.0.0.1:7531",
		},
		Audit: AuditConfig{
			Enabled: true,
			Path:    filepath.Join(base, "audit"),
		},
	}
}

// DefaultPath returns the default configuration file path.
func DefaultPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".spacedatanetwork", "keep.yaml")
}

// Load loads the configuration from a file. Settings missing from the file
// keep their default values.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return default config if file doesn't exist
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Save saves the configuration to a file.
func Save(path string, cfg *Config) error {
	if path == "" {
		path = DefaultPath()
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks the settings that cannot be fixed up at runtime.
func (c *Config) Validate() error {
	switch c.Keep.Backend {
	case store.BackendFile, store.BackendSQLite, store.BackendLevelDB:
	default:
		return fmt.Errorf("unknown keep backend %q", c.Keep.Backend)
	}
	if err := store.ValidStack(c.Keep.Stack); err != nil {
		return err
	}
	if c.Keep.Path == "" {
		return fmt.Errorf("keep path is required")
	}
	if c.Local.UID != "" {
		if err := store.ValidUID(c.Local.UID); err != nil {
			return fmt.Errorf("local uid: %w", err)
		}
	}
	if c.Admin.Enabled && c.Admin.Listen == "" {
		return fmt.Errorf("admin listen address is required when admin is enabled")
	}
	return nil
}

// StoreOptions returns the store options for a keep.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Backend: c.Keep.Backend,
		Dir:     c.Keep.Path,
		Stack:   c.Keep.Stack,
	}
}
