// Package config provides configuration loading and structs for the vaultsync server and client.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Vector    VectorConfig    `yaml:"vector"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Indexing  IndexingConfig  `yaml:"indexing"`
	Client    ClientConfig    `yaml:"client"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	APIKeys        []string      `yaml:"api_keys"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// StorageConfig selects the file store and id-mapping store backend.
type StorageConfig struct {
	Driver       string `yaml:"driver"` // sqlite or bolt
	DatabasePath string `yaml:"database_path"`
	BoltPath     string `yaml:"bolt_path"`
}

// VectorConfig selects the vector index backend.
type VectorConfig struct {
	IndexType string `yaml:"index_type"` // memory, sqlite or pgvector
	IndexPath string `yaml:"index_path"`
	DSN       string `yaml:"dsn"`
	Table     string `yaml:"table"`
	TopK      int    `yaml:"top_k"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider          string        `yaml:"provider"` // openai or mock
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"api_key"`
	Model             string        `yaml:"model"`
	Dimensions        int           `yaml:"dimensions"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	// CacheSize bounds the query embedding cache. Unset means 1000; 0 disables it.
	CacheSize *int          `yaml:"cache_size"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
	// AllowClientKey lets a request supply its own OPENAI_API_KEY header.
	AllowClientKey bool `yaml:"allow_client_key"`
}

// IndexingConfig holds section parsing settings.
type IndexingConfig struct {
	// MinViableContentLength is the section retention margin. Unset means 15.
	MinViableContentLength *int `yaml:"min_viable_content_length"`
}

// CacheEntries returns the configured cache size, or 0 when unset.
func (c EmbeddingConfig) CacheEntries() int {
	if c.CacheSize == nil {
		return 0
	}
	return *c.CacheSize
}

// Margin returns the configured retention margin, or the default when unset.
func (c IndexingConfig) Margin() int {
	if c.MinViableContentLength == nil {
		return DefaultMinViableContentLength
	}
	return *c.MinViableContentLength
}

// Int returns a pointer to n, for optional numeric settings.
func Int(n int) *int {
	return &n
}

// ClientConfig holds settings for the push and watch commands.
type ClientConfig struct {
	ServerURL  string   `yaml:"server_url"`
	VaultDir   string   `yaml:"vault_dir"`
	VaultKey   string   `yaml:"vault_key"`
	APIKey     string   `yaml:"api_key"`
	Extensions []string `yaml:"extensions"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	applyEnv(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BoltPath = expandPath(cfg.Storage.BoltPath, configDir)
	if cfg.Vector.IndexPath != "" {
		cfg.Vector.IndexPath = expandPath(cfg.Vector.IndexPath, configDir)
	}
	defaultIndexPath(&cfg)
	if cfg.Client.VaultDir != "" {
		cfg.Client.VaultDir = expandPath(cfg.Client.VaultDir, configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnv fills secrets that are commonly kept out of config files.
func applyEnv(cfg *Config) {
	if cfg.Embedding.APIKey == "" {
		if v := os.Getenv("VAULTSYNC_OPENAI_API_KEY"); v != "" {
			cfg.Embedding.APIKey = v
		} else {
			cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if cfg.Client.APIKey == "" {
		cfg.Client.APIKey = os.Getenv("VAULTSYNC_API_KEY")
	}
	if cfg.Client.VaultKey == "" {
		cfg.Client.VaultKey = os.Getenv("VAULTSYNC_VAULT_KEY")
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}

// Default returns the built-in configuration with environment overrides applied.
// Used when no config file exists.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	applyEnv(&cfg)
	return &cfg
}
