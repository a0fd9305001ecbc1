package config

import (
	"path/filepath"
	"time"
)

// DefaultOrigin is the origin the Obsidian desktop app sends.
const DefaultOrigin = "app://obsidian.md"

// DefaultMinViableContentLength is the section retention margin used when none is configured.
const DefaultMinViableContentLength = 15

// DefaultCacheSize is the number of query embeddings cached when no size is configured.
const DefaultCacheSize = 1000

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8787
	}
	if cfg.Server.AllowedOrigins == nil {
		cfg.Server.AllowedOrigins = []string{DefaultOrigin}
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 5 * time.Minute
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/vaultsync/data/vaultsync.db"
	}
	if cfg.Storage.BoltPath == "" {
		cfg.Storage.BoltPath = "/usr/local/var/vaultsync/data/vaultsync.bolt"
	}
	if cfg.Vector.IndexType == "" {
		cfg.Vector.IndexType = "sqlite"
	}
	defaultIndexPath(cfg)
	if cfg.Vector.Table == "" {
		cfg.Vector.Table = "vault_vectors"
	}
	if cfg.Vector.TopK == 0 {
		cfg.Vector.TopK = 20
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1536
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 30 * time.Second
	}
	if cfg.Embedding.RequestsPerSecond == 0 {
		cfg.Embedding.RequestsPerSecond = 5
	}
	if cfg.Embedding.Burst == 0 {
		cfg.Embedding.Burst = 1
	}
	if cfg.Embedding.CacheSize == nil {
		cfg.Embedding.CacheSize = Int(DefaultCacheSize)
	}
	if cfg.Embedding.CacheTTL == 0 {
		cfg.Embedding.CacheTTL = time.Hour
	}
	if cfg.Indexing.MinViableContentLength == nil {
		cfg.Indexing.MinViableContentLength = Int(DefaultMinViableContentLength)
	}
	if cfg.Client.ServerURL == "" {
		cfg.Client.ServerURL = "http://localhost:8787"
	}
	if cfg.Client.Extensions == nil {
		cfg.Client.Extensions = []string{".md"}
	}
}

// defaultIndexPath places a sqlite vector index, or a memory index snapshot, next to the
// main database. Relative database paths are skipped until they have been expanded.
func defaultIndexPath(cfg *Config) {
	if cfg.Vector.IndexPath != "" || !filepath.IsAbs(cfg.Storage.DatabasePath) {
		return
	}
	dir := filepath.Dir(cfg.Storage.DatabasePath)
	switch cfg.Vector.IndexType {
	case "sqlite":
		cfg.Vector.IndexPath = filepath.Join(dir, "vectors.db")
	case "memory":
		cfg.Vector.IndexPath = filepath.Join(dir, "vectors.idx")
	}
}
