package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
  api_keys: ["k1", "k2"]
storage:
  driver: bolt
  bolt_path: "./data/vault.bolt"
vector:
  index_type: memory
embedding:
  provider: mock
  api_key: "sk-test"
  timeout: 10s
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if len(cfg.Server.APIKeys) != 2 {
		t.Errorf("api_keys: got %v", cfg.Server.APIKeys)
	}
	if cfg.Storage.Driver != "bolt" {
		t.Errorf("driver = %s, want bolt", cfg.Storage.Driver)
	}
	if want := filepath.Join(dir, "data", "vault.bolt"); cfg.Storage.BoltPath != want {
		t.Errorf("bolt_path = %s, want %s", cfg.Storage.BoltPath, want)
	}
	if cfg.Embedding.Timeout != 10*time.Second {
		t.Errorf("timeout = %s, want 10s", cfg.Embedding.Timeout)
	}
	if cfg.Embedding.APIKey != "sk-test" {
		t.Errorf("api_key from file should win over env, got %q", cfg.Embedding.APIKey)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_apiKeyFromEnv(t *testing.T) {
	t.Setenv("VAULTSYNC_OPENAI_API_KEY", "sk-env")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("debug: true\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
	if cfg.Embedding.APIKey != "sk-env" {
		t.Errorf("api_key = %q, want sk-env", cfg.Embedding.APIKey)
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8787 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != DefaultOrigin {
		t.Errorf("allowed origins: got %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Vector.IndexType != "sqlite" {
		t.Errorf("drivers: storage=%s vector=%s", cfg.Storage.Driver, cfg.Vector.IndexType)
	}
	if cfg.Vector.TopK != 20 {
		t.Errorf("top_k: got %d, want 20", cfg.Vector.TopK)
	}
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("model: got %s", cfg.Embedding.Model)
	}
	if cfg.Indexing.Margin() != 15 {
		t.Errorf("min_viable_content_length: got %d", cfg.Indexing.Margin())
	}
	if cfg.Embedding.CacheEntries() != 1000 {
		t.Errorf("cache_size: got %d", cfg.Embedding.CacheEntries())
	}
	if len(cfg.Client.Extensions) != 1 || cfg.Client.Extensions[0] != ".md" {
		t.Errorf("client extensions: got %v", cfg.Client.Extensions)
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{
		Server:  ServerConfig{Host: "localhost", Port: 9090},
		Storage: StorageConfig{DatabasePath: "/tmp/db"},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
	if loaded.Storage.DatabasePath != "/tmp/db" {
		t.Errorf("loaded database_path: got %s", loaded.Storage.DatabasePath)
	}
}

func TestLoad_sqliteIndexNextToDatabase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
storage:
  database_path: "./data/vaultsync.db"
vector:
  index_type: sqlite
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "data", "vectors.db"); cfg.Vector.IndexPath != want {
		t.Errorf("index_path = %s, want %s", cfg.Vector.IndexPath, want)
	}
}

func TestDefault(t *testing.T) {
	t.Setenv("VAULTSYNC_VAULT_KEY", "my-vault")
	t.Setenv("VAULTSYNC_API_KEY", "")
	cfg := Default()
	if cfg.Client.VaultKey != "my-vault" {
		t.Errorf("VaultKey = %q", cfg.Client.VaultKey)
	}
	if cfg.Client.ServerURL != "http://localhost:8787" {
		t.Errorf("ServerURL = %q", cfg.Client.ServerURL)
	}
	if cfg.Server.Port != 8787 {
		t.Errorf("Port = %d", cfg.Server.Port)
	}
}

func TestLoad_explicitZeros(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
embedding:
  cache_size: 0
indexing:
  min_viable_content_length: 0
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.Indexing.Margin(); got != 0 {
		t.Errorf("min_viable_content_length: got %d, want 0", got)
	}
	if got := cfg.Embedding.CacheEntries(); got != 0 {
		t.Errorf("cache_size: got %d, want 0", got)
	}
}
