// Package main is the vaultsync CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hyperjump/vaultsync/internal/config"
	"github.com/hyperjump/vaultsync/internal/server"
	"github.com/hyperjump/vaultsync/internal/vector"
	"github.com/hyperjump/vaultsync/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/vaultsync/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory wins if it exists. When neither exists the built-in defaults are used.
// Returns the config and the path that was actually loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(fallback); err == nil {
				cfg, err := config.Load(fallback)
				if err != nil {
					return nil, "", err
				}
				return cfg, fallback, nil
			}
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "push":
		runPush()
	case "watch":
		runWatch()
	case "query":
		runQuery()
	case "files":
		runFiles()
	case "delete":
		runDelete()
	case "delete-all":
		runDeleteAll()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("vaultsync version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	srv := server.NewServer(components.Syncer, components.VectorIndex, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
	saveSnapshot(components.VectorIndex, cfg.Vector.IndexPath, logger)
}

// saveSnapshot persists an in-memory vector index so the next start can load it.
func saveSnapshot(idx vector.VectorIndex, path string, logger *zap.Logger) {
	snap, ok := idx.(vector.Snapshotter)
	if !ok || path == "" {
		return
	}
	if err := snap.Save(path); err != nil {
		logger.Warn("vector index save failed", zap.String("path", path), zap.Error(err))
		return
	}
	logger.Info("vector index saved", zap.String("path", path), zap.Int("vectors", idx.Size()))
}

func printUsage() {
	fmt.Println(`vaultsync - Obsidian vault sync and related-notes server

Usage:
  vaultsync server [flags]              Start the HTTP server
  vaultsync push [flags] [vault-dir]    Upload changed notes and delete removed ones
  vaultsync watch [flags] [vault-dir]   Push, then keep the server in sync with the vault
  vaultsync query [flags] <text>        Find notes related to text
  vaultsync files [flags]               List the files the server holds for the vault
  vaultsync delete [flags] <path>       Delete one note from the server
  vaultsync delete-all [flags]          Delete every note of the vault from the server
  vaultsync status [flags]              Show server state for the vault
  vaultsync version                     Show version
  vaultsync help                        Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/vaultsync/config.yaml)
  --debug            Enable debug logging

Client Flags (push, watch, query, files, delete, delete-all, status):
  --config string      Config file path
  --server string      Server URL (default from config: http://localhost:8787)
  --vault-key string   Vault key (default from config or VAULTSYNC_VAULT_KEY)
  --api-key string     API key (default from config or VAULTSYNC_API_KEY)
  --openai-key string  Send your own OpenAI key with requests
  --output string      Output format: text or json (default: text)

Push/Watch Flags:
  --force            Upload every note even when unchanged

Query Flags:
  --type string      Only match files of this type (e.g. md)
  --sections         Match sections instead of whole notes

Examples:
  vaultsync server
  vaultsync push ~/Documents/vault
  vaultsync watch --vault-key personal ~/Documents/vault
  vaultsync query --sections "weekly review"
  vaultsync delete "Daily/2024-01-01.md"
  vaultsync status --output json`)
}
