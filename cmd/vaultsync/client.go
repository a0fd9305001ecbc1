package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hyperjump/vaultsync/internal/cli"
	"github.com/hyperjump/vaultsync/internal/client"
	"github.com/hyperjump/vaultsync/internal/config"
	"github.com/hyperjump/vaultsync/internal/models"
	"github.com/hyperjump/vaultsync/internal/watcher"
	"github.com/hyperjump/vaultsync/pkg/utils"
	"go.uber.org/zap"
)

// clientFlags are shared by every command that talks to a running server.
type clientFlags struct {
	configPath *string
	serverURL  *string
	vaultKey   *string
	apiKey     *string
	openAIKey  *string
	output     *string
	debug      *bool
}

func addClientFlags(fs *flag.FlagSet) *clientFlags {
	return &clientFlags{
		configPath: fs.String("config", defaultConfigPath, "config file path"),
		serverURL:  fs.String("server", "", "server URL (default from config)"),
		vaultKey:   fs.String("vault-key", "", "vault key (default from config)"),
		apiKey:     fs.String("api-key", "", "API key (default from config)"),
		openAIKey:  fs.String("openai-key", "", "OpenAI key sent with requests"),
		output:     fs.String("output", "text", "output format: text or json"),
		debug:      fs.Bool("debug", false, "enable debug logging"),
	}
}

// resolve merges the flags over the loaded config.
func (f *clientFlags) resolve() (*config.Config, *client.Client, cli.OutputFormat) {
	cfg, _, err := loadConfig(*f.configPath)
	if err != nil {
		fatalf("Failed to load config: %v\n", err)
	}
	format, err := cli.ParseOutputFormat(*f.output)
	if err != nil {
		fatalf("%v\n", err)
	}
	cc := clientConfig(cfg.Client, *f.serverURL, *f.vaultKey, *f.apiKey, *f.openAIKey)
	c, err := client.New(cc)
	if err != nil {
		fatalf("Invalid client settings: %v\n", err)
	}
	return cfg, c, format
}

// clientConfig applies non-empty overrides on top of the configured client settings.
func clientConfig(base config.ClientConfig, serverURL, vaultKey, apiKey, openAIKey string) client.Config {
	cc := client.Config{
		ServerURL:    base.ServerURL,
		VaultKey:     base.VaultKey,
		APIKey:       base.APIKey,
		OpenAIAPIKey: openAIKey,
	}
	if serverURL != "" {
		cc.ServerURL = serverURL
	}
	if vaultKey != "" {
		cc.VaultKey = vaultKey
	}
	if apiKey != "" {
		cc.APIKey = apiKey
	}
	return cc
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(1)
}

// argsReorder moves flags that appear after positional arguments to the front so that
// flag.Parse sees them ("vaultsync query weekly review --sections").
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// joinArgs joins positional args so multi-word queries work with or without quotes.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func newLogger(debug bool) *zap.Logger {
	logger, err := utils.NewLogger(debug)
	if err != nil {
		fatalf("Failed to create logger: %v\n", err)
	}
	return logger
}

func vaultDir(fs *flag.FlagSet, cfg *config.Config) string {
	if fs.NArg() > 0 {
		return fs.Arg(0)
	}
	if cfg.Client.VaultDir != "" {
		return cfg.Client.VaultDir
	}
	fatalf("Usage: vaultsync %s [flags] <vault-dir>\n", fs.Name())
	return ""
}

func runPush() {
	fs := flag.NewFlagSet("push", flag.ExitOnError)
	flags := addClientFlags(fs)
	force := fs.Bool("force", false, "upload every note even when unchanged")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	cfg, c, format := flags.resolve()
	logger := newLogger(cfg.Debug || *flags.debug)
	defer logger.Sync()

	dir := vaultDir(fs, cfg)
	pusher := cli.NewPusher(c, dir, cfg.Client.Extensions, cli.WithLogger(logger), cli.WithForce(*force))
	report, err := pusher.Push(context.Background())
	if err != nil {
		fatalf("Push failed: %v\n", err)
	}
	if format == cli.OutputJSON {
		_ = cli.WriteJSON(os.Stdout, report)
	} else {
		fmt.Printf("Uploaded %d, unchanged %d, deleted %d, failed %d (%d embeddings)\n",
			len(report.Uploaded), report.Unchanged, len(report.Deleted), len(report.Failed), report.Embeddings)
		for _, p := range report.Failed {
			fmt.Printf("  failed: %s\n", p)
		}
	}
	if len(report.Failed) > 0 {
		os.Exit(1)
	}
}

func runWatch() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	flags := addClientFlags(fs)
	force := fs.Bool("force", false, "upload every note on the initial push")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	cfg, c, _ := flags.resolve()
	logger := newLogger(cfg.Debug || *flags.debug)
	defer logger.Sync()

	dir := vaultDir(fs, cfg)
	pusher := cli.NewPusher(c, dir, cfg.Client.Extensions, cli.WithLogger(logger), cli.WithForce(*force))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if _, err := pusher.Push(ctx); err != nil {
		logger.Fatal("initial push failed", zap.Error(err))
	}

	w := watcher.New(dir, cfg.Client.Extensions,
		func(rel string) {
			if err := pusher.PushFile(ctx, rel); err != nil {
				logger.Warn("watch upload failed", zap.String("path", rel), zap.Error(err))
			}
		},
		func(rel string) {
			if err := pusher.RemoveFile(ctx, rel); err != nil {
				logger.Warn("watch delete failed", zap.String("path", rel), zap.Error(err))
			}
		},
		watcher.WithLogger(logger),
	)
	if err := w.Start(ctx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	defer w.Stop()
	logger.Info("watching vault", zap.String("dir", w.Root()))
	<-ctx.Done()
	logger.Info("Shutting down...")
}

func runQuery() {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	flags := addClientFlags(fs)
	fileType := fs.String("type", "", "only match files of this type")
	sections := fs.Bool("sections", false, "match sections instead of whole notes")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	text := joinArgs(fs.Args())
	if text == "" {
		fatalf("Usage: vaultsync query [flags] <text>\n")
	}
	_, c, format := flags.resolve()
	matches, err := c.Query(context.Background(), models.Query{Text: text, Type: *fileType, IsSection: *sections})
	if err != nil {
		fatalf("Query failed: %v\n", err)
	}
	if err := cli.WriteMatches(os.Stdout, matches, format); err != nil {
		fatalf("Output failed: %v\n", err)
	}
}

func runFiles() {
	fs := flag.NewFlagSet("files", flag.ExitOnError)
	flags := addClientFlags(fs)
	_ = fs.Parse(os.Args[2:])

	_, c, format := flags.resolve()
	files, err := c.ListFiles(context.Background())
	if err != nil {
		fatalf("List failed: %v\n", err)
	}
	if err := cli.WriteFiles(os.Stdout, files, format); err != nil {
		fatalf("Output failed: %v\n", err)
	}
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	flags := addClientFlags(fs)
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fatalf("Usage: vaultsync delete [flags] <path>\n")
	}
	rel := joinArgs(fs.Args())
	_, c, _ := flags.resolve()
	if err := c.DeleteFile(context.Background(), cli.NoteRecord(rel, 0)); err != nil {
		fatalf("Deletion failed: %v\n", err)
	}
	fmt.Printf("File deleted: %s\n", rel)
}

func runDeleteAll() {
	fs := flag.NewFlagSet("delete-all", flag.ExitOnError)
	flags := addClientFlags(fs)
	yes := fs.Bool("yes", false, "do not ask for confirmation")
	_ = fs.Parse(os.Args[2:])

	_, c, _ := flags.resolve()
	if !*yes {
		fmt.Print("Delete every file of this vault from the server? [y/N] ")
		var answer string
		_, _ = fmt.Scanln(&answer)
		if !strings.EqualFold(strings.TrimSpace(answer), "y") {
			fmt.Println("Aborted.")
			return
		}
	}
	removed, err := c.DeleteAll(context.Background())
	if err != nil {
		fatalf("Delete all stopped after %d file(s): %v\n", removed, err)
	}
	fmt.Printf("%d file(s) deleted.\n", removed)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	flags := addClientFlags(fs)
	_ = fs.Parse(os.Args[2:])

	_, c, format := flags.resolve()
	st, err := c.Status(context.Background())
	if err != nil {
		fatalf("Status failed: %v\n", err)
	}
	if err := cli.WriteStatus(os.Stdout, st, format); err != nil {
		fatalf("Output failed: %v\n", err)
	}
}
