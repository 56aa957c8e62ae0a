package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/recap/internal/cache"
	"github.com/hpungsan/recap/internal/config"
	"github.com/hpungsan/recap/internal/db"
	"github.com/hpungsan/recap/internal/llm"
	"github.com/hpungsan/recap/internal/mcp"
	"github.com/hpungsan/recap/internal/ops"
	"github.com/hpungsan/recap/internal/transcript"
	"github.com/hpungsan/recap/internal/usage"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"transcript": true, "summarize": true, "show": true, "list": true,
	"search": true, "favorite": true, "update": true, "delete": true,
	"stats": true, "export": true, "backup": true, "restore": true,
	"clear": true, "settings": true, "usage": true, "upgrade": true,
	"cleanup": true, "help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode(args []string) bool {
	if len(args) < 2 {
		return false // No args → MCP server
	}
	arg := args[1]
	if cliCommands[arg] {
		return true
	}
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v"
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion(args []string) bool {
	if len(args) < 2 {
		return false
	}
	arg := args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// extractDebugFlag removes every --debug argument and reports whether one was present.
func extractDebugFlag(args []string) ([]string, bool) {
	out := make([]string, 0, len(args))
	debug := false
	for _, a := range args {
		if a == "--debug" {
			debug = true
			continue
		}
		out = append(out, a)
	}
	return out, debug
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   ___  ___ ___ __ _ _ __
  | '_|/ -_) __/ _' | '_ \
  |_|  \___\___\__,_| .__/
                    |_|

  Video transcript summaries

  Usage: recap <command> [options]
         recap --help

  MCP server mode requires piped input.`)
}

// newLogger writes JSON logs to stderr so stdout stays clean for JSON output
// and the MCP stdio transport.
func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// newRuntime opens the store under baseDir and wires the pipeline.
// The returned cleanup closes the database and cache.
func newRuntime(ctx context.Context, baseDir string, cfg *config.Config, log *zap.Logger) (*ops.Runtime, func(), error) {
	database, err := db.Init(baseDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	db.ConfigurePool(database, cfg)

	transcripts := cache.New(ctx, cache.Options{
		TTL:        cfg.CacheTTL(),
		MaxEntries: cfg.CacheMaxEntries,
		RedisURL:   cfg.RedisURL,
	}, log.Named("cache"))

	fetcher := transcript.NewFetcher(transcript.FetcherConfig{
		Timeout:  cfg.FetchTimeout(),
		MaxBytes: cfg.MaxFetchBytes,
	}, log.Named("fetch"))
	locator := transcript.NewLocator(cfg.PanelTimeout(), log.Named("locate"))

	kv := db.NewKV(database)
	rt := &ops.Runtime{
		DB:       database,
		KV:       kv,
		Cfg:      cfg,
		Resolver: transcript.NewResolver(locator, fetcher, transcripts, log.Named("resolve")),
		Summarizer: llm.New(llm.Config{
			BaseURL:           cfg.LLMBaseURL,
			APIKey:            cfg.LLMAPIKey,
			Model:             cfg.LLMModel,
			Temperature:       cfg.LLMTemperature,
			MaxTokens:         cfg.LLMMaxTokens,
			RequestsPerMinute: cfg.LLMRequestsPerMinute,
		}, log.Named("llm")),
		Governor: usage.NewGovernor(kv, usage.Options{
			DailyLimit:    cfg.DailyLimit,
			RetentionDays: cfg.UsageRetentionDays,
		}, log.Named("usage")),
		Log: log,
	}

	cleanup := func() {
		if err := transcripts.Close(); err != nil {
			log.Warn("cache close failed", zap.Error(err))
		}
		if err := database.Close(); err != nil {
			log.Warn("database close failed", zap.Error(err))
		}
	}
	return rt, cleanup, nil
}

// warnUnknownMCPNames logs disabled_tools / disabled_types entries that match nothing.
func warnUnknownMCPNames(cfg *config.Config, log *zap.Logger) {
	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		log.Warn("unknown disabled_tools entries", zap.Strings("names", unknown))
	}
	if unknown := mcp.ValidateDisabledTypes(cfg.DisabledTypes); len(unknown) > 0 {
		log.Warn("unknown disabled_types entries",
			zap.Strings("names", unknown),
			zap.String("known", strings.Join(mcp.KnownTypes, ",")))
	}
}

func main() {
	args, debug := extractDebugFlag(os.Args)

	// No args + interactive terminal → show banner and exit
	if len(args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion(args) {
		app := newCLIApp(nil)
		if err := app.Run(args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	log, err := newLogger(debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}
	baseDir := filepath.Join(homeDir, ".recap")

	cwd, err := os.Getwd()
	if err != nil {
		cwd = baseDir
	}
	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, cleanup, err := newRuntime(ctx, baseDir, cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	// CLI mode: known subcommand
	if isCLIMode(args) {
		app := newCLIApp(rt)
		if err := app.RunContext(ctx, args); err != nil {
			cleanup()
			// An empty message means the result was already written to stdout.
			if msg := err.Error(); msg != "" {
				fmt.Fprintf(os.Stderr, "error: %s\n", msg)
			}
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(args) >= 2 && isTerminal() {
		cleanup()
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", args[1])
		fmt.Fprintf(os.Stderr, "Run 'recap --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	warnUnknownMCPNames(cfg, log)
	log.Info("starting MCP server", zap.String("version", Version))
	if err := mcp.Run(rt, Version); err != nil {
		cleanup()
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
