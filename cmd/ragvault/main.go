// Command ragvault is the CLI entrypoint: it loads configuration, builds
// the pipeline components, and dispatches to one of the subcommands
// named in spec.md's external interfaces section.
//
// The top-level flag.Parse()/subcommand dispatch style is adapted from
// ternarybob-quaero's cmd/quaero/main.go, which parses a flat set of
// global flags with the standard flag package; this command generalizes
// that into per-subcommand flag.NewFlagSet blocks, since quaero itself
// has only one mode (start the HTTP server) while this CLI has seven.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ternarybob/arbor"

	"github.com/sourcevault/ragvault/internal/config"
	"github.com/sourcevault/ragvault/internal/docbuilder"
	"github.com/sourcevault/ragvault/internal/embedding"
	"github.com/sourcevault/ragvault/internal/gitsync"
	"github.com/sourcevault/ragvault/internal/ingest"
	"github.com/sourcevault/ragvault/internal/interfaces"
	"github.com/sourcevault/ragvault/internal/logging"
	"github.com/sourcevault/ragvault/internal/registry"
	"github.com/sourcevault/ragvault/internal/scanner"
	"github.com/sourcevault/ragvault/internal/vectorstore"
)

// Exit codes per spec.md's external interfaces section.
const (
	exitOK            = 0
	exitUserError     = 2
	exitSyncError     = 3
	exitStoreError    = 4
	exitEmbeddingError = 5
)

// app bundles every constructed pipeline component a subcommand might
// need, built once from the loaded configuration.
type app struct {
	cfg      *config.Config
	logger   arbor.ILogger
	registry *registry.Registry
	store    *vectorstore.Store
	embedder *embedding.Provider
	syncer   *gitsync.Syncer
	scanner  *scanner.Scanner
	orch     *ingest.Orchestrator
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(exitUserError)
	}
	command := os.Args[1]
	args := os.Args[2:]

	configPath := os.Getenv("RAGVAULT_CONFIG")
	if configPath == "" {
		configPath = "ragvault.toml"
	}
	if _, err := os.Stat(configPath); err != nil {
		configPath = ""
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(exitUserError)
	}

	var logger arbor.ILogger
	if command == "mcp" {
		// stdio transport: structured logs must never interleave with
		// JSON-RPC framing on stdout.
		logger = logging.SetupMinimal()
	} else {
		logger = logging.Setup(cfg.Logging)
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialize pipeline components")
		os.Exit(exitStoreError)
	}
	defer a.store.Close()

	ctx, cancel := signalContext()
	defer cancel()

	var runErr error
	switch command {
	case "sync":
		runErr = a.runSync(ctx, args)
	case "ingest":
		runErr = a.runIngest(ctx, args)
	case "verify":
		runErr = a.runVerify(ctx, args)
	case "stats":
		runErr = a.runStats(ctx, args)
	case "reset":
		runErr = a.runReset(ctx, args)
	case "export":
		runErr = a.runExport(ctx, args)
	case "mcp":
		runErr = a.runMCP(ctx, args)
	default:
		usage()
		os.Exit(exitUserError)
	}

	if runErr != nil {
		logger.Error().Err(runErr).Str("command", command).Msg("command failed")
		os.Exit(exitCodeFor(runErr))
	}
}

func newApp(cfg *config.Config, logger arbor.ILogger) (*app, error) {
	store, err := vectorstore.New(cfg.Database.URI, logger)
	if err != nil {
		return nil, err
	}
	if err := store.OpenOrCreate(context.Background(), cfg.Database.TableName, cfg.Database.EmbeddingDim); err != nil {
		return nil, err
	}

	reg, err := registry.Open(registryPath(cfg), logger)
	if err != nil {
		return nil, err
	}

	syn := gitsync.New(dataRoot(cfg), logger)
	scn := scanner.New(cfg.Pipeline.IncludePatterns, cfg.Pipeline.SkipPatterns, maxFileBytes(cfg), nil, logger)
	emb := embedding.New(cfg, logger)

	orch := ingest.New(syn, scn, emb, store, ingest.Config{
		DataRoot:        dataRoot(cfg),
		ParallelWorkers: cfg.Pipeline.ParallelWorkers,
		MaxFileBytes:    maxFileBytes(cfg),
		EmbedBatchSize:  cfg.Database.BatchSize,
		ForceReprocess:  cfg.Pipeline.ForceReprocess,
	}, logger)

	return &app{cfg: cfg, logger: logger, registry: reg, store: store, embedder: emb, syncer: syn, scanner: scn, orch: orch}, nil
}

func (a *app) builderFor(repositoryURL string) interfaces.DocumentBuilder {
	return docbuilder.New(repositoryURL)
}

func dataRoot(cfg *config.Config) string {
	if cfg.Repository.LocalPath != "" {
		return cfg.Repository.LocalPath
	}
	return "./data/repos"
}

func registryPath(cfg *config.Config) string {
	return "./data/registry.json"
}

func maxFileBytes(cfg *config.Config) int64 {
	return int64(cfg.Pipeline.MaxFileSizeMB) * 1024 * 1024
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx, cancel
}

func usage() {
	fmt.Fprintln(os.Stderr, `ragvault: ingest and search a Git repository's documents through a vector store

Usage:
  ragvault sync    [--reference REF]
  ragvault ingest  [--force] [--skip-sync] [--limit N]
  ragvault verify
  ragvault stats
  ragvault reset   --confirm
  ragvault export  --output DIR [--pretty]
  ragvault mcp`)
}
