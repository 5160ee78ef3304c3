// Package config loads and validates ragvault's configuration: TOML file,
// layered with environment overrides, layered with CLI flags, in that
// priority order.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config is the effective configuration recognized by the pipeline.
type Config struct {
	Environment string         `toml:"environment"`
	Repository  RepositoryConfig `toml:"repository"`
	Database    DatabaseConfig   `toml:"database"`
	Pipeline    PipelineConfig   `toml:"pipeline"`
	Embedding   EmbeddingConfig  `toml:"embedding"`
	Logging     LoggingConfig    `toml:"logging"`
	Server      ServerConfig     `toml:"server"`
}

// RepositoryConfig holds the default repository the CLI operates on when
// no tool-call arguments override it.
type RepositoryConfig struct {
	SourceURL   string `toml:"source_url"`
	LocalPath   string `toml:"local_path"`
	Branch      string `toml:"branch"`
	SyncOnStart bool   `toml:"sync_on_start"`
}

// DatabaseConfig describes the vector table.
type DatabaseConfig struct {
	URI           string `toml:"uri"`
	TableName     string `toml:"table_name"`
	BatchSize     int    `toml:"batch_size"`
	EmbeddingDim  int    `toml:"embedding_dim"`
}

// PipelineConfig tunes the ingestion orchestrator.
type PipelineConfig struct {
	ParallelWorkers int      `toml:"parallel_workers"`
	SkipPatterns    []string `toml:"skip_patterns"`
	IncludePatterns []string `toml:"include_patterns"`
	ForceReprocess  bool     `toml:"force_reprocess"`
	MaxFileSizeMB   int      `toml:"max_file_size_mb"`
	// Schedule is an optional cron expression driving an unattended
	// repeat ingest of Repository, in addition to whatever the caller
	// invokes manually. Empty disables scheduling.
	Schedule string `toml:"schedule"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider  string `toml:"provider"` // "remote" or "local"
	APIURL    string `toml:"api_url"`
	APIKeyEnv string `toml:"api_key_env"`
	Model     string `toml:"model"`
	BatchSize int    `toml:"batch_size"`
	// RateLimitPerSecond caps outbound embedding requests client-side,
	// ahead of the retry/backoff layer. 0 disables the limiter.
	RateLimitPerSecond int `toml:"rate_limit_per_second"`
	// Degrade is loaded from configuration but no component reads it: when
	// the remote provider exhausts its retry budget, the embedding error is
	// recorded against the batch's files and the local deterministic
	// embedder is not used in its place.
	Degrade bool `toml:"degrade_to_local"`
}

// LoggingConfig controls the ambient arbor logger.
type LoggingConfig struct {
	Level      string   `toml:"level"`
	Output     []string `toml:"output"` // "console", "file"
	TimeFormat string   `toml:"time_format"`
}

// ServerConfig is consumed only by the stdio MCP entrypoint.
type ServerConfig struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// NewDefault returns a Config with every default value the spec names:
// database.batch_size=100, database.embedding_dim=384,
// pipeline.parallel_workers=logical CPUs, pipeline.max_file_size_mb=10.
func NewDefault() *Config {
	return &Config{
		Environment: "development",
		Repository: RepositoryConfig{
			SyncOnStart: true,
		},
		Database: DatabaseConfig{
			URI:          "./data/vectors",
			TableName:    "documents",
			BatchSize:    100,
			EmbeddingDim: 384,
		},
		Pipeline: PipelineConfig{
			ParallelWorkers: runtime.NumCPU(),
			SkipPatterns:    []string{},
			IncludePatterns: []string{"*.md", "*.markdown", "*.txt"},
			MaxFileSizeMB:   10,
		},
		Embedding: EmbeddingConfig{
			Provider:  "local",
			BatchSize: 16,
			Degrade:   true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"console"},
			TimeFormat: "15:04:05.000",
		},
		Server: ServerConfig{
			Name: "ragvault",
		},
	}
}

// LoadFromFiles loads configuration with priority:
// defaults -> file1 -> file2 -> ... -> env. CLI flags are applied
// separately by the caller after Load returns, matching the
// defaults-then-file-then-env-then-CLI sequence of the ambient config
// loader this package is modeled on.
func LoadFromFiles(paths ...string) (*Config, error) {
	cfg := NewDefault()

	for i, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load is a convenience wrapper for the common single-file case.
func Load(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// applyEnvOverrides applies RAGVAULT_<SECTION>_<KEY> environment variables,
// taking precedence over file-loaded values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RAGVAULT_ENVIRONMENT"); v != "" {
		cfg.Environment = v
	}
	if v := os.Getenv("RAGVAULT_REPOSITORY_SOURCE_URL"); v != "" {
		cfg.Repository.SourceURL = v
	}
	if v := os.Getenv("RAGVAULT_REPOSITORY_LOCAL_PATH"); v != "" {
		cfg.Repository.LocalPath = v
	}
	if v := os.Getenv("RAGVAULT_REPOSITORY_BRANCH"); v != "" {
		cfg.Repository.Branch = v
	}
	if v := os.Getenv("RAGVAULT_DATABASE_URI"); v != "" {
		cfg.Database.URI = v
	}
	if v := os.Getenv("RAGVAULT_DATABASE_TABLE_NAME"); v != "" {
		cfg.Database.TableName = v
	}
	if v := os.Getenv("RAGVAULT_DATABASE_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Database.BatchSize = n
		}
	}
	if v := os.Getenv("RAGVAULT_PIPELINE_PARALLEL_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.ParallelWorkers = n
		}
	}
	if v := os.Getenv("RAGVAULT_PIPELINE_FORCE_REPROCESS"); v != "" {
		cfg.Pipeline.ForceReprocess = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("RAGVAULT_EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("RAGVAULT_EMBEDDING_API_URL"); v != "" {
		cfg.Embedding.APIURL = v
	}
	if v := os.Getenv("RAGVAULT_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate enforces the invariants the rest of the pipeline assumes hold:
// a positive embedding dimension, a positive batch size, and a known
// embedding provider kind. Returns a plain descriptive error, not an
// *rerr.Error; the CLI reports any Load failure with the user/config-error
// exit code.
func (c *Config) Validate() error {
	if c.Database.EmbeddingDim <= 0 {
		return fmt.Errorf("database.embedding_dim must be positive, got %d", c.Database.EmbeddingDim)
	}
	if c.Database.BatchSize <= 0 {
		return fmt.Errorf("database.batch_size must be positive, got %d", c.Database.BatchSize)
	}
	if c.Pipeline.ParallelWorkers <= 0 {
		return fmt.Errorf("pipeline.parallel_workers must be positive, got %d", c.Pipeline.ParallelWorkers)
	}
	if c.Pipeline.MaxFileSizeMB <= 0 {
		return fmt.Errorf("pipeline.max_file_size_mb must be positive, got %d", c.Pipeline.MaxFileSizeMB)
	}
	switch c.Embedding.Provider {
	case "remote", "local", "":
	default:
		return fmt.Errorf("embedding.provider must be 'remote' or 'local', got %q", c.Embedding.Provider)
	}
	if c.Embedding.Provider == "remote" && c.Embedding.APIURL == "" {
		return fmt.Errorf("embedding.api_url is required when embedding.provider is 'remote'")
	}
	return nil
}

// APIKey resolves the embedding API key from the environment variable
// named by Embedding.APIKeyEnv. Returns "" if unset.
func (c *Config) APIKey() string {
	if c.Embedding.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.Embedding.APIKeyEnv)
}

// Redacted returns a copy of Config with the resolved API key and any
// credential embedded in the repository URL removed, suitable for the
// get_config tool.
func (c *Config) Redacted() Config {
	cp := *c
	if strings.Contains(cp.Repository.SourceURL, "@") {
		cp.Repository.SourceURL = redactURLCreds(cp.Repository.SourceURL)
	}
	return cp
}

func redactURLCreds(raw string) string {
	idx := strings.Index(raw, "://")
	if idx < 0 {
		return raw
	}
	scheme, rest := raw[:idx+3], raw[idx+3:]
	at := strings.Index(rest, "@")
	if at < 0 {
		return raw
	}
	return scheme + "***@" + rest[at+1:]
}
