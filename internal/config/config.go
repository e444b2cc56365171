// Package config loads plangraph configuration from defaults, the root's
// config.yaml, a .env file and PLANGRAPH_* environment variables, in that
// order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/steveyegge/plangraph/internal/planner"
	"github.com/steveyegge/plangraph/internal/storage"
)

// Config is the complete plangraph configuration.
type Config struct {
	// Project is the default project id for commands that take one
	Project string         `yaml:"project,omitempty"`
	Storage storage.Config `yaml:"storage"`
	Planner planner.Config `yaml:"planner"`
	Log     LogConfig      `yaml:"log"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level"`
	// Format is text or json
	Format string `yaml:"format"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Storage: *storage.DefaultConfig(),
		Planner: planner.DefaultConfig(),
		Log:     LogConfig{Level: "warn", Format: "text"},
	}
}

// Load reads a YAML config file over the defaults. A missing file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadRoot loads <root>/config.yaml if it exists and points the storage
// root at root. A relative SQLite path is taken relative to root.
func LoadRoot(root string) (*Config, error) {
	path := filepath.Join(root, storage.ConfigFile)
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg, err = Default(), nil
	}
	if err != nil {
		return nil, err
	}
	cfg.Storage.Root = root
	if cfg.Storage.Path != "" && !filepath.IsAbs(cfg.Storage.Path) {
		cfg.Storage.Path = filepath.Join(root, cfg.Storage.Path)
	}
	return cfg, nil
}

// LoadDotEnv loads dir/.env into the process environment if it exists.
// Variables already set are not overridden.
func LoadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides cfg from the environment.
//
// Environment variables:
//   - PLANGRAPH_PROJECT: default project id
//   - PLANGRAPH_BACKEND: fs, sqlite, postgres or s3
//   - PLANGRAPH_SQLITE_PATH: SQLite database path
//   - PLANGRAPH_POSTGRES_DSN: PostgreSQL connection string
//   - PLANGRAPH_S3_ENDPOINT, PLANGRAPH_S3_BUCKET, PLANGRAPH_S3_REGION,
//     PLANGRAPH_S3_PREFIX, PLANGRAPH_S3_ACCESS_KEY, PLANGRAPH_S3_SECRET_KEY,
//     PLANGRAPH_S3_USE_SSL: object store settings
//   - PLANGRAPH_LOG_LEVEL, PLANGRAPH_LOG_FORMAT: logging
//   - PLANGRAPH_MODEL, PLANGRAPH_MAX_TOKENS, PLANGRAPH_REQUESTS_PER_MINUTE,
//     PLANGRAPH_MAX_RETRIES: planner settings
//   - ANTHROPIC_API_KEY, ANTHROPIC_BASE_URL: planner credentials
//
// Returns an error if any variable has an invalid value.
func (c *Config) ApplyEnv() error {
	strs := []struct {
		key  string
		dest *string
	}{
		{"PLANGRAPH_PROJECT", &c.Project},
		{"PLANGRAPH_BACKEND", &c.Storage.Backend},
		{"PLANGRAPH_SQLITE_PATH", &c.Storage.Path},
		{"PLANGRAPH_POSTGRES_DSN", &c.Storage.DSN},
		{"PLANGRAPH_S3_ENDPOINT", &c.Storage.S3.Endpoint},
		{"PLANGRAPH_S3_BUCKET", &c.Storage.S3.Bucket},
		{"PLANGRAPH_S3_REGION", &c.Storage.S3.Region},
		{"PLANGRAPH_S3_PREFIX", &c.Storage.S3.Prefix},
		{"PLANGRAPH_S3_ACCESS_KEY", &c.Storage.S3.AccessKey},
		{"PLANGRAPH_S3_SECRET_KEY", &c.Storage.S3.SecretKey},
		{"PLANGRAPH_LOG_LEVEL", &c.Log.Level},
		{"PLANGRAPH_LOG_FORMAT", &c.Log.Format},
		{"PLANGRAPH_MODEL", &c.Planner.Model},
		{"ANTHROPIC_API_KEY", &c.Planner.APIKey},
		{"ANTHROPIC_BASE_URL", &c.Planner.BaseURL},
	}
	for _, s := range strs {
		parseEnvString(s.key, s.dest)
	}

	if err := parseEnvBool("PLANGRAPH_S3_USE_SSL", &c.Storage.S3.UseSSL); err != nil {
		return err
	}
	if err := parseEnvInt("PLANGRAPH_MAX_TOKENS", &c.Planner.MaxTokens); err != nil {
		return err
	}
	if err := parseEnvInt("PLANGRAPH_REQUESTS_PER_MINUTE", &c.Planner.RequestsPerMinute); err != nil {
		return err
	}
	if err := parseEnvInt("PLANGRAPH_MAX_RETRIES", &c.Planner.Retry.MaxRetries); err != nil {
		return err
	}
	return nil
}

// Validate checks if the configuration has valid values. The planner API
// key is only checked when a planner is constructed.
func (c *Config) Validate() error {
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error (got %q)", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be 'text' or 'json' (got %q)", c.Log.Format)
	}

	p := c.Planner
	if p.MaxTokens < 1 || p.MaxTokens > 64000 {
		return fmt.Errorf("planner.max_tokens must be between 1 and 64000 (got %d)", p.MaxTokens)
	}
	if p.RequestsPerMinute < 0 || p.RequestsPerMinute > 1000 {
		return fmt.Errorf("planner.requests_per_minute must be between 0 and 1000 (got %d)", p.RequestsPerMinute)
	}
	if p.Retry.MaxRetries < 0 || p.Retry.MaxRetries > 10 {
		return fmt.Errorf("planner.retry.max_retries must be between 0 and 10 (got %d)", p.Retry.MaxRetries)
	}
	if p.Retry.BackoffMultiplier < 1 {
		return fmt.Errorf("planner.retry.backoff_multiplier must be >= 1 (got %g)", p.Retry.BackoffMultiplier)
	}
	if p.Retry.MaxConcurrentCalls < 0 {
		return fmt.Errorf("planner.retry.max_concurrent_calls cannot be negative (got %d)", p.Retry.MaxConcurrentCalls)
	}
	return nil
}

// NewLogger builds the slog logger described by the log settings.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(c.Log.Level)}
	if strings.EqualFold(c.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
