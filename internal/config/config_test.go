package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/steveyegge/plangraph/internal/storage"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.Storage.Backend != storage.KindFS {
		t.Errorf("Backend = %q, want %q", cfg.Storage.Backend, storage.KindFS)
	}
}

func TestLoadRoot(t *testing.T) {
	root := t.TempDir()
	yml := `project: shop
storage:
  backend: sqlite
  path: plans.db
planner:
  model: claude-test
  max_tokens: 4096
  retry:
    max_retries: 1
    initial_backoff: 250ms
log:
  level: debug
  format: json
`
	if err := os.WriteFile(filepath.Join(root, storage.ConfigFile), []byte(yml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadRoot(root)
	if err != nil {
		t.Fatalf("LoadRoot failed: %v", err)
	}
	if cfg.Project != "shop" {
		t.Errorf("Project = %q, want shop", cfg.Project)
	}
	if cfg.Storage.Backend != storage.KindSQLite {
		t.Errorf("Backend = %q, want sqlite", cfg.Storage.Backend)
	}
	if cfg.Storage.Root != root {
		t.Errorf("Root = %q, want %q", cfg.Storage.Root, root)
	}
	if want := filepath.Join(root, "plans.db"); cfg.Storage.SQLitePath() != want {
		t.Errorf("SQLitePath = %q, want %q", cfg.Storage.SQLitePath(), want)
	}
	if cfg.Planner.Model != "claude-test" || cfg.Planner.MaxTokens != 4096 {
		t.Errorf("planner = %+v", cfg.Planner)
	}
	if cfg.Planner.Retry.MaxRetries != 1 || cfg.Planner.Retry.InitialBackoff.Milliseconds() != 250 {
		t.Errorf("retry = %+v", cfg.Planner.Retry)
	}
	// Unset nested fields keep their defaults
	if cfg.Planner.Retry.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", cfg.Planner.Retry.BackoffMultiplier)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestLoadRootWithoutFile(t *testing.T) {
	root := t.TempDir()
	cfg, err := LoadRoot(root)
	if err != nil {
		t.Fatalf("LoadRoot failed: %v", err)
	}
	if cfg.Storage.Root != root {
		t.Errorf("Root = %q, want %q", cfg.Storage.Root, root)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("storage: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestApplyEnv(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name:    "no environment variables keeps defaults",
			envVars: map[string]string{},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Storage.Backend != storage.KindFS {
					t.Errorf("Backend = %q", cfg.Storage.Backend)
				}
			},
		},
		{
			name: "overrides",
			envVars: map[string]string{
				"PLANGRAPH_BACKEND":             "postgres",
				"PLANGRAPH_POSTGRES_DSN":        "postgres://localhost/plans",
				"PLANGRAPH_S3_USE_SSL":          "true",
				"PLANGRAPH_MAX_TOKENS":          "2048",
				"PLANGRAPH_REQUESTS_PER_MINUTE": "5",
				"PLANGRAPH_LOG_LEVEL":           "debug",
				"ANTHROPIC_API_KEY":             "sk-test",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Storage.Backend != storage.KindPostgres {
					t.Errorf("Backend = %q", cfg.Storage.Backend)
				}
				if cfg.Storage.DSN != "postgres://localhost/plans" {
					t.Errorf("DSN = %q", cfg.Storage.DSN)
				}
				if !cfg.Storage.S3.UseSSL {
					t.Error("UseSSL should be true")
				}
				if cfg.Planner.MaxTokens != 2048 || cfg.Planner.RequestsPerMinute != 5 {
					t.Errorf("planner = %+v", cfg.Planner)
				}
				if cfg.Planner.APIKey != "sk-test" {
					t.Errorf("APIKey = %q", cfg.Planner.APIKey)
				}
				if cfg.Log.Level != "debug" {
					t.Errorf("Level = %q", cfg.Log.Level)
				}
			},
		},
		{
			name:    "invalid int",
			envVars: map[string]string{"PLANGRAPH_MAX_TOKENS": "lots"},
			wantErr: true,
		},
		{
			name:    "invalid bool",
			envVars: map[string]string{"PLANGRAPH_S3_USE_SSL": "maybe"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}
			cfg := Default()
			err := cfg.ApplyEnv()
			if (err != nil) != tt.wantErr {
				t.Fatalf("ApplyEnv() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"unknown backend", func(c *Config) { c.Storage.Backend = "tape" }, "storage"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"max tokens", func(c *Config) { c.Planner.MaxTokens = 0 }, "max_tokens"},
		{"rate", func(c *Config) { c.Planner.RequestsPerMinute = -1 }, "requests_per_minute"},
		{"retries", func(c *Config) { c.Planner.Retry.MaxRetries = 11 }, "max_retries"},
		{"multiplier", func(c *Config) { c.Planner.Retry.BackoffMultiplier = 0.5 }, "backoff_multiplier"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := LoadDotEnv(dir); err != nil {
		t.Fatalf("missing .env should be ignored: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("PLANGRAPH_TEST_DOTENV=loaded\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PLANGRAPH_TEST_DOTENV", "")
	os.Unsetenv("PLANGRAPH_TEST_DOTENV")
	if err := LoadDotEnv(dir); err != nil {
		t.Fatalf("LoadDotEnv failed: %v", err)
	}
	if got := os.Getenv("PLANGRAPH_TEST_DOTENV"); got != "loaded" {
		t.Errorf("PLANGRAPH_TEST_DOTENV = %q, want loaded", got)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Default()
	cfg.Log = LogConfig{Level: "info", Format: "json"}
	logger := cfg.NewLogger(&buf)
	logger.Debug("hidden")
	logger.Info("shown", "k", "v")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug line should be filtered at info level")
	}
	if !strings.Contains(out, `"msg":"shown"`) {
		t.Errorf("expected JSON output, got %q", out)
	}
}
