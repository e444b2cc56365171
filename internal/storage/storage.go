// Package storage opens the document backend a plan root lives on and
// encodes the immutable version bundles stored in it.
package storage

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/steveyegge/plangraph/internal/storage/doc"
	"github.com/steveyegge/plangraph/internal/storage/fs"
	"github.com/steveyegge/plangraph/internal/storage/objectstore"
	"github.com/steveyegge/plangraph/internal/storage/postgres"
	"github.com/steveyegge/plangraph/internal/storage/sqlite"
)

// Backend is a flat key space of documents. Keys are slash-separated.
type Backend interface {
	// Get returns the document stored under key, or an error wrapping
	// types.ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// List returns every key with the given prefix in sorted order.
	List(ctx context.Context, prefix string) ([]string, error)
	// Commit applies a batch. Writes land in order before deletes.
	Commit(ctx context.Context, batch *doc.Batch) error
	Close() error
}

// Backend kinds
const (
	KindFS       = "fs"
	KindSQLite   = "sqlite"
	KindPostgres = "postgres"
	KindS3       = "s3"
)

// Config selects and configures a backend
type Config struct {
	// Backend is one of fs, sqlite, postgres, s3
	Backend string `yaml:"backend"`
	// Root is the plan root directory (fs backend and default sqlite location)
	Root string `yaml:"root"`
	// Path is the SQLite database path; defaults to <root>/plangraph.db
	Path string `yaml:"path"`
	// DSN is the PostgreSQL connection string
	DSN string `yaml:"dsn"`
	// S3 configures the object store backend
	S3 S3Config `yaml:"s3"`
}

// S3Config holds object store settings
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
	Prefix    string `yaml:"prefix"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Backend: KindFS,
		Root:    DefaultRootDir,
	}
}

// SQLitePath returns the configured database path or the default under Root.
func (c *Config) SQLitePath() string {
	if c.Path != "" {
		return c.Path
	}
	return filepath.Join(c.Root, "plangraph.db")
}

// Validate checks that the selected backend has what it needs.
func (c *Config) Validate() error {
	switch c.Backend {
	case KindFS:
		if c.Root == "" {
			return fmt.Errorf("storage root is required for the fs backend")
		}
	case KindSQLite:
		if c.Path == "" && c.Root == "" {
			return fmt.Errorf("storage path or root is required for the sqlite backend")
		}
	case KindPostgres:
		if c.DSN == "" {
			return fmt.Errorf("storage dsn is required for the postgres backend")
		}
	case KindS3:
		if c.S3.Endpoint == "" || c.S3.Bucket == "" {
			return fmt.Errorf("s3 endpoint and bucket are required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q (want fs, sqlite, postgres, or s3)", c.Backend)
	}
	return nil
}

// NewBackend opens the backend described by cfg
func NewBackend(ctx context.Context, cfg *Config) (Backend, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Backend == "" {
		cfg.Backend = KindFS
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case KindSQLite:
		return sqlite.New(cfg.SQLitePath())
	case KindPostgres:
		pg := postgres.DefaultConfig()
		pg.DSN = cfg.DSN
		return postgres.New(ctx, pg)
	case KindS3:
		return objectstore.New(ctx, objectstore.Config{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			UseSSL:    cfg.S3.UseSSL,
			Prefix:    cfg.S3.Prefix,
		})
	default:
		return fs.New(cfg.Root)
	}
}
