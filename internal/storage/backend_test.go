package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/plangraph/internal/storage/doc"
	"github.com/steveyegge/plangraph/internal/types"
)

// backendFactories returns every backend reachable in this environment.
// Networked backends are skipped unless their endpoints are configured.
func backendFactories(t *testing.T) map[string]func(t *testing.T) Backend {
	return map[string]func(t *testing.T) Backend{
		KindFS: func(t *testing.T) Backend {
			b, err := NewBackend(context.Background(), &Config{Backend: KindFS, Root: t.TempDir()})
			require.NoError(t, err)
			return b
		},
		KindSQLite: func(t *testing.T) Backend {
			b, err := NewBackend(context.Background(), &Config{
				Backend: KindSQLite,
				Path:    filepath.Join(t.TempDir(), "plans.db"),
			})
			require.NoError(t, err)
			return b
		},
		KindPostgres: func(t *testing.T) Backend {
			dsn := os.Getenv("PLANGRAPH_TEST_POSTGRES_DSN")
			if dsn == "" {
				t.Skip("PLANGRAPH_TEST_POSTGRES_DSN not set")
			}
			b, err := NewBackend(context.Background(), &Config{Backend: KindPostgres, DSN: dsn})
			if err != nil {
				t.Skipf("Skipping PostgreSQL test (database not available): %v", err)
			}
			return b
		},
		KindS3: func(t *testing.T) Backend {
			endpoint := os.Getenv("PLANGRAPH_TEST_S3_ENDPOINT")
			if endpoint == "" {
				t.Skip("PLANGRAPH_TEST_S3_ENDPOINT not set")
			}
			b, err := NewBackend(context.Background(), &Config{Backend: KindS3, S3: S3Config{
				Endpoint:  endpoint,
				AccessKey: os.Getenv("PLANGRAPH_TEST_S3_ACCESS_KEY"),
				SecretKey: os.Getenv("PLANGRAPH_TEST_S3_SECRET_KEY"),
				Bucket:    "plangraph-test",
				Prefix:    fmt.Sprintf("run-%d", time.Now().UnixNano()),
			}})
			if err != nil {
				t.Skipf("Skipping object store test (endpoint not available): %v", err)
			}
			return b
		},
	}
}

// namespace isolates keys on shared backends (postgres, s3)
func namespace(t *testing.T) string {
	return fmt.Sprintf("t%d/", time.Now().UnixNano())
}

func TestBackendConformance(t *testing.T) {
	for kind, open := range backendFactories(t) {
		t.Run(kind, func(t *testing.T) {
			ctx := context.Background()
			b := open(t)
			defer b.Close()
			ns := namespace(t)

			_, err := b.Get(ctx, ns+"missing.json")
			assert.ErrorIs(t, err, types.ErrNotFound)

			batch := &doc.Batch{}
			batch.Put(ns+"projects/a/metadata.json", []byte(`{"id":"a"}`))
			batch.Put(ns+"projects/a/changes/CR-000.json", []byte(`{}`))
			batch.Put(ns+"projects/ab/metadata.json", []byte(`{"id":"ab"}`))
			require.NoError(t, b.Commit(ctx, batch))

			data, err := b.Get(ctx, ns+"projects/a/metadata.json")
			require.NoError(t, err)
			assert.Equal(t, `{"id":"a"}`, string(data))

			keys, err := b.List(ctx, ns+"projects/a/")
			require.NoError(t, err)
			assert.Equal(t, []string{
				ns + "projects/a/changes/CR-000.json",
				ns + "projects/a/metadata.json",
			}, keys)

			keys, err = b.List(ctx, ns+"projects/")
			require.NoError(t, err)
			assert.Len(t, keys, 3)

			// Overwrite plus delete in one batch
			batch = &doc.Batch{}
			batch.Put(ns+"projects/a/metadata.json", []byte(`{"id":"a","v":2}`))
			batch.Delete(ns + "projects/a/changes/CR-000.json")
			require.NoError(t, b.Commit(ctx, batch))

			data, err = b.Get(ctx, ns+"projects/a/metadata.json")
			require.NoError(t, err)
			assert.Equal(t, `{"id":"a","v":2}`, string(data))
			_, err = b.Get(ctx, ns+"projects/a/changes/CR-000.json")
			assert.ErrorIs(t, err, types.ErrNotFound)

			keys, err = b.List(ctx, ns+"nothing-here/")
			require.NoError(t, err)
			assert.Empty(t, keys)
		})
	}
}

func TestBackendRejectsBadKeys(t *testing.T) {
	b, err := NewBackend(context.Background(), &Config{Backend: KindFS, Root: t.TempDir()})
	require.NoError(t, err)

	for _, key := range []string{"", "/abs", "a/../b", "trailing/", "a//b"} {
		batch := &doc.Batch{}
		batch.Put(key, []byte("x"))
		assert.Error(t, b.Commit(context.Background(), batch), "key %q", key)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"fs ok", Config{Backend: KindFS, Root: "x"}, false},
		{"fs no root", Config{Backend: KindFS}, true},
		{"sqlite from root", Config{Backend: KindSQLite, Root: "x"}, false},
		{"postgres needs dsn", Config{Backend: KindPostgres}, true},
		{"s3 needs bucket", Config{Backend: KindS3, S3: S3Config{Endpoint: "localhost:9000"}}, true},
		{"unknown", Config{Backend: "etcd", Root: "x"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSQLitePathDefaultsUnderRoot(t *testing.T) {
	cfg := Config{Backend: KindSQLite, Root: "plans"}
	assert.Equal(t, filepath.Join("plans", "plangraph.db"), cfg.SQLitePath())
	cfg.Path = "/tmp/x.db"
	assert.Equal(t, "/tmp/x.db", cfg.SQLitePath())
}
