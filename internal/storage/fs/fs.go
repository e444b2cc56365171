// Package fs implements a document backend on the local filesystem. Each
// document is one file under an injected root directory.
package fs

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/steveyegge/plangraph/internal/storage/doc"
)

const tempPrefix = ".tmp-"

// Backend stores documents as files under Root.
type Backend struct {
	root string
	mu   sync.RWMutex
}

// New creates a filesystem backend rooted at root, creating the directory.
func New(root string) (*Backend, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &Backend{root: root}, nil
}

// Root returns the directory the backend writes into.
func (b *Backend) Root() string {
	return b.root
}

func (b *Backend) path(key string) string {
	return filepath.Join(b.root, filepath.FromSlash(key))
}

// Get reads one document.
func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	if err := doc.ValidateKey(key); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, err := os.ReadFile(b.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, doc.NotFound(key)
		}
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

// List returns all keys starting with prefix, sorted.
func (b *Backend) List(ctx context.Context, prefix string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	// Walk only the deepest directory the prefix names
	dir := b.root
	if i := strings.LastIndex(prefix, "/"); i >= 0 {
		dir = b.path(prefix[:i])
	}

	var keys []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), tempPrefix) {
			return nil
		}
		rel, err := filepath.Rel(b.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Commit applies writes in order, each via write-to-temp and rename, then
// deletes. Ordering is the only cross-document guarantee.
func (b *Backend) Commit(ctx context.Context, batch *doc.Batch) error {
	for _, w := range batch.Writes {
		if err := doc.ValidateKey(w.Key); err != nil {
			return err
		}
	}
	for _, key := range batch.Deletes {
		if err := doc.ValidateKey(key); err != nil {
			return err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, w := range batch.Writes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeAtomic(b.path(w.Key), w.Data); err != nil {
			return fmt.Errorf("failed to write %s: %w", w.Key, err)
		}
	}
	for _, key := range batch.Deletes {
		if err := os.Remove(b.path(key)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete %s: %w", key, err)
		}
		b.pruneEmptyDirs(path.Dir(key))
	}
	return nil
}

// pruneEmptyDirs removes now-empty parent directories up to the root.
func (b *Backend) pruneEmptyDirs(dir string) {
	for dir != "." && dir != "/" && dir != "" {
		if err := os.Remove(b.path(dir)); err != nil {
			return
		}
		dir = path.Dir(dir)
	}
}

// Close releases nothing; files are closed after every operation.
func (b *Backend) Close() error {
	return nil
}

func writeAtomic(target string, data []byte) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, target); err != nil {
		return err
	}
	committed = true
	return nil
}
