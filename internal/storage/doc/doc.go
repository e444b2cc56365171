// Package doc holds the primitives shared by document backends: keys,
// ordered write batches and the not-found error.
package doc

import (
	"fmt"
	"strings"

	"github.com/steveyegge/plangraph/internal/types"
)

// Write stores Data under Key.
type Write struct {
	Key  string
	Data []byte
}

// Batch is an ordered set of writes and deletes committed together.
// Transactional backends apply it atomically; the others apply writes in
// order, then deletes.
type Batch struct {
	Writes  []Write
	Deletes []string
}

// Put appends a write.
func (b *Batch) Put(key string, data []byte) {
	b.Writes = append(b.Writes, Write{Key: key, Data: data})
}

// Delete appends a delete.
func (b *Batch) Delete(key string) {
	b.Deletes = append(b.Deletes, key)
}

// Len returns the number of operations in the batch.
func (b *Batch) Len() int {
	return len(b.Writes) + len(b.Deletes)
}

// NotFound returns an error wrapping types.ErrNotFound for key.
func NotFound(key string) error {
	return fmt.Errorf("document %s: %w", key, types.ErrNotFound)
}

// ValidateKey rejects keys that are empty, absolute, or escape their root.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("document key is required")
	}
	if strings.HasPrefix(key, "/") || strings.HasSuffix(key, "/") {
		return fmt.Errorf("invalid document key %q", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("invalid document key %q", key)
		}
	}
	return nil
}
