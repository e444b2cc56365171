// Package store is the versioned graph store: one current snapshot per
// project, an append-only history of committed versions, and the set of
// change requests that produce them.
//
// All durable state lives in a storage.Backend. A commit writes the version
// bundle, then the current per-layer documents, then project metadata, then
// the change request. Metadata is the commit point: readers only ever see
// the version it names.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/steveyegge/plangraph/internal/storage"
	"github.com/steveyegge/plangraph/internal/types"
)

// DefaultCacheSize is the number of immutable versions kept decoded in memory.
const DefaultCacheSize = 64

// Options configures a Store.
type Options struct {
	// Logger receives structured lifecycle logs. Defaults to slog.Default().
	Logger *slog.Logger

	// CacheSize bounds the version cache. Zero means DefaultCacheSize; a
	// negative value disables caching.
	CacheSize int

	// Clock supplies timestamps. Defaults to time.Now in UTC.
	Clock func() time.Time
}

// Store manages projects on a single backend. It is safe for concurrent use:
// writes to one project serialize, reads share.
type Store struct {
	backend storage.Backend
	logger  *slog.Logger
	clock   func() time.Time
	cache   *lru.Cache[string, *types.Graph]

	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

// New creates a store over backend.
func New(backend storage.Backend, opts Options) (*Store, error) {
	if backend == nil {
		return nil, fmt.Errorf("storage backend is required")
	}

	s := &Store{
		backend: backend,
		logger:  opts.Logger,
		clock:   opts.Clock,
		locks:   make(map[string]*sync.RWMutex),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.clock == nil {
		s.clock = func() time.Time { return time.Now().UTC() }
	}

	size := opts.CacheSize
	if size == 0 {
		size = DefaultCacheSize
	}
	if size > 0 {
		cache, err := lru.New[string, *types.Graph](size)
		if err != nil {
			return nil, fmt.Errorf("failed to create version cache: %w", err)
		}
		s.cache = cache
	}
	return s, nil
}

// Close closes the underlying backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) lock(projectID string) *sync.RWMutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[projectID]
	if !ok {
		l = &sync.RWMutex{}
		s.locks[projectID] = l
	}
	return l
}

// Document names. Layer documents are named by sub-graph id.
const (
	docMetadata   = "metadata.json"
	docMappings   = "mappings"
	docCrossLayer = "cross-layer"
	docLegacy     = "graph.json"
	dirChanges    = "changes"
	dirVersions   = "versions"
)

const projectsPrefix = "projects/"

func projectPrefix(id string) string {
	return projectsPrefix + id + "/"
}

func metadataKey(id string) string {
	return projectPrefix(id) + docMetadata
}

func legacyKey(id string) string {
	return projectPrefix(id) + docLegacy
}

func documentKey(id, name string) string {
	return projectPrefix(id) + name + ".json"
}

func changeKey(id, changeID string) string {
	return path.Join(projectPrefix(id)+dirChanges, changeID+".json")
}

func versionKey(id, version string) string {
	return path.Join(projectPrefix(id)+dirVersions, version+".bundle")
}

func cacheKey(id, version string) string {
	return id + "@" + version
}

func (s *Store) getJSON(ctx context.Context, key string, v interface{}) error {
	data, err := s.backend.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %v: %w", key, err, types.ErrCorrupt)
	}
	return nil
}

func (s *Store) exists(ctx context.Context, key string) (bool, error) {
	_, err := s.backend.Get(ctx, key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, types.ErrNotFound) {
		return false, nil
	}
	return false, err
}

func marshal(v interface{}) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	return data, nil
}

// changeIDFromKey extracts "CR-007" from ".../changes/CR-007.json".
func changeIDFromKey(key string) string {
	return strings.TrimSuffix(path.Base(key), ".json")
}
