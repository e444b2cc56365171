package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/steveyegge/plangraph/internal/storage"
	"github.com/steveyegge/plangraph/internal/storage/doc"
	"github.com/steveyegge/plangraph/internal/types"
	"github.com/steveyegge/plangraph/internal/validation"
)

// layerDocument is the persisted shape of one sub-graph.
type layerDocument struct {
	Version string        `json:"version"`
	Nodes   []*types.Node `json:"nodes"`
	Edges   []types.Edge  `json:"edges"`
}

type mappingsDocument struct {
	Version  string          `json:"version"`
	Mappings []types.Mapping `json:"mappings"`
}

type crossLayerDocument struct {
	Version      string                       `json:"version"`
	Dependencies []types.CrossLayerDependency `json:"dependencies"`
}

// bundleLegacy is the bundle entry holding a flat graph.
const bundleLegacy = "graph"

func isNotFound(err error) bool {
	return errors.Is(err, types.ErrNotFound)
}

// snapshotDocuments renders g as the named documents shared by the current
// state and version bundles.
func snapshotDocuments(g *types.Graph) (map[string]json.RawMessage, error) {
	docs := make(map[string]json.RawMessage, len(types.SubGraphs)+2)
	for _, id := range types.SubGraphs {
		sg := g.SubGraph(id)
		data, err := json.Marshal(layerDocument{Version: g.Version, Nodes: nonNilNodes(sg.Nodes), Edges: nonNilEdges(sg.Edges)})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s: %w", id, err)
		}
		docs[string(id)] = data
	}

	mappings := g.Mappings
	if mappings == nil {
		mappings = []types.Mapping{}
	}
	data, err := json.Marshal(mappingsDocument{Version: g.Version, Mappings: mappings})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal mappings: %w", err)
	}
	docs[docMappings] = data

	deps := g.CrossLayer
	if deps == nil {
		deps = []types.CrossLayerDependency{}
	}
	data, err = json.Marshal(crossLayerDocument{Version: g.Version, Dependencies: deps})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cross-layer dependencies: %w", err)
	}
	docs[docCrossLayer] = data
	return docs, nil
}

func nonNilNodes(n []*types.Node) []*types.Node {
	if n == nil {
		return []*types.Node{}
	}
	return n
}

func nonNilEdges(e []types.Edge) []types.Edge {
	if e == nil {
		return []types.Edge{}
	}
	return e
}

// graphFromDocuments rebuilds a snapshot. Every document must carry want as
// its version; a mismatch means the set was not written by one commit.
func graphFromDocuments(docs map[string]json.RawMessage, want string) (*types.Graph, error) {
	g := &types.Graph{Version: want}

	for _, id := range types.SubGraphs {
		raw, ok := docs[string(id)]
		if !ok {
			return nil, fmt.Errorf("snapshot %s is missing %s: %w", want, id, types.ErrCorrupt)
		}
		var ld layerDocument
		if err := json.Unmarshal(raw, &ld); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %v: %w", id, err, types.ErrCorrupt)
		}
		if ld.Version != want {
			return nil, versionSkew(string(id), ld.Version, want)
		}
		sg := g.SubGraph(id)
		sg.Nodes, sg.Edges = ld.Nodes, ld.Edges
	}

	var md mappingsDocument
	if err := unmarshalDoc(docs, docMappings, &md); err != nil {
		return nil, err
	}
	if md.Version != want {
		return nil, versionSkew(docMappings, md.Version, want)
	}
	g.Mappings = md.Mappings

	var cd crossLayerDocument
	if err := unmarshalDoc(docs, docCrossLayer, &cd); err != nil {
		return nil, err
	}
	if cd.Version != want {
		return nil, versionSkew(docCrossLayer, cd.Version, want)
	}
	g.CrossLayer = cd.Dependencies
	return g, nil
}

func unmarshalDoc(docs map[string]json.RawMessage, name string, v interface{}) error {
	raw, ok := docs[name]
	if !ok {
		return fmt.Errorf("snapshot is missing %s: %w", name, types.ErrCorrupt)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to parse %s: %v: %w", name, err, types.ErrCorrupt)
	}
	return nil
}

type skewError struct {
	doc, got, want string
}

func (e *skewError) Error() string {
	return fmt.Sprintf("%s document is at %s, expected %s", e.doc, e.got, e.want)
}

func versionSkew(doc, got, want string) error {
	return &skewError{doc: doc, got: got, want: want}
}

// stageSnapshot adds the version bundle and the current documents for g to
// batch, in that order, and returns the history record describing it.
func (s *Store) stageSnapshot(batch *doc.Batch, projectID string, g *types.Graph) (types.VersionRecord, error) {
	docs, err := snapshotDocuments(g)
	if err != nil {
		return types.VersionRecord{}, err
	}
	bundle, digest, err := storage.EncodeBundle(docs)
	if err != nil {
		return types.VersionRecord{}, err
	}

	batch.Put(versionKey(projectID, g.Version), bundle)
	for _, id := range types.SubGraphs {
		batch.Put(documentKey(projectID, string(id)), docs[string(id)])
	}
	batch.Put(documentKey(projectID, docMappings), docs[docMappings])
	batch.Put(documentKey(projectID, docCrossLayer), docs[docCrossLayer])

	return types.VersionRecord{
		Version:     g.Version,
		CommittedAt: g.UpdatedAt,
		Digest:      digest,
		NodeCount:   g.NodeCount(),
	}, nil
}

// stageFlat adds the version bundle and current document for a legacy graph.
func (s *Store) stageFlat(batch *doc.Batch, projectID string, fg *types.FlatGraph) (types.VersionRecord, error) {
	data, err := marshal(fg)
	if err != nil {
		return types.VersionRecord{}, err
	}
	bundle, digest, err := storage.EncodeBundle(map[string]json.RawMessage{bundleLegacy: data})
	if err != nil {
		return types.VersionRecord{}, err
	}

	batch.Put(versionKey(projectID, fg.Version), bundle)
	batch.Put(legacyKey(projectID), data)

	return types.VersionRecord{
		Version:     fg.Version,
		CommittedAt: fg.UpdatedAt,
		Digest:      digest,
		NodeCount:   len(fg.Nodes),
	}, nil
}

// LoadCurrent returns the latest committed snapshot of a layered project.
func (s *Store) LoadCurrent(ctx context.Context, projectID string) (*types.Graph, error) {
	l := s.lock(projectID)
	l.RLock()
	defer l.RUnlock()

	meta, err := s.metadataLocked(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if meta.Schema != types.SchemaLayered {
		return nil, fmt.Errorf("project %s uses the legacy flat schema: %w", projectID, types.ErrSchemaMismatch)
	}
	return s.currentLocked(ctx, meta)
}

// currentLocked reads the current documents. If they do not all carry the
// committed version, an interrupted commit left them ahead of metadata and
// the committed bundle is authoritative.
func (s *Store) currentLocked(ctx context.Context, meta *types.ProjectMetadata) (*types.Graph, error) {
	if g, ok := s.cacheGet(meta.ID, meta.CurrentVersion); ok {
		return s.stamp(g, meta), nil
	}

	docs := make(map[string]json.RawMessage)
	names := append(subGraphNames(), docMappings, docCrossLayer)
	for _, name := range names {
		data, err := s.backend.Get(ctx, documentKey(meta.ID, name))
		if err != nil {
			if isNotFound(err) {
				return s.versionLocked(ctx, meta, meta.CurrentVersion)
			}
			return nil, err
		}
		docs[name] = data
	}

	g, err := graphFromDocuments(docs, meta.CurrentVersion)
	if err != nil {
		var skew *skewError
		if errors.As(err, &skew) {
			s.logger.Warn("current documents out of step with metadata, reading committed bundle",
				"project", meta.ID, "document", skew.doc, "found", skew.got, "committed", skew.want)
			return s.versionLocked(ctx, meta, meta.CurrentVersion)
		}
		return nil, err
	}
	s.cacheAdd(meta.ID, g)
	return s.stamp(g, meta), nil
}

func subGraphNames() []string {
	names := make([]string, 0, len(types.SubGraphs))
	for _, id := range types.SubGraphs {
		names = append(names, string(id))
	}
	return names
}

// stamp returns a private copy of g carrying the timestamps metadata records.
func (s *Store) stamp(g *types.Graph, meta *types.ProjectMetadata) *types.Graph {
	c := g.Clone()
	c.CreatedAt = meta.CreatedAt
	c.UpdatedAt = meta.CreatedAt
	if rec, ok := meta.Record(c.Version); ok {
		c.UpdatedAt = rec.CommittedAt
	}
	return c
}

// LoadVersion returns an immutable historical snapshot.
func (s *Store) LoadVersion(ctx context.Context, projectID, version string) (*types.Graph, error) {
	if _, err := types.ParseVersion(version); err != nil {
		return nil, types.NotFoundf("version %q of project %s", version, projectID)
	}

	l := s.lock(projectID)
	l.RLock()
	defer l.RUnlock()

	meta, err := s.metadataLocked(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if meta.Schema != types.SchemaLayered {
		return nil, fmt.Errorf("project %s uses the legacy flat schema: %w", projectID, types.ErrSchemaMismatch)
	}
	return s.versionLocked(ctx, meta, version)
}

func (s *Store) versionLocked(ctx context.Context, meta *types.ProjectMetadata, version string) (*types.Graph, error) {
	rec, ok := meta.Record(version)
	if !ok {
		return nil, types.NotFoundf("version %s of project %s", version, meta.ID)
	}
	if g, ok := s.cacheGet(meta.ID, version); ok {
		return s.stamp(g, meta), nil
	}

	data, err := s.backend.Get(ctx, versionKey(meta.ID, version))
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("bundle for %s of project %s is missing: %w", version, meta.ID, types.ErrCorrupt)
		}
		return nil, err
	}
	docs, err := storage.DecodeBundle(data, rec.Digest)
	if err != nil {
		return nil, fmt.Errorf("project %s %s: %w", meta.ID, version, err)
	}
	g, err := graphFromDocuments(docs, version)
	if err != nil {
		var skew *skewError
		if errors.As(err, &skew) {
			return nil, fmt.Errorf("project %s %s: %v: %w", meta.ID, version, err, types.ErrCorrupt)
		}
		return nil, err
	}
	s.cacheAdd(meta.ID, g)
	return s.stamp(g, meta), nil
}

// ListVersions returns the history of committed versions, oldest first.
func (s *Store) ListVersions(ctx context.Context, projectID string) ([]types.VersionRecord, error) {
	meta, err := s.GetMetadata(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return append([]types.VersionRecord(nil), meta.History...), nil
}

// LoadFlat returns the current graph of a legacy flat project.
func (s *Store) LoadFlat(ctx context.Context, projectID string) (*types.FlatGraph, error) {
	l := s.lock(projectID)
	l.RLock()
	defer l.RUnlock()

	meta, err := s.metadataLocked(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if meta.Schema != types.SchemaFlat {
		return nil, fmt.Errorf("project %s uses the layered schema: %w", projectID, types.ErrSchemaMismatch)
	}
	return s.readFlat(ctx, projectID)
}

func (s *Store) readFlat(ctx context.Context, projectID string) (*types.FlatGraph, error) {
	var fg types.FlatGraph
	if err := s.getJSON(ctx, legacyKey(projectID), &fg); err != nil {
		return nil, err
	}
	if fg.Nodes == nil {
		fg.Nodes = make(map[string]types.FlatNode)
	}
	if fg.Version == "" {
		fg.Version = types.FormatVersion(0)
	}
	return &fg, nil
}

func validateFlat(fg *types.FlatGraph) validation.Result {
	return validation.ValidateFlat(fg)
}

func (s *Store) cacheGet(projectID, version string) (*types.Graph, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.Get(cacheKey(projectID, version))
}

// cacheAdd stores a private copy; cached graphs are never handed out directly.
func (s *Store) cacheAdd(projectID string, g *types.Graph) {
	if s.cache == nil {
		return
	}
	s.cache.Add(cacheKey(projectID, g.Version), g.Clone())
}

func (s *Store) cachePurge(projectID string) {
	if s.cache == nil {
		return
	}
	for _, key := range s.cache.Keys() {
		if strings.HasPrefix(key, projectID+"@") {
			s.cache.Remove(key)
		}
	}
}
