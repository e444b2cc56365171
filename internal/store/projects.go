package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/steveyegge/plangraph/internal/storage/doc"
	"github.com/steveyegge/plangraph/internal/types"
)

// CreateProject initializes a layered project holding an empty v0 snapshot.
// An empty name defaults to the id and is replaced on the first apply.
func (s *Store) CreateProject(ctx context.Context, id, name string) (*types.ProjectMetadata, error) {
	if err := types.ValidateProjectID(id); err != nil {
		return nil, err
	}

	l := s.lock(id)
	l.Lock()
	defer l.Unlock()

	if _, err := s.metadataLocked(ctx, id); err == nil {
		return nil, fmt.Errorf("project %s already exists", id)
	} else if !isNotFound(err) {
		return nil, err
	}

	now := s.clock()
	if name == "" {
		name = id
	}
	g := types.NewGraph(now)
	meta := &types.ProjectMetadata{
		ID:             id,
		Name:           name,
		Schema:         types.SchemaLayered,
		CreatedAt:      now,
		UpdatedAt:      now,
		CurrentVersion: g.Version,
	}

	batch := &doc.Batch{}
	record, err := s.stageSnapshot(batch, id, g)
	if err != nil {
		return nil, err
	}
	meta.History = append(meta.History, record)
	if err := s.stageMetadata(batch, meta); err != nil {
		return nil, err
	}
	if err := s.backend.Commit(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to create project %s: %w", id, err)
	}

	s.cacheAdd(id, g)
	s.logger.Info("project created", "project", id, "name", name, "version", g.Version)
	return meta, nil
}

// ImportLegacy stores a flat graph as a new legacy-schema project. Change
// requests against it go through the flat apply path.
func (s *Store) ImportLegacy(ctx context.Context, id string, fg *types.FlatGraph) (*types.ProjectMetadata, error) {
	if err := types.ValidateProjectID(id); err != nil {
		return nil, err
	}
	if fg == nil {
		return nil, fmt.Errorf("legacy graph is required")
	}

	l := s.lock(id)
	l.Lock()
	defer l.Unlock()

	if _, err := s.metadataLocked(ctx, id); err == nil {
		return nil, fmt.Errorf("project %s already exists", id)
	} else if !isNotFound(err) {
		return nil, err
	}

	fg = fg.Clone()
	if fg.Nodes == nil {
		fg.Nodes = make(map[string]types.FlatNode)
	}
	if _, err := types.ParseVersion(fg.Version); err != nil {
		fg.Version = types.FormatVersion(0)
	}
	if res := validateFlat(fg); !res.Valid {
		return nil, res.Failure()
	}

	now := s.clock()
	if fg.CreatedAt.IsZero() {
		fg.CreatedAt = now
	}
	fg.UpdatedAt = now

	meta := &types.ProjectMetadata{
		ID:             id,
		Name:           id,
		Schema:         types.SchemaFlat,
		CreatedAt:      fg.CreatedAt,
		UpdatedAt:      now,
		CurrentVersion: fg.Version,
	}

	batch := &doc.Batch{}
	record, err := s.stageFlat(batch, id, fg)
	if err != nil {
		return nil, err
	}
	meta.History = append(meta.History, record)
	if err := s.stageMetadata(batch, meta); err != nil {
		return nil, err
	}
	if err := s.backend.Commit(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to import project %s: %w", id, err)
	}

	s.logger.Info("legacy project imported", "project", id, "nodes", len(fg.Nodes), "version", fg.Version)
	return meta, nil
}

// ListProjects returns metadata for every project, sorted by id.
func (s *Store) ListProjects(ctx context.Context) ([]*types.ProjectMetadata, error) {
	keys, err := s.backend.List(ctx, projectsPrefix)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var ids []string
	for _, key := range keys {
		rest := strings.TrimPrefix(key, projectsPrefix)
		i := strings.Index(rest, "/")
		if i <= 0 {
			continue
		}
		id, name := rest[:i], rest[i+1:]
		if (name == docMetadata || name == docLegacy) && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	projects := make([]*types.ProjectMetadata, 0, len(ids))
	for _, id := range ids {
		meta, err := s.GetMetadata(ctx, id)
		if err != nil {
			return nil, err
		}
		projects = append(projects, meta)
	}
	return projects, nil
}

// GetMetadata returns a project's metadata document.
func (s *Store) GetMetadata(ctx context.Context, id string) (*types.ProjectMetadata, error) {
	l := s.lock(id)
	l.RLock()
	defer l.RUnlock()
	return s.metadataLocked(ctx, id)
}

// Schema reports how a project's graph is persisted.
func (s *Store) Schema(ctx context.Context, id string) (types.Schema, error) {
	meta, err := s.GetMetadata(ctx, id)
	if err != nil {
		return "", err
	}
	return meta.Schema, nil
}

// DeleteProject discards a project with all its versions and change requests.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	l := s.lock(id)
	l.Lock()
	defer l.Unlock()

	if _, err := s.metadataLocked(ctx, id); err != nil {
		return err
	}

	keys, err := s.backend.List(ctx, projectPrefix(id))
	if err != nil {
		return err
	}
	batch := &doc.Batch{}
	for _, key := range keys {
		// Metadata goes last so a partial delete still looks like a project
		if key != metadataKey(id) {
			batch.Delete(key)
		}
	}
	batch.Delete(metadataKey(id))
	if err := s.backend.Commit(ctx, batch); err != nil {
		return fmt.Errorf("failed to delete project %s: %w", id, err)
	}

	s.cachePurge(id)
	s.logger.Info("project deleted", "project", id, "documents", len(keys))
	return nil
}

// metadataLocked reads metadata and resolves the schema. Projects written
// before metadata carried a schema, or before metadata existed at all, are
// detected by their legacy graph document.
func (s *Store) metadataLocked(ctx context.Context, id string) (*types.ProjectMetadata, error) {
	if err := types.ValidateProjectID(id); err != nil {
		return nil, err
	}

	var meta types.ProjectMetadata
	err := s.getJSON(ctx, metadataKey(id), &meta)
	if err != nil && !isNotFound(err) {
		return nil, err
	}
	if err == nil && meta.Schema != "" {
		return &meta, nil
	}

	legacy, lerr := s.exists(ctx, legacyKey(id))
	if lerr != nil {
		return nil, lerr
	}

	if err != nil {
		// No metadata document
		if !legacy {
			return nil, types.NotFoundf("project %s", id)
		}
		fg, err := s.readFlat(ctx, id)
		if err != nil {
			return nil, err
		}
		return &types.ProjectMetadata{
			ID:             id,
			Name:           id,
			Schema:         types.SchemaFlat,
			CreatedAt:      fg.CreatedAt,
			UpdatedAt:      fg.UpdatedAt,
			CurrentVersion: fg.Version,
		}, nil
	}

	if legacy {
		meta.Schema = types.SchemaFlat
	} else {
		meta.Schema = types.SchemaLayered
	}
	if meta.ID == "" {
		meta.ID = id
	}
	return &meta, nil
}

func (s *Store) stageMetadata(batch *doc.Batch, meta *types.ProjectMetadata) error {
	data, err := marshal(meta)
	if err != nil {
		return err
	}
	batch.Put(metadataKey(meta.ID), data)
	return nil
}
