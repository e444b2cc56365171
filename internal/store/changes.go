package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/steveyegge/plangraph/internal/storage/doc"
	"github.com/steveyegge/plangraph/internal/types"
	"github.com/steveyegge/plangraph/internal/validation"
)

// CreateChangeRequest stores input as the next pending change request. The
// graph is not touched.
func (s *Store) CreateChangeRequest(ctx context.Context, projectID string, input types.ChangeRequestInput) (*types.ChangeRequest, error) {
	if input.IsEmpty() {
		return nil, &types.ValidationFailure{
			Layer:   layerChangeRequest,
			Code:    "EMPTY_CHANGE_REQUEST",
			Message: "change request proposes no changes",
		}
	}

	l := s.lock(projectID)
	l.Lock()
	defer l.Unlock()

	meta, err := s.metadataLocked(ctx, projectID)
	if err != nil {
		return nil, err
	}

	ids, err := s.changeIDs(ctx, projectID)
	if err != nil {
		return nil, err
	}

	cr := &types.ChangeRequest{
		ID:                 types.NextChangeID(ids),
		Status:             types.ChangePending,
		ChangeRequestInput: input,
		CreatedAt:          s.clock(),
		BaseVersion:        meta.CurrentVersion,
	}

	batch := &doc.Batch{}
	if err := stageChange(batch, projectID, cr); err != nil {
		return nil, err
	}
	if err := s.backend.Commit(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to store change request: %w", err)
	}

	s.logger.Info("change request created", "project", projectID, "change_request", cr.ID,
		"new_nodes", len(input.NewNodes), "modifications", len(input.Modifications),
		"new_edges", len(input.NewEdges))
	return cr, nil
}

// GetChangeRequest returns one change request.
func (s *Store) GetChangeRequest(ctx context.Context, projectID, changeID string) (*types.ChangeRequest, error) {
	l := s.lock(projectID)
	l.RLock()
	defer l.RUnlock()

	meta, err := s.metadataLocked(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return s.changeLocked(ctx, meta, changeID)
}

// ListChangeRequests returns every change request of a project in id order.
func (s *Store) ListChangeRequests(ctx context.Context, projectID string) ([]*types.ChangeRequest, error) {
	l := s.lock(projectID)
	l.RLock()
	defer l.RUnlock()

	meta, err := s.metadataLocked(ctx, projectID)
	if err != nil {
		return nil, err
	}
	ids, err := s.changeIDs(ctx, projectID)
	if err != nil {
		return nil, err
	}

	out := make([]*types.ChangeRequest, 0, len(ids))
	for _, id := range ids {
		cr, err := s.changeLocked(ctx, meta, id)
		if err != nil {
			return nil, err
		}
		out = append(out, cr)
	}
	return out, nil
}

// DeleteChangeRequest removes a pending change request.
func (s *Store) DeleteChangeRequest(ctx context.Context, projectID, changeID string) error {
	l := s.lock(projectID)
	l.Lock()
	defer l.Unlock()

	meta, err := s.metadataLocked(ctx, projectID)
	if err != nil {
		return err
	}
	cr, err := s.changeLocked(ctx, meta, changeID)
	if err != nil {
		return err
	}
	if cr.Status == types.ChangeApplied {
		return fmt.Errorf("%s: %w", changeID, types.ErrCannotDeleteApplied)
	}

	batch := &doc.Batch{}
	batch.Delete(changeKey(projectID, changeID))
	if err := s.backend.Commit(ctx, batch); err != nil {
		return fmt.Errorf("failed to delete change request: %w", err)
	}
	s.logger.Info("change request deleted", "project", projectID, "change_request", changeID)
	return nil
}

// ApplyResult describes a successful apply.
type ApplyResult struct {
	ChangeRequest *types.ChangeRequest
	Version       types.VersionRecord
	Warnings      []validation.ValidationWarning
}

// ApplyChangeRequest merges a pending change request into a working copy of
// the current snapshot, validates it, and commits it as the next version.
// On any failure nothing is written and the request stays pending.
func (s *Store) ApplyChangeRequest(ctx context.Context, projectID, changeID string) (*ApplyResult, error) {
	l := s.lock(projectID)
	l.Lock()
	defer l.Unlock()

	meta, err := s.metadataLocked(ctx, projectID)
	if err != nil {
		return nil, err
	}
	cr, err := s.changeLocked(ctx, meta, changeID)
	if err != nil {
		return nil, err
	}
	if cr.Status == types.ChangeApplied {
		return nil, fmt.Errorf("%s: %w", changeID, types.ErrAlreadyApplied)
	}

	if meta.Schema == types.SchemaFlat {
		return s.applyFlatLocked(ctx, meta, cr)
	}

	next, err := types.NextVersion(meta.CurrentVersion)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", projectID, err)
	}
	current, err := s.currentLocked(ctx, meta)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	working, warnings, err := s.prepare(current, cr, next, now)
	if err != nil {
		s.logger.Warn("change request rejected", "project", projectID, "change_request", changeID, "error", err)
		return nil, err
	}

	working.Version = next
	working.UpdatedAt = now

	batch := &doc.Batch{}
	record, err := s.stageSnapshot(batch, projectID, working)
	if err != nil {
		return nil, err
	}
	record.ChangeRequest = cr.ID

	updated := *meta
	if !hasAppliedChange(meta) && (updated.Name == "" || updated.Name == updated.ID) {
		if name := deriveName(working); name != "" {
			updated.Name = name
		}
	}
	updated.CurrentVersion = next
	updated.UpdatedAt = now
	updated.History = append(append([]types.VersionRecord(nil), meta.History...), record)
	if err := s.stageMetadata(batch, &updated); err != nil {
		return nil, err
	}

	applied := *cr
	applied.Status = types.ChangeApplied
	applied.AppliedAt = &now
	applied.BaseVersion = meta.CurrentVersion
	applied.ResultVersion = next
	if err := stageChange(batch, projectID, &applied); err != nil {
		return nil, err
	}

	if err := s.backend.Commit(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to commit %s: %w", changeID, err)
	}

	s.cacheAdd(projectID, working)
	s.logger.Info("change request applied", "project", projectID, "change_request", changeID,
		"from", meta.CurrentVersion, "to", next, "nodes", record.NodeCount, "warnings", len(warnings))
	return &ApplyResult{ChangeRequest: &applied, Version: record, Warnings: warnings}, nil
}

// DryRunResult is the outcome of merging and validating without a commit.
type DryRunResult struct {
	ChangeRequest *types.ChangeRequest
	Valid         bool
	// Failure is set when Valid is false
	Failure  *types.ValidationFailure
	Warnings []validation.ValidationWarning
	// Graph is the merged working copy, labelled with the version it would get
	Graph *types.Graph
}

// DryRun reports whether a pending layered change request would apply. A
// validation failure is a successful dry run with Valid false.
func (s *Store) DryRun(ctx context.Context, projectID, changeID string) (*DryRunResult, error) {
	l := s.lock(projectID)
	l.RLock()
	defer l.RUnlock()

	meta, err := s.metadataLocked(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if meta.Schema != types.SchemaLayered {
		return nil, fmt.Errorf("dry run on legacy project %s: %w", projectID, types.ErrSchemaMismatch)
	}
	cr, err := s.changeLocked(ctx, meta, changeID)
	if err != nil {
		return nil, err
	}
	if cr.Status == types.ChangeApplied {
		return nil, fmt.Errorf("%s: %w", changeID, types.ErrAlreadyApplied)
	}

	next, err := types.NextVersion(meta.CurrentVersion)
	if err != nil {
		return nil, err
	}
	current, err := s.currentLocked(ctx, meta)
	if err != nil {
		return nil, err
	}

	working, warnings, err := s.prepare(current, cr, next, s.clock())
	result := &DryRunResult{ChangeRequest: cr, Warnings: warnings}
	if err != nil {
		var failure *types.ValidationFailure
		if !errors.As(err, &failure) {
			return nil, err
		}
		result.Failure = failure
		return result, nil
	}
	working.Version = next
	result.Valid = true
	result.Graph = working
	return result, nil
}

// prepare merges cr into a copy of current and runs both validators.
func (s *Store) prepare(current *types.Graph, cr *types.ChangeRequest, next string, now time.Time) (*types.Graph, []validation.ValidationWarning, error) {
	working := current.Clone()
	if err := merge(working, &cr.ChangeRequestInput, next, now); err != nil {
		return nil, nil, err
	}

	if res := validation.Validate(working); !res.Valid {
		return nil, nil, res.Failure()
	}
	mres := validation.ValidateMappings(working)
	if !mres.Valid {
		return nil, mres.Warnings, mres.Failure()
	}
	return working, mres.Warnings, nil
}

func (s *Store) changeIDs(ctx context.Context, projectID string) ([]string, error) {
	keys, err := s.backend.List(ctx, projectPrefix(projectID)+dirChanges+"/")
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		id := changeIDFromKey(key)
		if _, err := types.ParseChangeID(id); err == nil {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		a, _ := types.ParseChangeID(ids[i])
		b, _ := types.ParseChangeID(ids[j])
		return a < b
	})
	return ids, nil
}

// changeLocked loads a change request and reconciles it with history: a
// commit interrupted after metadata but before the change document still
// counts as applied.
func (s *Store) changeLocked(ctx context.Context, meta *types.ProjectMetadata, changeID string) (*types.ChangeRequest, error) {
	if _, err := types.ParseChangeID(changeID); err != nil {
		return nil, types.NotFoundf("change request %q", changeID)
	}

	var cr types.ChangeRequest
	if err := s.getJSON(ctx, changeKey(meta.ID, changeID), &cr); err != nil {
		if isNotFound(err) {
			return nil, types.NotFoundf("change request %s in project %s", changeID, meta.ID)
		}
		return nil, err
	}

	if cr.Status != types.ChangeApplied {
		if rec, ok := meta.AppliedBy(cr.ID); ok {
			at := rec.CommittedAt
			cr.Status = types.ChangeApplied
			cr.AppliedAt = &at
			cr.ResultVersion = rec.Version
		}
	}
	return &cr, nil
}

func stageChange(batch *doc.Batch, projectID string, cr *types.ChangeRequest) error {
	data, err := marshal(cr)
	if err != nil {
		return err
	}
	batch.Put(changeKey(projectID, cr.ID), data)
	return nil
}

func hasAppliedChange(meta *types.ProjectMetadata) bool {
	for _, r := range meta.History {
		if r.ChangeRequest != "" {
			return true
		}
	}
	return false
}

// deriveName picks the title of the first epic in the narrative.
func deriveName(g *types.Graph) string {
	for _, n := range g.Narrative.Nodes {
		if n.Epic != nil && n.Epic.Title != "" {
			return n.Epic.Title
		}
	}
	return ""
}
