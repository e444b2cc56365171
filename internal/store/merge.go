package store

import (
	"context"
	"fmt"
	"time"

	"github.com/steveyegge/plangraph/internal/storage/doc"
	"github.com/steveyegge/plangraph/internal/types"
	"github.com/steveyegge/plangraph/internal/validation"
)

// Codes for failures detected while merging, before the validators run.
const (
	CodeUnroutableNode     = "UNROUTABLE_NODE"
	CodeVersionNotIncrease = "VERSION_NOT_INCREASED"
	CodeInvalidPatch       = "INVALID_PATCH"
	CodeUnsupportedChange  = "UNSUPPORTED_CHANGE"
)

const layerChangeRequest = "change-request"

func mergeFailure(layer, code, format string, args ...interface{}) *types.ValidationFailure {
	return &types.ValidationFailure{Layer: layer, Code: code, Message: fmt.Sprintf(format, args...)}
}

// merge distributes a change request payload into g. New nodes go to the
// sub-graph their id prefix names; edges go to the sub-graph of their
// source node. New nodes without a version take the snapshot version.
func merge(g *types.Graph, in *types.ChangeRequestInput, version string, now time.Time) error {
	for _, n := range in.NewNodes {
		if n == nil {
			return mergeFailure(validation.LayerNodes, validation.CodeInvalidNode, "change request contains a nil node")
		}
		node := n.Clone()
		if err := node.Validate(); err != nil {
			return mergeFailure(validation.LayerNodes, CodeUnroutableNode, "%v", err)
		}
		if node.Version == "" {
			node.Version = version
		}
		if node.CreatedAt.IsZero() {
			node.CreatedAt = now
		}
		node.UpdatedAt = now
		sg := g.SubGraph(node.SubGraph())
		sg.Nodes = append(sg.Nodes, node)
	}

	for _, mod := range in.Modifications {
		node, _, ok := g.Find(mod.NodeID)
		if !ok {
			return types.NotFoundf("node %s named by modification", mod.NodeID)
		}
		if !types.VersionGreater(mod.NewVersion, node.Version) {
			return mergeFailure(validation.LayerNodes, CodeVersionNotIncrease,
				"node %s: new version %q must be greater than %q", node.ID, mod.NewVersion, node.Version)
		}
		if err := mod.Patch.Apply(node); err != nil {
			return mergeFailure(validation.LayerNodes, CodeInvalidPatch, "%v", err)
		}
		node.Version = mod.NewVersion
		node.UpdatedAt = now
	}

	for _, e := range in.NewEdges {
		_, sgID, ok := g.Find(e.From)
		if !ok {
			return mergeFailure("edges", validation.CodeDanglingEdge,
				"edge %s -> %s: source node %s does not exist", e.From, e.To, e.From)
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		sg := g.SubGraph(sgID)
		sg.Edges = append(sg.Edges, e)
	}

	for _, m := range in.NewMappings {
		m.Capabilities = append([]string(nil), m.Capabilities...)
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		g.Mappings = append(g.Mappings, m)
	}

	for _, d := range in.NewCrossLayer {
		if d.Kind == "" {
			from, _, okFrom := g.Find(d.From)
			to, _, okTo := g.Find(d.To)
			if okFrom && okTo {
				d.Kind = types.CrossKindFor(from.Layer(), to.Layer())
			}
		}
		if d.CreatedAt.IsZero() {
			d.CreatedAt = now
		}
		g.CrossLayer = append(g.CrossLayer, d)
	}
	return nil
}

// applyFlatLocked is the legacy apply path. Layered-only payload (mappings,
// cross-layer dependencies) is rejected up front.
func (s *Store) applyFlatLocked(ctx context.Context, meta *types.ProjectMetadata, cr *types.ChangeRequest) (*ApplyResult, error) {
	if len(cr.NewMappings) > 0 || len(cr.NewCrossLayer) > 0 {
		return nil, fmt.Errorf("%s carries mappings or cross-layer dependencies: %w", cr.ID, types.ErrSchemaMismatch)
	}

	current, err := s.readFlat(ctx, meta.ID)
	if err != nil {
		return nil, err
	}
	next, err := types.NextVersion(current.Version)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", meta.ID, err)
	}

	now := s.clock()
	working := current.Clone()
	if err := mergeFlat(working, &cr.ChangeRequestInput, next, now); err != nil {
		s.logger.Warn("change request rejected", "project", meta.ID, "change_request", cr.ID, "error", err)
		return nil, err
	}
	if res := validateFlat(working); !res.Valid {
		failure := res.Failure()
		s.logger.Warn("change request rejected", "project", meta.ID, "change_request", cr.ID, "error", failure)
		return nil, failure
	}
	working.Version = next
	working.UpdatedAt = now

	batch := &doc.Batch{}
	record, err := s.stageFlat(batch, meta.ID, working)
	if err != nil {
		return nil, err
	}
	record.ChangeRequest = cr.ID

	updated := *meta
	updated.Schema = types.SchemaFlat
	updated.CurrentVersion = next
	updated.UpdatedAt = now
	updated.History = append(append([]types.VersionRecord(nil), meta.History...), record)
	if err := s.stageMetadata(batch, &updated); err != nil {
		return nil, err
	}

	applied := *cr
	applied.Status = types.ChangeApplied
	applied.AppliedAt = &now
	applied.BaseVersion = current.Version
	applied.ResultVersion = next
	if err := stageChange(batch, meta.ID, &applied); err != nil {
		return nil, err
	}

	if err := s.backend.Commit(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to commit %s: %w", cr.ID, err)
	}

	s.logger.Info("legacy change request applied", "project", meta.ID, "change_request", cr.ID,
		"from", current.Version, "to", next, "nodes", record.NodeCount)
	return &ApplyResult{ChangeRequest: &applied, Version: record}, nil
}

// mergeFlat applies a payload to a legacy graph. Typed patch fields collapse
// onto the flat title and description.
func mergeFlat(fg *types.FlatGraph, in *types.ChangeRequestInput, version string, now time.Time) error {
	for _, n := range in.NewNodes {
		if n == nil {
			return mergeFailure(validation.LayerFlat, validation.CodeInvalidNode, "change request contains a nil node")
		}
		node := n.Clone()
		if err := node.Validate(); err != nil {
			return mergeFailure(validation.LayerFlat, CodeUnroutableNode, "%v", err)
		}
		if _, exists := fg.Nodes[node.ID]; exists {
			return mergeFailure(validation.LayerFlat, validation.CodeDuplicateID, "node id %s already exists", node.ID)
		}
		if node.Version == "" {
			node.Version = version
		}
		if node.CreatedAt.IsZero() {
			node.CreatedAt = now
		}
		node.UpdatedAt = now
		fg.Nodes[node.ID] = types.FlatFromNode(node)
	}

	for _, mod := range in.Modifications {
		fn, ok := fg.Nodes[mod.NodeID]
		if !ok {
			return types.NotFoundf("node %s named by modification", mod.NodeID)
		}
		if !types.VersionGreater(mod.NewVersion, fn.Version) {
			return mergeFailure(validation.LayerFlat, CodeVersionNotIncrease,
				"node %s: new version %q must be greater than %q", fn.ID, mod.NewVersion, fn.Version)
		}
		p := mod.Patch
		if kind, ok := types.KindFromID(fn.ID); ok {
			if err := p.Check(kind); err != nil {
				return mergeFailure(validation.LayerFlat, CodeInvalidPatch, "node %s: %v", fn.ID, err)
			}
		}
		switch {
		case p.Title != nil:
			fn.Title = *p.Title
		case p.Name != nil:
			fn.Title = *p.Name
		}
		switch {
		case p.Description != nil:
			fn.Description = *p.Description
		case p.Narrative != nil:
			fn.Description = *p.Narrative
		case p.Specification != nil:
			fn.Description = *p.Specification
		}
		fn.Version = mod.NewVersion
		fn.UpdatedAt = now
		fg.Nodes[fn.ID] = fn
	}

	for _, e := range in.NewEdges {
		fg.Edges = append(fg.Edges, types.FlatEdge{From: e.From, To: e.To, Type: e.Type})
	}
	return nil
}
