package store

import (
	"context"
	"fmt"

	"github.com/steveyegge/plangraph/internal/analysis"
	"github.com/steveyegge/plangraph/internal/types"
)

// Analyzer returns an analyzer over the current snapshot of a layered
// project. Legacy projects fail with ErrSchemaMismatch before any traversal.
func (s *Store) Analyzer(ctx context.Context, projectID string) (*analysis.Analyzer, error) {
	return s.AnalyzerAt(ctx, projectID, "")
}

// AnalyzerAt is Analyzer over a historical version; "" means current.
func (s *Store) AnalyzerAt(ctx context.Context, projectID, version string) (*analysis.Analyzer, error) {
	schema, err := s.Schema(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if schema != types.SchemaLayered {
		return nil, fmt.Errorf("impact analysis on legacy project %s: %w", projectID, types.ErrSchemaMismatch)
	}

	var g *types.Graph
	if version == "" {
		g, err = s.LoadCurrent(ctx, projectID)
	} else {
		g, err = s.LoadVersion(ctx, projectID, version)
	}
	if err != nil {
		return nil, err
	}
	return analysis.New(g)
}
