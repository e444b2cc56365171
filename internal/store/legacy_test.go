package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/plangraph/internal/storage/doc"
	"github.com/steveyegge/plangraph/internal/testutil"
	"github.com/steveyegge/plangraph/internal/types"
	"github.com/steveyegge/plangraph/internal/validation"
)

func legacyGraph() *types.FlatGraph {
	fg := types.NewFlatGraph(testutil.Epoch)
	fg.Version = "v3"
	fg.Nodes["task-a"] = types.FlatNode{ID: "task-a", Type: "task", Title: "Schema", Version: "v1"}
	fg.Nodes["task-b"] = types.FlatNode{ID: "task-b", Type: "task", Title: "API", Version: "v1"}
	fg.Edges = []types.FlatEdge{{From: "task-b", To: "task-a", Type: types.EdgeRequires}}
	return fg
}

func TestImportLegacy(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f fixture) {
		ctx := context.Background()
		meta, err := f.store.ImportLegacy(ctx, "old", legacyGraph())
		require.NoError(t, err)
		assert.Equal(t, types.SchemaFlat, meta.Schema)
		assert.Equal(t, "v3", meta.CurrentVersion)

		schema, err := f.store.Schema(ctx, "old")
		require.NoError(t, err)
		assert.Equal(t, types.SchemaFlat, schema)

		fg, err := f.store.LoadFlat(ctx, "old")
		require.NoError(t, err)
		assert.Len(t, fg.Nodes, 2)

		_, err = f.store.LoadCurrent(ctx, "old")
		assert.True(t, errors.Is(err, types.ErrSchemaMismatch))
		_, err = f.store.Analyzer(ctx, "old")
		assert.True(t, errors.Is(err, types.ErrSchemaMismatch))

		_, err = f.store.ImportLegacy(ctx, "old", legacyGraph())
		assert.Error(t, err, "import over an existing project")
	})
}

func TestImportLegacyRejectsCycle(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f fixture) {
		fg := legacyGraph()
		fg.Edges = append(fg.Edges, types.FlatEdge{From: "task-a", To: "task-b", Type: types.EdgeRequires})

		_, err := f.store.ImportLegacy(context.Background(), "old", fg)
		var failure *types.ValidationFailure
		require.True(t, errors.As(err, &failure))
		assert.Equal(t, validation.CodeCycle, failure.Code)

		_, err = f.store.GetMetadata(context.Background(), "old")
		assert.True(t, errors.Is(err, types.ErrNotFound), "nothing written")
	})
}

// A project that only has the legacy graph document, with no metadata at
// all, is still detected and served.
func TestLegacyDocumentWithoutMetadata(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f fixture) {
		ctx := context.Background()
		data, err := json.Marshal(legacyGraph())
		require.NoError(t, err)
		batch := &doc.Batch{}
		batch.Put(legacyKey("old"), data)
		require.NoError(t, f.backend.Commit(ctx, batch))

		meta, err := f.store.GetMetadata(ctx, "old")
		require.NoError(t, err)
		assert.Equal(t, types.SchemaFlat, meta.Schema)
		assert.Equal(t, "v3", meta.CurrentVersion)

		projects, err := f.store.ListProjects(ctx)
		require.NoError(t, err)
		require.Len(t, projects, 1)
		assert.Equal(t, "old", projects[0].ID)

		docs := testutil.Task("task-c", "Docs")
		docs.Version = ""
		res := apply(t, f.store, "old", types.ChangeRequestInput{
			Description: "add docs task",
			NewNodes:    []*types.Node{docs},
			NewEdges:    []types.Edge{{From: "task-c", To: "task-b", Type: types.EdgeRequires}},
		})
		assert.Equal(t, "v4", res.Version.Version)
		assert.Equal(t, 3, res.Version.NodeCount)

		fg, err := f.store.LoadFlat(ctx, "old")
		require.NoError(t, err)
		assert.Equal(t, "v4", fg.Version)
		assert.Equal(t, "Docs", fg.Nodes["task-c"].Title)
		assert.Equal(t, "v4", fg.Nodes["task-c"].Version)

		meta, err = f.store.GetMetadata(ctx, "old")
		require.NoError(t, err)
		assert.Equal(t, "v4", meta.CurrentVersion)
		assert.Equal(t, res.ChangeRequest.ID, meta.History[len(meta.History)-1].ChangeRequest)
	})
}

func TestLegacyApplyRules(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f fixture) {
		ctx := context.Background()
		_, err := f.store.ImportLegacy(ctx, "old", legacyGraph())
		require.NoError(t, err)

		create := func(in types.ChangeRequestInput) string {
			cr, err := f.store.CreateChangeRequest(ctx, "old", in)
			require.NoError(t, err)
			return cr.ID
		}

		cyclic := create(types.ChangeRequestInput{
			Description: "loop",
			NewEdges:    []types.Edge{{From: "task-a", To: "task-b", Type: types.EdgeRequires}},
		})
		_, err = f.store.ApplyChangeRequest(ctx, "old", cyclic)
		var failure *types.ValidationFailure
		require.True(t, errors.As(err, &failure))
		assert.Equal(t, validation.CodeCycle, failure.Code)

		mapped := create(types.ChangeRequestInput{
			Description: "mapping",
			NewMappings: []types.Mapping{{Action: "action-x", Capabilities: []string{"cap-x"}}},
		})
		_, err = f.store.ApplyChangeRequest(ctx, "old", mapped)
		assert.True(t, errors.Is(err, types.ErrSchemaMismatch))

		title := "Database schema"
		renamed := create(types.ChangeRequestInput{
			Description: "rename",
			Modifications: []types.NodeModification{{
				NodeID:     "task-a",
				NewVersion: "v2",
				Patch:      types.NodePatch{Title: &title},
			}},
		})
		res, err := f.store.ApplyChangeRequest(ctx, "old", renamed)
		require.NoError(t, err)
		assert.Equal(t, "v4", res.Version.Version)

		fg, err := f.store.LoadFlat(ctx, "old")
		require.NoError(t, err)
		assert.Equal(t, "Database schema", fg.Nodes["task-a"].Title)
		assert.Equal(t, "v2", fg.Nodes["task-a"].Version)

		stale := create(types.ChangeRequestInput{
			Description: "stale",
			Modifications: []types.NodeModification{{
				NodeID:     "task-a",
				NewVersion: "v2",
				Patch:      types.NodePatch{Title: &title},
			}},
		})
		_, err = f.store.ApplyChangeRequest(ctx, "old", stale)
		require.True(t, errors.As(err, &failure))
		assert.Equal(t, CodeVersionNotIncrease, failure.Code)

		versions, err := f.store.ListVersions(ctx, "old")
		require.NoError(t, err)
		assert.Len(t, versions, 2, "only the import and the rename committed")
	})
}
