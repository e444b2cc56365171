package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/plangraph/internal/planner"
	"github.com/steveyegge/plangraph/internal/testutil"
	"github.com/steveyegge/plangraph/internal/types"
)

func TestParseStages(t *testing.T) {
	stages, err := parseStages([]string{"narrative", " structure"})
	require.NoError(t, err)
	assert.Equal(t, []planner.Stage{planner.StageNarrative, planner.StageStructure}, stages)

	_, err = parseStages([]string{"deploy"})
	assert.Error(t, err)
}

func TestLabels(t *testing.T) {
	got := labels(testutil.FullChain())
	assert.Contains(t, got, `capability "Authentication"`)
	assert.Contains(t, got, `task "Implement OAuth callback"`)
	assert.Len(t, got, 7)
}

func TestReadPayload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cr.json")
	payload := `{
  "description": "add task",
  "new_nodes": [{"id": "task-9", "kind": "task", "task": {"title": "Write docs"}}],
  "new_edges": [{"from": "task-9", "to": "task-1", "type": "requires"}]
}`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0644))

	in, err := readPayload(path)
	require.NoError(t, err)
	assert.Equal(t, "add task", in.Description)
	require.Len(t, in.NewNodes, 1)
	assert.Equal(t, types.KindTask, in.NewNodes[0].Kind)
	assert.Equal(t, "Write docs", in.NewNodes[0].Task.Title)
	assert.Equal(t, types.EdgeRequires, in.NewEdges[0].Type)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"descripton": "typo"}`), 0644))
	_, err = readPayload(bad)
	assert.Error(t, err, "unknown fields are rejected")

	_, err = readPayload(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestCommandTree(t *testing.T) {
	want := [][]string{
		{"init"}, {"projects"}, {"projects", "create"}, {"projects", "delete"},
		{"show"}, {"versions"}, {"validate"},
		{"cr", "create"}, {"cr", "list"}, {"cr", "show"}, {"cr", "apply"}, {"cr", "delete"}, {"cr", "dry-run"},
		{"impact"}, {"trace", "down"}, {"trace", "up"},
		{"plan"}, {"shell"}, {"import-legacy"},
	}
	for _, path := range want {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, "%v", path)
		assert.Equal(t, path[len(path)-1], cmd.Name(), "%v", path)
	}
}
