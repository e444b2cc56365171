package validation

import (
	"strings"
	"testing"

	"github.com/steveyegge/plangraph/internal/testutil"
	"github.com/steveyegge/plangraph/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectCycle_NoCycles(t *testing.T) {
	adj := map[string][]string{
		"a": {"b", "c"},
		"b": {"c"},
	}
	if cycle := DetectCycle([]string{"a", "b", "c"}, adj); cycle != nil {
		t.Errorf("expected no cycle for DAG, got %v", cycle)
	}
}

func TestDetectCycle_ReturnsClosedTail(t *testing.T) {
	// x leads into the cycle but is not part of it
	adj := map[string][]string{
		"x": {"a"},
		"a": {"b"},
		"b": {"c"},
		"c": {"a"},
	}
	cycle := DetectCycle([]string{"x", "a", "b", "c"}, adj)
	assert.Equal(t, []string{"a", "b", "c", "a"}, cycle)
}

func TestDetectCycle_SelfLoop(t *testing.T) {
	cycle := DetectCycle([]string{"a"}, map[string][]string{"a": {"a"}})
	assert.Equal(t, []string{"a", "a"}, cycle)
}

func TestValidateLayer_TwoTaskCycle(t *testing.T) {
	nodes := []*types.Node{testutil.Task("task-1", "one"), testutil.Task("task-2", "two")}
	edges := []types.Edge{
		{From: "task-1", To: "task-2", Type: types.EdgeRequires},
		{From: "task-2", To: "task-1", Type: types.EdgeRequires},
	}

	res := ValidateLayer(nodes, edges)
	require.False(t, res.Valid)
	assert.Equal(t, CodeCycle, res.Code)
	assert.Equal(t, []string{"task-1", "task-2", "task-1"}, res.Cycle)
	if !strings.Contains(res.Error, "→") {
		t.Errorf("expected cycle path in message, got: %s", res.Error)
	}
}

func TestValidateLayer_DanglingAndBadType(t *testing.T) {
	nodes := []*types.Node{testutil.Task("task-1", "one")}

	res := ValidateLayer(nodes, []types.Edge{{From: "task-1", To: "task-9", Type: types.EdgeBlocks}})
	require.False(t, res.Valid)
	assert.Equal(t, CodeDanglingEdge, res.Code)
	assert.Contains(t, res.Error, "task-9")

	res = ValidateLayer(nodes, []types.Edge{{From: "task-1", To: "task-1", Type: "loves"}})
	require.False(t, res.Valid)
	assert.Equal(t, CodeInvalidEdgeType, res.Code)
}

func TestTopologicalOrder(t *testing.T) {
	nodes := []*types.Node{
		testutil.Task("task-a", "a"),
		testutil.Task("task-b", "b"),
		testutil.Task("task-c", "c"),
		testutil.Task("task-d", "d"),
	}
	edges := []types.Edge{
		{From: "task-c", To: "task-a", Type: types.EdgeRequires},
		{From: "task-a", To: "task-b", Type: types.EdgeRequires},
	}

	order, cycle := TopologicalOrder(nodes, edges)
	require.Nil(t, cycle)
	// task-c must precede task-a, task-a must precede task-b; task-d is free
	assert.Equal(t, []string{"task-c", "task-a", "task-b", "task-d"}, order)

	edges = append(edges, types.Edge{From: "task-b", To: "task-c", Type: types.EdgeRequires})
	order, cycle = TopologicalOrder(nodes, edges)
	assert.Nil(t, order)
	assert.NotEmpty(t, cycle)
}
