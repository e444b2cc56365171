package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/plangraph/internal/testutil"
	"github.com/steveyegge/plangraph/internal/types"
)

func TestNewRejectsMissingGraph(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, types.ErrSchemaMismatch)
}

func TestAnalyzeImpact_CrossLayerBuckets(t *testing.T) {
	g := testutil.NewBuilder().Nodes(
		testutil.Story("story-A", "Checkout", "", "cap-B"),
		testutil.Capability("cap-B", "Payments", "req-C"),
		testutil.Requirement("req-C", "PCI scope"),
	).Graph()

	a, err := New(g)
	require.NoError(t, err)

	report, err := a.AnalyzeImpact("story-A")
	require.NoError(t, err)

	assert.Equal(t, types.LayerNarrative, report.Layer)
	assert.Equal(t, []string{"cap-B"}, report.AffectedNodes.Structure)
	assert.Equal(t, []string{"req-C"}, report.AffectedNodes.Specification)
	assert.Empty(t, report.AffectedNodes.Narrative)
	assert.Equal(t, []string{"cap-B"}, report.Capabilities)
	assert.Equal(t, []string{"req-C"}, report.Requirements)
	assert.NotContains(t, report.Affected(), "story-A")
}

func TestAnalyzeImpact_IgnoresUnresolvedReferences(t *testing.T) {
	g := testutil.NewBuilder().Nodes(
		testutil.Epic("epic-1", "E", "story-1", "story-ghost"),
		testutil.Story("story-1", "S", "epic-ghost", "cap-ghost"),
		testutil.Requirement("req-1", "R", "task-ghost"),
	).Graph()

	a, err := New(g)
	require.NoError(t, err)

	report, err := a.AnalyzeImpact("story-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"epic-1"}, report.AffectedNodes.Narrative)
	assert.Empty(t, report.AffectedNodes.Structure)
	assert.Empty(t, report.AffectedNodes.Specification)
	assert.Empty(t, report.Capabilities)
	assert.NotContains(t, report.Upstream, "epic-ghost")
	assert.NotContains(t, report.Downstream, "cap-ghost")

	down, err := a.DownstreamImpact("req-1")
	require.NoError(t, err)
	assert.Empty(t, down)
}

func TestImpactSymmetry(t *testing.T) {
	g := testutil.NewBuilder().
		Nodes(
			testutil.Task("task-1", "Schema"),
			testutil.Task("task-2", "Migration"),
			testutil.Task("task-3", "Backfill"),
			testutil.Screen("screen-a", "A"),
			testutil.Screen("screen-b", "B"),
		).
		Edge("task-1", "task-2").
		Edge("task-2", "task-3").
		TypedEdge("screen-a", "screen-b", types.EdgeBlocks).
		Graph()

	a, err := New(g)
	require.NoError(t, err)

	for _, e := range g.AllEdges() {
		down, err := a.DownstreamImpact(e.From)
		require.NoError(t, err)
		assert.Contains(t, down, e.To, "downstream of %s", e.From)

		up, err := a.UpstreamImpact(e.To)
		require.NoError(t, err)
		assert.Contains(t, up, e.From, "upstream of %s", e.To)
	}

	// Transitive and direction-respecting
	down, err := a.DownstreamImpact("task-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"task-2", "task-3"}, down)
	up, err := a.UpstreamImpact("task-1")
	require.NoError(t, err)
	assert.Empty(t, up)
}

func TestAnalyzeImpact_MappingsAreBidirectional(t *testing.T) {
	a, err := New(testutil.FullChain())
	require.NoError(t, err)

	fromAction, err := a.AnalyzeImpact("action-submit")
	require.NoError(t, err)
	assert.Contains(t, fromAction.Downstream, "cap-1")
	assert.Contains(t, fromAction.Upstream, "cap-1")

	fromCap, err := a.AnalyzeImpact("cap-1")
	require.NoError(t, err)
	assert.Contains(t, fromCap.Downstream, "action-submit")
	assert.Contains(t, fromCap.Upstream, "action-submit")
	assert.Contains(t, fromCap.Flows, "action-submit")
	assert.Contains(t, fromCap.Upstream, "story-1")
	assert.Contains(t, fromCap.Upstream, "epic-1")
	assert.Contains(t, fromCap.Downstream, "task-1")
}

func TestAnalyzeImpact_CrossLayerDependencies(t *testing.T) {
	g := testutil.NewBuilder().
		Nodes(
			testutil.Task("task-9", "Audit log"),
			testutil.Epic("epic-9", "Compliance"),
		).
		Cross("task-9", "epic-9", "audit requirement feeds the compliance narrative").
		Graph()

	a, err := New(g)
	require.NoError(t, err)

	report, err := a.AnalyzeImpact("epic-9")
	require.NoError(t, err)
	assert.Equal(t, []string{"task-9"}, report.AffectedNodes.Specification)
	require.Len(t, report.CrossLayer, 1)
	assert.Equal(t, "audit requirement feeds the compliance narrative", report.CrossLayer[0].Rationale)

	deps, err := a.CrossLayerImpact("task-9")
	require.NoError(t, err)
	assert.Len(t, deps, 1)

	down, err := a.DownstreamImpact("task-9")
	require.NoError(t, err)
	assert.Equal(t, []string{"epic-9"}, down)
}

func TestAnalyzeImpact_IsolatedNodeIsEmpty(t *testing.T) {
	g := testutil.NewBuilder().Nodes(testutil.Task("task-1", "Alone")).Graph()
	a, err := New(g)
	require.NoError(t, err)

	report, err := a.AnalyzeImpact("task-1")
	require.NoError(t, err)
	assert.Zero(t, report.AffectedNodes.Count())
	assert.Empty(t, report.CrossLayer)
}

func TestUnknownNodeIsNotFound(t *testing.T) {
	a, err := New(testutil.FullChain())
	require.NoError(t, err)

	_, err = a.AnalyzeImpact("task-missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = a.DownstreamImpact("task-missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = a.UpstreamImpact("task-missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = a.CrossLayerImpact("task-missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = a.TraceNarrativeToImplementation("epic-missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = a.TraceImplementationToNarrative("task-missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestTraceRoundTrip(t *testing.T) {
	a, err := New(testutil.FullChain())
	require.NoError(t, err)

	down, err := a.TraceNarrativeToImplementation("epic-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"epic-1", "story-1", "cap-1", "req-1", "task-1", "action-submit"}, down.Path)
	assert.Equal(t, []string{"task-1"}, down.Tasks)
	assert.Equal(t, []string{"action-submit"}, down.Flows)
	assert.True(t, down.Contains("task-1"))

	up, err := a.TraceImplementationToNarrative("task-1")
	require.NoError(t, err)
	assert.Equal(t, "epic-1", up.Epic)
	assert.Equal(t, []string{"task-1", "req-1", "cap-1", "story-1", "epic-1", "action-submit"}, up.Path)
	assert.True(t, up.Contains("epic-1"))
}

func TestTraceUp_FirstFoundEpic(t *testing.T) {
	g := testutil.NewBuilder().Nodes(
		testutil.Epic("epic-a", "First"),
		testutil.Epic("epic-b", "Second"),
		testutil.Story("story-a", "A", "epic-a", "cap-shared"),
		testutil.Story("story-b", "B", "epic-b", "cap-shared"),
		testutil.Capability("cap-shared", "Shared", "req-1"),
		testutil.Requirement("req-1", "R", "task-1"),
		testutil.Task("task-1", "T"),
	).Graph()

	a, err := New(g)
	require.NoError(t, err)

	up, err := a.TraceImplementationToNarrative("task-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"story-a", "story-b"}, up.Stories)
	assert.Equal(t, "epic-a", up.Epic)
	assert.NotContains(t, up.Path, "epic-b")
}

func TestTraceRejectsWrongKind(t *testing.T) {
	a, err := New(testutil.FullChain())
	require.NoError(t, err)

	_, err = a.TraceNarrativeToImplementation("story-1")
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = a.TraceImplementationToNarrative("req-1")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestTraceSuppressesDuplicates(t *testing.T) {
	g := testutil.NewBuilder().Nodes(
		testutil.Epic("epic-1", "E", "story-1", "story-2"),
		testutil.Story("story-1", "S1", "epic-1", "cap-1"),
		testutil.Story("story-2", "S2", "epic-1", "cap-1"),
		testutil.Capability("cap-1", "C", "req-1"),
		testutil.Requirement("req-1", "R", "task-1"),
		testutil.Task("task-1", "T"),
	).Graph()

	a, err := New(g)
	require.NoError(t, err)

	down, err := a.TraceNarrativeToImplementation("epic-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"cap-1"}, down.Capabilities)
	assert.Equal(t, []string{"epic-1", "story-1", "story-2", "cap-1", "req-1", "task-1"}, down.Path)
}
