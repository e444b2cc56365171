package types

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindFromID(t *testing.T) {
	tests := []struct {
		id       string
		want     NodeKind
		wantOK   bool
		subGraph SubGraphID
	}{
		{"epic-1", KindEpic, true, SubGraphNarrative},
		{"story-A", KindUserStory, true, SubGraphNarrative},
		{"cap-B", KindCapability, true, SubGraphFeatures},
		{"screen-home", KindFlowScreen, true, SubGraphFlows},
		{"action-login", KindFlowAction, true, SubGraphFlows},
		{"req-C", KindRequirement, true, SubGraphSpecification},
		{"task-1", KindTask, true, SubGraphSpecification},
		{"task-", "", false, ""},
		{"widget-1", "", false, ""},
		{"", "", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, ok := KindFromID(tt.id)
			if ok != tt.wantOK || got != tt.want {
				t.Fatalf("KindFromID(%q) = %q, %v; want %q, %v", tt.id, got, ok, tt.want, tt.wantOK)
			}
			if ok && got.SubGraph() != tt.subGraph {
				t.Errorf("SubGraph() = %q, want %q", got.SubGraph(), tt.subGraph)
			}
		})
	}
}

func TestLayerRank(t *testing.T) {
	assert.Equal(t, 0, LayerNarrative.Rank())
	assert.Equal(t, 1, LayerStructure.Rank())
	assert.Equal(t, 2, LayerSpecification.Rank())
	assert.Equal(t, -1, Layer("bogus").Rank())
	assert.Equal(t, CrossStructureToSpecification, CrossKindFor(LayerStructure, LayerSpecification))
}

func TestNodeValidate(t *testing.T) {
	now := time.Now()

	good := &Node{ID: "task-1", Kind: KindTask, Version: "v1", CreatedAt: now, UpdatedAt: now, Task: &Task{Title: "t"}}
	require.NoError(t, good.Validate())

	wrongKind := &Node{ID: "task-1", Kind: KindEpic, Task: &Task{Title: "t"}}
	assert.Error(t, wrongKind.Validate())

	wrongVariant := &Node{ID: "task-1", Kind: KindTask, Epic: &Epic{Title: "e"}}
	assert.Error(t, wrongVariant.Validate())

	twoVariants := &Node{ID: "task-1", Kind: KindTask, Task: &Task{}, Epic: &Epic{}}
	assert.Error(t, twoVariants.Validate())

	inferred := &Node{ID: "cap-1", Capability: &Capability{Name: "c"}}
	require.NoError(t, inferred.Validate())
	assert.Equal(t, KindCapability, inferred.Kind)

	badTrigger := &Node{ID: "action-1", Action: &FlowAction{Name: "a", Trigger: "robot", Screen: "screen-1"}}
	assert.Error(t, badTrigger.Validate())
}

func TestNodePatchApply(t *testing.T) {
	n := &Node{ID: "story-1", Kind: KindUserStory, Version: "v1", Story: &UserStory{Title: "old"}}
	title := "new"
	caps := []string{"cap-1"}

	patch := NodePatch{Title: &title, Capabilities: &caps}
	require.NoError(t, patch.Apply(n))
	assert.Equal(t, "new", n.Story.Title)
	assert.Equal(t, []string{"cap-1"}, n.Story.Capabilities)

	// Applied slices are copies
	caps[0] = "cap-2"
	assert.Equal(t, "cap-1", n.Story.Capabilities[0])

	name := "nope"
	bad := NodePatch{Name: &name}
	err := bad.Apply(n)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"name"`)
	assert.Equal(t, "new", n.Story.Title)
}

func TestVersionTags(t *testing.T) {
	n, err := ParseVersion("v12")
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	next, err := NextVersion("v0")
	require.NoError(t, err)
	assert.Equal(t, "v1", next)

	_, err = ParseVersion("12")
	assert.Error(t, err)
	_, err = ParseVersion("v-1")
	assert.Error(t, err)

	assert.True(t, VersionGreater("v2", "v1"))
	assert.True(t, VersionGreater("v10", "v9"))
	assert.True(t, VersionGreater("v1.1", "v1"))
	assert.False(t, VersionGreater("v1", "v1"))
	assert.False(t, VersionGreater("v1", "v2"))
	assert.False(t, VersionGreater("banana", "v1"))
	assert.True(t, VersionGreater("v1", ""))
}

func TestNextChangeID(t *testing.T) {
	assert.Equal(t, "CR-000", NextChangeID(nil))
	assert.Equal(t, "CR-001", NextChangeID([]string{"CR-000"}))
	assert.Equal(t, "CR-008", NextChangeID([]string{"CR-002", "CR-007", "junk", "CR-003"}))
	assert.Equal(t, "CR-1000", NextChangeID([]string{"CR-999"}))
}

func TestParseChangeID(t *testing.T) {
	tests := []struct {
		id   string
		want int
		ok   bool
	}{
		{"CR-000", 0, true},
		{"CR-042", 42, true},
		{"CR-1000", 1000, true},
		{"CR-+05", 0, false},
		{"CR-0005", 0, false},
		{"CR-5", 0, false},
		{"CR--01", 0, false},
		{"cr-001", 0, false},
		{"CR-", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			n, err := ParseChangeID(tt.id)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}

	assert.Equal(t, "CR-006", NextChangeID([]string{"CR-005", "CR-0009", "CR-+7"}))
}

func TestGraphCloneIsDeep(t *testing.T) {
	g := NewGraph(time.Now())
	g.Narrative.Nodes = append(g.Narrative.Nodes, &Node{ID: "epic-1", Kind: KindEpic, Epic: &Epic{Title: "E", Stories: []string{"story-1"}}})
	g.Mappings = append(g.Mappings, Mapping{Action: "action-1", Capabilities: []string{"cap-1"}})

	c := g.Clone()
	c.Narrative.Nodes[0].Epic.Stories[0] = "story-2"
	c.Mappings[0].Capabilities[0] = "cap-2"

	assert.Equal(t, "story-1", g.Narrative.Nodes[0].Epic.Stories[0])
	assert.Equal(t, "cap-1", g.Mappings[0].Capabilities[0])

	n, sg, ok := c.Find("epic-1")
	require.True(t, ok)
	assert.Equal(t, SubGraphNarrative, sg)
	assert.Equal(t, "E", n.Label())
}

func TestValidationFailureIs(t *testing.T) {
	var err error = &ValidationFailure{Layer: "specification", Code: "CYCLE_DETECTED", Message: "cycle"}
	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrNotFound))

	assert.True(t, errors.Is(ErrAlreadyApplied, ErrIllegalState))
	assert.True(t, errors.Is(ErrCannotDeleteApplied, ErrIllegalState))
	assert.True(t, errors.Is(NotFoundf("node %s", "x"), ErrNotFound))
}
