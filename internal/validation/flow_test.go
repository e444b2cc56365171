package validation

import (
	"testing"

	"github.com/steveyegge/plangraph/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlowReferences_MissingParentScreen(t *testing.T) {
	g := testutil.NewBuilder().
		Nodes(testutil.Action("action-orphan", "Tap", "screen-ghost", "")).
		Graph()

	res := Validate(g)
	require.False(t, res.Valid)
	assert.Equal(t, LayerFlowReferences, res.Layer)
	assert.Equal(t, CodeMissingScreen, res.Code)
	assert.Contains(t, res.Error, "action-orphan")
	assert.Contains(t, res.Error, "screen-ghost")
}

func TestFlowReferences(t *testing.T) {
	tests := []struct {
		name     string
		build    func(b *testutil.Builder)
		wantCode string
		wantText string
	}{
		{
			name: "valid flow",
			build: func(b *testutil.Builder) {
				b.Nodes(
					testutil.Screen("screen-home", "Home"),
					testutil.Screen("screen-detail", "Detail", "screen-home"),
					testutil.Action("action-open", "Open", "screen-home", "screen-detail"),
				)
			},
		},
		{
			name: "next screen missing",
			build: func(b *testutil.Builder) {
				b.Nodes(
					testutil.Screen("screen-home", "Home"),
					testutil.Action("action-open", "Open", "screen-home", "screen-nowhere"),
				)
			},
			wantCode: CodeMissingScreen,
			wantText: "screen-nowhere",
		},
		{
			name: "next screen is an action",
			build: func(b *testutil.Builder) {
				b.Nodes(
					testutil.Screen("screen-home", "Home"),
					testutil.Action("action-a", "A", "screen-home", ""),
					testutil.Action("action-b", "B", "screen-home", "action-a"),
				)
			},
			wantCode: CodeNotAScreen,
			wantText: "action-a",
		},
		{
			name: "parent screen is an action",
			build: func(b *testutil.Builder) {
				b.Nodes(
					testutil.Screen("screen-home", "Home"),
					testutil.Action("action-a", "A", "screen-home", ""),
					testutil.Action("action-b", "B", "action-a", ""),
				)
			},
			wantCode: CodeNotAScreen,
			wantText: "action-b",
		},
		{
			name: "entry transition from an action",
			build: func(b *testutil.Builder) {
				b.Nodes(
					testutil.Screen("screen-home", "Home"),
					testutil.Action("action-a", "A", "screen-home", ""),
					testutil.Screen("screen-next", "Next", "action-a"),
				)
			},
			wantCode: CodeNotAScreen,
			wantText: "screen-next",
		},
		{
			name: "next screen is a capability",
			build: func(b *testutil.Builder) {
				b.Nodes(
					testutil.Screen("screen-home", "Home"),
					testutil.Action("action-a", "A", "screen-home", "cap-1"),
					testutil.Capability("cap-1", "Search"),
				)
			},
			wantCode: CodeNotAScreen,
			wantText: "capability",
		},
		{
			name: "entry transition missing",
			build: func(b *testutil.Builder) {
				b.Nodes(testutil.Screen("screen-next", "Next", "screen-gone"))
			},
			wantCode: CodeMissingScreen,
			wantText: "screen-gone",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testutil.NewBuilder()
			tt.build(b)
			res := Validate(b.Graph())
			if tt.wantCode == "" {
				assert.True(t, res.Valid, "unexpected failure: %s", res.Error)
				return
			}
			require.False(t, res.Valid)
			assert.Equal(t, LayerFlowReferences, res.Layer)
			assert.Equal(t, tt.wantCode, res.Code)
			assert.Contains(t, res.Error, tt.wantText)
		})
	}
}
