// Package testutil builds plan graph fixtures for tests.
package testutil

import (
	"time"

	"github.com/steveyegge/plangraph/internal/types"
)

// Epoch is the fixed timestamp stamped on fixture nodes.
var Epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func header(id string) *types.Node {
	kind, _ := types.KindFromID(id)
	return &types.Node{ID: id, Kind: kind, Version: "v1", CreatedAt: Epoch, UpdatedAt: Epoch}
}

// Epic returns an epic owning stories.
func Epic(id, title string, stories ...string) *types.Node {
	n := header(id)
	n.Epic = &types.Epic{Title: title, Stories: stories}
	return n
}

// Story returns a user story under epic linked to capabilities.
func Story(id, title, epic string, capabilities ...string) *types.Node {
	n := header(id)
	n.Story = &types.UserStory{Title: title, Epic: epic, Capabilities: capabilities}
	return n
}

// Capability returns a capability linked to requirements.
func Capability(id, name string, requirements ...string) *types.Node {
	n := header(id)
	n.Capability = &types.Capability{Name: name, Requirements: requirements}
	return n
}

// Screen returns a flow screen reachable from entry screens.
func Screen(id, name string, entries ...string) *types.Node {
	n := header(id)
	n.Screen = &types.FlowScreen{Name: name, EntryTransitions: entries}
	return n
}

// Action returns a user-triggered flow action on screen, optionally leading to next.
func Action(id, name, screen, next string, capabilities ...string) *types.Node {
	n := header(id)
	n.Action = &types.FlowAction{Name: name, Trigger: types.TriggerUser, Screen: screen, NextScreen: next, Capabilities: capabilities}
	return n
}

// Requirement returns a technical requirement linked to tasks.
func Requirement(id, title string, tasks ...string) *types.Node {
	n := header(id)
	n.Requirement = &types.TechnicalRequirement{Title: title, Tasks: tasks}
	return n
}

// Task returns a task.
func Task(id, title string) *types.Node {
	n := header(id)
	n.Task = &types.Task{Title: title}
	return n
}

// Builder assembles a graph from fixture nodes and edges.
type Builder struct {
	g *types.Graph
}

// NewBuilder starts an empty v0 graph.
func NewBuilder() *Builder {
	return &Builder{g: types.NewGraph(Epoch)}
}

// Nodes adds nodes to the sub-graph their id prefix implies.
func (b *Builder) Nodes(nodes ...*types.Node) *Builder {
	for _, n := range nodes {
		sg := b.g.SubGraph(n.SubGraph())
		sg.Nodes = append(sg.Nodes, n)
	}
	return b
}

// Edge adds a requires edge to the sub-graph of from.
func (b *Builder) Edge(from, to string) *Builder {
	return b.TypedEdge(from, to, types.EdgeRequires)
}

// TypedEdge adds an edge of the given type to the sub-graph of from.
func (b *Builder) TypedEdge(from, to string, typ types.EdgeType) *Builder {
	kind, _ := types.KindFromID(from)
	sg := b.g.SubGraph(kind.SubGraph())
	sg.Edges = append(sg.Edges, types.Edge{From: from, To: to, Type: typ, CreatedAt: Epoch})
	return b
}

// Map adds a flow-to-capability mapping.
func (b *Builder) Map(action, rationale string, capabilities ...string) *Builder {
	b.g.Mappings = append(b.g.Mappings, types.Mapping{Action: action, Capabilities: capabilities, Rationale: rationale, CreatedAt: Epoch})
	return b
}

// Cross adds a cross-layer dependency, deriving its kind from the endpoints.
func (b *Builder) Cross(from, to, rationale string) *Builder {
	fk, _ := types.KindFromID(from)
	tk, _ := types.KindFromID(to)
	b.g.CrossLayer = append(b.g.CrossLayer, types.CrossLayerDependency{
		From: from, To: to, Kind: types.CrossKindFor(fk.Layer(), tk.Layer()), Rationale: rationale, CreatedAt: Epoch,
	})
	return b
}

// Graph returns the assembled graph.
func (b *Builder) Graph() *types.Graph {
	return b.g
}

// FullChain returns a graph with one complete narrative-to-task chain:
// epic-1 → story-1 → cap-1 → req-1 → task-1, plus a screen and a mapped action.
func FullChain() *types.Graph {
	story := Story("story-1", "Sign in", "epic-1", "cap-1")
	capability := Capability("cap-1", "Authentication", "req-1")
	capability.Capability.Stories = []string{"story-1"}
	req := Requirement("req-1", "OAuth", "task-1")
	req.Requirement.Capabilities = []string{"cap-1"}
	screen := Screen("screen-login", "Login")
	screen.Screen.Actions = []string{"action-submit"}

	return NewBuilder().
		Nodes(
			Epic("epic-1", "Accounts", "story-1"),
			story,
			capability,
			screen,
			Action("action-submit", "Submit", "screen-login", "", "cap-1"),
			req,
			Task("task-1", "Implement OAuth callback"),
		).
		Map("action-submit", "submitting credentials authenticates", "cap-1").
		Graph()
}
