// Package analysis answers impact and trace queries over one loaded
// snapshot. An Analyzer never mutates its graph.
//
// Links come from four places: sub-graph edges, the typed reference fields
// on nodes, cross-layer dependencies, and flow-to-capability mappings.
// Reference fields point in the narrative-to-implementation direction
// (epic to story, story to capability, capability to requirement,
// requirement to task, screen to action, action to next screen); back
// references such as UserStory.Epic are read as the reverse of that.
package analysis

import (
	"fmt"

	"github.com/steveyegge/plangraph/internal/types"
)

// Analyzer indexes a snapshot for traversal.
type Analyzer struct {
	graph *types.Graph
	index map[string]*types.Node

	edgesOut map[string][]string
	edgesIn  map[string][]string
	linksOut map[string][]string
	linksIn  map[string][]string
	crossOut map[string][]string
	crossIn  map[string][]string
	// mapped is symmetric: action to capabilities and capability to actions
	mapped map[string][]string
}

// New builds an analyzer over g. The graph must not be modified while the
// analyzer is in use.
func New(g *types.Graph) (*Analyzer, error) {
	if g == nil {
		return nil, fmt.Errorf("no layered snapshot to analyze: %w", types.ErrSchemaMismatch)
	}

	a := &Analyzer{
		graph:    g,
		index:    g.Index(),
		edgesOut: make(map[string][]string),
		edgesIn:  make(map[string][]string),
		linksOut: make(map[string][]string),
		linksIn:  make(map[string][]string),
		crossOut: make(map[string][]string),
		crossIn:  make(map[string][]string),
		mapped:   make(map[string][]string),
	}

	for _, e := range g.AllEdges() {
		addPair(a.edgesOut, a.edgesIn, e.From, e.To)
	}
	for _, n := range g.AllNodes() {
		a.indexReferences(n)
	}
	for _, d := range g.CrossLayer {
		addPair(a.crossOut, a.crossIn, d.From, d.To)
	}
	for _, m := range g.Mappings {
		if !a.known(m.Action) {
			continue
		}
		for _, c := range m.Capabilities {
			if a.known(c) {
				addPair(a.mapped, a.mapped, m.Action, c)
			}
		}
	}
	return a, nil
}

// indexReferences records the typed links of n. A link to an id that is
// not a node of the snapshot is dropped.
func (a *Analyzer) indexReferences(n *types.Node) {
	link := func(from, to string) {
		if from != to && a.known(from) && a.known(to) {
			addPair(a.linksOut, a.linksIn, from, to)
		}
	}

	switch {
	case n.Epic != nil:
		for _, s := range n.Epic.Stories {
			link(n.ID, s)
		}
	case n.Story != nil:
		link(n.Story.Epic, n.ID)
		for _, c := range n.Story.Capabilities {
			link(n.ID, c)
		}
	case n.Capability != nil:
		for _, s := range n.Capability.Stories {
			link(s, n.ID)
		}
		for _, r := range n.Capability.Requirements {
			link(n.ID, r)
		}
	case n.Screen != nil:
		for _, act := range n.Screen.Actions {
			link(n.ID, act)
		}
		for _, entry := range n.Screen.EntryTransitions {
			link(entry, n.ID)
		}
	case n.Action != nil:
		link(n.Action.Screen, n.ID)
		link(n.ID, n.Action.NextScreen)
		for _, c := range n.Action.Capabilities {
			if a.known(c) {
				addPair(a.mapped, a.mapped, n.ID, c)
			}
		}
	case n.Requirement != nil:
		for _, c := range n.Requirement.Capabilities {
			link(c, n.ID)
		}
		for _, t := range n.Requirement.Tasks {
			link(n.ID, t)
		}
	}
}

func (a *Analyzer) known(id string) bool {
	_, ok := a.index[id]
	return ok
}

// addPair records from->to in out and to->from in in, once.
func addPair(out, in map[string][]string, from, to string) {
	if !contains(out[from], to) {
		out[from] = append(out[from], to)
	}
	if !contains(in[to], from) {
		in[to] = append(in[to], from)
	}
}

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

// Graph returns the analyzed snapshot.
func (a *Analyzer) Graph() *types.Graph {
	return a.graph
}

func (a *Analyzer) resolve(id string) (*types.Node, error) {
	n, ok := a.index[id]
	if !ok {
		return nil, types.NotFoundf("node %s", id)
	}
	return n, nil
}

// bfs visits everything reachable from start through next. start itself is
// not reported. Order is breadth-first with neighbors in index order.
func bfs(start string, next func(string) []string) []string {
	visited := map[string]bool{start: true}
	queue := []string{start}
	var out []string
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, nb := range next(id) {
			if visited[nb] {
				continue
			}
			visited[nb] = true
			out = append(out, nb)
			queue = append(queue, nb)
		}
	}
	return out
}

func (a *Analyzer) downstreamNeighbors(id string) []string {
	out := append([]string(nil), a.edgesOut[id]...)
	out = append(out, a.linksOut[id]...)
	out = append(out, a.crossOut[id]...)
	return append(out, a.mapped[id]...)
}

func (a *Analyzer) upstreamNeighbors(id string) []string {
	out := append([]string(nil), a.edgesIn[id]...)
	out = append(out, a.linksIn[id]...)
	out = append(out, a.crossIn[id]...)
	return append(out, a.mapped[id]...)
}

// DownstreamImpact returns every node reachable from id in the natural
// direction, nearest first.
func (a *Analyzer) DownstreamImpact(id string) ([]string, error) {
	if _, err := a.resolve(id); err != nil {
		return nil, err
	}
	return bfs(id, a.downstreamNeighbors), nil
}

// UpstreamImpact returns every node id is reachable from, nearest first.
func (a *Analyzer) UpstreamImpact(id string) ([]string, error) {
	if _, err := a.resolve(id); err != nil {
		return nil, err
	}
	return bfs(id, a.upstreamNeighbors), nil
}

// CrossLayerImpact returns every cross-layer dependency with id at either end.
func (a *Analyzer) CrossLayerImpact(id string) ([]types.CrossLayerDependency, error) {
	if _, err := a.resolve(id); err != nil {
		return nil, err
	}
	var deps []types.CrossLayerDependency
	for _, d := range a.graph.CrossLayer {
		if d.From == id || d.To == id {
			deps = append(deps, d)
		}
	}
	return deps, nil
}
