package validation

import (
	"fmt"

	"github.com/steveyegge/plangraph/internal/types"
)

// nodeIntegrityCheck verifies every node is well-formed, sits in the
// sub-graph its id prefix implies, and has a globally unique id.
type nodeIntegrityCheck struct{}

func (nodeIntegrityCheck) Name() string  { return "node_integrity" }
func (nodeIntegrityCheck) Priority() int { return 1 }

func (nodeIntegrityCheck) Check(g *types.Graph) Result {
	seen := make(map[string]types.SubGraphID)
	for _, sg := range types.SubGraphs {
		for _, n := range g.SubGraph(sg).Nodes {
			if n == nil {
				return fail(LayerNodes, CodeInvalidNode, fmt.Sprintf("nil node in %s", sg))
			}
			if err := n.Validate(); err != nil {
				return fail(LayerNodes, CodeInvalidNode, err.Error())
			}
			if !types.ValidNodeVersion(n.Version) {
				return fail(LayerNodes, CodeInvalidNode, fmt.Sprintf("node %s: invalid version %q", n.ID, n.Version))
			}
			if n.SubGraph() != sg {
				return fail(LayerNodes, CodeMisplacedNode,
					fmt.Sprintf("node %s belongs in %s but was found in %s", n.ID, n.SubGraph(), sg))
			}
			if prev, dup := seen[n.ID]; dup {
				return fail(LayerNodes, CodeDuplicateID,
					fmt.Sprintf("node id %s is not unique (found in %s and %s)", n.ID, prev, sg))
			}
			seen[n.ID] = sg
		}
	}
	return OK()
}

// subGraphCheck validates one sub-graph under its own edges.
type subGraphCheck struct {
	id       types.SubGraphID
	priority int
}

func (c subGraphCheck) Name() string  { return string(c.id) + "_acyclic" }
func (c subGraphCheck) Priority() int { return c.priority }

func (c subGraphCheck) Check(g *types.Graph) Result {
	sg := g.SubGraph(c.id)
	res := ValidateLayer(sg.Nodes, sg.Edges)
	if !res.Valid {
		res.Layer = string(c.id)
	}
	return res
}

// crossLayerReferenceCheck verifies both endpoints of every cross-layer
// dependency exist, live in different layers, and match the kind tag.
type crossLayerReferenceCheck struct{}

func (crossLayerReferenceCheck) Name() string  { return "cross_layer_references" }
func (crossLayerReferenceCheck) Priority() int { return 60 }

func (crossLayerReferenceCheck) Check(g *types.Graph) Result {
	idx := g.Index()
	for _, d := range g.CrossLayer {
		from, ok := idx[d.From]
		if !ok {
			return fail(LayerCrossLayer, CodeDanglingCrossDep,
				fmt.Sprintf("cross-layer dependency %s → %s: source %s does not exist", d.From, d.To, d.From))
		}
		to, ok := idx[d.To]
		if !ok {
			return fail(LayerCrossLayer, CodeDanglingCrossDep,
				fmt.Sprintf("cross-layer dependency %s → %s: target %s does not exist", d.From, d.To, d.To))
		}
		if from.Layer() == to.Layer() {
			return fail(LayerCrossLayer, CodeSameLayerCrossDep,
				fmt.Sprintf("cross-layer dependency %s → %s connects two %s nodes", d.From, d.To, from.Layer()))
		}
		if want := types.CrossKindFor(from.Layer(), to.Layer()); d.Kind != "" && d.Kind != want {
			return fail(LayerCrossLayer, CodeCrossKindMismatch,
				fmt.Sprintf("cross-layer dependency %s → %s is tagged %s but connects %s", d.From, d.To, d.Kind, want))
		}
	}
	return OK()
}

// combinedCycleCheck catches cycles that only appear when sub-graph edges
// and cross-layer dependencies are taken together.
type combinedCycleCheck struct{}

func (combinedCycleCheck) Name() string  { return "combined_acyclic" }
func (combinedCycleCheck) Priority() int { return 70 }

func (combinedCycleCheck) Check(g *types.Graph) Result {
	if cycle := combinedCycle(g); cycle != nil {
		res := fail(LayerCombined, CodeCycle,
			fmt.Sprintf("circular dependency across layers: %s", FormatCycle(cycle)))
		res.Cycle = cycle
		return res
	}
	return OK()
}

// CombinedEdges returns all sub-graph edges followed by the cross-layer
// dependencies, as plain directed edges.
func CombinedEdges(g *types.Graph) []types.Edge {
	edges := g.AllEdges()
	for _, d := range g.CrossLayer {
		edges = append(edges, types.Edge{From: d.From, To: d.To, Type: types.EdgeImpacts})
	}
	return edges
}

func combinedCycle(g *types.Graph) []string {
	return DetectCycle(nodeIDs(g.AllNodes()), adjacency(CombinedEdges(g)))
}
