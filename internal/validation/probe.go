package validation

import "github.com/steveyegge/plangraph/internal/types"

// WouldCreateCycle reports whether adding the edge from → to to the
// sub-graph that owns from would close a cycle, either inside that
// sub-graph or through cross-layer dependencies. These are the cycles apply
// would reject. The graph is not modified. An unknown source cannot close a
// cycle.
func WouldCreateCycle(g *types.Graph, fromID, toID string) bool {
	if _, _, ok := g.Find(fromID); !ok {
		return false
	}
	return closesCycle(g, types.Edge{From: fromID, To: toID, Type: types.EdgeRequires})
}

// WouldCreateCrossLayerCycle reports whether adding a cross-layer
// dependency from → to would close a cycle in the combined graph.
func WouldCreateCrossLayerCycle(g *types.Graph, fromID, toID string) bool {
	return closesCycle(g, types.Edge{From: fromID, To: toID, Type: types.EdgeImpacts})
}

// closesCycle runs the combined cycle detection with e added. Sub-graph
// edges are part of the combined edge set, so a cycle confined to one
// sub-graph is found too.
func closesCycle(g *types.Graph, e types.Edge) bool {
	edges := append(CombinedEdges(g), e)
	return DetectCycle(nodeIDs(g.AllNodes()), adjacency(edges)) != nil
}
