package validation

import (
	"fmt"

	"github.com/steveyegge/plangraph/internal/types"
)

// LayerFlat names the single logical layer of a legacy flat graph.
const LayerFlat = "flat"

// ValidateFlat checks a legacy flat graph: edges must name existing nodes
// and must not form a cycle.
func ValidateFlat(g *types.FlatGraph) Result {
	ids := g.NodeIDs()
	for _, e := range g.Edges {
		if _, ok := g.Nodes[e.From]; !ok {
			return fail(LayerFlat, CodeDanglingEdge, fmt.Sprintf("edge %s → %s: source %s does not exist", e.From, e.To, e.From))
		}
		if _, ok := g.Nodes[e.To]; !ok {
			return fail(LayerFlat, CodeDanglingEdge, fmt.Sprintf("edge %s → %s: target %s does not exist", e.From, e.To, e.To))
		}
	}

	adj := make(map[string][]string)
	for _, e := range g.Edges {
		adj[e.From] = append(adj[e.From], e.To)
	}
	if cycle := DetectCycle(ids, adj); cycle != nil {
		res := fail(LayerFlat, CodeCycle, fmt.Sprintf("circular dependency detected: %s", FormatCycle(cycle)))
		res.Cycle = cycle
		return res
	}
	return OK()
}
