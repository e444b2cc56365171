package validation

import (
	"fmt"
	"strings"

	"github.com/steveyegge/plangraph/internal/types"
)

// DetectCycle uses DFS to find a cycle in a directed graph given as an
// ordered node list and an adjacency list. Traversal starts from every
// unvisited node in order. Returns the cycle path closed on its first
// node (e.g. [a b a]), or nil when the graph is acyclic.
func DetectCycle(nodes []string, adj map[string][]string) []string {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	var path []string

	var dfs func(string) []string
	dfs = func(node string) []string {
		visited[node] = true
		recStack[node] = true
		path = append(path, node)

		for _, neighbor := range adj[node] {
			if !visited[neighbor] {
				if cycle := dfs(neighbor); cycle != nil {
					return cycle
				}
			} else if recStack[neighbor] {
				// Cycle is the tail of the path from neighbor's first occurrence
				cycleStart := 0
				for i, p := range path {
					if p == neighbor {
						cycleStart = i
						break
					}
				}
				cycle := make([]string, 0, len(path)-cycleStart+1)
				cycle = append(cycle, path[cycleStart:]...)
				return append(cycle, neighbor)
			}
		}

		recStack[node] = false
		path = path[:len(path)-1]
		return nil
	}

	for _, n := range nodes {
		if !visited[n] {
			path = path[:0]
			if cycle := dfs(n); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// adjacency builds an adjacency list from edges, preserving edge order.
func adjacency(edges []types.Edge) map[string][]string {
	adj := make(map[string][]string)
	for _, e := range edges {
		adj[e.From] = append(adj[e.From], e.To)
	}
	return adj
}

func nodeIDs(nodes []*types.Node) []string {
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	return ids
}

// FormatCycle renders a cycle as "a → b → a".
func FormatCycle(cycle []string) string {
	return strings.Join(cycle, " → ")
}

// TopologicalOrder returns the node ids so that every edge's source comes
// before its target. Ties are broken by insertion order. When the edges
// contain a cycle the order is nil and the cycle is returned instead.
func TopologicalOrder(nodes []*types.Node, edges []types.Edge) ([]string, []string) {
	ids := nodeIDs(nodes)
	adj := adjacency(edges)
	if cycle := DetectCycle(ids, adj); cycle != nil {
		return nil, cycle
	}

	indegree := make(map[string]int, len(ids))
	for _, id := range ids {
		indegree[id] = 0
	}
	for _, e := range edges {
		if _, ok := indegree[e.To]; ok {
			indegree[e.To]++
		}
	}

	order := make([]string, 0, len(ids))
	placed := make(map[string]bool, len(ids))
	for len(order) < len(ids) {
		progressed := false
		for _, id := range ids {
			if placed[id] || indegree[id] > 0 {
				continue
			}
			placed[id] = true
			order = append(order, id)
			for _, next := range adj[id] {
				indegree[next]--
			}
			progressed = true
			break
		}
		if !progressed {
			// Unreachable for an acyclic edge set; guard against a bad index
			return nil, nil
		}
	}
	return order, nil
}

// ValidateLayer checks one sub-graph: every edge has a known type and both
// endpoints among nodes, and the edges form no cycle.
func ValidateLayer(nodes []*types.Node, edges []types.Edge) Result {
	present := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		present[n.ID] = true
	}
	for _, e := range edges {
		if !e.Type.IsValid() {
			return fail("", CodeInvalidEdgeType, fmt.Sprintf("edge %s → %s has invalid type %q", e.From, e.To, e.Type))
		}
		if !present[e.From] {
			return fail("", CodeDanglingEdge, fmt.Sprintf("edge %s → %s: source %s is not a node of this sub-graph", e.From, e.To, e.From))
		}
		if !present[e.To] {
			return fail("", CodeDanglingEdge, fmt.Sprintf("edge %s → %s: target %s is not a node of this sub-graph", e.From, e.To, e.To))
		}
	}

	if cycle := DetectCycle(nodeIDs(nodes), adjacency(edges)); cycle != nil {
		res := fail("", CodeCycle, fmt.Sprintf("circular dependency detected: %s", FormatCycle(cycle)))
		res.Cycle = cycle
		return res
	}
	return OK()
}
