package types

import "time"

// EdgeType categorizes a same-scope dependency.
type EdgeType string

const (
	EdgeRequires   EdgeType = "requires"
	EdgeBlocks     EdgeType = "blocks"
	EdgeImpacts    EdgeType = "impacts"
	EdgeSupersedes EdgeType = "supersedes"
)

// IsValid checks if the edge type value is valid
func (t EdgeType) IsValid() bool {
	switch t {
	case EdgeRequires, EdgeBlocks, EdgeImpacts, EdgeSupersedes:
		return true
	}
	return false
}

// Edge is a directed dependency between two nodes of the same sub-graph.
type Edge struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Type      EdgeType  `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// Mapping associates one flow action with a set of capabilities. It is the
// only many-to-many relation in the model.
type Mapping struct {
	Action       string    `json:"action"`
	Capabilities []string  `json:"capabilities"`
	Rationale    string    `json:"rationale,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// CrossLayerDependency links nodes in two different layers.
type CrossLayerDependency struct {
	From      string         `json:"from"`
	To        string         `json:"to"`
	Kind      CrossLayerKind `json:"kind"`
	Rationale string         `json:"rationale,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// SubGraph holds one acyclic node/edge set in insertion order.
type SubGraph struct {
	Nodes []*Node `json:"nodes"`
	Edges []Edge  `json:"edges"`
}

// Graph is a complete, versioned snapshot of a project plan.
type Graph struct {
	Version       string                 `json:"version"`
	Narrative     SubGraph               `json:"narrative"`
	Features      SubGraph               `json:"structure_features"`
	Flows         SubGraph               `json:"structure_flows"`
	Specification SubGraph               `json:"specification"`
	Mappings      []Mapping              `json:"mappings"`
	CrossLayer    []CrossLayerDependency `json:"cross_layer"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// NewGraph returns an empty v0 snapshot.
func NewGraph(now time.Time) *Graph {
	return &Graph{
		Version:   FormatVersion(0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SubGraph returns a pointer to the named sub-graph, or nil.
func (g *Graph) SubGraph(id SubGraphID) *SubGraph {
	switch id {
	case SubGraphNarrative:
		return &g.Narrative
	case SubGraphFeatures:
		return &g.Features
	case SubGraphFlows:
		return &g.Flows
	case SubGraphSpecification:
		return &g.Specification
	}
	return nil
}

// Find looks a node up across all sub-graphs.
func (g *Graph) Find(id string) (*Node, SubGraphID, bool) {
	for _, sg := range SubGraphs {
		for _, n := range g.SubGraph(sg).Nodes {
			if n.ID == id {
				return n, sg, true
			}
		}
	}
	return nil, "", false
}

// AllNodes returns every node in sub-graph order, then insertion order.
func (g *Graph) AllNodes() []*Node {
	var out []*Node
	for _, sg := range SubGraphs {
		out = append(out, g.SubGraph(sg).Nodes...)
	}
	return out
}

// AllEdges returns every same-scope edge in sub-graph order.
func (g *Graph) AllEdges() []Edge {
	var out []Edge
	for _, sg := range SubGraphs {
		out = append(out, g.SubGraph(sg).Edges...)
	}
	return out
}

// NodeCount returns the total number of nodes.
func (g *Graph) NodeCount() int {
	total := 0
	for _, sg := range SubGraphs {
		total += len(g.SubGraph(sg).Nodes)
	}
	return total
}

// Index maps every node id to its node.
func (g *Graph) Index() map[string]*Node {
	idx := make(map[string]*Node, g.NodeCount())
	for _, n := range g.AllNodes() {
		if _, dup := idx[n.ID]; !dup {
			idx[n.ID] = n
		}
	}
	return idx
}

// NodesOfKind returns the nodes of one kind in insertion order.
func (g *Graph) NodesOfKind(k NodeKind) []*Node {
	var out []*Node
	for _, n := range g.SubGraph(k.SubGraph()).Nodes {
		if n.Kind == k {
			out = append(out, n)
		}
	}
	return out
}

// Clone returns a deep copy suitable for use as a working copy.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		Version:   g.Version,
		CreatedAt: g.CreatedAt,
		UpdatedAt: g.UpdatedAt,
	}
	for _, sg := range SubGraphs {
		src := g.SubGraph(sg)
		dst := c.SubGraph(sg)
		dst.Nodes = make([]*Node, 0, len(src.Nodes))
		for _, n := range src.Nodes {
			dst.Nodes = append(dst.Nodes, n.Clone())
		}
		dst.Edges = append([]Edge(nil), src.Edges...)
	}
	c.Mappings = make([]Mapping, 0, len(g.Mappings))
	for _, m := range g.Mappings {
		m.Capabilities = cloneStrings(m.Capabilities)
		c.Mappings = append(c.Mappings, m)
	}
	c.CrossLayer = append([]CrossLayerDependency(nil), g.CrossLayer...)
	return c
}
