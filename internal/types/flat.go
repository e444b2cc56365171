package types

import (
	"sort"
	"time"
)

// FlatGraph is the legacy, non-layered single-document graph used by
// projects created before the layered schema existed.
type FlatGraph struct {
	Version   string              `json:"version"`
	Nodes     map[string]FlatNode `json:"nodes"`
	Edges     []FlatEdge          `json:"edges"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// FlatNode is a legacy node. Type is a free-form tag; Data carries any
// type-specific fields.
type FlatNode struct {
	ID          string                 `json:"id"`
	Type        string                 `json:"type"`
	Title       string                 `json:"title"`
	Description string                 `json:"description,omitempty"`
	Version     string                 `json:"version"`
	Data        map[string]interface{} `json:"data,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// FlatEdge is a legacy directed edge.
type FlatEdge struct {
	From string   `json:"from"`
	To   string   `json:"to"`
	Type EdgeType `json:"type"`
}

// NewFlatGraph returns an empty v0 legacy graph.
func NewFlatGraph(now time.Time) *FlatGraph {
	return &FlatGraph{
		Version:   FormatVersion(0),
		Nodes:     make(map[string]FlatNode),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NodeIDs returns node ids in sorted order; the flat map has no insertion order.
func (g *FlatGraph) NodeIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns a deep copy of the flat graph.
func (g *FlatGraph) Clone() *FlatGraph {
	c := &FlatGraph{
		Version:   g.Version,
		Nodes:     make(map[string]FlatNode, len(g.Nodes)),
		Edges:     append([]FlatEdge(nil), g.Edges...),
		CreatedAt: g.CreatedAt,
		UpdatedAt: g.UpdatedAt,
	}
	for id, n := range g.Nodes {
		if n.Data != nil {
			data := make(map[string]interface{}, len(n.Data))
			for k, v := range n.Data {
				data[k] = v
			}
			n.Data = data
		}
		c.Nodes[id] = n
	}
	return c
}

// FlatFromNode converts a layered node into its legacy representation.
func FlatFromNode(n *Node) FlatNode {
	fn := FlatNode{
		ID:        n.ID,
		Type:      string(n.Kind),
		Title:     n.Label(),
		Version:   n.Version,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
	switch {
	case n.Epic != nil:
		fn.Description = n.Epic.Description
	case n.Capability != nil:
		fn.Description = n.Capability.Description
	case n.Screen != nil:
		fn.Description = n.Screen.Description
	case n.Task != nil:
		fn.Description = n.Task.Description
	case n.Story != nil:
		fn.Description = n.Story.Narrative
	case n.Requirement != nil:
		fn.Description = n.Requirement.Specification
	}
	return fn
}
