// Package types defines the layered plan graph: layers, node kinds, the
// tagged node union, edges, mappings, cross-layer dependencies, snapshots
// and change requests.
package types

import "fmt"

// Layer is one of the three fixed strata of a plan.
type Layer string

const (
	LayerNarrative     Layer = "narrative"
	LayerStructure     Layer = "structure"
	LayerSpecification Layer = "specification"
)

// Layers lists every layer in its total order, from "why" to "how".
var Layers = []Layer{LayerNarrative, LayerStructure, LayerSpecification}

// IsValid checks if the layer value is valid
func (l Layer) IsValid() bool {
	switch l {
	case LayerNarrative, LayerStructure, LayerSpecification:
		return true
	}
	return false
}

// Rank returns the position of the layer in the total order (0-based).
// Unknown layers rank -1.
func (l Layer) Rank() int {
	for i, o := range Layers {
		if o == l {
			return i
		}
	}
	return -1
}

// SubGraphID names one acyclic node/edge set. The structure layer is split
// into a feature graph and a flow graph.
type SubGraphID string

const (
	SubGraphNarrative     SubGraphID = "narrative"
	SubGraphFeatures      SubGraphID = "structure-features"
	SubGraphFlows         SubGraphID = "structure-flows"
	SubGraphSpecification SubGraphID = "specification"
)

// SubGraphs lists every sub-graph in validation order.
var SubGraphs = []SubGraphID{SubGraphNarrative, SubGraphFeatures, SubGraphFlows, SubGraphSpecification}

// Layer returns the layer that owns the sub-graph.
func (s SubGraphID) Layer() Layer {
	switch s {
	case SubGraphNarrative:
		return LayerNarrative
	case SubGraphFeatures, SubGraphFlows:
		return LayerStructure
	case SubGraphSpecification:
		return LayerSpecification
	}
	return ""
}

// CrossLayerKind tags a cross-layer dependency with its (from, to) layer pair.
type CrossLayerKind string

const (
	CrossNarrativeToStructure     CrossLayerKind = "narrative->structure"
	CrossStructureToSpecification CrossLayerKind = "structure->specification"
	CrossSpecificationToNarrative CrossLayerKind = "specification->narrative"
)

// CrossKindFor returns the kind tag for a dependency from one layer to another.
func CrossKindFor(from, to Layer) CrossLayerKind {
	return CrossLayerKind(fmt.Sprintf("%s->%s", from, to))
}
