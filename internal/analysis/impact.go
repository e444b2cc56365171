package analysis

import (
	"github.com/steveyegge/plangraph/internal/types"
)

// LayerBuckets groups node ids by layer.
type LayerBuckets struct {
	Narrative     []string `json:"narrative"`
	Structure     []string `json:"structure"`
	Specification []string `json:"specification"`
}

func (b *LayerBuckets) add(layer types.Layer, id string) {
	switch layer {
	case types.LayerNarrative:
		b.Narrative = append(b.Narrative, id)
	case types.LayerStructure:
		b.Structure = append(b.Structure, id)
	case types.LayerSpecification:
		b.Specification = append(b.Specification, id)
	}
}

// Count returns the number of ids across all layers.
func (b LayerBuckets) Count() int {
	return len(b.Narrative) + len(b.Structure) + len(b.Specification)
}

// ImpactReport is everything a change to one node may affect.
type ImpactReport struct {
	NodeID string      `json:"node_id"`
	Layer  types.Layer `json:"layer"`

	Downstream []string `json:"downstream"`
	Upstream   []string `json:"upstream"`

	// AffectedNodes is downstream, upstream and direct cross-layer partners,
	// deduplicated and bucketed by layer
	AffectedNodes LayerBuckets `json:"affected_nodes"`

	Flows        []string `json:"flows"`
	Capabilities []string `json:"capabilities"`
	Requirements []string `json:"requirements"`
	Tasks        []string `json:"tasks"`

	CrossLayer []types.CrossLayerDependency `json:"cross_layer"`
}

// Affected returns every affected id in report order.
func (r *ImpactReport) Affected() []string {
	out := append([]string(nil), r.AffectedNodes.Narrative...)
	out = append(out, r.AffectedNodes.Structure...)
	return append(out, r.AffectedNodes.Specification...)
}

// AnalyzeImpact reports the downstream and upstream reach of id. A node with
// no links yields an empty report, not an error.
func (a *Analyzer) AnalyzeImpact(id string) (*ImpactReport, error) {
	n, err := a.resolve(id)
	if err != nil {
		return nil, err
	}

	report := &ImpactReport{
		NodeID:     id,
		Layer:      n.Layer(),
		Downstream: bfs(id, a.downstreamNeighbors),
		Upstream:   bfs(id, a.upstreamNeighbors),
	}
	report.CrossLayer, _ = a.CrossLayerImpact(id)

	var partners []string
	for _, d := range report.CrossLayer {
		if d.From == id {
			partners = append(partners, d.To)
		} else {
			partners = append(partners, d.From)
		}
	}

	seen := map[string]bool{id: true}
	for _, list := range [][]string{report.Downstream, report.Upstream, partners} {
		for _, affected := range list {
			if seen[affected] {
				continue
			}
			seen[affected] = true

			node, ok := a.index[affected]
			if !ok {
				continue
			}
			report.AffectedNodes.add(node.Layer(), affected)
			report.classify(affected, node.Kind)
		}
	}
	return report, nil
}

// classify files id into the convenience buckets by its kind.
func (r *ImpactReport) classify(id string, kind types.NodeKind) {
	switch kind {
	case types.KindFlowScreen, types.KindFlowAction:
		r.Flows = append(r.Flows, id)
	case types.KindCapability:
		r.Capabilities = append(r.Capabilities, id)
	case types.KindRequirement:
		r.Requirements = append(r.Requirements, id)
	case types.KindTask:
		r.Tasks = append(r.Tasks, id)
	}
}
