package validation

import (
	"fmt"

	"github.com/steveyegge/plangraph/internal/types"
)

// flowReferenceCheck enforces the flow graph's referential constraints:
// an action's parent screen and next screen, and a screen's entry
// transitions, must all name existing screens.
type flowReferenceCheck struct{}

func (flowReferenceCheck) Name() string  { return "flow_references" }
func (flowReferenceCheck) Priority() int { return 40 }

func (flowReferenceCheck) Check(g *types.Graph) Result {
	return ValidateFlowReferences(g)
}

// ValidateFlowReferences runs the flow referential checks over the flow
// nodes of g. Targets are looked up across the whole graph so a link to a
// node of another kind reports that kind.
func ValidateFlowReferences(g *types.Graph) Result {
	kinds := make(map[string]types.NodeKind)
	for id, n := range g.Index() {
		kinds[id] = n.Kind
	}
	nodes := g.Flows.Nodes

	screenRef := func(owner, field, target string) Result {
		kind, ok := kinds[target]
		if !ok {
			return fail(LayerFlowReferences, CodeMissingScreen,
				fmt.Sprintf("%s %s references missing screen %s", owner, field, target))
		}
		if kind != types.KindFlowScreen {
			return fail(LayerFlowReferences, CodeNotAScreen,
				fmt.Sprintf("%s %s references %s, which is a %s, not a screen", owner, field, target, kind))
		}
		return OK()
	}

	for _, n := range nodes {
		switch n.Kind {
		case types.KindFlowAction:
			if n.Action == nil {
				continue
			}
			owner := "flow action " + n.ID
			if n.Action.Screen == "" {
				return fail(LayerFlowReferences, CodeMissingScreen,
					fmt.Sprintf("%s has no parent screen", owner))
			}
			if res := screenRef(owner, "parent screen", n.Action.Screen); !res.Valid {
				return res
			}
			if n.Action.NextScreen != "" {
				if res := screenRef(owner, "next screen", n.Action.NextScreen); !res.Valid {
					return res
				}
			}
		case types.KindFlowScreen:
			if n.Screen == nil {
				continue
			}
			owner := "flow screen " + n.ID
			for _, entry := range n.Screen.EntryTransitions {
				if res := screenRef(owner, "entry transition", entry); !res.Valid {
					return res
				}
			}
		}
	}
	return OK()
}
