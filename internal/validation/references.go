package validation

import (
	"fmt"

	"github.com/steveyegge/plangraph/internal/types"
)

// referenceCheck verifies that the typed reference fields on nodes name
// existing nodes of the expected kind. Flow screen links (parent screen,
// next screen, entry transitions) are left to flowReferenceCheck.
type referenceCheck struct{}

func (referenceCheck) Name() string  { return "node_references" }
func (referenceCheck) Priority() int { return 65 }

func (referenceCheck) Check(g *types.Graph) Result {
	return ValidateReferences(g)
}

type reference struct {
	field   string
	want    types.NodeKind
	targets []string
}

func one(id string) []string {
	if id == "" {
		return nil
	}
	return []string{id}
}

// references lists the typed links a node declares.
func references(n *types.Node) []reference {
	switch {
	case n.Epic != nil:
		return []reference{{"stories", types.KindUserStory, n.Epic.Stories}}
	case n.Story != nil:
		return []reference{
			{"epic", types.KindEpic, one(n.Story.Epic)},
			{"capabilities", types.KindCapability, n.Story.Capabilities},
		}
	case n.Capability != nil:
		return []reference{
			{"stories", types.KindUserStory, n.Capability.Stories},
			{"requirements", types.KindRequirement, n.Capability.Requirements},
		}
	case n.Screen != nil:
		return []reference{{"actions", types.KindFlowAction, n.Screen.Actions}}
	case n.Action != nil:
		return []reference{{"capabilities", types.KindCapability, n.Action.Capabilities}}
	case n.Requirement != nil:
		return []reference{
			{"capabilities", types.KindCapability, n.Requirement.Capabilities},
			{"tasks", types.KindTask, n.Requirement.Tasks},
		}
	case n.Task != nil:
		return []reference{{"dependencies", types.KindTask, n.Task.Dependencies}}
	}
	return nil
}

// ValidateReferences checks every typed reference field in g and reports
// the first one that names a missing node or a node of the wrong kind.
func ValidateReferences(g *types.Graph) Result {
	idx := g.Index()
	for _, n := range g.AllNodes() {
		for _, ref := range references(n) {
			for _, target := range ref.targets {
				got, ok := idx[target]
				if !ok {
					return fail(LayerReferences, CodeDanglingReference,
						fmt.Sprintf("%s %s %s references missing %s %s", n.Kind, n.ID, ref.field, ref.want, target))
				}
				if got.Kind != ref.want {
					return fail(LayerReferences, CodeWrongReferenceKind,
						fmt.Sprintf("%s %s %s references %s, which is a %s (want %s)", n.Kind, n.ID, ref.field, target, got.Kind, ref.want))
				}
			}
		}
	}
	return OK()
}
