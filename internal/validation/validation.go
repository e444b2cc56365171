// Package validation checks the structural invariants of a layered plan
// graph: per-sub-graph and combined acyclicity, flow referential integrity,
// cross-layer references and flow-to-capability mapping integrity.
package validation

import (
	"sort"

	"github.com/steveyegge/plangraph/internal/types"
)

// Logical layers reported in a Result. The sub-graph names double as layer
// names for the four per-layer checks.
const (
	LayerNodes          = "nodes"
	LayerFlowReferences = "flow-references"
	LayerCrossLayer     = "cross-layer"
	LayerCombined       = "combined"
	LayerMappings       = "mappings"
	LayerReferences     = "references"
)

// Error codes carried by a failed Result.
const (
	CodeCycle              = "CYCLE_DETECTED"
	CodeDuplicateID        = "DUPLICATE_NODE_ID"
	CodeInvalidNode        = "INVALID_NODE"
	CodeMisplacedNode      = "MISPLACED_NODE"
	CodeDanglingEdge       = "DANGLING_EDGE"
	CodeInvalidEdgeType    = "INVALID_EDGE_TYPE"
	CodeMissingScreen      = "MISSING_SCREEN"
	CodeNotAScreen         = "NOT_A_SCREEN"
	CodeDanglingCrossDep   = "DANGLING_CROSS_LAYER"
	CodeSameLayerCrossDep  = "SAME_LAYER_CROSS_LAYER"
	CodeCrossKindMismatch  = "CROSS_LAYER_KIND_MISMATCH"
	CodeDanglingReference  = "DANGLING_REFERENCE"
	CodeWrongReferenceKind = "WRONG_REFERENCE_KIND"
)

// Result is the outcome of a structural check. Failures carry the logical
// layer that produced them and, for cycles, the closed cycle path.
type Result struct {
	Valid bool
	Layer string
	Code  string
	Error string
	Cycle []string
}

// OK is the passing result.
func OK() Result {
	return Result{Valid: true}
}

func fail(layer, code, msg string) Result {
	return Result{Layer: layer, Code: code, Error: msg}
}

// Failure converts a failed result into a typed error, or nil when valid.
func (r Result) Failure() *types.ValidationFailure {
	if r.Valid {
		return nil
	}
	return &types.ValidationFailure{
		Layer:   r.Layer,
		Code:    r.Code,
		Message: r.Error,
		Cycle:   r.Cycle,
		Errors:  []string{r.Error},
	}
}

// Check is one pluggable structural check.
type Check interface {
	// Name returns a unique identifier for this check.
	Name() string

	// Priority determines execution order (lower values run first).
	Priority() int

	// Check inspects the graph and returns a passing or failing result.
	Check(g *types.Graph) Result
}

// Registry runs checks in priority order and stops at the first failure.
type Registry struct {
	checks []Check
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{checks: make([]Check, 0)}
}

// DefaultRegistry returns a registry holding the built-in checks in the
// order narrative, features, flows, flow references, specification,
// cross-layer references, node references, combined cycle.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(nodeIntegrityCheck{})
	r.Register(subGraphCheck{id: types.SubGraphNarrative, priority: 10})
	r.Register(subGraphCheck{id: types.SubGraphFeatures, priority: 20})
	r.Register(subGraphCheck{id: types.SubGraphFlows, priority: 30})
	r.Register(flowReferenceCheck{})
	r.Register(subGraphCheck{id: types.SubGraphSpecification, priority: 50})
	r.Register(crossLayerReferenceCheck{})
	r.Register(referenceCheck{})
	r.Register(combinedCycleCheck{})
	return r
}

// Register adds a check to the registry.
// Checks are kept sorted by priority; equal priorities keep registration order.
func (r *Registry) Register(c Check) {
	r.checks = append(r.checks, c)
	sort.SliceStable(r.checks, func(i, j int) bool {
		return r.checks[i].Priority() < r.checks[j].Priority()
	})
}

// Names returns the registered check names in execution order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.checks))
	for _, c := range r.checks {
		names = append(names, c.Name())
	}
	return names
}

// Run executes the checks and returns the first failure, or OK.
func (r *Registry) Run(g *types.Graph) Result {
	for _, c := range r.checks {
		if res := c.Check(g); !res.Valid {
			return res
		}
	}
	return OK()
}

var defaultRegistry = DefaultRegistry()

// Validate runs the built-in structural checks against a graph.
func Validate(g *types.Graph) Result {
	return defaultRegistry.Run(g)
}
