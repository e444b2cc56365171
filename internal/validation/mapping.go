package validation

import (
	"fmt"
	"strings"

	"github.com/steveyegge/plangraph/internal/types"
)

// Mapping issue codes.
const (
	CodeMappingUnknownAction     = "MAPPING_UNKNOWN_ACTION"
	CodeMappingUnknownCapability = "MAPPING_UNKNOWN_CAPABILITY"
	CodeMappingNoCapabilities    = "MAPPING_NO_CAPABILITIES"
	CodeMappingNoRationale       = "MAPPING_NO_RATIONALE"
	CodeUnmappedAction           = "UNMAPPED_ACTION"
)

// ValidationError represents a blocking mapping failure.
type ValidationError struct {
	// Code is a machine-readable error identifier.
	Code string

	// Message is a human-readable error description.
	Message string

	// Location is the flow action the error is attributed to.
	Location string
}

// ValidationWarning represents a non-fatal mapping finding.
type ValidationWarning struct {
	Code     string
	Message  string
	Location string
	Severity WarningSeverity
}

// WarningSeverity indicates the importance of a warning.
type WarningSeverity int

const (
	// WarningSeverityLow indicates minor issues that are nice to fix.
	WarningSeverityLow WarningSeverity = iota

	// WarningSeverityMedium indicates issues that should be addressed.
	WarningSeverityMedium

	// WarningSeverityHigh indicates serious gaps in coverage.
	WarningSeverityHigh
)

// String returns the string representation of the severity.
func (s WarningSeverity) String() string {
	switch s {
	case WarningSeverityLow:
		return "LOW"
	case WarningSeverityMedium:
		return "MEDIUM"
	case WarningSeverityHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// MappingResult contains errors and warnings from mapping validation.
type MappingResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// Failure converts an invalid result into a typed error, or nil when valid.
func (r MappingResult) Failure() *types.ValidationFailure {
	if r.Valid {
		return nil
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Message)
	}
	return &types.ValidationFailure{
		Layer:   LayerMappings,
		Code:    r.Errors[0].Code,
		Message: r.Errors[0].Message,
		Errors:  msgs,
	}
}

// ValidateMappings checks every flow-to-capability mapping. Missing actions
// or capabilities are errors; empty capability sets, empty rationales and
// flow actions with no mapping are warnings.
func ValidateMappings(g *types.Graph) MappingResult {
	result := MappingResult{
		Errors:   make([]ValidationError, 0),
		Warnings: make([]ValidationWarning, 0),
	}

	actions := make(map[string]bool)
	for _, n := range g.Flows.Nodes {
		if n.Kind == types.KindFlowAction {
			actions[n.ID] = true
		}
	}
	capabilities := make(map[string]bool)
	for _, n := range g.Features.Nodes {
		if n.Kind == types.KindCapability {
			capabilities[n.ID] = true
		}
	}

	mapped := make(map[string]bool)
	for i, m := range g.Mappings {
		loc := m.Action
		if loc == "" {
			loc = fmt.Sprintf("mapping[%d]", i)
		}
		if !actions[m.Action] {
			result.Errors = append(result.Errors, ValidationError{
				Code:     CodeMappingUnknownAction,
				Message:  fmt.Sprintf("mapping references non-existent flow action %s", m.Action),
				Location: loc,
			})
		} else {
			mapped[m.Action] = true
		}
		for _, c := range m.Capabilities {
			if !capabilities[c] {
				result.Errors = append(result.Errors, ValidationError{
					Code:     CodeMappingUnknownCapability,
					Message:  fmt.Sprintf("mapping for %s references non-existent capability %s", m.Action, c),
					Location: loc,
				})
			}
		}
		if len(m.Capabilities) == 0 {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Code:     CodeMappingNoCapabilities,
				Message:  fmt.Sprintf("mapping for %s names no capabilities", m.Action),
				Location: loc,
				Severity: WarningSeverityMedium,
			})
		}
		if strings.TrimSpace(m.Rationale) == "" {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Code:     CodeMappingNoRationale,
				Message:  fmt.Sprintf("mapping for %s has no rationale", m.Action),
				Location: loc,
				Severity: WarningSeverityLow,
			})
		}
	}

	for _, n := range g.Flows.Nodes {
		if n.Kind == types.KindFlowAction && !mapped[n.ID] {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Code:     CodeUnmappedAction,
				Message:  fmt.Sprintf("flow action %s is not mapped to any capability", n.ID),
				Location: n.ID,
				Severity: WarningSeverityHigh,
			})
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// FindOrphanedMappings returns mappings whose action or any capability no
// longer resolves. It is an audit helper; nothing removes them.
func FindOrphanedMappings(g *types.Graph) []types.Mapping {
	idx := g.Index()
	resolves := func(id string, kind types.NodeKind) bool {
		n, ok := idx[id]
		return ok && n.Kind == kind
	}

	var orphans []types.Mapping
	for _, m := range g.Mappings {
		orphaned := !resolves(m.Action, types.KindFlowAction)
		for _, c := range m.Capabilities {
			if !resolves(c, types.KindCapability) {
				orphaned = true
			}
		}
		if orphaned {
			orphans = append(orphans, m)
		}
	}
	return orphans
}
