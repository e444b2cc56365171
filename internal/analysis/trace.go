package analysis

import (
	"fmt"

	"github.com/steveyegge/plangraph/internal/types"
)

// Trace directions
const (
	TraceDown = "narrative-to-implementation"
	TraceUp   = "implementation-to-narrative"
)

// TraceReport connects a narrative item to its implementation or back.
type TraceReport struct {
	Root      string `json:"root"`
	Direction string `json:"direction"`

	// Epic is the reached epic on an upward trace (first found)
	Epic         string   `json:"epic,omitempty"`
	Stories      []string `json:"stories"`
	Capabilities []string `json:"capabilities"`
	Requirements []string `json:"requirements"`
	Tasks        []string `json:"tasks"`
	Flows        []string `json:"flows"`

	// Path is every id in visitation order, root first
	Path []string `json:"path"`
}

// Contains reports whether id appears anywhere on the trace path.
func (r *TraceReport) Contains(id string) bool {
	return contains(r.Path, id)
}

type pathBuilder struct {
	seen map[string]bool
	path []string
}

func newPathBuilder(root string) *pathBuilder {
	return &pathBuilder{seen: map[string]bool{root: true}, path: []string{root}}
}

// add appends ids not yet on the path and returns the ones it appended.
func (p *pathBuilder) add(ids ...string) []string {
	var added []string
	for _, id := range ids {
		if id == "" || p.seen[id] {
			continue
		}
		p.seen[id] = true
		p.path = append(p.path, id)
		added = append(added, id)
	}
	return added
}

func (a *Analyzer) ofKind(ids []string, kind types.NodeKind) []string {
	var out []string
	for _, id := range ids {
		if n, ok := a.index[id]; ok && n.Kind == kind {
			out = append(out, id)
		}
	}
	return out
}

// TraceNarrativeToImplementation walks epic, stories, capabilities,
// requirements and tasks level by level, then collects the flow actions
// mapped to any capability reached.
func (a *Analyzer) TraceNarrativeToImplementation(epicID string) (*TraceReport, error) {
	n, err := a.resolve(epicID)
	if err != nil {
		return nil, err
	}
	if n.Kind != types.KindEpic {
		return nil, types.NotFoundf("epic %s (node is a %s)", epicID, n.Kind)
	}

	report := &TraceReport{Root: epicID, Direction: TraceDown}
	p := newPathBuilder(epicID)

	report.Stories = p.add(a.ofKind(a.linksOut[epicID], types.KindUserStory)...)
	for _, s := range report.Stories {
		report.Capabilities = append(report.Capabilities, p.add(a.ofKind(a.linksOut[s], types.KindCapability)...)...)
	}
	for _, c := range report.Capabilities {
		report.Requirements = append(report.Requirements, p.add(a.ofKind(a.linksOut[c], types.KindRequirement)...)...)
	}
	for _, r := range report.Requirements {
		report.Tasks = append(report.Tasks, p.add(a.ofKind(a.linksOut[r], types.KindTask)...)...)
	}
	for _, c := range report.Capabilities {
		report.Flows = append(report.Flows, p.add(a.ofKind(a.mapped[c], types.KindFlowAction)...)...)
	}

	report.Path = p.path
	return report, nil
}

// TraceImplementationToNarrative walks task, requirements, capabilities and
// stories back up, then reports the epic of the first story found. A task
// reaching several epics reports only that one.
func (a *Analyzer) TraceImplementationToNarrative(taskID string) (*TraceReport, error) {
	n, err := a.resolve(taskID)
	if err != nil {
		return nil, err
	}
	if n.Kind != types.KindTask {
		return nil, types.NotFoundf("task %s (node is a %s)", taskID, n.Kind)
	}

	report := &TraceReport{Root: taskID, Direction: TraceUp}
	p := newPathBuilder(taskID)

	report.Requirements = p.add(a.ofKind(a.linksIn[taskID], types.KindRequirement)...)
	for _, r := range report.Requirements {
		report.Capabilities = append(report.Capabilities, p.add(a.ofKind(a.linksIn[r], types.KindCapability)...)...)
	}
	for _, c := range report.Capabilities {
		report.Stories = append(report.Stories, p.add(a.ofKind(a.linksIn[c], types.KindUserStory)...)...)
	}
	if len(report.Stories) > 0 {
		if epics := a.ofKind(a.linksIn[report.Stories[0]], types.KindEpic); len(epics) > 0 {
			report.Epic = epics[0]
			p.add(report.Epic)
		}
	}
	for _, c := range report.Capabilities {
		report.Flows = append(report.Flows, p.add(a.ofKind(a.mapped[c], types.KindFlowAction)...)...)
	}

	report.Path = p.path
	return report, nil
}

// String renders the path for display.
func (r *TraceReport) String() string {
	return fmt.Sprintf("%s %s: %v", r.Direction, r.Root, r.Path)
}
