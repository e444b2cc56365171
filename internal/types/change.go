package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ChangeStatus is the lifecycle state of a change request.
type ChangeStatus string

const (
	ChangePending ChangeStatus = "pending"
	ChangeApplied ChangeStatus = "applied"
)

// IsValid checks if the status value is valid
func (s ChangeStatus) IsValid() bool {
	return s == ChangePending || s == ChangeApplied
}

// ChangeRequestInput is the caller-supplied payload of a change request.
type ChangeRequestInput struct {
	Description   string                 `json:"description"`
	ImpactSummary string                 `json:"impact_summary,omitempty"`
	NewNodes      []*Node                `json:"new_nodes,omitempty"`
	Modifications []NodeModification     `json:"modifications,omitempty"`
	NewEdges      []Edge                 `json:"new_edges,omitempty"`
	NewMappings   []Mapping              `json:"new_mappings,omitempty"`
	NewCrossLayer []CrossLayerDependency `json:"new_cross_layer,omitempty"`
}

// IsEmpty reports whether the payload proposes no mutation at all.
func (in *ChangeRequestInput) IsEmpty() bool {
	return len(in.NewNodes) == 0 && len(in.Modifications) == 0 && len(in.NewEdges) == 0 &&
		len(in.NewMappings) == 0 && len(in.NewCrossLayer) == 0
}

// ChangeRequest is an atomic batch of proposed graph mutations.
// An applied request is immutable.
type ChangeRequest struct {
	ID     string       `json:"id"`
	Status ChangeStatus `json:"status"`
	ChangeRequestInput

	CreatedAt     time.Time  `json:"created_at"`
	AppliedAt     *time.Time `json:"applied_at,omitempty"`
	BaseVersion   string     `json:"base_version,omitempty"`
	ResultVersion string     `json:"result_version,omitempty"`
}

// FormatChangeID renders a sequential change request id ("CR-007").
func FormatChangeID(n int) string {
	return fmt.Sprintf("CR-%03d", n)
}

// ParseChangeID extracts the sequence number from "CR-NNN". Only the
// canonical form FormatChangeID produces is accepted, so "CR-+5" and
// "CR-0005" are rejected.
func ParseChangeID(id string) (int, error) {
	if !strings.HasPrefix(id, "CR-") {
		return 0, fmt.Errorf("invalid change request id %q (expected CR-NNN)", id)
	}
	n, err := strconv.Atoi(id[3:])
	if err != nil || n < 0 || FormatChangeID(n) != id {
		return 0, fmt.Errorf("invalid change request id %q (expected CR-NNN)", id)
	}
	return n, nil
}

// NextChangeID returns the id after the highest existing one, or CR-000.
// Ids that do not parse are ignored.
func NextChangeID(existing []string) string {
	max := -1
	for _, id := range existing {
		if n, err := ParseChangeID(id); err == nil && n > max {
			max = n
		}
	}
	return FormatChangeID(max + 1)
}

// NodeModification patches known fields of one node and bumps its version.
type NodeModification struct {
	NodeID     string    `json:"node_id"`
	NewVersion string    `json:"new_version"`
	Patch      NodePatch `json:"patch"`
}

// NodePatch lists the fields a modification may overwrite. Nil means
// "leave unchanged".
type NodePatch struct {
	Title              *string      `json:"title,omitempty"`
	Name               *string      `json:"name,omitempty"`
	Description        *string      `json:"description,omitempty"`
	Narrative          *string      `json:"narrative,omitempty"`
	AcceptanceCriteria *[]string    `json:"acceptance_criteria,omitempty"`
	Stories            *[]string    `json:"stories,omitempty"`
	Capabilities       *[]string    `json:"capabilities,omitempty"`
	Requirements       *[]string    `json:"requirements,omitempty"`
	Epic               *string      `json:"epic,omitempty"`
	Actions            *[]string    `json:"actions,omitempty"`
	EntryTransitions   *[]string    `json:"entry_transitions,omitempty"`
	Trigger            *TriggerKind `json:"trigger,omitempty"`
	Screen             *string      `json:"screen,omitempty"`
	NextScreen         *string      `json:"next_screen,omitempty"`
	Category           *string      `json:"category,omitempty"`
	Specification      *string      `json:"specification,omitempty"`
	Tasks              *[]string    `json:"tasks,omitempty"`
	Dependencies       *[]string    `json:"dependencies,omitempty"`
}

// patchField pairs a field name with the value pointer being applied.
type patchField struct {
	name string
	set  bool
}

func (p *NodePatch) fields() []patchField {
	return []patchField{
		{"title", p.Title != nil},
		{"name", p.Name != nil},
		{"description", p.Description != nil},
		{"narrative", p.Narrative != nil},
		{"acceptance_criteria", p.AcceptanceCriteria != nil},
		{"stories", p.Stories != nil},
		{"capabilities", p.Capabilities != nil},
		{"requirements", p.Requirements != nil},
		{"epic", p.Epic != nil},
		{"actions", p.Actions != nil},
		{"entry_transitions", p.EntryTransitions != nil},
		{"trigger", p.Trigger != nil},
		{"screen", p.Screen != nil},
		{"next_screen", p.NextScreen != nil},
		{"category", p.Category != nil},
		{"specification", p.Specification != nil},
		{"tasks", p.Tasks != nil},
		{"dependencies", p.Dependencies != nil},
	}
}

// allowedFields lists the patchable fields for each kind.
var allowedFields = map[NodeKind]map[string]bool{
	KindEpic:        set("title", "description", "stories"),
	KindUserStory:   set("title", "narrative", "acceptance_criteria", "capabilities", "epic"),
	KindCapability:  set("name", "description", "stories", "requirements"),
	KindFlowScreen:  set("name", "description", "actions", "entry_transitions"),
	KindFlowAction:  set("name", "trigger", "screen", "next_screen", "capabilities"),
	KindRequirement: set("title", "category", "specification", "capabilities", "tasks"),
	KindTask:        set("title", "category", "description", "dependencies"),
}

func set(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// IsEmpty reports whether the patch sets no field.
func (p *NodePatch) IsEmpty() bool {
	for _, f := range p.fields() {
		if f.set {
			return false
		}
	}
	return true
}

// Check returns an error naming the first field that does not apply to kind.
func (p *NodePatch) Check(kind NodeKind) error {
	allowed := allowedFields[kind]
	for _, f := range p.fields() {
		if f.set && !allowed[f.name] {
			return fmt.Errorf("field %q cannot be set on a %s node", f.name, kind)
		}
	}
	if p.Trigger != nil && !p.Trigger.IsValid() {
		return fmt.Errorf("invalid trigger %q", *p.Trigger)
	}
	return nil
}

// Apply merges the patch into n. It fails without touching n when a field
// does not belong to the node's kind.
func (p *NodePatch) Apply(n *Node) error {
	if err := p.Check(n.Kind); err != nil {
		return fmt.Errorf("node %s: %w", n.ID, err)
	}
	if !n.hasVariant(n.Kind) {
		return fmt.Errorf("node %s: missing %s payload", n.ID, n.Kind)
	}
	switch n.Kind {
	case KindEpic:
		assign(&n.Epic.Title, p.Title)
		assign(&n.Epic.Description, p.Description)
		assignSlice(&n.Epic.Stories, p.Stories)
	case KindUserStory:
		assign(&n.Story.Title, p.Title)
		assign(&n.Story.Narrative, p.Narrative)
		assignSlice(&n.Story.AcceptanceCriteria, p.AcceptanceCriteria)
		assignSlice(&n.Story.Capabilities, p.Capabilities)
		assign(&n.Story.Epic, p.Epic)
	case KindCapability:
		assign(&n.Capability.Name, p.Name)
		assign(&n.Capability.Description, p.Description)
		assignSlice(&n.Capability.Stories, p.Stories)
		assignSlice(&n.Capability.Requirements, p.Requirements)
	case KindFlowScreen:
		assign(&n.Screen.Name, p.Name)
		assign(&n.Screen.Description, p.Description)
		assignSlice(&n.Screen.Actions, p.Actions)
		assignSlice(&n.Screen.EntryTransitions, p.EntryTransitions)
	case KindFlowAction:
		assign(&n.Action.Name, p.Name)
		if p.Trigger != nil {
			n.Action.Trigger = *p.Trigger
		}
		assign(&n.Action.Screen, p.Screen)
		assign(&n.Action.NextScreen, p.NextScreen)
		assignSlice(&n.Action.Capabilities, p.Capabilities)
	case KindRequirement:
		assign(&n.Requirement.Title, p.Title)
		assign(&n.Requirement.Category, p.Category)
		assign(&n.Requirement.Specification, p.Specification)
		assignSlice(&n.Requirement.Capabilities, p.Capabilities)
		assignSlice(&n.Requirement.Tasks, p.Tasks)
	case KindTask:
		assign(&n.Task.Title, p.Title)
		assign(&n.Task.Category, p.Category)
		assign(&n.Task.Description, p.Description)
		assignSlice(&n.Task.Dependencies, p.Dependencies)
	}
	return nil
}

func assign(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func assignSlice(dst *[]string, v *[]string) {
	if v != nil {
		*dst = cloneStrings(*v)
	}
}
