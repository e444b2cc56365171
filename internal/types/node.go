package types

import (
	"fmt"
	"strings"
	"time"
)

// NodeKind is the concrete entity type of a node. It is derived from the id
// prefix once, when the node is constructed or decoded.
type NodeKind string

const (
	KindEpic        NodeKind = "epic"
	KindUserStory   NodeKind = "story"
	KindCapability  NodeKind = "capability"
	KindFlowScreen  NodeKind = "screen"
	KindFlowAction  NodeKind = "action"
	KindRequirement NodeKind = "requirement"
	KindTask        NodeKind = "task"
)

type kindInfo struct {
	prefix   string
	subGraph SubGraphID
}

var kinds = map[NodeKind]kindInfo{
	KindEpic:        {"epic-", SubGraphNarrative},
	KindUserStory:   {"story-", SubGraphNarrative},
	KindCapability:  {"cap-", SubGraphFeatures},
	KindFlowScreen:  {"screen-", SubGraphFlows},
	KindFlowAction:  {"action-", SubGraphFlows},
	KindRequirement: {"req-", SubGraphSpecification},
	KindTask:        {"task-", SubGraphSpecification},
}

// kindOrder fixes iteration order over kinds for prefix matching.
var kindOrder = []NodeKind{KindEpic, KindUserStory, KindCapability, KindFlowScreen, KindFlowAction, KindRequirement, KindTask}

// IsValid checks if the kind value is valid
func (k NodeKind) IsValid() bool {
	_, ok := kinds[k]
	return ok
}

// Prefix returns the id prefix reserved for the kind (e.g. "cap-").
func (k NodeKind) Prefix() string {
	return kinds[k].prefix
}

// SubGraph returns the sub-graph that holds nodes of this kind.
func (k NodeKind) SubGraph() SubGraphID {
	return kinds[k].subGraph
}

// Layer returns the layer that holds nodes of this kind.
func (k NodeKind) Layer() Layer {
	return kinds[k].subGraph.Layer()
}

// KindFromID derives a node kind from the structural prefix of an id.
func KindFromID(id string) (NodeKind, bool) {
	for _, k := range kindOrder {
		p := kinds[k].prefix
		if strings.HasPrefix(id, p) && len(id) > len(p) {
			return k, true
		}
	}
	return "", false
}

// TriggerKind says who fires a flow action.
type TriggerKind string

const (
	TriggerUser   TriggerKind = "user"
	TriggerSystem TriggerKind = "system"
)

// IsValid checks if the trigger value is valid
func (t TriggerKind) IsValid() bool {
	return t == TriggerUser || t == TriggerSystem
}

// Node is a versioned record in exactly one sub-graph. Exactly one variant
// pointer is set, the one matching Kind.
type Node struct {
	ID        string    `json:"id"`
	Kind      NodeKind  `json:"kind"`
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Epic        *Epic                 `json:"epic,omitempty"`
	Story       *UserStory            `json:"story,omitempty"`
	Capability  *Capability           `json:"capability,omitempty"`
	Screen      *FlowScreen           `json:"screen,omitempty"`
	Action      *FlowAction           `json:"action,omitempty"`
	Requirement *TechnicalRequirement `json:"requirement,omitempty"`
	Task        *Task                 `json:"task,omitempty"`
}

// Epic groups user stories under one narrative goal.
type Epic struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Stories     []string `json:"stories,omitempty"`
}

// UserStory is a narrative unit of user value.
type UserStory struct {
	Title              string   `json:"title"`
	Narrative          string   `json:"narrative,omitempty"`
	AcceptanceCriteria []string `json:"acceptance_criteria,omitempty"`
	Capabilities       []string `json:"capabilities,omitempty"`
	Epic               string   `json:"epic,omitempty"`
}

// Capability is a feature-graph node linking stories to requirements.
type Capability struct {
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Stories      []string `json:"stories,omitempty"`
	Requirements []string `json:"requirements,omitempty"`
}

// FlowScreen is a flow-graph screen with its ordered actions.
type FlowScreen struct {
	Name             string   `json:"name"`
	Description      string   `json:"description,omitempty"`
	Actions          []string `json:"actions,omitempty"`
	EntryTransitions []string `json:"entry_transitions,omitempty"`
}

// FlowAction is a transition-bearing step on a screen.
type FlowAction struct {
	Name         string      `json:"name"`
	Trigger      TriggerKind `json:"trigger"`
	Screen       string      `json:"screen"`
	NextScreen   string      `json:"next_screen,omitempty"`
	Capabilities []string    `json:"capabilities,omitempty"`
}

// TechnicalRequirement specifies how capabilities are implemented.
type TechnicalRequirement struct {
	Title         string   `json:"title"`
	Category      string   `json:"category,omitempty"`
	Specification string   `json:"specification,omitempty"`
	Capabilities  []string `json:"capabilities,omitempty"`
	Tasks         []string `json:"tasks,omitempty"`
}

// Task is an implementation unit of work.
type Task struct {
	Title        string   `json:"title"`
	Category     string   `json:"category,omitempty"`
	Description  string   `json:"description,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// NewNode builds a node header for id, deriving its kind from the prefix.
// The caller sets the matching variant.
func NewNode(id, version string, now time.Time) (*Node, error) {
	kind, ok := KindFromID(id)
	if !ok {
		return nil, fmt.Errorf("node %q has no recognized id prefix", id)
	}
	return &Node{ID: id, Kind: kind, Version: version, CreatedAt: now, UpdatedAt: now}, nil
}

// Layer returns the layer the node belongs to.
func (n *Node) Layer() Layer {
	return n.Kind.Layer()
}

// SubGraph returns the sub-graph the node belongs to.
func (n *Node) SubGraph() SubGraphID {
	return n.Kind.SubGraph()
}

// Label returns the human-readable title or name of the node.
func (n *Node) Label() string {
	switch n.Kind {
	case KindEpic:
		if n.Epic != nil {
			return n.Epic.Title
		}
	case KindUserStory:
		if n.Story != nil {
			return n.Story.Title
		}
	case KindCapability:
		if n.Capability != nil {
			return n.Capability.Name
		}
	case KindFlowScreen:
		if n.Screen != nil {
			return n.Screen.Name
		}
	case KindFlowAction:
		if n.Action != nil {
			return n.Action.Name
		}
	case KindRequirement:
		if n.Requirement != nil {
			return n.Requirement.Title
		}
	case KindTask:
		if n.Task != nil {
			return n.Task.Title
		}
	}
	return ""
}

func (n *Node) variantCount() int {
	count := 0
	for _, set := range []bool{
		n.Epic != nil, n.Story != nil, n.Capability != nil, n.Screen != nil,
		n.Action != nil, n.Requirement != nil, n.Task != nil,
	} {
		if set {
			count++
		}
	}
	return count
}

func (n *Node) hasVariant(k NodeKind) bool {
	switch k {
	case KindEpic:
		return n.Epic != nil
	case KindUserStory:
		return n.Story != nil
	case KindCapability:
		return n.Capability != nil
	case KindFlowScreen:
		return n.Screen != nil
	case KindFlowAction:
		return n.Action != nil
	case KindRequirement:
		return n.Requirement != nil
	case KindTask:
		return n.Task != nil
	}
	return false
}

// Validate checks that the id prefix, kind tag and variant agree.
func (n *Node) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("node id is required")
	}
	kind, ok := KindFromID(n.ID)
	if !ok {
		return fmt.Errorf("node %s: unrecognized id prefix", n.ID)
	}
	if n.Kind == "" {
		n.Kind = kind
	}
	if n.Kind != kind {
		return fmt.Errorf("node %s: kind %q does not match id prefix (expected %q)", n.ID, n.Kind, kind)
	}
	if n.variantCount() != 1 || !n.hasVariant(kind) {
		return fmt.Errorf("node %s: expected exactly one %s payload", n.ID, kind)
	}
	if kind == KindFlowAction && n.Action.Trigger != "" && !n.Action.Trigger.IsValid() {
		return fmt.Errorf("node %s: invalid trigger %q", n.ID, n.Action.Trigger)
	}
	return nil
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	c := *n
	if n.Epic != nil {
		v := *n.Epic
		v.Stories = cloneStrings(v.Stories)
		c.Epic = &v
	}
	if n.Story != nil {
		v := *n.Story
		v.AcceptanceCriteria = cloneStrings(v.AcceptanceCriteria)
		v.Capabilities = cloneStrings(v.Capabilities)
		c.Story = &v
	}
	if n.Capability != nil {
		v := *n.Capability
		v.Stories = cloneStrings(v.Stories)
		v.Requirements = cloneStrings(v.Requirements)
		c.Capability = &v
	}
	if n.Screen != nil {
		v := *n.Screen
		v.Actions = cloneStrings(v.Actions)
		v.EntryTransitions = cloneStrings(v.EntryTransitions)
		c.Screen = &v
	}
	if n.Action != nil {
		v := *n.Action
		v.Capabilities = cloneStrings(v.Capabilities)
		c.Action = &v
	}
	if n.Requirement != nil {
		v := *n.Requirement
		v.Capabilities = cloneStrings(v.Capabilities)
		v.Tasks = cloneStrings(v.Tasks)
		c.Requirement = &v
	}
	if n.Task != nil {
		v := *n.Task
		v.Dependencies = cloneStrings(v.Dependencies)
		c.Task = &v
	}
	return &c
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
