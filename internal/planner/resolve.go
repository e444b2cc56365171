package planner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/steveyegge/plangraph/internal/types"
)

// UnresolvedError lists every name in a proposal that matched nothing.
type UnresolvedError struct {
	Names []string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("unresolved references: %s", strings.Join(e.Names, ", "))
}

// Is lets errors.Is(err, types.ErrValidation) match.
func (e *UnresolvedError) Is(target error) bool {
	return target == types.ErrValidation
}

// Resolver turns proposals into change request payloads.
type Resolver struct {
	// NewID allocates an id for a new node of kind. Defaults to the kind
	// prefix plus 8 hex digits of a random UUID.
	NewID func(kind types.NodeKind) string
}

// NewResolver returns a resolver with UUID-based ids.
func NewResolver() *Resolver {
	return &Resolver{NewID: RandomID}
}

// RandomID returns "<prefix><8 hex>" for kind, e.g. "cap-1f3a9c2e".
func RandomID(kind types.NodeKind) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return kind.Prefix() + hex[:8]
}

// names maps lowercased names to ids per kind. Proposal entries shadow
// existing graph nodes of the same kind.
type names struct {
	byKind map[types.NodeKind]map[string]string
	// kinds lists, per name, every kind that has a node of that name
	kinds map[string][]types.NodeKind
	ids   map[string]bool
}

func newNames() *names {
	return &names{
		byKind: make(map[types.NodeKind]map[string]string),
		kinds:  make(map[string][]types.NodeKind),
		ids:    make(map[string]bool),
	}
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (n *names) add(kind types.NodeKind, name, id string) {
	n.ids[id] = true
	if key(name) == "" {
		return
	}
	m, ok := n.byKind[kind]
	if !ok {
		m = make(map[string]string)
		n.byKind[kind] = m
	}
	if _, seen := m[key(name)]; !seen {
		n.kinds[key(name)] = append(n.kinds[key(name)], kind)
	}
	m[key(name)] = id
}

// resolution accumulates unresolved names during one Resolve call.
type resolution struct {
	names      *names
	unresolved map[string]bool
}

func (r *resolution) ref(kind types.NodeKind, name string) string {
	if key(name) == "" {
		return ""
	}
	if id, ok := r.names.byKind[kind][key(name)]; ok {
		return id
	}
	r.unresolved[fmt.Sprintf("%s %q", kind, name)] = true
	return ""
}

func (r *resolution) refs(kind types.NodeKind, list []string) []string {
	var ids []string
	for _, name := range list {
		if id := r.ref(kind, name); id != "" && !containsID(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// anyKind resolves a name against every kind, for cross-layer links. A
// name carried by nodes of more than one kind is ambiguous and reported as
// unresolved; the caller can pass the node id instead.
func (r *resolution) anyKind(name string) string {
	// Known ids are accepted verbatim
	if r.names.ids[name] {
		return name
	}
	kinds := r.names.kinds[key(name)]
	switch len(kinds) {
	case 0:
		r.unresolved[fmt.Sprintf("%q", name)] = true
		return ""
	case 1:
		return r.names.byKind[kinds[0]][key(name)]
	}
	labels := make([]string, len(kinds))
	for i, k := range kinds {
		labels[i] = string(k)
	}
	sort.Strings(labels)
	r.unresolved[fmt.Sprintf("%q (ambiguous: %s)", name, strings.Join(labels, ", "))] = true
	return ""
}

func containsID(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

func appendUnique(list []string, id string) []string {
	if id == "" || containsID(list, id) {
		return list
	}
	return append(list, id)
}

// Resolve builds a change request payload from p against the existing graph
// g (which may be nil). New nodes carry no version; the store stamps them
// with the version the change request produces.
func (r *Resolver) Resolve(p *Proposal, g *types.Graph) (*types.ChangeRequestInput, error) {
	if p == nil || p.IsEmpty() {
		return nil, fmt.Errorf("proposal is empty: %w", types.ErrValidation)
	}
	newID := r.NewID
	if newID == nil {
		newID = RandomID
	}

	res := &resolution{names: newNames(), unresolved: make(map[string]bool)}
	if g != nil {
		for _, n := range g.AllNodes() {
			res.names.add(n.Kind, n.Label(), n.ID)
		}
	}

	// Pass 1: allocate ids so references can point forward
	type storyIDs struct {
		epic    string
		stories []string
	}
	epicIDs := make([]storyIDs, len(p.Epics))
	for i, e := range p.Epics {
		epicIDs[i].epic = newID(types.KindEpic)
		res.names.add(types.KindEpic, e.Title, epicIDs[i].epic)
		for _, s := range e.Stories {
			id := newID(types.KindUserStory)
			epicIDs[i].stories = append(epicIDs[i].stories, id)
			res.names.add(types.KindUserStory, s.Title, id)
		}
	}
	capIDs := r.allocate(res, types.KindCapability, len(p.Capabilities), func(i int) string { return p.Capabilities[i].Name }, newID)
	screenIDs := r.allocate(res, types.KindFlowScreen, len(p.Screens), func(i int) string { return p.Screens[i].Name }, newID)
	actionIDs := r.allocate(res, types.KindFlowAction, len(p.Actions), func(i int) string { return p.Actions[i].Name }, newID)
	reqIDs := r.allocate(res, types.KindRequirement, len(p.Requirements), func(i int) string { return p.Requirements[i].Title }, newID)
	taskIDs := make([][]string, len(p.Requirements))
	for i, req := range p.Requirements {
		for _, t := range req.Tasks {
			id := newID(types.KindTask)
			taskIDs[i] = append(taskIDs[i], id)
			res.names.add(types.KindTask, t.Title, id)
		}
	}

	// Pass 2: build nodes with resolved links
	in := &types.ChangeRequestInput{Description: p.Description, ImpactSummary: p.ImpactSummary}
	byID := make(map[string]*types.Node)
	add := func(n *types.Node) {
		in.NewNodes = append(in.NewNodes, n)
		byID[n.ID] = n
	}

	for i, e := range p.Epics {
		add(&types.Node{ID: epicIDs[i].epic, Kind: types.KindEpic, Epic: &types.Epic{
			Title:       e.Title,
			Description: e.Description,
			Stories:     append([]string(nil), epicIDs[i].stories...),
		}})
		for j, s := range e.Stories {
			add(&types.Node{ID: epicIDs[i].stories[j], Kind: types.KindUserStory, Story: &types.UserStory{
				Title:              s.Title,
				Narrative:          s.Narrative,
				AcceptanceCriteria: append([]string(nil), s.AcceptanceCriteria...),
				Capabilities:       res.refs(types.KindCapability, s.Capabilities),
				Epic:               epicIDs[i].epic,
			}})
		}
	}

	for i, c := range p.Capabilities {
		add(&types.Node{ID: capIDs[i], Kind: types.KindCapability, Capability: &types.Capability{
			Name:        c.Name,
			Description: c.Description,
			Stories:     res.refs(types.KindUserStory, c.Stories),
		}})
	}

	for i, s := range p.Screens {
		add(&types.Node{ID: screenIDs[i], Kind: types.KindFlowScreen, Screen: &types.FlowScreen{
			Name:             s.Name,
			Description:      s.Description,
			EntryTransitions: res.refs(types.KindFlowScreen, s.EntryFrom),
		}})
	}

	for i, a := range p.Actions {
		trigger := types.TriggerKind(strings.ToLower(a.Trigger))
		if trigger == "" {
			trigger = types.TriggerUser
		}
		action := &types.FlowAction{
			Name:         a.Name,
			Trigger:      trigger,
			Screen:       res.ref(types.KindFlowScreen, a.Screen),
			NextScreen:   res.ref(types.KindFlowScreen, a.NextScreen),
			Capabilities: res.refs(types.KindCapability, a.Capabilities),
		}
		if a.Screen == "" {
			res.unresolved[fmt.Sprintf("screen for action %q", a.Name)] = true
		}
		add(&types.Node{ID: actionIDs[i], Kind: types.KindFlowAction, Action: action})

		if len(action.Capabilities) > 0 {
			rationale := a.Rationale
			if rationale == "" {
				rationale = fmt.Sprintf("%s exercises %s", a.Name, strings.Join(a.Capabilities, ", "))
			}
			in.NewMappings = append(in.NewMappings, types.Mapping{
				Action:       actionIDs[i],
				Capabilities: append([]string(nil), action.Capabilities...),
				Rationale:    rationale,
			})
		}
	}

	for i, req := range p.Requirements {
		add(&types.Node{ID: reqIDs[i], Kind: types.KindRequirement, Requirement: &types.TechnicalRequirement{
			Title:         req.Title,
			Category:      req.Category,
			Specification: req.Specification,
			Capabilities:  res.refs(types.KindCapability, req.Capabilities),
			Tasks:         append([]string(nil), taskIDs[i]...),
		}})
		for j, t := range req.Tasks {
			task := &types.Task{
				Title:        t.Title,
				Category:     t.Category,
				Description:  t.Description,
				Dependencies: res.refs(types.KindTask, t.DependsOn),
			}
			add(&types.Node{ID: taskIDs[i][j], Kind: types.KindTask, Task: task})
			for _, dep := range task.Dependencies {
				in.NewEdges = append(in.NewEdges, types.Edge{From: taskIDs[i][j], To: dep, Type: types.EdgeRequires})
			}
		}
	}

	for _, c := range p.CrossLayer {
		from, to := res.anyKind(c.From), res.anyKind(c.To)
		if from == "" || to == "" {
			continue
		}
		in.NewCrossLayer = append(in.NewCrossLayer, types.CrossLayerDependency{From: from, To: to, Rationale: c.Rationale})
	}

	if len(res.unresolved) > 0 {
		missing := make([]string, 0, len(res.unresolved))
		for name := range res.unresolved {
			missing = append(missing, name)
		}
		sort.Strings(missing)
		return nil, &UnresolvedError{Names: missing}
	}

	fillBackReferences(byID)
	return in, nil
}

func (r *Resolver) allocate(res *resolution, kind types.NodeKind, n int, name func(int) string, newID func(types.NodeKind) string) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = newID(kind)
		res.names.add(kind, name(i), ids[i])
	}
	return ids
}

// fillBackReferences mirrors forward links into back references and the
// reverse, among new nodes only.
func fillBackReferences(byID map[string]*types.Node) {
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		n := byID[id]
		switch {
		case n.Story != nil:
			for _, c := range n.Story.Capabilities {
				if cn, ok := byID[c]; ok && cn.Capability != nil {
					cn.Capability.Stories = appendUnique(cn.Capability.Stories, n.ID)
				}
			}
		case n.Capability != nil:
			for _, s := range n.Capability.Stories {
				if sn, ok := byID[s]; ok && sn.Story != nil {
					sn.Story.Capabilities = appendUnique(sn.Story.Capabilities, n.ID)
				}
			}
		case n.Requirement != nil:
			for _, c := range n.Requirement.Capabilities {
				if cn, ok := byID[c]; ok && cn.Capability != nil {
					cn.Capability.Requirements = appendUnique(cn.Capability.Requirements, n.ID)
				}
			}
		case n.Action != nil:
			if sn, ok := byID[n.Action.Screen]; ok && sn.Screen != nil {
				sn.Screen.Actions = appendUnique(sn.Screen.Actions, n.ID)
			}
		}
	}
}
