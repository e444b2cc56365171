package planner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/plangraph/internal/storage/fs"
	"github.com/steveyegge/plangraph/internal/store"
	"github.com/steveyegge/plangraph/internal/testutil"
	"github.com/steveyegge/plangraph/internal/types"
)

// sequentialIDs allocates <prefix>1, <prefix>2, ... per kind.
func sequentialIDs() func(types.NodeKind) string {
	counts := make(map[types.NodeKind]int)
	return func(k types.NodeKind) string {
		counts[k]++
		return fmt.Sprintf("%s%d", k.Prefix(), counts[k])
	}
}

func checkoutProposal() *Proposal {
	return &Proposal{
		Description: "checkout",
		Epics: []EpicProposal{{
			Title: "Checkout",
			Stories: []StoryProposal{{
				Title:        "Pay by card",
				Capabilities: []string{"card payments"},
			}},
		}},
		Capabilities: []CapabilityProposal{{Name: "Card Payments", Stories: []string{"pay by card"}}},
		Screens: []ScreenProposal{
			{Name: "Cart"},
			{Name: "Payment", EntryFrom: []string{"cart"}},
		},
		Actions: []ActionProposal{{
			Name:         "Pay",
			Screen:       "Payment",
			NextScreen:   "Cart",
			Capabilities: []string{"Card Payments"},
		}},
		Requirements: []RequirementProposal{{
			Title:        "PSP integration",
			Capabilities: []string{"card payments"},
			Tasks: []TaskProposal{
				{Title: "Create PSP client"},
				{Title: "Handle webhooks", DependsOn: []string{"create psp client"}},
			},
		}},
		CrossLayer: []CrossLayerProposal{{From: "Pay by card", To: "PSP integration", Rationale: "direct"}},
	}
}

func TestResolveAllocatesAndLinks(t *testing.T) {
	r := &Resolver{NewID: sequentialIDs()}
	in, err := r.Resolve(checkoutProposal(), nil)
	require.NoError(t, err)

	nodes := make(map[string]*types.Node)
	for _, n := range in.NewNodes {
		nodes[n.ID] = n
	}
	require.Len(t, nodes, 9)

	assert.Equal(t, []string{"story-1"}, nodes["epic-1"].Epic.Stories)
	assert.Equal(t, "epic-1", nodes["story-1"].Story.Epic)
	assert.Equal(t, []string{"cap-1"}, nodes["story-1"].Story.Capabilities)
	assert.Equal(t, []string{"story-1"}, nodes["cap-1"].Capability.Stories)
	assert.Equal(t, []string{"req-1"}, nodes["cap-1"].Capability.Requirements, "back reference filled")
	assert.Equal(t, []string{"screen-1"}, nodes["screen-2"].Screen.EntryTransitions)
	assert.Equal(t, []string{"action-1"}, nodes["screen-2"].Screen.Actions, "back reference filled")
	assert.Equal(t, "screen-2", nodes["action-1"].Action.Screen)
	assert.Equal(t, "screen-1", nodes["action-1"].Action.NextScreen)
	assert.Equal(t, types.TriggerUser, nodes["action-1"].Action.Trigger)
	assert.Equal(t, []string{"task-1", "task-2"}, nodes["req-1"].Requirement.Tasks)
	assert.Equal(t, []string{"task-1"}, nodes["task-2"].Task.Dependencies)

	require.Len(t, in.NewMappings, 1)
	assert.Equal(t, "action-1", in.NewMappings[0].Action)
	assert.Equal(t, []string{"cap-1"}, in.NewMappings[0].Capabilities)
	assert.NotEmpty(t, in.NewMappings[0].Rationale)

	require.Len(t, in.NewEdges, 1)
	assert.Equal(t, types.Edge{From: "task-2", To: "task-1", Type: types.EdgeRequires}, in.NewEdges[0])

	require.Len(t, in.NewCrossLayer, 1)
	assert.Equal(t, "story-1", in.NewCrossLayer[0].From)
	assert.Equal(t, "req-1", in.NewCrossLayer[0].To)
}

func TestResolveAgainstExistingGraph(t *testing.T) {
	p := &Proposal{
		Requirements: []RequirementProposal{{
			Title:        "Session storage",
			Capabilities: []string{"authentication"},
			Tasks:        []TaskProposal{{Title: "Add session table", DependsOn: []string{"Implement OAuth callback"}}},
		}},
	}
	r := &Resolver{NewID: func(k types.NodeKind) string { return k.Prefix() + "new" }}
	in, err := r.Resolve(p, testutil.FullChain())
	require.NoError(t, err)

	require.Len(t, in.NewNodes, 2)
	assert.Equal(t, []string{"cap-1"}, in.NewNodes[0].Requirement.Capabilities)
	require.Len(t, in.NewEdges, 1)
	assert.Equal(t, "task-1", in.NewEdges[0].To, "existing task resolved by title")
}

func TestResolveReportsEveryUnresolvedName(t *testing.T) {
	p := &Proposal{
		Actions: []ActionProposal{{Name: "Pay", Screen: "Nowhere", Capabilities: []string{"Teleport"}}},
	}
	r := &Resolver{NewID: sequentialIDs()}
	_, err := r.Resolve(p, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrValidation))

	var unresolved *UnresolvedError
	require.True(t, errors.As(err, &unresolved))
	assert.Equal(t, []string{`capability "Teleport"`, `screen "Nowhere"`}, unresolved.Names)
}

func TestResolveAmbiguousCrossLayerName(t *testing.T) {
	p := &Proposal{
		Epics:        []EpicProposal{{Title: "Checkout"}},
		Capabilities: []CapabilityProposal{{Name: "checkout"}},
		Requirements: []RequirementProposal{{Title: "PSP integration"}},
		CrossLayer:   []CrossLayerProposal{{From: "Checkout", To: "PSP integration", Rationale: "pays"}},
	}
	r := &Resolver{NewID: sequentialIDs()}
	_, err := r.Resolve(p, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrValidation))

	var unresolved *UnresolvedError
	require.True(t, errors.As(err, &unresolved))
	assert.Equal(t, []string{`"Checkout" (ambiguous: capability, epic)`}, unresolved.Names)

	// An id disambiguates
	p.CrossLayer[0].From = "epic-1"
	in, err := (&Resolver{NewID: sequentialIDs()}).Resolve(p, nil)
	require.NoError(t, err)
	require.Len(t, in.NewCrossLayer, 1)
	assert.Equal(t, "epic-1", in.NewCrossLayer[0].From)
	assert.Equal(t, "req-1", in.NewCrossLayer[0].To)
}

func TestResolveEmptyProposal(t *testing.T) {
	_, err := NewResolver().Resolve(&Proposal{}, nil)
	assert.True(t, errors.Is(err, types.ErrValidation))
}

func TestRandomID(t *testing.T) {
	id := RandomID(types.KindCapability)
	assert.Regexp(t, `^cap-[0-9a-f]{8}$`, id)
	kind, ok := types.KindFromID(id)
	require.True(t, ok)
	assert.Equal(t, types.KindCapability, kind)
}

// A resolved proposal is a valid change request for the store.
func TestResolvedProposalApplies(t *testing.T) {
	ctx := context.Background()
	backend, err := fs.New(t.TempDir())
	require.NoError(t, err)
	s, err := store.New(backend, store.Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.CreateProject(ctx, "shop", "")
	require.NoError(t, err)

	in, err := NewResolver().Resolve(checkoutProposal(), nil)
	require.NoError(t, err)
	cr, err := s.CreateChangeRequest(ctx, "shop", *in)
	require.NoError(t, err)

	res, err := s.ApplyChangeRequest(ctx, "shop", cr.ID)
	require.NoError(t, err)
	assert.Equal(t, "v1", res.Version.Version)
	assert.Equal(t, 9, res.Version.NodeCount)
}
