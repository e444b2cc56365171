// Package planner is the boundary to the planning service. A Service turns
// free-text intent into a name-based Proposal; the Resolver allocates node
// ids and turns names into id links, producing a change request payload.
package planner

import (
	"context"
	"fmt"
)

// Stage is one step of staged plan generation.
type Stage string

const (
	StageNarrative     Stage = "narrative"
	StageStructure     Stage = "structure"
	StageSpecification Stage = "specification"
)

// Stages lists stages in generation order.
var Stages = []Stage{StageNarrative, StageStructure, StageSpecification}

// IsValid checks if the stage value is valid
func (s Stage) IsValid() bool {
	switch s {
	case StageNarrative, StageStructure, StageSpecification:
		return true
	}
	return false
}

// Request asks the service for one stage of a plan.
type Request struct {
	Intent string
	Stage  Stage
	// Prior is the merged output of the earlier stages, if any
	Prior *Proposal
	// Existing labels nodes already in the plan, so proposals can link to them
	Existing []string
}

// Service proposes plan content by name.
type Service interface {
	Propose(ctx context.Context, req Request) (*Proposal, error)
}

// Proposal is plan content that refers to other items by name or title,
// never by id. Names resolve case-insensitively.
type Proposal struct {
	Description   string `json:"description,omitempty"`
	ImpactSummary string `json:"impact_summary,omitempty"`

	Epics        []EpicProposal        `json:"epics,omitempty"`
	Capabilities []CapabilityProposal  `json:"capabilities,omitempty"`
	Screens      []ScreenProposal      `json:"screens,omitempty"`
	Actions      []ActionProposal      `json:"actions,omitempty"`
	Requirements []RequirementProposal `json:"requirements,omitempty"`
	CrossLayer   []CrossLayerProposal  `json:"cross_layer,omitempty"`
}

type EpicProposal struct {
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Stories     []StoryProposal `json:"stories,omitempty"`
}

type StoryProposal struct {
	Title              string   `json:"title"`
	Narrative          string   `json:"narrative,omitempty"`
	AcceptanceCriteria []string `json:"acceptance_criteria,omitempty"`
	// Capabilities names capabilities the story needs
	Capabilities []string `json:"capabilities,omitempty"`
}

type CapabilityProposal struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	// Stories names the user stories the capability serves, by title
	Stories []string `json:"stories,omitempty"`
}

type ScreenProposal struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	// EntryFrom names screens that transition into this one
	EntryFrom []string `json:"entry_from,omitempty"`
}

type ActionProposal struct {
	Name       string `json:"name"`
	Trigger    string `json:"trigger,omitempty"`
	Screen     string `json:"screen"`
	NextScreen string `json:"next_screen,omitempty"`
	// Capabilities names the capabilities the action exercises; they become a mapping
	Capabilities []string `json:"capabilities,omitempty"`
	Rationale    string   `json:"rationale,omitempty"`
}

type RequirementProposal struct {
	Title         string         `json:"title"`
	Category      string         `json:"category,omitempty"`
	Specification string         `json:"specification,omitempty"`
	Capabilities  []string       `json:"capabilities,omitempty"`
	Tasks         []TaskProposal `json:"tasks,omitempty"`
}

type TaskProposal struct {
	Title       string `json:"title"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
	// DependsOn names tasks, by title, that must be done first
	DependsOn []string `json:"depends_on,omitempty"`
}

type CrossLayerProposal struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Rationale string `json:"rationale,omitempty"`
}

// Merge appends other's content to p. Descriptions from other win when set.
func (p *Proposal) Merge(other *Proposal) {
	if other == nil {
		return
	}
	if other.Description != "" {
		p.Description = other.Description
	}
	if other.ImpactSummary != "" {
		p.ImpactSummary = other.ImpactSummary
	}
	p.Epics = append(p.Epics, other.Epics...)
	p.Capabilities = append(p.Capabilities, other.Capabilities...)
	p.Screens = append(p.Screens, other.Screens...)
	p.Actions = append(p.Actions, other.Actions...)
	p.Requirements = append(p.Requirements, other.Requirements...)
	p.CrossLayer = append(p.CrossLayer, other.CrossLayer...)
}

// IsEmpty reports whether the proposal contains no plan items.
func (p *Proposal) IsEmpty() bool {
	return len(p.Epics) == 0 && len(p.Capabilities) == 0 && len(p.Screens) == 0 &&
		len(p.Actions) == 0 && len(p.Requirements) == 0 && len(p.CrossLayer) == 0
}

// Generate runs the given stages in order, feeding each the merged output of
// the ones before, and returns the merged proposal.
func Generate(ctx context.Context, svc Service, intent string, existing []string, stages ...Stage) (*Proposal, error) {
	if len(stages) == 0 {
		stages = Stages
	}
	merged := &Proposal{}
	for _, stage := range stages {
		if !stage.IsValid() {
			return nil, fmt.Errorf("unknown planning stage %q", stage)
		}
		var prior *Proposal
		if !merged.IsEmpty() {
			snapshot := *merged
			prior = &snapshot
		}
		p, err := svc.Propose(ctx, Request{Intent: intent, Stage: stage, Prior: prior, Existing: existing})
		if err != nil {
			return nil, fmt.Errorf("%s stage: %w", stage, err)
		}
		merged.Merge(p)
	}
	return merged, nil
}
