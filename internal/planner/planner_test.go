package planner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingService struct {
	requests []Request
	outputs  map[Stage]*Proposal
	fail     Stage
}

func (s *recordingService) Propose(_ context.Context, req Request) (*Proposal, error) {
	s.requests = append(s.requests, req)
	if req.Stage == s.fail {
		return nil, errors.New("model unavailable")
	}
	return s.outputs[req.Stage], nil
}

func TestGenerateFeedsPriorStages(t *testing.T) {
	svc := &recordingService{outputs: map[Stage]*Proposal{
		StageNarrative:     {Epics: []EpicProposal{{Title: "Checkout"}}},
		StageStructure:     {Capabilities: []CapabilityProposal{{Name: "Payments"}}},
		StageSpecification: {Requirements: []RequirementProposal{{Title: "PSP"}}, Description: "checkout plan"},
	}}

	p, err := Generate(context.Background(), svc, "sell things", []string{"Accounts"})
	require.NoError(t, err)

	require.Len(t, svc.requests, 3)
	assert.Nil(t, svc.requests[0].Prior)
	assert.Equal(t, []string{"Accounts"}, svc.requests[0].Existing)
	require.NotNil(t, svc.requests[1].Prior)
	assert.Len(t, svc.requests[1].Prior.Epics, 1)
	assert.Empty(t, svc.requests[1].Prior.Capabilities)
	assert.Len(t, svc.requests[2].Prior.Capabilities, 1)

	assert.Len(t, p.Epics, 1)
	assert.Len(t, p.Capabilities, 1)
	assert.Len(t, p.Requirements, 1)
	assert.Equal(t, "checkout plan", p.Description)
}

func TestGenerateStopsOnStageError(t *testing.T) {
	svc := &recordingService{fail: StageStructure, outputs: map[Stage]*Proposal{
		StageNarrative: {Epics: []EpicProposal{{Title: "Checkout"}}},
	}}
	_, err := Generate(context.Background(), svc, "sell things", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "structure stage")
	assert.Len(t, svc.requests, 2)
}

func TestGenerateRejectsUnknownStage(t *testing.T) {
	_, err := Generate(context.Background(), &recordingService{}, "x", nil, Stage("deploy"))
	assert.Error(t, err)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"direct", `{"epics":[{"title":"A"}]}`},
		{"code fence", "```json\n{\"epics\":[{\"title\":\"A\"}]}\n```"},
		{"trailing comma", `{"epics":[{"title":"A",},],}`},
		{"unquoted keys", `{epics:[{title:"A"}]}`},
		{"prose around", "Here is the plan:\n{\"epics\":[{\"title\":\"A\"}]}\nLet me know."},
		{"apostrophe", `{"epics":[{"title":"A","description":"it's fine"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse[Proposal](tt.input)
			require.NoError(t, err)
			require.Len(t, p.Epics, 1)
			assert.Equal(t, "A", p.Epics[0].Title)
		})
	}
}

func TestParseFailures(t *testing.T) {
	_, err := Parse[Proposal]("   ")
	assert.Error(t, err)
	_, err = Parse[Proposal]("I cannot help with that.")
	assert.Error(t, err)
}
