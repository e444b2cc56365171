package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/time/rate"
)

const (
	DefaultModel     = "claude-sonnet-4-5"
	DefaultMaxTokens = 8192
)

// Config configures the Anthropic-backed planning service.
type Config struct {
	APIKey            string      `yaml:"-"`
	Model             string      `yaml:"model"`
	BaseURL           string      `yaml:"base_url,omitempty"`
	MaxTokens         int         `yaml:"max_tokens"`
	RequestsPerMinute int         `yaml:"requests_per_minute"` // 0 = unpaced
	Retry             RetryConfig `yaml:"retry"`
}

// DefaultConfig returns the default planner configuration. The API key is
// read from the environment by the config package.
func DefaultConfig() Config {
	return Config{
		Model:             DefaultModel,
		MaxTokens:         DefaultMaxTokens,
		RequestsPerMinute: 20,
		Retry:             DefaultRetryConfig(),
	}
}

// Claude implements Service with the Anthropic Messages API.
type Claude struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	limiter   *rate.Limiter
	retry     *retrier
	logger    *slog.Logger
}

// NewClaude creates a planning service. The SDK's own retries are disabled;
// retries, pacing and the concurrency cap are applied here.
func NewClaude(cfg Config, logger *slog.Logger) (*Claude, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for planning")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	c := &Claude{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: int64(cfg.MaxTokens),
		retry:     newRetrier(cfg.Retry, logger),
		logger:    logger,
	}
	if cfg.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1)
	}
	return c, nil
}

// Propose asks the model for one stage of a plan.
func (c *Claude) Propose(ctx context.Context, req Request) (*Proposal, error) {
	if !req.Stage.IsValid() {
		return nil, fmt.Errorf("unknown planning stage %q", req.Stage)
	}
	if strings.TrimSpace(req.Intent) == "" {
		return nil, fmt.Errorf("intent is required")
	}
	prompt, err := buildPrompt(req)
	if err != nil {
		return nil, err
	}

	var response *anthropic.Message
	err = c.retry.do(ctx, "propose "+string(req.Stage), func(attemptCtx context.Context) error {
		if c.limiter != nil {
			if err := c.limiter.Wait(attemptCtx); err != nil {
				return err
			}
		}
		resp, apiErr := c.client.Messages.New(attemptCtx, anthropic.MessageNewParams{
			Model:     anthropic.Model(c.model),
			MaxTokens: c.maxTokens,
			System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if apiErr != nil {
			return apiErr
		}
		response = resp
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call failed: %w", err)
	}

	var responseText string
	for _, block := range response.Content {
		if block.Type == "text" {
			responseText += block.Text
		}
	}

	p, err := Parse[Proposal](responseText)
	if err != nil {
		c.logger.Warn("unparseable planning response", "stage", req.Stage, "preview", truncate(responseText, 200))
		return nil, fmt.Errorf("parse %s proposal: %w", req.Stage, err)
	}
	c.logger.Info("planning stage complete", "stage", req.Stage,
		"epics", len(p.Epics), "capabilities", len(p.Capabilities), "screens", len(p.Screens),
		"actions", len(p.Actions), "requirements", len(p.Requirements))
	return &p, nil
}

const systemPrompt = `You are a product planner. You build layered product plans:
a narrative layer (epics and user stories), a structure layer (capabilities,
screens and actions) and a specification layer (technical requirements and
tasks). Refer to other items only by their exact title or name, never by id.
Respond with a single JSON object and nothing else.`

var stageInstructions = map[Stage]string{
	StageNarrative: `Produce the narrative layer. Fill "epics"; each epic has
"title", "description" and "stories". Each story has "title", "narrative"
("As a ..., I want ..., so that ...") and "acceptance_criteria".`,
	StageStructure: `Produce the structure layer for the narrative above. Fill
"capabilities" (each with "name", "description" and "stories", the titles of
the stories it serves), "screens" (each with "name", "description" and
"entry_from", names of screens leading here) and "actions" (each with "name",
"trigger" ("user" or "system"), "screen", optional "next_screen",
"capabilities" it exercises and a one-line "rationale").`,
	StageSpecification: `Produce the specification layer for the structure above.
Fill "requirements"; each has "title", "category", "specification",
"capabilities" (names it implements) and "tasks". Each task has "title",
"category", "description" and "depends_on" (titles of tasks that must be done
first). Never create circular task dependencies.`,
}

func buildPrompt(req Request) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Product intent:\n%s\n\n", req.Intent)
	if len(req.Existing) > 0 {
		b.WriteString("Items already in the plan (you may reference them by name):\n")
		for _, label := range req.Existing {
			fmt.Fprintf(&b, "- %s\n", label)
		}
		b.WriteString("\n")
	}
	if req.Prior != nil && !req.Prior.IsEmpty() {
		prior, err := json.MarshalIndent(req.Prior, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal prior proposal: %w", err)
		}
		fmt.Fprintf(&b, "Plan so far:\n%s\n\n", prior)
	}
	b.WriteString(stageInstructions[req.Stage])
	b.WriteString(`

Also set "description" to a one-line summary of this change and
"impact_summary" to what it affects. Do not repeat items from the plan so far.`)
	return b.String(), nil
}
