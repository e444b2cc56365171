package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/plangraph/internal/planner"
	"github.com/steveyegge/plangraph/internal/repl"
	"github.com/steveyegge/plangraph/internal/store"
	"github.com/steveyegge/plangraph/internal/types"
)

var (
	planStages []string
	planApply  bool
)

var planCmd = &cobra.Command{
	Use:   "plan <intent>",
	Short: "Generate plan content from a free-text intent",
	Long: `Ask the planning model to turn a free-text intent into plan content,
resolve it against the current snapshot and record it as a pending change
request. With --apply, the change request is applied right away.

Requires ANTHROPIC_API_KEY.

Example:
  plangraph plan -p shop "Customers can pay by card at checkout"
  plangraph plan -p shop --stages structure,specification "Add refunds"`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := openStore(ctx)
		id := projectID()
		intent := strings.Join(args, " ")

		stages, err := parseStages(planStages)
		if err != nil {
			fail(err)
		}
		current, err := s.LoadCurrent(ctx, id)
		if err != nil {
			fail(err)
		}
		svc, err := planner.NewClaude(cfg.Planner, logger)
		if err != nil {
			fail(err)
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Printf("%s Planning %s...\n", cyan("→"), strings.Join(planStages, ", "))
		proposal, err := planner.Generate(ctx, svc, intent, labels(current), stages...)
		if err != nil {
			fail(err)
		}
		in, err := planner.NewResolver().Resolve(proposal, current)
		if err != nil {
			var unresolved *planner.UnresolvedError
			if errors.As(err, &unresolved) {
				for _, name := range unresolved.Names {
					fmt.Fprintf(os.Stderr, "  unresolved: %s\n", name)
				}
			}
			fail(err)
		}
		if in.Description == "" {
			in.Description = intent
		}

		var (
			cr  *types.ChangeRequest
			res *store.ApplyResult
		)
		err = withWriterLock("plan", func() error {
			var err error
			if cr, err = s.CreateChangeRequest(ctx, id, *in); err != nil {
				return err
			}
			if planApply {
				res, err = s.ApplyChangeRequest(ctx, id, cr.ID)
			}
			return err
		})
		if cr != nil && !jsonOutput {
			repl.WriteChangeRequest(os.Stdout, cr)
		}
		if err != nil {
			fail(reportFailure(err))
		}
		if jsonOutput {
			printJSON(cr)
			return
		}
		if res != nil {
			repl.WriteApplied(os.Stdout, res)
		} else {
			fmt.Printf("Review with 'plangraph cr dry-run %s', then 'plangraph cr apply %s'\n", cr.ID, cr.ID)
		}
	},
}

func parseStages(names []string) ([]planner.Stage, error) {
	stages := make([]planner.Stage, 0, len(names))
	for _, name := range names {
		stage := planner.Stage(strings.TrimSpace(name))
		if !stage.IsValid() {
			return nil, fmt.Errorf("unknown stage %q (want narrative, structure, specification)", name)
		}
		stages = append(stages, stage)
	}
	return stages, nil
}

// labels lists existing node labels so proposals can link to them by name.
func labels(g *types.Graph) []string {
	var out []string
	for _, n := range g.AllNodes() {
		if label := n.Label(); label != "" {
			out = append(out, fmt.Sprintf("%s %q", n.Kind, label))
		}
	}
	return out
}

func init() {
	planCmd.Flags().StringSliceVar(&planStages, "stages", []string{"narrative", "structure", "specification"}, "stages to run, in order")
	planCmd.Flags().BoolVar(&planApply, "apply", false, "apply the change request immediately")
	rootCmd.AddCommand(planCmd)
}
