package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/plangraph/internal/analysis"
	"github.com/steveyegge/plangraph/internal/repl"
)

var analyzeVersion string

// analyzer opens the analyzer for the selected project at the requested
// version, or the current one.
func analyzer(ctx context.Context) *analysis.Analyzer {
	s := openStore(ctx)
	id := projectID()
	var (
		a   *analysis.Analyzer
		err error
	)
	if analyzeVersion != "" {
		a, err = s.AnalyzerAt(ctx, id, analyzeVersion)
	} else {
		a, err = s.Analyzer(ctx, id)
	}
	if err != nil {
		fail(err)
	}
	return a
}

var impactCmd = &cobra.Command{
	Use:   "impact <node-id>",
	Short: "Show every node a change to the given node may affect",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		report, err := analyzer(context.Background()).AnalyzeImpact(args[0])
		if err != nil {
			fail(err)
		}
		if jsonOutput {
			printJSON(report)
			return
		}
		repl.WriteImpact(os.Stdout, report)
	},
}

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Trace narrative to implementation or back",
}

var traceDownCmd = &cobra.Command{
	Use:   "down <epic-id>",
	Short: "Trace an epic down to its stories, capabilities, requirements and tasks",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		report, err := analyzer(context.Background()).TraceNarrativeToImplementation(args[0])
		if err != nil {
			fail(err)
		}
		writeTrace(report)
	},
}

var traceUpCmd = &cobra.Command{
	Use:   "up <task-id>",
	Short: "Trace a task up to the requirements, capabilities, stories and epic it serves",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		report, err := analyzer(context.Background()).TraceImplementationToNarrative(args[0])
		if err != nil {
			fail(err)
		}
		writeTrace(report)
	},
}

func writeTrace(report *analysis.TraceReport) {
	if jsonOutput {
		printJSON(report)
		return
	}
	repl.WriteTrace(os.Stdout, report)
}

func init() {
	for _, c := range []*cobra.Command{impactCmd, traceCmd} {
		c.PersistentFlags().StringVar(&analyzeVersion, "version", "", "analyze a past snapshot (e.g. v3)")
	}
	traceCmd.AddCommand(traceDownCmd, traceUpCmd)
	rootCmd.AddCommand(impactCmd, traceCmd)
}
