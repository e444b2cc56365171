package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/plangraph/internal/repl"
	"github.com/steveyegge/plangraph/internal/types"
	"github.com/steveyegge/plangraph/internal/validation"
)

var showVersion string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current or a past snapshot of a project",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := openStore(ctx)
		id := projectID()

		schema, err := s.Schema(ctx, id)
		if err != nil {
			fail(err)
		}
		if schema == types.SchemaFlat {
			fg, err := s.LoadFlat(ctx, id)
			if err != nil {
				fail(err)
			}
			if jsonOutput {
				printJSON(fg)
			} else {
				repl.WriteFlat(os.Stdout, fg)
			}
			return
		}

		var g *types.Graph
		if showVersion != "" {
			g, err = s.LoadVersion(ctx, id, showVersion)
		} else {
			g, err = s.LoadCurrent(ctx, id)
		}
		if err != nil {
			fail(err)
		}
		if jsonOutput {
			printJSON(g)
			return
		}
		repl.WriteGraph(os.Stdout, g)
	},
}

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List the committed versions of a project",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := openStore(ctx)
		id := projectID()

		meta, err := s.GetMetadata(ctx, id)
		if err != nil {
			fail(err)
		}
		records, err := s.ListVersions(ctx, id)
		if err != nil {
			fail(err)
		}
		if jsonOutput {
			printJSON(records)
			return
		}
		repl.WriteVersions(os.Stdout, meta.CurrentVersion, records)
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Re-run every validator against the current snapshot",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := openStore(ctx)
		id := projectID()
		green := color.New(color.FgGreen).SprintFunc()

		schema, err := s.Schema(ctx, id)
		if err != nil {
			fail(err)
		}
		if schema == types.SchemaFlat {
			fg, err := s.LoadFlat(ctx, id)
			if err != nil {
				fail(err)
			}
			if res := validation.ValidateFlat(fg); !res.Valid {
				fail(reportFailure(res.Failure()))
			}
			fmt.Printf("%s %s %s is valid\n", green("✓"), id, fg.Version)
			return
		}

		g, err := s.LoadCurrent(ctx, id)
		if err != nil {
			fail(err)
		}
		if res := validation.Validate(g); !res.Valid {
			fail(reportFailure(res.Failure()))
		}
		mappings := validation.ValidateMappings(g)
		if !mappings.Valid {
			fail(reportFailure(mappings.Failure()))
		}
		fmt.Printf("%s %s %s is valid\n", green("✓"), id, g.Version)
		repl.WriteWarnings(os.Stdout, mappings.Warnings)
	},
}

func init() {
	showCmd.Flags().StringVar(&showVersion, "version", "", "snapshot version to show (e.g. v3)")
	rootCmd.AddCommand(showCmd, versionsCmd, validateCmd)
}
