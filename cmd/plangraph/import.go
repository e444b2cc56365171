package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/plangraph/internal/types"
)

var importLegacyCmd = &cobra.Command{
	Use:   "import-legacy <project-id> <graph.json>",
	Short: "Import a legacy single-document graph as a flat-schema project",
	Long: `Import a legacy graph document ({"version", "nodes", "edges"}) as a new
project. The project keeps the flat schema: change requests against it may add
and modify nodes and edges but not mappings or cross-layer dependencies.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		data, err := os.ReadFile(args[1])
		if err != nil {
			fail(fmt.Errorf("failed to read %s: %w", args[1], err))
		}
		var fg types.FlatGraph
		if err := json.Unmarshal(data, &fg); err != nil {
			fail(fmt.Errorf("failed to parse %s: %w", args[1], err))
		}

		ctx := context.Background()
		s := openStore(ctx)
		var meta *types.ProjectMetadata
		if err := withWriterLock("import-legacy", func() error {
			meta, err = s.ImportLegacy(ctx, args[0], &fg)
			return err
		}); err != nil {
			fail(reportFailure(err))
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Imported %s at %s (%d nodes, flat schema)\n", green("✓"), meta.ID, meta.CurrentVersion, len(fg.Nodes))
	},
}

func init() {
	rootCmd.AddCommand(importLegacyCmd)
}
