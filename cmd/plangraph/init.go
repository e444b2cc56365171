package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/plangraph/internal/storage"
	"github.com/steveyegge/plangraph/internal/types"
)

var initName string

var initCmd = &cobra.Command{
	Use:   "init [project-id]",
	Short: "Initialize a plan root in the current directory",
	Long: `Initialize a plan root by creating a .plangraph/ directory with a
starter config.yaml. With a project id, also create that project at v0.

Example:
  plangraph init
  plangraph init shop --name "Online shop"`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cwd, err := os.Getwd()
		if err != nil {
			fail(fmt.Errorf("failed to get current directory: %w", err))
		}
		root, err := storage.InitRoot(cwd)
		if err != nil {
			fail(err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Printf("\n%s Initialized plan root\n\n", green("✓"))
		fmt.Printf("  Root:    %s\n", cyan(root))

		if len(args) == 1 {
			rootFlag = root
			ctx := context.Background()
			s := openStore(ctx)
			var meta *types.ProjectMetadata
			if err := withWriterLock("init", func() error {
				var err error
				meta, err = s.CreateProject(ctx, args[0], initName)
				return err
			}); err != nil {
				fail(err)
			}
			fmt.Printf("  Project: %s (%s)\n", cyan(meta.ID), meta.CurrentVersion)
		}
		fmt.Println()
	},
}

func init() {
	initCmd.Flags().StringVar(&initName, "name", "", "human-readable project name")
	rootCmd.AddCommand(initCmd)
}
