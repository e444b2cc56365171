package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/plangraph/internal/types"
)

var projectName string

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List projects",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		projects, err := openStore(ctx).ListProjects(ctx)
		if err != nil {
			fail(err)
		}
		if jsonOutput {
			printJSON(projects)
			return
		}
		if len(projects) == 0 {
			fmt.Println("No projects. Create one with 'plangraph projects create <id>'.")
			return
		}
		for _, p := range projects {
			fmt.Printf("%-20s %-6s %-8s %s\n", p.ID, p.CurrentVersion, p.Schema, p.Name)
		}
	},
}

var projectsCreateCmd = &cobra.Command{
	Use:   "create <id>",
	Short: "Create an empty project at v0",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := openStore(ctx)
		var meta *types.ProjectMetadata
		err := withWriterLock("projects create", func() error {
			var err error
			meta, err = s.CreateProject(ctx, args[0], projectName)
			return err
		})
		if err != nil {
			fail(err)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Created project %s at %s\n", green("✓"), meta.ID, meta.CurrentVersion)
	},
}

var projectsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a project with all its versions and change requests",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := openStore(ctx)
		if err := withWriterLock("projects delete", func() error {
			return s.DeleteProject(ctx, args[0])
		}); err != nil {
			fail(err)
		}
		fmt.Printf("Deleted project %s\n", args[0])
	},
}

func init() {
	projectsCreateCmd.Flags().StringVar(&projectName, "name", "", "human-readable project name")
	projectsCmd.AddCommand(projectsCreateCmd, projectsDeleteCmd)
	rootCmd.AddCommand(projectsCmd)
}
