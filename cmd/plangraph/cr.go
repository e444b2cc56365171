package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/plangraph/internal/repl"
	"github.com/steveyegge/plangraph/internal/store"
	"github.com/steveyegge/plangraph/internal/types"
)

var (
	crFile        string
	crDescription string
)

var crCmd = &cobra.Command{
	Use:   "cr",
	Short: "Create, inspect and apply change requests",
}

// readPayload decodes a change request payload from path, or stdin for "-".
func readPayload(path string) (types.ChangeRequestInput, error) {
	var in types.ChangeRequestInput
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return in, fmt.Errorf("failed to open payload: %w", err)
		}
		defer f.Close()
		r = f
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return in, fmt.Errorf("failed to parse payload: %w", err)
	}
	return in, nil
}

var crCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a pending change request from a JSON payload",
	Long: `Create a pending change request. The payload file holds the JSON fields
description, impact_summary, new_nodes, modifications, new_edges,
new_mappings and new_cross_layer. Use --file - to read stdin.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := openStore(ctx)
		id := projectID()

		in, err := readPayload(crFile)
		if err != nil {
			fail(err)
		}
		if crDescription != "" {
			in.Description = crDescription
		}

		var cr *types.ChangeRequest
		if err := withWriterLock("cr create", func() error {
			cr, err = s.CreateChangeRequest(ctx, id, in)
			return err
		}); err != nil {
			fail(reportFailure(err))
		}
		if jsonOutput {
			printJSON(cr)
			return
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Created %s (%s)\n", green("✓"), cr.ID, cr.Status)
	},
}

var crListCmd = &cobra.Command{
	Use:   "list",
	Short: "List change requests",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		crs, err := openStore(ctx).ListChangeRequests(ctx, projectID())
		if err != nil {
			fail(err)
		}
		if jsonOutput {
			printJSON(crs)
			return
		}
		repl.WriteChangeRequests(os.Stdout, crs)
	},
}

var crShowCmd = &cobra.Command{
	Use:   "show <CR-NNN>",
	Short: "Show a change request",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cr, err := openStore(ctx).GetChangeRequest(ctx, projectID(), strings.ToUpper(args[0]))
		if err != nil {
			fail(err)
		}
		if jsonOutput {
			printJSON(cr)
			return
		}
		repl.WriteChangeRequest(os.Stdout, cr)
	},
}

var crApplyCmd = &cobra.Command{
	Use:   "apply <CR-NNN>",
	Short: "Validate and apply a pending change request as a new version",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := openStore(ctx)
		id := projectID()

		var res *store.ApplyResult
		err := withWriterLock("cr apply", func() error {
			var err error
			res, err = s.ApplyChangeRequest(ctx, id, strings.ToUpper(args[0]))
			return err
		})
		if err != nil {
			fail(reportFailure(err))
		}
		if jsonOutput {
			printJSON(res)
			return
		}
		repl.WriteApplied(os.Stdout, res)
	},
}

var crDeleteCmd = &cobra.Command{
	Use:   "delete <CR-NNN>",
	Short: "Delete a pending change request",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := openStore(ctx)
		id := projectID()
		changeID := strings.ToUpper(args[0])
		if err := withWriterLock("cr delete", func() error {
			return s.DeleteChangeRequest(ctx, id, changeID)
		}); err != nil {
			fail(err)
		}
		fmt.Printf("Deleted %s\n", changeID)
	},
}

var crDryRunCmd = &cobra.Command{
	Use:   "dry-run <CR-NNN>",
	Short: "Validate a change request against the current snapshot without applying it",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		res, err := openStore(ctx).DryRun(ctx, projectID(), strings.ToUpper(args[0]))
		if err != nil {
			fail(err)
		}
		if jsonOutput {
			out := struct {
				ChangeRequest string                   `json:"change_request"`
				Valid         bool                     `json:"valid"`
				Failure       *types.ValidationFailure `json:"failure,omitempty"`
				Version       string                   `json:"version,omitempty"`
			}{ChangeRequest: res.ChangeRequest.ID, Valid: res.Valid, Failure: res.Failure}
			if res.Graph != nil {
				out.Version = res.Graph.Version
			}
			printJSON(out)
			return
		}
		if !res.Valid {
			fail(reportFailure(res.Failure))
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s %s would produce %s (%d nodes)\n", green("✓"), res.ChangeRequest.ID, res.Graph.Version, res.Graph.NodeCount())
		repl.WriteWarnings(os.Stdout, res.Warnings)
	},
}

func init() {
	crCreateCmd.Flags().StringVarP(&crFile, "file", "f", "-", "JSON payload file ('-' for stdin)")
	crCreateCmd.Flags().StringVarP(&crDescription, "description", "d", "", "override the payload description")
	crCmd.AddCommand(crCreateCmd, crListCmd, crShowCmd, crApplyCmd, crDeleteCmd, crDryRunCmd)
	rootCmd.AddCommand(crCmd)
}
