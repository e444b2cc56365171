package main

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/steveyegge/plangraph/internal/repl"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive shell",
	Long: `Start an interactive shell over the plan root. The shell holds the
writer lock for its whole session because it can apply change requests.

Type 'help' in the shell for available commands.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := openStore(ctx)

		r, err := repl.New(&repl.Config{
			Store:       s,
			Project:     cfg.Project,
			HistoryFile: filepath.Join(rootDir, ".shell_history"),
		})
		if err != nil {
			fail(err)
		}
		if err := withWriterLock("shell", func() error {
			return r.Run(ctx)
		}); err != nil {
			fail(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)
}
