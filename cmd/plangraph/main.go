// Command plangraph manages layered, versioned product plans.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/plangraph/internal/config"
	"github.com/steveyegge/plangraph/internal/storage"
	"github.com/steveyegge/plangraph/internal/store"
	"github.com/steveyegge/plangraph/internal/types"
)

var (
	rootFlag     string
	backendFlag  string
	projectFlag  string
	configFlag   string
	logLevelFlag string
	jsonOutput   bool

	// Set by setup for commands that need a store
	cfg     *config.Config
	rootDir string
	logger  *slog.Logger
	st      *store.Store
)

var rootCmd = &cobra.Command{
	Use:   "plangraph",
	Short: "Layered, versioned product plan graphs",
	Long: `plangraph keeps a product plan as a versioned graph in three layers:
narrative (epics, user stories), structure (capabilities, screens, actions)
and specification (technical requirements, tasks).

Every change goes through a change request that is validated as a whole
before it is committed as a new version.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlag, "root", "", "plan root directory (default: ./.plangraph or $PLANGRAPH_ROOT)")
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "storage backend: fs, sqlite, postgres, s3")
	rootCmd.PersistentFlags().StringVarP(&projectFlag, "project", "p", "", "project id")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "config file (default: <root>/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print JSON instead of text")
}

func main() {
	defer closeStore()
	if err := rootCmd.Execute(); err != nil {
		closeStore()
		os.Exit(1)
	}
}

// fail prints err in red on stderr and exits 1.
func fail(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(os.Stderr, "%s %v\n", red("Error:"), err)
	closeStore()
	os.Exit(1)
}

// loadConfig resolves the root and layers config file, .env, environment
// and flags.
func loadConfig() error {
	root := rootFlag
	if root == "" {
		discovered, err := storage.DiscoverRoot()
		if err != nil {
			return err
		}
		root = discovered
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve root %s: %w", root, err)
	}
	rootDir = abs

	if cwd, err := os.Getwd(); err == nil {
		if err := config.LoadDotEnv(cwd); err != nil {
			return err
		}
	}
	if err := config.LoadDotEnv(rootDir); err != nil {
		return err
	}

	if configFlag != "" {
		cfg, err = config.Load(configFlag)
		if err == nil {
			cfg.Storage.Root = rootDir
		}
	} else {
		cfg, err = config.LoadRoot(rootDir)
	}
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}
	if backendFlag != "" {
		cfg.Storage.Backend = backendFlag
	}
	if logLevelFlag != "" {
		cfg.Log.Level = logLevelFlag
	}
	if projectFlag != "" {
		cfg.Project = projectFlag
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger = cfg.NewLogger(os.Stderr)
	return nil
}

// openStore loads configuration and opens the store, exiting on failure.
func openStore(ctx context.Context) *store.Store {
	if st != nil {
		return st
	}
	if err := loadConfig(); err != nil {
		fail(err)
	}
	backend, err := storage.NewBackend(ctx, &cfg.Storage)
	if err != nil {
		fail(err)
	}
	st, err = store.New(backend, store.Options{Logger: logger})
	if err != nil {
		_ = backend.Close()
		fail(err)
	}
	return st
}

func closeStore() {
	if st != nil {
		_ = st.Close()
		st = nil
	}
}

// projectID returns the project from the flag or config, or fails.
func projectID() string {
	if cfg != nil && cfg.Project != "" {
		return cfg.Project
	}
	fail(errors.New("no project selected (use --project or set project in config.yaml)"))
	return ""
}

// withWriterLock runs fn holding the root's writer lock, so two processes
// never mutate the same plan root at once.
func withWriterLock(holder string, fn func() error) error {
	lockPath, err := storage.AcquireWriterLock(rootDir, holder)
	if err != nil {
		return err
	}
	defer func() {
		if err := storage.ReleaseWriterLock(lockPath); err != nil {
			logger.Warn("failed to release writer lock", "error", err)
		}
	}()
	return fn()
}

// reportFailure prints a validation failure in detail and returns a short
// error for the exit path.
func reportFailure(err error) error {
	var failure *types.ValidationFailure
	if errors.As(err, &failure) {
		writeFailure(failure)
		return fmt.Errorf("validation failed")
	}
	return err
}
