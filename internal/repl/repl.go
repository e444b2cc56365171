// Package repl is an interactive shell over a plan store.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/steveyegge/plangraph/internal/store"
)

// REPL represents the interactive shell
type REPL struct {
	store    *store.Store
	project  string
	out      io.Writer
	history  string
	rl       *readline.Instance
	ctx      context.Context
	commands map[string]CommandHandler
}

// CommandHandler handles a specific command
type CommandHandler func(args []string) error

// Config holds REPL configuration
type Config struct {
	Store *store.Store
	// Project is the project commands act on; "use" switches it
	Project string
	// Out defaults to stdout
	Out io.Writer
	// HistoryFile persists line history when set
	HistoryFile string
}

// errExit ends the loop
var errExit = errors.New("exit")

// New creates a new REPL instance
func New(cfg *Config) (*REPL, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}

	r := &REPL{
		store:    cfg.Store,
		project:  cfg.Project,
		out:      out,
		history:  cfg.HistoryFile,
		ctx:      context.Background(),
		commands: make(map[string]CommandHandler),
	}
	r.registerCommands()
	return r, nil
}

// Run starts the REPL loop
func (r *REPL) Run(ctx context.Context) error {
	r.ctx = ctx

	rl, err := readline.NewEx(&readline.Config{
		Prompt:              r.prompt(),
		HistoryFile:         r.history,
		AutoComplete:        r.completer(),
		InterruptPrompt:     "^C",
		EOFPrompt:           "exit",
		HistorySearchFold:   true,
		FuncFilterInputRune: nil,
		Stdout:              r.out,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()
	r.rl = rl

	r.printWelcome()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			} else if err == io.EOF {
				fmt.Fprintln(r.out, "\nGoodbye!")
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := r.processInput(line); err != nil {
			if errors.Is(err, errExit) {
				return nil
			}
			fmt.Fprintf(r.out, "%s %v\n", red("Error:"), err)
		}
		rl.SetPrompt(r.prompt())
	}
}

func (r *REPL) prompt() string {
	cyan := color.New(color.FgCyan).SprintFunc()
	if r.project == "" {
		return cyan("plangraph> ")
	}
	return cyan("plangraph:" + r.project + "> ")
}

// processInput processes a single line of input
func (r *REPL) processInput(line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}
	command := strings.TrimPrefix(parts[0], "/")
	if handler, ok := r.commands[command]; ok {
		return handler(parts[1:])
	}
	fmt.Fprintf(r.out, "%s unknown command %q. Use 'help' for available commands.\n", yellow("Note:"), command)
	return nil
}

// registerCommands registers all built-in commands
func (r *REPL) registerCommands() {
	r.commands["help"] = r.cmdHelp
	r.commands["?"] = r.cmdHelp
	r.commands["exit"] = r.cmdExit
	r.commands["quit"] = r.cmdExit
	r.commands["projects"] = r.cmdProjects
	r.commands["use"] = r.cmdUse
	r.commands["show"] = r.cmdShow
	r.commands["versions"] = r.cmdVersions
	r.commands["impact"] = r.cmdImpact
	r.commands["trace"] = r.cmdTrace
	r.commands["crs"] = r.cmdChangeRequests
	r.commands["cr"] = r.cmdChangeRequest
	r.commands["dry-run"] = r.cmdDryRun
	r.commands["apply"] = r.cmdApply
}

func (r *REPL) completer() *readline.PrefixCompleter {
	items := make([]readline.PrefixCompleterInterface, 0, len(helpEntries))
	for _, e := range helpEntries {
		name := strings.Fields(e.usage)[0]
		items = append(items, readline.PcItem(name))
	}
	return readline.NewPrefixCompleter(items...)
}

func (r *REPL) printWelcome() {
	fmt.Fprintf(r.out, "\n%s\n", heading("plangraph shell"))
	if r.project != "" {
		fmt.Fprintf(r.out, "Project: %s\n", r.project)
	}
	fmt.Fprintln(r.out, "Type 'help' for available commands, 'exit' to quit")
	fmt.Fprintln(r.out)
}

var helpEntries = []struct {
	usage string
	desc  string
}{
	{"help", "Show this help message"},
	{"projects", "List projects"},
	{"use <project>", "Switch the current project"},
	{"show [version]", "Show the current or a past snapshot"},
	{"versions", "List committed versions"},
	{"impact <node>", "Show what a change to a node affects"},
	{"trace <epic|task>", "Trace an epic down or a task up"},
	{"crs", "List change requests"},
	{"cr <CR-NNN>", "Show a change request"},
	{"dry-run <CR-NNN>", "Validate a change request without applying it"},
	{"apply <CR-NNN>", "Apply a pending change request"},
	{"exit", "Exit the shell"},
}

func (r *REPL) cmdHelp(args []string) error {
	fmt.Fprintf(r.out, "\n%s\n\n", heading("Available Commands:"))
	for _, e := range helpEntries {
		fmt.Fprintf(r.out, "  %-22s %s\n", green(e.usage), e.desc)
	}
	fmt.Fprintln(r.out)
	return nil
}

func (r *REPL) cmdExit(args []string) error {
	fmt.Fprintf(r.out, "\n%s Goodbye!\n", green("✓"))
	return errExit
}
