package repl

import (
	"errors"
	"fmt"
	"strings"

	"github.com/steveyegge/plangraph/internal/types"
)

func (r *REPL) requireProject() error {
	if r.project == "" {
		return fmt.Errorf("no project selected (use 'use <project>')")
	}
	return nil
}

func oneArg(args []string, usage string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("usage: %s", usage)
	}
	return args[0], nil
}

func (r *REPL) cmdProjects(args []string) error {
	projects, err := r.store.ListProjects(r.ctx)
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		fmt.Fprintln(r.out, "No projects")
		return nil
	}
	for _, p := range projects {
		marker := " "
		if p.ID == r.project {
			marker = green("*")
		}
		fmt.Fprintf(r.out, "%s %-20s %-6s %s  %s\n", marker, p.ID, p.CurrentVersion, p.Schema, p.Name)
	}
	return nil
}

func (r *REPL) cmdUse(args []string) error {
	id, err := oneArg(args, "use <project>")
	if err != nil {
		return err
	}
	if _, err := r.store.GetMetadata(r.ctx, id); err != nil {
		return err
	}
	r.project = id
	fmt.Fprintf(r.out, "Using project %s\n", id)
	return nil
}

func (r *REPL) cmdShow(args []string) error {
	if err := r.requireProject(); err != nil {
		return err
	}
	schema, err := r.store.Schema(r.ctx, r.project)
	if err != nil {
		return err
	}
	if schema == types.SchemaFlat {
		fg, err := r.store.LoadFlat(r.ctx, r.project)
		if err != nil {
			return err
		}
		WriteFlat(r.out, fg)
		return nil
	}

	var g *types.Graph
	if len(args) > 0 {
		g, err = r.store.LoadVersion(r.ctx, r.project, args[0])
	} else {
		g, err = r.store.LoadCurrent(r.ctx, r.project)
	}
	if err != nil {
		return err
	}
	WriteGraph(r.out, g)
	return nil
}

func (r *REPL) cmdVersions(args []string) error {
	if err := r.requireProject(); err != nil {
		return err
	}
	meta, err := r.store.GetMetadata(r.ctx, r.project)
	if err != nil {
		return err
	}
	records, err := r.store.ListVersions(r.ctx, r.project)
	if err != nil {
		return err
	}
	WriteVersions(r.out, meta.CurrentVersion, records)
	return nil
}

func (r *REPL) cmdImpact(args []string) error {
	if err := r.requireProject(); err != nil {
		return err
	}
	id, err := oneArg(args, "impact <node>")
	if err != nil {
		return err
	}
	a, err := r.store.Analyzer(r.ctx, r.project)
	if err != nil {
		return err
	}
	report, err := a.AnalyzeImpact(id)
	if err != nil {
		return err
	}
	WriteImpact(r.out, report)
	return nil
}

// cmdTrace picks the direction from the node kind.
func (r *REPL) cmdTrace(args []string) error {
	if err := r.requireProject(); err != nil {
		return err
	}
	id, err := oneArg(args, "trace <epic|task>")
	if err != nil {
		return err
	}
	a, err := r.store.Analyzer(r.ctx, r.project)
	if err != nil {
		return err
	}
	kind, _ := types.KindFromID(id)
	switch kind {
	case types.KindEpic:
		report, err := a.TraceNarrativeToImplementation(id)
		if err != nil {
			return err
		}
		WriteTrace(r.out, report)
	case types.KindTask:
		report, err := a.TraceImplementationToNarrative(id)
		if err != nil {
			return err
		}
		WriteTrace(r.out, report)
	default:
		return fmt.Errorf("trace needs an epic or a task id (got %q)", id)
	}
	return nil
}

func (r *REPL) cmdChangeRequests(args []string) error {
	if err := r.requireProject(); err != nil {
		return err
	}
	crs, err := r.store.ListChangeRequests(r.ctx, r.project)
	if err != nil {
		return err
	}
	WriteChangeRequests(r.out, crs)
	return nil
}

func (r *REPL) cmdChangeRequest(args []string) error {
	if err := r.requireProject(); err != nil {
		return err
	}
	id, err := oneArg(args, "cr <CR-NNN>")
	if err != nil {
		return err
	}
	cr, err := r.store.GetChangeRequest(r.ctx, r.project, strings.ToUpper(id))
	if err != nil {
		return err
	}
	WriteChangeRequest(r.out, cr)
	return nil
}

func (r *REPL) cmdDryRun(args []string) error {
	if err := r.requireProject(); err != nil {
		return err
	}
	id, err := oneArg(args, "dry-run <CR-NNN>")
	if err != nil {
		return err
	}
	res, err := r.store.DryRun(r.ctx, r.project, strings.ToUpper(id))
	if err != nil {
		return err
	}
	if !res.Valid {
		WriteFailure(r.out, res.Failure)
		return nil
	}
	fmt.Fprintf(r.out, "%s %s is valid (%d nodes after apply)\n", green("✓"), res.ChangeRequest.ID, res.Graph.NodeCount())
	WriteWarnings(r.out, res.Warnings)
	return nil
}

func (r *REPL) cmdApply(args []string) error {
	if err := r.requireProject(); err != nil {
		return err
	}
	id, err := oneArg(args, "apply <CR-NNN>")
	if err != nil {
		return err
	}
	res, err := r.store.ApplyChangeRequest(r.ctx, r.project, strings.ToUpper(id))
	if err != nil {
		var failure *types.ValidationFailure
		if errors.As(err, &failure) {
			WriteFailure(r.out, failure)
			return fmt.Errorf("%s rejected", strings.ToUpper(id))
		}
		return err
	}
	WriteApplied(r.out, res)
	return nil
}
