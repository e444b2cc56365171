package repl

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/steveyegge/plangraph/internal/analysis"
	"github.com/steveyegge/plangraph/internal/store"
	"github.com/steveyegge/plangraph/internal/types"
	"github.com/steveyegge/plangraph/internal/validation"
)

var (
	heading = color.New(color.FgCyan, color.Bold).SprintFunc()
	green   = color.New(color.FgGreen).SprintFunc()
	yellow  = color.New(color.FgYellow).SprintFunc()
	red     = color.New(color.FgRed).SprintFunc()
	faint   = color.New(color.Faint).SprintFunc()
)

// WriteGraph prints a snapshot grouped by sub-graph.
func WriteGraph(w io.Writer, g *types.Graph) {
	fmt.Fprintf(w, "\n%s %s  (%d nodes)\n", heading("Plan"), g.Version, g.NodeCount())
	for _, id := range types.SubGraphs {
		sg := g.SubGraph(id)
		if len(sg.Nodes) == 0 && len(sg.Edges) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n  %s\n", heading(string(id)))
		for _, n := range sg.Nodes {
			fmt.Fprintf(w, "    %-24s %s %s\n", green(n.ID), n.Label(), faint(n.Version))
		}
		for _, e := range sg.Edges {
			fmt.Fprintf(w, "    %s %s %s\n", e.From, faint("-"+string(e.Type)+"->"), e.To)
		}
	}
	if len(g.Mappings) > 0 {
		fmt.Fprintf(w, "\n  %s\n", heading("mappings"))
		for _, m := range g.Mappings {
			fmt.Fprintf(w, "    %s -> %s  %s\n", m.Action, strings.Join(m.Capabilities, ", "), faint(m.Rationale))
		}
	}
	if len(g.CrossLayer) > 0 {
		fmt.Fprintf(w, "\n  %s\n", heading("cross-layer"))
		for _, d := range g.CrossLayer {
			fmt.Fprintf(w, "    %s -> %s  %s\n", d.From, d.To, faint(string(d.Kind)))
		}
	}
	fmt.Fprintln(w)
}

// WriteFlat prints a legacy flat graph.
func WriteFlat(w io.Writer, fg *types.FlatGraph) {
	fmt.Fprintf(w, "\n%s %s  (%d nodes, legacy schema)\n", heading("Plan"), fg.Version, len(fg.Nodes))
	for _, id := range fg.NodeIDs() {
		n := fg.Nodes[id]
		fmt.Fprintf(w, "    %-24s %s %s\n", green(n.ID), n.Title, faint(n.Version))
	}
	for _, e := range fg.Edges {
		fmt.Fprintf(w, "    %s %s %s\n", e.From, faint("-"+string(e.Type)+"->"), e.To)
	}
	fmt.Fprintln(w)
}

// WriteImpact prints an impact report bucketed by layer.
func WriteImpact(w io.Writer, r *analysis.ImpactReport) {
	fmt.Fprintf(w, "\n%s %s (%s)\n", heading("Impact of"), r.NodeID, r.Layer)
	if r.AffectedNodes.Count() == 0 {
		fmt.Fprintf(w, "  %s\n\n", green("no other nodes affected"))
		return
	}
	buckets := []struct {
		name string
		ids  []string
	}{
		{"narrative", r.AffectedNodes.Narrative},
		{"structure", r.AffectedNodes.Structure},
		{"specification", r.AffectedNodes.Specification},
	}
	for _, b := range buckets {
		if len(b.ids) > 0 {
			fmt.Fprintf(w, "  %-14s %s\n", yellow(b.name), strings.Join(b.ids, ", "))
		}
	}
	fmt.Fprintf(w, "  %d downstream, %d upstream, %d cross-layer\n\n", len(r.Downstream), len(r.Upstream), len(r.CrossLayer))
}

// WriteTrace prints a trace report level by level.
func WriteTrace(w io.Writer, r *analysis.TraceReport) {
	fmt.Fprintf(w, "\n%s %s (%s)\n", heading("Trace"), r.Root, r.Direction)
	levels := []struct {
		name string
		ids  []string
	}{
		{"stories", r.Stories},
		{"capabilities", r.Capabilities},
		{"requirements", r.Requirements},
		{"tasks", r.Tasks},
		{"flows", r.Flows},
	}
	if r.Epic != "" {
		fmt.Fprintf(w, "  %-14s %s\n", yellow("epic"), r.Epic)
	}
	for _, l := range levels {
		if len(l.ids) > 0 {
			fmt.Fprintf(w, "  %-14s %s\n", yellow(l.name), strings.Join(l.ids, ", "))
		}
	}
	fmt.Fprintf(w, "  %s %s\n\n", faint("path:"), strings.Join(r.Path, " → "))
}

// WriteChangeRequests prints one line per change request.
func WriteChangeRequests(w io.Writer, crs []*types.ChangeRequest) {
	if len(crs) == 0 {
		fmt.Fprintln(w, "No change requests")
		return
	}
	for _, cr := range crs {
		status := yellow(string(cr.Status))
		if cr.Status == types.ChangeApplied {
			status = green(string(cr.Status)) + " " + faint(cr.ResultVersion)
		}
		fmt.Fprintf(w, "  %s  %-16s %s\n", cr.ID, status, cr.Description)
	}
}

// WriteChangeRequest prints a change request and its payload counts.
func WriteChangeRequest(w io.Writer, cr *types.ChangeRequest) {
	fmt.Fprintf(w, "\n%s %s  %s\n", heading("Change request"), cr.ID, cr.Status)
	fmt.Fprintf(w, "  %s\n", cr.Description)
	if cr.ImpactSummary != "" {
		fmt.Fprintf(w, "  %s %s\n", faint("impact:"), cr.ImpactSummary)
	}
	fmt.Fprintf(w, "  %d new nodes, %d modifications, %d edges, %d mappings, %d cross-layer\n",
		len(cr.NewNodes), len(cr.Modifications), len(cr.NewEdges), len(cr.NewMappings), len(cr.NewCrossLayer))
	if cr.ResultVersion != "" {
		fmt.Fprintf(w, "  %s → %s\n", cr.BaseVersion, cr.ResultVersion)
	}
	fmt.Fprintln(w)
}

// WriteVersions prints the version history, newest last.
func WriteVersions(w io.Writer, current string, records []types.VersionRecord) {
	for _, rec := range records {
		marker := " "
		if rec.Version == current {
			marker = green("*")
		}
		cr := rec.ChangeRequest
		if cr == "" {
			cr = "-"
		}
		fmt.Fprintf(w, "%s %-5s %-8s %4d nodes  %s  %s\n", marker, rec.Version, cr, rec.NodeCount,
			rec.CommittedAt.Format("2006-01-02 15:04:05"), faint(shortDigest(rec.Digest)))
	}
}

// WriteApplied prints the outcome of a successful apply.
func WriteApplied(w io.Writer, res *store.ApplyResult) {
	fmt.Fprintf(w, "%s Applied %s → %s (%d nodes)\n", green("✓"), res.ChangeRequest.ID, res.Version.Version, res.Version.NodeCount)
	WriteWarnings(w, res.Warnings)
}

// WriteWarnings prints non-blocking validation warnings.
func WriteWarnings(w io.Writer, warnings []validation.ValidationWarning) {
	for _, warn := range warnings {
		fmt.Fprintf(w, "  %s %s\n", yellow("warning:"), warn.Message)
	}
}

// WriteFailure prints a validation failure with its cycle, if any.
func WriteFailure(w io.Writer, f *types.ValidationFailure) {
	fmt.Fprintf(w, "%s [%s/%s] %s\n", red("✗"), f.Layer, f.Code, f.Message)
	if len(f.Cycle) > 0 {
		fmt.Fprintf(w, "  cycle: %s\n", strings.Join(f.Cycle, " → "))
	}
	for _, e := range f.Errors {
		fmt.Fprintf(w, "  - %s\n", e)
	}
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
