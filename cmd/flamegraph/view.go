package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/getsentry/flamegraph/internal/flamegraph"
	"github.com/getsentry/flamegraph/internal/speedscope"
	"github.com/getsentry/flamegraph/internal/view"
)

type ViewCmd struct {
	Input string `arg:"" help:"JSON batch of profiles, .lz4 files are decompressed." type:"existingfile"`
	Focus string `help:"Frame names separated by / to zoom into."`
}

func (c *ViewCmd) Run(ctx context.Context, w io.Writer, cli *CLI) error {
	r, err := aggregate(ctx, cli.Aggregate, c.Input)
	if err != nil {
		return err
	}
	n := r.Navigator()
	if c.Focus != "" {
		p, ok := findPath(n.View(), strings.Split(c.Focus, "/"))
		if !ok {
			return fmt.Errorf("no path %q in the flamegraph", c.Focus)
		}
		n.ZoomIn(p)
	}
	return printView(w, r, n.View())
}

// findPath resolves frame names, from the top of the view down, to a path.
func findPath(v view.View, names []string) (view.Path, bool) {
	nodes := v.Nodes
	p := make(view.Path, 0, len(names))
	for _, name := range names {
		var next *view.Node
		for _, n := range nodes {
			if n.Name == name {
				next = n
				break
			}
		}
		if next == nil {
			return nil, false
		}
		p = append(p, next.Frame)
		nodes = next.Children
	}
	return p, true
}

func formatWeight(unit speedscope.ValueUnit, w float64) string {
	if unit == speedscope.ValueUnitNanoseconds {
		return time.Duration(w).String()
	}
	return humanize.Commaf(w)
}

func printView(w io.Writer, r *flamegraph.Result, v view.View) error {
	header := fmt.Sprintf(
		"%s over %s profiles, %s frames",
		formatWeight(r.Unit, r.Summary.TotalWeight),
		humanize.Comma(int64(r.Summary.Profiles)),
		humanize.Comma(int64(r.Summary.FrameCount)),
	)
	if r.Summary.Truncated {
		header += " (truncated)"
	}
	if _, err := fmt.Fprintln(w, header); err != nil {
		return err
	}

	var err error
	v.Walk(func(p view.Path, n *view.Node) {
		if err != nil {
			return
		}
		var pct float64
		if v.TotalWeight > 0 {
			pct = n.TotalWeight / v.TotalWeight * 100
		}
		name := n.Name
		if n.IsApplication {
			name += " [app]"
		}
		_, err = fmt.Fprintf(w, "%s%s  %s (%.2f%%)  self %s\n",
			strings.Repeat("  ", len(p)-1),
			name,
			formatWeight(r.Unit, n.TotalWeight),
			pct,
			formatWeight(r.Unit, n.SelfWeight),
		)
	})
	return err
}
