package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"github.com/pierrec/lz4/v4"
	"github.com/rs/zerolog/log"

	"github.com/getsentry/flamegraph/internal/flamegraph"
	"github.com/getsentry/flamegraph/internal/sample"
	"github.com/getsentry/flamegraph/internal/view"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// AggregateFlags configure how profiles are aggregated and displayed.
type AggregateFlags struct {
	Orientation           string `help:"Root the tree at callers (top_down) or callees (bottom_up)." default:"top_down" enum:"top_down,bottom_up"`
	Sort                  string `help:"Order of sibling frames." default:"alphabetical" enum:"alphabetical,weight"`
	ApplicationFramesOnly bool   `help:"Hide system frames, their weight goes to the nearest application caller." short:"a"`
	MaxDepth              int    `help:"Cut stacks deeper than this many frames, 0 for no limit."`
	MaxNodes              int    `help:"Keep at most this many nodes, 0 for no limit."`
	Workers               int    `help:"Number of shards aggregated in parallel, derived from the number of profiles when 0."`
}

func (f AggregateFlags) config() flamegraph.Config {
	return flamegraph.Config{
		Orientation:           view.Orientation(f.Orientation),
		Sort:                  view.SortOrder(f.Sort),
		ApplicationFramesOnly: f.ApplicationFramesOnly,
		MaxDepth:              f.MaxDepth,
		MaxNodes:              f.MaxNodes,
		NumWorkers:            f.Workers,
	}
}

// readBatch decodes a JSON batch file, lz4 compressed if its extension is
// .lz4.
func readBatch(path string) (sample.Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return sample.Batch{}, err
	}
	defer f.Close()

	var r io.Reader = f
	if filepath.Ext(path) == ".lz4" {
		r = lz4.NewReader(f)
	}
	var b sample.Batch
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return sample.Batch{}, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

func aggregate(ctx context.Context, f AggregateFlags, path string) (*flamegraph.Result, error) {
	b, err := readBatch(path)
	if err != nil {
		return nil, err
	}
	r, err := flamegraph.Aggregate(ctx, b, f.config())
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("input", path).
		Int("profiles", r.Summary.Profiles).
		Int("accepted", r.Diagnostics.Accepted).
		Int("rejected", r.Diagnostics.Rejected).
		Interface("reasons", r.Diagnostics.Reasons).
		Msg("aggregated profiles")
	return r, nil
}
