package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	gojson "github.com/goccy/go-json"

	"github.com/getsentry/flamegraph/internal/speedscope"
)

type SpeedscopeCmd struct {
	Input  string `arg:"" help:"JSON batch of profiles, .lz4 files are decompressed." type:"existingfile"`
	Output string `help:"Write the export to this file instead of stdout." short:"o" type:"path"`
}

func (c *SpeedscopeCmd) Run(ctx context.Context, w io.Writer, cli *CLI) error {
	r, err := aggregate(ctx, cli.Aggregate, c.Input)
	if err != nil {
		return err
	}
	name := strings.TrimSuffix(filepath.Base(c.Input), filepath.Ext(c.Input))
	out := speedscope.FromView(name, r.Navigator().Projection(), r.Unit)

	if c.Output != "" {
		f, err := os.Create(c.Output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return gojson.NewEncoder(w).Encode(out)
}
