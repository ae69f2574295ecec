package flamegraph

import (
	"context"
	"math"
	"strconv"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/getsentry/flamegraph/internal/calltree"
	"github.com/getsentry/flamegraph/internal/frame"
	"github.com/getsentry/flamegraph/internal/metrics"
	"github.com/getsentry/flamegraph/internal/navigation"
	"github.com/getsentry/flamegraph/internal/sample"
	"github.com/getsentry/flamegraph/internal/speedscope"
	"github.com/getsentry/flamegraph/internal/view"
)

const (
	maxUniqueFunctions   = 100
	maxNumOfExamples     = 5
	defaultMinNumWorkers = 5
)

type (
	Config struct {
		Orientation           view.Orientation `json:"orientation"`
		Sort                  view.SortOrder   `json:"sort"`
		ApplicationFramesOnly bool             `json:"application_frames_only"`
		MaxDepth              int              `json:"max_depth,omitempty"`
		MaxNodes              int              `json:"max_nodes,omitempty"`

		// NumWorkers is the number of shards aggregated in parallel. When
		// zero, it's derived from the number of profiles and MinNumWorkers.
		NumWorkers      int  `json:"-"`
		MinNumWorkers   int  `json:"-"`
		GenerateMetrics bool `json:"-"`
	}

	Summary struct {
		TotalWeight float64 `json:"total_weight"`
		FrameCount  int     `json:"frame_count"`
		Truncated   bool    `json:"truncated"`
		Profiles    int     `json:"profiles"`
	}

	// Result is an aggregated query result. It is never modified once
	// returned.
	Result struct {
		Tree        *calltree.Tree
		Table       *frame.Table
		Config      Config
		Diagnostics sample.Diagnostics
		Summary     Summary
		Functions   []metrics.FunctionMetrics
		Unit        speedscope.ValueUnit
	}

	shard struct {
		start, end int
	}

	partial struct {
		table       *frame.Table
		tree        *calltree.Tree
		diagnostics sample.Diagnostics
		metrics     *metrics.Aggregator
	}
)

// NumWorkers returns how many shards to aggregate numProfiles with, never
// less than minNumWorkers unless there are fewer profiles than that.
func NumWorkers(numProfiles, minNumWorkers int) int {
	if numProfiles < minNumWorkers {
		return numProfiles
	}
	v := int(math.Ceil((float64(numProfiles) / 100) * float64(minNumWorkers)))
	if v < minNumWorkers {
		return minNumWorkers
	}
	return v
}

func (c Config) Preferences() navigation.Preferences {
	return navigation.Preferences{
		Orientation:        c.Orientation,
		Sort:               c.Sort,
		FrameFilterEnabled: c.ApplicationFramesOnly,
	}
}

func (c Config) workers(numProfiles int) int {
	if c.NumWorkers > 0 {
		return c.NumWorkers
	}
	minNumWorkers := c.MinNumWorkers
	if minNumWorkers <= 0 {
		minNumWorkers = defaultMinNumWorkers
	}
	return NumWorkers(numProfiles, minNumWorkers)
}

func (c Config) treeOptions() calltree.Options {
	return calltree.Options{MaxDepth: c.MaxDepth, MaxNodes: c.MaxNodes}
}

func partition(n, workers int) []shard {
	if n == 0 {
		return nil
	}
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}
	shards := make([]shard, 0, workers)
	size, rest := n/workers, n%workers
	start := 0
	for i := 0; i < workers; i++ {
		end := start + size
		if i < rest {
			end++
		}
		shards = append(shards, shard{start: start, end: end})
		start = end
	}
	return shards
}

// Aggregate normalizes and aggregates every profile of batch into a single
// call tree. Profiles are split into contiguous shards aggregated in
// parallel, each with its own frame table. Partial trees are merged in shard
// order so frame IDs only depend on the batch. Malformed samples are skipped
// and counted, only a done context returns an error.
func Aggregate(ctx context.Context, batch sample.Batch, cfg Config) (*Result, error) {
	s := sentry.StartSpan(ctx, "processing")
	s.Description = "Aggregating profiles"
	defer s.Finish()

	shards := partition(len(batch.Profiles), cfg.workers(len(batch.Profiles)))
	partials := make([]partial, len(shards))
	g, gctx := errgroup.WithContext(s.Context())
	for i, sh := range shards {
		i, sh := i, sh
		g.Go(func() error {
			p, err := aggregateShard(gctx, batch, sh, cfg)
			if err != nil {
				return err
			}
			partials[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	table := frame.NewTable()
	b := calltree.NewBuilder(cfg.treeOptions())
	var d sample.Diagnostics
	var ma *metrics.Aggregator
	if cfg.GenerateMetrics {
		ma = metrics.NewAggregator(maxUniqueFunctions, maxNumOfExamples)
	}
	for _, p := range partials {
		b.Merge(p.tree, table.Absorb(p.table))
		d.Merge(p.diagnostics)
		if ma != nil {
			ma.Merge(p.metrics)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tree := b.Build()

	r := &Result{
		Tree:        tree,
		Table:       table,
		Config:      cfg,
		Diagnostics: d,
		Summary: Summary{
			TotalWeight: tree.TotalWeight(),
			FrameCount:  table.Len(),
			Truncated:   tree.Truncated(),
			Profiles:    len(batch.Profiles),
		},
		Unit: unit(batch),
	}
	if ma != nil {
		r.Functions = ma.ToMetrics()
	}

	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.Scope().SetTag("processed_profiles", strconv.Itoa(len(batch.Profiles)))
	}
	log.Debug().
		Int("profiles", len(batch.Profiles)).
		Int("shards", len(shards)).
		Int("accepted", d.Accepted).
		Int("rejected", d.Rejected).
		Int("nodes", tree.Len()).
		Bool("truncated", tree.Truncated()).
		Msg("aggregated flamegraph")
	return r, nil
}

func aggregateShard(ctx context.Context, batch sample.Batch, sh shard, cfg Config) (partial, error) {
	p := partial{table: frame.NewTable()}
	if cfg.GenerateMetrics {
		p.metrics = metrics.NewAggregator(maxUniqueFunctions, maxNumOfExamples)
	}
	n := sample.NewNormalizer(p.table, batch.Shared)
	// the node cap is only applied once all shards are merged
	b := calltree.NewBuilder(calltree.Options{MaxDepth: cfg.MaxDepth})
	for i := sh.start; i < sh.end; i++ {
		if err := ctx.Err(); err != nil {
			return partial{}, err
		}
		rp := batch.Profiles[i]
		samples, d := n.Normalize(i, rp)
		for _, s := range samples {
			b.Fold(s.Stack, s.Weight)
		}
		p.diagnostics.Merge(d)
		if p.metrics != nil {
			p.metrics.AddProfile(rp.ProfileID, p.table, samples)
		}
	}
	p.tree = b.Build()
	return p, nil
}

// unit returns nanoseconds when every profile is weighted by its sampling
// interval.
func unit(batch sample.Batch) speedscope.ValueUnit {
	if len(batch.Profiles) == 0 {
		return speedscope.ValueUnitNone
	}
	for _, p := range batch.Profiles {
		if p.SamplingIntervalNS == 0 {
			return speedscope.ValueUnitNone
		}
		for _, s := range p.Samples {
			if s.Weight != nil {
				return speedscope.ValueUnitNone
			}
		}
	}
	return speedscope.ValueUnitNanoseconds
}

// Navigator returns a navigator over the aggregated tree, initialized from
// the query configuration.
func (r *Result) Navigator() *navigation.Navigator {
	return navigation.New(r.Tree, r.Table, r.Config.Preferences())
}
