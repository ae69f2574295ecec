package metrics

import (
	"errors"
	"math"
	"sort"

	"github.com/getsentry/flamegraph/internal/frame"
	"github.com/getsentry/flamegraph/internal/sample"
)

type (
	// functionStats holds the self weight of a frame, one value per profile
	// the frame was the leaf of a sample in.
	functionStats struct {
		Frame       frame.Frame
		SelfWeights []float64
		Sum         float64
		SampleCount uint64
		MaxVal      float64
		WorstID     string
		Examples    []string
	}

	// Aggregator computes function metrics across profiles. Frames are
	// keyed by identity rather than by ID so aggregators built over
	// different frame tables can be merged.
	Aggregator struct {
		MaxUniqueFunctions uint
		MaxNumOfExamples   uint

		functions map[frame.Frame]*functionStats
		order     []frame.Frame
	}

	FunctionMetrics struct {
		Name        string   `json:"name"`
		File        string   `json:"file,omitempty"`
		Line        uint32   `json:"line,omitempty"`
		Fingerprint string   `json:"fingerprint"`
		InApp       bool     `json:"in_app"`
		P75         float64  `json:"p75"`
		P95         float64  `json:"p95"`
		P99         float64  `json:"p99"`
		Avg         float64  `json:"avg"`
		Sum         float64  `json:"sum"`
		Count       uint64   `json:"count"`
		Worst       string   `json:"worst"`
		Examples    []string `json:"examples"`
	}
)

func NewAggregator(maxUniqueFunctions, maxNumOfExamples uint) *Aggregator {
	return &Aggregator{
		MaxUniqueFunctions: maxUniqueFunctions,
		MaxNumOfExamples:   maxNumOfExamples,
		functions:          make(map[frame.Frame]*functionStats),
	}
}

// AddProfile adds the self weight of every leaf frame of samples, all of
// them coming from the profile profileID.
func (ma *Aggregator) AddProfile(profileID string, table *frame.Table, samples []sample.Sample) {
	selfWeights := make(map[frame.ID]float64)
	counts := make(map[frame.ID]uint64)
	var leaves []frame.ID
	for _, s := range samples {
		if len(s.Stack) == 0 {
			continue
		}
		leaf := s.Stack[len(s.Stack)-1]
		if _, exists := counts[leaf]; !exists {
			leaves = append(leaves, leaf)
		}
		selfWeights[leaf] += s.Weight
		counts[leaf]++
	}
	for _, leaf := range leaves {
		ma.add(table.Frame(leaf), profileID, []float64{selfWeights[leaf]}, counts[leaf])
	}
}

func (ma *Aggregator) add(f frame.Frame, profileID string, selfWeights []float64, count uint64) {
	var sum float64
	for _, w := range selfWeights {
		sum += w
	}
	fn, ok := ma.functions[f]
	if !ok {
		fn = &functionStats{Frame: f, WorstID: profileID, MaxVal: sum}
		ma.functions[f] = fn
		ma.order = append(ma.order, f)
	} else if sum > fn.MaxVal {
		fn.MaxVal = sum
		fn.WorstID = profileID
	}
	fn.SelfWeights = append(fn.SelfWeights, selfWeights...)
	fn.Sum += sum
	fn.SampleCount += count
	if len(fn.Examples) < int(ma.MaxNumOfExamples) {
		fn.Examples = append(fn.Examples, profileID)
	}
}

// Merge adds every function of other. Profiles are expected to be disjoint
// between aggregators.
func (ma *Aggregator) Merge(other *Aggregator) {
	for _, f := range other.order {
		o := other.functions[f]
		fn, ok := ma.functions[f]
		if !ok {
			fn = &functionStats{Frame: f, MaxVal: o.MaxVal, WorstID: o.WorstID}
			ma.functions[f] = fn
			ma.order = append(ma.order, f)
		} else if o.MaxVal > fn.MaxVal {
			fn.MaxVal = o.MaxVal
			fn.WorstID = o.WorstID
		}
		fn.SelfWeights = append(fn.SelfWeights, o.SelfWeights...)
		fn.Sum += o.Sum
		fn.SampleCount += o.SampleCount
		for _, e := range o.Examples {
			if len(fn.Examples) >= int(ma.MaxNumOfExamples) {
				break
			}
			fn.Examples = append(fn.Examples, e)
		}
	}
}

// ToMetrics returns the metrics of the heaviest functions, heaviest first.
func (ma *Aggregator) ToMetrics() []FunctionMetrics {
	metrics := make([]FunctionMetrics, 0, len(ma.functions))
	for _, f := range ma.order {
		fn := ma.functions[f]
		values := make([]float64, len(fn.SelfWeights))
		copy(values, fn.SelfWeights)
		sort.Float64s(values)
		p75, _ := quantile(values, 0.75)
		p95, _ := quantile(values, 0.95)
		p99, _ := quantile(values, 0.99)
		metrics = append(metrics, FunctionMetrics{
			Name:        f.Name,
			File:        f.File,
			Line:        f.Line,
			Fingerprint: f.Fingerprint(),
			InApp:       f.IsApplication,
			P75:         p75,
			P95:         p95,
			P99:         p99,
			Avg:         fn.Sum / float64(len(values)),
			Sum:         fn.Sum,
			Count:       fn.SampleCount,
			Worst:       fn.WorstID,
			Examples:    fn.Examples,
		})
	}
	sort.SliceStable(metrics, func(i, j int) bool {
		return metrics[i].Sum > metrics[j].Sum
	})
	if len(metrics) > int(ma.MaxUniqueFunctions) {
		metrics = metrics[:ma.MaxUniqueFunctions]
	}
	return metrics
}

func quantile(values []float64, q float64) (float64, error) {
	if len(values) == 0 {
		return 0, errors.New("cannot compute percentile from empty list")
	}
	if q <= 0 || q > 1 {
		return 0, errors.New("q must be a value between 0 and 1.0")
	}
	index := int(math.Ceil(float64(len(values))*q)) - 1
	return values[index], nil
}
