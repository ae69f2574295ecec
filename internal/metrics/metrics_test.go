package metrics

import (
	"testing"

	"github.com/getsentry/flamegraph/internal/frame"
	"github.com/getsentry/flamegraph/internal/sample"
	"github.com/getsentry/flamegraph/internal/testutil"
)

var (
	frameX = frame.Frame{Name: "x", File: "x.py"}
	frameA = frame.Frame{Name: "a", File: "a.py", Line: 12, IsApplication: true}
	frameB = frame.Frame{Name: "b", File: "b.py"}
)

type profileSamples struct {
	id      string
	samples []sample.Sample
}

func testProfiles() (*frame.Table, []profileSamples) {
	table := frame.NewTable()
	x := table.Intern(frameX)
	a := table.Intern(frameA)
	b := table.Intern(frameB)
	return table, []profileSamples{
		{
			id: "1",
			samples: []sample.Sample{
				{Stack: []frame.ID{x, a}, Weight: 10},
				{Stack: []frame.ID{a}, Weight: 5},
				{Stack: []frame.ID{b}, Weight: 45},
			},
		},
		{
			id: "2",
			samples: []sample.Sample{
				{Stack: []frame.ID{a}, Weight: 25},
				{Stack: []frame.ID{x, b}, Weight: 60},
			},
		},
		{
			id: "3",
			samples: []sample.Sample{
				{Stack: []frame.ID{x}, Weight: 3},
				{Stack: []frame.ID{}, Weight: 7},
			},
		},
	}
}

func TestAggregatorToMetrics(t *testing.T) {
	tests := []struct {
		name               string
		maxUniqueFunctions uint
		maxNumOfExamples   uint
		want               []FunctionMetrics
	}{
		{
			name:               "all functions",
			maxUniqueFunctions: 100,
			maxNumOfExamples:   5,
			want: []FunctionMetrics{
				{
					Name:        "b",
					File:        "b.py",
					Fingerprint: frameB.Fingerprint(),
					P75:         60,
					P95:         60,
					P99:         60,
					Avg:         52.5,
					Sum:         105,
					Count:       2,
					Worst:       "2",
					Examples:    []string{"1", "2"},
				},
				{
					Name:        "a",
					File:        "a.py",
					Line:        12,
					Fingerprint: frameA.Fingerprint(),
					InApp:       true,
					P75:         25,
					P95:         25,
					P99:         25,
					Avg:         20,
					Sum:         40,
					Count:       3,
					Worst:       "2",
					Examples:    []string{"1", "2"},
				},
				{
					Name:        "x",
					File:        "x.py",
					Fingerprint: frameX.Fingerprint(),
					P75:         3,
					P95:         3,
					P99:         3,
					Avg:         3,
					Sum:         3,
					Count:       1,
					Worst:       "3",
					Examples:    []string{"3"},
				},
			},
		},
		{
			name:               "top function with a single example",
			maxUniqueFunctions: 1,
			maxNumOfExamples:   1,
			want: []FunctionMetrics{
				{
					Name:        "b",
					File:        "b.py",
					Fingerprint: frameB.Fingerprint(),
					P75:         60,
					P95:         60,
					P99:         60,
					Avg:         52.5,
					Sum:         105,
					Count:       2,
					Worst:       "2",
					Examples:    []string{"1"},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, profiles := testProfiles()
			ma := NewAggregator(tt.maxUniqueFunctions, tt.maxNumOfExamples)
			for _, p := range profiles {
				ma.AddProfile(p.id, table, p.samples)
			}
			if diff := testutil.Diff(ma.ToMetrics(), tt.want); diff != "" {
				t.Fatalf("Result mismatch: got - want +\n%s", diff)
			}
		})
	}
}

func TestAggregatorMerge(t *testing.T) {
	table, profiles := testProfiles()
	direct := NewAggregator(100, 5)
	for _, p := range profiles {
		direct.AddProfile(p.id, table, p.samples)
	}

	// each shard interns frames into its own table
	merged := NewAggregator(100, 5)
	for _, shard := range [][]profileSamples{profiles[:1], profiles[1:]} {
		local := frame.NewTable()
		ma := NewAggregator(100, 5)
		for _, p := range shard {
			samples := make([]sample.Sample, 0, len(p.samples))
			for _, s := range p.samples {
				stack := make([]frame.ID, 0, len(s.Stack))
				for _, id := range s.Stack {
					stack = append(stack, local.Intern(table.Frame(id)))
				}
				samples = append(samples, sample.Sample{Stack: stack, Weight: s.Weight})
			}
			ma.AddProfile(p.id, local, samples)
		}
		merged.Merge(ma)
	}

	if diff := testutil.Diff(merged.ToMetrics(), direct.ToMetrics()); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
}

func TestQuantile(t *testing.T) {
	values := []float64{1, 2, 3, 4, 7, 8, 10, 11, 20}
	tests := []struct {
		q       float64
		want    float64
		wantErr bool
	}{
		{q: 0.5, want: 7},
		{q: 0.75, want: 10},
		{q: 0.95, want: 20},
		{q: 1, want: 20},
		{q: 0, wantErr: true},
		{q: 1.5, wantErr: true},
	}
	for _, tt := range tests {
		got, err := quantile(values, tt.q)
		if (err != nil) != tt.wantErr {
			t.Fatalf("quantile(%v) error = %v, wantErr %v", tt.q, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("quantile(%v) = %v, want %v", tt.q, got, tt.want)
		}
	}
	if _, err := quantile(nil, 0.5); err == nil {
		t.Fatal("expected an error on an empty list")
	}
}
