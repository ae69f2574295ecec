package speedscope

import (
	"testing"

	"github.com/getsentry/flamegraph/internal/testutil"
	"github.com/getsentry/flamegraph/internal/view"
)

func TestFromView(t *testing.T) {
	tests := []struct {
		name string
		view view.View
		want Output
	}{
		{
			name: "shared prefix",
			view: view.View{
				TotalWeight: 3,
				Nodes: []*view.Node{
					{Frame: 0, Name: "A", File: "a.py", IsApplication: true, TotalWeight: 3, Children: []*view.Node{
						{Frame: 1, Name: "B", TotalWeight: 3, Children: []*view.Node{
							{Frame: 2, Name: "C", Line: 4, SelfWeight: 1, TotalWeight: 1},
							{Frame: 3, Name: "D", SelfWeight: 2, TotalWeight: 2},
						}},
					}},
				},
			},
			want: Output{
				Schema:   Schema,
				Exporter: "flamegraph",
				Name:     "test",
				Profiles: []SampledProfile{
					{
						EndValue: 3,
						Name:     "test",
						Samples:  [][]int{{0, 1, 2}, {0, 1, 3}},
						Type:     ProfileTypeSampled,
						Unit:     ValueUnitNanoseconds,
						Weights:  []float64{1, 2},
					},
				},
				Shared: SharedData{
					Frames: []Frame{
						{Name: "A", File: "a.py", IsApplication: true},
						{Name: "B"},
						{Name: "C", Line: 4},
						{Name: "D"},
					},
				},
			},
		},
		{
			name: "frame reused across branches and root weight",
			view: view.View{
				SelfWeight:  4,
				TotalWeight: 7,
				Nodes: []*view.Node{
					{Frame: 7, Name: "A", TotalWeight: 1, Children: []*view.Node{
						{Frame: 3, Name: "B", SelfWeight: 1, TotalWeight: 1},
					}},
					{Frame: 3, Name: "B", SelfWeight: 2, TotalWeight: 2},
				},
			},
			want: Output{
				Schema:   Schema,
				Exporter: "flamegraph",
				Name:     "test",
				Profiles: []SampledProfile{
					{
						EndValue: 7,
						Name:     "test",
						Samples:  [][]int{{}, {0, 1}, {1}},
						Type:     ProfileTypeSampled,
						Unit:     ValueUnitNanoseconds,
						Weights:  []float64{4, 1, 2},
					},
				},
				Shared: SharedData{
					Frames: []Frame{{Name: "A"}, {Name: "B"}},
				},
			},
		},
		{
			name: "empty view",
			view: view.View{},
			want: Output{
				Schema:   Schema,
				Exporter: "flamegraph",
				Name:     "test",
				Profiles: []SampledProfile{
					{
						Name:    "test",
						Samples: [][]int{},
						Type:    ProfileTypeSampled,
						Unit:    ValueUnitNanoseconds,
						Weights: []float64{},
					},
				},
				Shared: SharedData{Frames: []Frame{}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromView("test", tt.view, ValueUnitNanoseconds)
			if diff := testutil.Diff(got, tt.want); diff != "" {
				t.Fatalf("Result mismatch: got - want +\n%s", diff)
			}
		})
	}
}
