package speedscope

import (
	"github.com/getsentry/flamegraph/internal/frame"
	"github.com/getsentry/flamegraph/internal/view"
)

const (
	Schema = "https://www.speedscope.app/file-format-schema.json"

	ValueUnitNanoseconds ValueUnit = "nanoseconds"
	ValueUnitNone        ValueUnit = "none"

	ProfileTypeSampled ProfileType = "sampled"
)

type (
	Frame struct {
		File          string `json:"file,omitempty"`
		IsApplication bool   `json:"is_application"`
		Line          uint32 `json:"line,omitempty"`
		Name          string `json:"name"`
	}

	SampledProfile struct {
		EndValue   float64     `json:"endValue"`
		Name       string      `json:"name"`
		Samples    [][]int     `json:"samples"`
		StartValue float64     `json:"startValue"`
		Type       ProfileType `json:"type"`
		Unit       ValueUnit   `json:"unit"`
		Weights    []float64   `json:"weights"`
	}

	SharedData struct {
		Frames []Frame `json:"frames"`
	}

	ProfileType string
	ValueUnit   string

	Output struct {
		Schema             string           `json:"$schema"`
		ActiveProfileIndex int              `json:"activeProfileIndex"`
		Exporter           string           `json:"exporter"`
		Name               string           `json:"name"`
		Profiles           []SampledProfile `json:"profiles"`
		Shared             SharedData       `json:"shared"`
	}
)

// FromView exports a view as a single sampled profile. Every node carrying
// self weight becomes one sample, in view order, so the time ordered
// rendering of the export matches the flamegraph.
func FromView(name string, v view.View, unit ValueUnit) Output {
	frames := make([]Frame, 0)
	framesIndex := make(map[frame.ID]int)
	p := SampledProfile{
		Name:    name,
		Samples: make([][]int, 0),
		Type:    ProfileTypeSampled,
		Unit:    unit,
		Weights: make([]float64, 0),
	}
	addSample := func(stack []int, weight float64) {
		cp := make([]int, len(stack))
		copy(cp, stack)
		p.Samples = append(p.Samples, cp)
		p.Weights = append(p.Weights, weight)
		p.EndValue += weight
	}

	if v.SelfWeight > 0 {
		addSample(nil, v.SelfWeight)
	}
	stack := make([]int, 0, 128)
	v.Walk(func(path view.Path, n *view.Node) {
		i, exists := framesIndex[n.Frame]
		if !exists {
			i = len(frames)
			framesIndex[n.Frame] = i
			frames = append(frames, Frame{
				File:          n.File,
				IsApplication: n.IsApplication,
				Line:          n.Line,
				Name:          n.Name,
			})
		}
		stack = append(stack[:len(path)-1], i)
		if n.SelfWeight > 0 {
			addSample(stack, n.SelfWeight)
		}
	})

	return Output{
		Schema:   Schema,
		Exporter: "flamegraph",
		Name:     name,
		Profiles: []SampledProfile{p},
		Shared:   SharedData{Frames: frames},
	}
}
