package sample

import (
	"fmt"
	"math"

	"github.com/getsentry/flamegraph/internal/errorutil"
	"github.com/getsentry/flamegraph/internal/frame"
	"github.com/getsentry/flamegraph/internal/platform"
)

var (
	ErrEmptyStack      = fmt.Errorf("%w: empty stack", errorutil.ErrMalformedSample)
	ErrInvalidWeight   = fmt.Errorf("%w: weight must be a finite non-negative number", errorutil.ErrMalformedSample)
	ErrInvalidFrameRef = fmt.Errorf("%w: stack references an unknown frame", errorutil.ErrMalformedSample)
)

type (
	// Batch is a query result: every profile sampled for a transaction over
	// a time range, plus the frame descriptors their stacks reference.
	Batch struct {
		Shared   Shared       `json:"shared"`
		Profiles []RawProfile `json:"profiles"`
	}

	Shared struct {
		Frames []frame.Raw `json:"frames"`
	}

	RawProfile struct {
		ProfileID          string            `json:"profile_id"`
		ProjectID          uint64            `json:"project_id,omitempty"`
		Platform           platform.Platform `json:"platform,omitempty"`
		SamplingIntervalNS uint64            `json:"sampling_interval_ns,omitempty"`
		// LeafFirst is set when stacks are listed from the innermost frame
		// outwards, as the Sentry sample format stores them.
		LeafFirst bool        `json:"leaf_first,omitempty"`
		Samples   []RawSample `json:"samples"`
	}

	// RawSample is one captured stack. Stack holds indices into
	// Batch.Shared.Frames, Frames holds inline descriptors and is only
	// considered when Stack is empty.
	RawSample struct {
		Stack  []int       `json:"stack,omitempty"`
		Frames []frame.Raw `json:"frames,omitempty"`
		Weight *float64    `json:"weight,omitempty"`
	}

	// Sample is a normalized stack, root to leaf.
	Sample struct {
		Stack  []frame.ID
		Weight float64
		// Profile is the index of the source profile in Batch.Profiles.
		Profile int
	}
)

// Validate reports whether the sample can be aggregated.
func (s Sample) Validate() error {
	if len(s.Stack) == 0 {
		return ErrEmptyStack
	}
	if !ValidWeight(s.Weight) {
		return ErrInvalidWeight
	}
	return nil
}

func ValidWeight(w float64) bool {
	return !math.IsNaN(w) && !math.IsInf(w, 0) && w >= 0
}

// weight returns the weight of s: the reported weight if any, the sampling
// interval if the profile reports one, 1 otherwise.
func (p RawProfile) weight(s RawSample) float64 {
	if s.Weight != nil {
		return *s.Weight
	}
	if p.SamplingIntervalNS > 0 {
		return float64(p.SamplingIntervalNS)
	}
	return 1
}

// HasData returns false when the query matched nothing. An empty shared
// frames list with no inline frames means there is nothing to aggregate.
func (b Batch) HasData() bool {
	if len(b.Shared.Frames) > 0 {
		return true
	}
	for _, p := range b.Profiles {
		for _, s := range p.Samples {
			if len(s.Frames) > 0 {
				return true
			}
		}
	}
	return false
}

// SampleCount returns the number of raw samples across all profiles.
func (b Batch) SampleCount() int {
	var c int
	for _, p := range b.Profiles {
		c += len(p.Samples)
	}
	return c
}

// Append adds the profiles of other to b, rebasing their shared frame
// references on b's shared frames. other is left untouched.
func (b *Batch) Append(other Batch) {
	offset := len(b.Shared.Frames)
	b.Shared.Frames = append(b.Shared.Frames, other.Shared.Frames...)
	for _, p := range other.Profiles {
		samples := make([]RawSample, 0, len(p.Samples))
		for _, s := range p.Samples {
			if len(s.Stack) > 0 {
				stack := make([]int, len(s.Stack))
				for i, ref := range s.Stack {
					if ref < 0 || ref >= len(other.Shared.Frames) {
						// keep it invalid after rebasing
						stack[i] = -1
						continue
					}
					stack[i] = ref + offset
				}
				s.Stack = stack
			}
			samples = append(samples, s)
		}
		p.Samples = samples
		b.Profiles = append(b.Profiles, p)
	}
}
