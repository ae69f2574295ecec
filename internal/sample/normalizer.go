package sample

import (
	"github.com/getsentry/flamegraph/internal/frame"
	"github.com/getsentry/flamegraph/internal/platform"
)

type refKey struct {
	ref      int
	platform platform.Platform
}

// Normalizer converts raw samples into sequences of frame IDs. Shared
// frame references are resolved once per normalizer, so a descriptor
// repeated across thousands of samples is only classified and interned
// once.
type Normalizer struct {
	table  *frame.Table
	shared []frame.Raw
	refs   map[refKey]frame.ID
}

func NewNormalizer(table *frame.Table, shared Shared) *Normalizer {
	return &Normalizer{
		table:  table,
		shared: shared.Frames,
		refs:   make(map[refKey]frame.ID),
	}
}

// Normalize returns the valid samples of p, root to leaf. index is the
// position of p in its batch. Rejected samples are counted in the returned
// diagnostics.
func (n *Normalizer) Normalize(index int, p RawProfile) ([]Sample, Diagnostics) {
	var d Diagnostics
	samples := make([]Sample, 0, len(p.Samples))
	for _, rs := range p.Samples {
		stack, err := n.stack(p, rs)
		if err != nil {
			d.Record(err)
			continue
		}
		s := Sample{
			Stack:   stack,
			Weight:  p.weight(rs),
			Profile: index,
		}
		if err := s.Validate(); err != nil {
			d.Record(err)
			continue
		}
		d.Accept(s.Weight)
		samples = append(samples, s)
	}
	return samples, d
}

func (n *Normalizer) stack(p RawProfile, rs RawSample) ([]frame.ID, error) {
	size := len(rs.Stack)
	if size == 0 {
		size = len(rs.Frames)
	}
	if size == 0 {
		return nil, ErrEmptyStack
	}
	stack := make([]frame.ID, size)
	for i := 0; i < size; i++ {
		var id frame.ID
		if len(rs.Stack) > 0 {
			ref := rs.Stack[i]
			if ref < 0 || ref >= len(n.shared) {
				return nil, ErrInvalidFrameRef
			}
			id = n.resolve(ref, p.Platform)
		} else {
			id = n.table.Intern(rs.Frames[i].Frame(p.Platform))
		}
		if p.LeafFirst {
			stack[size-1-i] = id
		} else {
			stack[i] = id
		}
	}
	return stack, nil
}

func (n *Normalizer) resolve(ref int, p platform.Platform) frame.ID {
	k := refKey{ref: ref, platform: p}
	if id, ok := n.refs[k]; ok {
		return id
	}
	id := n.table.Intern(n.shared[ref].Frame(p))
	n.refs[k] = id
	return id
}
