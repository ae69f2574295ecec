package sample

import (
	"errors"

	"github.com/getsentry/flamegraph/internal/errorutil"
)

const (
	ReasonEmptyStack      = "empty_stack"
	ReasonInvalidWeight   = "invalid_weight"
	ReasonInvalidFrameRef = "invalid_frame_ref"
	ReasonMalformed       = "malformed"
)

// Diagnostics counts accepted and rejected samples of an aggregation.
type Diagnostics struct {
	Accepted       int            `json:"accepted"`
	AcceptedWeight float64        `json:"accepted_weight"`
	Rejected       int            `json:"rejected"`
	Reasons        map[string]int `json:"reasons,omitempty"`
}

func (d *Diagnostics) Accept(weight float64) {
	d.Accepted++
	d.AcceptedWeight += weight
}

// Record counts a rejected sample. Errors that are not malformed samples
// are ignored.
func (d *Diagnostics) Record(err error) {
	if !errors.Is(err, errorutil.ErrMalformedSample) {
		return
	}
	d.Rejected++
	if d.Reasons == nil {
		d.Reasons = make(map[string]int)
	}
	d.Reasons[Reason(err)]++
}

func (d *Diagnostics) Merge(other Diagnostics) {
	d.Accepted += other.Accepted
	d.AcceptedWeight += other.AcceptedWeight
	d.Rejected += other.Rejected
	if len(other.Reasons) == 0 {
		return
	}
	if d.Reasons == nil {
		d.Reasons = make(map[string]int, len(other.Reasons))
	}
	for reason, c := range other.Reasons {
		d.Reasons[reason] += c
	}
}

func Reason(err error) string {
	switch {
	case errors.Is(err, ErrEmptyStack):
		return ReasonEmptyStack
	case errors.Is(err, ErrInvalidWeight):
		return ReasonInvalidWeight
	case errors.Is(err, ErrInvalidFrameRef):
		return ReasonInvalidFrameRef
	}
	return ReasonMalformed
}
