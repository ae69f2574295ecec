package sample

import (
	"errors"
	"fmt"
	"testing"

	"github.com/getsentry/flamegraph/internal/errorutil"
	"github.com/getsentry/flamegraph/internal/frame"
	"github.com/getsentry/flamegraph/internal/testutil"
)

func TestBatchHasData(t *testing.T) {
	tests := []struct {
		name  string
		batch Batch
		want  bool
	}{
		{name: "empty", batch: Batch{}, want: false},
		{
			name:  "profiles without frames",
			batch: Batch{Profiles: []RawProfile{{Samples: []RawSample{{Stack: []int{0}}}}}},
			want:  false,
		},
		{
			name:  "shared frames",
			batch: Batch{Shared: Shared{Frames: []frame.Raw{{Name: "a"}}}},
			want:  true,
		},
		{
			name:  "inline frames",
			batch: Batch{Profiles: []RawProfile{{Samples: []RawSample{{Frames: []frame.Raw{{Name: "a"}}}}}}},
			want:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.batch.HasData(); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestBatchAppend(t *testing.T) {
	b := Batch{
		Shared:   Shared{Frames: []frame.Raw{{Name: "a"}, {Name: "b"}}},
		Profiles: []RawProfile{{ProfileID: "1", Samples: []RawSample{{Stack: []int{0, 1}}}}},
	}
	other := Batch{
		Shared: Shared{Frames: []frame.Raw{{Name: "c"}}},
		Profiles: []RawProfile{{
			ProfileID: "2",
			Samples: []RawSample{
				{Stack: []int{0}},
				{Stack: []int{0, 3}},
				{Frames: []frame.Raw{{Name: "d"}}},
			},
		}},
	}

	b.Append(other)

	want := Batch{
		Shared: Shared{Frames: []frame.Raw{{Name: "a"}, {Name: "b"}, {Name: "c"}}},
		Profiles: []RawProfile{
			{ProfileID: "1", Samples: []RawSample{{Stack: []int{0, 1}}}},
			{
				ProfileID: "2",
				Samples: []RawSample{
					{Stack: []int{2}},
					{Stack: []int{2, -1}},
					{Frames: []frame.Raw{{Name: "d"}}},
				},
			},
		},
	}
	if diff := testutil.Diff(b, want); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
	if other.Profiles[0].Samples[0].Stack[0] != 0 {
		t.Fatal("append must not modify the appended batch")
	}
	if b.SampleCount() != 4 {
		t.Fatalf("expected 4 samples, got %d", b.SampleCount())
	}
}

func TestSampleValidate(t *testing.T) {
	if err := (Sample{}).Validate(); !errors.Is(err, ErrEmptyStack) {
		t.Fatalf("expected ErrEmptyStack, got %v", err)
	}
	err := (Sample{Stack: []frame.ID{0}, Weight: -2}).Validate()
	if !errors.Is(err, ErrInvalidWeight) || !errors.Is(err, errorutil.ErrMalformedSample) {
		t.Fatalf("expected a malformed sample error, got %v", err)
	}
	if err := (Sample{Stack: []frame.ID{0}, Weight: 2}).Validate(); err != nil {
		t.Fatalf("expected a valid sample, got %v", err)
	}
}

func TestDiagnostics(t *testing.T) {
	var d Diagnostics
	d.Accept(2)
	d.Record(ErrEmptyStack)
	d.Record(fmt.Errorf("%w: something else", errorutil.ErrMalformedSample))
	d.Record(errors.New("not a sample error"))

	other := Diagnostics{Accepted: 1, AcceptedWeight: 3, Rejected: 1, Reasons: map[string]int{ReasonEmptyStack: 1}}
	d.Merge(other)

	want := Diagnostics{
		Accepted:       2,
		AcceptedWeight: 5,
		Rejected:       3,
		Reasons:        map[string]int{ReasonEmptyStack: 2, ReasonMalformed: 1},
	}
	if diff := testutil.Diff(d, want); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
}
