package main

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/getsentry/flamegraph/internal/flamegraph"
	"github.com/getsentry/flamegraph/internal/frame"
	"github.com/getsentry/flamegraph/internal/profile"
	"github.com/getsentry/flamegraph/internal/sample"
	"github.com/getsentry/flamegraph/internal/testutil"
	"github.com/getsentry/flamegraph/internal/view"
)

func TestPostFlamegraph(t *testing.T) {
	env, h := newTestEnvironment(t)
	w := do(t, h, http.MethodPost, "/organizations/1/flamegraph?client_id=test", postFlamegraphBody{
		Batch:           testBatch(),
		GenerateMetrics: true,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var got postFlamegraphResponse
	decode(t, w, &got)
	wantView := view.View{
		TotalWeight: 3,
		Nodes: []*view.Node{
			{Frame: 0, Name: "A", TotalWeight: 3, Children: []*view.Node{
				{Frame: 1, Name: "B", TotalWeight: 3, Children: []*view.Node{
					{Frame: 2, Name: "C", SelfWeight: 1, TotalWeight: 1},
					{Frame: 3, Name: "D", SelfWeight: 2, TotalWeight: 2},
				}},
			}},
		},
	}
	if diff := testutil.Diff(got.View, wantView); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
	if diff := testutil.Diff(got.Summary, flamegraph.Summary{TotalWeight: 3, FrameCount: 4, Profiles: 2}); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
	if got.Diagnostics.Accepted != 2 || got.Storage != nil || len(got.Functions) != 2 {
		t.Fatalf("unexpected response %+v", got)
	}
	if _, ok := env.sessions.Get(got.SessionID); !ok {
		t.Fatal("the session should be stored")
	}
	if env.loaders.Len() != 1 {
		t.Fatalf("expected a loader for the client, got %d", env.loaders.Len())
	}
}

func TestPostFlamegraphFromStorage(t *testing.T) {
	env, h := newTestEnvironment(t)
	ctx := context.Background()
	candidates := []profile.Candidate{
		{ProjectID: 1, ProfileID: uuid.New().String()},
		{ProjectID: 2, ProfileID: uuid.New().String()},
	}
	for _, c := range candidates {
		stored := sample.Batch{
			Shared:   sample.Shared{Frames: []frame.Raw{{Name: "main"}, {Name: "work"}}},
			Profiles: []sample.RawProfile{{Samples: []sample.RawSample{{Stack: []int{0, 1}, Weight: testutil.Float64(5)}}}},
		}
		if err := profile.Write(ctx, env.storage, 1, c, stored); err != nil {
			t.Fatalf("we should be able to write: %v", err)
		}
	}
	missing := profile.Candidate{ProjectID: 1, ProfileID: uuid.New().String()}

	w := do(t, h, http.MethodPost, "/organizations/1/flamegraph?sort=weight", postFlamegraphBody{
		Batch:       testBatch(),
		Transaction: append(candidates, missing),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	var got postFlamegraphResponse
	decode(t, w, &got)
	if diff := testutil.Diff(got.Storage, &profile.LoadStats{Loaded: 2, Missing: 1}); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
	if got.Summary.TotalWeight != 13 || got.Summary.Profiles != 4 {
		t.Fatalf("unexpected summary %+v", got.Summary)
	}
	// sorted by weight, main and its 10 units come first
	if got.View.Nodes[0].Name != "main" || got.View.Nodes[0].TotalWeight != 10 {
		t.Fatalf("unexpected first node %+v", got.View.Nodes[0])
	}
	if env.loaders.Len() != 0 {
		t.Fatal("requests without a client id shouldn't keep a loader")
	}
}

func TestPostFlamegraphBadRequest(t *testing.T) {
	_, h := newTestEnvironment(t)
	tests := []struct {
		name   string
		target string
		body   interface{}
	}{
		{name: "invalid organization", target: "/organizations/sentry/flamegraph", body: postFlamegraphBody{Batch: testBatch()}},
		{name: "invalid orientation", target: "/organizations/1/flamegraph?orientation=sideways", body: postFlamegraphBody{Batch: testBatch()}},
		{name: "invalid max_nodes", target: "/organizations/1/flamegraph?max_nodes=-3", body: postFlamegraphBody{Batch: testBatch()}},
		{name: "nothing to aggregate", target: "/organizations/1/flamegraph", body: postFlamegraphBody{}},
		{name: "not json", target: "/organizations/1/flamegraph", body: "profiles"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(t, h, http.MethodPost, tt.target, tt.body); w.Code != http.StatusBadRequest {
				t.Fatalf("expected %d, got %d", http.StatusBadRequest, w.Code)
			}
		})
	}
}
