package main

import (
	"testing"
	"time"

	"github.com/getsentry/flamegraph/internal/testutil"
)

func TestReadServiceConfig(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("FLAMEGRAPH_MAX_NODES", "100")
	t.Setenv("FLAMEGRAPH_SESSION_TTL", "1m")

	got, err := readServiceConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := ServiceConfig{
		Environment:        "development",
		Port:               "9000",
		LogLevel:           "info",
		ReadWorkers:        20,
		MinWorkers:         5,
		MaxDepth:           256,
		MaxNodes:           100,
		SessionTTL:         time.Minute,
		AggregationTimeout: 30 * time.Second,
	}
	if diff := testutil.Diff(got, want); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
}
