package main

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/getsentry/sentry-go"
	"github.com/goccy/go-json"

	"github.com/getsentry/flamegraph/internal/flamegraph"
	"github.com/getsentry/flamegraph/internal/httputil"
	"github.com/getsentry/flamegraph/internal/view"
)

func captureException(hub *sentry.Hub, err error) {
	if hub != nil {
		hub.CaptureException(err)
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	ctx := r.Context()
	s := sentry.StartSpan(ctx, "json.marshal")
	b, err := json.Marshal(v)
	s.Finish()
	if err != nil {
		captureException(sentry.GetHubFromContext(ctx), err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

// configFromQuery reads the aggregation and display configuration of a
// query, server defaults are used for what the query doesn't set.
func (e *environment) configFromQuery(q url.Values) (flamegraph.Config, error) {
	cfg := flamegraph.Config{
		MinNumWorkers: e.config.MinWorkers,
	}
	var err error
	if cfg.Orientation, err = view.ParseOrientation(q.Get("orientation")); err != nil {
		return flamegraph.Config{}, err
	}
	if cfg.Sort, err = view.ParseSortOrder(q.Get("sort")); err != nil {
		return flamegraph.Config{}, err
	}
	if cfg.ApplicationFramesOnly, err = httputil.QueryBool(q, "application_frames_only", false); err != nil {
		return flamegraph.Config{}, err
	}
	if cfg.MaxDepth, err = httputil.QueryInt(q, "max_depth", e.config.MaxDepth); err != nil {
		return flamegraph.Config{}, err
	}
	if cfg.MaxNodes, err = httputil.QueryInt(q, "max_nodes", e.config.MaxNodes); err != nil {
		return flamegraph.Config{}, err
	}
	return cfg, nil
}

func parseOrganizationID(raw string) (uint64, error) {
	return strconv.ParseUint(raw, 10, 64)
}
