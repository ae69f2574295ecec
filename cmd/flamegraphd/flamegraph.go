package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/goccy/go-json"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	"github.com/getsentry/flamegraph/internal/flamegraph"
	"github.com/getsentry/flamegraph/internal/metrics"
	"github.com/getsentry/flamegraph/internal/navigation"
	"github.com/getsentry/flamegraph/internal/profile"
	"github.com/getsentry/flamegraph/internal/sample"
	"github.com/getsentry/flamegraph/internal/view"
)

type (
	postFlamegraphBody struct {
		Batch           *sample.Batch       `json:"batch"`
		Transaction     []profile.Candidate `json:"transaction"`
		GenerateMetrics bool                `json:"generate_metrics"`
	}

	postFlamegraphResponse struct {
		SessionID   string                    `json:"session_id"`
		State       navigation.State          `json:"state"`
		View        view.View                 `json:"view"`
		Summary     flamegraph.Summary        `json:"summary"`
		Diagnostics sample.Diagnostics        `json:"diagnostics"`
		Storage     *profile.LoadStats        `json:"storage,omitempty"`
		Functions   []metrics.FunctionMetrics `json:"functions,omitempty"`
	}
)

func (e *environment) postFlamegraph(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hub := sentry.GetHubFromContext(ctx)
	ps := httprouter.ParamsFromContext(ctx)
	rawOrganizationID := ps.ByName("organization_id")
	organizationID, err := parseOrganizationID(rawOrganizationID)
	if err != nil {
		captureException(hub, err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if hub != nil {
		hub.Scope().SetTag("organization_id", rawOrganizationID)
	}

	q := r.URL.Query()
	cfg, err := e.configFromQuery(q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var body postFlamegraphBody
	s := sentry.StartSpan(ctx, "processing")
	s.Description = "Decoding data"
	err = json.NewDecoder(r.Body).Decode(&body)
	s.Finish()
	if err != nil {
		captureException(hub, err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if body.Batch == nil && len(body.Transaction) == 0 {
		http.Error(w, "expected a batch or transaction profiles", http.StatusBadRequest)
		return
	}
	if len(body.Transaction) > 0 && e.storage == nil {
		http.Error(w, "no profile storage configured", http.StatusBadRequest)
		return
	}
	cfg.GenerateMetrics = body.GenerateMetrics

	var stats *profile.LoadStats
	fetch := func(ctx context.Context) (sample.Batch, error) {
		var batch sample.Batch
		if body.Batch != nil {
			batch = *body.Batch
		}
		if len(body.Transaction) == 0 {
			return batch, nil
		}
		s := sentry.StartSpan(ctx, "storage.read")
		s.Description = "Loading profiles"
		loaded, st, err := profile.Load(ctx, e.storage, organizationID, body.Transaction, e.readJobs, func(err error) {
			captureException(hub, err)
		})
		s.Finish()
		if err != nil {
			return sample.Batch{}, err
		}
		stats = &st
		if body.Batch == nil {
			return loaded, nil
		}
		batch.Append(loaded)
		return batch, nil
	}

	loader := &flamegraph.Loader{}
	if clientID := q.Get("client_id"); clientID != "" {
		loader = e.loaders.GetOrCreate(clientID, func() *flamegraph.Loader {
			return &flamegraph.Loader{}
		})
	}
	lctx, cancel := context.WithTimeout(ctx, e.config.AggregationTimeout)
	defer cancel()
	result, err := loader.Load(lctx, fetch, cfg)
	switch {
	case errors.Is(err, flamegraph.ErrSuperseded):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, context.DeadlineExceeded):
		captureException(hub, err)
		w.WriteHeader(http.StatusGatewayTimeout)
		return
	case errors.Is(err, context.Canceled):
		log.Debug().Str("organization_id", rawOrganizationID).Msg("flamegraph request cancelled")
		return
	case err != nil:
		captureException(hub, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	session := flamegraph.NewSession(result)
	e.sessions.Put(session.ID, session)
	snapshot := session.Snapshot()

	log.Info().
		Str("organization_id", rawOrganizationID).
		Str("session_id", session.ID).
		Int("profiles", result.Summary.Profiles).
		Int("rejected_samples", result.Diagnostics.Rejected).
		Bool("truncated", result.Summary.Truncated).
		Msg("flamegraph session created")

	writeJSON(w, r, http.StatusOK, postFlamegraphResponse{
		SessionID:   session.ID,
		State:       snapshot.State,
		View:        snapshot.View,
		Summary:     result.Summary,
		Diagnostics: result.Diagnostics,
		Storage:     stats,
		Functions:   result.Functions,
	})
}
