package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/goccy/go-json"
	"github.com/julienschmidt/httprouter"

	"github.com/getsentry/flamegraph/internal/flamegraph"
	"github.com/getsentry/flamegraph/internal/metrics"
	"github.com/getsentry/flamegraph/internal/navigation"
	"github.com/getsentry/flamegraph/internal/view"
)

const (
	actionZoomIn            = "zoom_in"
	actionZoomOut           = "zoom_out"
	actionSetOrientation    = "set_orientation"
	actionSetSort           = "set_sort"
	actionToggleFrameFilter = "toggle_frame_filter"
)

var errUnknownAction = errors.New("unknown navigation action")

type (
	navigationBody struct {
		Action string    `json:"action"`
		Path   view.Path `json:"path"`
		Value  string    `json:"value"`
	}

	sessionResponse struct {
		SessionID string             `json:"session_id"`
		Summary   flamegraph.Summary `json:"summary"`
		flamegraph.Snapshot
	}
)

// session returns the session of the request, writing a 404 if it doesn't
// exist or expired.
func (e *environment) session(w http.ResponseWriter, r *http.Request) (*flamegraph.Session, bool) {
	ctx := r.Context()
	sessionID := httprouter.ParamsFromContext(ctx).ByName("session_id")
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.Scope().SetTag("session_id", sessionID)
	}
	s, ok := e.sessions.Get(sessionID)
	if !ok {
		http.Error(w, fmt.Sprintf("session %s not found", sessionID), http.StatusNotFound)
		return nil, false
	}
	return s, true
}

func newSessionResponse(s *flamegraph.Session, snapshot flamegraph.Snapshot) sessionResponse {
	return sessionResponse{
		SessionID: s.ID,
		Summary:   s.Result().Summary,
		Snapshot:  snapshot,
	}
}

func (e *environment) getSession(w http.ResponseWriter, r *http.Request) {
	s, ok := e.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, newSessionResponse(s, s.Snapshot()))
}

func applyNavigation(n *navigation.Navigator, body navigationBody) error {
	switch body.Action {
	case actionZoomIn:
		n.ZoomIn(body.Path)
	case actionZoomOut:
		n.ZoomOut()
	case actionSetOrientation:
		o, err := view.ParseOrientation(body.Value)
		if err != nil {
			return err
		}
		n.SetOrientation(o)
	case actionSetSort:
		order, err := view.ParseSortOrder(body.Value)
		if err != nil {
			return err
		}
		n.SetSort(order)
	case actionToggleFrameFilter:
		n.ToggleFrameFilter()
	default:
		return fmt.Errorf("%w: %q", errUnknownAction, body.Action)
	}
	return nil
}

func (e *environment) postNavigation(w http.ResponseWriter, r *http.Request) {
	s, ok := e.session(w, r)
	if !ok {
		return
	}

	var body navigationBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	span := sentry.StartSpan(r.Context(), "processing")
	span.Description = "Projecting view"
	snapshot, err := s.Navigate(func(n *navigation.Navigator) error {
		return applyNavigation(n, body)
	})
	span.Finish()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, r, http.StatusOK, newSessionResponse(s, snapshot))
}

func (e *environment) getSpeedscope(w http.ResponseWriter, r *http.Request) {
	s, ok := e.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, s.Speedscope())
}

func (e *environment) getFunctions(w http.ResponseWriter, r *http.Request) {
	s, ok := e.session(w, r)
	if !ok {
		return
	}
	functions := s.Result().Functions
	if functions == nil {
		functions = []metrics.FunctionMetrics{}
	}
	writeJSON(w, r, http.StatusOK, struct {
		Functions []metrics.FunctionMetrics `json:"functions"`
	}{
		Functions: functions,
	})
}
