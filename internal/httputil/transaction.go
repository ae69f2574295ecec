package httputil

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/julienschmidt/httprouter"
)

// HTTPStatusCodeTag is the name of the HTTP status code tag.
const HTTPStatusCodeTag = "http.response.status_code"

// SetHTTPStatusCodeTag sets the status code tag for the current request to the top-level transaction.
// TODO: Move this to the SDK itself.
func SetHTTPStatusCodeTag(e *sentry.Event, hint *sentry.EventHint) *sentry.Event {
	if hint == nil || hint.Response == nil {
		return e
	}
	if e.Tags == nil {
		e.Tags = make(map[string]string)
	}
	if _, exists := e.Tags[HTTPStatusCodeTag]; !exists {
		e.Tags[HTTPStatusCodeTag] = strconv.Itoa(hint.Response.StatusCode)
	}
	return e
}

// AnonymizedPath replaces every route parameter value in path with the name
// of the parameter.
func AnonymizedPath(path string, ps httprouter.Params) string {
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		for _, p := range ps {
			if p.Value == segment {
				segments[i] = ":" + p.Key
				break
			}
		}
	}
	return strings.Join(segments, "/")
}

// AnonymizeTransactionName names the transaction after the route instead of
// the requested path so session and organization ids don't end up in it.
func AnonymizeTransactionName(handler http.HandlerFunc) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		name := r.Method + " " + AnonymizedPath(r.URL.Path, httprouter.ParamsFromContext(ctx))
		if transaction := sentry.TransactionFromContext(ctx); transaction != nil {
			transaction.Name = name
		}
		handler(w, r)
	})
}
