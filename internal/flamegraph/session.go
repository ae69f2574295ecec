package flamegraph

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/getsentry/flamegraph/internal/navigation"
	"github.com/getsentry/flamegraph/internal/speedscope"
	"github.com/getsentry/flamegraph/internal/view"
)

type (
	// Session is an aggregated result and the navigation state of its single
	// consumer.
	Session struct {
		ID        string
		CreatedAt time.Time

		result    *Result
		mu        sync.Mutex
		navigator *navigation.Navigator
	}

	Snapshot struct {
		State       navigation.State `json:"state"`
		View        view.View        `json:"view"`
		Projections int              `json:"projections"`
	}
)

func NewSession(r *Result) *Session {
	return &Session{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		result:    r,
		navigator: r.Navigator(),
	}
}

func (s *Session) Result() *Result {
	return s.result
}

// Navigate applies fn to the navigator and returns the resulting state.
func (s *Session) Navigate(fn func(n *navigation.Navigator) error) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(s.navigator); err != nil {
		return Snapshot{}, err
	}
	return s.snapshot(), nil
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Session) snapshot() Snapshot {
	return Snapshot{
		State:       s.navigator.State(),
		View:        s.navigator.View(),
		Projections: s.navigator.Projections(),
	}
}

// Speedscope exports the whole current projection, ignoring the focus.
func (s *Session) Speedscope() speedscope.Output {
	s.mu.Lock()
	v := s.navigator.Projection()
	s.mu.Unlock()
	return speedscope.FromView(s.ID, v, s.result.Unit)
}
