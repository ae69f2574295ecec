package flamegraph

import (
	"context"
	"errors"
	"sync"

	"github.com/getsentry/flamegraph/internal/sample"
)

// ErrSuperseded is returned by a load a newer one replaced while it was in
// flight. Its result is discarded.
var ErrSuperseded = errors.New("flamegraph: superseded by a newer query")

// Fetch returns the raw profiles of a query.
type Fetch func(ctx context.Context) (sample.Batch, error)

// Loader runs queries for a single consumer. Only the latest query may
// update the current result: starting a load cancels the one in flight.
type Loader struct {
	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	current    *Result
}

func (l *Loader) Load(ctx context.Context, fetch Fetch, cfg Config) (*Result, error) {
	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	l.generation++
	generation := l.generation
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.mu.Unlock()
	defer cancel()

	batch, err := fetch(ctx)
	var r *Result
	if err == nil {
		r, err = Aggregate(ctx, batch, cfg)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if generation != l.generation {
		return nil, ErrSuperseded
	}
	l.cancel = nil
	if err != nil {
		return nil, err
	}
	l.current = r
	return r, nil
}

// Current returns the result of the last load applied, nil if none was.
func (l *Loader) Current() *Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}
