package navigation

import (
	"github.com/getsentry/flamegraph/internal/calltree"
	"github.com/getsentry/flamegraph/internal/frame"
	"github.com/getsentry/flamegraph/internal/view"
)

type (
	// Preferences is the initial display state of a navigator.
	Preferences struct {
		Orientation        view.Orientation `json:"orientation"`
		Sort               view.SortOrder   `json:"sort"`
		FrameFilterEnabled bool             `json:"application_frames_only"`
	}

	State struct {
		Focus              view.Path        `json:"focus"`
		Orientation        view.Orientation `json:"orientation"`
		Sort               view.SortOrder   `json:"sort"`
		FrameFilterEnabled bool             `json:"application_frames_only"`
	}

	// Navigator holds the display state of an aggregated tree. Every
	// transition projects the tree again, the tree itself is never
	// rebuilt. A Navigator is not safe for concurrent use.
	Navigator struct {
		tree        *calltree.Tree
		table       *frame.Table
		filter      view.FrameFilter
		state       State
		projected   view.View
		projections int
	}
)

func New(tree *calltree.Tree, table *frame.Table, prefs Preferences) *Navigator {
	n := &Navigator{
		tree:   tree,
		table:  table,
		filter: view.ApplicationOnly,
		state: State{
			Orientation:        prefs.Orientation,
			Sort:               prefs.Sort,
			FrameFilterEnabled: prefs.FrameFilterEnabled,
		},
	}
	if n.state.Orientation == "" {
		n.state.Orientation = view.TopDown
	}
	if n.state.Sort == "" {
		n.state.Sort = view.Alphabetical
	}
	n.project()
	return n
}

func (n *Navigator) project() {
	opts := view.Options{
		Orientation: n.state.Orientation,
		Sort:        n.state.Sort,
	}
	if n.state.FrameFilterEnabled {
		opts.Filter = n.filter
	}
	n.projected = view.Project(n.tree, n.table, opts)
	n.projections++
	if len(n.state.Focus) > 0 && n.projected.Find(n.state.Focus) == nil {
		n.state.Focus = nil
	}
}

// ZoomIn focuses on the node at p. It returns false, leaving the state
// untouched, if no such node exists in the current view.
func (n *Navigator) ZoomIn(p view.Path) bool {
	if n.projected.Find(p) == nil {
		return false
	}
	n.state.Focus = append(view.Path(nil), p...)
	n.project()
	return true
}

func (n *Navigator) ZoomOut() {
	n.state.Focus = nil
	n.project()
}

func (n *Navigator) SetOrientation(o view.Orientation) {
	n.state.Orientation = o
	n.project()
}

func (n *Navigator) SetSort(s view.SortOrder) {
	n.state.Sort = s
	n.project()
}

func (n *Navigator) ToggleFrameFilter() {
	n.state.FrameFilterEnabled = !n.state.FrameFilterEnabled
	n.project()
}

// View returns the focused part of the current projection.
func (n *Navigator) View() view.View {
	v, ok := n.projected.Focus(n.state.Focus)
	if !ok {
		return n.projected
	}
	return v
}

// Projection returns the whole current projection, ignoring the focus.
func (n *Navigator) Projection() view.View {
	return n.projected
}

func (n *Navigator) State() State {
	s := n.state
	s.Focus = make(view.Path, len(n.state.Focus))
	copy(s.Focus, n.state.Focus)
	return s
}

// Projections returns how many times the tree was projected.
func (n *Navigator) Projections() int {
	return n.projections
}
