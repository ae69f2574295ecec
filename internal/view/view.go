package view

import (
	"fmt"
	"sort"
	"strings"

	"github.com/getsentry/flamegraph/internal/calltree"
	"github.com/getsentry/flamegraph/internal/frame"
)

type (
	Orientation string
	SortOrder   string

	// FrameFilter reports whether a frame survives projection.
	FrameFilter func(f frame.Frame) bool

	Options struct {
		Orientation Orientation
		Sort        SortOrder
		Filter      FrameFilter
	}

	// Path locates a node of a view by the frames leading to it, first
	// frame at the top of the view.
	Path []frame.ID

	Node struct {
		Frame         frame.ID `json:"frame"`
		Name          string   `json:"name"`
		File          string   `json:"file,omitempty"`
		Line          uint32   `json:"line,omitempty"`
		IsApplication bool     `json:"is_application"`
		SelfWeight    float64  `json:"self_weight"`
		TotalWeight   float64  `json:"total_weight"`
		Children      []*Node  `json:"children,omitempty"`
	}

	// View is an ordered projection of a call tree. SelfWeight is the
	// weight attributed to the virtual root itself.
	View struct {
		Nodes       []*Node `json:"nodes"`
		SelfWeight  float64 `json:"self_weight"`
		TotalWeight float64 `json:"total_weight"`
	}
)

const (
	TopDown  Orientation = "top_down"
	BottomUp Orientation = "bottom_up"

	Alphabetical SortOrder = "alphabetical"
	Weight       SortOrder = "weight"
)

func ParseOrientation(s string) (Orientation, error) {
	switch o := Orientation(s); o {
	case "":
		return TopDown, nil
	case TopDown, BottomUp:
		return o, nil
	}
	return "", fmt.Errorf("view: unknown orientation %q", s)
}

func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(s); o {
	case "":
		return Alphabetical, nil
	case Alphabetical, Weight:
		return o, nil
	}
	return "", fmt.Errorf("view: unknown sort order %q", s)
}

// ApplicationOnly keeps application frames.
func ApplicationOnly(f frame.Frame) bool {
	return f.IsApplication
}

// Project returns the tree ordered and oriented according to opts. The tree
// is never modified.
//
// A bottom-up view or a filtered view is a second aggregation over every
// self weighted path of the tree, reversed and reduced to its surviving
// frames. Distinct paths sharing a prefix once reversed or filtered merge
// again, and weight of elided frames lands on the nearest surviving
// ancestor, so the total weight is always conserved.
func Project(t *calltree.Tree, table *frame.Table, opts Options) View {
	if opts.Orientation == BottomUp || opts.Filter != nil {
		t = reaggregate(t, table, opts)
	}
	root := t.Root()
	return View{
		Nodes:       children(t, table, calltree.RootID, opts.Sort),
		SelfWeight:  root.SelfWeight,
		TotalWeight: root.TotalWeight,
	}
}

func reaggregate(t *calltree.Tree, table *frame.Table, opts Options) *calltree.Tree {
	var keep []bool
	if opts.Filter != nil {
		frames := table.Frames()
		keep = make([]bool, len(frames))
		for i, f := range frames {
			keep[i] = opts.Filter(f)
		}
	}

	b := calltree.NewBuilder(calltree.Options{})
	path := make([]frame.ID, 0, 64)
	t.Range(func(id calltree.NodeID, n calltree.Node) bool {
		if n.SelfWeight == 0 {
			return true
		}
		path = path[:0]
		for _, f := range t.Path(id) {
			if keep == nil || keep[f] {
				path = append(path, f)
			}
		}
		if opts.Orientation == BottomUp {
			for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
				path[i], path[j] = path[j], path[i]
			}
		}
		b.Fold(path, n.SelfWeight)
		return true
	})
	return b.Build()
}

func children(t *calltree.Tree, table *frame.Table, id calltree.NodeID, order SortOrder) []*Node {
	ids := t.Children(id)
	if len(ids) == 0 {
		return nil
	}
	nodes := make([]*Node, 0, len(ids))
	for _, c := range ids {
		n := t.Node(c)
		f := table.Frame(n.Frame)
		nodes = append(nodes, &Node{
			Frame:         n.Frame,
			Name:          f.Name,
			File:          f.File,
			Line:          f.Line,
			IsApplication: f.IsApplication,
			SelfWeight:    n.SelfWeight,
			TotalWeight:   n.TotalWeight,
			Children:      children(t, table, c, order),
		})
	}
	sortNodes(nodes, order)
	return nodes
}

func sortNodes(nodes []*Node, order SortOrder) {
	switch order {
	case Weight:
		sort.Slice(nodes, func(i, j int) bool {
			if nodes[i].TotalWeight != nodes[j].TotalWeight {
				return nodes[i].TotalWeight > nodes[j].TotalWeight
			}
			return nodes[i].Frame < nodes[j].Frame
		})
	default:
		sort.Slice(nodes, func(i, j int) bool {
			a, b := strings.ToLower(nodes[i].Name), strings.ToLower(nodes[j].Name)
			if a != b {
				return a < b
			}
			return nodes[i].Frame < nodes[j].Frame
		})
	}
}

// Find returns the node at path, nil if there is none.
func (v View) Find(p Path) *Node {
	if len(p) == 0 {
		return nil
	}
	nodes := v.Nodes
	var n *Node
	for _, f := range p {
		n = nil
		for _, c := range nodes {
			if c.Frame == f {
				n = c
				break
			}
		}
		if n == nil {
			return nil
		}
		nodes = n.Children
	}
	return n
}

// Focus returns the part of the view under path, the whole view for an
// empty path.
func (v View) Focus(p Path) (View, bool) {
	if len(p) == 0 {
		return v, true
	}
	n := v.Find(p)
	if n == nil {
		return View{}, false
	}
	return View{Nodes: []*Node{n}, TotalWeight: n.TotalWeight}, true
}

// Walk calls fn for every node, parents before their children, with the
// path leading to the node. The path is reused between calls.
func (v View) Walk(fn func(p Path, n *Node)) {
	path := make(Path, 0, 64)
	var walk func(nodes []*Node)
	walk = func(nodes []*Node) {
		for _, n := range nodes {
			path = append(path, n.Frame)
			fn(path, n)
			walk(n.Children)
			path = path[:len(path)-1]
		}
	}
	walk(v.Nodes)
}
