package calltree

import (
	"fmt"
	"math"

	"github.com/getsentry/flamegraph/internal/errorutil"
	"github.com/getsentry/flamegraph/internal/frame"
)

type (
	// NodeID is the index of a node in the arena of its tree.
	NodeID int32

	// Node is one call stack prefix. Its identity is its path from the
	// root, the same frame can be found at many positions in a tree.
	Node struct {
		Frame       frame.ID `json:"frame"`
		Parent      NodeID   `json:"parent"`
		Depth       int      `json:"depth"`
		SelfWeight  float64  `json:"self_weight"`
		TotalWeight float64  `json:"total_weight"`

		children []NodeID
	}

	// Tree is an aggregated call tree. Nodes are stored in a single slice,
	// a parent is always stored before its children. A Tree is never
	// modified once built.
	Tree struct {
		nodes     []Node
		truncated bool
	}
)

const (
	RootID   NodeID = 0
	NoParent NodeID = -1
)

var errDataIntegrityInvariant = fmt.Errorf("calltree: %w", errorutil.ErrDataIntegrity)

func rootNode() Node {
	return Node{Frame: frame.NoID, Parent: NoParent}
}

func (t *Tree) Root() Node {
	return t.nodes[RootID]
}

func (t *Tree) Node(id NodeID) Node {
	return t.nodes[id]
}

// Children returns the children of id in first insertion order. The
// returned slice must not be modified.
func (t *Tree) Children(id NodeID) []NodeID {
	return t.nodes[id].children
}

// Child returns the child of parent carrying frame f.
func (t *Tree) Child(parent NodeID, f frame.ID) (NodeID, bool) {
	for _, c := range t.nodes[parent].children {
		if t.nodes[c].Frame == f {
			return c, true
		}
	}
	return 0, false
}

// Len returns the number of nodes, root included.
func (t *Tree) Len() int {
	return len(t.nodes)
}

func (t *Tree) TotalWeight() float64 {
	return t.nodes[RootID].TotalWeight
}

// Truncated reports whether a depth or node cap was hit while building.
func (t *Tree) Truncated() bool {
	return t.truncated
}

// Path returns the frames from the root (excluded) down to id.
func (t *Tree) Path(id NodeID) []frame.ID {
	depth := t.nodes[id].Depth
	path := make([]frame.ID, depth)
	for n := id; n != RootID; n = t.nodes[n].Parent {
		depth--
		path[depth] = t.nodes[n].Frame
	}
	return path
}

// Range calls fn for every node, parents before children, until fn
// returns false.
func (t *Tree) Range(fn func(id NodeID, n Node) bool) {
	for i, n := range t.nodes {
		if !fn(NodeID(i), n) {
			return
		}
	}
}

// Validate checks the weight invariants of every node.
func (t *Tree) Validate() error {
	if len(t.nodes) == 0 {
		return fmt.Errorf("%w: tree has no root", errDataIntegrityInvariant)
	}
	if root := t.nodes[RootID]; root.Frame != frame.NoID || root.Parent != NoParent {
		return fmt.Errorf("%w: root must not carry a frame", errDataIntegrityInvariant)
	}
	for i, n := range t.nodes {
		id := NodeID(i)
		if id != RootID {
			if n.Parent < 0 || n.Parent >= id {
				return fmt.Errorf("%w: node %d has parent %d", errDataIntegrityInvariant, id, n.Parent)
			}
			if n.Depth != t.nodes[n.Parent].Depth+1 {
				return fmt.Errorf("%w: node %d has depth %d", errDataIntegrityInvariant, id, n.Depth)
			}
		}
		if n.SelfWeight < 0 || n.TotalWeight < 0 {
			return fmt.Errorf("%w: node %d has a negative weight", errDataIntegrityInvariant, id)
		}
		sum := n.SelfWeight
		for _, c := range n.children {
			if t.nodes[c].Parent != id {
				return fmt.Errorf("%w: node %d lists %d as a child", errDataIntegrityInvariant, id, c)
			}
			sum += t.nodes[c].TotalWeight
		}
		if !almostEqual(sum, n.TotalWeight) {
			return fmt.Errorf("%w: node %d has total weight %v, self and children add up to %v", errDataIntegrityInvariant, id, n.TotalWeight, sum)
		}
	}
	return nil
}

func almostEqual(a, b float64) bool {
	if a == b {
		return true
	}
	return math.Abs(a-b) <= 1e-9*math.Max(math.Abs(a), math.Abs(b))
}
