package calltree

import (
	"github.com/getsentry/flamegraph/internal/frame"
	"github.com/getsentry/flamegraph/internal/sample"
)

type (
	// Options bounds the size of a tree. Zero means unbounded.
	Options struct {
		MaxDepth int `json:"max_depth,omitempty"`
		MaxNodes int `json:"max_nodes,omitempty"`
	}

	edge struct {
		parent NodeID
		frame  frame.ID
	}

	// Builder aggregates samples into a call tree. It is not safe for
	// concurrent use, shards aggregate into their own builder and get
	// merged afterwards.
	Builder struct {
		opts      Options
		nodes     []Node
		index     map[edge]NodeID
		truncated bool
	}
)

func NewBuilder(opts Options) *Builder {
	return &Builder{
		opts:  opts,
		nodes: []Node{rootNode()},
		index: make(map[edge]NodeID),
	}
}

// Aggregate folds every sample into a new tree. Malformed samples are
// skipped and reported in the diagnostics.
func Aggregate(samples []sample.Sample, opts Options) (*Tree, sample.Diagnostics) {
	var d sample.Diagnostics
	b := NewBuilder(opts)
	for _, s := range samples {
		if err := b.Add(s); err != nil {
			d.Record(err)
			continue
		}
		d.Accept(s.Weight)
	}
	return b.Build(), d
}

// Add folds a sample into the tree. A malformed sample is rejected and
// leaves the builder untouched.
func (b *Builder) Add(s sample.Sample) error {
	if err := s.Validate(); err != nil {
		return err
	}
	b.Fold(s.Stack, s.Weight)
	return nil
}

// Fold adds weight to the total of every node along stack and to the self
// weight of its last node. An empty stack attributes the weight to the root.
// The weight is not validated.
func (b *Builder) Fold(stack []frame.ID, weight float64) {
	if b.opts.MaxDepth > 0 && len(stack) > b.opts.MaxDepth {
		stack = stack[:b.opts.MaxDepth]
		b.truncated = true
	}
	current := RootID
	b.nodes[RootID].TotalWeight += weight
	for _, f := range stack {
		current = b.child(current, f)
		b.nodes[current].TotalWeight += weight
	}
	b.nodes[current].SelfWeight += weight
}

func (b *Builder) child(parent NodeID, f frame.ID) NodeID {
	k := edge{parent: parent, frame: f}
	if id, exists := b.index[k]; exists {
		return id
	}
	id := NodeID(len(b.nodes))
	b.nodes = append(b.nodes, Node{
		Frame:  f,
		Parent: parent,
		Depth:  b.nodes[parent].Depth + 1,
	})
	b.nodes[parent].children = append(b.nodes[parent].children, id)
	b.index[k] = id
	return id
}

// Merge adds every node of t to the builder, keyed by path, summing
// weights. remap translates t's frame IDs into the builder's frame table,
// a nil remap means both share the same table.
func (b *Builder) Merge(t *Tree, remap []frame.ID) {
	if t.truncated {
		b.truncated = true
	}
	mapped := make([]NodeID, len(t.nodes))
	mapped[RootID] = RootID
	b.nodes[RootID].SelfWeight += t.nodes[RootID].SelfWeight
	b.nodes[RootID].TotalWeight += t.nodes[RootID].TotalWeight
	for i := 1; i < len(t.nodes); i++ {
		n := t.nodes[i]
		parent := mapped[n.Parent]
		if b.opts.MaxDepth > 0 && n.Depth > b.opts.MaxDepth {
			// the ancestor at the depth cap already accounts for this
			// node in its total, only its self weight moves
			mapped[i] = parent
			b.nodes[parent].SelfWeight += n.SelfWeight
			b.truncated = true
			continue
		}
		f := n.Frame
		if remap != nil {
			f = remap[f]
		}
		id := b.child(parent, f)
		mapped[i] = id
		b.nodes[id].SelfWeight += n.SelfWeight
		b.nodes[id].TotalWeight += n.TotalWeight
	}
}

// Len returns the number of nodes aggregated so far, root included.
func (b *Builder) Len() int {
	return len(b.nodes)
}

// Build returns the aggregated tree, pruned to the node cap. The builder
// can keep aggregating afterwards without affecting the returned tree.
func (b *Builder) Build() *Tree {
	nodes := make([]Node, len(b.nodes))
	for i, n := range b.nodes {
		if len(n.children) > 0 {
			children := make([]NodeID, len(n.children))
			copy(children, n.children)
			n.children = children
		}
		nodes[i] = n
	}
	t := &Tree{nodes: nodes, truncated: b.truncated}
	if b.opts.MaxNodes > 0 && len(nodes)-1 > b.opts.MaxNodes {
		prune(t, b.opts.MaxNodes)
	}
	return t
}
