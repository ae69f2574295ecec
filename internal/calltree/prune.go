package calltree

import (
	"container/heap"
	"encoding/binary"
	"hash/fnv"
)

// leafHeap orders removable leaves, the first one is pruned first.
type leafHeap struct {
	nodes        []Node
	fingerprints []uint64
	ids          []NodeID
}

func (h *leafHeap) Len() int { return len(h.ids) }

// Less puts the lightest leaf first. Ties go to the deepest leaf, then to
// the highest frame ID, then to the path fingerprint, so the pruned set only
// depends on the shape and weights of the tree, never on insertion order.
func (h *leafHeap) Less(i, j int) bool {
	a, b := h.nodes[h.ids[i]], h.nodes[h.ids[j]]
	if a.TotalWeight != b.TotalWeight {
		return a.TotalWeight < b.TotalWeight
	}
	if a.Depth != b.Depth {
		return a.Depth > b.Depth
	}
	if a.Frame != b.Frame {
		return a.Frame > b.Frame
	}
	return h.fingerprints[h.ids[i]] < h.fingerprints[h.ids[j]]
}

func (h *leafHeap) Swap(i, j int) { h.ids[i], h.ids[j] = h.ids[j], h.ids[i] }

func (h *leafHeap) Push(x interface{}) { h.ids = append(h.ids, x.(NodeID)) }

func (h *leafHeap) Pop() interface{} {
	last := h.ids[len(h.ids)-1]
	h.ids = h.ids[:len(h.ids)-1]
	return last
}

// fingerprints hashes the path of every node.
func fingerprints(nodes []Node) []uint64 {
	fps := make([]uint64, len(nodes))
	h := fnv.New64a()
	buffer := make([]byte, 12)
	for i := 1; i < len(nodes); i++ {
		n := nodes[i]
		binary.LittleEndian.PutUint64(buffer, fps[n.Parent])
		binary.LittleEndian.PutUint32(buffer[8:], uint32(n.Frame))
		h.Reset()
		_, _ = h.Write(buffer)
		fps[i] = h.Sum64()
	}
	return fps
}

// prune removes leaves until at most maxNodes nodes remain besides the root.
// A removed leaf folds its weight into its parent's self weight, so totals
// are preserved all the way up.
func prune(t *Tree, maxNodes int) {
	nodes := t.nodes
	remaining := make([]int, len(nodes))
	h := &leafHeap{nodes: nodes, fingerprints: fingerprints(nodes)}
	for i := 1; i < len(nodes); i++ {
		remaining[i] = len(nodes[i].children)
		if remaining[i] == 0 {
			h.ids = append(h.ids, NodeID(i))
		}
	}
	heap.Init(h)

	removed := make([]bool, len(nodes))
	for count := len(nodes) - 1; count > maxNodes; count-- {
		id := heap.Pop(h).(NodeID)
		removed[id] = true
		parent := nodes[id].Parent
		nodes[parent].SelfWeight += nodes[id].TotalWeight
		if parent == RootID {
			continue
		}
		remaining[parent]--
		if remaining[parent] == 0 {
			heap.Push(h, parent)
		}
	}

	// compact the arena, parents keep preceding their children
	mapped := make([]NodeID, len(nodes))
	compacted := make([]Node, 0, maxNodes+1)
	for i, n := range nodes {
		if removed[i] {
			continue
		}
		mapped[i] = NodeID(len(compacted))
		if i != int(RootID) {
			n.Parent = mapped[n.Parent]
		}
		children := n.children[:0]
		for _, c := range n.children {
			if !removed[c] {
				children = append(children, c)
			}
		}
		n.children = children
		compacted = append(compacted, n)
	}
	for i := range compacted {
		for j, c := range compacted[i].children {
			compacted[i].children[j] = mapped[c]
		}
	}
	t.nodes = compacted
	t.truncated = true
}
