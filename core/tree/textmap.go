package tree

import (
	"sort"
	"unicode/utf8"
)

// TextMap is a snapshot of a container's text nodes with their flattened
// rune offsets. It converts between live boundaries and character offsets
// into the container's text content.
//
// A TextMap is invalidated by any edit to the tree.
type TextMap struct {
	root  Node
	nodes []Node
	ends  []int // exclusive end offset of each node
	index map[Node]int
	runes []rune
}

// NewTextMap builds the text map for root.
func NewTextMap(q Query, root Node) *TextMap {
	m := &TextMap{root: root, index: make(map[Node]int)}
	if root == nil {
		return m
	}
	var total int
	for i, n := range q.PreOrderTextNodes(root) {
		data := n.Data()
		m.nodes = append(m.nodes, n)
		m.runes = append(m.runes, []rune(data)...)
		total += utf8.RuneCountInString(data)
		m.ends = append(m.ends, total)
		m.index[n] = i
	}
	return m
}

// Text returns the flattened text content.
func (m *TextMap) Text() string {
	return string(m.runes)
}

// Len returns the total rune count.
func (m *TextMap) Len() int {
	return len(m.runes)
}

// Nodes returns the text nodes in document order.
func (m *TextMap) Nodes() []Node {
	return m.nodes
}

// Slice returns the text between two flattened offsets, clamped.
func (m *TextMap) Slice(start, end int) string {
	start = clamp(start, 0, len(m.runes))
	end = clamp(end, start, len(m.runes))
	return string(m.runes[start:end])
}

// NodeRange returns the flattened [start, end) range of a text node.
func (m *TextMap) NodeRange(n Node) (start, end int, ok bool) {
	i, ok := m.index[n]
	if !ok {
		return 0, 0, false
	}
	return m.start(i), m.ends[i], true
}

func (m *TextMap) start(i int) int {
	if i == 0 {
		return 0
	}
	return m.ends[i-1]
}

// OffsetOf converts a boundary to a flattened offset. Element boundaries
// resolve to the offset of the first text at or after the child index.
func (m *TextMap) OffsetOf(b Boundary) (int, bool) {
	if b.Node == nil {
		return 0, false
	}
	if b.Node.Kind() == KindText {
		i, ok := m.index[b.Node]
		if !ok {
			return 0, false
		}
		return m.start(i) + clamp(b.Offset, 0, m.ends[i]-m.start(i)), true
	}
	if !Contains(m.root, b.Node) {
		return 0, false
	}
	var from Node
	if b.Offset < Len(b.Node) {
		from = ChildAt(b.Node, max(b.Offset, 0))
	} else {
		from = nextAfterSubtree(b.Node, m.root)
	}
	for cur := from; cur != nil; cur = nextAfterSubtree(cur, m.root) {
		found := -1
		WalkPreOrder(cur, func(n Node) bool {
			if i, ok := m.index[n]; ok {
				found = i
				return false
			}
			return true
		})
		if found >= 0 {
			return m.start(found), true
		}
	}
	return len(m.runes), true
}

// Interval converts a span to a flattened [start, end) interval with
// start <= end.
func (m *TextMap) Interval(s Span) (start, end int, ok bool) {
	start, ok = m.OffsetOf(s.Start)
	if !ok {
		return 0, 0, false
	}
	end, ok = m.OffsetOf(s.End)
	if !ok {
		return 0, 0, false
	}
	if start > end {
		start, end = end, start
	}
	return start, end, true
}

// Locate converts a flattened offset to a text boundary. At a node seam a
// start boundary lands at the beginning of the following node and an end
// boundary (preferEnd) at the end of the preceding one, so that neither picks
// an empty slice of a neighbour.
func (m *TextMap) Locate(offset int, preferEnd bool) (Boundary, bool) {
	if len(m.nodes) == 0 {
		return Boundary{}, false
	}
	offset = clamp(offset, 0, len(m.runes))
	n := len(m.nodes)
	var i int
	if preferEnd && offset > 0 {
		i = sort.Search(n, func(k int) bool { return m.ends[k] >= offset })
	} else {
		i = sort.Search(n, func(k int) bool { return m.ends[k] > offset })
	}
	if i >= n {
		// offset == total: end of the last non-empty node
		for k := n - 1; k >= 0; k-- {
			if m.ends[k] > m.start(k) {
				return Boundary{Node: m.nodes[k], Offset: m.ends[k] - m.start(k)}, true
			}
		}
		return Boundary{Node: m.nodes[0], Offset: 0}, true
	}
	return Boundary{Node: m.nodes[i], Offset: offset - m.start(i)}, true
}

// nextAfterSubtree returns the first node after n's subtree in document
// order, without leaving root.
func nextAfterSubtree(n, root Node) Node {
	for cur := n; cur != nil && cur != root; cur = cur.Parent() {
		if s := cur.NextSibling(); s != nil {
			return s
		}
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
