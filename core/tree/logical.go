package tree

// The logical view is the tree as it was before painting. Marker elements are
// dissolved into their parent and a run of adjacent text nodes, as left behind
// by splits, reads as one text node. Paths are encoded against this view so an
// anchor taken in a painted tree still decodes in a freshly parsed one.

// LogicalChildren returns parent's children with every marker element
// replaced by its own logical children.
func LogicalChildren(parent Node) []Node {
	if parent == nil {
		return nil
	}
	var out []Node
	for c := parent.FirstChild(); c != nil; c = c.NextSibling() {
		if IsMarker(c) {
			out = append(out, LogicalChildren(c)...)
			continue
		}
		out = append(out, c)
	}
	return out
}

// LogicalParent returns the nearest ancestor of n that is not a marker.
func LogicalParent(n Node) Node {
	if n == nil {
		return nil
	}
	p := n.Parent()
	for p != nil && IsMarker(p) {
		p = p.Parent()
	}
	return p
}

// TextRun returns the run of adjacent logical text siblings containing the
// text node n, and the rune offset at which n starts within the run.
func TextRun(n Node) (run []Node, offset int) {
	if n == nil || n.Kind() != KindText {
		return nil, 0
	}
	sibs := LogicalChildren(LogicalParent(n))
	at := -1
	for i, s := range sibs {
		if s == n {
			at = i
			break
		}
	}
	if at < 0 {
		return []Node{n}, 0
	}
	from, to := at, at+1
	for from > 0 && sibs[from-1].Kind() == KindText {
		from--
	}
	for to < len(sibs) && sibs[to].Kind() == KindText {
		to++
	}
	for _, s := range sibs[from:at] {
		offset += Len(s)
	}
	return sibs[from:to], offset
}
