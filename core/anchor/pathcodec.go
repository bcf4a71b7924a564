package anchor

import "github.com/FocuswithJustin/marginalia/core/tree"

// EncodePath returns the structural path from container to n. ok is false
// when n is not inside the container, is a marker, or is neither an element
// nor a text node; the caller should not anchor there.
//
// Siblings are counted only among nodes of the same kind and, for elements,
// the same tag. Inserting a differently-tagged sibling leaves the path valid;
// inserting a same-tag sibling before the node shifts it.
//
// Counting uses the logical view (see tree.LogicalChildren): markers are
// transparent and a run of adjacent text nodes is one step, so paths taken in
// a painted tree match the unpainted one.
func EncodePath(n tree.Node, c tree.Container) (NodePath, bool) {
	if n == nil || c == nil || tree.IsMarker(n) {
		return nil, false
	}
	root := c.Root()
	chain, ok := c.AncestorsUntil(n, root)
	if !ok {
		return nil, false
	}
	path := make(NodePath, 0, len(chain))
	parent := root
	for _, node := range chain {
		if tree.IsMarker(node) {
			continue
		}
		var step Step
		switch node.Kind() {
		case tree.KindText:
			step.Text = true
			run, _ := tree.TextRun(node)
			node = run[0]
		case tree.KindElement:
			step.Tag = node.Tag()
		default:
			return nil, false
		}
		step.Index = -1
		for i, s := range c.ChildrenOfKind(parent, step.kind(), step.Tag) {
			if s == node {
				step.Index = i
				break
			}
		}
		if step.Index < 0 {
			return nil, false
		}
		path = append(path, step)
		parent = node
	}
	return path, true
}

// DecodePath walks path from the container and returns the addressed node, or
// nil when any step cannot be satisfied because the tree changed shape. A
// text step returns the first node of its run.
func DecodePath(path NodePath, c tree.Container) tree.Node {
	if c == nil {
		return nil
	}
	cur := c.Root()
	for _, step := range path {
		if cur == nil || cur.Kind() != tree.KindElement {
			return nil
		}
		children := c.ChildrenOfKind(cur, step.kind(), step.Tag)
		if step.Index < 0 || step.Index >= len(children) {
			return nil
		}
		cur = children[step.Index]
	}
	return cur
}

// encodePoint turns a live boundary into a Point. Text offsets are counted
// from the start of the text run. A boundary on a marker element is moved to
// the text it addresses first.
func encodePoint(b tree.Boundary, c tree.Container, end bool) (Point, bool) {
	if tree.IsMarker(b.Node) {
		tm := tree.NewTextMap(c, c.Root())
		off, ok := tm.OffsetOf(b)
		if !ok {
			return Point{}, false
		}
		if b, ok = tm.Locate(off, end); !ok {
			return Point{}, false
		}
	}
	path, ok := EncodePath(b.Node, c)
	if !ok {
		return Point{}, false
	}
	offset := b.Offset
	if b.Node.Kind() == tree.KindText {
		_, before := tree.TextRun(b.Node)
		offset += before
	}
	return Point{Path: path, Offset: offset}, true
}

// DecodePoint resolves p to a live boundary without repairing its offset. A
// run offset is mapped onto the physical text node holding it; at a seam
// between two nodes the later one is chosen.
func DecodePoint(p Point, c tree.Container) (tree.Boundary, bool) {
	return decodePoint(p, c, false)
}

func decodePoint(p Point, c tree.Container, end bool) (tree.Boundary, bool) {
	n := DecodePath(p.Path, c)
	if n == nil {
		return tree.Boundary{}, false
	}
	if n.Kind() != tree.KindText {
		return tree.Boundary{Node: n, Offset: p.Offset}, true
	}
	run, _ := tree.TextRun(n)
	off := p.Offset
	for i, t := range run {
		l := tree.Len(t)
		if off < l || i == len(run)-1 || (end && off == l) {
			return tree.Boundary{Node: t, Offset: off}, true
		}
		off -= l
	}
	return tree.Boundary{Node: n, Offset: p.Offset}, true
}
