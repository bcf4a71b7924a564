// Package tree defines the host-agnostic document tree capability used by the
// anchor engine.
//
// A host (an XHTML parse tree, an HTML parse tree, a browser bridge) exposes its
// nodes through the Node interface and its mutation primitives through Editor.
// Everything above this package only sees these interfaces, so path encoding,
// text matching and painting stay independent of the concrete tree library.
package tree

import "unicode/utf8"

// Kind classifies a node for path encoding.
type Kind int

// Node kinds. Only elements and text nodes take part in anchoring; every other
// host node (comments, processing instructions, doctype) is KindOther.
const (
	KindOther Kind = iota
	KindElement
	KindText
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindElement:
		return "element"
	case KindText:
		return "text"
	default:
		return "other"
	}
}

// Node is a handle on a host tree node.
//
// Handles must be comparable: two handles on the same host node compare equal
// with ==. Navigation methods return a nil interface (not a typed nil) when
// there is no such node.
type Node interface {
	Kind() Kind
	// Tag is the lower-case local element name, empty for non-elements.
	Tag() string
	// Data is the character content of a text node, empty otherwise.
	Data() string
	// Attr returns the value of an element attribute, empty if absent.
	Attr(name string) string
	Parent() Node
	FirstChild() Node
	NextSibling() Node
	PrevSibling() Node
}

// Query is the read-only structural capability the codecs rely on.
type Query interface {
	// ChildrenOfKind returns the logical children of parent with the given
	// kind, and for elements the given tag, in document order. Markers are
	// never returned; for KindText only the first node of each text run is.
	ChildrenOfKind(parent Node, kind Kind, tag string) []Node

	// AncestorsUntil returns the chain from the child of root down to n
	// (inclusive). ok is false when n is not a descendant of root. For n ==
	// root the chain is empty and ok is true.
	AncestorsUntil(n, root Node) (chain []Node, ok bool)

	// PreOrderTextNodes returns every text node below root in document order.
	PreOrderTextNodes(root Node) []Node
}

// Editor is the mutation capability a host exposes for applying paint scripts.
type Editor interface {
	// SplitText splits a text node at a rune offset. n keeps [0, offset) and
	// the returned node, inserted as n's next sibling, holds the rest.
	SplitText(n Node, offset int) (Node, error)

	// Wrap moves the sibling run first..last (inclusive) into a new marker
	// element inserted where first was, and returns the marker.
	Wrap(first, last Node, m Marker) (Node, error)

	// Unwrap moves the marker's children into its parent, in place, and
	// removes the marker.
	Unwrap(marker Node) error
}

// Container is a live document view: the root all paths are relative to, plus
// the host's query and edit capabilities.
type Container interface {
	Query
	Editor
	Root() Node
}

// Walker implements Query using only Node navigation. Hosts embed it and
// override the operations they can answer faster.
type Walker struct{}

// ChildrenOfKind implements Query.
func (Walker) ChildrenOfKind(parent Node, kind Kind, tag string) []Node {
	var out []Node
	prevText := false
	for _, c := range LogicalChildren(parent) {
		isText := c.Kind() == KindText
		if SameKind(c, kind, tag) && !(isText && prevText) {
			out = append(out, c)
		}
		prevText = isText
	}
	return out
}

// AncestorsUntil implements Query.
func (Walker) AncestorsUntil(n, root Node) ([]Node, bool) {
	if n == nil || root == nil {
		return nil, false
	}
	var chain []Node
	for cur := n; cur != nil; cur = cur.Parent() {
		if cur == root {
			// reverse into top-down order
			for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
				chain[i], chain[j] = chain[j], chain[i]
			}
			return chain, true
		}
		chain = append(chain, cur)
	}
	return nil, false
}

// PreOrderTextNodes implements Query.
func (Walker) PreOrderTextNodes(root Node) []Node {
	var out []Node
	WalkPreOrder(root, func(n Node) bool {
		if n.Kind() == KindText {
			out = append(out, n)
		}
		return true
	})
	return out
}

// WalkPreOrder visits root and its descendants in document order. Returning
// false from fn stops the walk.
func WalkPreOrder(root Node, fn func(Node) bool) {
	if root == nil {
		return
	}
	var walk func(n Node) bool
	walk = func(n Node) bool {
		if !fn(n) {
			return false
		}
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if !walk(c) {
				return false
			}
		}
		return true
	}
	walk(root)
}

// SameKind reports whether n has the kind and, for elements, the tag.
func SameKind(n Node, kind Kind, tag string) bool {
	if n.Kind() != kind {
		return false
	}
	return kind != KindElement || n.Tag() == tag
}

// Len returns the boundary length of a node: runes for text nodes, child
// count for elements.
func Len(n Node) int {
	if n == nil {
		return 0
	}
	if n.Kind() == KindText {
		return utf8.RuneCountInString(n.Data())
	}
	count := 0
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		count++
	}
	return count
}

// ChildAt returns the i-th child of n, or nil.
func ChildAt(n Node, i int) Node {
	if n == nil || i < 0 {
		return nil
	}
	c := n.FirstChild()
	for ; c != nil && i > 0; i-- {
		c = c.NextSibling()
	}
	return c
}

// Contains reports whether n is root or one of its descendants.
func Contains(root, n Node) bool {
	for cur := n; cur != nil; cur = cur.Parent() {
		if cur == root {
			return true
		}
	}
	return false
}

// TextContent returns the flattened text of root in document order.
func TextContent(q Query, root Node) string {
	return NewTextMap(q, root).Text()
}
