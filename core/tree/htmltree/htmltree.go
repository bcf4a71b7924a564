// Package htmltree adapts golang.org/x/net/html parse trees to the tree
// capability interfaces. It is the host for tag-soup HTML chapters that do not
// parse as XML.
package htmltree

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/FocuswithJustin/marginalia/core/tree"
)

// Node wraps an html node.
type Node struct {
	n *html.Node
}

func wrap(n *html.Node) tree.Node {
	if n == nil {
		return nil
	}
	return Node{n: n}
}

// HTMLNode returns the underlying html node, or nil if n is not an htmltree
// node.
func HTMLNode(n tree.Node) *html.Node {
	if h, ok := n.(Node); ok {
		return h.n
	}
	return nil
}

// Kind implements tree.Node.
func (h Node) Kind() tree.Kind {
	switch h.n.Type {
	case html.ElementNode:
		return tree.KindElement
	case html.TextNode:
		return tree.KindText
	default:
		return tree.KindOther
	}
}

// Tag implements tree.Node.
func (h Node) Tag() string {
	if h.n.Type != html.ElementNode {
		return ""
	}
	return h.n.Data
}

// Data implements tree.Node.
func (h Node) Data() string {
	if h.n.Type != html.TextNode {
		return ""
	}
	return h.n.Data
}

// Attr implements tree.Node.
func (h Node) Attr(name string) string {
	for _, a := range h.n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val
		}
	}
	return ""
}

// Parent implements tree.Node.
func (h Node) Parent() tree.Node {
	if h.n.Parent == nil || h.n.Parent.Type == html.DocumentNode {
		return nil
	}
	return wrap(h.n.Parent)
}

// FirstChild implements tree.Node.
func (h Node) FirstChild() tree.Node { return wrap(h.n.FirstChild) }

// NextSibling implements tree.Node.
func (h Node) NextSibling() tree.Node { return wrap(h.n.NextSibling) }

// PrevSibling implements tree.Node.
func (h Node) PrevSibling() tree.Node { return wrap(h.n.PrevSibling) }

// Document is a parsed HTML document viewed through its body element.
type Document struct {
	tree.Walker
	doc  *html.Node
	root *html.Node
}

var _ tree.Container = (*Document)(nil)

// Parse parses an HTML document. The container is the body element.
func Parse(r io.Reader) (*Document, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	root := findElement(doc, "body")
	if root == nil {
		return nil, fmt.Errorf("parsing HTML: no body element")
	}
	return &Document{doc: doc, root: root}, nil
}

// ParseString parses an HTML document from a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// Root implements tree.Container.
func (d *Document) Root() tree.Node {
	return wrap(d.root)
}

// SelectID returns a view of the same document whose container is the
// element with the given id attribute.
func (d *Document) SelectID(id string) (*Document, error) {
	var found *html.Node
	tree.WalkPreOrder(wrap(d.root), func(n tree.Node) bool {
		if n.Kind() == tree.KindElement && n.Attr("id") == id {
			found = HTMLNode(n)
			return false
		}
		return true
	})
	if found == nil {
		return nil, fmt.Errorf("no element with id %q", id)
	}
	return &Document{doc: d.doc, root: found}, nil
}

// SplitText implements tree.Editor.
func (d *Document) SplitText(n tree.Node, offset int) (tree.Node, error) {
	t := HTMLNode(n)
	if t == nil || t.Type != html.TextNode || t.Parent == nil {
		return nil, fmt.Errorf("split: not an attached text node")
	}
	runes := []rune(t.Data)
	if offset < 0 || offset > len(runes) {
		return nil, fmt.Errorf("split: offset %d out of range [0,%d]", offset, len(runes))
	}
	rest := &html.Node{Type: html.TextNode, Data: string(runes[offset:])}
	t.Data = string(runes[:offset])
	t.Parent.InsertBefore(rest, t.NextSibling)
	return Node{n: rest}, nil
}

// Wrap implements tree.Editor.
func (d *Document) Wrap(first, last tree.Node, m tree.Marker) (tree.Node, error) {
	f, l := HTMLNode(first), HTMLNode(last)
	if f == nil || l == nil || f.Parent == nil || f.Parent != l.Parent {
		return nil, fmt.Errorf("wrap: nodes are not siblings")
	}
	var run []*html.Node
	for cur := f; ; cur = cur.NextSibling {
		if cur == nil {
			return nil, fmt.Errorf("wrap: last node does not follow first")
		}
		run = append(run, cur)
		if cur == l {
			break
		}
	}
	marker := &html.Node{Type: html.ElementNode, Data: m.Tag}
	for _, kv := range m.Attrs() {
		marker.Attr = append(marker.Attr, html.Attribute{Key: kv[0], Val: kv[1]})
	}
	parent := f.Parent
	parent.InsertBefore(marker, f)
	for _, n := range run {
		parent.RemoveChild(n)
		marker.AppendChild(n)
	}
	return Node{n: marker}, nil
}

// Unwrap implements tree.Editor.
func (d *Document) Unwrap(marker tree.Node) error {
	m := HTMLNode(marker)
	if m == nil || m.Type != html.ElementNode || m.Parent == nil {
		return fmt.Errorf("unwrap: not an attached element")
	}
	parent := m.Parent
	for c := m.FirstChild; c != nil; {
		next := c.NextSibling
		m.RemoveChild(c)
		parent.InsertBefore(c, m)
		c = next
	}
	parent.RemoveChild(m)
	return nil
}

// Write renders the whole document.
func (d *Document) Write(w io.Writer) error {
	return html.Render(w, d.doc)
}

// String returns the rendered document.
func (d *Document) String() string {
	var buf bytes.Buffer
	_ = d.Write(&buf)
	return buf.String()
}
