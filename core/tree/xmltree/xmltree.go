// Package xmltree adapts antchfx/xmlquery parse trees (XHTML chapters) to the
// tree capability interfaces.
package xmltree

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/FocuswithJustin/marginalia/core/tree"
)

// Node wraps an xmlquery node. The zero value is not a valid node.
type Node struct {
	n *xmlquery.Node
}

func wrap(n *xmlquery.Node) tree.Node {
	if n == nil {
		return nil
	}
	return Node{n: n}
}

// XMLNode returns the underlying xmlquery node, or nil if n is not an xmltree
// node.
func XMLNode(n tree.Node) *xmlquery.Node {
	if x, ok := n.(Node); ok {
		return x.n
	}
	return nil
}

// Kind implements tree.Node.
func (x Node) Kind() tree.Kind {
	switch x.n.Type {
	case xmlquery.ElementNode:
		return tree.KindElement
	case xmlquery.TextNode, xmlquery.CharDataNode:
		return tree.KindText
	default:
		return tree.KindOther
	}
}

// Tag implements tree.Node. XML names are case-sensitive and kept as parsed.
func (x Node) Tag() string {
	if x.n.Type != xmlquery.ElementNode {
		return ""
	}
	return x.n.Data
}

// Data implements tree.Node.
func (x Node) Data() string {
	if x.Kind() != tree.KindText {
		return ""
	}
	return x.n.Data
}

// Attr implements tree.Node.
func (x Node) Attr(name string) string {
	return x.n.SelectAttr(name)
}

// Parent implements tree.Node. The document node is not exposed.
func (x Node) Parent() tree.Node {
	if x.n.Parent == nil || x.n.Parent.Type == xmlquery.DocumentNode {
		return nil
	}
	return wrap(x.n.Parent)
}

// FirstChild implements tree.Node.
func (x Node) FirstChild() tree.Node { return wrap(x.n.FirstChild) }

// NextSibling implements tree.Node.
func (x Node) NextSibling() tree.Node { return wrap(x.n.NextSibling) }

// PrevSibling implements tree.Node.
func (x Node) PrevSibling() tree.Node { return wrap(x.n.PrevSibling) }

// Document is a parsed XHTML document viewed through one container element.
type Document struct {
	tree.Walker
	doc  *xmlquery.Node
	root *xmlquery.Node
}

var _ tree.Container = (*Document)(nil)

// Parse parses an XML document. The container is the document element.
func Parse(r io.Reader) (*Document, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing XML: %w", err)
	}
	root := documentElement(doc)
	if root == nil {
		return nil, fmt.Errorf("parsing XML: no document element")
	}
	return &Document{doc: doc, root: root}, nil
}

// ParseString parses an XML document from a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

func documentElement(doc *xmlquery.Node) *xmlquery.Node {
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			return c
		}
	}
	return nil
}

// Root implements tree.Container.
func (d *Document) Root() tree.Node {
	return wrap(d.root)
}

// Select returns a view of the same document whose container is the first
// node matching the XPath expression, evaluated from the current container.
func (d *Document) Select(expr string) (*Document, error) {
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath: %w", err)
	}
	n := xmlquery.QuerySelector(d.root, compiled)
	if n == nil {
		return nil, fmt.Errorf("xpath %q matched nothing", expr)
	}
	if n.Type != xmlquery.ElementNode {
		return nil, fmt.Errorf("xpath %q selected a non-element node", expr)
	}
	return &Document{doc: d.doc, root: n}, nil
}

// Evaluate returns the first node matching the XPath expression relative to
// the container, or nil.
func (d *Document) Evaluate(expr string) tree.Node {
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return nil
	}
	return wrap(xmlquery.QuerySelector(d.root, compiled))
}

// PreOrderTextNodes implements tree.Query by walking the xmlquery nodes
// directly. Whitespace-only text nodes are kept.
func (d *Document) PreOrderTextNodes(root tree.Node) []tree.Node {
	r := XMLNode(root)
	if r == nil {
		return d.Walker.PreOrderTextNodes(root)
	}
	var out []tree.Node
	var walk func(n *xmlquery.Node)
	walk = func(n *xmlquery.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case xmlquery.TextNode, xmlquery.CharDataNode:
				out = append(out, Node{n: c})
			case xmlquery.ElementNode:
				walk(c)
			}
		}
	}
	walk(r)
	return out
}

// SplitText implements tree.Editor.
func (d *Document) SplitText(n tree.Node, offset int) (tree.Node, error) {
	x := XMLNode(n)
	if x == nil || (x.Type != xmlquery.TextNode && x.Type != xmlquery.CharDataNode) {
		return nil, fmt.Errorf("split: not a text node")
	}
	runes := []rune(x.Data)
	if offset < 0 || offset > len(runes) {
		return nil, fmt.Errorf("split: offset %d out of range [0,%d]", offset, len(runes))
	}
	rest := &xmlquery.Node{Type: x.Type, Data: string(runes[offset:])}
	x.Data = string(runes[:offset])
	xmlquery.AddImmediateSibling(x, rest)
	return Node{n: rest}, nil
}

// Wrap implements tree.Editor.
func (d *Document) Wrap(first, last tree.Node, m tree.Marker) (tree.Node, error) {
	f, l := XMLNode(first), XMLNode(last)
	if f == nil || l == nil || f.Parent == nil || f.Parent != l.Parent {
		return nil, fmt.Errorf("wrap: nodes are not siblings")
	}
	var run []*xmlquery.Node
	for cur := f; ; cur = cur.NextSibling {
		if cur == nil {
			return nil, fmt.Errorf("wrap: last node does not follow first")
		}
		run = append(run, cur)
		if cur == l {
			break
		}
	}
	marker := &xmlquery.Node{
		Type:         xmlquery.ElementNode,
		Data:         m.Tag,
		NamespaceURI: f.Parent.NamespaceURI,
	}
	for _, kv := range m.Attrs() {
		xmlquery.AddAttr(marker, kv[0], kv[1])
	}
	insertBefore(f, marker)
	for _, n := range run {
		xmlquery.RemoveFromTree(n)
		xmlquery.AddChild(marker, n)
	}
	return Node{n: marker}, nil
}

// Unwrap implements tree.Editor.
func (d *Document) Unwrap(marker tree.Node) error {
	m := XMLNode(marker)
	if m == nil || m.Type != xmlquery.ElementNode || m.Parent == nil {
		return fmt.Errorf("unwrap: not an attached element")
	}
	for c := m.FirstChild; c != nil; {
		next := c.NextSibling
		xmlquery.RemoveFromTree(c)
		insertBefore(m, c)
		c = next
	}
	xmlquery.RemoveFromTree(m)
	return nil
}

// insertBefore inserts n as the previous sibling of ref.
func insertBefore(ref, n *xmlquery.Node) {
	if ref.PrevSibling != nil {
		xmlquery.AddImmediateSibling(ref.PrevSibling, n)
		return
	}
	parent := ref.Parent
	n.Parent = parent
	n.PrevSibling = nil
	n.NextSibling = ref
	ref.PrevSibling = n
	parent.FirstChild = n
}

// Write serializes the whole document, preserving whitespace.
func (d *Document) Write(w io.Writer) error {
	return d.doc.WriteWithOptions(w, xmlquery.WithPreserveSpace())
}

// String returns the serialized document.
func (d *Document) String() string {
	var buf bytes.Buffer
	_ = d.Write(&buf)
	return buf.String()
}

// ContainerXML serializes only the container element.
func (d *Document) ContainerXML() string {
	return d.root.OutputXMLWithOptions(xmlquery.WithOutputSelf(), xmlquery.WithPreserveSpace())
}
