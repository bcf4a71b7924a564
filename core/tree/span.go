package tree

import "strings"

// Boundary is a live (node, offset) point. Offset counts runes in text nodes
// and children in element nodes.
type Boundary struct {
	Node   Node
	Offset int
}

// Span is a live resolved range between two boundaries.
type Span struct {
	Start Boundary
	End   Boundary
}

// IsZero reports whether the span has no nodes.
func (s Span) IsZero() bool {
	return s.Start.Node == nil || s.End.Node == nil
}

// Marker attributes.
const (
	// MarkerIDAttr carries the annotation id on every marker element.
	MarkerIDAttr = "data-annotation-id"
	// MarkerClassAttr carries the style classes.
	MarkerClassAttr = "class"
)

// Marker describes the wrapper element a host creates when painting.
type Marker struct {
	Tag          string
	AnnotationID string
	Class        string
}

// Attrs returns the marker attributes in a stable order.
func (m Marker) Attrs() [][2]string {
	attrs := [][2]string{{MarkerIDAttr, m.AnnotationID}}
	if m.Class != "" {
		attrs = append(attrs, [2]string{MarkerClassAttr, m.Class})
	}
	return attrs
}

// IsMarker reports whether n is a marker element for any annotation.
func IsMarker(n Node) bool {
	return n != nil && n.Kind() == KindElement && n.Attr(MarkerIDAttr) != ""
}

// FindMarkers returns every marker under root tagged with annotationID, in
// document order.
func FindMarkers(root Node, annotationID string) []Node {
	if annotationID == "" {
		return nil
	}
	var out []Node
	WalkPreOrder(root, func(n Node) bool {
		if n.Kind() == KindElement && n.Attr(MarkerIDAttr) == annotationID {
			out = append(out, n)
		}
		return true
	})
	return out
}

// EnclosingMarkers returns the annotation ids of the markers enclosing n,
// innermost first, stopping at root.
func EnclosingMarkers(n, root Node) []string {
	var ids []string
	for cur := n; cur != nil; cur = cur.Parent() {
		if IsMarker(cur) {
			ids = append(ids, cur.Attr(MarkerIDAttr))
		}
		if cur == root {
			break
		}
	}
	return ids
}

var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"body": true, "dd": true, "details": true, "dialog": true, "div": true,
	"dl": true, "dt": true, "fieldset": true, "figcaption": true,
	"figure": true, "footer": true, "form": true, "h1": true, "h2": true,
	"h3": true, "h4": true, "h5": true, "h6": true, "header": true,
	"hgroup": true, "hr": true, "html": true, "li": true, "main": true,
	"nav": true, "ol": true, "p": true, "pre": true, "section": true,
	"summary": true, "table": true, "tbody": true, "td": true, "tfoot": true,
	"th": true, "thead": true, "tr": true, "ul": true,
}

// IsBlock reports whether n is a block-level element.
func IsBlock(n Node) bool {
	return n != nil && n.Kind() == KindElement && blockTags[strings.ToLower(n.Tag())]
}

// IsWhitespace reports whether a text node holds only whitespace.
func IsWhitespace(n Node) bool {
	return n != nil && n.Kind() == KindText && strings.TrimSpace(n.Data()) == ""
}
