package paint

import (
	"github.com/FocuswithJustin/marginalia/core/annotation"
	"github.com/FocuswithJustin/marginalia/core/tree"
	"github.com/FocuswithJustin/marginalia/internal/logging"
)

// Config controls marker elements.
type Config struct {
	// MarkerTag is the element name created around painted text.
	MarkerTag string
	// ClassPrefix yields class="<prefix> <prefix>-<color>".
	ClassPrefix string
}

// DefaultConfig returns span markers with highlight classes.
func DefaultConfig() Config {
	return Config{MarkerTag: "span", ClassPrefix: "highlight"}
}

// Painter plans and applies paint scripts.
type Painter struct {
	cfg Config
}

// New returns a painter. Empty config fields take their defaults.
func New(cfg Config) *Painter {
	def := DefaultConfig()
	if cfg.MarkerTag == "" {
		cfg.MarkerTag = def.MarkerTag
	}
	if cfg.ClassPrefix == "" {
		cfg.ClassPrefix = def.ClassPrefix
	}
	return &Painter{cfg: cfg}
}

// Marker returns the marker description for an annotation.
func (p *Painter) Marker(id string, style annotation.Style) tree.Marker {
	return tree.Marker{
		Tag:          p.cfg.MarkerTag,
		AnnotationID: id,
		Class:        p.cfg.ClassPrefix + " " + p.cfg.ClassPrefix + "-" + style.ColorOrDefault(),
	}
}

// Handle is the result of a paint.
type Handle struct {
	AnnotationID string
	Markers      []tree.Node
	// Existing is true when the annotation was already painted and nothing
	// changed.
	Existing bool
}

// Plan builds the edit script that paints span. It does not modify the tree.
// ok is false for a span that covers no text.
//
// When both ends share a parent and no block element sits between them, the
// whole run is wrapped in one marker. Otherwise each intersected text node is
// split at the span edges and its covered piece wrapped on its own, so block
// elements are never moved; whitespace-only text beside a block is left alone.
func (p *Painter) Plan(span tree.Span, id string, style annotation.Style, c tree.Container) (*Script, bool) {
	if span.IsZero() || c == nil || id == "" {
		return nil, false
	}
	tm := tree.NewTextMap(c, c.Root())
	start, end, ok := tm.Interval(span)
	if !ok || start >= end {
		return nil, false
	}
	sb, ok := tm.Locate(start, false)
	if !ok {
		return nil, false
	}
	eb, ok := tm.Locate(end, true)
	if !ok {
		return nil, false
	}

	s := &Script{AnnotationID: id, Marker: p.Marker(id, style)}
	switch {
	case sb.Node == eb.Node:
		if !besideBlock(sb.Node) {
			s.piece(sb.Node, sb.Offset, eb.Offset)
		}
	case singleRun(sb.Node, eb.Node):
		first, last := s.reg(sb.Node), s.reg(eb.Node)
		if eb.Offset < tree.Len(eb.Node) {
			s.split(last, eb.Offset)
		}
		if sb.Offset > 0 {
			first = s.split(first, sb.Offset)
		}
		s.wrap(first, last)
	default:
		for _, n := range tm.Nodes() {
			ns, ne, _ := tm.NodeRange(n)
			from, to := max(start, ns), min(end, ne)
			if from >= to || besideBlock(n) {
				continue
			}
			s.piece(n, from-ns, to-ns)
		}
	}
	if s.Wraps() == 0 {
		return nil, false
	}
	return s, true
}

// piece wraps [from, to) of one text node.
func (s *Script) piece(n tree.Node, from, to int) {
	if from >= to {
		return
	}
	r := s.reg(n)
	if to < tree.Len(n) {
		s.split(r, to)
	}
	if from > 0 {
		r = s.split(r, from)
	}
	s.wrap(r, r)
}

// singleRun reports whether first and last are siblings with no block element
// from first through last.
func singleRun(first, last tree.Node) bool {
	if first.Parent() == nil || first.Parent() != last.Parent() {
		return false
	}
	for cur := first; cur != nil; cur = cur.NextSibling() {
		if tree.IsBlock(cur) || containsBlock(cur) {
			return false
		}
		if cur == last {
			return true
		}
	}
	return false
}

func containsBlock(n tree.Node) bool {
	found := false
	tree.WalkPreOrder(n, func(d tree.Node) bool {
		if tree.IsBlock(d) {
			found = true
		}
		return !found
	})
	return found
}

func besideBlock(n tree.Node) bool {
	return tree.IsWhitespace(n) && (tree.IsBlock(n.PrevSibling()) || tree.IsBlock(n.NextSibling()))
}

// Paint marks span for annotation id. If markers for id already exist they
// are returned unchanged. On an editor failure the tree is left without
// markers for id and ok is false.
func (p *Painter) Paint(span tree.Span, id string, style annotation.Style, c tree.Container) (*Handle, bool) {
	if c == nil {
		return nil, false
	}
	if existing := tree.FindMarkers(c.Root(), id); len(existing) > 0 {
		return &Handle{AnnotationID: id, Markers: existing, Existing: true}, true
	}
	script, ok := p.Plan(span, id, style, c)
	if !ok {
		return nil, false
	}
	markers, err := Apply(script, c)
	if err != nil {
		logging.PaintFailure(id, "paint", err)
		return nil, false
	}
	return &Handle{AnnotationID: id, Markers: markers}, true
}

// UnpaintScript returns the script that removes every marker for id, or
// false when there are none.
func UnpaintScript(id string, c tree.Container) (*Script, bool) {
	if c == nil {
		return nil, false
	}
	markers := tree.FindMarkers(c.Root(), id)
	if len(markers) == 0 {
		return nil, false
	}
	s := &Script{AnnotationID: id}
	for i := len(markers) - 1; i >= 0; i-- {
		s.unwrap(s.reg(markers[i]))
	}
	return s, true
}

// Unpaint unwraps every marker for id. It reports whether any were removed.
func (p *Painter) Unpaint(id string, c tree.Container) bool {
	s, ok := UnpaintScript(id, c)
	if !ok {
		return false
	}
	if _, err := Apply(s, c); err != nil {
		logging.PaintFailure(id, "unpaint", err)
		return false
	}
	return true
}

// Painted reports whether markers for id exist in the container.
func (p *Painter) Painted(id string, c tree.Container) bool {
	return c != nil && len(tree.FindMarkers(c.Root(), id)) > 0
}
