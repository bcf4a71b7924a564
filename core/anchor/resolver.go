package anchor

import (
	"strings"

	"github.com/FocuswithJustin/marginalia/core/tree"
	"github.com/FocuswithJustin/marginalia/internal/logging"
)

// Via names the tier that produced a resolution.
type Via string

const (
	// ViaStructural means the stored paths decoded.
	ViaStructural Via = "structural"
	// ViaText means the paths were stale and the snapshot was found by text.
	ViaText Via = "text"
)

// Decoder turns a stored Position into a live span.
type Decoder interface {
	Deserialize(p *Position, c tree.Container) (tree.Span, bool)
}

// Matcher finds a snapshot's text in a container.
type Matcher interface {
	FindByText(snapshot string, c tree.Container) (tree.Span, bool)
}

// SpanCodec is the structural Decoder backed by Serialize and Deserialize.
type SpanCodec struct{}

// Serialize implements the encode half of the codec.
func (SpanCodec) Serialize(span tree.Span, c tree.Container) (*Position, bool) {
	return Serialize(span, c)
}

// Deserialize implements Decoder.
func (SpanCodec) Deserialize(p *Position, c tree.Container) (tree.Span, bool) {
	return Deserialize(p, c)
}

// Resolution is a resolved span and the tier that found it.
type Resolution struct {
	Span tree.Span
	Via  Via
}

// Resolver runs the structural decode and, only when it fails, the text
// fallback. A decoded span counts as a failure when the container text has
// changed since the position was recorded and the span no longer covers the
// snapshot. It is a pure query over the container.
type Resolver struct {
	Decoder Decoder
	Matcher Matcher
}

// NewResolver returns a resolver with the default tiers.
func NewResolver() *Resolver {
	return &Resolver{Decoder: SpanCodec{}, Matcher: TextMatcher{}}
}

// Resolve recovers a live span from p. snapshot may be empty, in which case
// only the structural tier is tried.
func (r *Resolver) Resolve(p *Position, c tree.Container, snapshot string) (Resolution, bool) {
	return r.resolve("", p, c, snapshot)
}

// ResolveID is Resolve with the annotation id attached to log lines.
func (r *Resolver) ResolveID(id string, p *Position, c tree.Container, snapshot string) (Resolution, bool) {
	return r.resolve(id, p, c, snapshot)
}

func (r *Resolver) resolve(id string, p *Position, c tree.Container, snapshot string) (Resolution, bool) {
	if c == nil {
		return Resolution{}, false
	}
	reason := "structural path did not decode"
	if p != nil {
		if span, ok := r.Decoder.Deserialize(p, c); ok {
			if snapshot == "" || !p.Stale(c) || sameText(spanText(span, c), snapshot) {
				logging.AnchorResolved(id, string(ViaStructural))
				return Resolution{Span: span, Via: ViaStructural}, true
			}
			reason = "structural span no longer holds the snapshot"
		}
	}
	if snapshot == "" || r.Matcher == nil {
		logging.AnchorUnresolved(id, "snapshot", false)
		return Resolution{}, false
	}
	logging.AnchorFallback(id, reason)
	span, ok := r.Matcher.FindByText(snapshot, c)
	if !ok {
		logging.AnchorUnresolved(id, "snapshot", true)
		return Resolution{}, false
	}
	logging.AnchorResolved(id, string(ViaText))
	return Resolution{Span: span, Via: ViaText}, true
}

func spanText(span tree.Span, c tree.Container) string {
	tm := tree.NewTextMap(c, c.Root())
	start, end, ok := tm.Interval(span)
	if !ok {
		return ""
	}
	return tm.Slice(start, end)
}

// sameText compares with whitespace runs collapsed, as the text matcher does.
func sameText(a, b string) bool {
	return strings.TrimSpace(string(normalize([]rune(a), nil))) ==
		strings.TrimSpace(string(normalize([]rune(b), nil)))
}
