package anchor

import (
	"time"

	"github.com/FocuswithJustin/marginalia/core/tree"
)

// Point is one serialized span endpoint.
type Point struct {
	Path   NodePath `json:"path"`
	Offset int      `json:"offset"`
}

// Position is the durable form of a span. Offsets count runes in text nodes
// and children in element nodes.
type Position struct {
	Start     Point     `json:"start"`
	End       Point     `json:"end"`
	CreatedAt time.Time `json:"created_at"`
	// Fingerprint is the BLAKE3 hash of the container text at creation time.
	// When it no longer matches, the resolver checks a decoded span against
	// the snapshot before trusting it.
	Fingerprint string `json:"fingerprint,omitempty"`
}

// now is swapped in tests.
var now = func() time.Time { return time.Now().UTC() }

// Serialize encodes both span endpoints. ok is false when either endpoint is
// outside the container.
func Serialize(span tree.Span, c tree.Container) (*Position, bool) {
	if span.IsZero() || c == nil {
		return nil, false
	}
	start, ok := encodePoint(span.Start, c, false)
	if !ok {
		return nil, false
	}
	end, ok := encodePoint(span.End, c, true)
	if !ok {
		return nil, false
	}
	return &Position{
		Start:       start,
		End:         end,
		CreatedAt:   now(),
		Fingerprint: ContainerFingerprint(c),
	}, true
}

// Deserialize decodes both endpoints and repairs their offsets. It fails only
// when a path no longer addresses a node; offset problems are always repaired.
func Deserialize(p *Position, c tree.Container) (tree.Span, bool) {
	if p == nil || c == nil {
		return tree.Span{}, false
	}
	start, ok := decodePoint(p.Start, c, false)
	if !ok {
		return tree.Span{}, false
	}
	end, ok := decodePoint(p.End, c, true)
	if !ok {
		return tree.Span{}, false
	}
	return tree.Span{
		Start: repair(c, start),
		End:   repair(c, end),
	}, true
}

// repair moves a boundary off an empty or overrun text node and clamps what
// remains.
//
// For an overrun, the next non-empty sibling text node receives the excess
// (offset - length). With no next candidate the previous non-empty sibling is
// used at its end, and failing that the first non-empty text node of the
// parent element.
func repair(q tree.Query, b tree.Boundary) tree.Boundary {
	if b.Node.Kind() != tree.KindText {
		b.Offset = clamp(b.Offset, 0, tree.Len(b.Node))
		return b
	}
	length := tree.Len(b.Node)
	if length > 0 && b.Offset <= length {
		b.Offset = max(b.Offset, 0)
		return b
	}

	for s := b.Node.NextSibling(); s != nil; s = s.NextSibling() {
		if n := tree.Len(s); s.Kind() == tree.KindText && n > 0 {
			off := 0
			if b.Offset > length {
				off = b.Offset - length
			}
			return tree.Boundary{Node: s, Offset: clamp(off, 0, n)}
		}
	}
	for s := b.Node.PrevSibling(); s != nil; s = s.PrevSibling() {
		if n := tree.Len(s); s.Kind() == tree.KindText && n > 0 {
			return tree.Boundary{Node: s, Offset: n}
		}
	}
	if parent := b.Node.Parent(); parent != nil {
		for _, t := range q.PreOrderTextNodes(parent) {
			if n := tree.Len(t); n > 0 {
				return tree.Boundary{Node: t, Offset: clamp(b.Offset, 0, n)}
			}
		}
	}
	b.Offset = clamp(b.Offset, 0, length)
	return b
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
