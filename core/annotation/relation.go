package annotation

import (
	"github.com/FocuswithJustin/marginalia/core/anchor"
	"github.com/FocuswithJustin/marginalia/core/tree"
)

// Relation is the overlap between two annotations' character intervals.
type Relation string

// Relations, always stated from the first annotation's point of view.
const (
	Contains    Relation = "contains"
	Contained   Relation = "contained"
	Intersect   Relation = "intersect"
	Independent Relation = "independent"
)

// Valid reports whether r is a known relation.
func (r Relation) Valid() bool {
	switch r {
	case Contains, Contained, Intersect, Independent:
		return true
	}
	return false
}

// Inverse returns the relation seen from the other annotation.
func (r Relation) Inverse() Relation {
	switch r {
	case Contains:
		return Contained
	case Contained:
		return Contains
	}
	return r
}

// RelationRef records a relation to another annotation.
type RelationRef struct {
	Type    Relation `json:"type"`
	OtherID string   `json:"other_id"`
}

// DefaultRelationLimit caps how many existing annotations one annotation is
// compared against.
const DefaultRelationLimit = 10

// Detector classifies annotation pairs. It resolves both anchors, so results
// hold for the tree state at the time of the call.
type Detector struct {
	Resolver *anchor.Resolver
	// Limit caps ClassifyAgainst; zero means DefaultRelationLimit.
	Limit int
}

// NewDetector returns a detector using r, or the default resolver.
func NewDetector(r *anchor.Resolver) *Detector {
	if r == nil {
		r = anchor.NewResolver()
	}
	return &Detector{Resolver: r, Limit: DefaultRelationLimit}
}

type interval struct{ start, end int }

// Classify returns how a relates to b. ok is false when either anchor fails
// to resolve; that is not evidence of independence.
func (d *Detector) Classify(a, b *Annotation, c tree.Container) (Relation, bool) {
	if a == nil || b == nil || c == nil {
		return "", false
	}
	tm := tree.NewTextMap(c, c.Root())
	ia, ok := d.interval(a, c, tm)
	if !ok {
		return "", false
	}
	ib, ok := d.interval(b, c, tm)
	if !ok {
		return "", false
	}
	return classify(ia, ib, earlier(a, b)), true
}

// ClassifyAgainst compares a with up to Limit others, skipping a itself and
// any annotation that does not resolve.
func (d *Detector) ClassifyAgainst(a *Annotation, others []*Annotation, c tree.Container) []RelationRef {
	if a == nil || c == nil {
		return nil
	}
	tm := tree.NewTextMap(c, c.Root())
	ia, ok := d.interval(a, c, tm)
	if !ok {
		return nil
	}
	limit := d.Limit
	if limit <= 0 {
		limit = DefaultRelationLimit
	}
	var refs []RelationRef
	compared := 0
	for _, o := range others {
		if compared >= limit {
			break
		}
		if o == nil || o.ID == a.ID {
			continue
		}
		compared++
		io2, ok := d.interval(o, c, tm)
		if !ok {
			continue
		}
		refs = append(refs, RelationRef{Type: classify(ia, io2, earlier(a, o)), OtherID: o.ID})
	}
	return refs
}

func (d *Detector) interval(a *Annotation, c tree.Container, tm *tree.TextMap) (interval, bool) {
	res, ok := d.Resolver.ResolveID(a.ID, a.Position, c, a.Text)
	if !ok {
		return interval{}, false
	}
	start, end, ok := tm.Interval(res.Span)
	if !ok {
		return interval{}, false
	}
	return interval{start, end}, true
}

// classify compares [a.start, a.end) with [b.start, b.end). Identical
// intervals resolve to contains for the earlier annotation (aFirst) so that
// classify(a, b) and classify(b, a) are always inverses.
func classify(a, b interval, aFirst bool) Relation {
	switch {
	case a == b:
		if aFirst {
			return Contains
		}
		return Contained
	case a.start <= b.start && a.end >= b.end:
		return Contains
	case b.start <= a.start && b.end >= a.end:
		return Contained
	case a.start < b.end && b.start < a.end:
		return Intersect
	}
	return Independent
}

// earlier orders by creation time, then id.
func earlier(a, b *Annotation) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
