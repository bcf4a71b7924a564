package anchor

import (
	"testing"

	"github.com/FocuswithJustin/marginalia/core/tree"
	"github.com/FocuswithJustin/marginalia/core/tree/xmltree"
)

const foxDoc = `<div><p>The quick brown fox jumps over the lazy dog.</p><p>Second paragraph.</p></div>`

func mustParse(t *testing.T, s string) *xmltree.Document {
	t.Helper()
	d, err := xmltree.ParseString(s)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}
	return d
}

// spanAt builds a live span from flattened offsets.
func spanAt(t *testing.T, c tree.Container, start, end int) tree.Span {
	t.Helper()
	tm := tree.NewTextMap(c, c.Root())
	sb, ok := tm.Locate(start, false)
	if !ok {
		t.Fatalf("Locate(%d) failed", start)
	}
	eb, ok := tm.Locate(end, true)
	if !ok {
		t.Fatalf("Locate(%d) failed", end)
	}
	return tree.Span{Start: sb, End: eb}
}

// textOf returns the flattened interval and text covered by a span.
func textOf(t *testing.T, c tree.Container, s tree.Span) (int, int, string) {
	t.Helper()
	tm := tree.NewTextMap(c, c.Root())
	start, end, ok := tm.Interval(s)
	if !ok {
		t.Fatalf("Interval() failed for %+v", s)
	}
	return start, end, tm.Slice(start, end)
}
