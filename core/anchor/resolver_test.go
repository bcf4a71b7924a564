package anchor

import (
	"testing"

	"github.com/FocuswithJustin/marginalia/core/tree"
)

type countingDecoder struct {
	calls int
	inner Decoder
}

func (c *countingDecoder) Deserialize(p *Position, ct tree.Container) (tree.Span, bool) {
	c.calls++
	return c.inner.Deserialize(p, ct)
}

type countingMatcher struct {
	calls int
	inner Matcher
}

func (c *countingMatcher) FindByText(s string, ct tree.Container) (tree.Span, bool) {
	c.calls++
	return c.inner.FindByText(s, ct)
}

func newCountingResolver() (*Resolver, *countingDecoder, *countingMatcher) {
	dec := &countingDecoder{inner: SpanCodec{}}
	m := &countingMatcher{inner: TextMatcher{}}
	return &Resolver{Decoder: dec, Matcher: m}, dec, m
}

func TestResolveSkipsFallbackWhenPathDecodes(t *testing.T) {
	d := mustParse(t, foxDoc)
	pos, ok := Serialize(spanAt(t, d, 4, 9), d)
	if !ok {
		t.Fatal("Serialize() failed")
	}
	r, dec, m := newCountingResolver()
	res, ok := r.Resolve(pos, d, "quick")
	if !ok {
		t.Fatal("Resolve() failed")
	}
	if dec.calls != 1 || m.calls != 0 {
		t.Errorf("calls = decoder %d, matcher %d, want 1, 0", dec.calls, m.calls)
	}
	if res.Via != ViaStructural {
		t.Errorf("Via = %q, want %q", res.Via, ViaStructural)
	}
}

func TestResolveFallsBackOnStalePath(t *testing.T) {
	d := mustParse(t, foxDoc)
	pos := &Position{
		Start: Point{Path: NodePath{{Tag: "section"}, {Text: true}}},
		End:   Point{Path: NodePath{{Tag: "section"}, {Text: true}}, Offset: 5},
	}
	r, dec, m := newCountingResolver()

	res, ok := r.Resolve(pos, d, "lazy dog")
	if !ok {
		t.Fatal("Resolve() failed")
	}
	if dec.calls != 1 || m.calls != 1 {
		t.Errorf("calls = decoder %d, matcher %d, want 1, 1", dec.calls, m.calls)
	}
	if res.Via != ViaText {
		t.Errorf("Via = %q, want %q", res.Via, ViaText)
	}
	if _, _, text := textOf(t, d, res.Span); text != "lazy dog" {
		t.Errorf("text = %q, want %q", text, "lazy dog")
	}

	if _, ok := r.Resolve(pos, d, ""); ok {
		t.Error("Resolve() ok = true without a snapshot")
	}
	if m.calls != 1 {
		t.Errorf("matcher calls = %d, want 1 (no snapshot, no fallback)", m.calls)
	}
	if _, ok := r.Resolve(pos, d, "not in the chapter"); ok {
		t.Error("Resolve() ok = true for text that is absent")
	}
}

func TestResolveNilPositionUsesSnapshot(t *testing.T) {
	d := mustParse(t, foxDoc)
	r, dec, m := newCountingResolver()
	res, ok := r.ResolveID("a1", nil, d, "Second")
	if !ok || res.Via != ViaText {
		t.Fatalf("ResolveID() = %+v, %v", res, ok)
	}
	if dec.calls != 0 || m.calls != 1 {
		t.Errorf("calls = decoder %d, matcher %d, want 0, 1", dec.calls, m.calls)
	}
	if _, ok := r.Resolve(nil, nil, "Second"); ok {
		t.Error("Resolve() ok = true with a nil container")
	}
}

// The paragraph's text is replaced by new content that still contains the
// selected word. The saved path still decodes but covers other text, so the
// snapshot finds the word at its new location.
func TestQuickBrownFoxRestore(t *testing.T) {
	original := mustParse(t, `<div><p>The quick brown fox jumps over the lazy dog.</p></div>`)
	span := spanAt(t, original, 4, 9)
	_, _, snapshot := textOf(t, original, span)
	if snapshot != "quick" {
		t.Fatalf("selected text = %q, want %q", snapshot, "quick")
	}
	pos, ok := Serialize(span, original)
	if !ok {
		t.Fatal("Serialize() failed")
	}

	r, _, m := newCountingResolver()
	rebuilt := mustParse(t, `<div><p>The quick brown fox jumps over the lazy dog.</p></div>`)
	res, ok := r.Resolve(pos, rebuilt, snapshot)
	if !ok {
		t.Fatal("Resolve() on identical tree failed")
	}
	if _, _, text := textOf(t, rebuilt, res.Span); text != "quick" {
		t.Errorf("text = %q, want %q", text, "quick")
	}
	if m.calls != 0 {
		t.Errorf("matcher calls = %d, want 0", m.calls)
	}

	mutated := mustParse(t, `<div><p>Not so fast: a very quick reply.</p></div>`)
	res, ok = r.Resolve(pos, mutated, snapshot)
	if !ok {
		t.Fatal("Resolve() after mutation failed")
	}
	if res.Via != ViaText {
		t.Errorf("Via = %q, want %q", res.Via, ViaText)
	}
	if m.calls != 1 {
		t.Errorf("matcher calls = %d, want 1", m.calls)
	}
	start, end, text := textOf(t, mutated, res.Span)
	if text != "quick" || start != 20 || end != 25 {
		t.Errorf("resolved [%d,%d) %q, want [20,25) \"quick\"", start, end, text)
	}
}

func TestResolveStaleContainerKeepsMatchingSpan(t *testing.T) {
	d := mustParse(t, foxDoc)
	pos, ok := Serialize(spanAt(t, d, 4, 9), d)
	if !ok {
		t.Fatal("Serialize() failed")
	}

	// Text after the selection changed; the decoded span still reads "quick".
	edited := mustParse(t, `<div><p>The quick brown fox sleeps.</p><p>Second paragraph.</p></div>`)
	if !pos.Stale(edited) {
		t.Fatal("Stale() = false for edited text")
	}
	r, _, m := newCountingResolver()
	res, ok := r.Resolve(pos, edited, "quick")
	if !ok || res.Via != ViaStructural {
		t.Fatalf("Resolve() = %v, %v, want structural", res.Via, ok)
	}
	if m.calls != 0 {
		t.Errorf("matcher calls = %d, want 0", m.calls)
	}

	// Without a snapshot the decoded span is returned as is.
	other := mustParse(t, `<div><p>Not so fast: a very quick reply.</p></div>`)
	res, ok = r.Resolve(pos, other, "")
	if !ok || res.Via != ViaStructural {
		t.Errorf("Resolve() without snapshot = %v, %v, want structural", res.Via, ok)
	}
}
