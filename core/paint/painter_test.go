package paint

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/FocuswithJustin/marginalia/core/annotation"
	"github.com/FocuswithJustin/marginalia/core/tree"
	"github.com/FocuswithJustin/marginalia/core/tree/htmltree"
	"github.com/FocuswithJustin/marginalia/core/tree/xmltree"
)

func mustParse(t *testing.T, s string) *xmltree.Document {
	t.Helper()
	d, err := xmltree.ParseString(s)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}
	return d
}

func spanAt(t *testing.T, c tree.Container, start, end int) tree.Span {
	t.Helper()
	tm := tree.NewTextMap(c, c.Root())
	sb, ok1 := tm.Locate(start, false)
	eb, ok2 := tm.Locate(end, true)
	if !ok1 || !ok2 {
		t.Fatalf("Locate(%d, %d) failed", start, end)
	}
	return tree.Span{Start: sb, End: eb}
}

var yellow = annotation.Style{Color: "yellow"}

func TestPaintSingleTextNode(t *testing.T) {
	d := mustParse(t, `<div><p>The quick brown fox</p></div>`)
	p := New(DefaultConfig())

	script, ok := p.Plan(spanAt(t, d, 4, 9), "a1", yellow, d)
	if !ok {
		t.Fatal("Plan() failed")
	}
	wantOps := []string{"split-text r0 @9 -> r1", "split-text r0 @4 -> r2", "wrap-range r2..r2 -> r3"}
	if len(script.Ops) != len(wantOps) {
		t.Fatalf("ops = %v, want %v", script.Ops, wantOps)
	}
	for i, op := range script.Ops {
		if op.String() != wantOps[i] {
			t.Errorf("op %d = %q, want %q", i, op.String(), wantOps[i])
		}
	}
	if got := d.ContainerXML(); got != `<div><p>The quick brown fox</p></div>` {
		t.Errorf("Plan() changed the tree: %s", got)
	}

	h, ok := p.Paint(spanAt(t, d, 4, 9), "a1", yellow, d)
	if !ok {
		t.Fatal("Paint() failed")
	}
	if len(h.Markers) != 1 || h.Existing {
		t.Errorf("Handle = %+v, want one new marker", h)
	}
	want := `<div><p>The <span data-annotation-id="a1" class="highlight highlight-yellow">quick</span> brown fox</p></div>`
	if got := d.ContainerXML(); got != want {
		t.Errorf("ContainerXML() =\n%s\nwant\n%s", got, want)
	}
}

func TestPaintSingleRunAcrossInline(t *testing.T) {
	d := mustParse(t, `<div><p>The <b>quick</b> brown fox</p></div>`)
	p := New(Config{MarkerTag: "mark", ClassPrefix: "hl"})

	// "he quick brown": starts in "The ", ends in " brown fox".
	h, ok := p.Paint(spanAt(t, d, 1, 15), "a2", annotation.Style{Color: "blue"}, d)
	if !ok {
		t.Fatal("Paint() failed")
	}
	if len(h.Markers) != 1 {
		t.Fatalf("len(Markers) = %d, want 1", len(h.Markers))
	}
	want := `<div><p>T<mark data-annotation-id="a2" class="hl hl-blue">he <b>quick</b> brown</mark> fox</p></div>`
	if got := d.ContainerXML(); got != want {
		t.Errorf("ContainerXML() =\n%s\nwant\n%s", got, want)
	}
}

func TestPaintCrossParagraphKeepsBlocks(t *testing.T) {
	d := mustParse(t, "<div><p class=\"a\">first para</p>\n<p class=\"b\">second para</p></div>")
	p := New(DefaultConfig())
	before := tree.TextContent(d, d.Root())

	// "para\nsecond"
	h, ok := p.Paint(spanAt(t, d, 6, 17), "x", yellow, d)
	if !ok {
		t.Fatal("Paint() failed")
	}
	if len(h.Markers) != 2 {
		t.Fatalf("len(Markers) = %d, want 2", len(h.Markers))
	}

	ps := d.ChildrenOfKind(d.Root(), tree.KindElement, "p")
	if len(ps) != 2 || ps[0].Attr("class") != "a" || ps[1].Attr("class") != "b" {
		t.Fatalf("paragraphs changed: %s", d.ContainerXML())
	}
	for _, m := range h.Markers {
		if parent := m.Parent(); parent != ps[0] && parent != ps[1] {
			t.Errorf("marker parent = %v, want one of the paragraphs", parent)
		}
	}
	want := "<div><p class=\"a\">first <span data-annotation-id=\"x\" class=\"highlight highlight-yellow\">para</span></p>\n" +
		"<p class=\"b\"><span data-annotation-id=\"x\" class=\"highlight highlight-yellow\">second</span> para</p></div>"
	if got := d.ContainerXML(); got != want {
		t.Errorf("ContainerXML() =\n%s\nwant\n%s", got, want)
	}
	if got := tree.TextContent(d, d.Root()); got != before {
		t.Errorf("text changed: %q, want %q", got, before)
	}
}

func TestPaintIsIdempotent(t *testing.T) {
	d := mustParse(t, `<div><p>one two</p><p>three four</p></div>`)
	p := New(DefaultConfig())
	span := spanAt(t, d, 4, 12)

	if _, ok := p.Paint(span, "dup", yellow, d); !ok {
		t.Fatal("first Paint() failed")
	}
	after := d.ContainerXML()
	count := len(tree.FindMarkers(d.Root(), "dup"))

	h, ok := p.Paint(span, "dup", yellow, d)
	if !ok || !h.Existing {
		t.Fatalf("second Paint() = %+v, %v, want existing handle", h, ok)
	}
	if got := len(tree.FindMarkers(d.Root(), "dup")); got != count {
		t.Errorf("markers = %d after second paint, want %d", got, count)
	}
	if got := d.ContainerXML(); got != after {
		t.Errorf("second Paint() changed the tree:\n%s\n%s", after, got)
	}
}

func TestUnpaintRestoresText(t *testing.T) {
	docs := []string{
		`<div><p>The quick brown fox</p></div>`,
		`<div><p>The <b>quick</b> brown fox</p></div>`,
		"<div><p>first para</p>\n<p>second <i>para</i></p><ul><li>item</li></ul></div>",
		`<div><p>Hello <em>world</em> and <b>more <i>deep</i></b> text</p></div>`,
		`<div><p><b>x</b> <i>y</i> z</p></div>`,
	}
	p := New(DefaultConfig())
	for i, doc := range docs {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			d := mustParse(t, doc)
			before := tree.TextContent(d, d.Root())
			total := len([]rune(before))
			for start := 0; start < total; start += 3 {
				end := min(start+7, total)
				id := fmt.Sprintf("u%d", start)
				if _, ok := p.Paint(spanAt(t, d, start, end), id, yellow, d); !ok {
					continue
				}
				if !p.Painted(id, d) {
					t.Errorf("Painted(%s) = false after Paint", id)
				}
				if !p.Unpaint(id, d) {
					t.Fatalf("Unpaint(%s) = false", id)
				}
				if got := tree.TextContent(d, d.Root()); got != before {
					t.Fatalf("after unpaint [%d,%d) text = %q, want %q", start, end, got, before)
				}
				if p.Painted(id, d) {
					t.Errorf("markers for %s remain", id)
				}
			}
			if p.Unpaint("never-painted", d) {
				t.Error("Unpaint() of an unknown id = true")
			}
		})
	}
}

func TestPaintKeepsWhitespacePieces(t *testing.T) {
	d := mustParse(t, `<div><p>Hello <em>world</em> and <b>more <i>deep</i></b> text</p></div>`)
	p := New(DefaultConfig())
	const want = "Hello world and more deep text"
	if got := tree.TextContent(d, d.Root()); got != want {
		t.Fatalf("text before paint = %q, want %q", got, want)
	}

	// [3,20) ends right before the space in "more ", leaving a " " piece.
	span := spanAt(t, d, 3, 20)
	if _, ok := p.Paint(span, "ws", yellow, d); !ok {
		t.Fatal("Paint() failed")
	}
	if got := tree.TextContent(d, d.Root()); got != want {
		t.Errorf("text after paint = %q, want %q", got, want)
	}
	var painted strings.Builder
	for _, m := range tree.FindMarkers(d.Root(), "ws") {
		painted.WriteString(tree.TextContent(d, m))
	}
	if got := painted.String(); got != "lo world and more" {
		t.Errorf("painted text = %q, want %q", got, "lo world and more")
	}
	if got := tree.NewTextMap(d, d.Root()).Slice(20, 25); got != " deep" {
		t.Errorf("Slice(20, 25) after paint = %q, want %q", got, " deep")
	}

	if !p.Unpaint("ws", d) {
		t.Fatal("Unpaint() = false")
	}
	if got := tree.TextContent(d, d.Root()); got != want {
		t.Errorf("text after unpaint = %q, want %q", got, want)
	}
}

func TestPaintOverlappingAnnotationsNest(t *testing.T) {
	d := mustParse(t, `<div><p>The quick brown fox</p></div>`)
	p := New(DefaultConfig())
	if _, ok := p.Paint(spanAt(t, d, 4, 15), "outer", yellow, d); !ok {
		t.Fatal("Paint(outer) failed")
	}
	if _, ok := p.Paint(spanAt(t, d, 10, 15), "inner", annotation.Style{Color: "green"}, d); !ok {
		t.Fatal("Paint(inner) failed")
	}
	inner := tree.FindMarkers(d.Root(), "inner")
	if len(inner) != 1 {
		t.Fatalf("inner markers = %d", len(inner))
	}
	if ids := tree.EnclosingMarkers(inner[0].FirstChild(), d.Root()); len(ids) != 2 || ids[0] != "inner" || ids[1] != "outer" {
		t.Errorf("EnclosingMarkers() = %v, want [inner outer]", ids)
	}
	if !p.Unpaint("outer", d) || !p.Painted("inner", d) {
		t.Error("unpainting outer disturbed inner")
	}
	if got := tree.TextContent(d, d.Root()); got != "The quick brown fox" {
		t.Errorf("text = %q", got)
	}
}

func TestPaintDegenerateSpan(t *testing.T) {
	d := mustParse(t, "<div><p>abc</p>\n<p>def</p></div>")
	p := New(DefaultConfig())
	before := d.ContainerXML()

	tests := []struct {
		name string
		span tree.Span
	}{
		{"zero length", spanAt(t, d, 2, 2)},
		{"zero span", tree.Span{}},
		{"whitespace between blocks only", spanAt(t, d, 3, 4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if h, ok := p.Paint(tt.span, "z", yellow, d); ok {
				t.Errorf("Paint() = %+v, want failure", h)
			}
			if got := d.ContainerXML(); got != before {
				t.Errorf("tree changed:\n%s", got)
			}
		})
	}
	if _, ok := p.Plan(spanAt(t, d, 0, 2), "", yellow, d); ok {
		t.Error("Plan() with empty id ok = true")
	}
}

// flakyDoc fails the n-th Wrap call.
type flakyDoc struct {
	*xmltree.Document
	failAt int
	wraps  int
}

func (f *flakyDoc) Wrap(first, last tree.Node, m tree.Marker) (tree.Node, error) {
	f.wraps++
	if f.wraps == f.failAt {
		return nil, fmt.Errorf("host refused wrap")
	}
	return f.Document.Wrap(first, last, m)
}

func TestPaintRollsBackOnEditorFailure(t *testing.T) {
	d := mustParse(t, `<div><p>alpha beta</p><p>gamma delta</p><p>epsilon</p></div>`)
	f := &flakyDoc{Document: d, failAt: 2}
	p := New(DefaultConfig())
	before := tree.TextContent(d, d.Root())

	if _, ok := p.Paint(spanAt(t, f, 6, 25), "r", yellow, f); ok {
		t.Fatal("Paint() ok = true despite editor failure")
	}
	if p.Painted("r", d) {
		t.Errorf("markers left behind: %s", d.ContainerXML())
	}
	if got := tree.TextContent(d, d.Root()); got != before {
		t.Errorf("text = %q, want %q", got, before)
	}
}

func TestApplyErrorReportsOp(t *testing.T) {
	d := mustParse(t, `<div><p>abc</p></div>`)
	s := &Script{AnnotationID: "e"}
	s.split(s.reg(d.Evaluate("./p[1]")), 1)
	_, err := Apply(s, d)
	var ae *ApplyError
	if err == nil || !strings.Contains(err.Error(), "op 0 (split-text") {
		t.Fatalf("Apply() error = %v", err)
	}
	if !errors.As(err, &ae) || ae.Index != 0 || ae.Op.Kind != OpSplitText {
		t.Errorf("ApplyError = %+v", ae)
	}
}

func TestPaintHTMLHost(t *testing.T) {
	d, err := htmltree.ParseString(`<p>The quick<br>brown fox`)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}
	p := New(DefaultConfig())
	h, ok := p.Paint(spanAt(t, d, 4, 14), "h", annotation.Style{Color: "pink"}, d)
	if !ok {
		t.Fatal("Paint() failed")
	}
	if len(h.Markers) != 1 {
		t.Errorf("len(Markers) = %d, want 1 (br is inline)", len(h.Markers))
	}
	if !strings.Contains(d.String(), `<span data-annotation-id="h" class="highlight highlight-pink">quick<br/>brown</span>`) {
		t.Errorf("rendered = %s", d.String())
	}
}

func TestUnpaintScript(t *testing.T) {
	d := mustParse(t, `<div><p>ab</p><p>cd</p></div>`)
	p := New(DefaultConfig())
	if _, ok := p.Paint(spanAt(t, d, 1, 3), "s", yellow, d); !ok {
		t.Fatal("Paint() failed")
	}
	s, ok := UnpaintScript("s", d)
	if !ok {
		t.Fatal("UnpaintScript() failed")
	}
	if len(s.Ops) != 2 || s.Ops[0].Kind != OpUnwrapMarker {
		t.Errorf("ops = %v", s.Ops)
	}
	if !strings.Contains(s.String(), "unwrap-marker r0") {
		t.Errorf("String() = %q", s.String())
	}
	if _, ok := UnpaintScript("none", d); ok {
		t.Error("UnpaintScript(none) ok = true")
	}
}
