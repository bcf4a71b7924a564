package tree_test

import (
	"testing"

	"github.com/FocuswithJustin/marginalia/core/tree"
	"github.com/FocuswithJustin/marginalia/core/tree/xmltree"
)

func parse(t *testing.T, s string) *xmltree.Document {
	t.Helper()
	d, err := xmltree.ParseString(s)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}
	return d
}

func TestTextMapLocate(t *testing.T) {
	d := parse(t, `<div><p>ab<b>cd</b></p><p>ef</p></div>`)
	tm := tree.NewTextMap(d, d.Root())
	if got := tm.Text(); got != "abcdef" {
		t.Fatalf("Text() = %q, want %q", got, "abcdef")
	}

	tests := []struct {
		offset    int
		preferEnd bool
		wantData  string
		wantOff   int
	}{
		{0, false, "ab", 0},
		{0, true, "ab", 0},
		{2, false, "cd", 0},
		{2, true, "ab", 2},
		{3, false, "cd", 1},
		{4, true, "cd", 2},
		{4, false, "ef", 0},
		{6, true, "ef", 2},
		{6, false, "ef", 2},
		{99, false, "ef", 2},
		{-3, false, "ab", 0},
	}
	for _, tt := range tests {
		b, ok := tm.Locate(tt.offset, tt.preferEnd)
		if !ok {
			t.Errorf("Locate(%d, %v) failed", tt.offset, tt.preferEnd)
			continue
		}
		if b.Node.Data() != tt.wantData || b.Offset != tt.wantOff {
			t.Errorf("Locate(%d, %v) = (%q, %d), want (%q, %d)",
				tt.offset, tt.preferEnd, b.Node.Data(), b.Offset, tt.wantData, tt.wantOff)
		}
	}
}

func TestTextMapOffsetOf(t *testing.T) {
	d := parse(t, `<div><p>ab<b>cd</b></p><p>ef</p></div>`)
	tm := tree.NewTextMap(d, d.Root())
	p1 := d.Evaluate("./p[1]")
	p2 := d.Evaluate("./p[2]")

	tests := []struct {
		name string
		b    tree.Boundary
		want int
	}{
		{"text start", tree.Boundary{Node: d.Evaluate("./p[1]/b[1]/text()[1]"), Offset: 1}, 3},
		{"text overrun clamps", tree.Boundary{Node: d.Evaluate("./p[2]/text()[1]"), Offset: 10}, 6},
		{"element before child", tree.Boundary{Node: p1, Offset: 1}, 2},
		{"element end", tree.Boundary{Node: p1, Offset: 2}, 4},
		{"container start", tree.Boundary{Node: d.Root(), Offset: 1}, 4},
		{"container end", tree.Boundary{Node: d.Root(), Offset: 2}, 6},
		{"last element end", tree.Boundary{Node: p2, Offset: 1}, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tm.OffsetOf(tt.b)
			if !ok || got != tt.want {
				t.Errorf("OffsetOf() = %d, %v, want %d", got, ok, tt.want)
			}
		})
	}

	other := parse(t, `<div><p>zz</p></div>`)
	if _, ok := tm.OffsetOf(tree.Boundary{Node: other.Evaluate("./p[1]/text()[1]")}); ok {
		t.Error("OffsetOf() ok = true for a foreign node")
	}
}

func TestTextMapIntervalOrdersEndpoints(t *testing.T) {
	d := parse(t, `<div><p>hello world</p></div>`)
	tm := tree.NewTextMap(d, d.Root())
	text := d.Evaluate("./p[1]/text()[1]")
	start, end, ok := tm.Interval(tree.Span{
		Start: tree.Boundary{Node: text, Offset: 11},
		End:   tree.Boundary{Node: text, Offset: 6},
	})
	if !ok || start != 6 || end != 11 {
		t.Errorf("Interval() = %d, %d, %v, want 6, 11, true", start, end, ok)
	}
	if got := tm.Slice(start, end); got != "world" {
		t.Errorf("Slice() = %q, want %q", got, "world")
	}
}

func TestMultibyteOffsetsCountRunes(t *testing.T) {
	d := parse(t, `<div><p>αβγ δ</p></div>`)
	tm := tree.NewTextMap(d, d.Root())
	if tm.Len() != 5 {
		t.Errorf("Len() = %d, want 5", tm.Len())
	}
	if got := tm.Slice(1, 3); got != "βγ" {
		t.Errorf("Slice(1,3) = %q, want %q", got, "βγ")
	}
	b, _ := tm.Locate(4, false)
	if b.Offset != 4 {
		t.Errorf("Locate(4).Offset = %d, want 4", b.Offset)
	}
}

func TestMarkers(t *testing.T) {
	d := parse(t, `<div><p>a<span data-annotation-id="x">b<span data-annotation-id="y">c</span></span></p><p><span data-annotation-id="x">d</span></p></div>`)
	if got := len(tree.FindMarkers(d.Root(), "x")); got != 2 {
		t.Errorf("len(FindMarkers(x)) = %d, want 2", got)
	}
	if got := tree.FindMarkers(d.Root(), ""); got != nil {
		t.Errorf("FindMarkers(\"\") = %v, want nil", got)
	}
	inner := d.Evaluate(".//span[@data-annotation-id='y']/text()[1]")
	ids := tree.EnclosingMarkers(inner, d.Root())
	if len(ids) != 2 || ids[0] != "y" || ids[1] != "x" {
		t.Errorf("EnclosingMarkers() = %v, want [y x]", ids)
	}
}

func TestBlockAndWhitespace(t *testing.T) {
	d := parse(t, "<div><p>x</p>\n  <em>y</em></div>")
	if !tree.IsBlock(d.Evaluate("./p[1]")) {
		t.Error("IsBlock(p) = false")
	}
	if tree.IsBlock(d.Evaluate("./em[1]")) {
		t.Error("IsBlock(em) = true")
	}
	if !tree.IsWhitespace(d.Evaluate("./text()[1]")) {
		t.Error("IsWhitespace(newline text) = false")
	}
	if tree.IsWhitespace(d.Evaluate("./p[1]/text()[1]")) {
		t.Error("IsWhitespace(x) = true")
	}
}

func TestWalkerAncestorsUntil(t *testing.T) {
	d := parse(t, `<div><p><b>x</b></p></div>`)
	text := d.Evaluate("./p[1]/b[1]/text()[1]")
	chain, ok := d.AncestorsUntil(text, d.Root())
	if !ok || len(chain) != 3 {
		t.Fatalf("AncestorsUntil() = %v, %v", chain, ok)
	}
	if chain[0].Tag() != "p" || chain[1].Tag() != "b" || chain[2] != text {
		t.Errorf("chain is not top-down: %v", chain)
	}
	if chain, ok := d.AncestorsUntil(d.Root(), d.Root()); !ok || len(chain) != 0 {
		t.Errorf("AncestorsUntil(root, root) = %v, %v", chain, ok)
	}
}
