package anchor

import (
	"encoding/json"
	"testing"

	"github.com/FocuswithJustin/marginalia/core/errors"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		in   string
		want NodePath
	}{
		{"", NodePath{}},
		{"/", NodePath{}},
		{".", NodePath{}},
		{"/p[1]", NodePath{{Tag: "p", Index: 0}}},
		{"./p[2]/text()[1]", NodePath{{Tag: "p", Index: 1}, {Text: true, Index: 0}}},
		{"/div[1]/ns:em[3]", NodePath{{Tag: "div"}, {Tag: "ns:em", Index: 2}}},
		{" /section[1] ", NodePath{{Tag: "section"}}},
	}
	for _, tt := range tests {
		got, err := ParsePath(tt.in)
		if err != nil {
			t.Errorf("ParsePath(%q) error = %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParsePath(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParsePathErrors(t *testing.T) {
	for _, in := range []string{"/p[0]", "/p", "p[1]", "/p[1]/", "/text()", "/p[x]"} {
		_, err := ParsePath(in)
		if err == nil {
			t.Errorf("ParsePath(%q) error = nil, want error", in)
			continue
		}
		var pe *errors.ParseError
		if !errors.As(err, &pe) {
			t.Errorf("ParsePath(%q) error = %T, want *ParseError", in, err)
		}
	}
}

func TestParsePathReturnsCopies(t *testing.T) {
	first, err := ParsePath("/div[1]/p[3]")
	if err != nil {
		t.Fatalf("ParsePath() error = %v", err)
	}
	first[1].Index = 99
	second, _ := ParsePath("/div[1]/p[3]")
	if second[1].Index != 2 {
		t.Errorf("cached path was mutated: %v", second)
	}
}

func TestNodePathString(t *testing.T) {
	p := NodePath{{Tag: "div"}, {Tag: "p", Index: 1}, {Text: true}}
	if got, want := p.String(), "/div[1]/p[2]/text()[1]"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if got, want := p.XPath(), "./div[1]/p[2]/text()[1]"; got != want {
		t.Errorf("XPath() = %q, want %q", got, want)
	}
	data, err := json.Marshal(Point{Path: p, Offset: 3})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if got, want := string(data), `{"path":"/div[1]/p[2]/text()[1]","offset":3}`; got != want {
		t.Errorf("Marshal() = %s, want %s", got, want)
	}
}

func TestEncodeDecodeEveryTextNode(t *testing.T) {
	d := mustParse(t, `<div><p>one <b>two</b> three</p><ul><li>a</li><li>b <i>c</i></li></ul><p>four</p></div>`)
	for _, n := range d.PreOrderTextNodes(d.Root()) {
		path, ok := EncodePath(n, d)
		if !ok {
			t.Fatalf("EncodePath(%q) failed", n.Data())
		}
		if got := DecodePath(path, d); got != n {
			t.Errorf("DecodePath(%s) = %v, want node %q", path, got, n.Data())
		}
		// The string form is a valid XPath relative to the container.
		if got := d.Evaluate(path.XPath()); got != n {
			t.Errorf("Evaluate(%s) did not select node %q", path.XPath(), n.Data())
		}
		parsed, err := ParsePath(path.String())
		if err != nil || !parsed.Equal(path) {
			t.Errorf("ParsePath(%s) = %v, %v", path, parsed, err)
		}
	}
}

func TestEncodePathCountsSameTagOnly(t *testing.T) {
	d := mustParse(t, `<div><p>a</p><blockquote>q</blockquote><p>b</p></div>`)
	target := d.Evaluate("./p[2]/text()[1]")
	path, ok := EncodePath(target, d)
	if !ok {
		t.Fatal("EncodePath() failed")
	}
	if got, want := path.String(), "/p[2]/text()[1]"; got != want {
		t.Errorf("path = %q, want %q", got, want)
	}
}

func TestEncodePathOutsideContainer(t *testing.T) {
	d := mustParse(t, foxDoc)
	other := mustParse(t, foxDoc)
	if _, ok := EncodePath(other.Evaluate("./p[1]/text()[1]"), d); ok {
		t.Error("EncodePath() ok = true for a node from another document")
	}

	section, err := d.Select("./p[2]")
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if _, ok := EncodePath(d.Evaluate("./p[1]/text()[1]"), section); ok {
		t.Error("EncodePath() ok = true for a node outside the selected container")
	}
	if _, ok := EncodePath(nil, d); ok {
		t.Error("EncodePath(nil) ok = true")
	}
}

func TestEncodePathContainerItself(t *testing.T) {
	d := mustParse(t, foxDoc)
	path, ok := EncodePath(d.Root(), d)
	if !ok || len(path) != 0 {
		t.Errorf("EncodePath(root) = %v, %v, want empty path", path, ok)
	}
	if got := DecodePath(path, d); got != d.Root() {
		t.Error("DecodePath(empty) did not return the container")
	}
}

func TestDecodePathMisses(t *testing.T) {
	d := mustParse(t, foxDoc)
	tests := []NodePath{
		{{Tag: "p", Index: 5}},
		{{Tag: "section"}},
		{{Tag: "p"}, {Text: true, Index: 1}},
		{{Tag: "p"}, {Text: true}, {Text: true}},
		{{Tag: "p", Index: -1}},
	}
	for _, p := range tests {
		if got := DecodePath(p, d); got != nil {
			t.Errorf("DecodePath(%s) = %v, want nil", p, got)
		}
	}
	if got := DecodePath(NodePath{}, nil); got != nil {
		t.Errorf("DecodePath(nil container) = %v, want nil", got)
	}
}
