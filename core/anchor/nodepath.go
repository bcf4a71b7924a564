package anchor

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/marginalia/core/cache"
	"github.com/FocuswithJustin/marginalia/core/errors"
	"github.com/FocuswithJustin/marginalia/core/tree"
)

// Step is one level of a NodePath: an element counted among same-tag element
// siblings, or a text node counted among text siblings. Index is 0-based.
type Step struct {
	Text  bool
	Tag   string
	Index int
}

// String renders the step in XPath form with a 1-based index.
func (s Step) String() string {
	if s.Text {
		return "text()[" + strconv.Itoa(s.Index+1) + "]"
	}
	return s.Tag + "[" + strconv.Itoa(s.Index+1) + "]"
}

// kind returns the tree kind the step selects.
func (s Step) kind() tree.Kind {
	if s.Text {
		return tree.KindText
	}
	return tree.KindElement
}

// NodePath is the structural address of a node relative to a container.
// The empty path addresses the container itself.
type NodePath []Step

// String renders the path, e.g. "/div[1]/p[2]/text()[1]".
func (p NodePath) String() string {
	if len(p) == 0 {
		return ""
	}
	var b strings.Builder
	for _, s := range p {
		b.WriteByte('/')
		b.WriteString(s.String())
	}
	return b.String()
}

// XPath renders the equivalent XPath expression relative to the container.
func (p NodePath) XPath() string {
	return "." + p.String()
}

// Equal reports whether two paths address the same steps.
func (p NodePath) Equal(o NodePath) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// MarshalText implements encoding.TextMarshaler.
func (p NodePath) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *NodePath) UnmarshalText(data []byte) error {
	parsed, err := ParsePath(string(data))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// pathGrammar is the participle grammar for path strings.
// Examples: "", "/", "/p[1]", "/body[1]/div[2]/text()[3]", "./p[1]"
//
//nolint:govet // participle grammar tags are not standard struct tags
type pathGrammar struct {
	Dot   bool           `@"."?`
	Steps []*stepGrammar `( "/" @@ )*`
}

//nolint:govet // participle grammar tags are not standard struct tags
type stepGrammar struct {
	Text  bool   `( @TextTest`
	Tag   string `| @Name )`
	Index int    `"[" @Int "]"`
}

// pathLexer defines the lexer for path strings. TextTest must precede Name so
// that "text()" is not read as an element called "text".
var pathLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "TextTest", Pattern: `text\(\)`},
	{Name: "Name", Pattern: `[A-Za-z_][A-Za-z0-9_.:\-]*`},
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Punct", Pattern: `[./\[\]]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var pathParser = participle.MustBuild[pathGrammar](
	participle.Lexer(pathLexer),
	participle.Elide("Whitespace"),
)

// parsedPaths caches parse results. Stored positions repeat the same few
// paths, and each one is parsed on every load.
var parsedPaths = cache.New[string, NodePath](1024)

// ParsePath parses a path string produced by NodePath.String or XPath.
func ParsePath(s string) (NodePath, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "/" || s == "." {
		return NodePath{}, nil
	}
	if p, ok := parsedPaths.Get(s); ok {
		return slices.Clone(p), nil
	}
	parsed, err := pathParser.ParseString("", s)
	if err != nil {
		return nil, &errors.ParseError{Format: "node path", Message: fmt.Sprintf("%q: %v", s, err), Err: err}
	}
	path := make(NodePath, 0, len(parsed.Steps))
	for _, st := range parsed.Steps {
		if st.Index < 1 {
			return nil, &errors.ParseError{Format: "node path", Message: fmt.Sprintf("%q: index must be >= 1", s)}
		}
		path = append(path, Step{Text: st.Text, Tag: st.Tag, Index: st.Index - 1})
	}
	parsedPaths.Put(s, slices.Clone(path))
	return path, nil
}
