package anchor

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/FocuswithJustin/marginalia/core/tree"
)

// DefaultPrefixLen is the snapshot prefix, in runes, retried when the full
// snapshot is not found.
const DefaultPrefixLen = 20

// TextMatcher locates a snapshot in the container's flattened text. It never
// edits the tree.
type TextMatcher struct {
	// PrefixLen overrides DefaultPrefixLen when positive.
	PrefixLen int
}

// FindByText returns the span of the first occurrence of snapshot, comparing
// with whitespace runs collapsed to one space. When the whole snapshot is
// missing, the first PrefixLen runes are searched instead and the span is
// extended to the snapshot's length, clamped to the end of the text.
func (m TextMatcher) FindByText(snapshot string, c tree.Container) (tree.Span, bool) {
	if c == nil {
		return tree.Span{}, false
	}
	needle := []rune(strings.TrimSpace(string(normalize([]rune(snapshot), nil))))
	if len(needle) == 0 {
		return tree.Span{}, false
	}

	tm := tree.NewTextMap(c, c.Root())
	var raw []int
	hay := normalize([]rune(tm.Text()), &raw)

	start := runeIndex(hay, needle)
	end := start + len(needle)
	if start < 0 {
		prefixLen := m.PrefixLen
		if prefixLen <= 0 {
			prefixLen = DefaultPrefixLen
		}
		if len(needle) <= prefixLen {
			return tree.Span{}, false
		}
		start = runeIndex(hay, needle[:prefixLen])
		if start < 0 {
			return tree.Span{}, false
		}
		end = min(start+len(needle), len(hay))
	}

	rawStart, rawEnd := raw[start], raw[end-1]+1
	sb, ok := tm.Locate(rawStart, false)
	if !ok {
		return tree.Span{}, false
	}
	eb, ok := tm.Locate(rawEnd, true)
	if !ok {
		return tree.Span{}, false
	}
	return tree.Span{Start: sb, End: eb}, true
}

// normalize collapses every whitespace run to a single space. When raw is not
// nil it receives, for each output rune, the index of its source rune.
func normalize(in []rune, raw *[]int) []rune {
	out := make([]rune, 0, len(in))
	var idx []int
	if raw != nil {
		idx = make([]int, 0, len(in))
	}
	space := false
	for i, r := range in {
		if unicode.IsSpace(r) {
			if space {
				continue
			}
			space = true
			r = ' '
		} else {
			space = false
		}
		out = append(out, r)
		if raw != nil {
			idx = append(idx, i)
		}
	}
	if raw != nil {
		*raw = idx
	}
	return out
}

// runeIndex is strings.Index over rune slices, returning a rune index.
func runeIndex(hay, needle []rune) int {
	h, n := string(hay), string(needle)
	i := strings.Index(h, n)
	if i < 0 {
		return -1
	}
	return utf8.RuneCountInString(h[:i])
}
