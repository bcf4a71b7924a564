// Package paint marks resolved spans in a container by wrapping their text in
// marker elements.
//
// Painting is split in two: Plan reads the tree and produces a Script, a short
// list of split-text, wrap-range and unwrap-marker operations over a register
// table of nodes; Apply runs a script through the host's tree.Editor. Plans can
// be inspected and tested without mutating anything.
package paint

import (
	"fmt"
	"slices"
	"strings"

	"github.com/FocuswithJustin/marginalia/core/tree"
)

// OpKind names a script operation.
type OpKind string

// Script operations.
const (
	OpSplitText    OpKind = "split-text"
	OpWrapRange    OpKind = "wrap-range"
	OpUnwrapMarker OpKind = "unwrap-marker"
)

// Ref indexes the script's register table.
type Ref int

// NoRef marks an unused register operand.
const NoRef Ref = -1

// Op is one edit. Operands by kind:
//
//	split-text:    Target text node, Offset, Result receives the tail
//	wrap-range:    Target first sibling, Last sibling, Result receives the marker
//	unwrap-marker: Target marker
type Op struct {
	Kind   OpKind
	Target Ref
	Last   Ref
	Offset int
	Result Ref
}

func (o Op) String() string {
	switch o.Kind {
	case OpSplitText:
		return fmt.Sprintf("%s r%d @%d -> r%d", o.Kind, o.Target, o.Offset, o.Result)
	case OpWrapRange:
		return fmt.Sprintf("%s r%d..r%d -> r%d", o.Kind, o.Target, o.Last, o.Result)
	default:
		return fmt.Sprintf("%s r%d", o.Kind, o.Target)
	}
}

// Script is an edit script for one annotation. Nodes holds the registers:
// live nodes known at planning time, and nil slots filled by operation results
// while the script runs.
type Script struct {
	AnnotationID string
	Marker       tree.Marker
	Nodes        []tree.Node
	Ops          []Op
}

// Wraps returns the number of markers the script creates.
func (s *Script) Wraps() int {
	n := 0
	for _, op := range s.Ops {
		if op.Kind == OpWrapRange {
			n++
		}
	}
	return n
}

// String renders one operation per line.
func (s *Script) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "script %s (%d registers)\n", s.AnnotationID, len(s.Nodes))
	for _, op := range s.Ops {
		b.WriteString("  ")
		b.WriteString(op.String())
		b.WriteByte('\n')
	}
	return b.String()
}

func (s *Script) reg(n tree.Node) Ref {
	s.Nodes = append(s.Nodes, n)
	return Ref(len(s.Nodes) - 1)
}

func (s *Script) split(r Ref, offset int) Ref {
	res := s.reg(nil)
	s.Ops = append(s.Ops, Op{Kind: OpSplitText, Target: r, Last: NoRef, Offset: offset, Result: res})
	return res
}

func (s *Script) wrap(first, last Ref) {
	res := s.reg(nil)
	s.Ops = append(s.Ops, Op{Kind: OpWrapRange, Target: first, Last: last, Result: res})
}

func (s *Script) unwrap(r Ref) {
	s.Ops = append(s.Ops, Op{Kind: OpUnwrapMarker, Target: r, Last: NoRef, Result: NoRef})
}

// ApplyError reports the operation a host editor rejected.
type ApplyError struct {
	Index int
	Op    Op
	Err   error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("op %d (%s): %v", e.Index, e.Op, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }

// Apply runs the script and returns the markers it created. If the editor
// fails, markers created so far are unwrapped again before the error is
// returned. Splits are not undone; text content is unchanged by them.
func Apply(s *Script, ed tree.Editor) ([]tree.Node, error) {
	regs := slices.Clone(s.Nodes)
	var markers []tree.Node
	for i, op := range s.Ops {
		var err error
		switch op.Kind {
		case OpSplitText:
			var rest tree.Node
			rest, err = ed.SplitText(regs[op.Target], op.Offset)
			if err == nil {
				regs[op.Result] = rest
			}
		case OpWrapRange:
			var m tree.Node
			m, err = ed.Wrap(regs[op.Target], regs[op.Last], s.Marker)
			if err == nil {
				regs[op.Result] = m
				markers = append(markers, m)
			}
		case OpUnwrapMarker:
			err = ed.Unwrap(regs[op.Target])
		default:
			err = fmt.Errorf("unknown op kind %q", op.Kind)
		}
		if err != nil {
			rollback(ed, markers)
			return nil, &ApplyError{Index: i, Op: op, Err: err}
		}
	}
	return markers, nil
}

func rollback(ed tree.Editor, markers []tree.Node) {
	for i := len(markers) - 1; i >= 0; i-- {
		_ = ed.Unwrap(markers[i])
	}
}
