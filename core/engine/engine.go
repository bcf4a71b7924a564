// Package engine is the public entry point for anchoring, restoring and
// painting annotations in a host tree.
//
// Every call takes the container explicitly and the engine keeps no reference
// to it between calls. Calls are synchronous; a mutating call made while
// another is in progress (for example from a host editor callback) is refused.
package engine

import (
	"slices"
	"strings"
	"sync"

	"github.com/FocuswithJustin/marginalia/core/anchor"
	"github.com/FocuswithJustin/marginalia/core/annotation"
	"github.com/FocuswithJustin/marginalia/core/paint"
	"github.com/FocuswithJustin/marginalia/core/render"
	"github.com/FocuswithJustin/marginalia/core/tree"
	"github.com/FocuswithJustin/marginalia/internal/logging"
)

// State is the engine's activity.
type State int

const (
	// Idle accepts any operation.
	Idle State = iota
	// Resolving is set while a stored position is turned into a span.
	Resolving
	// Painting is set while markers are added or removed.
	Painting
)

// String returns the lower-case state name used in logs.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Resolving:
		return "resolving"
	case Painting:
		return "painting"
	default:
		return "unknown"
	}
}

// Config collects the component settings.
type Config struct {
	Paint  paint.Config
	Render render.Config
	// RelationLimit caps ClassifyAgainstExisting comparisons.
	RelationLimit int
	// PrefixLen is the text fallback's retry prefix in runes.
	PrefixLen int
}

// DefaultConfig returns the component defaults.
func DefaultConfig() Config {
	return Config{
		Paint:         paint.DefaultConfig(),
		Render:        render.DefaultConfig(),
		RelationLimit: annotation.DefaultRelationLimit,
		PrefixLen:     anchor.DefaultPrefixLen,
	}
}

// Selection is a live user selection and the scope it was made in.
type Selection struct {
	Span  tree.Span
	Scope string
}

// Interaction names how a user reached a marker.
type Interaction string

// Interactions a host can report.
const (
	Click Interaction = "click"
	Hover Interaction = "hover"
	Focus Interaction = "focus"
)

// MarkerActivated is emitted when a user interacts with painted text.
type MarkerActivated struct {
	AnnotationID string      `json:"annotation_id"`
	Interaction  Interaction `json:"interaction"`
	// Enclosing lists every annotation whose markers enclose the node,
	// innermost first. AnnotationID is Enclosing[0].
	Enclosing []string `json:"enclosing"`
}

// Engine ties the resolver, painter and detector together.
type Engine struct {
	cfg      Config
	resolver *anchor.Resolver
	painter  *paint.Painter
	detector *annotation.Detector
	state    State

	mu      sync.Mutex
	subs    map[int]func(MarkerActivated)
	nextSub int
}

// New returns an idle engine.
func New(cfg Config) *Engine {
	resolver := &anchor.Resolver{
		Decoder: anchor.SpanCodec{},
		Matcher: anchor.TextMatcher{PrefixLen: cfg.PrefixLen},
	}
	det := annotation.NewDetector(resolver)
	det.Limit = cfg.RelationLimit
	return &Engine{
		cfg:      cfg,
		resolver: resolver,
		painter:  paint.New(cfg.Paint),
		detector: det,
		subs:     make(map[int]func(MarkerActivated)),
	}
}

// State returns the current activity.
func (e *Engine) State() State { return e.state }

func (e *Engine) enter(s State, op string) bool {
	if e.state != Idle {
		logging.EngineRefused(op, e.state.String())
		return false
	}
	e.state = s
	return true
}

func (e *Engine) leave() { e.state = Idle }

// CreateAnnotation anchors and paints a selection. It fails for an empty
// selection or one the painter cannot mark.
func (e *Engine) CreateAnnotation(sel Selection, c tree.Container, style annotation.Style) (*annotation.Annotation, bool) {
	if c == nil || sel.Span.IsZero() {
		return nil, false
	}
	if !e.enter(Resolving, "create") {
		return nil, false
	}
	defer e.leave()

	tm := tree.NewTextMap(c, c.Root())
	start, end, ok := tm.Interval(sel.Span)
	if !ok || start >= end {
		return nil, false
	}
	text := tm.Slice(start, end)
	if strings.TrimSpace(text) == "" {
		return nil, false
	}
	pos, ok := anchor.Serialize(sel.Span, c)
	if !ok {
		return nil, false
	}
	a := annotation.New(sel.Scope, pos, text, style)

	e.state = Painting
	if _, ok := e.painter.Paint(sel.Span, a.ID, a.Style, c); !ok {
		return nil, false
	}
	return a, true
}

// RestoreAnnotation resolves a stored annotation and paints it. Restoring an
// annotation that is already painted succeeds without changing the tree.
func (e *Engine) RestoreAnnotation(a *annotation.Annotation, c tree.Container) bool {
	if a == nil || c == nil {
		return false
	}
	if !e.enter(Resolving, "restore") {
		return false
	}
	defer e.leave()

	if e.painter.Painted(a.ID, c) {
		return true
	}
	res, ok := e.resolver.ResolveID(a.ID, a.Position, c, a.Text)
	if !ok {
		return false
	}
	e.state = Painting
	_, ok = e.painter.Paint(res.Span, a.ID, a.Style, c)
	return ok
}

// RemoveAnnotation unpaints every marker for id.
func (e *Engine) RemoveAnnotation(id string, c tree.Container) bool {
	if c == nil {
		return false
	}
	if !e.enter(Painting, "remove") {
		return false
	}
	defer e.leave()
	return e.painter.Unpaint(id, c)
}

// ClassifyAgainstExisting returns a's relations to the existing annotations,
// skipping any that do not resolve.
func (e *Engine) ClassifyAgainstExisting(a *annotation.Annotation, existing []*annotation.Annotation, c tree.Container) []annotation.RelationRef {
	if a == nil || c == nil {
		return nil
	}
	return e.detector.ClassifyAgainst(a, existing, c)
}

// Resolve exposes the two-tier resolver for read-only callers.
func (e *Engine) Resolve(a *annotation.Annotation, c tree.Container) (anchor.Resolution, bool) {
	if a == nil {
		return anchor.Resolution{}, false
	}
	return e.resolver.ResolveID(a.ID, a.Position, c, a.Text)
}

// AttachRenderer creates a virtual renderer that paints through this engine.
// If viewport is non-nil the first render is requested immediately.
func (e *Engine) AttachRenderer(c tree.Container, viewport func() render.Viewport, s render.Scheduler, anns []*annotation.Annotation, opts ...render.Option) *render.Renderer {
	r := render.New(e.cfg.Render, rendererPainter{e}, s, c, anns, opts...)
	if viewport != nil {
		_ = r.Render(viewport())
	}
	return r
}

type rendererPainter struct{ e *Engine }

func (p rendererPainter) Restore(a *annotation.Annotation, c tree.Container) bool {
	return p.e.RestoreAnnotation(a, c)
}

func (p rendererPainter) Remove(id string, c tree.Container) bool {
	return p.e.RemoveAnnotation(id, c)
}

func (p rendererPainter) Busy() bool { return p.e.State() != Idle }

// Subscribe registers fn for marker activations and returns a function that
// removes it.
func (e *Engine) Subscribe(fn func(MarkerActivated)) (unsubscribe func()) {
	e.mu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	e.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.subs, id)
			e.mu.Unlock()
		})
	}
}

// Activate reports an interaction with node. If node lies inside markers an
// event naming the innermost annotation is sent to every subscriber.
func (e *Engine) Activate(node tree.Node, interaction Interaction, c tree.Container) (MarkerActivated, bool) {
	if node == nil || c == nil || !tree.Contains(c.Root(), node) {
		return MarkerActivated{}, false
	}
	ids := tree.EnclosingMarkers(node, c.Root())
	if len(ids) == 0 {
		return MarkerActivated{}, false
	}
	evt := MarkerActivated{AnnotationID: ids[0], Interaction: interaction, Enclosing: ids}

	e.mu.Lock()
	keys := make([]int, 0, len(e.subs))
	for k := range e.subs {
		keys = append(keys, k)
	}
	fns := make([]func(MarkerActivated), 0, len(keys))
	slices.Sort(keys)
	for _, k := range keys {
		fns = append(fns, e.subs[k])
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(evt)
	}
	return evt, true
}
