// Package render paints only the annotations near the viewport.
//
// Annotations are placed on an estimated vertical axis derived from their
// flattened text offset. Render computes the visible range with a binary
// search, unpaints markers that scrolled away, and paints the newly visible
// ones across scheduler frames, stopping each frame once its time budget is
// spent.
package render

import (
	"math"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/FocuswithJustin/marginalia/core/anchor"
	"github.com/FocuswithJustin/marginalia/core/annotation"
	"github.com/FocuswithJustin/marginalia/core/errors"
	"github.com/FocuswithJustin/marginalia/core/tree"
	"github.com/FocuswithJustin/marginalia/internal/logging"
)

// Viewport is the visible window in layout units.
type Viewport struct {
	ScrollTop float64
	Height    float64
}

// Range is a half-open index range into the sorted items.
type Range struct {
	Start, End int
}

// Len returns the number of items in the range.
func (r Range) Len() int { return r.End - r.Start }

// Config holds the layout estimate and frame pacing.
type Config struct {
	LineHeight   float64
	CharsPerLine int
	// BufferFactor extends the visible range by this many viewport heights
	// above and below.
	BufferFactor float64
	FrameBudget  time.Duration
	MinInterval  time.Duration
}

// DefaultConfig returns the default estimate and pacing.
func DefaultConfig() Config {
	return Config{
		LineHeight:   24,
		CharsPerLine: 80,
		BufferFactor: 1,
		FrameBudget:  8 * time.Millisecond,
		MinInterval:  16 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.LineHeight <= 0 {
		c.LineHeight = def.LineHeight
	}
	if c.CharsPerLine <= 0 {
		c.CharsPerLine = def.CharsPerLine
	}
	if c.BufferFactor < 0 {
		c.BufferFactor = 0
	}
	if c.FrameBudget <= 0 {
		c.FrameBudget = def.FrameBudget
	}
	if c.MinInterval < 0 {
		c.MinInterval = 0
	}
	return c
}

// Painter restores and removes one annotation's markers. While Busy reports
// true the renderer leaves its queue untouched and retries on a later frame.
type Painter interface {
	Restore(a *annotation.Annotation, c tree.Container) bool
	Remove(id string, c tree.Container) bool
	Busy() bool
}

type item struct {
	ann *annotation.Annotation
	y   float64
}

// Stats counts renderer work since creation.
type Stats struct {
	Frames  int
	Painted int
	Evicted int
	Failed  int
}

// Renderer keeps the painted set in step with the viewport.
type Renderer struct {
	cfg       Config
	painter   Painter
	sched     Scheduler
	container tree.Container
	clock     func() time.Time

	items   []item
	painted map[string]bool
	failed  map[string]bool
	queue   []*annotation.Annotation
	queued  map[string]bool

	frame      FrameID
	deferred   *Viewport
	lastRender time.Time
	destroyed  bool
	stats      Stats
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithClock replaces time.Now for throttling and frame budgets.
func WithClock(clock func() time.Time) Option {
	return func(r *Renderer) { r.clock = clock }
}

// New returns a renderer over anns in container c.
func New(cfg Config, p Painter, s Scheduler, c tree.Container, anns []*annotation.Annotation, opts ...Option) *Renderer {
	r := &Renderer{
		cfg:       cfg.withDefaults(),
		painter:   p,
		sched:     s,
		container: c,
		clock:     time.Now,
		painted:   make(map[string]bool),
		failed:    make(map[string]bool),
		queued:    make(map[string]bool),
	}
	for _, o := range opts {
		o(r)
	}
	r.place(anns)
	return r
}

// SetAnnotations replaces the annotation set. Markers of annotations no
// longer present are removed; the rest are painted on the next Render.
func (r *Renderer) SetAnnotations(anns []*annotation.Annotation) error {
	if r.destroyed {
		return errors.ErrDestroyed
	}
	keep := make(map[string]bool, len(anns))
	for _, a := range anns {
		keep[a.ID] = true
	}
	for id := range r.painted {
		if !keep[id] {
			r.evict(id)
		}
	}
	r.queue, r.queued = nil, make(map[string]bool)
	r.failed = make(map[string]bool)
	r.place(anns)
	return nil
}

func (r *Renderer) place(anns []*annotation.Annotation) {
	var tm *tree.TextMap
	if r.container != nil {
		tm = tree.NewTextMap(r.container, r.container.Root())
	}
	r.items = r.items[:0]
	for _, a := range anns {
		if a == nil {
			continue
		}
		r.items = append(r.items, item{ann: a, y: r.estimate(a, tm)})
	}
	sort.SliceStable(r.items, func(i, j int) bool { return r.items[i].y < r.items[j].y })
}

// estimate returns the line-based vertical position of a, or +Inf when it
// cannot be placed.
func (r *Renderer) estimate(a *annotation.Annotation, tm *tree.TextMap) float64 {
	if tm == nil {
		return math.Inf(1)
	}
	offset := -1
	if a.Position != nil {
		if b, ok := anchor.DecodePoint(a.Position.Start, r.container); ok {
			if o, ok := tm.OffsetOf(b); ok {
				offset = o
			}
		}
	}
	if offset < 0 && strings.TrimSpace(a.Text) != "" {
		if i := strings.Index(tm.Text(), a.Text); i >= 0 {
			offset = len([]rune(tm.Text()[:i]))
		}
	}
	if offset < 0 {
		return math.Inf(1)
	}
	return math.Floor(float64(offset)/float64(r.cfg.CharsPerLine)) * r.cfg.LineHeight
}

// ComputeVisibleRange returns the items within the viewport extended by the
// buffer above and below. Unplaceable items are never included.
func (r *Renderer) ComputeVisibleRange(vp Viewport) Range {
	buf := r.cfg.BufferFactor * vp.Height
	top := vp.ScrollTop - buf
	bottom := vp.ScrollTop + vp.Height + buf
	start := sort.Search(len(r.items), func(i int) bool { return r.items[i].y >= top })
	end := sort.Search(len(r.items), func(i int) bool { return r.items[i].y > bottom })
	if end < start {
		end = start
	}
	return Range{Start: start, End: end}
}

// Render brings the painted set in line with vp. Calls closer together than
// MinInterval are coalesced into one deferred render on the next frame, using
// the latest viewport.
func (r *Renderer) Render(vp Viewport) error {
	if r.destroyed {
		return errors.ErrDestroyed
	}
	now := r.clock()
	if !r.lastRender.IsZero() && now.Sub(r.lastRender) < r.cfg.MinInterval {
		r.deferred = &vp
		r.requestFrame()
		return nil
	}
	r.apply(vp, now)
	return nil
}

func (r *Renderer) apply(vp Viewport, now time.Time) {
	r.lastRender = now
	rng := r.ComputeVisibleRange(vp)
	visible := make(map[string]bool, rng.Len())
	for _, it := range r.items[rng.Start:rng.End] {
		visible[it.ann.ID] = true
	}

	evicted := 0
	for _, it := range r.items {
		id := it.ann.ID
		if r.painted[id] && !visible[id] && r.evict(id) {
			evicted++
		}
	}

	r.queue = slices.DeleteFunc(r.queue, func(a *annotation.Annotation) bool {
		if !visible[a.ID] {
			delete(r.queued, a.ID)
			return true
		}
		return false
	})
	for _, it := range r.items[rng.Start:rng.End] {
		id := it.ann.ID
		if r.painted[id] || r.queued[id] || r.failed[id] {
			continue
		}
		r.queue = append(r.queue, it.ann)
		r.queued[id] = true
	}
	if evicted > 0 {
		logging.RenderFrame(0, evicted, len(r.queue), 0)
	}
	if len(r.queue) > 0 {
		r.requestFrame()
	}
}

// evict unpaints id. The id stays painted when the painter refused and the
// markers are still in the tree.
func (r *Renderer) evict(id string) bool {
	if !r.painter.Remove(id, r.container) && r.container != nil &&
		len(tree.FindMarkers(r.container.Root(), id)) > 0 {
		return false
	}
	delete(r.painted, id)
	r.stats.Evicted++
	return true
}

func (r *Renderer) requestFrame() {
	if r.frame != 0 {
		return
	}
	r.frame = r.sched.RequestFrame(r.onFrame)
}

func (r *Renderer) onFrame(time.Time) {
	r.frame = 0
	if r.destroyed {
		return
	}
	r.stats.Frames++
	if vp := r.deferred; vp != nil {
		r.deferred = nil
		r.apply(*vp, r.clock())
	}
	r.paintBatch()
	if len(r.queue) > 0 {
		r.requestFrame()
	}
}

// paintBatch paints queued items until the frame budget is spent. At least
// one item is painted per frame.
func (r *Renderer) paintBatch() {
	if len(r.queue) == 0 {
		return
	}
	start := r.clock()
	painted := 0
	for len(r.queue) > 0 {
		if r.painter.Busy() {
			break
		}
		a := r.queue[0]
		r.queue = r.queue[1:]
		delete(r.queued, a.ID)
		switch {
		case r.painter.Restore(a, r.container):
			r.painted[a.ID] = true
			r.stats.Painted++
			painted++
		case r.painter.Busy():
			r.queue = slices.Insert(r.queue, 0, a)
			r.queued[a.ID] = true
		default:
			r.failed[a.ID] = true
			r.stats.Failed++
		}
		if r.clock().Sub(start) >= r.cfg.FrameBudget {
			break
		}
	}
	logging.RenderFrame(painted, 0, len(r.queue), r.clock().Sub(start))
}

// Destroy cancels the pending frame, removes the painted markers and makes
// later calls fail with errors.ErrDestroyed. Ids whose removal the painter
// refused stay in Painted. It is safe to call twice.
func (r *Renderer) Destroy() {
	if r.destroyed {
		return
	}
	if r.frame != 0 {
		r.sched.CancelFrame(r.frame)
		r.frame = 0
	}
	for id := range r.painted {
		r.evict(id)
	}
	r.queue, r.queued, r.deferred = nil, nil, nil
	r.destroyed = true
}

// Destroyed reports whether Destroy was called.
func (r *Renderer) Destroyed() bool { return r.destroyed }

// Painted returns the ids currently painted, sorted.
func (r *Renderer) Painted() []string {
	ids := make([]string, 0, len(r.painted))
	for id := range r.painted {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Queued returns the number of items waiting for a frame.
func (r *Renderer) Queued() int { return len(r.queue) }

// Len returns the number of annotations placed.
func (r *Renderer) Len() int { return len(r.items) }

// Stats returns the work counters.
func (r *Renderer) Stats() Stats { return r.stats }
