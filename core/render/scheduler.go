package render

import (
	"context"
	"slices"
	"sync"
	"time"
)

// FrameID identifies a requested frame. Zero is never issued.
type FrameID uint64

// Scheduler runs callbacks at the host's next frame.
type Scheduler interface {
	RequestFrame(cb func(now time.Time)) FrameID
	CancelFrame(id FrameID)
}

type frameQueue struct {
	mu     sync.Mutex
	next   FrameID
	frames map[FrameID]func(time.Time)
}

func (q *frameQueue) request(cb func(time.Time)) FrameID {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.frames == nil {
		q.frames = make(map[FrameID]func(time.Time))
	}
	q.next++
	q.frames[q.next] = cb
	return q.next
}

func (q *frameQueue) cancel(id FrameID) {
	q.mu.Lock()
	delete(q.frames, id)
	q.mu.Unlock()
}

// take removes every pending callback, in request order.
func (q *frameQueue) take() []func(time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := make([]FrameID, 0, len(q.frames))
	for id := range q.frames {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	cbs := make([]func(time.Time), 0, len(ids))
	for _, id := range ids {
		cbs = append(cbs, q.frames[id])
		delete(q.frames, id)
	}
	return cbs
}

func (q *frameQueue) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

// ManualScheduler runs frames only when Tick is called.
type ManualScheduler struct {
	q frameQueue
}

// NewManualScheduler returns an empty scheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// RequestFrame implements Scheduler.
func (s *ManualScheduler) RequestFrame(cb func(now time.Time)) FrameID {
	return s.q.request(cb)
}

// CancelFrame implements Scheduler.
func (s *ManualScheduler) CancelFrame(id FrameID) {
	s.q.cancel(id)
}

// Tick runs the callbacks pending when it was called and returns how many
// ran. Frames requested by those callbacks wait for the next Tick.
func (s *ManualScheduler) Tick(now time.Time) int {
	cbs := s.q.take()
	for _, cb := range cbs {
		cb(now)
	}
	return len(cbs)
}

// Pending returns the number of outstanding frames.
func (s *ManualScheduler) Pending() int {
	return s.q.pending()
}

// Loop is a single-goroutine scheduler. Run executes posted work and frame
// callbacks on the calling goroutine, so callers on other goroutines can hand
// work to a renderer or engine through Post.
type Loop struct {
	interval time.Duration
	q        frameQueue
	work     chan func()
}

// DefaultFrameInterval is the Loop tick when none is given.
const DefaultFrameInterval = 16 * time.Millisecond

// NewLoop returns a loop ticking every interval.
func NewLoop(interval time.Duration) *Loop {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &Loop{interval: interval, work: make(chan func(), 64)}
}

// RequestFrame implements Scheduler.
func (l *Loop) RequestFrame(cb func(now time.Time)) FrameID {
	return l.q.request(cb)
}

// CancelFrame implements Scheduler.
func (l *Loop) CancelFrame(id FrameID) {
	l.q.cancel(id)
}

// Post queues fn to run on the loop goroutine. It blocks while the queue is
// full and returns false if ctx ends first.
func (l *Loop) Post(ctx context.Context, fn func()) bool {
	select {
	case l.work <- fn:
		return true
	case <-ctx.Done():
		return false
	}
}

// Do runs fn on the loop goroutine and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !l.Post(ctx, func() { fn(); close(done) }) {
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes work and frames until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.work:
			fn()
		case now := <-ticker.C:
			for _, cb := range l.q.take() {
				cb(now)
			}
		}
	}
}
