package render

import (
	"context"
	"testing"
	"time"
)

func TestManualScheduler(t *testing.T) {
	s := NewManualScheduler()
	var ran []string

	s.RequestFrame(func(time.Time) {
		ran = append(ran, "a")
		s.RequestFrame(func(time.Time) { ran = append(ran, "c") })
	})
	cancelled := s.RequestFrame(func(time.Time) { ran = append(ran, "cancelled") })
	s.RequestFrame(func(time.Time) { ran = append(ran, "b") })
	s.CancelFrame(cancelled)

	if got := s.Tick(time.Now()); got != 2 {
		t.Errorf("Tick() = %d, want 2", got)
	}
	if len(ran) != 2 || ran[0] != "a" || ran[1] != "b" {
		t.Errorf("first tick ran %v, want [a b]", ran)
	}
	if s.Pending() != 1 {
		t.Errorf("Pending() = %d, want the frame requested during the tick", s.Pending())
	}
	s.Tick(time.Now())
	if len(ran) != 3 || ran[2] != "c" {
		t.Errorf("second tick ran %v, want [a b c]", ran)
	}
}

func TestLoopRunsWorkAndFrames(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewLoop(time.Millisecond)
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	fired := make(chan struct{})
	var skipped bool
	err := l.Do(ctx, func() {
		id := l.RequestFrame(func(time.Time) { skipped = true })
		l.CancelFrame(id)
		l.RequestFrame(func(time.Time) { close(fired) })
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("frame callback never ran")
	}

	var sawSkipped bool
	if err := l.Do(ctx, func() { sawSkipped = skipped }); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if sawSkipped {
		t.Error("cancelled frame ran")
	}

	cancel()
	if err := <-done; err != context.Canceled {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}
