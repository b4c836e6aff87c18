package caption

import (
	"testing"
	"time"
)

func result(text string, conf float32) Result {
	return Result{
		Text:       text,
		Confidence: conf,
		ProducedAt: time.Now(),
	}
}

func TestLatestEmpty(t *testing.T) {
	b := NewResults(3)
	if _, ok := b.Latest(); ok {
		t.Error("expected Latest to report empty on fresh buffer")
	}
}

func TestAverageConfidenceEmpty(t *testing.T) {
	b := NewResults(3)
	if got := b.AverageConfidence(); got != 0 {
		t.Errorf("expected neutral confidence 0 on empty buffer, got %v", got)
	}
}

func TestRingEviction(t *testing.T) {
	b := NewResults(3)
	b.Push(result("first", 0.1))
	b.Push(result("second", 0.2))
	b.Push(result("third", 0.3))
	b.Push(result("fourth", 0.4))

	latest, ok := b.Latest()
	if !ok || latest.Text != "fourth" {
		t.Errorf("expected latest to be %q, got %q", "fourth", latest.Text)
	}

	snap := b.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 held results, got %d", len(snap))
	}
	for _, r := range snap {
		if r.Text == "first" {
			t.Error("evicted result still present in snapshot")
		}
	}
	if snap[0].Text != "fourth" || snap[2].Text != "second" {
		t.Errorf("snapshot not newest-first: %v, %v, %v", snap[0].Text, snap[1].Text, snap[2].Text)
	}
}

func TestAverageConfidence(t *testing.T) {
	b := NewResults(5)
	b.Push(result("a", 0.2))
	b.Push(result("b", 0.4))
	b.Push(result("c", 0.6))

	got := b.AverageConfidence()
	if got < 0.39 || got > 0.41 {
		t.Errorf("expected average near 0.4, got %v", got)
	}
}

func TestCapacityFloor(t *testing.T) {
	b := NewResults(0)
	b.Push(result("only", 0.5))
	latest, ok := b.Latest()
	if !ok || latest.Text != "only" {
		t.Errorf("expected buffer with floored capacity to hold one result")
	}
	if b.Len() != 1 {
		t.Errorf("expected length 1, got %d", b.Len())
	}
}

type chanListener struct {
	c chan Result
}

func (l *chanListener) CaptionUpdated(r Result) {
	l.c <- r
}

func TestListenerFanout(t *testing.T) {
	b := NewResults(3)
	l := &chanListener{c: make(chan Result, 1)}
	b.AddListener(l)

	pushed := result("a dog", 0.8)
	b.Push(pushed)

	select {
	case got := <-l.c:
		if got.Text != pushed.Text {
			t.Errorf("listener got %q, want %q", got.Text, pushed.Text)
		}
	case <-time.After(time.Second):
		t.Fatal("listener never received pushed result")
	}
}
