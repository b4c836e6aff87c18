package caption

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Result is one completed captioning pass. Immutable once pushed.
type Result struct {
	Text       string
	Confidence float32
	ProducedAt time.Time
}

// DisplayString formats a result the way the window and web clients show it.
func (r Result) DisplayString() string {
	return fmt.Sprintf("%s (Confidence: %.0f%%)", r.Text, r.Confidence*100)
}

// Listener receives every result pushed into a Results buffer.
type Listener interface {
	CaptionUpdated(r Result)
}

// Results holds the most recent caption results in a fixed-capacity ring so
// the display can smooth over inference jitter instead of flickering on
// every update. Single lock per operation; nothing here blocks.
type Results struct {
	mu        sync.Mutex
	ring      []Result
	next      int
	count     int
	listeners []Listener
}

func NewResults(capacity int) *Results {
	if capacity < 1 {
		capacity = 1
	}
	return &Results{
		ring: make([]Result, capacity),
	}
}

// AddListener registers l for future pushes. Not safe to call concurrently
// with Push; register listeners during wiring.
func (b *Results) AddListener(l Listener) {
	b.listeners = append(b.listeners, l)
}

// Push inserts a result, evicting the oldest entry once at capacity, and
// fans it out to listeners. Listener calls run on their own goroutines so a
// slow consumer cannot stall the caption worker.
func (b *Results) Push(r Result) {
	b.mu.Lock()
	b.ring[b.next] = r
	b.next = (b.next + 1) % len(b.ring)
	if b.count < len(b.ring) {
		b.count++
	}
	listeners := b.listeners
	b.mu.Unlock()

	log.Debugf("Caption result: %v", r.DisplayString())
	for _, l := range listeners {
		go l.CaptionUpdated(r)
	}
}

// Latest returns the most recently pushed result, or false if nothing has
// ever been pushed.
func (b *Results) Latest() (Result, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == 0 {
		return Result{}, false
	}
	idx := (b.next - 1 + len(b.ring)) % len(b.ring)
	return b.ring[idx], true
}

// Snapshot returns the held results, newest first.
func (b *Results) Snapshot() []Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Result, 0, b.count)
	for i := 1; i <= b.count; i++ {
		idx := (b.next - i + len(b.ring)*2) % len(b.ring)
		out = append(out, b.ring[idx])
	}
	return out
}

// AverageConfidence is the arithmetic mean across held entries, damping
// confidence jitter on the display. Returns 0 on an empty buffer.
func (b *Results) AverageConfidence() float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == 0 {
		return 0
	}
	var sum float32
	for i := 1; i <= b.count; i++ {
		idx := (b.next - i + len(b.ring)*2) % len(b.ring)
		sum += b.ring[idx].Confidence
	}
	return sum / float32(b.count)
}

// Len returns the number of currently held results.
func (b *Results) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}
