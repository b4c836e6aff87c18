package source

import (
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Mailbox is a single-slot, latest-wins cell for sharing the most recent
// frame between the display loop and the caption worker. Set overwrites any
// unconsumed frame; Take marks the frame consumed so a frame is never
// captioned twice. Neither operation blocks on the other side.
type Mailbox struct {
	mu    sync.Mutex
	mat   gocv.Mat
	t     time.Time
	has   bool
	fresh bool
}

func NewMailbox() *Mailbox {
	return &Mailbox{
		mat: gocv.NewMat(),
	}
}

func (b *Mailbox) Set(i Image) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i.Mat.CopyTo(&b.mat)
	b.t = i.Time
	b.has = true
	b.fresh = true
}

// Take copies the latest unconsumed frame into dst and returns its capture
// time. Returns false if no new frame has arrived since the last Take.
func (b *Mailbox) Take(dst *gocv.Mat) (time.Time, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.has || !b.fresh {
		return time.Time{}, false
	}
	b.mat.CopyTo(dst)
	b.fresh = false
	return b.t, true
}

// Peek copies the latest frame into dst regardless of whether it has been
// consumed. Used for on-demand snapshots.
func (b *Mailbox) Peek(dst *gocv.Mat) (time.Time, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.has {
		return time.Time{}, false
	}
	b.mat.CopyTo(dst)
	return b.t, true
}

func (b *Mailbox) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mat.Close()
	b.has = false
	b.fresh = false
}
