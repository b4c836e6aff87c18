package caption

import (
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"captioncam/config"
	"captioncam/util"
	"captioncam/video/source"
)

// blockingCaptioner parks inside Caption until released, standing in for a
// model call of unbounded duration.
type blockingCaptioner struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (c *blockingCaptioner) Caption(input gocv.Mat) (Result, error) {
	c.once.Do(func() { close(c.started) })
	<-c.release
	return Result{Text: "a dog", Confidence: 0.8, ProducedAt: time.Now()}, nil
}

func (c *blockingCaptioner) Enabled() bool { return true }

func newTestWorker(cl Captioner) *Worker {
	return &Worker{
		Frames:    source.NewMailbox(),
		Captioner: cl,
		Pacer:     NewPacer(testOptions()),
		Results:   NewResults(3),
		Shutdown:  util.NewEvent(),
		Done:      util.NewEvent(),
	}
}

func TestWorkerSignalsDoneOnShutdown(t *testing.T) {
	config.Set(&config.Config{PollIntervalMS: 10})

	w := newTestWorker(&blockingCaptioner{
		started: make(chan struct{}),
		release: make(chan struct{}),
	})
	defer w.Frames.Close()

	go w.Run()
	w.Shutdown.Notify()

	select {
	case <-w.Done.Chan():
	case <-time.After(2 * time.Second):
		t.Fatal("worker never signaled done after shutdown")
	}
}

func TestWorkerDrainsInFlightInferenceBeforeDone(t *testing.T) {
	config.Set(&config.Config{PollIntervalMS: 10})

	cl := &blockingCaptioner{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	w := newTestWorker(cl)
	defer w.Frames.Close()

	img := source.NewImage()
	defer img.Close()
	w.Frames.Set(img)

	go w.Run()

	select {
	case <-cl.started:
	case <-time.After(2 * time.Second):
		t.Fatal("worker never dispatched inference")
	}

	// Shut down while the model call is in flight. Done must not fire
	// until the call returns; the owner frees native resources behind it.
	w.Shutdown.Notify()
	select {
	case <-w.Done.Chan():
		t.Fatal("worker signaled done while inference still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(cl.release)
	select {
	case <-w.Done.Chan():
	case <-time.After(2 * time.Second):
		t.Fatal("worker never signaled done after inference completed")
	}

	if r, ok := w.Results.Latest(); !ok || r.Text != "a dog" {
		t.Errorf("expected in-flight result to be delivered, got %+v (ok=%v)", r, ok)
	}
}
