package caption

import (
	"time"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"captioncam/config"
	"captioncam/snapshot"
	"captioncam/stats"
	"captioncam/util"
	"captioncam/video/source"
)

// Worker owns the capture-and-maybe-infer loop. It ticks at a fixed poll
// cadence, independent of the pacer's target interval; the pacer only gates
// whether inference actually runs on a given tick. Inference runs entirely
// on this goroutine so a slow model call never blocks the display loop.
type Worker struct {
	Frames    *source.Mailbox
	Captioner Captioner
	Pacer     *Pacer
	Results   *Results

	// Snapshots, when set, receives frames whose caption confidence clears
	// the configured floor.
	Snapshots *snapshot.Store

	Shutdown *util.Event

	// Done is notified when Run returns. The owner must wait on it after
	// signaling Shutdown before releasing the captioner or the mailbox; an
	// inference call may be in flight and native resources cannot be freed
	// under it.
	Done *util.Event
}

func (w *Worker) Run() {
	defer w.Done.Notify()

	frame := gocv.NewMat()
	defer frame.Close()

	poll := 100 * time.Millisecond
	if cfg := config.Get(); cfg != nil {
		poll = cfg.PollInterval()
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	log.Infof("Caption worker started, polling every %v", poll)
	for {
		select {
		case <-w.Shutdown.Chan():
			log.Infof("Caption worker stopped")
			return
		case <-ticker.C:
		}
		w.tick(&frame)
	}
}

func (w *Worker) tick(frame *gocv.Mat) {
	cfg := config.Get()
	if cfg != nil {
		w.reloadPacer(cfg)
	}

	if !w.Captioner.Enabled() {
		return
	}

	now := time.Now()
	if !w.Pacer.ShouldSubmit(now) {
		stats.SkippedTicks.Inc()
		return
	}

	if _, ok := w.Frames.Take(frame); !ok {
		// No new frame since the last submission.
		return
	}

	w.Pacer.OnSubmit(now)
	stats.Submissions.Inc()

	start := time.Now()
	res, err := w.Captioner.Caption(*frame)
	if err != nil {
		// Stale is better than broken: leave pacer state and the result
		// buffer untouched, keep displaying the previous caption.
		stats.Failures.Inc()
		log.Warnf("Caption inference failed: %v", err)
		return
	}
	latency := time.Since(start)

	w.Pacer.OnResult(latency)
	stats.Latency.Observe(latency.Seconds())
	stats.TargetInterval.Set(w.Pacer.TargetInterval().Seconds())

	w.Results.Push(res)
	stats.SmoothedConfidence.Set(float64(w.Results.AverageConfidence()))

	if w.Snapshots != nil && cfg != nil &&
		res.Text != EmptySceneText &&
		float64(res.Confidence) >= cfg.SnapshotMinConfidence {
		if _, err := w.Snapshots.Save(*frame, res.ProducedAt, res.Text, res.Confidence); err != nil {
			log.Errorf("Failed to save snapshot: %v", err)
		}
	}
}

// reloadPacer pushes configuration changes into the pacer. Cheap no-op when
// nothing changed.
func (w *Worker) reloadPacer(cfg *config.Config) {
	opts := PacerOptions{
		TargetLatency: cfg.TargetLatency(),
		MinInterval:   cfg.MinInterval(),
		MaxInterval:   cfg.MaxInterval(),
		P:             cfg.Gains.P,
		I:             cfg.Gains.I,
		D:             cfg.Gains.D,
	}
	if opts != w.Pacer.Options() {
		log.Infof("Pacer options changed, reloading")
		w.Pacer.SetOptions(opts)
	}
}
