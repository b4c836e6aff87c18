// Package caption paces frame submissions to an image captioning model and
// smooths its results for display.
package caption

import (
	"sync"
	"time"
)

// latencyFloor replaces non-positive latency samples caused by clock
// anomalies before they reach the control loop.
const latencyFloor = time.Millisecond

type PacerOptions struct {
	// TargetLatency is the inference latency budget the pacer steers toward.
	TargetLatency time.Duration

	// MinInterval and MaxInterval bound the submission interval. The pacer
	// never leaves this range, so it can neither busy-spin nor stall
	// indefinitely.
	MinInterval time.Duration
	MaxInterval time.Duration

	P float64
	I float64
	D float64
}

func (o *PacerOptions) sanitize() {
	if o.TargetLatency <= 0 {
		o.TargetLatency = 200 * time.Millisecond
	}
	if o.MinInterval <= 0 {
		o.MinInterval = latencyFloor
	}
	if o.MaxInterval < o.MinInterval {
		o.MaxInterval = o.MinInterval
	}
}

// Pacer decides when the next frame may be submitted for captioning and
// retunes its submission interval from observed inference latency.
//
// Each completed inference feeds a PID update on the latency error
// (observed minus budget). The output maps additively onto the interval:
// positive error widens it (submit less often), negative error narrows it,
// always clamped to [MinInterval, MaxInterval]. Additive mapping keeps the
// interval fixed at steady state when latency sits on the budget, and is
// monotonic in the error signal. The integral accumulator is clamped so its
// contribution alone can never exceed the full interval range (anti-windup).
type Pacer struct {
	mu sync.Mutex

	opts PacerOptions

	target     time.Duration
	integral   float64 // accumulated error, seconds
	lastErr    float64 // previous error, seconds
	havePrev   bool
	lastSubmit time.Time
}

func NewPacer(opts PacerOptions) *Pacer {
	opts.sanitize()
	p := &Pacer{opts: opts}
	p.target = clampDuration(opts.TargetLatency, opts.MinInterval, opts.MaxInterval)
	return p
}

// ShouldSubmit reports whether enough time has elapsed since the last
// accepted submission. It has no side effects and may be called repeatedly.
func (p *Pacer) ShouldSubmit(now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastSubmit.IsZero() {
		return true
	}
	return now.Sub(p.lastSubmit) >= p.target
}

// OnSubmit records an accepted submission. Call exactly once per accepted
// submission, before dispatching the inference call.
func (p *Pacer) OnSubmit(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastSubmit = now
}

// OnResult feeds one observed inference latency into the control loop.
// Out-of-range inputs are clamped, never rejected.
func (p *Pacer) OnResult(latency time.Duration) {
	if latency < latencyFloor {
		latency = latencyFloor
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	e := (latency - p.opts.TargetLatency).Seconds()

	p.integral += e
	if lim := p.integralLimit(); p.integral > lim {
		p.integral = lim
	} else if p.integral < -lim {
		p.integral = -lim
	}

	var de float64
	if p.havePrev {
		de = e - p.lastErr
	}

	out := p.opts.P*e + p.opts.I*p.integral + p.opts.D*de
	p.target = clampDuration(p.target+time.Duration(out*float64(time.Second)),
		p.opts.MinInterval, p.opts.MaxInterval)

	p.lastErr = e
	p.havePrev = true
}

// integralLimit bounds the accumulator so that I*integral stays within the
// configured interval range. Callers hold p.mu.
func (p *Pacer) integralLimit() float64 {
	if p.opts.I <= 0 {
		return 0
	}
	return (p.opts.MaxInterval - p.opts.MinInterval).Seconds() / p.opts.I
}

// TargetInterval returns the current submission interval.
func (p *Pacer) TargetInterval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.target
}

// SetOptions installs new gains and bounds, re-clamping current state.
// Used for configuration hot reload; submission history is preserved.
func (p *Pacer) SetOptions(opts PacerOptions) {
	opts.sanitize()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opts = opts
	p.target = clampDuration(p.target, opts.MinInterval, opts.MaxInterval)
	if lim := p.integralLimit(); p.integral > lim {
		p.integral = lim
	} else if p.integral < -lim {
		p.integral = -lim
	}
}

// Options returns a copy of the active options.
func (p *Pacer) Options() PacerOptions {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opts
}

func clampDuration(d, min, max time.Duration) time.Duration {
	if d < min {
		return min
	}
	if d > max {
		return max
	}
	return d
}
