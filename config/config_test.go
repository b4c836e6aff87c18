package config

import (
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	Set(&Config{})
	c := Get()

	if c.CaptureWidth != 1280 || c.CaptureHeight != 720 {
		t.Errorf("unexpected capture defaults: %dx%d", c.CaptureWidth, c.CaptureHeight)
	}
	if c.TargetLatency() != 200*time.Millisecond {
		t.Errorf("unexpected latency budget %v", c.TargetLatency())
	}
	if c.MinInterval() != 100*time.Millisecond || c.MaxInterval() != 2*time.Second {
		t.Errorf("unexpected interval bounds [%v, %v]", c.MinInterval(), c.MaxInterval())
	}
	if c.Gains.P != 1 || c.Gains.I != 0.1 || c.Gains.D != 0.05 {
		t.Errorf("unexpected default gains %+v", c.Gains)
	}
	if c.BufferCapacity != 3 {
		t.Errorf("unexpected buffer capacity %d", c.BufferCapacity)
	}
	if c.PollInterval() != 100*time.Millisecond {
		t.Errorf("unexpected poll interval %v", c.PollInterval())
	}
}

func TestBoundsOrdering(t *testing.T) {
	Set(&Config{MinIntervalMS: 500, MaxIntervalMS: 200})
	c := Get()
	if c.MaxInterval() < c.MinInterval() {
		t.Errorf("max interval %v below min %v after defaults", c.MaxInterval(), c.MinInterval())
	}
}

func TestExplicitValuesKept(t *testing.T) {
	Set(&Config{
		TargetLatencyMS: 500,
		BufferCapacity:  10,
		Gains:           PIDGains{P: 2, I: 0.2, D: 0.1},
	})
	c := Get()
	if c.TargetLatency() != 500*time.Millisecond {
		t.Errorf("explicit latency budget overridden: %v", c.TargetLatency())
	}
	if c.BufferCapacity != 10 {
		t.Errorf("explicit buffer capacity overridden: %d", c.BufferCapacity)
	}
	if c.Gains.P != 2 {
		t.Errorf("explicit gains overridden: %+v", c.Gains)
	}
}
