package config

import (
	"time"
)

// PIDGains are the proportional, integral and derivative gains applied to
// the latency error signal by the caption pacer.
type PIDGains struct {
	P float64
	I float64
	D float64
}

type Config struct {
	// CameraURI selects the capture source. If empty, CameraIndex is used
	// to open a local device.
	CameraURI   string
	CameraIndex int

	CaptureWidth  int
	CaptureHeight int
	CaptureFPS    int

	// EnhanceFrames applies brightness/contrast scaling and sharpening to
	// captured frames before display and inference.
	EnhanceFrames bool

	// Pacing of caption inference. The pacer aims to keep observed
	// inference latency near TargetLatencyMS by widening or narrowing the
	// submission interval, clamped to [MinIntervalMS, MaxIntervalMS].
	TargetLatencyMS int
	MinIntervalMS   int
	MaxIntervalMS   int
	Gains           PIDGains

	// PollIntervalMS is the fixed cadence of the caption worker tick. It is
	// independent of the pacer's target interval, which only gates whether
	// inference actually runs on a given tick.
	PollIntervalMS int

	// BufferCapacity is the number of recent caption results retained for
	// display smoothing.
	BufferCapacity int

	ModelPrototxtPath      string
	ModelCaffePath         string
	MinDetectionConfidence float64

	SnapshotPath          string
	SnapshotMaxSize       int64
	SnapshotMinConfidence float64

	// WatchWords trigger a push notification when they appear in a caption
	// at or above NotifyMinConfidence.
	WatchWords          []string
	NotifyMinConfidence float64

	NotificationHoursStart int
	NotificationHoursEnd   int
	NotifyCooldownSec      int

	WebRoot      string
	DatabasePath string
}

func (c *Config) applyDefaults() {
	if c.CaptureWidth == 0 {
		c.CaptureWidth = 1280
	}
	if c.CaptureHeight == 0 {
		c.CaptureHeight = 720
	}
	if c.CaptureFPS == 0 {
		c.CaptureFPS = 30
	}
	if c.TargetLatencyMS == 0 {
		c.TargetLatencyMS = 200
	}
	if c.MinIntervalMS == 0 {
		c.MinIntervalMS = 100
	}
	if c.MaxIntervalMS == 0 {
		c.MaxIntervalMS = 2000
	}
	if c.MaxIntervalMS < c.MinIntervalMS {
		c.MaxIntervalMS = c.MinIntervalMS
	}
	if c.Gains == (PIDGains{}) {
		c.Gains = PIDGains{P: 1, I: 0.1, D: 0.05}
	}
	if c.PollIntervalMS == 0 {
		c.PollIntervalMS = 100
	}
	if c.BufferCapacity == 0 {
		c.BufferCapacity = 3
	}
	if c.MinDetectionConfidence == 0 {
		c.MinDetectionConfidence = 0.5
	}
	if c.SnapshotPath == "" {
		c.SnapshotPath = "/tmp/captioncam"
	}
	if c.SnapshotMaxSize == 0 {
		c.SnapshotMaxSize = 1 << 30 // 1 GiB
	}
	if c.SnapshotMinConfidence == 0 {
		c.SnapshotMinConfidence = 0.9
	}
	if c.NotifyMinConfidence == 0 {
		c.NotifyMinConfidence = 0.9
	}
	if c.NotificationHoursEnd == 0 {
		c.NotificationHoursStart = 6
		c.NotificationHoursEnd = 20
	}
	if c.NotifyCooldownSec == 0 {
		c.NotifyCooldownSec = 60
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "captioncam.db"
	}
}

func (c *Config) TargetLatency() time.Duration {
	return time.Duration(c.TargetLatencyMS) * time.Millisecond
}

func (c *Config) MinInterval() time.Duration {
	return time.Duration(c.MinIntervalMS) * time.Millisecond
}

func (c *Config) MaxInterval() time.Duration {
	return time.Duration(c.MaxIntervalMS) * time.Millisecond
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

func (c *Config) NotifyCooldown() time.Duration {
	return time.Duration(c.NotifyCooldownSec) * time.Second
}
