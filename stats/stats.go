// Package stats exports prometheus instrumentation for the caption
// pipeline. Served on /metrics by the web frontend.
package stats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Latency observes wall time of each completed caption inference.
	Latency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "captioncam_caption_latency_seconds",
		Help:    "Observed caption inference latency.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	// TargetInterval tracks the pacer's current submission interval.
	TargetInterval = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "captioncam_pacer_target_interval_seconds",
		Help: "Current adaptive submission interval.",
	})

	Submissions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "captioncam_caption_submissions_total",
		Help: "Frames submitted for caption inference.",
	})

	// SkippedTicks counts worker ticks gated off by the pacer.
	SkippedTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "captioncam_pacer_skipped_ticks_total",
		Help: "Worker ticks where the pacer declined submission.",
	})

	Failures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "captioncam_caption_failures_total",
		Help: "Caption inference calls that returned an error.",
	})

	SmoothedConfidence = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "captioncam_caption_smoothed_confidence",
		Help: "Mean confidence across the result buffer.",
	})
)
