package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesRead tracks frames decoded from source videos
	FramesRead = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidsr_frames_read_total",
		Help: "Total frames decoded from source videos",
	}, []string{"tool"})

	// FramesWritten tracks frames handed to an output
	FramesWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidsr_frames_written_total",
		Help: "Total frames written to outputs",
	}, []string{"tool"})

	// BoundaryDrops tracks frames lost at segment boundaries
	BoundaryDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidsr_sample_boundary_drops_total",
		Help: "Frames dropped because they closed a segment",
	})

	// SamplesWindowed tracks segments that received at least one frame
	SamplesWindowed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidsr_samples_windowed_total",
		Help: "Samples that received at least one frame",
	})

	// FrameFailures tracks per-frame enhancement failures by cause
	FrameFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidsr_enhance_frame_failures_total",
		Help: "Frames skipped because enhancement failed",
	}, []string{"cause"})

	// EnhanceDuration tracks model round trips
	EnhanceDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vidsr_enhance_frame_duration_seconds",
		Help:    "Duration of one frame enhancement request",
		Buckets: prometheus.ExponentialBuckets(0.01, 2.0, 12), // 10ms to ~40s
	})

	// Videos tracks processed inputs by outcome
	Videos = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidsr_videos_total",
		Help: "Input videos processed, by tool and outcome",
	}, []string{"tool", "status"})
)
