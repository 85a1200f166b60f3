package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bledom"

var (
	// Link counters.
	FramesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "link",
		Name:      "frames_sent_total",
		Help:      "Frames written to the strip by command kind",
	}, []string{"kind"})

	FramesFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "link",
		Name:      "frames_failed_total",
		Help:      "Frames dropped because connect or write failed",
	}, []string{"op"})

	FramesSuperseded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "link",
		Name:      "frames_superseded_total",
		Help:      "Pending color frames replaced by a newer color before being written",
	})

	FramesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "link",
		Name:      "frames_dropped_total",
		Help:      "Frames discarded because the mailbox was full",
	})

	ConnectAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "link",
		Name:      "connect_attempts_total",
		Help:      "Connection attempts to the strip",
	})

	LinkState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "link",
		Name:      "state",
		Help:      "0 disconnected, 1 connecting, 2 connected",
	})

	// Sync loop.
	TickDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "tick_stage_seconds",
		Help:      "Time spent per sync tick stage",
		Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25},
	}, []string{"stage"})

	TicksSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "ticks_skipped_total",
		Help:      "Sync ticks abandoned before sending",
	}, []string{"reason"})

	SyncRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "running",
		Help:      "1 while screen sync is active",
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
