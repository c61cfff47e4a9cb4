package acquisition

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cycle outcomes
const (
	outcomeAccepted  = "accepted"
	outcomeStale     = "stale"
	outcomeLostTrack = "lost_track"
	outcomeTransport = "transport_error"
	outcomeMismatch  = "table_mismatch"
)

var (
	cyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resotrack_cycles_total",
			Help: "Acquisition cycles by outcome",
		},
		[]string{"outcome"},
	)

	retracksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resotrack_retracks_total",
			Help: "Segment geometry changes made by the tracking controller",
		},
		[]string{"kind"},
	)

	fitFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "resotrack_fit_failures_total",
			Help: "Lorentzian fits that failed to converge",
		},
	)

	segmentCenter = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "resotrack_segment_center_hz",
			Help: "Current segment center frequency",
		},
		[]string{"segment"},
	)

	segmentSpan = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "resotrack_segment_span_hz",
			Help: "Current segment span",
		},
		[]string{"segment"},
	)

	cycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "resotrack_cycle_duration_seconds",
			Help:    "Wall time of one acquisition cycle",
			Buckets: prometheus.DefBuckets,
		},
	)
)
