package models

import "sort"

// Segment is one measurement window of a segmented sweep
type Segment struct {
	Name        string  `json:"name" doc:"Segment identifier used in output headers"`
	F0          float64 `json:"f0" doc:"Current center frequency in Hz"`
	F0Default   float64 `json:"f0_default" doc:"Configured center frequency in Hz"`
	Span        float64 `json:"span" doc:"Current window width in Hz"`
	SpanDefault float64 `json:"span_default" doc:"Configured window width in Hz"`
	Points      int     `json:"points" doc:"Sweep point count"`
	IFBW        float64 `json:"ifbw" doc:"IF bandwidth in Hz"`
	Power       float64 `json:"power" doc:"Stimulus power in dB"`
	Enabled     bool    `json:"enabled" doc:"Whether the segment is programmed and measured"`
}

// NewSegment creates an enabled segment whose defaults equal its initial geometry
func NewSegment(name string, f0, span float64, points int, ifbw, power float64) Segment {
	return Segment{
		Name:        name,
		F0:          f0,
		F0Default:   f0,
		Span:        span,
		SpanDefault: span,
		Points:      points,
		IFBW:        ifbw,
		Power:       power,
		Enabled:     true,
	}
}

// ResetGeometry restores the configured center and span
func (s *Segment) ResetGeometry() {
	s.F0 = s.F0Default
	s.Span = s.SpanDefault
}

// SegmentSpec is the raw, unvalidated description of a segment as it comes
// out of configuration. Nil fields are missing.
type SegmentSpec struct {
	F0     *float64 `json:"f0" mapstructure:"f0"`
	Span   *float64 `json:"span" mapstructure:"span"`
	Points *int     `json:"points" mapstructure:"points"`
	IFBW   *float64 `json:"ifbw" mapstructure:"ifbw"`
	Power  *float64 `json:"power" mapstructure:"power"`
}

// AnalyzerConfig is the input to a session setup
type AnalyzerConfig struct {
	Segments             map[string]SegmentSpec
	TrackFrequency       bool
	TrackSpan            bool
	UseMarkers           bool
	BandwidthFactor      float64
	CenterErrorTolerance float64
	SpanErrorTolerance   float64
}

// Tracking tolerances applied when none are configured
const (
	DefaultCenterErrorTolerance = 0.8
	DefaultSpanErrorTolerance   = 0.3
	DefaultBandwidthFactor      = 8.0
)

// SweepConfig owns the ordered segment list and tracking settings of a session
type SweepConfig struct {
	Segments             []Segment
	TrackFrequency       bool
	TrackSpan            bool
	UseMarkers           bool
	TrackingEnabled      bool
	CenterErrorTolerance float64
	SpanErrorTolerance   float64

	bandwidthFactor         float64
	bandwidthFactorOverride *float64
}

// NewSweepConfig builds a sweep configuration with segments sorted by
// ascending center frequency. The order is fixed from here on.
func NewSweepConfig(segments []Segment, bandwidthFactor float64) *SweepConfig {
	sorted := make([]Segment, len(segments))
	copy(sorted, segments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].F0 < sorted[j].F0
	})

	return &SweepConfig{
		Segments:             sorted,
		TrackingEnabled:      true,
		CenterErrorTolerance: DefaultCenterErrorTolerance,
		SpanErrorTolerance:   DefaultSpanErrorTolerance,
		bandwidthFactor:      bandwidthFactor,
	}
}

// BandwidthFactor returns the override when one is set, else the nominal factor
func (c *SweepConfig) BandwidthFactor() float64 {
	if c.bandwidthFactorOverride != nil {
		return *c.bandwidthFactorOverride
	}
	return c.bandwidthFactor
}

// NominalBandwidthFactor returns the configured factor, ignoring any override
func (c *SweepConfig) NominalBandwidthFactor() float64 {
	return c.bandwidthFactor
}

// SetBandwidthFactorOverride sets the runtime override; nil clears it
func (c *SweepConfig) SetBandwidthFactorOverride(factor *float64) {
	if factor == nil {
		c.bandwidthFactorOverride = nil
		return
	}
	v := *factor
	c.bandwidthFactorOverride = &v
}

// Tracking reports whether the tracking controller should run at all
func (c *SweepConfig) Tracking() bool {
	return c.TrackingEnabled && (c.TrackFrequency || c.TrackSpan)
}

// EnabledCount returns the number of enabled segments
func (c *SweepConfig) EnabledCount() int {
	n := 0
	for _, s := range c.Segments {
		if s.Enabled {
			n++
		}
	}
	return n
}

// EnabledPoints returns the trace length of the programmed sweep
func (c *SweepConfig) EnabledPoints() int {
	n := 0
	for _, s := range c.Segments {
		if s.Enabled {
			n += s.Points
		}
	}
	return n
}

// SnapshotSegments returns a copy of the segment list
func (c *SweepConfig) SnapshotSegments() []Segment {
	out := make([]Segment, len(c.Segments))
	copy(out, c.Segments)
	return out
}
