package acquisition

import (
	"math"
	"sort"

	"github.com/RMahshie/resotrack/pkg/models"
)

// BuildSweepConfig validates an analyzer configuration and turns it into a
// sweep configuration with segments in ascending center frequency order
func BuildSweepConfig(cfg models.AnalyzerConfig) (*models.SweepConfig, error) {
	if len(cfg.Segments) == 0 {
		return nil, &ConfigurationError{Field: "segments", Reason: "no segments configured"}
	}
	if !(cfg.BandwidthFactor > 0) || math.IsInf(cfg.BandwidthFactor, 0) {
		return nil, &ConfigurationError{Field: "bandwidth_factor", Reason: "must be positive"}
	}
	if cfg.CenterErrorTolerance < 0 {
		return nil, &ConfigurationError{Field: "center_error_tolerance", Reason: "must not be negative"}
	}
	if cfg.SpanErrorTolerance < 0 {
		return nil, &ConfigurationError{Field: "span_error_tolerance", Reason: "must not be negative"}
	}

	// Validate in name order so errors are reproducible
	names := make([]string, 0, len(cfg.Segments))
	for name := range cfg.Segments {
		names = append(names, name)
	}
	sort.Strings(names)

	segments := make([]models.Segment, 0, len(names))
	for _, name := range names {
		seg, err := buildSegment(name, cfg.Segments[name])
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}

	sweep := models.NewSweepConfig(segments, cfg.BandwidthFactor)
	sweep.TrackFrequency = cfg.TrackFrequency
	sweep.TrackSpan = cfg.TrackSpan
	sweep.UseMarkers = cfg.UseMarkers
	if cfg.CenterErrorTolerance > 0 {
		sweep.CenterErrorTolerance = cfg.CenterErrorTolerance
	}
	if cfg.SpanErrorTolerance > 0 {
		sweep.SpanErrorTolerance = cfg.SpanErrorTolerance
	}
	return sweep, nil
}

func buildSegment(name string, spec models.SegmentSpec) (models.Segment, error) {
	if name == "" {
		return models.Segment{}, &ConfigurationError{Field: "name", Reason: "segment name is empty"}
	}

	positive := func(field string, v *float64) error {
		if v == nil {
			return &ConfigurationError{Segment: name, Field: field, Reason: "missing"}
		}
		if !(*v > 0) || math.IsInf(*v, 0) {
			return &ConfigurationError{Segment: name, Field: field, Reason: "must be positive"}
		}
		return nil
	}

	if err := positive("f0", spec.F0); err != nil {
		return models.Segment{}, err
	}
	if err := positive("span", spec.Span); err != nil {
		return models.Segment{}, err
	}
	if err := positive("ifbw", spec.IFBW); err != nil {
		return models.Segment{}, err
	}
	if spec.Points == nil {
		return models.Segment{}, &ConfigurationError{Segment: name, Field: "points", Reason: "missing"}
	}
	if *spec.Points <= 0 {
		return models.Segment{}, &ConfigurationError{Segment: name, Field: "points", Reason: "must be positive"}
	}
	if spec.Power == nil {
		return models.Segment{}, &ConfigurationError{Segment: name, Field: "power", Reason: "missing"}
	}
	if math.IsNaN(*spec.Power) || math.IsInf(*spec.Power, 0) {
		return models.Segment{}, &ConfigurationError{Segment: name, Field: "power", Reason: "must be finite"}
	}

	return models.NewSegment(name, *spec.F0, *spec.Span, *spec.Points, *spec.IFBW, *spec.Power), nil
}
