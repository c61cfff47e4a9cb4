package acquisition

import (
	"math"

	"github.com/rs/zerolog/log"

	"github.com/RMahshie/resotrack/pkg/models"
)

// Tolerances bound how far a resonance may wander inside its window
type Tolerances struct {
	// CenterError is the fraction of the half window the resonance edges may reach
	CenterError float64
	// SpanError is the allowed relative mismatch between span and bw*factor
	SpanError float64
}

// DefaultTolerances returns the stock tracking tolerances
func DefaultTolerances() Tolerances {
	return Tolerances{
		CenterError: models.DefaultCenterErrorTolerance,
		SpanError:   models.DefaultSpanErrorTolerance,
	}
}

// Decision is the outcome of comparing one fit against its window
type Decision struct {
	Drift        bool
	SpanMismatch bool
}

// TrackWindow evaluates the drift and span-fit criteria for a window
// (center, span) and a fitted resonance (f0, bw). Non-physical fits never trip.
func TrackWindow(center, span, f0, bw float64, tol Tolerances, bwFactor float64) Decision {
	if !(bw > 0) || math.IsInf(bw, 0) || math.IsNaN(f0) || !(span > 0) || !(bwFactor > 0) {
		return Decision{}
	}

	// Keep both -3 dB points inside the tolerated part of the window
	ferr := math.Abs(center-f0) + bw/2
	drift := ferr > span*tol.CenterError*0.5

	want := bw * bwFactor
	mismatch := want/span > 1+tol.SpanError || span/want > 1+tol.SpanError

	return Decision{Drift: drift, SpanMismatch: mismatch}
}

// track applies the tracking controller to an accepted sample and reports
// whether any segment geometry changed
func (s *Session) track(sample *models.Sample) bool {
	cfg := s.cfg
	if !cfg.Tracking() {
		return false
	}

	factor := cfg.BandwidthFactor()
	tol := Tolerances{CenterError: cfg.CenterErrorTolerance, SpanError: cfg.SpanErrorTolerance}
	changed := false

	for i := range cfg.Segments {
		seg := &cfg.Segments[i]
		if !seg.Enabled || !sample.Present(i) {
			continue
		}

		d := TrackWindow(seg.F0, seg.Span, sample.F0[i], sample.BW[i], tol, factor)
		if d.Drift && cfg.TrackFrequency {
			log.Info().
				Str("segment", seg.Name).
				Float64("from", seg.F0).
				Float64("to", sample.F0[i]).
				Msg("Re-centering segment")
			seg.F0 = sample.F0[i]
			retracksTotal.WithLabelValues("frequency").Inc()
			changed = true
		}
		if d.SpanMismatch && cfg.TrackSpan {
			span := sample.BW[i] * factor
			log.Info().
				Str("segment", seg.Name).
				Float64("from", seg.Span).
				Float64("to", span).
				Msg("Resizing segment")
			seg.Span = span
			retracksTotal.WithLabelValues("span").Inc()
			changed = true
		}
	}
	return changed
}
