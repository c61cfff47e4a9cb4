// Package acquisition programs segmented sweeps onto a swept-frequency
// analyzer, acquires resonance parameters once per tick and keeps each
// resonance inside its measurement window.
package acquisition

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/RMahshie/resotrack/internal/fitting"
	"github.com/RMahshie/resotrack/internal/instrument"
	"github.com/RMahshie/resotrack/pkg/models"
)

// State of a session
type State int

const (
	StateUnconfigured State = iota
	StateConfigured
	StateSampling
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateConfigured:
		return "configured"
	case StateSampling:
		return "sampling"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// FitFunc fits one segment's amplitude trace
type FitFunc func(freq, ampl []float64) (fitting.Resonance, error)

// Options configures a Session
type Options struct {
	// Channel is the analyzer measurement channel, 1 if zero
	Channel int
	// SettleDelay is waited after the first segment programming
	SettleDelay time.Duration
	// Fit defaults to fitting.Fit
	Fit FitFunc
	// Sleep defaults to time.Sleep
	Sleep func(time.Duration)
}

// Session binds a sweep configuration to an instrument link.
//
// Setup, Sample and Cleanup belong to the acquisition loop and must not be
// called concurrently. The Set*/ResetTracking entry points may be called
// from any goroutine: they only queue work for the next cycle.
type Session struct {
	link  instrument.Link
	opts  Options
	queue mutationQueue

	state   State
	cfg     *models.SweepConfig
	variant Variant

	// last marker readout as (bw, f0, q), for staleness detection
	lastMarkers [][]float64

	// set while the instrument's segment table lags cfg
	needsProgram bool

	segmentCount atomic.Int64
}

// NewSession creates an unconfigured session on link
func NewSession(link instrument.Link, opts Options) *Session {
	if opts.Channel == 0 {
		opts.Channel = 1
	}
	if opts.Fit == nil {
		opts.Fit = fitting.Fit
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	return &Session{link: link, opts: opts}
}

// State returns the current lifecycle state
func (s *Session) State() State {
	return s.state
}

// Variant returns the resolved model variant, nil before Setup
func (s *Session) Variant() Variant {
	return s.variant
}

// Setup validates cfg, resets the instrument, detects its model and
// programs the segmented sweep. Configuration errors are reported before
// the instrument is touched; instrument errors here are fatal.
func (s *Session) Setup(cfg models.AnalyzerConfig) error {
	if s.state == StateClosed {
		return ErrClosed
	}

	sweep, err := BuildSweepConfig(cfg)
	if err != nil {
		return err
	}

	s.state = StateUnconfigured
	s.queue.clear()
	s.lastMarkers = nil
	s.needsProgram = false

	if err := s.link.Reset(); err != nil {
		return fmt.Errorf("reset instrument: %w", err)
	}
	idn, err := s.link.Query("*IDN?")
	if err != nil {
		return fmt.Errorf("identify instrument: %w", err)
	}
	model, err := instrument.ParseModel(idn)
	if err != nil {
		return fmt.Errorf("identify instrument: %w", err)
	}
	variant, err := ResolveVariant(model)
	if err != nil {
		return err
	}
	log.Info().Str("model", model).Int("segments", len(sweep.Segments)).Bool("markers", sweep.UseMarkers).Msg("Setting up analyzer")

	if sweep.UseMarkers && !variant.SupportsMarkers() {
		log.Warn().Str("model", model).Msg("Marker readback not supported, falling back to raw sweeps")
		sweep.UseMarkers = false
	}

	ch := s.opts.Channel
	if err := s.link.Write(":CALC%d:PAR1:DEF %s", ch, "S21"); err != nil {
		return fmt.Errorf("define measurement: %w", err)
	}
	if err := s.link.Write(":INIT%d:CONT %s", ch, instrument.OnOff(true)); err != nil {
		return fmt.Errorf("enable continuous initiation: %w", err)
	}
	if !sweep.UseMarkers {
		if err := variant.ArmTrigger(s.link); err != nil {
			return fmt.Errorf("select trigger source: %w", err)
		}
	}
	sweepSetup := []struct {
		format string
		arg    any
	}{
		{":SENS%d:SWE:TYPE %v", "SEGM"},
		{":SENS%d:SWE:DEL %v", 0.001},
		{":SENS%d:SWE:GEN %v", "STEP"},
	}
	for _, c := range sweepSetup {
		if err := s.link.Write(c.format, ch, c.arg); err != nil {
			return fmt.Errorf("configure sweep: %w", err)
		}
	}

	if err := variant.ProgramSweep(s.link, sweep.Segments, ch); err != nil {
		return fmt.Errorf("program segments: %w", err)
	}
	s.opts.Sleep(s.opts.SettleDelay)

	if err := s.link.Write(":DISP:WIND%d:TRAC1:Y:AUTO", ch); err != nil {
		return fmt.Errorf("autoscale display: %w", err)
	}
	if sweep.UseMarkers {
		markerSetup := []struct {
			format string
			args   []any
		}{
			{":CALC%d:MARK:BWID %s", []any{ch, instrument.OnOff(true)}},
			{":CALC%d:MARK:FUNC:MULT:TYPE %s", []any{ch, "PEAK"}},
			{":CALC%d:MARK:FUNC:EXEC", []any{ch}},
			{":CALC%d:MARK:FUNC:MULT:TRAC %s", []any{ch, instrument.OnOff(true)}},
		}
		for _, c := range markerSetup {
			if err := s.link.Write(c.format, c.args...); err != nil {
				return fmt.Errorf("configure markers: %w", err)
			}
		}
	}

	s.cfg = sweep
	s.variant = variant
	s.segmentCount.Store(int64(len(sweep.Segments)))
	s.state = StateConfigured
	s.publishGeometry()
	return nil
}

// Sample runs one acquisition cycle. It returns (nil, nil) when the cycle
// produced no result: stale marker data, a lost resonance, or a recoverable
// transport fault. Any other error is fatal.
func (s *Session) Sample(elapsed time.Duration) (*models.Sample, error) {
	switch s.state {
	case StateConfigured, StateSampling:
	case StateClosed:
		return nil, ErrClosed
	default:
		return nil, ErrNotConfigured
	}
	s.state = StateSampling

	start := time.Now()
	defer func() {
		cycleDuration.Observe(time.Since(start).Seconds())
	}()

	if err := s.applyMutations(); err != nil {
		return s.noResult(err)
	}
	if s.needsProgram {
		if err := s.reprogram(); err != nil {
			return s.noResult(err)
		}
	}

	var (
		sample *models.Sample
		err    error
	)
	if s.cfg.UseMarkers {
		sample, err = s.sampleMarkers(elapsed)
	} else {
		sample, err = s.sampleSweep(elapsed)
	}
	if err != nil || sample == nil {
		return s.noResult(err)
	}

	if s.track(sample) {
		if err := s.reprogram(); err != nil {
			return s.noResult(err)
		}
	}

	cyclesTotal.WithLabelValues(outcomeAccepted).Inc()
	return sample, nil
}

// noResult turns recoverable failures into an empty cycle
func (s *Session) noResult(err error) (*models.Sample, error) {
	if err == nil {
		return nil, nil
	}
	if instrument.IsTransport(err) {
		cyclesTotal.WithLabelValues(outcomeTransport).Inc()
		log.Warn().Err(err).Msg("Instrument transport fault, skipping cycle")
		return nil, nil
	}
	return nil, err
}

func (s *Session) applyMutations() error {
	var first error
	for _, m := range s.queue.drain() {
		if err := m.apply(s); err != nil {
			log.Warn().Err(err).Str("mutation", m.name).Msg("Deferred change failed")
			if first == nil {
				first = err
			}
		}
	}
	return first
}

func (s *Session) sampleMarkers(elapsed time.Duration) (*models.Sample, error) {
	if err := s.variant.ForceTrigger(s.link); err != nil {
		return nil, err
	}
	if err := s.waitComplete(); err != nil {
		return nil, err
	}

	// Multi-peak search places one marker per programmed segment, so
	// markers are numbered over enabled segments only.
	ch := s.opts.Channel
	sample := models.NewSample(len(s.cfg.Segments), elapsed, false)
	marker := 0
	for i, seg := range s.cfg.Segments {
		if !seg.Enabled {
			continue
		}
		marker++
		values, err := s.link.QueryValues(":CALC%d:MARK%d:BWID:DATA?", ch, marker)
		if err != nil {
			return nil, err
		}
		if len(values) < 4 {
			return nil, &instrument.TransportError{
				Op:      "parse",
				Command: fmt.Sprintf(":CALC%d:MARK%d:BWID:DATA?", ch, marker),
				Err:     fmt.Errorf("expected 4 values, got %d", len(values)),
			}
		}
		sample.Set(i, values[0], values[1], values[2], values[3])
	}

	readout := [][]float64{sample.BW, sample.F0, sample.Q}
	if sameBits(readout, s.lastMarkers) {
		cyclesTotal.WithLabelValues(outcomeStale).Inc()
		log.Debug().Msg("Marker data not refreshed, discarding")
		return nil, nil
	}
	s.lastMarkers = cloneRows(readout)
	return sample, nil
}

func (s *Session) sampleSweep(elapsed time.Duration) (*models.Sample, error) {
	if err := s.variant.Trigger(s.link); err != nil {
		return nil, err
	}
	if err := s.waitComplete(); err != nil {
		return nil, err
	}

	ch := s.opts.Channel
	raw, err := s.variant.SweepData(s.link, ch)
	if err != nil {
		return nil, err
	}
	freq, err := s.variant.FrequencyData(s.link, ch)
	if err != nil {
		return nil, err
	}
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("sweep data has odd length %d", len(raw))
	}
	ampl := make([]float64, len(raw)/2)
	for i := range ampl {
		ampl[i] = math.Hypot(raw[2*i], raw[2*i+1])
	}

	cfg := s.cfg
	if total := cfg.EnabledPoints(); len(freq) != total || len(ampl) != total {
		err := fmt.Errorf("%w: programmed %d points, got %d frequencies and %d amplitudes",
			ErrTraceMismatch, total, len(freq), len(ampl))
		cyclesTotal.WithLabelValues(outcomeMismatch).Inc()
		log.Warn().Err(err).Msg("Segment table out of step with instrument, reprogramming")
		s.needsProgram = true
		return nil, nil
	}

	sample := models.NewSample(len(cfg.Segments), elapsed, true)
	nudge := cfg.TrackFrequency && cfg.TrackingEnabled
	lost := false
	offset := 0

	for i := range cfg.Segments {
		seg := &cfg.Segments[i]
		if !seg.Enabled {
			continue
		}
		end := offset + seg.Points
		f := freq[offset:end]
		a := ampl[offset:end]
		offset = end

		res, err := s.opts.Fit(f, a)
		if err != nil {
			var ce *fitting.ConvergenceError
			if !errors.As(err, &ce) {
				return nil, fmt.Errorf("fit segment %s: %w", seg.Name, err)
			}
			lost = true
			fitFailuresTotal.Inc()
			log.Debug().Err(err).Str("segment", seg.Name).Msg("Lost track of resonance")
			if nudge {
				s.nudge(seg, f, a)
			}
			continue
		}

		sample.Set(i, res.Bandwidth, res.Center, res.Q, res.InsertionLoss)
		sample.SetTrace(i, f, a)
	}

	if lost {
		cyclesTotal.WithLabelValues(outcomeLostTrack).Inc()
		if nudge {
			if err := s.reprogram(); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}
	return sample, nil
}

// nudge moves a lost segment one full span toward rising amplitude
func (s *Session) nudge(seg *models.Segment, freq, ampl []float64) {
	slope, err := fitting.Slope(freq, ampl)
	if err != nil {
		log.Warn().Err(err).Str("segment", seg.Name).Msg("Cannot estimate re-acquisition direction")
		return
	}
	from := seg.F0
	if slope > 0 {
		seg.F0 += seg.Span
	} else {
		seg.F0 -= seg.Span
	}
	retracksTotal.WithLabelValues("nudge").Inc()
	log.Info().Str("segment", seg.Name).Float64("from", from).Float64("to", seg.F0).Msg("Searching for resonance")
}

// reprogram pushes the current geometry to the instrument. In marker mode
// one full sweep is forced so marker registers reflect the new windows.
// Until every step succeeds the next cycle starts by retrying it.
func (s *Session) reprogram() error {
	s.needsProgram = true
	if err := s.variant.ProgramSweep(s.link, s.cfg.Segments, s.opts.Channel); err != nil {
		return err
	}
	s.publishGeometry()

	if s.cfg.UseMarkers {
		if err := s.variant.ForceTrigger(s.link); err != nil {
			return err
		}
		if err := s.waitComplete(); err != nil {
			return err
		}
		if err := s.link.Write(":TRIG:SOUR INT"); err != nil {
			return err
		}
	}
	s.needsProgram = false
	return nil
}

func (s *Session) waitComplete() error {
	_, err := s.link.Query("*OPC?")
	return err
}

func (s *Session) publishGeometry() {
	for _, seg := range s.cfg.Segments {
		segmentCenter.WithLabelValues(seg.Name).Set(seg.F0)
		segmentSpan.WithLabelValues(seg.Name).Set(seg.Span)
	}
}

// Headers returns output column names: frequency, Q and insertion loss for
// every segment, grouped by quantity
func (s *Session) Headers() []string {
	if s.cfg == nil {
		return nil
	}
	segs := s.cfg.Segments
	headers := make([]string, 0, 3*len(segs))
	for _, seg := range segs {
		headers = append(headers, fmt.Sprintf("Frequency %s/Hz", seg.Name))
	}
	for _, seg := range segs {
		headers = append(headers, fmt.Sprintf("Q factor %s", seg.Name))
	}
	for _, seg := range segs {
		headers = append(headers, fmt.Sprintf("Insertion loss %s/dB", seg.Name))
	}
	return headers
}

// FormatSample flattens a sample in header order
func FormatSample(sample *models.Sample) []float64 {
	out := make([]float64, 0, 3*sample.Len())
	out = append(out, sample.F0...)
	out = append(out, sample.Q...)
	out = append(out, sample.IL...)
	return out
}

// Segments returns a copy of the current segment geometry
func (s *Session) Segments() []models.Segment {
	if s.cfg == nil {
		return nil
	}
	return s.cfg.SnapshotSegments()
}

// BandwidthFactor returns the effective bandwidth factor
func (s *Session) BandwidthFactor() float64 {
	if s.cfg == nil {
		return 0
	}
	return s.cfg.BandwidthFactor()
}

// TrackingEnabled reports the master tracking gate
func (s *Session) TrackingEnabled() bool {
	return s.cfg != nil && s.cfg.TrackingEnabled
}

// Pending returns the number of queued changes
func (s *Session) Pending() int {
	return s.queue.len()
}

// SetSegmentEnabled queues enabling or disabling segment index
func (s *Session) SetSegmentEnabled(index int, enabled bool) error {
	if index < 0 || int64(index) >= s.segmentCount.Load() {
		return fmt.Errorf("%w: %d", ErrSegmentIndex, index)
	}
	s.queue.push(mutation{
		name: "segment_enabled",
		apply: func(s *Session) error {
			if index >= len(s.cfg.Segments) {
				return fmt.Errorf("%w: %d", ErrSegmentIndex, index)
			}
			s.cfg.Segments[index].Enabled = enabled
			s.needsProgram = true
			return nil
		},
	})
	return nil
}

// SetBandwidthFactorOverride queues a bandwidth factor override; nil clears it
func (s *Session) SetBandwidthFactorOverride(factor *float64) error {
	if factor != nil && (!(*factor > 0) || math.IsInf(*factor, 0)) {
		return fmt.Errorf("bandwidth factor must be positive, got %v", *factor)
	}
	var v *float64
	if factor != nil {
		f := *factor
		v = &f
	}
	s.queue.push(mutation{
		name: "bandwidth_factor_override",
		apply: func(s *Session) error {
			s.cfg.SetBandwidthFactorOverride(v)
			return nil
		},
	})
	return nil
}

// SetTrackingOverride queues switching the tracking controller on or off
func (s *Session) SetTrackingOverride(enabled bool) error {
	s.queue.push(mutation{
		name: "tracking_override",
		apply: func(s *Session) error {
			s.cfg.TrackingEnabled = enabled
			return nil
		},
	})
	return nil
}

// ResetTracking queues restoring every segment's configured center and span
func (s *Session) ResetTracking() error {
	s.queue.push(mutation{
		name: "reset_tracking",
		apply: func(s *Session) error {
			for i := range s.cfg.Segments {
				s.cfg.Segments[i].ResetGeometry()
			}
			s.needsProgram = true
			return nil
		},
	})
	return nil
}

// Cleanup releases the instrument link
func (s *Session) Cleanup() error {
	if s.state == StateClosed {
		return nil
	}
	s.state = StateClosed
	s.queue.clear()
	return s.link.Close()
}

func sameBits(a, b [][]float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for j := range a[i] {
			if math.Float64bits(a[i][j]) != math.Float64bits(b[i][j]) {
				return false
			}
		}
	}
	return true
}

func cloneRows(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = append([]float64(nil), r...)
	}
	return out
}
