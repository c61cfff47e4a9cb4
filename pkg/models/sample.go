package models

import (
	"math"
	"time"
)

// Sample is the result of one acquisition cycle. Every slice has one slot per
// segment in segment order; a disabled segment's scalar slots hold NaN and its
// trace slots hold nil. Freq and Ampl are only filled in raw-sweep mode.
type Sample struct {
	Elapsed time.Duration
	BW      []float64
	F0      []float64
	Q       []float64
	IL      []float64
	Freq    [][]float64
	Ampl    [][]float64
}

// NewSample allocates a sample with n absent slots
func NewSample(n int, elapsed time.Duration, traces bool) *Sample {
	s := &Sample{
		Elapsed: elapsed,
		BW:      nanSlice(n),
		F0:      nanSlice(n),
		Q:       nanSlice(n),
		IL:      nanSlice(n),
	}
	if traces {
		s.Freq = make([][]float64, n)
		s.Ampl = make([][]float64, n)
	}
	return s
}

// Set fills slot i with a resonance result
func (s *Sample) Set(i int, bw, f0, q, il float64) {
	s.BW[i] = bw
	s.F0[i] = f0
	s.Q[i] = q
	s.IL[i] = il
}

// SetTrace stores the raw trace used for slot i
func (s *Sample) SetTrace(i int, freq, ampl []float64) {
	if s.Freq == nil {
		return
	}
	s.Freq[i] = freq
	s.Ampl[i] = ampl
}

// Present reports whether slot i carries a result
func (s *Sample) Present(i int) bool {
	return i >= 0 && i < len(s.F0) && !math.IsNaN(s.F0[i])
}

// Len returns the number of slots
func (s *Sample) Len() int {
	return len(s.F0)
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// OptionalFloats converts NaN slots to nil for JSON encoding
func OptionalFloats(values []float64) []*float64 {
	out := make([]*float64, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		v := v
		out[i] = &v
	}
	return out
}
