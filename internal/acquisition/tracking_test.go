package acquisition

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackWindow(t *testing.T) {
	const (
		center = 2_500_700_000.0
		span   = 1_000_000.0
	)
	tol := DefaultTolerances()

	tests := []struct {
		name     string
		f0       float64
		bw       float64
		factor   float64
		tol      Tolerances
		expected Decision
	}{
		{
			name:     "centered and well sized",
			f0:       center,
			bw:       125_000,
			factor:   8,
			tol:      tol,
			expected: Decision{},
		},
		{
			name:     "edge inside tolerance",
			f0:       center + 300_000,
			bw:       100_000,
			factor:   8,
			tol:      tol,
			expected: Decision{},
		},
		{
			name:     "edge beyond tolerance",
			f0:       center + 380_000,
			bw:       100_000,
			factor:   8,
			tol:      tol,
			expected: Decision{Drift: true},
		},
		{
			name:     "tighter center tolerance",
			f0:       center + 300_000,
			bw:       100_000,
			factor:   8,
			tol:      Tolerances{CenterError: 0.6, SpanError: 0.3},
			expected: Decision{Drift: true},
		},
		{
			name:     "below center",
			f0:       center - 450_000,
			bw:       100_000,
			factor:   8,
			tol:      tol,
			expected: Decision{Drift: true},
		},
		{
			name:     "window far too wide",
			f0:       center,
			bw:       5_000,
			factor:   8,
			tol:      tol,
			expected: Decision{SpanMismatch: true},
		},
		{
			name:     "window too narrow",
			f0:       center,
			bw:       200_000,
			factor:   8,
			tol:      tol,
			expected: Decision{SpanMismatch: true},
		},
		{
			name:     "both criteria",
			f0:       center + 450_000,
			bw:       5_000,
			factor:   8,
			tol:      tol,
			expected: Decision{Drift: true, SpanMismatch: true},
		},
		{
			name:     "zero bandwidth never trips",
			f0:       center + 450_000,
			bw:       0,
			factor:   8,
			tol:      tol,
			expected: Decision{},
		},
		{
			name:     "missing result never trips",
			f0:       math.NaN(),
			bw:       math.NaN(),
			factor:   8,
			tol:      tol,
			expected: Decision{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TrackWindow(center, span, tt.f0, tt.bw, tt.tol, tt.factor))
		})
	}
}

func TestTrackWindow_SpanRatioBoundary(t *testing.T) {
	tol := DefaultTolerances()

	// bw*factor = 1.25*span sits inside the 1.3 bound, 1.35*span does not
	assert.False(t, TrackWindow(0, 1e6, 0, 1.25e6/8, Tolerances{CenterError: 10, SpanError: tol.SpanError}, 8).SpanMismatch)
	assert.True(t, TrackWindow(0, 1e6, 0, 1.35e6/8, Tolerances{CenterError: 10, SpanError: tol.SpanError}, 8).SpanMismatch)
}
