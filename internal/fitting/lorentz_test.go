package fitting

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lorentzTrace samples a Lorentzian over [start, start+span]
func lorentzTrace(start, span float64, points int, f0, bw, pmax float64) ([]float64, []float64) {
	freq := make([]float64, points)
	ampl := make([]float64, points)
	for i := 0; i < points; i++ {
		f := start + span*float64(i)/float64(points-1)
		freq[i] = f
		ampl[i] = Lorentzian(f, f0, bw, pmax)
	}
	return freq, ampl
}

func TestFit_RecoversSyntheticLorentzian(t *testing.T) {
	tests := []struct {
		name   string
		start  float64
		span   float64
		points int
		f0     float64
		bw     float64
		pmax   float64
	}{
		{
			name:   "centered TM010",
			start:  2.5007e9 - 0.5e6,
			span:   1e6,
			points: 201,
			f0:     2.5007e9,
			bw:     100e3,
			pmax:   0.5,
		},
		{
			name:   "drifted toward upper edge",
			start:  2.5007e9 - 0.5e6,
			span:   1e6,
			points: 201,
			f0:     2.5007e9 + 380e3,
			bw:     100e3,
			pmax:   0.2,
		},
		{
			name:   "broad weak resonance",
			start:  1e9,
			span:   50e6,
			points: 401,
			f0:     1e9 + 15e6,
			bw:     10e6,
			pmax:   0.05,
		},
		{
			name:   "few points",
			start:  5e8,
			span:   2e6,
			points: 51,
			f0:     5e8 + 0.9e6,
			bw:     300e3,
			pmax:   1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			freq, ampl := lorentzTrace(tt.start, tt.span, tt.points, tt.f0, tt.bw, tt.pmax)

			res, err := Fit(freq, ampl)
			require.NoError(t, err)

			assert.InDelta(t, tt.f0, res.Center, tt.bw*0.01)
			assert.InEpsilon(t, tt.bw, res.Bandwidth, 0.01)
			assert.InEpsilon(t, tt.f0/tt.bw, res.Q, 0.01)
			assert.InDelta(t, 20*math.Log10(tt.pmax), res.InsertionLoss, 0.1)
		})
	}
}

func TestFit_CenterBeyondWindowEdge(t *testing.T) {
	// Peak just above the window; only its lower flank is sampled
	freq, ampl := lorentzTrace(0, 1e6, 201, 1.05e6, 400e3, 1.0)

	res, err := Fit(freq, ampl)
	require.NoError(t, err)
	assert.Greater(t, res.Center, freq[len(freq)-1])
	assert.InDelta(t, 1.05e6, res.Center, 4e3)
	assert.InEpsilon(t, 400e3, res.Bandwidth, 0.01)
}

func TestFit_DegenerateInput(t *testing.T) {
	tests := []struct {
		name string
		freq []float64
		ampl []float64
	}{
		{"too few points", []float64{1, 2}, []float64{1, 1}},
		{"no peak", []float64{1, 2, 3}, []float64{0, 0, 0}},
		{"zero span", []float64{5, 5, 5}, []float64{1, 2, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Fit(tt.freq, tt.ampl)
			var ce *ConvergenceError
			assert.True(t, errors.As(err, &ce))
		})
	}

	_, err := Fit([]float64{1, 2, 3}, []float64{1, 2})
	assert.Error(t, err)
}

func TestSlope(t *testing.T) {
	slope, err := Slope([]float64{0, 1, 2, 3}, []float64{1, 3, 5, 7})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, slope, 1e-12)

	slope, err = Slope([]float64{0, 1, 2, 3}, []float64{4, 3, 2, 1})
	require.NoError(t, err)
	assert.Less(t, slope, 0.0)

	_, err = Slope([]float64{1}, []float64{1})
	assert.Error(t, err)
}
