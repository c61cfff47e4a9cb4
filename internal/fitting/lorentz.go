// Package fitting extracts resonance parameters from amplitude traces.
package fitting

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ConvergenceError reports a fit that did not converge or produced
// non-physical parameters
type ConvergenceError struct {
	Reason string
}

func (e *ConvergenceError) Error() string {
	return "lorentzian fit: " + e.Reason
}

// Resonance is the physical result of a fit
type Resonance struct {
	Bandwidth     float64 // Hz
	Center        float64 // Hz
	Q             float64
	InsertionLoss float64 // dB
}

// Options tunes the Levenberg-Marquardt solver
type Options struct {
	MaxIterations int
	Tolerance     float64 // relative cost change that counts as converged
}

// DefaultOptions returns the solver settings used by Fit
func DefaultOptions() Options {
	return Options{
		MaxIterations: 200,
		Tolerance:     1e-12,
	}
}

// Lorentzian evaluates the resonance amplitude model at x
func Lorentzian(x, f0, bw, pmax float64) float64 {
	d := (x - f0) / bw
	return pmax / math.Sqrt(1+4*d*d)
}

// Fit fits a Lorentzian amplitude lineshape to a trace with default options
func Fit(freq, ampl []float64) (Resonance, error) {
	return FitWithOptions(freq, ampl, DefaultOptions())
}

// FitWithOptions normalizes the trace to the unit square, fits
// (f0, bw, pmax) by weighted nonlinear least squares starting from
// (0.5, 0.5, 1.0), and maps the result back to physical units.
func FitWithOptions(freq, ampl []float64, opts Options) (Resonance, error) {
	if len(freq) != len(ampl) {
		return Resonance{}, fmt.Errorf("trace length mismatch: %d frequencies, %d amplitudes", len(freq), len(ampl))
	}
	if len(freq) < 3 {
		return Resonance{}, &ConvergenceError{Reason: fmt.Sprintf("need at least 3 points, got %d", len(freq))}
	}

	maxA := floats.Max(ampl)
	if !(maxA > 0) || math.IsInf(maxA, 0) {
		return Resonance{}, &ConvergenceError{Reason: "trace has no positive peak"}
	}
	minF := floats.Min(freq)
	span := floats.Max(freq) - minF
	if !(span > 0) {
		return Resonance{}, &ConvergenceError{Reason: "zero frequency span"}
	}

	x := make([]float64, len(freq))
	y := make([]float64, len(ampl))
	w := make([]float64, len(ampl))
	for i := range freq {
		x[i] = (freq[i] - minF) / span
		y[i] = ampl[i] / maxA
		w[i] = y[i] * y[i]
	}

	p, err := levenbergMarquardt(x, y, w, [3]float64{0.5, 0.5, 1.0}, opts)
	if err != nil {
		return Resonance{}, err
	}

	f0n, bwn, pmax := p[0], math.Abs(p[1]), p[2]
	switch {
	case bwn == 0 || math.IsNaN(bwn) || math.IsInf(bwn, 0):
		return Resonance{}, &ConvergenceError{Reason: "non-physical bandwidth"}
	case !(pmax > 0) || math.IsInf(pmax, 0):
		return Resonance{}, &ConvergenceError{Reason: "non-physical peak amplitude"}
	case math.IsNaN(f0n) || math.IsInf(f0n, 0):
		return Resonance{}, &ConvergenceError{Reason: "non-physical center"}
	}

	center := f0n*span + minF
	bw := bwn * span
	return Resonance{
		Bandwidth:     bw,
		Center:        center,
		Q:             center / bw,
		InsertionLoss: 20 * math.Log10(pmax*maxA),
	}, nil
}

// levenbergMarquardt minimizes sum(w * (y - model(x))^2) over (f0, bw, pmax)
func levenbergMarquardt(x, y, w []float64, start [3]float64, opts Options) ([3]float64, error) {
	const (
		lambdaStart = 1e-3
		lambdaMax   = 1e16
	)

	p := start
	cost := weightedCost(x, y, w, p)
	lambda := lambdaStart

	jtj := mat.NewSymDense(3, nil)
	jtr := mat.NewVecDense(3, nil)
	lhs := mat.NewDense(3, 3, nil)
	var delta mat.VecDense

	for iter := 0; iter < opts.MaxIterations; iter++ {
		normalEquations(x, y, w, p, jtj, jtr)

		for {
			for i := 0; i < 3; i++ {
				for j := 0; j < 3; j++ {
					v := jtj.At(i, j)
					if i == j {
						v += lambda * math.Max(v, 1e-12)
					}
					lhs.Set(i, j, v)
				}
			}

			if err := delta.SolveVec(lhs, jtr); err == nil {
				next := [3]float64{p[0] + delta.AtVec(0), p[1] + delta.AtVec(1), p[2] + delta.AtVec(2)}
				nextCost := weightedCost(x, y, w, next)
				if nextCost < cost {
					improvement := (cost - nextCost) / math.Max(cost, math.SmallestNonzeroFloat64)
					p, cost = next, nextCost
					lambda = math.Max(lambda/10, 1e-12)
					if improvement < opts.Tolerance || cost < 1e-30 {
						return p, nil
					}
					break
				}
				// No improvement with a vanishing step: we are at a minimum
				if mat.Norm(&delta, 2) < 1e-14*(1+math.Abs(p[0])+math.Abs(p[1])+math.Abs(p[2])) {
					return p, nil
				}
			}

			lambda *= 10
			if lambda > lambdaMax {
				if cost < 1e-20 {
					return p, nil
				}
				return p, &ConvergenceError{Reason: "damping diverged"}
			}
		}
	}
	return p, &ConvergenceError{Reason: fmt.Sprintf("no convergence after %d iterations", opts.MaxIterations)}
}

// normalEquations fills J'WJ and J'W r for the current parameters
func normalEquations(x, y, w []float64, p [3]float64, jtj *mat.SymDense, jtr *mat.VecDense) {
	f0, bw, pmax := p[0], p[1], p[2]
	var a [3][3]float64
	var b [3]float64

	for i := range x {
		d := x[i] - f0
		s := 1 + 4*d*d/(bw*bw)
		inv := 1 / math.Sqrt(s)
		inv3 := inv / s

		model := pmax * inv
		r := y[i] - model
		grad := [3]float64{
			pmax * 4 * d / (bw * bw) * inv3,
			pmax * 4 * d * d / (bw * bw * bw) * inv3,
			inv,
		}

		for j := 0; j < 3; j++ {
			b[j] += w[i] * grad[j] * r
			for k := j; k < 3; k++ {
				a[j][k] += w[i] * grad[j] * grad[k]
			}
		}
	}

	for j := 0; j < 3; j++ {
		jtr.SetVec(j, b[j])
		for k := j; k < 3; k++ {
			jtj.SetSym(j, k, a[j][k])
		}
	}
}

func weightedCost(x, y, w []float64, p [3]float64) float64 {
	var sum float64
	for i := range x {
		r := y[i] - Lorentzian(x[i], p[0], p[1], p[2])
		sum += w[i] * r * r
	}
	if math.IsNaN(sum) {
		return math.Inf(1)
	}
	return sum
}
