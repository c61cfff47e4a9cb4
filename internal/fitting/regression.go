package fitting

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// Slope returns the least-squares slope of ampl against freq
func Slope(freq, ampl []float64) (float64, error) {
	if len(freq) != len(ampl) {
		return 0, fmt.Errorf("trace length mismatch: %d frequencies, %d amplitudes", len(freq), len(ampl))
	}
	if len(freq) < 2 {
		return 0, fmt.Errorf("need at least 2 points, got %d", len(freq))
	}
	_, beta := stat.LinearRegression(freq, ampl, nil, false)
	return beta, nil
}
