package models

// FrequencyPoint represents a single point of a measured trace
type FrequencyPoint struct {
	Frequency float64 `json:"frequency" doc:"Frequency in Hz"`
	Magnitude float64 `json:"magnitude" doc:"Linear amplitude"`
}

// TracePoints zips a frequency axis with its amplitudes
func TracePoints(freq, ampl []float64) []FrequencyPoint {
	n := len(freq)
	if len(ampl) < n {
		n = len(ampl)
	}
	points := make([]FrequencyPoint, n)
	for i := 0; i < n; i++ {
		points[i] = FrequencyPoint{Frequency: freq[i], Magnitude: ampl[i]}
	}
	return points
}
