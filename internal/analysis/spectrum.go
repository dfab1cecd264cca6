package analysis

// NextPow2 is the smallest power of two not below n.
func NextPow2(n int) int {
	p := 1
	for p < n {
		p *= 2
	}
	return p
}

// Detrend returns a copy of data with its mean removed, zero padded to a power
// of two.
func Detrend(data []float64) []float64 {
	out := make([]float64, NextPow2(len(data)))
	if len(data) == 0 {
		return out
	}
	mean := 0.0
	for _, v := range data {
		mean += v
	}
	mean /= float64(len(data))
	for i, v := range data {
		out[i] = v - mean
	}
	return out
}

// DominantFrequency returns the frequency in Hz of the strongest non-DC bin of
// data sampled every dt seconds. It reports false for signals too short or
// flat to have one.
func DominantFrequency(data []float64, dt float64) (float64, bool) {
	if len(data) < 4 || dt <= 0 {
		return 0, false
	}
	padded := Detrend(data)
	ps := PowerSpectrum(padded)

	maxPower := 0.0
	maxIdx := 0
	for i := 1; i < len(ps); i++ {
		if ps[i] > maxPower {
			maxPower = ps[i]
			maxIdx = i
		}
	}
	if maxIdx == 0 {
		return 0, false
	}
	return float64(maxIdx) / (float64(len(padded)) * dt), true
}
