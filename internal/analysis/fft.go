package analysis

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// FFT transforms real samples. Input whose length is not a power of two is
// zero padded first, so bin k is always k/(len*dt) Hz.
func FFT(data []float64) []complex128 {
	if n := NextPow2(len(data)); n != len(data) && len(data) > 1 {
		padded := make([]float64, n)
		copy(padded, data)
		data = padded
	}
	return fft.FFTReal(data)
}

// PowerSpectrum returns the magnitude of the first half of the transform.
func PowerSpectrum(data []float64) []float64 {
	out := FFT(data)
	ps := make([]float64, len(out)/2)
	for i := range ps {
		ps[i] = cmplx.Abs(out[i])
	}
	return ps
}
