// Package analysis provides spectral tools for run traces.
//
//   - [FFT]: real-input transform backed by go-dsp
//   - [PowerSpectrum]: magnitude of the positive-frequency bins
//   - [DominantFrequency]: strongest oscillation in a sampled signal
//
// A swinging rope's tracked tail oscillates at roughly its pendulum
// frequency, so the dominant frequency of its y trace gives the swing period:
//
//	freq, ok := analysis.DominantFrequency(ys, dt)
package analysis
