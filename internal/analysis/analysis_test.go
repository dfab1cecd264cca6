package analysis

import (
	"math"
	"testing"
)

func TestFFT_Impulse(t *testing.T) {
	out := FFT([]float64{1, 0, 0, 0})
	for i, c := range out {
		if math.Abs(real(c)-1) > 1e-12 || math.Abs(imag(c)) > 1e-12 {
			t.Errorf("bin %d: expected 1, got %v", i, c)
		}
	}
}

func TestNextPow2(t *testing.T) {
	tests := []struct{ in, want int }{{0, 1}, {1, 1}, {3, 4}, {64, 64}, {65, 128}}
	for _, tt := range tests {
		if got := NextPow2(tt.in); got != tt.want {
			t.Errorf("NextPow2(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestDetrend(t *testing.T) {
	out := Detrend([]float64{1, 2, 3})
	want := []float64{-1, 0, 1, 0}
	if len(out) != len(want) {
		t.Fatalf("expected length %d, got %d", len(want), len(out))
	}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("index %d: expected %v, got %v", i, want[i], out[i])
		}
	}
}

func TestDominantFrequency(t *testing.T) {
	const dt = 0.01
	data := make([]float64, 1024)
	for i := range data {
		data[i] = 3 + math.Sin(2*math.Pi*2*float64(i)*dt)
	}

	freq, ok := DominantFrequency(data, dt)
	if !ok {
		t.Fatal("expected a dominant frequency")
	}
	// Bin width is 1/(1024*dt), just under 0.1 Hz.
	if math.Abs(freq-2) > 0.1 {
		t.Errorf("expected about 2 Hz, got %v", freq)
	}
}

func TestDominantFrequency_Flat(t *testing.T) {
	if _, ok := DominantFrequency([]float64{5, 5, 5, 5, 5, 5, 5, 5}, 0.1); ok {
		t.Error("flat signal has no dominant frequency")
	}
	if _, ok := DominantFrequency([]float64{1, 2}, 0.1); ok {
		t.Error("short signal has no dominant frequency")
	}
}

func TestFFT_PadsToPowerOfTwo(t *testing.T) {
	if n := len(FFT([]float64{1, 2, 3})); n != 4 {
		t.Errorf("expected 4 bins, got %d", n)
	}
}
