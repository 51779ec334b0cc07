package smoothing

import (
	"math"
	"testing"
)

func TestWindowSizeClampsAndRoundsOdd(t *testing.T) {
	if got := WindowSize(10); got != 21 {
		t.Errorf("WindowSize(10) = %d, want 21 (clamped to 20, odd)", got)
	}
	if got := WindowSize(500); got != 101 {
		t.Errorf("WindowSize(500) = %d, want 101 (clamped to 100, odd)", got)
	}
	if got := WindowSize(100); got != 21 {
		t.Errorf("WindowSize(100) = %d, want 21 (100/5=20, odd)", got)
	}
	if got := WindowSize(105); got != 21 {
		t.Errorf("WindowSize(105) = %d, want 21 (105/5=21 already odd)", got)
	}
}

func TestSavitzkyGolaySmoothsNoisyLine(t *testing.T) {
	n := 200
	data := make([]float64, n)
	for i := range data {
		data[i] = float64(i) * 0.5
		if i%2 == 0 {
			data[i] += 1.0
		} else {
			data[i] -= 1.0
		}
	}

	smoothed := SavitzkyGolay(data)
	if len(smoothed) != n {
		t.Fatalf("len(smoothed) = %d, want %d", len(smoothed), n)
	}

	for i := 50; i < 150; i++ {
		want := float64(i) * 0.5
		if math.Abs(smoothed[i]-want) > 0.5 {
			t.Errorf("smoothed[%d] = %v, want close to %v", i, smoothed[i], want)
		}
	}
}

func TestSavitzkyGolayPreservesConstantSignal(t *testing.T) {
	data := make([]float64, 100)
	for i := range data {
		data[i] = 42.0
	}
	smoothed := SavitzkyGolay(data)
	for i, v := range smoothed {
		if math.Abs(v-42.0) > 1e-6 {
			t.Errorf("smoothed[%d] = %v, want 42.0 for constant input", i, v)
		}
	}
}

func TestDerivativeOfLinearRampIsConstantSlope(t *testing.T) {
	n := 50
	times := make([]float64, n)
	values := make([]float64, n)
	for i := range times {
		times[i] = float64(i) * 0.2
		values[i] = 3.0 * times[i]
	}

	for i := 5; i < n-5; i++ {
		d := Derivative(times, values, i)
		if math.Abs(d-3.0) > 1e-9 {
			t.Errorf("Derivative at %d = %v, want 3.0", i, d)
		}
	}
}

func TestDerivativeAtBoundaryFallsBackToOneSided(t *testing.T) {
	times := []float64{0, 0.6, 1.2, 1.8}
	values := []float64{0, 1.2, 2.4, 3.6}

	d := Derivative(times, values, 0)
	if math.Abs(d-2.0) > 1e-9 {
		t.Errorf("Derivative at boundary = %v, want 2.0", d)
	}
}
