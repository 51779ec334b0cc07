// Package smoothing implements the offline signal-processing steps the
// autotuner runs over a recorded trace before fitting: Savitzky-Golay
// smoothing and a symmetric finite-difference derivative estimator.
package smoothing

import "gonum.org/v1/gonum/mat"

// Order is the Savitzky-Golay polynomial order the fitter always uses.
const Order = 3

// WindowSize returns the odd window length clamp(n/5, 20, 100) spec.md §4.4
// specifies for a trace of n samples.
func WindowSize(n int) int {
	w := n / 5
	if w < 20 {
		w = 20
	}
	if w > 100 {
		w = 100
	}
	if w%2 == 0 {
		w++
	}
	return w
}

// SavitzkyGolay smooths data with a degree-Order polynomial fit over a
// window sized by WindowSize, via the classic least-squares coefficient
// derivation (solve the normal equations for the Vandermonde design matrix,
// take the row 0 — constant-term — coefficients of the pseudoinverse).
// Edges are handled by reflecting the data about the boundary so the filter
// is defined for every index without shrinking the window near the ends.
func SavitzkyGolay(data []float64) []float64 {
	if len(data) == 0 {
		return nil
	}
	window := WindowSize(len(data))
	if window > len(data) {
		window = len(data)
		if window%2 == 0 {
			window--
		}
		if window < 1 {
			window = 1
		}
	}
	half := window / 2

	coeffs := savgolCoefficients(window, Order)
	padded := reflectPad(data, half)

	out := make([]float64, len(data))
	for i := range data {
		sum := 0.0
		for k := 0; k < window; k++ {
			sum += coeffs[k] * padded[i+k]
		}
		out[i] = sum
	}
	return out
}

// savgolCoefficients returns the window-length convolution kernel for a
// degree-order smoothing filter centred on the window's midpoint.
func savgolCoefficients(window, order int) []float64 {
	half := window / 2
	cols := order + 1

	a := mat.NewDense(window, cols, nil)
	for i := 0; i < window; i++ {
		x := float64(i - half)
		val := 1.0
		for j := 0; j < cols; j++ {
			a.Set(i, j, val)
			val *= x
		}
	}

	var ata mat.Dense
	ata.Mul(a.T(), a)

	var ataInv mat.Dense
	if err := ataInv.Inverse(&ata); err != nil {
		// Singular normal equations only happen for a degenerate
		// (near-zero) window; fall back to a plain moving average.
		uniform := make([]float64, window)
		for i := range uniform {
			uniform[i] = 1.0 / float64(window)
		}
		return uniform
	}

	var pseudo mat.Dense
	pseudo.Mul(&ataInv, a.T())

	coeffs := make([]float64, window)
	for k := 0; k < window; k++ {
		coeffs[k] = pseudo.At(0, k)
	}
	return coeffs
}

// reflectPad extends data by half samples on each side, mirroring about the
// boundary value, so a fixed-size window is defined at every index of the
// original data.
func reflectPad(data []float64, half int) []float64 {
	n := len(data)
	out := make([]float64, n+2*half)
	for i := 0; i < half; i++ {
		out[i] = data[min(half-i, n-1)]
	}
	copy(out[half:half+n], data)
	for i := 0; i < half; i++ {
		out[half+n+i] = data[max(n-2-i, 0)]
	}
	return out
}
