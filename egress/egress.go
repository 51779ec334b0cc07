// Package egress tracks residual heat loss that the shell model does not
// explain: the gap between the energy the model believes it has dissipated
// and what the sensor actually reports, expressed in degrees Celsius per
// second. The controller folds this rate back into its steady-state offset
// and per-tick heat budget.
package egress

import "hotend/ringbuf"

// Window is the number of trailing per-second samples averaged to produce
// the current egress estimate (spec: a short ring buffer of length 3).
const Window = 3

// Estimator tracks a rolling average of unmodelled heat loss.
type Estimator struct {
	samples *ringbuf.Buffer[float64]
}

// New creates an Estimator whose ring starts filled with zero loss.
func New() *Estimator {
	return &Estimator{
		samples: ringbuf.New(Window, 0.0),
	}
}

// Observe pushes a new per-second residual sample computed by the caller as
// (modelEnergyAfterRemovingHeaterInput - measuredSensorTemp) / dt.
func (e *Estimator) Observe(perSecondResidual float64) {
	e.samples.Push(perSecondResidual)
}

// PerSecond returns the mean of the trailing window, in degrees Celsius per
// second.
func (e *Estimator) PerSecond() float64 {
	total := 0.0
	n := e.samples.Len()
	for i := 0; i < n; i++ {
		total += e.samples.Recent(i)
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}

// Gradient estimates the steady-state internal temperature gradient implied
// by the current egress rate, scaled by the number of metal cells: losses
// accumulate across the chain from heater to sensor, so the expected
// average-to-sensor gap grows with cell count.
func (e *Estimator) Gradient(metalCells int) float64 {
	return e.PerSecond() * float64(metalCells) / 2
}
