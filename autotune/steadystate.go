package autotune

import (
	"hotend/config"
	"hotend/thermal"
)

// steadyStateTicks and steadyStateDt match the 500-tick, 0.2s-per-tick
// energy-conserving simulation the steady-state gradient solver runs.
const (
	steadyStateTicks = 500
	steadyStateDt    = 0.2
)

// SteadyState computes the sensor-vs-average offset at calibrateTemp for
// both the unassisted and fan-assisted equilibrium, by simulating a
// perfect energy-conservation controller: any energy the model loses to
// cooling is injected straight back into the heater cell every tick, which
// reveals the gradient a real controller would otherwise have to fight with
// PWM alone.
//
// It returns a degenerate-fit flag instead of an error because, per the
// error handling for a degenerate fit, the caller is expected to fall back
// to an offset of 0 rather than treat this as fatal.
func SteadyState(p config.Params, calibrateTemp float64) (offsetBase, offsetFans float64, degenerate bool) {
	base, baseOK := equilibriumOffset(p, calibrateTemp, 0.0)
	fans, fansOK := equilibriumOffset(p, calibrateTemp, 1.0)
	if !baseOK || !fansOK {
		return 0, 0, true
	}
	return base, fans, false
}

func equilibriumOffset(p config.Params, calibrateTemp, fanPower float64) (offset float64, ok bool) {
	runParams := p
	runParams.InitialTemp = calibrateTemp

	m, err := thermal.New(runParams)
	if err != nil {
		return 0, false
	}

	initialEnergy := m.AvgMetalTemp() * float64(m.MetalCells())

	for i := 0; i < steadyStateTicks; i++ {
		m.Predict(steadyStateDt, 0.0, fanPower)
		currentSum := m.AvgMetalTemp() * float64(m.MetalCells())
		m.InjectEnergy(initialEnergy - currentSum)
	}

	denom := calibrateTemp - m.EnvTemp()
	if denom == 0 {
		return 0, false
	}
	offset = (calibrateTemp - m.Cells()[m.SensorCell()]) / denom
	return offset, true
}
