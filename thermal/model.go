// Package thermal implements the lumped-shell cellular-automaton model of a
// heater block: a short chain of metal cells, heated at one end, coupled to
// a sensor cell near the other end, with the outermost cell clamped to
// ambient. It is deliberately crude 1-D diffusion — the autotuner absorbs
// geometry error into the conductivity parameter rather than the model
// capturing real geometry.
package thermal

import (
	"fmt"
	"math"

	"hotend/config"
	"hotend/egress"
)

// MinMetalCells is the smallest discretisation spec.md allows: heater cell,
// at least one interior cell, sensor cell, and the ambient pseudo-cell
// (N-1 >= 3).
const MinMetalCells = 3

// Model is a single heater's thermal simulation state. It is owned
// exclusively by one controller; nothing in this package is safe for
// concurrent use from multiple goroutines.
type Model struct {
	cells []float64 // cells[0..N-1]; cells[N-1] is the ambient pseudo-cell.

	time float64

	heaterPower         float64
	thermalConductivity float64
	baseCooling         float64
	fanCooling          float64
	envTemp             float64
	passesPerSec        int64

	egress *egress.Estimator

	recordHistory bool
	history       [][]float64
	pwmHistory    []float64
}

// Option configures optional Model behaviour at construction time.
type Option func(*Model)

// WithHistory enables recording of the cell vector and PWM value once per
// Advance or Predict call (after all of that call's dissipation sub-passes),
// for offline plotting or debugging. Disabled by default so the
// hot path never allocates for it.
func WithHistory() Option {
	return func(m *Model) {
		m.recordHistory = true
	}
}

// New constructs a Model from validated parameters. It returns an error if
// the cell count is too small to satisfy spec.md's N-1 >= 3 invariant.
func New(p config.Params, opts ...Option) (*Model, error) {
	if p.MetalCells < MinMetalCells {
		return nil, fmt.Errorf("%w: metal_cells = %d, need >= %d", ErrTooFewCells, p.MetalCells, MinMetalCells)
	}
	cellCount := int(p.MetalCells) + 1
	if cellCount-1 < 3 {
		return nil, fmt.Errorf("%w: N-1 = %d, need >= 3", ErrTooFewCells, cellCount-1)
	}

	cells := make([]float64, cellCount)
	for i := range cells {
		cells[i] = p.InitialTemp
	}
	cells[cellCount-1] = p.EnvTemp

	m := &Model{
		cells:               cells,
		heaterPower:         p.HeaterPower,
		thermalConductivity: p.ThermalConductivity,
		baseCooling:         p.BaseCooling,
		fanCooling:          p.FanCooling,
		envTemp:             p.EnvTemp,
		passesPerSec:        p.PassesPerSec,
		egress:              egress.New(),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// Cells returns a copy of the current cell temperatures.
func (m *Model) Cells() []float64 {
	out := make([]float64, len(m.cells))
	copy(out, m.cells)
	return out
}

// MetalCells returns N-1, the number of metal cells (excluding the ambient
// pseudo-cell).
func (m *Model) MetalCells() int {
	return len(m.cells) - 1
}

// SensorCell returns the index of the cell co-located with the sensor
// (N-2).
func (m *Model) SensorCell() int {
	return len(m.cells) - 2
}

// Time returns accumulated simulated seconds.
func (m *Model) Time() float64 {
	return m.time
}

// EnvTemp returns the current ambient temperature estimate.
func (m *Model) EnvTemp() float64 {
	return m.envTemp
}

// EgressPerSec returns the mean unmodelled heat loss rate, in degrees
// Celsius per second, over the trailing window.
func (m *Model) EgressPerSec() float64 {
	return m.egress.PerSecond()
}

// EgressGradient returns the steady-state average-to-sensor gradient implied
// by the current egress rate, used by the controller's steady-state offset
// calculation.
func (m *Model) EgressGradient() float64 {
	return m.egress.Gradient(m.MetalCells())
}

// AvgMetalTemp returns the mean temperature of the metal cells (excluding
// the ambient pseudo-cell).
func (m *Model) AvgMetalTemp() float64 {
	return mean(m.cells[:len(m.cells)-1])
}

// SensorTemp returns the current temperature of the cell co-located with
// the sensor.
func (m *Model) SensorTemp() float64 {
	return m.cells[m.SensorCell()]
}

// HeaterPower returns the configured heater power in degrees Celsius per
// second at full PWM.
func (m *Model) HeaterPower() float64 {
	return m.heaterPower
}

// History returns the recorded cell-vector trace, if WithHistory was set.
func (m *Model) History() [][]float64 {
	return m.history
}

// PWMHistory returns the recorded PWM trace, if WithHistory was set.
func (m *Model) PWMHistory() []float64 {
	return m.pwmHistory
}

// Config re-derives a config.Params snapshot of the model's current static
// parameters, the equivalent of model.py's Model.config().
func (m *Model) Config() config.Params {
	return config.Params{
		HeaterPower:         m.heaterPower,
		MetalCells:          int64(m.MetalCells()),
		PassesPerSec:        m.passesPerSec,
		ThermalConductivity: m.thermalConductivity,
		BaseCooling:         m.baseCooling,
		FanCooling:          m.fanCooling,
		InitialTemp:         m.cells[0],
		EnvTemp:             m.envTemp,
	}
}

// Advance integrates the model forward by dt seconds under the given PWM
// and fan power, corrects the sensor cell against the measured temperature,
// and returns the (corrected) sensor-cell temperature.
//
// dt is the elapsed time since the previous tick, pwm is the heater duty
// cycle that was active during that interval (not the pwm about to be
// applied), and sensorTemp is this tick's measurement.
func (m *Model) Advance(dt, pwm, sensorTemp, fanPower float64) float64 {
	if sensorTemp < m.envTemp {
		m.envTemp = sensorTemp
	}

	m.integrate(dt, pwm, fanPower)

	metalCells := len(m.cells) - 1
	newAvgEnergy := mean(m.cells[:metalCells]) - (dt*pwm*m.heaterPower)/float64(metalCells)
	if dt > 0 {
		m.egress.Observe((newAvgEnergy - sensorTemp) / dt)
	}

	m.correct(sensorTemp)

	return m.cells[m.SensorCell()]
}

// Predict advances the model exactly as Advance does, but skips both the
// egress observation and the sensor correction step: it is the model's own
// open-loop forecast given only pwm and fan power, with no real measurement
// to correct against. The autotuner's fitter and steady-state solver use
// this to simulate a candidate parameter set against a recorded trace —
// feeding Advance's own output back in as if it were a fresh measurement
// would make correct subtract the tick's natural change right back out,
// biasing every fit step that reads the simulated series.
func (m *Model) Predict(dt, pwm, fanPower float64) float64 {
	m.integrate(dt, pwm, fanPower)
	return m.cells[m.SensorCell()]
}

// integrate runs the sub-pass diffusion loop shared by Advance and Predict,
// recording history afterward if enabled.
func (m *Model) integrate(dt, pwm, fanPower float64) {
	passes := int(math.Max(1, math.Floor(dt*float64(m.passesPerSec))))
	subDt := dt / float64(passes)
	for i := 0; i < passes; i++ {
		m.dissipate(subDt, pwm, fanPower)
	}
	m.time += dt

	if m.recordHistory {
		snapshot := make([]float64, len(m.cells))
		copy(snapshot, m.cells)
		m.history = append(m.history, snapshot)
		m.pwmHistory = append(m.pwmHistory, pwm)
	}
}

// maxExaggeration caps how far a single spurious sensor reading can pull
// the sensor cell, so one bad sample cannot destabilise the model.
const maxExaggeration = 5.0

// correct nudges the sensor cell (and, for small deltas, the interior
// neighbour) toward the measured temperature. See spec.md §4.1: a slight
// over-correction that assumes the measured gradient also applies one cell
// further in, so the interior tracks reality faster after a disturbance.
func (m *Model) correct(sensorTemp float64) {
	sensorIdx := m.SensorCell()
	delta := m.cells[sensorIdx] - sensorTemp

	if math.Abs(1.3*delta) > maxExaggeration {
		sign := 1.0
		if delta < 0 {
			sign = -1.0
		}
		m.cells[sensorIdx] -= sign * math.Max(maxExaggeration, math.Abs(delta))
		return
	}

	m.cells[sensorIdx] -= 1.3 * delta
	m.cells[sensorIdx-1] -= 0.7 * delta
}

// dissipate performs a single sub-pass heat exchange over an interval of
// duration dt.
func (m *Model) dissipate(dt, pwm, fanPower float64) {
	n := len(m.cells)
	newCells := make([]float64, n)
	copy(newCells, m.cells)

	for target := 0; target < n; target++ {
		var tempDiff float64
		for _, source := range [2]int{target - 1, target + 1} {
			if source < 0 || source >= n {
				continue
			}
			gradient := m.cells[source] - m.cells[target]
			tempDiff += m.conductivity(target, source, fanPower) * gradient
		}
		if target == 0 {
			tempDiff += pwm * m.heaterPower
		}
		newCells[target] = m.cells[target] + dt*tempDiff
	}
	newCells[n-1] = m.envTemp

	m.cells = newCells
}

// conductivity returns the exchange fraction between two adjacent cells.
// Contact with the ambient pseudo-cell uses base_cooling plus the
// fan-induced extra cooling; metal-to-metal contact uses the uniform
// thermal_conductivity.
func (m *Model) conductivity(a, b int, fanPower float64) float64 {
	n := len(m.cells)
	if a == n-1 || b == n-1 {
		return m.baseCooling + fanPower*m.fanCooling
	}
	return m.thermalConductivity
}

// InjectEnergy adds delta directly to the heater cell, bypassing the normal
// PWM heating path. It exists for the steady-state gradient solver, which
// simulates a perfect energy-conservation controller by feeding the energy
// deficit straight back into the model each tick.
func (m *Model) InjectEnergy(delta float64) {
	m.cells[0] += delta
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	total := 0.0
	for _, x := range xs {
		total += x
	}
	return total / float64(len(xs))
}
