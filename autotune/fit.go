// Package autotune implements the offline parameter-identification pipeline:
// given a recorded heat-up/cool-down trace, it infers the thermal model's
// physical parameters via a sequence of scalar binary searches guided by
// curve-fitting errors, plus a steady-state gradient solve.
package autotune

import (
	"fmt"

	"hotend/config"
	"hotend/smoothing"
	"hotend/thermal"
	"hotend/trace"
)

// maxFitIterations bounds each parameter's binary search, matching the
// bisection's documented eps convergence with a hard ceiling so a
// pathological trace can't hang the fitter (a degenerate-fit case the
// steady-state solver also has to handle).
const maxFitIterations = 200

// Fitter runs the five-step fit order over a completed, loaded trace.
type Fitter struct {
	trace    *trace.Loaded
	smoothed []float64

	calibrateTemp  float64
	cooldownTarget float64
	envTemp        float64

	coolingCurve *CoolingCurve
	compensated  []float64

	cooldownStart, cooldownEnd int
	heatupStart, heatupEnd     int
}

// NewFitter prepares a Fitter from a loaded trace recorded up to
// calibrateTemp. It returns an error if the trace is missing phase
// boundaries the fit order requires.
func NewFitter(loaded *trace.Loaded, calibrateTemp float64) (*Fitter, error) {
	for _, phase := range []string{trace.PhaseHeatup, trace.PhaseOvershoot, trace.PhaseCooldown} {
		if _, ok := loaded.PhaseStart[phase]; !ok {
			return nil, fmt.Errorf("%w: missing %s", trace.ErrPhaseIncomplete, phase)
		}
	}
	if len(loaded.Timestamps) < 10 {
		return nil, fmt.Errorf("autotune: trace too short to fit (%d samples)", len(loaded.Timestamps))
	}

	f := &Fitter{
		trace:         loaded,
		smoothed:      smoothing.SavitzkyGolay(loaded.RawSamples),
		calibrateTemp: calibrateTemp,
		envTemp:       loaded.RawSamples[0],
		heatupStart:   loaded.PhaseStart[trace.PhaseHeatup],
		heatupEnd:     loaded.PhaseStart[trace.PhaseOvershoot],
		cooldownStart: loaded.PhaseStart[trace.PhaseCooldown],
	}
	f.cooldownTarget = f.envTemp + 15.0
	if end, ok := loaded.PhaseStart[trace.PhaseHeatupFan]; ok {
		f.cooldownEnd = end
	} else {
		f.cooldownEnd = len(loaded.Timestamps)
	}

	if err := f.buildCoolingModel(); err != nil {
		return nil, err
	}
	return f, nil
}

// buildCoolingModel samples the cooldown phase's smoothed derivative at
// every integer temperature from calibrate_temp down to cooldown_target,
// builds a monotone cooling curve from those (temperature, rate) samples
// (avoiding the smoothing artefacts at the very ends of the cooldown, which
// is why the scan stops at cooldown_target rather than running to the last
// sample), and integrates it forward to produce the compensated trace used
// by the heater_power and thermal_conductivity fit steps.
func (f *Fitter) buildCoolingModel() error {
	curve := NewCoolingCurve()
	n := 0
	for t := int(f.calibrateTemp); float64(t) >= f.cooldownTarget; t-- {
		idx := f.closestCooldownSample(float64(t))
		if idx < 0 {
			continue
		}
		rate := smoothing.Derivative(f.trace.Timestamps, f.smoothed, idx)
		curve.AddPoint(float64(t), rate)
		n++
	}
	if n < 20 {
		return fmt.Errorf("autotune: cooldown phase too short to derive a cooling curve (%d points)", n)
	}
	if err := curve.Build(); err != nil {
		return err
	}
	f.coolingCurve = curve

	f.compensated = f.integrateCompensated()
	return nil
}

// closestCooldownSample returns the index within [cooldownStart, cooldownEnd)
// whose smoothed sample is closest to target.
func (f *Fitter) closestCooldownSample(target float64) int {
	best, bestDiff := -1, 0.0
	for i := f.cooldownStart; i < f.cooldownEnd && i < len(f.smoothed); i++ {
		diff := f.smoothed[i] - target
		if diff < 0 {
			diff = -diff
		}
		if best < 0 || diff < bestDiff {
			best, bestDiff = i, diff
		}
	}
	return best
}

// integrateCompensated walks the heatup+cooldown window, accumulating the
// cooling curve's predicted loss at each sample's own temperature and
// subtracting it from each smoothed sample, clamped to be monotonically
// non-decreasing during heatup to guard against cooling-model overshoot.
func (f *Fitter) integrateCompensated() []float64 {
	out := make([]float64, f.cooldownEnd)
	cumulative := 0.0
	for i := f.heatupStart; i < f.cooldownEnd; i++ {
		if i > f.heatupStart {
			dt := f.trace.Timestamps[i] - f.trace.Timestamps[i-1]
			cumulative += dt * f.coolingCurve.RateAt(f.smoothed[i-1])
		}
		out[i] = f.smoothed[i] - cumulative
		if i > f.heatupStart && i < f.heatupEnd && out[i] < out[i-1] {
			out[i] = out[i-1]
		}
	}
	return out
}

// pwmAt returns the heater PWM active at times[i], a step function over the
// recorded pwm-change log.
func (f *Fitter) pwmAt(i int) float64 {
	value := 0.0
	t := f.trace.Timestamps[i]
	for _, s := range f.trace.PWMSamples {
		if s.Time > t {
			break
		}
		value = s.Value
	}
	return value
}

// fanAt returns the fan power active at sample index i, derived from which
// phase the index falls in.
func (f *Fitter) fanAt(i int) float64 {
	if start, ok := f.trace.PhaseStart[trace.PhaseHeatupFan]; ok && i >= start {
		return 1.0
	}
	return 0.0
}

// simulateSeries runs a fresh model with the given parameters across the
// trace's recorded timestamps using Model.Predict, the correction-free
// open-loop path, so the series reflects pure physics under the candidate
// parameters rather than being pulled back toward its own prior output.
func simulateSeries(p config.Params, times []float64, pwmAt, fanAt func(i int) float64) ([]float64, error) {
	m, err := thermal.New(p)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(times))
	out[0] = m.Cells()[m.SensorCell()]
	for i := 1; i < len(times); i++ {
		dt := times[i] - times[i-1]
		out[i] = m.Predict(dt, pwmAt(i-1), fanAt(i-1))
	}
	return out, nil
}

// Run executes the five-step fit order, each step reusing the previous
// steps' results, and returns the recovered parameters.
func (f *Fitter) Run(base config.Params) (config.Params, error) {
	p := base

	heaterPower, err := f.fitHeaterPower(p)
	if err != nil {
		return config.Params{}, err
	}
	p.HeaterPower = heaterPower

	conductivity, err := f.fitThermalConductivity(p)
	if err != nil {
		return config.Params{}, err
	}
	p.ThermalConductivity = conductivity

	baseCooling, err := f.fitBaseCooling(p)
	if err != nil {
		return config.Params{}, err
	}
	p.BaseCooling = baseCooling

	heaterPower, err = f.fitHeaterPowerRefit(p)
	if err != nil {
		return config.Params{}, err
	}
	p.HeaterPower = heaterPower

	fanCooling, err := f.fitFanCooling(p)
	if err != nil {
		return config.Params{}, err
	}
	p.FanCooling = fanCooling

	return p, nil
}

// fitHeaterPower fits heater_power so the model's predicted temperature at
// the end of the cooldown window matches the compensated trace there.
func (f *Fitter) fitHeaterPower(base config.Params) (float64, error) {
	target := f.compensated[f.cooldownEnd-1]
	errFn := func(candidate float64) float64 {
		p := base
		p.HeaterPower = candidate
		series, err := simulateSeries(p, f.trace.Timestamps[:f.cooldownEnd], f.pwmAt, f.fanAt)
		if err != nil {
			return 0
		}
		return target - series[f.cooldownEnd-1]
	}
	result, _ := Run(1e-6, 100, maxFitIterations, errFn)
	return result, nil
}

// fitThermalConductivity fits conductivity against how quickly the model
// reaches the heatup phase's pivot temperature compared to when the real
// trace did.
func (f *Fitter) fitThermalConductivity(base config.Params) (float64, error) {
	pivot := (f.heatupStart + f.heatupEnd) / 2
	pivotTemp := f.smoothed[pivot]

	errFn := func(candidate float64) float64 {
		p := base
		p.ThermalConductivity = candidate
		series, err := simulateSeries(p, f.trace.Timestamps[:f.heatupEnd], f.pwmAt, f.fanAt)
		if err != nil {
			return 0
		}
		modelPivotIdx := findTemp(series, pivotTemp)
		// if the model reaches pivotTemp later than the real trace did
		// (modelPivotIdx > pivot), it heats too slowly: conductivity too low.
		return float64(modelPivotIdx - pivot)
	}
	result, _ := Run(0, 1, maxFitIterations, errFn)
	return result, nil
}

// findTemp returns the first index at which series reaches target,
// or len(series)-1 if it never does.
func findTemp(series []float64, target float64) int {
	for i, v := range series {
		if v >= target {
			return i
		}
	}
	return len(series) - 1
}

// fitBaseCooling fits base_cooling against the cooldown window, scaling the
// model's cooldown curve to match the real trace's peak before comparing.
func (f *Fitter) fitBaseCooling(base config.Params) (float64, error) {
	errFn := func(candidate float64) float64 {
		p := base
		p.BaseCooling = candidate
		p.FanCooling = candidate
		series, err := simulateSeries(p, f.trace.Timestamps[:f.cooldownEnd], f.pwmAt, f.fanAt)
		if err != nil {
			return 0
		}

		maxModel := 0.0
		for i := f.cooldownStart; i < f.cooldownEnd; i++ {
			if series[i] > maxModel {
				maxModel = series[i]
			}
		}
		if maxModel == 0 {
			return 0
		}
		scale := f.smoothed[f.cooldownStart] / maxModel
		if scale > 1.3 {
			scale = 1.0
		}

		errSum := 0.0
		for i := f.cooldownStart; i < f.cooldownEnd; i++ {
			errSum += scale*series[i] - f.smoothed[i]
		}
		return errSum
	}
	result, _ := Run(0, 1, maxFitIterations, errFn)
	return result, nil
}

// fitHeaterPowerRefit vertically realigns the model's heatup peak against
// the real trace's, now that conductivity and base_cooling are fit.
func (f *Fitter) fitHeaterPowerRefit(base config.Params) (float64, error) {
	errFn := func(candidate float64) float64 {
		p := base
		p.HeaterPower = candidate
		series, err := simulateSeries(p, f.trace.Timestamps[:f.cooldownEnd], f.pwmAt, f.fanAt)
		if err != nil {
			return 0
		}
		return f.smoothed[f.cooldownStart] - series[f.cooldownStart]
	}
	result, _ := Run(1e-6, 100, maxFitIterations, errFn)
	return result, nil
}

// fitFanCooling fits the fan-induced extra cooling against the fan cooldown
// window, simulating with fan_power = 1.0 throughout.
func (f *Fitter) fitFanCooling(base config.Params) (float64, error) {
	fanStart, ok := f.trace.PhaseStart[trace.PhaseCooldownFan]
	if !ok {
		return base.FanCooling, fmt.Errorf("autotune: trace has no fan cooldown phase")
	}
	fanEnd := len(f.trace.Timestamps)
	if doneIdx, ok := f.trace.PhaseStart[trace.PhaseDone]; ok {
		fanEnd = doneIdx
	}

	alwaysFan := func(int) float64 { return 1.0 }
	errFn := func(candidate float64) float64 {
		p := base
		p.FanCooling = candidate
		series, err := simulateSeries(p, f.trace.Timestamps[:fanEnd], f.pwmAt, alwaysFan)
		if err != nil {
			return 0
		}
		errSum := 0.0
		for i := fanStart; i < fanEnd; i++ {
			errSum += series[i] - f.smoothed[i]
		}
		return errSum
	}
	result, _ := Run(0, 1, maxFitIterations, errFn)
	return result, nil
}
