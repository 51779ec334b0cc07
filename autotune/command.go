package autotune

import (
	"hotend/config"
	"hotend/trace"
)

// HeaterActuator receives PWM decisions during the recording phase.
type HeaterActuator interface {
	SetPWM(readTime, pwm float64)
}

// FanActuator receives fan duty-cycle decisions during the recording
// phase.
type FanActuator interface {
	SetPower(power float64)
}

// Command is the host-agnostic equivalent of the MODEL_CALIBRATE operation:
// install it as the heater's control strategy for the duration of a
// calibration run, feed it every sensor reading via Update, and once Done
// reports true call Finish to run the fitting phase and recover the
// configuration blob.
type Command struct {
	recorder      *trace.Recorder
	heater        HeaterActuator
	fan           FanActuator
	calibrateTemp float64
	base          config.Params
}

// NewCommand prepares a calibration run targeting calibrateTemp.
// pwmDelay is the heater's PWM application latency (used only for
// timestamping the recorded pwm_samples); base carries the configuration
// values the fit doesn't touch (metal_cells, passes_per_sec, env_temp).
func NewCommand(heater HeaterActuator, fan FanActuator, calibrateTemp, maxPower, pwmDelay float64, base config.Params) *Command {
	return &Command{
		recorder:      trace.New(calibrateTemp, maxPower, pwmDelay),
		heater:        heater,
		fan:           fan,
		calibrateTemp: calibrateTemp,
		base:          base,
	}
}

// Update feeds one sensor reading to the recorder and dispatches the
// resulting PWM/fan decision to the collaborators.
func (c *Command) Update(readTime, temp float64) {
	pwm, fanPower := c.recorder.Update(readTime, temp, c.calibrateTemp)
	if c.heater != nil {
		c.heater.SetPWM(readTime, pwm)
	}
	if c.fan != nil {
		c.fan.SetPower(fanPower)
	}
}

// Done reports whether the recording phase has reached its terminal phase.
func (c *Command) Done() bool {
	return c.recorder.Done()
}

// Phase returns the recorder's current phase, for progress reporting.
func (c *Command) Phase() string {
	return c.recorder.Phase()
}

// Finish runs the fitting phase and steady-state solve over the completed
// recording and returns the recovered configuration. It returns an error
// if the recording never reached every phase — an autotune phase failure —
// rather than emitting a bogus config.
func (c *Command) Finish() (config.Params, error) {
	if err := c.recorder.Finish(); err != nil {
		return config.Params{}, err
	}

	loaded := &trace.Loaded{
		Timestamps: c.recorder.Timestamps(),
		RawSamples: c.recorder.RawSamples(),
		PWMSamples: c.recorder.PWMSamples(),
		PhaseStart: c.recorder.PhaseStart(),
	}

	fitter, err := NewFitter(loaded, c.calibrateTemp)
	if err != nil {
		return config.Params{}, err
	}

	fitted, err := fitter.Run(c.base)
	if err != nil {
		return config.Params{}, err
	}

	offsetBase, offsetFans, degenerate := SteadyState(fitted, c.calibrateTemp)
	if degenerate {
		offsetBase, offsetFans = 0, 0
	}
	fitted.SteadyStateOffsetBase = offsetBase
	fitted.SteadyStateOffsetFans = offsetFans

	return fitted, nil
}
