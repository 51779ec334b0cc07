// Package controller drives a thermal.Model against live sensor readings,
// deciding each tick's heater PWM duty cycle. It owns no actuators itself;
// it dispatches decisions through the small HeaterActuator and FanStatus
// collaborator interfaces so the host firmware's PWM peripheral and fan
// driver stay out of scope.
package controller

import (
	"errors"
	"fmt"
	"math"

	"hotend/ringbuf"
	"hotend/thermal"
)

// HeaterActuator receives PWM decisions. The timestamp is the read_time the
// decision was computed for, not the time it is applied.
type HeaterActuator interface {
	SetPWM(readTime, pwm float64)
}

// FanStatus reports the part-cooling fan's current duty cycle in [0, 1].
type FanStatus interface {
	Power() float64
}

// ErrDegenerateGradient is returned by steadyStateOffset (and surfaced via
// DegenerateGradient) when the estimated egress gradient implies cooling
// exceeds heating at equilibrium — the offset calculation cannot be trusted.
var ErrDegenerateGradient = errors.New("controller: degenerate steady-state gradient")

// readRingSize is the "short ring of the last 4 read-times" spec.md
// describes, used to compute an average tick length for the per-tick heat
// budget rather than trusting a single noisy dt.
const readRingSize = 4

// busyMargin is the busy predicate's threshold: a smoothed temperature more
// than this many degrees from target is considered still-settling. This
// follows the later, "> 7" convention; see spec.md's open question on the
// two conflicting inequality directions found across source revisions.
const busyMargin = 7.0

// Controller advances one Model per tick and computes the PWM decision for
// it. It is not safe for concurrent use; it is invoked synchronously by the
// host's ~1 Hz temperature callback.
type Controller struct {
	model  *thermal.Model
	heater HeaterActuator
	fan    FanStatus

	maxPower float64

	currentPWM   float64
	lastReadTime float64
	haveRead     bool
	readTimes    *ringbuf.Buffer[float64]
}

// New constructs a Controller for model, dispatching PWM decisions to
// heater and reading fan duty cycle from fan. maxPower bounds the emitted
// PWM (normally 1.0).
func New(model *thermal.Model, heater HeaterActuator, fan FanStatus, maxPower float64) *Controller {
	return &Controller{
		model:     model,
		heater:    heater,
		fan:       fan,
		maxPower:  maxPower,
		readTimes: ringbuf.New(readRingSize, math.NaN()),
	}
}

// CurrentPWM returns the last PWM decision emitted.
func (c *Controller) CurrentPWM() float64 {
	return c.currentPWM
}

// Update implements the per-tick temperature_update operation: it advances
// and corrects the model against a new sensor reading, computes the
// steady-state offset and per-tick heat budget, and emits a PWM decision to
// the heater actuator.
//
// Ordering is fixed: record the sample, advance the model (which internally
// corrects against the measurement), compute PWM, emit PWM. Reordering
// breaks the contract that currentPWM passed to advance is the decision
// that was active during the interval just elapsed.
func (c *Controller) Update(readTime, temp, target float64) error {
	dt := 0.0
	if c.haveRead {
		dt = readTime - c.lastReadTime
	}
	c.readTimes.Push(readTime)
	c.lastReadTime = readTime
	c.haveRead = true

	tickLen := c.tickLen(dt)

	fanPower := 0.0
	if c.fan != nil {
		fanPower = c.fan.Power()
	}
	c.model.Advance(dt, c.currentPWM, temp, fanPower)

	// A degenerate gradient is non-fatal: report it but still drive the
	// heater, falling back to a zero steady-state offset for this tick.
	offset, gradientErr := c.steadyStateOffset(target)

	metalCells := float64(c.model.MetalCells())
	avgT := c.model.AvgMetalTemp()
	egressPerSec := c.model.EgressPerSec()

	degreesNeeded := (target - avgT + offset + egressPerSec) * metalCells
	pwm := clamp(degreesNeeded/(c.model.HeaterPower()*tickLen), 0, c.maxPower)

	c.currentPWM = pwm
	if c.heater != nil {
		c.heater.SetPWM(readTime, pwm)
	}
	return gradientErr
}

// steadyStateOffset computes the extra degrees the controller must target
// so that the sensor cell, not the block average, settles at target. See
// spec.md §4.2 step 3.
func (c *Controller) steadyStateOffset(target float64) (float64, error) {
	estGradient := c.model.EgressGradient()
	if estGradient >= 1 {
		return 0, fmt.Errorf("%w: est_gradient = %v", ErrDegenerateGradient, estGradient)
	}
	raised := (target - c.model.EnvTemp()*estGradient) / (1 - estGradient)
	return raised - target, nil
}

// DegenerateGradient reports whether the current egress estimate would make
// steadyStateOffset degenerate, without needing to run an Update to find
// out. Useful for diagnostics and for the autotuner's steady-state solver.
func (c *Controller) DegenerateGradient() bool {
	return c.model.EgressGradient() >= 1
}

// Busy reports whether smoothedTemp is still considered away from target,
// per spec.md's check_busy predicate (">7°C means still busy").
func Busy(smoothedTemp, target float64) bool {
	return math.Abs(smoothedTemp-target) > busyMargin
}

// tickLen computes the mean of pairwise diffs across the valid entries in
// the read-time ring, skipping pairs that touch a NaN-seeded slot. Until the
// ring holds two genuine read times it falls back to dt (or 1 second).
func (c *Controller) tickLen(dt float64) float64 {
	times := c.readTimes.ToSlice()
	total, count := 0.0, 0
	for i := 1; i < len(times); i++ {
		if math.IsNaN(times[i-1]) || math.IsNaN(times[i]) {
			continue
		}
		total += times[i] - times[i-1]
		count++
	}
	if count == 0 {
		if dt > 0 {
			return dt
		}
		return 1.0
	}
	return total / float64(count)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
