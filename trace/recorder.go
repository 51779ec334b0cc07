// Package trace drives a heater through the scripted heat/cool sequence the
// autotuner needs and records the resulting samples. It is installed as the
// heater's control strategy for the duration of the test, in place of a
// Controller.
package trace

import (
	"context"
	"errors"
	"fmt"

	"github.com/qmuntal/stateless"
)

// Phase names, in the fixed order the recorder drives the heater through.
const (
	PhaseHeatup       = "heatup"
	PhaseOvershoot    = "overshoot"
	PhaseCooldown     = "cooldown"
	PhaseHeatupFan    = "heatup_fan"
	PhaseOvershootFan = "overshoot_fan"
	PhaseCooldownFan  = "cooldown_fan"
	PhaseDone         = "done"
)

const (
	triggerTargetReached   = "target_reached"
	triggerCooling         = "cooling"
	triggerBelowCooldown   = "below_cooldown_target"
	triggerFanTargetReach  = "fan_target_reached"
	triggerFanCooling      = "fan_cooling"
	triggerBelowCooldownFn = "below_cooldown_target_fan"
)

// cooldownMargin is the number of degrees above env_temp that defines the
// cooldown phase's exit target.
const cooldownMargin = 15.0

// ErrPhaseIncomplete is returned by Finish when the recording ended before
// every phase was reached — an autotune phase failure per spec.md §7.
var ErrPhaseIncomplete = errors.New("trace: recording ended before all phases were reached")

// PWMSample is one entry of the recorded PWM-change log.
type PWMSample struct {
	Time  float64
	Value float64
}

// Recorder drives the phase state machine described in spec.md §4.3 and
// accumulates the parallel sample sequences the fitter consumes.
type Recorder struct {
	calibrateTemp float64
	cooldownTemp  float64
	maxPower      float64
	pwmDelay      float64

	machine  *stateless.StateMachine
	envTemp  float64
	haveEnv  bool
	lastTemp float64

	timestamps      []float64
	rawSamples      []float64
	smoothedSamples []float64
	pwmSamples      []PWMSample
	phaseStart      map[string]int

	lastPWM float64
}

// New creates a Recorder that will drive the heater toward calibrateTemp
// and back down through both the unassisted and fan-assisted phases.
// pwmDelay accounts for the heater's PWM application latency when
// timestamping pwm_samples, matching the source's heater.get_pwm_delay().
func New(calibrateTemp, maxPower, pwmDelay float64) *Recorder {
	r := &Recorder{
		calibrateTemp: calibrateTemp,
		maxPower:      maxPower,
		pwmDelay:      pwmDelay,
		phaseStart:    make(map[string]int),
		lastPWM:       -1, // force the first pwm sample to be recorded
	}
	r.machine = stateless.NewStateMachine(PhaseHeatup)

	r.machine.Configure(PhaseHeatup).Permit(triggerTargetReached, PhaseOvershoot)
	r.machine.Configure(PhaseOvershoot).Permit(triggerCooling, PhaseCooldown)
	r.machine.Configure(PhaseCooldown).Permit(triggerBelowCooldown, PhaseHeatupFan)
	r.machine.Configure(PhaseHeatupFan).Permit(triggerFanTargetReach, PhaseOvershootFan)
	r.machine.Configure(PhaseOvershootFan).Permit(triggerFanCooling, PhaseCooldownFan)
	r.machine.Configure(PhaseCooldownFan).Permit(triggerBelowCooldownFn, PhaseDone)
	r.machine.Configure(PhaseDone)

	return r
}

// Phase returns the current phase name.
func (r *Recorder) Phase() string {
	state, _ := r.machine.State(context.Background())
	return fmt.Sprintf("%v", state)
}

// Done reports whether the recording has reached its terminal phase.
func (r *Recorder) Done() bool {
	return r.Phase() == PhaseDone
}

// Update implements the recorder's temperature_update operation: it records
// the sample, advances the phase state machine (checking transitions in
// reverse order so a tick that crosses two thresholds at once cannot skip a
// phase), and returns the PWM and fan power to apply.
func (r *Recorder) Update(readTime, temp, targetTemp float64) (pwm, fanPower float64) {
	lastTemp := temp
	if len(r.timestamps) > 0 {
		lastTemp = r.lastTemp
	} else {
		r.envTemp = temp
		r.haveEnv = true
	}
	r.timestamps = append(r.timestamps, readTime)
	r.rawSamples = append(r.rawSamples, temp)
	r.lastTemp = temp

	ctx := context.Background()
	phase := r.Phase()

	// Reverse order: later phases are checked first so a tick crossing two
	// thresholds at once advances only as far as the data actually permits.
	if phase == PhaseCooldownFan && temp < r.cooldownTemp {
		r.fire(ctx, triggerBelowCooldownFn)
		phase = r.Phase()
	}
	if phase == PhaseOvershootFan && temp < lastTemp {
		r.cooldownTemp = r.envTemp + cooldownMargin
		r.fire(ctx, triggerFanCooling)
		phase = r.Phase()
	}
	if phase == PhaseHeatupFan && temp >= r.calibrateTemp {
		r.fire(ctx, triggerFanTargetReach)
		phase = r.Phase()
	}
	if phase == PhaseCooldown && temp < r.cooldownTemp {
		r.fire(ctx, triggerBelowCooldown)
		phase = r.Phase()
	}
	if phase == PhaseOvershoot && temp < lastTemp {
		r.cooldownTemp = r.envTemp + cooldownMargin
		r.fire(ctx, triggerCooling)
		phase = r.Phase()
	}
	if phase == PhaseHeatup && temp >= targetTemp {
		r.fire(ctx, triggerTargetReached)
		phase = r.Phase()
	}

	if _, seen := r.phaseStart[phase]; !seen {
		r.phaseStart[phase] = len(r.timestamps) - 1
	}

	switch phase {
	case PhaseHeatup, PhaseHeatupFan:
		pwm = r.maxPower
	default:
		pwm = 0
	}
	if phase == PhaseHeatupFan || phase == PhaseOvershootFan || phase == PhaseCooldownFan {
		fanPower = 1.0
	}

	r.recordPWM(readTime, pwm)
	return pwm, fanPower
}

func (r *Recorder) fire(ctx context.Context, trigger string) {
	if err := r.machine.FireCtx(ctx, trigger); err != nil {
		// Guard conditions above only fire a trigger when its state allows
		// it, so a transition error here means the phase table and the
		// machine configuration have drifted apart.
		panic(fmt.Sprintf("trace: unreachable transition failure: %v", err))
	}
}

func (r *Recorder) recordPWM(readTime, value float64) {
	if value == r.lastPWM {
		return
	}
	r.pwmSamples = append(r.pwmSamples, PWMSample{Time: readTime + r.pwmDelay, Value: value})
	r.lastPWM = value
}

// Finish validates that every phase was reached and returns
// ErrPhaseIncomplete otherwise.
func (r *Recorder) Finish() error {
	for _, phase := range []string{
		PhaseHeatup, PhaseOvershoot, PhaseCooldown,
		PhaseHeatupFan, PhaseOvershootFan, PhaseCooldownFan, PhaseDone,
	} {
		if _, ok := r.phaseStart[phase]; !ok {
			return fmt.Errorf("%w: missing %s", ErrPhaseIncomplete, phase)
		}
	}
	return nil
}

// EnvTemp returns the ambient temperature recorded at the first sample.
func (r *Recorder) EnvTemp() float64 {
	return r.envTemp
}

// Timestamps returns the recorded sample times.
func (r *Recorder) Timestamps() []float64 {
	return r.timestamps
}

// RawSamples returns the recorded raw temperature samples.
func (r *Recorder) RawSamples() []float64 {
	return r.rawSamples
}

// SmoothedSamples returns the smoothed samples installed by
// SetSmoothedSamples, or nil if it has not been called.
func (r *Recorder) SmoothedSamples() []float64 {
	return r.smoothedSamples
}

// SetSmoothedSamples installs the smoothing package's output. It must have
// the same length as Timestamps.
func (r *Recorder) SetSmoothedSamples(smoothed []float64) error {
	if len(smoothed) != len(r.timestamps) {
		return fmt.Errorf("trace: smoothed length %d != sample length %d", len(smoothed), len(r.timestamps))
	}
	r.smoothedSamples = smoothed
	return nil
}

// PWMSamples returns the recorded PWM-change log.
func (r *Recorder) PWMSamples() []PWMSample {
	return r.pwmSamples
}

// PhaseStart returns the sample index at which each phase was first
// entered.
func (r *Recorder) PhaseStart() map[string]int {
	return r.phaseStart
}

// TempAt returns the (raw) temperature at a given time via binary search
// plus linear interpolation between the bracketing samples — the Go
// equivalent of the source's Trace.temp_at.
func (r *Recorder) TempAt(time float64) float64 {
	return interpolate(r.timestamps, r.rawSamples, time)
}

// SmoothedTempAt is TempAt over the smoothed sample sequence.
func (r *Recorder) SmoothedTempAt(time float64) float64 {
	return interpolate(r.timestamps, r.smoothedSamples, time)
}

func interpolate(times, values []float64, at float64) float64 {
	if len(times) == 0 {
		return 0
	}
	lower := findBracket(times, at)
	if times[lower] == at || lower == len(times)-1 {
		return values[lower]
	}
	aTime, aVal := times[lower], values[lower]
	bTime, bVal := times[lower+1], values[lower+1]
	alpha := (at - aTime) / (bTime - aTime)
	return aVal + alpha*(bVal-aVal)
}

// findBracket returns the index of the last sample whose time is <= at,
// via binary search, clamped to the valid range.
func findBracket(times []float64, at float64) int {
	lo, hi := 0, len(times)-1
	if at <= times[lo] {
		return lo
	}
	if at >= times[hi] {
		return hi
	}
	for hi-lo > 1 {
		mid := lo + (hi-lo)/2
		if times[mid] <= at {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo
}
