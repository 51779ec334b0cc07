package config

import "math"

// Key names for the flat configuration blob, matching spec.md §6 exactly.
const (
	KeyHeaterPower           = "model_heater_power"
	KeyMetalCells            = "model_metal_cells"
	KeyPassesPerSec          = "model_passes_per_sec"
	KeyThermalConductivity   = "model_thermal_conductivity"
	KeyBaseCooling           = "model_base_cooling"
	KeyFanCooling            = "model_fan_cooling"
	KeyInitialTemp           = "model_initial_temp"
	KeyEnvTemp               = "model_env_temp"
	KeySteadyStateOffsetBase = "model_steadystate_offset_base"
	KeySteadyStateOffsetFans = "model_steadystate_offset_fans"
)

// Params is the typed, validated view of a Values blob that the thermal
// model and controller are constructed from.
type Params struct {
	HeaterPower           float64
	MetalCells            int64
	PassesPerSec          int64
	ThermalConductivity   float64
	BaseCooling           float64
	FanCooling            float64
	InitialTemp           float64
	EnvTemp               float64
	SteadyStateOffsetBase float64
	SteadyStateOffsetFans float64
}

// ToParams validates every key in v against spec.md §6's bounds table and
// returns the typed Params. The model_fan_cooling bound depends on the
// already-resolved model_base_cooling value, exactly as
// model_based_controller.py's config.getfloat('model_fan_cooling',
// base_cooling, minval=0, maxval=(1-base_cooling)) computes it.
func ToParams(v Values) (Params, error) {
	var p Params
	var err error

	if p.HeaterPower, err = v.Float(KeyHeaterPower, math.NaN(), atLeast(0)); err != nil {
		return Params{}, err
	}
	// atLeast(0) above technically allows 0; the spec requires > 0, checked separately.
	if p.HeaterPower <= 0 {
		return Params{}, errPositive(KeyHeaterPower, p.HeaterPower)
	}
	if p.MetalCells, err = v.Int(KeyMetalCells, 6, atLeast(2)); err != nil {
		return Params{}, err
	}
	if p.PassesPerSec, err = v.Int(KeyPassesPerSec, 3, atLeast(1)); err != nil {
		return Params{}, err
	}
	if p.ThermalConductivity, err = v.Float(KeyThermalConductivity, math.NaN(), between(0, 1)); err != nil {
		return Params{}, err
	}
	if p.BaseCooling, err = v.Float(KeyBaseCooling, math.NaN(), between(0, 1)); err != nil {
		return Params{}, err
	}
	if p.FanCooling, err = v.Float(KeyFanCooling, p.BaseCooling, between(0, 1-p.BaseCooling)); err != nil {
		return Params{}, err
	}
	if p.InitialTemp, err = v.Float(KeyInitialTemp, 21.4, atLeast(0)); err != nil {
		return Params{}, err
	}
	if p.EnvTemp, err = v.Float(KeyEnvTemp, 21.4, atLeast(0)); err != nil {
		return Params{}, err
	}
	if p.SteadyStateOffsetBase, err = v.Float(KeySteadyStateOffsetBase, 0, unbounded()); err != nil {
		return Params{}, err
	}
	if p.SteadyStateOffsetFans, err = v.Float(KeySteadyStateOffsetFans, 0, unbounded()); err != nil {
		return Params{}, err
	}

	return p, nil
}

// FromParams flattens a Params back into a Values blob, suitable for
// persisting via config.Save.
func FromParams(p Params) Values {
	return Values{
		KeyHeaterPower:           p.HeaterPower,
		KeyMetalCells:            float64(p.MetalCells),
		KeyPassesPerSec:          float64(p.PassesPerSec),
		KeyThermalConductivity:   p.ThermalConductivity,
		KeyBaseCooling:           p.BaseCooling,
		KeyFanCooling:            p.FanCooling,
		KeyInitialTemp:           p.InitialTemp,
		KeyEnvTemp:               p.EnvTemp,
		KeySteadyStateOffsetBase: p.SteadyStateOffsetBase,
		KeySteadyStateOffsetFans: p.SteadyStateOffsetFans,
	}
}

func errPositive(key string, v float64) error {
	return &boundsError{key: key, value: v, msg: "must be > 0"}
}

type boundsError struct {
	key   string
	value float64
	msg   string
}

func (e *boundsError) Error() string {
	return "config: " + e.key + " " + e.msg
}

func (e *boundsError) Unwrap() error {
	return ErrOutOfBounds
}
