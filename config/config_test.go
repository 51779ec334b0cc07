package config

import (
	"errors"
	"testing"
)

func validValues() Values {
	return Values{
		KeyHeaterPower:         1.68,
		KeyThermalConductivity: 0.15,
		KeyBaseCooling:         0.0094,
	}
}

func TestToParamsDefaults(t *testing.T) {
	p, err := ToParams(validValues())
	if err != nil {
		t.Fatalf("ToParams() error = %v", err)
	}
	if p.MetalCells != 6 {
		t.Errorf("MetalCells = %d, want 6 (default)", p.MetalCells)
	}
	if p.PassesPerSec != 3 {
		t.Errorf("PassesPerSec = %d, want 3 (default)", p.PassesPerSec)
	}
	if p.FanCooling != p.BaseCooling {
		t.Errorf("FanCooling = %v, want default = BaseCooling %v", p.FanCooling, p.BaseCooling)
	}
	if p.InitialTemp != 21.4 || p.EnvTemp != 21.4 {
		t.Errorf("InitialTemp/EnvTemp defaults = %v/%v, want 21.4/21.4", p.InitialTemp, p.EnvTemp)
	}
}

func TestToParamsMissingRequiredKey(t *testing.T) {
	v := validValues()
	delete(v, KeyHeaterPower)

	_, err := ToParams(v)
	if !errors.Is(err, ErrMissingKey) {
		t.Errorf("ToParams() error = %v, want ErrMissingKey", err)
	}
}

func TestToParamsRejectsNonPositiveHeaterPower(t *testing.T) {
	v := validValues()
	v[KeyHeaterPower] = 0

	if _, err := ToParams(v); err == nil {
		t.Error("ToParams() with heater_power=0 should be rejected")
	}
}

func TestToParamsRejectsOutOfRangeConductivity(t *testing.T) {
	v := validValues()
	v[KeyThermalConductivity] = 1.5

	_, err := ToParams(v)
	if !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("ToParams() error = %v, want ErrOutOfBounds", err)
	}
}

func TestFanCoolingBoundDependsOnBaseCooling(t *testing.T) {
	v := validValues()
	v[KeyBaseCooling] = 0.9
	v[KeyFanCooling] = 0.2 // 0.9 + 0.2 > 1, should be rejected

	_, err := ToParams(v)
	if !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("ToParams() error = %v, want ErrOutOfBounds for fan_cooling exceeding 1-base_cooling", err)
	}
}

func TestRoundTrip(t *testing.T) {
	p1, err := ToParams(validValues())
	if err != nil {
		t.Fatalf("ToParams() error = %v", err)
	}

	v := FromParams(p1)
	p2, err := ToParams(v)
	if err != nil {
		t.Fatalf("ToParams(FromParams(p1)) error = %v", err)
	}

	if p1 != p2 {
		t.Errorf("round-trip mismatch: %+v != %+v", p1, p2)
	}
}
