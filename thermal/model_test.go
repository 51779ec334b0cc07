package thermal

import (
	"math"
	"testing"

	"hotend/config"
)

func paramsFor(t *testing.T, heaterPower, conductivity, baseCooling, envTemp float64, metalCells int64) config.Params {
	t.Helper()
	return config.Params{
		HeaterPower:         heaterPower,
		MetalCells:          metalCells,
		PassesPerSec:        3,
		ThermalConductivity: conductivity,
		BaseCooling:         baseCooling,
		FanCooling:          baseCooling,
		InitialTemp:         envTemp,
		EnvTemp:             envTemp,
	}
}

// simulate advances the model for n ticks of dt seconds via Predict, the
// correction-free open-loop path, so the sensor correction never perturbs
// the run. This isolates the pure integration behaviour the concrete
// scenarios in spec.md §8 describe.
func simulate(m *Model, dt, pwm, fanPower float64, n int) {
	for i := 0; i < n; i++ {
		m.Predict(dt, pwm, fanPower)
	}
}

func TestZeroInputHoldsAmbient(t *testing.T) {
	p := paramsFor(t, 1.0, 0.1, 0.01, 21.0, 6)
	m, err := New(p)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	simulate(m, 1.0, 0.0, 0.0, 100)

	for i, c := range m.Cells() {
		if math.Abs(c-21.0) > 1e-9 {
			t.Errorf("cell[%d] = %v after 100 zero-input ticks, want ~21.0", i, c)
		}
	}
}

func TestPureHeatingLinearRamp(t *testing.T) {
	p := paramsFor(t, 1.0, 1.0, 0.0, 21.0, 6)
	m, err := New(p)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	startAvg := m.AvgMetalTemp()
	simulate(m, 1.0, 1.0, 0.0, 60)
	endAvg := m.AvgMetalTemp()

	gotSlope := (endAvg - startAvg) / 60.0
	wantSlope := 1.0 / 6.0 // heater_power / (N-1)

	if math.Abs(gotSlope-wantSlope) > 0.01 {
		t.Errorf("avg metal temp slope = %v, want ~%v", gotSlope, wantSlope)
	}
}

func TestAmbientCellClampedAfterAdvance(t *testing.T) {
	p := paramsFor(t, 2.0, 0.2, 0.05, 21.0, 6)
	m, err := New(p)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	simulate(m, 0.833, 0.5, 0.0, 20)

	cells := m.Cells()
	last := cells[len(cells)-1]
	if last != m.EnvTemp() {
		t.Errorf("cells[N-1] = %v, envTemp = %v, want equal", last, m.EnvTemp())
	}
}

func TestEnvTempNonIncreasing(t *testing.T) {
	p := paramsFor(t, 1.0, 0.1, 0.01, 21.0, 6)
	m, err := New(p)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	readings := []float64{21.0, 20.0, 19.5, 25.0, 19.0, 30.0}
	prevEnv := m.EnvTemp()
	for _, r := range readings {
		m.Advance(1.0, 0.5, r, 0.0)
		env := m.EnvTemp()
		if env > prevEnv {
			t.Errorf("envTemp rose from %v to %v after measurement %v", prevEnv, env, r)
		}
		prevEnv = env
	}
	if m.EnvTemp() != 19.0 {
		t.Errorf("final envTemp = %v, want 19.0 (minimum reading)", m.EnvTemp())
	}
}

func TestMeanNeverExceedsHeatBudget(t *testing.T) {
	p := paramsFor(t, 2.0, 0.1, 0.02, 21.0, 6)
	m, err := New(p)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for pwm := 0.0; pwm <= 1.0; pwm += 0.25 {
		before := m.AvgMetalTemp()
		temp := m.Cells()[m.SensorCell()]
		after := m.Advance(1.0, pwm, temp, 0.0)
		_ = after
		bound := before + 1.0*pwm*m.HeaterPower()
		if m.AvgMetalTemp() > bound+1e-9 {
			t.Errorf("avg metal temp %v exceeds heat budget bound %v for pwm=%v", m.AvgMetalTemp(), bound, pwm)
		}
	}
}

func TestNewRejectsTooFewCells(t *testing.T) {
	p := paramsFor(t, 1.0, 0.1, 0.01, 21.0, 1)
	if _, err := New(p); err == nil {
		t.Error("New() with metal_cells=1 should fail")
	}
}
