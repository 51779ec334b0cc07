package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"hotend/config"
	"hotend/controller"
	"hotend/thermal"
)

func TestCollectorExportsExpectedGaugeCount(t *testing.T) {
	p := config.Params{
		HeaterPower:         1.0,
		MetalCells:          6,
		PassesPerSec:        3,
		ThermalConductivity: 0.1,
		BaseCooling:         0.01,
		FanCooling:          0.01,
		InitialTemp:         21.0,
		EnvTemp:             21.0,
	}
	model, err := thermal.New(p)
	require.NoError(t, err)

	c := controller.New(model, nil, nil, 1.0)
	require.NoError(t, c.Update(1.0, 21.0, 100.0))

	collector := NewCollector(c, model)

	if count := testutil.CollectAndCount(collector); count != 4 {
		t.Errorf("CollectAndCount() = %d, want 4", count)
	}
}

func TestCollectorWithoutModelOnlyExportsPWM(t *testing.T) {
	p := config.Params{
		HeaterPower:         1.0,
		MetalCells:          6,
		PassesPerSec:        3,
		ThermalConductivity: 0.1,
		BaseCooling:         0.01,
		FanCooling:          0.01,
		InitialTemp:         21.0,
		EnvTemp:             21.0,
	}
	model, err := thermal.New(p)
	require.NoError(t, err)

	c := controller.New(model, nil, nil, 1.0)
	collector := NewCollector(c, nil)

	if count := testutil.CollectAndCount(collector); count != 1 {
		t.Errorf("CollectAndCount() = %d, want 1 (pwm only)", count)
	}
}
