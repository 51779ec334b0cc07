package autotune

import (
	"math"
	"testing"
)

func TestCoolingCurveInterpolatesMonotoneSamples(t *testing.T) {
	c := NewCoolingCurve()
	for temp := 200.0; temp >= 40.0; temp -= 10.0 {
		c.AddPoint(temp, (temp-21.0)*0.01)
	}
	if err := c.Build(); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	got := c.RateAt(105.0)
	want := (105.0 - 21.0) * 0.01
	if math.Abs(got-want) > 0.01 {
		t.Errorf("RateAt(105) = %v, want close to %v", got, want)
	}
}

func TestCoolingCurveClampsOutOfRange(t *testing.T) {
	c := NewCoolingCurve()
	c.AddPoint(40.0, 0.1)
	c.AddPoint(200.0, 2.0)
	if err := c.Build(); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if got := c.RateAt(500.0); got != 2.0 {
		t.Errorf("RateAt(500) = %v, want clamp to 2.0", got)
	}
	if got := c.RateAt(-10.0); got != 0.1 {
		t.Errorf("RateAt(-10) = %v, want clamp to 0.1", got)
	}
}

func TestCoolingCurveRejectsTooFewPoints(t *testing.T) {
	c := NewCoolingCurve()
	c.AddPoint(100.0, 1.0)
	if err := c.Build(); err == nil {
		t.Error("Build() with a single point should fail")
	}
}
