package autotune

import (
	"fmt"
	"math"
	"sort"
)

// CoolingCurve is a monotone cubic Hermite spline mapping a block
// temperature to the cooldown rate observed at that temperature. It is
// built once per fit from the cooldown phase's smoothed samples and then
// queried at arbitrary temperatures while simulating a candidate model, so
// the fitter isn't limited to the integer-degree samples it was built from.
//
// Adapted from the control package's generic interpolated lookup table:
// here the domain vocabulary is baked in (temperature in, rate out) and out
// of range queries clamp to the nearest known rate rather than erroring,
// since a candidate simulation can easily stray a fraction of a degree
// past the recorded cooldown's extremes.
type CoolingCurve struct {
	temps []float64
	rates []float64
	slope []float64
	built bool
}

// NewCoolingCurve creates an empty curve; call AddPoint for each sampled
// temperature before Build.
func NewCoolingCurve() *CoolingCurve {
	return &CoolingCurve{}
}

// AddPoint records one (temperature, rate) sample.
func (c *CoolingCurve) AddPoint(temp, rate float64) {
	c.temps = append(c.temps, temp)
	c.rates = append(c.rates, rate)
}

// Build sorts the recorded points and derives the spline's tangents. It
// must be called once, after all points are added and before RateAt.
func (c *CoolingCurve) Build() error {
	n := len(c.temps)
	if n < 2 {
		return fmt.Errorf("autotune: cooling curve needs at least 2 points, got %d", n)
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return c.temps[idx[i]] < c.temps[idx[j]] })

	temps := make([]float64, n)
	rates := make([]float64, n)
	for i, j := range idx {
		temps[i] = c.temps[j]
		rates[i] = c.rates[j]
	}
	for i := 0; i < n-1; i++ {
		if temps[i] == temps[i+1] {
			return fmt.Errorf("autotune: cooling curve has duplicate temperature %v", temps[i])
		}
	}

	secants := make([]float64, n-1)
	for i := 0; i < n-1; i++ {
		secants[i] = (rates[i+1] - rates[i]) / (temps[i+1] - temps[i])
	}

	slope := make([]float64, n)
	slope[0] = secants[0]
	for i := 1; i < n-1; i++ {
		slope[i] = (secants[i-1] + secants[i]) * 0.5
	}
	slope[n-1] = secants[n-2]

	for i := 0; i < n-1; i++ {
		if secants[i] == 0 {
			slope[i] = 0
			slope[i+1] = 0
			continue
		}
		a := slope[i] / secants[i]
		b := slope[i+1] / secants[i]
		if h := math.Hypot(a, b); h > 3.0 {
			t := 3.0 / h
			slope[i] = t * a * secants[i]
			slope[i+1] = t * b * secants[i]
		}
	}

	c.temps, c.rates, c.slope, c.built = temps, rates, slope, true
	return nil
}

// RateAt returns the interpolated cooling rate at temp, clamping to the
// nearest sampled endpoint if temp falls outside the built curve's range.
func (c *CoolingCurve) RateAt(temp float64) float64 {
	if !c.built {
		return 0
	}
	n := len(c.temps)
	if temp <= c.temps[0] {
		return c.rates[0]
	}
	if temp >= c.temps[n-1] {
		return c.rates[n-1]
	}

	i := 0
	for temp >= c.temps[i+1] && i < n-2 {
		i++
	}
	if temp == c.temps[i] {
		return c.rates[i]
	}

	h := c.temps[i+1] - c.temps[i]
	t := (temp - c.temps[i]) / h
	return (c.rates[i]*(1+2*t)+h*c.slope[i]*t)*(1-t)*(1-t) +
		(c.rates[i+1]*(3-2*t)+h*c.slope[i+1]*(t-1))*t*t
}
