// Package metrics exposes a running controller's state as Prometheus
// gauges, entirely decoupled from the control loop itself: nothing in
// controller or thermal depends on this package.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"hotend/controller"
)

// Collector implements prometheus.Collector for a hotend controller.
type Collector struct {
	controller *controller.Controller
	model      modelReader

	pwm       *prometheus.Desc
	avgTemp   *prometheus.Desc
	egress    *prometheus.Desc
	sensorTmp *prometheus.Desc
}

// modelReader is the narrow view of thermal.Model the collector needs,
// kept local so this package doesn't have to import thermal directly for a
// handful of read-only gauges.
type modelReader interface {
	AvgMetalTemp() float64
	EgressPerSec() float64
	SensorTemp() float64
}

// NewCollector wraps c (and, if non-nil, its model) for Prometheus
// registration. model may be nil if only the PWM gauge is wanted.
func NewCollector(c *controller.Controller, model modelReader) *Collector {
	return &Collector{
		controller: c,
		model:      model,
		pwm: prometheus.NewDesc(
			"hotend_heater_pwm_ratio", "Current heater PWM duty cycle, in [0, 1].", nil, nil,
		),
		avgTemp: prometheus.NewDesc(
			"hotend_model_avg_metal_temp_celsius", "Thermal model's mean metal cell temperature.", nil, nil,
		),
		egress: prometheus.NewDesc(
			"hotend_model_egress_celsius_per_second", "Mean unmodelled heat loss rate.", nil, nil,
		),
		sensorTmp: prometheus.NewDesc(
			"hotend_model_sensor_temp_celsius", "Thermal model's sensor-cell temperature.", nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.pwm
	ch <- c.avgTemp
	ch <- c.egress
	ch <- c.sensorTmp
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.pwm, prometheus.GaugeValue, c.controller.CurrentPWM())

	if c.model == nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.avgTemp, prometheus.GaugeValue, c.model.AvgMetalTemp())
	ch <- prometheus.MustNewConstMetric(c.egress, prometheus.GaugeValue, c.model.EgressPerSec())
	ch <- prometheus.MustNewConstMetric(c.sensorTmp, prometheus.GaugeValue, c.model.SensorTemp())
}
