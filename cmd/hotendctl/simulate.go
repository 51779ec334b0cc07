package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"hotend/config"
	"hotend/controller"
	"hotend/thermal"
)

var (
	simulateConfigFile string
	simulateTarget     float64
	simulateTicks      int
	simulateDt         float64
	simulateMaxPower   float64
	simulateFanPower   float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Drive a controller against a synthetic plant and print a trace to stdout",
	Run:   runSimulate,
}

func init() {
	simulateCmd.Flags().StringVar(&simulateConfigFile, "config", "", "path to a config.Values JSON blob (required)")
	simulateCmd.Flags().Float64Var(&simulateTarget, "target", 200.0, "target temperature in Celsius")
	simulateCmd.Flags().IntVar(&simulateTicks, "ticks", 2000, "number of simulated ticks to run")
	simulateCmd.Flags().Float64Var(&simulateDt, "dt", 1.0, "simulated seconds per tick")
	simulateCmd.Flags().Float64Var(&simulateMaxPower, "max-power", 1.0, "maximum heater PWM duty cycle")
	simulateCmd.Flags().Float64Var(&simulateFanPower, "fan-power", 0.0, "constant fan duty cycle applied throughout the run")
	simulateCmd.MarkFlagRequired("config")
	rootCmd.AddCommand(simulateCmd)
}

// plant is a simple independent heat-loss model for sanity-checking a
// controller, in the spirit of the teacher's ThermalSystem: heater input
// minus a loss term proportional to the temperature above ambient, with no
// knowledge of the controller's own internal model.
type plant struct {
	temp      float64
	envTemp   float64
	heatGain  float64
	lossCoeff float64
	fanLoss   float64
	fanPower  float64
	pwm       float64
}

func newPlant(p config.Params, fanPower float64) *plant {
	return &plant{
		temp:      p.InitialTemp,
		envTemp:   p.EnvTemp,
		heatGain:  p.HeaterPower,
		lossCoeff: p.BaseCooling,
		fanLoss:   p.FanCooling,
		fanPower:  fanPower,
	}
}

func (p *plant) SetPWM(readTime, pwm float64) { p.pwm = pwm }
func (p *plant) Power() float64               { return p.fanPower }

func (p *plant) advance(dt float64) float64 {
	heatIn := p.pwm * p.heatGain
	loss := (p.lossCoeff + p.fanPower*p.fanLoss) * (p.temp - p.envTemp)
	p.temp += (heatIn - loss) * dt
	return p.temp
}

func runSimulate(cmd *cobra.Command, args []string) {
	values, err := config.Load(simulateConfigFile)
	if err != nil {
		log.Fatalf("hotendctl simulate: %v", err)
	}
	params, err := config.ToParams(values)
	if err != nil {
		log.Fatalf("hotendctl simulate: %v", err)
	}

	model, err := thermal.New(params)
	if err != nil {
		log.Fatalf("hotendctl simulate: %v", err)
	}

	p := newPlant(params, simulateFanPower)
	ctrl := controller.New(model, p, p, simulateMaxPower)

	fmt.Println("Time\tTarget\tMeasured\tPWM\tFanPower\tBusy")
	fmt.Println("----\t------\t--------\t---\t--------\t----")

	readTime := 0.0
	temp := p.temp
	for i := 0; i < simulateTicks; i++ {
		readTime += simulateDt
		temp = p.advance(simulateDt)

		// A degenerate-gradient error is advisory only (per spec.md §7): the
		// controller already fell back to a zero steady-state offset and
		// still dispatched a PWM decision, so the run continues.
		if err := ctrl.Update(readTime, temp, simulateTarget); err != nil {
			log.Printf("hotendctl simulate: %v", err)
		}

		if i%10 == 0 {
			busy := controller.Busy(temp, simulateTarget)
			fmt.Printf("%.1f\t%.1f\t%.2f\t\t%.3f\t%.2f\t%t\n",
				readTime, simulateTarget, temp, ctrl.CurrentPWM(), p.fanPower, busy)
		}
	}

	fmt.Println()
	fmt.Printf("Final temperature: %.2f (target %.1f, error %.2f)\n",
		temp, simulateTarget, simulateTarget-temp)
}
