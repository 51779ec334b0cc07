package main

import (
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"hotend/autotune"
	"hotend/config"
	"hotend/thermal"
	"hotend/trace"
)

var (
	calibrateTraceFile string
	calibrateTemp      float64
	calibrateBaseFile  string
	calibrateMaxPower  float64
	calibratePWMDelay  float64
	calibrateOut       string
	calibrateDumpCfg   bool
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Fit model parameters from a recorded trace, or record a dry run against a synthetic plant",
	Run:   runCalibrate,
}

func init() {
	calibrateCmd.Flags().StringVar(&calibrateTraceFile, "trace", "", "path to an existing trace file (spec §6 format); if unset, records a dry run against a synthetic plant")
	calibrateCmd.Flags().Float64Var(&calibrateTemp, "calibrate-temp", 0, "target temperature in Celsius for the heatup/overshoot phases (required)")
	calibrateCmd.Flags().StringVar(&calibrateBaseFile, "base-config", "", "JSON config.Values blob supplying the keys the fit doesn't touch (metal_cells, passes_per_sec, env_temp)")
	calibrateCmd.Flags().Float64Var(&calibrateMaxPower, "max-power", 1.0, "maximum heater PWM duty cycle")
	calibrateCmd.Flags().Float64Var(&calibratePWMDelay, "pwm-delay", 0.0, "heater PWM application latency, in seconds")
	calibrateCmd.Flags().StringVar(&calibrateOut, "out", "", "output config path (default: hotend-calibrate-<uuid>.json)")
	calibrateCmd.Flags().BoolVar(&calibrateDumpCfg, "dump-config", false, "print the recovered config.Values blob to stdout instead of writing a file")
	calibrateCmd.MarkFlagRequired("calibrate-temp")
	rootCmd.AddCommand(calibrateCmd)
}

func runCalibrate(cmd *cobra.Command, args []string) {
	base, err := loadBaseConfig(calibrateBaseFile)
	if err != nil {
		log.Fatalf("hotendctl calibrate: %v", err)
	}

	runID := uuid.New()

	var loaded *trace.Loaded
	if calibrateTraceFile != "" {
		loaded, err = loadTraceFile(calibrateTraceFile)
	} else {
		loaded, err = recordDryRun(base)
	}
	if err != nil {
		log.Fatalf("hotendctl calibrate: %v", err)
	}

	fitter, err := autotune.NewFitter(loaded, calibrateTemp)
	if err != nil {
		log.Fatalf("hotendctl calibrate: fit: %v", err)
	}
	fitted, err := fitter.Run(base)
	if err != nil {
		log.Fatalf("hotendctl calibrate: fit: %v", err)
	}

	offsetBase, offsetFans, degenerate := autotune.SteadyState(fitted, calibrateTemp)
	if degenerate {
		offsetBase, offsetFans = 0, 0
	}
	fitted.SteadyStateOffsetBase = offsetBase
	fitted.SteadyStateOffsetFans = offsetFans

	values := config.FromParams(fitted)
	if calibrateDumpCfg {
		printValues(values)
		return
	}

	out := calibrateOut
	if out == "" {
		out = fmt.Sprintf("hotend-calibrate-%s.json", runID)
	}
	if err := values.Save(out); err != nil {
		log.Fatalf("hotendctl calibrate: %v", err)
	}
	fmt.Printf("wrote recovered config to %s (run %s)\n", out, runID)
}

func loadTraceFile(path string) (*trace.Loaded, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return trace.Read(f)
}

// recordDryRun simulates a calibration run against a synthetic plant built
// from base, for exercising the recorder/fitter pipeline without an
// attached printer. The recorder itself, not autotune.Command, drives the
// run, since the caller still needs the raw samples for the fit step below.
func recordDryRun(base config.Params) (*trace.Loaded, error) {
	plant, err := thermal.New(base)
	if err != nil {
		return nil, fmt.Errorf("synthetic plant: %w", err)
	}

	recorder := trace.New(calibrateTemp, calibrateMaxPower, calibratePWMDelay)

	pwm, fanPower := 0.0, 0.0
	temp := plant.SensorTemp()
	readTime := 0.0
	const dt = 0.833
	const maxTicks = 60000
	for i := 0; i < maxTicks && !recorder.Done(); i++ {
		readTime += dt
		temp = plant.Advance(dt, pwm, temp, fanPower)
		pwm, fanPower = recorder.Update(readTime, temp, calibrateTemp)
	}
	if err := recorder.Finish(); err != nil {
		return nil, fmt.Errorf("dry run: %w", err)
	}

	return &trace.Loaded{
		Timestamps: recorder.Timestamps(),
		RawSamples: recorder.RawSamples(),
		PWMSamples: recorder.PWMSamples(),
		PhaseStart: recorder.PhaseStart(),
	}, nil
}

func loadBaseConfig(path string) (config.Params, error) {
	if path == "" {
		return config.ToParams(config.Values{
			config.KeyHeaterPower:         1.0,
			config.KeyThermalConductivity: 0.15,
			config.KeyBaseCooling:         0.01,
		})
	}
	values, err := config.Load(path)
	if err != nil {
		return config.Params{}, err
	}
	return config.ToParams(values)
}

func printValues(v config.Values) {
	for k, val := range v {
		fmt.Printf("%s = %g\n", k, val)
	}
}
