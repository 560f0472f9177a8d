package roadquality

import (
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/roadsense-data/surface.report/internal/config"
)

// Calibrator establishes the accelerometer baseline, the detection
// threshold, and the environmental compensation factors. Calibration is
// all-or-nothing: a failed pass leaves the previous state untouched, and
// an uncalibrated analyzer is a legitimate steady state, not an error.
type Calibrator struct {
	cfg *config.TuningConfig

	mu    sync.Mutex
	state CalibrationState
}

// NewCalibrator returns an uncalibrated Calibrator. Factors start at 1.0
// so downstream consumers can apply them unconditionally.
func NewCalibrator(cfg *config.TuningConfig) *Calibrator {
	return &Calibrator{
		cfg: cfg,
		state: CalibrationState{
			TemperatureFactor: 1.0,
			PressureFactor:    1.0,
		},
	}
}

// State returns a copy of the current calibration state.
func (c *Calibrator) State() CalibrationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Calibrate recomputes baseline and threshold from recent samples and,
// when environment readings are present, the compensation factors.
// Returns false without touching state when there are too few samples.
// Recalibration always replaces the whole state, never merges.
func (c *Calibrator) Calibrate(samples []AccelSample, env EnvironmentReading) bool {
	minSamples := c.cfg.GetMinCalibrationSamples()
	if len(samples) < minSamples {
		return false
	}

	// Calibrate on the most recent window only.
	window := samples
	if len(window) > minSamples*2 {
		window = window[len(window)-minSamples*2:]
	}
	vals := make([]float64, len(window))
	for i, s := range window {
		vals[i] = float64(s)
	}

	baseline := stat.Mean(vals, nil)
	stdDev := stat.StdDev(vals, nil)

	next := CalibrationState{
		Baseline:          baseline,
		Threshold:         max(c.cfg.GetMinThresholdG(), c.cfg.GetThresholdMultiplier()*stdDev),
		TemperatureFactor: 1.0,
		PressureFactor:    1.0,
		Calibrated:        true,
	}

	if env.TemperatureC != nil {
		diff := *env.TemperatureC - c.cfg.GetReferenceTemperatureC()
		next.TemperatureFactor = 1.0 + diff*c.cfg.GetTemperatureCoefficient()
	}
	if env.PressureHPa != nil {
		diff := *env.PressureHPa - c.cfg.GetReferencePressureHPa()
		next.PressureFactor = 1.0 + diff*c.cfg.GetPressureCoefficient()
	}

	c.mu.Lock()
	c.state = next
	c.mu.Unlock()

	if c.cfg.GetDebug() {
		Logf("calibrated: baseline=%.3fg threshold=%.3fg temp_factor=%.3f pressure_factor=%.3f",
			next.Baseline, next.Threshold, next.TemperatureFactor, next.PressureFactor)
	}
	return true
}
