package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for the analysis engine.
// Fields omitted from the JSON file retain their defaults, so partial
// configs are safe. Pointer fields distinguish "absent" from zero.
type TuningConfig struct {
	// Calibration params
	MinCalibrationSamples  *int     `json:"min_calibration_samples,omitempty"`
	ThresholdMultiplier    *float64 `json:"threshold_multiplier,omitempty"`
	MinThresholdG          *float64 `json:"min_threshold_g,omitempty"`
	ReferenceTemperatureC  *float64 `json:"reference_temperature_c,omitempty"`
	ReferencePressureHPa   *float64 `json:"reference_pressure_hpa,omitempty"`
	TemperatureCoefficient *float64 `json:"temperature_coefficient,omitempty"`
	PressureCoefficient    *float64 `json:"pressure_coefficient,omitempty"`

	// Accelerometer event detector params
	MinAccelEventMagnitudeG *float64 `json:"min_accel_event_magnitude_g,omitempty"`
	MinEventSeverity        *int     `json:"min_event_severity,omitempty"`
	IsolationSpacing        *int     `json:"isolation_spacing,omitempty"`
	DetectionWindow         *int     `json:"detection_window,omitempty"`
	AccelQualityWindow      *int     `json:"accel_quality_window,omitempty"`

	// Range-scan scorer params
	ScanConeMinDeg          *float64 `json:"scan_cone_min_deg,omitempty"`
	ScanConeMaxDeg          *float64 `json:"scan_cone_max_deg,omitempty"`
	MinScanPoints           *int     `json:"min_scan_points,omitempty"`
	ScanGate                *string  `json:"scan_gate,omitempty"` // duration string like "100ms"
	MinScanEventMagnitudeMM *float64 `json:"min_scan_event_magnitude_mm,omitempty"`

	// Report tool cone; presentation uses its own bounds, independent of
	// the scoring cone.
	ReportConeMinDeg *float64 `json:"report_cone_min_deg,omitempty"`
	ReportConeMaxDeg *float64 `json:"report_cone_max_deg,omitempty"`

	// Spectral classifier params
	SpectralGate           *string  `json:"spectral_gate,omitempty"` // duration string like "500ms"
	SpectralWindowSize     *int     `json:"spectral_window_size,omitempty"`
	MinSpectralSamples     *int     `json:"min_spectral_samples,omitempty"`
	SampleRateHz           *float64 `json:"sample_rate_hz,omitempty"`
	LowBandMaxHz           *float64 `json:"low_band_max_hz,omitempty"`
	MidBandMaxHz           *float64 `json:"mid_band_max_hz,omitempty"`
	PeakRelativeHeight     *float64 `json:"peak_relative_height,omitempty"`
	TextureAdjustmentLimit *float64 `json:"texture_adjustment_limit,omitempty"`

	// Fusion params
	ScanWeight               *float64 `json:"scan_weight,omitempty"`
	AccelWeight              *float64 `json:"accel_weight,omitempty"`
	AlphaMin                 *float64 `json:"alpha_min,omitempty"`
	AlphaMax                 *float64 `json:"alpha_max,omitempty"`
	AlphaChangeScale         *float64 `json:"alpha_change_scale,omitempty"`
	CombinedHistorySize      *int     `json:"combined_history_size,omitempty"`
	ExcellentThreshold       *float64 `json:"excellent_threshold,omitempty"`
	GoodThreshold            *float64 `json:"good_threshold,omitempty"`
	FairThreshold            *float64 `json:"fair_threshold,omitempty"`
	PoorThreshold            *float64 `json:"poor_threshold,omitempty"`
	EventConfidenceThreshold *float64 `json:"event_confidence_threshold,omitempty"`
	EventRetention           *string  `json:"event_retention,omitempty"` // duration string like "1h"

	// Buffer params
	AccelBufferCapacity *int `json:"accel_buffer_capacity,omitempty"`

	// Debug enables verbose per-tick logging.
	Debug *bool `json:"debug,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from a defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file is
// validated to ensure it has a .json extension and is under the max file
// size.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are coherent. This is the
// only failure class allowed to abort initialization; everything past
// construction degrades instead of erroring.
func (c *TuningConfig) Validate() error {
	if c.MinCalibrationSamples != nil && *c.MinCalibrationSamples < 2 {
		return fmt.Errorf("min_calibration_samples must be at least 2, got %d", *c.MinCalibrationSamples)
	}
	if c.ThresholdMultiplier != nil && *c.ThresholdMultiplier <= 0 {
		return fmt.Errorf("threshold_multiplier must be positive, got %f", *c.ThresholdMultiplier)
	}
	if c.MinThresholdG != nil && *c.MinThresholdG <= 0 {
		return fmt.Errorf("min_threshold_g must be positive, got %f", *c.MinThresholdG)
	}

	if c.GetScanConeMinDeg() >= c.GetScanConeMaxDeg() {
		return fmt.Errorf("scan cone is inverted: [%f, %f]", c.GetScanConeMinDeg(), c.GetScanConeMaxDeg())
	}
	if c.GetReportConeMinDeg() >= c.GetReportConeMaxDeg() {
		return fmt.Errorf("report cone is inverted: [%f, %f]", c.GetReportConeMinDeg(), c.GetReportConeMaxDeg())
	}
	if c.MinScanPoints != nil && *c.MinScanPoints < 3 {
		return fmt.Errorf("min_scan_points must be at least 3 for a quadratic fit, got %d", *c.MinScanPoints)
	}

	if c.GetScanWeight() < 0 || c.GetAccelWeight() < 0 {
		return fmt.Errorf("fusion weights must be non-negative: scan=%f accel=%f", c.GetScanWeight(), c.GetAccelWeight())
	}
	if c.GetScanWeight()+c.GetAccelWeight() <= 0 {
		return fmt.Errorf("fusion weights must not both be zero")
	}

	amin, amax := c.GetAlphaMin(), c.GetAlphaMax()
	if amin <= 0 || amax > 1 || amin >= amax {
		return fmt.Errorf("smoothing alpha range must satisfy 0 < min < max <= 1, got [%f, %f]", amin, amax)
	}

	e, g, f, p := c.GetExcellentThreshold(), c.GetGoodThreshold(), c.GetFairThreshold(), c.GetPoorThreshold()
	if !(e > g && g > f && f > p && p > 0 && e <= 100) {
		return fmt.Errorf("classification breakpoints must be strictly descending within (0,100]: %f/%f/%f/%f", e, g, f, p)
	}

	low, mid := c.GetLowBandMaxHz(), c.GetMidBandMaxHz()
	if low <= 0 || low >= mid {
		return fmt.Errorf("texture band edges must satisfy 0 < low < mid, got %f/%f", low, mid)
	}
	if c.PeakRelativeHeight != nil && (*c.PeakRelativeHeight <= 0 || *c.PeakRelativeHeight >= 1) {
		return fmt.Errorf("peak_relative_height must be in (0,1), got %f", *c.PeakRelativeHeight)
	}
	if c.SampleRateHz != nil && *c.SampleRateHz <= 0 {
		return fmt.Errorf("sample_rate_hz must be positive, got %f", *c.SampleRateHz)
	}

	if c.EventConfidenceThreshold != nil && (*c.EventConfidenceThreshold < 0 || *c.EventConfidenceThreshold > 1) {
		return fmt.Errorf("event_confidence_threshold must be in [0,1], got %f", *c.EventConfidenceThreshold)
	}
	if c.MinEventSeverity != nil && (*c.MinEventSeverity < 1 || *c.MinEventSeverity > 10) {
		return fmt.Errorf("min_event_severity must be in [1,10], got %d", *c.MinEventSeverity)
	}

	for name, v := range map[string]*string{
		"scan_gate":       c.ScanGate,
		"spectral_gate":   c.SpectralGate,
		"event_retention": c.EventRetention,
	} {
		if v != nil && *v != "" {
			if _, err := time.ParseDuration(*v); err != nil {
				return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
			}
		}
	}

	return nil
}

// GetMinCalibrationSamples returns the min_calibration_samples value or the default.
func (c *TuningConfig) GetMinCalibrationSamples() int {
	if c.MinCalibrationSamples == nil {
		return 20
	}
	return *c.MinCalibrationSamples
}

// GetThresholdMultiplier returns the threshold_multiplier value or the default.
func (c *TuningConfig) GetThresholdMultiplier() float64 {
	if c.ThresholdMultiplier == nil {
		return 2.5
	}
	return *c.ThresholdMultiplier
}

// GetMinThresholdG returns the min_threshold_g value or the default.
func (c *TuningConfig) GetMinThresholdG() float64 {
	if c.MinThresholdG == nil {
		return 0.3
	}
	return *c.MinThresholdG
}

// GetReferenceTemperatureC returns the reference_temperature_c value or the default.
func (c *TuningConfig) GetReferenceTemperatureC() float64 {
	if c.ReferenceTemperatureC == nil {
		return 20.0
	}
	return *c.ReferenceTemperatureC
}

// GetReferencePressureHPa returns the reference_pressure_hpa value or the default.
func (c *TuningConfig) GetReferencePressureHPa() float64 {
	if c.ReferencePressureHPa == nil {
		return 1013.25
	}
	return *c.ReferencePressureHPa
}

// GetTemperatureCoefficient returns the temperature_coefficient value or the default.
func (c *TuningConfig) GetTemperatureCoefficient() float64 {
	if c.TemperatureCoefficient == nil {
		return 0.005
	}
	return *c.TemperatureCoefficient
}

// GetPressureCoefficient returns the pressure_coefficient value or the default.
func (c *TuningConfig) GetPressureCoefficient() float64 {
	if c.PressureCoefficient == nil {
		return 0.0001
	}
	return *c.PressureCoefficient
}

// GetMinAccelEventMagnitudeG returns the min_accel_event_magnitude_g value or the default.
func (c *TuningConfig) GetMinAccelEventMagnitudeG() float64 {
	if c.MinAccelEventMagnitudeG == nil {
		return 0.5
	}
	return *c.MinAccelEventMagnitudeG
}

// GetMinEventSeverity returns the min_event_severity value or the default.
func (c *TuningConfig) GetMinEventSeverity() int {
	if c.MinEventSeverity == nil {
		return 3
	}
	return *c.MinEventSeverity
}

// GetIsolationSpacing returns the isolation_spacing value or the default.
func (c *TuningConfig) GetIsolationSpacing() int {
	if c.IsolationSpacing == nil {
		return 2
	}
	return *c.IsolationSpacing
}

// GetDetectionWindow returns the detection_window value or the default.
func (c *TuningConfig) GetDetectionWindow() int {
	if c.DetectionWindow == nil {
		return 20
	}
	return *c.DetectionWindow
}

// GetAccelQualityWindow returns the accel_quality_window value or the default.
func (c *TuningConfig) GetAccelQualityWindow() int {
	if c.AccelQualityWindow == nil {
		return 50
	}
	return *c.AccelQualityWindow
}

// GetScanConeMinDeg returns the scan_cone_min_deg value or the default.
func (c *TuningConfig) GetScanConeMinDeg() float64 {
	if c.ScanConeMinDeg == nil {
		return -25.0
	}
	return *c.ScanConeMinDeg
}

// GetScanConeMaxDeg returns the scan_cone_max_deg value or the default.
func (c *TuningConfig) GetScanConeMaxDeg() float64 {
	if c.ScanConeMaxDeg == nil {
		return 35.0
	}
	return *c.ScanConeMaxDeg
}

// GetMinScanPoints returns the min_scan_points value or the default.
func (c *TuningConfig) GetMinScanPoints() int {
	if c.MinScanPoints == nil {
		return 8
	}
	return *c.MinScanPoints
}

// GetScanGate parses and returns the scan recomputation gate interval.
func (c *TuningConfig) GetScanGate() time.Duration {
	if c.ScanGate == nil || *c.ScanGate == "" {
		return 100 * time.Millisecond
	}
	d, err := time.ParseDuration(*c.ScanGate)
	if err != nil {
		return 100 * time.Millisecond
	}
	return d
}

// GetMinScanEventMagnitudeMM returns the min_scan_event_magnitude_mm value or the default.
func (c *TuningConfig) GetMinScanEventMagnitudeMM() float64 {
	if c.MinScanEventMagnitudeMM == nil {
		return 5.0
	}
	return *c.MinScanEventMagnitudeMM
}

// GetReportConeMinDeg returns the report_cone_min_deg value or the default.
func (c *TuningConfig) GetReportConeMinDeg() float64 {
	if c.ReportConeMinDeg == nil {
		return -45.0
	}
	return *c.ReportConeMinDeg
}

// GetReportConeMaxDeg returns the report_cone_max_deg value or the default.
func (c *TuningConfig) GetReportConeMaxDeg() float64 {
	if c.ReportConeMaxDeg == nil {
		return 45.0
	}
	return *c.ReportConeMaxDeg
}

// GetSpectralGate parses and returns the spectral recomputation gate interval.
func (c *TuningConfig) GetSpectralGate() time.Duration {
	if c.SpectralGate == nil || *c.SpectralGate == "" {
		return 500 * time.Millisecond
	}
	d, err := time.ParseDuration(*c.SpectralGate)
	if err != nil {
		return 500 * time.Millisecond
	}
	return d
}

// GetSpectralWindowSize returns the spectral_window_size value or the default.
func (c *TuningConfig) GetSpectralWindowSize() int {
	if c.SpectralWindowSize == nil {
		return 128 // power of two for the FFT
	}
	return *c.SpectralWindowSize
}

// GetMinSpectralSamples returns the min_spectral_samples value or the default.
func (c *TuningConfig) GetMinSpectralSamples() int {
	if c.MinSpectralSamples == nil {
		return 64
	}
	return *c.MinSpectralSamples
}

// GetSampleRateHz returns the sample_rate_hz value or the default.
func (c *TuningConfig) GetSampleRateHz() float64 {
	if c.SampleRateHz == nil {
		return 10.0
	}
	return *c.SampleRateHz
}

// GetLowBandMaxHz returns the low_band_max_hz value or the default.
func (c *TuningConfig) GetLowBandMaxHz() float64 {
	if c.LowBandMaxHz == nil {
		return 3.0
	}
	return *c.LowBandMaxHz
}

// GetMidBandMaxHz returns the mid_band_max_hz value or the default.
func (c *TuningConfig) GetMidBandMaxHz() float64 {
	if c.MidBandMaxHz == nil {
		return 15.0
	}
	return *c.MidBandMaxHz
}

// GetPeakRelativeHeight returns the peak_relative_height value or the default.
func (c *TuningConfig) GetPeakRelativeHeight() float64 {
	if c.PeakRelativeHeight == nil {
		return 0.3
	}
	return *c.PeakRelativeHeight
}

// GetTextureAdjustmentLimit returns the texture_adjustment_limit value or the default.
func (c *TuningConfig) GetTextureAdjustmentLimit() float64 {
	if c.TextureAdjustmentLimit == nil {
		return 5.0
	}
	return *c.TextureAdjustmentLimit
}

// GetScanWeight returns the scan_weight value or the default.
func (c *TuningConfig) GetScanWeight() float64 {
	if c.ScanWeight == nil {
		return 0.6
	}
	return *c.ScanWeight
}

// GetAccelWeight returns the accel_weight value or the default.
func (c *TuningConfig) GetAccelWeight() float64 {
	if c.AccelWeight == nil {
		return 0.4
	}
	return *c.AccelWeight
}

// GetAlphaMin returns the alpha_min value or the default.
func (c *TuningConfig) GetAlphaMin() float64 {
	if c.AlphaMin == nil {
		return 0.05
	}
	return *c.AlphaMin
}

// GetAlphaMax returns the alpha_max value or the default.
func (c *TuningConfig) GetAlphaMax() float64 {
	if c.AlphaMax == nil {
		return 0.4
	}
	return *c.AlphaMax
}

// GetAlphaChangeScale returns the alpha_change_scale value or the default.
func (c *TuningConfig) GetAlphaChangeScale() float64 {
	if c.AlphaChangeScale == nil {
		return 50.0
	}
	return *c.AlphaChangeScale
}

// GetCombinedHistorySize returns the combined_history_size value or the default.
func (c *TuningConfig) GetCombinedHistorySize() int {
	if c.CombinedHistorySize == nil {
		return 8
	}
	return *c.CombinedHistorySize
}

// GetExcellentThreshold returns the excellent_threshold value or the default.
func (c *TuningConfig) GetExcellentThreshold() float64 {
	if c.ExcellentThreshold == nil {
		return 90.0
	}
	return *c.ExcellentThreshold
}

// GetGoodThreshold returns the good_threshold value or the default.
func (c *TuningConfig) GetGoodThreshold() float64 {
	if c.GoodThreshold == nil {
		return 75.0
	}
	return *c.GoodThreshold
}

// GetFairThreshold returns the fair_threshold value or the default.
func (c *TuningConfig) GetFairThreshold() float64 {
	if c.FairThreshold == nil {
		return 60.0
	}
	return *c.FairThreshold
}

// GetPoorThreshold returns the poor_threshold value or the default.
func (c *TuningConfig) GetPoorThreshold() float64 {
	if c.PoorThreshold == nil {
		return 40.0
	}
	return *c.PoorThreshold
}

// GetEventConfidenceThreshold returns the event_confidence_threshold value or the default.
func (c *TuningConfig) GetEventConfidenceThreshold() float64 {
	if c.EventConfidenceThreshold == nil {
		return 0.8
	}
	return *c.EventConfidenceThreshold
}

// GetEventRetention parses and returns the dedup bin retention window.
func (c *TuningConfig) GetEventRetention() time.Duration {
	if c.EventRetention == nil || *c.EventRetention == "" {
		return time.Hour
	}
	d, err := time.ParseDuration(*c.EventRetention)
	if err != nil {
		return time.Hour
	}
	return d
}

// GetAccelBufferCapacity returns the accel_buffer_capacity value or the default.
func (c *TuningConfig) GetAccelBufferCapacity() int {
	if c.AccelBufferCapacity == nil {
		return 256
	}
	return *c.AccelBufferCapacity
}

// GetDebug returns the debug value or the default.
func (c *TuningConfig) GetDebug() bool {
	if c.Debug == nil {
		return false
	}
	return *c.Debug
}
