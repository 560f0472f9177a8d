package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadTuningConfig_PartialOverride(t *testing.T) {
	path := writeConfig(t, `{"scan_weight": 0.5, "accel_weight": 0.5, "scan_gate": "250ms"}`)

	cfg, err := LoadTuningConfig(path)
	if err != nil {
		t.Fatalf("LoadTuningConfig: %v", err)
	}

	if got := cfg.GetScanWeight(); got != 0.5 {
		t.Errorf("GetScanWeight() = %v, want 0.5", got)
	}
	if got := cfg.GetScanGate(); got != 250*time.Millisecond {
		t.Errorf("GetScanGate() = %v, want 250ms", got)
	}
	// Unset fields fall back to defaults.
	if got := cfg.GetExcellentThreshold(); got != 90.0 {
		t.Errorf("GetExcellentThreshold() = %v, want 90", got)
	}
	if got := cfg.GetMinScanPoints(); got != 8 {
		t.Errorf("GetMinScanPoints() = %v, want 8", got)
	}
}

func TestLoadTuningConfig_DefaultsFileMatchesAccessors(t *testing.T) {
	// The shipped defaults file must agree with the in-code defaults so a
	// missing file and a pristine file behave identically.
	cfg, err := LoadTuningConfig("../../" + DefaultConfigPath)
	if err != nil {
		t.Fatalf("load defaults file: %v", err)
	}

	empty := EmptyTuningConfig()
	got := map[string]interface{}{
		"min_calibration_samples": cfg.GetMinCalibrationSamples(),
		"threshold_multiplier":    cfg.GetThresholdMultiplier(),
		"scan_cone_min_deg":       cfg.GetScanConeMinDeg(),
		"scan_cone_max_deg":       cfg.GetScanConeMaxDeg(),
		"scan_weight":             cfg.GetScanWeight(),
		"accel_weight":            cfg.GetAccelWeight(),
		"alpha_min":               cfg.GetAlphaMin(),
		"alpha_max":               cfg.GetAlphaMax(),
		"low_band_max_hz":         cfg.GetLowBandMaxHz(),
		"mid_band_max_hz":         cfg.GetMidBandMaxHz(),
		"event_retention":         cfg.GetEventRetention(),
	}
	want := map[string]interface{}{
		"min_calibration_samples": empty.GetMinCalibrationSamples(),
		"threshold_multiplier":    empty.GetThresholdMultiplier(),
		"scan_cone_min_deg":       empty.GetScanConeMinDeg(),
		"scan_cone_max_deg":       empty.GetScanConeMaxDeg(),
		"scan_weight":             empty.GetScanWeight(),
		"accel_weight":            empty.GetAccelWeight(),
		"alpha_min":               empty.GetAlphaMin(),
		"alpha_max":               empty.GetAlphaMax(),
		"low_band_max_hz":         empty.GetLowBandMaxHz(),
		"mid_band_max_hz":         empty.GetMidBandMaxHz(),
		"event_retention":         empty.GetEventRetention(),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("defaults file disagrees with accessors (-want +got):\n%s", diff)
	}
}

func TestValidate_Failures(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"inverted scan cone", `{"scan_cone_min_deg": 40, "scan_cone_max_deg": -10}`},
		{"inverted report cone", `{"report_cone_min_deg": 45, "report_cone_max_deg": -45}`},
		{"negative weight", `{"scan_weight": -0.2}`},
		{"zero weights", `{"scan_weight": 0, "accel_weight": 0}`},
		{"inverted alpha", `{"alpha_min": 0.5, "alpha_max": 0.1}`},
		{"alpha above one", `{"alpha_max": 1.5}`},
		{"non-descending breakpoints", `{"good_threshold": 95}`},
		{"inverted bands", `{"low_band_max_hz": 20, "mid_band_max_hz": 15}`},
		{"bad gate duration", `{"scan_gate": "fast"}`},
		{"confidence out of range", `{"event_confidence_threshold": 1.5}`},
		{"severity out of range", `{"min_event_severity": 0}`},
		{"too few scan points", `{"min_scan_points": 2}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.body)
			if _, err := LoadTuningConfig(path); err == nil {
				t.Errorf("LoadTuningConfig accepted %s", tc.body)
			}
		})
	}
}

func TestLoadTuningConfig_RejectsNonJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadTuningConfig(path); err == nil {
		t.Error("expected extension error for .yaml file")
	}
}
