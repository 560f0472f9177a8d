package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/roadsense-data/surface.report/internal/config"
	"github.com/roadsense-data/surface.report/internal/roadquality"
)

func newTestAnalyzer(t *testing.T) *roadquality.Analyzer {
	t.Helper()
	a, err := roadquality.NewAnalyzer(config.EmptyTuningConfig(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestReplaySource_FeedsUntilExhausted(t *testing.T) {
	log := `# recorded 2025-06-01
gps,46.77,23.59
env,21.5,1009.2
accel,0.98
accel,1.02
scan,350.0:512;355.0:505;0.0:500
tick

accel,0.99
tick
`
	path := filepath.Join(t.TempDir(), "ride.log")
	if err := os.WriteFile(path, []byte(log), 0o644); err != nil {
		t.Fatal(err)
	}

	src, err := newReplaySource(path)
	if err != nil {
		t.Fatal(err)
	}
	a := newTestAnalyzer(t)

	if !src.Feed(a) {
		t.Fatal("first tick reported exhaustion")
	}
	if !src.Feed(a) {
		t.Fatal("second tick reported exhaustion")
	}
	if src.Feed(a) {
		t.Error("source not exhausted after the last tick marker")
	}

	rec := a.Tick()
	if rec.Position.Latitude != 46.77 || rec.Position.Longitude != 23.59 {
		t.Errorf("position = %+v, want the replayed fix", rec.Position)
	}
}

func TestParseScan(t *testing.T) {
	points, err := parseScan("350.0:512;0.0:500;")
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 2 {
		t.Fatalf("got %d points, want 2", len(points))
	}
	if points[0].AngleDeg != 350 || points[0].DistanceMM != 512 {
		t.Errorf("first point = %+v", points[0])
	}

	if _, err := parseScan("350.0-512"); err == nil {
		t.Error("accepted a scan point without the angle:distance separator")
	}
	if _, err := parseScan("abc:512"); err == nil {
		t.Error("accepted a non-numeric angle")
	}
}

func TestParseEnv(t *testing.T) {
	env, err := parseEnv("21.5,1009.2")
	if err != nil {
		t.Fatal(err)
	}
	if env.TemperatureC == nil || *env.TemperatureC != 21.5 {
		t.Errorf("TemperatureC = %v", env.TemperatureC)
	}
	if env.PressureHPa == nil || *env.PressureHPa != 1009.2 {
		t.Errorf("PressureHPa = %v", env.PressureHPa)
	}

	// Missing fields stay nil rather than zero.
	env, err = parseEnv(",1009.2")
	if err != nil {
		t.Fatal(err)
	}
	if env.TemperatureC != nil {
		t.Errorf("TemperatureC = %v, want nil for an absent reading", env.TemperatureC)
	}
	if env.PressureHPa == nil {
		t.Error("PressureHPa lost")
	}
}

func TestSyntheticRide_DrivesTheFullPipeline(t *testing.T) {
	src := newSyntheticRide(1)
	a := newTestAnalyzer(t)

	var rec roadquality.Record
	for i := 0; i < 10; i++ {
		if !src.Feed(a) {
			t.Fatal("synthetic ride ended")
		}
		rec = a.Tick()
	}

	if rec.Score.ScanComponent == nil {
		t.Error("synthetic ride never produced a scan score")
	}
	if rec.Score.AccelComponent == nil {
		t.Error("synthetic ride never produced an accel score")
	}
	if !rec.Position.Valid() {
		t.Error("synthetic ride has no GPS fix")
	}
}
