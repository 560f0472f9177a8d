package main

import (
	"bufio"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"github.com/roadsense-data/surface.report/internal/roadquality"
)

// sampleSource feeds one tick's worth of sensor input into the analyzer.
// Feed returns false when the source is exhausted.
type sampleSource interface {
	Feed(a *roadquality.Analyzer) bool
}

// replaySource plays back a recorded sensor log. The log is line-oriented:
//
//	accel,<g>
//	scan,<angle>:<distance_mm>;<angle>:<distance_mm>;...
//	gps,<lat>,<lon>
//	env,<temp_c>,<pressure_hpa>   (either field may be empty)
//	tick                          (advances one analysis cycle)
//
// Blank lines and lines starting with # are skipped.
type replaySource struct {
	file    *os.File
	scanner *bufio.Scanner
	line    int
}

func newReplaySource(path string) (*replaySource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &replaySource{file: f, scanner: bufio.NewScanner(f)}, nil
}

func (r *replaySource) Feed(a *roadquality.Analyzer) bool {
	for r.scanner.Scan() {
		r.line++
		text := strings.TrimSpace(r.scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if text == "tick" {
			return true
		}
		if err := r.apply(a, text); err != nil {
			roadquality.Logf("replay line %d: %v", r.line, err)
		}
	}
	r.file.Close()
	return false
}

func (r *replaySource) apply(a *roadquality.Analyzer, text string) error {
	kind, rest, _ := strings.Cut(text, ",")
	switch kind {
	case "accel":
		v, err := strconv.ParseFloat(rest, 64)
		if err != nil {
			return fmt.Errorf("bad accel sample %q: %v", rest, err)
		}
		a.AppendAccel(roadquality.AccelSample(v))
	case "scan":
		points, err := parseScan(rest)
		if err != nil {
			return err
		}
		a.SetScan(points)
	case "gps":
		latText, lonText, ok := strings.Cut(rest, ",")
		if !ok {
			return fmt.Errorf("bad gps fix %q", rest)
		}
		lat, err := strconv.ParseFloat(latText, 64)
		if err != nil {
			return fmt.Errorf("bad latitude %q: %v", latText, err)
		}
		lon, err := strconv.ParseFloat(lonText, 64)
		if err != nil {
			return fmt.Errorf("bad longitude %q: %v", lonText, err)
		}
		a.SetPosition(roadquality.Geolocation{Latitude: lat, Longitude: lon})
	case "env":
		env, err := parseEnv(rest)
		if err != nil {
			return err
		}
		a.SetEnvironment(env)
	default:
		return fmt.Errorf("unknown line type %q", kind)
	}
	return nil
}

func parseScan(text string) ([]roadquality.RangePoint, error) {
	var points []roadquality.RangePoint
	for _, pair := range strings.Split(text, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		angleText, distText, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("bad scan point %q", pair)
		}
		angle, err := strconv.ParseFloat(angleText, 64)
		if err != nil {
			return nil, fmt.Errorf("bad scan angle %q: %v", angleText, err)
		}
		dist, err := strconv.ParseFloat(distText, 64)
		if err != nil {
			return nil, fmt.Errorf("bad scan distance %q: %v", distText, err)
		}
		points = append(points, roadquality.RangePoint{AngleDeg: angle, DistanceMM: dist})
	}
	return points, nil
}

func parseEnv(text string) (roadquality.EnvironmentReading, error) {
	var env roadquality.EnvironmentReading
	tempText, pressText, _ := strings.Cut(text, ",")
	if tempText != "" {
		temp, err := strconv.ParseFloat(tempText, 64)
		if err != nil {
			return env, fmt.Errorf("bad temperature %q: %v", tempText, err)
		}
		env.TemperatureC = &temp
	}
	if pressText != "" {
		press, err := strconv.ParseFloat(pressText, 64)
		if err != nil {
			return env, fmt.Errorf("bad pressure %q: %v", pressText, err)
		}
		env.PressureHPa = &press
	}
	return env, nil
}

// syntheticRide generates a plausible drive: mostly smooth road with
// occasional pothole strikes, a flat scan profile with sensor noise, and
// a slowly drifting GPS fix. Deterministic for a given seed.
type syntheticRide struct {
	rng  *rand.Rand
	tick int
	lat  float64
	lon  float64
}

func newSyntheticRide(seed int64) *syntheticRide {
	return &syntheticRide{
		rng: rand.New(rand.NewSource(seed)),
		lat: 46.770439,
		lon: 23.591423,
	}
}

func (s *syntheticRide) Feed(a *roadquality.Analyzer) bool {
	s.tick++

	// ~10 accel samples per tick around 1g with road noise; every so
	// often the wheel finds a pothole.
	for i := 0; i < 10; i++ {
		v := 1.0 + s.rng.NormFloat64()*0.03
		if s.tick%37 == 0 && i == 5 {
			v -= 1.2 + s.rng.Float64()*0.8
		}
		a.AppendAccel(roadquality.AccelSample(v))
	}

	points := make([]roadquality.RangePoint, 0, 16)
	for deg := -25.0; deg <= 35.0; deg += 4 {
		angle := deg
		if angle < 0 {
			angle += 360
		}
		dist := 500/math.Cos(deg*math.Pi/180) + s.rng.NormFloat64()*2
		if s.tick%37 == 0 && deg >= 8 && deg <= 16 {
			dist += 120
		}
		points = append(points, roadquality.RangePoint{AngleDeg: angle, DistanceMM: dist})
	}
	a.SetScan(points)

	// Roughly forward motion at city speed.
	s.lat += 2e-5 + s.rng.Float64()*5e-6
	s.lon += 1e-5
	a.SetPosition(roadquality.Geolocation{Latitude: s.lat, Longitude: s.lon})

	if s.tick%50 == 1 {
		temp := 18.0 + s.rng.Float64()*6
		press := 1010.0 + s.rng.Float64()*8
		a.SetEnvironment(roadquality.EnvironmentReading{TemperatureC: &temp, PressureHPa: &press})
	}
	return true
}
