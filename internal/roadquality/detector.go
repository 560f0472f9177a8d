package roadquality

import (
	"math"
	"sort"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/roadsense-data/surface.report/internal/config"
	"github.com/roadsense-data/surface.report/internal/timeutil"
)

// EventDetector finds bumps and potholes in the vertical acceleration
// signal. It never fails: an uncalibrated or starved detector returns an
// empty list.
type EventDetector struct {
	cfg   *config.TuningConfig
	cal   *Calibrator
	clock timeutil.Clock
}

// NewEventDetector builds a detector bound to the shared calibrator.
func NewEventDetector(cfg *config.TuningConfig, cal *Calibrator, clock timeutil.Clock) *EventDetector {
	return &EventDetector{cfg: cfg, cal: cal, clock: clock}
}

type peakCandidate struct {
	index     int
	magnitude float64 // signed, baseline-removed
}

// Detect scans the most recent window for isolated peaks exceeding the
// adaptive threshold. When uncalibrated it attempts a calibration pass
// first and returns nothing if that also fails.
func (d *EventDetector) Detect(window []AccelSample, env EnvironmentReading, pos Geolocation) []RoadEvent {
	state := d.cal.State()
	if !state.Calibrated {
		if !d.cal.Calibrate(window, env) {
			return nil
		}
		state = d.cal.State()
	}

	if len(window) < 10 {
		return nil
	}

	// Analyze the tail of the buffer only; older samples were covered by
	// earlier ticks.
	n := d.cfg.GetDetectionWindow()
	if len(window) > n {
		window = window[len(window)-n:]
	}

	signal := make([]float64, len(window))
	for i, s := range window {
		signal[i] = float64(s) - state.Baseline
	}

	// Adaptive threshold: tighten on rough stretches, relax on smooth
	// ones, without re-running full calibration. Never below the
	// calibrated effective threshold or the configured magnitude floor.
	localVariance := stat.Variance(signal, nil)
	if math.IsNaN(localVariance) {
		localVariance = 0
	}
	minMagnitude := d.cfg.GetMinAccelEventMagnitudeG()
	adaptive := math.Max(minMagnitude, state.EffectiveThreshold()*(1+0.5*math.Sqrt(localVariance)))

	candidates := findPeaks(signal, adaptive)
	candidates = isolate(candidates, d.cfg.GetIsolationSpacing())

	minSeverity := d.cfg.GetMinEventSeverity()
	now := d.clock.Now()

	var events []RoadEvent
	for _, c := range candidates {
		kind := EventBump
		if c.magnitude < 0 {
			kind = EventPothole
		}
		severity := severityFromMagnitude(math.Abs(c.magnitude), minMagnitude)
		if severity < minSeverity {
			continue
		}
		events = append(events, RoadEvent{
			ID:        uuid.NewString(),
			Kind:      kind,
			Severity:  severity,
			Magnitude: c.magnitude,
			Source:    SourceAccelerometer,
			Timestamp: now,
			Latitude:  pos.Latitude,
			Longitude: pos.Longitude,
		})
	}

	if d.cfg.GetDebug() && len(events) > 0 {
		Logf("accel detect: %d events (threshold=%.3fg variance=%.4f)", len(events), adaptive, localVariance)
	}
	return events
}

// Quality scores the recent window on overall vibration level: smoother
// signal, higher score. ok is false when the window is too short or the
// analyzer cannot calibrate, in which case fusion excludes this source.
func (d *EventDetector) Quality(window []AccelSample, env EnvironmentReading) (float64, bool) {
	size := d.cfg.GetAccelQualityWindow()
	if len(window) < size {
		return 0, false
	}
	state := d.cal.State()
	if !state.Calibrated {
		if !d.cal.Calibrate(window, env) {
			return 0, false
		}
		state = d.cal.State()
	}

	window = window[len(window)-size:]
	signal := make([]float64, len(window))
	meanAbsDev, maxDev := 0.0, 0.0
	for i, s := range window {
		signal[i] = float64(s)
		dev := math.Abs(float64(s) - state.Baseline)
		meanAbsDev += dev
		if dev > maxDev {
			maxDev = dev
		}
	}
	meanAbsDev /= float64(len(window))
	variance := stat.Variance(signal, nil)

	variancePenalty := math.Min(50, variance*100)
	maxDevPenalty := math.Min(30, maxDev*60)
	meanDevPenalty := math.Min(20, meanAbsDev*40)

	score := 100 - variancePenalty - maxDevPenalty - meanDevPenalty
	if score < 0 {
		score = 0
	}
	return score, true
}

// findPeaks returns local maxima above +threshold and local minima below
// -threshold, merged and sorted by window position.
func findPeaks(signal []float64, threshold float64) []peakCandidate {
	var out []peakCandidate
	for i := 1; i < len(signal)-1; i++ {
		v := signal[i]
		switch {
		case v > threshold && v > signal[i-1] && v >= signal[i+1]:
			out = append(out, peakCandidate{index: i, magnitude: v})
		case v < -threshold && v < signal[i-1] && v <= signal[i+1]:
			out = append(out, peakCandidate{index: i, magnitude: v})
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].index < out[b].index })
	return out
}

// isolate collapses a single impact's oscillatory ringing into one event:
// any candidate within spacing of a larger-magnitude candidate is dropped.
func isolate(candidates []peakCandidate, spacing int) []peakCandidate {
	if len(candidates) < 2 {
		return candidates
	}
	keep := make([]peakCandidate, 0, len(candidates))
	for i, c := range candidates {
		dominated := false
		for j, other := range candidates {
			if i == j || abs(other.index-c.index) > spacing {
				continue
			}
			if math.Abs(other.magnitude) > math.Abs(c.magnitude) {
				dominated = true
				break
			}
			// Equal magnitudes at equal distance: keep the earlier one.
			if math.Abs(other.magnitude) == math.Abs(c.magnitude) && j < i {
				dominated = true
				break
			}
		}
		if !dominated {
			keep = append(keep, c)
		}
	}
	return keep
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
