package roadquality

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/roadsense-data/surface.report/internal/config"
	"github.com/roadsense-data/surface.report/internal/timeutil"
)

// FusionEngine blends per-source quality scores into one smoothed value,
// owns the rolling combined-score history and the event deduplication
// state, and maps scores onto classifications and colors.
type FusionEngine struct {
	cfg   *config.TuningConfig
	clock timeutil.Clock

	mu        sync.Mutex
	combined  *History[float64] // transition detector input
	smoothed  float64
	lastRaw   float64
	eventBins map[string]*eventBin
	lastSweep time.Time
}

type eventBin struct {
	event    RoadEvent
	emitted  bool
	lastSeen time.Time
}

// NewFusionEngine builds a fusion engine starting from a perfect-surface
// prior that decays as real data arrives.
func NewFusionEngine(cfg *config.TuningConfig, clock timeutil.Clock) *FusionEngine {
	return &FusionEngine{
		cfg:       cfg,
		clock:     clock,
		combined:  NewHistory[float64](cfg.GetCombinedHistorySize()),
		smoothed:  100,
		lastRaw:   100,
		eventBins: make(map[string]*eventBin),
	}
}

// Tick blends the available source scores (nil means the source produced
// nothing this tick; its weight is renormalized away, never treated as
// zero), applies the texture adjustment, smooths adaptively, and runs the
// new events through location deduplication. Returns the fused score and
// the events that cleared deduplication this tick.
func (f *FusionEngine) Tick(scan, accel *float64, texture Texture, events []RoadEvent) (QualityScore, []RoadEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()

	emitted := f.dedupEvents(events)

	if scan == nil && accel == nil {
		// No fresh data; freshness degrades, the contract does not.
		return f.scoreLocked(scan, accel), emitted
	}

	weightSum, weighted := 0.0, 0.0
	if scan != nil {
		w := f.cfg.GetScanWeight()
		weighted += *scan * w
		weightSum += w
	}
	if accel != nil {
		w := f.cfg.GetAccelWeight()
		weighted += *accel * w
		weightSum += w
	}
	combined := weighted / weightSum

	combined += texture.Adjustment
	combined = clampScore(combined)

	f.combined.Push(combined)
	f.lastRaw = combined

	// Adaptive smoothing: the short-term volatility of the combined score
	// sets how fast the EWMA tracks. Entering a pothole moves alpha to
	// the fast end; uniform surfaces settle to the slow end.
	changeRate := 0.0
	if f.combined.Len() >= 2 {
		changeRate = math.Abs(f.combined.At(f.combined.Len()-1) - f.combined.At(f.combined.Len()-2))
	}
	alpha := changeRate / f.cfg.GetAlphaChangeScale()
	if alpha < f.cfg.GetAlphaMin() {
		alpha = f.cfg.GetAlphaMin()
	} else if alpha > f.cfg.GetAlphaMax() {
		alpha = f.cfg.GetAlphaMax()
	}

	f.smoothed = clampScore((1-alpha)*f.smoothed + alpha*combined)

	if f.cfg.GetDebug() {
		Logf("fusion: combined=%.1f smoothed=%.1f alpha=%.2f", combined, f.smoothed, alpha)
	}
	return f.scoreLocked(scan, accel), emitted
}

// Latest returns the current fused score without advancing state.
func (f *FusionEngine) Latest() QualityScore {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scoreLocked(nil, nil)
}

func (f *FusionEngine) scoreLocked(scan, accel *float64) QualityScore {
	// Classify the rounded value so the label always matches the number
	// that gets published. Smoothed 89.96 reports as 90.0 and Excellent,
	// never 90.0 and Good.
	value := math.Round(f.smoothed*10) / 10
	return QualityScore{
		Value:          value,
		Raw:            f.lastRaw,
		Classification: f.Classify(value),
		ScanComponent:  scan,
		AccelComponent: accel,
	}
}

// Classify maps a score onto its label using the configured breakpoints.
// Boundaries are inclusive on the high side: exactly 90.0 is Excellent.
func (f *FusionEngine) Classify(score float64) Classification {
	switch {
	case score >= f.cfg.GetExcellentThreshold():
		return ClassExcellent
	case score >= f.cfg.GetGoodThreshold():
		return ClassGood
	case score >= f.cfg.GetFairThreshold():
		return ClassFair
	case score >= f.cfg.GetPoorThreshold():
		return ClassPoor
	default:
		return ClassVeryPoor
	}
}

// Color returns the color for the most recent raw combined value. Color
// tracks the instantaneous signal, not the smoothed one, so map consumers
// see transitions immediately.
func (f *FusionEngine) Color() Color {
	f.mu.Lock()
	defer f.mu.Unlock()
	return ColorForScore(f.lastRaw)
}

// binKey rounds coordinates to 5 decimal places (about 1.1 m), binning
// nearby detections of the same physical defect together.
func binKey(lat, lon float64) string {
	return fmt.Sprintf("%.5f:%.5f", lat, lon)
}

// dedupEvents merges same-location events: corroboration across sources
// raises confidence and averages severity; a stronger same-source
// detection replaces the weaker. Each bin emits at most once per
// retention window, and only once its confidence clears the configured
// threshold. Events without a position cannot be binned and pass through.
func (f *FusionEngine) dedupEvents(events []RoadEvent) []RoadEvent {
	f.sweepBinsLocked()

	var out []RoadEvent
	for _, ev := range events {
		if ev.Latitude == 0 && ev.Longitude == 0 {
			out = append(out, ev)
			continue
		}

		if ev.Confidence == 0 {
			// Accelerometer events arrive unassessed; start moderate.
			ev.Confidence = 0.7
		}

		key := binKey(ev.Latitude, ev.Longitude)
		bin, seen := f.eventBins[key]
		if !seen {
			f.eventBins[key] = &eventBin{event: ev, lastSeen: f.clock.Now()}
			bin = f.eventBins[key]
		} else {
			bin.lastSeen = f.clock.Now()
			existing := &bin.event
			if ev.Source != existing.Source {
				existing.Severity = (existing.Severity + ev.Severity) / 2
				existing.Confidence = math.Min(1.0, existing.Confidence+0.3)
			} else if ev.Severity > existing.Severity {
				existing.Severity = ev.Severity
				existing.Confidence = math.Min(1.0, existing.Confidence+0.1)
			}
		}

		if !bin.emitted && bin.event.Confidence >= f.cfg.GetEventConfidenceThreshold() {
			bin.emitted = true
			out = append(out, bin.event)
		}
	}
	return out
}

// sweepBinsLocked drops dedup bins older than the retention window so a
// defect seen again much later is reported again.
func (f *FusionEngine) sweepBinsLocked() {
	now := f.clock.Now()
	if now.Sub(f.lastSweep) < time.Minute {
		return
	}
	f.lastSweep = now
	retention := f.cfg.GetEventRetention()
	for key, bin := range f.eventBins {
		if now.Sub(bin.lastSeen) > retention {
			delete(f.eventBins, key)
		}
	}
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
