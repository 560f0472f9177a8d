package roadquality

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/roadsense-data/surface.report/internal/config"
	"github.com/roadsense-data/surface.report/internal/timeutil"
)

// Penalty caps applied before summing. Each axis of badness is bounded so
// no single metric can zero the score on its own.
const (
	linearityPenaltyCap = 30.0
	stdPenaltyCap       = 30.0
	maxDevPenaltyCap    = 30.0
	scoreFloor          = 10.0
)

// ScanScorer converts one range scan into a roughness-based quality value
// by fitting a quadratic baseline (road curvature and tilt) to the forward
// cone and scoring the residual texture. Recomputation is wall-clock gated;
// calls inside the gate return the cached value.
type ScanScorer struct {
	cfg   *config.TuningConfig
	cal   *Calibrator
	clock timeutil.Clock

	mu           sync.Mutex
	lastComputed time.Time
	lastScore    float64
}

// NewScanScorer builds a scorer. cal may be nil; it is only consulted for
// the pressure compensation factor.
func NewScanScorer(cfg *config.TuningConfig, cal *Calibrator, clock timeutil.Clock) *ScanScorer {
	return &ScanScorer{
		cfg:       cfg,
		cal:       cal,
		clock:     clock,
		lastScore: 80, // neutral prior until the first real scan lands
	}
}

// LastScore returns the cached score without recomputing.
func (s *ScanScorer) LastScore() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastScore
}

// signedAngle converts a raw clockwise 0–360° sensor angle into a signed
// angle so the forward cone straddling the 0°/360° wraparound becomes one
// contiguous interval. Pure arithmetic; recomputed, never cached.
func signedAngle(raw float64) float64 {
	if raw > 180 {
		return raw - 360
	}
	return raw
}

// Score analyzes one scan and returns the quality value in [0,100] plus
// any scan-derived road events. Insufficient input or a blocked gate
// returns the cached score and no events.
func (s *ScanScorer) Score(points []RangePoint, pos Geolocation) (float64, []RoadEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.lastComputed.IsZero() && s.clock.Since(s.lastComputed) < s.cfg.GetScanGate() {
		return s.lastScore, nil
	}

	coneMin, coneMax := s.cfg.GetScanConeMinDeg(), s.cfg.GetScanConeMaxDeg()
	pressureFactor := 1.0
	if s.cal != nil {
		pressureFactor = s.cal.State().PressureFactor
	}

	angles := make([]float64, 0, len(points))
	dists := make([]float64, 0, len(points))
	for _, p := range points {
		a := signedAngle(p.AngleDeg)
		if a < coneMin || a > coneMax {
			continue
		}
		angles = append(angles, a)
		dists = append(dists, p.DistanceMM*pressureFactor)
	}

	if len(angles) < s.cfg.GetMinScanPoints() {
		if s.cfg.GetDebug() {
			Logf("scan score: %d in-cone points (need %d), holding %.1f",
				len(angles), s.cfg.GetMinScanPoints(), s.lastScore)
		}
		return s.lastScore, nil
	}

	residuals := fitQuadraticResiduals(angles, dists)
	score, rsq := s.scoreResiduals(angles, dists, residuals)
	events := s.detectScanEvents(angles, dists, residuals, rsq, pos)

	s.lastScore = score
	s.lastComputed = s.clock.Now()
	return score, events
}

// fitQuadratic solves distance = c0 + c1·angle + c2·angle² by least
// squares. ok is false when the system is singular (all angles
// identical, etc.).
func fitQuadratic(angles, dists []float64) (c0, c1, c2 float64, ok bool) {
	n := len(angles)
	a := mat.NewDense(n, 3, nil)
	b := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		a.Set(i, 0, 1)
		a.Set(i, 1, angles[i])
		a.Set(i, 2, angles[i]*angles[i])
		b.SetVec(i, dists[i])
	}

	var qr mat.QR
	qr.Factorize(a)
	coef := mat.NewVecDense(3, nil)
	if err := qr.SolveVecTo(coef, false, b); err != nil {
		return 0, 0, 0, false
	}
	return coef.AtVec(0), coef.AtVec(1), coef.AtVec(2), true
}

// fitQuadraticResiduals returns raw minus fitted distances. A singular
// system degrades to a mean-only baseline.
func fitQuadraticResiduals(angles, dists []float64) []float64 {
	residuals := make([]float64, len(angles))
	c0, c1, c2, ok := fitQuadratic(angles, dists)
	if !ok {
		mean := stat.Mean(dists, nil)
		for i := range residuals {
			residuals[i] = dists[i] - mean
		}
		return residuals
	}
	for i := range angles {
		fitted := c0 + c1*angles[i] + c2*angles[i]*angles[i]
		residuals[i] = dists[i] - fitted
	}
	return residuals
}

// robustResiduals refits the baseline on the scan minus its largest
// quarter of absolute residuals, then re-evaluates every point against
// that fit. A wide anomaly drags the full least-squares baseline toward
// itself, which smears its own error across the clean points; the
// inlier-only fit keeps both the residuals and the spread estimate free
// of the anomaly being measured. The spread is the MAD of the inlier
// residuals against the refit.
func robustResiduals(angles, dists, residuals []float64) (refit []float64, spread float64) {
	n := len(residuals)
	keep := n - (n+3)/4
	if keep < 4 {
		return residuals, medianAbsDeviation(residuals)
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		return math.Abs(residuals[order[i]]) < math.Abs(residuals[order[j]])
	})

	inAngles := make([]float64, keep)
	inDists := make([]float64, keep)
	for i, idx := range order[:keep] {
		inAngles[i] = angles[idx]
		inDists[i] = dists[idx]
	}
	c0, c1, c2, ok := fitQuadratic(inAngles, inDists)
	if !ok {
		return residuals, medianAbsDeviation(residuals)
	}

	refit = make([]float64, n)
	for i := range angles {
		refit[i] = dists[i] - (c0 + c1*angles[i] + c2*angles[i]*angles[i])
	}
	inlier := make([]float64, keep)
	for i, idx := range order[:keep] {
		inlier[i] = refit[idx]
	}
	return refit, medianAbsDeviation(inlier)
}

// scoreResiduals turns fit residuals into a clamped [0,100] quality value.
func (s *ScanScorer) scoreResiduals(angles, dists, residuals []float64) (score, rsq float64) {
	n := len(residuals)
	var maxAbs float64

	ssRes := 0.0
	for _, r := range residuals {
		ssRes += r * r
		if a := math.Abs(r); a > maxAbs {
			maxAbs = a
		}
	}
	meanDist := stat.Mean(dists, nil)
	ssTot := 0.0
	for _, d := range dists {
		ssTot += (d - meanDist) * (d - meanDist)
	}

	// Zero total variance means a perfectly uniform scan; the fit explains
	// everything there is to explain.
	const varianceEps = 1e-9
	if ssTot < varianceEps {
		rsq = 1.0
	} else {
		rsq = 1.0 - ssRes/ssTot
		if rsq < 0 {
			rsq = 0
		} else if rsq > 1 {
			rsq = 1
		}
	}

	residStd := stat.StdDev(residuals, nil)
	if n < 2 || math.IsNaN(residStd) {
		residStd = 0
	}

	// Operating height scale: the cosine projection removes the
	// angle-dependent foreshortening so the scale tracks mounting height
	// rather than cone width.
	heights := make([]float64, n)
	for i := range angles {
		heights[i] = dists[i] * math.Cos(angles[i]*math.Pi/180)
	}
	sort.Float64s(heights)
	medianHeight := heights[n/2]
	if n%2 == 0 {
		medianHeight = (heights[n/2-1] + heights[n/2]) / 2
	}
	measurementScale := math.Max(5.0, medianHeight*0.001) // 0.1% of height, min 5mm

	linearityPenalty := math.Min(linearityPenaltyCap, (1-rsq)*linearityPenaltyCap)
	stdScale := math.Max(10.0, measurementScale*1.5)
	stdPenalty := math.Min(stdPenaltyCap, (residStd/stdScale)*25)
	maxScale := math.Max(30.0, measurementScale*3)
	maxPenalty := math.Min(maxDevPenaltyCap, (maxAbs/maxScale)*30)

	score = 100 - linearityPenalty - stdPenalty - maxPenalty

	// The caps hold the floor at 10; only extreme deviations compress
	// further, asymptoting toward zero instead of going negative.
	if extremeRatio := maxAbs / maxScale; score <= scoreFloor && extremeRatio > 1 {
		score = scoreFloor / (1 + math.Log1p(extremeRatio-1))
	}
	if score < 0 {
		score = 0
	} else if score > 100 {
		score = 100
	}

	if s.cfg.GetDebug() {
		Logf("scan score: r2=%.3f std=%.2fmm max=%.2fmm score=%.1f", rsq, residStd, maxAbs, score)
	}
	return score, rsq
}

// detectScanEvents finds residual excursions large enough to be surface
// anomalies. Adjacent exceeding indices group into a single event. The
// residuals and the MAD behind the threshold come from the trimmed
// refit, not the raw fit, so a multi-point anomaly cannot raise the
// threshold past its own excursion.
func (s *ScanScorer) detectScanEvents(angles, dists, residuals []float64, rsq float64, pos Geolocation) []RoadEvent {
	minMag := s.cfg.GetMinScanEventMagnitudeMM()
	residuals, spread := robustResiduals(angles, dists, residuals)
	threshold := math.Max(minMag, 3*spread)

	exceeding := make([]int, 0, 4)
	for i, r := range residuals {
		if math.Abs(r) > threshold {
			exceeding = append(exceeding, i)
		}
	}
	if len(exceeding) == 0 {
		return nil
	}

	// Group indices separated by gaps of at most 2 into one event.
	var groups [][]int
	current := []int{exceeding[0]}
	for _, idx := range exceeding[1:] {
		if idx <= current[len(current)-1]+2 {
			current = append(current, idx)
		} else {
			groups = append(groups, current)
			current = []int{idx}
		}
	}
	groups = append(groups, current)

	confidence := math.Min(0.95, 0.6+0.35*rsq)
	minSeverity := s.cfg.GetMinEventSeverity()
	now := s.clock.Now()

	var events []RoadEvent
	for _, g := range groups {
		peak := g[0]
		for _, idx := range g[1:] {
			if math.Abs(residuals[idx]) > math.Abs(residuals[peak]) {
				peak = idx
			}
		}
		r := residuals[peak]

		// Positive residual: the surface is farther than the fitted
		// baseline, a depression. Negative: closer, a protrusion.
		kind := EventBump
		if r > 0 {
			kind = EventPothole
		}
		severity := severityFromMagnitude(math.Abs(r), minMag)
		if severity < minSeverity {
			continue
		}
		events = append(events, RoadEvent{
			ID:         uuid.NewString(),
			Kind:       kind,
			Severity:   severity,
			Magnitude:  math.Abs(r),
			Source:     SourceRangeScan,
			Confidence: confidence,
			Timestamp:  now,
			Latitude:   pos.Latitude,
			Longitude:  pos.Longitude,
		})
	}
	return events
}

// severityFromMagnitude maps |magnitude| / minMagnitude onto the 1–10
// scale logarithmically, capturing the wide dynamic range of impact
// strength without linear blow-up.
func severityFromMagnitude(magnitude, minMagnitude float64) int {
	if minMagnitude <= 0 {
		minMagnitude = 1
	}
	sev := 1 + int(4*math.Log10(1+magnitude/minMagnitude))
	if sev < 1 {
		sev = 1
	} else if sev > 10 {
		sev = 10
	}
	return sev
}

// medianAbsDeviation is a robust spread estimate, insensitive to the very
// outliers event detection is looking for.
func medianAbsDeviation(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	med := median(vals)
	devs := make([]float64, len(vals))
	for i, v := range vals {
		devs[i] = math.Abs(v - med)
	}
	return median(devs)
}

func median(vals []float64) float64 {
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
