package roadquality

import (
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/stat"

	"github.com/roadsense-data/surface.report/internal/config"
	"github.com/roadsense-data/surface.report/internal/timeutil"
)

// Texture is the result of one spectral classification pass.
type Texture struct {
	DominantFrequency float64 // Hz, 0 when no dominant peak has been seen
	Label             TextureLabel
	// Adjustment is the small bounded contribution this texture makes to
	// the fused score. Never an override.
	Adjustment float64
}

// TextureClassifier maps the vibration spectrum onto qualitative surface
// texture labels. The FFT is wall-clock gated; calls inside the gate
// return the cached classification.
type TextureClassifier struct {
	cfg   *config.TuningConfig
	cal   *Calibrator
	clock timeutil.Clock

	mu           sync.Mutex
	buffer       *History[float64]
	fft          *fourier.FFT
	lastComputed time.Time
	last         Texture
}

// NewTextureClassifier builds a classifier. cal may be nil; the window is
// detrended by the calibration baseline when one exists.
func NewTextureClassifier(cfg *config.TuningConfig, cal *Calibrator, clock timeutil.Clock) *TextureClassifier {
	return &TextureClassifier{
		cfg:    cfg,
		cal:    cal,
		clock:  clock,
		buffer: NewHistory[float64](cfg.GetSpectralWindowSize()),
	}
}

// Last returns the cached classification without recomputing.
func (t *TextureClassifier) Last() Texture {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// Classify folds the newest samples into the rolling spectral window and,
// when the gate allows, recomputes the dominant frequency and texture
// label. Starved or gated calls return the previous classification.
func (t *TextureClassifier) Classify(recent []AccelSample) Texture {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Extend the window with the newest samples regardless of gating so
	// the spectrum stays fresh when the gate opens.
	feed := recent
	if len(feed) > 10 {
		feed = feed[len(feed)-10:]
	}
	for _, s := range feed {
		t.buffer.Push(float64(s))
	}

	if !t.lastComputed.IsZero() && t.clock.Since(t.lastComputed) < t.cfg.GetSpectralGate() {
		return t.last
	}
	if t.buffer.Len() < t.cfg.GetMinSpectralSamples() {
		return t.last
	}
	t.lastComputed = t.clock.Now()

	signal := t.buffer.Snapshot()

	// Detrend: calibration baseline when available, window mean otherwise.
	// Either way the DC component must go before the transform.
	baseline := stat.Mean(signal, nil)
	if state := t.calState(); state.Calibrated {
		baseline = state.Baseline
	}
	for i := range signal {
		signal[i] -= baseline
	}

	// Hann taper limits spectral leakage from the non-periodic window.
	window.Hann(signal)

	n := len(signal)
	if t.fft == nil || t.fft.Len() != n {
		t.fft = fourier.NewFFT(n)
	}
	coeffs := t.fft.Coefficients(nil, signal)

	freq, ok := t.dominantFrequency(coeffs, n)
	if !ok {
		// Pure noise floor: no dominant frequency, previous label holds.
		return t.last
	}

	label := t.labelForFrequency(freq)
	next := Texture{
		DominantFrequency: freq,
		Label:             label,
		Adjustment:        t.adjustmentForLabel(label),
	}
	if t.cfg.GetDebug() && next.Label != t.last.Label {
		Logf("road texture: %s (dominant freq %.1fHz)", next.Label, freq)
	}
	t.last = next
	return next
}

func (t *TextureClassifier) calState() CalibrationState {
	if t.cal == nil {
		return CalibrationState{}
	}
	return t.cal.State()
}

// dominantFrequency finds the strongest non-DC spectral peak. Peaks below
// the configured fraction of the spectrum maximum are rejected as noise.
func (t *TextureClassifier) dominantFrequency(coeffs []complex128, n int) (float64, bool) {
	if len(coeffs) < 3 {
		return 0, false
	}

	// Magnitude spectrum, not power: peak_relative_height is a fraction
	// of the largest magnitude.
	mags := make([]float64, len(coeffs))
	maxMag := 0.0
	for i := 1; i < len(coeffs); i++ { // skip DC
		mags[i] = math.Hypot(real(coeffs[i]), imag(coeffs[i]))
		if mags[i] > maxMag {
			maxMag = mags[i]
		}
	}
	if maxMag == 0 {
		return 0, false
	}

	minHeight := maxMag * t.cfg.GetPeakRelativeHeight()
	bestIdx, bestMag := 0, 0.0
	for i := 1; i < len(mags)-1; i++ {
		if mags[i] >= minHeight && mags[i] >= mags[i-1] && mags[i] >= mags[i+1] && mags[i] > bestMag {
			bestIdx, bestMag = i, mags[i]
		}
	}
	if bestIdx == 0 {
		return 0, false
	}

	return float64(bestIdx) * t.cfg.GetSampleRateHz() / float64(n), true
}

func (t *TextureClassifier) labelForFrequency(freq float64) TextureLabel {
	switch {
	case freq < t.cfg.GetLowBandMaxHz():
		return TextureUndulating
	case freq < t.cfg.GetMidBandMaxHz():
		return TextureRough
	default:
		return TextureFineGrained
	}
}

// adjustmentForLabel converts the label into a bounded point delta on the
// fused score.
func (t *TextureClassifier) adjustmentForLabel(label TextureLabel) float64 {
	var adj float64
	switch label {
	case TextureUndulating:
		adj = -4
	case TextureRough:
		adj = -2
	case TextureFineGrained:
		adj = 2
	}
	limit := t.cfg.GetTextureAdjustmentLimit()
	if adj > limit {
		adj = limit
	} else if adj < -limit {
		adj = -limit
	}
	return adj
}
