package roadquality

import (
	"sync"

	"github.com/roadsense-data/surface.report/internal/config"
	"github.com/roadsense-data/surface.report/internal/timeutil"
)

// RecordSink receives per-tick output records. Sinks run after the tick
// computes, outside any analyzer lock; implementations own their own I/O.
type RecordSink interface {
	Publish(Record)
}

// RecordSinkFunc adapts a function to the RecordSink interface.
type RecordSinkFunc func(Record)

// Publish calls f(rec).
func (f RecordSinkFunc) Publish(rec Record) { f(rec) }

// MultiSink fans a record out to each sink in order.
type MultiSink []RecordSink

// Publish delivers rec to every sink.
func (m MultiSink) Publish(rec Record) {
	for _, s := range m {
		s.Publish(rec)
	}
}

// Analyzer is the front of the analysis engine. It owns the rolling
// sample buffers that producers append into, runs the per-tick pipeline,
// and hands each output record to the injected sink. The analyzer never
// holds a reference back into any acquisition or presentation layer.
type Analyzer struct {
	cfg   *config.TuningConfig
	clock timeutil.Clock
	sink  RecordSink

	calibrator *Calibrator
	scorer     *ScanScorer
	detector   *EventDetector
	classifier *TextureClassifier
	fusion     *FusionEngine

	accelMu sync.Mutex
	accel   *History[AccelSample]

	scanMu   sync.Mutex
	scan     []RangePoint
	scanSeen bool

	stateMu sync.Mutex
	pos     Geolocation
	env     EnvironmentReading
	latest  Record
	hasTick bool
}

// NewAnalyzer wires the pipeline. cfg must already be validated; sink may
// be nil when the caller only needs pull access via Latest.
func NewAnalyzer(cfg *config.TuningConfig, clock timeutil.Clock, sink RecordSink) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	cal := NewCalibrator(cfg)
	return &Analyzer{
		cfg:        cfg,
		clock:      clock,
		sink:       sink,
		calibrator: cal,
		scorer:     NewScanScorer(cfg, cal, clock),
		detector:   NewEventDetector(cfg, cal, clock),
		classifier: NewTextureClassifier(cfg, cal, clock),
		fusion:     NewFusionEngine(cfg, clock),
		accel:      NewHistory[AccelSample](cfg.GetAccelBufferCapacity()),
	}, nil
}

// AppendAccel adds one accelerometer sample to the rolling buffer.
// Producers call this at sensor rate; the critical section is O(1).
func (a *Analyzer) AppendAccel(s AccelSample) {
	a.accelMu.Lock()
	a.accel.Push(s)
	a.accelMu.Unlock()
}

// SetScan replaces the latest range scan. Scans are ephemeral: each sweep
// overwrites the previous one.
func (a *Analyzer) SetScan(points []RangePoint) {
	cp := make([]RangePoint, len(points))
	copy(cp, points)
	a.scanMu.Lock()
	a.scan = cp
	a.scanSeen = a.scanSeen || len(cp) > 0
	a.scanMu.Unlock()
}

// SetPosition updates the current GPS fix.
func (a *Analyzer) SetPosition(pos Geolocation) {
	a.stateMu.Lock()
	a.pos = pos
	a.stateMu.Unlock()
}

// SetEnvironment updates the latest ambient readings.
func (a *Analyzer) SetEnvironment(env EnvironmentReading) {
	a.stateMu.Lock()
	a.env = env
	a.stateMu.Unlock()
}

// Calibrate runs a calibration pass over the current accelerometer
// buffer. Failure leaves prior calibration untouched and is not an error.
func (a *Analyzer) Calibrate() bool {
	window := a.accelSnapshot()
	a.stateMu.Lock()
	env := a.env
	a.stateMu.Unlock()
	return a.calibrator.Calibrate(window, env)
}

// Calibration returns the current calibration snapshot.
func (a *Analyzer) Calibration() CalibrationState {
	return a.calibrator.State()
}

// Tick runs one analysis pass: snapshot the buffers, score both sources,
// detect and deduplicate events, classify texture, fuse, and publish.
// Analysis failures degrade to held values; Tick never fails.
func (a *Analyzer) Tick() Record {
	window := a.accelSnapshot()

	a.scanMu.Lock()
	scan := a.scan
	scanSeen := a.scanSeen
	a.scanMu.Unlock()

	a.stateMu.Lock()
	pos := a.pos
	env := a.env
	a.stateMu.Unlock()

	// All computation happens on the snapshots, outside the buffer locks.
	var scanScore *float64
	var events []RoadEvent
	if scanSeen {
		score, scanEvents := a.scorer.Score(scan, pos)
		scanScore = &score
		events = append(events, scanEvents...)
	}

	var accelScore *float64
	if q, ok := a.detector.Quality(window, env); ok {
		accelScore = &q
	}
	events = append(events, a.detector.Detect(window, env, pos)...)

	texture := a.classifier.Classify(window)

	score, emitted := a.fusion.Tick(scanScore, accelScore, texture, events)

	rec := Record{
		Timestamp:         a.clock.Now(),
		Score:             score,
		Color:             ColorForScore(score.Raw),
		Events:            emitted,
		Texture:           texture.Label,
		DominantFrequency: texture.DominantFrequency,
		Position:          pos,
	}

	a.stateMu.Lock()
	a.latest = rec
	a.hasTick = true
	a.stateMu.Unlock()

	if a.sink != nil {
		a.sink.Publish(rec)
	}
	return rec
}

// Latest returns the most recent output record, pull-style, for consumers
// that poll instead of subscribing.
func (a *Analyzer) Latest() (Record, bool) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.latest, a.hasTick
}

func (a *Analyzer) accelSnapshot() []AccelSample {
	a.accelMu.Lock()
	defer a.accelMu.Unlock()
	return a.accel.Snapshot()
}
