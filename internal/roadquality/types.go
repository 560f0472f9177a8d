// Package roadquality implements the sensor-fusion road surface analysis
// engine: calibration, range-scan geometry scoring, accelerometer event
// detection, spectral texture classification, and the fused quality signal.
package roadquality

import "time"

// RangePoint is one angle/distance return from the range scanner.
// Angle is the raw sensor angle in degrees [0,360) measured clockwise;
// Distance is in millimetres.
type RangePoint struct {
	AngleDeg   float64
	DistanceMM float64
}

// AccelSample is one vertical-axis accelerometer reading in g.
type AccelSample float64

// Geolocation is a GPS fix. Zero lat/lon means "no fix".
type Geolocation struct {
	Latitude  float64
	Longitude float64
}

// Valid reports whether the fix carries usable coordinates.
func (g Geolocation) Valid() bool { return g.Latitude != 0 || g.Longitude != 0 }

// EnvironmentReading carries optional ambient sensor values. Nil fields
// mean the corresponding sensor produced nothing this cycle.
type EnvironmentReading struct {
	TemperatureC *float64
	PressureHPa  *float64
}

// CalibrationState is the baseline/threshold snapshot owned by the
// Calibrator. It is copied out whole; callers never see partial updates.
type CalibrationState struct {
	Baseline          float64 // mean vertical acceleration, g
	Threshold         float64 // detection threshold before compensation, g
	TemperatureFactor float64
	PressureFactor    float64
	Calibrated        bool
}

// EffectiveThreshold is the detection threshold with temperature
// compensation applied.
func (s CalibrationState) EffectiveThreshold() float64 {
	return s.Threshold * s.TemperatureFactor
}

// EventKind is the closed set of detectable road events.
type EventKind int

const (
	EventPothole EventKind = iota
	EventBump
)

func (k EventKind) String() string {
	switch k {
	case EventPothole:
		return "Pothole"
	case EventBump:
		return "Bump"
	default:
		return "Unknown"
	}
}

// EventSource identifies which sensor produced an event.
type EventSource int

const (
	SourceAccelerometer EventSource = iota
	SourceRangeScan
)

func (s EventSource) String() string {
	switch s {
	case SourceAccelerometer:
		return "Accelerometer"
	case SourceRangeScan:
		return "RangeScan"
	default:
		return "Unknown"
	}
}

// RoadEvent is one detected surface anomaly. Immutable once created.
type RoadEvent struct {
	ID        string
	Kind      EventKind
	Severity  int     // 1..10
	Magnitude float64 // g for accel events, mm residual for scan events
	Source    EventSource
	// Confidence is populated for scan-derived events and by the fusion
	// dedup stage; 0 means "not assessed".
	Confidence float64
	Timestamp  time.Time
	Latitude   float64
	Longitude  float64
}

// Classification is the qualitative label for a quality score.
type Classification int

const (
	ClassVeryPoor Classification = iota
	ClassPoor
	ClassFair
	ClassGood
	ClassExcellent
)

func (c Classification) String() string {
	switch c {
	case ClassExcellent:
		return "Excellent"
	case ClassGood:
		return "Good"
	case ClassFair:
		return "Fair"
	case ClassPoor:
		return "Poor"
	default:
		return "Very Poor"
	}
}

// TextureLabel is the qualitative surface texture from spectral analysis.
type TextureLabel int

const (
	TextureUnknown TextureLabel = iota
	TextureUndulating
	TextureRough
	TextureFineGrained
)

func (t TextureLabel) String() string {
	switch t {
	case TextureUndulating:
		return "Undulating"
	case TextureRough:
		return "Rough"
	case TextureFineGrained:
		return "Fine-grained"
	default:
		return "Unknown"
	}
}

// QualityScore is one fused, classified output value. Recomputed each
// tick; never mutated in place.
type QualityScore struct {
	Value          float64 // smoothed, clamped [0,100]
	Raw            float64 // unsmoothed combined value this tick
	Classification Classification
	ScanComponent  *float64 // nil when the source was absent this tick
	AccelComponent *float64
}

// Record is the per-tick output handed to sinks: the fused score plus
// everything a dashboard or store needs to render the moment.
type Record struct {
	Timestamp         time.Time
	Score             QualityScore
	Color             Color
	Events            []RoadEvent
	Texture           TextureLabel
	DominantFrequency float64 // Hz, 0 when no dominant peak
	Position          Geolocation
}
