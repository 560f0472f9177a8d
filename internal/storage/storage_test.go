package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roadsense-data/surface.report/internal/roadquality"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord(ts time.Time, score float64) roadquality.Record {
	return roadquality.Record{
		Timestamp: ts,
		Score: roadquality.QualityScore{
			Value:          score,
			Raw:            score,
			Classification: roadquality.ClassGood,
		},
		Color:             roadquality.ColorForScore(score),
		Texture:           roadquality.TextureRough,
		DominantFrequency: 7.5,
		Position:          roadquality.Geolocation{Latitude: 46.77, Longitude: 23.59},
	}
}

func TestNewStore_MigratesToLatest(t *testing.T) {
	s := newTestStore(t)

	version, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	if dirty {
		t.Error("fresh store is dirty")
	}
	if version == 0 {
		t.Error("fresh store reports version 0, want migrations applied")
	}

	// Re-running on an already-migrated database is a no-op.
	if err := s.MigrateUp(); err != nil {
		t.Errorf("second MigrateUp: %v", err)
	}
}

func TestQualitySamples_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if err := s.InsertQualitySample(testRecord(ts, 82.5)); err != nil {
		t.Fatalf("InsertQualitySample: %v", err)
	}

	samples, err := s.QualitySamplesBetween(ts.Add(-time.Minute), ts.Add(time.Minute))
	if err != nil {
		t.Fatalf("QualitySamplesBetween: %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("got %d samples, want 1", len(samples))
	}

	got := samples[0]
	if !got.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, ts)
	}
	if got.Score != 82.5 || got.RawScore != 82.5 {
		t.Errorf("scores = %v/%v, want 82.5", got.Score, got.RawScore)
	}
	if got.Classification != "Good" {
		t.Errorf("Classification = %q, want %q", got.Classification, "Good")
	}
	if got.Color != roadquality.ColorForScore(82.5).Hex() {
		t.Errorf("Color = %q", got.Color)
	}
	if got.Texture != "Rough" || got.DominantFrequency != 7.5 {
		t.Errorf("texture = %q/%vHz", got.Texture, got.DominantFrequency)
	}
	if got.Latitude != 46.77 || got.Longitude != 23.59 {
		t.Errorf("position = %v,%v", got.Latitude, got.Longitude)
	}
}

func TestQualitySamplesBetween_BoundsAndOrder(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Inserted out of order on purpose.
	for _, offset := range []time.Duration{2 * time.Minute, 0, time.Minute, 5 * time.Minute} {
		if err := s.InsertQualitySample(testRecord(base.Add(offset), 70)); err != nil {
			t.Fatal(err)
		}
	}

	// Half-open window: excludes the 5-minute sample at the upper bound.
	samples, err := s.QualitySamplesBetween(base, base.Add(5*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 3 {
		t.Fatalf("got %d samples, want 3 inside the window", len(samples))
	}
	for i := 1; i < len(samples); i++ {
		if samples[i].Timestamp.Before(samples[i-1].Timestamp) {
			t.Errorf("samples out of order at %d: %v after %v", i, samples[i].Timestamp, samples[i-1].Timestamp)
		}
	}
}

func TestInsertEvent_ReplaySafe(t *testing.T) {
	s := newTestStore(t)
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	ev := roadquality.RoadEvent{
		ID:         "ev-1",
		Kind:       roadquality.EventPothole,
		Severity:   6,
		Magnitude:  -1.8,
		Source:     roadquality.SourceAccelerometer,
		Confidence: 0.9,
		Timestamp:  ts,
		Latitude:   46.77,
		Longitude:  23.59,
	}
	if err := s.InsertEvent(ev); err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}
	if err := s.InsertEvent(ev); err != nil {
		t.Fatalf("replayed InsertEvent: %v", err)
	}

	events, err := s.EventsBetween(ts.Add(-time.Minute), ts.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want the replay collapsed to 1", len(events))
	}
	got := events[0]
	if got.Kind != "Pothole" || got.Source != "Accelerometer" {
		t.Errorf("kind/source = %q/%q", got.Kind, got.Source)
	}
	if got.Severity != 6 || got.Magnitude != -1.8 || got.Confidence != 0.9 {
		t.Errorf("event fields = %+v", got)
	}
}

func TestPublish_StoresRecordAndEvents(t *testing.T) {
	s := newTestStore(t)
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	rec := testRecord(ts, 55)
	rec.Events = []roadquality.RoadEvent{
		{ID: "ev-a", Kind: roadquality.EventBump, Severity: 4, Source: roadquality.SourceRangeScan, Timestamp: ts},
		{ID: "ev-b", Kind: roadquality.EventPothole, Severity: 7, Source: roadquality.SourceAccelerometer, Timestamp: ts},
	}
	s.Publish(rec)

	samples, err := s.QualitySamplesBetween(ts.Add(-time.Minute), ts.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 1 {
		t.Errorf("got %d samples, want 1", len(samples))
	}
	events, err := s.EventsBetween(ts.Add(-time.Minute), ts.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Errorf("got %d events, want 2", len(events))
	}
}
