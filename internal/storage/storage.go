// Package storage persists the analyzer output stream to sqlite for the
// offline reporting tools.
package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/roadsense-data/surface.report/internal/roadquality"
)

type Store struct {
	*sql.DB
}

// NewStore opens (creating if needed) the sqlite database at path and
// brings the schema up to the latest migration.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Store{db}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// QualitySample is one stored fused-score row.
type QualitySample struct {
	Timestamp         time.Time
	Latitude          float64
	Longitude         float64
	Score             float64
	RawScore          float64
	Classification    string
	Color             string
	Texture           string
	DominantFrequency float64
}

// InsertQualitySample stores the fused score portion of one record.
func (s *Store) InsertQualitySample(rec roadquality.Record) error {
	_, err := s.Exec(
		`INSERT INTO quality_samples (
			timestamp_ns, latitude, longitude, score, raw_score,
			classification, color, texture, dominant_freq_hz
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp.UnixNano(),
		rec.Position.Latitude,
		rec.Position.Longitude,
		rec.Score.Value,
		rec.Score.Raw,
		rec.Score.Classification.String(),
		rec.Color.Hex(),
		rec.Texture.String(),
		rec.DominantFrequency,
	)
	if err != nil {
		return fmt.Errorf("insert quality sample: %w", err)
	}
	return nil
}

// InsertEvent stores one deduplicated road event. Re-inserting the same
// event ID is a no-op so sinks can replay safely.
func (s *Store) InsertEvent(ev roadquality.RoadEvent) error {
	_, err := s.Exec(
		`INSERT OR IGNORE INTO road_events (
			id, kind, severity, magnitude, source, confidence,
			timestamp_ns, latitude, longitude
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID,
		ev.Kind.String(),
		ev.Severity,
		ev.Magnitude,
		ev.Source.String(),
		ev.Confidence,
		ev.Timestamp.UnixNano(),
		ev.Latitude,
		ev.Longitude,
	)
	if err != nil {
		return fmt.Errorf("insert road event: %w", err)
	}
	return nil
}

// QualitySamplesBetween returns stored samples in [from, to), oldest
// first.
func (s *Store) QualitySamplesBetween(from, to time.Time) ([]QualitySample, error) {
	rows, err := s.Query(
		`SELECT timestamp_ns, latitude, longitude, score, raw_score,
			classification, color, texture, dominant_freq_hz
		FROM quality_samples
		WHERE timestamp_ns >= ? AND timestamp_ns < ?
		ORDER BY timestamp_ns ASC`,
		from.UnixNano(), to.UnixNano(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []QualitySample
	for rows.Next() {
		var (
			ns     int64
			sample QualitySample
		)
		if err := rows.Scan(
			&ns,
			&sample.Latitude,
			&sample.Longitude,
			&sample.Score,
			&sample.RawScore,
			&sample.Classification,
			&sample.Color,
			&sample.Texture,
			&sample.DominantFrequency,
		); err != nil {
			return nil, err
		}
		sample.Timestamp = time.Unix(0, ns).UTC()
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}

// StoredEvent is one stored road event row. Kind and source keep their
// stored labels; consumers render them, they do not branch on them.
type StoredEvent struct {
	ID         string
	Kind       string
	Severity   int
	Magnitude  float64
	Source     string
	Confidence float64
	Timestamp  time.Time
	Latitude   float64
	Longitude  float64
}

// EventsBetween returns stored events in [from, to), oldest first.
func (s *Store) EventsBetween(from, to time.Time) ([]StoredEvent, error) {
	rows, err := s.Query(
		`SELECT id, kind, severity, magnitude, source, confidence,
			timestamp_ns, latitude, longitude
		FROM road_events
		WHERE timestamp_ns >= ? AND timestamp_ns < ?
		ORDER BY timestamp_ns ASC`,
		from.UnixNano(), to.UnixNano(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []StoredEvent
	for rows.Next() {
		var (
			ns int64
			ev StoredEvent
		)
		if err := rows.Scan(
			&ev.ID,
			&ev.Kind,
			&ev.Severity,
			&ev.Magnitude,
			&ev.Source,
			&ev.Confidence,
			&ns,
			&ev.Latitude,
			&ev.Longitude,
		); err != nil {
			return nil, err
		}
		ev.Timestamp = time.Unix(0, ns).UTC()
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// Publish implements roadquality.RecordSink. Storage failures are logged
// and dropped; the analysis loop never blocks on the disk.
func (s *Store) Publish(rec roadquality.Record) {
	if err := s.InsertQualitySample(rec); err != nil {
		roadquality.Logf("storage: %v", err)
	}
	for _, ev := range rec.Events {
		if err := s.InsertEvent(ev); err != nil {
			roadquality.Logf("storage: %v", err)
		}
	}
}
