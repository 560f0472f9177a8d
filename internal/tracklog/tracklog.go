// Package tracklog appends analyzer output to a CSV track file that maps
// directly onto a GPS trace: one row per tick, colored by road quality.
package tracklog

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/roadsense-data/surface.report/internal/roadquality"
)

var header = []string{"latitude", "longitude", "color", "quality_score", "timestamp"}

// Writer appends quality rows to a CSV file. Safe for one goroutine per
// method; rows are flushed as they are written so a crash loses at most
// the in-flight row.
type Writer struct {
	mu   sync.Mutex
	file *os.File
	csv  *csv.Writer
}

// NewWriter opens path for appending, writing the header first when the
// file is new or empty.
func NewWriter(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	w := &Writer{file: f, csv: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := w.csv.Write(header); err != nil {
			f.Close()
			return nil, fmt.Errorf("write track log header: %w", err)
		}
		w.csv.Flush()
		if err := w.csv.Error(); err != nil {
			f.Close()
			return nil, err
		}
	}
	return w, nil
}

// Append writes one row for the record.
func (w *Writer) Append(rec roadquality.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	row := []string{
		strconv.FormatFloat(rec.Position.Latitude, 'f', 6, 64),
		strconv.FormatFloat(rec.Position.Longitude, 'f', 6, 64),
		rec.Color.Hex(),
		strconv.FormatFloat(rec.Score.Value, 'f', 1, 64),
		rec.Timestamp.UTC().Format(time.RFC3339),
	}
	if err := w.csv.Write(row); err != nil {
		return fmt.Errorf("write track log row: %w", err)
	}
	w.csv.Flush()
	return w.csv.Error()
}

// Publish implements roadquality.RecordSink; write failures are logged
// and dropped.
func (w *Writer) Publish(rec roadquality.Record) {
	if err := w.Append(rec); err != nil {
		roadquality.Logf("tracklog: %v", err)
	}
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}
