package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/roadsense-data/surface.report/internal/storage"
)

func testSamples(n int) []storage.QualitySample {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	samples := make([]storage.QualitySample, n)
	for i := range samples {
		samples[i] = storage.QualitySample{
			Timestamp:      base.Add(time.Duration(i) * time.Second),
			Score:          80 + float64(i%10),
			RawScore:       78 + float64(i%10),
			Classification: "Good",
			Color:          "#80FF00",
		}
	}
	return samples
}

func TestNearestSampleIndex(t *testing.T) {
	samples := testSamples(10)
	base := samples[0].Timestamp

	cases := []struct {
		ts   time.Time
		want int
	}{
		{base, 0},
		{base.Add(3 * time.Second), 3},
		{base.Add(3*time.Second + 400*time.Millisecond), 3},
		{base.Add(3*time.Second + 600*time.Millisecond), 4},
		{base.Add(time.Hour), 9},
		{base.Add(-time.Hour), 0},
	}
	for _, c := range cases {
		if got := nearestSampleIndex(samples, c.ts); got != c.want {
			t.Errorf("nearestSampleIndex(%v) = %d, want %d", c.ts, got, c.want)
		}
	}

	if got := nearestSampleIndex(nil, base); got != -1 {
		t.Errorf("nearestSampleIndex(empty) = %d, want -1", got)
	}
}

func TestWriteHTMLReport(t *testing.T) {
	samples := testSamples(30)
	events := []storage.StoredEvent{
		{ID: "ev-1", Kind: "Pothole", Severity: 6, Timestamp: samples[12].Timestamp},
	}

	path := filepath.Join(t.TempDir(), "report.html")
	if err := writeHTMLReport(path, samples, events); err != nil {
		t.Fatalf("writeHTMLReport: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	html := string(data)
	if !strings.Contains(html, "Road Surface Quality") {
		t.Error("report missing title")
	}
	if !strings.Contains(html, "Pothole (severity 6)") {
		t.Error("report missing event mark")
	}
}

func TestWritePNGChart(t *testing.T) {
	samples := testSamples(30)
	events := []storage.StoredEvent{
		{ID: "ev-1", Kind: "Bump", Severity: 4, Timestamp: samples[20].Timestamp},
	}

	path := filepath.Join(t.TempDir(), "report.png")
	if err := writePNGChart(path, samples, events); err != nil {
		t.Fatalf("writePNGChart: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() == 0 {
		t.Error("PNG chart is empty")
	}
}
