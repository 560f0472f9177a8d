package main

import (
	"fmt"
	"image/color"
	"os"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/roadsense-data/surface.report/internal/storage"
)

// buildLineChart plots the smoothed and raw score series over the window,
// with detected events marked on the raw series.
func buildLineChart(samples []storage.QualitySample, events []storage.StoredEvent) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Road Quality Report", Width: "1200px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Road Surface Quality",
			Subtitle: fmt.Sprintf("%d samples, %d events", len(samples), len(events)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 100, Name: "Quality"}),
	)

	x := make([]string, len(samples))
	smoothed := make([]opts.LineData, len(samples))
	raw := make([]opts.LineData, len(samples))
	for i, s := range samples {
		x[i] = s.Timestamp.Format("15:04:05")
		smoothed[i] = opts.LineData{Value: s.Score}
		raw[i] = opts.LineData{Value: s.RawScore}
	}

	marks := make([]opts.MarkPointNameCoordItem, 0, len(events))
	for _, ev := range events {
		if idx := nearestSampleIndex(samples, ev.Timestamp); idx >= 0 {
			marks = append(marks, opts.MarkPointNameCoordItem{
				Name:       fmt.Sprintf("%s (severity %d)", ev.Kind, ev.Severity),
				Coordinate: []interface{}{x[idx], samples[idx].RawScore},
			})
		}
	}

	line.SetXAxis(x).
		AddSeries("smoothed", smoothed, charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)})).
		AddSeries("raw", raw,
			charts.WithLineStyleOpts(opts.LineStyle{Opacity: opts.Float(0.4)}),
			charts.WithMarkPointNameCoordItemOpts(marks...))
	return line
}

// nearestSampleIndex finds the sample closest in time to ts. Samples are
// ascending, so a linear scan stopping at the first later sample suffices.
func nearestSampleIndex(samples []storage.QualitySample, ts time.Time) int {
	if len(samples) == 0 {
		return -1
	}
	for i, s := range samples {
		if !s.Timestamp.Before(ts) {
			if i > 0 && ts.Sub(samples[i-1].Timestamp) < s.Timestamp.Sub(ts) {
				return i - 1
			}
			return i
		}
	}
	return len(samples) - 1
}

func writeHTMLReport(path string, samples []storage.QualitySample, events []storage.StoredEvent) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return buildLineChart(samples, events).Render(f)
}

// writePNGChart renders the same window with gonum/plot for consumers
// that cannot embed the interactive HTML.
func writePNGChart(path string, samples []storage.QualitySample, events []storage.StoredEvent) error {
	p := plot.New()
	p.Title.Text = "Road Surface Quality"
	p.X.Label.Text = "Time"
	p.Y.Label.Text = "Quality"
	p.Y.Min, p.Y.Max = 0, 100
	p.X.Tick.Marker = plot.TimeTicks{Format: "15:04:05"}

	pts := make(plotter.XYs, len(samples))
	for i, s := range samples {
		pts[i] = plotter.XY{X: float64(s.Timestamp.Unix()), Y: s.Score}
	}
	scoreLine, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	scoreLine.Width = vg.Points(1)
	scoreLine.Color = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	p.Add(scoreLine)
	p.Legend.Add("quality", scoreLine)

	if len(events) > 0 {
		evPts := make(plotter.XYs, 0, len(events))
		for _, ev := range events {
			if idx := nearestSampleIndex(samples, ev.Timestamp); idx >= 0 {
				evPts = append(evPts, plotter.XY{X: float64(ev.Timestamp.Unix()), Y: samples[idx].Score})
			}
		}
		scatter, err := plotter.NewScatter(evPts)
		if err != nil {
			return err
		}
		scatter.Color = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}
		p.Add(scatter)
		p.Legend.Add("events", scatter)
	}

	p.Legend.Top = true
	return p.Save(10*vg.Inch, 4*vg.Inch, path)
}
