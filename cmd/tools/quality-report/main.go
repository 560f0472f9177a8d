// Command quality-report renders stored road quality history as an HTML
// line chart and, optionally, a PNG for embedding in writeups.
package main

import (
	"flag"
	"log"
	"time"

	"github.com/roadsense-data/surface.report/internal/storage"
)

var (
	dbFile  = flag.String("db", "roadquality.db", "sqlite database path")
	from    = flag.String("from", "", "window start, RFC3339 (default 24h ago)")
	to      = flag.String("to", "", "window end, RFC3339 (default now)")
	outFile = flag.String("out", "quality-report.html", "HTML output path")
	pngFile = flag.String("png", "", "also write a PNG chart to this path")
)

func main() {
	flag.Parse()

	end := time.Now()
	if *to != "" {
		var err error
		end, err = time.Parse(time.RFC3339, *to)
		if err != nil {
			log.Fatalf("bad -to: %v", err)
		}
	}
	start := end.Add(-24 * time.Hour)
	if *from != "" {
		var err error
		start, err = time.Parse(time.RFC3339, *from)
		if err != nil {
			log.Fatalf("bad -from: %v", err)
		}
	}

	store, err := storage.NewStore(*dbFile)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer store.Close()

	samples, err := store.QualitySamplesBetween(start, end)
	if err != nil {
		log.Fatalf("failed to load quality samples: %v", err)
	}
	events, err := store.EventsBetween(start, end)
	if err != nil {
		log.Fatalf("failed to load events: %v", err)
	}
	if len(samples) == 0 {
		log.Fatalf("no quality samples between %s and %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	if err := writeHTMLReport(*outFile, samples, events); err != nil {
		log.Fatalf("failed to write HTML report: %v", err)
	}
	log.Printf("wrote %s (%d samples, %d events)", *outFile, len(samples), len(events))

	if *pngFile != "" {
		if err := writePNGChart(*pngFile, samples, events); err != nil {
			log.Fatalf("failed to write PNG chart: %v", err)
		}
		log.Printf("wrote %s", *pngFile)
	}
}
