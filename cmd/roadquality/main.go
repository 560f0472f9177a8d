// Command roadquality runs the road surface analysis pipeline against a
// replayed sensor log or a synthetic ride, persisting the output stream
// to sqlite and optionally to a CSV track log.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/roadsense-data/surface.report/internal/config"
	"github.com/roadsense-data/surface.report/internal/roadquality"
	"github.com/roadsense-data/surface.report/internal/storage"
	"github.com/roadsense-data/surface.report/internal/tracklog"
)

var (
	dbFile     = flag.String("db", "roadquality.db", "sqlite database path")
	trackFile  = flag.String("track", "", "CSV track log path (disabled when empty)")
	tuningFile = flag.String("tuning", "", "tuning config JSON path (built-in defaults when empty)")
	replayFile = flag.String("replay", "", "sensor log to replay (synthetic ride when empty)")
	interval   = flag.Duration("interval", 200*time.Millisecond, "analysis tick interval")
	seed       = flag.Int64("seed", 1, "synthetic ride seed")
)

func main() {
	flag.Parse()

	cfg := config.EmptyTuningConfig()
	if *tuningFile != "" {
		var err error
		cfg, err = config.LoadTuningConfig(*tuningFile)
		if err != nil {
			log.Fatalf("failed to load tuning config: %v", err)
		}
	}

	store, err := storage.NewStore(*dbFile)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer store.Close()

	sinks := roadquality.MultiSink{store}
	if *trackFile != "" {
		track, err := tracklog.NewWriter(*trackFile)
		if err != nil {
			log.Fatalf("failed to open track log: %v", err)
		}
		defer track.Close()
		sinks = append(sinks, track)
	}

	analyzer, err := roadquality.NewAnalyzer(cfg, nil, sinks)
	if err != nil {
		log.Fatalf("invalid tuning config: %v", err)
	}

	var source sampleSource
	if *replayFile != "" {
		source, err = newReplaySource(*replayFile)
		if err != nil {
			log.Fatalf("failed to open replay log: %v", err)
		}
		log.Printf("replaying sensor log %s", *replayFile)
	} else {
		source = newSyntheticRide(*seed)
		log.Printf("no replay log given; driving a synthetic ride (seed %d)", *seed)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	var ticks int
	for {
		select {
		case <-ctx.Done():
			log.Printf("shutting down after %d ticks", ticks)
			return
		case <-ticker.C:
			if !source.Feed(analyzer) {
				log.Printf("replay log exhausted after %d ticks", ticks)
				return
			}
			rec := analyzer.Tick()
			ticks++
			if ticks%50 == 0 {
				log.Printf("quality=%.1f (%s) texture=%s events=%d",
					rec.Score.Value, rec.Score.Classification, rec.Texture, len(rec.Events))
			}
		}
	}
}
