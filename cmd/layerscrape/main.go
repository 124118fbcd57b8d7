// Command layerscrape drives the four-stage download/metadata/processing/
// catalog-update pipeline for one GIS layer across a queue of Florida
// county/city entities.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/civil"

	"github.com/Satmapwise/parcels-processing-sub001/internal/catalog"
	"github.com/Satmapwise/parcels-processing-sub001/internal/config"
	"github.com/Satmapwise/parcels-processing-sub001/internal/journal"
	"github.com/Satmapwise/parcels-processing-sub001/internal/normalize"
	"github.com/Satmapwise/parcels-processing-sub001/internal/pipeline"
	"github.com/Satmapwise/parcels-processing-sub001/internal/queue"
	"github.com/Satmapwise/parcels-processing-sub001/internal/workdir"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Parse(os.Args[1:], config.Getenv)
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	gateway, err := catalog.New(ctx, cfg.PGConnection)
	if err != nil {
		logger.Error("failed to connect to catalog", "error", err)
		os.Exit(1)
	}
	defer gateway.Close()

	queuedEntities, err := queue.Build(ctx, gateway, cfg.Layer, cfg.Entities, func(msg string) { logger.Warn(msg) })
	if err != nil {
		logger.Error("failed to build entity queue", "error", err)
		os.Exit(1)
	}
	logger.Info("queue resolved", "layer", cfg.Layer, "count", len(queuedEntities))

	var runner pipeline.Runner = pipeline.ExecRunner{}
	if cfg.TestMode {
		runner = pipeline.TestRunner{Logger: logger}
	}

	today := civil.DateOf(time.Now())
	j := journal.New(workdir.LayerRoot(cfg.Layer), cfg.Layer)

	coord := &pipeline.Coordinator{
		Config:  cfg,
		Catalog: gateway,
		Journal: j,
		Logger:  logger,
		Today:   today,

		Download: pipeline.DownloadStage{Runner: runner},
		Metadata: pipeline.MetadataStage{
			Runner: runner,
			Today:  today,
			Prior: func(layer, entity string) (civil.Date, bool) {
				county, city, ok := normalize.SplitEntity(entity)
				if !ok {
					return civil.Date{}, false
				}
				return j.DataDateFor(county, city)
			},
		},
		Processing:    pipeline.ProcessingStage{Runner: runner},
		CatalogUpdate: pipeline.CatalogUpdateStage{Runner: runner},
	}

	results := coord.Run(ctx, queuedEntities)

	successful := 0
	for _, r := range results {
		if r.Status == pipeline.StatusSuccess {
			successful++
		}
	}
	logger.Info("run finished", "successful", successful, "total", len(results))
}
