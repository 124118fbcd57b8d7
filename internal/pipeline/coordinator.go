package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/civil"

	"github.com/Satmapwise/parcels-processing-sub001/internal/catalog"
	"github.com/Satmapwise/parcels-processing-sub001/internal/config"
	"github.com/Satmapwise/parcels-processing-sub001/internal/journal"
	"github.com/Satmapwise/parcels-processing-sub001/internal/workdir"
)

// CatalogReader is the subset of catalog.Gateway the coordinator needs,
// defined here so Coordinator stays testable with a fake gateway.
type CatalogReader interface {
	FetchRow(ctx context.Context, layer, county, city string) (catalog.Row, error)
}

// Coordinator runs the four-stage pipeline over a resolved entity queue,
// strictly sequentially (spec §4.10, §5 "Scheduling model").
type Coordinator struct {
	Config  config.PipelineConfig
	Catalog CatalogReader
	Journal *journal.Journal
	Logger  *slog.Logger
	Today   civil.Date

	Download      DownloadStage
	Metadata      MetadataStage
	Processing    ProcessingStage
	CatalogUpdate CatalogUpdateStage
}

// Run processes every entity in queue, in order, and returns one
// EntityResult per entity. It never returns an error itself: per-entity
// failures are recorded in the results and the journal, not propagated.
func (c *Coordinator) Run(ctx context.Context, queue []string) []EntityResult {
	start := time.Now()

	if err := c.Journal.Initialize(queue); err != nil {
		c.Logger.Error("journal initialize failed", "error", err)
	}

	results := make([]EntityResult, 0, len(queue))
	for _, entity := range queue {
		entityStart := time.Now()
		result := c.runEntity(ctx, entity)
		result.RuntimeSeconds = time.Since(entityStart).Seconds()
		results = append(results, result)
	}

	if c.Config.RunSummary {
		if err := c.Journal.Finalize(time.Since(start), time.Now()); err != nil {
			c.Logger.Error("journal finalize failed", "error", err)
		}
	}

	successful := 0
	for _, r := range results {
		if r.Status == StatusSuccess {
			successful++
		}
	}
	c.Logger.Info("pipeline run complete", "successful", successful, "total", len(results))

	return results
}

func (c *Coordinator) runEntity(ctx context.Context, entity string) EntityResult {
	resolved, err := workdir.Resolve(c.Config.Layer, entity)
	if err != nil {
		return c.fail(entity, "", "", fmt.Sprintf("work directory resolution failed: %v", err))
	}

	if !c.Config.TestMode {
		if err := os.MkdirAll(resolved.WorkDir, 0o755); err != nil {
			return c.fail(entity, resolved.County, resolved.City, fmt.Sprintf("could not create work directory: %v", err))
		}
	}

	logger, closeLogger := c.entityLogger(resolved)
	defer closeLogger()

	row, err := c.Catalog.FetchRow(ctx, c.Config.Layer, resolved.County, resolved.City)
	if err != nil {
		return c.fail(entity, resolved.County, resolved.City, fmt.Sprintf("catalog lookup failed: %v", err))
	}

	kind := ClassifyFormat(row.Format)
	if kind == FormatExcluded {
		logger.Info("format excluded; entity skipped", "format", row.Format)
		return EntityResult{Layer: c.Config.Layer, Entity: entity, Status: StatusSkipped, Warning: "Format excluded"}
	}

	ectx := EntityContext{
		Config:  c.Config,
		Logger:  logger,
		WorkDir: resolved.WorkDir,
		Layer:   c.Config.Layer,
		Entity:  entity,
		County:  resolved.County,
		City:    resolved.City,
	}

	var zipPath string

	if c.Config.RunDownload {
		downloadResult, err := c.Download.Run(ctx, ectx, row)
		if skip, ok := asSkip(err); ok {
			return c.handleSkip(ectx, kind, skip)
		}
		if err != nil {
			c.recordStage(ectx, journal.StageDownload, journal.StatusFailed, err.Error())
			return EntityResult{Layer: c.Config.Layer, Entity: entity, Status: StatusFailure, Error: truncateError(err.Error())}
		}
		zipPath = downloadResult.ZipPath
		c.recordStage(ectx, journal.StageDownload, journal.StatusSuccess, "")
	}

	var metadataRecord MetadataRecord
	if c.Config.RunMetadata {
		record, err := c.Metadata.Run(ctx, ectx, row, kind)
		if skip, ok := asSkip(err); ok {
			return c.handleSkip(ectx, kind, skip)
		}
		if err != nil {
			c.recordStage(ectx, journal.ClassifyFailureStage(err.Error()), journal.StatusFailed, err.Error())
			return EntityResult{Layer: c.Config.Layer, Entity: entity, Status: StatusFailure, Error: truncateError(err.Error())}
		}
		metadataRecord = record
	}

	if kind == FormatMetadataOnly {
		c.recordStage(ectx, journal.StageProcessing, journal.StatusSkipped, fmt.Sprintf("Format '%s' skips processing stage", row.Format))
	} else if c.Config.RunProcessing {
		result, err := c.Processing.Run(ctx, ectx, row.ProcessingComments, c.Config.RunDownload)
		if err != nil {
			c.recordStage(ectx, journal.StageProcessing, journal.StatusFailed, err.Error())
			return EntityResult{Layer: c.Config.Layer, Entity: entity, Status: StatusFailure, Error: truncateError(err.Error())}
		}
		if result.Skipped {
			c.recordStage(ectx, journal.StageProcessing, journal.StatusSkipped, result.SkippedWhy)
		} else {
			c.recordStage(ectx, journal.StageProcessing, journal.StatusSuccess, "")
		}
	}

	if c.Config.RunUpload {
		if err := c.CatalogUpdate.Run(ctx, ectx, kind, metadataRecord, zipPath, c.Today); err != nil {
			c.recordStage(ectx, journal.StageUpload, journal.StatusFailed, err.Error())
			return EntityResult{Layer: c.Config.Layer, Entity: entity, Status: StatusFailure, Error: truncateError(err.Error())}
		}
		c.recordStageWithDate(ectx, journal.StageUpload, journal.StatusSuccess, "", metadataRecord.DataDate)
	}

	return EntityResult{Layer: c.Config.Layer, Entity: entity, Status: StatusSuccess, DataDate: metadataRecord.DataDate}
}

// handleSkip records a NND outcome: download_status=NND with the skip's
// source as error_message, then best-effort invokes the Catalog Update
// Stage with an empty metadata record so publish_date is still refreshed
// (spec §4.10 step 5).
func (c *Coordinator) handleSkip(ectx EntityContext, kind FormatKind, skip *SkipEntity) EntityResult {
	c.recordStage(ectx, journal.StageDownload, journal.StatusNND, skip.Source)

	if c.Config.RunUpload {
		if err := c.CatalogUpdate.Run(context.Background(), ectx, kind, MetadataRecord{}, "", c.Today); err != nil {
			ectx.Logger.Warn("best-effort publish-date refresh failed on NND", "error", err)
		}
	}

	return EntityResult{Layer: ectx.Layer, Entity: ectx.Entity, Status: StatusSkipped, Warning: skip.Reason}
}

func asSkip(err error) (*SkipEntity, bool) {
	var skip *SkipEntity
	ok := errors.As(err, &skip)
	return skip, ok
}

func (c *Coordinator) recordStage(ectx EntityContext, stage journal.Stage, status journal.Status, errMsg string) {
	c.recordStageWithDate(ectx, stage, status, errMsg, nil)
}

func (c *Coordinator) recordStageWithDate(ectx EntityContext, stage journal.Stage, status journal.Status, errMsg string, dataDate *civil.Date) {
	if err := c.Journal.UpdateStage(ectx.County, ectx.City, stage, status, truncateError(errMsg), dataDate, time.Now()); err != nil {
		ectx.Logger.Error("journal update failed", "error", err)
	}
}

func (c *Coordinator) fail(entity, county, city, reason string) EntityResult {
	c.Logger.Error("entity failed before stages could run", "entity", entity, "reason", reason)
	if county != "" {
		_ = c.Journal.UpdateStage(county, city, journal.ClassifyFailureStage(reason), journal.StatusFailed, truncateError(reason), nil, time.Now())
	}
	return EntityResult{Layer: c.Config.Layer, Entity: entity, Status: StatusFailure, Error: truncateError(reason)}
}

// entityLogger builds the per-entity logger (spec §2 ambient stack,
// "per-entity log file"). When --no-log-isolation is set, the shared
// coordinator logger is reused instead.
func (c *Coordinator) entityLogger(resolved workdir.Resolved) (logger *slog.Logger, closeFn func()) {
	if c.Config.NoLogIsolation {
		return c.Logger, func() {}
	}

	logPath := filepath.Join(resolved.WorkDir, c.Config.Layer+".log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		c.Logger.Warn("could not open per-entity log file; using shared logger", "path", logPath, "error", err)
		return c.Logger, func() {}
	}

	level := slog.LevelInfo
	if c.Config.Debug {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})
	return slog.New(handler), func() { f.Close() }
}
