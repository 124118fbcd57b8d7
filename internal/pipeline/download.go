package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Satmapwise/parcels-processing-sub001/internal/catalog"
)

// DownloadResult carries the artifact the Catalog Update Stage needs: the
// newest zip file found after download, if any (spec §4.5 step 6).
type DownloadResult struct {
	ZipPath string
}

// DownloadStage runs the Download Stage (spec §4.5).
type DownloadStage struct {
	Runner Runner
}

// Run executes the download stage for one entity. A *SkipEntity return
// means NND was detected and --process-anyway was not set; a
// *DownloadError return means the stage failed outright.
func (s DownloadStage) Run(ctx context.Context, ectx EntityContext, row catalog.Row) (DownloadResult, error) {
	kind := ClassifyFormat(row.Format)

	before, err := snapshotDir(ectx.WorkDir)
	if err != nil && !ectx.Config.TestMode {
		ectx.Logger.Warn("could not snapshot work directory before download", "error", err)
	}

	result, err := s.invokeDownloader(ctx, ectx, row, kind)
	if err != nil {
		return DownloadResult{}, fmt.Errorf("download: invoke downloader: %w", err)
	}

	verdict := ClassifyDownload(result, kind)
	switch verdict.Kind {
	case VerdictNND:
		if !ectx.Config.ProcessAnyway {
			return DownloadResult{}, &SkipEntity{
				Layer: ectx.Layer, Entity: ectx.Entity,
				Reason: "No new data available from server",
				Source: "Download command: no new data",
			}
		}
		ectx.Logger.Info("NND signaled but --process-anyway set; continuing", "entity", ectx.Entity)
	case VerdictDeprecated:
		return DownloadResult{}, &DownloadError{Layer: ectx.Layer, Entity: ectx.Entity, Reason: verdict.Reason}
	case VerdictFail:
		return DownloadResult{}, &DownloadError{Layer: ectx.Layer, Entity: ectx.Entity, Reason: verdict.Reason}
	case VerdictSuccess:
	}

	s.runSourceComments(ctx, ectx, row)

	if !ectx.Config.TestMode {
		after, err := snapshotDir(ectx.WorkDir)
		if err == nil {
			if !ectx.Config.ProcessAnyway && !changed(before, after) {
				return DownloadResult{}, &DownloadError{Layer: ectx.Layer, Entity: ectx.Entity, Reason: "No files changed during download"}
			}
		}

		if kind == FormatArcGIS {
			if err := validateGeoJSON(ectx.WorkDir, row.TableName); err != nil {
				return DownloadResult{}, &DownloadError{Layer: ectx.Layer, Entity: ectx.Entity, Reason: err.Error()}
			}
		}
	}

	zipPath, _ := findLatestZip(ectx.WorkDir)
	return DownloadResult{ZipPath: zipPath}, nil
}

func (s DownloadStage) invokeDownloader(ctx context.Context, ectx EntityContext, row catalog.Row, kind FormatKind) (CommandResult, error) {
	if kind == FormatArcGIS {
		return s.Runner.Run(ctx, ectx.WorkDir, "python3", "download_tools/ags_extract_data2.py", row.TableName, "delete", "15")
	}
	return s.Runner.Run(ctx, ectx.WorkDir, "python3", "download_tools/download_data.py", row.Resource)
}

// runSourceComments runs catalog-supplied source_comments between download
// and metadata. Failures are warnings, not errors (spec §4.5 step 4).
func (s DownloadStage) runSourceComments(ctx context.Context, ectx EntityContext, row catalog.Row) {
	cmds := ParseCommandList(row.SourceComments)
	for _, cmd := range cmds {
		fields := strings.Fields(cmd)
		if len(fields) == 0 {
			continue
		}
		res, err := s.Runner.Run(ctx, ectx.WorkDir, fields[0], fields[1:]...)
		if err != nil || res.ExitCode != 0 {
			ectx.Logger.Warn("source comment command failed", "cmd", cmd, "error", err, "exit_code", res.ExitCode)
		}
	}
}

func snapshotDir(dir string) (map[string]time.Time, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make(map[string]time.Time, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		out[e.Name()] = info.ModTime()
	}
	return out, nil
}

func changed(before, after map[string]time.Time) bool {
	if len(before) != len(after) {
		return true
	}
	for name, mtime := range after {
		prev, ok := before[name]
		if !ok || !prev.Equal(mtime) {
			return true
		}
	}
	return false
}

// geoJSONFeatureCollection is the minimal shape validateGeoJSON needs to
// check (spec §4.5 step 5).
type geoJSONFeatureCollection struct {
	Type     string        `json:"type"`
	Features []interface{} `json:"features"`
}

func validateGeoJSON(workDir, tableName string) error {
	path := filepath.Join(workDir, tableName+".geojson")
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("expected %s.geojson not found", tableName)
	}
	if info.Size() < 100 {
		return fmt.Errorf("%s.geojson is smaller than 100 bytes", tableName)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not read %s.geojson: %w", tableName, err)
	}
	var fc geoJSONFeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("%s.geojson is not valid JSON: %w", tableName, err)
	}
	if fc.Type != "FeatureCollection" {
		return fmt.Errorf("%s.geojson type is %q, want FeatureCollection", tableName, fc.Type)
	}
	if len(fc.Features) == 0 {
		return fmt.Errorf("%s.geojson has empty features (deprecated or dead service URL)", tableName)
	}
	return nil
}

func findLatestZip(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var latest string
	var latestMtime time.Time
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".zip") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if latest == "" || info.ModTime().After(latestMtime) {
			latest = e.Name()
			latestMtime = info.ModTime()
		}
	}
	if latest == "" {
		return "", nil
	}
	return filepath.Join(dir, latest), nil
}
