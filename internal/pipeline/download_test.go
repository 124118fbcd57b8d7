package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Satmapwise/parcels-processing-sub001/internal/catalog"
	"github.com/Satmapwise/parcels-processing-sub001/internal/config"
)

type fakeRunner struct {
	result CommandResult
	err    error
	calls  []string
	// onRun, when set, is called for every command, e.g. to write the
	// files a real downloader would produce.
	onRun func(name string, args []string)
}

func (f *fakeRunner) Run(_ context.Context, _ string, name string, args ...string) (CommandResult, error) {
	f.calls = append(f.calls, name)
	if f.onRun != nil {
		f.onRun(name, args)
	}
	return f.result, f.err
}

func testEntityContext(t *testing.T, workDir string, processAnyway bool) EntityContext {
	t.Helper()
	return EntityContext{
		Config:  config.PipelineConfig{ProcessAnyway: processAnyway},
		Logger:  slog.New(slog.NewTextHandler(os.Stderr, nil)),
		WorkDir: workDir,
		Layer:   "zoning",
		Entity:  "alachua_gainesville",
		County:  "alachua",
		City:    "gainesville",
	}
}

func TestDownloadStageArcGISHappyPath(t *testing.T) {
	dir := t.TempDir()
	geojson := `{"type":"FeatureCollection","features":[{"type":"Feature"}]}` + strings.Repeat(" ", 100)

	// The fake extractor writes its GeoJSON during the run, so the work
	// directory changes between the before and after snapshots.
	runner := &fakeRunner{result: CommandResult{ExitCode: 0}, onRun: func(string, []string) {
		if err := os.WriteFile(filepath.Join(dir, "zoning_gainesville.geojson"), []byte(geojson), 0o644); err != nil {
			t.Error(err)
		}
	}}
	stage := DownloadStage{Runner: runner}
	row := catalog.Row{Format: "ags", TableName: "zoning_gainesville"}

	_, err := stage.Run(context.Background(), testEntityContext(t, dir, false), row)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestDownloadStageEmptyFeaturesIsDownloadError(t *testing.T) {
	dir := t.TempDir()
	geojson := `{"type":"FeatureCollection","features":[]}` + strings.Repeat(" ", 100)

	runner := &fakeRunner{result: CommandResult{ExitCode: 0}, onRun: func(string, []string) {
		if err := os.WriteFile(filepath.Join(dir, "zoning_gainesville.geojson"), []byte(geojson), 0o644); err != nil {
			t.Error(err)
		}
	}}
	stage := DownloadStage{Runner: runner}
	row := catalog.Row{Format: "ags", TableName: "zoning_gainesville"}

	_, err := stage.Run(context.Background(), testEntityContext(t, dir, false), row)
	var de *DownloadError
	if !errors.As(err, &de) {
		t.Fatalf("Run error = %v, want *DownloadError", err)
	}
	if !strings.Contains(de.Reason, "empty features") {
		t.Fatalf("DownloadError reason = %q, want it to name the empty features", de.Reason)
	}
}

func TestDownloadStageNNDReturnsSkipEntity(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{result: CommandResult{ExitCode: 1}}
	stage := DownloadStage{Runner: runner}
	row := catalog.Row{Format: "zip", Resource: "https://example.com/data.zip"}

	_, err := stage.Run(context.Background(), testEntityContext(t, dir, false), row)
	var skip *SkipEntity
	if !errors.As(err, &skip) {
		t.Fatalf("Run error = %v, want *SkipEntity", err)
	}
}

func TestDownloadStageProcessAnywayIgnoresNND(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "existing.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	runner := &fakeRunner{result: CommandResult{ExitCode: 1}}
	stage := DownloadStage{Runner: runner}
	row := catalog.Row{Format: "zip", Resource: "https://example.com/data.zip"}

	_, err := stage.Run(context.Background(), testEntityContext(t, dir, true), row)
	if err != nil {
		t.Fatalf("Run error = %v, want nil when --process-anyway is set", err)
	}
}

func TestDownloadStageDeprecatedURL(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{result: CommandResult{ExitCode: 2, Stderr: "EsriDownloadError: Service Unavailable"}}
	stage := DownloadStage{Runner: runner}
	row := catalog.Row{Format: "ags", TableName: "zoning_gainesville"}

	_, err := stage.Run(context.Background(), testEntityContext(t, dir, false), row)
	var de *DownloadError
	if !errors.As(err, &de) {
		t.Fatalf("Run error = %v, want *DownloadError", err)
	}
}

func TestValidateGeoJSONMissingFile(t *testing.T) {
	dir := t.TempDir()
	if err := validateGeoJSON(dir, "missing_table"); err == nil {
		t.Fatal("validateGeoJSON: expected error for missing file")
	}
}
