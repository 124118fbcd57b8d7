package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/google/go-cmp/cmp"

	"github.com/Satmapwise/parcels-processing-sub001/internal/catalog"
	"github.com/Satmapwise/parcels-processing-sub001/internal/config"
)

// metadataSummary flattens the pointer fields of a MetadataRecord that
// matter to callers of this test into a plain comparable value, since
// cmp.Diff on the record itself would otherwise compare pointer identity
// for Shp/EPSG rather than their pointed-to values.
type metadataSummary struct {
	EPSG       string
	FieldNames []string
}

func summarize(r MetadataRecord) metadataSummary {
	s := metadataSummary{FieldNames: r.FieldNames}
	if r.EPSG != nil {
		s.EPSG = *r.EPSG
	}
	return s
}

func testMetadataEntityContext(t *testing.T, workDir string) EntityContext {
	t.Helper()
	return EntityContext{
		Config:  config.PipelineConfig{},
		Logger:  slog.New(slog.NewTextHandler(os.Stderr, nil)),
		WorkDir: workDir,
		Layer:   "zoning",
		Entity:  "alachua_gainesville",
		County:  "alachua",
		City:    "gainesville",
	}
}

func TestMetadataStagePDFNoFileOmitsDataDate(t *testing.T) {
	dir := t.TempDir()
	today := civil.Date{Year: 2024, Month: 3, Day: 15}
	stage := MetadataStage{Runner: &fakeRunner{}, Today: today}

	record, err := stage.Run(context.Background(), testMetadataEntityContext(t, dir), catalog.Row{}, FormatMetadataOnly)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if record.DataDate != nil {
		t.Fatalf("DataDate = %v, want nil", record.DataDate)
	}
}

func TestMetadataStagePDFPicksLargestFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "small.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "report.pdf"), make([]byte, 1000), 0o644); err != nil {
		t.Fatal(err)
	}
	today := civil.Date{Year: 2024, Month: 3, Day: 15}
	stage := MetadataStage{Runner: &fakeRunner{}, Today: today}

	record, err := stage.Run(context.Background(), testMetadataEntityContext(t, dir), catalog.Row{}, FormatMetadataOnly)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if record.Shp == nil || *record.Shp != "report.pdf" {
		t.Fatalf("Shp = %v, want report.pdf", record.Shp)
	}
}

func TestMetadataStageGeospatialNoShapefileOmitsDataDate(t *testing.T) {
	dir := t.TempDir()
	today := civil.Date{Year: 2024, Month: 3, Day: 15}
	stage := MetadataStage{Runner: &fakeRunner{}, Today: today}

	record, err := stage.Run(context.Background(), testMetadataEntityContext(t, dir), catalog.Row{}, FormatArcGIS)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if record.DataDate != nil {
		t.Fatalf("DataDate = %v, want nil (no shapefile present)", record.DataDate)
	}
}

func TestMetadataStageGeospatialExtractsEPSGAndFields(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "zoning_gainesville.shp"), []byte("stub"), 0o644); err != nil {
		t.Fatal(err)
	}

	ogrinfoOut := `Layer name: zoning_gainesville
Geometry: Polygon
PROJCS["NAD83 / Florida East (ft US)",GEOGCS["NAD83"]]
PARCELID: String (30.0)
ZONING: String (10.0)
UPDATE_DT: Date (10.0)
`
	runner := &fakeRunner{result: CommandResult{Stdout: ogrinfoOut}}
	today := civil.Date{Year: 2024, Month: 3, Day: 15}
	stage := MetadataStage{Runner: runner, Today: today}

	record, err := stage.Run(context.Background(), testMetadataEntityContext(t, dir), catalog.Row{}, FormatArcGIS)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := metadataSummary{EPSG: "2236", FieldNames: []string{"PARCELID", "ZONING", "UPDATE_DT"}}
	if diff := cmp.Diff(want, summarize(record)); diff != "" {
		t.Errorf("metadata summary mismatch (-want +got):\n%s", diff)
	}
}

func TestMetadataStageNoNNDWhenDataDateChanged(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "zoning_gainesville.shp"), []byte("stub"), 0o644); err != nil {
		t.Fatal(err)
	}

	prior := civil.Date{Year: 2024, Month: 1, Day: 1}
	runner := &fakeRunner{result: CommandResult{Stdout: ""}}
	today := civil.Date{Year: 2024, Month: 3, Day: 15}
	stage := MetadataStage{
		Runner: runner,
		Today:  today,
		Prior: func(layer, entity string) (civil.Date, bool) {
			return prior, true
		},
	}

	// No date candidates found anywhere -> ResolveDataDate defaults to today,
	// which won't equal the recorded prior date, so this should NOT skip.
	_, err := stage.Run(context.Background(), testMetadataEntityContext(t, dir), catalog.Row{}, FormatArcGIS)
	if err != nil {
		t.Fatalf("Run: %v, want nil (no skip when resolved date != prior)", err)
	}
}

func TestMetadataStageNNDSkipWhenPriorMatchesDefaultToday(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "zoning_gainesville.shp"), []byte("stub"), 0o644); err != nil {
		t.Fatal(err)
	}

	today := civil.Date{Year: 2024, Month: 3, Day: 15}
	runner := &fakeRunner{result: CommandResult{Stdout: ""}}
	stage := MetadataStage{
		Runner: runner,
		Today:  today,
		Prior: func(layer, entity string) (civil.Date, bool) {
			return today, true
		},
	}

	_, err := stage.Run(context.Background(), testMetadataEntityContext(t, dir), catalog.Row{}, FormatArcGIS)
	var skip *SkipEntity
	if !errors.As(err, &skip) {
		t.Fatalf("Run error = %v, want *SkipEntity", err)
	}
}

func TestMarshalFieldNamesEmptyIsEmptyArray(t *testing.T) {
	got, err := marshalFieldNames(nil)
	if err != nil {
		t.Fatalf("marshalFieldNames: %v", err)
	}
	if got != "[]" {
		t.Fatalf("marshalFieldNames(nil) = %q, want []", got)
	}
}

func TestMarshalFieldNamesOrderPreserved(t *testing.T) {
	got, err := marshalFieldNames([]string{"PARCELID", "ZONING"})
	if err != nil {
		t.Fatalf("marshalFieldNames: %v", err)
	}
	if got != `["PARCELID","ZONING"]` {
		t.Fatalf("marshalFieldNames = %q", got)
	}
}
