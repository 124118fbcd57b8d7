package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/civil"

	"github.com/Satmapwise/parcels-processing-sub001/internal/catalog"
)

// PriorDataDateLookup returns the previously-recorded data_date for
// (layer, entity), if any, so the Metadata Stage can detect NND by
// metadata equality (spec §4.6 step 6).
type PriorDataDateLookup func(layer, entity string) (civil.Date, bool)

// MetadataStage runs the Metadata Stage (spec §4.6).
type MetadataStage struct {
	Runner Runner
	Prior  PriorDataDateLookup
	Today  civil.Date
}

// Run executes the metadata stage for one entity given its FormatKind. A
// *SkipEntity return means the date ladder reproduced the prior recorded
// data_date (NND via metadata equality, geospatial formats only).
func (s MetadataStage) Run(ctx context.Context, ectx EntityContext, row catalog.Row, kind FormatKind) (MetadataRecord, error) {
	if kind == FormatMetadataOnly {
		return s.runPDF(ectx)
	}
	return s.runGeospatial(ctx, ectx, row)
}

func (s MetadataStage) runPDF(ectx EntityContext) (MetadataRecord, error) {
	largest, err := largestFile(ectx.WorkDir)
	if err != nil || largest == "" {
		return MetadataRecord{UpdateDate: s.Today}, nil
	}

	mtime, err := FileModTime(filepath.Join(ectx.WorkDir, largest))
	if err != nil {
		return MetadataRecord{Shp: strPtr(largest), UpdateDate: s.Today}, nil
	}

	record := MetadataRecord{Shp: strPtr(largest), UpdateDate: s.Today}
	if d, ok := ResolvePDFDataDate(largest, mtime, s.Today); ok {
		record.DataDate = &d
	}
	// Open question (spec §9): PDF NND-by-metadata-equality is left
	// unimplemented; the ladder result is reported without a prior-date
	// comparison.
	return record, nil
}

func (s MetadataStage) runGeospatial(ctx context.Context, ectx EntityContext, row catalog.Row) (MetadataRecord, error) {
	shpPath, err := findNewestShapefile(ectx.WorkDir)
	if err != nil || shpPath == "" {
		return MetadataRecord{UpdateDate: s.Today}, nil
	}

	ogrinfoOut, _ := s.Runner.Run(ctx, ectx.WorkDir, "ogrinfo", "-ro", "-al", "-so", shpPath)

	record := MetadataRecord{
		Shp:        strPtr(filepath.Base(shpPath)),
		UpdateDate: s.Today,
	}

	if epsg, ok := ResolveEPSG(ogrinfoOut.Combined()); ok {
		record.EPSG = strPtr(epsg)
	} else {
		ectx.Logger.Info("unrecognized SRS name; epsg left empty", "entity", ectx.Entity)
	}

	fieldNames, err := FieldNamesFromDBF(shpPath)
	if err != nil || len(fieldNames) == 0 {
		fieldNames = ExtractFieldNamesFromOgrinfo(ogrinfoOut.Combined())
	}
	record.FieldNames = fieldNames

	candidates := s.gatherDateCandidates(ectx, shpPath, ogrinfoOut.Combined())
	selected, defaultedToday := ResolveDataDate(candidates, s.Today)
	record.DataDate = &selected
	record.DefaultedToday = defaultedToday

	if s.Prior != nil {
		if prior, ok := s.Prior(ectx.Layer, ectx.Entity); ok && prior == selected {
			return MetadataRecord{}, &SkipEntity{
				Layer: ectx.Layer, Entity: ectx.Entity,
				Reason: "No new data available (data date unchanged)",
				Source: "Metadata check: data date unchanged",
			}
		}
	}

	return record, nil
}

func (s MetadataStage) gatherDateCandidates(ectx EntityContext, shpPath, ogrinfoOut string) []Candidate {
	var candidates []Candidate
	dir := ectx.WorkDir

	if xmlPath, content, ok := findSidecarXML(dir); ok {
		if d, ok := ExtractSidecarXMLDate(content); ok {
			candidates = append(candidates, Candidate{Date: d, Trust: TrustHigh, Source: "sidecar xml: " + filepath.Base(xmlPath)})
		}
	}
	if d, ok := MaxAttributeDate(shpPath); ok {
		candidates = append(candidates, Candidate{Date: d, Trust: TrustHigh, Source: "attribute date column"})
	}
	if d, ok := ExtractDBFDateLastUpdate(ogrinfoOut); ok {
		candidates = append(candidates, Candidate{Date: d, Trust: TrustMedium, Source: "DBF_DATE_LAST_UPDATE"})
	}
	dbfPath := strings.TrimSuffix(shpPath, filepath.Ext(shpPath)) + ".dbf"
	if d, ok := ReadDBFHeaderDate(dbfPath); ok {
		candidates = append(candidates, Candidate{Date: d, Trust: TrustMedium, Source: "DBF header date"})
	}
	if zipName, ok := findSiblingZipName(dir); ok {
		if d, ok := ExtractYYYYMMDD(zipName); ok {
			candidates = append(candidates, Candidate{Date: d, Trust: TrustLow, Source: "sibling zip filename: " + zipName})
		}
	}
	if d, err := FileModTime(shpPath); err == nil {
		candidates = append(candidates, Candidate{Date: d, Trust: TrustLow, Source: "shapefile mtime"})
	}

	return candidates
}

func strPtr(s string) *string { return &s }

func largestFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var best string
	var bestSize int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if best == "" || info.Size() > bestSize {
			best = e.Name()
			bestSize = info.Size()
		}
	}
	return best, nil
}

func findNewestShapefile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var best string
	var bestMtime int64
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".shp") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if best == "" || info.ModTime().UnixNano() > bestMtime {
			best = e.Name()
			bestMtime = info.ModTime().UnixNano()
		}
	}
	if best == "" {
		return "", nil
	}
	return filepath.Join(dir, best), nil
}

func findSidecarXML(dir string) (path, content string, ok bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", "", false
	}
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".xml") {
			continue
		}
		full := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(full)
		if err != nil {
			continue
		}
		return full, string(data), true
	}
	return "", "", false
}

func findSiblingZipName(dir string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".zip") {
			return e.Name(), true
		}
	}
	return "", false
}

// marshalFieldNames serializes field names as a JSON array (spec §3,
// "field_names — JSON-encoded ordered list").
func marshalFieldNames(names []string) (string, error) {
	if names == nil {
		names = []string{}
	}
	b, err := json.Marshal(names)
	if err != nil {
		return "", fmt.Errorf("metadata: marshal field names: %w", err)
	}
	return string(b), nil
}
