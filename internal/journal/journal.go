// Package journal owns the per-layer status CSV: one row per queued
// entity plus a trailing summary row, rewritten atomically after every
// stage transition (spec §4.9, §9 "Process-wide journal file -> owned
// writer").
package journal

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/Satmapwise/parcels-processing-sub001/internal/normalize"
)

// Stage identifies which journal column UpdateStage mutates.
type Stage int

const (
	StageDownload Stage = iota
	StageProcessing
	StageUpload
)

// Status is the value written into a stage's status column.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
	StatusNND     Status = "NND"
	StatusSkipped Status = "SKIPPED"
)

const summaryCounty = "LAST UPDATED:"

// Row is one entity's journal record (spec §4.9, "File contract").
type Row struct {
	County           string
	City             string
	DataDate         string
	DownloadStatus   string
	ProcessingStatus string
	UploadStatus     string
	ErrorMessage     string
	Timestamp        string
}

var header = []string{"county", "city", "data_date", "download_status", "processing_status", "upload_status", "error_message", "timestamp"}

// Journal owns one layer's status CSV file.
type Journal struct {
	Path string
}

// New returns a Journal for layer's summary CSV under dir (spec §4.9,
// "<layer>_summary.csv").
func New(dir, layer string) *Journal {
	return &Journal{Path: filepath.Join(dir, layer+"_summary.csv")}
}

// Initialize loads existing rows (ignoring the prior summary row), ensures
// a row exists for every queued entity, clears the four status/error
// columns on each, and writes back sorted with a fresh summary row.
func (j *Journal) Initialize(queue []string) error {
	rows, err := j.load()
	if err != nil {
		return err
	}

	byKey := make(map[string]*Row, len(rows))
	for i := range rows {
		byKey[rowKey(rows[i].County, rows[i].City)] = &rows[i]
	}

	for _, entity := range queue {
		county, city := splitEntity(entity)
		key := rowKey(county, city)
		r, ok := byKey[key]
		if !ok {
			rows = append(rows, Row{County: county, City: city})
			r = &rows[len(rows)-1]
			byKey[key] = r
		}
		r.DownloadStatus = ""
		r.ProcessingStatus = ""
		r.UploadStatus = ""
		r.ErrorMessage = ""
	}

	return j.write(rows, time.Now())
}

// UpdateStage mutates the matching row's stage column and timestamp, then
// writes back. For download=NND, downstream status columns are cleared but
// error_message is preserved (spec §4.9, "preserve error_message").
func (j *Journal) UpdateStage(county, city string, stage Stage, status Status, errMsg string, dataDate *civil.Date, now time.Time) error {
	rows, err := j.load()
	if err != nil {
		return err
	}

	key := rowKey(county, city)
	var target *Row
	for i := range rows {
		if rowKey(rows[i].County, rows[i].City) == key {
			target = &rows[i]
			break
		}
	}
	if target == nil {
		rows = append(rows, Row{County: county, City: city})
		target = &rows[len(rows)-1]
	}

	switch stage {
	case StageDownload:
		target.DownloadStatus = string(status)
		if status == StatusNND {
			target.ProcessingStatus = ""
			target.UploadStatus = ""
		}
	case StageProcessing:
		target.ProcessingStatus = string(status)
	case StageUpload:
		target.UploadStatus = string(status)
	}

	switch status {
	case StatusSuccess:
		if stage == StageUpload {
			target.ErrorMessage = ""
		}
	case StatusFailed, StatusNND, StatusSkipped:
		if errMsg != "" {
			target.ErrorMessage = errMsg
		}
	}

	if dataDate != nil {
		target.DataDate = dataDate.String()
	}
	target.Timestamp = now.Format("1/2/06 3:04 PM")

	return j.write(rows, now)
}

// Finalize rewrites the journal (every per-entity row is already current
// on disk via UpdateStage) and appends a freshly computed summary row:
// success/total ratios per stage plus the formatted total runtime.
func (j *Journal) Finalize(totalRuntime time.Duration, now time.Time) error {
	rows, err := j.load()
	if err != nil {
		return err
	}
	return j.writeWithSummary(rows, totalRuntime, now)
}

func (j *Journal) writeWithSummary(rows []Row, totalRuntime time.Duration, now time.Time) error {
	sortRows(rows)

	var dl, pr, up, total int
	for _, r := range rows {
		total++
		if r.DownloadStatus == string(StatusSuccess) {
			dl++
		}
		if r.ProcessingStatus == string(StatusSuccess) {
			pr++
		}
		if r.UploadStatus == string(StatusSuccess) {
			up++
		}
	}

	summary := Row{
		County:           summaryCounty,
		City:             now.Format("1/2/06"),
		DataDate:         now.Format("3:04 PM"),
		DownloadStatus:   ratio(dl, total),
		ProcessingStatus: ratio(pr, total),
		UploadStatus:     ratio(up, total),
		ErrorMessage:     formatRuntime(totalRuntime),
		Timestamp:        now.Format("1/2/06 3:04 PM"),
	}

	return j.writeRaw(append(append([]Row{}, rows...), summary))
}

func ratio(success, total int) string {
	return fmt.Sprintf("%d/%d", success, total)
}

// formatRuntime renders a duration as "Xhr Ymin Zsec" (spec §4.9,
// "formatted total runtime").
func formatRuntime(d time.Duration) string {
	total := int(d.Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	return fmt.Sprintf("%dhr %dmin %dsec", hours, minutes, seconds)
}

func rowKey(county, city string) string {
	return strings.ToLower(county) + "|" + strings.ToLower(city)
}

func splitEntity(entity string) (county, city string) {
	county, city, ok := normalize.SplitEntity(entity)
	if !ok {
		return entity, ""
	}
	return county, city
}

func sortRows(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].County != rows[j].County {
			return rows[i].County < rows[j].County
		}
		return rows[i].City < rows[j].City
	})
}

// load reads every non-summary row from disk; a missing file is treated as
// an empty journal (first run for this layer).
func (j *Journal) load() ([]Row, error) {
	f, err := os.Open(j.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", j.Path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("journal: read %s: %w", j.Path, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	var rows []Row
	for _, rec := range records[1:] {
		if len(rec) < 8 || rec[0] == summaryCounty {
			continue
		}
		rows = append(rows, Row{
			County:           rec[0],
			City:             rec[1],
			DataDate:         rec[2],
			DownloadStatus:   rec[3],
			ProcessingStatus: rec[4],
			UploadStatus:     rec[5],
			ErrorMessage:     rec[6],
			Timestamp:        rec[7],
		})
	}
	return rows, nil
}

// write sorts rows and rewrites the file with a freshly computed summary
// row, used by Initialize/UpdateStage. That summary carries a zero runtime;
// Finalize rewrites it with the run's total runtime.
func (j *Journal) write(rows []Row, now time.Time) error {
	return j.writeWithSummary(rows, 0, now)
}

// writeRaw persists rows verbatim (caller controls ordering/summary) via a
// temp-file-plus-rename sequence so the file on disk is always a complete,
// consistent snapshot even under interrupt (spec §9, "owned writer").
func (j *Journal) writeRaw(rows []Row) error {
	dir := filepath.Dir(j.Path)
	tmp, err := os.CreateTemp(dir, ".journal-*.tmp")
	if err != nil {
		return fmt.Errorf("journal: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("journal: write header: %w", err)
	}
	for _, r := range rows {
		rec := []string{r.County, r.City, r.DataDate, r.DownloadStatus, r.ProcessingStatus, r.UploadStatus, r.ErrorMessage, r.Timestamp}
		if err := w.Write(rec); err != nil {
			tmp.Close()
			return fmt.Errorf("journal: write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("journal: flush: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("journal: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, j.Path); err != nil {
		return fmt.Errorf("journal: rename into place: %w", err)
	}
	return nil
}

// ClassifyFailureStage assigns a failed entity's stage from its error
// message when no stage-level status was set explicitly (spec §4.9,
// "Failure-stage classification").
func ClassifyFailureStage(errMsg string) Stage {
	lower := strings.ToLower(errMsg)
	switch {
	case containsAny(lower, "download", "ags_extract", "download_data", "connection", "url", "http"):
		return StageDownload
	case containsAny(lower, "processing", "update_", "ogr2ogr", "shapefile", "geometry"):
		return StageProcessing
	case containsAny(lower, "upload", "psql", "database", "catalog"):
		return StageUpload
	default:
		return StageDownload
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// DataDateFor returns the previously recorded data_date for (county, city),
// used by the Metadata Stage's NND-by-metadata-equality check (spec §4.6
// step 6).
func (j *Journal) DataDateFor(county, city string) (civil.Date, bool) {
	rows, err := j.load()
	if err != nil {
		return civil.Date{}, false
	}
	key := rowKey(county, city)
	for _, r := range rows {
		if rowKey(r.County, r.City) == key && r.DataDate != "" {
			d, err := civil.ParseDate(r.DataDate)
			if err == nil {
				return d, true
			}
		}
	}
	return civil.Date{}, false
}
