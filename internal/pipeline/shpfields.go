package pipeline

import (
	"os"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	shp "github.com/jonas-p/go-shp"
)

// FieldNamesFromDBF opens the DBF sidecar of a shapefile and returns its
// attribute names in declaration order, skipping the deletion flag byte
// (spec §4.6 step 3). go-shp exposes this without hand-parsing the DBF
// header, unlike the Python source's manual byte layout reader.
func FieldNamesFromDBF(shpPath string) ([]string, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	fields := reader.Fields()
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, f.String())
	}
	return out, nil
}

// attributeDateLayouts are the textual date layouts MaxAttributeDate tries
// when parsing a candidate attribute value.
var attributeDateLayouts = []string{"2006-01-02", "2006/01/02", "01/02/2006", "20060102"}

// MaxAttributeDate scans every record of the shapefile's DBF for columns
// whose name is a recognized high-trust date column (case-insensitive,
// spec §4.6 step 4) and returns the maximum parseable value across all
// records and matching columns.
func MaxAttributeDate(shpPath string) (civil.Date, bool) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return civil.Date{}, false
	}
	defer reader.Close()

	fields := reader.Fields()
	var dateFieldIdx []int
	for i, f := range fields {
		if IsAttributeDateColumn(f.String()) {
			dateFieldIdx = append(dateFieldIdx, i)
		}
	}
	if len(dateFieldIdx) == 0 {
		return civil.Date{}, false
	}

	var best civil.Date
	found := false
	for reader.Next() {
		n, _ := reader.Shape()
		for _, idx := range dateFieldIdx {
			raw := strings.TrimSpace(reader.ReadAttribute(n, idx))
			if raw == "" {
				continue
			}
			d, ok := parseAttributeDate(raw)
			if !ok {
				continue
			}
			if !found || d.After(best) {
				best = d
				found = true
			}
		}
	}
	return best, found
}

func parseAttributeDate(raw string) (civil.Date, bool) {
	for _, layout := range attributeDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return civil.DateOf(t), true
		}
	}
	return civil.Date{}, false
}

// ReadDBFHeaderDate reads the raw last-update date stored in a DBF file's
// fixed header (byte 1 = year offset from 1900, byte 2 = month, byte 3 =
// day), the medium-trust source spec §4.6 step 4 names directly, distinct
// from any attribute column.
func ReadDBFHeaderDate(dbfPath string) (civil.Date, bool) {
	f, err := os.Open(dbfPath)
	if err != nil {
		return civil.Date{}, false
	}
	defer f.Close()

	header := make([]byte, 4)
	if _, err := f.Read(header); err != nil {
		return civil.Date{}, false
	}
	return DecodeDBFHeaderDate(header[1], header[2], header[3])
}
