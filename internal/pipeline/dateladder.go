package pipeline

import (
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// Trust tags a date candidate with its reliability tier. It only decides
// acceptance (medium/low-trust candidates dated today are rejected); among
// accepted candidates the ladder picks the latest date (spec §4.6 step 4).
type Trust int

const (
	TrustLow Trust = iota
	TrustMedium
	TrustHigh
)

// Candidate is one data-date guess surfaced by a ladder source, tagged
// with its trust tier and a human-readable description of where it came
// from (surfaced in NND/journal messages).
type Candidate struct {
	Date   civil.Date
	Trust  Trust
	Source string
}

// minDate is the earliest data_date the ladder will ever accept (spec
// §4.6 step 4, §8 "Date ladder bounds").
var minDate = civil.Date{Year: 2015, Month: 1, Day: 1}

// attributeDateColumns are attribute-table column names (case-insensitive)
// treated as a high-trust date source when present (spec §4.6 step 4).
var attributeDateColumns = map[string]bool{
	"update_dt": true, "updated": true, "last_edit": true, "lastupdate": true,
	"edit_date": true, "date_upd": true, "datadate": true, "effective": true,
	"rev_date": true, "eff_date": true, "effdate": true, "date_eff": true,
}

// IsAttributeDateColumn reports whether name (any case) is one of the
// recognized high-trust attribute date columns.
func IsAttributeDateColumn(name string) bool {
	return attributeDateColumns[strings.ToLower(name)]
}

// ResolveDataDate runs the full tiered ladder over every candidate
// surfaced for one entity and returns the accepted selection. defaultedToday
// is true when no candidate was accepted and today was used as the
// fallback (spec §4.6 step 4 final bullet).
func ResolveDataDate(candidates []Candidate, today civil.Date) (selected civil.Date, defaultedToday bool) {
	var best *Candidate
	for i := range candidates {
		c := candidates[i]
		if !acceptCandidate(c, today) {
			continue
		}
		if best == nil || c.Date.After(best.Date) {
			best = &candidates[i]
		}
	}
	if best == nil {
		return today, true
	}
	// Today-cap: defense in depth (spec §4.6 step 5).
	if best.Date.After(today) {
		return today, false
	}
	return best.Date, false
}

func acceptCandidate(c Candidate, today civil.Date) bool {
	if c.Date.Before(minDate) || c.Date.After(today) {
		return false
	}
	if c.Trust != TrustHigh && c.Date == today {
		return false
	}
	return true
}

// --- Candidate extraction helpers ---

// filenameDatePatterns are tried in order against a bare filename (no
// directory) to extract an embedded date (spec §4.6 PDF ladder step a).
// Only the PDF ladder uses them.
var filenameDatePatterns = []struct {
	re     *regexp.Regexp
	layout string
}{
	{regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`), "ymd-"},
	{regexp.MustCompile(`(\d{4})_(\d{2})_(\d{2})`), "ymd_"},
	{regexp.MustCompile(`(\d{2})-(\d{2})-(\d{4})`), "mdy-"},
	{regexp.MustCompile(`(\d{2})_(\d{2})_(\d{4})`), "mdy_"},
	{regexp.MustCompile(`(\d{4})`), "y"},
}

// ExtractDateFromFilename tries each filename date pattern in order,
// returning the first that parses to a plausible calendar date.
func ExtractDateFromFilename(filename string) (civil.Date, bool) {
	for _, p := range filenameDatePatterns {
		m := p.re.FindStringSubmatch(filename)
		if m == nil {
			continue
		}
		d, ok := parseFilenameMatch(p.layout, m)
		if ok {
			return d, true
		}
	}
	return civil.Date{}, false
}

func parseFilenameMatch(layout string, m []string) (civil.Date, bool) {
	atoi := func(s string) int {
		v, _ := strconv.Atoi(s)
		return v
	}
	switch layout {
	case "ymd-", "ymd_":
		return civil.Date{Year: atoi(m[1]), Month: time.Month(atoi(m[2])), Day: atoi(m[3])}, validCalendarDate(atoi(m[1]), atoi(m[2]), atoi(m[3]))
	case "mdy-", "mdy_":
		return civil.Date{Year: atoi(m[3]), Month: time.Month(atoi(m[1])), Day: atoi(m[2])}, validCalendarDate(atoi(m[3]), atoi(m[1]), atoi(m[2]))
	case "y":
		y := atoi(m[1])
		return civil.Date{Year: y, Month: 1, Day: 1}, y >= 1900 && y <= 2100
	}
	return civil.Date{}, false
}

func validCalendarDate(year, month, day int) bool {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return false
	}
	return year >= 1900 && year <= 2100
}

// eightDigitDateRe extracts a bare YYYYMMDD run of digits, used for the
// low-trust sibling-zip-filename source.
var eightDigitDateRe = regexp.MustCompile(`\d{8}`)

// ExtractYYYYMMDD finds the first 8-digit YYYYMMDD run in s.
func ExtractYYYYMMDD(s string) (civil.Date, bool) {
	m := eightDigitDateRe.FindString(s)
	if m == "" {
		return civil.Date{}, false
	}
	year, _ := strconv.Atoi(m[0:4])
	month, _ := strconv.Atoi(m[4:6])
	day, _ := strconv.Atoi(m[6:8])
	if !validCalendarDate(year, month, day) {
		return civil.Date{}, false
	}
	return civil.Date{Year: year, Month: time.Month(month), Day: day}, true
}

// dbfDateHeaderRe matches ogrinfo's "DBF_DATE_LAST_UPDATE" summary line
// (medium-trust source, spec §4.6 step 4).
var dbfDateHeaderRe = regexp.MustCompile(`DBF_DATE_LAST_UPDATE[^0-9]*(\d{4})-(\d{2})-(\d{2})`)

// ExtractDBFDateLastUpdate parses the DBF_DATE_LAST_UPDATE line from
// ogrinfo output.
func ExtractDBFDateLastUpdate(ogrinfoOutput string) (civil.Date, bool) {
	m := dbfDateHeaderRe.FindStringSubmatch(ogrinfoOutput)
	if m == nil {
		return civil.Date{}, false
	}
	y, _ := strconv.Atoi(m[1])
	mo, _ := strconv.Atoi(m[2])
	d, _ := strconv.Atoi(m[3])
	return civil.Date{Year: y, Month: time.Month(mo), Day: d}, validCalendarDate(y, mo, d)
}

// DecodeDBFHeaderDate decodes the three raw DBF header date bytes (year
// offset from 1900, month, day) with the 1900/2000 disambiguation spec
// §4.6 step 4 calls for: a decoded year below 1990 is assumed to be a
// two-digit year that rolled into the 2000s.
func DecodeDBFHeaderDate(yearByte, monthByte, dayByte byte) (civil.Date, bool) {
	year := 1900 + int(yearByte)
	if year < 1990 {
		year += 100
	}
	month := int(monthByte)
	day := int(dayByte)
	if !validCalendarDate(year, month, day) {
		return civil.Date{}, false
	}
	return civil.Date{Year: year, Month: time.Month(month), Day: day}, true
}

// FileModTime returns path's modification time as a civil.Date.
func FileModTime(path string) (civil.Date, error) {
	info, err := os.Stat(path)
	if err != nil {
		return civil.Date{}, err
	}
	return civil.DateOf(info.ModTime()), nil
}

// sidecarXMLDateRe finds the first YYYY-MM-DD or YYYYMMDD run in an
// ISO/FGDC sidecar XML metadata file's contents (high-trust source).
var sidecarXMLDateRe = regexp.MustCompile(`(\d{4})-?(\d{2})-?(\d{2})`)

// ExtractSidecarXMLDate finds the first plausible date in sidecar XML
// metadata content.
func ExtractSidecarXMLDate(xmlContent string) (civil.Date, bool) {
	matches := sidecarXMLDateRe.FindAllStringSubmatch(xmlContent, -1)
	for _, m := range matches {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		if validCalendarDate(y, mo, d) {
			return civil.Date{Year: y, Month: time.Month(mo), Day: d}, true
		}
	}
	return civil.Date{}, false
}

// --- PDF (metadata-only) conservative ladder ---

// ResolvePDFDataDate implements the conservative ladder for metadata-only
// formats (spec §4.6, "For metadata-only formats"): a candidate is
// accepted only within [today-10y, today-7d], and no candidate at all
// means no data_date is reported, rather than a default-to-today lie.
func ResolvePDFDataDate(filename string, modTime civil.Date, today civil.Date) (civil.Date, bool) {
	lowerBound := today.AddDays(-10 * 365)
	upperBound := today.AddDays(-7)

	if d, ok := ExtractDateFromFilename(filename); ok && withinRange(d, lowerBound, upperBound) {
		return d, true
	}
	if withinRange(modTime, lowerBound, upperBound) {
		return modTime, true
	}
	return civil.Date{}, false
}

func withinRange(d, lo, hi civil.Date) bool {
	return !d.Before(lo) && !d.After(hi)
}
