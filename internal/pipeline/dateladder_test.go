package pipeline

import (
	"testing"

	"cloud.google.com/go/civil"
)

var fixedToday = civil.Date{Year: 2024, Month: 3, Day: 15}

func TestResolveDataDatePicksLatestAccepted(t *testing.T) {
	candidates := []Candidate{
		{Date: civil.Date{Year: 2023, Month: 1, Day: 1}, Trust: TrustLow, Source: "shp mtime"},
		{Date: civil.Date{Year: 2023, Month: 6, Day: 1}, Trust: TrustMedium, Source: "dbf header"},
		{Date: civil.Date{Year: 2022, Month: 1, Day: 1}, Trust: TrustHigh, Source: "sidecar xml"},
	}
	got, defaulted := ResolveDataDate(candidates, fixedToday)
	if defaulted {
		t.Fatal("expected defaultedToday = false")
	}
	want := civil.Date{Year: 2023, Month: 6, Day: 1}
	if got != want {
		t.Errorf("ResolveDataDate = %v, want %v", got, want)
	}
}

func TestResolveDataDateRejectsMediumLowEqualToday(t *testing.T) {
	candidates := []Candidate{
		{Date: fixedToday, Trust: TrustMedium, Source: "dbf header"},
		{Date: civil.Date{Year: 2024, Month: 1, Day: 1}, Trust: TrustLow, Source: "shp mtime"},
	}
	got, defaulted := ResolveDataDate(candidates, fixedToday)
	if defaulted {
		t.Fatal("expected defaultedToday = false")
	}
	want := civil.Date{Year: 2024, Month: 1, Day: 1}
	if got != want {
		t.Errorf("ResolveDataDate = %v, want %v", got, want)
	}
}

func TestResolveDataDateHighTrustAllowsToday(t *testing.T) {
	candidates := []Candidate{
		{Date: fixedToday, Trust: TrustHigh, Source: "sidecar xml"},
	}
	got, defaulted := ResolveDataDate(candidates, fixedToday)
	if defaulted || got != fixedToday {
		t.Errorf("ResolveDataDate = %v, defaulted=%v, want %v, false", got, defaulted, fixedToday)
	}
}

func TestResolveDataDateNoAcceptedDefaultsToday(t *testing.T) {
	candidates := []Candidate{
		{Date: civil.Date{Year: 2010, Month: 1, Day: 1}, Trust: TrustHigh, Source: "too old"},
	}
	got, defaulted := ResolveDataDate(candidates, fixedToday)
	if !defaulted {
		t.Fatal("expected defaultedToday = true")
	}
	if got != fixedToday {
		t.Errorf("ResolveDataDate = %v, want %v", got, fixedToday)
	}
}

func TestResolveDataDateEmptyDefaultsToday(t *testing.T) {
	got, defaulted := ResolveDataDate(nil, fixedToday)
	if !defaulted || got != fixedToday {
		t.Errorf("ResolveDataDate(nil) = %v, %v, want %v, true", got, defaulted, fixedToday)
	}
}

func TestResolveDataDateBoundsInvariant(t *testing.T) {
	candidates := []Candidate{
		{Date: civil.Date{Year: 2030, Month: 1, Day: 1}, Trust: TrustHigh, Source: "future"},
	}
	got, _ := ResolveDataDate(candidates, fixedToday)
	if got.After(fixedToday) {
		t.Errorf("ResolveDataDate = %v, must never exceed today %v", got, fixedToday)
	}
	if got.Before(minDate) {
		t.Errorf("ResolveDataDate = %v, must never precede %v", got, minDate)
	}
}

func TestExtractDateFromFilenameISO(t *testing.T) {
	d, ok := ExtractDateFromFilename("zoning_2023-06-15.shp")
	if !ok || d != (civil.Date{Year: 2023, Month: 6, Day: 15}) {
		t.Errorf("ExtractDateFromFilename = %v, %v", d, ok)
	}
}

func TestExtractDateFromFilenameMDY(t *testing.T) {
	d, ok := ExtractDateFromFilename("zoning_06-15-2023.shp")
	if !ok || d != (civil.Date{Year: 2023, Month: 6, Day: 15}) {
		t.Errorf("ExtractDateFromFilename = %v, %v", d, ok)
	}
}

func TestExtractYYYYMMDD(t *testing.T) {
	d, ok := ExtractYYYYMMDD("zoning_20230615.zip")
	if !ok || d != (civil.Date{Year: 2023, Month: 6, Day: 15}) {
		t.Errorf("ExtractYYYYMMDD = %v, %v", d, ok)
	}
}

func TestDecodeDBFHeaderDateCenturyDisambiguation(t *testing.T) {
	// Byte 23 decodes to 1923, below 1990, so it rolls forward to 2023.
	d, ok := DecodeDBFHeaderDate(23, 6, 15)
	if !ok || d != (civil.Date{Year: 2023, Month: 6, Day: 15}) {
		t.Errorf("DecodeDBFHeaderDate(23,6,15) = %v, %v, want 2023-06-15", d, ok)
	}
	// Byte 5 alone would decode to 1905; the disambiguation rule rolls
	// any year below 1990 forward by a century to 2005.
	d2, ok2 := DecodeDBFHeaderDate(5, 6, 15)
	if !ok2 || d2 != (civil.Date{Year: 2005, Month: 6, Day: 15}) {
		t.Errorf("DecodeDBFHeaderDate(5,6,15) = %v, %v, want 2005-06-15", d2, ok2)
	}
}

func TestResolvePDFDataDateAcceptsWithinWindow(t *testing.T) {
	d, ok := ResolvePDFDataDate("report_2024-01-15.pdf", civil.Date{}, fixedToday)
	if !ok || d != (civil.Date{Year: 2024, Month: 1, Day: 15}) {
		t.Errorf("ResolvePDFDataDate = %v, %v, want 2024-01-15, true", d, ok)
	}
}

func TestResolvePDFDataDateRejectsTooRecentFilenameFallsBackToMtime(t *testing.T) {
	// Filename date is within the last week (rejected); the mtime fallback
	// is also within the last week and rejected too, so no candidate at all.
	tooRecent := fixedToday.AddDays(-1)
	_, ok := ResolvePDFDataDate("report_2024-03-14.pdf", tooRecent, fixedToday)
	if ok {
		t.Error("ResolvePDFDataDate: expected no candidate when both filename and mtime are too recent")
	}
}

func TestResolvePDFDataDateNoCandidateOmitsDate(t *testing.T) {
	_, ok := ResolvePDFDataDate("report.pdf", fixedToday, fixedToday)
	if ok {
		t.Error("ResolvePDFDataDate: expected no candidate when filename has no date and mtime is today")
	}
}
