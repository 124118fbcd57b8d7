package pipeline

import "strings"

// FormatKind is the tagged-variant rendition of the catalog's lowercase
// format string (spec §9, "Dynamic command dispatch by format string ->
// tagged variant"). Computed once per entity; all downstream logic
// switches on the tag instead of re-testing the raw string.
type FormatKind int

const (
	FormatExcluded FormatKind = iota
	FormatArcGIS
	FormatArchiveURL
	FormatMetadataOnly
)

var arcgisFormats = map[string]bool{"ags": true, "arcgis": true, "esri": true, "ags_extract": true}
var archiveFormats = map[string]bool{"shp": true, "zip": true, "url": true}

// ClassifyFormat maps a catalog row's lowercase format field to its
// FormatKind (spec §4.1 "format" field, §9 tagged-variant note).
func ClassifyFormat(format string) FormatKind {
	f := strings.ToLower(strings.TrimSpace(format))
	switch {
	case arcgisFormats[f]:
		return FormatArcGIS
	case archiveFormats[f]:
		return FormatArchiveURL
	case f == "pdf":
		return FormatMetadataOnly
	default:
		return FormatExcluded
	}
}
