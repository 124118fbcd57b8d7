package pipeline

import (
	"regexp"
	"strings"
)

// srsKeywordRe finds the first coordinate-reference-system declaration
// keyword and its quoted name in ogrinfo's `-so` spatial reference dump,
// covering both WKT1 (PROJCS/GEOGCS) and WKT2 (PROJCRS/GEOGCRS) output.
var srsKeywordRe = regexp.MustCompile(`(?:PROJCS|GEOGCS|PROJCRS|GEOGCRS)\["([^"]+)"`)

// epsgByCanonicalName is a curated lookup from canonicalized SRS name to
// EPSG code, covering the Florida state-plane zones and the geographic
// datums this pipeline's sources actually use. Unknown names are logged
// but non-fatal (spec §4.6 step 2).
var epsgByCanonicalName = map[string]string{
	"nad83_florida_east_ft_us":        "2236",
	"nad83_florida_west_ft_us":        "2882",
	"nad83_florida_north_ft_us":       "2238",
	"nad83_2011_florida_east_ft_us":   "6437",
	"nad83_2011_florida_west_ft_us":   "6443",
	"nad83_2011_florida_north_ft_us":  "6439",
	"nad83":                           "4269",
	"wgs_84":                          "4326",
	"wgs84":                           "4326",
	"nad_1983_stateplane_florida_east_fips_0901_feet": "2236",
	"nad_1983_stateplane_florida_west_fips_0902_feet": "2882",
}

// canonicalizeSRSName lowercases, collapses non-alphanumeric runs to a
// single underscore, and trims, matching spec §4.6 step 2's
// canonicalization rule.
func canonicalizeSRSName(name string) string {
	var b strings.Builder
	prevUnderscore := false
	for _, r := range strings.ToLower(name) {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if isAlnum {
			b.WriteRune(r)
			prevUnderscore = false
			continue
		}
		if !prevUnderscore && b.Len() > 0 {
			b.WriteByte('_')
			prevUnderscore = true
		}
	}
	return strings.Trim(b.String(), "_")
}

// ResolveEPSG extracts the first PROJCS/GEOGCS/PROJCRS/GEOGCRS name from
// ogrinfo output and maps it to an EPSG code via the curated table. The
// second return value is false (not an error) when the name is found but
// unrecognized, or when no SRS declaration is present at all.
func ResolveEPSG(ogrinfoOutput string) (epsg string, ok bool) {
	m := srsKeywordRe.FindStringSubmatch(ogrinfoOutput)
	if m == nil {
		return "", false
	}
	canonical := canonicalizeSRSName(m[1])
	epsg, ok = epsgByCanonicalName[canonical]
	return epsg, ok
}

// ogrFieldLineRe matches ogrinfo's field-declaration lines (e.g.
// "ZONING: String (40.0)"), which sit between the SRS summary and either
// the first OGRFeature record (plain -al) or end of output (-al -so).
// Matching on the OGR type token, not just a trailing colon, excludes
// summary lines like "Geometry: Polygon" or "Layer name: zoning".
var ogrFieldLineRe = regexp.MustCompile(`(?m)^([A-Za-z_][A-Za-z0-9_]*): (?:String|Integer64|Integer|Real|Date|DateTime|Binary)\b`)

// ExtractFieldNamesFromOgrinfo regex-extracts field names from ogrinfo's
// textual field-declaration block, the fallback path when the DBF cannot
// be read directly (spec §4.6 step 3 fallback).
func ExtractFieldNamesFromOgrinfo(ogrinfoOutput string) []string {
	matches := ogrFieldLineRe.FindAllStringSubmatch(ogrinfoOutput, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}
