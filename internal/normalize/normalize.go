// Package normalize converts between the internal identifier form used by
// the pipeline (lowercase, underscore-delimited, abbreviated) and the
// external, human-readable form stored in the catalog table.
package normalize

import (
	"strings"
)

// Kind selects which lookup table and generic rule set Format applies.
type Kind int

const (
	Layer Kind = iota
	County
	City
)

// layerExternal holds the small set of layer abbreviations that do not
// round-trip through a generic title-case conversion.
var layerExternal = map[string]string{
	"flu":         "Future Land Use",
	"addr_pnts":   "Address Points",
	"bldg_ftpr":   "Building Footprints",
	"parcel_geo":  "Parcel Geometry",
	"flood_zones": "Flood Zones",
	"subdiv":      "Subdivisions",
	"zoning":      "Zoning",
	"streets":     "Streets",
}

var layerInternal = reverse(layerExternal)

// countyExternal holds irregular county spellings that do not round-trip
// through the generic city rules (hyphens, periods, mixed case).
var countyExternal = map[string]string{
	"miami_dade":  "Miami-Dade",
	"st_lucie":    "St. Lucie",
	"st_johns":    "St. Johns",
	"desoto":      "DeSoto",
	"santa_rosa":  "Santa Rosa",
	"palm_beach":  "Palm Beach",
	"indian_river": "Indian River",
}

var countyInternal = reverse(countyExternal)

func reverse(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[canonicalKey(v)] = k
	}
	return out
}

func canonicalKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// cityStopWords are left lowercase in external (title-cased) city names
// unless they are the first token.
var cityStopWords = map[string]bool{
	"of": true, "and": true, "in": true, "the": true,
	"on": true, "at": true, "by": true, "for": true, "with": true,
}

// cityAbbrevExternal maps an internal leading/standalone token to its
// external abbreviated spelling.
var cityAbbrevExternal = map[string]string{
	"st":  "St.",
	"ft":  "Ft.",
	"mt":  "Mt.",
}

// compoundInfixes are multi-word English prepositional phrases that render
// with hyphens in external form instead of spaces.
var compoundInfixes = []string{"in_the_", "on_the_", "by_the_"}

// Format converts name between internal and external spellings for the
// given Kind. It is pure, stateless, and total: unknown inputs fall through
// to the generic conversion rules rather than erroring.
func Format(name string, kind Kind, external bool) string {
	switch kind {
	case Layer:
		return formatTable(name, layerInternal, layerExternal, external, formatLayerGeneric)
	case County:
		return formatTable(name, countyInternal, countyExternal, external, formatCityGeneric)
	case City:
		return formatCity(name, external)
	default:
		return name
	}
}

func formatTable(name string, toInternal, toExternal map[string]string, external bool, generic func(string, bool) string) string {
	if external {
		if v, ok := toExternal[canonicalKey(name)]; ok {
			return v
		}
		return generic(name, true)
	}
	if v, ok := toInternal[canonicalKey(name)]; ok {
		return v
	}
	return generic(name, false)
}

func formatLayerGeneric(name string, external bool) string {
	if external {
		return titleCase(strings.ReplaceAll(name, "_", " "), nil)
	}
	return toInternalToken(name)
}

func formatCityGeneric(name string, external bool) string {
	if external {
		return titleCase(strings.ReplaceAll(name, "_", " "), nil)
	}
	return toInternalToken(name)
}

func formatCity(name string, external bool) string {
	if !external {
		return toInternalToken(name)
	}

	// Internal -> external.
	tok := strings.ToLower(strings.TrimSpace(name))
	for _, infix := range compoundInfixes {
		if strings.Contains(tok, infix) {
			words := strings.Split(tok, "_")
			titled := titleCaseWords(words, cityStopWords, cityAbbrevExternal)
			return strings.Join(titled, "-")
		}
	}
	words := strings.Split(tok, "_")
	titled := titleCaseWords(words, cityStopWords, cityAbbrevExternal)
	return strings.Join(titled, " ")
}

func titleCaseWords(words []string, stopWords map[string]bool, abbrev map[string]string) []string {
	out := make([]string, 0, len(words))
	for i, w := range words {
		if w == "" {
			continue
		}
		if ab, ok := abbrev[w]; ok {
			out = append(out, ab)
			continue
		}
		if stopWords[w] && i != 0 {
			out = append(out, w)
			continue
		}
		out = append(out, strings.ToUpper(w[:1])+w[1:])
	}
	return out
}

func titleCase(s string, stopWords map[string]bool) string {
	words := strings.Fields(s)
	out := titleCaseWords(wordsToLower(words), stopWords, cityAbbrevExternal)
	return strings.Join(out, " ")
}

func wordsToLower(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = strings.ToLower(w)
	}
	return out
}

// toInternalToken applies the generic external->internal rule: strip
// periods, lowercase, collapse non-alphanumeric runs to underscore, trim.
func toInternalToken(name string) string {
	var b strings.Builder
	prevUnderscore := false
	for _, r := range strings.ToLower(name) {
		if r == '.' {
			continue
		}
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
