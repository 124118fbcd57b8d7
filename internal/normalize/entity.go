package normalize

import (
	"sort"
	"strings"
)

// Counties lists every internal-form Florida county token. Order is not
// significant here; SplitEntity sorts its own working copy by descending
// length before matching.
var Counties = []string{
	"alachua", "baker", "bay", "bradford", "brevard", "broward", "calhoun",
	"charlotte", "citrus", "clay", "collier", "columbia", "desoto", "dixie",
	"duval", "escambia", "flagler", "franklin", "gadsden", "gilchrist",
	"glades", "gulf", "hamilton", "hardee", "hendry", "hernando", "highlands",
	"hillsborough", "holmes", "indian_river", "jackson", "jefferson",
	"lafayette", "lake", "lee", "leon", "levy", "liberty", "madison",
	"manatee", "marion", "martin", "miami_dade", "monroe", "nassau",
	"okaloosa", "okeechobee", "orange", "osceola", "palm_beach", "pasco",
	"pinellas", "polk", "putnam", "santa_rosa", "sarasota", "seminole",
	"st_johns", "st_lucie", "sumter", "suwannee", "taylor", "union",
	"volusia", "wakulla", "walton", "washington",
}

// citySuffixTokens are city positions that denote a county-wide scope
// rather than an incorporated municipality. They are treated as city
// values, never folded into the county portion of an entity identifier.
var citySuffixTokens = map[string]bool{
	"unincorporated": true,
	"incorporated":   true,
	"unified":        true,
	"countywide":     true,
}

var countiesByDescendingLength = sortedByDescendingLength(Counties)

func sortedByDescendingLength(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Slice(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

// SplitEntity splits an internal entity identifier ("county[_city]") into
// its county and city parts, matching the longest known county prefix.
// The second return value is empty for a bare county (county-wide scope
// with no named city). ok is false if no known county prefixes the entity.
func SplitEntity(entity string) (county, city string, ok bool) {
	for _, c := range countiesByDescendingLength {
		if entity == c {
			return c, "", true
		}
		prefix := c + "_"
		if strings.HasPrefix(entity, prefix) {
			return c, strings.TrimPrefix(entity, prefix), true
		}
	}
	return "", "", false
}

// JoinEntity is the inverse of SplitEntity: it composes an internal entity
// identifier from a county and an optional city.
func JoinEntity(county, city string) string {
	if city == "" {
		return county
	}
	return county + "_" + city
}

// IsCityScopeSuffix reports whether a token is one of the county-wide
// scope markers (unincorporated, incorporated, unified, countywide) that
// are valid city values but never county values.
func IsCityScopeSuffix(token string) bool {
	return citySuffixTokens[token]
}
